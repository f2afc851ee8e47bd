package ingest

import (
	"fmt"

	"context"

	"github.com/google/uuid"

	"kollektiv/internal/crawler"
	"kollektiv/internal/domain"
	"kollektiv/internal/eventbus"
	"kollektiv/internal/jobs"
	"kollektiv/internal/observability"
	"kollektiv/internal/store"
)

// HandleWebhook classifies an inbound Firecrawl webhook payload and drives
// the crawl Job and Source through the corresponding transition (§6):
//
//   - crawl.started: Job -> InProgress, Source -> CrawlingStarted, event
//     published.
//   - crawl.page: increments Source.Metadata.PagesCrawled only; no stage
//     transition, no event (§6's "page events are a counter, not a stage").
//   - crawl.completed: fetches the full result set, maps it to Documents,
//     persists them, creates the processing Job, and dispatches a
//     ProcessingTask for the worker pipeline to pick up.
//   - crawl.failed: Job -> Failed, Source -> Failed, event published.
//
// The crawl job is resolved by its Firecrawl external id
// (jobs.Manager.FindByExternalID), so a redelivered webhook for an already
// terminal job is a no-op rather than a duplicate pipeline run.
func (s *Service) HandleWebhook(ctx context.Context, payload domain.WebhookPayload) error {
	job, err := s.jobs.FindByExternalID(ctx, payload.ID)
	if err != nil {
		return fmt.Errorf("ingest: resolve job for webhook %s: %w", payload.ID, err)
	}
	if job.Details.Crawl == nil {
		return fmt.Errorf("ingest: job %s for webhook %s is not a crawl job", job.JobID, payload.ID)
	}
	switch job.Status {
	case domain.JobCompleted, domain.JobFailed, domain.JobCancelled:
		observability.LoggerWithTrace(ctx).Info().
			Str("type", string(payload.Type)).Str("job_id", job.JobID.String()).
			Msg("ingest: webhook for terminal crawl job ignored")
		return nil
	}

	source, err := s.sourceByJobID(ctx, job.JobID)
	if err != nil {
		return fmt.Errorf("ingest: resolve source for job %s: %w", job.JobID, err)
	}

	switch payload.Type {
	case domain.WebhookCrawlStarted:
		return s.handleCrawlStarted(ctx, source, job)
	case domain.WebhookCrawlPage:
		return s.handleCrawlPage(ctx, source)
	case domain.WebhookCrawlCompleted:
		return s.handleCrawlCompleted(ctx, source, job)
	case domain.WebhookCrawlFailed:
		return s.handleCrawlFailed(ctx, source, job, payload)
	default:
		observability.LoggerWithTrace(ctx).Warn().Str("type", string(payload.Type)).Msg("ingest: unrecognized webhook type")
		return nil
	}
}

func (s *Service) sourceByJobID(ctx context.Context, jobID uuid.UUID) (domain.Source, error) {
	found, err := s.sourceRepo.Find(ctx, store.FilterByJobID(jobID), store.FindOptions{Limit: 1})
	if err != nil {
		return domain.Source{}, err
	}
	if len(found) == 0 {
		return domain.Source{}, fmt.Errorf("no source owns job %s", jobID)
	}
	return found[0], nil
}

func (s *Service) handleCrawlStarted(ctx context.Context, source domain.Source, job domain.Job) error {
	if _, err := s.jobs.Update(ctx, job.JobID, jobs.Patch{Status: statusPtr(domain.JobInProgress)}); err != nil {
		return fmt.Errorf("mark crawl job in progress: %w", err)
	}
	if !domain.CanTransition(source.Stage, domain.StageCrawlingStarted) {
		return nil
	}
	source.Stage = domain.StageCrawlingStarted
	saved, err := s.sourceRepo.Save(ctx, source)
	if err != nil {
		return fmt.Errorf("persist source stage: %w", err)
	}
	return s.publishStage(ctx, saved[0], domain.StageCrawlingStarted)
}

func (s *Service) handleCrawlPage(ctx context.Context, source domain.Source) error {
	source.Metadata.PagesCrawled++
	if _, err := s.sourceRepo.Save(ctx, source); err != nil {
		return fmt.Errorf("increment pages crawled: %w", err)
	}
	return nil
}

func (s *Service) handleCrawlCompleted(ctx context.Context, source domain.Source, job domain.Job) error {
	pages, err := s.crawler.FetchResults(ctx, job.Details.Crawl.FirecrawlID)
	if err != nil {
		return s.failSourceAndJob(ctx, source, job.JobID, fmt.Errorf("fetch crawl results: %w", err))
	}

	documents := crawler.ToDocuments(source.SourceID, pages)
	if len(documents) == 0 {
		return s.failSourceAndJob(ctx, source, job.JobID, fmt.Errorf("crawl produced no usable documents"))
	}
	if _, err := s.documentRepo.Save(ctx, documents...); err != nil {
		return s.failSourceAndJob(ctx, source, job.JobID, fmt.Errorf("persist documents: %w", err))
	}

	if _, err := s.jobs.MarkCompleted(ctx, job.JobID, nil); err != nil {
		return fmt.Errorf("mark crawl job completed: %w", err)
	}

	processingJob, err := s.jobs.Create(ctx, domain.JobTypeProcessing, domain.JobDetails{
		Processing: &domain.ProcessingJobDetails{
			SourceID:      source.SourceID,
			DocumentCount: len(documents),
		},
	})
	if err != nil {
		return fmt.Errorf("create processing job: %w", err)
	}

	if !domain.CanTransition(source.Stage, domain.StageProcessingScheduled) {
		return nil
	}
	source.JobID = &processingJob.JobID
	source.Stage = domain.StageProcessingScheduled
	saved, err := s.sourceRepo.Save(ctx, source)
	if err != nil {
		return fmt.Errorf("persist source stage: %w", err)
	}
	source = saved[0]

	if err := s.publishStage(ctx, source, domain.StageProcessingScheduled); err != nil {
		return err
	}

	return s.dispatcher.Dispatch(ctx, eventbus.ProcessingTask{JobID: processingJob.JobID, SourceID: source.SourceID})
}

func (s *Service) handleCrawlFailed(ctx context.Context, source domain.Source, job domain.Job, payload domain.WebhookPayload) error {
	reason := "crawl failed"
	if payload.Error != nil {
		reason = *payload.Error
	}
	return s.failSourceAndJob(ctx, source, job.JobID, fmt.Errorf("%s", reason))
}

// failSourceAndJob marks both source and the named job Failed and publishes
// a terminal event, mirroring the Worker Pipeline's own failure path
// (internal/worker.Services.fail) for the crawl half of the lifecycle.
// Unlike that path it returns cause, which AddSource and the webhook
// handlers pass on, so HandleWebhook's caller observes the failure too.
func (s *Service) failSourceAndJob(ctx context.Context, source domain.Source, jobID uuid.UUID, cause error) error {
	log := observability.LoggerWithTrace(ctx)
	msg := cause.Error()
	source.Stage = domain.StageFailed
	source.Error = &msg
	if _, err := s.sourceRepo.Save(ctx, source); err != nil {
		log.Error().Err(err).Msg("ingest: failed to persist failed source")
	}
	if _, err := s.jobs.MarkFailed(ctx, jobID, cause); err != nil {
		log.Error().Err(err).Msg("ingest: failed to mark job failed")
	}
	if err := s.bus.Publish(ctx, domain.ContentProcessingEvent{
		SourceID:  source.SourceID,
		Stage:     domain.StageFailed,
		Error:     &msg,
		Timestamp: s.now(),
	}); err != nil {
		log.Warn().Err(err).Msg("ingest: failed to publish failure event")
	}
	return cause
}

func (s *Service) publishStage(ctx context.Context, source domain.Source, stage domain.SourceStage) error {
	return s.bus.Publish(ctx, domain.ContentProcessingEvent{
		SourceID:  source.SourceID,
		Stage:     stage,
		Timestamp: s.now(),
	})
}

func statusPtr(s domain.JobStatus) *domain.JobStatus { return &s }
