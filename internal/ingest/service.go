// Package ingest is the orchestration glue between the HTTP surface, the
// Crawler Adapter (C6), the Job Manager (C5), and the Worker Pipeline
// (C11): it starts crawls, classifies inbound Firecrawl webhooks, and
// dispatches processing tasks once a crawl's documents are ready. Grounded
// on original_source/src/api/routes.py (add_source/handle_webhook) for the
// exact webhook-to-stage mapping and the teacher's explicit-Services-struct
// wiring style.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"kollektiv/internal/crawler"
	"kollektiv/internal/domain"
	"kollektiv/internal/eventbus"
	"kollektiv/internal/jobs"
	"kollektiv/internal/observability"
	"kollektiv/internal/store"
)

// Service wires the AddSource request path and the Firecrawl webhook path
// (§4.6, §6).
type Service struct {
	sourceRepo   *store.Repository[domain.Source]
	documentRepo *store.Repository[domain.Document]

	jobs       *jobs.Manager
	crawler    *crawler.Adapter
	bus        *eventbus.Bus
	dispatcher *eventbus.TaskDispatcher

	now func() time.Time
}

func New(
	sourceRepo *store.Repository[domain.Source],
	documentRepo *store.Repository[domain.Document],
	jobManager *jobs.Manager,
	crawlerAdp *crawler.Adapter,
	bus *eventbus.Bus,
	dispatcher *eventbus.TaskDispatcher,
) *Service {
	return &Service{
		sourceRepo:   sourceRepo,
		documentRepo: documentRepo,
		jobs:         jobManager,
		crawler:      crawlerAdp,
		bus:          bus,
		dispatcher:   dispatcher,
		now:          time.Now,
	}
}

// AddSource persists a new Source in the Created stage, creates its crawl
// Job, and submits the crawl (§4.6). A submit failure marks both Source and
// Job Failed rather than leaving either dangling in Pending/Created.
func (s *Service) AddSource(ctx context.Context, req domain.AddSourceRequest) (domain.AddSourceResponse, error) {
	now := s.now()
	source := domain.Source{
		SourceID:  uuid.New(),
		UserID:    req.UserID,
		RequestID: req.RequestID,
		SourceURL: req.URL,
		Type:      req.SourceType,
		Stage:     domain.StageCreated,
		CreatedAt: now,
		UpdatedAt: now,
	}

	job, err := s.jobs.Create(ctx, domain.JobTypeCrawl, domain.JobDetails{
		Crawl: &domain.CrawlJobDetails{
			SourceURL:    req.URL,
			PageLimit:    req.PageLimit,
			MaxDepth:     req.MaxDepth,
			IncludePaths: req.IncludePaths,
			ExcludePaths: req.ExcludePaths,
		},
	})
	if err != nil {
		return domain.AddSourceResponse{}, fmt.Errorf("ingest: create crawl job: %w", err)
	}
	source.JobID = &job.JobID

	saved, err := s.sourceRepo.Save(ctx, source)
	if err != nil {
		return domain.AddSourceResponse{}, fmt.Errorf("ingest: persist source: %w", err)
	}
	source = saved[0]

	submitted, err := s.crawler.StartCrawl(ctx, req)
	if err != nil {
		return domain.AddSourceResponse{}, s.failSourceAndJob(ctx, source, job.JobID, fmt.Errorf("start crawl: %w", err))
	}

	job.Details.Crawl.FirecrawlID = submitted.ID
	if _, err := s.jobs.UpdateDetails(ctx, job.JobID, job.Details); err != nil {
		observability.LoggerWithTrace(ctx).Warn().Err(err).Msg("ingest: record firecrawl id on job")
	}

	return domain.AddSourceResponse{SourceID: source.SourceID, Stage: source.Stage}, nil
}
