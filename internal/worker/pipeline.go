package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"kollektiv/internal/domain"
	"kollektiv/internal/jobs"
	"kollektiv/internal/observability"
	"kollektiv/internal/store"
)

// Run executes the ingestion pipeline for one source once its crawl has
// completed (§4.11): load every Document, chunk it, persist chunks durably
// and to the per-user vector index, generate the source summary, and drive
// Source/Job through their remaining stages, emitting a
// ContentProcessingEvent at every stage boundary. Any irrecoverable error
// transitions both Source and Job to Failed and emits a final event
// instead of propagating past this call — Run returns nil unless the
// source cannot be loaded or the job cannot be moved to InProgress (it is
// missing or no longer Pending).
func (s *Services) Run(ctx context.Context, sourceID, jobID uuid.UUID) error {
	log := observability.LoggerWithTrace(ctx)

	source, err := s.sourceRepo.FindByID(ctx, sourceID)
	if err != nil {
		return fmt.Errorf("worker: load source %s: %w", sourceID, err)
	}

	if _, err := s.jobs.Update(ctx, jobID, jobs.Patch{Status: statusPtr(domain.JobInProgress)}); err != nil {
		return fmt.Errorf("worker: mark processing job in progress: %w", err)
	}

	source, err = s.advance(ctx, source, domain.StageProcessingScheduled, nil)
	if err != nil {
		return s.fail(ctx, source, jobID, err)
	}

	documents, err := s.documentRepo.Find(ctx, store.FilterBySourceID(sourceID), store.FindOptions{})
	if err != nil {
		return s.fail(ctx, source, jobID, fmt.Errorf("load documents: %w", err))
	}
	if len(documents) == 0 {
		return s.fail(ctx, source, jobID, fmt.Errorf("no documents to process"))
	}

	chunks, err := s.chunkDocuments(ctx, documents)
	if err != nil {
		return s.fail(ctx, source, jobID, err)
	}
	if len(chunks) == 0 {
		return s.fail(ctx, source, jobID, fmt.Errorf("chunker produced no chunks"))
	}

	if err := s.persistChunks(ctx, source.UserID, chunks); err != nil {
		return s.fail(ctx, source, jobID, err)
	}

	source, err = s.advance(ctx, source, domain.StageChunksGenerated, nil)
	if err != nil {
		return s.fail(ctx, source, jobID, err)
	}

	sourceSummary, err := s.summarizer.Generate(ctx, sourceID, documents)
	if err != nil {
		return s.fail(ctx, source, jobID, fmt.Errorf("generate summary: %w", err))
	}
	if _, err := s.summaryRepo.Save(ctx, sourceSummary); err != nil {
		return s.fail(ctx, source, jobID, fmt.Errorf("persist summary: %w", err))
	}

	source, err = s.advance(ctx, source, domain.StageSummaryGenerated, nil)
	if err != nil {
		return s.fail(ctx, source, jobID, err)
	}

	if _, err := s.jobs.MarkCompleted(ctx, jobID, &sourceSummary.SummaryID); err != nil {
		return s.fail(ctx, source, jobID, fmt.Errorf("mark processing job completed: %w", err))
	}

	if _, err := s.advance(ctx, source, domain.StageCompleted, nil); err != nil {
		return s.fail(ctx, source, jobID, err)
	}

	log.Info().
		Str("source_id", sourceID.String()).
		Int("documents", len(documents)).
		Int("chunks", len(chunks)).
		Msg("worker: ingestion pipeline completed")
	return nil
}

// chunkDocuments runs the Chunker over documents in bounded batches
// (§4.11's "document batch 50"), one ProcessDocuments call per batch; the
// chunks of every batch are collected into one slice and returned together.
func (s *Services) chunkDocuments(ctx context.Context, documents []domain.Document) ([]domain.Chunk, error) {
	var all []domain.Chunk
	for start := 0; start < len(documents); start += s.documentBatch {
		end := start + s.documentBatch
		if end > len(documents) {
			end = len(documents)
		}
		all = append(all, s.chunker.ProcessDocuments(ctx, documents[start:end])...)
	}
	return all, nil
}

// persistChunks writes chunks to the durable repository and the user's
// vector index in bounded batches (§4.11's "chunk batch 500").
func (s *Services) persistChunks(ctx context.Context, userID uuid.UUID, chunks []domain.Chunk) error {
	index, err := s.indexes.ForUser(ctx, userID.String())
	if err != nil {
		return fmt.Errorf("resolve vector index: %w", err)
	}

	for start := 0; start < len(chunks); start += s.chunkBatch {
		end := start + s.chunkBatch
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]
		if _, err := s.chunkRepo.Save(ctx, batch...); err != nil {
			return fmt.Errorf("persist chunks: %w", err)
		}
		if err := index.AddChunks(ctx, batch); err != nil {
			return fmt.Errorf("add chunks to vector index: %w", err)
		}
	}
	return nil
}

// advance transitions source to stage, persists it, and publishes the
// corresponding ContentProcessingEvent (§4.11's "emit a
// ContentProcessingEvent on every stage boundary"). A source already at
// stage passes through untouched: the webhook path sets
// ProcessingScheduled (and emits its event) before dispatching the task.
// Any other move that domain.CanTransition rejects is returned as an error.
func (s *Services) advance(ctx context.Context, source domain.Source, stage domain.SourceStage, metadata map[string]any) (domain.Source, error) {
	if source.Stage == stage {
		return source, nil
	}
	if !domain.CanTransition(source.Stage, stage) {
		return source, fmt.Errorf("illegal stage transition %s -> %s", source.Stage, stage)
	}
	source.Stage = stage
	saved, err := s.sourceRepo.Save(ctx, source)
	if err != nil {
		return source, fmt.Errorf("persist source stage %s: %w", stage, err)
	}
	source = saved[0]

	if err := s.bus.Publish(ctx, domain.ContentProcessingEvent{
		SourceID:  source.SourceID,
		Stage:     stage,
		Metadata:  metadata,
		Timestamp: time.Now(),
	}); err != nil {
		observability.LoggerWithTrace(ctx).Warn().Err(err).
			Str("source_id", source.SourceID.String()).
			Msg("worker: failed to publish stage event")
	}
	return source, nil
}

// fail transitions source and its job to Failed and emits the terminal
// event (§4.11, §7's "a failure in any ingestion stage marks Source and Job
// Failed, publishes a final event, and halts the pipeline for that
// source"). It always returns nil to the caller of Run: a failed pipeline
// run is not itself an error the dispatcher should retry.
func (s *Services) fail(ctx context.Context, source domain.Source, jobID uuid.UUID, cause error) error {
	log := observability.LoggerWithTrace(ctx)
	log.Error().Err(cause).Str("source_id", source.SourceID.String()).Msg("worker: ingestion pipeline failed")

	msg := cause.Error()
	source.Stage = domain.StageFailed
	source.Error = &msg
	if _, err := s.sourceRepo.Save(ctx, source); err != nil {
		log.Error().Err(err).Msg("worker: failed to persist failed source")
	}

	if _, err := s.jobs.MarkFailed(ctx, jobID, cause); err != nil {
		log.Error().Err(err).Msg("worker: failed to mark job failed")
	}

	if err := s.bus.Publish(ctx, domain.ContentProcessingEvent{
		SourceID:  source.SourceID,
		Stage:     domain.StageFailed,
		Error:     &msg,
		Timestamp: time.Now(),
	}); err != nil {
		log.Warn().Err(err).Msg("worker: failed to publish failure event")
	}
	return nil
}

func statusPtr(s domain.JobStatus) *domain.JobStatus { return &s }
