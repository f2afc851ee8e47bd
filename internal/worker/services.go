// Package worker implements the ingestion Worker Pipeline (C11), triggered
// by webhook-indicated crawl completion (§4.11). Wiring follows the
// teacher's internal/rag/service/service.go "explicit Services struct with
// functional options" idiom, generalized from its search/vector/graph
// surface to Kollektiv's durable repositories, event bus, chunker, vector
// index, and summary generator.
package worker

import (
	"kollektiv/internal/chunker"
	"kollektiv/internal/domain"
	"kollektiv/internal/eventbus"
	"kollektiv/internal/jobs"
	"kollektiv/internal/store"
	"kollektiv/internal/summary"
	"kollektiv/internal/vectorindex"
)

const (
	defaultDocumentBatch = 50
	defaultChunkBatch    = 500
)

// Services wires every dependency one ingestion run needs: the Durable
// Repository (sources/documents/chunks/summaries), the Job Manager, the
// Chunker, a per-user Vector Index cache, the Summary Generator, and the
// Event Bus publisher for SSE stage events. On §9's dual pubsub/queue path,
// tasks reach it through Consumer; the dispatching side lives in
// internal/ingest. The Crawler Adapter itself is not wired
// here: by the time a ProcessingTask reaches the pipeline, the webhook path
// (internal/ingest) has already fetched and persisted every Document.
type Services struct {
	sourceRepo   *store.Repository[domain.Source]
	documentRepo *store.Repository[domain.Document]
	chunkRepo    *store.Repository[domain.Chunk]
	summaryRepo  *store.Repository[domain.SourceSummary]

	jobs       *jobs.Manager
	chunker    *chunker.Chunker
	indexes    *vectorindex.Cache
	summarizer *summary.Generator
	bus        *eventbus.Bus

	documentBatch int
	chunkBatch    int
}

// Option configures Services during construction.
type Option func(*Services)

func WithDocumentBatch(n int) Option { return func(s *Services) { s.documentBatch = n } }
func WithChunkBatch(n int) Option    { return func(s *Services) { s.chunkBatch = n } }

func New(
	sourceRepo *store.Repository[domain.Source],
	documentRepo *store.Repository[domain.Document],
	chunkRepo *store.Repository[domain.Chunk],
	summaryRepo *store.Repository[domain.SourceSummary],
	jobManager *jobs.Manager,
	chunkerSvc *chunker.Chunker,
	indexes *vectorindex.Cache,
	summarizer *summary.Generator,
	bus *eventbus.Bus,
	opts ...Option,
) *Services {
	s := &Services{
		sourceRepo:    sourceRepo,
		documentRepo:  documentRepo,
		chunkRepo:     chunkRepo,
		summaryRepo:   summaryRepo,
		jobs:          jobManager,
		chunker:       chunkerSvc,
		indexes:       indexes,
		summarizer:    summarizer,
		bus:           bus,
		documentBatch: defaultDocumentBatch,
		chunkBatch:    defaultChunkBatch,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}
