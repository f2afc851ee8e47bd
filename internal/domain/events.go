package domain

import (
	"time"

	"github.com/google/uuid"
)

// ContentProcessingEvent is published on both the global ingestion channel
// and the per-source SSE channel (§4.4).
type ContentProcessingEvent struct {
	SourceID  uuid.UUID      `json:"source_id"`
	Stage     SourceStage    `json:"stage"`
	Error     *string        `json:"error,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// StageSequence is the canonical, in-order progression consumers may expect
// absent failure (§8: "the sequence of emitted stages is a prefix of...").
var StageSequence = []SourceStage{
	StageCrawlingStarted,
	StageProcessingScheduled,
	StageChunksGenerated,
	StageSummaryGenerated,
	StageCompleted,
}

// AddSourceRequest is the inbound request the (out-of-scope) HTTP surface
// decodes before handing off to the Crawler Adapter (§6).
type AddSourceRequest struct {
	UserID       uuid.UUID  `json:"user_id"`
	RequestID    uuid.UUID  `json:"request_id"`
	URL          string     `json:"url"`
	SourceType   SourceType `json:"source_type"`
	PageLimit    int        `json:"page_limit"`
	MaxDepth     int        `json:"max_depth"`
	IncludePaths []string   `json:"include_paths,omitempty"`
	ExcludePaths []string   `json:"exclude_paths,omitempty"`
}

// AddSourceResponse is returned synchronously from POST /api/v0/sources.
type AddSourceResponse struct {
	SourceID uuid.UUID   `json:"source_id"`
	Stage    SourceStage `json:"stage"`
}

// WebhookEventType enumerates the Firecrawl webhook "type" discriminator.
type WebhookEventType string

const (
	WebhookCrawlStarted   WebhookEventType = "crawl.started"
	WebhookCrawlPage      WebhookEventType = "crawl.page"
	WebhookCrawlCompleted WebhookEventType = "crawl.completed"
	WebhookCrawlFailed    WebhookEventType = "crawl.failed"
)

// WebhookPayload mirrors the inbound Firecrawl webhook body verbatim (§6).
type WebhookPayload struct {
	Type    WebhookEventType `json:"type"`
	ID      string           `json:"id"`
	Success bool             `json:"success"`
	Error   *string          `json:"error,omitempty"`
	Data    []map[string]any `json:"data,omitempty"`
}
