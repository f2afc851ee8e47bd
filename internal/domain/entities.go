// Package domain holds the shared entity types described in the data model:
// Source, Job, Document, Chunk, SourceSummary, Conversation,
// ConversationMessage, and the content-block union. Every other package
// wires against these types rather than redefining them.
package domain

import (
	"time"

	"github.com/google/uuid"
)

type SourceType string

const (
	SourceTypeWeb        SourceType = "Web"
	SourceTypeGitHub     SourceType = "GitHub"
	SourceTypeJira       SourceType = "Jira"
	SourceTypeConfluence SourceType = "Confluence"
)

type SourceStage string

const (
	StageCreated             SourceStage = "Created"
	StageCrawlingStarted     SourceStage = "CrawlingStarted"
	StageProcessingScheduled SourceStage = "ProcessingScheduled"
	StageChunksGenerated     SourceStage = "ChunksGenerated"
	StageSummaryGenerated    SourceStage = "SummaryGenerated"
	StageCompleted           SourceStage = "Completed"
	StageFailed              SourceStage = "Failed"
)

// stageOrder is the canonical progression used to validate monotonic stage
// transitions (data model invariant 5). Failed absorbs from any stage.
var stageOrder = map[SourceStage]int{
	StageCreated:             0,
	StageCrawlingStarted:     1,
	StageProcessingScheduled: 2,
	StageChunksGenerated:     3,
	StageSummaryGenerated:    4,
	StageCompleted:           5,
}

// CanTransition reports whether moving from 'from' to 'to' is a legal stage
// transition: exactly one step forward in stageOrder, with no skipping and no
// going back. Failed is always reachable; Failed itself is terminal.
func CanTransition(from, to SourceStage) bool {
	if from == StageFailed {
		return false
	}
	if to == StageFailed {
		return true
	}
	fromN, ok1 := stageOrder[from]
	toN, ok2 := stageOrder[to]
	if !ok1 || !ok2 {
		return false
	}
	return toN == fromN+1
}

type SourceMetadata struct {
	CrawlConfig  map[string]any `json:"crawl_config,omitempty"`
	TotalPages   int            `json:"total_pages"`
	PagesCrawled int            `json:"pages_crawled"`
}

type Source struct {
	SourceID  uuid.UUID      `json:"source_id"`
	UserID    uuid.UUID      `json:"user_id"`
	RequestID uuid.UUID      `json:"request_id"`
	JobID     *uuid.UUID     `json:"job_id,omitempty"`
	SourceURL string         `json:"source_url"`
	Type      SourceType     `json:"source_type"`
	Stage     SourceStage    `json:"stage"`
	Metadata  SourceMetadata `json:"metadata"`
	Error     *string        `json:"error,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

type JobType string

const (
	JobTypeCrawl      JobType = "crawl"
	JobTypeProcessing JobType = "processing"
)

type JobStatus string

const (
	JobPending    JobStatus = "Pending"
	JobInProgress JobStatus = "InProgress"
	JobCompleted  JobStatus = "Completed"
	JobFailed     JobStatus = "Failed"
	JobCancelled  JobStatus = "Cancelled"
)

// JobDetails is a tagged variant: exactly one of Crawl/Processing is set,
// discriminated by Job.Type.
type JobDetails struct {
	Crawl      *CrawlJobDetails      `json:"crawl,omitempty"`
	Processing *ProcessingJobDetails `json:"processing,omitempty"`
}

type CrawlJobDetails struct {
	FirecrawlID  string   `json:"firecrawl_id"`
	SourceURL    string   `json:"source_url"`
	PageLimit    int      `json:"page_limit"`
	MaxDepth     int      `json:"max_depth"`
	IncludePaths []string `json:"include_paths,omitempty"`
	ExcludePaths []string `json:"exclude_paths,omitempty"`
}

type ProcessingJobDetails struct {
	SourceID      uuid.UUID `json:"source_id"`
	DocumentCount int       `json:"document_count"`
	ChunkCount    int       `json:"chunk_count"`
}

type Job struct {
	JobID       uuid.UUID  `json:"job_id"`
	Type        JobType    `json:"type"`
	Status      JobStatus  `json:"status"`
	Details     JobDetails `json:"details"`
	ResultID    *uuid.UUID `json:"result_id,omitempty"`
	Error       *string    `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

type DocumentMetadata struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	SourceURL   string `json:"source_url"`
	OGURL       string `json:"og_url"`
}

type Document struct {
	DocumentID uuid.UUID        `json:"document_id"`
	SourceID   uuid.UUID        `json:"source_id"`
	Content    string           `json:"content"`
	Metadata   DocumentMetadata `json:"metadata"`
}

// HeaderPath captures the nearest h1/h2/h3 in scope for a chunk.
type HeaderPath struct {
	H1 string `json:"h1"`
	H2 string `json:"h2"`
	H3 string `json:"h3"`
}

type Chunk struct {
	ChunkID    uuid.UUID  `json:"chunk_id"`
	SourceID   uuid.UUID  `json:"source_id"`
	DocumentID uuid.UUID  `json:"document_id"`
	Headers    HeaderPath `json:"headers"`
	Text       string     `json:"text"`
	Content    string     `json:"content"`
	TokenCount int        `json:"token_count"`
	PageTitle  string     `json:"page_title"`
	PageURL    string     `json:"page_url"`
}

type SourceSummary struct {
	SummaryID uuid.UUID `json:"summary_id"`
	SourceID  uuid.UUID `json:"source_id"`
	Summary   string    `json:"summary"`
	Keywords  []string  `json:"keywords"`
}

type Conversation struct {
	ConversationID uuid.UUID   `json:"conversation_id"`
	UserID         uuid.UUID   `json:"user_id"`
	Title          string      `json:"title"`
	MessageIDs     []uuid.UUID `json:"message_ids"`
	TokenCount     int         `json:"token_count"`
	DataSources    []uuid.UUID `json:"data_sources"`
}

type Role string

const (
	RoleUser      Role = "User"
	RoleAssistant Role = "Assistant"
)

type ConversationMessage struct {
	MessageID      uuid.UUID      `json:"message_id"`
	ConversationID uuid.UUID      `json:"conversation_id"`
	Role           Role           `json:"role"`
	Content        []ContentBlock `json:"content"`
}

// ConversationHistory is the in-memory/volatile aggregate the Conversation
// Manager materialises on access (§3 ConversationHistory, §4.12).
type ConversationHistory struct {
	ConversationID uuid.UUID             `json:"conversation_id"`
	UserID         uuid.UUID             `json:"user_id"`
	Messages       []ConversationMessage `json:"messages"`
	TokenCount     int                   `json:"token_count"`
}
