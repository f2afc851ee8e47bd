// Package config loads process configuration from the environment, the same
// way the rest of the stack does: godotenv.Overload for local development,
// then explicit os.Getenv reads with defaults applied afterward.
package config

import "time"

type AnthropicConfig struct {
	APIKey    string
	Model     string
	MaxTokens int64
	BaseURL   string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type PostgresConfig struct {
	DSN string
}

type QdrantConfig struct {
	Host   string
	Port   int
	APIKey string
	UseTLS bool
	Metric string
}

type CrawlerConfig struct {
	APIKey          string
	APIBaseURL      string
	WebhookBaseURL  string
	MaxSubmitTries  int
	MaxPageTries    int
	DefaultPageCap  int
	DefaultMaxDepth int
}

type EmbeddingConfig struct {
	BaseURL    string
	Path       string
	APIKey     string
	APIHeader  string
	Model      string
	Dimensions int
	Timeout    int
	Headers    map[string]string
}

type RerankerConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout int
}

type KafkaConfig struct {
	Brokers string
	GroupID string
}

type ServerConfig struct {
	Host      string
	Port      int
	PublicURL string
}

type Config struct {
	Anthropic AnthropicConfig
	Redis     RedisConfig
	Postgres  PostgresConfig
	Qdrant    QdrantConfig
	Crawler   CrawlerConfig
	Embedding EmbeddingConfig
	Reranker  RerankerConfig
	Kafka     KafkaConfig
	Server    ServerConfig

	LogLevel string
}

// WebhookPath is the fixed inbound path the crawler notifies, used both to
// derive the outbound webhook URL and to validate inbound requests.
const WebhookPath = "/webhooks/firecrawl"

// ConversationHistoryTTL and PendingMessageTTL are the K/V repository's
// per-record TTLs (§4.2).
const (
	ConversationHistoryTTL = 24 * time.Hour
	PendingMessageTTL      = 1 * time.Hour
)

// MaxConversationTokens bounds the pruning threshold in the Conversation
// Manager (§4.12): prune while usage exceeds 90% of this budget.
const MaxConversationTokens = 200_000
