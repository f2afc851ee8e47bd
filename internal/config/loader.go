package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Load reads configuration from environment variables (optionally .env).
// Overload lets a local .env deterministically win over inherited shell
// environment, matching local development expectations.
func Load() (Config, error) {
	_ = godotenv.Overload()

	cfg := Config{}

	cfg.Anthropic.APIKey = trimmed("ANTHROPIC_API_KEY")
	cfg.Anthropic.Model = firstNonEmpty(trimmed("ANTHROPIC_MODEL"), "claude-sonnet-4-5")
	cfg.Anthropic.BaseURL = trimmed("ANTHROPIC_BASE_URL")
	cfg.Anthropic.MaxTokens = envInt64("ANTHROPIC_MAX_TOKENS", 4096)

	cfg.Redis.Addr = firstNonEmpty(trimmed("REDIS_ADDR"), "localhost:6379")
	cfg.Redis.Password = trimmed("REDIS_PASSWORD")
	cfg.Redis.DB = envInt("REDIS_DB", 0)

	cfg.Postgres.DSN = trimmed("POSTGRES_DSN")

	cfg.Qdrant.Host = firstNonEmpty(trimmed("QDRANT_HOST"), "localhost")
	cfg.Qdrant.Port = envInt("QDRANT_PORT", 6334)
	cfg.Qdrant.APIKey = trimmed("QDRANT_API_KEY")
	cfg.Qdrant.UseTLS = envBool("QDRANT_USE_TLS", false)
	cfg.Qdrant.Metric = firstNonEmpty(trimmed("QDRANT_METRIC"), "cosine")

	cfg.Crawler.APIKey = trimmed("FIRECRAWL_API_KEY")
	cfg.Crawler.APIBaseURL = firstNonEmpty(trimmed("FIRECRAWL_API_BASE_URL"), "https://api.firecrawl.dev")
	cfg.Crawler.WebhookBaseURL = trimmed("PUBLIC_BASE_URL")
	cfg.Crawler.MaxSubmitTries = envInt("CRAWLER_MAX_SUBMIT_TRIES", 5)
	cfg.Crawler.MaxPageTries = envInt("CRAWLER_MAX_PAGE_TRIES", 5)
	cfg.Crawler.DefaultPageCap = envInt("CRAWLER_DEFAULT_PAGE_LIMIT", 100)
	cfg.Crawler.DefaultMaxDepth = envInt("CRAWLER_DEFAULT_MAX_DEPTH", 5)

	cfg.Embedding.BaseURL = trimmed("EMBEDDING_BASE_URL")
	cfg.Embedding.Path = firstNonEmpty(trimmed("EMBEDDING_PATH"), "/v1/embeddings")
	cfg.Embedding.APIKey = trimmed("EMBEDDING_API_KEY")
	cfg.Embedding.APIHeader = firstNonEmpty(trimmed("EMBEDDING_API_HEADER"), "Authorization")
	cfg.Embedding.Model = trimmed("EMBEDDING_MODEL")
	cfg.Embedding.Dimensions = envInt("EMBEDDING_DIMENSIONS", 1536)
	cfg.Embedding.Timeout = envInt("EMBEDDING_TIMEOUT_SECONDS", 30)

	cfg.Reranker.BaseURL = trimmed("RERANKER_BASE_URL")
	cfg.Reranker.APIKey = trimmed("RERANKER_API_KEY")
	cfg.Reranker.Model = trimmed("RERANKER_MODEL")
	cfg.Reranker.Timeout = envInt("RERANKER_TIMEOUT_SECONDS", 30)

	cfg.Kafka.Brokers = firstNonEmpty(trimmed("KAFKA_BROKERS"), "localhost:9092")
	cfg.Kafka.GroupID = firstNonEmpty(trimmed("KAFKA_GROUP_ID"), "kollektiv-workers")

	cfg.Server.Host = firstNonEmpty(trimmed("API_HOST"), "0.0.0.0")
	cfg.Server.Port = envInt("API_PORT", 8080)
	cfg.Server.PublicURL = cfg.Crawler.WebhookBaseURL

	cfg.LogLevel = firstNonEmpty(trimmed("LOG_LEVEL"), "info")

	return cfg, nil
}

func trimmed(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func envInt(key string, def int) int {
	v := trimmed(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envInt64(key string, def int64) int64 {
	v := trimmed(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func envBool(key string, def bool) bool {
	v := trimmed(key)
	if v == "" {
		return def
	}
	return strings.EqualFold(v, "true") || v == "1" || strings.EqualFold(v, "yes")
}
