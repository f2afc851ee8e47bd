// Command worker runs one ingestion worker process: it consumes
// ProcessingTasks off the task queue and drives each source through
// chunk → embed → summarize, emitting stage events as it goes. Multiple
// worker processes can run side by side; the queue's consumer group
// shares the partition assignment between them.
package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"kollektiv/internal/chunker"
	"kollektiv/internal/config"
	"kollektiv/internal/eventbus"
	"kollektiv/internal/jobs"
	"kollektiv/internal/llmclient"
	"kollektiv/internal/observability"
	"kollektiv/internal/store"
	"kollektiv/internal/summary"
	"kollektiv/internal/tokencount"
	"kollektiv/internal/vectorindex"
	"kollektiv/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("worker: load config")
	}
	observability.InitLogger("kollektiv-worker", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := store.NewPool(ctx, cfg.Postgres.DSN)
	if err != nil {
		log.Fatal().Err(err).Msg("worker: connect postgres")
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal().Err(err).Msg("worker: connect redis")
	}
	defer redisClient.Close()

	counter, err := tokencount.Default()
	if err != nil {
		log.Fatal().Err(err).Msg("worker: load tokenizer")
	}

	indexes := vectorindex.NewCache(cfg.Qdrant, cfg.Embedding)
	defer indexes.Close()

	llm := llmclient.New(cfg.Anthropic, nil)

	svc := worker.New(
		store.NewSourceRepository(pool),
		store.NewDocumentRepository(pool),
		store.NewChunkRepository(pool),
		store.NewSourceSummaryRepository(pool),
		jobs.New(store.NewJobRepository(pool)),
		chunker.New(chunker.DefaultConfig(), counter),
		indexes,
		summary.New(llm),
		eventbus.New(redisClient),
	)

	consumer := worker.NewConsumer(splitBrokers(cfg.Kafka.Brokers), cfg.Kafka.GroupID, svc)
	defer consumer.Close()

	log.Info().
		Str("brokers", cfg.Kafka.Brokers).
		Str("group", cfg.Kafka.GroupID).
		Msg("worker: consuming processing tasks")

	if err := consumer.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("worker: consumer stopped")
	}
}

func splitBrokers(brokers string) []string {
	parts := strings.Split(brokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
