// Package health is the SUPPLEMENTED /health surface: a pure function an
// external router calls, pinging Postgres, Redis and the embedding
// provider under a rate limiter so a thundering herd of health checks
// never amplifies into a thundering herd against those backends. The LLM
// provider and the reranker are not checked.
// Grounded on the teacher's internal/rag/embedder.CheckReachability-style
// ping calls and golang.org/x/time/rate for the limiter, following the
// teacher's preference for the x/time/rate token bucket over a hand-rolled
// limiter.
package health

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"kollektiv/internal/config"
	"kollektiv/internal/embedding"
)

// Status is one dependency's reachability result.
type Status struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
}

// Report is the full health snapshot returned to the caller.
type Report struct {
	Healthy bool     `json:"healthy"`
	Checks  []Status `json:"checks"`
}

// Checker owns the limiter and the handles needed to ping each dependency.
// Checker is safe for concurrent use; Check blocks on the limiter rather
// than failing closed when called more often than the configured rate.
type Checker struct {
	pool     *pgxpool.Pool
	redis    redis.UniversalClient
	embedCfg config.EmbeddingConfig
	limiter  *rate.Limiter
}

// New builds a Checker limited to one health check per interval (default
// one per second, bursting up to 2) so a misbehaving monitor cannot turn
// /health into a denial-of-service amplifier against Postgres, Redis, or
// the embedding provider.
func New(pool *pgxpool.Pool, redisClient redis.UniversalClient, embedCfg config.EmbeddingConfig) *Checker {
	return &Checker{
		pool:     pool,
		redis:    redisClient,
		embedCfg: embedCfg,
		limiter:  rate.NewLimiter(rate.Every(time.Second), 2),
	}
}

// Check pings every configured dependency with a bounded per-check timeout
// and returns a consolidated Report. It waits on the limiter before running
// any check, so Check itself can block briefly under heavy call volume.
func (c *Checker) Check(ctx context.Context) Report {
	if err := c.limiter.Wait(ctx); err != nil {
		return Report{Healthy: false, Checks: []Status{{Name: "rate_limiter", Healthy: false, Error: err.Error()}}}
	}

	checks := []Status{
		c.checkPostgres(ctx),
		c.checkRedis(ctx),
		c.checkEmbedding(ctx),
	}

	healthy := true
	for _, s := range checks {
		if !s.Healthy {
			healthy = false
		}
	}
	return Report{Healthy: healthy, Checks: checks}
}

func (c *Checker) checkPostgres(ctx context.Context) Status {
	cctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := c.pool.Ping(cctx); err != nil {
		return Status{Name: "postgres", Healthy: false, Error: err.Error()}
	}
	return Status{Name: "postgres", Healthy: true}
}

func (c *Checker) checkRedis(ctx context.Context) Status {
	cctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := c.redis.Ping(cctx).Err(); err != nil {
		return Status{Name: "redis", Healthy: false, Error: err.Error()}
	}
	return Status{Name: "redis", Healthy: true}
}

func (c *Checker) checkEmbedding(ctx context.Context) Status {
	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := embedding.CheckReachability(cctx, c.embedCfg); err != nil {
		return Status{Name: "embedding", Healthy: false, Error: err.Error()}
	}
	return Status{Name: "embedding", Healthy: true}
}
