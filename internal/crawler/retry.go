package crawler

import (
	"context"
	"math/rand"
	"time"
)

// RetryPolicy is the explicit retry-policy object called for in §9's
// "Decorators/retry wrappers → explicit retry policy objects" design note,
// grounded on original_source's tenacity `@retry(stop_after_attempt,
// wait_exponential(min=30, max=300))` decorator on start_crawl.
type RetryPolicy struct {
	MaxAttempts int
	MinBackoff  time.Duration
	MaxBackoff  time.Duration
}

// SubmitRetryPolicy matches original_source's start_crawl decorator: 30s-300s
// exponential backoff, attempt count from configuration.
func SubmitRetryPolicy(maxAttempts int) RetryPolicy {
	return RetryPolicy{MaxAttempts: maxAttempts, MinBackoff: 30 * time.Second, MaxBackoff: 300 * time.Second}
}

// PageRetryPolicy matches original_source's _fetch_results_from_url loop:
// shorter 10s-60s backoff per page.
func PageRetryPolicy(maxAttempts int) RetryPolicy {
	return RetryPolicy{MaxAttempts: maxAttempts, MinBackoff: 10 * time.Second, MaxBackoff: 60 * time.Second}
}

// backoff returns the exponential delay for the given zero-based attempt
// index, clamped to [MinBackoff, MaxBackoff] and jittered by up to 20% to
// avoid thundering-herd retries against the crawler API.
func (p RetryPolicy) backoff(attempt int) time.Duration {
	d := p.MinBackoff << attempt
	if d > p.MaxBackoff || d <= 0 {
		d = p.MaxBackoff
	}
	jitter := time.Duration(rand.Int63n(int64(d) / 5))
	return d + jitter
}

// sleeper abstracts "wait for d" so tests can inject a near-instant clock
// instead of paying the real 30s-300s floor.
type sleeper func(ctx context.Context, d time.Duration) error

func realSleep(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// sleep waits for the attempt's backoff, or retryAfter when the server
// supplied one (honored on 429 per §4.6), unless ctx is done first.
func (p RetryPolicy) sleep(ctx context.Context, sl sleeper, attempt int, retryAfter time.Duration) error {
	d := p.backoff(attempt)
	if retryAfter > 0 {
		d = retryAfter
	}
	return sl(ctx, d)
}
