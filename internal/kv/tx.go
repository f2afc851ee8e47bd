package kv

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultMaxWatchRetries bounds the optimistic-concurrency retry loop used
// by WatchTx. The original project retried its watch/pipe/multi transaction
// indefinitely on conflict; we bound it so a pathologically hot key cannot
// wedge a request forever.
const DefaultMaxWatchRetries = 10

// WatchTx runs fn inside a WATCH on keys, retrying on optimistic-concurrency
// conflicts (redis.TxFailedErr) for at most DefaultMaxWatchRetries attempts
// in all. fn
// receives a transactional pipeline; all writes queued on it are applied
// atomically only if no watched key changed between the WATCH and the
// pipeline's EXEC.
func WatchTx(ctx context.Context, client redis.UniversalClient, fn func(pipe redis.Pipeliner) error, keys ...string) error {
	var lastErr error
	for attempt := 0; attempt < DefaultMaxWatchRetries; attempt++ {
		err := client.Watch(ctx, func(tx *redis.Tx) error {
			_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				return fn(pipe)
			})
			return err
		}, keys...)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			lastErr = err
			continue
		}
		return err
	}
	return fmt.Errorf("kv: watch transaction exceeded %d retries: %w", DefaultMaxWatchRetries, lastErr)
}
