package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Repository is a typed view over a single record kind. T is marshaled to
// and from JSON directly; tagged-union records (e.g. ConversationMessage)
// already know how to encode/decode themselves via domain's custom
// (Un)MarshalJSON.
type Repository[T any] struct {
	client redis.UniversalClient
	kind   RecordKind
	spec   recordSpec
}

// NewRepository validates kind against the registry before returning a
// handle — an unregistered kind fails immediately rather than at first
// Set/Get.
func NewRepository[T any](client redis.UniversalClient, registry *Registry, kind RecordKind) (*Repository[T], error) {
	spec, err := registry.spec(kind)
	if err != nil {
		return nil, err
	}
	return &Repository[T]{client: client, kind: kind, spec: spec}, nil
}

func (r *Repository[T]) key(id string) string { return r.spec.keyTemplate(id) }

// Set stores value at id with the record kind's TTL.
func (r *Repository[T]) Set(ctx context.Context, id string, value T) error {
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("kv: marshal %s: %w", r.kind, err)
	}
	return r.client.Set(ctx, r.key(id), b, r.spec.ttl).Err()
}

// Get returns the stored value and true, or the zero value and false if
// absent.
func (r *Repository[T]) Get(ctx context.Context, id string) (T, bool, error) {
	var zero T
	b, err := r.client.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, fmt.Errorf("kv: get %s: %w", r.kind, err)
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return zero, false, fmt.Errorf("kv: unmarshal %s: %w", r.kind, err)
	}
	return v, true, nil
}

// Delete removes id's record.
func (r *Repository[T]) Delete(ctx context.Context, id string) error {
	return r.client.Del(ctx, r.key(id)).Err()
}

// SetTx queues a Set onto an existing pipeline (the "pipe?" parameter of
// §4.2's set contract) instead of executing immediately, so callers can
// fold it into a WatchTx transaction alongside other queued writes.
func (r *Repository[T]) SetTx(ctx context.Context, pipe redis.Pipeliner, id string, value T) error {
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("kv: marshal %s: %w", r.kind, err)
	}
	pipe.Set(ctx, r.key(id), b, r.spec.ttl)
	return nil
}

// DeleteTx queues a Delete onto an existing pipeline (§4.2's "delete(key,
// value: T, pipe?)").
func (r *Repository[T]) DeleteTx(ctx context.Context, pipe redis.Pipeliner, id string) {
	pipe.Del(ctx, r.key(id))
}

// RPush appends value to id's list and refreshes the list TTL.
func (r *Repository[T]) RPush(ctx context.Context, id string, value T) error {
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("kv: marshal %s: %w", r.kind, err)
	}
	key := r.key(id)
	pipe := r.client.TxPipeline()
	pipe.RPush(ctx, key, b)
	pipe.Expire(ctx, key, r.spec.ttl)
	_, err = pipe.Exec(ctx)
	return err
}

// LRange returns elements [start, stop] (redis-style inclusive bounds, -1
// meaning "to the end").
func (r *Repository[T]) LRange(ctx context.Context, id string, start, stop int64) ([]T, error) {
	raws, err := r.client.LRange(ctx, r.key(id), start, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("kv: lrange %s: %w", r.kind, err)
	}
	out := make([]T, 0, len(raws))
	for _, raw := range raws {
		var v T
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, fmt.Errorf("kv: unmarshal %s element: %w", r.kind, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// LPop/RPop remove and return one end of the list.
func (r *Repository[T]) LPop(ctx context.Context, id string) (T, bool, error) {
	return r.pop(ctx, id, r.client.LPop)
}

func (r *Repository[T]) RPop(ctx context.Context, id string) (T, bool, error) {
	return r.pop(ctx, id, r.client.RPop)
}

func (r *Repository[T]) pop(ctx context.Context, id string, op func(context.Context, string) *redis.StringCmd) (T, bool, error) {
	var zero T
	raw, err := op(ctx, r.key(id)).Result()
	if errors.Is(err, redis.Nil) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, fmt.Errorf("kv: pop %s: %w", r.kind, err)
	}
	var v T
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return zero, false, fmt.Errorf("kv: unmarshal %s: %w", r.kind, err)
	}
	return v, true, nil
}

// Key exposes the fully rendered key for id, for callers (the conversation
// manager) that need to pass it to a cross-repository WATCH transaction.
func (r *Repository[T]) Key(id string) string { return r.key(id) }

// Client exposes the underlying client for callers that need to build a
// WATCH transaction spanning more than one Repository (commit_pending
// watches both the history and pending-message keys at once).
func (r *Repository[T]) Client() redis.UniversalClient { return r.client }
