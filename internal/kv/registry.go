// Package kv is the typed wrapper over the K/V store (C2): per-model key
// templates, per-model TTLs, and atomic pipelines with optimistic
// concurrency via WATCH. Grounded on the teacher's
// internal/skills/redis_cache.go (key-template methods, TTL-scoped
// get/set) and internal/orchestrator/dedupe.go (ping-validated client,
// redis.Nil handling), generalized into a registry-driven Repository[T]
// since neither teacher file needed a transactional pipeline.
package kv

import (
	"fmt"
	"time"

	"kollektiv/internal/config"
)

// RecordKind identifies a record type registered with the store. Using an
// unregistered kind is a configuration error raised at first use (§4.2).
type RecordKind string

const (
	KindConversationHistory RecordKind = "conversation_history"
	KindPendingMessages     RecordKind = "pending_messages"
)

type recordSpec struct {
	keyTemplate func(id string) string
	ttl         time.Duration
}

// Registry declares the key template and TTL for each record kind. It is
// built once at process start and shared by every Repository.
type Registry struct {
	specs map[RecordKind]recordSpec
}

// NewRegistry returns a Registry pre-populated with Kollektiv's own record
// kinds (conversation history and pending messages, §4.2), matching the
// fixed TTLs from spec.md.
func NewRegistry() *Registry {
	r := &Registry{specs: map[RecordKind]recordSpec{}}
	r.Register(KindConversationHistory, func(id string) string {
		return fmt.Sprintf("conversations:%s:history", id)
	}, config.ConversationHistoryTTL)
	r.Register(KindPendingMessages, func(id string) string {
		return fmt.Sprintf("conversations:%s:pending_messages", id)
	}, config.PendingMessageTTL)
	return r
}

// Register declares or overrides a record kind's key template and TTL.
func (r *Registry) Register(kind RecordKind, keyTemplate func(string) string, ttl time.Duration) {
	r.specs[kind] = recordSpec{keyTemplate: keyTemplate, ttl: ttl}
}

func (r *Registry) spec(kind RecordKind) (recordSpec, error) {
	s, ok := r.specs[kind]
	if !ok {
		return recordSpec{}, fmt.Errorf("kv: unknown record kind %q", kind)
	}
	return s, nil
}
