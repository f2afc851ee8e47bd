// Package conversation implements the Conversation Manager (C12): the
// pending-queue + durable commit of chat messages and the token-budget
// pruning that keeps a conversation under the model's context window.
// Grounded line-for-line on original_source's
// src/core/chat/conversation_manager.py — K/V warm cache with a durable
// cold fallback, an optimistic-concurrency WATCH transaction for
// commit_pending, and the same prune-while-over-budget loop — adapted to
// Go's explicit error returns and the teacher's typed-repository idiom
// (internal/kv, internal/store) in place of the Python project's bespoke
// Redis/Supabase repository pair.
package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"kollektiv/internal/config"
	"kollektiv/internal/domain"
	"kollektiv/internal/kv"
	"kollektiv/internal/observability"
	"kollektiv/internal/store"
	"kollektiv/internal/tokencount"
)

// ConversationStore is the durable-repository surface the manager needs,
// narrowed from store.Repository[domain.Conversation] so tests can
// substitute a fake instead of a live Postgres pool.
type ConversationStore interface {
	FindByID(ctx context.Context, id any) (domain.Conversation, error)
	Save(ctx context.Context, entities ...domain.Conversation) ([]domain.Conversation, error)
}

// MessageStore is the durable-repository surface for ConversationMessage
// rows, narrowed the same way.
type MessageStore interface {
	Save(ctx context.Context, entities ...domain.ConversationMessage) ([]domain.ConversationMessage, error)
	Find(ctx context.Context, filters map[string]any, opts store.FindOptions) ([]domain.ConversationMessage, error)
}

// Manager resolves and commits conversation state per §4.12: a warm K/V
// copy, a cold durable fallback, and a brand-new in-memory copy when
// neither exists.
type Manager struct {
	history       *kv.Repository[domain.ConversationHistory]
	pending       *kv.Repository[domain.ConversationMessage]
	conversations ConversationStore
	messages      MessageStore
	tokenizer     *tokencount.Counter
	maxTokens     int
}

func New(
	history *kv.Repository[domain.ConversationHistory],
	pending *kv.Repository[domain.ConversationMessage],
	conversations ConversationStore,
	messages MessageStore,
	tokenizer *tokencount.Counter,
) *Manager {
	return &Manager{
		history:       history,
		pending:       pending,
		conversations: conversations,
		messages:      messages,
		tokenizer:     tokenizer,
		maxTokens:     config.MaxConversationTokens,
	}
}

// AddPendingMessage appends message to the conversation's K/V pending list
// (§4.12: user messages before streaming, assistant/tool-result messages
// generated during streaming).
func (m *Manager) AddPendingMessage(ctx context.Context, message domain.ConversationMessage) error {
	if message.ConversationID == uuid.Nil {
		return fmt.Errorf("conversation: add_pending_message: missing conversation id")
	}
	if err := m.pending.RPush(ctx, message.ConversationID.String(), message); err != nil {
		return fmt.Errorf("conversation: add_pending_message: %w", err)
	}
	observability.LoggerWithTrace(ctx).Info().
		Str("conversation_id", message.ConversationID.String()).
		Str("message_id", message.MessageID.String()).
		Str("role", string(message.Role)).
		Msg("conversation: added pending message")
	return nil
}

// GetConversationHistory resolves a ConversationHistory: K/V warm copy,
// else durable cold copy (materialised into K/V on read), else a brand-new
// history that exists only in memory until commit (§3, §4.12).
func (m *Manager) GetConversationHistory(ctx context.Context, conversationID, userID uuid.UUID) (domain.ConversationHistory, error) {
	id := conversationID.String()

	if h, ok, err := m.history.Get(ctx, id); err != nil {
		return domain.ConversationHistory{}, fmt.Errorf("conversation: get warm history: %w", err)
	} else if ok {
		return h, nil
	}

	conv, err := m.conversations.FindByID(ctx, conversationID)
	switch {
	case err == nil:
		msgs, err := m.messages.Find(ctx, map[string]any{"conversation_id": conversationID}, store.FindOptions{})
		if err != nil {
			return domain.ConversationHistory{}, fmt.Errorf("conversation: load durable messages: %w", err)
		}
		history := domain.ConversationHistory{
			ConversationID: conversationID,
			UserID:         conv.UserID,
			Messages:       msgs,
			TokenCount:     conv.TokenCount,
		}
		if err := m.history.Set(ctx, id, history); err != nil {
			return domain.ConversationHistory{}, fmt.Errorf("conversation: warm durable history: %w", err)
		}
		return history, nil
	case isNotFound(err):
		newConv := domain.Conversation{ConversationID: conversationID, UserID: userID, Title: "New conversation"}
		if _, err := m.conversations.Save(ctx, newConv); err != nil {
			return domain.ConversationHistory{}, fmt.Errorf("conversation: create conversation: %w", err)
		}
		return domain.ConversationHistory{ConversationID: conversationID, UserID: userID}, nil
	default:
		return domain.ConversationHistory{}, fmt.Errorf("conversation: load durable conversation: %w", err)
	}
}

// SetupNewConvHistoryTurn implements §4.12's turn setup: stage the user
// message as pending, resolve the history, and materialise it with every
// currently-pending message (including the one just staged).
func (m *Manager) SetupNewConvHistoryTurn(ctx context.Context, userMessage domain.ConversationMessage, userID uuid.UUID) (domain.ConversationHistory, error) {
	if err := m.AddPendingMessage(ctx, userMessage); err != nil {
		return domain.ConversationHistory{}, err
	}

	history, err := m.GetConversationHistory(ctx, userMessage.ConversationID, userID)
	if err != nil {
		return domain.ConversationHistory{}, err
	}

	pending, err := m.pending.LRange(ctx, userMessage.ConversationID.String(), 0, -1)
	if err != nil {
		return domain.ConversationHistory{}, fmt.Errorf("conversation: load pending messages: %w", err)
	}
	history.Messages = append(history.Messages, pending...)
	return history, nil
}

// CommitPending atomically transfers the conversation's pending messages
// into its K/V history, prunes the result to the token budget, and
// persists both the message batch and the conversation row durably
// (§4.12).
func (m *Manager) CommitPending(ctx context.Context, conversationID uuid.UUID) error {
	id := conversationID.String()
	historyKey := m.history.Key(id)
	pendingKey := m.pending.Key(id)

	if _, ok, err := m.history.Get(ctx, id); err != nil {
		return fmt.Errorf("conversation: commit_pending: check warm history: %w", err)
	} else if !ok {
		conv, err := m.conversations.FindByID(ctx, conversationID)
		if err != nil {
			return fmt.Errorf("conversation: commit_pending: load conversation for new history: %w", err)
		}
		empty := domain.ConversationHistory{ConversationID: conversationID, UserID: conv.UserID}
		if err := m.history.Set(ctx, id, empty); err != nil {
			return fmt.Errorf("conversation: commit_pending: create warm history: %w", err)
		}
	}

	var history domain.ConversationHistory
	var pending []domain.ConversationMessage
	err := kv.WatchTx(ctx, m.history.Client(), func(pipe redis.Pipeliner) error {
		var ok bool
		var err error
		history, ok, err = m.history.Get(ctx, id)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("conversation: history disappeared mid-commit for %s", id)
		}
		pending, err = m.pending.LRange(ctx, id, 0, -1)
		if err != nil {
			return err
		}

		history.Messages = append(history.Messages, pending...)
		history.TokenCount += m.estimateMessagesTokens(pending)

		if err := m.history.SetTx(ctx, pipe, id, history); err != nil {
			return err
		}
		m.pending.DeleteTx(ctx, pipe, id)
		return nil
	}, historyKey, pendingKey)
	if err != nil {
		return fmt.Errorf("conversation: commit_pending: %w", err)
	}

	pruned := m.pruneHistory(history)
	if len(pruned.Messages) != len(history.Messages) {
		if err := m.history.Set(ctx, id, pruned); err != nil {
			return fmt.Errorf("conversation: commit_pending: persist pruned history: %w", err)
		}
	}

	if len(pending) > 0 {
		if _, err := m.messages.Save(ctx, pending...); err != nil {
			return fmt.Errorf("conversation: commit_pending: persist messages: %w", err)
		}
	}

	conv, err := m.conversations.FindByID(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("conversation: commit_pending: reload conversation: %w", err)
	}
	for _, msg := range pending {
		conv.MessageIDs = append(conv.MessageIDs, msg.MessageID)
	}
	conv.TokenCount = pruned.TokenCount
	if _, err := m.conversations.Save(ctx, conv); err != nil {
		return fmt.Errorf("conversation: commit_pending: persist conversation: %w", err)
	}

	observability.LoggerWithTrace(ctx).Info().
		Str("conversation_id", id).
		Int("committed_messages", len(pending)).
		Msg("conversation: committed pending messages")
	return nil
}

// ClearPending deletes the pending-message queue without committing it,
// used on stream error or consumer disconnect (§4.14) before any durable
// write happens.
func (m *Manager) ClearPending(ctx context.Context, conversationID uuid.UUID) error {
	if err := m.pending.Delete(ctx, conversationID.String()); err != nil {
		return fmt.Errorf("conversation: clear_pending: %w", err)
	}
	return nil
}

// pruneHistory drops the oldest message while usage exceeds 90% of the
// token budget and more than one message remains (§4.12).
func (m *Manager) pruneHistory(h domain.ConversationHistory) domain.ConversationHistory {
	threshold := int(float64(m.maxTokens) * 0.9)
	for h.TokenCount > threshold && len(h.Messages) > 1 {
		removed := h.Messages[0]
		h.Messages = h.Messages[1:]
		h.TokenCount -= m.estimateMessagesTokens([]domain.ConversationMessage{removed})
	}
	return h
}

func isNotFound(err error) bool {
	var nf *store.EntityNotFoundError
	return errors.As(err, &nf)
}

// canonicalJSON renders v with its map keys in sorted order (encoding/json
// sorts them), the Go counterpart of json.dumps(v, sort_keys=True). Unlike
// json.dumps it writes no space after ',' and ':'.
func canonicalJSON(v map[string]any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
