package store

import (
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"kollektiv/internal/domain"
)

var conversationMessageColumns = []string{"message_id", "conversation_id", "role", "content"}

func conversationMessageValues(m domain.ConversationMessage) []any {
	content, _ := json.Marshal(m.Content)
	return []any{m.MessageID, m.ConversationID, m.Role, content}
}

func scanConversationMessage(row pgx.Row) (domain.ConversationMessage, error) {
	var m domain.ConversationMessage
	var content []byte
	if err := row.Scan(&m.MessageID, &m.ConversationID, &m.Role, &content); err != nil {
		return m, err
	}
	if len(content) > 0 {
		var raws []json.RawMessage
		if err := json.Unmarshal(content, &raws); err != nil {
			return m, fmt.Errorf("store: unmarshal message content: %w", err)
		}
		m.Content = make([]domain.ContentBlock, 0, len(raws))
		for _, raw := range raws {
			b, err := domain.UnmarshalContentBlock(raw)
			if err != nil {
				return m, fmt.Errorf("store: decode content block: %w", err)
			}
			m.Content = append(m.Content, b)
		}
	}
	return m, nil
}

func NewConversationMessageRepository(pool *pgxpool.Pool) *Repository[domain.ConversationMessage] {
	return NewRepository(pool, Mapper[domain.ConversationMessage]{
		Table:      "conversation_messages",
		PKColumn:   "message_id",
		Columns:    conversationMessageColumns,
		PK:         func(m domain.ConversationMessage) any { return m.MessageID },
		Values:     conversationMessageValues,
		Scan:       scanConversationMessage,
		EntityName: "conversation_message",
	})
}

// FilterByConversationID finds every message belonging to one conversation,
// the same filter the conversation manager builds inline when it loads a
// conversation's durable messages.
func FilterByConversationID(id any) map[string]any {
	return map[string]any{"conversation_id": id}
}
