package store

import (
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"kollektiv/internal/domain"
)

var conversationColumns = []string{
	"conversation_id", "user_id", "title", "message_ids", "token_count", "data_sources",
}

func conversationValues(c domain.Conversation) []any {
	messageIDs, _ := json.Marshal(c.MessageIDs)
	dataSources, _ := json.Marshal(c.DataSources)
	return []any{c.ConversationID, c.UserID, c.Title, messageIDs, c.TokenCount, dataSources}
}

func scanConversation(row pgx.Row) (domain.Conversation, error) {
	var c domain.Conversation
	var messageIDs, dataSources []byte
	if err := row.Scan(&c.ConversationID, &c.UserID, &c.Title, &messageIDs, &c.TokenCount, &dataSources); err != nil {
		return c, err
	}
	if len(messageIDs) > 0 {
		if err := json.Unmarshal(messageIDs, &c.MessageIDs); err != nil {
			return c, fmt.Errorf("store: unmarshal conversation message_ids: %w", err)
		}
	}
	if len(dataSources) > 0 {
		if err := json.Unmarshal(dataSources, &c.DataSources); err != nil {
			return c, fmt.Errorf("store: unmarshal conversation data_sources: %w", err)
		}
	}
	return c, nil
}

func NewConversationRepository(pool *pgxpool.Pool) *Repository[domain.Conversation] {
	return NewRepository(pool, Mapper[domain.Conversation]{
		Table:      "conversations",
		PKColumn:   "conversation_id",
		Columns:    conversationColumns,
		PK:         func(c domain.Conversation) any { return c.ConversationID },
		Values:     conversationValues,
		Scan:       scanConversation,
		EntityName: "conversation",
	})
}
