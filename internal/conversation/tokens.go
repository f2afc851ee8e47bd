package conversation

import (
	"encoding/json"

	"kollektiv/internal/domain"
)

// estimateMessagesTokens sums the per-block token estimate across every
// message, mirroring original_source's ConversationManager._estimate_tokens.
func (m *Manager) estimateMessagesTokens(messages []domain.ConversationMessage) int {
	total := 0
	for _, msg := range messages {
		for _, block := range msg.Content {
			total += m.estimateBlockTokens(block)
		}
	}
	return total
}

// estimateBlockTokens implements §4.12's per-block rule: TextBlock counts
// its text; ToolUseBlock counts its name plus the canonicalised JSON of its
// input; ToolResultBlock counts the canonicalised JSON of its content when
// present.
func (m *Manager) estimateBlockTokens(block domain.ContentBlock) int {
	switch b := block.(type) {
	case domain.TextBlock:
		return m.tokenizer.Count(b.Text)
	case domain.ToolUseBlock:
		return m.tokenizer.Count(b.Name) + m.tokenizer.Count(canonicalJSON(b.Input))
	case domain.ToolResultBlock:
		if b.Content == "" {
			return 0
		}
		raw, err := json.Marshal(b.Content)
		if err != nil {
			return 0
		}
		return m.tokenizer.Count(string(raw))
	default:
		return 0
	}
}
