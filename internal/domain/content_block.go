package domain

import (
	"encoding/json"
	"fmt"
)

// ContentBlock is the closed, discriminated union of message content
// described in §3 and §9 ("Dynamic block unions → tagged variants"). The
// wire discriminator is the "type" field; decoding dispatches on it.
type ContentBlock interface {
	blockType() string
}

type TextBlock struct {
	Text string `json:"text"`
}

func (TextBlock) blockType() string { return "text" }

func (b TextBlock) MarshalJSON() ([]byte, error) {
	type alias TextBlock
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{Type: b.blockType(), alias: alias(b)})
}

type ToolUseBlock struct {
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Input map[string]any `json:"input"`
}

func (ToolUseBlock) blockType() string { return "tool_use" }

func (b ToolUseBlock) MarshalJSON() ([]byte, error) {
	type alias ToolUseBlock
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{Type: b.blockType(), alias: alias(b)})
}

type ToolResultBlock struct {
	ToolUseID string `json:"tool_use_id"`
	Content   string `json:"content"`
	IsError   bool   `json:"is_error"`
}

func (ToolResultBlock) blockType() string { return "tool_result" }

func (b ToolResultBlock) MarshalJSON() ([]byte, error) {
	type alias ToolResultBlock
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{Type: b.blockType(), alias: alias(b)})
}

// UnmarshalContentBlock decodes one tagged content block by peeking its
// "type" discriminator. Unknown types are rejected: the content-block union
// is closed, unlike C1's domain-record serializer which tolerates unknown
// tags.
func UnmarshalContentBlock(raw json.RawMessage) (ContentBlock, error) {
	var disc struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &disc); err != nil {
		return nil, fmt.Errorf("content block: %w", err)
	}
	switch disc.Type {
	case "text":
		var b TextBlock
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, err
		}
		return b, nil
	case "tool_use":
		var b ToolUseBlock
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, err
		}
		return b, nil
	case "tool_result":
		var b ToolResultBlock
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, err
		}
		return b, nil
	default:
		return nil, fmt.Errorf("content block: unknown type %q", disc.Type)
	}
}

// UnmarshalJSON decodes a ConversationMessage, dispatching each content
// entry through UnmarshalContentBlock since Go cannot unmarshal directly
// into an interface-typed slice.
func (m *ConversationMessage) UnmarshalJSON(data []byte) error {
	var shadow struct {
		MessageID      json.RawMessage   `json:"message_id"`
		ConversationID json.RawMessage   `json:"conversation_id"`
		Role           Role              `json:"role"`
		Content        []json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(data, &shadow); err != nil {
		return err
	}
	if err := json.Unmarshal(shadow.MessageID, &m.MessageID); err != nil {
		return err
	}
	if err := json.Unmarshal(shadow.ConversationID, &m.ConversationID); err != nil {
		return err
	}
	m.Role = shadow.Role
	m.Content = make([]ContentBlock, 0, len(shadow.Content))
	for _, raw := range shadow.Content {
		b, err := UnmarshalContentBlock(raw)
		if err != nil {
			return err
		}
		m.Content = append(m.Content, b)
	}
	return nil
}
