package chat

import (
	"fmt"

	anthropic "github.com/anthropics/anthropic-sdk-go"

	"kollektiv/internal/domain"
)

// fromAnthropicBlock converts the content block carried by a
// ContentBlockStartEvent into a domain.ContentBlock, grounded on the
// teacher's ev.ContentBlock.AsAny() type switch in
// internal/llm/anthropic/client.go. A ToolUseBlock's Input always starts
// empty: the model streams it in as InputJSONDelta fragments, parsed at
// ContentBlockStop (§4.14).
func fromAnthropicBlock(block anthropic.ContentBlockStartEventContentBlockUnion) (domain.ContentBlock, error) {
	switch v := block.AsAny().(type) {
	case anthropic.TextBlock:
		return domain.TextBlock{Text: v.Text}, nil
	case anthropic.ToolUseBlock:
		return domain.ToolUseBlock{ID: v.ID, Name: v.Name, Input: map[string]any{}}, nil
	default:
		return nil, fmt.Errorf("chat: unsupported content block type %T", v)
	}
}
