package llmassistant

import (
	"fmt"

	anthropic "github.com/anthropics/anthropic-sdk-go"

	"kollektiv/internal/domain"
)

// toAnthropicMessages adapts a ConversationHistory's messages into the
// Anthropic SDK's wire message shape, following the same per-block mapping
// the teacher's adaptMessages uses for user/assistant content blocks.
func toAnthropicMessages(messages []domain.ConversationMessage) ([]anthropic.MessageParam, error) {
	out := make([]anthropic.MessageParam, 0, len(messages))
	for _, m := range messages {
		blocks, err := toAnthropicBlocks(m.Content)
		if err != nil {
			return nil, err
		}
		if len(blocks) == 0 {
			continue
		}
		switch m.Role {
		case domain.RoleUser:
			out = append(out, anthropic.NewUserMessage(blocks...))
		case domain.RoleAssistant:
			out = append(out, anthropic.NewAssistantMessage(blocks...))
		default:
			return nil, fmt.Errorf("llmassistant: unsupported role %q", m.Role)
		}
	}
	return out, nil
}

func toAnthropicBlocks(blocks []domain.ContentBlock) ([]anthropic.ContentBlockParamUnion, error) {
	out := make([]anthropic.ContentBlockParamUnion, 0, len(blocks))
	for _, b := range blocks {
		switch v := b.(type) {
		case domain.TextBlock:
			out = append(out, anthropic.NewTextBlock(v.Text))
		case domain.ToolUseBlock:
			out = append(out, anthropic.NewToolUseBlock(v.ID, v.Input, v.Name))
		case domain.ToolResultBlock:
			out = append(out, anthropic.NewToolResultBlock(v.ToolUseID, v.Content, v.IsError))
		default:
			return nil, fmt.Errorf("llmassistant: unsupported content block %T", b)
		}
	}
	return out, nil
}
