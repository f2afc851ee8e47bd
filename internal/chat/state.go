package chat

import (
	"context"
	"encoding/json"
	"strings"

	"kollektiv/internal/domain"
	"kollektiv/internal/observability"
)

// streamState mirrors original_source's StreamState: the accumulator for
// one in-flight turn, local to the goroutine driving it (§5: "per-turn
// state lives in a StreamState object local to the task").
type streamState struct {
	currentBlock    domain.ContentBlock
	currentBlocks   []domain.ContentBlock
	hasToolUse      bool
	toolInputBuffer strings.Builder
}

func newStreamState() *streamState {
	return &streamState{}
}

// handleBlockStart records the newly started block as current, resetting
// the tool-input accumulator for a ToolUseBlock (§4.14).
func (s *streamState) handleBlockStart(block domain.ContentBlock) {
	s.currentBlock = block
	if _, ok := block.(domain.ToolUseBlock); ok {
		s.hasToolUse = true
		s.toolInputBuffer.Reset()
	}
}

// handleTextDelta appends to the current TextBlock's text.
func (s *streamState) handleTextDelta(text string) {
	if tb, ok := s.currentBlock.(domain.TextBlock); ok {
		tb.Text += text
		s.currentBlock = tb
	}
}

// handleToolInputDelta appends partial JSON to the tool-input buffer.
func (s *streamState) handleToolInputDelta(partialJSON string) {
	s.toolInputBuffer.WriteString(partialJSON)
}

// handleBlockStop finalises the current block: a ToolUseBlock's input is
// parsed from the accumulated JSON buffer, falling back to an empty object
// on parse failure (logged, not fatal) per §4.14.
func (s *streamState) handleBlockStop(ctx context.Context) {
	if s.currentBlock == nil {
		return
	}
	if tb, ok := s.currentBlock.(domain.ToolUseBlock); ok {
		var input map[string]any
		if err := json.Unmarshal([]byte(s.toolInputBuffer.String()), &input); err != nil {
			observability.LoggerWithTrace(ctx).Error().Err(err).
				Str("tool", tb.Name).Msg("chat: failed to parse tool input, defaulting to empty object")
			input = map[string]any{}
		}
		tb.Input = input
		s.currentBlock = tb
		s.toolInputBuffer.Reset()
	}
	s.currentBlocks = append(s.currentBlocks, s.currentBlock)
	s.currentBlock = nil
}

// toolUseBlock returns the first ToolUseBlock among the finalised blocks,
// used once the stream ends to drive the tool-execution loop.
func (s *streamState) toolUseBlock() (domain.ToolUseBlock, bool) {
	for _, b := range s.currentBlocks {
		if tb, ok := b.(domain.ToolUseBlock); ok {
			return tb, true
		}
	}
	return domain.ToolUseBlock{}, false
}
