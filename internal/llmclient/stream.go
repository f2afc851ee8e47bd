package llmclient

import (
	"context"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"

	"kollektiv/internal/observability"
)

// StreamEvent pairs one raw Anthropic streaming event with any terminal
// error observed while reading the stream.
type StreamEvent struct {
	Event anthropic.MessageStreamEventUnion
	Err   error
}

// StreamChat opens an Anthropic streaming message call and forwards every
// event onto out unmodified, closing out when the stream ends. Grounded on
// the teacher's Client.ChatStream event-reading loop, stripped of the
// accumulation/tool-buffering it does for its own multi-provider Message
// abstraction: this package's caller (llmassistant) is itself the "dumb
// translator" the spec calls for, so raw events pass straight through.
func (c *Client) StreamChat(ctx context.Context, system string, messages []anthropic.MessageParam, tools []ToolSpec, out chan<- StreamEvent) {
	defer close(out)

	toolDefs, err := c.buildTools(tools)
	if err != nil {
		out <- StreamEvent{Err: err}
		return
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages:  messages,
		Tools:     toolDefs,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	log := observability.LoggerWithTrace(ctx)
	start := time.Now()

	stream := c.sdk.Messages.NewStreaming(ctx, params)
	defer func() { _ = stream.Close() }()

	for stream.Next() {
		select {
		case <-ctx.Done():
			out <- StreamEvent{Err: ctx.Err()}
			return
		case out <- StreamEvent{Event: stream.Current()}:
		}
	}

	if err := stream.Err(); err != nil {
		log.Error().Err(err).Dur("duration", time.Since(start)).Msg("llmclient: stream error")
		out <- StreamEvent{Err: err}
		return
	}
	log.Debug().Dur("duration", time.Since(start)).Msg("llmclient: stream ok")
}
