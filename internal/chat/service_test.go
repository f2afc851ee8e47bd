package chat

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"kollektiv/internal/domain"
	"kollektiv/internal/llmassistant"
)

// streamEvent builds a provider stream event from its wire JSON, the same
// bytes the SDK would have decoded off the SSE stream, so AsAny dispatch
// behaves exactly as it does in production.
func streamEvent(t *testing.T, raw string) llmassistant.StreamEvent {
	t.Helper()
	var ev anthropic.MessageStreamEventUnion
	require.NoError(t, json.Unmarshal([]byte(raw), &ev))
	return llmassistant.StreamEvent{Event: ev}
}

// fakeAssistant replays one scripted stream per StreamResponse call and
// records tool executions.
type fakeAssistant struct {
	mu       sync.Mutex
	scripts  [][]llmassistant.StreamEvent
	calls    int
	toolUses []domain.ToolUseBlock
}

func (f *fakeAssistant) StreamResponse(_ context.Context, _ domain.ConversationHistory) (<-chan llmassistant.StreamEvent, error) {
	f.mu.Lock()
	if f.calls >= len(f.scripts) {
		f.mu.Unlock()
		return nil, errors.New("no scripted stream left")
	}
	script := f.scripts[f.calls]
	f.calls++
	f.mu.Unlock()

	out := make(chan llmassistant.StreamEvent)
	go func() {
		defer close(out)
		for _, ev := range script {
			out <- ev
		}
	}()
	return out, nil
}

func (f *fakeAssistant) HandleToolUse(_ context.Context, block domain.ToolUseBlock, _ string) domain.ToolResultBlock {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.toolUses = append(f.toolUses, block)
	return domain.ToolResultBlock{ToolUseID: block.ID, Content: "Document's relevance score: 0.9:\nDocument text: hi:\n--------\n"}
}

// fakeConversations records every manager call the service makes.
type fakeConversations struct {
	mu      sync.Mutex
	pending []domain.ConversationMessage
	commits int
	clears  int
}

func (f *fakeConversations) SetupNewConvHistoryTurn(_ context.Context, userMessage domain.ConversationMessage, userID uuid.UUID) (domain.ConversationHistory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = append(f.pending, userMessage)
	return domain.ConversationHistory{
		ConversationID: userMessage.ConversationID,
		UserID:         userID,
		Messages:       append([]domain.ConversationMessage(nil), f.pending...),
	}, nil
}

func (f *fakeConversations) AddPendingMessage(_ context.Context, message domain.ConversationMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = append(f.pending, message)
	return nil
}

func (f *fakeConversations) CommitPending(_ context.Context, _ uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commits++
	f.pending = nil
	return nil
}

func (f *fakeConversations) ClearPending(_ context.Context, _ uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clears++
	f.pending = nil
	return nil
}

func collect(ch <-chan FrontendChatEvent) []FrontendChatEvent {
	var out []FrontendChatEvent
	for ev := range ch {
		out = append(out, ev)
	}
	return out
}

func kinds(events []FrontendChatEvent) []EventKind {
	out := make([]EventKind, len(events))
	for i, ev := range events {
		out[i] = ev.Kind
	}
	return out
}

func TestGetResponse_ToolUseLoop(t *testing.T) {
	toolTurn := []llmassistant.StreamEvent{
		streamEvent(t, `{"type":"message_start","message":{"id":"msg_1","type":"message","role":"assistant","content":[],"model":"m","usage":{"input_tokens":1,"output_tokens":1}}}`),
		streamEvent(t, `{"type":"content_block_start","index":0,"content_block":{"type":"tool_use","id":"tu_1","name":"rag_search","input":{}}}`),
		streamEvent(t, `{"type":"content_block_delta","index":0,"delta":{"type":"input_json_delta","partial_json":"{\"rag_qu"}}`),
		streamEvent(t, `{"type":"content_block_delta","index":0,"delta":{"type":"input_json_delta","partial_json":"ery\":\"hello\"}"}}`),
		streamEvent(t, `{"type":"content_block_stop","index":0}`),
		streamEvent(t, `{"type":"message_stop"}`),
	}
	answerTurn := []llmassistant.StreamEvent{
		streamEvent(t, `{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`),
		streamEvent(t, `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Found it."}}`),
		streamEvent(t, `{"type":"content_block_stop","index":0}`),
		streamEvent(t, `{"type":"message_stop"}`),
	}

	assistant := &fakeAssistant{scripts: [][]llmassistant.StreamEvent{toolTurn, answerTurn}}
	conv := &fakeConversations{}
	svc := New(assistant, conv)

	userMessage := domain.ConversationMessage{
		MessageID:      uuid.New(),
		ConversationID: uuid.New(),
		Role:           domain.RoleUser,
		Content:        []domain.ContentBlock{domain.TextBlock{Text: "hello"}},
	}

	events := collect(svc.GetResponse(context.Background(), userMessage, uuid.New()))

	require.Len(t, assistant.toolUses, 1)
	require.Equal(t, "rag_search", assistant.toolUses[0].Name)
	require.Equal(t, "hello", assistant.toolUses[0].Input["rag_query"])

	require.Equal(t, []EventKind{
		KindMessageAccepted,
		KindContentBlockStart,
		KindContentBlockDelta,
		KindContentBlockDelta,
		KindContentBlockStop,
		KindMessageStop,
		KindAssistantMessage,
		KindToolResultMessage,
		KindMessageAccepted,
		KindContentBlockStart,
		KindContentBlockDelta,
		KindContentBlockStop,
		KindMessageStop,
		KindAssistantMessage,
	}, kinds(events))

	// The first AssistantMessage carries the finalised tool-use block with
	// its streamed-in input fully parsed.
	var assistantMsg *domain.ConversationMessage
	for _, ev := range events {
		if ev.Kind == KindAssistantMessage {
			assistantMsg = ev.Message
			break
		}
	}
	require.NotNil(t, assistantMsg)
	require.Len(t, assistantMsg.Content, 1)
	tu, ok := assistantMsg.Content[0].(domain.ToolUseBlock)
	require.True(t, ok)
	require.Equal(t, "tu_1", tu.ID)
	require.Equal(t, map[string]any{"rag_query": "hello"}, tu.Input)

	// The tool-result message is a user-role message wrapping the block.
	var toolResultMsg *domain.ConversationMessage
	for _, ev := range events {
		if ev.Kind == KindToolResultMessage {
			toolResultMsg = ev.Message
			break
		}
	}
	require.NotNil(t, toolResultMsg)
	require.Equal(t, domain.RoleUser, toolResultMsg.Role)
	tr, ok := toolResultMsg.Content[0].(domain.ToolResultBlock)
	require.True(t, ok)
	require.Equal(t, "tu_1", tr.ToolUseID)

	require.GreaterOrEqual(t, conv.commits, 1)
	require.Zero(t, conv.clears)
}

func TestGetResponse_TextOnlyTurnCommits(t *testing.T) {
	assistant := &fakeAssistant{scripts: [][]llmassistant.StreamEvent{{
		streamEvent(t, `{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`),
		streamEvent(t, `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Hi"}}`),
		streamEvent(t, `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":" there"}}`),
		streamEvent(t, `{"type":"content_block_stop","index":0}`),
		streamEvent(t, `{"type":"message_stop"}`),
	}}}
	conv := &fakeConversations{}
	svc := New(assistant, conv)

	userMessage := domain.ConversationMessage{
		MessageID:      uuid.New(),
		ConversationID: uuid.New(),
		Role:           domain.RoleUser,
		Content:        []domain.ContentBlock{domain.TextBlock{Text: "hi"}},
	}
	events := collect(svc.GetResponse(context.Background(), userMessage, uuid.New()))

	var assistantMsg *domain.ConversationMessage
	for _, ev := range events {
		if ev.Kind == KindAssistantMessage {
			assistantMsg = ev.Message
		}
	}
	require.NotNil(t, assistantMsg)
	tb, ok := assistantMsg.Content[0].(domain.TextBlock)
	require.True(t, ok)
	require.Equal(t, "Hi there", tb.Text)

	require.Equal(t, 1, conv.commits)
	require.Empty(t, assistant.toolUses)
}

func TestGetResponse_StreamErrorClearsPending(t *testing.T) {
	assistant := &fakeAssistant{scripts: [][]llmassistant.StreamEvent{{
		streamEvent(t, `{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`),
		{Err: errors.New("overloaded")},
	}}}
	conv := &fakeConversations{}
	svc := New(assistant, conv)

	userMessage := domain.ConversationMessage{
		MessageID:      uuid.New(),
		ConversationID: uuid.New(),
		Role:           domain.RoleUser,
		Content:        []domain.ContentBlock{domain.TextBlock{Text: "hi"}},
	}
	events := collect(svc.GetResponse(context.Background(), userMessage, uuid.New()))

	last := events[len(events)-1]
	require.Equal(t, KindError, last.Kind)
	require.Contains(t, last.ErrorMessage, "overloaded")
	require.Equal(t, 1, conv.clears)
	require.Zero(t, conv.commits)
}
