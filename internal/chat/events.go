// Package chat implements the Chat Service (C14): one streaming turn end
// to end, translating the LLM Assistant's provider-shaped StreamEvents into
// the flat FrontendChatEvent transport union, driving the tool-use loop,
// and invoking the Conversation Manager at the well-defined points from
// §4.14. Grounded on original_source's src/services/chat_service.py
// (ChatService/StreamState) and the teacher's goroutine+channel streaming
// idiom in internal/llm/anthropic/client.go.
package chat

import (
	"github.com/google/uuid"

	"kollektiv/internal/domain"
)

// EventKind discriminates FrontendChatEvent, matching §4.14's "single flat
// variant type for transport simplicity".
type EventKind string

const (
	KindMessageAccepted   EventKind = "message_accepted"
	KindContentBlockStart EventKind = "content_block_start"
	KindContentBlockDelta EventKind = "content_block_delta"
	KindContentBlockStop  EventKind = "content_block_stop"
	KindMessageStop       EventKind = "message_stop"
	KindToolResultMessage EventKind = "tool_result_message"
	KindAssistantMessage  EventKind = "assistant_message"
	KindError             EventKind = "error"
)

// FrontendChatEvent is the wire event the chat SSE endpoint forwards to the
// client. Only the fields relevant to Kind are populated; the rest keep
// their zero value, which json.Marshal omits via omitempty (omitzero for the
// fixed-size ConversationID, which omitempty would never omit).
type FrontendChatEvent struct {
	Kind EventKind `json:"type"`

	ConversationID uuid.UUID `json:"conversation_id,omitzero"`
	Title          string    `json:"title,omitempty"`

	Index        *int64              `json:"index,omitempty"`
	ContentBlock domain.ContentBlock `json:"content_block,omitempty"`

	TextDelta          *string `json:"text_delta,omitempty"`
	ToolInputJSONDelta *string `json:"tool_input_json_delta,omitempty"`

	Message *domain.ConversationMessage `json:"message,omitempty"`

	ErrorMessage string `json:"error_message,omitempty"`
}

func messageAcceptedEvent(conversationID uuid.UUID, title string) FrontendChatEvent {
	return FrontendChatEvent{Kind: KindMessageAccepted, ConversationID: conversationID, Title: title}
}

func errorEvent(message string) FrontendChatEvent {
	return FrontendChatEvent{Kind: KindError, ErrorMessage: message}
}

func contentBlockStartEvent(index int64, block domain.ContentBlock) FrontendChatEvent {
	return FrontendChatEvent{Kind: KindContentBlockStart, Index: &index, ContentBlock: block}
}

func contentBlockTextDeltaEvent(index int64, text string) FrontendChatEvent {
	return FrontendChatEvent{Kind: KindContentBlockDelta, Index: &index, TextDelta: &text}
}

func contentBlockToolInputDeltaEvent(index int64, partialJSON string) FrontendChatEvent {
	return FrontendChatEvent{Kind: KindContentBlockDelta, Index: &index, ToolInputJSONDelta: &partialJSON}
}

func contentBlockStopEvent(index int64) FrontendChatEvent {
	return FrontendChatEvent{Kind: KindContentBlockStop, Index: &index}
}

func messageStopEvent() FrontendChatEvent {
	return FrontendChatEvent{Kind: KindMessageStop}
}

func toolResultMessageEvent(message domain.ConversationMessage) FrontendChatEvent {
	return FrontendChatEvent{Kind: KindToolResultMessage, Message: &message}
}

func assistantMessageEvent(message domain.ConversationMessage) FrontendChatEvent {
	return FrontendChatEvent{Kind: KindAssistantMessage, Message: &message}
}
