package chat

import (
	"context"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/google/uuid"

	"kollektiv/internal/domain"
	"kollektiv/internal/llmassistant"
	"kollektiv/internal/observability"
)

// cleanupTimeout bounds the clear_pending call issued when the consumer
// disconnects mid-turn: the original ctx is already cancelled by then, so
// cleanup runs against a short-lived background context instead (§5's
// cancellation contract, adapted since Go's ctx carries no grace period of
// its own).
const cleanupTimeout = 5 * time.Second

// Assistant is the llmassistant surface the turn loop drives (§4.13),
// narrowed to an interface so the loop can be exercised against a scripted
// stream, the same way internal/conversation narrows its durable stores.
type Assistant interface {
	StreamResponse(ctx context.Context, history domain.ConversationHistory) (<-chan llmassistant.StreamEvent, error)
	HandleToolUse(ctx context.Context, block domain.ToolUseBlock, userID string) domain.ToolResultBlock
}

// Conversations is the conversation.Manager surface the service calls at
// the well-defined points of §4.14.
type Conversations interface {
	SetupNewConvHistoryTurn(ctx context.Context, userMessage domain.ConversationMessage, userID uuid.UUID) (domain.ConversationHistory, error)
	AddPendingMessage(ctx context.Context, message domain.ConversationMessage) error
	CommitPending(ctx context.Context, conversationID uuid.UUID) error
	ClearPending(ctx context.Context, conversationID uuid.UUID) error
}

// Service orchestrates one chat turn end to end (C14), translating the LLM
// Assistant's provider-shaped stream into FrontendChatEvents and driving
// the tool-use recursion, grounded on original_source's ChatService.
type Service struct {
	assistant Assistant
	conv      Conversations
}

func New(assistant Assistant, conv Conversations) *Service {
	return &Service{assistant: assistant, conv: conv}
}

// GetResponse implements get_response(user_message) → async sequence of
// FrontendChatEvent (§4.14). The returned channel is closed once the turn
// (including any recursive tool-use follow-up turns) completes.
func (s *Service) GetResponse(ctx context.Context, userMessage domain.ConversationMessage, userID uuid.UUID) <-chan FrontendChatEvent {
	out := make(chan FrontendChatEvent)
	go func() {
		defer close(out)
		s.getResponse(ctx, userMessage, userID, out)
	}()
	return out
}

func (s *Service) getResponse(ctx context.Context, userMessage domain.ConversationMessage, userID uuid.UUID, out chan<- FrontendChatEvent) {
	log := observability.LoggerWithTrace(ctx)

	history, err := s.conv.SetupNewConvHistoryTurn(ctx, userMessage, userID)
	if err != nil {
		log.Error().Err(err).Msg("chat: setup conversation history failed")
		sendOrCancel(ctx, out, errorEvent(err.Error()))
		return
	}

	if !sendOrCancel(ctx, out, messageAcceptedEvent(history.ConversationID, "New conversation")) {
		s.cleanupCancelled(history.ConversationID)
		return
	}

	if err := s.processStream(ctx, history, userID, out); err != nil {
		return
	}

	if err := s.conv.CommitPending(ctx, history.ConversationID); err != nil {
		log.Error().Err(err).Msg("chat: commit_pending failed")
		sendOrCancel(ctx, out, errorEvent(err.Error()))
	}
}

// processStream drives one provider stream to completion, translating each
// StreamEvent into zero or more FrontendChatEvents, and recurses through
// the tool-use loop when the assistant requests a tool call (§4.14 steps
// 2-4). It returns a non-nil error only once pending messages have been
// cleared: either the turn emitted its terminal Error event, or a send
// failed because the consumer went away (no Error event is sent then). The
// caller must not attempt to commit in that case.
func (s *Service) processStream(ctx context.Context, history domain.ConversationHistory, userID uuid.UUID, out chan<- FrontendChatEvent) error {
	log := observability.LoggerWithTrace(ctx)

	events, err := s.assistant.StreamResponse(ctx, history)
	if err != nil {
		log.Error().Err(err).Msg("chat: stream_response failed to start")
		sendOrCancel(ctx, out, errorEvent(err.Error()))
		_ = s.conv.ClearPending(ctx, history.ConversationID)
		return err
	}

	state := newStreamState()

	for ev := range events {
		if ev.Err != nil {
			log.Warn().Err(ev.Err).Msg("chat: llm stream error")
			sendOrCancel(ctx, out, errorEvent(ev.Err.Error()))
			_ = s.conv.ClearPending(ctx, history.ConversationID)
			return ev.Err
		}

		switch typed := ev.Event.AsAny().(type) {
		case anthropic.MessageStartEvent:
			// not used (§4.14)

		case anthropic.ContentBlockStartEvent:
			block, convErr := fromAnthropicBlock(typed.ContentBlock)
			if convErr != nil {
				log.Error().Err(convErr).Msg("chat: unrecognised content block")
				sendOrCancel(ctx, out, errorEvent(convErr.Error()))
				_ = s.conv.ClearPending(ctx, history.ConversationID)
				return convErr
			}
			state.handleBlockStart(block)
			if !sendOrCancel(ctx, out, contentBlockStartEvent(typed.Index, block)) {
				s.cleanupCancelled(history.ConversationID)
				return ctx.Err()
			}

		case anthropic.ContentBlockDeltaEvent:
			switch delta := typed.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				state.handleTextDelta(delta.Text)
				if !sendOrCancel(ctx, out, contentBlockTextDeltaEvent(typed.Index, delta.Text)) {
					s.cleanupCancelled(history.ConversationID)
					return ctx.Err()
				}
			case anthropic.InputJSONDelta:
				state.handleToolInputDelta(delta.PartialJSON)
				if !sendOrCancel(ctx, out, contentBlockToolInputDeltaEvent(typed.Index, delta.PartialJSON)) {
					s.cleanupCancelled(history.ConversationID)
					return ctx.Err()
				}
			}

		case anthropic.ContentBlockStopEvent:
			state.handleBlockStop(ctx)
			if !sendOrCancel(ctx, out, contentBlockStopEvent(typed.Index)) {
				s.cleanupCancelled(history.ConversationID)
				return ctx.Err()
			}

		case anthropic.MessageDeltaEvent:
			// not used beyond usage accounting, which isn't in scope (§4.14)

		case anthropic.MessageStopEvent:
			if !sendOrCancel(ctx, out, messageStopEvent()) {
				s.cleanupCancelled(history.ConversationID)
				return ctx.Err()
			}
			assistantMessage := domain.ConversationMessage{
				MessageID:      uuid.New(),
				ConversationID: history.ConversationID,
				Role:           domain.RoleAssistant,
				Content:        state.currentBlocks,
			}
			if err := s.conv.AddPendingMessage(ctx, assistantMessage); err != nil {
				log.Error().Err(err).Msg("chat: failed to stage assistant message")
			}
			if !sendOrCancel(ctx, out, assistantMessageEvent(assistantMessage)) {
				s.cleanupCancelled(history.ConversationID)
				return ctx.Err()
			}
		}
	}

	if !state.hasToolUse {
		return nil
	}

	toolUse, ok := state.toolUseBlock()
	if !ok {
		return nil
	}

	result := s.assistant.HandleToolUse(ctx, toolUse, userID.String())
	toolResultMessage := domain.ConversationMessage{
		MessageID:      uuid.New(),
		ConversationID: history.ConversationID,
		Role:           domain.RoleUser,
		Content:        []domain.ContentBlock{result},
	}
	if !sendOrCancel(ctx, out, toolResultMessageEvent(toolResultMessage)) {
		s.cleanupCancelled(history.ConversationID)
		return ctx.Err()
	}

	s.getResponse(ctx, toolResultMessage, userID, out)
	return nil
}

// cleanupCancelled clears pending messages using a short-lived background
// context, since the turn's own ctx is already cancelled by the time a send
// fails (§5).
func (s *Service) cleanupCancelled(conversationID uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()
	_ = s.conv.ClearPending(ctx, conversationID)
}

// sendOrCancel emits ev unless the consumer's context is done first, in
// which case it returns false without blocking forever on an abandoned
// stream (§5's disconnect-cancellation contract).
func sendOrCancel(ctx context.Context, out chan<- FrontendChatEvent, ev FrontendChatEvent) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
