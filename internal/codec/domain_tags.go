package codec

import (
	"encoding/json"

	"kollektiv/internal/domain"
)

// Tags for every in-scope domain record type (§4.1). Fully qualified to
// avoid collisions with unrelated task payloads sharing the same queue.
const (
	TagSource                 = "kollektiv.domain.Source"
	TagJob                    = "kollektiv.domain.Job"
	TagDocument               = "kollektiv.domain.Document"
	TagChunk                  = "kollektiv.domain.Chunk"
	TagSourceSummary          = "kollektiv.domain.SourceSummary"
	TagConversation           = "kollektiv.domain.Conversation"
	TagConversationMessage    = "kollektiv.domain.ConversationMessage"
	TagContentProcessingEvent = "kollektiv.domain.ContentProcessingEvent"
)

func init() {
	Register(TagSource, decodeInto[domain.Source])
	Register(TagJob, decodeInto[domain.Job])
	Register(TagDocument, decodeInto[domain.Document])
	Register(TagChunk, decodeInto[domain.Chunk])
	Register(TagSourceSummary, decodeInto[domain.SourceSummary])
	Register(TagConversation, decodeInto[domain.Conversation])
	Register(TagConversationMessage, decodeInto[domain.ConversationMessage])
	Register(TagContentProcessingEvent, decodeInto[domain.ContentProcessingEvent])
}

func decodeInto[T any](value json.RawMessage) (any, error) {
	var v T
	if err := json.Unmarshal(value, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// EncodeSource, EncodeJob, ... are thin typed wrappers so call sites never
// need to spell the tag string.
func EncodeSource(v domain.Source) ([]byte, error) { return EncodeTagged(TagSource, v) }
func EncodeJob(v domain.Job) ([]byte, error)       { return EncodeTagged(TagJob, v) }
func EncodeDocument(v domain.Document) ([]byte, error) {
	return EncodeTagged(TagDocument, v)
}
func EncodeChunk(v domain.Chunk) ([]byte, error) { return EncodeTagged(TagChunk, v) }
func EncodeSourceSummary(v domain.SourceSummary) ([]byte, error) {
	return EncodeTagged(TagSourceSummary, v)
}
func EncodeConversation(v domain.Conversation) ([]byte, error) {
	return EncodeTagged(TagConversation, v)
}
func EncodeConversationMessage(v domain.ConversationMessage) ([]byte, error) {
	return EncodeTagged(TagConversationMessage, v)
}
func EncodeContentProcessingEvent(v domain.ContentProcessingEvent) ([]byte, error) {
	return EncodeTagged(TagContentProcessingEvent, v)
}
