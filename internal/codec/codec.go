// Package codec is the bidirectional transport codec for task payloads
// (C1): tagged variants for domain records, UUIDs, and timestamps, moving
// values through K/V stores and task queues without loss.
//
// Wire shape for a tagged record: {"__type": "<tag>", "value": {...}}.
// Decode reconstitutes records by tag lookup; an unknown tag decodes to its
// raw mapping with a logged warning rather than failing, so forward
// compatibility across deploys is preserved — the same behavior the
// original project's arq serializer relied on.
package codec

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
)

const typeField = "__type"

type envelope struct {
	Type  string          `json:"__type"`
	Value json.RawMessage `json:"value"`
}

// Decoder reconstructs a tagged value from its raw "value" payload.
type Decoder func(value json.RawMessage) (any, error)

var registry = map[string]Decoder{}

// Register associates a tag with a decode function. Called from package
// init() for every in-scope domain record type; re-registering a tag
// overwrites the prior entry (useful in tests).
func Register(tag string, dec Decoder) {
	registry[tag] = dec
}

// EncodeTagged wraps v in the tagged envelope. Fails only when v is truly
// unserializable (e.g. it contains a function or channel value) — JSON
// marshaling surfaces that as an error here.
func EncodeTagged(tag string, v any) ([]byte, error) {
	value, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("codec: encode %s: %w", tag, err)
	}
	return json.Marshal(envelope{Type: tag, Value: value})
}

// DecodeError is returned for malformed bytes that are not even a valid
// envelope — distinct from the "unknown tag" case, which succeeds with a
// map[string]any and a logged warning.
type DecodeError struct {
	Reason string
}

func (e *DecodeError) Error() string { return "codec: decode: " + e.Reason }

// Decode reconstitutes a tagged value. Unknown tags decode into
// map[string]any and are logged, not failed — the documented
// forward-compatible behavior.
func Decode(data []byte) (any, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, &DecodeError{Reason: err.Error()}
	}
	if env.Type == "" {
		return nil, &DecodeError{Reason: "missing " + typeField}
	}
	dec, ok := registry[env.Type]
	if !ok {
		var raw map[string]any
		if err := json.Unmarshal(env.Value, &raw); err != nil {
			return nil, &DecodeError{Reason: fmt.Sprintf("unknown tag %q and value is not a mapping: %v", env.Type, err)}
		}
		log.Warn().Str("tag", env.Type).Msg("codec: decoding unknown tag to raw mapping")
		return raw, nil
	}
	return dec(env.Value)
}

// Tag returns the wire discriminator without decoding the value, useful
// for dispatch in consumers that only care about routing.
func Tag(data []byte) (string, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", &DecodeError{Reason: err.Error()}
	}
	return env.Type, nil
}
