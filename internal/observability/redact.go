package observability

import (
	"encoding/json"
	"strings"
)

// sensitiveKeySubstrings matches the credential fields that flow through
// Kollektiv's outbound payloads and inbound webhooks: provider API keys
// (Anthropic, Firecrawl, embedding, reranker), the durable-store service
// key, and generic auth material.
var sensitiveKeySubstrings = []string{
	"api_key",
	"apikey",
	"authorization",
	"auth",
	"token",
	"password",
	"secret",
	"bearer",
	"service_key",
	"credential",
}

// RedactJSON returns raw with every sensitive value replaced by a
// placeholder, for error paths that log request or response bodies.
// Malformed input is returned untouched rather than dropped: a redacted
// log line is preferable, but an error body must never be lost to a
// redaction failure.
func RedactJSON(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return raw
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return raw
	}
	b, err := json.Marshal(redactValue(v))
	if err != nil {
		return raw
	}
	return b
}

// RedactBody is RedactJSON for string-typed HTTP bodies, used by the
// crawler adapter when folding an upstream error body into an error value.
func RedactBody(body string) string {
	return string(RedactJSON(json.RawMessage(body)))
}

func redactValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		for k, vv := range val {
			if isSensitiveKey(k) {
				val[k] = "[REDACTED]"
			} else {
				val[k] = redactValue(vv)
			}
		}
		return val
	case []any:
		for i := range val {
			val[i] = redactValue(val[i])
		}
		return val
	default:
		return v
	}
}

func isSensitiveKey(k string) bool {
	low := strings.ToLower(k)
	for _, s := range sensitiveKeySubstrings {
		if strings.Contains(low, s) {
			return true
		}
	}
	return false
}
