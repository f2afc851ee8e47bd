package observability

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRedactJSON_NestedAndArrays(t *testing.T) {
	in := map[string]any{
		"api_key": "fc-12345",
		"scrapeOptions": map[string]any{
			"formats": []any{"markdown"},
		},
		"auth": map[string]any{
			"service_key": "srv-abc",
		},
		"pages": []any{
			map[string]any{"token": "tok", "url": "https://docs.example.com"},
		},
		"url": "https://docs.example.com",
	}
	b, err := json.Marshal(in)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(RedactJSON(b), &out))

	require.Equal(t, "[REDACTED]", out["api_key"])
	require.Equal(t, "[REDACTED]", out["auth"])
	require.Equal(t, "https://docs.example.com", out["url"])

	pages := out["pages"].([]any)
	first := pages[0].(map[string]any)
	require.Equal(t, "[REDACTED]", first["token"])
	require.Equal(t, "https://docs.example.com", first["url"])
}

func TestRedactJSON_PassesThroughMalformedInput(t *testing.T) {
	require.Nil(t, RedactJSON(nil))
	require.Equal(t, "not json at all", string(RedactJSON(json.RawMessage("not json at all"))))
}

func TestRedactBody(t *testing.T) {
	got := RedactBody(`{"error":"rate limited","authorization":"Bearer sk-x"}`)
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(got), &out))
	require.Equal(t, "[REDACTED]", out["authorization"])
	require.Equal(t, "rate limited", out["error"])
}
