package llmassistant

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"kollektiv/internal/domain"
	"kollektiv/internal/retrieve"
)

func TestPadTruncate_Truncates(t *testing.T) {
	out := padTruncate([]string{"a", "b", "c", "d"}, "orig", 2)
	require.Equal(t, []string{"a", "b"}, out)
}

func TestPadTruncate_Pads(t *testing.T) {
	out := padTruncate([]string{"a"}, "orig", 3)
	require.Equal(t, []string{"a", "orig", "orig"}, out)
}

func TestPadTruncate_ExactCount(t *testing.T) {
	out := padTruncate([]string{"a", "b"}, "orig", 2)
	require.Equal(t, []string{"a", "b"}, out)
}

func TestFormatRAGResults_Empty(t *testing.T) {
	require.Equal(t, "No relevant documents were found.", formatRAGResults(map[int]retrieve.Passage{}))
}

func TestFormatRAGResults_FormatsEachPassage(t *testing.T) {
	out := formatRAGResults(map[int]retrieve.Passage{
		0: {Text: "hello world", RelevanceScore: 0.42, Index: 0},
	})
	require.Contains(t, out, "Document's relevance score: 0.42")
	require.Contains(t, out, "Document text: hello world")
	require.Contains(t, out, "--------")
}

func TestHandleToolUse_UnknownTool(t *testing.T) {
	a := New(nil, nil, nil)
	result := a.HandleToolUse(context.Background(), domain.ToolUseBlock{ID: "1", Name: "other_tool"}, "user1")
	require.True(t, result.IsError)
	require.Equal(t, "1", result.ToolUseID)
}

func TestHandleToolUse_MissingRagQuery(t *testing.T) {
	a := New(nil, nil, nil)
	result := a.HandleToolUse(context.Background(), domain.ToolUseBlock{ID: "2", Name: ragSearchToolName, Input: map[string]any{}}, "user1")
	require.True(t, result.IsError)
	require.Equal(t, "2", result.ToolUseID)
}
