package store

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestColumnExpr(t *testing.T) {
	require.Equal(t, "details->>'firecrawl_id'", columnExpr("details->>firecrawl_id"))
	require.Equal(t, "source_id", columnExpr("source_id"))
}

func TestBuildWhere_Empty(t *testing.T) {
	clause, args := buildWhere(nil)
	require.Empty(t, clause)
	require.Empty(t, args)
}

func TestBuildWhere_EqualityAndJSONPath(t *testing.T) {
	clause, args := buildWhere(map[string]any{
		"source_id":             "abc",
		"details->>firecrawl_id": "fc-1",
	})
	require.Equal(t, "details->>'firecrawl_id' = $1 AND source_id = $2", clause)
	require.Equal(t, []any{"fc-1", "abc"}, args)
}

func TestBuildWhere_SliceBecomesAny(t *testing.T) {
	ids := []any{"a", "b"}
	clause, args := buildWhere(map[string]any{"chunk_id": ids})
	require.Equal(t, "chunk_id = ANY($1)", clause)
	require.Equal(t, []any{ids}, args)
}
