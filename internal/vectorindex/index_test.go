package vectorindex

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDedupByMinDistance_KeepsSmallestDistance(t *testing.T) {
	hits := []Result{
		{ID: "a", Score: 0.9, Content: "first"},
		{ID: "a", Score: 0.95, Content: "second"},
		{ID: "b", Score: 0.5, Content: "third"},
	}
	out := dedupByMinDistance(hits)
	require.Len(t, out, 2)

	byID := make(map[string]QueryResult, len(out))
	for _, r := range out {
		byID[r.ID] = r
	}
	require.InDelta(t, 0.05, byID["a"].Distance, 1e-9)
	require.Equal(t, "second", byID["a"].Content)
	require.InDelta(t, 0.5, byID["b"].Distance, 1e-9)
}

func TestDedupByMinDistance_SortsAscendingByDistance(t *testing.T) {
	hits := []Result{
		{ID: "far", Score: 0.1},
		{ID: "near", Score: 0.9},
	}
	out := dedupByMinDistance(hits)
	require.Len(t, out, 2)
	require.Equal(t, "near", out[0].ID)
	require.Equal(t, "far", out[1].ID)
}

func TestDedupByMinDistance_EmptyInput(t *testing.T) {
	require.Empty(t, dedupByMinDistance(nil))
}
