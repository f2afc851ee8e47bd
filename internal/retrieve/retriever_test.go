package retrieve

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"kollektiv/internal/config"
)

type stubIndex struct {
	hits []IndexHit
	err  error
}

func (s stubIndex) Query(ctx context.Context, queries []string, topK int) ([]IndexHit, error) {
	return s.hits, s.err
}

func newRerankServer(t *testing.T, results []RerankResult) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rerankRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(rerankResponse{Results: results}))
	}))
}

func TestRetrieve_FiltersBelowThreshold(t *testing.T) {
	idx := stubIndex{hits: []IndexHit{
		{ID: "a", Content: "doc a"},
		{ID: "b", Content: "doc b"},
		{ID: "c", Content: "doc c"},
	}}
	srv := newRerankServer(t, []RerankResult{
		{Index: 0, RelevanceScore: 0.05}, // below threshold, dropped
		{Index: 1, RelevanceScore: 0.8},
		{Index: 2, RelevanceScore: 0.95},
	})
	defer srv.Close()

	r := New(idx, config.RerankerConfig{BaseURL: srv.URL}, 10)
	out, err := r.Retrieve(context.Background(), "query", []string{"query"}, 0)
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, "doc b", out[1].Text)
	require.Equal(t, "doc c", out[2].Text)
	require.InDelta(t, 0.8, out[1].RelevanceScore, 1e-9)
}

func TestRetrieve_TopNLimitsResults(t *testing.T) {
	idx := stubIndex{hits: []IndexHit{
		{ID: "a", Content: "doc a"},
		{ID: "b", Content: "doc b"},
		{ID: "c", Content: "doc c"},
	}}
	srv := newRerankServer(t, []RerankResult{
		{Index: 0, RelevanceScore: 0.5},
		{Index: 1, RelevanceScore: 0.6},
		{Index: 2, RelevanceScore: 0.9},
	})
	defer srv.Close()

	r := New(idx, config.RerankerConfig{BaseURL: srv.URL}, 10)
	out, err := r.Retrieve(context.Background(), "query", []string{"query"}, 1)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, "doc c", out[2].Text)
}

func TestRetrieve_NoCandidatesSkipsRerank(t *testing.T) {
	idx := stubIndex{hits: nil}
	r := New(idx, config.RerankerConfig{BaseURL: "http://unreachable.invalid"}, 10)
	out, err := r.Retrieve(context.Background(), "query", []string{"query"}, 0)
	require.NoError(t, err)
	require.Empty(t, out)
}
