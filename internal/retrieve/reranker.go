// Package retrieve implements the multi-query vector search + rerank +
// threshold-filter pipeline of spec.md §4.9, grounded on the teacher's
// root-level rerank.go (the RerankRequest/RerankResult/RerankResponse wire
// shape and index-to-score mapping) generalized from the teacher's
// llama.cpp reranker endpoint to the spec's configured reranker.
package retrieve

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"kollektiv/internal/config"
	"kollektiv/internal/observability"
)

type rerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	TopN      int      `json:"top_n"`
	Documents []string `json:"documents"`
}

// RerankResult is one reranked candidate keyed back to its position in the
// request's Documents slice (§4.9 step 3).
type RerankResult struct {
	Index          int     `json:"index"`
	RelevanceScore float64 `json:"relevance_score"`
}

type rerankResponse struct {
	Results []RerankResult `json:"results"`
}

// Rerank calls the configured reranker endpoint against the original
// rag_query and the candidate document texts, returning one result per
// candidate in the order the reranker assigns them.
func Rerank(ctx context.Context, cfg config.RerankerConfig, query string, documents []string) ([]RerankResult, error) {
	if len(documents) == 0 {
		return nil, nil
	}
	body, err := json.Marshal(rerankRequest{
		Model:     cfg.Model,
		Query:     query,
		TopN:      len(documents),
		Documents: documents,
	})
	if err != nil {
		return nil, fmt.Errorf("retrieve: marshal rerank request: %w", err)
	}

	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(cctx, http.MethodPost, cfg.BaseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("retrieve: build rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.APIKey)
	}

	client := observability.NewHTTPClient(nil)
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("retrieve: rerank request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("retrieve: rerank failed with status %d: %s", resp.StatusCode, string(b))
	}

	var parsed rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("retrieve: decode rerank response: %w", err)
	}
	return parsed.Results, nil
}
