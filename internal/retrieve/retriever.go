package retrieve

import (
	"context"
	"fmt"
	"sort"
	"time"

	"kollektiv/internal/config"
	"kollektiv/internal/observability"
)

// VectorIndex is the subset of vectorindex.Index that Retrieve needs,
// narrowed to an interface so the pipeline can be tested without a live
// Qdrant collection.
type VectorIndex interface {
	Query(ctx context.Context, queries []string, topK int) ([]IndexHit, error)
}

// IndexHit mirrors vectorindex.QueryResult; kept local to this package so
// retrieve does not need to import vectorindex's Qdrant wiring for its own
// interface definition.
type IndexHit struct {
	ID       string
	Content  string
	Metadata map[string]string
	Distance float64
}

// Passage is one ranked retrieval hit (§4.9).
type Passage struct {
	Text           string
	RelevanceScore float64
	Index          int
}

const relevanceThreshold = 0.1

// Retriever runs the §4.9 pipeline: vector search with query expansion,
// rerank against the original query, threshold filter, and top-N limiting.
type Retriever struct {
	index      VectorIndex
	rerankCfg  config.RerankerConfig
	vectorTopK int
}

func New(index VectorIndex, rerankCfg config.RerankerConfig, vectorTopK int) *Retriever {
	if vectorTopK <= 0 {
		vectorTopK = 50
	}
	return &Retriever{index: index, rerankCfg: rerankCfg, vectorTopK: vectorTopK}
}

// Retrieve implements retrieve(rag_query, combined_queries, top_n, user_id)
// → {index: {text, relevance_score, index}} per §4.9. user_id is implicit
// in the VectorIndex the caller constructed (the per-user collection), so
// it isn't threaded through this call.
func (r *Retriever) Retrieve(ctx context.Context, ragQuery string, combinedQueries []string, topN int) (map[int]Passage, error) {
	start := time.Now()
	logger := observability.LoggerWithTrace(ctx)

	hits, err := r.index.Query(ctx, combinedQueries, r.vectorTopK)
	if err != nil {
		return nil, fmt.Errorf("retrieve: vector search: %w", err)
	}
	if len(hits) == 0 {
		logger.Info().Dur("duration", time.Since(start)).Int("candidates", 0).Msg("retrieve: no candidates")
		return map[int]Passage{}, nil
	}

	documents := make([]string, len(hits))
	for i, h := range hits {
		documents[i] = h.Content
	}
	reranked, err := Rerank(ctx, r.rerankCfg, ragQuery, documents)
	if err != nil {
		return nil, fmt.Errorf("retrieve: rerank: %w", err)
	}

	passages := make([]Passage, 0, len(reranked))
	for _, rr := range reranked {
		if rr.Index < 0 || rr.Index >= len(hits) {
			continue
		}
		if rr.RelevanceScore < relevanceThreshold {
			continue
		}
		passages = append(passages, Passage{
			Text:           hits[rr.Index].Content,
			RelevanceScore: rr.RelevanceScore,
			Index:          rr.Index,
		})
	}

	sort.Slice(passages, func(i, j int) bool { return passages[i].RelevanceScore > passages[j].RelevanceScore })
	if topN > 0 && topN < len(passages) {
		passages = passages[:topN]
	}

	out := make(map[int]Passage, len(passages))
	for _, p := range passages {
		out[p.Index] = p
	}

	logger.Info().
		Dur("duration", time.Since(start)).
		Int("candidates", len(hits)).
		Int("results", len(out)).
		Msg("retrieve: search+rerank complete")
	return out, nil
}
