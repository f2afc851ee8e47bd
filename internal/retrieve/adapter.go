package retrieve

import (
	"context"

	"kollektiv/internal/vectorindex"
)

// IndexAdapter wraps a vectorindex.Index so it satisfies VectorIndex,
// keeping this package's public surface free of the Qdrant wiring details.
type IndexAdapter struct {
	Index *vectorindex.Index
}

func (a IndexAdapter) Query(ctx context.Context, queries []string, topK int) ([]IndexHit, error) {
	results, err := a.Index.Query(ctx, queries, topK)
	if err != nil {
		return nil, err
	}
	hits := make([]IndexHit, len(results))
	for i, r := range results {
		hits[i] = IndexHit{ID: r.ID, Content: r.Content, Metadata: r.Metadata, Distance: r.Distance}
	}
	return hits, nil
}
