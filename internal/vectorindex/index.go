package vectorindex

import (
	"context"
	"fmt"
	"sort"

	"kollektiv/internal/config"
	"kollektiv/internal/domain"
	"kollektiv/internal/embedding"
)

// Index is the per-user embedding + vector-index service described by
// spec.md §4.8: compute embeddings, add only missing chunk ids, query by
// embedded text with dedup-by-id-keep-min-distance.
type Index struct {
	store    *Store
	embedCfg config.EmbeddingConfig
}

func New(store *Store, embedCfg config.EmbeddingConfig) *Index {
	return &Index{store: store, embedCfg: embedCfg}
}

// AddChunks embeds and upserts only the chunks whose id is not already
// present in the collection (§4.8 "add only missing ids").
func (idx *Index) AddChunks(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ChunkID.String()
	}
	existing, err := idx.store.Exists(ctx, ids)
	if err != nil {
		return fmt.Errorf("vectorindex: check existing chunk ids: %w", err)
	}

	var missing []domain.Chunk
	for _, c := range chunks {
		if !existing[c.ChunkID.String()] {
			missing = append(missing, c)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	texts := make([]string, len(missing))
	for i, c := range missing {
		texts[i] = c.Content
	}
	vectors, err := embedding.EmbedText(ctx, idx.embedCfg, texts)
	if err != nil {
		return err
	}
	if len(vectors) != len(missing) {
		return fmt.Errorf("vectorindex: embedding count mismatch: got %d, want %d", len(vectors), len(missing))
	}

	points := make([]Point, len(missing))
	for i, c := range missing {
		points[i] = Point{
			ID:      c.ChunkID.String(),
			Vector:  vectors[i],
			Content: c.Text,
			Metadata: map[string]string{
				"source_url": c.PageURL,
				"page_title": c.PageTitle,
			},
		}
	}
	return idx.store.Upsert(ctx, points)
}

// QueryResult is one deduplicated hit returned by Query (§4.8).
type QueryResult struct {
	ID       string
	Content  string
	Metadata map[string]string
	Distance float64
}

// Query embeds each of the given query strings, searches the collection for
// each, and collapses results by id keeping the smallest distance.
func (idx *Index) Query(ctx context.Context, queries []string, topK int) ([]QueryResult, error) {
	if len(queries) == 0 {
		return nil, fmt.Errorf("vectorindex: no queries")
	}
	vectors, err := embedding.EmbedText(ctx, idx.embedCfg, queries)
	if err != nil {
		return nil, err
	}

	var all []Result
	for _, vec := range vectors {
		hits, err := idx.store.Query(ctx, vec, topK)
		if err != nil {
			return nil, err
		}
		all = append(all, hits...)
	}
	return dedupByMinDistance(all), nil
}

// dedupByMinDistance collapses hits from multiple query variants down to one
// row per id, keeping the smallest distance (largest score), per §4.8's
// dedup contract. Score is converted to a cosine-style distance (1-score)
// so "keep the smallest" reads the same way the retriever expects it.
func dedupByMinDistance(hits []Result) []QueryResult {
	best := make(map[string]QueryResult, len(hits))
	for _, h := range hits {
		distance := 1 - h.Score
		cur, ok := best[h.ID]
		if !ok || distance < cur.Distance {
			best[h.ID] = QueryResult{ID: h.ID, Content: h.Content, Metadata: h.Metadata, Distance: distance}
		}
	}
	out := make([]QueryResult, 0, len(best))
	for _, r := range best {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	return out
}
