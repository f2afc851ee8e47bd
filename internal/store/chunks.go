package store

import (
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"kollektiv/internal/domain"
)

var chunkColumns = []string{
	"chunk_id", "source_id", "document_id", "headers", "text", "content",
	"token_count", "page_title", "page_url",
}

func chunkValues(c domain.Chunk) []any {
	headers, _ := json.Marshal(c.Headers)
	return []any{
		c.ChunkID, c.SourceID, c.DocumentID, headers, c.Text, c.Content,
		c.TokenCount, c.PageTitle, c.PageURL,
	}
}

func scanChunk(row pgx.Row) (domain.Chunk, error) {
	var c domain.Chunk
	var headers []byte
	if err := row.Scan(
		&c.ChunkID, &c.SourceID, &c.DocumentID, &headers, &c.Text, &c.Content,
		&c.TokenCount, &c.PageTitle, &c.PageURL,
	); err != nil {
		return c, err
	}
	if len(headers) > 0 {
		if err := json.Unmarshal(headers, &c.Headers); err != nil {
			return c, fmt.Errorf("store: unmarshal chunk headers: %w", err)
		}
	}
	return c, nil
}

func NewChunkRepository(pool *pgxpool.Pool) *Repository[domain.Chunk] {
	return NewRepository(pool, Mapper[domain.Chunk]{
		Table:      "chunks",
		PKColumn:   "chunk_id",
		Columns:    chunkColumns,
		PK:         func(c domain.Chunk) any { return c.ChunkID },
		Values:     chunkValues,
		Scan:       scanChunk,
		EntityName: "chunk",
	})
}
