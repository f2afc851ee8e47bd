package store

import (
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"kollektiv/internal/domain"
)

var documentColumns = []string{"document_id", "source_id", "content", "metadata"}

func documentValues(d domain.Document) []any {
	meta, _ := json.Marshal(d.Metadata)
	return []any{d.DocumentID, d.SourceID, d.Content, meta}
}

func scanDocument(row pgx.Row) (domain.Document, error) {
	var d domain.Document
	var meta []byte
	if err := row.Scan(&d.DocumentID, &d.SourceID, &d.Content, &meta); err != nil {
		return d, err
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &d.Metadata); err != nil {
			return d, fmt.Errorf("store: unmarshal document metadata: %w", err)
		}
	}
	return d, nil
}

func NewDocumentRepository(pool *pgxpool.Pool) *Repository[domain.Document] {
	return NewRepository(pool, Mapper[domain.Document]{
		Table:      "documents",
		PKColumn:   "document_id",
		Columns:    documentColumns,
		PK:         func(d domain.Document) any { return d.DocumentID },
		Values:     documentValues,
		Scan:       scanDocument,
		EntityName: "document",
	})
}
