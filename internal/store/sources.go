package store

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"kollektiv/internal/domain"
)

var sourceColumns = []string{
	"source_id", "user_id", "request_id", "job_id", "source_url",
	"source_type", "stage", "metadata", "error", "created_at", "updated_at",
}

func sourceValues(s domain.Source) []any {
	meta, _ := json.Marshal(s.Metadata)
	return []any{
		s.SourceID, s.UserID, s.RequestID, s.JobID, s.SourceURL,
		s.Type, s.Stage, meta, s.Error, s.CreatedAt, s.UpdatedAt,
	}
}

func scanSource(row pgx.Row) (domain.Source, error) {
	var s domain.Source
	var meta []byte
	if err := row.Scan(
		&s.SourceID, &s.UserID, &s.RequestID, &s.JobID, &s.SourceURL,
		&s.Type, &s.Stage, &meta, &s.Error, &s.CreatedAt, &s.UpdatedAt,
	); err != nil {
		return s, err
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &s.Metadata); err != nil {
			return s, fmt.Errorf("store: unmarshal source metadata: %w", err)
		}
	}
	return s, nil
}

func NewSourceRepository(pool *pgxpool.Pool) *Repository[domain.Source] {
	return NewRepository(pool, Mapper[domain.Source]{
		Table:      "sources",
		PKColumn:   "source_id",
		Columns:    sourceColumns,
		PK:         func(s domain.Source) any { return s.SourceID },
		Values:     sourceValues,
		Scan:       scanSource,
		EntityName: "source",
	})
}

// FilterBySourceID builds a Find filter keyed by a top-level column; the
// worker uses it to load every document of one source.
func FilterBySourceID(id uuid.UUID) map[string]any {
	return map[string]any{"source_id": id}
}

// FilterByJobID resolves the Source currently owning a Job, used by the
// webhook path to map an inbound crawl/processing event back to its Source.
func FilterByJobID(id uuid.UUID) map[string]any {
	return map[string]any{"job_id": id}
}
