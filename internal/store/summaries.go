package store

import (
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"kollektiv/internal/domain"
)

var summaryColumns = []string{"summary_id", "source_id", "summary", "keywords"}

func summaryValues(s domain.SourceSummary) []any {
	keywords, _ := json.Marshal(s.Keywords)
	return []any{s.SummaryID, s.SourceID, s.Summary, keywords}
}

func scanSummary(row pgx.Row) (domain.SourceSummary, error) {
	var s domain.SourceSummary
	var keywords []byte
	if err := row.Scan(&s.SummaryID, &s.SourceID, &s.Summary, &keywords); err != nil {
		return s, err
	}
	if len(keywords) > 0 {
		if err := json.Unmarshal(keywords, &s.Keywords); err != nil {
			return s, fmt.Errorf("store: unmarshal summary keywords: %w", err)
		}
	}
	return s, nil
}

func NewSourceSummaryRepository(pool *pgxpool.Pool) *Repository[domain.SourceSummary] {
	return NewRepository(pool, Mapper[domain.SourceSummary]{
		Table:      "source_summaries",
		PKColumn:   "summary_id",
		Columns:    summaryColumns,
		PK:         func(s domain.SourceSummary) any { return s.SummaryID },
		Values:     summaryValues,
		Scan:       scanSummary,
		EntityName: "source_summary",
	})
}
