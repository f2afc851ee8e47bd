package store

import (
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"kollektiv/internal/domain"
)

var jobColumns = []string{
	"job_id", "type", "status", "details", "result_id", "error", "created_at", "completed_at",
}

func jobValues(j domain.Job) []any {
	details, _ := json.Marshal(j.Details)
	return []any{
		j.JobID, j.Type, j.Status, details, j.ResultID, j.Error, j.CreatedAt, j.CompletedAt,
	}
}

func scanJob(row pgx.Row) (domain.Job, error) {
	var j domain.Job
	var details []byte
	if err := row.Scan(
		&j.JobID, &j.Type, &j.Status, &details, &j.ResultID, &j.Error, &j.CreatedAt, &j.CompletedAt,
	); err != nil {
		return j, err
	}
	if len(details) > 0 {
		if err := json.Unmarshal(details, &j.Details); err != nil {
			return j, fmt.Errorf("store: unmarshal job details: %w", err)
		}
	}
	return j, nil
}

func NewJobRepository(pool *pgxpool.Pool) *Repository[domain.Job] {
	return NewRepository(pool, Mapper[domain.Job]{
		Table:      "jobs",
		PKColumn:   "job_id",
		Columns:    jobColumns,
		PK:         func(j domain.Job) any { return j.JobID },
		Values:     jobValues,
		Scan:       scanJob,
		EntityName: "job",
	})
}

// FilterByFirecrawlID finds the crawl job owning a given Firecrawl crawl id,
// via the functional JSON-path index on
// jobs.details->'crawl'->>'firecrawl_id' (JobDetails nests the crawl fields
// under "crawl").
func FilterByFirecrawlID(id string) map[string]any {
	return map[string]any{"details->'crawl'->>firecrawl_id": id}
}
