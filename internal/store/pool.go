// Package store is the typed wrapper over the relational store (C3):
// upsert, query-by-filter (with JSON-path filters), get-by-id. Grounded on
// the teacher's internal/persistence/databases/postgres_search.go
// (bootstrap-DDL-in-constructor, $N placeholders, JSONB columns, ON
// CONFLICT upserts), generalized into a Mapper-driven Repository[T] since
// the teacher's pgSearch was hand-written per table.
package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewPool opens a pgx connection pool and bootstraps every table this
// package owns. Bootstrap is best-effort idempotent (CREATE TABLE IF NOT
// EXISTS), matching the teacher's constructor-time DDL.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}
	if err := bootstrap(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func bootstrap(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sources (
			source_id UUID PRIMARY KEY,
			user_id UUID NOT NULL,
			request_id UUID NOT NULL,
			job_id UUID,
			source_url TEXT NOT NULL,
			source_type TEXT NOT NULL,
			stage TEXT NOT NULL,
			metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
			error TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS jobs (
			job_id UUID PRIMARY KEY,
			type TEXT NOT NULL,
			status TEXT NOT NULL,
			details JSONB NOT NULL DEFAULT '{}'::jsonb,
			result_id UUID,
			error TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			completed_at TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS documents (
			document_id UUID PRIMARY KEY,
			source_id UUID NOT NULL,
			content TEXT NOT NULL,
			metadata JSONB NOT NULL DEFAULT '{}'::jsonb
		)`,
		`CREATE TABLE IF NOT EXISTS chunks (
			chunk_id UUID PRIMARY KEY,
			source_id UUID NOT NULL,
			document_id UUID NOT NULL,
			headers JSONB NOT NULL DEFAULT '{}'::jsonb,
			text TEXT NOT NULL,
			content TEXT NOT NULL,
			token_count INT NOT NULL,
			page_title TEXT,
			page_url TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS source_summaries (
			summary_id UUID PRIMARY KEY,
			source_id UUID NOT NULL,
			summary TEXT NOT NULL,
			keywords JSONB NOT NULL DEFAULT '[]'::jsonb
		)`,
		`CREATE TABLE IF NOT EXISTS conversations (
			conversation_id UUID PRIMARY KEY,
			user_id UUID NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			message_ids JSONB NOT NULL DEFAULT '[]'::jsonb,
			token_count INT NOT NULL DEFAULT 0,
			data_sources JSONB NOT NULL DEFAULT '[]'::jsonb
		)`,
		`CREATE TABLE IF NOT EXISTS conversation_messages (
			message_id UUID PRIMARY KEY,
			conversation_id UUID NOT NULL,
			role TEXT NOT NULL,
			content JSONB NOT NULL DEFAULT '[]'::jsonb
		)`,
		`CREATE INDEX IF NOT EXISTS chunks_source_id_idx ON chunks (source_id)`,
		`CREATE INDEX IF NOT EXISTS documents_source_id_idx ON documents (source_id)`,
		`CREATE INDEX IF NOT EXISTS jobs_details_firecrawl_id_idx ON jobs ((details->'crawl'->>'firecrawl_id'))`,
	}
	for _, s := range stmts {
		if _, err := pool.Exec(ctx, s); err != nil {
			return fmt.Errorf("store: bootstrap: %w", err)
		}
	}
	return nil
}
