package store

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Mapper adapts a Go type T to a single table: column order for
// insert/select, the primary-key extractor, and a row scanner. One Mapper
// is written per entity (sources.go, jobs.go, ...); Repository[T] does the
// generic SQL-building and transaction handling around it.
type Mapper[T any] struct {
	Table      string
	PKColumn   string
	Columns    []string
	PK         func(T) any
	Values     func(T) []any
	Scan       func(row pgx.Row) (T, error)
	EntityName string
}

// Repository is a typed CRUD surface over one table.
type Repository[T any] struct {
	pool *pgxpool.Pool
	m    Mapper[T]
}

func NewRepository[T any](pool *pgxpool.Pool, m Mapper[T]) *Repository[T] {
	return &Repository[T]{pool: pool, m: m}
}

// Save upserts one or more entities of the same type in a single
// transaction and returns them as persisted (including any server-side
// defaults such as timestamps) by re-reading each row after upsert.
func (r *Repository[T]) Save(ctx context.Context, entities ...T) ([]T, error) {
	if len(entities) == 0 {
		return nil, nil
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, &DatabaseError{Op: "save", Entity: r.m.EntityName, Err: err}
	}
	defer tx.Rollback(ctx)

	placeholders := make([]string, len(r.m.Columns))
	updates := make([]string, 0, len(r.m.Columns))
	for i, col := range r.m.Columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		if col != r.m.PKColumn {
			updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", col, col))
		}
	}
	stmt := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s",
		r.m.Table, strings.Join(r.m.Columns, ", "), strings.Join(placeholders, ", "),
		r.m.PKColumn, strings.Join(updates, ", "),
	)

	out := make([]T, 0, len(entities))
	for _, e := range entities {
		if _, err := tx.Exec(ctx, stmt, r.m.Values(e)...); err != nil {
			return nil, &DatabaseError{Op: "save", Entity: r.m.EntityName, Err: err}
		}
		saved, err := r.findByIDTx(ctx, tx, r.m.PK(e))
		if err != nil {
			return nil, err
		}
		out = append(out, saved)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, &DatabaseError{Op: "save", Entity: r.m.EntityName, Err: err}
	}
	return out, nil
}

// FindByID returns the entity with the given primary key, or
// EntityNotFoundError.
func (r *Repository[T]) FindByID(ctx context.Context, id any) (T, error) {
	var zero T
	row := r.pool.QueryRow(ctx, fmt.Sprintf(
		"SELECT %s FROM %s WHERE %s = $1", strings.Join(r.m.Columns, ", "), r.m.Table, r.m.PKColumn,
	), id)
	v, err := r.m.Scan(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return zero, &EntityNotFoundError{Entity: r.m.EntityName, ID: fmt.Sprint(id)}
		}
		return zero, &DatabaseError{Op: "find_by_id", Entity: r.m.EntityName, Err: err}
	}
	return v, nil
}

func (r *Repository[T]) findByIDTx(ctx context.Context, tx pgx.Tx, id any) (T, error) {
	var zero T
	row := tx.QueryRow(ctx, fmt.Sprintf(
		"SELECT %s FROM %s WHERE %s = $1", strings.Join(r.m.Columns, ", "), r.m.Table, r.m.PKColumn,
	), id)
	v, err := r.m.Scan(row)
	if err != nil {
		return zero, &DatabaseError{Op: "save", Entity: r.m.EntityName, Err: err}
	}
	return v, nil
}

// FindOptions controls ordering and pagination for Find.
type FindOptions struct {
	OrderBy string // column name; "" means unspecified order
	Desc    bool
	Limit   int // 0 means unbounded
	Offset  int
}

// Find returns entities matching filters. A filter key containing "->>"
// (e.g. "details->>firecrawl_id") is rendered as a JSON-path predicate on
// the column before the arrow; any other key is an equality predicate on
// that top-level column. A []any, []uuid.UUID or []string value becomes an
// IN/ANY predicate.
func (r *Repository[T]) Find(ctx context.Context, filters map[string]any, opts FindOptions) ([]T, error) {
	where, args := buildWhere(filters)
	q := fmt.Sprintf("SELECT %s FROM %s", strings.Join(r.m.Columns, ", "), r.m.Table)
	if where != "" {
		q += " WHERE " + where
	}
	if opts.OrderBy != "" {
		dir := "ASC"
		if opts.Desc {
			dir = "DESC"
		}
		q += fmt.Sprintf(" ORDER BY %s %s", opts.OrderBy, dir)
	}
	if opts.Limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", opts.Limit)
	}
	if opts.Offset > 0 {
		q += fmt.Sprintf(" OFFSET %d", opts.Offset)
	}

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, &DatabaseError{Op: "find", Entity: r.m.EntityName, Err: err}
	}
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		v, err := r.m.Scan(rows)
		if err != nil {
			return nil, &DatabaseError{Op: "find", Entity: r.m.EntityName, Err: err}
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, &DatabaseError{Op: "find", Entity: r.m.EntityName, Err: err}
	}
	return out, nil
}

func buildWhere(filters map[string]any) (string, []any) {
	if len(filters) == 0 {
		return "", nil
	}
	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	clauses := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys))
	n := 1
	for _, k := range keys {
		v := filters[k]
		expr := columnExpr(k)
		switch v.(type) {
		case []any, []uuid.UUID, []string:
			clauses = append(clauses, fmt.Sprintf("%s = ANY($%d)", expr, n))
		default:
			clauses = append(clauses, fmt.Sprintf("%s = $%d", expr, n))
		}
		args = append(args, v)
		n++
	}
	return strings.Join(clauses, " AND "), args
}

// columnExpr renders "col->>path" filter keys as a JSON-path predicate
// expression; any other key is used as a bare column reference.
func columnExpr(key string) string {
	if idx := strings.Index(key, "->>"); idx >= 0 {
		col := key[:idx]
		path := key[idx+len("->>"):]
		return fmt.Sprintf("%s->>'%s'", col, path)
	}
	return key
}
