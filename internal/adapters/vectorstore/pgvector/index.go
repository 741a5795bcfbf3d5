package pgvector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	pgv "github.com/pgvector/pgvector-go"

	"github.com/PabloGalante/docchat/internal/domain"
)

const DefaultTable = "docchat_chunks"

// DB is the subset of *pgxpool.Pool the index needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Index is a domain.VectorIndex stored in one Postgres table with a
// pgvector column and JSONB metadata.
type Index struct {
	db         DB
	tableIdent string
	dimension  int
}

// Open connects a pool to dsn and prepares the table. The caller closes
// the returned pool.
func Open(ctx context.Context, dsn, table string, dimension int) (*Index, *pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("pgvector: connect: %w", err)
	}
	idx, err := New(ctx, pool, table, dimension)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	return idx, pool, nil
}

// New prepares the extension and table on db.
func New(ctx context.Context, db DB, table string, dimension int) (*Index, error) {
	if dimension <= 0 {
		return nil, errors.New("pgvector: dimension must be positive")
	}
	if table == "" {
		table = DefaultTable
	}
	idx := &Index{
		db:         db,
		tableIdent: pgx.Identifier{table}.Sanitize(),
		dimension:  dimension,
	}
	if err := idx.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return idx, nil
}

func (x *Index) ensureSchema(ctx context.Context) error {
	if _, err := x.db.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("pgvector: enable extension: %w", err)
	}
	createTable := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id TEXT PRIMARY KEY,
		embedding vector(%d),
		document TEXT,
		metadata JSONB,
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	)`, x.tableIdent, x.dimension)
	if _, err := x.db.Exec(ctx, createTable); err != nil {
		return fmt.Errorf("pgvector: create table: %w", err)
	}
	return nil
}

func (x *Index) Upsert(ctx context.Context, records []domain.VectorRecord) (err error) {
	if len(records) == 0 {
		return nil
	}
	for _, rec := range records {
		if len(rec.Embedding) != x.dimension {
			return fmt.Errorf("pgvector: record %q dimension mismatch (got %d want %d)",
				rec.ID, len(rec.Embedding), x.dimension)
		}
	}

	tx, err := x.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("pgvector: begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				err = fmt.Errorf("pgvector: rollback failed: %w; original error: %v", rbErr, err)
			}
			return
		}
		if commitErr := tx.Commit(ctx); commitErr != nil {
			err = fmt.Errorf("pgvector: commit: %w", commitErr)
		}
	}()

	stmt := fmt.Sprintf(`INSERT INTO %s (id, embedding, document, metadata, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE SET
    embedding = excluded.embedding,
    document = excluded.document,
    metadata = excluded.metadata,
    updated_at = excluded.updated_at`, x.tableIdent)

	now := time.Now().UTC()
	for _, rec := range records {
		metadata, marshalErr := json.Marshal(rec.Metadata)
		if marshalErr != nil {
			return fmt.Errorf("pgvector: marshal metadata for %q: %w", rec.ID, marshalErr)
		}
		if _, execErr := tx.Exec(ctx, stmt, rec.ID, pgv.NewVector(rec.Embedding), rec.Text, metadata, now); execErr != nil {
			return fmt.Errorf("pgvector: upsert %q: %w", rec.ID, execErr)
		}
	}
	return nil
}

// Query orders by cosine distance and reports 1 - distance as the score.
// Filter keys are matched against the JSONB metadata as text.
func (x *Index) Query(ctx context.Context, vector []float32, filter domain.Filter, k int) ([]domain.VectorMatch, error) {
	if len(vector) != x.dimension {
		return nil, fmt.Errorf("pgvector: query dimension mismatch (got %d want %d)", len(vector), x.dimension)
	}
	if k <= 0 {
		return nil, nil
	}

	var b strings.Builder
	b.WriteString("SELECT id, document, metadata, 1 - (embedding <=> $1) AS score FROM ")
	b.WriteString(x.tableIdent)
	b.WriteString(" WHERE 1=1")
	args := []any{pgv.NewVector(vector)}
	argPos := 2

	keys := make([]string, 0, len(filter))
	for key := range filter {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	for _, key := range keys {
		fmt.Fprintf(&b, " AND metadata ->> $%d = $%d", argPos, argPos+1)
		args = append(args, key, filter[key])
		argPos += 2
	}
	fmt.Fprintf(&b, " ORDER BY embedding <=> $1 ASC LIMIT $%d", argPos)
	args = append(args, k)

	rows, err := x.db.Query(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("pgvector: search: %w", err)
	}
	defer rows.Close()

	results := make([]domain.VectorMatch, 0, k)
	for rows.Next() {
		var (
			id          string
			document    string
			metadataRaw []byte
			score       float64
		)
		if err := rows.Scan(&id, &document, &metadataRaw, &score); err != nil {
			return nil, fmt.Errorf("pgvector: scan: %w", err)
		}
		meta := make(map[string]any)
		if len(metadataRaw) > 0 {
			if err := json.Unmarshal(metadataRaw, &meta); err != nil {
				return nil, fmt.Errorf("pgvector: decode metadata: %w", err)
			}
		}
		results = append(results, domain.VectorMatch{
			ID:       id,
			Text:     document,
			Score:    score,
			Metadata: meta,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgvector: search rows: %w", err)
	}
	return results, nil
}
