// Package vectorstore keeps the headline corpus in Postgres with pgvector.
package vectorstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"NewsDigest/internal/config"
	"NewsDigest/internal/domain"
	"NewsDigest/internal/ports"
)

// Store is a similarity-search corpus backed by a pgvector table.
type Store struct {
	pool       *pgxpool.Pool
	embedder   ports.Embedder
	table      pgx.Identifier
	dimensions int
}

var _ ports.Corpus = (*Store)(nil)

// NewStore wires the pool with the embedder used for query texts.
func NewStore(pool *pgxpool.Pool, embedder ports.Embedder, cfg config.CorpusConfig) *Store {
	table := cfg.Table
	if table == "" {
		table = "headlines"
	}
	return &Store{
		pool:       pool,
		embedder:   embedder,
		table:      pgx.Identifier{table},
		dimensions: cfg.Dimensions,
	}
}

// EnsureSchema creates the corpus table when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id         TEXT PRIMARY KEY,
		document   TEXT NOT NULL,
		embedding  vector(%d) NOT NULL,
		indexed_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`, s.table.Sanitize(), s.dimensions)

	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create corpus table: %w", err)
	}
	return nil
}

// Query returns up to k documents closest to text by cosine distance.
func (s *Store) Query(ctx context.Context, text string, k int) ([]domain.SearchResult, error) {
	if k <= 0 {
		return nil, nil
	}

	vectors, err := s.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embed query: got %d vectors", len(vectors))
	}

	query := fmt.Sprintf(`SELECT id, document FROM %s ORDER BY embedding <=> $1 LIMIT $2`, s.table.Sanitize())
	rows, err := s.pool.Query(ctx, query, pgvector.NewVector(vectors[0]), k)
	if err != nil {
		return nil, fmt.Errorf("similarity query: %w", err)
	}
	defer rows.Close()

	results := make([]domain.SearchResult, 0, k)
	for rows.Next() {
		var r domain.SearchResult
		if err := rows.Scan(&r.ID, &r.Text); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return results, nil
}

// Replace swaps the corpus contents in a single transaction.
func (s *Store) Replace(ctx context.Context, docs []domain.CorpusDocument) (err error) {
	rows := make([][]interface{}, len(docs))
	for i, doc := range docs {
		if s.dimensions > 0 && len(doc.Embedding) != s.dimensions {
			return fmt.Errorf("document %s: embedding has %d dimensions, want %d", doc.ID, len(doc.Embedding), s.dimensions)
		}
		rows[i] = []interface{}{doc.ID, doc.Text, pgvector.NewVector(doc.Embedding)}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s`, s.table.Sanitize())); err != nil {
		return fmt.Errorf("clear corpus: %w", err)
	}

	if _, err = tx.CopyFrom(ctx, s.table, []string{"id", "document", "embedding"}, pgx.CopyFromRows(rows)); err != nil {
		return fmt.Errorf("copy documents: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit corpus: %w", err)
	}
	return nil
}

// Count returns the number of indexed documents.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, s.table.Sanitize())).Scan(&n); err != nil {
		return 0, fmt.Errorf("count corpus: %w", err)
	}
	return n, nil
}
