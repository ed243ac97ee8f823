package vectorstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// Postgres stores chunks in a pgvector table.
type Postgres struct {
	pool *pgxpool.Pool
	dim  int
}

// NewPostgres creates a store whose vectors have dim dimensions.
func NewPostgres(pool *pgxpool.Pool, dim int) *Postgres {
	return &Postgres{pool: pool, dim: dim}
}

// EnsureSchema creates the vector extension and chunk table.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS chunks (
			id            UUID PRIMARY KEY,
			job_id        UUID NOT NULL,
			document_id   BIGINT NOT NULL,
			chunk_index   INT NOT NULL,
			person        TEXT NOT NULL,
			source_url    TEXT NOT NULL,
			published_at  TEXT,
			kind          TEXT NOT NULL,
			text          TEXT NOT NULL,
			embedding     vector(%d) NOT NULL,
			indexed_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, p.dim),
		`CREATE INDEX IF NOT EXISTS idx_chunks_job ON chunks (job_id)`,
	}
	for _, stmt := range stmts {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to prepare vector schema: %w", err)
		}
	}
	return nil
}

// Upsert writes chunks in one batch, replacing rows with the same ID.
func (p *Postgres) Upsert(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, c := range chunks {
		if len(c.Vector) != p.dim {
			return fmt.Errorf("chunk %d of document %d has %d dimensions, want %d",
				c.Index, c.DocumentID, len(c.Vector), p.dim)
		}
		batch.Queue(`
			INSERT INTO chunks (id, job_id, document_id, chunk_index, person, source_url, published_at, kind, text, embedding)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (id) DO UPDATE SET
				text = EXCLUDED.text, embedding = EXCLUDED.embedding,
				published_at = EXCLUDED.published_at, indexed_at = NOW()
		`, c.ID, c.Payload.JobID, c.DocumentID, c.Index, c.Payload.Subject, c.Payload.SourceURL,
			nullIfEmpty(c.Payload.PublishedAt), c.Payload.Kind, c.Payload.Text, pgvector.NewVector(c.Vector))
	}

	br := p.pool.SendBatch(ctx, batch)
	defer br.Close()
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch exec %d: %w", i, err)
		}
	}
	return nil
}

// Search returns the chunks of a job closest to vector by cosine distance.
func (p *Postgres) Search(ctx context.Context, jobID uuid.UUID, vector []float32, limit int) ([]Hit, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, document_id, job_id, person, source_url, COALESCE(published_at, ''), kind, text,
		       1 - (embedding <=> $2) AS score
		FROM chunks
		WHERE job_id = $1
		ORDER BY embedding <=> $2
		LIMIT $3
	`, jobID, pgvector.NewVector(vector), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var h Hit
		if err := rows.Scan(&h.ID, &h.Document, &h.Payload.JobID, &h.Payload.Subject, &h.Payload.SourceURL,
			&h.Payload.PublishedAt, &h.Payload.Kind, &h.Payload.Text, &h.Score); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
