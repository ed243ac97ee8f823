package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/subject-research/internal/status"
	"github.com/jonathan/subject-research/internal/types"
)

const sourceColumns = `id, job_id, url, kind, provider, COALESCE(title, ''),
	COALESCE(published_at, ''), confidence, status, created_at`

// -----------------------------------------------------------------------------
// Source Methods
// -----------------------------------------------------------------------------

// CreateSources inserts one queued source per item in a single transaction and
// returns the sources that were created. Items whose URL already exists for the
// job are skipped, so repeated discovery never duplicates a source.
func (db *DB) CreateSources(ctx context.Context, jobID uuid.UUID, items []types.DiscoveryItem) ([]Source, error) {
	created := make([]Source, 0, len(items))
	err := db.InTx(ctx, func(tx pgx.Tx) error {
		for _, it := range items {
			var src Source
			err := tx.QueryRow(ctx,
				`INSERT INTO sources (job_id, url, kind, provider, title, published_at, confidence, status)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
				 ON CONFLICT (job_id, url) DO NOTHING
				 RETURNING `+sourceColumns,
				jobID, it.URL, it.Kind, it.Provider, nullIfEmpty(it.Title),
				nullIfEmpty(it.PublishedAt), it.Confidence, status.SourceQueued,
			).Scan(&src.ID, &src.JobID, &src.URL, &src.Kind, &src.Provider, &src.Title,
				&src.PublishedAt, &src.Confidence, &src.Status, &src.CreatedAt)
			if errors.Is(err, pgx.ErrNoRows) {
				continue
			}
			if err != nil {
				return fmt.Errorf("failed to insert source %s: %w", it.URL, err)
			}
			created = append(created, src)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create sources: %w", err)
	}
	return created, nil
}

// GetSource retrieves a source by ID. Returns nil, nil when it does not exist.
func (db *DB) GetSource(ctx context.Context, sourceID int64) (*Source, error) {
	var src Source
	err := db.pool.QueryRow(ctx,
		`SELECT `+sourceColumns+` FROM sources WHERE id = $1`,
		sourceID,
	).Scan(&src.ID, &src.JobID, &src.URL, &src.Kind, &src.Provider, &src.Title,
		&src.PublishedAt, &src.Confidence, &src.Status, &src.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get source: %w", err)
	}
	return &src, nil
}

// ListSources returns a job's sources, newest first by ID.
func (db *DB) ListSources(ctx context.Context, jobID uuid.UUID, filters SourceFilters) ([]Source, error) {
	query, args, err := buildListSourcesQuery(jobID, filters)
	if err != nil {
		return nil, err
	}

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	defer rows.Close()

	sources := []Source{}
	for rows.Next() {
		var src Source
		if err := rows.Scan(&src.ID, &src.JobID, &src.URL, &src.Kind, &src.Provider, &src.Title,
			&src.PublishedAt, &src.Confidence, &src.Status, &src.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		sources = append(sources, src)
	}
	return sources, rows.Err()
}

func buildListSourcesQuery(jobID uuid.UUID, filters SourceFilters) (string, []any, error) {
	b := psql.Select(sourceColumns).
		From("sources").
		Where(sq.Eq{"job_id": jobID}).
		OrderBy("id DESC")
	if filters.Status != "" {
		b = b.Where(sq.Eq{"status": filters.Status})
	}
	if filters.BeforeID > 0 {
		b = b.Where(sq.Lt{"id": filters.BeforeID})
	}
	b = b.Limit(uint64(listLimit(filters.Limit)))

	query, args, err := b.ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("failed to build sources query: %w", err)
	}
	return query, args, nil
}

// UpdateSourceStatus moves a queued source to a terminal status.
// Returns ErrNotApplied when the source is missing or already left queued.
func (db *DB) UpdateSourceStatus(ctx context.Context, sourceID int64, to string) error {
	return updateSourceStatus(ctx, db.pool, sourceID, to)
}

func updateSourceStatus(ctx context.Context, q querier, sourceID int64, to string) error {
	if err := status.Check(status.KindSource, to); err != nil {
		return err
	}
	tag, err := q.Exec(ctx,
		`UPDATE sources SET status = $2, updated_at = $3
		 WHERE id = $1 AND status = ANY($4)`,
		sourceID, to, time.Now().UTC(), status.AllowedFrom(status.KindSource, to),
	)
	if err != nil {
		return fmt.Errorf("failed to update source status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotApplied
	}
	return nil
}

// nullIfEmpty returns nil for an empty string so optional columns store NULL.
func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
