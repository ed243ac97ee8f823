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
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

const jobColumns = `id, subject, status, created_at, updated_at`

// -----------------------------------------------------------------------------
// Job Methods
// -----------------------------------------------------------------------------

// CreateJob inserts a new job in the queued status.
func (db *DB) CreateJob(ctx context.Context, subject string) (*Job, error) {
	var job Job
	err := db.pool.QueryRow(ctx,
		`INSERT INTO jobs (id, subject, status)
		 VALUES ($1, $2, $3)
		 RETURNING `+jobColumns,
		uuid.New(), subject, status.JobQueued,
	).Scan(&job.ID, &job.Subject, &job.Status, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}
	return &job, nil
}

// GetJob retrieves a job by ID. Returns nil, nil when the job does not exist.
func (db *DB) GetJob(ctx context.Context, jobID uuid.UUID) (*Job, error) {
	var job Job
	err := db.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = $1`,
		jobID,
	).Scan(&job.ID, &job.Subject, &job.Status, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &job, nil
}

// ListJobs returns jobs newest first, optionally filtered by status or by a
// case-insensitive subject substring.
func (db *DB) ListJobs(ctx context.Context, filters JobFilters) ([]Job, error) {
	query, args, err := buildListJobsQuery(filters)
	if err != nil {
		return nil, err
	}

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	jobs := []Job{}
	for rows.Next() {
		var job Job
		if err := rows.Scan(&job.ID, &job.Subject, &job.Status, &job.CreatedAt, &job.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func buildListJobsQuery(filters JobFilters) (string, []any, error) {
	b := psql.Select(jobColumns).From("jobs").OrderBy("created_at DESC")
	if filters.Status != "" {
		b = b.Where(sq.Eq{"status": filters.Status})
	}
	if filters.Subject != "" {
		b = b.Where(sq.ILike{"subject": "%" + filters.Subject + "%"})
	}
	b = b.Limit(uint64(listLimit(filters.Limit)))

	query, args, err := b.ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("failed to build jobs query: %w", err)
	}
	return query, args, nil
}

func listLimit(limit int) int {
	if limit <= 0 || limit > MaxListLimit {
		return DefaultListLimit
	}
	return limit
}

// UpdateJobStatus sets the job status and updated_at. The write only applies when
// the current status may transition to the new one; otherwise ErrNotApplied is returned.
func (db *DB) UpdateJobStatus(ctx context.Context, jobID uuid.UUID, to string, at time.Time) error {
	if err := status.Check(status.KindJob, to); err != nil {
		return err
	}
	tag, err := db.pool.Exec(ctx,
		`UPDATE jobs SET status = $2, updated_at = $3
		 WHERE id = $1 AND status = ANY($4)`,
		jobID, to, at, status.AllowedFrom(status.KindJob, to),
	)
	if err != nil {
		return fmt.Errorf("failed to update job status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotApplied
	}
	return nil
}

// JobProgress counts the job's documents and how many reached a final status.
func (db *DB) JobProgress(ctx context.Context, jobID uuid.UUID) (*JobProgress, error) {
	var p JobProgress
	err := db.pool.QueryRow(ctx,
		`SELECT COUNT(*),
		        COUNT(*) FILTER (WHERE status = ANY($2))
		 FROM documents WHERE job_id = $1`,
		jobID, FinishedDocumentStatuses(),
	).Scan(&p.Total, &p.Finished)
	if err != nil {
		return nil, fmt.Errorf("failed to count job documents: %w", err)
	}
	return &p, nil
}

// FinishedDocumentStatuses lists the document statuses counted as finished in job progress.
func FinishedDocumentStatuses() []string {
	return []string{status.DocumentIndexed, status.DocumentIndexFailed, status.DocumentNormalizeFailed}
}
