package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jonathan/subject-research/internal/types"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS tasks (
    id           BIGSERIAL PRIMARY KEY,
    stage        TEXT NOT NULL,
    job_id       UUID NOT NULL,
    source_id    BIGINT NOT NULL DEFAULT 0,
    document_id  BIGINT NOT NULL DEFAULT 0,
    subject      TEXT NOT NULL DEFAULT '',
    item         JSONB,
    attempt      INT NOT NULL DEFAULT 0,
    run_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
    leased_until TIMESTAMPTZ,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_tasks_due ON tasks (run_at, id);
`

const claimSQL = `
UPDATE tasks SET leased_until = now() + make_interval(secs => $1)
WHERE id = (
    SELECT id FROM tasks
    WHERE run_at <= now() AND (leased_until IS NULL OR leased_until < now())
    ORDER BY run_at, id
    LIMIT 1
    FOR UPDATE SKIP LOCKED
)
RETURNING id, stage, job_id, source_id, document_id, subject, item, attempt, run_at
`

// Postgres is a Queue backed by a tasks table. Workers in any number of
// processes may share it.
type Postgres struct {
	pool  *pgxpool.Pool
	lease time.Duration
}

// NewPostgres creates a queue over pool whose leases last for lease.
func NewPostgres(pool *pgxpool.Pool, lease time.Duration) *Postgres {
	return &Postgres{pool: pool, lease: lease}
}

// EnsureSchema creates the tasks table if it does not exist.
func (q *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := q.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create tasks table: %w", err)
	}
	return nil
}

func (q *Postgres) Enqueue(ctx context.Context, task Task) error {
	var item []byte
	if task.Item != nil {
		b, err := json.Marshal(task.Item)
		if err != nil {
			return fmt.Errorf("failed to marshal task item: %w", err)
		}
		item = b
	}
	runAt := task.RunAt
	if runAt.IsZero() {
		runAt = time.Now()
	}
	_, err := q.pool.Exec(ctx,
		`INSERT INTO tasks (stage, job_id, source_id, document_id, subject, item, attempt, run_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		string(task.Stage), task.JobID, task.SourceID, task.DocumentID, task.Subject, item, task.Attempt, runAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue %s task: %w", task.Stage, err)
	}
	return nil
}

func (q *Postgres) Dequeue(ctx context.Context) (*Task, error) {
	var (
		t     Task
		stage string
		item  []byte
	)
	err := q.pool.QueryRow(ctx, claimSQL, q.lease.Seconds()).Scan(
		&t.ID, &stage, &t.JobID, &t.SourceID, &t.DocumentID, &t.Subject, &item, &t.Attempt, &t.RunAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to claim task: %w", err)
	}
	t.Stage = Stage(stage)
	if len(item) > 0 {
		var it types.DiscoveryItem
		if err := json.Unmarshal(item, &it); err != nil {
			return nil, fmt.Errorf("failed to unmarshal task %d item: %w", t.ID, err)
		}
		t.Item = &it
	}
	return &t, nil
}

func (q *Postgres) Ack(ctx context.Context, taskID int64) error {
	if _, err := q.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, taskID); err != nil {
		return fmt.Errorf("failed to ack task %d: %w", taskID, err)
	}
	return nil
}

// Pending counts tasks not yet acked, per stage.
func (q *Postgres) Pending(ctx context.Context) (map[Stage]int, error) {
	rows, err := q.pool.Query(ctx, `SELECT stage, COUNT(*) FROM tasks GROUP BY stage`)
	if err != nil {
		return nil, fmt.Errorf("failed to count tasks: %w", err)
	}
	defer rows.Close()

	out := make(map[Stage]int)
	for rows.Next() {
		var (
			stage string
			n     int
		)
		if err := rows.Scan(&stage, &n); err != nil {
			return nil, err
		}
		out[Stage(stage)] = n
	}
	return out, rows.Err()
}
