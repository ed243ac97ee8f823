package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/subject-research/internal/ident"
	"github.com/jonathan/subject-research/internal/types"
)

// -----------------------------------------------------------------------------
// Event Methods
// -----------------------------------------------------------------------------

// InsertEvents stores timeline events for a job in one transaction and returns
// how many were new. An event whose fingerprint already exists for the job is
// skipped, so re-running analysis does not duplicate identical events.
func (db *DB) InsertEvents(ctx context.Context, jobID uuid.UUID, events []types.TimelineEvent) (int, error) {
	inserted := 0
	err := db.InTx(ctx, func(tx pgx.Tx) error {
		for _, ev := range events {
			citations := ev.Citations
			if citations == nil {
				citations = []types.Citation{}
			}
			citationsJSON, err := json.Marshal(citations)
			if err != nil {
				return fmt.Errorf("failed to marshal citations: %w", err)
			}
			tag, err := tx.Exec(ctx,
				`INSERT INTO events (job_id, date, event_text, citations, fingerprint)
				 VALUES ($1, $2, $3, $4, $5)
				 ON CONFLICT (job_id, fingerprint) DO NOTHING`,
				jobID, nullIfEmpty(ev.Date), ev.Event, citationsJSON,
				ident.EventFingerprint(ev.Date, ev.Event),
			)
			if err != nil {
				return fmt.Errorf("failed to insert event: %w", err)
			}
			inserted += int(tag.RowsAffected())
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to insert events: %w", err)
	}
	return inserted, nil
}

// ListEvents returns a job's events ordered by date, undated events last.
func (db *DB) ListEvents(ctx context.Context, jobID uuid.UUID) ([]Event, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, job_id, COALESCE(date, ''), event_text, citations, fingerprint, created_at
		 FROM events
		 WHERE job_id = $1
		 ORDER BY date ASC NULLS LAST, id ASC`,
		jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		var ev Event
		var citationsJSON []byte
		if err := rows.Scan(&ev.ID, &ev.JobID, &ev.Date, &ev.EventText, &citationsJSON,
			&ev.Fingerprint, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if ev.Citations, err = decodeCitations(citationsJSON); err != nil {
			return nil, fmt.Errorf("event %d: %w", ev.ID, err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// decodeCitations reads the citations column. NULL decodes to an empty list.
func decodeCitations(raw []byte) ([]types.Citation, error) {
	cites := []types.Citation{}
	if raw == nil {
		return cites, nil
	}
	if err := json.Unmarshal(raw, &cites); err != nil {
		return nil, fmt.Errorf("failed to decode citations: %w", err)
	}
	if cites == nil {
		cites = []types.Citation{}
	}
	return cites, nil
}
