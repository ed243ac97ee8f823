package status

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// JobStatusWriter persists a job status change.
type JobStatusWriter interface {
	UpdateJobStatus(ctx context.Context, jobID uuid.UUID, status string, at time.Time) error
}

// Tracker is the single writer of job lifecycle status.
type Tracker struct {
	store  JobStatusWriter
	logger *slog.Logger
	now    func() time.Time
}

// NewTracker creates a Tracker writing through store.
func NewTracker(store JobStatusWriter, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{store: store, logger: logger, now: time.Now}
}

// Set records status for the job together with the current time.
func (t *Tracker) Set(ctx context.Context, jobID uuid.UUID, s string) error {
	if err := Check(KindJob, s); err != nil {
		return err
	}
	if err := t.store.UpdateJobStatus(ctx, jobID, s, t.now().UTC()); err != nil {
		return fmt.Errorf("failed to set job %s status %s: %w", jobID, s, err)
	}
	t.logger.Debug("job status updated", "job_id", jobID, "status", s)
	return nil
}
