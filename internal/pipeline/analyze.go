package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonathan/subject-research/internal/db"
	"github.com/jonathan/subject-research/internal/queue"
	"github.com/jonathan/subject-research/internal/status"
)

// Analyze synthesizes the job's timeline from everything indexed so far and
// merges the events into the stored timeline. Repeated runs add only events
// not already recorded.
func (p *Pipeline) Analyze(ctx context.Context, task queue.Task) error {
	logger := p.logger.With("stage", task.Stage, "job_id", task.JobID)

	if err := p.tracker.Set(ctx, task.JobID, status.JobAnalyzing); err != nil {
		if errors.Is(err, db.ErrNotApplied) {
			logger.Warn("job missing or analysis already failed, skipping")
			return nil
		}
		return err
	}

	job, err := p.Store.GetJob(ctx, task.JobID)
	if err != nil {
		return err
	}
	if job == nil {
		logger.Warn("job not found, skipping analysis")
		return nil
	}

	var added, total int
	err = recovered(func() (err error) {
		added, total, err = p.analyze(ctx, job)
		return err
	})
	if err != nil {
		return p.fail(task, logger, err, func() error {
			return p.tracker.Set(ctx, job.ID, status.JobAnalysisFailed)
		})
	}

	if err := p.tracker.Set(ctx, job.ID, status.JobComplete); err != nil {
		return err
	}
	logger.Info("timeline updated", "events", total, "new", added)
	p.progress(task, fmt.Sprintf("timeline has %d new events", added))
	return nil
}

func (p *Pipeline) analyze(ctx context.Context, job *db.Job) (added, total int, err error) {
	events, err := p.Timeline.Synthesize(ctx, job.ID, job.Subject)
	if err != nil {
		return 0, 0, err
	}
	added, err = p.Store.InsertEvents(ctx, job.ID, events)
	if err != nil {
		return 0, 0, err
	}
	return added, len(events), nil
}
