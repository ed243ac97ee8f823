package pipeline

import (
	"context"
	"errors"

	"github.com/jonathan/subject-research/internal/db"
	"github.com/jonathan/subject-research/internal/queue"
	"github.com/jonathan/subject-research/internal/status"
)

// Discover finds candidate sources for the job's subject, persists one queued
// source per unique URL and enqueues a fetch for each new source.
func (p *Pipeline) Discover(ctx context.Context, task queue.Task) error {
	logger := p.logger.With("stage", task.Stage, "job_id", task.JobID)

	subject := task.Subject
	if subject == "" {
		job, err := p.Store.GetJob(ctx, task.JobID)
		if err != nil {
			return err
		}
		if job == nil {
			logger.Warn("job not found, skipping discovery")
			return nil
		}
		subject = job.Subject
	}

	if err := p.tracker.Set(ctx, task.JobID, status.JobDiscovering); err != nil {
		if errors.Is(err, db.ErrNotApplied) {
			logger.Warn("job missing or no longer accepts discovery", "error", err)
			return nil
		}
		return err
	}

	items := p.Discovery.Discover(ctx, subject)
	logger.Info("discovery finished", "items", len(items))

	sources, err := p.Store.CreateSources(ctx, task.JobID, items)
	if err != nil {
		if p.Retry.ShouldRetry(task) {
			return p.Retry.Retry(err)
		}
		return err
	}

	for _, s := range sources {
		item := s.Item()
		next := queue.Task{Stage: queue.StageFetch, JobID: task.JobID, SourceID: s.ID, Item: &item}
		if err := p.enqueue(ctx, next); err != nil {
			return err
		}
	}
	if len(sources) == 0 {
		logger.Warn("no sources discovered, job will stay in fetching", "subject", subject)
	}

	if err := p.tracker.Set(ctx, task.JobID, status.JobFetching); err != nil {
		return err
	}
	p.progress(task, "discovered sources")
	return nil
}
