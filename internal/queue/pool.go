package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// Handler processes one task. Returning a *RetryError re-enqueues it; any
// other error is logged and the task is dropped.
type Handler func(ctx context.Context, task Task) error

// Pool runs handlers for dequeued tasks on a fixed number of workers.
type Pool struct {
	queue       Queue
	handlers    map[Stage]Handler
	policy      RetryPolicy
	concurrency int
	poll        time.Duration
	logger      *slog.Logger
}

// NewPool creates a pool of concurrency workers polling q every poll when idle.
func NewPool(q Queue, policy RetryPolicy, concurrency int, poll time.Duration, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &Pool{
		queue:       q,
		handlers:    make(map[Stage]Handler),
		policy:      policy,
		concurrency: concurrency,
		poll:        poll,
		logger:      logger,
	}
}

// Handle binds h to stage, replacing any previous handler.
func (p *Pool) Handle(stage Stage, h Handler) {
	p.handlers[stage] = h
}

// Run processes tasks until ctx is cancelled.
func (p *Pool) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < p.concurrency; i++ {
		worker := i
		g.Go(func() error {
			p.logger.Debug("worker started", "worker", worker)
			for {
				ran, err := p.RunOnce(ctx)
				if err != nil {
					p.logger.Error("worker failed to dequeue", "worker", worker, "error", err)
				}
				if ran && err == nil {
					continue
				}
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(p.poll):
				}
			}
		})
	}
	return g.Wait()
}

// RunOnce processes at most one due task and reports whether it found one.
func (p *Pool) RunOnce(ctx context.Context) (bool, error) {
	task, err := p.queue.Dequeue(ctx)
	if err != nil {
		return false, err
	}
	if task == nil {
		return false, nil
	}
	p.process(ctx, *task)
	return true, nil
}

// Drain processes tasks until none is due.
func (p *Pool) Drain(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		ran, err := p.RunOnce(ctx)
		if err != nil {
			return err
		}
		if !ran {
			return nil
		}
	}
}

func (p *Pool) process(ctx context.Context, task Task) {
	logger := p.logger.With("task_id", task.ID, "stage", task.Stage, "job_id", task.JobID, "attempt", task.Attempt)

	err := p.call(ctx, task)
	if re, ok := AsRetry(err); ok {
		if p.policy.ShouldRetry(task) {
			next := task
			next.ID = 0
			next.Attempt++
			next.RunAt = time.Now().Add(re.After)
			if enqErr := p.queue.Enqueue(ctx, next); enqErr != nil {
				logger.Error("failed to re-enqueue task", "error", enqErr)
				return
			}
			logger.Info("task scheduled for retry", "after", re.After, "error", re.Err)
		} else {
			logger.Error("task retries exhausted", "error", re.Err)
		}
	} else if err != nil {
		logger.Error("task failed", "error", err)
	}

	if ackErr := p.queue.Ack(ctx, task.ID); ackErr != nil {
		logger.Error("failed to ack task", "error", ackErr)
	}
}

// call runs the stage handler, turning a panic into an error.
func (p *Pool) call(ctx context.Context, task Task) (err error) {
	h, ok := p.handlers[task.Stage]
	if !ok {
		return fmt.Errorf("no handler for stage %q", task.Stage)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return h(ctx, task)
}
