// Package pipeline provides the stage handlers that research a subject:
// discover, fetch, normalize, index and analyze. Each handler loads what it
// needs from the store, writes its artifact and enqueues the next stage.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/subject-research/internal/blob"
	"github.com/jonathan/subject-research/internal/config"
	"github.com/jonathan/subject-research/internal/db"
	"github.com/jonathan/subject-research/internal/fetch"
	"github.com/jonathan/subject-research/internal/queue"
	"github.com/jonathan/subject-research/internal/status"
	"github.com/jonathan/subject-research/internal/types"
	"github.com/jonathan/subject-research/internal/vectorstore"
)

// ErrJobNotFound is returned by operations addressed to a job that does not exist.
var ErrJobNotFound = errors.New("job not found")

// Store is the relational state the stages read and write.
type Store interface {
	CreateJob(ctx context.Context, subject string) (*db.Job, error)
	GetJob(ctx context.Context, jobID uuid.UUID) (*db.Job, error)
	UpdateJobStatus(ctx context.Context, jobID uuid.UUID, to string, at time.Time) error

	CreateSources(ctx context.Context, jobID uuid.UUID, items []types.DiscoveryItem) ([]db.Source, error)
	GetSource(ctx context.Context, sourceID int64) (*db.Source, error)
	ListSources(ctx context.Context, jobID uuid.UUID, filters db.SourceFilters) ([]db.Source, error)
	UpdateSourceStatus(ctx context.Context, sourceID int64, to string) error

	CreateDocument(ctx context.Context, input *db.DocumentInput) (*db.Document, error)
	GetDocument(ctx context.Context, documentID int64) (*db.Document, error)
	SetDocumentText(ctx context.Context, documentID int64, textLocation string) error
	UpdateDocumentStatus(ctx context.Context, documentID int64, to string) error

	InsertEvents(ctx context.Context, jobID uuid.UUID, events []types.TimelineEvent) (int, error)
}

// Discoverer returns the deduplicated candidate sources for a subject.
type Discoverer interface {
	Discover(ctx context.Context, subject string) []types.DiscoveryItem
}

// Fetcher downloads source URLs subject to the crawl policy.
type Fetcher interface {
	Allowed(ctx context.Context, rawURL string) bool
	Get(ctx context.Context, rawURL string) (*fetch.Result, error)
}

// Embedder maps text to a fixed-length vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Synthesizer produces a job's timeline from its indexed content.
type Synthesizer interface {
	Synthesize(ctx context.Context, jobID uuid.UUID, subject string) ([]types.TimelineEvent, error)
}

// ProgressEvent represents a progress update during pipeline execution
type ProgressEvent struct {
	Stage      queue.Stage `json:"stage"`
	JobID      string      `json:"job_id"`
	SourceID   int64       `json:"source_id,omitempty"`
	DocumentID int64       `json:"document_id,omitempty"`
	Message    string      `json:"message"`
}

// ProgressCallback is called when a stage finishes a unit of work
type ProgressCallback func(event ProgressEvent)

// Deps holds the collaborators of every stage.
type Deps struct {
	Store      Store
	Blobs      blob.Store
	Queue      queue.Queue
	Discovery  Discoverer
	Fetcher    Fetcher
	Embedder   Embedder
	Vectors    vectorstore.Store
	Timeline   Synthesizer
	Retry      queue.RetryPolicy
	Logger     *slog.Logger
	OnProgress ProgressCallback
}

// Settings sizes chunking and embedding input, in characters.
type Settings struct {
	ChunkSize     int
	EmbedPrefix   int
	PayloadPrefix int
	MinTextLength int
}

// DefaultSettings returns the chunking defaults.
func DefaultSettings() Settings {
	return Settings{
		ChunkSize:     1500,
		EmbedPrefix:   1000,
		PayloadPrefix: 1200,
		MinTextLength: 200,
	}
}

// SettingsFromConfig converts the index configuration.
func SettingsFromConfig(cfg config.IndexConfig) Settings {
	return Settings{
		ChunkSize:     cfg.ChunkSize,
		EmbedPrefix:   cfg.EmbedPrefix,
		PayloadPrefix: cfg.PayloadPrefix,
		MinTextLength: cfg.MinTextLength,
	}
}

// Pipeline runs the research stages.
type Pipeline struct {
	Deps
	settings Settings
	tracker  *status.Tracker
	logger   *slog.Logger
}

// New creates a Pipeline.
func New(deps Deps, settings Settings) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Retry.DefaultMaxAttempts == 0 && deps.Retry.MaxAttempts == nil {
		deps.Retry = queue.NoRetry()
	}
	return &Pipeline{
		Deps:     deps,
		settings: settings,
		tracker:  status.NewTracker(deps.Store, logger),
		logger:   logger,
	}
}

// Register binds every stage handler to pool.
func (p *Pipeline) Register(pool *queue.Pool) {
	pool.Handle(queue.StageDiscover, p.Discover)
	pool.Handle(queue.StageFetch, p.Fetch)
	pool.Handle(queue.StageNormalize, p.Normalize)
	pool.Handle(queue.StageIndex, p.Index)
	pool.Handle(queue.StageAnalyze, p.Analyze)
}

// StartJob creates a queued job for subject and enqueues its discovery.
func (p *Pipeline) StartJob(ctx context.Context, subject string) (*db.Job, error) {
	job, err := p.Store.CreateJob(ctx, subject)
	if err != nil {
		return nil, err
	}
	if err := p.enqueue(ctx, queue.Task{Stage: queue.StageDiscover, JobID: job.ID, Subject: subject}); err != nil {
		return nil, err
	}
	p.logger.Info("job started", "job_id", job.ID, "subject", subject)
	return job, nil
}

// RequeueAnalysis enqueues a fresh timeline analysis for a job.
func (p *Pipeline) RequeueAnalysis(ctx context.Context, jobID uuid.UUID) error {
	job, err := p.Store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job == nil {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	return p.enqueue(ctx, queue.Task{Stage: queue.StageAnalyze, JobID: job.ID, Subject: job.Subject})
}

// requeuePage is how many queued sources RequeueFetch lists per page.
var requeuePage = db.MaxListLimit

// RequeueFetch enqueues a fetch for every source of the job still queued and
// returns how many were enqueued.
func (p *Pipeline) RequeueFetch(ctx context.Context, jobID uuid.UUID) (int, error) {
	filters := db.SourceFilters{Status: status.SourceQueued, Limit: requeuePage}
	total := 0
	for {
		sources, err := p.Store.ListSources(ctx, jobID, filters)
		if err != nil {
			return total, err
		}
		for _, s := range sources {
			item := s.Item()
			if err := p.enqueue(ctx, queue.Task{Stage: queue.StageFetch, JobID: jobID, SourceID: s.ID, Item: &item}); err != nil {
				return total, err
			}
			total++
		}
		if len(sources) < requeuePage {
			return total, nil
		}
		filters.BeforeID = sources[len(sources)-1].ID
	}
}

func (p *Pipeline) enqueue(ctx context.Context, task queue.Task) error {
	if err := p.Queue.Enqueue(ctx, task); err != nil {
		return fmt.Errorf("failed to enqueue %s: %w", task.Stage, err)
	}
	return nil
}

func (p *Pipeline) progress(task queue.Task, msg string) {
	if p.OnProgress == nil {
		return
	}
	p.OnProgress(ProgressEvent{
		Stage:      task.Stage,
		JobID:      task.JobID.String(),
		SourceID:   task.SourceID,
		DocumentID: task.DocumentID,
		Message:    msg,
	})
}

// ErrStagePanic wraps a panic raised by a stage's work or its collaborators.
var ErrStagePanic = errors.New("stage panicked")

// recovered runs fn and turns a panic into an error, so the stage still gets
// to record its failure status.
func recovered(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrStagePanic, r)
		}
	}()
	return fn()
}

// fail records a terminal failure unless the retry policy allows another
// attempt, in which case the returned error re-enqueues the task.
func (p *Pipeline) fail(task queue.Task, logger *slog.Logger, err error, record func() error) error {
	if p.Retry.ShouldRetry(task) {
		logger.Warn("stage failed, retrying", "error", err)
		return p.Retry.Retry(err)
	}
	logger.Error("stage failed", "error", err)
	if recErr := record(); recErr != nil && !errors.Is(recErr, db.ErrNotApplied) {
		return fmt.Errorf("failed to record failure: %w", recErr)
	}
	return nil
}
