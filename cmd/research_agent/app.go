package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jonathan/subject-research/internal/blob"
	"github.com/jonathan/subject-research/internal/config"
	"github.com/jonathan/subject-research/internal/db"
	"github.com/jonathan/subject-research/internal/discovery"
	"github.com/jonathan/subject-research/internal/fetch"
	"github.com/jonathan/subject-research/internal/llm"
	"github.com/jonathan/subject-research/internal/pipeline"
	"github.com/jonathan/subject-research/internal/queue"
	"github.com/jonathan/subject-research/internal/timeline"
	"github.com/jonathan/subject-research/internal/vectorstore"
)

// app holds the connections a command opened so they can be closed together.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	db       *db.DB
	queue    *queue.Postgres
	blobs    blob.Store
	model    llm.Client
	pipeline *pipeline.Pipeline
}

// openControl connects only what is needed to create jobs and enqueue work.
func openControl(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	a := &app{
		cfg:    cfg,
		logger: logger,
		db:     database,
		queue:  queue.NewPostgres(database.Pool(), cfg.Lease()),
	}
	a.pipeline = pipeline.New(pipeline.Deps{
		Store:  a.db,
		Queue:  a.queue,
		Retry:  queue.PolicyFromConfig(cfg.Worker),
		Logger: logger,
	}, pipeline.SettingsFromConfig(cfg.Index))
	return a, nil
}

// openWorker connects every collaborator the stage handlers need.
func openWorker(ctx context.Context, cfg *config.Config, logger *slog.Logger, onProgress pipeline.ProgressCallback) (*app, error) {
	a, err := openControl(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	a.blobs, err = blob.Open(ctx, cfg.Blob)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to open blob store: %w", err)
	}

	a.model, err = llm.NewClient(ctx, llm.FromSettings(cfg.LLM), cfg.LLM.APIKey)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	providers, err := discovery.FromConfig(ctx, cfg.Discovery, cfg.Fetch.UserAgent, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to configure discovery: %w", err)
	}
	logger.Info("discovery providers enabled", "providers", providers.Providers())

	vectors := vectorstore.NewPostgres(a.db.Pool(), cfg.LLM.EmbeddingDim)

	a.pipeline = pipeline.New(pipeline.Deps{
		Store:      a.db,
		Blobs:      a.blobs,
		Queue:      a.queue,
		Discovery:  providers,
		Fetcher:    fetch.NewClient(cfg.Fetch, logger),
		Embedder:   a.model,
		Vectors:    vectors,
		Timeline:   timeline.New(a.model, vectors, logger),
		Retry:      queue.PolicyFromConfig(cfg.Worker),
		Logger:     logger,
		OnProgress: onProgress,
	}, pipeline.SettingsFromConfig(cfg.Index))
	return a, nil
}

// Close releases everything the app opened.
func (a *app) Close() {
	var errs []error
	if a.model != nil {
		errs = append(errs, a.model.Close())
	}
	if a.blobs != nil {
		errs = append(errs, a.blobs.Close())
	}
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn("error closing resources", "error", err)
	}
	if a.db != nil {
		a.db.Close()
	}
}
