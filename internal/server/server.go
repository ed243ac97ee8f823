// Package server provides the HTTP JSON API for starting research jobs and
// reading their progress, sources and timelines.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/subject-research/internal/config"
	"github.com/jonathan/subject-research/internal/db"
	"github.com/jonathan/subject-research/internal/server/ratelimit"
)

// Store is the read side of the relational store used by the API.
type Store interface {
	GetJob(ctx context.Context, jobID uuid.UUID) (*db.Job, error)
	ListJobs(ctx context.Context, filters db.JobFilters) ([]db.Job, error)
	JobProgress(ctx context.Context, jobID uuid.UUID) (*db.JobProgress, error)
	ListSources(ctx context.Context, jobID uuid.UUID, filters db.SourceFilters) ([]db.Source, error)
	ListEvents(ctx context.Context, jobID uuid.UUID) ([]db.Event, error)
}

// Jobs starts work on the pipeline.
type Jobs interface {
	StartJob(ctx context.Context, subject string) (*db.Job, error)
	RequeueAnalysis(ctx context.Context, jobID uuid.UUID) error
}

// Server represents the HTTP server
type Server struct {
	httpServer   *http.Server
	store        Store
	jobs         Jobs
	rateLimiter  *ratelimit.Limiter
	logger       *slog.Logger
	pollInterval time.Duration
	streamSettle time.Duration
}

// Config holds server configuration
type Config struct {
	Port int
	// StreamPollInterval is how often /jobs/{id}/stream re-reads the job.
	StreamPollInterval time.Duration
	// StreamSettle is how long a complete job's progress must stay unchanged
	// before its stream closes while documents are still in flight.
	StreamSettle time.Duration
	RateLimit          *ratelimit.Config
}

// New creates a new server instance
func New(cfg Config, store Store, jobs Jobs, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	poll := cfg.StreamPollInterval
	if poll <= 0 {
		poll = time.Second
	}
	settle := cfg.StreamSettle
	if settle <= 0 {
		settle = 30 * time.Second
	}
	rl := cfg.RateLimit
	if rl == nil {
		rl = ratelimit.FromSettings(config.Default().Server.RateLimit)
	}

	s := &Server{
		store:        store,
		jobs:         jobs,
		rateLimiter:  ratelimit.NewLimiter(rl),
		logger:       logger,
		pollInterval: poll,
		streamSettle: settle,
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // status streams stay open until the job finishes
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the router wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("POST /jobs", s.handleStartJob)
	mux.HandleFunc("GET /jobs", s.handleListJobs)
	mux.HandleFunc("GET /jobs/{id}", s.handleJobStatus)
	mux.HandleFunc("GET /jobs/{id}/sources", s.handleJobSources)
	mux.HandleFunc("GET /jobs/{id}/timeline", s.handleJobTimeline)
	mux.HandleFunc("GET /jobs/{id}/stream", s.handleJobStream)
	mux.HandleFunc("POST /jobs/{id}/analyze", s.handleRequeueAnalysis)

	return s.withRateLimit(s.withLogging(s.withCORS(mux)))
}

// Start serves requests until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		s.rateLimiter.Stop()
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	defer s.rateLimiter.Stop()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode JSON response", "error", err)
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}
