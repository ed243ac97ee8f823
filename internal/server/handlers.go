package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/subject-research/internal/db"
	"github.com/jonathan/subject-research/internal/status"
	"github.com/jonathan/subject-research/internal/types"
)

// StartJobResponse represents the response for POST /jobs
type StartJobResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// JobStatusResponse represents the response for GET /jobs/{id}
type JobStatusResponse struct {
	JobID     string         `json:"job_id"`
	Subject   string         `json:"subject"`
	Status    string         `json:"status"`
	Progress  db.JobProgress `json:"progress"`
	CreatedAt string         `json:"created_at"`
	UpdatedAt string         `json:"updated_at"`
}

// SourcesResponse represents the response for GET /jobs/{id}/sources
type SourcesResponse struct {
	JobID   string      `json:"job_id"`
	Sources []db.Source `json:"sources"`
}

// TimelineResponse represents the response for GET /jobs/{id}/timeline
type TimelineResponse struct {
	JobID   string     `json:"job_id"`
	Subject string     `json:"subject"`
	Status  string     `json:"status"`
	Events  []db.Event `json:"events"`
}

// handleStartJob creates a job and enqueues its discovery
func (s *Server) handleStartJob(w http.ResponseWriter, r *http.Request) {
	var req types.StartJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		s.errorResponse(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	job, err := s.jobs.StartJob(r.Context(), req.Subject)
	if err != nil {
		s.logger.Error("failed to start job", "subject", req.Subject, "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "Failed to start job")
		return
	}

	s.jsonResponse(w, http.StatusAccepted, StartJobResponse{JobID: job.ID.String(), Status: job.Status})
}

// handleListJobs returns jobs newest first
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := db.JobFilters{Subject: q.Get("subject"), Status: q.Get("status")}

	if filters.Status != "" && !status.Valid(status.KindJob, filters.Status) {
		s.errorResponse(w, http.StatusBadRequest, "Invalid status: "+filters.Status)
		return
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 {
			s.errorResponse(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		filters.Limit = limit
	}

	jobs, err := s.store.ListJobs(r.Context(), filters)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Database error: "+err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"jobs": jobs, "count": len(jobs)})
}

// handleJobStatus returns a job's status and document progress
func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	job, ok := s.loadJob(w, r)
	if !ok {
		return
	}
	resp, err := s.jobStatus(r, job)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Database error: "+err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, resp)
}

// handleJobSources returns the job's newest sources
func (s *Server) handleJobSources(w http.ResponseWriter, r *http.Request) {
	job, ok := s.loadJob(w, r)
	if !ok {
		return
	}
	filters := db.SourceFilters{Status: r.URL.Query().Get("status"), Limit: db.DefaultListLimit}
	if filters.Status != "" && !status.Valid(status.KindSource, filters.Status) {
		s.errorResponse(w, http.StatusBadRequest, "Invalid status: "+filters.Status)
		return
	}

	sources, err := s.store.ListSources(r.Context(), job.ID, filters)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Database error: "+err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, SourcesResponse{JobID: job.ID.String(), Sources: sources})
}

// handleJobTimeline returns the job's events ordered by date
func (s *Server) handleJobTimeline(w http.ResponseWriter, r *http.Request) {
	job, ok := s.loadJob(w, r)
	if !ok {
		return
	}
	events, err := s.store.ListEvents(r.Context(), job.ID)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Database error: "+err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, TimelineResponse{
		JobID:   job.ID.String(),
		Subject: job.Subject,
		Status:  job.Status,
		Events:  events,
	})
}

// handleRequeueAnalysis enqueues a fresh timeline analysis
func (s *Server) handleRequeueAnalysis(w http.ResponseWriter, r *http.Request) {
	job, ok := s.loadJob(w, r)
	if !ok {
		return
	}
	if job.Status == status.JobAnalysisFailed {
		s.errorResponse(w, http.StatusConflict, "Job analysis failed and cannot be retried")
		return
	}
	if err := s.jobs.RequeueAnalysis(r.Context(), job.ID); err != nil {
		s.logger.Error("failed to requeue analysis", "job_id", job.ID, "error", err)
		s.errorResponse(w, HTTPStatus(err), "Failed to requeue analysis")
		return
	}
	s.jsonResponse(w, http.StatusAccepted, StartJobResponse{JobID: job.ID.String(), Status: job.Status})
}

// handleJobStream sends a status event whenever the job's status or progress
// changes, until the job settles or the client disconnects. complete is
// provisional: every newly indexed document sends the job back to analyzing.
func (s *Server) handleJobStream(w http.ResponseWriter, r *http.Request) {
	job, ok := s.loadJob(w, r)
	if !ok {
		return
	}
	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	ctx := r.Context()
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	var last *JobStatusResponse
	var changedAt time.Time
	for {
		resp, err := s.jobStatus(r, job)
		if err != nil {
			sse.WriteError(err.Error())
			return
		}
		if last == nil || last.Status != resp.Status || last.Progress != resp.Progress {
			if err := sse.WriteEvent("status", resp); err != nil {
				return
			}
			last = resp
			changedAt = time.Now()
		} else if err := sse.Heartbeat(); err != nil {
			return
		}
		if s.settled(resp, changedAt) {
			sse.WriteComplete(resp.JobID, resp.Status)
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		job, err = s.store.GetJob(ctx, job.ID)
		if err != nil || job == nil {
			sse.WriteError("job no longer available")
			return
		}
	}
}

// settled reports whether a stream may close. analysis_failed is absorbing. A
// complete job is settled once every document has finished, or once its
// progress has stopped moving for streamSettle (documents too short to index
// never finish).
func (s *Server) settled(resp *JobStatusResponse, changedAt time.Time) bool {
	switch resp.Status {
	case status.JobAnalysisFailed:
		return true
	case status.JobComplete:
		return resp.Progress.Finished >= resp.Progress.Total || time.Since(changedAt) >= s.streamSettle
	default:
		return false
	}
}

func (s *Server) jobStatus(r *http.Request, job *db.Job) (*JobStatusResponse, error) {
	progress, err := s.store.JobProgress(r.Context(), job.ID)
	if err != nil {
		return nil, err
	}
	return &JobStatusResponse{
		JobID:     job.ID.String(),
		Subject:   job.Subject,
		Status:    job.Status,
		Progress:  *progress,
		CreatedAt: job.CreatedAt.Format(time.RFC3339),
		UpdatedAt: job.UpdatedAt.Format(time.RFC3339),
	}, nil
}

// loadJob parses the {id} path value and loads the job, writing the error
// response itself when it cannot.
func (s *Server) loadJob(w http.ResponseWriter, r *http.Request) (*db.Job, bool) {
	idStr := r.PathValue("id")
	if idStr == "" {
		s.errorResponse(w, http.StatusBadRequest, "Job ID is required")
		return nil, false
	}
	jobID, err := uuid.Parse(idStr)
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid job ID format")
		return nil, false
	}

	job, err := s.store.GetJob(r.Context(), jobID)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Database error: "+err.Error())
		return nil, false
	}
	if job == nil {
		s.errorResponse(w, http.StatusNotFound, (&ErrJobNotFound{JobID: idStr}).Error())
		return nil, false
	}
	return job, true
}
