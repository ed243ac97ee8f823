package db

import (
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/subject-research/internal/types"
)

// Job is one research run for a subject.
type Job struct {
	ID        uuid.UUID `json:"id"`
	Subject   string    `json:"subject"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Source is a deduplicated discovery result tied to a job.
type Source struct {
	ID          int64     `json:"id"`
	JobID       uuid.UUID `json:"job_id"`
	URL         string    `json:"url"`
	Kind        string    `json:"kind"`
	Provider    string    `json:"source"`
	Title       string    `json:"title,omitempty"`
	PublishedAt string    `json:"published_at,omitempty"`
	Confidence  float64   `json:"confidence"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// Item returns the discovery fields of the source.
func (s *Source) Item() types.DiscoveryItem {
	return types.DiscoveryItem{
		URL:         s.URL,
		Kind:        s.Kind,
		Provider:    s.Provider,
		Title:       s.Title,
		PublishedAt: s.PublishedAt,
		Confidence:  s.Confidence,
	}
}

// Document is the fetched artifact of exactly one source.
type Document struct {
	ID           int64     `json:"id"`
	JobID        uuid.UUID `json:"job_id"`
	SourceID     int64     `json:"source_id"`
	FileLocation string    `json:"file_location"`
	MimeType     string    `json:"mime_type"`
	TextLocation string    `json:"text_location,omitempty"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// DocumentInput is used when creating a document for a fetched source.
type DocumentInput struct {
	JobID        uuid.UUID
	SourceID     int64
	FileLocation string
	MimeType     string
}

// Event is one synthesized timeline entry.
type Event struct {
	ID          int64            `json:"id"`
	JobID       uuid.UUID        `json:"job_id"`
	Date        string           `json:"date,omitempty"`
	EventText   string           `json:"event"`
	Citations   []types.Citation `json:"citations"`
	Fingerprint string           `json:"-"`
	CreatedAt   time.Time        `json:"created_at"`
}

// JobProgress counts a job's documents. Finished documents are those that
// reached indexed or a failure status.
type JobProgress struct {
	Total    int `json:"total"`
	Finished int `json:"finished"`
}

// JobFilters holds optional filters for listing jobs
type JobFilters struct {
	Subject string
	Status  string
	Limit   int
}

// SourceFilters holds optional filters for listing a job's sources
type SourceFilters struct {
	Status string
	Limit  int
	// BeforeID pages backwards: only sources with a smaller ID are listed.
	BeforeID int64
}

// List limits
const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)
