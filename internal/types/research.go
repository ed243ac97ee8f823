// Package types provides type definitions for structured data used throughout the research pipeline.
package types

import (
	"github.com/go-playground/validator/v10"
)

// Discovery item kinds
const (
	KindWebpage  = "webpage"
	KindPDF      = "pdf"
	KindFeed     = "rss"
	KindDocument = "filing"
)

// DefaultConfidence is used when a provider does not score its results.
const DefaultConfidence = 0.5

// DiscoveryItem is a candidate source returned by a discovery provider.
// It is never persisted directly; the URL is its uniqueness key.
type DiscoveryItem struct {
	URL         string  `json:"url"`
	Kind        string  `json:"kind"`
	Provider    string  `json:"source"`
	Title       string  `json:"title,omitempty"`
	PublishedAt string  `json:"published_at,omitempty"`
	Confidence  float64 `json:"confidence"`
}

// Citation points a timeline event back to the material it was derived from.
type Citation struct {
	URL   string `json:"url"`
	Label string `json:"label"`
}

// TimelineEvent is one dated entry produced by timeline synthesis.
// Date is free-form ("2021", "2021-04-03") and may be empty.
type TimelineEvent struct {
	Date      string     `json:"date"`
	Event     string     `json:"event"`
	Citations []Citation `json:"citations"`
}

// StartJobRequest is the request to research a subject.
type StartJobRequest struct {
	Subject string `json:"subject" validate:"required,min=2,max=200"`
}

// Validate validates the StartJobRequest using the validator.
func (r *StartJobRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}
