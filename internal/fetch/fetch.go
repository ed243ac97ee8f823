// Package fetch retrieves source content over HTTP while honoring robots.txt,
// per-host politeness limits and an optional headless-browser fallback.
package fetch

import (
	"fmt"
	"time"
)

const (
	// DefaultTimeout bounds a single request when the configuration leaves it unset.
	DefaultTimeout = 30 * time.Second
	// DefaultUserAgent identifies the crawler to the sites it visits.
	DefaultUserAgent = "SubjectResearchBot/1.0"
	// MaxBodySize caps how many bytes of a response body are read.
	MaxBodySize = 25 << 20
)

// Result is a successfully fetched source.
type Result struct {
	URL         string
	Body        []byte
	ContentType string
	StatusCode  int
	// Rendered is set when Body came from the headless browser.
	Rendered bool
}

// Error describes why a source could not be fetched. StatusCode is set when
// the server answered with a non-2xx status.
type Error struct {
	URL        string
	StatusCode int
	Message    string
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("fetch %s: %s", e.URL, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}
