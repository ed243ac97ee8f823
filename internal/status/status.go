// Package status defines the lifecycle labels of jobs, sources and documents
// and the transitions allowed between them.
package status

import (
	"fmt"
	"slices"
)

// Kind identifies which entity a status label belongs to.
type Kind string

// Entity kinds
const (
	KindJob      Kind = "job"
	KindSource   Kind = "source"
	KindDocument Kind = "document"
)

// Job statuses
const (
	JobQueued         = "queued"
	JobDiscovering    = "discovering"
	JobFetching       = "fetching"
	JobAnalyzing      = "analyzing"
	JobComplete       = "complete"
	JobAnalysisFailed = "analysis_failed"
)

// Source statuses
const (
	SourceQueued          = "queued"
	SourceFetched         = "fetched"
	SourceFetchFailed     = "fetch_failed"
	SourceBlockedByRobots = "blocked_by_robots"
)

// Document statuses
const (
	DocumentFetched         = "fetched"
	DocumentNormalized      = "normalized"
	DocumentIndexed         = "indexed"
	DocumentNormalizeFailed = "normalize_failed"
	DocumentIndexFailed     = "index_failed"
)

var enumerations = map[Kind][]string{
	KindJob:      {JobQueued, JobDiscovering, JobFetching, JobAnalyzing, JobComplete, JobAnalysisFailed},
	KindSource:   {SourceQueued, SourceFetched, SourceFetchFailed, SourceBlockedByRobots},
	KindDocument: {DocumentFetched, DocumentNormalized, DocumentIndexed, DocumentNormalizeFailed, DocumentIndexFailed},
}

// predecessors lists, per target status, the statuses it may be entered from.
// Job statuses are absent: jobs may move between any two labels except out of
// analysis_failed.
var predecessors = map[Kind]map[string][]string{
	KindSource: {
		SourceFetched:         {SourceQueued},
		SourceFetchFailed:     {SourceQueued},
		SourceBlockedByRobots: {SourceQueued},
	},
	KindDocument: {
		DocumentNormalized:      {DocumentFetched},
		DocumentNormalizeFailed: {DocumentFetched},
		DocumentIndexed:         {DocumentNormalized},
		DocumentIndexFailed:     {DocumentNormalized},
	},
}

var terminal = map[Kind][]string{
	KindJob:      {JobAnalysisFailed},
	KindSource:   {SourceFetched, SourceFetchFailed, SourceBlockedByRobots},
	KindDocument: {DocumentIndexed, DocumentNormalizeFailed, DocumentIndexFailed},
}

// InvalidError reports a status label outside its entity's enumeration.
type InvalidError struct {
	Kind   Kind
	Status string
}

func (e *InvalidError) Error() string {
	return fmt.Sprintf("invalid %s status %q", e.Kind, e.Status)
}

// Values returns the enumeration for kind.
func Values(kind Kind) []string {
	return slices.Clone(enumerations[kind])
}

// Valid reports whether s belongs to kind's enumeration.
func Valid(kind Kind, s string) bool {
	return slices.Contains(enumerations[kind], s)
}

// Check returns an *InvalidError when s is not a valid label for kind.
func Check(kind Kind, s string) error {
	if !Valid(kind, s) {
		return &InvalidError{Kind: kind, Status: s}
	}
	return nil
}

// IsTerminal reports whether no further transition is allowed out of s.
func IsTerminal(kind Kind, s string) bool {
	return slices.Contains(terminal[kind], s)
}

// CanTransition reports whether an entity of kind may move from one status to another.
func CanTransition(kind Kind, from, to string) bool {
	if !Valid(kind, from) || !Valid(kind, to) {
		return false
	}
	if kind == KindJob {
		return from != JobAnalysisFailed
	}
	return slices.Contains(predecessors[kind][to], from)
}

// AllowedFrom returns every status that may transition into to.
// Stores use it to guard updates with a single conditional write.
func AllowedFrom(kind Kind, to string) []string {
	var out []string
	for _, from := range enumerations[kind] {
		if CanTransition(kind, from, to) {
			out = append(out, from)
		}
	}
	return out
}
