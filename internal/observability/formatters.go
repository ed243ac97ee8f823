// Package observability provides formatted output utilities for the CLI.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/subject-research/internal/db"
	"github.com/jonathan/subject-research/internal/pipeline"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 72
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 10
)

// Printer handles formatted output for CLI commands
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, clip(line, boxWidth-4))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// clip shortens s to at most n runes, marking the cut with "...".
func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// PrintJobStatus outputs a job's status and document progress.
func (p *Printer) PrintJobStatus(job *db.Job, progress *db.JobProgress) {
	if job == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Job:      %s\n", job.ID))
	sb.WriteString(fmt.Sprintf("Subject:  %s\n", job.Subject))
	sb.WriteString(fmt.Sprintf("Status:   %s\n", job.Status))
	if progress != nil {
		sb.WriteString(fmt.Sprintf("Progress: %d/%d documents finished\n", progress.Finished, progress.Total))
	}
	sb.WriteString(fmt.Sprintf("Updated:  %s", job.UpdatedAt.Format("2006-01-02 15:04:05")))

	p.printBox("RESEARCH JOB", sb.String())
}

// PrintSources outputs the first sources of a job with their fetch status.
func (p *Printer) PrintSources(sources []db.Source) {
	if len(sources) == 0 {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Total sources: %d\n\n", len(sources)))

	count := min(len(sources), maxItemsToShow)
	for i := 0; i < count; i++ {
		s := sources[i]
		sb.WriteString(fmt.Sprintf("• [%s] %s\n", s.Status, s.URL))
		sb.WriteString(fmt.Sprintf("  %s via %s (%.2f)\n", s.Kind, s.Provider, s.Confidence))
	}

	if len(sources) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("\n... and %d more sources", len(sources)-maxItemsToShow))
	}

	p.printBox("SOURCES", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintTimeline outputs every event of a timeline with its citations.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintTimeline(subject string, events []db.Event) {
	if len(events) == 0 {
		fmt.Fprintf(p.out, "┌%s┐\n", strings.Repeat("─", boxWidth-2))
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, "NO TIMELINE EVENTS FOR "+strings.ToUpper(clip(subject, 40)))
		fmt.Fprintf(p.out, "└%s┘\n", strings.Repeat("─", boxWidth-2))
		return
	}

	var sb strings.Builder
	for i, e := range events {
		date := e.Date
		if date == "" {
			date = "undated"
		}
		sb.WriteString(fmt.Sprintf("%s  %s\n", date, e.EventText))
		for _, c := range e.Citations {
			sb.WriteString(fmt.Sprintf("    ↳ %s\n", c.URL))
		}
		if i < len(events)-1 {
			sb.WriteString("\n")
		}
	}

	p.printBox("TIMELINE: "+subject, strings.TrimSuffix(sb.String(), "\n"))
}

// PrintProgress outputs a single progress line for a stage event.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintProgress(event pipeline.ProgressEvent) {
	ref := ""
	switch {
	case event.DocumentID != 0:
		ref = fmt.Sprintf(" doc=%d", event.DocumentID)
	case event.SourceID != 0:
		ref = fmt.Sprintf(" source=%d", event.SourceID)
	}
	fmt.Fprintf(p.out, "[%-9s] %s%s %s\n", event.Stage, shortID(event.JobID), ref, event.Message)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
