package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/jonathan/subject-research/internal/db"
	"github.com/jonathan/subject-research/internal/queue"
	"github.com/jonathan/subject-research/internal/status"
	"github.com/jonathan/subject-research/internal/vectorstore"
)

// Index embeds a normalized document chunk by chunk and enqueues analysis.
// Documents whose trimmed text is shorter than MinTextLength are left
// normalized and trigger nothing.
func (p *Pipeline) Index(ctx context.Context, task queue.Task) error {
	logger := p.logger.With("stage", task.Stage, "job_id", task.JobID, "document_id", task.DocumentID)

	doc, src, err := p.loadDocument(ctx, task.DocumentID)
	if err != nil {
		return err
	}
	var job *db.Job
	if doc != nil {
		if job, err = p.Store.GetJob(ctx, doc.JobID); err != nil {
			return err
		}
	}
	if doc == nil || src == nil || job == nil {
		logger.Warn("document, source or job not found, skipping index")
		return nil
	}

	text, err := p.Blobs.Get(ctx, doc.TextLocation)
	if err != nil {
		return p.fail(task, logger, fmt.Errorf("failed to read normalized text: %w", err), func() error {
			return p.Store.UpdateDocumentStatus(ctx, doc.ID, status.DocumentIndexFailed)
		})
	}
	if utf8.RuneCountInString(strings.TrimSpace(string(text))) < p.settings.MinTextLength {
		logger.Info("too little text, skipping embedding", "length", utf8.RuneCount(text))
		return nil
	}

	var n int
	err = recovered(func() (err error) {
		n, err = p.index(ctx, job, doc, src, string(text))
		return err
	})
	if err == nil {
		err = p.Store.UpdateDocumentStatus(ctx, doc.ID, status.DocumentIndexed)
		if errors.Is(err, db.ErrNotApplied) {
			logger.Warn("document no longer normalized, chunks refreshed only", "status", doc.Status)
			return nil
		}
	}
	if err != nil {
		return p.fail(task, logger, err, func() error {
			return p.Store.UpdateDocumentStatus(ctx, doc.ID, status.DocumentIndexFailed)
		})
	}

	logger.Info("document indexed", "chunks", n)
	if err := p.enqueue(ctx, queue.Task{Stage: queue.StageAnalyze, JobID: job.ID, Subject: job.Subject}); err != nil {
		return err
	}
	p.progress(task, fmt.Sprintf("indexed %d chunks", n))
	return nil
}

func (p *Pipeline) index(ctx context.Context, job *db.Job, doc *db.Document, src *db.Source, text string) (int, error) {
	windows := Chunk(text, p.settings.ChunkSize)
	chunks := make([]vectorstore.Chunk, 0, len(windows))
	for i, w := range windows {
		vec, err := p.Embedder.Embed(ctx, Truncate(w, p.settings.EmbedPrefix))
		if err != nil {
			return 0, fmt.Errorf("failed to embed chunk %d: %w", i, err)
		}
		chunks = append(chunks, vectorstore.NewChunk(doc.ID, i, vec, vectorstore.Payload{
			JobID:       job.ID,
			Subject:     job.Subject,
			SourceURL:   src.URL,
			PublishedAt: src.PublishedAt,
			Kind:        src.Kind,
			Text:        Truncate(w, p.settings.PayloadPrefix),
		}))
	}
	if err := p.Vectors.Upsert(ctx, chunks); err != nil {
		return 0, fmt.Errorf("failed to upsert chunks: %w", err)
	}
	return len(chunks), nil
}

// Chunk splits text into contiguous, non-overlapping windows of size runes.
// The last window may be shorter; joining the windows yields text.
func Chunk(text string, size int) []string {
	if text == "" {
		return nil
	}
	if size <= 0 {
		return []string{text}
	}
	runes := []rune(text)
	out := make([]string, 0, (len(runes)+size-1)/size)
	for start := 0; start < len(runes); start += size {
		end := min(start+size, len(runes))
		out = append(out, string(runes[start:end]))
	}
	return out
}

// Truncate returns at most the first n runes of s.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
