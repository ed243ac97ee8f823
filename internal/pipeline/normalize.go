package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonathan/subject-research/internal/db"
	"github.com/jonathan/subject-research/internal/extract"
	"github.com/jonathan/subject-research/internal/fetch"
	"github.com/jonathan/subject-research/internal/ident"
	"github.com/jonathan/subject-research/internal/queue"
	"github.com/jonathan/subject-research/internal/status"
)

// TextContentType is the content type of normalized text objects.
const TextContentType = "text/plain; charset=utf-8"

// Normalize converts a document's stored raw bytes to plain text, stores the
// text and enqueues indexing. Unsupported types produce empty text.
func (p *Pipeline) Normalize(ctx context.Context, task queue.Task) error {
	logger := p.logger.With("stage", task.Stage, "job_id", task.JobID, "document_id", task.DocumentID)

	doc, src, err := p.loadDocument(ctx, task.DocumentID)
	if err != nil {
		return err
	}
	if doc == nil || src == nil {
		logger.Warn("document or source not found, skipping normalize")
		return nil
	}

	var location string
	err = recovered(func() (err error) {
		location, err = p.normalize(ctx, doc, src)
		return err
	})
	if err == nil {
		err = p.Store.SetDocumentText(ctx, doc.ID, location)
		if errors.Is(err, db.ErrNotApplied) {
			logger.Warn("document no longer fetched, skipping", "status", doc.Status)
			return nil
		}
	}
	if err != nil {
		return p.fail(task, logger, err, func() error {
			return p.Store.UpdateDocumentStatus(ctx, doc.ID, status.DocumentNormalizeFailed)
		})
	}

	if err := p.enqueue(ctx, queue.Task{Stage: queue.StageIndex, JobID: doc.JobID, DocumentID: doc.ID}); err != nil {
		return err
	}
	p.progress(task, "normalized "+src.URL)
	return nil
}

func (p *Pipeline) normalize(ctx context.Context, doc *db.Document, src *db.Source) (string, error) {
	raw, err := p.Blobs.Get(ctx, doc.FileLocation)
	if err != nil {
		return "", fmt.Errorf("failed to read raw content: %w", err)
	}

	var text string
	switch fetch.Classify(doc.MimeType, src.URL).Ext {
	case fetch.ExtHTML:
		text, err = extract.HTMLToText(raw, src.URL)
	case fetch.ExtPDF:
		text, err = extract.PDFToText(raw)
	}
	if err != nil {
		return "", fmt.Errorf("failed to extract text: %w", err)
	}

	location, err := p.Blobs.Put(ctx, ident.NormalizedKey(doc.JobID, doc.ID), []byte(text), TextContentType)
	if err != nil {
		return "", fmt.Errorf("failed to store normalized text: %w", err)
	}
	return location, nil
}

// loadDocument returns the document and its source; either is nil when missing.
func (p *Pipeline) loadDocument(ctx context.Context, documentID int64) (*db.Document, *db.Source, error) {
	doc, err := p.Store.GetDocument(ctx, documentID)
	if err != nil || doc == nil {
		return nil, nil, err
	}
	src, err := p.Store.GetSource(ctx, doc.SourceID)
	if err != nil {
		return nil, nil, err
	}
	return doc, src, nil
}
