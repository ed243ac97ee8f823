package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonathan/subject-research/internal/db"
	"github.com/jonathan/subject-research/internal/fetch"
	"github.com/jonathan/subject-research/internal/ident"
	"github.com/jonathan/subject-research/internal/queue"
	"github.com/jonathan/subject-research/internal/status"
	"github.com/jonathan/subject-research/internal/types"
)

// Fetch downloads one source, stores its raw bytes and records a document.
// A URL disallowed by robots.txt ends as blocked_by_robots with no document.
func (p *Pipeline) Fetch(ctx context.Context, task queue.Task) error {
	logger := p.logger.With("stage", task.Stage, "job_id", task.JobID, "source_id", task.SourceID)

	item := task.Item
	if item == nil {
		src, err := p.Store.GetSource(ctx, task.SourceID)
		if err != nil {
			return err
		}
		if src == nil {
			logger.Warn("source not found, skipping fetch")
			return nil
		}
		it := src.Item()
		item = &it
	}
	logger = logger.With("url", item.URL)

	if !p.Fetcher.Allowed(ctx, item.URL) {
		logger.Info("fetch disallowed by robots.txt")
		p.setSourceStatus(ctx, task, status.SourceBlockedByRobots)
		return nil
	}

	var doc *db.Document
	err := recovered(func() (err error) {
		doc, err = p.fetchDocument(ctx, task, item)
		return err
	})
	if err != nil {
		return p.fail(task, logger, err, func() error {
			return p.Store.UpdateSourceStatus(ctx, task.SourceID, status.SourceFetchFailed)
		})
	}
	if doc == nil {
		logger.Warn("source already left queued, document not created")
		return nil
	}

	logger.Debug("document created", "document_id", doc.ID, "mime_type", doc.MimeType)
	if err := p.enqueue(ctx, queue.Task{Stage: queue.StageNormalize, JobID: task.JobID, DocumentID: doc.ID}); err != nil {
		return err
	}
	p.progress(task, "fetched "+item.URL)
	return nil
}

// fetchDocument returns nil, nil when the source was already processed.
func (p *Pipeline) fetchDocument(ctx context.Context, task queue.Task, item *types.DiscoveryItem) (*db.Document, error) {
	res, err := p.Fetcher.Get(ctx, item.URL)
	if err != nil {
		return nil, err
	}

	class := fetch.Classify(res.ContentType, item.URL)
	key := ident.RawKey(task.JobID, res.Body, class.Ext)
	location, err := p.Blobs.Put(ctx, key, res.Body, class.MIME)
	if err != nil {
		return nil, fmt.Errorf("failed to store raw content: %w", err)
	}

	doc, err := p.Store.CreateDocument(ctx, &db.DocumentInput{
		JobID:        task.JobID,
		SourceID:     task.SourceID,
		FileLocation: location,
		MimeType:     class.MIME,
	})
	if errors.Is(err, db.ErrNotApplied) {
		return nil, nil
	}
	return doc, err
}

func (p *Pipeline) setSourceStatus(ctx context.Context, task queue.Task, to string) {
	err := p.Store.UpdateSourceStatus(ctx, task.SourceID, to)
	switch {
	case errors.Is(err, db.ErrNotApplied):
		p.logger.Warn("source status not updated", "source_id", task.SourceID, "status", to)
	case err != nil:
		p.logger.Error("failed to update source status", "source_id", task.SourceID, "status", to, "error", err)
	}
}
