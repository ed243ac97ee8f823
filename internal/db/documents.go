package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jonathan/subject-research/internal/status"
)

const documentColumns = `id, job_id, source_id, file_location, mime_type,
	COALESCE(text_location, ''), status, created_at, updated_at`

// -----------------------------------------------------------------------------
// Document Methods
// -----------------------------------------------------------------------------

// CreateDocument records fetched content for a source and marks the source
// fetched in the same transaction. If the source already left queued, nothing
// is written and ErrNotApplied is returned.
func (db *DB) CreateDocument(ctx context.Context, input *DocumentInput) (*Document, error) {
	var doc Document
	err := db.InTx(ctx, func(tx pgx.Tx) error {
		if err := updateSourceStatus(ctx, tx, input.SourceID, status.SourceFetched); err != nil {
			return err
		}
		return tx.QueryRow(ctx,
			`INSERT INTO documents (job_id, source_id, file_location, mime_type, status)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING `+documentColumns,
			input.JobID, input.SourceID, input.FileLocation, input.MimeType, status.DocumentFetched,
		).Scan(&doc.ID, &doc.JobID, &doc.SourceID, &doc.FileLocation, &doc.MimeType,
			&doc.TextLocation, &doc.Status, &doc.CreatedAt, &doc.UpdatedAt)
	})
	if err != nil {
		if errors.Is(err, ErrNotApplied) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create document: %w", err)
	}
	return &doc, nil
}

// GetDocument retrieves a document by ID. Returns nil, nil when it does not exist.
func (db *DB) GetDocument(ctx context.Context, documentID int64) (*Document, error) {
	var doc Document
	err := db.pool.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = $1`,
		documentID,
	).Scan(&doc.ID, &doc.JobID, &doc.SourceID, &doc.FileLocation, &doc.MimeType,
		&doc.TextLocation, &doc.Status, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return &doc, nil
}

// SetDocumentText stores the normalized text location and moves the document to normalized.
func (db *DB) SetDocumentText(ctx context.Context, documentID int64, textLocation string) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE documents SET text_location = $2, status = $3, updated_at = $4
		 WHERE id = $1 AND status = ANY($5)`,
		documentID, textLocation, status.DocumentNormalized, time.Now().UTC(),
		status.AllowedFrom(status.KindDocument, status.DocumentNormalized),
	)
	if err != nil {
		return fmt.Errorf("failed to set document text: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotApplied
	}
	return nil
}

// UpdateDocumentStatus applies a guarded document status transition.
func (db *DB) UpdateDocumentStatus(ctx context.Context, documentID int64, to string) error {
	if err := status.Check(status.KindDocument, to); err != nil {
		return err
	}
	tag, err := db.pool.Exec(ctx,
		`UPDATE documents SET status = $2, updated_at = $3
		 WHERE id = $1 AND status = ANY($4)`,
		documentID, to, time.Now().UTC(), status.AllowedFrom(status.KindDocument, to),
	)
	if err != nil {
		return fmt.Errorf("failed to update document status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotApplied
	}
	return nil
}
