// Package vectorstore keeps embedded text chunks with their provenance and
// answers similarity queries scoped to a single job.
package vectorstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// chunkNamespace scopes deterministic chunk IDs.
var chunkNamespace = uuid.MustParse("6f1c1d52-4a8e-4c1e-9a57-2f0d7f6b8e31")

// Payload is the provenance stored next to each vector.
type Payload struct {
	JobID       uuid.UUID `json:"job_id"`
	Subject     string    `json:"person"`
	SourceURL   string    `json:"source_url"`
	PublishedAt string    `json:"published_at,omitempty"`
	Kind        string    `json:"kind"`
	Text        string    `json:"text"`
}

// Chunk is one embedded window of a document.
type Chunk struct {
	ID         uuid.UUID
	DocumentID int64
	Index      int
	Vector     []float32
	Payload    Payload
}

// Hit is a search result ordered by similarity.
type Hit struct {
	ID       uuid.UUID
	Score    float64
	Payload  Payload
	Document int64
}

// Searcher answers similarity queries within one job.
type Searcher interface {
	Search(ctx context.Context, jobID uuid.UUID, vector []float32, limit int) ([]Hit, error)
}

// Store persists chunks and searches them.
type Store interface {
	Searcher
	Upsert(ctx context.Context, chunks []Chunk) error
}

// ChunkID returns the stable ID of chunk index of a document, so re-indexing
// a document overwrites its chunks instead of adding new ones.
func ChunkID(documentID int64, index int) uuid.UUID {
	return uuid.NewSHA1(chunkNamespace, []byte(fmt.Sprintf("%d:%d", documentID, index)))
}

// NewChunk builds a chunk with its deterministic ID.
func NewChunk(documentID int64, index int, vector []float32, payload Payload) Chunk {
	return Chunk{
		ID:         ChunkID(documentID, index),
		DocumentID: documentID,
		Index:      index,
		Vector:     vector,
		Payload:    payload,
	}
}
