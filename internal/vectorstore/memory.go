package vectorstore

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Memory is an in-process Store used by tests and single-process runs.
type Memory struct {
	mu     sync.RWMutex
	chunks map[uuid.UUID]Chunk
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{chunks: make(map[uuid.UUID]Chunk)}
}

// Upsert stores chunks, replacing those with the same ID.
func (m *Memory) Upsert(_ context.Context, chunks []Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range chunks {
		c.Vector = append([]float32(nil), c.Vector...)
		m.chunks[c.ID] = c
	}
	return nil
}

// Search ranks a job's chunks by cosine similarity.
func (m *Memory) Search(_ context.Context, jobID uuid.UUID, vector []float32, limit int) ([]Hit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var hits []Hit
	for _, c := range m.chunks {
		if c.Payload.JobID != jobID {
			continue
		}
		hits = append(hits, Hit{
			ID:       c.ID,
			Score:    cosine(vector, c.Vector),
			Payload:  c.Payload,
			Document: c.DocumentID,
		})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID.String() < hits[j].ID.String()
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// Len returns the number of stored chunks.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.chunks)
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
