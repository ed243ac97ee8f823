package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/subject-research/internal/db"
	"github.com/jonathan/subject-research/internal/fetch"
	"github.com/jonathan/subject-research/internal/ident"
	"github.com/jonathan/subject-research/internal/status"
	"github.com/jonathan/subject-research/internal/types"
)

// memStore is an in-memory Store enforcing the same guarded transitions as db.DB.
type memStore struct {
	mu        sync.Mutex
	jobs      map[uuid.UUID]*db.Job
	sources   map[int64]*db.Source
	documents map[int64]*db.Document
	events    map[uuid.UUID][]db.Event
	nextID    int64
}

func newMemStore() *memStore {
	return &memStore{
		jobs:      make(map[uuid.UUID]*db.Job),
		sources:   make(map[int64]*db.Source),
		documents: make(map[int64]*db.Document),
		events:    make(map[uuid.UUID][]db.Event),
	}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memStore) CreateJob(_ context.Context, subject string) (*db.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	job := &db.Job{ID: uuid.New(), Subject: subject, Status: status.JobQueued, CreatedAt: now, UpdatedAt: now}
	m.jobs[job.ID] = job
	cp := *job
	return &cp, nil
}

func (m *memStore) GetJob(_ context.Context, jobID uuid.UUID) (*db.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return nil, nil
	}
	cp := *job
	return &cp, nil
}

func (m *memStore) UpdateJobStatus(_ context.Context, jobID uuid.UUID, to string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok || !status.CanTransition(status.KindJob, job.Status, to) {
		return db.ErrNotApplied
	}
	job.Status = to
	job.UpdatedAt = at
	return nil
}

func (m *memStore) CreateSources(_ context.Context, jobID uuid.UUID, items []types.DiscoveryItem) ([]db.Source, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing := make(map[string]bool)
	for _, s := range m.sources {
		if s.JobID == jobID {
			existing[s.URL] = true
		}
	}
	var created []db.Source
	for _, it := range items {
		if existing[it.URL] {
			continue
		}
		existing[it.URL] = true
		s := &db.Source{
			ID: m.id(), JobID: jobID, URL: it.URL, Kind: it.Kind, Provider: it.Provider,
			Title: it.Title, PublishedAt: it.PublishedAt, Confidence: it.Confidence,
			Status: status.SourceQueued, CreatedAt: time.Now(),
		}
		m.sources[s.ID] = s
		created = append(created, *s)
	}
	return created, nil
}

func (m *memStore) GetSource(_ context.Context, sourceID int64) (*db.Source, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sources[sourceID]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (m *memStore) ListSources(_ context.Context, jobID uuid.UUID, filters db.SourceFilters) ([]db.Source, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []db.Source
	for _, s := range m.sources {
		if s.JobID != jobID || (filters.Status != "" && s.Status != filters.Status) {
			continue
		}
		if filters.BeforeID > 0 && s.ID >= filters.BeforeID {
			continue
		}
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if filters.Limit > 0 && len(out) > filters.Limit {
		out = out[:filters.Limit]
	}
	return out, nil
}

func (m *memStore) UpdateSourceStatus(_ context.Context, sourceID int64, to string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateSource(sourceID, to)
}

func (m *memStore) updateSource(sourceID int64, to string) error {
	s, ok := m.sources[sourceID]
	if !ok || !status.CanTransition(status.KindSource, s.Status, to) {
		return db.ErrNotApplied
	}
	s.Status = to
	return nil
}

func (m *memStore) CreateDocument(_ context.Context, input *db.DocumentInput) (*db.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.updateSource(input.SourceID, status.SourceFetched); err != nil {
		return nil, err
	}
	doc := &db.Document{
		ID: m.id(), JobID: input.JobID, SourceID: input.SourceID, FileLocation: input.FileLocation,
		MimeType: input.MimeType, Status: status.DocumentFetched,
	}
	m.documents[doc.ID] = doc
	cp := *doc
	return &cp, nil
}

func (m *memStore) GetDocument(_ context.Context, documentID int64) (*db.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.documents[documentID]
	if !ok {
		return nil, nil
	}
	cp := *d
	return &cp, nil
}

func (m *memStore) SetDocumentText(_ context.Context, documentID int64, textLocation string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.updateDocument(documentID, status.DocumentNormalized); err != nil {
		return err
	}
	m.documents[documentID].TextLocation = textLocation
	return nil
}

func (m *memStore) UpdateDocumentStatus(_ context.Context, documentID int64, to string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateDocument(documentID, to)
}

func (m *memStore) updateDocument(documentID int64, to string) error {
	d, ok := m.documents[documentID]
	if !ok || !status.CanTransition(status.KindDocument, d.Status, to) {
		return db.ErrNotApplied
	}
	d.Status = to
	return nil
}

func (m *memStore) InsertEvents(_ context.Context, jobID uuid.UUID, events []types.TimelineEvent) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[string]bool)
	for _, e := range m.events[jobID] {
		seen[e.Fingerprint] = true
	}
	added := 0
	for _, e := range events {
		fp := ident.EventFingerprint(e.Date, e.Event)
		if seen[fp] {
			continue
		}
		seen[fp] = true
		m.events[jobID] = append(m.events[jobID], db.Event{
			ID: m.id(), JobID: jobID, Date: e.Date, EventText: e.Event, Citations: e.Citations, Fingerprint: fp,
		})
		added++
	}
	return added, nil
}

func (m *memStore) job(id uuid.UUID) db.Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.jobs[id]
}

func (m *memStore) sourcesOf(jobID uuid.UUID) []db.Source {
	out, _ := m.ListSources(context.Background(), jobID, db.SourceFilters{})
	return out
}

func (m *memStore) documentsOf(jobID uuid.UUID) []db.Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []db.Document
	for _, d := range m.documents {
		if d.JobID == jobID {
			out = append(out, *d)
		}
	}
	return out
}

type staticDiscovery struct {
	items []types.DiscoveryItem
}

func (s *staticDiscovery) Discover(context.Context, string) []types.DiscoveryItem {
	return ident.DedupByURL(s.items)
}

type page struct {
	contentType string
	body        string
	err         error
}

type fakeFetcher struct {
	mu         sync.Mutex
	pages      map[string]page
	disallowed map[string]bool
	calls      map[string]int
	panics     bool
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{pages: make(map[string]page), disallowed: make(map[string]bool), calls: make(map[string]int)}
}

func (f *fakeFetcher) Allowed(_ context.Context, rawURL string) bool {
	return !f.disallowed[rawURL]
}

func (f *fakeFetcher) Get(_ context.Context, rawURL string) (*fetch.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[rawURL]++
	if f.panics {
		panic(fmt.Sprintf("fetch of %s exploded", rawURL))
	}
	p, ok := f.pages[rawURL]
	if !ok {
		return nil, &fetch.Error{URL: rawURL, Message: "HTTP 404"}
	}
	if p.err != nil {
		return nil, p.err
	}
	return &fetch.Result{URL: rawURL, Body: []byte(p.body), ContentType: p.contentType, StatusCode: 200}, nil
}

type fakeEmbedder struct {
	mu     sync.Mutex
	inputs []string
	err    error
	panics bool
}

func (e *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.panics {
		panic("embedder exploded")
	}
	if e.err != nil {
		return nil, e.err
	}
	e.inputs = append(e.inputs, text)
	return []float32{float32(len(text)), 1, 0}, nil
}

type fakeSynthesizer struct {
	events []types.TimelineEvent
	err    error
	calls  int
	panics bool
}

func (s *fakeSynthesizer) Synthesize(context.Context, uuid.UUID, string) ([]types.TimelineEvent, error) {
	s.calls++
	if s.panics {
		var m map[string]int
		m["boom"]++
	}
	return s.events, s.err
}

// htmlPage wraps text in a minimal article page.
func htmlPage(text string) string {
	return fmt.Sprintf("<html><body><nav>menu</nav><article><p>%s</p></article></body></html>", text)
}

var errBoom = errors.New("boom")

func repeat(s string, n int) string {
	return strings.Repeat(s, n)
}
