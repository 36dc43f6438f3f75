package rag

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"saascribe-platform/internal/lock"
	"saascribe-platform/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// newTestLocker returns the Redis lease locker over an in-memory Redis.
func newTestLocker(t *testing.T) Locker {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return lock.NewRedisLocker(rdb)
}

type fakeDocs struct {
	mu   sync.Mutex
	docs map[string]*models.Document
}

func newFakeDocs(docs ...*models.Document) *fakeDocs {
	f := &fakeDocs{docs: make(map[string]*models.Document)}
	for _, d := range docs {
		f.docs[d.ID] = d
	}
	return f
}

func (f *fakeDocs) GetDocument(_ context.Context, ownerID, documentID string) (*models.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.docs[documentID]
	if !ok || d.OwnerID != ownerID {
		return nil, ErrDocumentNotFound
	}
	cp := *d
	return &cp, nil
}

func (f *fakeDocs) setStatus(documentID string, status models.IndexStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d, ok := f.docs[documentID]; ok {
		d.IndexStatus = status
	}
}

type fakeFetcher struct {
	mu    sync.Mutex
	data  []byte
	err   error
	delay time.Duration
	calls int32
}

func (f *fakeFetcher) Fetch(ctx context.Context, _ *models.Document) ([]byte, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.data, f.err
}

func (f *fakeFetcher) set(data []byte, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data, f.err = data, err
}

func (f *fakeFetcher) Calls() int { return int(atomic.LoadInt32(&f.calls)) }

// textParser treats the fetched bytes as plain text with pages separated by
// form feeds.
type textParser struct{}

func (textParser) Parse(data []byte) ([]Page, error) {
	var pages []Page
	for i, p := range strings.Split(string(data), "\f") {
		if strings.TrimSpace(p) == "" {
			continue
		}
		pages = append(pages, Page{Number: i + 1, Text: p})
	}
	return pages, nil
}

type fakeStore struct {
	mu          sync.Mutex
	namespaces  map[string]map[string]VectorRecord
	upsertCalls int
	upsertErr   error
	dropRecords bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{namespaces: make(map[string]map[string]VectorRecord)}
}

func (s *fakeStore) NamespaceStats(_ context.Context, ns string) (NamespaceStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return NamespaceStats{RecordCount: len(s.namespaces[ns])}, nil
}

func (s *fakeStore) Upsert(_ context.Context, ns string, records []VectorRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertCalls++
	if s.upsertErr != nil {
		return s.upsertErr
	}
	if s.namespaces[ns] == nil {
		s.namespaces[ns] = make(map[string]VectorRecord)
	}
	for i, r := range records {
		if s.dropRecords && i == 0 {
			continue
		}
		s.namespaces[ns][r.ID] = r
	}
	return nil
}

func (s *fakeStore) Query(_ context.Context, ns string, vector []float32, k int) ([]ScoredChunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var hits []ScoredChunk
	for _, r := range s.namespaces[ns] {
		var score float64
		for i := range vector {
			score += float64(vector[i] * r.Vector[i])
		}
		hits = append(hits, ScoredChunk{Chunk: r.Chunk, Score: score})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Index < hits[j].Index
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (s *fakeStore) DeleteNamespace(_ context.Context, ns string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.namespaces, ns)
	return nil
}

func (s *fakeStore) count(ns string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.namespaces[ns])
}

func (s *fakeStore) has(ns, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.namespaces[ns][id]
	return ok
}

func (s *fakeStore) upserts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsertCalls
}

// letterEmbedder embeds text as letter frequencies.
type letterEmbedder struct {
	mu        sync.Mutex
	queries   []string
	failAfter int // fail EmbedDocuments after this many successful calls; 0 never fails
	docCalls  int

	// when hold is set, calls past holdAfter signal held and wait for hold to close
	hold      chan struct{}
	held      chan struct{}
	holdAfter int
}

func (e *letterEmbedder) vector(text string) []float32 {
	v := make([]float32, 26)
	for _, r := range strings.ToLower(text) {
		if r >= 'a' && r <= 'z' {
			v[r-'a']++
		}
	}
	return v
}

func (e *letterEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.docCalls++
	fail := e.failAfter > 0 && e.docCalls > e.failAfter
	wait := e.hold != nil && e.docCalls > e.holdAfter
	e.mu.Unlock()
	if wait {
		select {
		case e.held <- struct{}{}:
		default:
		}
		<-e.hold
	}
	if fail {
		return nil, errors.New("embedding quota exhausted")
	}

	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.vector(t)
	}
	return out, nil
}

func (e *letterEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.queries = append(e.queries, text)
	e.mu.Unlock()
	return e.vector(text), nil
}

// scriptedModel answers every request with reply and records what it saw.
type scriptedModel struct {
	mu       sync.Mutex
	reply    func(CompletionRequest) string
	err      error
	requests []CompletionRequest
}

func (m *scriptedModel) Complete(_ context.Context, req CompletionRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if m.err != nil {
		return "", m.err
	}
	if m.reply == nil {
		return "an answer", nil
	}
	return m.reply(req), nil
}

func (m *scriptedModel) calls() []CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]CompletionRequest(nil), m.requests...)
}

type stateEvent struct {
	Status models.IndexStatus
	Chunks int
}

// recordingStates records every transition and applies it to docs, as the
// document repository does.
type recordingStates struct {
	mu     sync.Mutex
	docs   *fakeDocs
	events []stateEvent
}

func (r *recordingStates) add(documentID string, e stateEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	if r.docs != nil {
		r.docs.setStatus(documentID, e.Status)
	}
	return nil
}

func (r *recordingStates) MarkIndexing(_ context.Context, id string) error {
	return r.add(id, stateEvent{Status: models.IndexStatusIndexing})
}

func (r *recordingStates) MarkIndexed(_ context.Context, id string, chunks int) error {
	return r.add(id, stateEvent{Status: models.IndexStatusIndexed, Chunks: chunks})
}

func (r *recordingStates) MarkFailed(_ context.Context, id, _ string) error {
	return r.add(id, stateEvent{Status: models.IndexStatusFailed})
}

func (r *recordingStates) statuses() []models.IndexStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.IndexStatus, len(r.events))
	for i, e := range r.events {
		out[i] = e.Status
	}
	return out
}
