package services

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"saascribe-platform/internal/ai"
	"saascribe-platform/internal/auth"
	"saascribe-platform/internal/lock"
	"saascribe-platform/internal/quota"
	"saascribe-platform/internal/rag"
	"saascribe-platform/internal/vectorstore"
	"saascribe-platform/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type memDocs struct {
	mu   sync.Mutex
	docs map[string]*models.Document
}

func newMemDocs() *memDocs {
	return &memDocs{docs: make(map[string]*models.Document)}
}

func (m *memDocs) Create(_ context.Context, doc *models.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}
	cp := *doc
	m.docs[doc.ID] = &cp
	return nil
}

func (m *memDocs) GetDocument(_ context.Context, ownerID, documentID string) (*models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[documentID]
	if !ok || d.OwnerID != ownerID {
		return nil, rag.ErrDocumentNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *memDocs) List(_ context.Context, ownerID string) ([]models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Document{}
	for _, d := range m.docs {
		if d.OwnerID == ownerID {
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memDocs) Count(ctx context.Context, ownerID string) (int64, error) {
	docs, _ := m.List(ctx, ownerID)
	return int64(len(docs)), nil
}

func (m *memDocs) Delete(_ context.Context, ownerID, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[documentID]
	if !ok || d.OwnerID != ownerID {
		return rag.ErrDocumentNotFound
	}
	delete(m.docs, documentID)
	return nil
}

func (m *memDocs) MarkIndexing(_ context.Context, id string) error {
	return m.update(id, func(d *models.Document) { d.IndexStatus = models.IndexStatusIndexing })
}

func (m *memDocs) MarkIndexed(_ context.Context, id string, chunks int) error {
	return m.update(id, func(d *models.Document) {
		d.IndexStatus = models.IndexStatusIndexed
		d.ChunkCount = chunks
	})
}

func (m *memDocs) MarkFailed(_ context.Context, id, reason string) error {
	return m.update(id, func(d *models.Document) {
		d.IndexStatus = models.IndexStatusFailed
		d.IndexError = reason
	})
}

func (m *memDocs) update(id string, fn func(*models.Document)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.docs[id]; ok {
		fn(d)
	}
	return nil
}

type fakePlans struct {
	pro map[string]bool
}

func (f *fakePlans) GetPlan(_ context.Context, userID string) (models.Plan, error) {
	return models.Plan{HasActiveMembership: f.pro[userID]}, nil
}

// textParser reads stored bytes as plain text with form-feed page breaks.
type textParser struct{}

func (textParser) Parse(data []byte) ([]rag.Page, error) {
	var pages []rag.Page
	for i, p := range strings.Split(string(data), "\f") {
		if strings.TrimSpace(p) == "" {
			continue
		}
		pages = append(pages, rag.Page{Number: i + 1, Text: p})
	}
	return pages, nil
}

type failingAnswerer struct{ err error }

func (f failingAnswerer) Answer(context.Context, rag.AnswerRequest) (*rag.Answer, error) {
	return nil, f.err
}

// harness wires the services over in-memory adapters, local disk storage and
// an HTTP file endpoint the fetcher downloads from.
type harness struct {
	docs      *memDocs
	history   *rag.MemoryHistory
	plans     *fakePlans
	vectors   *vectorstore.Memory
	storage   *FileStorage
	engine    *rag.QueryEngine
	ingestor  *rag.Ingestor
	chat      *ChatService
	documents *DocumentService
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		docs:    newMemDocs(),
		history: rag.NewMemoryHistory(),
		plans:   &fakePlans{pro: map[string]bool{}},
		vectors: vectorstore.NewMemory(),
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimPrefix(r.URL.Path, "/files/")
		q := r.URL.Query()
		if err := h.storage.Verify(key, q.Get("expires"), q.Get("signature")); err != nil {
			http.Error(w, err.Error(), http.StatusForbidden)
			return
		}
		f, err := h.storage.Open(key)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		defer f.Close()
		io.Copy(w, f)
	}))
	t.Cleanup(srv.Close)

	storage, err := NewFileStorage(t.TempDir(), srv.URL, "test-signing-secret", time.Minute)
	require.NoError(t, err)
	h.storage = storage

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	index := rag.NewIndex(h.vectors, ai.HashEmbedder{Dim: 128}, 8, 2)
	h.ingestor = rag.NewIngestor(
		h.docs,
		rag.NewHTTPFetcher(storage, 5*time.Second, 1<<20),
		rag.NewSegmenter(textParser{}, rag.NewSplitter(1000, 200)),
		index,
		lock.NewRedisLocker(rdb),
		rag.WithStateRecorder(h.docs),
	)
	h.engine = rag.NewQueryEngine(h.ingestor, index, rag.NewSynthesizer(ai.ExtractiveChatModel{}, 0), 4, nil)

	gate := quota.NewGate(quota.DefaultLimits)
	h.chat = NewChatService(h.docs, h.history, h.plans, gate, h.engine, nil)
	h.documents = NewDocumentService(h.docs, storage, h.plans, gate, h.ingestor, nil, 1<<20)
	return h
}

const submarineText = "%PDF-1.4\nThe submarine is painted bright yellow. Its engines run on diesel fuel.\f" +
	"The crew of the submarine sings every evening. The captain keeps a parrot."

// addDocument stores a document directly, bypassing the upload quota.
func (h *harness) addDocument(t *testing.T, ownerID, documentID, body string) {
	t.Helper()
	key := DocumentKey(ownerID, documentID)
	_, err := h.storage.Put(context.Background(), key, strings.NewReader(body), 1<<20)
	require.NoError(t, err)
	require.NoError(t, h.docs.Create(context.Background(), &models.Document{
		ID:          documentID,
		OwnerID:     ownerID,
		Name:        documentID + ".pdf",
		StorageKey:  key,
		IndexStatus: models.IndexStatusNotIndexed,
	}))
}

func (h *harness) seedQuestions(t *testing.T, ownerID, documentID string, n int) {
	t.Helper()
	for i := range n {
		require.NoError(t, h.history.AppendMessage(context.Background(), &models.ChatMessage{
			OwnerID: ownerID, DocumentID: documentID, Role: models.RoleHuman, Message: "q",
			CreatedAt: time.Now().Add(time.Duration(2*i) * time.Millisecond),
		}))
		require.NoError(t, h.history.AppendMessage(context.Background(), &models.ChatMessage{
			OwnerID: ownerID, DocumentID: documentID, Role: models.RoleAI, Message: "a",
			CreatedAt: time.Now().Add(time.Duration(2*i+1) * time.Millisecond),
		}))
	}
}

func userCtx(userID string) context.Context {
	return auth.WithUserID(context.Background(), userID)
}

var errBoom = errors.New("boom")
