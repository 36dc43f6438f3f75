package vectorstore

import (
	"context"
	"sync"

	"saascribe-platform/internal/rag"
)

// Memory is an in-process vector store used in tests and single-node
// development.
type Memory struct {
	mu         sync.RWMutex
	namespaces map[string]map[string]rag.VectorRecord
	upserts    int
}

func NewMemory() *Memory {
	return &Memory{namespaces: make(map[string]map[string]rag.VectorRecord)}
}

func (m *Memory) NamespaceStats(_ context.Context, namespace string) (rag.NamespaceStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return rag.NamespaceStats{RecordCount: len(m.namespaces[namespace])}, nil
}

func (m *Memory) Upsert(_ context.Context, namespace string, records []rag.VectorRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ns, ok := m.namespaces[namespace]
	if !ok {
		ns = make(map[string]rag.VectorRecord)
		m.namespaces[namespace] = ns
	}
	for _, r := range records {
		ns[r.ID] = r
	}
	m.upserts++
	return nil
}

func (m *Memory) Query(_ context.Context, namespace string, vector []float32, k int) ([]rag.ScoredChunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	hits := make([]rag.ScoredChunk, 0, len(m.namespaces[namespace]))
	for _, r := range m.namespaces[namespace] {
		hits = append(hits, rag.ScoredChunk{Chunk: r.Chunk, Score: CosineSimilarity(vector, r.Vector)})
	}
	return topK(hits, k), nil
}

func (m *Memory) DeleteNamespace(_ context.Context, namespace string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.namespaces, namespace)
	return nil
}

// UpsertCalls reports how many Upsert calls have been made.
func (m *Memory) UpsertCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.upserts
}
