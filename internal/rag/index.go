package rag

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Index embeds chunks into per-document namespaces and searches them.
type Index struct {
	store       VectorStore
	embedder    Embedder
	batchSize   int
	concurrency int
}

func NewIndex(store VectorStore, embedder Embedder, batchSize, concurrency int) *Index {
	if batchSize <= 0 {
		batchSize = 50
	}
	if concurrency <= 0 {
		concurrency = 5
	}
	return &Index{
		store:       store,
		embedder:    embedder,
		batchSize:   batchSize,
		concurrency: concurrency,
	}
}

func (ix *Index) Stats(ctx context.Context, namespace string) (NamespaceStats, error) {
	stats, err := ix.store.NamespaceStats(ctx, namespace)
	if err != nil {
		return NamespaceStats{}, upstream(ServiceVectorStore, "stats", err)
	}
	return stats, nil
}

// Add embeds and upserts chunks in batches, at most concurrency batches at a
// time. The first failure cancels the remaining batches.
func (ix *Index) Add(ctx context.Context, namespace string, chunks []Chunk) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.concurrency)

	for from := 0; from < len(chunks); from += ix.batchSize {
		batch := chunks[from:min(from+ix.batchSize, len(chunks))]
		g.Go(func() error {
			return ix.addBatch(gctx, namespace, batch)
		})
	}
	return g.Wait()
}

func (ix *Index) addBatch(ctx context.Context, namespace string, batch []Chunk) error {
	texts := make([]string, len(batch))
	for i, c := range batch {
		texts[i] = c.Text
	}

	vectors, err := ix.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return upstream(ServiceEmbedding, "embed_documents", err)
	}
	if len(vectors) != len(batch) {
		return upstream(ServiceEmbedding, "embed_documents",
			fmt.Errorf("got %d vectors for %d chunks", len(vectors), len(batch)))
	}

	records := make([]VectorRecord, len(batch))
	for i, c := range batch {
		records[i] = VectorRecord{
			ID:     recordID(namespace, c.Index),
			Vector: vectors[i],
			Chunk:  c,
		}
	}

	if err := ix.store.Upsert(ctx, namespace, records); err != nil {
		return upstream(ServiceVectorStore, "upsert", err)
	}
	return nil
}

// Search embeds the query and returns the k nearest chunks of the namespace.
func (ix *Index) Search(ctx context.Context, namespace, query string, k int) ([]ScoredChunk, error) {
	vector, err := ix.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, upstream(ServiceEmbedding, "embed_query", err)
	}

	hits, err := ix.store.Query(ctx, namespace, vector, k)
	if err != nil {
		return nil, upstream(ServiceVectorStore, "query", err)
	}
	return hits, nil
}

func (ix *Index) Delete(ctx context.Context, namespace string) error {
	return upstream(ServiceVectorStore, "delete_namespace", ix.store.DeleteNamespace(ctx, namespace))
}

func recordID(namespace string, chunkIndex int) string {
	return fmt.Sprintf("%s#%d", namespace, chunkIndex)
}
