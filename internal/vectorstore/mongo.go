package vectorstore

import (
	"context"
	"fmt"

	"saascribe-platform/internal/config"
	"saascribe-platform/internal/rag"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// vectorDoc is the stored form of a rag.VectorRecord.
type vectorDoc struct {
	ID        string    `bson:"_id"`
	Namespace string    `bson:"namespace"`
	Embedding []float32 `bson:"embedding"`
	rag.Chunk `bson:",inline"`
	Score     float64 `bson:"score,omitempty"`
}

// Mongo keeps every namespace in one collection keyed by a namespace field.
// With Atlas Vector Search enabled queries use $vectorSearch; otherwise the
// namespace is scanned and ranked in process.
type Mongo struct {
	col          *mongo.Collection
	vectorSearch bool
	indexName    string
}

func NewMongo(db *mongo.Database, vectorSearch bool, indexName string) *Mongo {
	return &Mongo{
		col:          db.Collection(config.VectorsCollection),
		vectorSearch: vectorSearch,
		indexName:    indexName,
	}
}

func (m *Mongo) NamespaceStats(ctx context.Context, namespace string) (rag.NamespaceStats, error) {
	n, err := m.col.CountDocuments(ctx, bson.M{"namespace": namespace})
	if err != nil {
		return rag.NamespaceStats{}, fmt.Errorf("count vectors: %w", err)
	}
	return rag.NamespaceStats{RecordCount: int(n)}, nil
}

func (m *Mongo) Upsert(ctx context.Context, namespace string, records []rag.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}

	batch := make([]mongo.WriteModel, 0, len(records))
	for _, r := range records {
		batch = append(batch, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": r.ID}).
			SetReplacement(vectorDoc{
				ID:        r.ID,
				Namespace: namespace,
				Embedding: r.Vector,
				Chunk:     r.Chunk,
			}).
			SetUpsert(true))
	}

	if _, err := m.col.BulkWrite(ctx, batch, options.BulkWrite().SetOrdered(false)); err != nil {
		return fmt.Errorf("bulk upsert vectors: %w", err)
	}
	return nil
}

func (m *Mongo) Query(ctx context.Context, namespace string, vector []float32, k int) ([]rag.ScoredChunk, error) {
	if m.vectorSearch {
		return m.searchAtlas(ctx, namespace, vector, k)
	}
	return m.scan(ctx, namespace, vector, k)
}

func (m *Mongo) searchAtlas(ctx context.Context, namespace string, vector []float32, k int) ([]rag.ScoredChunk, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$vectorSearch", Value: bson.M{
			"index":         m.indexName,
			"path":          "embedding",
			"queryVector":   vector,
			"numCandidates": k * 20,
			"limit":         k,
			"filter":        bson.M{"namespace": namespace},
		}}},
		{{Key: "$project", Value: bson.M{
			"embedding": 0,
			"score":     bson.M{"$meta": "vectorSearchScore"},
		}}},
	}

	cursor, err := m.col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer cursor.Close(ctx)

	var hits []rag.ScoredChunk
	for cursor.Next(ctx) {
		var d vectorDoc
		if err := cursor.Decode(&d); err != nil {
			return nil, fmt.Errorf("decode vector: %w", err)
		}
		hits = append(hits, rag.ScoredChunk{Chunk: d.Chunk, Score: d.Score})
	}
	return hits, cursor.Err()
}

func (m *Mongo) scan(ctx context.Context, namespace string, vector []float32, k int) ([]rag.ScoredChunk, error) {
	cursor, err := m.col.Find(ctx, bson.M{"namespace": namespace})
	if err != nil {
		return nil, fmt.Errorf("find vectors: %w", err)
	}
	defer cursor.Close(ctx)

	var hits []rag.ScoredChunk
	for cursor.Next(ctx) {
		var d vectorDoc
		if err := cursor.Decode(&d); err != nil {
			return nil, fmt.Errorf("decode vector: %w", err)
		}
		hits = append(hits, rag.ScoredChunk{Chunk: d.Chunk, Score: CosineSimilarity(vector, d.Embedding)})
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return topK(hits, k), nil
}

func (m *Mongo) DeleteNamespace(ctx context.Context, namespace string) error {
	if _, err := m.col.DeleteMany(ctx, bson.M{"namespace": namespace}); err != nil {
		return fmt.Errorf("delete namespace: %w", err)
	}
	return nil
}
