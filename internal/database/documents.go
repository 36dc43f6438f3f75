package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"saascribe-platform/internal/config"
	"saascribe-platform/internal/rag"
	"saascribe-platform/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DocumentRepository stores document metadata and its index state. It
// implements rag.DocumentSource and rag.IndexStateRecorder.
type DocumentRepository struct {
	col *mongo.Collection
	now func() time.Time
}

func NewDocumentRepository(db *mongo.Database) *DocumentRepository {
	return &DocumentRepository{col: db.Collection(config.DocumentsCollection), now: time.Now}
}

func (r *DocumentRepository) Create(ctx context.Context, doc *models.Document) error {
	now := r.now()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now
	if doc.IndexStatus == "" {
		doc.IndexStatus = models.IndexStatusNotIndexed
	}

	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

// GetDocument returns rag.ErrDocumentNotFound when the id is unknown or owned
// by someone else.
func (r *DocumentRepository) GetDocument(ctx context.Context, ownerID, documentID string) (*models.Document, error) {
	return r.findOne(ctx, bson.M{"_id": documentID, "owner_id": ownerID})
}

// FindByID looks a document up without an owner scope. Operator tooling only.
func (r *DocumentRepository) FindByID(ctx context.Context, documentID string) (*models.Document, error) {
	return r.findOne(ctx, bson.M{"_id": documentID})
}

func (r *DocumentRepository) findOne(ctx context.Context, filter bson.M) (*models.Document, error) {
	var doc models.Document
	if err := r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, rag.ErrDocumentNotFound
		}
		return nil, fmt.Errorf("find document: %w", err)
	}
	return &doc, nil
}

// List returns the owner's documents, newest first.
func (r *DocumentRepository) List(ctx context.Context, ownerID string) ([]models.Document, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.col.Find(ctx, bson.M{"owner_id": ownerID}, opts)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer cursor.Close(ctx)

	docs := []models.Document{}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode documents: %w", err)
	}
	return docs, nil
}

func (r *DocumentRepository) Count(ctx context.Context, ownerID string) (int64, error) {
	n, err := r.col.CountDocuments(ctx, bson.M{"owner_id": ownerID})
	if err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}

func (r *DocumentRepository) Delete(ctx context.Context, ownerID, documentID string) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": documentID, "owner_id": ownerID})
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if res.DeletedCount == 0 {
		return rag.ErrDocumentNotFound
	}
	return nil
}

func (r *DocumentRepository) MarkIndexing(ctx context.Context, documentID string) error {
	return r.setState(ctx, documentID, bson.M{
		"index_status": models.IndexStatusIndexing,
		"index_error":  "",
	})
}

func (r *DocumentRepository) MarkIndexed(ctx context.Context, documentID string, chunkCount int) error {
	return r.setState(ctx, documentID, bson.M{
		"index_status": models.IndexStatusIndexed,
		"index_error":  "",
		"chunk_count":  chunkCount,
		"indexed_at":   r.now(),
	})
}

func (r *DocumentRepository) MarkFailed(ctx context.Context, documentID, reason string) error {
	return r.setState(ctx, documentID, bson.M{
		"index_status": models.IndexStatusFailed,
		"index_error":  reason,
	})
}

func (r *DocumentRepository) setState(ctx context.Context, documentID string, set bson.M) error {
	set["updated_at"] = r.now()
	if _, err := r.col.UpdateOne(ctx, bson.M{"_id": documentID}, bson.M{"$set": set}); err != nil {
		return fmt.Errorf("update index state: %w", err)
	}
	return nil
}

// ResetStaleIndexing moves documents stuck in indexing since before cutoff
// back to not_indexed so the next request retries them.
func (r *DocumentRepository) ResetStaleIndexing(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.col.UpdateMany(ctx,
		bson.M{
			"index_status": models.IndexStatusIndexing,
			"updated_at":   bson.M{"$lt": cutoff},
		},
		bson.M{"$set": bson.M{
			"index_status": models.IndexStatusNotIndexed,
			"index_error":  "indexing interrupted",
			"updated_at":   r.now(),
		}},
	)
	if err != nil {
		return 0, fmt.Errorf("reset stale indexing: %w", err)
	}
	return res.ModifiedCount, nil
}
