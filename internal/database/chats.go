package database

import (
	"context"
	"fmt"
	"time"

	"saascribe-platform/internal/config"
	"saascribe-platform/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ChatRepository is the Mongo-backed rag.HistoryStore.
type ChatRepository struct {
	col *mongo.Collection
	now func() time.Time
}

func NewChatRepository(db *mongo.Database) *ChatRepository {
	return &ChatRepository{col: db.Collection(config.ChatMessagesCollection), now: time.Now}
}

// LoadHistory returns the conversation oldest first.
func (r *ChatRepository) LoadHistory(ctx context.Context, ownerID, documentID string) ([]models.ChatMessage, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.col.Find(ctx, bson.M{"owner_id": ownerID, "document_id": documentID}, opts)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	defer cursor.Close(ctx)

	msgs := []models.ChatMessage{}
	if err := cursor.All(ctx, &msgs); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	return msgs, nil
}

func (r *ChatRepository) AppendMessage(ctx context.Context, msg *models.ChatMessage) error {
	if msg.ID.IsZero() {
		msg.ID = primitive.NewObjectID()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = r.now()
	}

	if _, err := r.col.InsertOne(ctx, msg); err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}
