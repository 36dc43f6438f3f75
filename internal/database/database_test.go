package database

import (
	"context"
	"testing"
	"time"

	"saascribe-platform/internal/rag"
	"saascribe-platform/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func TestDocumentRepository(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("get document", func(mt *mtest.T) {
		repo := NewDocumentRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "saascribe.documents", mtest.FirstBatch, bson.D{
			{Key: "_id", Value: "doc-1"},
			{Key: "owner_id", Value: "owner-1"},
			{Key: "name", Value: "report.pdf"},
			{Key: "index_status", Value: "indexed"},
			{Key: "chunk_count", Value: 12},
		}))

		doc, err := repo.GetDocument(context.Background(), "owner-1", "doc-1")
		require.NoError(t, err)
		assert.Equal(t, "report.pdf", doc.Name)
		assert.Equal(t, models.IndexStatusIndexed, doc.IndexStatus)
		assert.Equal(t, 12, doc.ChunkCount)
	})

	mt.Run("get missing document", func(mt *mtest.T) {
		repo := NewDocumentRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "saascribe.documents", mtest.FirstBatch))

		_, err := repo.GetDocument(context.Background(), "owner-1", "nope")
		assert.ErrorIs(t, err, rag.ErrDocumentNotFound)
	})

	mt.Run("delete missing document", func(mt *mtest.T) {
		repo := NewDocumentRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}))

		err := repo.Delete(context.Background(), "owner-1", "nope")
		assert.ErrorIs(t, err, rag.ErrDocumentNotFound)
	})

	mt.Run("create sets defaults", func(mt *mtest.T) {
		repo := NewDocumentRepository(mt.DB)
		fixed := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
		repo.now = func() time.Time { return fixed }
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		doc := &models.Document{ID: "doc-2", OwnerID: "owner-1"}
		require.NoError(t, repo.Create(context.Background(), doc))
		assert.Equal(t, models.IndexStatusNotIndexed, doc.IndexStatus)
		assert.Equal(t, fixed, doc.CreatedAt)
	})
}

func TestChatRepository(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("load history", func(mt *mtest.T) {
		repo := NewChatRepository(mt.DB)
		t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "saascribe.chat_messages", mtest.FirstBatch,
			bson.D{{Key: "role", Value: "human"}, {Key: "message", Value: "hi"}, {Key: "created_at", Value: t0}},
			bson.D{{Key: "role", Value: "ai"}, {Key: "message", Value: "hello"}, {Key: "created_at", Value: t0.Add(time.Second)}},
		))

		msgs, err := repo.LoadHistory(context.Background(), "owner-1", "doc-1")
		require.NoError(t, err)
		require.Len(t, msgs, 2)
		assert.Equal(t, models.RoleHuman, msgs[0].Role)
		assert.Equal(t, "hello", msgs[1].Message)
	})

	mt.Run("append assigns id and timestamp", func(mt *mtest.T) {
		repo := NewChatRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		msg := &models.ChatMessage{OwnerID: "owner-1", DocumentID: "doc-1", Role: models.RoleHuman, Message: "q"}
		require.NoError(t, repo.AppendMessage(context.Background(), msg))
		assert.False(t, msg.ID.IsZero())
		assert.False(t, msg.CreatedAt.IsZero())
	})
}

func TestUserRepository(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("unknown user is on the free plan", func(mt *mtest.T) {
		repo := NewUserRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "saascribe.users", mtest.FirstBatch))

		plan, err := repo.GetPlan(context.Background(), "user-1")
		require.NoError(t, err)
		assert.False(t, plan.HasActiveMembership)
	})

	mt.Run("pro user", func(mt *mtest.T) {
		repo := NewUserRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "saascribe.users", mtest.FirstBatch,
			bson.D{{Key: "_id", Value: "user-1"}, {Key: "has_active_membership", Value: true}}))

		plan, err := repo.GetPlan(context.Background(), "user-1")
		require.NoError(t, err)
		assert.True(t, plan.HasActiveMembership)
	})

	mt.Run("unknown customer", func(mt *mtest.T) {
		repo := NewUserRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "saascribe.users", mtest.FirstBatch))

		_, err := repo.FindByStripeCustomer(context.Background(), "cus_123")
		assert.ErrorIs(t, err, ErrUserNotFound)
	})

	mt.Run("update unmatched user", func(mt *mtest.T) {
		repo := NewUserRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}))

		err := repo.UpdateSubscription(context.Background(), "ghost", SubscriptionUpdate{HasActiveMembership: true})
		assert.ErrorIs(t, err, ErrUserNotFound)
	})
}
