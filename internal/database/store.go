package database

import (
	"go.mongodb.org/mongo-driver/mongo"
)

// Store groups the repositories backed by one MongoDB database. Every query
// is scoped by owner_id, so tenants share collections.
type Store struct {
	db        *mongo.Database
	Documents *DocumentRepository
	Chats     *ChatRepository
	Users     *UserRepository
}

func NewStore(db *mongo.Database) *Store {
	return &Store{
		db:        db,
		Documents: NewDocumentRepository(db),
		Chats:     NewChatRepository(db),
		Users:     NewUserRepository(db),
	}
}

func (s *Store) DB() *mongo.Database { return s.db }
