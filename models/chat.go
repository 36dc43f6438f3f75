package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Role string

const (
	RoleHuman Role = "human"
	RoleAI    Role = "ai"
)

// FailurePrefix starts the text of an ai placeholder written when answering failed.
const FailurePrefix = "Whoops... "

// ChatMessage is one entry of a per-document conversation. Messages are
// append-only and ordered by CreatedAt.
type ChatMessage struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OwnerID    string             `bson:"owner_id" json:"-"`
	DocumentID string             `bson:"document_id" json:"document_id"`
	Role       Role               `bson:"role" json:"role"`
	Message    string             `bson:"message" json:"message"`
	Failed     bool               `bson:"failed,omitempty" json:"failed,omitempty"`
	CreatedAt  time.Time          `bson:"created_at" json:"created_at"`
}

type AskRequest struct {
	Question string `json:"question" binding:"required,min=1,max=2000"`
}

type AskResponse struct {
	Allowed     bool     `json:"allowed"`
	Answer      string   `json:"answer,omitempty"`
	Reason      string   `json:"reason,omitempty"`
	SearchQuery string   `json:"search_query,omitempty"`
	Sources     []Source `json:"sources,omitempty"`
}

// Source points at a retrieved chunk that grounded an answer.
type Source struct {
	Page  int     `json:"page"`
	Chunk int     `json:"chunk"`
	Score float64 `json:"score"`
	Text  string  `json:"text"`
}
