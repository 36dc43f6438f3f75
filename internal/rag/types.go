package rag

import (
	"context"
	"time"

	"saascribe-platform/models"
)

// Page is the extracted text of one PDF page. Number is 1-based.
type Page struct {
	Number int
	Text   string
}

// Chunk is a contiguous slice of one page's text. Start and End are rune
// offsets into the page text and Text == page[Start:End].
type Chunk struct {
	DocumentID string `bson:"document_id"`
	Index      int    `bson:"chunk_index"`
	Page       int    `bson:"page"`
	Text       string `bson:"text"`
	Start      int    `bson:"start"`
	End        int    `bson:"end"`
}

// VectorRecord is a chunk with its embedding, stored under a namespace.
type VectorRecord struct {
	ID     string
	Vector []float32
	Chunk  Chunk
}

// ScoredChunk is a retrieval hit. Higher scores are more similar.
type ScoredChunk struct {
	Chunk
	Score float64
}

// NamespaceStats describes the records stored under a namespace.
type NamespaceStats struct {
	RecordCount int
}

// Namespace is a handle to a populated per-document namespace.
type Namespace struct {
	Name        string
	RecordCount int
}

// Turn is one conversational message passed to a ChatModel.
type Turn struct {
	Role models.Role
	Text string
}

// CompletionRequest is a single chat completion: an optional system
// instruction, the prior turns, and the new user prompt.
type CompletionRequest struct {
	System  string
	History []Turn
	Prompt  string
}

// AnswerRequest is the input to QueryEngine.Answer.
type AnswerRequest struct {
	OwnerID    string
	DocumentID string
	Question   string
	History    []models.ChatMessage
}

// Answer is the synthesized reply with the chunks that grounded it.
type Answer struct {
	Text        string
	SearchQuery string
	Sources     []ScoredChunk
}

// DocumentSource resolves document metadata scoped to its owner.
type DocumentSource interface {
	GetDocument(ctx context.Context, ownerID, documentID string) (*models.Document, error)
}

// URLSigner turns a storage key into a time-limited download URL.
type URLSigner interface {
	SignedURL(storageKey string) (string, error)
}

// Fetcher downloads the raw bytes of a document.
type Fetcher interface {
	Fetch(ctx context.Context, doc *models.Document) ([]byte, error)
}

// Parser extracts per-page text from raw document bytes.
type Parser interface {
	Parse(data []byte) ([]Page, error)
}

// HistoryStore is the per-document chat log.
type HistoryStore interface {
	LoadHistory(ctx context.Context, ownerID, documentID string) ([]models.ChatMessage, error)
	AppendMessage(ctx context.Context, msg *models.ChatMessage) error
}

// VectorStore persists embeddings partitioned by namespace.
type VectorStore interface {
	NamespaceStats(ctx context.Context, namespace string) (NamespaceStats, error)
	Upsert(ctx context.Context, namespace string, records []VectorRecord) error
	Query(ctx context.Context, namespace string, vector []float32, topK int) ([]ScoredChunk, error)
	DeleteNamespace(ctx context.Context, namespace string) error
}

// Embedder turns text into vectors. EmbedDocuments returns one vector per
// input, in order.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// ChatModel produces a single completion.
type ChatModel interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// Locker provides a mutual-exclusion lease keyed by name. The returned
// release func must be called exactly once.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

// IndexStateRecorder persists the ingestion state of a document.
type IndexStateRecorder interface {
	MarkIndexing(ctx context.Context, documentID string) error
	MarkIndexed(ctx context.Context, documentID string, chunkCount int) error
	MarkFailed(ctx context.Context, documentID, reason string) error
}
