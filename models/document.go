package models

import "time"

// IndexStatus is the persisted ingestion state of a document.
type IndexStatus string

const (
	IndexStatusNotIndexed IndexStatus = "not_indexed"
	IndexStatusIndexing   IndexStatus = "indexing"
	IndexStatusIndexed    IndexStatus = "indexed"
	IndexStatusFailed     IndexStatus = "failed"
)

// Document is an uploaded PDF owned by exactly one user. Its ID doubles as the
// embedding namespace.
type Document struct {
	ID          string      `bson:"_id" json:"id"`
	OwnerID     string      `bson:"owner_id" json:"owner_id"`
	Name        string      `bson:"name" json:"name"`
	Size        int64       `bson:"size" json:"size"`
	ContentType string      `bson:"content_type" json:"content_type"`
	StorageKey  string      `bson:"storage_key" json:"-"`
	IndexStatus IndexStatus `bson:"index_status" json:"index_status"`
	IndexError  string      `bson:"index_error,omitempty" json:"index_error,omitempty"`
	ChunkCount  int         `bson:"chunk_count" json:"chunk_count"`
	CreatedAt   time.Time   `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time   `bson:"updated_at" json:"updated_at"`
	IndexedAt   *time.Time  `bson:"indexed_at,omitempty" json:"indexed_at,omitempty"`
}

// DocumentResponse adds a short-lived download link to a document.
type DocumentResponse struct {
	Document
	DownloadURL string `json:"download_url,omitempty"`
}
