// Package knowledge loads web pages into documents and, when a store is
// configured, chunks and embeds them for similarity search.
package knowledge

import "github.com/google/uuid"

// Metadata keys set by the web loader.
const (
	MetaSource      = "source"
	MetaTitle       = "title"
	MetaDescription = "description"
	MetaLanguage    = "language"
)

// Document is loaded page text plus metadata about where it came from.
type Document struct {
	ID       string            `json:"id,omitempty"`
	Content  string            `json:"page_content"`
	Metadata map[string]string `json:"metadata"`
}

// EmbeddingStatus tracks a chunk through the embedding pipeline.
type EmbeddingStatus string

const (
	EmbeddingStatusPending  EmbeddingStatus = "pending"
	EmbeddingStatusEmbedded EmbeddingStatus = "embedded"
	EmbeddingStatusFailed   EmbeddingStatus = "failed"
)

// StoredChunk is one persisted window of a document.
type StoredChunk struct {
	ID         string          `json:"id"`
	DocumentID string          `json:"document_id"`
	Seq        int             `json:"seq"`
	Content    string          `json:"content"`
	Status     EmbeddingStatus `json:"status"`
}

func newID() string { return uuid.Must(uuid.NewV7()).String() }
