// Package ports defines interfaces for external dependencies.
// Usecases depend on these abstractions, not concrete implementations;
// adapters implement them.
package ports

import (
	"context"
	"time"

	"corag/internal/domain/entities"
)

// Embedder generates fixed-dimension vector embeddings for text.
type Embedder interface {
	// Embed generates a vector embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts. A failure on one
	// item stops the batch; the embeddings produced before it are returned
	// alongside the failing item's error, and internal state stays intact.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the vector length this embedder produces.
	Dimension() int
}

// StreamToken is a single event in a streamed answer. A token with Err set
// is terminal: the channel closes after it.
type StreamToken struct {
	Content string
	Done    bool
	Err     error
}

// Generator produces a streamed text response from a language model.
type Generator interface {
	// Stream starts a generation and returns a channel of tokens. The
	// producer stops promptly when ctx is cancelled. A mid-stream provider
	// failure is delivered as a token with Err set, then the channel closes.
	Stream(ctx context.Context, systemPrompt, userPrompt string) (<-chan StreamToken, error)
}

// Loader extracts text from a document of a specific format.
type Loader interface {
	// Extract returns the document's text split per page. Returns
	// entities.ErrUnsupportedFormat for file types it does not handle.
	Extract(ctx context.Context, filename string, data []byte) ([]entities.PageText, error)

	// SupportedExtensions returns file extensions this loader handles.
	SupportedExtensions() []string
}

// VectorIndex is the raw storage backend for chunk records. It is a black
// box honoring per-tenant partition isolation: every operation is scoped by
// the hashed tenant identifier, never the raw secret.
type VectorIndex interface {
	// Upsert writes records, replacing any prior record with the same ID.
	Upsert(ctx context.Context, records []entities.ChunkRecord) error

	// Query returns up to limit records of the tenant that are visible at
	// now and whose cosine similarity to vector clears minScore, ranked by
	// descending similarity, ties broken by ascending record ID.
	Query(ctx context.Context, tenantID string, vector []float32, limit int, minScore float64, now time.Time) ([]entities.ScoredChunk, error)

	// ListDocuments returns the distinct document names visible at now.
	ListDocuments(ctx context.Context, tenantID string, now time.Time) ([]string, error)

	// DeleteDocument removes all records for the tenant and document name.
	// No-op if none exist.
	DeleteDocument(ctx context.Context, tenantID, documentName string) error

	// DeleteTenant removes all records for the tenant.
	DeleteTenant(ctx context.Context, tenantID string) error

	// PurgeExpired removes records whose expiry has passed, scoped to one
	// tenant or, with an empty tenantID, to all. Returns the removed count.
	PurgeExpired(ctx context.Context, tenantID string, now time.Time) (int, error)
}

// FileWatcher monitors a directory for document changes.
type FileWatcher interface {
	// Watch starts monitoring the directory and emits events until ctx ends.
	Watch(ctx context.Context, dir string) (<-chan FileEvent, error)

	// Stop stops the watcher.
	Stop() error
}

// FileEvent represents a file system change.
type FileEvent struct {
	Path      string
	Operation FileOperation
}

// FileOperation is the type of file change.
type FileOperation int

const (
	FileCreated FileOperation = iota
	FileModified
	FileDeleted
)
