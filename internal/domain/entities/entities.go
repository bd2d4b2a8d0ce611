// Package entities contains core business entities.
// These are the enterprise business rules - pure domain objects with no external dependencies.
package entities

import (
	"errors"
	"time"
)

// Sentinel errors shared across the pipeline.
var (
	// ErrUnsupportedFormat is returned by loaders for file types they cannot extract.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrDimensionMismatch is returned when an embedding does not match the
	// deployment's configured vector dimension. Never coerced silently.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrEmptyTenantKey is returned when a caller supplies no tenant key.
	ErrEmptyTenantKey = errors.New("tenant key must not be empty")
)

// PageText is one page of extracted document text, as produced by a loader.
type PageText struct {
	Text string
	Page int
}

// File is a caller-supplied document to ingest.
type File struct {
	Name string
	Data []byte
}

// ChunkRecord is the atomic stored unit: a bounded slice of document text
// plus its embedding and position metadata, partitioned by tenant.
// Records are immutable once written; a retried write with the same ID
// replaces the prior value.
type ChunkRecord struct {
	ID           string
	TenantID     string
	DocumentName string
	Page         int
	ChunkIndex   int
	Content      string
	Embedding    []float32
	CreatedAt    time.Time
	ExpiresAt    time.Time
}

// Visible reports whether the record may appear in reads at the given time.
func (r ChunkRecord) Visible(now time.Time) bool {
	return now.Before(r.ExpiresAt)
}

// ScoredChunk is a retrieval result with its similarity to the query vector.
type ScoredChunk struct {
	Record ChunkRecord
	Score  float64
}

// Chunk is a text window produced by the chunker before embedding.
type Chunk struct {
	DocumentName string
	Page         int
	Index        int
	Offset       int
	Content      string
}

// FileError records a per-file ingestion failure. Other files in the same
// call are unaffected.
type FileError struct {
	Name string
	Err  error
}

// IngestReport summarizes one ingestion call.
type IngestReport struct {
	ProcessedFiles []string
	FailedFiles    []FileError
	TotalChunks    int
}
