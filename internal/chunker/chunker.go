// Package chunker splits extracted document text into overlapping
// fixed-size windows for embedding. Pure transformation: no I/O, no
// randomness, identical input and configuration always produce identical
// output.
package chunker

import (
	"fmt"
	"strings"

	"corag/internal/domain/entities"
)

const (
	// DefaultChunkSize is the maximum chunk length in characters.
	DefaultChunkSize = 1000
	// DefaultOverlap is the number of characters shared by consecutive chunks.
	DefaultOverlap = 200
)

// Chunker produces overlapping text windows. Window starts advance by
// (size - overlap), so 2,500 characters at 1000/200 yield chunks at
// offsets 0, 800 and 1600.
type Chunker struct {
	size    int
	overlap int
}

// New creates a Chunker. Overlap must be strictly smaller than size to
// guarantee forward progress.
func New(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("overlap must be in [0, size), got overlap=%d size=%d", overlap, size)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

var lineBreaks = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

// Normalize flattens line breaks to spaces before splitting, so chunks
// carry continuous prose for the embedding model.
func Normalize(text string) string {
	return lineBreaks.Replace(text)
}

// Split chunks every page of a document. Chunk indexes increase across the
// whole document, so they are unique within a document name. Empty pages
// yield no chunks.
func (c *Chunker) Split(documentName string, pages []entities.PageText) []entities.Chunk {
	var chunks []entities.Chunk
	index := 0
	for _, page := range pages {
		for _, w := range c.windows(Normalize(page.Text)) {
			chunks = append(chunks, entities.Chunk{
				DocumentName: documentName,
				Page:         page.Page,
				Index:        index,
				Offset:       w.offset,
				Content:      w.text,
			})
			index++
		}
	}
	return chunks
}

type window struct {
	offset int
	text   string
}

// windows slices text into size-length runs of runes, each starting
// (size - overlap) runes after the previous. A chunk is never zero-length;
// the final chunk may be shorter than size.
func (c *Chunker) windows(text string) []window {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	stride := c.size - c.overlap
	var out []window
	for start := 0; start < len(runes); start += stride {
		end := start + c.size
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, window{offset: start, text: string(runes[start:end])})
		if end == len(runes) {
			break
		}
	}
	return out
}
