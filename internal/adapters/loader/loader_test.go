package loader

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"corag/internal/domain/entities"
)

func TestTextLoader_Extract(t *testing.T) {
	l := NewTextLoader()

	pages, err := l.Extract(context.Background(), "notes.txt", []byte("hello world"))
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, "hello world", pages[0].Text)
	assert.Equal(t, 1, pages[0].Page)
}

func TestTextLoader_EmptyFile(t *testing.T) {
	l := NewTextLoader()

	pages, err := l.Extract(context.Background(), "empty.txt", []byte("  \n\t"))
	require.NoError(t, err)
	assert.Empty(t, pages)
}

func TestRegistry_DispatchesByExtension(t *testing.T) {
	r := NewRegistry(NewTextLoader())

	pages, err := r.Extract(context.Background(), "README.MD", []byte("docs"))
	require.NoError(t, err, "extension matching is case-insensitive")
	require.Len(t, pages, 1)
	assert.Equal(t, "docs", pages[0].Text)
}

func TestRegistry_UnsupportedExtension(t *testing.T) {
	r := NewRegistry(NewTextLoader(), NewPDFLoader())

	_, err := r.Extract(context.Background(), "slides.pptx", []byte("data"))
	assert.ErrorIs(t, err, entities.ErrUnsupportedFormat)

	_, err = r.Extract(context.Background(), "no-extension", []byte("data"))
	assert.ErrorIs(t, err, entities.ErrUnsupportedFormat)
}

func TestRegistry_SupportedExtensions(t *testing.T) {
	r := NewRegistry(NewTextLoader(), NewPDFLoader())
	assert.ElementsMatch(t,
		[]string{".txt", ".md", ".markdown", ".csv", ".pdf"},
		r.SupportedExtensions())
}
