// Package loader provides document text-extraction adapters implementing
// ports.Loader, plus a registry that dispatches on file extension.
package loader

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"corag/internal/domain/entities"
	"corag/internal/domain/ports"
)

// TextLoader handles plain-text formats. The whole file is one page.
type TextLoader struct{}

// NewTextLoader creates a plain-text loader.
func NewTextLoader() *TextLoader {
	return &TextLoader{}
}

// Extract returns the file content as a single page.
func (l *TextLoader) Extract(ctx context.Context, filename string, data []byte) ([]entities.PageText, error) {
	text := string(data)
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	return []entities.PageText{{Text: text, Page: 1}}, nil
}

// SupportedExtensions returns file extensions this loader handles.
func (l *TextLoader) SupportedExtensions() []string {
	return []string{".txt", ".md", ".markdown", ".csv"}
}

// Registry dispatches extraction to the loader registered for the file's
// extension.
type Registry struct {
	loaders map[string]ports.Loader
}

// NewRegistry builds a registry over the given loaders.
func NewRegistry(loaders ...ports.Loader) *Registry {
	r := &Registry{loaders: make(map[string]ports.Loader)}
	for _, l := range loaders {
		for _, ext := range l.SupportedExtensions() {
			r.loaders[strings.ToLower(ext)] = l
		}
	}
	return r
}

// Extract picks the loader for the filename's extension. Unknown
// extensions fail with entities.ErrUnsupportedFormat; this is an input
// error, never retried.
func (r *Registry) Extract(ctx context.Context, filename string, data []byte) ([]entities.PageText, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	l, ok := r.loaders[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %q", entities.ErrUnsupportedFormat, ext)
	}
	return l.Extract(ctx, filename, data)
}

// SupportedExtensions returns every extension a registered loader handles.
func (r *Registry) SupportedExtensions() []string {
	exts := make([]string, 0, len(r.loaders))
	for ext := range r.loaders {
		exts = append(exts, ext)
	}
	return exts
}
