package loader

import (
	"bytes"
	"context"
	"fmt"

	"github.com/ledongthuc/pdf"

	"corag/internal/domain/entities"
)

// PDFLoader extracts text from PDF files in-process, one entry per page so
// chunk records keep their page metadata.
type PDFLoader struct{}

// NewPDFLoader creates a PDF loader.
func NewPDFLoader() *PDFLoader {
	return &PDFLoader{}
}

// Extract reads every page's plain text.
func (l *PDFLoader) Extract(ctx context.Context, filename string, data []byte) ([]entities.PageText, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("opening pdf %q: %w", filename, err)
	}

	var pages []entities.PageText
	for i := 1; i <= reader.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extracting page %d of %q: %w", i, filename, err)
		}
		if text == "" {
			continue
		}
		pages = append(pages, entities.PageText{Text: text, Page: i})
	}
	return pages, nil
}

// SupportedExtensions returns file extensions this loader handles.
func (l *PDFLoader) SupportedExtensions() []string {
	return []string{".pdf"}
}
