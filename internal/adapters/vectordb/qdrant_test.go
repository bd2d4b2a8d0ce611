package vectordb

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"corag/internal/domain/entities"
)

// newQdrantTestIndex connects to a local Qdrant or skips. Integration
// coverage only; the memory index covers the contract in unit tests.
func newQdrantTestIndex(t *testing.T) *QdrantIndex {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping qdrant integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	idx, err := NewQdrantIndex(ctx, QdrantConfig{
		Host:       "localhost",
		Port:       6334,
		Collection: fmt.Sprintf("corag_test_%d", time.Now().UnixNano()),
		VectorSize: 3,
	})
	if err != nil {
		t.Skipf("qdrant not available: %v", err)
	}
	t.Cleanup(func() { idx.Close() })
	return idx
}

func TestQdrantListDocuments_PaginatesPastOnePage(t *testing.T) {
	idx := newQdrantTestIndex(t)
	idx.pageSize = 2 // force several scroll pages
	ctx := context.Background()
	now := time.Now()

	var records []entities.ChunkRecord
	for doc := 0; doc < 3; doc++ {
		for chunk := 0; chunk < 3; chunk++ {
			records = append(records, entities.ChunkRecord{
				ID:           fmt.Sprintf("00000000-0000-0000-000%d-00000000000%d", doc, chunk),
				TenantID:     "tenant-pages",
				DocumentName: fmt.Sprintf("doc-%d.txt", doc),
				Page:         1,
				ChunkIndex:   chunk,
				Content:      "content",
				Embedding:    []float32{1, 0, 0},
				CreatedAt:    now,
				ExpiresAt:    now.Add(time.Hour),
			})
		}
	}
	require.NoError(t, idx.Upsert(ctx, records))

	names, err := idx.ListDocuments(ctx, "tenant-pages", now)
	require.NoError(t, err)
	assert.Equal(t, []string{"doc-0.txt", "doc-1.txt", "doc-2.txt"}, names,
		"names beyond the first scroll page must not be lost")
}
