package vectordb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"corag/internal/domain/entities"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func record(id, tenantID, doc string, embedding []float32, expiresAt time.Time) entities.ChunkRecord {
	return entities.ChunkRecord{
		ID:           id,
		TenantID:     tenantID,
		DocumentName: doc,
		Content:      "content of " + id,
		Embedding:    embedding,
		CreatedAt:    testNow.Add(-time.Hour),
		ExpiresAt:    expiresAt,
	}
}

func TestMemoryIndex_TenantIsolation(t *testing.T) {
	idx := NewMemoryIndex()
	ctx := context.Background()
	live := testNow.Add(time.Hour)

	require.NoError(t, idx.Upsert(ctx, []entities.ChunkRecord{
		record("a1", "tenant-a", "a.pdf", []float32{1, 0}, live),
		record("b1", "tenant-b", "b.pdf", []float32{1, 0}, live),
	}))

	results, err := idx.Query(ctx, "tenant-a", []float32{1, 0}, 10, 0, testNow)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a1", results[0].Record.ID)

	docs, err := idx.ListDocuments(ctx, "tenant-b", testNow)
	require.NoError(t, err)
	assert.Equal(t, []string{"b.pdf"}, docs)
}

func TestMemoryIndex_ExpiredRecordsInvisible(t *testing.T) {
	idx := NewMemoryIndex()
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, []entities.ChunkRecord{
		record("live", "t", "doc.pdf", []float32{1, 0}, testNow.Add(time.Minute)),
		record("dead", "t", "old.pdf", []float32{1, 0}, testNow.Add(-time.Minute)),
	}))

	results, err := idx.Query(ctx, "t", []float32{1, 0}, 10, 0, testNow)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "live", results[0].Record.ID)

	docs, err := idx.ListDocuments(ctx, "t", testNow)
	require.NoError(t, err)
	assert.Equal(t, []string{"doc.pdf"}, docs)

	removed, err := idx.PurgeExpired(ctx, "t", testNow)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
}

func TestMemoryIndex_QueryRankingAndThreshold(t *testing.T) {
	idx := NewMemoryIndex()
	ctx := context.Background()
	live := testNow.Add(time.Hour)

	require.NoError(t, idx.Upsert(ctx, []entities.ChunkRecord{
		record("far", "t", "d.pdf", []float32{0, 1}, live),
		record("close", "t", "d.pdf", []float32{1, 0.1}, live),
		record("exact", "t", "d.pdf", []float32{1, 0}, live),
	}))

	results, err := idx.Query(ctx, "t", []float32{1, 0}, 10, 0.65, testNow)
	require.NoError(t, err)
	require.Len(t, results, 2, "orthogonal vector must not clear the threshold")
	assert.Equal(t, "exact", results[0].Record.ID)
	assert.Equal(t, "close", results[1].Record.ID)
}

func TestMemoryIndex_QueryTieBreakByID(t *testing.T) {
	idx := NewMemoryIndex()
	ctx := context.Background()
	live := testNow.Add(time.Hour)

	require.NoError(t, idx.Upsert(ctx, []entities.ChunkRecord{
		record("zz", "t", "d.pdf", []float32{1, 0}, live),
		record("aa", "t", "d.pdf", []float32{1, 0}, live),
		record("mm", "t", "d.pdf", []float32{1, 0}, live),
	}))

	results, err := idx.Query(ctx, "t", []float32{1, 0}, 10, 0, testNow)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "aa", results[0].Record.ID)
	assert.Equal(t, "mm", results[1].Record.ID)
	assert.Equal(t, "zz", results[2].Record.ID)
}

func TestMemoryIndex_UpsertReplacesByID(t *testing.T) {
	idx := NewMemoryIndex()
	ctx := context.Background()
	live := testNow.Add(time.Hour)

	require.NoError(t, idx.Upsert(ctx, []entities.ChunkRecord{record("r1", "t", "d.pdf", []float32{1, 0}, live)}))
	require.NoError(t, idx.Upsert(ctx, []entities.ChunkRecord{record("r1", "t", "d.pdf", []float32{0, 1}, live)}))

	results, err := idx.Query(ctx, "t", []float32{0, 1}, 10, 0, testNow)
	require.NoError(t, err)
	require.Len(t, results, 1, "re-upsert with the same ID must not duplicate")
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
}

func TestMemoryIndex_DeleteDocument(t *testing.T) {
	idx := NewMemoryIndex()
	ctx := context.Background()
	live := testNow.Add(time.Hour)

	require.NoError(t, idx.Upsert(ctx, []entities.ChunkRecord{
		record("f1", "t", "foo.pdf", []float32{1, 0}, live),
		record("f2", "t", "foo.pdf", []float32{1, 0}, live),
		record("b1", "t", "bar.pdf", []float32{1, 0}, live),
	}))

	require.NoError(t, idx.DeleteDocument(ctx, "t", "foo.pdf"))

	docs, err := idx.ListDocuments(ctx, "t", testNow)
	require.NoError(t, err)
	assert.Equal(t, []string{"bar.pdf"}, docs)

	// Deleting a missing document is a no-op.
	assert.NoError(t, idx.DeleteDocument(ctx, "t", "missing.pdf"))
}

func TestMemoryIndex_DeleteTenant(t *testing.T) {
	idx := NewMemoryIndex()
	ctx := context.Background()
	live := testNow.Add(time.Hour)

	require.NoError(t, idx.Upsert(ctx, []entities.ChunkRecord{
		record("a1", "tenant-a", "a.pdf", []float32{1, 0}, live),
		record("b1", "tenant-b", "b.pdf", []float32{1, 0}, live),
	}))

	require.NoError(t, idx.DeleteTenant(ctx, "tenant-a"))

	docs, err := idx.ListDocuments(ctx, "tenant-a", testNow)
	require.NoError(t, err)
	assert.Empty(t, docs)

	docs, err = idx.ListDocuments(ctx, "tenant-b", testNow)
	require.NoError(t, err)
	assert.Equal(t, []string{"b.pdf"}, docs)
}

func TestMemoryIndex_PurgeExpiredAllTenants(t *testing.T) {
	idx := NewMemoryIndex()
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, []entities.ChunkRecord{
		record("a1", "tenant-a", "a.pdf", []float32{1, 0}, testNow.Add(-time.Minute)),
		record("b1", "tenant-b", "b.pdf", []float32{1, 0}, testNow.Add(-time.Minute)),
		record("b2", "tenant-b", "b.pdf", []float32{1, 0}, testNow.Add(time.Minute)),
	}))

	removed, err := idx.PurgeExpired(ctx, "", testNow)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	docs, err := idx.ListDocuments(ctx, "tenant-b", testNow)
	require.NoError(t, err)
	assert.Equal(t, []string{"b.pdf"}, docs)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 2, 3}, []float32{1, 2, 3}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Zero(t, cosineSimilarity([]float32{1, 0}, []float32{1, 0, 0}), "mismatched dimensions score zero")
	assert.Zero(t, cosineSimilarity(nil, nil))
}
