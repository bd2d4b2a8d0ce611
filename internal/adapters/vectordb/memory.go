// Package vectordb provides vector index adapters implementing
// ports.VectorIndex. All of them partition records by tenant identifier
// and keep expired records out of every read path.
package vectordb

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"corag/internal/domain/entities"
)

// MemoryIndex is an in-process index used in tests and single-node dev
// runs. Records live in per-tenant maps keyed by record ID, so upserts
// with a repeated ID replace the prior value.
type MemoryIndex struct {
	mu      sync.RWMutex
	tenants map[string]map[string]entities.ChunkRecord
}

// NewMemoryIndex creates an empty in-memory index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{tenants: make(map[string]map[string]entities.ChunkRecord)}
}

// Upsert writes records, replacing any prior record with the same ID.
func (m *MemoryIndex) Upsert(ctx context.Context, records []entities.ChunkRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, rec := range records {
		part, ok := m.tenants[rec.TenantID]
		if !ok {
			part = make(map[string]entities.ChunkRecord)
			m.tenants[rec.TenantID] = part
		}
		part[rec.ID] = rec
	}
	return nil
}

// Query scans only the tenant's partition, scores visible records by
// cosine similarity and returns at most limit results at or above
// minScore, best first, ties broken by ascending ID.
func (m *MemoryIndex) Query(ctx context.Context, tenantID string, vector []float32, limit int, minScore float64, now time.Time) ([]entities.ScoredChunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var results []entities.ScoredChunk
	for _, rec := range m.tenants[tenantID] {
		if !rec.Visible(now) {
			continue
		}
		score := cosineSimilarity(vector, rec.Embedding)
		if score < minScore {
			continue
		}
		results = append(results, entities.ScoredChunk{Record: rec, Score: score})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Record.ID < results[j].Record.ID
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// ListDocuments returns the distinct document names still visible for the
// tenant, sorted for determinism.
func (m *MemoryIndex) ListDocuments(ctx context.Context, tenantID string, now time.Time) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, rec := range m.tenants[tenantID] {
		if rec.Visible(now) {
			seen[rec.DocumentName] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// DeleteDocument removes all records for the tenant and document name.
func (m *MemoryIndex) DeleteDocument(ctx context.Context, tenantID, documentName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, rec := range m.tenants[tenantID] {
		if rec.DocumentName == documentName {
			delete(m.tenants[tenantID], id)
		}
	}
	return nil
}

// DeleteTenant removes the tenant's whole partition.
func (m *MemoryIndex) DeleteTenant(ctx context.Context, tenantID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.tenants, tenantID)
	return nil
}

// PurgeExpired removes expired records for one tenant, or for all tenants
// when tenantID is empty. Only records already past their visibility
// boundary are touched, so concurrent reads are unaffected.
func (m *MemoryIndex) PurgeExpired(ctx context.Context, tenantID string, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for tid, part := range m.tenants {
		if tenantID != "" && tid != tenantID {
			continue
		}
		for id, rec := range part {
			if !rec.Visible(now) {
				delete(part, id)
				removed++
			}
		}
	}
	return removed, nil
}

// cosineSimilarity computes the cosine of the angle between two vectors.
// Mismatched or zero-length vectors score 0.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
