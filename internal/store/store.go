// Package store implements the tenant-partitioned chunk store and its
// similarity retriever on top of a ports.VectorIndex backend. It owns
// tenant-key hashing, record identity, expiry stamping and the
// capacity-unit throttles; the backend only ever sees hashed tenant
// identifiers.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"corag/internal/domain/entities"
	"corag/internal/domain/ports"
	"corag/internal/ratelimit"
	"corag/internal/tenant"
)

// Throughput defaults, matching the provisioned capacity of the reference
// deployment: 1000 units/second, 1 unit per upsert, 5 units per read
// result.
const (
	DefaultCapacityUnits  = 1000
	DefaultCapacityWindow = time.Second
	DefaultWriteCost      = 1.0
	DefaultReadCost       = 5.0
	DefaultTTL            = 6 * time.Hour
)

// TenantStore is the write side of the chunk store. One instance per
// backend credential set; the write limiter is owned, never global.
type TenantStore struct {
	index      ports.VectorIndex
	writes     *ratelimit.Window
	dimension  int
	writeCost  float64
	defaultTTL time.Duration
	logger     *zap.Logger
	now        func() time.Time
}

// StoreOption customizes a TenantStore.
type StoreOption func(*TenantStore)

// WithClock replaces the store's wall clock.
func WithClock(now func() time.Time) StoreOption {
	return func(s *TenantStore) { s.now = now }
}

// WithWriteCost overrides the capacity units charged per upserted record.
func WithWriteCost(cost float64) StoreOption {
	return func(s *TenantStore) { s.writeCost = cost }
}

// WithDefaultTTL overrides the retention applied to writes that carry no
// explicit expiry.
func WithDefaultTTL(ttl time.Duration) StoreOption {
	return func(s *TenantStore) {
		if ttl > 0 {
			s.defaultTTL = ttl
		}
	}
}

// NewTenantStore creates a store writing through the given index.
// dimension is the deployment's fixed embedding length; writes carrying a
// different length are rejected, never coerced.
func NewTenantStore(index ports.VectorIndex, writes *ratelimit.Window, dimension int, logger *zap.Logger, opts ...StoreOption) *TenantStore {
	s := &TenantStore{
		index:      index,
		writes:     writes,
		dimension:  dimension,
		writeCost:  DefaultWriteCost,
		defaultTTL: DefaultTTL,
		logger:     logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// recordNamespace seeds deterministic record IDs. A chunk keeps the same
// ID across retries and re-ingestion, so writes are upserts and never
// duplicate visible chunks.
var recordNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("corag.chunk"))

// RecordID derives the stable identifier for a chunk position within a
// tenant's document.
func RecordID(tenantID, documentName string, page, chunkIndex int) string {
	name := fmt.Sprintf("%s/%s/%d/%d", tenantID, documentName, page, chunkIndex)
	return uuid.NewSHA1(recordNamespace, []byte(name)).String()
}

// Write upserts every chunk with its embedding under the tenant's
// partition. Each record charges the write throttle before the batch is
// persisted; bursty ingestion suspends here rather than erroring. The call
// returns only after all records are durably written.
func (s *TenantStore) Write(ctx context.Context, tenantKey string, chunks []entities.Chunk, embeddings [][]float32, expiresAt time.Time) (int, error) {
	tenantID, err := tenant.DeriveID(tenantKey)
	if err != nil {
		return 0, err
	}
	if len(chunks) != len(embeddings) {
		return 0, fmt.Errorf("got %d chunks but %d embeddings", len(chunks), len(embeddings))
	}
	if expiresAt.IsZero() {
		expiresAt = s.now().Add(s.defaultTTL)
	}

	createdAt := s.now()
	records := make([]entities.ChunkRecord, len(chunks))
	for i, chunk := range chunks {
		if len(embeddings[i]) != s.dimension {
			return 0, fmt.Errorf("%w: chunk %d of %q has dimension %d, want %d",
				entities.ErrDimensionMismatch, chunk.Index, chunk.DocumentName, len(embeddings[i]), s.dimension)
		}
		records[i] = entities.ChunkRecord{
			ID:           RecordID(tenantID, chunk.DocumentName, chunk.Page, chunk.Index),
			TenantID:     tenantID,
			DocumentName: chunk.DocumentName,
			Page:         chunk.Page,
			ChunkIndex:   chunk.Index,
			Content:      chunk.Content,
			Embedding:    embeddings[i],
			CreatedAt:    createdAt,
			ExpiresAt:    expiresAt,
		}
	}

	for range records {
		if err := s.writes.Wait(ctx, s.writeCost); err != nil {
			return 0, fmt.Errorf("write throttle: %w", err)
		}
	}
	if err := s.index.Upsert(ctx, records); err != nil {
		return 0, fmt.Errorf("upserting records: %w", err)
	}

	s.logger.Debug("chunks written",
		zap.String("tenant_id", tenantID),
		zap.Int("count", len(records)),
		zap.Time("expires_at", expiresAt),
	)
	return len(records), nil
}

// ListDocuments purges the tenant's expired records, then returns the
// distinct document names still visible. An empty tenant is an empty list,
// not an error.
func (s *TenantStore) ListDocuments(ctx context.Context, tenantKey string) ([]string, error) {
	tenantID, err := tenant.DeriveID(tenantKey)
	if err != nil {
		return nil, err
	}

	now := s.now()
	removed, err := s.index.PurgeExpired(ctx, tenantID, now)
	if err != nil {
		return nil, fmt.Errorf("purging expired records: %w", err)
	}
	if removed > 0 {
		s.logger.Debug("expired records purged on access",
			zap.String("tenant_id", tenantID), zap.Int("removed", removed))
	}

	names, err := s.index.ListDocuments(ctx, tenantID, now)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

// DeleteDocument removes every chunk of the tenant's document. No-op when
// the document does not exist.
func (s *TenantStore) DeleteDocument(ctx context.Context, tenantKey, documentName string) error {
	tenantID, err := tenant.DeriveID(tenantKey)
	if err != nil {
		return err
	}
	if err := s.index.DeleteDocument(ctx, tenantID, documentName); err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	return nil
}

// DeleteTenant removes every record in the tenant's partition.
func (s *TenantStore) DeleteTenant(ctx context.Context, tenantKey string) error {
	tenantID, err := tenant.DeriveID(tenantKey)
	if err != nil {
		return err
	}
	if err := s.index.DeleteTenant(ctx, tenantID); err != nil {
		return fmt.Errorf("deleting tenant: %w", err)
	}
	return nil
}

// PurgeExpired removes expired records for one tenant, or for every tenant
// when tenantKey is empty. Deletion is always keyed by the records' true
// partition key. Safe concurrently with reads and writes: it only touches
// records already past their visibility boundary.
func (s *TenantStore) PurgeExpired(ctx context.Context, tenantKey string) (int, error) {
	tenantID := ""
	if tenantKey != "" {
		var err error
		tenantID, err = tenant.DeriveID(tenantKey)
		if err != nil {
			return 0, err
		}
	}
	removed, err := s.index.PurgeExpired(ctx, tenantID, s.now())
	if err != nil {
		return 0, fmt.Errorf("purging expired records: %w", err)
	}
	return removed, nil
}
