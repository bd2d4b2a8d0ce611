package store

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"corag/internal/domain/entities"
	"corag/internal/domain/ports"
	"corag/internal/ratelimit"
	"corag/internal/tenant"
)

// Retrieval defaults: cosine similarity, descending, with 0.65 as the
// minimum relevance a chunk must clear to be considered.
const (
	DefaultMinScore = 0.65
	DefaultTopK     = 5
)

// Retriever is the read side of the chunk store. It shares the store's
// throttle discipline, scaled to the read cost model of the backend.
type Retriever struct {
	index    ports.VectorIndex
	reads    *ratelimit.Window
	minScore float64
	readCost float64
	logger   *zap.Logger
	now      func() time.Time
}

// RetrieverOption customizes a Retriever.
type RetrieverOption func(*Retriever)

// WithRetrieverClock replaces the retriever's wall clock.
func WithRetrieverClock(now func() time.Time) RetrieverOption {
	return func(r *Retriever) { r.now = now }
}

// WithMinScore overrides the relevance threshold.
func WithMinScore(minScore float64) RetrieverOption {
	return func(r *Retriever) { r.minScore = minScore }
}

// WithReadCost overrides the capacity units charged per returned result.
func WithReadCost(cost float64) RetrieverOption {
	return func(r *Retriever) { r.readCost = cost }
}

// NewRetriever creates a retriever reading through the given index.
func NewRetriever(index ports.VectorIndex, reads *ratelimit.Window, logger *zap.Logger, opts ...RetrieverOption) *Retriever {
	r := &Retriever{
		index:    index,
		reads:    reads,
		minScore: DefaultMinScore,
		readCost: DefaultReadCost,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Search returns up to topK of the tenant's visible chunks ranked by
// descending similarity to the query vector, restricted to chunks clearing
// the relevance threshold; ties are broken by ascending record ID. An
// empty result is a normal outcome meaning no relevant context exists.
func (r *Retriever) Search(ctx context.Context, tenantKey string, vector []float32, topK int) ([]entities.ScoredChunk, error) {
	tenantID, err := tenant.DeriveID(tenantKey)
	if err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	results, err := r.index.Query(ctx, tenantID, vector, topK, r.minScore, r.now())
	if err != nil {
		return nil, fmt.Errorf("querying index: %w", err)
	}

	// Charge read capacity per returned result, after the fact, the way
	// the backend bills it.
	for range results {
		if err := r.reads.Wait(ctx, r.readCost); err != nil {
			return nil, fmt.Errorf("read throttle: %w", err)
		}
	}

	r.logger.Debug("similarity search",
		zap.String("tenant_id", tenantID),
		zap.Int("top_k", topK),
		zap.Int("results", len(results)),
	)
	return results, nil
}
