package embedding

import (
	"context"
	"fmt"
	"time"

	"corag/internal/domain/ports"
	"corag/internal/ratelimit"
)

// DefaultRequestsPerMinute is the embedding provider's request ceiling per
// rolling 60-second window.
const DefaultRequestsPerMinute = 720

// RequestWindow is the rolling window the embedding budget applies to.
const RequestWindow = time.Minute

// Throttled wraps an Embedder with a per-request budget. Callers that
// would exceed the provider's ceiling are suspended until the window
// resets; throughput pressure never surfaces as an error. One Throttled
// instance per provider credential set.
type Throttled struct {
	inner   ports.Embedder
	limiter *ratelimit.Window
}

// NewThrottled wraps inner with the given request limiter.
func NewThrottled(inner ports.Embedder, limiter *ratelimit.Window) *Throttled {
	return &Throttled{inner: inner, limiter: limiter}
}

// Embed charges one request against the window, then delegates.
func (t *Throttled) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := t.limiter.Wait(ctx, 1); err != nil {
		return nil, fmt.Errorf("embedding throttle: %w", err)
	}
	return t.inner.Embed(ctx, text)
}

// EmbedBatch embeds each text under the request budget. A per-item failure
// stops the batch and returns the vectors produced so far; limiter state
// is unaffected by the failure, so the caller can retry the remainder.
func (t *Throttled) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for i, text := range texts {
		vec, err := t.Embed(ctx, text)
		if err != nil {
			return vectors, fmt.Errorf("embedding item %d: %w", i, err)
		}
		vectors = append(vectors, vec)
	}
	return vectors, nil
}

// Dimension returns the wrapped embedder's vector length.
func (t *Throttled) Dimension() int {
	return t.inner.Dimension()
}
