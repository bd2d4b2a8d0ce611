package vectordb

import (
	"context"
	"fmt"

	"corag/internal/domain/ports"
)

// Backend names accepted by the factory.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendQdrant = "qdrant"
)

// Config selects and configures a vector index backend.
type Config struct {
	Backend  string
	DataPath string
	Qdrant   QdrantConfig
}

// New builds the configured backend. The returned close function releases
// any held connections and is safe to call on every backend.
func New(ctx context.Context, cfg Config) (ports.VectorIndex, func() error, error) {
	switch cfg.Backend {
	case BackendMemory, "":
		return NewMemoryIndex(), func() error { return nil }, nil
	case BackendSQLite:
		idx, err := NewSQLiteIndex(cfg.DataPath)
		if err != nil {
			return nil, nil, err
		}
		return idx, idx.Close, nil
	case BackendQdrant:
		idx, err := NewQdrantIndex(ctx, cfg.Qdrant)
		if err != nil {
			return nil, nil, err
		}
		return idx, idx.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown vector index backend %q", cfg.Backend)
	}
}
