package filewatcher

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"corag/internal/domain/entities"
	"corag/internal/domain/ports"
	"corag/internal/domain/usecases"
	"corag/internal/store"
)

// AutoIngestor consumes watcher events and keeps the configured tenant's
// partition in sync with a local directory. Created or modified files are
// re-ingested; removed files are deleted from the store.
type AutoIngestor struct {
	watcher   ports.FileWatcher
	ingest    *usecases.IngestUseCase
	store     *store.TenantStore
	tenantKey string
	logger    *zap.Logger
}

// NewAutoIngestor wires a watcher to the ingestion pipeline.
func NewAutoIngestor(
	watcher ports.FileWatcher,
	ingest *usecases.IngestUseCase,
	st *store.TenantStore,
	tenantKey string,
	logger *zap.Logger,
) *AutoIngestor {
	return &AutoIngestor{
		watcher:   watcher,
		ingest:    ingest,
		store:     st,
		tenantKey: tenantKey,
		logger:    logger,
	}
}

// Run ingests files already present in dir, then follows change events
// until ctx is cancelled. Blocking; callers run it in a goroutine.
func (a *AutoIngestor) Run(ctx context.Context, dir string) error {
	if err := a.ingestExisting(ctx, dir); err != nil {
		return err
	}

	events, err := a.watcher.Watch(ctx, dir)
	if err != nil {
		return err
	}

	for event := range events {
		switch event.Operation {
		case ports.FileCreated, ports.FileModified:
			a.ingestFile(ctx, event.Path)
		case ports.FileDeleted:
			name := filepath.Base(event.Path)
			if err := a.store.DeleteDocument(ctx, a.tenantKey, name); err != nil {
				a.logger.Warn("removing watched document failed",
					zap.String("file", name), zap.Error(err))
			} else {
				a.logger.Info("watched document removed", zap.String("file", name))
			}
		}
	}
	return nil
}

func (a *AutoIngestor) ingestExisting(ctx context.Context, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		a.ingestFile(ctx, filepath.Join(dir, entry.Name()))
	}
	return nil
}

func (a *AutoIngestor) ingestFile(ctx context.Context, path string) {
	// Writers may still be flushing when the event fires.
	time.Sleep(100 * time.Millisecond)

	data, err := os.ReadFile(path)
	if err != nil {
		a.logger.Warn("reading watched file failed", zap.String("path", path), zap.Error(err))
		return
	}

	name := filepath.Base(path)
	report, err := a.ingest.Ingest(ctx, a.tenantKey, []entities.File{{Name: name, Data: data}}, time.Time{})
	if err != nil {
		a.logger.Warn("ingesting watched file failed", zap.String("file", name), zap.Error(err))
		return
	}
	if len(report.FailedFiles) > 0 {
		a.logger.Warn("watched file rejected",
			zap.String("file", name), zap.Error(report.FailedFiles[0].Err))
		return
	}
	a.logger.Info("watched file ingested",
		zap.String("file", name), zap.Int("chunks", report.TotalChunks))
}
