// Package usecases contains application business rules. Usecases
// orchestrate entities through port interfaces and hold no framework code.
package usecases

import (
	"context"
	"time"

	"go.uber.org/zap"

	"corag/internal/chunker"
	"corag/internal/domain/entities"
	"corag/internal/domain/ports"
	"corag/internal/store"
)

// IngestUseCase drives the ingestion pipeline: extract, chunk, embed,
// store. A failure on one file is isolated; the remaining files in the
// call are still processed and the failure is reported per file.
type IngestUseCase struct {
	loader   ports.Loader
	chunker  *chunker.Chunker
	embedder ports.Embedder
	store    *store.TenantStore
	logger   *zap.Logger
}

// NewIngestUseCase creates an IngestUseCase with injected dependencies.
func NewIngestUseCase(
	loader ports.Loader,
	ch *chunker.Chunker,
	embedder ports.Embedder,
	st *store.TenantStore,
	logger *zap.Logger,
) *IngestUseCase {
	return &IngestUseCase{
		loader:   loader,
		chunker:  ch,
		embedder: embedder,
		store:    st,
		logger:   logger,
	}
}

// Ingest processes the call's files and writes every produced chunk under
// the tenant's partition with the given expiry. All chunks of the call are
// durably written before the report is returned. No chunk is silently
// dropped: each either lands in the store or its file appears in
// FailedFiles.
func (uc *IngestUseCase) Ingest(ctx context.Context, tenantKey string, files []entities.File, expiresAt time.Time) (*entities.IngestReport, error) {
	if tenantKey == "" {
		return nil, entities.ErrEmptyTenantKey
	}

	report := &entities.IngestReport{}
	var (
		allChunks  []entities.Chunk
		allVectors [][]float32
	)

	for _, file := range files {
		chunks, vectors, err := uc.prepareFile(ctx, file)
		if err != nil {
			uc.logger.Warn("file ingestion failed",
				zap.String("file", file.Name), zap.Error(err))
			report.FailedFiles = append(report.FailedFiles, entities.FileError{Name: file.Name, Err: err})
			continue
		}
		allChunks = append(allChunks, chunks...)
		allVectors = append(allVectors, vectors...)
		report.ProcessedFiles = append(report.ProcessedFiles, file.Name)
	}

	if len(allChunks) > 0 {
		n, err := uc.store.Write(ctx, tenantKey, allChunks, allVectors, expiresAt)
		if err != nil {
			return nil, err
		}
		report.TotalChunks = n
	}

	uc.logger.Info("ingestion finished",
		zap.Int("processed", len(report.ProcessedFiles)),
		zap.Int("failed", len(report.FailedFiles)),
		zap.Int("chunks", report.TotalChunks),
	)
	return report, nil
}

// prepareFile extracts, chunks and embeds a single file.
func (uc *IngestUseCase) prepareFile(ctx context.Context, file entities.File) ([]entities.Chunk, [][]float32, error) {
	pages, err := uc.loader.Extract(ctx, file.Name, file.Data)
	if err != nil {
		return nil, nil, err
	}

	chunks := uc.chunker.Split(file.Name, pages)
	if len(chunks) == 0 {
		return nil, nil, nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}
	vectors, err := uc.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, nil, err
	}
	return chunks, vectors, nil
}
