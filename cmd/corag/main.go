// Command corag runs the tenant-partitioned document Q&A service.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"corag/internal/adapters/embedding"
	"corag/internal/adapters/filewatcher"
	"corag/internal/adapters/generation"
	"corag/internal/adapters/loader"
	"corag/internal/adapters/vectordb"
	"corag/internal/chunker"
	"corag/internal/config"
	"corag/internal/domain/usecases"
	httpserver "corag/internal/infrastructure/http"
	"corag/internal/logging"
	"corag/internal/ratelimit"
	"corag/internal/store"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "corag: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	// .env is a development convenience; absence is fine.
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	index, closeIndex, err := vectordb.New(ctx, vectordb.Config{
		Backend:  cfg.Store.Backend,
		DataPath: cfg.Store.DataPath,
		Qdrant: vectordb.QdrantConfig{
			Host:       cfg.Qdrant.Host,
			Port:       cfg.Qdrant.Port,
			UseTLS:     cfg.Qdrant.UseTLS,
			APIKey:     cfg.Qdrant.APIKey,
			Collection: cfg.Qdrant.Collection,
			VectorSize: uint64(cfg.Embedding.Dimension),
		},
	})
	if err != nil {
		return fmt.Errorf("opening vector index: %w", err)
	}
	defer closeIndex()

	embedder, err := embedding.NewOpenAIEmbedder(embedding.OpenAIConfig{
		APIKey:    cfg.Embedding.APIKey,
		BaseURL:   cfg.Embedding.BaseURL,
		Model:     cfg.Embedding.Model,
		Dimension: cfg.Embedding.Dimension,
		Timeout:   cfg.Embedding.Timeout,
	})
	if err != nil {
		return fmt.Errorf("creating embedder: %w", err)
	}
	embedLimiter, err := ratelimit.NewWindow(cfg.Embedding.RequestsPerMinute, embedding.RequestWindow)
	if err != nil {
		return fmt.Errorf("creating embedding limiter: %w", err)
	}
	throttled := embedding.NewThrottled(embedder, embedLimiter)

	generator, err := generation.NewOpenAIGenerator(generation.OpenAIConfig{
		APIKey:    cfg.Generation.APIKey,
		BaseURL:   cfg.Generation.BaseURL,
		Model:     cfg.Generation.Model,
		MaxTokens: cfg.Generation.MaxTokens,
		Timeout:   cfg.Generation.Timeout,
	})
	if err != nil {
		return fmt.Errorf("creating generator: %w", err)
	}

	writes, err := ratelimit.NewWindow(cfg.Store.CapacityUnits, store.DefaultCapacityWindow)
	if err != nil {
		return fmt.Errorf("creating write limiter: %w", err)
	}
	reads, err := ratelimit.NewWindow(cfg.Store.CapacityUnits, store.DefaultCapacityWindow)
	if err != nil {
		return fmt.Errorf("creating read limiter: %w", err)
	}
	tenantStore := store.NewTenantStore(index, writes, cfg.Embedding.Dimension, logger,
		store.WithDefaultTTL(cfg.Store.DefaultTTL))
	retriever := store.NewRetriever(index, reads, logger, store.WithMinScore(cfg.Store.MinScore))

	ch, err := chunker.New(cfg.Chunking.Size, cfg.Chunking.Overlap)
	if err != nil {
		return fmt.Errorf("creating chunker: %w", err)
	}
	registry := loader.NewRegistry(loader.NewTextLoader(), loader.NewPDFLoader())

	ingestUC := usecases.NewIngestUseCase(registry, ch, throttled, tenantStore, logger)
	askUC := usecases.NewAskUseCase(throttled, retriever, generator, cfg.Store.TopK, logger)

	if cfg.Store.SweepInterval > 0 {
		go runSweeper(ctx, tenantStore, cfg.Store.SweepInterval, logger)
	}

	if cfg.Watcher.Enabled {
		if cfg.Watcher.TenantKey == "" {
			return fmt.Errorf("watcher.tenant_key is required when the watcher is enabled")
		}
		watcher, err := filewatcher.NewFSNotifyWatcher(registry.SupportedExtensions(), logger)
		if err != nil {
			return fmt.Errorf("creating file watcher: %w", err)
		}
		defer watcher.Stop()

		auto := filewatcher.NewAutoIngestor(watcher, ingestUC, tenantStore, cfg.Watcher.TenantKey, logger)
		go func() {
			if err := auto.Run(ctx, cfg.Watcher.Dir); err != nil {
				logger.Error("auto-ingest stopped", zap.Error(err))
			}
		}()
		logger.Info("watching directory", zap.String("dir", cfg.Watcher.Dir))
	}

	server := httpserver.NewServer(httpserver.Config{
		Addr:        cfg.Server.Addr(),
		MaxUploadMB: cfg.Server.MaxUploadMB,
	}, ingestUC, askUC, tenantStore, logger)

	return server.Start(ctx, cfg.Server.ShutdownTimeout)
}

// runSweeper periodically removes expired records across every tenant, so
// storage is reclaimed even for partitions nobody reads anymore.
func runSweeper(ctx context.Context, st *store.TenantStore, interval time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := st.PurgeExpired(ctx, "")
			if err != nil {
				logger.Warn("expiry sweep failed", zap.Error(err))
				continue
			}
			if removed > 0 {
				logger.Info("expired records swept", zap.Int("removed", removed))
			}
		}
	}
}
