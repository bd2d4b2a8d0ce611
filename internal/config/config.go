// Package config loads application configuration from an optional YAML
// file with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix namespaces the environment overrides, e.g.
// CORAG_EMBEDDING_API_KEY maps to embedding.api_key.
const EnvPrefix = "CORAG_"

// Config is the application configuration.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Logging    LoggingConfig    `koanf:"logging"`
	Chunking   ChunkingConfig   `koanf:"chunking"`
	Embedding  EmbeddingConfig  `koanf:"embedding"`
	Generation GenerationConfig `koanf:"generation"`
	Store      StoreConfig      `koanf:"store"`
	Qdrant     QdrantConfig     `koanf:"qdrant"`
	Watcher    WatcherConfig    `koanf:"watcher"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	MaxUploadMB     int           `koanf:"max_upload_mb"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json or console
}

// ChunkingConfig configures the text splitter.
type ChunkingConfig struct {
	Size    int `koanf:"size"`
	Overlap int `koanf:"overlap"`
}

// EmbeddingConfig configures the embedding provider and its throttle.
type EmbeddingConfig struct {
	APIKey            string        `koanf:"api_key"`
	BaseURL           string        `koanf:"base_url"`
	Model             string        `koanf:"model"`
	Dimension         int           `koanf:"dimension"`
	RequestsPerMinute float64       `koanf:"requests_per_minute"`
	Timeout           time.Duration `koanf:"timeout"`
}

// GenerationConfig configures the chat completion provider.
type GenerationConfig struct {
	APIKey    string        `koanf:"api_key"`
	BaseURL   string        `koanf:"base_url"`
	Model     string        `koanf:"model"`
	MaxTokens int64         `koanf:"max_tokens"`
	Timeout   time.Duration `koanf:"timeout"`
}

// StoreConfig configures the chunk store, its capacity throttle and
// retrieval defaults.
type StoreConfig struct {
	Backend       string        `koanf:"backend"` // memory, sqlite or qdrant
	DataPath      string        `koanf:"data_path"`
	CapacityUnits float64       `koanf:"capacity_units"`
	DefaultTTL    time.Duration `koanf:"default_ttl"`
	SweepInterval time.Duration `koanf:"sweep_interval"`
	TopK          int           `koanf:"top_k"`
	MinScore      float64       `koanf:"min_score"`
}

// QdrantConfig configures the qdrant backend when store.backend is qdrant.
type QdrantConfig struct {
	Host       string `koanf:"host"`
	Port       int    `koanf:"port"`
	UseTLS     bool   `koanf:"use_tls"`
	APIKey     string `koanf:"api_key"`
	Collection string `koanf:"collection"`
}

// WatcherConfig configures directory auto-ingestion for local development.
// Files dropped into Dir are ingested under TenantKey.
type WatcherConfig struct {
	Enabled   bool   `koanf:"enabled"`
	Dir       string `koanf:"dir"`
	TenantKey string `koanf:"tenant_key"`
}

// Default returns the configuration used when neither file nor
// environment override a value.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ShutdownTimeout: 10 * time.Second,
			MaxUploadMB:     32,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Chunking: ChunkingConfig{
			Size:    1000,
			Overlap: 200,
		},
		Embedding: EmbeddingConfig{
			Model:             "text-embedding-3-small",
			Dimension:         1536,
			RequestsPerMinute: 720,
			Timeout:           30 * time.Second,
		},
		Generation: GenerationConfig{
			Model:     "gpt-4o-mini",
			MaxTokens: 2048,
			Timeout:   120 * time.Second,
		},
		Store: StoreConfig{
			Backend:       "sqlite",
			DataPath:      "data/corag.db",
			CapacityUnits: 1000,
			DefaultTTL:    6 * time.Hour,
			SweepInterval: 15 * time.Minute,
			TopK:          5,
			MinScore:      0.65,
		},
		Qdrant: QdrantConfig{
			Host:       "localhost",
			Port:       6334,
			Collection: "corag_chunks",
		},
	}
}

// Load reads configuration: defaults, then the YAML file at path (skipped
// when path is empty or the file does not exist), then CORAG_* environment
// variables.
func Load(path string) (Config, error) {
	cfg := Default()
	k := koanf.New(".")

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("reading config file: %w", err)
			}
		} else if err := k.Load(rawbytes.Provider(data), yaml.Parser()); err != nil {
			return cfg, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	// CORAG_EMBEDDING_API_KEY -> embedding.api_key. The first underscore
	// separates the section; later underscores stay part of the field name.
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		parts := strings.SplitN(lower, "_", 2)
		if len(parts) == 1 {
			return lower
		}
		return parts[0] + "." + parts[1]
	}), nil); err != nil {
		return cfg, fmt.Errorf("loading environment: %w", err)
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Chunking.Size <= 0 {
		return fmt.Errorf("chunking.size must be positive, got %d", c.Chunking.Size)
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size {
		return fmt.Errorf("chunking.overlap must be in [0, size), got %d", c.Chunking.Overlap)
	}
	switch c.Store.Backend {
	case "memory", "sqlite", "qdrant":
	default:
		return fmt.Errorf("store.backend must be memory, sqlite or qdrant, got %q", c.Store.Backend)
	}
	if c.Store.CapacityUnits <= 0 {
		return fmt.Errorf("store.capacity_units must be positive, got %g", c.Store.CapacityUnits)
	}
	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("embedding.dimension must be positive, got %d", c.Embedding.Dimension)
	}
	if c.Embedding.RequestsPerMinute <= 0 {
		return fmt.Errorf("embedding.requests_per_minute must be positive, got %g", c.Embedding.RequestsPerMinute)
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
