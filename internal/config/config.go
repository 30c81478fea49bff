package config

import (
	"fmt"
	"path/filepath"
	"time"
)

type Config struct {
	Server    ServerConfig
	Ollama    OllamaConfig
	Storage   StorageConfig
	Index     IndexConfig
	Qdrant    QdrantConfig
	Retrieval RetrievalConfig
	Memory    MemoryConfig
	Cache     CacheConfig
	Redis     RedisConfig
	Pipeline  PipelineConfig
	Sources   SourcesConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port        int
	MaxConns    int
	CORSOrigins string
	RateLimit   float64
	RateBurst   int
}

type OllamaConfig struct {
	BaseURL     string
	Model       string
	EmbedModel  string
	Temperature float64
	Timeout     string
}

type StorageConfig struct {
	DataDir string
	DBPath  string
}

type IndexConfig struct {
	Backend string
	Path    string
}

type QdrantConfig struct {
	URL        string
	Collection string
	APIKey     string
}

type RetrievalConfig struct {
	TopK int
}

type MemoryConfig struct {
	Backend     string
	TTL         string
	MaxMessages int
}

type CacheConfig struct {
	Backend string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type PipelineConfig struct {
	MaxMisses int
}

type SourcesConfig struct {
	Dir string
}

type LogConfig struct {
	Level string
}

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
	BackendQdrant = "qdrant"
)

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:        8000,
			MaxConns:    32,
			CORSOrigins: "*",
			RateLimit:   5,
			RateBurst:   10,
		},
		Ollama: OllamaConfig{
			BaseURL:     "http://localhost:11434",
			Model:       "qwen2.5-coder:3b",
			EmbedModel:  "nomic-embed-text",
			Temperature: 0.1,
			Timeout:     "60s",
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Index: IndexConfig{
			Backend: BackendSQLite,
		},
		Qdrant: QdrantConfig{
			URL:        "http://localhost:6334",
			Collection: "vehicle_inspections",
		},
		Retrieval: RetrievalConfig{
			TopK: 5,
		},
		Memory: MemoryConfig{
			Backend:     BackendMemory,
			TTL:         "60m",
			MaxMessages: 10,
		},
		Cache: CacheConfig{
			Backend: BackendMemory,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Pipeline: PipelineConfig{
			MaxMisses: 3,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the JSON file backend
// ($XDG_CONFIG_HOME/vinq/config.json) and applies VINQ_* environment
// overrides on top. Secrets (qdrant.api_key, redis.password) are only read
// from the environment.
func Load() (Config, error) {
	return loadWith(newPlatformBackend())
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)
	cfg.resolvePaths()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// resolvePaths fills file locations that default to the data directory.
func (c *Config) resolvePaths() {
	if c.Storage.DBPath == "" {
		c.Storage.DBPath = filepath.Join(c.Storage.DataDir, "inspections.db")
	}
	if c.Index.Path == "" {
		c.Index.Path = filepath.Join(c.Storage.DataDir, "index.db")
	}
	if c.Sources.Dir == "" {
		c.Sources.Dir = filepath.Join(c.Storage.DataDir, "sources")
	}
}

// Validate checks backend names, durations and numeric ranges.
func (c Config) Validate() error {
	switch c.Index.Backend {
	case BackendSQLite, BackendQdrant:
	default:
		return fmt.Errorf("index.backend must be %q or %q, got %q", BackendSQLite, BackendQdrant, c.Index.Backend)
	}
	for key, v := range map[string]string{"memory.backend": c.Memory.Backend, "cache.backend": c.Cache.Backend} {
		if v != BackendMemory && v != BackendRedis {
			return fmt.Errorf("%s must be %q or %q, got %q", key, BackendMemory, BackendRedis, v)
		}
	}
	if _, err := time.ParseDuration(c.Memory.TTL); err != nil {
		return fmt.Errorf("memory.ttl: %w", err)
	}
	if _, err := time.ParseDuration(c.Ollama.Timeout); err != nil {
		return fmt.Errorf("ollama.timeout: %w", err)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval.top_k must be > 0")
	}
	if c.Memory.MaxMessages <= 0 {
		return fmt.Errorf("memory.max_messages must be > 0")
	}
	return nil
}

// MemoryTTL returns the parsed idle TTL for conversation sessions.
func (c Config) MemoryTTL() time.Duration {
	d, _ := time.ParseDuration(c.Memory.TTL)
	return d
}

// OllamaTimeout returns the parsed per-request timeout for LLM calls.
func (c Config) OllamaTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Ollama.Timeout)
	return d
}
