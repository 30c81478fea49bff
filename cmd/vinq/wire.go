package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/kalambet/vinq/internal/cache"
	"github.com/kalambet/vinq/internal/config"
	"github.com/kalambet/vinq/internal/formatter"
	"github.com/kalambet/vinq/internal/memory"
	"github.com/kalambet/vinq/internal/ollama"
	"github.com/kalambet/vinq/internal/pipeline"
	"github.com/kalambet/vinq/internal/retrieval"
	"github.com/kalambet/vinq/internal/router"
	"github.com/kalambet/vinq/internal/sqlgen"
	"github.com/kalambet/vinq/internal/storage"
)

// app holds every long-lived component of a running vinq process.
type app struct {
	cfg      config.Config
	store    *storage.Store
	llm      *ollama.Client
	embedder *retrieval.Embedder
	index    retrieval.VectorIndex
	redis    *redis.Client
	chatbot  *pipeline.Chatbot
}

type wireOptions struct {
	// readiness checks Ollama, pulls missing models and warms up the model.
	readiness bool
	// progress receives readiness output; nil discards it.
	progress io.Writer
	// skipIndexLoad leaves the semantic index as found on disk.
	skipIndexLoad bool
}

func setupLogging(level string) {
	logLevel := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))
}

// newApp opens storage, connects to Ollama and the configured backends,
// loads or builds the semantic index and assembles the chatbot.
func newApp(ctx context.Context, cfg config.Config, opts wireOptions) (*app, error) {
	a := &app{cfg: cfg}
	ready := false
	defer func() {
		if !ready {
			a.Close()
		}
	}()

	a.llm = ollama.New(cfg.Ollama.BaseURL,
		ollama.WithTimeout(cfg.OllamaTimeout()),
		ollama.WithTemperature(cfg.Ollama.Temperature),
	)
	if opts.readiness {
		w := opts.progress
		if w == nil {
			w = io.Discard
		}
		if err := ollama.EnsureReady(ctx, a.llm, cfg.Ollama.Model, cfg.Ollama.EmbedModel, w); err != nil {
			return nil, err
		}
	}

	var err error
	a.store, err = storage.Open(cfg.Storage.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	if cfg.Memory.Backend == config.BackendRedis || cfg.Cache.Backend == config.BackendRedis {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := a.redis.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.Redis.Addr, err)
		}
	}

	a.embedder = retrieval.NewEmbedder(a.llm, cfg.Ollama.EmbedModel)
	a.index, err = openIndex(cfg)
	if err != nil {
		return nil, err
	}

	if !opts.skipIndexLoad {
		n, err := retrieval.EnsureIndex(ctx, a.store, a.embedder, a.index, false)
		switch {
		case errors.Is(err, retrieval.ErrNoRecords):
			slog.Warn("semantic index is empty, import records and run \"vinq index build\"")
		case err != nil:
			return nil, fmt.Errorf("loading semantic index: %w", err)
		default:
			slog.Debug("semantic index ready", "vectors", n)
		}
	}

	a.chatbot = pipeline.NewChatbot(pipeline.Deps{
		Router:      router.NewRouter(a.llm, cfg.Ollama.Model),
		Searcher:    retrieval.NewSearcher(a.embedder, a.index, a.store, cfg.Retrieval.TopK),
		Synthesizer: sqlgen.New(a.llm, cfg.Ollama.Model, sqlgen.DialectSQLite),
		Executor:    a.store,
		Formatter:   formatter.New(a.llm, cfg.Ollama.Model),
		Memory:      newMemoryStore(cfg, a.redis),
		Cache:       newCache(cfg, a.redis),
		Schema:      storage.SchemaJSON(),
		MaxMisses:   cfg.Pipeline.MaxMisses,
		SessionTTL:  cfg.MemoryTTL(),
	})
	ready = true
	return a, nil
}

// Close releases every component that was opened.
func (a *app) Close() error {
	var errs []error
	if a.index != nil {
		errs = append(errs, a.index.Close())
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	return errors.Join(errs...)
}

func openIndex(cfg config.Config) (retrieval.VectorIndex, error) {
	switch cfg.Index.Backend {
	case config.BackendQdrant:
		idx, err := retrieval.NewQdrantIndex(retrieval.QdrantConfig{
			URL:        cfg.Qdrant.URL,
			Collection: cfg.Qdrant.Collection,
			APIKey:     cfg.Qdrant.APIKey,
		})
		if err != nil {
			return nil, fmt.Errorf("opening qdrant index: %w", err)
		}
		return idx, nil
	default:
		idx, err := retrieval.OpenSQLiteIndex(cfg.Index.Path)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite index: %w", err)
		}
		return idx, nil
	}
}

func newMemoryStore(cfg config.Config, rdb *redis.Client) memory.Store {
	if cfg.Memory.Backend == config.BackendRedis && rdb != nil {
		return memory.NewRedisStore(rdb, cfg.MemoryTTL(), cfg.Memory.MaxMessages)
	}
	return memory.NewInMemory(cfg.MemoryTTL(), cfg.Memory.MaxMessages)
}

func newCache(cfg config.Config, rdb *redis.Client) cache.Cache {
	if cfg.Cache.Backend == config.BackendRedis && rdb != nil {
		return cache.NewRedis(rdb, 0)
	}
	return cache.NewMemory()
}
