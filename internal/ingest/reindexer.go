package ingest

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kalambet/vinq/internal/retrieval"
)

// Reindexer rebuilds the semantic index in the background after records
// are imported. Notifications arriving within the debounce window collapse
// into a single rebuild.
type Reindexer struct {
	src      retrieval.TextSource
	embedder *retrieval.Embedder
	index    retrieval.VectorIndex
	debounce time.Duration
	pending  chan struct{}
	logger   *slog.Logger

	mu      sync.Mutex
	lastErr error
	builds  int
}

// NewReindexer creates a Reindexer. If debounce is <= 0, it defaults to 2s.
func NewReindexer(src retrieval.TextSource, emb *retrieval.Embedder, idx retrieval.VectorIndex, debounce time.Duration) *Reindexer {
	if debounce <= 0 {
		debounce = 2 * time.Second
	}
	return &Reindexer{
		src:      src,
		embedder: emb,
		index:    idx,
		debounce: debounce,
		pending:  make(chan struct{}, 1),
		logger:   slog.Default(),
	}
}

// Notify schedules a rebuild. It never blocks.
func (r *Reindexer) Notify() {
	select {
	case r.pending <- struct{}{}:
	default:
	}
}

// Run waits for notifications until ctx is cancelled.
func (r *Reindexer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.pending:
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(r.debounce):
		}
		// Drop notifications that arrived while waiting.
		select {
		case <-r.pending:
		default:
		}

		if _, err := r.RunOnce(ctx); err != nil {
			r.logger.Error("reindex failed", "error", err)
		}
	}
}

// RunOnce rebuilds the index from the current records and returns the
// number of indexed vectors.
func (r *Reindexer) RunOnce(ctx context.Context) (int, error) {
	n, err := retrieval.Build(ctx, r.src, r.embedder, r.index)

	r.mu.Lock()
	r.lastErr = err
	if err == nil {
		r.builds++
	}
	r.mu.Unlock()

	if err != nil {
		return 0, err
	}
	r.logger.Info("reindexed", "vectors", n)
	return n, nil
}

// Status reports the number of successful rebuilds and the last error.
func (r *Reindexer) Status() (builds int, lastErr error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.builds, r.lastErr
}
