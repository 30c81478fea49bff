package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kalambet/vinq/internal/storage"
)

// ErrNoRecords is returned when the inspections table has nothing to index.
var ErrNoRecords = errors.New("no records for indexing")

// TextSource supplies the texts to index. *storage.Store satisfies it.
type TextSource interface {
	IndexTexts(ctx context.Context) ([]storage.IndexText, error)
}

// Build embeds every record's damage description and replaces the index
// contents. Records with no description are skipped. It returns the number
// of indexed vectors.
func Build(ctx context.Context, src TextSource, emb *Embedder, idx VectorIndex) (int, error) {
	texts, err := src.IndexTexts(ctx)
	if err != nil {
		return 0, err
	}

	var ids, inputs []string
	for _, t := range texts {
		if strings.TrimSpace(t.Text) == "" {
			continue
		}
		ids = append(ids, t.RecordID)
		inputs = append(inputs, t.Text)
	}
	if len(inputs) == 0 {
		return 0, ErrNoRecords
	}

	vecs, err := emb.EmbedBatch(ctx, inputs)
	if err != nil {
		return 0, fmt.Errorf("building index: %w", err)
	}

	entries := make([]Entry, len(vecs))
	for i, v := range vecs {
		entries[i] = Entry{Position: i, RecordID: ids[i], Embedding: v}
	}
	if err := idx.Rebuild(ctx, entries); err != nil {
		return 0, fmt.Errorf("writing index: %w", err)
	}

	slog.Info("built semantic index", "records", len(entries), "skipped", len(texts)-len(entries))
	return len(entries), nil
}

// EnsureIndex loads the existing index, or builds it when it is empty or force is set.
func EnsureIndex(ctx context.Context, src TextSource, emb *Embedder, idx VectorIndex, force bool) (int, error) {
	if !force {
		n, err := idx.Count(ctx)
		if err != nil {
			return 0, fmt.Errorf("counting index: %w", err)
		}
		if n > 0 {
			slog.Info("loaded semantic index", "vectors", n)
			return n, nil
		}
	}
	return Build(ctx, src, emb, idx)
}
