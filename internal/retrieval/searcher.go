package retrieval

import (
	"context"
	"fmt"

	"github.com/kalambet/vinq/internal/storage"
)

// RecordFetcher hydrates records by id, preserving the order of ids.
// *storage.Store satisfies it.
type RecordFetcher interface {
	FetchByIDs(ctx context.Context, ids []string) ([]storage.Row, error)
}

// Searcher combines embedding, vector search and record hydration.
type Searcher struct {
	embedder *Embedder
	index    VectorIndex
	records  RecordFetcher
	topK     int
}

// NewSearcher creates a Searcher returning up to topK records per query.
func NewSearcher(embedder *Embedder, index VectorIndex, records RecordFetcher, topK int) *Searcher {
	if topK <= 0 {
		topK = 5
	}
	return &Searcher{embedder: embedder, index: index, records: records, topK: topK}
}

// Search embeds the query, finds the nearest records and returns them in
// ranking order with record_id, vin, damage_descriptions and source_file.
func (s *Searcher) Search(ctx context.Context, query string) ([]storage.Row, error) {
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	hits, err := s.index.Search(ctx, vec, s.topK)
	if err != nil {
		return nil, fmt.Errorf("searching index: %w", err)
	}
	if len(hits) == 0 {
		return []storage.Row{}, nil
	}

	ids := make([]string, 0, len(hits))
	seen := make(map[string]bool, len(hits))
	for _, h := range hits {
		if seen[h.RecordID] {
			continue
		}
		seen[h.RecordID] = true
		ids = append(ids, h.RecordID)
	}

	rows, err := s.records.FetchByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("hydrating records: %w", err)
	}
	return rows, nil
}
