package retrieval

import "context"

// VectorIndex is a nearest-neighbour index over record embeddings. Positions
// are the order in which entries were added; each position maps to exactly one
// record_id.
type VectorIndex interface {
	// Search returns up to topK hits ordered by descending similarity.
	Search(ctx context.Context, vector []float32, topK int) ([]Hit, error)

	// Rebuild replaces the whole index with entries.
	Rebuild(ctx context.Context, entries []Entry) error

	// Count returns the number of indexed vectors.
	Count(ctx context.Context) (int, error)

	Close() error
}

// Entry is one vector to index.
type Entry struct {
	Position  int
	RecordID  string
	Embedding []float32
}

// Hit is one search result.
type Hit struct {
	Position int
	RecordID string
	Score    float32
}
