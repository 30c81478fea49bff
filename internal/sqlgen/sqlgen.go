package sqlgen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kalambet/vinq/internal/ollama"
	"github.com/kalambet/vinq/internal/router"
	"github.com/kalambet/vinq/internal/storage"
)

// ErrNoSQL is returned when the model produced no usable SQL.
var ErrNoSQL = errors.New("no sql generated")

// Generator is the interface for single-prompt generation via Ollama.
type Generator interface {
	Generate(ctx context.Context, model, prompt string, opts ollama.GenerateOptions) (string, error)
}

// Synthesizer translates natural-language questions into SQL.
type Synthesizer struct {
	client  Generator
	model   string
	dialect Dialect
}

// New creates a Synthesizer. An empty dialect defaults to SQLite.
func New(client Generator, model string, dialect Dialect) *Synthesizer {
	if dialect == "" {
		dialect = DialectSQLite
	}
	return &Synthesizer{client: client, model: model, dialect: dialect}
}

// Synthesize asks the model for SQL answering query and returns it cleaned.
// Semantic matches, when present, are included as hints. Generation errors
// are returned as-is; empty output yields ErrNoSQL.
func (s *Synthesizer) Synthesize(ctx context.Context, query, schema string, matches []storage.Row) (string, error) {
	prompt := BuildPrompt(router.Preprocess(query), schema, matches, s.dialect)

	raw, err := s.client.Generate(ctx, s.model, prompt, ollama.GenerateOptions{})
	if err != nil {
		return "", fmt.Errorf("synthesizing query: %w", err)
	}

	sql := Clean(raw, s.dialect)
	if sql == "" {
		return "", ErrNoSQL
	}
	slog.Debug("sql cleaned", "raw", raw, "sql", sql)
	return sql, nil
}
