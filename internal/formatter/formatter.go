package formatter

import (
	"context"
	"log/slog"
	"strings"

	"github.com/kalambet/vinq/internal/memory"
	"github.com/kalambet/vinq/internal/ollama"
	"github.com/kalambet/vinq/internal/storage"
)

// FallbackResponse is returned when the model cannot produce an answer.
const FallbackResponse = "I couldn't find that information. Please try rephrasing."

// Generator is the interface for single-prompt generation via Ollama.
type Generator interface {
	Generate(ctx context.Context, model, prompt string, opts ollama.GenerateOptions) (string, error)
}

// Formatter turns query results into a short prose answer.
type Formatter struct {
	client          Generator
	model           string
	MaxSampleTokens int
}

// New creates a Formatter using the given generator and model name.
func New(client Generator, model string) *Formatter {
	return &Formatter{client: client, model: model, MaxSampleTokens: defaultMaxSampleTokens}
}

// Format asks the model to describe result for query. It never fails: model
// errors and empty output produce FallbackResponse. The answer is polished
// before it is returned.
func (f *Formatter) Format(ctx context.Context, query string, result storage.QueryResult, enr Enrichment, history []memory.Message) string {
	prompt := BuildPrompt(query, result, enr, history, f.MaxSampleTokens)

	raw, err := f.client.Generate(ctx, f.model, prompt, ollama.GenerateOptions{})
	if err != nil {
		slog.Warn("formatting generate failed", "error", err)
		raw = FallbackResponse
	}
	if strings.TrimSpace(raw) == "" {
		raw = FallbackResponse
	}
	return Polish(raw)
}
