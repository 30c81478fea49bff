package router

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/kalambet/vinq/internal/ollama"
)

// Generator is the interface for single-prompt generation via Ollama.
type Generator interface {
	Generate(ctx context.Context, model, prompt string, opts ollama.GenerateOptions) (string, error)
}

// Decision says which retrieval path a query should take.
type Decision struct {
	UseSemantic bool   `json:"use_semantic"`
	Reason      string `json:"reason"`
}

const (
	reasonFallback = "Fallback"
	reasonInvalid  = "Invalid response"
)

// Router asks a local LLM whether a query is a structured-data question or a
// fuzzy damage-description search.
type Router struct {
	client Generator
	model  string
}

// NewRouter creates a Router using the given generator and model name.
func NewRouter(client Generator, model string) *Router {
	return &Router{client: client, model: model}
}

// Route classifies the query. It never fails: when the model is unreachable
// or says nothing the decision falls back to the structured path, and
// unparseable output is reported as an invalid response.
func (r *Router) Route(ctx context.Context, query, schema string) Decision {
	prompt := BuildPrompt(Preprocess(query), schema)

	raw, err := r.client.Generate(ctx, r.model, prompt, ollama.GenerateOptions{JSON: true})
	if err != nil {
		slog.Warn("routing generate failed", "error", err)
		return Decision{Reason: reasonFallback}
	}
	if strings.TrimSpace(raw) == "" {
		slog.Warn("routing returned empty response")
		return Decision{Reason: reasonFallback}
	}

	var d Decision
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		slog.Warn("failed to unmarshal routing decision", "error", err, "response", raw)
		return Decision{Reason: reasonInvalid}
	}
	return d
}
