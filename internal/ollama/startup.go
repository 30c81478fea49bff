package ollama

import (
	"context"
	"fmt"
	"io"
	"time"
)

const warmupTimeout = 30 * time.Second

// EnsureReady verifies the server answers, pulls the generation and embedding
// models when missing and loads both so the first question does not wait on a
// cold model. Only an unreachable server or a failed pull is fatal.
func EnsureReady(ctx context.Context, c *Client, model, embedModel string, w io.Writer) error {
	if !c.IsRunning(ctx) {
		return fmt.Errorf("Ollama is not running at %s. Start it with: ollama serve", c.baseURL)
	}

	for _, m := range requiredModels(model, embedModel) {
		if err := ensureModel(ctx, c, m, w); err != nil {
			return err
		}
	}

	warmCtx, cancel := context.WithTimeout(ctx, warmupTimeout)
	defer cancel()

	fmt.Fprintf(w, "%s: loading\n", model)
	if _, err := c.Generate(warmCtx, model, "SELECT 1;", GenerateOptions{}); err != nil {
		fmt.Fprintf(w, "%s: warm-up skipped: %v\n", model, err)
	}
	if embedModel != "" && embedModel != model {
		fmt.Fprintf(w, "%s: loading\n", embedModel)
		if _, err := c.Embed(warmCtx, embedModel, "inspection"); err != nil {
			fmt.Fprintf(w, "%s: warm-up skipped: %v\n", embedModel, err)
		}
	}
	return nil
}

func requiredModels(model, embedModel string) []string {
	models := []string{model}
	if embedModel != "" && embedModel != model {
		models = append(models, embedModel)
	}
	return models
}

func ensureModel(ctx context.Context, c *Client, name string, w io.Writer) error {
	if c.HasModel(ctx, name) {
		fmt.Fprintf(w, "%s: present\n", name)
		return nil
	}

	fmt.Fprintf(w, "%s: pulling\n", name)
	last := ""
	err := c.PullModel(ctx, name, func(p PullProgress) {
		line := p.Status
		if p.Total > 0 {
			line = fmt.Sprintf("%s %d%%", p.Status, p.Completed*100/p.Total)
		}
		if line != last {
			fmt.Fprintf(w, "  %s\n", line)
			last = line
		}
	})
	if err != nil {
		return fmt.Errorf("pulling model %s: %w", name, err)
	}
	fmt.Fprintf(w, "%s: pulled\n", name)
	return nil
}
