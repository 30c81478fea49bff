package formatter

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kalambet/vinq/internal/memory"
	"github.com/kalambet/vinq/internal/storage"
)

const (
	maxSampleRows          = 5
	maxHistoryQuestions    = 3
	defaultMaxSampleTokens = 1500
)

// Enrichment is the aggregate context computed once per answered query.
type Enrichment struct {
	SourceFiles       []string
	TopDamage         string
	TopDamageCount    int
	TopInspector      string
	TopInspectorCount int
	RecordCount       int
}

const responseRules = `RESPONSE RULES:
1. Structure:
- Direct answer first
- Relevant statistics
- Source context
2. Tone: Professional, helpful
3. Length: 3-7 sentences
4. NEVER show: Empty lists, SQL, technical errors`

const closingInstruction = `Write a clear, concise, and helpful response based only on the current query and results. If the results contain sample records and they are very long, include only a few key details (vin, inspection_date, damage_descriptions) as examples. Do not infer anything beyond the data.`

// BuildPrompt assembles the formatting prompt. Sample rows are added in
// result order until maxSampleTokens is spent.
func BuildPrompt(query string, result storage.QueryResult, enr Enrichment, history []memory.Message, maxSampleTokens int) string {
	if maxSampleTokens <= 0 {
		maxSampleTokens = defaultMaxSampleTokens
	}

	var sb strings.Builder
	sb.WriteString(responseRules)
	fmt.Fprintf(&sb, "\n\nCurrent Query: %s\n", query)
	fmt.Fprintf(&sb, "Results Summary: %s\n", summarize(result, maxSampleTokens))
	fmt.Fprintf(&sb, "Sources: %s\n", sources(enr.SourceFiles))
	fmt.Fprintf(&sb, "Top Damage: %s\n", orDefault(enr.TopDamage, "none"))
	fmt.Fprintf(&sb, "Historical Context (use only if relevant): %s\n", previousQuestions(history))
	sb.WriteString(closingInstruction)
	return sb.String()
}

// summarize renders the record count and up to five sample rows, leaving out source_file.
func summarize(result storage.QueryResult, budget int) string {
	if len(result.Rows) == 0 {
		return "No records found."
	}

	cols := result.Columns
	if len(cols) == 0 {
		for k := range result.Rows[0] {
			cols = append(cols, k)
		}
		sort.Strings(cols)
	}

	var lines []string
	remaining := budget
	for _, row := range result.Rows[:min(maxSampleRows, len(result.Rows))] {
		var parts []string
		for _, c := range cols {
			if c == "source_file" {
				continue
			}
			parts = append(parts, fmt.Sprintf("%s: %s", c, valueString(row[c])))
		}
		line := "- " + strings.Join(parts, ", ")
		tokens := EstimateTokens(line)
		if tokens > remaining {
			break
		}
		lines = append(lines, line)
		remaining -= tokens
	}

	return fmt.Sprintf("Record count %d, sample records:\n%s", len(result.Rows), strings.Join(lines, "\n"))
}

func valueString(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

func sources(files []string) string {
	if len(files) == 0 {
		return "Unknown"
	}
	return strings.Join(files, ", ")
}

// previousQuestions lists the last three user messages.
func previousQuestions(history []memory.Message) string {
	var qs []string
	for i := len(history) - 1; i >= 0 && len(qs) < maxHistoryQuestions; i-- {
		if history[i].Role == memory.RoleUser {
			qs = append(qs, history[i].Content)
		}
	}
	if len(qs) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Previous questions asked:")
	for i := len(qs) - 1; i >= 0; i-- {
		sb.WriteString("\n- ")
		sb.WriteString(qs[i])
	}
	return sb.String()
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// EstimateTokens provides a rough token count using 4 chars per token heuristic.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}
