package formatter

import (
	"fmt"
	"strings"
	"testing"

	"github.com/kalambet/vinq/internal/memory"
	"github.com/kalambet/vinq/internal/storage"
)

func TestBuildPrompt_Defaults(t *testing.T) {
	p := BuildPrompt("q", storage.QueryResult{}, Enrichment{}, nil, 0)

	for _, want := range []string{"Sources: Unknown", "Top Damage: none", "No records found."} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if strings.Contains(p, "Previous questions asked") {
		t.Error("empty history should not render a questions block")
	}
}

func TestBuildPrompt_AtMostFiveSamples(t *testing.T) {
	result := storage.QueryResult{Columns: []string{"record_id"}}
	for i := range 8 {
		result.Rows = append(result.Rows, storage.Row{"record_id": fmt.Sprintf("R%d", i)})
	}

	p := BuildPrompt("q", result, Enrichment{}, nil, 0)
	if !strings.Contains(p, "Record count 8") {
		t.Error("expected full record count")
	}
	if got := strings.Count(p, "- record_id: "); got != 5 {
		t.Errorf("sample rows = %d, want 5", got)
	}
	if strings.Contains(p, "R5") {
		t.Error("sixth row should not be sampled")
	}
}

func TestBuildPrompt_SampleBudget(t *testing.T) {
	long := strings.Repeat("x", 400)
	result := storage.QueryResult{
		Columns: []string{"damage_descriptions"},
		Rows:    []storage.Row{{"damage_descriptions": long}, {"damage_descriptions": long}},
	}

	p := BuildPrompt("q", result, Enrichment{}, nil, 150)
	if got := strings.Count(p, long); got != 1 {
		t.Errorf("rows within budget = %d, want 1", got)
	}
}

func TestPreviousQuestions_LastThreeInOrder(t *testing.T) {
	var history []memory.Message
	for i := 1; i <= 5; i++ {
		history = append(history,
			memory.Message{Role: memory.RoleUser, Content: fmt.Sprintf("q%d", i)},
			memory.Message{Role: memory.RoleAssistant, Content: fmt.Sprintf("a%d", i)},
		)
	}

	got := previousQuestions(history)
	want := "Previous questions asked:\n- q3\n- q4\n- q5"
	if got != want {
		t.Errorf("previousQuestions() = %q, want %q", got, want)
	}
}

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"abc", 1},
		{"abcd", 1},
		{"abcde", 2},
	}
	for _, tt := range tests {
		if got := EstimateTokens(tt.text); got != tt.want {
			t.Errorf("EstimateTokens(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}
