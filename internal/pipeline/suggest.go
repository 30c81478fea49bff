package pipeline

import (
	"strings"

	"github.com/kalambet/vinq/internal/memory"
)

const (
	noMatchPrefix   = "No matching records found. "
	troubleResponse = "I'm having trouble finding that information. Please try different criteria."
)

// Suggest returns a hint for a query that matched nothing. history is the
// session history before the current query was recorded.
func Suggest(query string, history []memory.Message) string {
	q := strings.ToLower(query)
	switch {
	case strings.Contains(q, "vin"):
		return "Please verify the VIN number."
	case strings.Contains(q, "date"), strings.Contains(q, "month"), strings.Contains(q, "year"):
		return "Try adjusting the date range."
	}
	if prev := lastUserMessage(history); strings.Contains(strings.ToLower(prev), "model") {
		return "Try specifying the manufacturer (e.g., 'Ford F150')."
	}
	return "Try being more specific with your criteria."
}

func lastUserMessage(history []memory.Message) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == memory.RoleUser {
			return history[i].Content
		}
	}
	return ""
}
