package pipeline

import "strings"

// RefusalResponse answers queries that look like they modify data.
const RefusalResponse = "I can only provide read-only inspection data."

var destructiveKeywords = []string{"delete", "drop", "truncate", "alter", "update", "insert"}

// IsDestructive reports whether the query mentions a data-modifying keyword.
// Matching is a substring test on the lower-cased text, so "updated" also trips it.
func IsDestructive(query string) bool {
	q := strings.ToLower(query)
	for _, kw := range destructiveKeywords {
		if strings.Contains(q, kw) {
			return true
		}
	}
	return false
}
