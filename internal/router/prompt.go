package router

import (
	"fmt"
	"regexp"
	"strings"
)

var disallowedChars = regexp.MustCompile(`[^a-z0-9\s\-_']`)

// Preprocess lower-cases and trims the query and drops every character that
// is not a letter, digit, whitespace, hyphen, underscore or apostrophe.
func Preprocess(query string) string {
	q := strings.TrimSpace(strings.ToLower(query))
	return disallowedChars.ReplaceAllString(q, "")
}

const promptTemplate = `STRICT RULES:
1. Use SQL for: counts, dates, VINs, models, locations, inspector names, service history/journey
2. Use Semantic ONLY for: vague damage descriptions without identifiers
3. NEVER use semantic if query contains: VIN, date, count, model, ramp, inspector

Schema: %s
Query: "%s"

Respond ONLY with JSON: {"use_semantic": bool, "reason": str}`

// BuildPrompt constructs the routing prompt for an already preprocessed query.
func BuildPrompt(query, schema string) string {
	return fmt.Sprintf(promptTemplate, schema, query)
}
