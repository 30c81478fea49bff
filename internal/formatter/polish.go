package formatter

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	recordCountRe = regexp.MustCompile(`\[\d+\s*records?\]`)
	emphasisRe    = regexp.MustCompile(`\*\*|__`)
	headingRe     = regexp.MustCompile(`(?m)^[ \t]*#{1,6}[ \t]*`)
	foundOneRe    = regexp.MustCompile(`Found 1 record\b`)
)

const noResults = "No results found"

// Polish strips artifacts models leave in prose answers: record-count tags,
// empty brackets, code fences, Markdown emphasis and headings. It then
// capitalizes the first letter; an empty answer becomes "No results found".
func Polish(response string) string {
	s := recordCountRe.ReplaceAllString(response, "")
	s = strings.ReplaceAll(s, "From []", "")
	s = strings.ReplaceAll(s, "[]", "")
	s = strings.ReplaceAll(s, "```", "")
	s = emphasisRe.ReplaceAllString(s, "")
	s = headingRe.ReplaceAllString(s, "")
	s = foundOneRe.ReplaceAllString(s, "Found 1 inspection record")
	s = strings.TrimSpace(s)

	if s == "" {
		return noResults
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}
