package sqlgen

import (
	"regexp"
	"strings"
)

// Dialect selects the pattern operator used for free-text columns.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// TextColumns are matched by substring pattern instead of equality.
var TextColumns = []string{
	"inspector_name",
	"ramp",
	"mfg_model",
	"damage_comments",
	"vehicle_comments",
	"damage_descriptions",
}

var (
	fencedRe    = regexp.MustCompile("(?is)```(?:sql)?\\s*(.*?)```")
	fenceRe     = regexp.MustCompile("(?i)```(sql)?")
	startRe     = regexp.MustCompile(`(?i)\bWITH\s+\w+\s+AS\s*\(|\bSELECT\b`)
	selectRe    = regexp.MustCompile(`(?i)\bSELECT\b`)
	limitRe     = regexp.MustCompile(`(?i)\bLIMIT\b`)
	ilikeRe     = regexp.MustCompile(`(?i)\bILIKE\b`)
	textEqualRe = buildTextEqualRe()
)

func buildTextEqualRe() *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b(` + strings.Join(TextColumns, "|") + `)\s*=\s*'([^']+)'`)
}

// Clean turns raw model output into a single executable statement:
// a fenced block is unwrapped, stray fences and leading prose are dropped, only the first statement is
// kept, equality on free-text columns becomes a substring pattern match,
// SELECT and LIMIT are added when missing and the statement ends with one
// semicolon. It returns "" when nothing is left after stripping fences.
func Clean(raw string, dialect Dialect) string {
	sql := raw
	if m := fencedRe.FindStringSubmatch(raw); m != nil {
		sql = m[1]
	}
	sql = strings.TrimSpace(fenceRe.ReplaceAllString(sql, ""))
	if sql == "" {
		return ""
	}

	if loc := startRe.FindStringIndex(sql); loc != nil {
		sql = sql[loc[0]:]
	}

	sql = strings.TrimSpace(firstStatement(sql))

	op := "ILIKE"
	if dialect == DialectSQLite {
		op = "LIKE"
	}
	sql = textEqualRe.ReplaceAllStringFunc(sql, func(m string) string {
		sub := textEqualRe.FindStringSubmatch(m)
		return strings.ToLower(sub[1]) + " " + op + " '%" + sub[2] + "%'"
	})
	if dialect == DialectSQLite {
		sql = ilikeRe.ReplaceAllString(sql, "LIKE")
	}

	if !selectRe.MatchString(sql) {
		sql = "SELECT * " + sql
	}
	if !limitRe.MatchString(sql) {
		sql += " LIMIT 1000"
	}

	return strings.TrimRight(strings.TrimSpace(sql), "; \t\n") + ";"
}

// firstStatement returns sql up to the first semicolon outside quotes.
func firstStatement(sql string) string {
	var quote rune
	for i, r := range sql {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
		case r == ';':
			return sql[:i]
		}
	}
	return sql
}
