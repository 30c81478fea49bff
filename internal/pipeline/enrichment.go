package pipeline

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kalambet/vinq/internal/formatter"
	"github.com/kalambet/vinq/internal/storage"
)

const maxSourceFiles = 3

// Enrich aggregates rows into the context handed to the formatter: up to
// three distinct source files in sorted order, the most common damage
// category and the most active inspector.
func Enrich(rows []storage.Row) formatter.Enrichment {
	enr := formatter.Enrichment{
		TopDamage:    "none",
		TopInspector: "unknown",
		RecordCount:  len(rows),
	}

	files := make(map[string]struct{})
	damage := make(map[string]int)
	inspectors := make(map[string]int)

	for _, row := range rows {
		if f := field(row, "source_file"); f != "" {
			files[f] = struct{}{}
		}
		if d := field(row, "damage_descriptions"); d != "" {
			category := strings.ToLower(strings.TrimSpace(strings.SplitN(d, "-", 2)[0]))
			if category != "" {
				damage[category]++
			}
		}
		if name := strings.ToLower(field(row, "inspector_name")); name != "" {
			inspectors[name]++
		}
	}

	sorted := make([]string, 0, len(files))
	for f := range files {
		sorted = append(sorted, f)
	}
	sort.Strings(sorted)
	if len(sorted) > maxSourceFiles {
		sorted = sorted[:maxSourceFiles]
	}
	enr.SourceFiles = sorted

	if k, n := mostCommon(damage); n > 0 {
		enr.TopDamage, enr.TopDamageCount = k, n
	}
	if k, n := mostCommon(inspectors); n > 0 {
		enr.TopInspector, enr.TopInspectorCount = k, n
	}
	return enr
}

// mostCommon returns the highest count; ties go to the lexically smallest key.
func mostCommon(counts map[string]int) (string, int) {
	var best string
	var bestN int
	for k, n := range counts {
		if n > bestN || (n == bestN && k < best) {
			best, bestN = k, n
		}
	}
	return best, bestN
}

func field(row storage.Row, col string) string {
	v, ok := row[col]
	if !ok || v == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(v))
}
