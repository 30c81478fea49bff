package sqlgen

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kalambet/vinq/internal/storage"
)

const maxMatchesChars = 500

// Example is a worked question/SQL pair shown to the model.
type Example struct {
	Question string
	SQL      string
}

// Examples are written for SQLite.
var Examples = []Example{
	{"on which date maximum number of damages inspected?",
		"SELECT inspection_date, COUNT(*) AS damage_count FROM inspections GROUP BY inspection_date ORDER BY damage_count DESC LIMIT 1"},
	{"which model has most damages?",
		"SELECT mfg_model, COUNT(*) AS damage_count FROM inspections GROUP BY mfg_model ORDER BY damage_count DESC LIMIT 1"},
	{"Give me the VIN Number also the service history for VIN number ending with Number 9771",
		"SELECT vin, inspection_date, ramp, damage_descriptions, source_file FROM inspections WHERE vin LIKE '%9771' ORDER BY inspection_date DESC LIMIT 1000"},
	{"Which VIN Number is inspected for maximum number of times?",
		"SELECT vin, COUNT(*) AS inspection_count FROM inspections GROUP BY vin ORDER BY inspection_count DESC LIMIT 1"},
	{"which was the last location for VIN '1FTFW4L80SFB31494'",
		"SELECT ramp, source_file FROM inspections WHERE vin = '1FTFW4L80SFB31494' ORDER BY inspection_date DESC LIMIT 1"},
	{"how many ramps VIN '1C6SRFJPXSN679771' has passed through",
		"SELECT COUNT(DISTINCT ramp) AS ramp_count FROM inspections WHERE vin = '1C6SRFJPXSN679771' LIMIT 1000"},
	{"Give me most common damage types",
		"SELECT damage_descriptions AS damage_type, COUNT(*) AS count FROM inspections GROUP BY damage_type ORDER BY count DESC LIMIT 5"},
	{"which vehicle part has maximum number of damages reported till date, what is that number",
		"SELECT TRIM(SUBSTR(damage_descriptions, 1, INSTR(damage_descriptions || '-', '-') - 1)) AS part, COUNT(*) AS damage_count FROM inspections GROUP BY part ORDER BY damage_count DESC LIMIT 1"},
	{"What damages were found on VIN 1C6SRFJPXSN679771",
		"SELECT damage_descriptions, source_file FROM inspections WHERE vin = '1C6SRFJPXSN679771' ORDER BY inspection_date DESC LIMIT 1000"},
	{"how many vehicles inspected by bryan?",
		"SELECT COUNT(*) AS vehicle_count, source_file FROM inspections WHERE inspector_name LIKE '%bryan%' GROUP BY source_file LIMIT 1000"},
}

// BuildPrompt constructs the SQL generation prompt. query must already be preprocessed.
func BuildPrompt(query, schema string, matches []storage.Row, dialect Dialect) string {
	var sb strings.Builder

	sb.WriteString("STRICT RULES:\n")
	fmt.Fprintf(&sb, "1. For text columns (%s):\n", strings.Join(TextColumns, ", "))
	if dialect == DialectSQLite {
		sb.WriteString("   - Always use: column LIKE '%value%'\n")
	} else {
		sb.WriteString("   - Always use: column ILIKE '%value%'\n")
	}
	sb.WriteString("   - Values must be lowercase\n")
	sb.WriteString("2. For exact matches (VINs, dates):\n   - Use: column = 'value'\n")
	sb.WriteString("3. Include `source_file` in the SELECT clause unless the query uses aggregate functions and including it would require a `GROUP BY`. In such cases, omit `source_file`.\n")
	sb.WriteString("4. Date format: YYYY-MM-DD\n")
	sb.WriteString("5. Never use JOINs\n")
	sb.WriteString("6. Always add LIMIT 1000\n")
	if dialect == DialectSQLite {
		sb.WriteString("7. All generated SQL must be compatible with SQLite 3\n")
	} else {
		sb.WriteString("7. All generated SQL must be compatible with PostgreSQL 17\n")
	}

	sb.WriteString("\nExample Solutions:\n")
	for _, ex := range Examples {
		fmt.Fprintf(&sb, "- %s\n  %s;\n", ex.Question, ex.SQL)
	}

	fmt.Fprintf(&sb, "\nSchema: %s\n", schema)
	if len(matches) > 0 {
		fmt.Fprintf(&sb, "Semantic Matches: %s\n", matchesJSON(matches))
	}

	fmt.Fprintf(&sb, "\nQuery: %q\n", query)
	sb.WriteString("Generate ONLY the SQL query:")
	return sb.String()
}

// matchesJSON encodes semantic matches and truncates to maxMatchesChars characters.
func matchesJSON(matches []storage.Row) string {
	b, err := json.Marshal(matches)
	if err != nil {
		return ""
	}
	r := []rune(string(b))
	if len(r) > maxMatchesChars {
		r = r[:maxMatchesChars]
	}
	return string(r)
}
