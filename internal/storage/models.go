package storage

import (
	"encoding/json"
	"errors"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrReadOnly is returned by Execute for anything other than a SELECT or WITH statement.
var ErrReadOnly = errors.New("only read-only SELECT statements are allowed")

// InspectionRecord is one row of the inspections table.
type InspectionRecord struct {
	RecordID           string
	VIN                string
	InspectionDate     string
	InspectionTime     string
	InspectionType     string
	InspectorName      string
	Ramp               string
	RailcarNumber      string
	BayLocation        string
	MfgModel           string
	DamageComments     string
	VehicleComments    string
	DamageCount        int
	AIAGCodes          string
	DamageDescriptions string
	SourceFile         string
}

// Row maps column names to scalar values (string, int64, float64 or nil).
type Row map[string]any

// QueryResult is the outcome of a successful Execute call. An empty Rows
// slice means the statement matched nothing.
type QueryResult struct {
	Columns []string
	Rows    []Row
}

// values returns the record's fields in ColumnNames order.
func (r InspectionRecord) values() []any {
	return []any{
		r.RecordID, r.VIN, r.InspectionDate, r.InspectionTime, r.InspectionType,
		r.InspectorName, r.Ramp, r.RailcarNumber, r.BayLocation, r.MfgModel,
		r.DamageComments, r.VehicleComments, r.DamageCount, r.AIAGCodes,
		r.DamageDescriptions, r.SourceFile,
	}
}

// IndexText is the text embedded for one record when building the vector index.
type IndexText struct {
	RecordID string
	Text     string
}

type ColumnInfo struct {
	Name string `json:"name"`
	Desc string `json:"desc"`
}

type SchemaInfo struct {
	Table   string       `json:"table"`
	Columns []ColumnInfo `json:"columns"`
}

var inspectionSchema = SchemaInfo{
	Table: "inspections",
	Columns: []ColumnInfo{
		{"record_id", "Unique identifier for each inspection record"},
		{"vin", "Vehicle Identification Number (17-character code)"},
		{"inspection_date", "Date of inspection"},
		{"inspection_time", "Time of inspection"},
		{"inspection_type", "Two-character inspection category code"},
		{"inspector_name", "Full name of inspector"},
		{"ramp", "Facility location where inspection took place"},
		{"railcar_number", "Railcar identifier (starts with carrier prefix)"},
		{"bay_location", "Code for specific bay/stall in yard"},
		{"mfg_model", "Manufacturer and model (comma separated)"},
		{"damage_comments", "Brief damage description comments."},
		{"vehicle_comments", "General vehicle condition remarks"},
		{"damage_count", "Number of distinct damage instances"},
		{"aiag_codes", "AIAG-standard damage codes (space separated)"},
		{"damage_descriptions", "Standardized damage label descriptions along with vehicle part and severity."},
		{"source_file", "Original PDF/document source filename"},
	},
}

// SchemaJSON returns Schema encoded as indented JSON, the form embedded in LLM prompts.
func SchemaJSON() string {
	b, _ := json.MarshalIndent(inspectionSchema, "", "  ")
	return string(b)
}

// ColumnNames lists the inspections columns in table order.
func ColumnNames() []string {
	names := make([]string, len(inspectionSchema.Columns))
	for i, c := range inspectionSchema.Columns {
		names[i] = c.Name
	}
	return names
}
