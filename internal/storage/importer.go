package storage

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ReadCSV parses inspection records from CSV. The header row names the
// columns; names are matched case-insensitively with spaces treated as
// underscores, unknown columns are ignored and record_id is required.
func ReadCSV(r io.Reader) ([]InspectionRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, errors.New("csv is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	idx := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(h))
		name = strings.TrimPrefix(name, "\ufeff")
		name = strings.ReplaceAll(name, " ", "_")
		idx[name] = i
	}
	if _, ok := idx["record_id"]; !ok {
		return nil, errors.New("csv header has no record_id column")
	}

	var records []InspectionRecord
	line := 1
	for {
		fields, err := cr.Read()
		line++
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		get := func(col string) string {
			i, ok := idx[col]
			if !ok || i >= len(fields) {
				return ""
			}
			return strings.TrimSpace(fields[i])
		}

		rec := InspectionRecord{
			RecordID:           get("record_id"),
			VIN:                get("vin"),
			InspectionDate:     get("inspection_date"),
			InspectionTime:     get("inspection_time"),
			InspectionType:     get("inspection_type"),
			InspectorName:      get("inspector_name"),
			Ramp:               get("ramp"),
			RailcarNumber:      get("railcar_number"),
			BayLocation:        get("bay_location"),
			MfgModel:           get("mfg_model"),
			DamageComments:     get("damage_comments"),
			VehicleComments:    get("vehicle_comments"),
			AIAGCodes:          get("aiag_codes"),
			DamageDescriptions: get("damage_descriptions"),
			SourceFile:         get("source_file"),
		}
		if rec.RecordID == "" {
			return nil, fmt.Errorf("line %d: empty record_id", line)
		}
		if dc := get("damage_count"); dc != "" {
			n, err := strconv.Atoi(dc)
			if err != nil {
				return nil, fmt.Errorf("line %d: damage_count %q: %w", line, dc, err)
			}
			rec.DamageCount = n
		}
		records = append(records, rec)
	}
	return records, nil
}

// ImportCSV reads records from r and upserts them. It returns the number of records written.
func (s *Store) ImportCSV(ctx context.Context, r io.Reader) (int, error) {
	records, err := ReadCSV(r)
	if err != nil {
		return 0, fmt.Errorf("parsing csv: %w", err)
	}
	if len(records) == 0 {
		return 0, nil
	}
	if err := s.UpsertRecords(ctx, records); err != nil {
		return 0, err
	}
	return len(records), nil
}
