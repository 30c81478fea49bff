package storage

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// TestMigrationsIdempotent runs Open twice on the same database and verifies
// the schema_version count stays correct (migration not re-applied).
func TestMigrationsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inspections.db")

	s1, err := Open(path)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}

	v1, err := s1.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	s1.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer s2.Close()

	v2, err := s2.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}

	if len(v1) != len(v2) {
		t.Errorf("migration count changed: %d -> %d", len(v1), len(v2))
	}
}

// TestMigrationsOrdered verifies migrations are applied in ascending numeric order.
func TestMigrationsOrdered(t *testing.T) {
	s := openTestStore(t)

	versions, err := s.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}

	if len(versions) == 0 {
		t.Fatal("expected at least one applied migration")
	}

	for i := 1; i < len(versions); i++ {
		if versions[i] <= versions[i-1] {
			t.Errorf("migrations not in ascending order: %v", versions)
			break
		}
	}
}

// TestIndexesExist verifies the inspections indexes are created by the migration.
func TestIndexesExist(t *testing.T) {
	s := openTestStore(t)

	indexes := []string{"idx_inspections_vin", "idx_inspections_date", "idx_inspections_ramp"}
	for _, idx := range indexes {
		var count int
		err := s.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='index' AND name=?", idx).Scan(&count)
		if err != nil {
			t.Fatalf("querying sqlite_master for %q: %v", idx, err)
		}
		if count != 1 {
			t.Errorf("index %q not found in sqlite_master", idx)
		}
	}
}

func seedRecords(t *testing.T, s *Store) {
	t.Helper()
	records := []InspectionRecord{
		{
			RecordID: "r1", VIN: "1FTFW1E50NFA00001", InspectionDate: "2024-03-01",
			InspectorName: "Jane Doe", Ramp: "Kansas City", MfgModel: "Ford, F150",
			DamageCount: 2, DamageDescriptions: "Scratch - Door - Minor", SourceFile: "a.pdf",
		},
		{
			RecordID: "r2", VIN: "2HGFC2F59MH000002", InspectionDate: "2024-03-02",
			InspectorName: "John Roe", Ramp: "Chicago", MfgModel: "Honda, Civic",
			DamageCount: 1, DamageDescriptions: "Dent - Hood - Major", SourceFile: "b.pdf",
		},
		{
			RecordID: "r3", VIN: "3VWFE21C04M000003", InspectionDate: "2024-04-10",
			InspectorName: "Jane Doe", Ramp: "Chicago", MfgModel: "VW, Jetta",
			DamageCount: 0, SourceFile: "c.pdf",
		},
	}
	if err := s.UpsertRecords(context.Background(), records); err != nil {
		t.Fatalf("UpsertRecords: %v", err)
	}
}

func TestExecute_Select(t *testing.T) {
	s := openTestStore(t)
	seedRecords(t, s)

	res, err := s.Execute(context.Background(), "SELECT record_id, damage_count FROM inspections WHERE ramp = 'Chicago' ORDER BY record_id;")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(res.Columns) != 2 || res.Columns[0] != "record_id" || res.Columns[1] != "damage_count" {
		t.Errorf("columns = %v", res.Columns)
	}
	if len(res.Rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(res.Rows))
	}
	if res.Rows[0]["record_id"] != "r2" {
		t.Errorf("first row record_id = %v, want r2", res.Rows[0]["record_id"])
	}
	if n, ok := res.Rows[0]["damage_count"].(int64); !ok || n != 1 {
		t.Errorf("damage_count = %#v, want int64(1)", res.Rows[0]["damage_count"])
	}
}

func TestExecute_EmptyIsNotError(t *testing.T) {
	s := openTestStore(t)
	seedRecords(t, s)

	res, err := s.Execute(context.Background(), "SELECT * FROM inspections WHERE vin = 'NOPE'")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Rows == nil || len(res.Rows) != 0 {
		t.Errorf("rows = %#v, want empty non-nil slice", res.Rows)
	}
	if len(res.Columns) != 16 {
		t.Errorf("got %d columns, want 16", len(res.Columns))
	}
}

func TestExecute_WithStatement(t *testing.T) {
	s := openTestStore(t)
	seedRecords(t, s)

	res, err := s.Execute(context.Background(), `
		-- inspectors by volume
		WITH c AS (SELECT inspector_name, COUNT(*) AS n FROM inspections GROUP BY inspector_name)
		SELECT * FROM c ORDER BY n DESC LIMIT 1`)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(res.Rows) != 1 || res.Rows[0]["inspector_name"] != "Jane Doe" {
		t.Errorf("rows = %v", res.Rows)
	}
}

func TestExecute_RejectsWrites(t *testing.T) {
	s := openTestStore(t)
	seedRecords(t, s)

	for _, q := range []string{
		"DELETE FROM inspections",
		"  drop table inspections",
		"UPDATE inspections SET vin = ''",
		"/* sneaky */ INSERT INTO inspections (record_id) VALUES ('x')",
		"",
	} {
		if _, err := s.Execute(context.Background(), q); !errors.Is(err, ErrReadOnly) {
			t.Errorf("Execute(%q) err = %v, want ErrReadOnly", q, err)
		}
	}

	n, err := s.CountRecords(context.Background())
	if err != nil {
		t.Fatalf("CountRecords: %v", err)
	}
	if n != 3 {
		t.Errorf("count = %d after rejected writes, want 3", n)
	}
}

func TestExecute_ChainedWriteRolledBack(t *testing.T) {
	s := openTestStore(t)
	seedRecords(t, s)

	// Whether or not the driver runs the trailing statement, the transaction is discarded.
	s.Execute(context.Background(), "SELECT 1; DELETE FROM inspections")

	n, err := s.CountRecords(context.Background())
	if err != nil {
		t.Fatalf("CountRecords: %v", err)
	}
	if n != 3 {
		t.Errorf("count = %d, want 3", n)
	}
}

func TestExecute_SyntaxError(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Execute(context.Background(), "SELECT FROM WHERE")
	if err == nil {
		t.Fatal("expected error for invalid SQL")
	}
	if !strings.HasPrefix(err.Error(), "sql execution:") {
		t.Errorf("error = %q, want sql execution prefix", err)
	}
}

func TestFetchByIDs_PreservesOrder(t *testing.T) {
	s := openTestStore(t)
	seedRecords(t, s)

	rows, err := s.FetchByIDs(context.Background(), []string{"r3", "missing", "r1"})
	if err != nil {
		t.Fatalf("FetchByIDs: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[0]["record_id"] != "r3" || rows[1]["record_id"] != "r1" {
		t.Errorf("order = %v, %v; want r3, r1", rows[0]["record_id"], rows[1]["record_id"])
	}
	if rows[1]["source_file"] != "a.pdf" {
		t.Errorf("source_file = %v, want a.pdf", rows[1]["source_file"])
	}
	if _, ok := rows[0]["inspector_name"]; ok {
		t.Error("hydrated rows should only carry record_id, vin, damage_descriptions, source_file")
	}
}

func TestFetchByIDs_Empty(t *testing.T) {
	s := openTestStore(t)

	rows, err := s.FetchByIDs(context.Background(), nil)
	if err != nil {
		t.Fatalf("FetchByIDs: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("got %d rows, want 0", len(rows))
	}
}

func TestIndexTexts(t *testing.T) {
	s := openTestStore(t)
	seedRecords(t, s)

	texts, err := s.IndexTexts(context.Background())
	if err != nil {
		t.Fatalf("IndexTexts: %v", err)
	}
	if len(texts) != 3 {
		t.Fatalf("got %d texts, want 3", len(texts))
	}
	if texts[0].RecordID != "r1" || texts[0].Text != "Scratch - Door - Minor" {
		t.Errorf("texts[0] = %+v", texts[0])
	}
	if texts[2].Text != "" {
		t.Errorf("missing damage_descriptions should be empty, got %q", texts[2].Text)
	}
}

func TestGetRecord(t *testing.T) {
	s := openTestStore(t)
	seedRecords(t, s)

	r, err := s.GetRecord(context.Background(), "r2")
	if err != nil {
		t.Fatalf("GetRecord: %v", err)
	}
	if r.VIN != "2HGFC2F59MH000002" || r.DamageCount != 1 || r.MfgModel != "Honda, Civic" {
		t.Errorf("record = %+v", r)
	}

	if _, err := s.GetRecord(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestUpsertRecords_Replaces(t *testing.T) {
	s := openTestStore(t)
	seedRecords(t, s)

	err := s.UpsertRecords(context.Background(), []InspectionRecord{{RecordID: "r1", VIN: "NEWVIN", DamageCount: 9}})
	if err != nil {
		t.Fatalf("UpsertRecords: %v", err)
	}
	r, err := s.GetRecord(context.Background(), "r1")
	if err != nil {
		t.Fatalf("GetRecord: %v", err)
	}
	if r.VIN != "NEWVIN" || r.DamageCount != 9 {
		t.Errorf("record = %+v, want replaced values", r)
	}
	n, _ := s.CountRecords(context.Background())
	if n != 3 {
		t.Errorf("count = %d, want 3", n)
	}
}

func TestSchemaJSON(t *testing.T) {
	js := SchemaJSON()
	if !strings.Contains(js, `"table": "inspections"`) {
		t.Errorf("schema JSON missing table name: %s", js)
	}
	if got := len(ColumnNames()); got != 16 {
		t.Errorf("ColumnNames len = %d, want 16", got)
	}
	if got := len(InspectionRecord{}.values()); got != len(ColumnNames()) {
		t.Errorf("record values = %d, want one per column", got)
	}
}

func TestUpsertStatement(t *testing.T) {
	stmt := upsertStatement()
	if strings.Count(stmt, "?") != 16 {
		t.Errorf("placeholders = %d, want 16: %s", strings.Count(stmt, "?"), stmt)
	}
	if strings.Contains(stmt, "record_id = excluded.record_id") {
		t.Error("conflict clause must not rewrite record_id")
	}
	if !strings.Contains(stmt, "source_file = excluded.source_file") {
		t.Errorf("conflict clause misses source_file: %s", stmt)
	}
}
