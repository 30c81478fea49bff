package pipeline

import (
	"reflect"
	"testing"

	"github.com/kalambet/vinq/internal/storage"
)

func TestEnrich_Empty(t *testing.T) {
	enr := Enrich(nil)
	if enr.TopDamage != "none" || enr.TopInspector != "unknown" || enr.RecordCount != 0 {
		t.Errorf("Enrich(nil) = %+v", enr)
	}
	if len(enr.SourceFiles) != 0 {
		t.Errorf("SourceFiles = %v, want empty", enr.SourceFiles)
	}
}

func TestEnrich_Aggregates(t *testing.T) {
	rows := []storage.Row{
		{"source_file": "d.pdf", "damage_descriptions": "Scratch - hood - minor", "inspector_name": "Ann Lee"},
		{"source_file": "b.pdf", "damage_descriptions": "scratch-door", "inspector_name": "ANN LEE"},
		{"source_file": "c.pdf", "damage_descriptions": "Dent - roof", "inspector_name": "Bo Ray"},
		{"source_file": "a.pdf", "damage_descriptions": nil, "inspector_name": nil},
		{"source_file": "b.pdf"},
	}

	enr := Enrich(rows)
	if want := []string{"a.pdf", "b.pdf", "c.pdf"}; !reflect.DeepEqual(enr.SourceFiles, want) {
		t.Errorf("SourceFiles = %v, want %v", enr.SourceFiles, want)
	}
	if enr.TopDamage != "scratch" || enr.TopDamageCount != 2 {
		t.Errorf("TopDamage = %q/%d, want scratch/2", enr.TopDamage, enr.TopDamageCount)
	}
	if enr.TopInspector != "ann lee" || enr.TopInspectorCount != 2 {
		t.Errorf("TopInspector = %q/%d, want ann lee/2", enr.TopInspector, enr.TopInspectorCount)
	}
	if enr.RecordCount != 5 {
		t.Errorf("RecordCount = %d, want 5", enr.RecordCount)
	}
}

func TestMostCommon_TieBreaksLexically(t *testing.T) {
	k, n := mostCommon(map[string]int{"dent": 2, "chip": 2, "scratch": 1})
	if k != "chip" || n != 2 {
		t.Errorf("mostCommon = %q/%d, want chip/2", k, n)
	}
}
