package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kalambet/vinq/internal/storage"
)

const testCSV = `record_id,vin,inspector_name,damage_descriptions,source_file
R1,1HGCM82633A004352,Ann Lee,Scratch - door,a.pdf
R2,2FTRX18W1XCA12345,Bo Ray,Dent - roof,b.pdf
`

func newRecordsHandler(t *testing.T) (http.Handler, *storage.Store) {
	h, store, _ := newRecordsHandlerWithHook(t)
	return h, store
}

func newRecordsHandlerWithHook(t *testing.T) (http.Handler, *storage.Store, *int) {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	imports := new(int)
	h := NewHandler(Deps{Chat: &mockChat{}, Records: store, OnImport: func() { *imports++ }})
	return h, store, imports
}

func TestImportRecords(t *testing.T) {
	h, store, imports := newRecordsHandlerWithHook(t)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/records/import", strings.NewReader(testCSV))
	req.Header.Set("Content-Type", "text/csv")
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var body map[string]int
	json.NewDecoder(rr.Body).Decode(&body)
	if body["imported"] != 2 {
		t.Errorf("imported = %d, want 2", body["imported"])
	}

	n, err := store.CountRecords(req.Context())
	if err != nil || n != 2 {
		t.Errorf("CountRecords = %d, %v", n, err)
	}
	if *imports != 1 {
		t.Errorf("OnImport calls = %d, want 1", *imports)
	}
}

func TestImportRecords_BadCSV(t *testing.T) {
	h, _, imports := newRecordsHandlerWithHook(t)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/records/import", strings.NewReader("vin\nX\n"))
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
	if *imports != 0 {
		t.Error("OnImport should not run after a failed import")
	}
}

func TestGetRecord(t *testing.T) {
	h, store := newRecordsHandler(t)
	if _, err := store.ImportCSV(t.Context(), strings.NewReader(testCSV)); err != nil {
		t.Fatalf("ImportCSV: %v", err)
	}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/records/R2", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var rec map[string]any
	json.NewDecoder(rr.Body).Decode(&rec)
	if rec["vin"] != "2FTRX18W1XCA12345" || rec["inspector_name"] != "Bo Ray" {
		t.Errorf("record = %v", rec)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/records/missing", nil))
	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
}

func TestRecordRoutes_NotMountedWithoutStore(t *testing.T) {
	h := newTestHandler(&mockChat{})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/records/R1", nil))
	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
}
