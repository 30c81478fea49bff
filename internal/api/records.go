package api

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/vinq/internal/storage"
)

const maxImportBodySize = 10 << 20 // 10MB

// RecordStore reads and loads inspection records. *storage.Store satisfies it.
type RecordStore interface {
	GetRecord(ctx context.Context, id string) (storage.InspectionRecord, error)
	ImportCSV(ctx context.Context, r io.Reader) (int, error)
}

type recordJSON struct {
	RecordID           string `json:"record_id"`
	VIN                string `json:"vin"`
	InspectionDate     string `json:"inspection_date"`
	InspectionTime     string `json:"inspection_time"`
	InspectionType     string `json:"inspection_type"`
	InspectorName      string `json:"inspector_name"`
	Ramp               string `json:"ramp"`
	RailcarNumber      string `json:"railcar_number"`
	BayLocation        string `json:"bay_location"`
	MfgModel           string `json:"mfg_model"`
	DamageComments     string `json:"damage_comments"`
	VehicleComments    string `json:"vehicle_comments"`
	DamageCount        int    `json:"damage_count"`
	AIAGCodes          string `json:"aiag_codes"`
	DamageDescriptions string `json:"damage_descriptions"`
	SourceFile         string `json:"source_file"`
}

func toRecordJSON(r storage.InspectionRecord) recordJSON {
	return recordJSON(r)
}

func handleGetRecord(store RecordStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		rec, err := store.GetRecord(r.Context(), id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found_error", "record %s not found", id)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get record: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, toRecordJSON(rec))
	}
}

// handleImportRecords loads a CSV body into the inspections table and calls
// onImport when at least one record was written.
func handleImportRecords(store RecordStore, onImport func()) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxImportBodySize)
		defer r.Body.Close()

		n, err := store.ImportCSV(r.Context(), r.Body)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "import failed: %v", err)
			return
		}
		if n > 0 && onImport != nil {
			onImport()
		}
		writeJSON(w, http.StatusOK, map[string]int{"imported": n})
	}
}
