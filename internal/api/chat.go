package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kalambet/vinq/internal/pipeline"
)

const maxRequestBodySize = 1 << 20 // 1MB

// ChatService is the query pipeline as seen by the transports.
// *pipeline.Chatbot satisfies it.
type ChatService interface {
	Process(ctx context.Context, query, sessionID string) pipeline.Answer
	ClearSession(ctx context.Context, sessionID string) error
}

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id,omitempty"`
}

// ChatResponse is returned by POST /chat.
type ChatResponse struct {
	Response  string `json:"response"`
	SessionID string `json:"session_id"`
	Outcome   string `json:"outcome"`
	Timestamp string `json:"timestamp"`
}

// Deps holds dependencies for the HTTP handler.
type Deps struct {
	Chat    ChatService
	Records RecordStore // optional; record routes are not mounted when nil
	// OnImport is called after a successful CSV import, typically to
	// schedule an index rebuild.
	OnImport func()

	// IndexStatus reports background index rebuilds on /health when set.
	IndexStatus func() (builds int, lastErr error)

	// CORSOrigins is a comma separated list; "*" allows any origin.
	CORSOrigins string
	RateLimit   float64
	RateBurst   int
}

// NewHandler returns the HTTP API.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(CORS(splitOrigins(deps.CORSOrigins)))

	r.Get("/health", handleHealth(deps.IndexStatus))

	r.Group(func(r chi.Router) {
		r.Use(RateLimit(deps.RateLimit, deps.RateBurst))

		r.Post("/chat", handleChat(deps.Chat))
		r.Get("/session/{id}/clear", handleClearSession(deps.Chat))
		r.Delete("/session/{id}", handleClearSession(deps.Chat))

		if deps.Records != nil {
			r.Get("/records/{id}", handleGetRecord(deps.Records))
			r.Post("/records/import", handleImportRecords(deps.Records, deps.OnImport))
		}
	})

	return r
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string       `json:"status"`
	Index  *IndexHealth `json:"index,omitempty"`
}

// IndexHealth summarizes background index rebuilds.
type IndexHealth struct {
	Builds    int    `json:"builds"`
	LastError string `json:"last_error,omitempty"`
}

func handleHealth(indexStatus func() (int, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{Status: "ok"}
		if indexStatus != nil {
			builds, lastErr := indexStatus()
			resp.Index = &IndexHealth{Builds: builds}
			if lastErr != nil {
				resp.Index.LastError = lastErr.Error()
			}
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleChat(chat ChatService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if strings.TrimSpace(req.Query) == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "query is required")
			return
		}
		if req.SessionID == "" {
			req.SessionID = uuid.New().String()
		}

		ans := chat.Process(r.Context(), req.Query, req.SessionID)

		writeJSON(w, http.StatusOK, ChatResponse{
			Response:  ans.Response,
			SessionID: req.SessionID,
			Outcome:   string(ans.Outcome),
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
	}
}

func handleClearSession(chat ChatService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "session id is required")
			return
		}
		if err := chat.ClearSession(r.Context(), id); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to clear session: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "session cleared"})
	}
}

func splitOrigins(s string) []string {
	var out []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
