package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kalambet/vinq/internal/cache"
	"github.com/kalambet/vinq/internal/config"
	"github.com/kalambet/vinq/internal/memory"
	"github.com/kalambet/vinq/internal/pipeline"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   string
}

type testServer struct {
	server   *httptest.Server
	requests []recordedRequest
}

func newTestServer(t *testing.T, responses map[string]string) *testServer {
	t.Helper()
	ts := &testServer{}

	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body bytes.Buffer
		body.ReadFrom(r.Body)

		ts.requests = append(ts.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.EscapedPath(),
			Body:   body.String(),
		})

		key := r.Method + " " + r.URL.EscapedPath()
		if resp, ok := responses[key]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(resp))
			return
		}

		w.WriteHeader(404)
		w.Write([]byte(`{"error":{"message":"not found","type":"not_found"}}`))
	}))

	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) client() *apiClient {
	return &apiClient{
		baseURL:    ts.server.URL,
		httpClient: ts.server.Client(),
	}
}

var ctx = context.Background()

type stubChat struct {
	queries  []string
	sessions []string
}

func (s *stubChat) Process(_ context.Context, query, sessionID string) pipeline.Answer {
	s.queries = append(s.queries, query)
	s.sessions = append(s.sessions, sessionID)
	return pipeline.Answer{Response: "answer to " + query, Outcome: pipeline.OutcomeAnswered}
}

func (s *stubChat) ClearSession(_ context.Context, _ string) error { return nil }

func TestREPL_AnswersUntilExit(t *testing.T) {
	chat := &stubChat{}
	in := strings.NewReader("how many dents\n\n  \nlist ramps\nQUIT\nnever asked\n")
	var out bytes.Buffer

	if err := runREPL(ctx, chat, in, &out, "sess-1"); err != nil {
		t.Fatalf("runREPL: %v", err)
	}

	if len(chat.queries) != 2 || chat.queries[0] != "how many dents" || chat.queries[1] != "list ramps" {
		t.Errorf("queries = %v", chat.queries)
	}
	for _, s := range chat.sessions {
		if s != "sess-1" {
			t.Errorf("session = %q, want sess-1", s)
		}
	}

	got := out.String()
	rule := strings.Repeat("=", 50)
	if !strings.Contains(got, rule+"\nanswer to how many dents\n"+rule) {
		t.Errorf("output missing framed answer:\n%s", got)
	}
	if !strings.Contains(got, "Goodbye!") {
		t.Error("expected goodbye on quit")
	}
}

func TestREPL_EndOfInput(t *testing.T) {
	chat := &stubChat{}
	var out bytes.Buffer

	if err := runREPL(ctx, chat, strings.NewReader("one question"), &out, "s"); err != nil {
		t.Fatalf("runREPL: %v", err)
	}
	if len(chat.queries) != 1 {
		t.Errorf("queries = %v, want one", chat.queries)
	}
}

func TestClearSession_CallsServer(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"DELETE /session/abc%2F1": `{"status":"session cleared"}`,
	})

	if err := clearSession(ctx, ts.client(), "abc/1"); err != nil {
		t.Fatalf("clearSession: %v", err)
	}
	if len(ts.requests) != 1 || ts.requests[0].Method != http.MethodDelete {
		t.Fatalf("requests = %+v", ts.requests)
	}
}

func TestClearSession_ServerError(t *testing.T) {
	ts := newTestServer(t, nil)

	err := clearSession(ctx, ts.client(), "missing")
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Errorf("err = %v, want 404 error", err)
	}
}

func TestClearSession_Unreachable(t *testing.T) {
	ts := newTestServer(t, nil)
	c := ts.client()
	ts.server.Close()

	err := clearSession(ctx, c, "x")
	if err == nil || !strings.Contains(err.Error(), "vinq serve") {
		t.Errorf("err = %v, want unreachable hint", err)
	}
}

func TestAskRemote_PostsQuery(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /chat": `{"response":"Found 2 records","session_id":"s1","outcome":"answered"}`,
	})

	resp, err := askRemote(ctx, ts.client(), "damage on ramp 4", "s1")
	if err != nil {
		t.Fatalf("askRemote: %v", err)
	}
	if resp.Response != "Found 2 records" || resp.SessionID != "s1" || resp.Outcome != "answered" {
		t.Errorf("resp = %+v", resp)
	}

	var body map[string]string
	json.Unmarshal([]byte(ts.requests[0].Body), &body)
	if body["query"] != "damage on ramp 4" || body["session_id"] != "s1" {
		t.Errorf("request body = %q", ts.requests[0].Body)
	}
}

func TestAskRemote_ServerError(t *testing.T) {
	ts := newTestServer(t, nil)

	_, err := askRemote(ctx, ts.client(), "hi", "")
	if err == nil || !strings.Contains(err.Error(), "asking server") {
		t.Errorf("err = %v, want wrapped server error", err)
	}
}

func TestProbeServer_IndexStatus(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /health": `{"status":"ok","index":{"builds":2,"last_error":"no records for indexing"}}`,
	})

	health, err := probeServer(ctx, ts.client())
	if err != nil {
		t.Fatalf("probeServer: %v", err)
	}
	if health.Status != "ok" || health.Index == nil || health.Index.Builds != 2 {
		t.Errorf("health = %+v", health)
	}
}

func TestProbeServer_Stopped(t *testing.T) {
	ts := newTestServer(t, nil)
	c := ts.client()
	ts.server.Close()

	if _, err := probeServer(ctx, c); err == nil {
		t.Error("probeServer on a stopped server = nil error")
	}
}

func TestDecodeJSON_ErrorResponse(t *testing.T) {
	rr := httptest.NewRecorder()
	rr.WriteHeader(http.StatusTooManyRequests)
	rr.WriteString(`{"error":{"message":"too many requests","type":"rate_limit_error"}}`)

	err := decodeJSON(rr.Result(), &map[string]any{})
	if err == nil || !strings.Contains(err.Error(), "429") || !strings.Contains(err.Error(), "too many requests") {
		t.Errorf("err = %v", err)
	}
}

func TestNoColorFlag(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()

	noColor = true
	if result := colorize(colorRed, "test"); strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=true should not contain ANSI codes, got %q", result)
	}

	noColor = false
	if result := colorize(colorRed, "test"); !strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=false should contain ANSI codes, got %q", result)
	}
}

func TestPrintFramed(t *testing.T) {
	var buf bytes.Buffer
	printFramed(&buf, "hello")
	rule := strings.Repeat("=", 50)
	if got, want := buf.String(), rule+"\nhello\n"+rule+"\n"; got != want {
		t.Errorf("printFramed = %q, want %q", got, want)
	}
}

func TestAskCommand_RequiresQuestion(t *testing.T) {
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"ask"})
	if err := rootCmd.Execute(); err == nil {
		t.Fatal("expected error for missing question")
	}
}

func TestSessionClear_RequiresID(t *testing.T) {
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"session", "clear"})
	if err := rootCmd.Execute(); err == nil {
		t.Fatal("expected error for missing session id")
	}
}

func TestSourceCommand_RejectsEscape(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("VINQ_SOURCES_DIR", t.TempDir())
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"source", "../outside.pdf"})
	err := rootCmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "escapes") {
		t.Errorf("err = %v, want path escape error", err)
	}
}

func TestOpenIndex_SQLiteDefault(t *testing.T) {
	cfg := config.Config{}
	cfg.Index.Backend = config.BackendSQLite
	cfg.Index.Path = t.TempDir() + "/index.db"

	idx, err := openIndex(cfg)
	if err != nil {
		t.Fatalf("openIndex: %v", err)
	}
	defer idx.Close()

	n, err := idx.Count(ctx)
	if err != nil || n != 0 {
		t.Errorf("Count = %d, %v", n, err)
	}
}

func TestBackendSelection_InProcessWithoutRedis(t *testing.T) {
	cfg := config.Config{}
	cfg.Memory.Backend = config.BackendRedis
	cfg.Cache.Backend = config.BackendRedis
	cfg.Memory.TTL = "1m"
	cfg.Memory.MaxMessages = 5

	if _, ok := newMemoryStore(cfg, nil).(*memory.InMemory); !ok {
		t.Error("expected in-process memory store without a redis client")
	}
	if _, ok := newCache(cfg, nil).(*cache.Memory); !ok {
		t.Error("expected in-process cache without a redis client")
	}
}
