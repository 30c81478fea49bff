package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/kalambet/vinq/internal/cache"
	"github.com/kalambet/vinq/internal/formatter"
	"github.com/kalambet/vinq/internal/memory"
	"github.com/kalambet/vinq/internal/router"
	"github.com/kalambet/vinq/internal/sqlgen"
	"github.com/kalambet/vinq/internal/storage"
)

// Outcome classifies how a query was answered.
type Outcome string

const (
	OutcomeAnswered    Outcome = "answered"
	OutcomeCached      Outcome = "cached"
	OutcomeRefused     Outcome = "refused"
	OutcomeNeedsDetail Outcome = "needs_detail"
	OutcomeNoMatch     Outcome = "no_match"
	OutcomeFailed      Outcome = "failed"
)

// NeedsDetailResponse is returned for blank queries and when no SQL could be produced.
const NeedsDetailResponse = "I need more details to answer that."

const (
	DefaultMaxMisses  = 3
	maxErrorNoteChars = 100
)

// Answer is the result of processing one query.
type Answer struct {
	Response  string  `json:"response"`
	Outcome   Outcome `json:"outcome"`
	SessionID string  `json:"session_id,omitempty"`
	Route     string  `json:"route,omitempty"`
	SQL       string  `json:"sql,omitempty"`
	RowCount  int     `json:"row_count"`
}

// Router decides between structured and semantic handling.
type Router interface {
	Route(ctx context.Context, query, schema string) router.Decision
}

// Searcher finds records similar to a query.
type Searcher interface {
	Search(ctx context.Context, query string) ([]storage.Row, error)
}

// Synthesizer turns a question into SQL.
type Synthesizer interface {
	Synthesize(ctx context.Context, query, schema string, matches []storage.Row) (string, error)
}

// Executor runs read-only SQL.
type Executor interface {
	Execute(ctx context.Context, sql string) (storage.QueryResult, error)
}

// Formatter renders results as prose.
type Formatter interface {
	Format(ctx context.Context, query string, result storage.QueryResult, enr formatter.Enrichment, history []memory.Message) string
}

// Deps holds the collaborators of a Chatbot.
type Deps struct {
	Router      Router
	Searcher    Searcher
	Synthesizer Synthesizer
	Executor    Executor
	Formatter   Formatter
	Memory      memory.Store
	Cache       cache.Cache
	Schema      string
	MaxMisses   int
	// SessionTTL bounds how long an idle session's miss counter is kept.
	// It should match the memory store's TTL.
	SessionTTL time.Duration
}

// Chatbot runs the query pipeline. Queries are processed one at a time.
type Chatbot struct {
	mu sync.Mutex

	router      Router
	searcher    Searcher
	synthesizer Synthesizer
	executor    Executor
	formatter   Formatter
	memory      memory.Store
	cache       cache.Cache
	schema      string
	maxMisses   int
	sessionTTL  time.Duration
	now         func() time.Time

	// misses counts consecutive failed queries per session.
	misses map[string]missCounter
}

type missCounter struct {
	n        int
	lastSeen time.Time
}

// NewChatbot creates a Chatbot. Memory and Cache default to in-process implementations.
func NewChatbot(d Deps) *Chatbot {
	if d.Memory == nil {
		d.Memory = memory.NewInMemory(memory.DefaultTTL, memory.DefaultWindow)
	}
	if d.Cache == nil {
		d.Cache = cache.NewMemory()
	}
	if d.Schema == "" {
		d.Schema = storage.SchemaJSON()
	}
	if d.MaxMisses <= 0 {
		d.MaxMisses = DefaultMaxMisses
	}
	if d.SessionTTL <= 0 {
		d.SessionTTL = memory.DefaultTTL
	}
	return &Chatbot{
		router:      d.Router,
		searcher:    d.Searcher,
		synthesizer: d.Synthesizer,
		executor:    d.Executor,
		formatter:   d.Formatter,
		memory:      d.Memory,
		cache:       d.Cache,
		schema:      d.Schema,
		maxMisses:   d.MaxMisses,
		sessionTTL:  d.SessionTTL,
		now:         time.Now,
		misses:      make(map[string]missCounter),
	}
}

// Process answers query within the given session. It never returns an
// error: failures are translated into a user-facing response with
// Outcome set to OutcomeFailed.
func (c *Chatbot) Process(ctx context.Context, query, sessionID string) Answer {
	c.mu.Lock()
	defer c.mu.Unlock()

	ans := Answer{SessionID: sessionID}
	c.sweepMisses()

	if strings.TrimSpace(query) == "" {
		ans.Response, ans.Outcome = NeedsDetailResponse, OutcomeNeedsDetail
		return ans
	}

	if cached, ok := c.cache.Get(ctx, query); ok {
		slog.Debug("cache hit", "session", sessionID)
		ans.Response, ans.Outcome = cached, OutcomeCached
		return ans
	}

	if IsDestructive(query) {
		slog.Info("refused destructive query", "session", sessionID)
		ans.Response, ans.Outcome = RefusalResponse, OutcomeRefused
		return ans
	}

	var history []memory.Message
	if sessionID != "" {
		h, err := c.memory.History(ctx, sessionID, 0)
		if err != nil {
			return c.fail(ctx, ans, err)
		}
		if len(h) == 0 {
			// Unknown or expired session: its failures are forgotten with it.
			delete(c.misses, sessionID)
		}
		history = h
	}
	c.record(ctx, sessionID, memory.RoleUser, query)

	ans, err := c.run(ctx, query, history, ans)
	if err != nil {
		return c.fail(ctx, ans, err)
	}
	return ans
}

func (c *Chatbot) run(ctx context.Context, query string, history []memory.Message, ans Answer) (Answer, error) {
	decision := c.router.Route(ctx, query, c.schema)
	ans.Route = "sql"
	if decision.UseSemantic {
		ans.Route = "semantic"
	}
	slog.Info("route", "route", ans.Route, "reason", decision.Reason)

	var matches []storage.Row
	if decision.UseSemantic && c.searcher != nil {
		rows, err := c.searcher.Search(ctx, query)
		if err != nil {
			return ans, err
		}
		matches = rows
		slog.Info("semantic matches", "count", len(matches))
	}

	sql, err := c.synthesizer.Synthesize(ctx, query, c.schema, matches)
	if errors.Is(err, sqlgen.ErrNoSQL) {
		ans.Response, ans.Outcome = NeedsDetailResponse, OutcomeNeedsDetail
		return ans, nil
	}
	if err != nil {
		return ans, err
	}
	ans.SQL = sql
	slog.Info("sql generated", "sql", sql)

	result, err := c.executor.Execute(ctx, sql)
	if err != nil {
		return ans, err
	}
	ans.RowCount = len(result.Rows)
	slog.Info("results", "records", ans.RowCount)

	if len(result.Rows) == 0 {
		if c.misses[ans.SessionID].n >= c.maxMisses {
			ans.Response = troubleResponse
		} else {
			ans.Response = noMatchPrefix + Suggest(query, history)
		}
		ans.Outcome = OutcomeNoMatch
		delete(c.misses, ans.SessionID)
		return ans, nil
	}

	enr := Enrich(result.Rows)
	ans.Response = c.formatter.Format(ctx, query, result, enr, history)
	ans.Outcome = OutcomeAnswered

	c.cache.Set(ctx, query, ans.Response)
	c.record(ctx, ans.SessionID, memory.RoleAssistant, ans.Response)
	delete(c.misses, ans.SessionID)
	return ans, nil
}

// fail translates err, bumps the session miss counter and notes the error in history.
func (c *Chatbot) fail(ctx context.Context, ans Answer, err error) Answer {
	slog.Error("query failed", "session", ans.SessionID, "error", err)

	if ans.SessionID != "" {
		m := c.misses[ans.SessionID]
		m.n++
		m.lastSeen = c.now()
		c.misses[ans.SessionID] = m
	}
	note := strings.ToLower(err.Error())
	if r := []rune(note); len(r) > maxErrorNoteChars {
		note = string(r[:maxErrorNoteChars])
	}
	c.record(ctx, ans.SessionID, memory.RoleSystem, "Error: "+note)

	ans.Response = Translate(err)
	ans.Outcome = OutcomeFailed
	return ans
}

func (c *Chatbot) record(ctx context.Context, sessionID, role, content string) {
	if sessionID == "" {
		return
	}
	msg := memory.Message{Role: role, Content: content, Timestamp: time.Now()}
	if err := c.memory.Add(ctx, sessionID, msg); err != nil {
		slog.Warn("recording message failed", "session", sessionID, "error", err)
	}
}

// ClearSession drops the session history and its miss counter.
func (c *Chatbot) ClearSession(ctx context.Context, sessionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.misses, sessionID)
	return c.memory.Clear(ctx, sessionID)
}

// sweepMisses drops counters of sessions idle longer than the session TTL.
// Caller must hold mu.
func (c *Chatbot) sweepMisses() {
	now := c.now()
	for id, m := range c.misses {
		if now.Sub(m.lastSeen) > c.sessionTTL {
			delete(c.misses, id)
		}
	}
}

func (c *Chatbot) missCount(sessionID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.misses[sessionID].n
}
