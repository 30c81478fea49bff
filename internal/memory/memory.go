package memory

import (
	"context"
	"sync"
	"time"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

const (
	DefaultTTL    = 60 * time.Minute
	DefaultWindow = 10
)

// Message is one turn of a conversation.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Store keeps per-session conversation history.
type Store interface {
	// Add appends a message, creating the session if needed.
	Add(ctx context.Context, sessionID string, msg Message) error

	// History returns the last max messages of a session, oldest first.
	// Unknown or expired sessions yield an empty slice.
	History(ctx context.Context, sessionID string, max int) ([]Message, error)

	// Clear deletes a session.
	Clear(ctx context.Context, sessionID string) error
}

type session struct {
	messages     []Message
	created      time.Time
	lastAccessed time.Time
}

// InMemory is a process-local Store. Each session keeps at most window
// messages; sessions idle for longer than the TTL are removed lazily at the
// start of every call.
type InMemory struct {
	mu       sync.Mutex
	sessions map[string]*session
	ttl      time.Duration
	window   int
	now      func() time.Time
}

// NewInMemory creates an in-process store. Non-positive ttl and window fall
// back to 60 minutes and 10 messages.
func NewInMemory(ttl time.Duration, window int) *InMemory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &InMemory{
		sessions: make(map[string]*session),
		ttl:      ttl,
		window:   window,
		now:      time.Now,
	}
}

// sweep removes expired sessions. Caller must hold mu.
func (m *InMemory) sweep(now time.Time) {
	for id, s := range m.sessions {
		if now.Sub(s.lastAccessed) > m.ttl {
			delete(m.sessions, id)
		}
	}
}

func (m *InMemory) Add(_ context.Context, sessionID string, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.sweep(now)

	s, ok := m.sessions[sessionID]
	if !ok {
		s = &session{created: now}
		m.sessions[sessionID] = s
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = now
	}
	s.messages = append(s.messages, msg)
	if over := len(s.messages) - m.window; over > 0 {
		s.messages = append(s.messages[:0:0], s.messages[over:]...)
	}
	s.lastAccessed = now
	return nil
}

func (m *InMemory) History(_ context.Context, sessionID string, max int) ([]Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.sweep(now)

	s, ok := m.sessions[sessionID]
	if !ok {
		return []Message{}, nil
	}
	s.lastAccessed = now

	if max <= 0 {
		max = m.window
	}
	start := len(s.messages) - max
	if start < 0 {
		start = 0
	}
	out := make([]Message, len(s.messages)-start)
	copy(out, s.messages[start:])
	return out, nil
}

func (m *InMemory) Clear(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sweep(m.now())
	delete(m.sessions, sessionID)
	return nil
}

// Len returns the number of live sessions.
func (m *InMemory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sweep(m.now())
	return len(m.sessions)
}
