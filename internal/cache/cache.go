package cache

import (
	"context"
	"strings"
	"sync"
)

// Cache maps normalized queries to final responses. Lookups are exact after
// normalization. Implementations are best-effort: a backend failure is a miss.
type Cache interface {
	Get(ctx context.Context, query string) (string, bool)
	Set(ctx context.Context, query, response string)
}

// Normalize lower-cases, trims and collapses internal whitespace.
func Normalize(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}

// Memory is a process-local Cache.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]string
}

// NewMemory creates an empty in-process cache.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]string)}
}

func (m *Memory) Get(_ context.Context, query string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	resp, ok := m.entries[Normalize(query)]
	return resp, ok
}

func (m *Memory) Set(_ context.Context, query, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[Normalize(query)] = response
}

// Len returns the number of cached entries.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
