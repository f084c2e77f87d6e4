// Package store contains the headline backends that keep their state in
// process, and Open, which builds whichever backend the configuration names.
// It is designed to be thread-safe for concurrent access.
package store

import (
	"context"
	"sync"

	"github.com/ASHISH26940/headlines/internal/headline"
)

// Memory is a thread-safe in-memory headline store.
type Memory struct {
	mu           sync.RWMutex
	current      map[string]headline.Entry
	history      map[string][]headline.Entry // oldest first
	historyLimit int
}

// NewMemory initializes an empty Memory store. historyLimit caps each
// country's history; zero keeps everything.
func NewMemory(historyLimit int) *Memory {
	return &Memory{
		current:      make(map[string]headline.Entry),
		history:      make(map[string][]headline.Entry),
		historyLimit: historyLimit,
	}
}

// Apply records entry as the country's current value and appends it to history.
func (m *Memory) Apply(entry headline.Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.current[entry.Country] = entry

	h := append(m.history[entry.Country], entry)
	if m.historyLimit > 0 && len(h) > m.historyLimit {
		h = append([]headline.Entry(nil), h[len(h)-m.historyLimit:]...)
	}
	m.history[entry.Country] = h
}

// Current implements headline.Store.
func (m *Memory) Current(_ context.Context, country string) (headline.Entry, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.current[country]
	return e, ok, nil
}

// Put implements headline.Store.
func (m *Memory) Put(ctx context.Context, entry headline.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.Apply(entry)
	return nil
}

// Recent implements headline.Store. A limit of zero or less yields nothing.
func (m *Memory) Recent(_ context.Context, country string, limit int) ([]headline.Entry, error) {
	if limit <= 0 {
		return []headline.Entry{}, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	h := m.history[country]
	out := make([]headline.Entry, 0, min(limit, len(h)))
	for i := len(h) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, h[i])
	}
	return out, nil
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }
