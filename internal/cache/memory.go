package cache

import (
	"context"
	"sync"
	"time"

	"github.com/sasmalgiri/Datasimplify-sub013/internal/model"
)

// Memory is an in-process Cache backed by a plain map.
//
// Note on concurrency: the map itself is guarded by a mutex, but there is no
// single-flight de-duplication of concurrent identical requests: two racing
// resolves for the same key may both hit the upstream before either writes.
// See DESIGN.md for why that gap is preserved.
type Memory struct {
	mu      sync.RWMutex
	entries map[Key]*Entry
	now     func() time.Time
}

// NewMemory creates an in-memory cache. now is the clock used to stamp
// FetchedAtMs; pass nil for time.Now.
func NewMemory(now func() time.Time) *Memory {
	if now == nil {
		now = time.Now
	}
	return &Memory{
		entries: make(map[Key]*Entry),
		now:     now,
	}
}

// Get returns the stored entry regardless of freshness.
func (m *Memory) Get(_ context.Context, key Key) (*Entry, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	cp := *e
	return &cp, true, nil
}

// Put stores (overwriting) the payload for the key with a fresh fetch stamp.
func (m *Memory) Put(_ context.Context, key Key, payload model.CandleSeries, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = &Entry{
		Payload:     payload,
		FetchedAtMs: m.now().UnixMilli(),
		TTLMs:       ttl.Milliseconds(),
	}
	return nil
}

// Len returns the number of stored entries (used by tests and metrics).
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
