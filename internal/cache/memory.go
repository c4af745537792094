package cache

import (
	"context"
	"sync"
	"time"

	"github.com/gmorse81/uk-hpi-service/internal/clock"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// Memory is an in-process TTL cache. Expired entries are dropped lazily on
// read and swept opportunistically on write.
type Memory struct {
	mu      sync.RWMutex
	ttl     time.Duration
	clock   clock.Clock
	entries map[string]memoryEntry
}

// NewMemory creates a Memory cache with the given TTL.
func NewMemory(ttl time.Duration, clk clock.Clock) *Memory {
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &Memory{
		ttl:     ttl,
		clock:   clk,
		entries: make(map[string]memoryEntry),
	}
}

// Get returns the cached value for key if it has not expired.
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool) {
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if m.clock.Now().After(entry.expiresAt) {
		m.mu.Lock()
		// Re-check under the write lock; another writer may have refreshed it.
		if cur, ok := m.entries[key]; ok && m.clock.Now().After(cur.expiresAt) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		return nil, false
	}
	return entry.value, true
}

// Set stores value under key for the cache TTL.
func (m *Memory) Set(_ context.Context, key string, value []byte) {
	now := m.clock.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, e := range m.entries {
		if now.After(e.expiresAt) {
			delete(m.entries, k)
		}
	}
	m.entries[key] = memoryEntry{
		value:     append([]byte(nil), value...),
		expiresAt: now.Add(m.ttl),
	}
}

// Close does nothing for the in-memory cache.
func (m *Memory) Close() error { return nil }
