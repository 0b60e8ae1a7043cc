package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/book-expert/tts-proxy/internal/core"
)

// MemoryStore implements core.ObjectStore in process memory. Entries expire
// after the configured TTL and are swept at most once per TTL from Upload;
// when maxEntries is reached the entry closest to expiry is evicted.
type MemoryStore struct {
	mu         sync.Mutex
	entries    map[string]memoryEntry
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
	nextSweep  time.Time
}

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// NewMemoryStore creates a MemoryStore. A maxEntries of zero means unbounded.
func NewMemoryStore(ttl time.Duration, maxEntries int) *MemoryStore {
	return &MemoryStore{
		entries:    make(map[string]memoryEntry),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// WithClock replaces the time source and returns the store.
func (m *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	m.now = now

	return m
}

// Download implements core.ObjectStore.
func (m *MemoryStore) Download(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		return nil, fmt.Errorf("%w: '%s'", core.ErrObjectNotFound, key)
	}

	if !m.now().Before(entry.expiresAt) {
		delete(m.entries, key)

		return nil, fmt.Errorf("%w: '%s' expired", core.ErrObjectNotFound, key)
	}

	return entry.data, nil
}

// Upload implements core.ObjectStore.
func (m *MemoryStore) Upload(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()

	if !now.Before(m.nextSweep) {
		m.sweep(now)
		m.nextSweep = now.Add(m.ttl)
	}

	_, exists := m.entries[key]
	if !exists && m.maxEntries > 0 && len(m.entries) >= m.maxEntries {
		m.evict(now)
	}

	m.entries[key] = memoryEntry{
		data:      data,
		expiresAt: now.Add(m.ttl),
	}

	return nil
}

// Len reports the number of stored entries, expired ones included.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.entries)
}

// sweep drops every expired entry.
func (m *MemoryStore) sweep(now time.Time) {
	for key, entry := range m.entries {
		if !now.Before(entry.expiresAt) {
			delete(m.entries, key)
		}
	}
}

// evict drops expired entries, or the one closest to expiry if none expired.
func (m *MemoryStore) evict(now time.Time) {
	var (
		oldestKey string
		oldestAt  time.Time
	)

	for key, entry := range m.entries {
		if !now.Before(entry.expiresAt) {
			delete(m.entries, key)

			continue
		}

		if oldestKey == "" || entry.expiresAt.Before(oldestAt) {
			oldestKey = key
			oldestAt = entry.expiresAt
		}
	}

	if len(m.entries) >= m.maxEntries && oldestKey != "" {
		delete(m.entries, oldestKey)
	}
}
