// Package cache implements the content-addressed TTL cache store the engine
// uses for seen-URL sets and fetched-content reuse. Entries are idempotent to
// overwrite, so the store is safe for many concurrent readers and writers.
package cache

import (
	"context"
	"sync"
	"time"
)

// Store is the cache contract: best-effort get/set/delete with per-entry TTL.
// A miss and a backend error look the same to callers.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration)
	Delete(ctx context.Context, key string)
}

type entry struct {
	val     []byte
	expires time.Time
	added   time.Time
}

// Memory is an in-process Store with a max-entry bound and periodic sweep
type Memory struct {
	mu         sync.RWMutex
	entries    map[string]entry
	maxEntries int64
	stopCh     chan struct{}
	stopOnce   sync.Once
}

// NewMemory creates a bounded in-memory store and starts its sweeper.
func NewMemory(maxEntries int64) *Memory {
	m := &Memory{
		entries:    make(map[string]entry),
		maxEntries: maxEntries,
		stopCh:     make(chan struct{}),
	}
	go m.sweep()
	return m
}

// Get returns the cached value if present and unexpired.
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[key]
	if !ok || (!e.expires.IsZero() && time.Now().After(e.expires)) {
		return nil, false
	}
	return e.val, true
}

// Set stores val under key. A ttl of zero means no expiration.
func (m *Memory) Set(_ context.Context, key string, val []byte, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if int64(len(m.entries)) >= m.maxEntries {
		m.evictOldest()
	}

	e := entry{val: append([]byte(nil), val...), added: time.Now()}
	if ttl > 0 {
		e.expires = time.Now().Add(ttl)
	}
	m.entries[key] = e
}

// Delete removes key if present.
func (m *Memory) Delete(_ context.Context, key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
}

// Close stops the sweeper goroutine.
func (m *Memory) Close() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

// evictOldest removes the oldest-inserted entry; caller holds the write lock.
func (m *Memory) evictOldest() {
	var oldestKey string
	var oldest time.Time
	for k, e := range m.entries {
		if oldestKey == "" || e.added.Before(oldest) {
			oldestKey = k
			oldest = e.added
		}
	}
	if oldestKey != "" {
		delete(m.entries, oldestKey)
	}
}

func (m *Memory) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			now := time.Now()
			m.mu.Lock()
			for k, e := range m.entries {
				if !e.expires.IsZero() && now.After(e.expires) {
					delete(m.entries, k)
				}
			}
			m.mu.Unlock()
		}
	}
}
