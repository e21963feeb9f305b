// Package store persists cycle session records so pollers can follow a
// running cycle and inspect finished ones.
package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/launchradar/launchradar/internal/cycle"
)

// ErrNotFound reports a session id with no stored record.
var ErrNotFound = fmt.Errorf("session not found")

// Memory is the in-process session store used when no database is
// configured.
type Memory struct {
	mu    sync.RWMutex
	snaps map[string]cycle.Snapshot
	order []string // Insertion order, for Recent
	limit int
}

// NewMemory creates an in-memory store keeping at most limit sessions;
// zero means unbounded.
func NewMemory(limit int) *Memory {
	return &Memory{snaps: make(map[string]cycle.Snapshot), limit: limit}
}

// Create stores a new session record.
func (m *Memory) Create(_ context.Context, snap cycle.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.snaps[snap.ID]; exists {
		return fmt.Errorf("session %s already exists", snap.ID)
	}
	m.snaps[snap.ID] = snap
	m.order = append(m.order, snap.ID)
	if m.limit > 0 && len(m.order) > m.limit {
		evict := m.order[0]
		m.order = m.order[1:]
		delete(m.snaps, evict)
	}
	return nil
}

// Update overwrites the stored record for a session.
func (m *Memory) Update(_ context.Context, snap cycle.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.snaps[snap.ID]; !exists {
		return fmt.Errorf("update session %s: %w", snap.ID, ErrNotFound)
	}
	m.snaps[snap.ID] = snap
	return nil
}

// Get returns the stored record for a session id.
func (m *Memory) Get(_ context.Context, id string) (cycle.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap, ok := m.snaps[id]
	if !ok {
		return cycle.Snapshot{}, fmt.Errorf("get session %s: %w", id, ErrNotFound)
	}
	return snap, nil
}

// Recent returns up to n sessions, newest first.
func (m *Memory) Recent(_ context.Context, n int) ([]cycle.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]cycle.Snapshot, 0, n)
	for i := len(m.order) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, m.snaps[m.order[i]])
	}
	return out, nil
}
