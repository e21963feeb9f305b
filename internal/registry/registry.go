// Package registry persists per-source feed health between cycles so the
// scraper can prioritize productive sources after a restart.
package registry

import (
	"context"
	"sync"

	"github.com/launchradar/launchradar/internal/domain"
)

// Memory is the in-process health registry used when no database is
// configured. Health survives across cycles but not restarts.
type Memory struct {
	mu      sync.RWMutex
	healths map[string]domain.FeedHealth
}

// NewMemory creates an empty in-memory registry.
func NewMemory() *Memory {
	return &Memory{healths: make(map[string]domain.FeedHealth)}
}

// Health returns the stored health for a source, if any.
func (m *Memory) Health(_ context.Context, sourceID string) (domain.FeedHealth, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.healths[sourceID]
	return h, ok
}

// UpdateHealth stores the health record for a source.
func (m *Memory) UpdateHealth(_ context.Context, sourceID string, health domain.FeedHealth) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	health.SourceID = sourceID
	m.healths[sourceID] = health
	return nil
}

// All returns a copy of every stored health record, for the ops listener.
func (m *Memory) All(_ context.Context) ([]domain.FeedHealth, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.FeedHealth, 0, len(m.healths))
	for _, h := range m.healths {
		out = append(out, h)
	}
	return out, nil
}
