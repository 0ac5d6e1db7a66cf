package persist

import (
	"context"
	"sync"

	state "github.com/goliatone/go-state"
)

var _ state.Adapter = (*Memory)(nil)

// Memory is a minimal in-memory adapter intended for tests and
// examples. Snapshots are cloned on the way in and out so callers never
// share references with the stored copy.
type Memory struct {
	mu       sync.RWMutex
	snapshot map[string]any
	meta     Meta
	saves    int
}

// NewMemory constructs an empty adapter.
func NewMemory() *Memory {
	return &Memory{}
}

// Load returns the stored snapshot, or (nil, nil) when nothing has been
// saved yet.
func (m *Memory) Load(_ context.Context) (map[string]any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.snapshot == nil {
		return nil, nil
	}
	return state.CloneTree(m.snapshot), nil
}

// Save stores a clone of snapshot and stamps fresh metadata.
func (m *Memory) Save(_ context.Context, snapshot map[string]any) error {
	m.mu.Lock()
	m.snapshot = state.CloneTree(snapshot)
	m.meta = newMeta()
	m.saves++
	m.mu.Unlock()
	return nil
}

// Meta returns provenance for the most recent save.
func (m *Memory) Meta() Meta {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.meta
}

// Saves reports how many times Save has been called.
func (m *Memory) Saves() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}
