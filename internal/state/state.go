// Package state archives analysis runs.
package state

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Manager tracks the run in progress and archives it when it ends.
type Manager struct {
	mu      sync.Mutex
	store   Store
	current *RunRecord
}

// NewManager creates a new state manager. A nil store keeps runs in
// memory.
func NewManager(store Store) *Manager {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Manager{store: store}
}

// Start begins tracking a new run.
func (m *Manager) Start(id, target, mode string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = &RunRecord{
		ID:        id,
		Target:    target,
		Mode:      mode,
		StartedAt: time.Now(),
	}
}

// Current returns a copy of the run in progress.
func (m *Manager) Current() (RunRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return RunRecord{}, false
	}
	return *m.current, true
}

// Update applies fn to the run's counters.
func (m *Manager) Update(fn func(*RunStats)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil {
		fn(&m.current.Stats)
	}
}

// Finish closes the run and saves it with doc attached. runErr, if set,
// is recorded on the run.
func (m *Manager) Finish(doc any, discoveryRate string, runErr error) (*RunRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return nil, fmt.Errorf("no run in progress")
	}

	run := m.current
	run.FinishedAt = time.Now()
	run.DiscoveryRate = discoveryRate
	if runErr != nil {
		run.Error = runErr.Error()
	}
	if doc != nil {
		data, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal document: %w", err)
		}
		run.Document = data
	}

	if err := m.store.Save(run); err != nil {
		return nil, fmt.Errorf("failed to archive run: %w", err)
	}
	m.current = nil
	return run, nil
}

// Runs lists archived runs, newest first.
func (m *Manager) Runs() ([]RunRecord, error) {
	return m.store.List()
}

// Close closes the underlying store.
func (m *Manager) Close() error {
	return m.store.Close()
}
