package tablet

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrNotFound is returned when a tablet id is unknown to the manager.
var ErrNotFound = errors.New("tablet not found")

// Manager is the registry of tablets hosted by this node.
type Manager struct {
	mu      sync.RWMutex
	tablets map[int64]*Tablet
}

// NewManager creates an empty registry.
func NewManager() *Manager {
	return &Manager{tablets: make(map[int64]*Tablet)}
}

// Add registers a tablet, replacing any previous registration of the same id.
func (m *Manager) Add(t *Tablet) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tablets[t.ID()] = t
}

// Drop removes a tablet from the registry.
func (m *Manager) Drop(tabletID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tablets, tabletID)
}

// Get returns the tablet with the given id or ErrNotFound.
func (m *Manager) Get(tabletID int64) (*Tablet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tablets[tabletID]
	if !ok {
		return nil, fmt.Errorf("tablet_id=%d: %w", tabletID, ErrNotFound)
	}
	return t, nil
}

// GetAll returns tablets matching pred, ordered by tablet id. A nil pred
// matches everything.
func (m *Manager) GetAll(pred func(*Tablet) bool) []*Tablet {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Tablet, 0, len(m.tablets))
	for _, t := range m.tablets {
		if pred == nil || pred(t) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Len returns the number of registered tablets.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tablets)
}
