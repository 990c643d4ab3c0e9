package mapview

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Manager owns the live views of the service.
type Manager struct {
	deps Deps

	mu    sync.RWMutex
	views map[string]*View
}

// NewManager returns an empty manager whose views share deps.
func NewManager(deps Deps) *Manager {
	return &Manager{deps: deps, views: make(map[string]*View)}
}

// Create builds a view with a fresh id.
func (m *Manager) Create(ctx context.Context, cfg Config) (*View, error) {
	cfg.ID = uuid.NewString()
	v, err := New(ctx, cfg, m.deps)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.views[v.ID()] = v
	m.mu.Unlock()
	return v, nil
}

// Get returns a live view.
func (m *Manager) Get(id string) (*View, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.views[id]
	return v, ok
}

// Len returns the number of live views.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.views)
}

// Close closes and forgets one view.
func (m *Manager) Close(id string) bool {
	m.mu.Lock()
	v, ok := m.views[id]
	delete(m.views, id)
	m.mu.Unlock()

	if ok {
		v.Close()
	}
	return ok
}

// CloseAll closes every view.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	views := m.views
	m.views = make(map[string]*View)
	m.mu.Unlock()

	for _, v := range views {
		v.Close()
	}
}
