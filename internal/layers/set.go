package layers

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrMultipleBaseLayers is returned by Set.Apply when a layers code names
// more than one base layer. The set falls back to the default layer.
var ErrMultipleBaseLayers = errors.New("layers code selects more than one base layer")

// Notify is called once per layer added to or removed from a Set.
// It runs with the set locked and must not call back into it.
type Notify func(LayerConfig)

// Set is the active layer selection of one map view.
type Set struct {
	reg    *Registry
	logger *slog.Logger

	mu     sync.Mutex
	active map[string]bool

	OnAdd    Notify
	OnRemove Notify
}

// NewSet creates an empty selection over reg.
func NewSet(reg *Registry, logger *slog.Logger) *Set {
	if logger == nil {
		logger = slog.Default()
	}
	return &Set{
		reg:    reg,
		logger: logger,
		active: make(map[string]bool),
	}
}

// Registry returns the registry backing the set.
func (s *Set) Registry() *Registry {
	return s.reg
}

// Apply makes the active selection match code. Unknown characters are
// ignored, a missing base layer is replaced by the default, and a code with
// several base layers is replaced by the default-only selection.
// Layers already in the desired state produce no notification.
func (s *Set) Apply(code string) error {
	desired := make(map[string]bool)
	var bases []string
	for _, c := range code {
		id, ok := s.reg.Resolve(string(c))
		if !ok {
			s.logger.Debug("unknown layer code", "code", string(c))
			continue
		}
		l, _ := s.reg.Get(id)
		if l.Base {
			if !desired[id] {
				bases = append(bases, id)
			}
		}
		desired[id] = true
	}

	var err error
	if len(bases) > 1 {
		err = fmt.Errorf("%w: %q", ErrMultipleBaseLayers, code)
		s.logger.Error("invalid layers code, using default layer", "code", code, "bases", bases)
		desired = map[string]bool{}
		bases = nil
	}
	if len(bases) == 0 {
		desired[s.reg.defaultID] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sync(desired)
	return err
}

// Toggle flips an overlay on or off, or switches the base layer to id.
func (s *Set) Toggle(id string) error {
	l, ok := s.reg.Get(id)
	if !ok {
		return fmt.Errorf("layer %q not found", id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	desired := make(map[string]bool, len(s.active)+1)
	for a := range s.active {
		desired[a] = true
	}

	if l.Base {
		for a := range desired {
			if other, _ := s.reg.Get(a); other.Base {
				delete(desired, a)
			}
		}
		desired[id] = true
	} else if desired[id] {
		delete(desired, id)
	} else {
		desired[id] = true
	}

	s.sync(desired)
	return nil
}

// sync diffs desired against the active set in registry order.
// Removals are notified before additions. Caller holds s.mu.
func (s *Set) sync(desired map[string]bool) {
	for _, l := range s.reg.layers {
		if s.active[l.ID] && !desired[l.ID] {
			delete(s.active, l.ID)
			if s.OnRemove != nil {
				s.OnRemove(l)
			}
		}
	}
	for _, l := range s.reg.layers {
		if desired[l.ID] && !s.active[l.ID] {
			s.active[l.ID] = true
			if s.OnAdd != nil {
				s.OnAdd(l)
			}
		}
	}
}

// Active returns the active layer ids in priority order.
func (s *Set) Active() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.active))
	for _, l := range s.reg.layers {
		if s.active[l.ID] {
			ids = append(ids, l.ID)
		}
	}
	return ids
}

// IsActive reports whether id is currently active.
func (s *Set) IsActive(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active[id]
}

// Base returns the active base layer.
func (s *Set) Base() LayerConfig {
	for _, id := range s.Active() {
		if l, _ := s.reg.Get(id); l.Base {
			return l
		}
	}
	return s.reg.DefaultLayer()
}

// Code returns the layers code of the current selection.
func (s *Set) Code() string {
	return s.reg.EncodeActive(s.Active())
}
