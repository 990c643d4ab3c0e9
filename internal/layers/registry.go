// Package layers holds the static map layer definitions and the per-view
// active layer set derived from the #map fragment's layers code.
package layers

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed layers.yaml
var defaultLayersYAML []byte

// TileSource describes where a layer's raster or vector tiles come from.
type TileSource struct {
	URL         string `yaml:"url" json:"url" doc:"Tile URL template" example:"https://tile.openstreetmap.org/{z}/{x}/{y}.png"`
	Attribution string `yaml:"attribution,omitempty" json:"attribution,omitempty" doc:"Attribution HTML"`
	MaxZoom     int    `yaml:"maxZoom,omitempty" json:"maxZoom,omitempty" minimum:"0" maximum:"24" doc:"Maximum native zoom"`
}

// LayerConfig is an immutable map layer definition.
type LayerConfig struct {
	ID        string      `yaml:"id" json:"id" doc:"Unique layer identifier" example:"cyclosm"`
	Name      string      `yaml:"name" json:"name" doc:"Display name" example:"CyclOSM"`
	Base      bool        `yaml:"base,omitempty" json:"base" doc:"Whether the layer is a mutually exclusive base layer"`
	Default   bool        `yaml:"default,omitempty" json:"default,omitempty" doc:"Whether this is the fallback base layer"`
	Code      string      `yaml:"code,omitempty" json:"code,omitempty" maxLength:"1" doc:"Single-character layers code; empty when not user-toggleable" example:"Y"`
	LegacyIDs []string    `yaml:"legacyIds,omitempty" json:"legacyIds,omitempty" doc:"Former identifiers still accepted"`
	Priority  int         `yaml:"priority" json:"priority" doc:"Draw order; higher is drawn above"`
	Tiles     *TileSource `yaml:"tiles,omitempty" json:"tiles,omitempty" doc:"Tile source, absent for data overlays"`
}

// Registry is the set of known layers. It is safe for concurrent use.
type Registry struct {
	layers    []LayerConfig
	byID      map[string]int
	defaultID string

	once   sync.Once
	lookup map[string]string
}

// NewRegistry validates the layer definitions and returns a registry
// ordered by priority.
func NewRegistry(configs []LayerConfig) (*Registry, error) {
	r := &Registry{
		layers: make([]LayerConfig, len(configs)),
		byID:   make(map[string]int, len(configs)),
	}
	copy(r.layers, configs)
	sort.SliceStable(r.layers, func(i, j int) bool {
		return r.layers[i].Priority < r.layers[j].Priority
	})

	codes := make(map[string]string)
	for i, l := range r.layers {
		if l.ID == "" {
			return nil, fmt.Errorf("layer %d has no id", i)
		}
		if _, exists := r.byID[l.ID]; exists {
			return nil, fmt.Errorf("layer with ID %q already exists", l.ID)
		}
		r.byID[l.ID] = i

		if l.Code != "" {
			if len([]rune(l.Code)) != 1 {
				return nil, fmt.Errorf("layer %q: code %q must be a single character", l.ID, l.Code)
			}
			if other, exists := codes[l.Code]; exists {
				return nil, fmt.Errorf("layers %q and %q share code %q", other, l.ID, l.Code)
			}
			codes[l.Code] = l.ID
		}

		if l.Default {
			if !l.Base {
				return nil, fmt.Errorf("default layer %q is not a base layer", l.ID)
			}
			if r.defaultID != "" {
				return nil, fmt.Errorf("layers %q and %q are both marked default", r.defaultID, l.ID)
			}
			r.defaultID = l.ID
		}
	}

	if r.defaultID == "" {
		return nil, errors.New("no default base layer")
	}
	return r, nil
}

// Load reads layer definitions from <dataDir>/layers.yaml, falling back to
// the embedded definitions when the file does not exist.
func Load(dataDir string) ([]LayerConfig, error) {
	data := defaultLayersYAML
	if dataDir != "" {
		b, err := os.ReadFile(filepath.Join(dataDir, "layers.yaml"))
		switch {
		case err == nil:
			data = b
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("reading layers: %w", err)
		}
	}

	var configs []LayerConfig
	if err := yaml.Unmarshal(data, &configs); err != nil {
		return nil, fmt.Errorf("parsing layers: %w", err)
	}
	return configs, nil
}

// Default returns the registry built from the embedded definitions.
func Default() *Registry {
	configs, err := Load("")
	if err != nil {
		panic(err)
	}
	r, err := NewRegistry(configs)
	if err != nil {
		panic(err)
	}
	return r
}

// List returns all layers in priority order.
func (r *Registry) List() []LayerConfig {
	out := make([]LayerConfig, len(r.layers))
	copy(out, r.layers)
	return out
}

// Get returns a layer by ID.
func (r *Registry) Get(id string) (LayerConfig, bool) {
	i, ok := r.byID[id]
	if !ok {
		return LayerConfig{}, false
	}
	return r.layers[i], true
}

// DefaultLayer returns the fallback base layer.
func (r *Registry) DefaultLayer() LayerConfig {
	l, _ := r.Get(r.defaultID)
	return l
}

// Resolve maps a layer id, layers code or legacy id to a layer id.
func (r *Registry) Resolve(codeOrID string) (string, bool) {
	r.once.Do(r.buildLookup)
	id, ok := r.lookup[codeOrID]
	return id, ok
}

func (r *Registry) buildLookup() {
	r.lookup = make(map[string]string, len(r.layers)*2)
	for _, l := range r.layers {
		for _, legacy := range l.LegacyIDs {
			r.lookup[legacy] = l.ID
		}
	}
	for _, l := range r.layers {
		if l.Code != "" {
			r.lookup[l.Code] = l.ID
		}
	}
	for _, l := range r.layers {
		r.lookup[l.ID] = l.ID
	}
}

// EncodeActive returns the sorted, deduplicated layers code for the given
// active layer ids. Layers without a code are skipped.
func (r *Registry) EncodeActive(ids []string) string {
	seen := make(map[string]bool, len(ids))
	codes := make([]string, 0, len(ids))
	for _, id := range ids {
		l, ok := r.Get(id)
		if !ok || l.Code == "" || seen[l.Code] {
			continue
		}
		seen[l.Code] = true
		codes = append(codes, l.Code)
	}
	sort.Strings(codes)
	return strings.Join(codes, "")
}
