// Package mapview is the server-side model of one browser map: its
// viewport, active layers, data overlays and persisted preferences.
package mapview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"sync"
	"time"

	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-map/internal/contextmenu"
	"github.com/joeblew999/plat-map/internal/feature"
	"github.com/joeblew999/plat-map/internal/layers"
	"github.com/joeblew999/plat-map/internal/mapstate"
	"github.com/joeblew999/plat-map/internal/overlay"
)

// Prefs persists per-profile view preferences.
type Prefs interface {
	LoadState(ctx context.Context, profile string) (*mapstate.State, error)
	SaveState(ctx context.Context, profile string, s mapstate.State) error
	LoadExportFormat(ctx context.Context, profile string) (string, error)
	SaveExportFormat(ctx context.Context, profile, format string) error
}

// Config describes a new view.
type Config struct {
	ID       string
	Profile  string
	Viewport mapstate.Viewport

	// Initial state inputs.
	Hash     string
	Query    url.Values
	Home     *orb.Point
	Timezone string

	// Debounce delays overlay updates after moves. Zero updates at once.
	Debounce time.Duration
	// ExportURL is the image export service, see ExportImageURL.
	ExportURL string
}

// Deps are the collaborators shared by all views.
type Deps struct {
	Registry *layers.Registry
	// Sources maps overlay layer ids ("data", "notes") to their data source.
	Sources map[string]overlay.Source
	Prefs   Prefs
	Logger  *slog.Logger
}

// OverlayKinds maps overlay layer ids to their synchronizer kind.
var OverlayKinds = map[string]overlay.Kind{
	"data":  overlay.MapData,
	"notes": overlay.Notes,
}

// View is one map instance.
type View struct {
	id       string
	cfg      Config
	prefs    Prefs
	logger   *slog.Logger
	bus      *EventBus
	set      *layers.Set
	syncs    map[string]*overlay.Synchronizer
	debounce *overlay.Debouncer

	// mu guards the fields below. Layer callbacks run with mu held.
	mu       sync.Mutex
	state    mapstate.State
	viewport mapstate.Viewport
	marker   *orb.Point
	source   mapstate.Source
	closed   bool
}

// New builds a view and resolves its initial state. Persisted state is
// best effort: a failing Prefs is logged and ignored.
func New(ctx context.Context, cfg Config, deps Deps) (*View, error) {
	if deps.Registry == nil {
		return nil, errors.New("mapview: registry is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Viewport.Width <= 0 || cfg.Viewport.Height <= 0 {
		cfg.Viewport = mapstate.DefaultViewport
	}

	v := &View{
		id:       cfg.ID,
		cfg:      cfg,
		prefs:    deps.Prefs,
		logger:   logger.With("view", cfg.ID),
		bus:      NewEventBus(),
		syncs:    make(map[string]*overlay.Synchronizer),
		viewport: cfg.Viewport,
	}
	if cfg.Debounce > 0 {
		v.debounce = overlay.NewDebouncer(cfg.Debounce)
	}

	sink := busSink{bus: v.bus}
	for id, src := range deps.Sources {
		kind, ok := OverlayKinds[id]
		if !ok {
			return nil, fmt.Errorf("mapview: no overlay kind for layer %q", id)
		}
		if _, ok := deps.Registry.Get(id); !ok {
			return nil, fmt.Errorf("mapview: overlay layer %q is not registered", id)
		}
		v.syncs[id] = overlay.New(kind, src, sink, v.logger)
	}

	v.set = layers.NewSet(deps.Registry, v.logger)
	v.set.OnAdd = func(l layers.LayerConfig) {
		if s, ok := v.syncs[l.ID]; ok {
			s.Enable(v.boundsLocked())
		}
	}
	v.set.OnRemove = func(l layers.LayerConfig) {
		if s, ok := v.syncs[l.ID]; ok {
			s.Disable()
		}
	}

	var stored *mapstate.State
	if v.prefs != nil {
		s, err := v.prefs.LoadState(ctx, cfg.Profile)
		if err != nil {
			v.logger.Warn("failed to load stored map state", "profile", cfg.Profile, "error", err)
		}
		stored = s
	}

	resolved := mapstate.Resolve(mapstate.Inputs{
		Hash:     cfg.Hash,
		Query:    cfg.Query,
		Stored:   stored,
		Home:     cfg.Home,
		Timezone: cfg.Timezone,
		Fitter:   v,
	})
	v.logger.Debug("resolved initial map state", "source", resolved.Source, "state", mapstate.Encode(resolved.State))

	v.mu.Lock()
	defer v.mu.Unlock()
	v.state = resolved.State.Normalized()
	v.marker = resolved.Marker
	v.source = resolved.Source
	v.applyLayersLocked(v.state.Layers)
	v.changedLocked(ctx)
	return v, nil
}

// ID returns the view id.
func (v *View) ID() string { return v.id }

// Bus returns the view's event bus.
func (v *View) Bus() *EventBus { return v.bus }

// Layers returns the view's active layer set.
func (v *View) Layers() *layers.Set { return v.set }

// FitBounds implements mapstate.Fitter for the view's viewport size.
func (v *View) FitBounds(b orb.Bound) mapstate.State {
	return mapstate.FitBound(b, v.cfg.Viewport)
}

// State returns the current map state.
func (v *View) State() mapstate.State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Source returns which initial-state input the view started from.
func (v *View) Source() mapstate.Source {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.source
}

// Marker returns the marker requested by the initial URL, if any.
func (v *View) Marker() *orb.Point {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.marker
}

// Viewport returns the container size.
func (v *View) Viewport() mapstate.Viewport {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.viewport
}

// Hash returns the URL fragment of the current state.
func (v *View) Hash() string {
	return mapstate.Encode(v.State())
}

// ShortLink returns the /go/ path of the current state.
func (v *View) ShortLink(marker *orb.Point) string {
	return mapstate.ShortLinkPath(v.State(), marker)
}

// Bounds returns the visible box.
func (v *View) Bounds() orb.Bound {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.boundsLocked()
}

func (v *View) boundsLocked() orb.Bound {
	return mapstate.ViewBound(v.state, v.viewport)
}

// Move recenters the map. Longitudes outside [-180, 180) are wrapped.
func (v *View) Move(ctx context.Context, lon, lat, zoom float64) error {
	if math.IsNaN(lon) || math.IsInf(lon, 0) || !mapstate.ValidLat(lat) || !mapstate.ValidZoom(zoom) {
		return fmt.Errorf("invalid map position %v/%v/%v", zoom, lat, lon)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return ErrClosed
	}
	v.state.Lon = mapstate.NormalizeLon(lon)
	v.state.Lat = lat
	v.state.Zoom = zoom
	v.changedLocked(ctx)
	v.updateOverlaysLocked()
	return nil
}

// Resize changes the container size.
func (v *View) Resize(ctx context.Context, vp mapstate.Viewport) error {
	if vp.Width <= 0 || vp.Height <= 0 {
		return fmt.Errorf("invalid viewport %dx%d", vp.Width, vp.Height)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return ErrClosed
	}
	v.viewport = vp
	v.updateOverlaysLocked()
	return nil
}

// ApplyLayers activates the layers named by code. An invalid code falls
// back to the default layer and is not an error for the caller.
func (v *View) ApplyLayers(ctx context.Context, code string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return ErrClosed
	}
	v.applyLayersLocked(code)
	v.changedLocked(ctx)
	return nil
}

// ToggleLayer flips an overlay or switches the base layer.
func (v *View) ToggleLayer(ctx context.Context, id string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return ErrClosed
	}
	if err := v.set.Toggle(id); err != nil {
		return err
	}
	v.state.Layers = v.set.Code()
	v.changedLocked(ctx)
	return nil
}

func (v *View) applyLayersLocked(code string) {
	if err := v.set.Apply(code); err != nil {
		v.logger.Warn("layers code replaced by default", "code", code, "error", err)
	}
	v.state.Layers = v.set.Code()
}

// LoadAnyway renders an overlay's held-back data.
func (v *View) LoadAnyway(id string) error {
	s, ok := v.syncs[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownOverlay, id)
	}
	s.LoadAnyway()
	return nil
}

// Overlay returns the status of one overlay.
func (v *View) Overlay(id string) (overlay.Info, bool) {
	s, ok := v.syncs[id]
	if !ok {
		return overlay.Info{}, false
	}
	return s.Info(), true
}

// Features returns the features an overlay currently renders.
func (v *View) Features(id string) ([]feature.Feature, error) {
	s, ok := v.syncs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownOverlay, id)
	}
	return s.Features(), nil
}

// Overlays returns the status of every overlay in registry order.
func (v *View) Overlays() []overlay.Info {
	var infos []overlay.Info
	for _, l := range v.set.Registry().List() {
		if s, ok := v.syncs[l.ID]; ok {
			infos = append(infos, s.Info())
		}
	}
	return infos
}

// ContextMenu opens the context menu for a click at container pixel x, y
// and publishes it to the event stream.
func (v *View) ContextMenu(x, y float64, popup contextmenu.Size) contextmenu.Menu {
	v.mu.Lock()
	s, vp := v.state, v.viewport
	v.mu.Unlock()

	if popup.Width <= 0 || popup.Height <= 0 {
		popup = contextmenu.DefaultPopupSize
	}
	p := mapstate.PixelToLonLat(s, vp, x, y)
	container := contextmenu.Size{Width: float64(vp.Width), Height: float64(vp.Height)}
	m := contextmenu.Open(contextmenu.Point{X: x, Y: y}, container, popup, mapstate.NormalizeLon(p.Lon()), p.Lat(), s.Zoom)
	v.bus.Publish(Event{Kind: EventMenu, Menu: &m})
	return m
}

// Wait blocks until no overlay fetch is running.
func (v *View) Wait() {
	for _, s := range v.syncs {
		s.Wait()
	}
}

// Close disables every overlay and ends the event stream.
func (v *View) Close() {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.closed = true
	if v.debounce != nil {
		v.debounce.Stop()
	}
	for _, s := range v.syncs {
		s.Disable()
	}
	v.mu.Unlock()

	v.Wait()
	v.bus.Close()
}

// changedLocked persists the state and publishes it.
func (v *View) changedLocked(ctx context.Context) {
	if v.prefs != nil {
		if err := v.prefs.SaveState(ctx, v.cfg.Profile, v.state); err != nil {
			v.logger.Warn("failed to save map state", "profile", v.cfg.Profile, "error", err)
		}
	}
	v.bus.Publish(Event{
		Kind:      EventState,
		State:     v.state,
		Hash:      mapstate.Encode(v.state),
		ShortLink: mapstate.ShortLinkPath(v.state, nil),
	})
}

func (v *View) updateOverlaysLocked() {
	if len(v.syncs) == 0 {
		return
	}
	if v.debounce == nil {
		bounds := v.boundsLocked()
		for _, s := range v.syncs {
			s.Update(bounds)
		}
		return
	}
	v.debounce.Do(func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		if v.closed {
			return
		}
		bounds := v.boundsLocked()
		for _, s := range v.syncs {
			s.Update(bounds)
		}
	})
}

var (
	ErrClosed         = errors.New("map view is closed")
	ErrUnknownOverlay = errors.New("unknown overlay")
)
