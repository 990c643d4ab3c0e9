// Package overlay keeps a viewport-driven data overlay in sync with the map.
//
// A Synchronizer fetches features for a padded box around the viewport and
// skips fetching while the last fetched box still covers the viewport. Only
// one fetch per overlay is in flight; every update is a new generation that
// cancels its predecessor, and results of older generations are dropped.
package overlay

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"

	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-map/internal/feature"
)

// Kind describes one overlay type.
type Kind struct {
	Name string
	// MaxArea is the largest padded box, in square degrees, that is fetched.
	MaxArea float64
	// Padding grows each side of the viewport by this fraction of its span.
	Padding float64
}

var (
	MapData = Kind{Name: "data", MaxArea: 0.25, Padding: 0.3}
	Notes   = Kind{Name: "notes", MaxArea: 25, Padding: 0.3}
)

// Source fetches the features inside a box.
type Source interface {
	Fetch(ctx context.Context, b orb.Bound) (feature.Collection, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, b orb.Bound) (feature.Collection, error)

func (f SourceFunc) Fetch(ctx context.Context, b orb.Bound) (feature.Collection, error) {
	return f(ctx, b)
}

// Sink receives what the overlay should display. Methods are called with
// the synchronizer locked and must not call back into it.
type Sink interface {
	Render(kind Kind, features []feature.Feature)
	Clear(kind Kind)
	Status(info Info)
}

// Status is the state of a synchronizer.
type Status string

const (
	StatusDisabled     Status = "disabled"
	StatusIdle         Status = "idle"
	StatusFetching     Status = "fetching"
	StatusAreaTooLarge Status = "area-too-large"
	StatusTooMuchData  Status = "too-much-data"
	StatusError        Status = "error"
)

// Info is a snapshot published on every status change.
type Info struct {
	Overlay  string     `json:"overlay" doc:"Overlay name" example:"data"`
	Status   Status     `json:"status" enum:"disabled,idle,fetching,area-too-large,too-much-data,error" doc:"Overlay status"`
	Features int        `json:"features" doc:"Number of rendered features"`
	Bound    *orb.Bound `json:"-"`
	Error    string     `json:"error,omitempty" doc:"Last fetch error"`
}

// Area returns the plain square-degree area of b.
func Area(b orb.Bound) float64 {
	return (b.Max.Lon() - b.Min.Lon()) * (b.Max.Lat() - b.Min.Lat())
}

// Pad grows b by ratio of its span on every side, clamped to the world.
func Pad(b orb.Bound, ratio float64) orb.Bound {
	dLon := (b.Max.Lon() - b.Min.Lon()) * ratio
	dLat := (b.Max.Lat() - b.Min.Lat()) * ratio
	return orb.Bound{
		Min: orb.Point{math.Max(b.Min.Lon()-dLon, -180), math.Max(b.Min.Lat()-dLat, -90)},
		Max: orb.Point{math.Min(b.Max.Lon()+dLon, 180), math.Min(b.Max.Lat()+dLat, 90)},
	}
}

// ClampWorld clips b to the world box. A viewport crossing the antimeridian
// keeps its part inside [-180, 180].
func ClampWorld(b orb.Bound) orb.Bound {
	clamp := func(v, lo, hi float64) float64 { return math.Min(math.Max(v, lo), hi) }
	return orb.Bound{
		Min: orb.Point{clamp(b.Min.Lon(), -180, 180), clamp(b.Min.Lat(), -90, 90)},
		Max: orb.Point{clamp(b.Max.Lon(), -180, 180), clamp(b.Max.Lat(), -90, 90)},
	}
}

// Synchronizer drives one overlay.
type Synchronizer struct {
	kind   Kind
	src    Source
	sink   Sink
	logger *slog.Logger

	mu       sync.Mutex
	enabled  bool
	status   Status
	gen      uint64
	cancel   context.CancelFunc
	fetched  *orb.Bound
	data     *feature.Collection
	rendered []feature.Feature
	override bool
	lastErr  string

	wg sync.WaitGroup
}

// New returns a disabled synchronizer.
func New(kind Kind, src Source, sink Sink, logger *slog.Logger) *Synchronizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synchronizer{
		kind:   kind,
		src:    src,
		sink:   sink,
		logger: logger.With("overlay", kind.Name),
		status: StatusDisabled,
	}
}

// Kind returns the overlay kind.
func (s *Synchronizer) Kind() Kind { return s.kind }

// Enable starts syncing and fetches for viewport. It is a no-op when
// already enabled.
func (s *Synchronizer) Enable(viewport orb.Bound) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.enabled {
		return
	}
	s.enabled = true
	s.setStatus(StatusIdle)
	s.update(viewport)
}

// Disable cancels any fetch, clears the overlay and forgets fetched data.
// It is a no-op when already disabled.
func (s *Synchronizer) Disable() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.enabled {
		return
	}
	s.enabled = false
	s.abort()
	s.fetched = nil
	s.data = nil
	s.override = false
	s.lastErr = ""
	s.clear()
	s.setStatus(StatusDisabled)
}

// Update reacts to a settled viewport change.
func (s *Synchronizer) Update(viewport orb.Bound) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.update(viewport)
}

func (s *Synchronizer) update(viewport orb.Bound) {
	if !s.enabled {
		return
	}
	// Fetched boxes are clamped to the world, so the viewport must be too.
	viewport = ClampWorld(viewport)
	if s.fetched != nil && s.status != StatusTooMuchData && s.fetched.Contains(viewport.Min) && s.fetched.Contains(viewport.Max) {
		return
	}

	s.abort()
	s.fetched = nil

	b := Pad(viewport, s.kind.Padding)
	if Area(b) > s.kind.MaxArea {
		s.data = nil
		s.lastErr = ""
		s.clear()
		s.setStatus(StatusAreaTooLarge)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	gen := s.gen
	s.lastErr = ""
	s.setStatus(StatusFetching)

	s.wg.Add(1)
	go s.fetch(ctx, gen, b)
}

func (s *Synchronizer) fetch(ctx context.Context, gen uint64, b orb.Bound) {
	defer s.wg.Done()

	res, err := s.src.Fetch(ctx, b)

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen {
		return
	}
	s.cancel()
	s.cancel = nil

	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		s.logger.Error("overlay fetch failed", "bbox", b, "error", err)
		s.data = nil
		s.lastErr = err.Error()
		s.clear()
		s.setStatus(StatusError)
		return
	}

	s.fetched = &b
	s.data = &res
	if res.TooMuchData && !s.override {
		s.clear()
		s.setStatus(StatusTooMuchData)
		return
	}
	s.render(res.Features)
}

// LoadAnyway renders data held back by the too-much-data gate without
// refetching, and keeps rendering large results until disabled.
func (s *Synchronizer) LoadAnyway() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.enabled {
		return
	}
	s.override = true
	if s.status == StatusTooMuchData && s.data != nil {
		s.render(s.data.Features)
	}
}

// Status returns the current status.
func (s *Synchronizer) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Info returns the current snapshot.
func (s *Synchronizer) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info()
}

// Features returns the rendered features.
func (s *Synchronizer) Features() []feature.Feature {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]feature.Feature(nil), s.rendered...)
}

// Wait blocks until no fetch goroutine is running.
func (s *Synchronizer) Wait() {
	s.wg.Wait()
}

// abort invalidates the current generation.
func (s *Synchronizer) abort() {
	s.gen++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *Synchronizer) render(features []feature.Feature) {
	s.rendered = features
	s.sink.Render(s.kind, features)
	s.setStatus(StatusIdle)
}

func (s *Synchronizer) clear() {
	s.rendered = nil
	s.sink.Clear(s.kind)
}

func (s *Synchronizer) setStatus(st Status) {
	s.status = st
	s.sink.Status(s.info())
}

func (s *Synchronizer) info() Info {
	return Info{
		Overlay:  s.kind.Name,
		Status:   s.status,
		Features: len(s.rendered),
		Bound:    s.fetched,
		Error:    s.lastErr,
	}
}
