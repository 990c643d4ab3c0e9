package mapstate

import (
	_ "embed"
	"net/url"
	"strings"
	"sync"

	"github.com/paulmach/orb"
	"gopkg.in/yaml.v3"
)

//go:embed timezones.yaml
var timezonesYAML []byte

var (
	timezoneBounds     map[string]orb.Bound
	timezoneBoundsOnce sync.Once
)

// TimezoneBound returns the bounding box of the country a timezone belongs to.
func TimezoneBound(tz string) (orb.Bound, bool) {
	timezoneBoundsOnce.Do(func() {
		var raw map[string][4]float64
		if err := yaml.Unmarshal(timezonesYAML, &raw); err != nil {
			panic(err)
		}
		timezoneBounds = make(map[string]orb.Bound, len(raw))
		for tz, b := range raw {
			timezoneBounds[tz] = orb.Bound{
				Min: orb.Point{b[0], b[1]},
				Max: orb.Point{b[2], b[3]},
			}
		}
	})
	b, ok := timezoneBounds[tz]
	return b, ok
}

// Source names the step of the initial-state chain that produced a state.
type Source string

const (
	SourceHash     Source = "hash"
	SourceBBox     Source = "bbox"
	SourceBounds   Source = "bounds"
	SourceMarker   Source = "marker"
	SourceLonLat   Source = "lonlat"
	SourceStored   Source = "stored"
	SourceHome     Source = "home"
	SourceTimezone Source = "timezone"
	SourceDefault  Source = "default"
)

// HomeZoom is the zoom used when starting at the user's home location.
const HomeZoom = 15

// PointZoom is the zoom used for lon/lat or marker parameters without a zoom.
const PointZoom = 12

// Inputs are everything the initial state can be derived from.
type Inputs struct {
	Hash     string     // URL fragment, with or without the leading '#'
	Query    url.Values // page query parameters
	Stored   *State     // last state persisted for this profile
	Home     *orb.Point // configured home location
	Timezone string     // device IANA timezone
	Fitter   Fitter     // live view, may be nil
}

// Resolved is the outcome of Resolve.
type Resolved struct {
	State  State      `json:"state"`
	Marker *orb.Point `json:"marker,omitempty"`
	Source Source     `json:"source"`
}

// Resolve walks the fallback chain: hash, bbox, min/max bounds, marker,
// lon/lat, stored state, home, timezone country, world default. Each step
// is tried only when the previous ones yield nothing valid.
func Resolve(in Inputs) Resolved {
	q := in.Query
	if q == nil {
		q = url.Values{}
	}
	layers := q.Get("layers")

	hash := in.Hash
	if hash != "" && !strings.HasPrefix(hash, "#") {
		hash = "#" + hash
	}
	if s, ok := Decode(hash); ok {
		return Resolved{State: s, Source: SourceHash}
	}

	if b, ok := parseBBox(q.Get("bbox")); ok {
		return fitted(b, in.Fitter, layers, SourceBBox)
	}

	if b, ok := parseBoundParams(q); ok {
		return fitted(b, in.Fitter, layers, SourceBounds)
	}

	if s, ok := pointState(q, "mlon", "mlat", layers); ok {
		marker := orb.Point{s.Lon, s.Lat}
		return Resolved{State: s, Marker: &marker, Source: SourceMarker}
	}

	if s, ok := pointState(q, "lon", "lat", layers); ok {
		return Resolved{State: s, Source: SourceLonLat}
	}

	if in.Stored != nil && in.Stored.Valid() {
		return Resolved{State: *in.Stored, Source: SourceStored}
	}

	if in.Home != nil && ValidLon(in.Home.Lon()) && ValidLat(in.Home.Lat()) {
		s := State{Lon: in.Home.Lon(), Lat: in.Home.Lat(), Zoom: HomeZoom, Layers: layers}
		return Resolved{State: s, Source: SourceHome}
	}

	if b, ok := TimezoneBound(in.Timezone); ok {
		return fitted(b, in.Fitter, layers, SourceTimezone)
	}

	s := Default
	s.Layers = layers
	return Resolved{State: s, Source: SourceDefault}
}

func fitted(b orb.Bound, fitter Fitter, layers string, src Source) Resolved {
	s := BoundsToLonLatZoom(b, fitter)
	s.Layers = layers
	return Resolved{State: s, Source: src}
}

// parseBBox parses "minlon,minlat,maxlon,maxlat".
func parseBBox(s string) (orb.Bound, bool) {
	if s == "" {
		return orb.Bound{}, false
	}
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return orb.Bound{}, false
	}
	var v [4]float64
	for i, p := range parts {
		f, ok := parseFloat(p)
		if !ok {
			return orb.Bound{}, false
		}
		v[i] = f
	}
	return validBound(v[0], v[1], v[2], v[3])
}

func parseBoundParams(q url.Values) (orb.Bound, bool) {
	var v [4]float64
	for i, key := range []string{"minlon", "minlat", "maxlon", "maxlat"} {
		f, ok := parseFloat(q.Get(key))
		if !ok {
			return orb.Bound{}, false
		}
		v[i] = f
	}
	return validBound(v[0], v[1], v[2], v[3])
}

func validBound(minLon, minLat, maxLon, maxLat float64) (orb.Bound, bool) {
	if !ValidLon(minLon) || !ValidLon(maxLon) || !ValidLat(minLat) || !ValidLat(maxLat) || minLat > maxLat {
		return orb.Bound{}, false
	}
	return orb.Bound{
		Min: orb.Point{minLon, minLat},
		Max: orb.Point{maxLon, maxLat},
	}, true
}

func pointState(q url.Values, lonKey, latKey, layers string) (State, bool) {
	lon, ok := parseFloat(q.Get(lonKey))
	if !ok || !ValidLon(lon) {
		return State{}, false
	}
	lat, ok := parseFloat(q.Get(latKey))
	if !ok || !ValidLat(lat) {
		return State{}, false
	}

	zoom := float64(PointZoom)
	if q.Has("zoom") {
		z, ok := parseFloat(q.Get("zoom"))
		if !ok || !ValidZoom(z) {
			return State{}, false
		}
		zoom = z
	}
	return State{Lon: lon, Lat: lat, Zoom: zoom, Layers: layers}, true
}
