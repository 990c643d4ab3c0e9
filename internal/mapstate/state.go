// Package mapstate encodes the visible map viewport to and from the
// #map=<zoom>/<lat>/<lon>&layers=<code> URL fragment and the /go/ short link,
// and resolves the initial viewport of a new view.
package mapstate

import (
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/joeblew999/plat-map/internal/format"
)

const (
	// MaxZoom is the highest zoom level accepted in a map state.
	MaxZoom = 19
	// MaxLat is the latitude limit of the Web Mercator projection used by the map.
	MaxLat = 85
)

// State is the visible map viewport plus its active layers code.
type State struct {
	Lon    float64 `json:"lon" minimum:"-180" maximum:"180" doc:"Center longitude" example:"-0.09"`
	Lat    float64 `json:"lat" minimum:"-85" maximum:"85" doc:"Center latitude" example:"51.505"`
	Zoom   float64 `json:"zoom" minimum:"0" maximum:"19" doc:"Zoom level" example:"15"`
	Layers string  `json:"layers,omitempty" doc:"Layers code" example:"N"`
}

// Default is the world view used when nothing better is known.
var Default = State{Lon: 0, Lat: 30, Zoom: 3}

// NormalizeLon wraps lon into [-180, 180). In-range values are returned
// unchanged.
func NormalizeLon(lon float64) float64 {
	if lon >= -180 && lon < 180 {
		return lon
	}
	l := math.Mod(lon+180, 360)
	if l < 0 {
		l += 360
	}
	return l - 180
}

// ValidLon reports whether lon is a usable longitude.
func ValidLon(lon float64) bool {
	return !math.IsNaN(lon) && lon >= -180 && lon <= 180
}

// ValidLat reports whether lat is inside the projection's latitude range.
func ValidLat(lat float64) bool {
	return !math.IsNaN(lat) && lat >= -MaxLat && lat <= MaxLat
}

// ValidZoom reports whether zoom is a finite zoom level in [0, MaxZoom].
func ValidZoom(zoom float64) bool {
	return !math.IsNaN(zoom) && zoom >= 0 && zoom <= MaxZoom
}

// Valid reports whether all of s's coordinates pass their predicates.
func (s State) Valid() bool {
	return ValidLon(s.Lon) && ValidLat(s.Lat) && ValidZoom(s.Zoom)
}

// Normalized returns s with its longitude wrapped into [-180, 180).
func (s State) Normalized() State {
	s.Lon = NormalizeLon(s.Lon)
	return s
}

// Encode renders s as a URL fragment, e.g. "#map=15/51.505/-0.09&layers=N".
// Coordinates are written with the precision visible at s.Zoom.
func Encode(s State) string {
	lon, lat := format.LonLat(NormalizeLon(s.Lon), s.Lat, s.Zoom)

	var b strings.Builder
	b.WriteString("#map=")
	b.WriteString(format.Zoom(s.Zoom))
	b.WriteByte('/')
	b.WriteString(lat)
	b.WriteByte('/')
	b.WriteString(lon)
	if s.Layers != "" {
		b.WriteString("&layers=")
		b.WriteString(s.Layers)
	}
	return b.String()
}

// Decode parses a URL fragment produced by Encode. Anything before the '#'
// is ignored. It reports false for a missing or malformed map value.
func Decode(hash string) (State, bool) {
	i := strings.IndexByte(hash, '#')
	if i < 0 {
		return State{}, false
	}

	q, err := url.ParseQuery(hash[i+1:])
	if err != nil || !q.Has("map") {
		return State{}, false
	}

	parts := strings.Split(q.Get("map"), "/")
	if len(parts) != 3 {
		return State{}, false
	}

	zoom, ok := parseFloat(parts[0])
	if !ok || !ValidZoom(zoom) {
		return State{}, false
	}
	lat, ok := parseFloat(parts[1])
	if !ok || !ValidLat(lat) {
		return State{}, false
	}
	lon, ok := parseFloat(parts[2])
	if !ok || !ValidLon(lon) {
		return State{}, false
	}

	return State{Lon: lon, Lat: lat, Zoom: zoom, Layers: q.Get("layers")}, true
}

func parseFloat(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
