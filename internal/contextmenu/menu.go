// Package contextmenu builds the right-click menu of the map.
package contextmenu

import (
	"fmt"
	"net/url"

	"github.com/joeblew999/plat-map/internal/format"
	"github.com/joeblew999/plat-map/internal/mapstate"
)

// EdgeMargin is the distance from the container edge, in pixels, at which
// the popup opens toward the other side of the click.
const EdgeMargin = 30

// Point is a pixel position inside the map container.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Size is a pixel extent.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// DefaultPopupSize is assumed when the client does not report one.
var DefaultPopupSize = Size{Width: 220, Height: 260}

// Action is a menu entry.
type Action string

const (
	DirectionsFrom Action = "directions-from"
	DirectionsTo   Action = "directions-to"
	NewNote        Action = "new-note"
	SearchHere     Action = "search-here"
	QueryFeatures  Action = "query-features"
	Center         Action = "center"
	Measure        Action = "measure"
)

// Actions lists every entry in display order.
var Actions = []Action{DirectionsFrom, DirectionsTo, NewNote, SearchHere, QueryFeatures, Center, Measure}

// Menu is an open context menu.
type Menu struct {
	Lon  string `json:"lon" doc:"Longitude at the click, at zoom precision" example:"-0.09"`
	Lat  string `json:"lat" doc:"Latitude at the click, at zoom precision" example:"51.505"`
	Zoom string `json:"zoom" doc:"Current zoom" example:"15"`
	DMS  string `json:"dms" doc:"Degrees, minutes and seconds" example:"51°30′18″N 0°5′24″W"`

	// Left and Top place the popup's top-left corner in the container.
	Left  float64 `json:"left"`
	Top   float64 `json:"top"`
	FlipX bool    `json:"flipX" doc:"Popup opens to the left of the click"`
	FlipY bool    `json:"flipY" doc:"Popup opens above the click"`

	lon, lat, zoom float64
}

// Open builds the menu for a click at click inside a container of the given
// size, where the map shows lon/lat under the click at zoom.
func Open(click Point, container, popup Size, lon, lat, zoom float64) Menu {
	lonStr, latStr := format.LonLat(lon, lat, zoom)
	m := Menu{
		Lon:   lonStr,
		Lat:   latStr,
		Zoom:  format.Zoom(zoom),
		DMS:   format.DMS(lat, lon),
		Left:  click.X,
		Top:   click.Y,
		lon:   lon,
		lat:   lat,
		zoom:  zoom,
		FlipX: click.X+popup.Width+EdgeMargin > container.Width,
		FlipY: click.Y+popup.Height+EdgeMargin > container.Height,
	}
	if m.FlipX {
		m.Left = click.X - popup.Width
	}
	if m.FlipY {
		m.Top = click.Y - popup.Height
	}
	m.Left = clamp(m.Left, container.Width-popup.Width)
	m.Top = clamp(m.Top, container.Height-popup.Height)
	return m
}

// clamp limits v to [0, limit], or to 0 when the popup is larger than the
// container.
func clamp(v, limit float64) float64 {
	return max(0, min(v, limit))
}

// URL returns the page an action navigates to.
func (m Menu) URL(a Action) (string, error) {
	at := m.Lat + "," + m.Lon
	point := url.Values{"lat": {m.Lat}, "lon": {m.Lon}, "zoom": {m.Zoom}}
	hash := mapstate.Encode(mapstate.State{Lon: m.lon, Lat: m.lat, Zoom: m.zoom})

	switch a {
	case DirectionsFrom:
		return "/directions?" + url.Values{"from": {at}}.Encode(), nil
	case DirectionsTo:
		return "/directions?" + url.Values{"to": {at}}.Encode(), nil
	case NewNote:
		return "/note/new" + hash, nil
	case SearchHere:
		return "/search?" + point.Encode(), nil
	case QueryFeatures:
		return "/query?" + url.Values{"lat": {m.Lat}, "lon": {m.Lon}}.Encode() + hash, nil
	case Center:
		return "/" + hash, nil
	case Measure:
		return "/distance?" + point.Encode(), nil
	}
	return "", fmt.Errorf("unknown context menu action %q", a)
}

// Entry is a rendered menu row.
type Entry struct {
	Action Action `json:"action"`
	URL    string `json:"url"`
}

// Entries returns every action with its URL.
func (m Menu) Entries() []Entry {
	entries := make([]Entry, 0, len(Actions))
	for _, a := range Actions {
		u, _ := m.URL(a)
		entries = append(entries, Entry{Action: a, URL: u})
	}
	return entries
}
