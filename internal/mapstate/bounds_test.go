package mapstate

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
)

func TestFitBound(t *testing.T) {
	testCases := []struct {
		name     string
		bound    orb.Bound
		lon, lat float64
		zoom     float64
	}{
		{
			name:  "london",
			bound: orb.Bound{Min: orb.Point{-0.5, 51.3}, Max: orb.Point{0.3, 51.7}},
			lon:   -0.1, lat: 51.5, zoom: 10,
		},
		{
			name:  "crosses antimeridian",
			bound: orb.Bound{Min: orb.Point{170, 0}, Max: orb.Point{-170, 10}},
			lon:   -180, lat: 5, zoom: 6,
		},
		{
			name:  "single point",
			bound: orb.Bound{Min: orb.Point{10, 10}, Max: orb.Point{10, 10}},
			lon:   10, lat: 10, zoom: MaxZoom,
		},
		{
			name:  "whole world",
			bound: orb.Bound{Min: orb.Point{-180, -85}, Max: orb.Point{180, 85}},
			lon:   0, lat: 0, zoom: 1,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s := FitBound(tc.bound, DefaultViewport)
			if math.Abs(s.Lon-tc.lon) > 1e-9 || math.Abs(s.Lat-tc.lat) > 1e-9 || s.Zoom != tc.zoom {
				t.Errorf("FitBound = %+v, want lon %v lat %v zoom %v", s, tc.lon, tc.lat, tc.zoom)
			}
		})
	}
}

type fixedFitter struct{ state State }

func (f fixedFitter) FitBounds(orb.Bound) State { return f.state }

func TestBoundsToLonLatZoomPrefersFitter(t *testing.T) {
	want := State{Lon: 1, Lat: 2, Zoom: 3}
	b := orb.Bound{Min: orb.Point{-0.5, 51.3}, Max: orb.Point{0.3, 51.7}}
	if got := BoundsToLonLatZoom(b, fixedFitter{want}); got != want {
		t.Errorf("BoundsToLonLatZoom with fitter = %+v, want %+v", got, want)
	}
	if got := BoundsToLonLatZoom(b, nil); got.Zoom != 10 {
		t.Errorf("BoundsToLonLatZoom without fitter zoom = %v, want 10", got.Zoom)
	}
}

func TestViewBound(t *testing.T) {
	// At zoom 2 the world is exactly 1024 pixels wide.
	b := ViewBound(State{Lon: 0, Lat: 0, Zoom: 2}, DefaultViewport)
	if math.Abs(b.Min.Lon()+180) > 1e-9 || math.Abs(b.Max.Lon()-180) > 1e-9 {
		t.Errorf("ViewBound lon = %v..%v, want -180..180", b.Min.Lon(), b.Max.Lon())
	}
	if math.Abs(b.Min.Lat()+b.Max.Lat()) > 1e-9 || b.Max.Lat() < 79 || b.Max.Lat() > 80 {
		t.Errorf("ViewBound lat = %v..%v", b.Min.Lat(), b.Max.Lat())
	}

	s := State{Lon: -0.09, Lat: 51.505, Zoom: 15}
	if !ViewBound(s, DefaultViewport).Contains(orb.Point{s.Lon, s.Lat}) {
		t.Error("ViewBound does not contain its own center")
	}
}

func TestPixelToLonLat(t *testing.T) {
	s := State{Lon: 13.4, Lat: 52.52, Zoom: 12}
	center := PixelToLonLat(s, DefaultViewport, 512, 384)
	if math.Abs(center.Lon()-s.Lon) > 1e-9 || math.Abs(center.Lat()-s.Lat) > 1e-9 {
		t.Errorf("center pixel = %v, want %v,%v", center, s.Lon, s.Lat)
	}

	nw := PixelToLonLat(s, DefaultViewport, 0, 0)
	b := ViewBound(s, DefaultViewport)
	if math.Abs(nw.Lon()-b.Min.Lon()) > 1e-9 || math.Abs(nw.Lat()-b.Max.Lat()) > 1e-9 {
		t.Errorf("top-left pixel = %v, want %v,%v", nw, b.Min.Lon(), b.Max.Lat())
	}
}
