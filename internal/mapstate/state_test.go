package mapstate

import (
	"math"
	"testing"

	"github.com/joeblew999/plat-map/internal/format"
)

func TestEncode(t *testing.T) {
	testCases := []struct {
		name  string
		state State
		want  string
	}{
		{"normalizes longitude", State{Lon: 200, Lat: 10, Zoom: 5}, "#map=5/10/-160"},
		{"with layers", State{Lon: -0.09, Lat: 51.505, Zoom: 15, Layers: "BT"}, "#map=15/51.505/-0.09&layers=BT"},
		{"precision follows zoom", State{Lon: -0.091234, Lat: 51.505678, Zoom: 9}, "#map=9/51.506/-0.091"},
		{"antimeridian", State{Lon: 180, Lat: 0, Zoom: 3}, "#map=3/0/-180"},
		{"negative wrap", State{Lon: -540, Lat: 0, Zoom: 3}, "#map=3/0/-180"},
		{"fractional zoom", State{Lon: 1, Lat: 2, Zoom: 6.5}, "#map=6.5/2/1"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Encode(tc.state); got != tc.want {
				t.Errorf("Encode(%+v) = %q, want %q", tc.state, got, tc.want)
			}
		})
	}
}

func TestDecode(t *testing.T) {
	s, ok := Decode("#map=15/51.505/-0.09&layers=BT")
	if !ok {
		t.Fatal("Decode failed")
	}
	want := State{Lon: -0.09, Lat: 51.505, Zoom: 15, Layers: "BT"}
	if s != want {
		t.Errorf("Decode = %+v, want %+v", s, want)
	}

	if s, ok := Decode("https://example.org/way/1#map=3/0/0"); !ok || s.Zoom != 3 {
		t.Errorf("Decode with prefix = %+v, %v", s, ok)
	}

	invalid := []string{
		"no-hash-here",
		"#",
		"#layers=N",
		"#map=15/51.505",
		"#map=15/51.505/-0.09/1",
		"#map=x/51.505/-0.09",
		"#map=20/51.505/-0.09",
		"#map=-1/51.505/-0.09",
		"#map=15/86/-0.09",
		"#map=15/51.505/181",
		"#map=15/NaN/0",
		"#map=15/51.505/Inf",
	}
	for _, h := range invalid {
		if s, ok := Decode(h); ok {
			t.Errorf("Decode(%q) = %+v, want failure", h, s)
		}
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	states := []State{
		{Lon: -0.0912345, Lat: 51.5056789, Zoom: 15, Layers: "N"},
		{Lon: 179.99, Lat: -84.9, Zoom: 19},
		{Lon: -180, Lat: 85, Zoom: 0},
		{Lon: 13.404954, Lat: 52.520008, Zoom: 12, Layers: "DY"},
		{Lon: 151.2093, Lat: -33.8688, Zoom: 7.25},
	}

	for _, s := range states {
		got, ok := Decode(Encode(s))
		if !ok {
			t.Errorf("round trip of %+v failed to decode", s)
			continue
		}
		tol := math.Pow(10, -float64(format.Precision(s.Zoom))) / 2
		if math.Abs(got.Lat-s.Lat) > tol || math.Abs(got.Lon-NormalizeLon(s.Lon)) > tol {
			t.Errorf("round trip %+v -> %+v exceeds %v", s, got, tol)
		}
		if got.Zoom != s.Zoom || got.Layers != s.Layers {
			t.Errorf("round trip %+v -> %+v changed zoom or layers", s, got)
		}
	}
}

func TestNormalizeLon(t *testing.T) {
	testCases := []struct{ in, want float64 }{
		{0, 0},
		{180, -180},
		{-180, -180},
		{200, -160},
		{-200, 160},
		{540, -180},
		{359.5, -0.5},
	}
	for _, tc := range testCases {
		if got := NormalizeLon(tc.in); math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("NormalizeLon(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}

	// In-range longitudes must come back bit for bit.
	for _, lon := range []float64{-0.09, 13.4, -179.99999, 179.123456789, -180} {
		if got := NormalizeLon(lon); got != lon {
			t.Errorf("NormalizeLon(%v) = %v, want unchanged", lon, got)
		}
	}
	s := State{Lon: -0.09, Lat: 51.505, Zoom: 15}
	if got := s.Normalized(); got != s {
		t.Errorf("Normalized(%+v) = %+v, want unchanged", s, got)
	}
}
