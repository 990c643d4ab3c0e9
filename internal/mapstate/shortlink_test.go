package mapstate

import (
	"errors"
	"math"
	"testing"

	"github.com/paulmach/orb"
)

// Codes below must never change: they are embedded in links shared in the wild.
func TestEncodeShortLink(t *testing.T) {
	testCases := []struct {
		lon, lat float64
		zoom     int
		want     string
	}{
		{-0.09, 51.505, 15, "euu4qpaz--"},
		{0, 0, 0, "wAA--"},
		{13.4, 52.52, 12, "0MbFK30--"},
		{151.2093, -33.8688, 10, "uN~ROO"},
		{-122.4194, 37.7749, 19, "TZHvSR7Ne"},
		{200, 10, 5, "QPwPw-"},
	}

	for _, tc := range testCases {
		if got := EncodeShortLink(tc.lon, tc.lat, tc.zoom); got != tc.want {
			t.Errorf("EncodeShortLink(%v, %v, %d) = %q, want %q", tc.lon, tc.lat, tc.zoom, got, tc.want)
		}
	}
}

func TestDecodeShortLink(t *testing.T) {
	testCases := []struct {
		code     string
		lon, lat float64
		zoom     int
	}{
		{"euu4qpaz--", -0.09001493453979492, 51.50498986244202, 15},
		{"wAA--", 0, 0, 0},
		{"uN~ROO", 151.20895385742188, -33.869476318359375, 10},
		{"uN@ROO", 151.20895385742188, -33.869476318359375, 10},
		{"TZHvSR7Ne", -122.41940170526505, 37.77489870786667, 19},
	}

	for _, tc := range testCases {
		lon, lat, zoom, err := DecodeShortLink(tc.code)
		if err != nil {
			t.Errorf("DecodeShortLink(%q): %v", tc.code, err)
			continue
		}
		if math.Abs(lon-tc.lon) > 1e-9 || math.Abs(lat-tc.lat) > 1e-9 || zoom != tc.zoom {
			t.Errorf("DecodeShortLink(%q) = %v, %v, %d; want %v, %v, %d", tc.code, lon, lat, zoom, tc.lon, tc.lat, tc.zoom)
		}
	}
}

func TestDecodeShortLinkInvalid(t *testing.T) {
	for _, code := range []string{"", "--", "AAAAAAAAAAAAAAAA"} {
		if _, _, _, err := DecodeShortLink(code); !errors.Is(err, ErrInvalidShortLink) {
			t.Errorf("DecodeShortLink(%q) err = %v, want ErrInvalidShortLink", code, err)
		}
	}
}

func TestShortLinkRoundTrip(t *testing.T) {
	for zoom := 0; zoom <= MaxZoom; zoom++ {
		code := EncodeShortLink(-73.9857, 40.7484, zoom)
		lon, lat, z, err := DecodeShortLink(code)
		if err != nil {
			t.Fatalf("zoom %d: %v", zoom, err)
		}
		if z != zoom {
			t.Errorf("zoom %d decoded as %d (%q)", zoom, z, code)
		}
		// The decoded point is the south-west corner of a cell spanning
		// 360/2^(3*digits) degrees of longitude.
		digits := len(code)
		for len(code) > 0 && code[len(code)-1] == '-' {
			code = code[:len(code)-1]
			digits--
		}
		cell := 360 / math.Exp2(float64(3*digits))
		if d := -73.9857 - lon; d < 0 || d > cell {
			t.Errorf("zoom %d: lon %v outside cell %v", zoom, lon, cell)
		}
		if d := 40.7484 - lat; d < 0 || d > cell/2 {
			t.Errorf("zoom %d: lat %v outside cell %v", zoom, lat, cell/2)
		}
	}
}

func TestShortLinkPath(t *testing.T) {
	s := State{Lon: -0.09, Lat: 51.505, Zoom: 15}
	if got := ShortLinkPath(s, nil); got != "/go/euu4qpaz--" {
		t.Errorf("ShortLinkPath = %q", got)
	}

	s.Layers = "N"
	marker := orb.Point{-0.091, 51.5}
	want := "/go/euu4qpaz--?layers=N&mlat=51.5&mlon=-0.091"
	if got := ShortLinkPath(s, &marker); got != want {
		t.Errorf("ShortLinkPath = %q, want %q", got, want)
	}
}
