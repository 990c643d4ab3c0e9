package mapstate

import (
	"errors"
	"math"
	"net/url"
	"strings"

	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-map/internal/format"
)

// ErrInvalidShortLink is returned when a short link code has no usable digits.
var ErrInvalidShortLink = errors.New("invalid short link code")

// shortLinkAlphabet encodes 6 bits per character. This is a wire format:
// existing /go/ links depend on it.
const shortLinkAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789_~"

// maxShortLinkDigits keeps every digit inside the 64-bit interleaved code.
const maxShortLinkDigits = 10

var shortLinkIndex = func() map[rune]int {
	m := make(map[rune]int, len(shortLinkAlphabet)+1)
	for i, c := range shortLinkAlphabet {
		m[c] = i
	}
	m['@'] = m['~'] // older links
	return m
}()

// EncodeShortLink interleaves the 32-bit scaled longitude and latitude into
// a Morton code and emits ceil((zoom+8)/3) base-64 digits, followed by
// (zoom+8)%3 '-' characters that carry the remaining zoom information.
func EncodeShortLink(lon, lat float64, zoom int) string {
	x := scale32((NormalizeLon(lon) + 180) * 11930464.711111112) // 2^32 / 360
	y := scale32((lat + 90) * 23860929.422222223)                // 2^32 / 180

	var c uint64
	for i := 31; i >= 0; i-- {
		c = (c << 2) | (uint64((x>>i)&1) << 1) | uint64((y>>i)&1)
	}

	if zoom < 0 {
		zoom = 0
	}
	d := (zoom + 8) / 3
	r := (zoom + 8) % 3
	if r > 0 {
		d++
	}
	if d > maxShortLinkDigits {
		d = maxShortLinkDigits
	}

	var b strings.Builder
	for i := 0; i < d; i++ {
		digit := (c >> (58 - 6*i)) & 0x3f
		b.WriteByte(shortLinkAlphabet[digit])
	}
	for i := 0; i < r; i++ {
		b.WriteByte('-')
	}
	return b.String()
}

// scale32 clamps a scaled coordinate into the 32-bit grid.
func scale32(v float64) uint32 {
	if v <= 0 {
		return 0
	}
	if v >= math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(v)
}

// DecodeShortLink returns the south-west corner of the cell named by code
// and the encoded zoom level.
func DecodeShortLink(code string) (lon, lat float64, zoom int, err error) {
	var x, y uint64
	z, zOffset := 0, 0

	for _, c := range code {
		t, ok := shortLinkIndex[c]
		if !ok {
			zOffset--
			continue
		}
		for i := 0; i < 3; i++ {
			x = (x << 1) | uint64((t>>5)&1)
			y = (y << 1) | uint64((t>>4)&1)
			t <<= 2
		}
		z += 3
	}

	if z == 0 || z > maxShortLinkDigits*3 {
		return 0, 0, 0, ErrInvalidShortLink
	}
	if z <= 32 {
		x <<= 32 - z
		y <<= 32 - z
	} else {
		x >>= z - 32
		y >>= z - 32
	}

	lon = float64(x)*8.381903171539307e-08 - 180 // 360 / 2^32
	lat = float64(y)*4.190951585769653e-08 - 90  // 180 / 2^32
	zoom = z - 8 - ((zOffset%3)+3)%3
	if zoom < 0 {
		zoom = 0
	}
	return lon, lat, zoom, nil
}

// ShortLinkPath builds the shareable /go/ path for s, optionally carrying a marker.
func ShortLinkPath(s State, marker *orb.Point) string {
	path := "/go/" + EncodeShortLink(s.Lon, s.Lat, int(math.Round(s.Zoom)))

	q := url.Values{}
	if s.Layers != "" {
		q.Set("layers", s.Layers)
	}
	if marker != nil {
		p := format.Precision(s.Zoom)
		q.Set("mlon", format.Coordinate(marker.Lon(), p))
		q.Set("mlat", format.Coordinate(marker.Lat(), p))
	}
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}
