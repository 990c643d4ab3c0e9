package feature

import (
	"errors"
	"math"

	"github.com/paulmach/orb"
)

// ErrPolyline is returned for an encoded polyline that ends mid-value.
var ErrPolyline = errors.New("malformed polyline")

const polylineFactor = 1e6

// EncodePolyline encodes line with the Google polyline algorithm at 6
// decimal places, latitude first.
func EncodePolyline(line orb.LineString) string {
	if len(line) == 0 {
		return ""
	}

	result := make([]byte, 0, len(line)*8)
	prevLat, prevLon := 0, 0
	for _, p := range line {
		lat := int(math.Round(p.Lat() * polylineFactor))
		lon := int(math.Round(p.Lon() * polylineFactor))
		result = appendSigned(result, lat-prevLat)
		result = appendSigned(result, lon-prevLon)
		prevLat, prevLon = lat, lon
	}
	return string(result)
}

func appendSigned(buf []byte, value int) []byte {
	s := value << 1
	if value < 0 {
		s = ^s
	}
	for s >= 0x20 {
		buf = append(buf, byte((0x20|(s&0x1f))+63))
		s >>= 5
	}
	return append(buf, byte(s+63))
}

// DecodePolyline reverses EncodePolyline.
func DecodePolyline(encoded string) (orb.LineString, error) {
	line := make(orb.LineString, 0, len(encoded)/6)
	lat, lon := 0, 0
	for i := 0; i < len(encoded); {
		dLat, n, err := consumeSigned(encoded[i:])
		if err != nil {
			return nil, err
		}
		i += n
		dLon, n, err := consumeSigned(encoded[i:])
		if err != nil {
			return nil, err
		}
		i += n

		lat += dLat
		lon += dLon
		line = append(line, orb.Point{float64(lon) / polylineFactor, float64(lat) / polylineFactor})
	}
	return line, nil
}

func consumeSigned(s string) (int, int, error) {
	result, shift := 0, 0
	for i := 0; i < len(s); i++ {
		b := int(s[i]) - 63
		if b < 0 || b > 0x3f {
			return 0, 0, ErrPolyline
		}
		result |= (b & 0x1f) << shift
		shift += 5
		if b < 0x20 {
			return (result >> 1) ^ (-(result & 1)), i + 1, nil
		}
	}
	return 0, 0, ErrPolyline
}
