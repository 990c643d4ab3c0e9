// Package format renders longitudes, latitudes and zoom levels for URLs and display.
package format

import (
	"fmt"
	"math"
	"strconv"
)

// MaxPrecision is the largest number of decimals written for a coordinate.
const MaxPrecision = 5

// Precision returns the number of decimals worth showing at the given zoom.
// One extra digit every three zoom levels, capped at MaxPrecision.
func Precision(zoom float64) int {
	if zoom <= 0 || math.IsNaN(zoom) {
		return 0
	}
	p := int(math.Floor(zoom / 3))
	if p > MaxPrecision {
		return MaxPrecision
	}
	return p
}

// Round rounds v half away from zero to the given number of decimals.
func Round(v float64, digits int) float64 {
	pow := math.Pow(10, float64(digits))
	r := math.Round(v*pow) / pow
	if r == 0 {
		return 0 // drop negative zero
	}
	return r
}

// Coordinate formats v with at most digits decimals and no trailing zeros.
func Coordinate(v float64, digits int) string {
	return strconv.FormatFloat(Round(v, digits), 'f', -1, 64)
}

// LonLat formats a coordinate pair at the precision matching zoom.
func LonLat(lon, lat, zoom float64) (string, string) {
	p := Precision(zoom)
	return Coordinate(lon, p), Coordinate(lat, p)
}

// Zoom beautifies a zoom level: whole zooms print as integers,
// fractional ones with at most two decimals.
func Zoom(z float64) string {
	if z == math.Trunc(z) {
		return strconv.FormatFloat(z, 'f', 0, 64)
	}
	return Coordinate(z, 2)
}

// DMS formats a coordinate pair as degrees, minutes and seconds,
// e.g. "51°30′18″N 0°5′24″W".
func DMS(lat, lon float64) string {
	return dms(lat, "N", "S") + " " + dms(lon, "E", "W")
}

func dms(v float64, pos, neg string) string {
	hemi := pos
	if v < 0 {
		hemi = neg
		v = -v
	}

	deg := math.Floor(v)
	minF := (v - deg) * 60
	min := math.Floor(minF)
	sec := math.Round((minF - min) * 60)

	if sec >= 60 {
		sec -= 60
		min++
	}
	if min >= 60 {
		min -= 60
		deg++
	}

	return fmt.Sprintf("%d°%d′%d″%s", int(deg), int(min), int(sec), hemi)
}
