package mapstate

import (
	"math"

	"github.com/paulmach/orb"
)

// TileSize is the pixel size of one map tile.
const TileSize = 256

// Viewport is a map container size in pixels.
type Viewport struct {
	Width  int `json:"width" minimum:"1" doc:"Viewport width in pixels" example:"1024"`
	Height int `json:"height" minimum:"1" doc:"Viewport height in pixels" example:"768"`
}

// DefaultViewport is assumed when no live view is available.
var DefaultViewport = Viewport{Width: 1024, Height: 768}

// Fitter is implemented by live views that compute their own fit-bounds state.
type Fitter interface {
	FitBounds(b orb.Bound) State
}

// BoundsToLonLatZoom returns the state that shows b. A non-nil fitter is
// preferred; otherwise the zoom is computed for DefaultViewport.
func BoundsToLonLatZoom(b orb.Bound, fitter Fitter) State {
	if fitter != nil {
		return fitter.FitBounds(b)
	}
	return FitBound(b, DefaultViewport)
}

// FitBound returns the center of b and the largest whole zoom at which b
// fits inside vp. A bound whose max longitude is below its min longitude
// crosses the antimeridian.
func FitBound(b orb.Bound, vp Viewport) State {
	minLon, maxLon := b.Min.Lon(), b.Max.Lon()
	if maxLon < minLon {
		maxLon += 360
	}
	minLat, maxLat := b.Min.Lat(), b.Max.Lat()

	lonFraction := (maxLon - minLon) / 360
	latFraction := (mercatorLat(maxLat) - mercatorLat(minLat)) / math.Pi

	zoom := math.Min(
		zoomFor(float64(vp.Height), latFraction),
		zoomFor(float64(vp.Width), lonFraction),
	)
	zoom = math.Max(0, math.Min(zoom, MaxZoom))

	return State{
		Lon:  NormalizeLon(minLon + (maxLon-minLon)/2),
		Lat:  (minLat + maxLat) / 2,
		Zoom: zoom,
	}
}

// mercatorLat returns the Web Mercator y of lat in radians, halved and
// clamped to [-pi/2, pi/2].
func mercatorLat(lat float64) float64 {
	sin := math.Sin(lat * math.Pi / 180)
	radX2 := math.Log((1+sin)/(1-sin)) / 2
	return math.Max(math.Min(radX2, math.Pi), -math.Pi) / 2
}

func zoomFor(px, fraction float64) float64 {
	if fraction <= 0 || math.IsNaN(fraction) {
		return MaxZoom
	}
	return math.Floor(math.Log2(px / TileSize / fraction))
}

// ViewBound returns the bounding box visible at s in a viewport of size vp,
// using Web Mercator world pixel coordinates.
func ViewBound(s State, vp Viewport) orb.Bound {
	world := TileSize * math.Exp2(s.Zoom)
	cx, cy := project(s.Lon, s.Lat, world)

	halfW, halfH := float64(vp.Width)/2, float64(vp.Height)/2
	west, north := unproject(cx-halfW, cy-halfH, world)
	east, south := unproject(cx+halfW, cy+halfH, world)

	return orb.Bound{
		Min: orb.Point{west, south},
		Max: orb.Point{east, north},
	}
}

// PixelToLonLat converts a container pixel position to a coordinate.
func PixelToLonLat(s State, vp Viewport, x, y float64) orb.Point {
	world := TileSize * math.Exp2(s.Zoom)
	cx, cy := project(s.Lon, s.Lat, world)
	lon, lat := unproject(cx-float64(vp.Width)/2+x, cy-float64(vp.Height)/2+y, world)
	return orb.Point{lon, lat}
}

func project(lon, lat, world float64) (float64, float64) {
	x := (lon + 180) / 360 * world
	sin := math.Sin(lat * math.Pi / 180)
	y := (0.5 - math.Log((1+sin)/(1-sin))/(4*math.Pi)) * world
	return x, y
}

func unproject(x, y, world float64) (float64, float64) {
	lon := x/world*360 - 180
	n := math.Pi - 2*math.Pi*y/world
	lat := 180 / math.Pi * math.Atan(math.Sinh(n))
	return lon, lat
}
