package mapdata

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/maptile"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/simplify"

	"github.com/joeblew999/plat-map/internal/feature"
)

const (
	// TileContentType is the media type of the gzipped vector tiles.
	TileContentType = "application/vnd.mapbox-vector-tile"
	// MaxTileZoom is the deepest zoom tiles are cut at.
	MaxTileZoom = 19

	ElementsLayer = "elements"
	NotesLayer    = "notes"
)

// Tile renders the fixture features inside t as a gzipped Mapbox vector tile
// with an elements and a notes layer. It returns nil for an empty tile.
func (s *Store) Tile(t maptile.Tile) ([]byte, error) {
	if t.Z > MaxTileZoom || !t.Valid() {
		return nil, fmt.Errorf("%w: tile %d/%d/%d", ErrInvalidBBox, t.Z, t.X, t.Y)
	}

	var layers mvt.Layers
	for name, features := range map[string][]feature.Feature{ElementsLayer: s.elements, NotesLayer: s.notes} {
		if layer := tileLayer(name, t, features); layer != nil {
			layers = append(layers, layer)
		}
	}
	if len(layers) == 0 {
		return nil, nil
	}
	return mvt.MarshalGzipped(layers)
}

// tileLayer clips and projects the features intersecting t.
func tileLayer(name string, t maptile.Tile, features []feature.Feature) *mvt.Layer {
	bound := t.Bound()
	var hits []feature.Feature
	for _, f := range features {
		if intersectsTile(f.Geometry(), bound) {
			hits = append(hits, f)
		}
	}
	if len(hits) == 0 {
		return nil
	}

	// Clip and ProjectToTile mutate geometry in place.
	fc := feature.ToGeoJSON(hits)
	for i, f := range fc.Features {
		fc.Features[i] = cloneFeature(f)
	}

	layer := mvt.NewLayer(name, fc)
	if epsilon := simplifyEpsilon(t.Z); epsilon > 0 {
		layer.Simplify(simplify.DouglasPeucker(epsilon))
	}
	layer.Clip(bound)
	layer.ProjectToTile(t)
	layer.RemoveEmpty(0.5, 0.5)
	if len(layer.Features) == 0 {
		return nil
	}
	return layer
}

func cloneFeature(f *geojson.Feature) *geojson.Feature {
	c := geojson.NewFeature(orb.Clone(f.Geometry))
	c.ID = f.ID
	for k, v := range f.Properties {
		c.Properties[k] = v
	}
	return c
}

// intersectsTile refines the bound check for polygons so that a tile inside
// a large area is kept while one near its corner is not.
func intersectsTile(g orb.Geometry, bound orb.Bound) bool {
	if !g.Bound().Intersects(bound) {
		return false
	}
	switch g := g.(type) {
	case orb.Point:
		return bound.Contains(g)
	case orb.Polygon:
		if len(g) == 0 {
			return false
		}
		for _, p := range g[0] {
			if bound.Contains(p) {
				return true
			}
		}
		corners := []orb.Point{bound.Min, {bound.Max[0], bound.Min[1]}, bound.Max, {bound.Min[0], bound.Max[1]}, bound.Center()}
		for _, p := range corners {
			if planar.PolygonContains(g, p) {
				return true
			}
		}
		return false
	default:
		return true
	}
}

// simplifyEpsilon returns the simplification tolerance in degrees for a zoom.
func simplifyEpsilon(z maptile.Zoom) float64 {
	switch {
	case z >= 16:
		return 0
	case z >= 12:
		return 0.00001
	case z >= 8:
		return 0.0001
	default:
		return 0.001
	}
}
