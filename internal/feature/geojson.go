package feature

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// ToGeoJSON converts features for export. Each feature carries its type,
// id and href as properties; notes also carry open and text.
func ToGeoJSON(features []Feature) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, f := range features {
		g := geojson.NewFeature(f.Geometry())
		g.ID = fmt.Sprintf("%s/%d", f.Type(), f.FeatureID())
		g.Properties["type"] = string(f.Type())
		g.Properties["id"] = f.FeatureID()
		g.Properties["href"] = f.Href()
		if n, ok := f.(Note); ok {
			g.Properties["open"] = n.Open
			g.Properties["text"] = n.Text
		}
		fc.Append(g)
	}
	return fc
}

// FromGeoJSON converts a feature collection into features. The "type"
// property selects node, way or note; without it points become nodes, or
// notes when a "note" property is present, and lines and polygons become
// ways. Features without a numeric "id" are numbered from their position.
// Unsupported geometries are skipped.
func FromGeoJSON(fc *geojson.FeatureCollection) []Feature {
	features := make([]Feature, 0, len(fc.Features))
	for i, g := range fc.Features {
		id := int64(i + 1)
		if v, ok := number(g.Properties["id"]); ok {
			id = v
		}
		typ := Type(g.Properties.MustString("type", ""))
		_, hasNote := g.Properties["note"]

		switch geom := g.Geometry.(type) {
		case orb.Point:
			if typ == TypeNote || (typ == "" && hasNote) {
				features = append(features, Note{
					ID:    id,
					Point: geom,
					Open:  g.Properties.MustBool("open", true),
					Text:  noteTextProperty(g.Properties),
				})
				continue
			}
			features = append(features, Node{ID: id, Point: geom})
		case orb.LineString:
			features = append(features, Way{ID: id, Line: geom})
		case orb.Polygon:
			if len(geom) == 0 {
				continue
			}
			features = append(features, Way{ID: id, Line: orb.LineString(geom[0]), Area: true})
		}
	}
	return features
}

func noteTextProperty(p geojson.Properties) string {
	if s := p.MustString("text", ""); s != "" {
		return s
	}
	return p.MustString("note", "")
}

func number(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int:
		return int64(n), true
	case int64:
		return n, true
	}
	return 0, false
}
