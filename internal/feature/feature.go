// Package feature holds the map features an overlay renders: nodes and ways
// from the map data endpoint and notes from the note endpoint.
package feature

import (
	"strconv"

	"github.com/paulmach/orb"
)

// Type is the tag of a Feature.
type Type string

const (
	TypeNode Type = "node"
	TypeWay  Type = "way"
	TypeNote Type = "note"
)

// Feature is one of Node, Way or Note.
type Feature interface {
	Type() Type
	FeatureID() int64
	// Href is the page a click on the feature navigates to.
	Href() string
	Bound() orb.Bound
	Geometry() orb.Geometry

	sealed()
}

// Node is a single point element.
type Node struct {
	ID    int64
	Point orb.Point
}

// Way is a line, or a closed area when Area is set.
type Way struct {
	ID   int64
	Line orb.LineString
	Area bool
}

// Note is a map note pinned at Point.
type Note struct {
	ID    int64
	Point orb.Point
	Open  bool
	Text  string
}

func (Node) Type() Type { return TypeNode }
func (Way) Type() Type  { return TypeWay }
func (Note) Type() Type { return TypeNote }

func (n Node) FeatureID() int64 { return n.ID }
func (w Way) FeatureID() int64  { return w.ID }
func (n Note) FeatureID() int64 { return n.ID }

func (n Node) Href() string { return href(n) }
func (w Way) Href() string  { return href(w) }
func (n Note) Href() string { return href(n) }

func (n Node) Bound() orb.Bound { return n.Point.Bound() }
func (w Way) Bound() orb.Bound  { return w.Line.Bound() }
func (n Note) Bound() orb.Bound { return n.Point.Bound() }

func (n Node) Geometry() orb.Geometry { return n.Point }
func (n Note) Geometry() orb.Geometry { return n.Point }

// Geometry returns a polygon for closed areas and a line string otherwise.
func (w Way) Geometry() orb.Geometry {
	if w.Area && len(w.Line) >= 4 && w.Line[0] == w.Line[len(w.Line)-1] {
		return orb.Polygon{orb.Ring(w.Line)}
	}
	return w.Line
}

func (Node) sealed() {}
func (Way) sealed()  {}
func (Note) sealed() {}

func href(f Feature) string {
	return "/" + string(f.Type()) + "/" + strconv.FormatInt(f.FeatureID(), 10)
}

// Collection is the decoded result of one overlay fetch.
type Collection struct {
	Features    []Feature
	TooMuchData bool
}

// Counts returns the number of features of each type.
func (c Collection) Counts() map[Type]int {
	counts := make(map[Type]int, 3)
	for _, f := range c.Features {
		counts[f.Type()]++
	}
	return counts
}
