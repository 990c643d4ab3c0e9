// Package mapdata serves map elements and notes from a GeoJSON file in the
// shape of the /api/web data endpoints.
package mapdata

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-map/internal/feature"
	"github.com/joeblew999/plat-map/internal/overlay"
)

const (
	// MapQueryAreaMaxSize is the largest map data query, in square degrees.
	MapQueryAreaMaxSize = 0.25
	// MapQueryMaxLimit caps the limit parameter of map data queries.
	MapQueryMaxLimit = 50_000
	// NoteQueryAreaMaxSize is the largest note query, in square degrees.
	NoteQueryAreaMaxSize = 25
	// NoteQueryWebLimit is the number of notes returned per query.
	NoteQueryWebLimit = 200
)

var (
	ErrAreaTooLarge = errors.New("the requested area is too large")
	ErrInvalidBBox  = errors.New("invalid bbox")
)

// ParseBBox parses "minLon,minLat,maxLon,maxLat".
func ParseBBox(s string) (orb.Bound, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return orb.Bound{}, fmt.Errorf("%w: want 4 comma separated numbers", ErrInvalidBBox)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return orb.Bound{}, fmt.Errorf("%w: %q", ErrInvalidBBox, p)
		}
		v[i] = f
	}
	b := orb.Bound{Min: orb.Point{v[0], v[1]}, Max: orb.Point{v[2], v[3]}}
	if b.Min.Lon() < -180 || b.Max.Lon() > 180 || b.Min.Lat() < -90 || b.Max.Lat() > 90 ||
		b.Min.Lon() > b.Max.Lon() || b.Min.Lat() > b.Max.Lat() {
		return orb.Bound{}, fmt.Errorf("%w: %s out of range", ErrInvalidBBox, s)
	}
	return b, nil
}

// Store holds the fixture features in memory.
type Store struct {
	elements []feature.Feature
	notes    []feature.Feature
	logger   *slog.Logger
}

// NewStore splits features into map elements and notes.
func NewStore(features []feature.Feature, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{logger: logger}
	for _, f := range features {
		if f.Type() == feature.TypeNote {
			s.notes = append(s.notes, f)
		} else {
			s.elements = append(s.elements, f)
		}
	}
	return s
}

// Load reads a GeoJSON FeatureCollection file.
func Load(path string, logger *slog.Logger) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	s := NewStore(feature.FromGeoJSON(fc), logger)
	s.logger.Info("loaded map data fixture", "path", path, "elements", len(s.elements), "notes", len(s.notes))
	return s, nil
}

// QueryMap returns the elements intersecting b. When more than limit match,
// the first limit are returned with TooMuchData set.
func (s *Store) QueryMap(b orb.Bound, limit int) (feature.Collection, error) {
	if overlay.Area(b) > MapQueryAreaMaxSize {
		return feature.Collection{}, fmt.Errorf("%w: map data is limited to %v square degrees", ErrAreaTooLarge, MapQueryAreaMaxSize)
	}
	if limit <= 0 || limit > MapQueryMaxLimit {
		limit = MapQueryMaxLimit
	}
	return query(s.elements, b, limit), nil
}

// QueryNotes returns up to NoteQueryWebLimit notes intersecting b.
func (s *Store) QueryNotes(b orb.Bound) (feature.Collection, error) {
	if overlay.Area(b) > NoteQueryAreaMaxSize {
		return feature.Collection{}, fmt.Errorf("%w: notes are limited to %v square degrees", ErrAreaTooLarge, NoteQueryAreaMaxSize)
	}
	return query(s.notes, b, NoteQueryWebLimit), nil
}

func query(features []feature.Feature, b orb.Bound, limit int) feature.Collection {
	var c feature.Collection
	for _, f := range features {
		if !b.Intersects(f.Bound()) {
			continue
		}
		if len(c.Features) == limit {
			c.TooMuchData = true
			break
		}
		c.Features = append(c.Features, f)
	}
	return c
}
