package mapview

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-map/internal/feature"
	"github.com/joeblew999/plat-map/internal/format"
)

// DefaultExportURL renders map images for a bounding box.
const DefaultExportURL = "https://render.openstreetmap.org/cgi-bin/export"

// DefaultExportFormat is used when a profile never exported before.
const DefaultExportFormat = "png"

// ExportFormats are the image formats the export service renders.
var ExportFormats = []string{"png", "jpeg", "svg", "pdf"}

// ErrExportFormat is returned for a format outside ExportFormats.
var ErrExportFormat = errors.New("unsupported export format")

// scaleAtZoom0 is the map scale denominator of zoom 0 at 0.28mm pixels.
const scaleAtZoom0 = 559082264

// ExportFormat returns the profile's last export format.
func (v *View) ExportFormat(ctx context.Context) string {
	if v.prefs == nil {
		return DefaultExportFormat
	}
	f, err := v.prefs.LoadExportFormat(ctx, v.cfg.Profile)
	if err != nil {
		v.logger.Warn("failed to load export format", "profile", v.cfg.Profile, "error", err)
	}
	if f == "" {
		return DefaultExportFormat
	}
	return f
}

// ExportImageURL returns the image export link for the visible box. An
// empty imageFormat reuses the last one; a non-positive scale uses the scale
// of the current zoom. The chosen format is remembered for the profile.
func (v *View) ExportImageURL(ctx context.Context, imageFormat string, scale int) (string, error) {
	if imageFormat == "" {
		imageFormat = v.ExportFormat(ctx)
	}
	imageFormat = strings.ToLower(imageFormat)
	if !validExportFormat(imageFormat) {
		return "", fmt.Errorf("%w: %q", ErrExportFormat, imageFormat)
	}

	if v.prefs != nil {
		if err := v.prefs.SaveExportFormat(ctx, v.cfg.Profile, imageFormat); err != nil {
			v.logger.Warn("failed to save export format", "profile", v.cfg.Profile, "error", err)
		}
	}

	s := v.State()
	b := v.Bounds()
	if scale <= 0 {
		scale = int(math.Round(scaleAtZoom0 / math.Exp2(s.Zoom)))
	}

	digits := format.Precision(s.Zoom)
	bbox := strings.Join([]string{
		format.Coordinate(b.Min.Lon(), digits),
		format.Coordinate(b.Min.Lat(), digits),
		format.Coordinate(b.Max.Lon(), digits),
		format.Coordinate(b.Max.Lat(), digits),
	}, ",")

	base := v.cfg.ExportURL
	if base == "" {
		base = DefaultExportURL
	}
	q := url.Values{
		"bbox":   {bbox},
		"scale":  {strconv.Itoa(scale)},
		"format": {imageFormat},
	}
	return base + "?" + q.Encode(), nil
}

func validExportFormat(f string) bool {
	for _, ok := range ExportFormats {
		if f == ok {
			return true
		}
	}
	return false
}

// ExportGeoJSON returns the features an overlay currently renders.
func (v *View) ExportGeoJSON(id string) (*geojson.FeatureCollection, error) {
	features, err := v.Features(id)
	if err != nil {
		return nil, err
	}
	return feature.ToGeoJSON(features), nil
}
