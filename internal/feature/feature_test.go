package feature

import (
	"encoding/json"
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestHref(t *testing.T) {
	testCases := []struct {
		f    Feature
		want string
	}{
		{Node{ID: 1}, "/node/1"},
		{Way{ID: 22}, "/way/22"},
		{Note{ID: 333}, "/note/333"},
	}
	for _, tc := range testCases {
		if got := tc.f.Href(); got != tc.want {
			t.Errorf("%T.Href() = %q, want %q", tc.f, got, tc.want)
		}
	}
}

func TestWayGeometry(t *testing.T) {
	ring := orb.LineString{{0, 0}, {1, 0}, {1, 1}, {0, 0}}
	if _, ok := (Way{Line: ring, Area: true}).Geometry().(orb.Polygon); !ok {
		t.Error("closed area should be a polygon")
	}
	if _, ok := (Way{Line: ring}).Geometry().(orb.LineString); !ok {
		t.Error("way without area flag should be a line string")
	}
	open := orb.LineString{{0, 0}, {1, 0}, {1, 1}}
	if _, ok := (Way{Line: open, Area: true}).Geometry().(orb.LineString); !ok {
		t.Error("unclosed area should fall back to a line string")
	}
}

func TestPolyline(t *testing.T) {
	// Precision 6 rendition of the reference polyline.
	line := orb.LineString{{-120.2, 38.5}, {-120.95, 40.7}, {-126.453, 43.252}}
	encoded := EncodePolyline(line)
	if encoded != "_izlhA~rlgdF_{geC~ywl@_kwzCn`{nI" {
		t.Errorf("EncodePolyline = %q", encoded)
	}

	got, err := DecodePolyline(encoded)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(line) {
		t.Fatalf("decoded %d points, want %d", len(got), len(line))
	}
	for i := range line {
		if math.Abs(got[i].Lon()-line[i].Lon()) > 1e-6 || math.Abs(got[i].Lat()-line[i].Lat()) > 1e-6 {
			t.Errorf("point %d = %v, want %v", i, got[i], line[i])
		}
	}

	if got, err := DecodePolyline(""); err != nil || len(got) != 0 {
		t.Errorf("DecodePolyline(\"\") = %v, %v", got, err)
	}
	if _, err := DecodePolyline(encoded[:len(encoded)-1]); !errors.Is(err, ErrPolyline) {
		t.Errorf("truncated polyline err = %v", err)
	}
}

func TestElementsPayload(t *testing.T) {
	in := Collection{
		Features: []Feature{
			Way{ID: 7, Line: orb.LineString{{13.4, 52.5}, {13.41, 52.51}}},
			Node{ID: 1, Point: orb.Point{13.4, 52.52}},
			Note{ID: 99, Point: orb.Point{0, 0}},
			Way{ID: 8, Line: orb.LineString{{0, 0}, {0.001, 0}, {0.001, 0.001}, {0, 0}}, Area: true},
		},
		TooMuchData: true,
	}

	out, err := UnmarshalElements(MarshalElements(in))
	if err != nil {
		t.Fatal(err)
	}
	want := Collection{
		Features: []Feature{
			Node{ID: 1, Point: orb.Point{13.4, 52.52}},
			Way{ID: 7, Line: orb.LineString{{13.4, 52.5}, {13.41, 52.51}}},
			Way{ID: 8, Line: orb.LineString{{0, 0}, {0.001, 0}, {0.001, 0.001}, {0, 0}}, Area: true},
		},
		TooMuchData: true,
	}
	if !reflect.DeepEqual(out, want) {
		t.Errorf("UnmarshalElements = %+v, want %+v", out, want)
	}
}

func TestNotesPayload(t *testing.T) {
	in := Collection{Features: []Feature{
		Note{ID: 3, Point: orb.Point{-0.09, 51.505}, Open: true, Text: "Missing bench"},
		Note{ID: 4, Point: orb.Point{-0.1, 51.5}},
	}}

	out, err := UnmarshalNotes(MarshalNotes(in))
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(out, in) {
		t.Errorf("UnmarshalNotes = %+v, want %+v", out, in)
	}
}

func TestUnmarshalSkipsUnknownFields(t *testing.T) {
	b := MarshalNotes(Collection{Features: []Feature{Note{ID: 5, Point: orb.Point{1, 2}}}})
	b = protowire.AppendTag(b, 15, protowire.BytesType)
	b = protowire.AppendString(b, "future")
	b = protowire.AppendTag(b, 16, protowire.Fixed32Type)
	b = protowire.AppendFixed32(b, 42)

	out, err := UnmarshalNotes(b)
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Features) != 1 || out.Features[0].FeatureID() != 5 {
		t.Errorf("UnmarshalNotes = %+v", out)
	}
}

func TestUnmarshalTruncated(t *testing.T) {
	b := MarshalElements(Collection{Features: []Feature{Node{ID: 1, Point: orb.Point{1, 2}}}})
	if _, err := UnmarshalElements(b[:len(b)-3]); !errors.Is(err, ErrTruncated) {
		t.Errorf("err = %v, want ErrTruncated", err)
	}
}

func TestGeoJSON(t *testing.T) {
	features := []Feature{
		Node{ID: 1, Point: orb.Point{1, 2}},
		Way{ID: 2, Line: orb.LineString{{0, 0}, {1, 0}, {1, 1}, {0, 0}}, Area: true},
		Note{ID: 3, Point: orb.Point{3, 4}, Open: true, Text: "hello"},
	}

	data, err := json.Marshal(ToGeoJSON(features))
	if err != nil {
		t.Fatal(err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		t.Fatal(err)
	}
	if fc.Features[2].Properties.MustString("href") != "/note/3" {
		t.Errorf("note href = %v", fc.Features[2].Properties["href"])
	}

	back := FromGeoJSON(fc)
	if !reflect.DeepEqual(back, features) {
		t.Errorf("FromGeoJSON(ToGeoJSON) = %+v, want %+v", back, features)
	}
}

func TestFromGeoJSONDefaults(t *testing.T) {
	fc := geojson.NewFeatureCollection()
	fc.Append(geojson.NewFeature(orb.Point{1, 1}))
	noted := geojson.NewFeature(orb.Point{2, 2})
	noted.Properties["note"] = "Fix me"
	fc.Append(noted)
	fc.Append(geojson.NewFeature(orb.LineString{{0, 0}, {1, 1}}))
	fc.Append(geojson.NewFeature(orb.MultiPoint{{0, 0}}))

	got := FromGeoJSON(fc)
	want := []Feature{
		Node{ID: 1, Point: orb.Point{1, 1}},
		Note{ID: 2, Point: orb.Point{2, 2}, Open: true, Text: "Fix me"},
		Way{ID: 3, Line: orb.LineString{{0, 0}, {1, 1}}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("FromGeoJSON = %+v, want %+v", got, want)
	}
}
