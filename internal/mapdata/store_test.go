package mapdata

import (
	"errors"
	"testing"

	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-map/internal/feature"
	"github.com/joeblew999/plat-map/internal/testutil"
)

var city = orb.Bound{Min: orb.Point{-0.1, 51.5}, Max: orb.Point{-0.07, 51.52}}

func loadTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Load("testdata/london.geojson", testutil.DiscardLogger())
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestParseBBox(t *testing.T) {
	b, err := ParseBBox("-0.1,51.5,-0.07,51.52")
	if err != nil {
		t.Fatal(err)
	}
	if b != city {
		t.Errorf("ParseBBox = %v", b)
	}

	for _, s := range []string{"", "1,2,3", "a,b,c,d", "1,2,0,3", "-181,0,0,1", "0,-91,1,0"} {
		if _, err := ParseBBox(s); !errors.Is(err, ErrInvalidBBox) {
			t.Errorf("ParseBBox(%q) err = %v", s, err)
		}
	}
}

func TestQueryMap(t *testing.T) {
	s := loadTestStore(t)

	c, err := s.QueryMap(city, 0)
	if err != nil {
		t.Fatal(err)
	}
	counts := c.Counts()
	if counts[feature.TypeNode] != 3 || counts[feature.TypeWay] != 2 || counts[feature.TypeNote] != 0 {
		t.Errorf("counts = %v", counts)
	}
	if c.TooMuchData {
		t.Error("unexpected TooMuchData")
	}

	c, err = s.QueryMap(city, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(c.Features) != 2 || !c.TooMuchData {
		t.Errorf("limited query = %d features, TooMuchData %v", len(c.Features), c.TooMuchData)
	}

	if _, err := s.QueryMap(orb.Bound{Min: orb.Point{-1, 51}, Max: orb.Point{0, 52}}, 0); !errors.Is(err, ErrAreaTooLarge) {
		t.Errorf("large area err = %v", err)
	}
}

func TestQueryNotes(t *testing.T) {
	s := loadTestStore(t)

	c, err := s.QueryNotes(city)
	if err != nil {
		t.Fatal(err)
	}
	if len(c.Features) != 2 {
		t.Fatalf("notes = %d, want 2", len(c.Features))
	}
	first := c.Features[0].(feature.Note)
	if first.ID != 301 || !first.Open || first.Text != "Bench is missing" {
		t.Errorf("first note = %+v", first)
	}
	second := c.Features[1].(feature.Note)
	if second.ID != 302 || second.Open || second.Text != "Shop closed" {
		t.Errorf("second note = %+v", second)
	}

	// A 5x5 degree box is fine for notes but not for map data.
	wide := orb.Bound{Min: orb.Point{-5, 50}, Max: orb.Point{0, 55}}
	if _, err := s.QueryNotes(wide); err != nil {
		t.Errorf("wide notes query: %v", err)
	}
	if _, err := s.QueryNotes(orb.Bound{Min: orb.Point{-10, 50}, Max: orb.Point{0, 60}}); !errors.Is(err, ErrAreaTooLarge) {
		t.Errorf("too wide notes query err = %v", err)
	}
}
