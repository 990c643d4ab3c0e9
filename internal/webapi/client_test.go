package webapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-map/internal/feature"
	"github.com/joeblew999/plat-map/internal/testutil"
)

var testBound = orb.Bound{Min: orb.Point{-0.1, 51.5}, Max: orb.Point{-0.09, 51.51}}

func newTestClient(url string) *Client {
	return New(Options{BaseURL: url, Logger: testutil.DiscardLogger()})
}

func TestMap(t *testing.T) {
	payload := feature.MarshalElements(feature.Collection{
		Features:    []feature.Feature{feature.Node{ID: 1, Point: orb.Point{-0.095, 51.505}}},
		TooMuchData: true,
	})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != MapPath {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("bbox"); got != "-0.1,51.5,-0.09,51.51" {
			t.Errorf("bbox = %q", got)
		}
		if got := r.URL.Query().Get("limit"); got != "500" {
			t.Errorf("limit = %q", got)
		}
		if got := r.Header.Get("Cache-Control"); got != "no-store" {
			t.Errorf("Cache-Control = %q", got)
		}
		if got := r.Header.Get("Accept"); got != feature.ContentType {
			t.Errorf("Accept = %q", got)
		}
		if got := r.Header.Get("User-Agent"); got != DefaultUserAgent {
			t.Errorf("User-Agent = %q", got)
		}
		w.Header().Set("Content-Type", feature.ContentType)
		w.Write(payload)
	}))
	defer srv.Close()

	c, err := newTestClient(srv.URL).Map(context.Background(), testBound, 500)
	if err != nil {
		t.Fatal(err)
	}
	if !c.TooMuchData || len(c.Features) != 1 || c.Features[0].Href() != "/node/1" {
		t.Errorf("Map = %+v", c)
	}
}

func TestNoteSource(t *testing.T) {
	payload := feature.MarshalNotes(feature.Collection{
		Features: []feature.Feature{feature.Note{ID: 9, Point: orb.Point{-0.095, 51.505}, Open: true}},
	})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != NotePath {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.URL.Query().Has("limit") {
			t.Error("notes request should not carry a limit")
		}
		w.Write(payload)
	}))
	defer srv.Close()

	c, err := NoteSource{Client: newTestClient(srv.URL)}.Fetch(context.Background(), testBound)
	if err != nil {
		t.Fatal(err)
	}
	if len(c.Features) != 1 || c.Features[0].Type() != feature.TypeNote {
		t.Errorf("Fetch = %+v", c)
	}
}

func TestStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "area too big", http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := MapSource{Client: newTestClient(srv.URL)}.Fetch(context.Background(), testBound)
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want *StatusError", err)
	}
	if se.StatusCode != http.StatusBadRequest || se.Message != "area too big" {
		t.Errorf("StatusError = %+v", se)
	}
}

func TestCancel(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := newTestClient(srv.URL).Notes(ctx, testBound)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestMalformedPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte{0x0a, 0x40, 0x01})
	}))
	defer srv.Close()

	if _, err := newTestClient(srv.URL).Map(context.Background(), testBound, 0); !errors.Is(err, feature.ErrTruncated) {
		t.Errorf("err = %v, want ErrTruncated", err)
	}
}

func TestFormatBBox(t *testing.T) {
	b := orb.Bound{Min: orb.Point{-180, -85}, Max: orb.Point{179.5, 85}}
	if got := FormatBBox(b); got != "-180,-85,179.5,85" {
		t.Errorf("FormatBBox = %q", got)
	}
}
