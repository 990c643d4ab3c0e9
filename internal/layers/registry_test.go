package layers

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/joeblew999/plat-map/internal/testutil"
)

type recorder struct {
	added   []string
	removed []string
}

func newTestSet(t *testing.T) (*Set, *recorder) {
	t.Helper()
	rec := &recorder{}
	s := NewSet(Default(), testutil.DiscardLogger())
	s.OnAdd = func(l LayerConfig) { rec.added = append(rec.added, l.ID) }
	s.OnRemove = func(l LayerConfig) { rec.removed = append(rec.removed, l.ID) }
	return s, rec
}

func TestResolve(t *testing.T) {
	r := Default()

	testCases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"Y", "cyclosm", true},
		{"cyclosm", "cyclosm", true},
		{"mapnik", "standard", true},
		{"cycle map", "cyclemap", true},
		{"N", "notes", true},
		{"Z", "", false},
		{"", "", false},
	}

	for _, tc := range testCases {
		got, ok := r.Resolve(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Errorf("Resolve(%q) = %q, %v; want %q, %v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestEncodeActive(t *testing.T) {
	r := Default()

	got := r.EncodeActive([]string{"notes", "cyclosm", "data", "notes", "routing", "standard", "missing"})
	if got != "DNY" {
		t.Errorf("EncodeActive = %q, want DNY", got)
	}
	if got := r.EncodeActive(nil); got != "" {
		t.Errorf("EncodeActive(nil) = %q, want empty", got)
	}
}

func TestNewRegistryValidation(t *testing.T) {
	testCases := []struct {
		name    string
		configs []LayerConfig
	}{
		{"no default", []LayerConfig{{ID: "a", Base: true}}},
		{"duplicate id", []LayerConfig{{ID: "a", Base: true, Default: true}, {ID: "a"}}},
		{"duplicate code", []LayerConfig{{ID: "a", Base: true, Default: true, Code: "X"}, {ID: "b", Code: "X"}}},
		{"long code", []LayerConfig{{ID: "a", Base: true, Default: true, Code: "XY"}}},
		{"overlay default", []LayerConfig{{ID: "a", Default: true}}},
		{"two defaults", []LayerConfig{{ID: "a", Base: true, Default: true}, {ID: "b", Base: true, Default: true}}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewRegistry(tc.configs); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoadFromDataDir(t *testing.T) {
	dir := t.TempDir()
	data := []byte("- id: only\n  name: Only\n  base: true\n  default: true\n  code: O\n")
	if err := os.WriteFile(filepath.Join(dir, "layers.yaml"), data, 0644); err != nil {
		t.Fatal(err)
	}

	configs, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	r, err := NewRegistry(configs)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	if r.DefaultLayer().ID != "only" {
		t.Errorf("default = %q, want only", r.DefaultLayer().ID)
	}

	// Missing file falls back to the embedded definitions.
	configs, err = Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load empty dir: %v", err)
	}
	if len(configs) < 5 {
		t.Errorf("expected embedded layers, got %d", len(configs))
	}
}

func TestApply(t *testing.T) {
	s, rec := newTestSet(t)

	if err := s.Apply("YN"); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if s.Code() != "NY" {
		t.Errorf("Code = %q, want NY", s.Code())
	}
	if len(rec.added) != 2 || len(rec.removed) != 0 {
		t.Errorf("added=%v removed=%v", rec.added, rec.removed)
	}

	// Second application of the same code is a no-op.
	rec.added, rec.removed = nil, nil
	if err := s.Apply("NY"); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(rec.added) != 0 || len(rec.removed) != 0 {
		t.Errorf("reapply notified added=%v removed=%v", rec.added, rec.removed)
	}

	// Switching base layer and dropping the overlay.
	if err := s.Apply("D"); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got := s.Active(); len(got) != 2 || got[0] != "standard" || got[1] != "data" {
		t.Errorf("Active = %v, want [standard data]", got)
	}
	if len(rec.removed) != 2 || len(rec.added) != 2 {
		t.Errorf("added=%v removed=%v", rec.added, rec.removed)
	}
}

func TestApplyInsertsDefault(t *testing.T) {
	s, rec := newTestSet(t)

	if err := s.Apply(""); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !s.IsActive("standard") {
		t.Error("default layer not active")
	}
	if s.Code() != "" {
		t.Errorf("Code = %q, want empty", s.Code())
	}
	if len(rec.added) != 1 {
		t.Errorf("added = %v", rec.added)
	}
}

func TestApplyRejectsTwoBaseLayers(t *testing.T) {
	s, _ := newTestSet(t)
	if err := s.Apply("CN"); err != nil {
		t.Fatal(err)
	}

	err := s.Apply("BY")
	if !errors.Is(err, ErrMultipleBaseLayers) {
		t.Fatalf("err = %v, want ErrMultipleBaseLayers", err)
	}
	if got := s.Active(); len(got) != 1 || got[0] != "standard" {
		t.Errorf("Active = %v, want [standard]", got)
	}
	if s.Code() != "" {
		t.Errorf("Code = %q, want default-only code", s.Code())
	}
}

func TestToggle(t *testing.T) {
	s, rec := newTestSet(t)
	if err := s.Apply("N"); err != nil {
		t.Fatal(err)
	}

	if err := s.Toggle("cyclosm"); err != nil {
		t.Fatal(err)
	}
	if s.Base().ID != "cyclosm" || s.IsActive("standard") {
		t.Errorf("base = %q", s.Base().ID)
	}

	if err := s.Toggle("notes"); err != nil {
		t.Fatal(err)
	}
	if s.IsActive("notes") {
		t.Error("notes still active")
	}

	rec.added, rec.removed = nil, nil
	if err := s.Toggle("cyclosm"); err != nil {
		t.Fatal(err)
	}
	if len(rec.added)+len(rec.removed) != 0 {
		t.Error("toggling active base layer should be a no-op")
	}

	if err := s.Toggle("nope"); err == nil {
		t.Error("expected error for unknown layer")
	}
}
