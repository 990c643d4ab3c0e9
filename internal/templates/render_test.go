package templates

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEmbeddedFragments(t *testing.T) {
	r := Default()

	html, err := r.Render("overlay-banner", map[string]any{
		"Status": "too-much-data", "Overlay": "data", "View": "v1",
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(html, "/api/v1/views/v1/overlays/data/load") {
		t.Errorf("banner = %s", html)
	}

	if _, err := r.Render("missing", nil); err == nil {
		t.Error("missing template rendered")
	}
}

func TestNewFromDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.html"), []byte(`{{define "hello"}}hi {{.}}{{end}}`), 0o644); err != nil {
		t.Fatal(err)
	}

	r, err := New(dir)
	if err != nil {
		t.Fatal(err)
	}
	if got, err := r.Render("hello", "there"); err != nil || got != "hi there" {
		t.Errorf("hello = %q, %v", got, err)
	}
	if _, err := r.Render("overlay-banner", nil); err == nil {
		t.Error("embedded fragment rendered from a directory renderer")
	}

	if _, err := New(t.TempDir()); err == nil {
		t.Error("empty directory parsed")
	}
}
