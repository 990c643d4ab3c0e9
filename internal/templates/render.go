// Package templates renders the HTML fragments pushed over Datastar SSE.
package templates

import (
	"bytes"
	"embed"
	"html/template"
	"io/fs"
	"os"
)

//go:embed fragments/*.html
var embedded embed.FS

const pattern = "*.html"

// Renderer manages HTML fragment templates.
type Renderer struct {
	templates *template.Template
}

// New creates a renderer from fragmentsDir, or from the embedded fragments
// when fragmentsDir is empty.
func New(fragmentsDir string) (*Renderer, error) {
	tmpl, err := parse(fragmentsDir)
	if err != nil {
		return nil, err
	}
	return &Renderer{templates: tmpl}, nil
}

// Default returns a renderer over the embedded fragments.
func Default() *Renderer {
	r, err := New("")
	if err != nil {
		panic(err)
	}
	return r
}

func parse(fragmentsDir string) (*template.Template, error) {
	var fsys fs.FS
	if fragmentsDir == "" {
		sub, err := fs.Sub(embedded, "fragments")
		if err != nil {
			return nil, err
		}
		fsys = sub
	} else {
		fsys = os.DirFS(fragmentsDir)
	}
	return template.New("").ParseFS(fsys, pattern)
}

// Render renders a named template to a string.
func (r *Renderer) Render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := r.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
