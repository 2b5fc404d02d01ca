// Package templates handles HTML fragment rendering for Datastar SSE responses.
package templates

import (
	"bytes"
	"embed"
	"html/template"
	"path/filepath"
	"sync"
)

//go:embed fragments/*.html
var builtin embed.FS

// funcMap provides common template functions.
var funcMap = template.FuncMap{
	// dict creates a map from key-value pairs, useful for passing multiple values to nested templates
	"dict": func(values ...any) map[string]any {
		if len(values)%2 != 0 {
			return nil
		}
		m := make(map[string]any, len(values)/2)
		for i := 0; i < len(values); i += 2 {
			key, ok := values[i].(string)
			if !ok {
				continue
			}
			m[key] = values[i+1]
		}
		return m
	},
}

// Renderer manages HTML fragment templates.
type Renderer struct {
	templates *template.Template
	mu        sync.RWMutex
}

// New creates a renderer from the built-in fragments, overridden by any
// *.html files in fragmentsDir. An empty fragmentsDir uses only the built-ins.
func New(fragmentsDir string) (*Renderer, error) {
	tmpl, err := parse(fragmentsDir)
	if err != nil {
		return nil, err
	}
	return &Renderer{templates: tmpl}, nil
}

// MustBuiltin returns a renderer with only the built-in fragments.
func MustBuiltin() *Renderer {
	r, err := New("")
	if err != nil {
		panic(err)
	}
	return r
}

func parse(fragmentsDir string) (*template.Template, error) {
	tmpl, err := template.New("").Funcs(funcMap).ParseFS(builtin, "fragments/*.html")
	if err != nil {
		return nil, err
	}
	if fragmentsDir == "" {
		return tmpl, nil
	}
	pattern := filepath.Join(fragmentsDir, "*.html")
	if matches, _ := filepath.Glob(pattern); len(matches) == 0 {
		return tmpl, nil
	}
	return tmpl.ParseGlob(pattern)
}

// Render renders a named template to a string.
func (r *Renderer) Render(name string, data any) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var buf bytes.Buffer
	if err := r.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Reload reloads templates from disk (useful for dev hot-reload).
func (r *Renderer) Reload(fragmentsDir string) error {
	tmpl, err := parse(fragmentsDir)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.templates = tmpl
	r.mu.Unlock()

	return nil
}
