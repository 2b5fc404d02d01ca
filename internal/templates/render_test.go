package templates

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type row struct{ Header, Value string }

func TestBuiltinTable(t *testing.T) {
	r := MustBuiltin()
	html, err := r.Render("table-rows", []row{{"Latitude", "15.230000"}, {"Current Date", "<b>"}})
	require.NoError(t, err)
	assert.Contains(t, html, "<tr><th>Latitude</th><td>15.230000</td></tr>")
	assert.Contains(t, html, "&lt;b&gt;")
}

func TestOverride(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "custom.html"),
		[]byte(`{{define "table-rows"}}custom{{end}}{{define "extra"}}{{.}}{{end}}`), 0644))

	r, err := New(dir)
	require.NoError(t, err)
	html, err := r.Render("table-rows", nil)
	require.NoError(t, err)
	assert.Equal(t, "custom", html)

	html, err = r.Render("extra", "x")
	require.NoError(t, err)
	assert.Equal(t, "x", html)

	require.NoError(t, r.Reload(""))
	_, err = r.Render("extra", "x")
	assert.Error(t, err)
}

func TestMissingDirUsesBuiltins(t *testing.T) {
	r, err := New(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	_, err = r.Render("pond-options", nil)
	assert.NoError(t, err)
}
