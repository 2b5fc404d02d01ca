package layers

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWidget struct {
	mu    sync.Mutex
	calls []Name
	state map[Name]bool
}

func (w *recordingWidget) SetLayerVisible(name Name, visible bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == nil {
		w.state = map[Name]bool{}
	}
	w.calls = append(w.calls, name)
	w.state[name] = visible
}

func TestToggleTwiceRestores(t *testing.T) {
	w := &recordingWidget{}
	c := NewController(defaultVisibility(), w)

	for _, name := range All {
		before := c.Visible(name)

		v, err := c.Toggle(name)
		require.NoError(t, err)
		assert.Equal(t, !before, v)

		v, err = c.Toggle(name)
		require.NoError(t, err)
		assert.Equal(t, before, v)
		assert.Equal(t, before, c.Visible(name))
		assert.Equal(t, before, w.state[name])
	}
	assert.Len(t, w.calls, 2*len(All))
}

func TestToggleUnknown(t *testing.T) {
	w := &recordingWidget{}
	c := NewController(nil, w)

	_, err := c.Toggle("nope")
	assert.Error(t, err)
	assert.Error(t, c.Set("nope", true))
	assert.Empty(t, w.calls)
}

func TestApplyZoom(t *testing.T) {
	w := &recordingWidget{}
	c := NewController(nil, w)

	c.ApplyZoom(AerialMinZoom)
	assert.False(t, c.Visible(Aerial))

	c.ApplyZoom(AerialMinZoom + 0.5)
	assert.True(t, c.Visible(Aerial))
	assert.True(t, w.state[Aerial])

	c.ApplyZoom(10)
	assert.False(t, c.Visible(Aerial))
}

func TestSnapshotIsCopy(t *testing.T) {
	c := NewController(map[Name]bool{Ponds: true}, nil)
	snap := c.Snapshot()
	snap[Ponds] = false
	assert.True(t, c.Visible(Ponds))
	assert.Len(t, snap, len(All))
}

func TestCatalog_Defaults(t *testing.T) {
	c := NewCatalog(t.TempDir())

	list := c.List()
	require.Len(t, list, len(All))
	for i, l := range list {
		assert.Equal(t, All[i], l.ID)
	}

	vis := c.Visibility()
	assert.True(t, vis[Base])
	assert.False(t, vis[Aerial])

	sel, ok := c.Get(Selection)
	require.True(t, ok)
	assert.Equal(t, "black", sel.Stroke)
	assert.Equal(t, 8.0, sel.StrokeWidth)
}

func TestCatalog_UpdatePersists(t *testing.T) {
	dir := t.TempDir()
	c := NewCatalog(dir)

	updated, err := c.Update(Ponds, Layer{Title: "Classified ponds", Kind: "xyz", Opacity: 0.5})
	require.NoError(t, err)
	assert.Equal(t, Ponds, updated.ID)

	_, err = c.Update("nope", Layer{Title: "x", Kind: "xyz"})
	assert.Error(t, err)

	reloaded := NewCatalog(dir)
	got, ok := reloaded.Get(Ponds)
	require.True(t, ok)
	assert.Equal(t, "Classified ponds", got.Title)
	assert.Equal(t, 0.5, got.Opacity)
	assert.False(t, got.DefaultVisible)
}

func TestCatalog_IgnoresBadFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "layers.json"), []byte("{not json"), 0644))

	c := NewCatalog(dir)
	base, ok := c.Get(Base)
	require.True(t, ok)
	assert.Equal(t, "Light gray canvas", base.Title)
}

func TestCatalog_SetURLNotPersisted(t *testing.T) {
	dir := t.TempDir()
	c := NewCatalog(dir)

	c.SetURL(Ponds, "https://tiles/ponds/{z}/{x}/{y}")
	got, _ := c.Get(Ponds)
	assert.Equal(t, "https://tiles/ponds/{z}/{x}/{y}", got.URL)

	_, err := os.Stat(filepath.Join(dir, "layers.json"))
	assert.True(t, os.IsNotExist(err))

	// Saving another layer must not write the refreshed URL out.
	base, _ := c.Get(Base)
	base.Opacity = 0.5
	_, err = c.Update(Base, base)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "layers.json"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "tiles/ponds")

	reopened := NewCatalog(dir)
	got, _ = reopened.Get(Ponds)
	assert.Equal(t, Defaults()[Ponds].URL, got.URL)
	got, _ = reopened.Get(Base)
	assert.Equal(t, 0.5, got.Opacity)
}

func defaultVisibility() map[Name]bool {
	out := map[Name]bool{}
	for id, l := range Defaults() {
		out[id] = l.DefaultVisible
	}
	return out
}
