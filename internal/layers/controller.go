package layers

import (
	"fmt"
	"sync"
)

// AerialMinZoom is the zoom above which aerial imagery replaces the canvas.
const AerialMinZoom = 14

// Widget is the part of the map widget that shows and hides layers.
type Widget interface {
	SetLayerVisible(name Name, visible bool)
}

// Controller maps toggle controls to layer visibility for one viewer.
type Controller struct {
	mu      sync.Mutex
	visible map[Name]bool
	widget  Widget
}

// NewController starts from the given visibility (usually Catalog.Visibility).
func NewController(initial map[Name]bool, w Widget) *Controller {
	visible := make(map[Name]bool, len(All))
	for _, name := range All {
		visible[name] = initial[name]
	}
	return &Controller{visible: visible, widget: w}
}

// Set shows or hides a layer.
func (c *Controller) Set(name Name, visible bool) error {
	if !name.Valid() {
		return fmt.Errorf("unknown layer %q", name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.visible[name] = visible
	if c.widget != nil {
		c.widget.SetLayerVisible(name, visible)
	}
	return nil
}

// Toggle flips a layer and returns its new visibility.
func (c *Controller) Toggle(name Name) (bool, error) {
	if !name.Valid() {
		return false, fmt.Errorf("unknown layer %q", name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	v := !c.visible[name]
	c.visible[name] = v
	if c.widget != nil {
		c.widget.SetLayerVisible(name, v)
	}
	return v, nil
}

// Visible reports whether a layer is shown.
func (c *Controller) Visible(name Name) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.visible[name]
}

// Snapshot copies the current visibility map.
func (c *Controller) Snapshot() map[Name]bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[Name]bool, len(c.visible))
	for k, v := range c.visible {
		out[k] = v
	}
	return out
}

// ApplyZoom follows the map view: aerial imagery is shown only when zoomed
// in past AerialMinZoom.
func (c *Controller) ApplyZoom(zoom float64) {
	c.Set(Aerial, zoom > AerialMinZoom)
}
