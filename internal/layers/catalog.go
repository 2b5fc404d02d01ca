package layers

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Catalog manages layer configurations shared by all viewers.
type Catalog struct {
	dataDir string
	layers  map[Name]Layer
	// runtime holds URLs refreshed from the data service. They override the
	// configured URL on reads and are never written to layers.json.
	runtime map[Name]string
	mu      sync.RWMutex
}

// NewCatalog creates a catalog seeded with the defaults and overlaid with
// <dataDir>/layers.json when present.
func NewCatalog(dataDir string) *Catalog {
	c := &Catalog{
		dataDir: dataDir,
		layers:  Defaults(),
		runtime: map[Name]string{},
	}
	c.loadFromDisk()
	return c
}

// List returns all layers bottom to top.
func (c *Catalog) List() []Layer {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]Layer, 0, len(All))
	for _, name := range All {
		result = append(result, c.resolve(name))
	}
	return result
}

// Get returns a layer by handle.
func (c *Catalog) Get(id Name) (Layer, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if _, ok := c.layers[id]; !ok {
		return Layer{}, false
	}
	return c.resolve(id), true
}

// resolve returns the configured layer with any runtime URL applied.
// Callers hold c.mu.
func (c *Catalog) resolve(id Name) Layer {
	layer := c.layers[id]
	if url, ok := c.runtime[id]; ok {
		layer.URL = url
	}
	return layer
}

// Update replaces a layer configuration by handle.
func (c *Catalog) Update(id Name, layer Layer) (Layer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !id.Valid() {
		return Layer{}, fmt.Errorf("layer %q not found", id)
	}

	layer.ID = id
	c.layers[id] = layer
	if err := c.saveToDisk(); err != nil {
		return Layer{}, err
	}

	return c.resolve(id), nil
}

// SetURL changes the tile URL of a layer without persisting it. Used for
// URLs that are refreshed from the data service.
func (c *Catalog) SetURL(id Name, url string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.layers[id]; ok {
		c.runtime[id] = url
	}
}

// Visibility returns the default visibility of every layer.
func (c *Catalog) Visibility() map[Name]bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make(map[Name]bool, len(c.layers))
	for id, layer := range c.layers {
		result[id] = layer.DefaultVisible
	}
	return result
}

// configFile returns the path to the layers config file.
func (c *Catalog) configFile() string {
	return filepath.Join(c.dataDir, "layers.json")
}

// loadFromDisk overlays persisted configurations onto the defaults.
func (c *Catalog) loadFromDisk() {
	data, err := os.ReadFile(c.configFile())
	if err != nil {
		return // File doesn't exist yet, keep defaults
	}

	var layers map[Name]Layer
	if err := json.Unmarshal(data, &layers); err != nil {
		return // Invalid JSON, keep defaults
	}

	for id, layer := range layers {
		if !id.Valid() {
			continue
		}
		layer.ID = id
		c.layers[id] = layer
	}
}

// saveToDisk persists layer configurations to disk.
func (c *Catalog) saveToDisk() error {
	if err := os.MkdirAll(c.dataDir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c.layers, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(c.configFile(), data, 0644)
}
