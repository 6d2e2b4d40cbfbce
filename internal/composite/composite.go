// Package composite flattens a layer stack into a single texture bitmap.
package composite

import (
	"image"
	"sync"

	"garment-configurator/internal/layer"
	"garment-configurator/internal/logging"
	"garment-configurator/internal/raster"
)

// DefaultSize is the side length of the square composite.
const DefaultSize = 1024

// Result is one rendered composite. It is never modified after Render
// returns it.
type Result struct {
	Image *image.RGBA

	// Version is the layer store version the result reflects.
	Version uint64

	// Generation counts renders performed by the compositor.
	Generation uint64

	// Painted is the number of layers that contributed pixels.
	Painted int

	// Active describes the active layer at render time, if any.
	Active    layer.Layer
	HasActive bool
}

// Compositor renders layer snapshots. The result and scratch surfaces are
// allocated once and reused, so Render calls are serialized.
type Compositor struct {
	mu         sync.Mutex
	backend    raster.Backend
	size       int
	result     raster.Surface
	scratch    raster.Surface
	generation uint64
}

// New creates a compositor producing size x size bitmaps. A non-positive
// size selects DefaultSize.
func New(backend raster.Backend, size int) *Compositor {
	if size <= 0 {
		size = DefaultSize
	}
	return &Compositor{backend: backend, size: size}
}

// Size returns the composite side length.
func (c *Compositor) Size() int { return c.size }

// Backend returns the raster backend name.
func (c *Compositor) Backend() string { return c.backend.Name() }

// Render paints every visible layer with an image, from the end of the
// stack to index 0, so index 0 ends up on top.
func (c *Compositor) Render(snap layer.Snapshot) *Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.result == nil {
		c.result = c.backend.NewSurface(c.size, c.size)
		c.scratch = c.backend.NewSurface(c.size, c.size)
	}
	c.result.Clear()

	res := &Result{Version: snap.Version}
	for i := len(snap.Layers) - 1; i >= 0; i-- {
		l := snap.Layers[i]
		if l.Active {
			res.Active, res.HasActive = l, true
		}
		if !l.Paints() {
			continue
		}
		c.scratch.Clear()
		raster.Apply(c.scratch, l.Image, l.Transform)
		c.result.Composite(c.scratch, l.Opacity)
		res.Painted++
	}

	c.generation++
	res.Generation = c.generation
	res.Image = c.result.Image()

	logging.Logger().Debug("composite rendered",
		"version", res.Version, "generation", res.Generation,
		"layers", len(snap.Layers), "painted", res.Painted, "backend", c.backend.Name())
	return res
}

// Close releases the backend surfaces.
func (c *Compositor) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.result == nil {
		return nil
	}
	err := c.result.Close()
	if cerr := c.scratch.Close(); err == nil {
		err = cerr
	}
	c.result, c.scratch = nil, nil
	return err
}
