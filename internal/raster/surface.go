// Package raster is the 2D drawing capability the compositor renders
// through. A Backend creates Surfaces; a Surface can be cleared, drawn into
// with an affine-placed image or a transformed repeating tile, composited
// onto another surface with an opacity, and read back as pixels.
//
// Two backends are provided: "software", built on golang.org/x/image/draw,
// and "gg", built on github.com/gogpu/gg.
package raster

import (
	"errors"
	"fmt"
	"image"
	"sort"
	"strings"

	"garment-configurator/pkg/geometry"
)

// ErrUnknownBackend is returned by New for unregistered backend names.
var ErrUnknownBackend = errors.New("unknown raster backend")

// Surface is an RGBA drawing target with premultiplied alpha.
type Surface interface {
	// Size returns the surface dimensions in pixels.
	Size() (width, height int)

	// Clear resets every pixel to transparent.
	Clear()

	// DrawImage paints src over the surface. m maps source pixel
	// coordinates (relative to src.Bounds().Min) to surface coordinates.
	DrawImage(src image.Image, m geometry.AffineTransform)

	// FillPattern covers the whole surface with tile repeated infinitely
	// in pattern space. frame maps pattern space to surface coordinates.
	FillPattern(tile image.Image, frame geometry.AffineTransform)

	// Composite paints src over the surface with the given opacity.
	Composite(src Surface, opacity float64)

	// Image returns a copy of the current pixels.
	Image() *image.RGBA

	// Close releases backend resources. The surface must not be used after.
	Close() error
}

// Backend creates surfaces.
type Backend interface {
	Name() string
	NewSurface(width, height int) Surface
}

var backends = map[string]func() Backend{
	"software": func() Backend { return Software{} },
	"gg":       func() Backend { return GG{} },
}

// New returns the backend registered under name. An empty name selects the
// software backend.
func New(name string) (Backend, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = "software"
	}
	mk, ok := backends[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (have %s)", ErrUnknownBackend, name, strings.Join(Names(), ", "))
	}
	return mk(), nil
}

// Names lists the registered backends.
func Names() []string {
	out := make([]string, 0, len(backends))
	for k := range backends {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
