// Package layer holds the ordered stack of image layers that make up a
// garment texture, and the only legal way to change it.
//
// Index 0 of the stack is the topmost layer: it is painted last.
package layer

import (
	"fmt"
	"image"

	"garment-configurator/internal/transform"
)

// ID identifies a layer for the lifetime of a store.
type ID int64

// Layer is one image contribution to the composite.
type Layer struct {
	ID        ID
	Name      string
	Image     image.Image
	Source    string
	Opacity   float64
	Visible   bool
	Active    bool
	Material  MaterialType
	Transform transform.Transform
}

// HasImage reports whether an image has been assigned.
func (l Layer) HasImage() bool {
	return l.Image != nil && !l.Image.Bounds().Empty()
}

// Paints reports whether the layer contributes any pixels to a composite.
func (l Layer) Paints() bool {
	return l.Visible && l.Opacity > 0 && l.HasImage()
}

func (l Layer) String() string {
	return fmt.Sprintf("layer %d %q", l.ID, l.Name)
}

func newLayer(id ID, name string) *Layer {
	return &Layer{
		ID:        id,
		Name:      name,
		Opacity:   1,
		Visible:   true,
		Material:  MaterialPrint,
		Transform: transform.Identity(),
	}
}

// Releaser is implemented by images that hold resources beyond their pixel
// memory. The store calls Release when it drops its reference.
type Releaser interface {
	Release()
}

func release(img image.Image) {
	if r, ok := img.(Releaser); ok {
		r.Release()
	}
}

// Direction selects the neighbour MoveLayer swaps with.
type Direction int

const (
	// Up moves a layer towards index 0, i.e. higher in the paint order.
	Up Direction = iota
	// Down moves a layer towards the end of the stack.
	Down
)

func (d Direction) String() string {
	if d == Up {
		return "up"
	}
	return "down"
}
