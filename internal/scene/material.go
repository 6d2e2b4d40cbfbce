package scene

import (
	"image"
	"image/color"
	"sync/atomic"

	"garment-configurator/pkg/colorutil"
)

// Wrap is a texture addressing mode.
type Wrap int

const (
	ClampToEdge Wrap = iota
	Repeat
	MirroredRepeat
)

func (w Wrap) String() string {
	switch w {
	case Repeat:
		return "repeat"
	case MirroredRepeat:
		return "mirrored-repeat"
	default:
		return "clamp"
	}
}

// ParseWrap maps config strings to a Wrap.
func ParseWrap(s string) Wrap {
	switch s {
	case "repeat":
		return Repeat
	case "mirror", "mirrored-repeat":
		return MirroredRepeat
	}
	return ClampToEdge
}

// Side selects which faces of a region a material renders.
type Side int

const (
	FrontSide Side = iota
	BackSide
	DoubleSide
)

var textureIDs atomic.Uint64

// Texture is a CPU-side bitmap the renderer samples. NeedsUpdate asks the
// renderer to re-upload it.
type Texture struct {
	ID          uint64
	Image       *image.RGBA
	WrapS       Wrap
	WrapT       Wrap
	FlipY       bool
	NeedsUpdate bool
	Version     uint64
}

// NewTexture wraps img. Each texture gets a process-unique ID.
func NewTexture(img *image.RGBA) *Texture {
	return &Texture{
		ID:          textureIDs.Add(1),
		Image:       img,
		WrapS:       ClampToEdge,
		WrapT:       ClampToEdge,
		FlipY:       true,
		NeedsUpdate: true,
		Version:     1,
	}
}

// Replace swaps the bitmap and flags the texture for re-upload.
func (t *Texture) Replace(img *image.RGBA) {
	t.Image = img
	t.Version++
	t.NeedsUpdate = true
}

// Material is a physically based surface description.
type Material struct {
	Name  string
	Map   *Texture
	Color color.NRGBA

	Transparent bool
	Side        Side
	DepthTest   bool
	DepthWrite  bool
	AlphaTest   float64

	Roughness          float64
	Metalness          float64
	NormalScale        float64
	Clearcoat          float64
	ClearcoatRoughness float64
	Sheen              float64
	SheenRoughness     float64

	NeedsUpdate bool
}

// BaseMaterial returns an opaque fabric material in the given colour.
func BaseMaterial(name string, c color.NRGBA) *Material {
	if c == (color.NRGBA{}) {
		c = colorutil.Fabric
	}
	return &Material{
		Name:        name,
		Color:       c,
		Side:        FrontSide,
		DepthTest:   true,
		DepthWrite:  true,
		Roughness:   0.9,
		NormalScale: 1,
		NeedsUpdate: true,
	}
}

// ResourceReleaser frees renderer-side resources derived from a texture or
// material once the scene stops referencing it.
type ResourceReleaser interface {
	ReleaseTexture(*Texture)
	ReleaseMaterial(*Material)
}
