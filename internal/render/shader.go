package render

import (
	"math"

	"github.com/fogleman/fauxgl"

	"garment-configurator/internal/scene"
)

// decalShader samples a published texture with the material's addressing
// and alpha cutoff, lit by a single directional light.
type decalShader struct {
	matrix fauxgl.Matrix
	light  fauxgl.Vector
	eye    fauxgl.Vector
	tex    fauxgl.Texture
	tint   fauxgl.Color

	wrapS, wrapT scene.Wrap
	flipY        bool
	alphaTest    float64
	side         scene.Side
	ambient      float64
}

func (s *decalShader) Vertex(v fauxgl.Vertex) fauxgl.Vertex {
	v.Output = s.matrix.MulPositionW(v.Position)
	return v
}

func (s *decalShader) Fragment(v fauxgl.Vertex) fauxgl.Color {
	n := v.Normal.Normalize()
	facing := n.Dot(s.eye.Sub(v.Position))
	switch s.side {
	case scene.FrontSide:
		if facing < 0 {
			return fauxgl.Discard
		}
	case scene.BackSide:
		if facing > 0 {
			return fauxgl.Discard
		}
		n = n.Negate()
	}

	u := address(v.Texture.X, s.wrapS)
	w := address(v.Texture.Y, s.wrapT)
	if !s.flipY {
		// fauxgl samples with v pointing up; unflipped textures keep image
		// row 0 at v = 0.
		w = 1 - w
	}
	c := s.tex.BilinearSample(u, w)
	if c.A < s.alphaTest || c.A <= 0 {
		return fauxgl.Discard
	}

	// image.RGBA samples arrive premultiplied
	c = fauxgl.Color{R: c.R / c.A, G: c.G / c.A, B: c.B / c.A, A: c.A}
	diffuse := math.Max(n.Dot(s.light), 0)
	k := s.ambient + (1-s.ambient)*diffuse
	return fauxgl.Color{
		R: c.R * s.tint.R * k,
		G: c.G * s.tint.G * k,
		B: c.B * s.tint.B * k,
		A: c.A,
	}
}

// address maps a texture coordinate into [0, 1) according to mode.
func address(t float64, mode scene.Wrap) float64 {
	switch mode {
	case scene.Repeat:
		return t - math.Floor(t)
	case scene.MirroredRepeat:
		f := t - 2*math.Floor(t/2)
		if f > 1 {
			f = 2 - f
		}
		return math.Min(f, 1-1e-9)
	default:
		return math.Max(0, math.Min(t, 1-1e-9))
	}
}
