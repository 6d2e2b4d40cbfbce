package raster

import (
	"image"
	"math"

	"github.com/gogpu/gg"
	"golang.org/x/image/draw"

	"garment-configurator/internal/logging"
	"garment-configurator/pkg/geometry"
)

// GG renders through github.com/gogpu/gg contexts. Rotated placement is
// done with custom brushes, since gg's image drawing only maps axis-aligned
// rectangles; opacity compositing uses gg layers.
type GG struct{}

// Name implements Backend.
func (GG) Name() string { return "gg" }

// NewSurface implements Backend.
func (GG) NewSurface(width, height int) Surface {
	return &ggSurface{dc: gg.NewContext(width, height), w: width, h: height}
}

type ggSurface struct {
	dc   *gg.Context
	w, h int
}

func (s *ggSurface) Size() (int, int) { return s.w, s.h }

func (s *ggSurface) Clear() {
	s.dc.ClearPath()
	s.dc.Clear()
}

func (s *ggSurface) DrawImage(src image.Image, m geometry.AffineTransform) {
	if src == nil || src.Bounds().Empty() {
		return
	}
	inv, ok := m.Inverse()
	if !ok || !m.Finite() {
		logging.Logger().Warn("raster: skipping image with degenerate transform", "backend", "gg")
		return
	}
	smp := newSampler(src)
	w, h := float64(smp.w), float64(smp.h)

	brush := gg.NewCustomBrush(func(x, y float64) gg.RGBA {
		p := inv.Apply(geometry.Pt(x, y))
		c, ok := smp.clamp(p.X, p.Y)
		if !ok {
			return gg.Transparent
		}
		return straight(c)
	})

	corners := [4]geometry.Point2D{
		m.Apply(geometry.Pt(0, 0)),
		m.Apply(geometry.Pt(w, 0)),
		m.Apply(geometry.Pt(w, h)),
		m.Apply(geometry.Pt(0, h)),
	}
	s.dc.ClearPath()
	s.dc.MoveTo(corners[0].X, corners[0].Y)
	for _, p := range corners[1:] {
		s.dc.LineTo(p.X, p.Y)
	}
	s.dc.ClosePath()
	s.dc.SetFillBrush(brush)
	if err := s.dc.Fill(); err != nil {
		logging.Logger().Warn("raster: gg fill failed", "err", err)
	}
}

func (s *ggSurface) FillPattern(tile image.Image, frame geometry.AffineTransform) {
	if tile == nil || tile.Bounds().Empty() {
		return
	}
	inv, ok := frame.Inverse()
	if !ok || !frame.Finite() {
		logging.Logger().Warn("raster: skipping pattern with degenerate frame", "backend", "gg")
		return
	}
	smp := newSampler(tile)
	brush := gg.NewCustomBrush(func(x, y float64) gg.RGBA {
		p := inv.Apply(geometry.Pt(x, y))
		return straight(smp.wrap(p.X, p.Y))
	})
	s.dc.ClearPath()
	s.dc.DrawRectangle(0, 0, float64(s.w), float64(s.h))
	s.dc.SetFillBrush(brush)
	if err := s.dc.Fill(); err != nil {
		logging.Logger().Warn("raster: gg pattern fill failed", "err", err)
	}
}

func (s *ggSurface) Composite(src Surface, opacity float64) {
	if math.IsNaN(opacity) || opacity <= 0 {
		return
	}
	var layer *image.NRGBA
	if g, ok := src.(*ggSurface); ok {
		layer = g.pixels()
	} else {
		img := src.Image()
		layer = image.NewNRGBA(img.Bounds())
		draw.Draw(layer, img.Bounds(), img, img.Bounds().Min, draw.Src)
	}
	s.dc.PushLayer(gg.BlendNormal, math.Min(opacity, 1))
	s.dc.DrawImage(gg.ImageBufFromImage(layer), 0, 0)
	s.dc.PopLayer()
}

// pixels returns the context's straight-alpha bytes.
func (s *ggSurface) pixels() *image.NRGBA {
	img := s.dc.Image()
	if rgba, ok := img.(*image.RGBA); ok {
		return &image.NRGBA{Pix: rgba.Pix, Stride: rgba.Stride, Rect: rgba.Rect}
	}
	out := image.NewNRGBA(img.Bounds())
	draw.Draw(out, out.Bounds(), img, img.Bounds().Min, draw.Src)
	return out
}

// Image premultiplies gg's straight-alpha pixels.
func (s *ggSurface) Image() *image.RGBA {
	px := s.pixels()
	out := image.NewRGBA(px.Bounds())
	draw.Draw(out, out.Bounds(), px, px.Bounds().Min, draw.Src)
	return out
}

func (s *ggSurface) Close() error {
	return s.dc.Close()
}

// straight converts a premultiplied texel to gg's straight-alpha colour.
func straight(c texel) gg.RGBA {
	a := c[3] / 255
	if a <= 0 {
		return gg.Transparent
	}
	return gg.RGBA{R: c[0] / 255 / a, G: c[1] / 255 / a, B: c[2] / 255 / a, A: a}
}
