package raster

import (
	"image"
	"image/color"
	"math"

	xdraw "golang.org/x/image/draw"

	"garment-configurator/internal/logging"
	"garment-configurator/pkg/geometry"
)

// Software renders on the CPU with golang.org/x/image/draw.
type Software struct{}

// Name implements Backend.
func (Software) Name() string { return "software" }

// NewSurface implements Backend.
func (Software) NewSurface(width, height int) Surface {
	return &softwareSurface{img: image.NewRGBA(image.Rect(0, 0, width, height))}
}

type softwareSurface struct {
	img *image.RGBA
}

func (s *softwareSurface) Size() (int, int) {
	b := s.img.Bounds()
	return b.Dx(), b.Dy()
}

func (s *softwareSurface) Clear() {
	clear(s.img.Pix)
}

func (s *softwareSurface) DrawImage(src image.Image, m geometry.AffineTransform) {
	if src == nil || src.Bounds().Empty() {
		return
	}
	if _, ok := m.Inverse(); !ok || !m.Finite() {
		logging.Logger().Warn("raster: skipping image with degenerate transform")
		return
	}
	// x/image/draw maps from the source rectangle's own coordinates.
	origin := src.Bounds().Min
	s2d := m.Compose(geometry.Translation(-float64(origin.X), -float64(origin.Y)))
	xdraw.BiLinear.Transform(s.img, s2d.Aff3(), src, src.Bounds(), xdraw.Over, nil)
}

func (s *softwareSurface) FillPattern(tile image.Image, frame geometry.AffineTransform) {
	if tile == nil || tile.Bounds().Empty() {
		return
	}
	inv, ok := frame.Inverse()
	if !ok || !frame.Finite() {
		logging.Logger().Warn("raster: skipping pattern with degenerate frame")
		return
	}
	smp := newSampler(tile)
	b := s.img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			p := inv.Apply(geometry.Pt(float64(x)+0.5, float64(y)+0.5))
			c := smp.wrap(p.X, p.Y)
			i := s.img.PixOffset(x, y)
			overPixel(s.img.Pix[i:i+4:i+4], c)
		}
	}
}

func (s *softwareSurface) Composite(src Surface, opacity float64) {
	if math.IsNaN(opacity) || opacity <= 0 {
		return
	}
	var srcImg *image.RGBA
	if ss, ok := src.(*softwareSurface); ok {
		srcImg = ss.img
	} else {
		srcImg = src.Image()
	}
	r := s.img.Bounds().Intersect(srcImg.Bounds())
	if opacity >= 1 {
		xdraw.Draw(s.img, r, srcImg, r.Min, xdraw.Over)
		return
	}
	mask := image.NewUniform(color.Alpha16{A: uint16(math.Round(opacity * 0xffff))})
	xdraw.DrawMask(s.img, r, srcImg, r.Min, mask, image.Point{}, xdraw.Over)
}

func (s *softwareSurface) Image() *image.RGBA {
	out := image.NewRGBA(s.img.Bounds())
	copy(out.Pix, s.img.Pix)
	return out
}

func (s *softwareSurface) Close() error {
	s.img = image.NewRGBA(image.Rectangle{})
	return nil
}

// overPixel blends premultiplied colour c over the 4-byte pixel dst.
func overPixel(dst []uint8, c texel) {
	a := c[3] / 255
	if a >= 1 {
		dst[0], dst[1], dst[2], dst[3] = to8(c[0]), to8(c[1]), to8(c[2]), 255
		return
	}
	if a <= 0 {
		return
	}
	k := 1 - a
	dst[0] = to8(c[0] + float64(dst[0])*k)
	dst[1] = to8(c[1] + float64(dst[1])*k)
	dst[2] = to8(c[2] + float64(dst[2])*k)
	dst[3] = to8(c[3] + float64(dst[3])*k)
}
