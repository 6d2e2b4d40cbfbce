package raster

import (
	"image"
	"math"

	"github.com/anthonynsimon/bild/clone"
)

// texel is a premultiplied colour with components in [0, 255].
type texel [4]float64

// sampler reads a source image with bilinear filtering.
type sampler struct {
	img  *image.RGBA
	w, h int
}

func newSampler(src image.Image) sampler {
	rgba, ok := src.(*image.RGBA)
	if !ok {
		rgba = clone.AsRGBA(src)
	}
	b := rgba.Bounds()
	return sampler{img: rgba, w: b.Dx(), h: b.Dy()}
}

func (s sampler) at(x, y int) texel {
	i := s.img.PixOffset(s.img.Rect.Min.X+x, s.img.Rect.Min.Y+y)
	p := s.img.Pix[i : i+4 : i+4]
	return texel{float64(p[0]), float64(p[1]), float64(p[2]), float64(p[3])}
}

// wrap samples with repeat addressing on both axes. u and v are in pixels.
func (s sampler) wrap(u, v float64) texel {
	if s.w == 0 || s.h == 0 {
		return texel{}
	}
	u -= 0.5
	v -= 0.5
	x0 := math.Floor(u)
	y0 := math.Floor(v)
	fx := u - x0
	fy := v - y0
	ix0 := mod(int(x0), s.w)
	iy0 := mod(int(y0), s.h)
	ix1 := (ix0 + 1) % s.w
	iy1 := (iy0 + 1) % s.h
	return lerp4(s.at(ix0, iy0), s.at(ix1, iy0), s.at(ix0, iy1), s.at(ix1, iy1), fx, fy)
}

// clamp samples with edge clamping. ok is false when (u, v) lies outside
// the image rectangle.
func (s sampler) clamp(u, v float64) (texel, bool) {
	if u < 0 || v < 0 || u >= float64(s.w) || v >= float64(s.h) || s.w == 0 || s.h == 0 {
		return texel{}, false
	}
	u -= 0.5
	v -= 0.5
	x0 := math.Floor(u)
	y0 := math.Floor(v)
	fx := u - x0
	fy := v - y0
	ix0 := clampInt(int(x0), 0, s.w-1)
	iy0 := clampInt(int(y0), 0, s.h-1)
	ix1 := clampInt(int(x0)+1, 0, s.w-1)
	iy1 := clampInt(int(y0)+1, 0, s.h-1)
	return lerp4(s.at(ix0, iy0), s.at(ix1, iy0), s.at(ix0, iy1), s.at(ix1, iy1), fx, fy), true
}

func lerp4(c00, c10, c01, c11 texel, fx, fy float64) texel {
	var out texel
	for i := range out {
		top := c00[i] + (c10[i]-c00[i])*fx
		bot := c01[i] + (c11[i]-c01[i])*fx
		out[i] = top + (bot-top)*fy
	}
	return out
}

func mod(a, n int) int {
	a %= n
	if a < 0 {
		a += n
	}
	return a
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func to8(v float64) uint8 {
	v = math.Round(v)
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v)
}
