package raster

import (
	"image"
	"math"

	"github.com/nfnt/resize"

	"garment-configurator/internal/transform"
)

// Apply draws img onto s under transform t. A non-repeating layer is placed
// once around the surface centre; a repeating one is resampled into a tile
// sized from the scale and tiled across the whole surface. A nil image draws
// nothing.
func Apply(s Surface, img image.Image, t transform.Transform) {
	if img == nil || img.Bounds().Empty() {
		return
	}
	t = t.Sanitize()
	w, h := s.Size()
	cw, ch := float64(w), float64(h)

	if !t.Repeat {
		b := img.Bounds()
		s.DrawImage(img, t.Placement(float64(b.Dx()), float64(b.Dy()), cw, ch))
		return
	}

	tile := Tile(img, t, w, h)
	if tile == nil {
		return
	}
	s.FillPattern(tile, t.PatternFrame(cw, ch))
}

// Tile resamples img into one repeat tile for transform t on a canvas of
// the given size. It returns nil if the tile would be smaller than a pixel.
func Tile(img image.Image, t transform.Transform, canvasW, canvasH int) image.Image {
	tw, th := t.TileSize(float64(canvasW), float64(canvasH))
	iw, ih := uint(math.Round(tw)), uint(math.Round(th))
	if iw == 0 || ih == 0 {
		return nil
	}
	return resize.Resize(iw, ih, img, resize.Bilinear)
}
