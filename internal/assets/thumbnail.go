package assets

import (
	"image"

	"github.com/disintegration/imaging"
)

// Thumbnail fits img inside a size x size box, keeping its aspect ratio.
func Thumbnail(img image.Image, size int) *image.NRGBA {
	if img == nil || size <= 0 || img.Bounds().Empty() {
		return image.NewNRGBA(image.Rect(0, 0, 0, 0))
	}
	return imaging.Fit(img, size, size, imaging.Lanczos)
}
