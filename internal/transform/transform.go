// Package transform describes how a layer image is placed inside the
// composite: offset, rotation, scale, flip and repeat tiling.
//
// Offsets are normalized to the canvas (1.0 = one canvas width/height).
// Rotation is kept in degrees in the range (-180, 180].
package transform

import (
	"math"

	"garment-configurator/pkg/geometry"
)

// Scale limits applied at every mutation point.
const (
	MinScale = 0.1
	MaxScale = 5.0
)

// PlacementFraction is the share of the canvas a non-repeating image covers
// at scale 1.
const PlacementFraction = 0.8

// tileDivisor sets the repeat tile size: canvas / (tileDivisor / scale).
const tileDivisor = 4.0

// Transform is the placement of one layer image.
type Transform struct {
	OffsetX         float64 `json:"offsetX"`
	OffsetY         float64 `json:"offsetY"`
	Scale           float64 `json:"scale"`
	RotationDegrees float64 `json:"rotation"`
	Repeat          bool    `json:"repeat"`
	FlipX           int     `json:"flipX"`
	FlipY           int     `json:"flipY"`
}

// Identity returns the transform a new or reset layer starts with.
func Identity() Transform {
	return Transform{Scale: 1, FlipX: 1, FlipY: 1}
}

// Patch carries a partial update. Nil fields are left untouched by Merge.
type Patch struct {
	OffsetX         *float64
	OffsetY         *float64
	Scale           *float64
	RotationDegrees *float64
	Repeat          *bool
	FlipX           *int
	FlipY           *int
}

// Empty reports whether the patch sets no field.
func (p Patch) Empty() bool {
	return p.OffsetX == nil && p.OffsetY == nil && p.Scale == nil &&
		p.RotationDegrees == nil && p.Repeat == nil && p.FlipX == nil && p.FlipY == nil
}

// Full returns a patch that sets every field to the values of t.
func Full(t Transform) Patch {
	return Patch{
		OffsetX:         &t.OffsetX,
		OffsetY:         &t.OffsetY,
		Scale:           &t.Scale,
		RotationDegrees: &t.RotationDegrees,
		Repeat:          &t.Repeat,
		FlipX:           &t.FlipX,
		FlipY:           &t.FlipY,
	}
}

// Merge applies the set fields of p to t and returns the sanitized result.
func (t Transform) Merge(p Patch) Transform {
	if p.OffsetX != nil {
		t.OffsetX = *p.OffsetX
	}
	if p.OffsetY != nil {
		t.OffsetY = *p.OffsetY
	}
	if p.Scale != nil {
		t.Scale = *p.Scale
	}
	if p.RotationDegrees != nil {
		t.RotationDegrees = *p.RotationDegrees
	}
	if p.Repeat != nil {
		t.Repeat = *p.Repeat
	}
	if p.FlipX != nil {
		t.FlipX = *p.FlipX
	}
	if p.FlipY != nil {
		t.FlipY = *p.FlipY
	}
	return t.Sanitize()
}

// Sanitize clamps degenerate values so nothing downstream has to guard
// against them.
func (t Transform) Sanitize() Transform {
	t.OffsetX = finiteOr(t.OffsetX, 0)
	t.OffsetY = finiteOr(t.OffsetY, 0)
	t.Scale = ClampScale(t.Scale)
	t.RotationDegrees = NormalizeDegrees(finiteOr(t.RotationDegrees, 0))
	t.FlipX = normalizeFlip(t.FlipX)
	t.FlipY = normalizeFlip(t.FlipY)
	return t
}

// ClampScale limits s to [MinScale, MaxScale]. Non-positive and NaN values
// become MinScale.
func ClampScale(s float64) float64 {
	switch {
	case math.IsNaN(s) || s <= MinScale:
		return MinScale
	case s > MaxScale:
		return MaxScale
	}
	return s
}

// NormalizeDegrees maps any angle into (-180, 180].
func NormalizeDegrees(deg float64) float64 {
	if math.IsNaN(deg) || math.IsInf(deg, 0) {
		return 0
	}
	d := math.Mod(deg, 360)
	if d <= -180 {
		d += 360
	} else if d > 180 {
		d -= 360
	}
	if d == 0 {
		return 0 // drop negative zero
	}
	return d
}

// ToNormalized converts a pixel delta measured in a viewport into the
// normalized offset units stored on a layer.
func ToNormalized(dx, dy, viewportWidth, viewportHeight float64) (nx, ny float64) {
	if viewportWidth > 0 {
		nx = dx / viewportWidth
	}
	if viewportHeight > 0 {
		ny = dy / viewportHeight
	}
	return nx, ny
}

// Radians returns the rotation in radians.
func (t Transform) Radians() float64 {
	return t.RotationDegrees * math.Pi / 180
}

// Placement maps source image pixels onto a canvas of the given size for a
// non-repeating layer: translate to the centre, rotate, scale with flip, then
// draw the image at PlacementFraction of the canvas, shifted by the offset in
// the rotated frame.
func (t Transform) Placement(imgW, imgH, canvasW, canvasH float64) geometry.AffineTransform {
	t = t.Sanitize()
	if imgW <= 0 || imgH <= 0 {
		return geometry.AffineTransform{}
	}
	drawW := canvasW * PlacementFraction
	drawH := canvasH * PlacementFraction
	return geometry.Translation(canvasW/2, canvasH/2).
		Then(geometry.Rotation(t.Radians())).
		Then(geometry.Scale(float64(t.FlipX)*t.Scale, float64(t.FlipY)*t.Scale)).
		Then(geometry.Translation(-drawW/2+t.OffsetX*canvasW, -drawH/2+t.OffsetY*canvasH)).
		Then(geometry.Scale(drawW/imgW, drawH/imgH))
}

// TileSize returns the side lengths of one repeat tile. Scale is clamped
// first so the division is always defined.
func (t Transform) TileSize(canvasW, canvasH float64) (w, h float64) {
	s := ClampScale(t.Scale)
	return canvasW / (tileDivisor / s), canvasH / (tileDivisor / s)
}

// PatternFrame maps tile space onto the canvas for a repeating layer. The
// rotation and flip act on the pattern's own coordinate frame, so tile edges
// stay aligned to the tile axes rather than the canvas axes.
func (t Transform) PatternFrame(canvasW, canvasH float64) geometry.AffineTransform {
	t = t.Sanitize()
	return geometry.Translation(t.OffsetX*canvasW, t.OffsetY*canvasH).
		Then(geometry.Rotation(t.Radians())).
		Then(geometry.Scale(float64(t.FlipX), float64(t.FlipY)))
}

func finiteOr(v, fallback float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return v
}

func normalizeFlip(f int) int {
	if f < 0 {
		return -1
	}
	return 1
}
