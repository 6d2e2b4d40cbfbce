// Package geometry provides the 2D points, sizes and affine transforms used
// by the compositor and the transform editor.
package geometry

import (
	"math"
)

// Point2D represents a 2D point with floating-point coordinates.
type Point2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Pt is shorthand for Point2D{X: x, Y: y}.
func Pt(x, y float64) Point2D {
	return Point2D{X: x, Y: y}
}

// Distance returns the Euclidean distance to another point.
func (p Point2D) Distance(other Point2D) float64 {
	return math.Hypot(p.X-other.X, p.Y-other.Y)
}

// Add returns the sum of two points.
func (p Point2D) Add(other Point2D) Point2D {
	return Point2D{X: p.X + other.X, Y: p.Y + other.Y}
}

// Sub returns the difference of two points.
func (p Point2D) Sub(other Point2D) Point2D {
	return Point2D{X: p.X - other.X, Y: p.Y - other.Y}
}

// Angle returns the angle of the vector from origin to p, in radians.
func (p Point2D) Angle() float64 {
	return math.Atan2(p.Y, p.X)
}

// Size represents a 2D size.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Center returns the midpoint of a box of this size anchored at the origin.
func (s Size) Center() Point2D {
	return Point2D{X: s.Width / 2, Y: s.Height / 2}
}

// Empty reports whether either dimension is not positive.
func (s Size) Empty() bool {
	return !(s.Width > 0 && s.Height > 0)
}
