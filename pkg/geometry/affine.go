package geometry

import (
	"math"

	"golang.org/x/image/math/f64"
	"gonum.org/v1/gonum/mat"
)

// AffineTransform represents a 2x3 affine transformation matrix.
// [a b tx]
// [c d ty]
type AffineTransform struct {
	A, B, TX float64
	C, D, TY float64
}

// Identity returns the identity transform.
func Identity() AffineTransform {
	return AffineTransform{A: 1, D: 1}
}

// Translation returns a translation transform.
func Translation(tx, ty float64) AffineTransform {
	return AffineTransform{A: 1, D: 1, TX: tx, TY: ty}
}

// Rotation returns a rotation transform around the origin. Positive angles
// turn clockwise on a y-down raster.
func Rotation(radians float64) AffineTransform {
	cos := math.Cos(radians)
	sin := math.Sin(radians)
	return AffineTransform{A: cos, B: -sin, C: sin, D: cos}
}

// Scale returns a scaling transform.
func Scale(sx, sy float64) AffineTransform {
	return AffineTransform{A: sx, D: sy}
}

// Apply applies the transform to a point.
func (t AffineTransform) Apply(p Point2D) Point2D {
	return Point2D{
		X: t.A*p.X + t.B*p.Y + t.TX,
		Y: t.C*p.X + t.D*p.Y + t.TY,
	}
}

// Compose returns t * other: other is applied first, then t.
func (t AffineTransform) Compose(other AffineTransform) AffineTransform {
	var r mat.Dense
	r.Mul(t.dense(), other.dense())
	return fromDense(&r)
}

// Then is a convenience for building a chain left to right, the way a 2D
// context accumulates translate/rotate/scale calls.
func (t AffineTransform) Then(next AffineTransform) AffineTransform {
	return t.Compose(next)
}

// Inverse returns the inverse transform. ok is false when the matrix is
// singular or too badly conditioned to invert reliably.
func (t AffineTransform) Inverse() (inv AffineTransform, ok bool) {
	det := t.A*t.D - t.B*t.C
	if math.Abs(det) < 1e-10 || math.IsNaN(det) {
		return AffineTransform{}, false
	}
	var r mat.Dense
	if err := r.Inverse(t.dense()); err != nil {
		// mat.Condition is returned alongside a usable result for
		// near-singular inputs; anything else means no inverse.
		if _, cond := err.(mat.Condition); !cond {
			return AffineTransform{}, false
		}
	}
	return fromDense(&r), true
}

// Aff3 converts the transform into the matrix type used by
// golang.org/x/image/draw.
func (t AffineTransform) Aff3() f64.Aff3 {
	return f64.Aff3{t.A, t.B, t.TX, t.C, t.D, t.TY}
}

// Finite reports whether every coefficient is a finite number.
func (t AffineTransform) Finite() bool {
	for _, v := range [...]float64{t.A, t.B, t.TX, t.C, t.D, t.TY} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (t AffineTransform) dense() *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		t.A, t.B, t.TX,
		t.C, t.D, t.TY,
		0, 0, 1,
	})
}

func fromDense(m *mat.Dense) AffineTransform {
	return AffineTransform{
		A: m.At(0, 0), B: m.At(0, 1), TX: m.At(0, 2),
		C: m.At(1, 0), D: m.At(1, 1), TY: m.At(1, 2),
	}
}
