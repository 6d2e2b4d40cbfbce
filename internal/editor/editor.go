// Package editor implements direct manipulation of the active layer's
// transform: drag to move, rotate or scale, plus flip, reset and repeat
// toggles. It holds no transform state of its own; every change is written
// straight back to the layer store.
package editor

import (
	"fmt"
	"math"
	"strings"

	"garment-configurator/internal/layer"
	"garment-configurator/internal/transform"
	"garment-configurator/pkg/geometry"
)

// Mode selects what a drag does.
type Mode int

const (
	ModeMove Mode = iota
	ModeRotate
	ModeScale
)

// Modes lists the drag modes in toolbar order.
var Modes = []Mode{ModeMove, ModeRotate, ModeScale}

func (m Mode) String() string {
	switch m {
	case ModeMove:
		return "move"
	case ModeRotate:
		return "rotate"
	case ModeScale:
		return "scale"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode accepts the names produced by String.
func ParseMode(s string) (Mode, error) {
	for _, m := range Modes {
		if strings.EqualFold(s, m.String()) {
			return m, nil
		}
	}
	return ModeMove, fmt.Errorf("unknown editor mode %q", s)
}

// State is the drag state.
type State int

const (
	Idle State = iota
	Dragging
)

// Axis selects a flip direction.
type Axis int

const (
	AxisX Axis = iota
	AxisY
)

// Store is the part of the layer store the editor drives.
type Store interface {
	Active() (layer.Layer, bool)
	Layer(id layer.ID) (layer.Layer, bool)
	SetTransform(id layer.ID, patch transform.Patch)
}

// Editor is the drag state machine. It is not safe for concurrent use; the
// UI drives it from its event goroutine.
type Editor struct {
	store    Store
	mode     Mode
	state    State
	viewport geometry.Size

	target layer.ID
	last   geometry.Point2D
}

// New creates an idle editor in move mode.
func New(store Store, viewport geometry.Size) *Editor {
	return &Editor{store: store, viewport: viewport}
}

// SetViewport updates the preview size pointer positions are measured in.
func (e *Editor) SetViewport(s geometry.Size) { e.viewport = s }

// Viewport returns the preview size.
func (e *Editor) Viewport() geometry.Size { return e.viewport }

// SetMode changes the drag mode. An ongoing drag continues in the new mode.
func (e *Editor) SetMode(m Mode) { e.mode = m }

// Mode returns the drag mode.
func (e *Editor) Mode() Mode { return e.mode }

// State returns the drag state.
func (e *Editor) State() State { return e.state }

// PointerDown starts a drag on the active layer. Without an active layer the
// editor stays idle.
func (e *Editor) PointerDown(p geometry.Point2D) {
	active, ok := e.store.Active()
	if !ok {
		return
	}
	e.target = active.ID
	e.last = p
	e.state = Dragging
}

// PointerMove applies the delta from the previous pointer position. It
// reports whether a transform update was written.
func (e *Editor) PointerMove(p geometry.Point2D) bool {
	if e.state != Dragging {
		return false
	}
	prev := e.last
	e.last = p

	l, ok := e.store.Layer(e.target)
	if !ok {
		// the layer went away mid-drag
		e.state = Idle
		return false
	}
	t := l.Transform

	var patch transform.Patch
	switch e.mode {
	case ModeMove:
		dx, dy := transform.ToNormalized(p.X-prev.X, p.Y-prev.Y, e.viewport.Width, e.viewport.Height)
		if dx == 0 && dy == 0 {
			return false
		}
		ox, oy := t.OffsetX+dx, t.OffsetY+dy
		patch.OffsetX, patch.OffsetY = &ox, &oy

	case ModeRotate:
		c := e.viewport.Center()
		delta := (p.Sub(c).Angle() - prev.Sub(c).Angle()) * 180 / math.Pi
		delta = transform.NormalizeDegrees(delta)
		if delta == 0 {
			return false
		}
		rot := transform.NormalizeDegrees(t.RotationDegrees + delta)
		patch.RotationDegrees = &rot

	case ModeScale:
		c := e.viewport.Center()
		before := prev.Distance(c)
		after := p.Distance(c)
		if before < 1e-9 || after == before {
			return false
		}
		s := transform.ClampScale(t.Scale * after / before)
		patch.Scale = &s

	default:
		return false
	}

	e.store.SetTransform(e.target, patch)
	return true
}

// PointerUp ends the drag.
func (e *Editor) PointerUp() { e.state = Idle }

// PointerLeave ends the drag when the pointer exits the preview.
func (e *Editor) PointerLeave() { e.state = Idle }

// Flip negates the flip sign on one axis of the active layer.
func (e *Editor) Flip(axis Axis) {
	l, ok := e.store.Active()
	if !ok {
		return
	}
	var patch transform.Patch
	if axis == AxisX {
		f := -l.Transform.FlipX
		patch.FlipX = &f
	} else {
		f := -l.Transform.FlipY
		patch.FlipY = &f
	}
	e.store.SetTransform(l.ID, patch)
}

// Reset restores the identity transform, which also turns repeat off.
func (e *Editor) Reset() {
	l, ok := e.store.Active()
	if !ok {
		return
	}
	e.store.SetTransform(l.ID, transform.Full(transform.Identity()))
}

// SetRepeat toggles tiling without touching offset, scale or rotation.
func (e *Editor) SetRepeat(on bool) {
	l, ok := e.store.Active()
	if !ok {
		return
	}
	e.store.SetTransform(l.ID, transform.Patch{Repeat: &on})
}

// Readout is the numeric view of a transform shown next to the preview.
type Readout struct {
	X, Y            float64
	ScalePercent    float64
	RotationDegrees float64
	Repeat          bool
	FlipX, FlipY    int
}

func (r Readout) String() string {
	return fmt.Sprintf("Position: %.2f, %.2f  Scale: %.0f%%  Rotation: %.0f°",
		r.X, r.Y, r.ScalePercent, r.RotationDegrees)
}

// NewReadout converts a transform for display.
func NewReadout(t transform.Transform) Readout {
	return Readout{
		X:               t.OffsetX,
		Y:               t.OffsetY,
		ScalePercent:    t.Scale * 100,
		RotationDegrees: t.RotationDegrees,
		Repeat:          t.Repeat,
		FlipX:           t.FlipX,
		FlipY:           t.FlipY,
	}
}

// Readout returns the active layer's readout.
func (e *Editor) Readout() (Readout, bool) {
	l, ok := e.store.Active()
	if !ok {
		return Readout{}, false
	}
	return NewReadout(l.Transform), true
}
