package editor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"garment-configurator/internal/layer"
	"garment-configurator/internal/transform"
	"garment-configurator/pkg/geometry"
)

var viewport = geometry.Size{Width: 400, Height: 200}

func setup(t *testing.T) (*Editor, *layer.Store, layer.ID) {
	t.Helper()
	s := layer.NewStore()
	id := s.AddLayer()
	return New(s, viewport), s, id
}

func current(t *testing.T, s *layer.Store, id layer.ID) transform.Transform {
	t.Helper()
	l, ok := s.Layer(id)
	require.True(t, ok)
	return l.Transform
}

func TestStateMachine(t *testing.T) {
	e, _, _ := setup(t)
	assert.Equal(t, Idle, e.State())
	assert.False(t, e.PointerMove(geometry.Pt(10, 10)), "moves while idle are ignored")

	e.PointerDown(geometry.Pt(0, 0))
	assert.Equal(t, Dragging, e.State())
	e.PointerUp()
	assert.Equal(t, Idle, e.State())

	e.PointerDown(geometry.Pt(0, 0))
	e.PointerLeave()
	assert.Equal(t, Idle, e.State())
}

func TestNoActiveLayerStaysIdle(t *testing.T) {
	e := New(layer.NewStore(), viewport)
	e.PointerDown(geometry.Pt(1, 1))
	assert.Equal(t, Idle, e.State())
	assert.NotPanics(t, func() {
		e.Flip(AxisX)
		e.Reset()
		e.SetRepeat(true)
	})
	_, ok := e.Readout()
	assert.False(t, ok)
}

func TestMoveUsesIncrementalDeltas(t *testing.T) {
	e, s, id := setup(t)
	e.PointerDown(geometry.Pt(100, 100))
	require.True(t, e.PointerMove(geometry.Pt(140, 110)))
	require.True(t, e.PointerMove(geometry.Pt(180, 120)))
	e.PointerUp()

	tr := current(t, s, id)
	assert.InDelta(t, 80.0/400, tr.OffsetX, 1e-12)
	assert.InDelta(t, 20.0/200, tr.OffsetY, 1e-12)
}

func TestRotateAccumulatesAngleFromCentre(t *testing.T) {
	e, s, id := setup(t)
	e.SetMode(ModeRotate)
	c := viewport.Center()

	e.PointerDown(geometry.Pt(c.X+50, c.Y))
	e.PointerMove(geometry.Pt(c.X, c.Y+50)) // +90
	e.PointerMove(geometry.Pt(c.X-50, c.Y)) // +90
	e.PointerMove(geometry.Pt(c.X, c.Y-50)) // +90, wraps
	e.PointerUp()

	assert.InDelta(t, -90, current(t, s, id).RotationDegrees, 1e-9)
}

func TestScaleRatioAndClamp(t *testing.T) {
	e, s, id := setup(t)
	e.SetMode(ModeScale)
	c := viewport.Center()

	e.PointerDown(geometry.Pt(c.X+10, c.Y))
	e.PointerMove(geometry.Pt(c.X+20, c.Y))
	assert.InDelta(t, 2, current(t, s, id).Scale, 1e-12)

	e.PointerMove(geometry.Pt(c.X+100, c.Y)) // x5 more, clamped
	assert.Equal(t, transform.MaxScale, current(t, s, id).Scale)

	e.PointerMove(geometry.Pt(c.X+0.01, c.Y))
	assert.Equal(t, transform.MinScale, current(t, s, id).Scale)

	// from the exact centre there is no ratio to apply
	e.PointerMove(c)
	assert.False(t, e.PointerMove(geometry.Pt(c.X+30, c.Y)))
}

func TestDeletedLayerMidDrag(t *testing.T) {
	e, s, id := setup(t)
	e.PointerDown(geometry.Pt(0, 0))
	s.DeleteLayer(id)

	assert.NotPanics(t, func() {
		assert.False(t, e.PointerMove(geometry.Pt(10, 10)))
	})
	assert.Equal(t, Idle, e.State())
}

func TestFlipResetRepeat(t *testing.T) {
	e, s, id := setup(t)

	e.Flip(AxisX)
	e.Flip(AxisY)
	e.Flip(AxisY)
	tr := current(t, s, id)
	assert.Equal(t, -1, tr.FlipX)
	assert.Equal(t, 1, tr.FlipY)

	e.PointerDown(geometry.Pt(0, 0))
	e.PointerMove(geometry.Pt(40, 0))
	e.PointerUp()
	e.SetRepeat(true)
	tr = current(t, s, id)
	assert.True(t, tr.Repeat)
	assert.InDelta(t, 0.1, tr.OffsetX, 1e-12, "repeat does not touch the offset")

	e.Reset()
	assert.Equal(t, transform.Identity(), current(t, s, id))
}

func TestReadout(t *testing.T) {
	e, s, id := setup(t)
	scale := 1.5
	rot := 450.0
	s.SetTransform(id, transform.Patch{Scale: &scale, RotationDegrees: &rot})

	r, ok := e.Readout()
	require.True(t, ok)
	assert.Equal(t, 150.0, r.ScalePercent)
	assert.Equal(t, 90.0, r.RotationDegrees)
	assert.Equal(t, "Position: 0.00, 0.00  Scale: 150%  Rotation: 90°", r.String())
}

func TestParseMode(t *testing.T) {
	for _, m := range Modes {
		got, err := ParseMode(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}
	_, err := ParseMode("shear")
	assert.Error(t, err)
}
