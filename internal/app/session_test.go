package app

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"garment-configurator/internal/assets"
	"garment-configurator/internal/config"
	"garment-configurator/internal/layer"
	"garment-configurator/internal/live"
	"garment-configurator/internal/scene"
	"garment-configurator/internal/transform"
)

func writePNG(t *testing.T, path string, c color.Color) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func newSession(t *testing.T, root string) *Session {
	t.Helper()
	cfg := config.Default()
	cfg.Canvas.Size = 64
	s, err := NewSession(cfg, assets.NewLoader(assets.DirSource{Root: root}, 0))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// recorder collects event payloads by type.
type recorder struct {
	mu     sync.Mutex
	events map[EventType][]interface{}
}

func record(s *Session, types ...EventType) *recorder {
	r := &recorder{events: make(map[EventType][]interface{})}
	for _, et := range types {
		s.On(et, func(data interface{}) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.events[et] = append(r.events[et], data)
		})
	}
	return r
}

func (r *recorder) get(et EventType) []interface{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]interface{}(nil), r.events[et]...)
}

func TestSessionPublishesToPanelModel(t *testing.T) {
	root := t.TempDir()
	writePNG(t, filepath.Join(root, "logo.png"), color.NRGBA{R: 255, A: 255})
	s := newSession(t, root)
	rec := record(s, EventCompositeReady, EventPublished, EventModelChanged)

	s.UsePanelModel()
	require.Len(t, rec.get(EventModelChanged), 1)

	id := s.Store.AddLayer()
	require.NoError(t, s.Loader.Load(context.Background(), s.Store, id, "logo.png"))

	res := s.Flush()
	require.NotNil(t, res)
	assert.Equal(t, 1, res.Painted)
	assert.Same(t, res, s.Latest())
	assert.Equal(t, []interface{}{2}, rec.get(EventPublished))
	require.Len(t, rec.get(EventCompositeReady), 1)

	// Nothing changed, nothing rendered.
	assert.Nil(t, s.Flush())

	for _, r := range s.Scene.FindTextureTargets() {
		require.NotNil(t, r.Material.Map)
		assert.Equal(t, res.Generation, r.Material.Map.Version)
	}

	// Swapping the model forces a republish onto the new targets.
	s.UsePanelModel()
	assert.NotNil(t, s.Flush())
	assert.Equal(t, uint64(2), s.Publisher.Stats().LiveTextures())
}

func TestSessionRunCoalesces(t *testing.T) {
	s := newSession(t, t.TempDir())
	s.UsePanelModel()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	id := s.Store.AddLayer()
	for i := 0; i < 20; i++ {
		s.Store.SetOpacity(id, float64(i)/20)
	}
	want := s.Store.Version()
	assert.Eventually(t, func() bool {
		res := s.Latest()
		return res != nil && res.Version == want
	}, 5*time.Second, 5*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}

func TestLoadIntoReportsFailure(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "readme.txt"), []byte("hello"), 0o644))
	s := newSession(t, root)
	rec := record(s, EventLoadFailed)

	id := s.Store.AddLayer()
	<-s.LoadInto(context.Background(), id, "readme.txt")

	got := rec.get(EventLoadFailed)
	require.Len(t, got, 1)
	le, ok := got[0].(LoadError)
	require.True(t, ok)
	assert.Equal(t, id, le.ID)
	assert.ErrorIs(t, le, assets.ErrNotImage)

	l, _ := s.Store.Layer(id)
	assert.False(t, l.HasImage())
}

func TestLoadIntoAppliesImage(t *testing.T) {
	root := t.TempDir()
	writePNG(t, filepath.Join(root, "a.png"), color.White)
	s := newSession(t, root)

	id := s.Store.AddLayer()
	<-s.LoadInto(context.Background(), id, "a.png")
	l, _ := s.Store.Layer(id)
	assert.True(t, l.HasImage())
	assert.Equal(t, "a.png", l.Source)
}

func TestProjectRoundTrip(t *testing.T) {
	root := t.TempDir()
	writePNG(t, filepath.Join(root, "front.png"), color.White)
	writePNG(t, filepath.Join(root, "stripe.png"), color.Black)
	s := newSession(t, root)
	ctx := context.Background()

	top, bottom := s.Store.AddLayer(), s.Store.AddLayer()
	require.NoError(t, s.Loader.Load(ctx, s.Store, top, "front.png"))
	require.NoError(t, s.Loader.Load(ctx, s.Store, bottom, "stripe.png"))
	s.Store.SetTransform(top, transform.Patch{Scale: ptr(1.5), RotationDegrees: ptr(45.0), FlipX: ptr(-1)})
	s.Store.SetTransform(bottom, transform.Patch{Repeat: ptr(true)})
	s.Store.SetOpacity(bottom, 0.4)
	s.Store.SetMaterialType(top, layer.MaterialEmbroidery)
	s.Store.ToggleVisibility(bottom)
	s.Store.Rename(top, "Chest logo")
	s.Store.SetActive(top)
	assert.True(t, s.Modified())

	path := filepath.Join(t.TempDir(), "design.json")
	require.NoError(t, s.SaveProject(path))
	assert.False(t, s.Modified())
	assert.Equal(t, path, s.ProjectPath())

	other := newSession(t, root)
	rec := record(other, EventProjectLoaded, EventLoadFailed)
	require.NoError(t, other.LoadProject(ctx, path, nil, ""))
	assert.Empty(t, rec.get(EventLoadFailed))
	assert.Equal(t, []interface{}{path}, rec.get(EventProjectLoaded))
	assert.False(t, other.Modified())

	got := other.Store.Layers()
	want := s.Store.Layers()
	require.Len(t, got, 2)
	for i := range want {
		assert.Equal(t, want[i].Name, got[i].Name)
		assert.Equal(t, want[i].Source, got[i].Source)
		assert.Equal(t, want[i].Transform, got[i].Transform)
		assert.InDelta(t, want[i].Opacity, got[i].Opacity, 1e-9)
		assert.Equal(t, want[i].Visible, got[i].Visible)
		assert.Equal(t, want[i].Material, got[i].Material)
		assert.Equal(t, want[i].Active, got[i].Active)
		assert.True(t, got[i].HasImage())
	}
}

func TestLoadProjectMissingImage(t *testing.T) {
	s := newSession(t, t.TempDir())
	rec := record(s, EventLoadFailed)

	proj := ProjectFile{Version: ProjectVersion, Layers: []LayerData{
		{Name: "Gone", Source: "gone.png", Opacity: 1, Visible: true, Transform: transform.Identity()},
	}}
	require.NoError(t, s.ApplyProject(context.Background(), proj))

	require.Len(t, rec.get(EventLoadFailed), 1)
	l := s.Store.Layers()[0]
	assert.Equal(t, "Gone", l.Name)
	assert.Equal(t, "gone.png", l.Source)
	assert.False(t, l.HasImage())
}

func TestApplyProjectWithoutActiveFlagActivatesTopLayer(t *testing.T) {
	root := t.TempDir()
	writePNG(t, filepath.Join(root, "a.png"), color.White)
	writePNG(t, filepath.Join(root, "b.png"), color.Black)
	s := newSession(t, root)

	proj := ProjectFile{Version: ProjectVersion, Layers: []LayerData{
		{Name: "Top", Source: "a.png", Opacity: 1, Visible: true, Transform: transform.Identity()},
		{Name: "Bottom", Source: "b.png", Opacity: 1, Visible: true, Transform: transform.Identity()},
	}}
	require.NoError(t, s.ApplyProject(context.Background(), proj))

	got := s.Store.Layers()
	require.Len(t, got, 2)
	assert.True(t, got[0].Active)
	assert.False(t, got[1].Active)
	active, ok := s.Store.Active()
	require.True(t, ok)
	assert.Equal(t, "Top", active.Name)
}

func TestReadProjectRejectsNewerVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "p.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version": 99, "layers": []}`), 0o644))
	_, err := ReadProject(path)
	assert.Error(t, err)
}

func TestLoadProjectSelectsGarment(t *testing.T) {
	models := t.TempDir()
	dir := filepath.Join(models, "Tee")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	tri := []byte("v 0 0 0\nv 1 0 0\nv 0 1 0\nf 1 2 3\n")
	for _, part := range []string{"Fronttex", "Body"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, part+".obj"), tri, 0o644))
	}
	catalog, err := scene.ParseCatalog([]byte("garments:\n  - id: tee\n    directory: Tee\n    parts: [Fronttex, Body]\n"))
	require.NoError(t, err)

	s := newSession(t, t.TempDir())
	path := filepath.Join(t.TempDir(), "p.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version": 1, "garment": "tee", "layers": []}`), 0o644))

	require.NoError(t, s.LoadProject(context.Background(), path, catalog, models))
	assert.Equal(t, "tee", s.GarmentID())
	targets := s.Scene.FindTextureTargets()
	require.Len(t, targets, 1)
	assert.Equal(t, "Fronttex", targets[0].Name)

	require.NoError(t, os.WriteFile(path, []byte(`{"version": 1, "garment": "dress", "layers": []}`), 0o644))
	assert.Error(t, s.LoadProject(context.Background(), path, catalog, models))
}

func TestSessionBroadcastsToHub(t *testing.T) {
	s := newSession(t, t.TempDir())
	hub := live.NewHub()
	defer hub.Close()
	s.SetHub(hub)

	s.Store.AddLayer()
	res := s.Flush()
	require.NotNil(t, res)
	f := hub.Latest()
	require.NotNil(t, f)
	assert.Equal(t, res.Generation, f.Generation)
	assert.Equal(t, 64, f.Width)
}

func TestSessionEventsNotPublishedWithoutModel(t *testing.T) {
	s := newSession(t, t.TempDir())
	rec := record(s, EventPublished)
	s.Store.AddLayer()
	require.NotNil(t, s.Flush())
	assert.Equal(t, []interface{}{0}, rec.get(EventPublished))
}

func ptr[T any](v T) *T { return &v }
