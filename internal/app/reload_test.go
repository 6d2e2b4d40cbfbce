package app

import (
	"context"
	"image/color"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"garment-configurator/internal/assets"
	"garment-configurator/internal/layer"
	"garment-configurator/internal/transform"
)

func TestReloaderRefreshesChangedSource(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "logo.png")
	writePNG(t, path, color.NRGBA{R: 255, A: 255})

	store := layer.NewStore()
	loader := assets.NewLoader(assets.DirSource{Root: root}, 0)
	id := store.AddLayer()
	require.NoError(t, loader.Load(context.Background(), store, id, "logo.png"))
	store.SetTransform(id, transform.Patch{Scale: ptr(2.0)})

	r, err := NewReloader(store, assets.DirSource{Root: root}, loader)
	require.NoError(t, err)
	r.SetSettle(20 * time.Millisecond)
	r.Watch()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = r.Run(ctx) }()

	writePNG(t, path, color.NRGBA{B: 255, A: 255})

	assert.Eventually(t, func() bool {
		l, _ := store.Layer(id)
		_, _, b, _ := l.Image.At(0, 0).RGBA()
		return b == 0xffff
	}, 5*time.Second, 10*time.Millisecond)

	l, _ := store.Layer(id)
	assert.InDelta(t, 2.0, l.Transform.Scale, 1e-9)
	assert.GreaterOrEqual(t, r.Reloads(), 1)
}

func TestReloaderFollowsImagesLoadedLater(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "badge.png")
	writePNG(t, path, color.NRGBA{R: 255, A: 255})

	store := layer.NewStore()
	loader := assets.NewLoader(assets.DirSource{Root: root}, 0)
	r, err := NewReloader(store, assets.DirSource{Root: root}, loader)
	require.NoError(t, err)
	r.SetSettle(20 * time.Millisecond)
	r.Watch()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = r.Run(ctx) }()

	id := store.AddLayer()
	require.NoError(t, loader.Load(context.Background(), store, id, "badge.png"))

	writePNG(t, path, color.NRGBA{G: 255, A: 255})

	assert.Eventually(t, func() bool {
		l, _ := store.Layer(id)
		_, g, _, _ := l.Image.At(0, 0).RGBA()
		return g == 0xffff
	}, 5*time.Second, 10*time.Millisecond)
	assert.GreaterOrEqual(t, r.Reloads(), 1)
}

func TestReloaderIgnoresUnrelatedFiles(t *testing.T) {
	root := t.TempDir()
	writePNG(t, filepath.Join(root, "logo.png"), color.White)

	store := layer.NewStore()
	loader := assets.NewLoader(assets.DirSource{Root: root}, 0)
	id := store.AddLayer()
	require.NoError(t, loader.Load(context.Background(), store, id, "logo.png"))
	before := store.Version()

	r, err := NewReloader(store, assets.DirSource{Root: root}, loader)
	require.NoError(t, err)
	r.SetSettle(10 * time.Millisecond)
	r.Watch()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = r.Run(ctx) }()

	writePNG(t, filepath.Join(root, "other.png"), color.Black)
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, before, store.Version())
	assert.Zero(t, r.Reloads())
}
