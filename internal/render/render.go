// Package render draws a software preview of the scene with fauxgl. The
// renderer also acts as the scene's resource releaser: it keeps one uploaded
// sampler per published texture and drops it when the texture is released.
package render

import (
	"fmt"
	"image"
	"image/color"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/fogleman/fauxgl"

	"garment-configurator/internal/logging"
	"garment-configurator/internal/scene"
	"garment-configurator/pkg/colorutil"
)

// Camera is a perspective look-at camera.
type Camera struct {
	Eye, Center, Up fauxgl.Vector
	Fovy            float64
	Near, Far       float64
}

// FrontCamera looks at the garment's front panel.
func FrontCamera() Camera {
	return Camera{
		Eye:    fauxgl.V(0, 0.2, 4),
		Center: fauxgl.V(0, 0, 0),
		Up:     fauxgl.V(0, 1, 0),
		Fovy:   35,
		Near:   0.1,
		Far:    50,
	}
}

// BackCamera looks at the back panel.
func BackCamera() Camera {
	c := FrontCamera()
	c.Eye = fauxgl.V(0, 0.2, -4)
	return c
}

// Options control one preview render.
type Options struct {
	Width, Height int
	// Supersample renders at this multiple of the output size and
	// downsamples. Values below 1 mean 1.
	Supersample int
	Camera      Camera
	Light       fauxgl.Vector
	Background  color.NRGBA
}

// DefaultOptions renders a 512x512 front view.
func DefaultOptions() Options {
	return Options{
		Width:       512,
		Height:      512,
		Supersample: 2,
		Camera:      FrontCamera(),
		Light:       fauxgl.V(0.4, 0.8, 1).Normalize(),
		Background:  colorutil.Backdrop,
	}
}

// Stats counts sampler uploads and releases.
type Stats struct {
	Uploads          uint64
	TextureReleases  uint64
	MaterialReleases uint64
	Cached           int
}

type upload struct {
	version uint64
	sampler fauxgl.Texture
}

// Renderer draws scenes. It is safe for concurrent use.
type Renderer struct {
	mu    sync.Mutex
	cache map[uint64]upload
	stats Stats
}

// New creates a renderer with an empty texture cache.
func New() *Renderer {
	return &Renderer{cache: make(map[uint64]upload)}
}

// ReleaseTexture implements scene.ResourceReleaser.
func (r *Renderer) ReleaseTexture(t *scene.Texture) {
	if t == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cache, t.ID)
	r.stats.TextureReleases++
}

// ReleaseMaterial implements scene.ResourceReleaser.
func (r *Renderer) ReleaseMaterial(*scene.Material) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats.MaterialReleases++
}

// Stats returns a copy of the counters.
func (r *Renderer) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.stats
	s.Cached = len(r.cache)
	return s
}

// sampler returns the uploaded sampler for t, uploading when the texture is
// new or its version moved on. Texture.Replace bumps the version whenever it
// sets NeedsUpdate, so the version alone decides. Must be called with r.mu
// held.
func (r *Renderer) sampler(t *scene.Texture) fauxgl.Texture {
	if u, ok := r.cache[t.ID]; ok && u.version == t.Version {
		return u.sampler
	}
	u := upload{version: t.Version, sampler: fauxgl.NewImageTexture(t.Image)}
	r.cache[t.ID] = u
	r.stats.Uploads++
	logging.Logger().Debug("render: texture uploaded", "texture", t.ID, "version", t.Version)
	return u.sampler
}

// Render draws the scene's current model.
func (r *Renderer) Render(sc *scene.Scene, opts Options) (image.Image, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("invalid preview size %dx%d", opts.Width, opts.Height)
	}
	ss := max(opts.Supersample, 1)
	w, h := opts.Width*ss, opts.Height*ss

	r.mu.Lock()
	defer r.mu.Unlock()

	ctx := fauxgl.NewContext(w, h)
	ctx.ClearColorBufferWith(fauxgl.MakeColor(opts.Background))
	ctx.ClearDepthBuffer()
	ctx.Cull = fauxgl.CullNone

	cam := opts.Camera
	aspect := float64(w) / float64(h)
	matrix := fauxgl.LookAt(cam.Eye, cam.Center, cam.Up).Perspective(cam.Fovy, aspect, cam.Near, cam.Far)
	light := opts.Light.Normalize()

	err := sc.View(func(m *scene.Model) {
		for _, region := range m.Ordered() {
			if region.Mesh == nil || region.Material == nil {
				continue
			}
			mat := region.Material
			ctx.ReadDepth = mat.DepthTest
			ctx.WriteDepth = mat.DepthWrite
			ctx.AlphaBlend = mat.Transparent
			ctx.Shader = r.shaderFor(mat, matrix, light, cam.Eye)
			ctx.DrawMesh(region.Mesh)
		}
	})
	if err != nil {
		return nil, err
	}

	img := ctx.Image()
	if ss == 1 {
		return img, nil
	}
	return imaging.Resize(img, opts.Width, opts.Height, imaging.Lanczos), nil
}

// shaderFor picks a textured decal shader for materials carrying a map and
// a Phong shader for plain fabric. Must be called with r.mu held.
func (r *Renderer) shaderFor(mat *scene.Material, matrix fauxgl.Matrix, light, eye fauxgl.Vector) fauxgl.Shader {
	tint := fauxgl.MakeColor(mat.Color)
	if mat.Map != nil && mat.Map.Image != nil {
		return &decalShader{
			matrix:    matrix,
			light:     light,
			eye:       eye,
			tex:       r.sampler(mat.Map),
			tint:      tint,
			wrapS:     mat.Map.WrapS,
			wrapT:     mat.Map.WrapT,
			flipY:     mat.Map.FlipY,
			alphaTest: mat.AlphaTest,
			side:      mat.Side,
			ambient:   0.35,
		}
	}
	s := fauxgl.NewPhongShader(matrix, light, eye)
	s.ObjectColor = tint
	return s
}
