// Package publish turns composites into textures on the model regions that
// are tagged to receive them.
package publish

import (
	"image/color"
	"sync"

	"garment-configurator/internal/composite"
	"garment-configurator/internal/layer"
	"garment-configurator/internal/logging"
	"garment-configurator/internal/scene"
)

// Scene is what the publisher needs from scene management: a fresh list of
// targets on every call, and a way to swap a region's material.
type Scene interface {
	FindTextureTargets() []*scene.Region
	AssignMaterial(r *scene.Region, m *scene.Material, renderOrder int) (old *scene.Material, ok bool)
}

// Settings configure the published texture and decal material.
type Settings struct {
	WrapS       scene.Wrap
	WrapT       scene.Wrap
	FlipY       bool
	Transparent bool
	Side        scene.Side
	DepthTest   bool
	DepthWrite  bool
	AlphaTest   float64
	RenderOrder int

	Roughness          float64
	Clearcoat          float64
	ClearcoatRoughness float64

	// UseLayerMaterial applies the active layer's material type properties
	// on top of the defaults above.
	UseLayerMaterial bool
}

// DefaultSettings returns the overlay decal configuration.
func DefaultSettings() Settings {
	return Settings{
		WrapS:            scene.Repeat,
		WrapT:            scene.Repeat,
		FlipY:            false,
		Transparent:      true,
		Side:             scene.FrontSide,
		DepthTest:        true,
		DepthWrite:       true,
		AlphaTest:        0.1,
		RenderOrder:      1,
		Roughness:        0,
		Clearcoat:        1,
		UseLayerMaterial: true,
	}
}

// Stats counts texture lifecycle events.
type Stats struct {
	Publishes         uint64
	TexturesCreated   uint64
	TexturesReleased  uint64
	MaterialsReleased uint64
	LastTargets       int
}

// LiveTextures is the number of created textures not yet released.
func (s Stats) LiveTextures() uint64 {
	return s.TexturesCreated - s.TexturesReleased
}

// Publisher owns every texture and material it assigns. Each publish builds
// fresh ones and releases the ones they replace.
type Publisher struct {
	scene    Scene
	releaser scene.ResourceReleaser
	settings Settings

	mu    sync.Mutex
	stats Stats
	owned map[*scene.Material]bool
}

// New creates a publisher. releaser may be nil when nothing renders.
func New(sc Scene, releaser scene.ResourceReleaser, settings Settings) *Publisher {
	return &Publisher{
		scene:    sc,
		releaser: releaser,
		settings: settings,
		owned:    make(map[*scene.Material]bool),
	}
}

// Settings returns the publisher configuration.
func (p *Publisher) Settings() Settings { return p.settings }

// Publish assigns res to every current texture target and returns how many
// regions were updated. With no targets it does nothing.
func (p *Publisher) Publish(res *composite.Result) int {
	if res == nil || res.Image == nil {
		return 0
	}
	targets := p.scene.FindTextureTargets()

	p.mu.Lock()
	defer p.mu.Unlock()
	p.stats.Publishes++
	p.stats.LastTargets = len(targets)
	if len(targets) == 0 {
		logging.Logger().Debug("publish skipped, no texture targets", "generation", res.Generation)
		return 0
	}

	n := 0
	for _, r := range targets {
		tex := p.newTexture(res)
		mat := p.newMaterial(r.Name, tex, res)
		p.owned[mat] = true
		old, ok := p.scene.AssignMaterial(r, mat, p.settings.RenderOrder)
		if !ok {
			// the model was swapped between lookup and assignment
			p.dispose(mat)
			continue
		}
		p.dispose(old)
		n++
	}
	logging.Logger().Debug("composite published",
		"generation", res.Generation, "version", res.Version, "targets", n)
	return n
}

// ModelReleased records that the scene released every material of the
// previous model, including the ones this publisher assigned.
func (p *Publisher) ModelReleased() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for m := range p.owned {
		if m.Map != nil {
			p.stats.TexturesReleased++
		}
		p.stats.MaterialsReleased++
	}
	clear(p.owned)
}

// Stats returns a copy of the lifecycle counters.
func (p *Publisher) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

func (p *Publisher) newTexture(res *composite.Result) *scene.Texture {
	tex := scene.NewTexture(res.Image)
	tex.WrapS = p.settings.WrapS
	tex.WrapT = p.settings.WrapT
	tex.FlipY = p.settings.FlipY
	tex.NeedsUpdate = true
	tex.Version = res.Generation
	p.stats.TexturesCreated++
	return tex
}

func (p *Publisher) newMaterial(name string, tex *scene.Texture, res *composite.Result) *scene.Material {
	s := p.settings
	m := &scene.Material{
		Name:               name + "/composite",
		Map:                tex,
		Color:              color.NRGBA{R: 255, G: 255, B: 255, A: 255},
		Transparent:        s.Transparent,
		Side:               s.Side,
		DepthTest:          s.DepthTest,
		DepthWrite:         s.DepthWrite,
		AlphaTest:          s.AlphaTest,
		Roughness:          s.Roughness,
		Clearcoat:          s.Clearcoat,
		ClearcoatRoughness: s.ClearcoatRoughness,
		NormalScale:        1,
		NeedsUpdate:        true,
	}
	if s.UseLayerMaterial && res.HasActive {
		applyProperties(m, res.Active.Material.Properties())
	}
	return m
}

func applyProperties(m *scene.Material, props layer.MaterialProperties) {
	m.Roughness = props.Roughness
	m.Metalness = props.Metalness
	m.NormalScale = props.NormalScale
	m.Clearcoat = props.Clearcoat
	m.ClearcoatRoughness = props.ClearcoatRoughness
	m.Sheen = props.Sheen
	m.SheenRoughness = props.SheenRoughness
}

// dispose releases a replaced material and its texture. Must be called with
// p.mu held.
func (p *Publisher) dispose(m *scene.Material) {
	if m == nil {
		return
	}
	ours := p.owned[m]
	delete(p.owned, m)
	if m.Map != nil {
		if p.releaser != nil {
			p.releaser.ReleaseTexture(m.Map)
		}
		if ours {
			p.stats.TexturesReleased++
		}
		m.Map = nil
	}
	if p.releaser != nil {
		p.releaser.ReleaseMaterial(m)
	}
	p.stats.MaterialsReleased++
}
