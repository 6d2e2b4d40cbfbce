// Package scene models the loaded garment: named mesh regions, each with a
// material, and the lookup of regions that receive the composite texture.
package scene

import (
	"errors"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/fogleman/fauxgl"

	"garment-configurator/internal/logging"
)

// ErrNoModel is returned by operations that need a loaded model.
var ErrNoModel = errors.New("no model loaded")

// DefaultTargetTags mark the printable front and back panels.
var DefaultTargetTags = []string{"Fronttex", "Backtex"}

// Region is one named part of a model.
type Region struct {
	Name        string
	Mesh        *fauxgl.Mesh
	Material    *Material
	RenderOrder int
}

// Model is a garment made of regions.
type Model struct {
	Name    string
	Regions []*Region
}

// Region returns the region with the given name.
func (m *Model) Region(name string) (*Region, bool) {
	for _, r := range m.Regions {
		if r.Name == name {
			return r, true
		}
	}
	return nil, false
}

// IsTextureTarget reports whether a region name contains any of tags.
func IsTextureTarget(name string, tags []string) bool {
	for _, tag := range tags {
		if tag != "" && strings.Contains(name, tag) {
			return true
		}
	}
	return false
}

// Scene holds the current model. The model can be swapped at any time; all
// access to regions goes through the scene lock.
type Scene struct {
	mu       sync.RWMutex
	model    *Model
	tags     []string
	releaser ResourceReleaser
	onChange []func(*Model)
}

// New creates an empty scene. Nil tags select DefaultTargetTags.
func New(tags []string) *Scene {
	if len(tags) == 0 {
		tags = DefaultTargetTags
	}
	return &Scene{tags: append([]string(nil), tags...)}
}

// SetReleaser installs the renderer hook that frees GPU-side resources.
func (s *Scene) SetReleaser(r ResourceReleaser) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releaser = r
}

// OnModelChange registers a callback fired after SetModel.
func (s *Scene) OnModelChange(fn func(*Model)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = append(s.onChange, fn)
}

// SetModel replaces the model. Resources of the old model's materials are
// released. Passing nil unloads the model.
func (s *Scene) SetModel(m *Model) {
	s.mu.Lock()
	old := s.model
	s.model = m
	rel := s.releaser
	listeners := slices.Clone(s.onChange)
	s.mu.Unlock()

	if old != nil && old != m && rel != nil {
		for _, r := range old.Regions {
			releaseMaterial(rel, r.Material)
		}
	}
	name := ""
	if m != nil {
		name = m.Name
	}
	logging.Logger().Info("scene model changed", "model", name)
	for _, fn := range listeners {
		fn(m)
	}
}

// Tags returns the texture target tags.
func (s *Scene) Tags() []string {
	return append([]string(nil), s.tags...)
}

// HasModel reports whether a model is loaded.
func (s *Scene) HasModel() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.model != nil
}

// FindTextureTargets returns the regions of the current model whose names
// carry a target tag. It is safe to call at any time and returns nil when no
// model is loaded.
func (s *Scene) FindTextureTargets() []*Region {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.model == nil {
		return nil
	}
	var out []*Region
	for _, r := range s.model.Regions {
		if IsTextureTarget(r.Name, s.tags) {
			out = append(out, r)
		}
	}
	return out
}

// AssignMaterial sets a region's material and render order and returns the
// material it replaced. Regions that no longer belong to the current model
// are left alone and ok is false.
func (s *Scene) AssignMaterial(r *Region, m *Material, renderOrder int) (old *Material, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.model == nil || !contains(s.model.Regions, r) {
		return nil, false
	}
	old = r.Material
	r.Material = m
	r.RenderOrder = renderOrder
	return old, true
}

// View calls fn with the model under a read lock. The regions must not be
// retained or modified by fn.
func (s *Scene) View(fn func(*Model)) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.model == nil {
		return ErrNoModel
	}
	fn(s.model)
	return nil
}

// Ordered returns the regions sorted by render order, stable by position.
func (m *Model) Ordered() []*Region {
	out := append([]*Region(nil), m.Regions...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].RenderOrder < out[j].RenderOrder })
	return out
}

func contains(rs []*Region, r *Region) bool {
	for _, x := range rs {
		if x == r {
			return true
		}
	}
	return false
}

func releaseMaterial(rel ResourceReleaser, m *Material) {
	if m == nil {
		return
	}
	if m.Map != nil {
		rel.ReleaseTexture(m.Map)
	}
	rel.ReleaseMaterial(m)
}
