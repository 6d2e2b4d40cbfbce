package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"garment-configurator/internal/layer"
	"garment-configurator/internal/logging"
	"garment-configurator/internal/scene"
	"garment-configurator/internal/transform"
)

// ProjectVersion is written to every saved project.
const ProjectVersion = 1

// ProjectFile is the on-disk form of a session. Layers are stored top
// first, in store order.
type ProjectFile struct {
	Version int         `json:"version"`
	Garment string      `json:"garment,omitempty"`
	Layers  []LayerData `json:"layers"`
}

// LayerData is one saved layer. Image pixels are not stored; Source names
// the image for the asset loader.
type LayerData struct {
	Name      string              `json:"name"`
	Source    string              `json:"source,omitempty"`
	Opacity   float64             `json:"opacity"`
	Visible   bool                `json:"visible"`
	Active    bool                `json:"active,omitempty"`
	Material  layer.MaterialType  `json:"material"`
	Transform transform.Transform `json:"transform"`
}

// Project captures the current layer stack.
func (s *Session) Project() ProjectFile {
	proj := ProjectFile{Version: ProjectVersion, Garment: s.GarmentID()}
	for _, l := range s.Store.Layers() {
		proj.Layers = append(proj.Layers, LayerData{
			Name:      l.Name,
			Source:    l.Source,
			Opacity:   l.Opacity,
			Visible:   l.Visible,
			Active:    l.Active,
			Material:  l.Material,
			Transform: l.Transform,
		})
	}
	return proj
}

// ReadProject parses a project file.
func ReadProject(path string) (ProjectFile, error) {
	var proj ProjectFile
	data, err := os.ReadFile(path)
	if err != nil {
		return proj, err
	}
	if err := json.Unmarshal(data, &proj); err != nil {
		return proj, fmt.Errorf("failed to parse project %s: %w", path, err)
	}
	if proj.Version > ProjectVersion {
		return proj, fmt.Errorf("project %s has version %d, newest supported is %d", path, proj.Version, ProjectVersion)
	}
	return proj, nil
}

// SaveProject saves the project to the specified path.
func (s *Session) SaveProject(path string) error {
	data, err := json.MarshalIndent(s.Project(), "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return err
	}

	s.mu.Lock()
	s.projectPath = path
	s.modified = false
	s.mu.Unlock()

	s.Emit(EventProjectSaved, path)
	return nil
}

// LoadProject replaces the layer stack with the one saved at path. Images
// are fetched through the session loader; a layer whose image fails to load
// is kept without an image and reported as EventLoadFailed. When catalog is
// non-nil and the project names a garment, that garment's model is loaded
// from modelRoot.
func (s *Session) LoadProject(ctx context.Context, path string, catalog *scene.Catalog, modelRoot string) error {
	proj, err := ReadProject(path)
	if err != nil {
		return err
	}
	if err := s.ApplyProject(ctx, proj); err != nil {
		return err
	}

	if proj.Garment != "" && catalog != nil {
		g, ok := catalog.Find(proj.Garment)
		if !ok {
			return fmt.Errorf("project %s: garment %q not in catalog", path, proj.Garment)
		}
		if err := s.SelectGarment(modelRoot, g); err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.projectPath = path
	s.modified = false
	s.mu.Unlock()

	s.Emit(EventProjectLoaded, path)
	return nil
}

// ApplyProject rebuilds the layer stack from proj.
func (s *Session) ApplyProject(ctx context.Context, proj ProjectFile) error {
	s.Store.Clear()
	active := layer.ID(-1)
	first := layer.ID(-1)
	for _, ld := range proj.Layers {
		if err := ctx.Err(); err != nil {
			return err
		}
		id := s.Store.AddLayer()
		if first < 0 {
			first = id
		}
		if ld.Source != "" {
			s.loadSaved(ctx, id, ld.Source)
		}
		if ld.Name != "" {
			s.Store.Rename(id, ld.Name)
		}
		s.Store.SetTransform(id, transform.Full(ld.Transform))
		s.Store.SetOpacity(id, ld.Opacity)
		s.Store.SetVisible(id, ld.Visible)
		s.Store.SetMaterialType(id, ld.Material)
		if ld.Active {
			active = id
		}
	}
	if active < 0 {
		active = first
	}
	if active >= 0 {
		s.Store.SetActive(active)
	}
	logging.Logger().Info("project applied", "layers", len(proj.Layers), "garment", proj.Garment)
	return nil
}

func (s *Session) loadSaved(ctx context.Context, id layer.ID, source string) {
	var err error
	if s.Loader == nil {
		err = fmt.Errorf("no image source configured")
	} else {
		err = s.Loader.Load(ctx, s.Store, id, source)
	}
	if err != nil {
		s.Store.SetSource(id, source)
		s.Emit(EventLoadFailed, LoadError{ID: id, Name: source, Err: err})
	}
}
