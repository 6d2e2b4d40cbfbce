package scene

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strings"

	"github.com/fogleman/fauxgl"
	"gopkg.in/yaml.v3"

	"garment-configurator/pkg/colorutil"
)

// Garment is one catalog entry: a directory of part meshes.
type Garment struct {
	ID                  string            `yaml:"id"`
	Name                string            `yaml:"name"`
	Directory           string            `yaml:"directory"`
	Parts               []string          `yaml:"parts"`
	UseDefaultMaterials bool              `yaml:"use_default_materials"`
	Colors              map[string]string `yaml:"colors,omitempty"`
}

// Catalog lists the garments available to the configurator.
type Catalog struct {
	Garments []Garment `yaml:"garments"`
}

// ParseCatalog decodes a YAML catalog and validates it.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	seen := make(map[string]bool)
	for i, g := range c.Garments {
		if g.ID == "" {
			return nil, fmt.Errorf("catalog entry %d has no id", i)
		}
		if seen[g.ID] {
			return nil, fmt.Errorf("duplicate garment id %q", g.ID)
		}
		seen[g.ID] = true
		if len(g.Parts) == 0 {
			return nil, fmt.Errorf("garment %q lists no parts", g.ID)
		}
		for part, hex := range g.Colors {
			if _, err := colorutil.ParseHex(hex); err != nil {
				return nil, fmt.Errorf("garment %q part %q: %w", g.ID, part, err)
			}
		}
	}
	return &c, nil
}

// LoadCatalog reads a catalog file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return ParseCatalog(data)
}

// Find returns the garment with the given id.
func (c *Catalog) Find(id string) (Garment, bool) {
	for _, g := range c.Garments {
		if g.ID == id {
			return g, true
		}
	}
	return Garment{}, false
}

// PartName strips the mesh extension from a catalog part entry.
func PartName(part string) string {
	return strings.TrimSuffix(part, filepath.Ext(part))
}

// LoadModel loads every part of g from root/<directory>/<part>.obj. Each part
// becomes a region with a base fabric material.
func LoadModel(root string, g Garment) (*Model, error) {
	m := &Model{Name: g.Name}
	if m.Name == "" {
		m.Name = g.ID
	}
	for _, part := range g.Parts {
		name := PartName(part)
		path := filepath.Join(root, g.Directory, name+".obj")
		mesh, err := fauxgl.LoadOBJ(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load part %s of %s: %w", name, g.ID, err)
		}
		m.Regions = append(m.Regions, &Region{
			Name:     name,
			Mesh:     mesh,
			Material: BaseMaterial(name, g.partColor(name)),
		})
	}
	return m, nil
}

func (g Garment) partColor(part string) color.NRGBA {
	if hex, ok := g.Colors[part]; ok {
		if c, err := colorutil.ParseHex(hex); err == nil {
			return c
		}
	}
	return colorutil.Fabric
}
