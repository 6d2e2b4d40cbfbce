package layer

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownMaterial is returned by ParseMaterialType for unrecognised names.
var ErrUnknownMaterial = errors.New("unknown material type")

// MaterialType tags a layer with the physical finish the garment material
// should take on where the layer is printed.
type MaterialType int

const (
	MaterialPrint MaterialType = iota
	MaterialEmbroidery
	MaterialColor
)

// MaterialTypes lists every material type in display order.
var MaterialTypes = []MaterialType{MaterialPrint, MaterialEmbroidery, MaterialColor}

// MaterialProperties are the physically based parameters a material type
// carries. Zero means "not set" for the sheen pair.
type MaterialProperties struct {
	Roughness          float64 `json:"roughness" yaml:"roughness"`
	Metalness          float64 `json:"metalness" yaml:"metalness"`
	NormalScale        float64 `json:"normalScale" yaml:"normal_scale"`
	Clearcoat          float64 `json:"clearcoat" yaml:"clearcoat"`
	ClearcoatRoughness float64 `json:"clearcoatRoughness" yaml:"clearcoat_roughness"`
	Sheen              float64 `json:"sheen" yaml:"sheen"`
	SheenRoughness     float64 `json:"sheenRoughness" yaml:"sheen_roughness"`
}

var materialTable = map[MaterialType]MaterialProperties{
	MaterialPrint: {
		Roughness:          0.05,
		Metalness:          1,
		NormalScale:        0.5,
		Clearcoat:          0.5,
		ClearcoatRoughness: 0.2,
	},
	MaterialEmbroidery: {
		Roughness:      1,
		Metalness:      0,
		NormalScale:    1.0,
		Clearcoat:      0,
		Sheen:          0.3,
		SheenRoughness: 0.8,
	},
	MaterialColor: {
		Roughness:          0.8,
		Metalness:          0,
		NormalScale:        0.3,
		Clearcoat:          0.3,
		ClearcoatRoughness: 0.3,
	},
}

// Properties returns the parameter set for m. Unknown values fall back to print.
func (m MaterialType) Properties() MaterialProperties {
	if p, ok := materialTable[m]; ok {
		return p
	}
	return materialTable[MaterialPrint]
}

func (m MaterialType) String() string {
	switch m {
	case MaterialPrint:
		return "print"
	case MaterialEmbroidery:
		return "embroidery"
	case MaterialColor:
		return "color"
	default:
		return fmt.Sprintf("MaterialType(%d)", int(m))
	}
}

// Label is the capitalised name shown in the UI.
func (m MaterialType) Label() string {
	s := m.String()
	if _, ok := materialTable[m]; !ok || s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// ParseMaterialType accepts the lower-case name or the UI label.
func ParseMaterialType(s string) (MaterialType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "print", "":
		return MaterialPrint, nil
	case "embroidery":
		return MaterialEmbroidery, nil
	case "color", "colour":
		return MaterialColor, nil
	}
	return MaterialPrint, fmt.Errorf("%w: %q", ErrUnknownMaterial, s)
}

// MarshalText implements encoding.TextMarshaler so project files store names.
func (m MaterialType) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *MaterialType) UnmarshalText(b []byte) error {
	v, err := ParseMaterialType(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}
