package scene

import (
	"github.com/fogleman/fauxgl"

	"garment-configurator/pkg/colorutil"
)

// quad builds a two-triangle mesh spanning corners a (uv 0,0), b (1,0),
// c (1,1) and d (0,1), given top-left, top-right, bottom-right, bottom-left
// as seen from outside. The normal points outwards.
func quad(a, b, c, d fauxgl.Vector) *fauxgl.Mesh {
	n := c.Sub(a).Cross(b.Sub(a)).Normalize()
	v := func(p fauxgl.Vector, u, w float64) fauxgl.Vertex {
		return fauxgl.Vertex{Position: p, Normal: n, Texture: fauxgl.V(u, w, 0)}
	}
	return fauxgl.NewTriangleMesh([]*fauxgl.Triangle{
		fauxgl.NewTriangle(v(a, 0, 0), v(b, 1, 0), v(c, 1, 1)),
		fauxgl.NewTriangle(v(a, 0, 0), v(c, 1, 1), v(d, 0, 1)),
	})
}

// box builds an axis-aligned box from six quads.
func box(min, max fauxgl.Vector) *fauxgl.Mesh {
	x0, y0, z0 := min.X, min.Y, min.Z
	x1, y1, z1 := max.X, max.Y, max.Z
	faces := []*fauxgl.Mesh{
		quad(fauxgl.V(x0, y1, z1), fauxgl.V(x1, y1, z1), fauxgl.V(x1, y0, z1), fauxgl.V(x0, y0, z1)), // +z
		quad(fauxgl.V(x1, y1, z0), fauxgl.V(x0, y1, z0), fauxgl.V(x0, y0, z0), fauxgl.V(x1, y0, z0)), // -z
		quad(fauxgl.V(x1, y1, z1), fauxgl.V(x1, y1, z0), fauxgl.V(x1, y0, z0), fauxgl.V(x1, y0, z1)), // +x
		quad(fauxgl.V(x0, y1, z0), fauxgl.V(x0, y1, z1), fauxgl.V(x0, y0, z1), fauxgl.V(x0, y0, z0)), // -x
		quad(fauxgl.V(x0, y1, z0), fauxgl.V(x1, y1, z0), fauxgl.V(x1, y1, z1), fauxgl.V(x0, y1, z1)), // +y
		quad(fauxgl.V(x0, y0, z1), fauxgl.V(x1, y0, z1), fauxgl.V(x1, y0, z0), fauxgl.V(x0, y0, z0)), // -y
	}
	var tris []*fauxgl.Triangle
	for _, f := range faces {
		tris = append(tris, f.Triangles...)
	}
	return fauxgl.NewTriangleMesh(tris)
}

// PanelModel returns a procedural garment: a body box with a printable
// panel floating just in front of and behind it. It stands in for a
// catalog model in headless runs and tests.
func PanelModel() *Model {
	const w, h, d, gap = 0.8, 1.0, 0.3, 0.005
	body := box(fauxgl.V(-w, -h, -d), fauxgl.V(w, h, d))
	front := quad(
		fauxgl.V(-w*0.8, h*0.8, d+gap), fauxgl.V(w*0.8, h*0.8, d+gap),
		fauxgl.V(w*0.8, -h*0.8, d+gap), fauxgl.V(-w*0.8, -h*0.8, d+gap),
	)
	back := quad(
		fauxgl.V(w*0.8, h*0.8, -d-gap), fauxgl.V(-w*0.8, h*0.8, -d-gap),
		fauxgl.V(-w*0.8, -h*0.8, -d-gap), fauxgl.V(w*0.8, -h*0.8, -d-gap),
	)
	return &Model{
		Name: "panel",
		Regions: []*Region{
			{Name: "Body", Mesh: body, Material: BaseMaterial("Body", colorutil.Fabric)},
			{Name: "Fronttex", Mesh: front, Material: BaseMaterial("Fronttex", colorutil.White)},
			{Name: "Backtex", Mesh: back, Material: BaseMaterial("Backtex", colorutil.White)},
		},
	}
}
