// Package mesh holds the indexed triangle set shared by every volume of
// the scene, plus the repair and convex hull routines run after a mesh
// is reconstructed from an archive.
package mesh

import (
	"github.com/chewxy/math32"

	"github.com/kjplatz/slic3mf/internal/geometry"
)

// Vec3 is a single-precision 3D point.
type Vec3 [3]float32

// Sub returns v - o.
func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{v[0] - o[0], v[1] - o[1], v[2] - o[2]}
}

// Cross returns the cross product v x o.
func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{
		v[1]*o[2] - v[2]*o[1],
		v[2]*o[0] - v[0]*o[2],
		v[0]*o[1] - v[1]*o[0],
	}
}

// Dot returns the dot product.
func (v Vec3) Dot(o Vec3) float32 {
	return v[0]*o[0] + v[1]*o[1] + v[2]*o[2]
}

// Length returns the Euclidean norm.
func (v Vec3) Length() float32 {
	return math32.Sqrt(v.Dot(v))
}

// Triangle indexes three vertices of a mesh.
type Triangle [3]int

// TriangleMesh is an indexed triangle set with shared vertices.
type TriangleMesh struct {
	Vertices  []Vec3
	Triangles []Triangle

	repaired bool
}

// RepairStats reports what Repair changed.
type RepairStats struct {
	DegenerateFacets int
	InvalidFacets    int
}

// Empty reports whether the mesh has no geometry.
func (m *TriangleMesh) Empty() bool {
	return len(m.Vertices) == 0 || len(m.Triangles) == 0
}

// Repaired reports whether Repair has been run on the mesh.
func (m *TriangleMesh) Repaired() bool {
	return m.repaired
}

// Normal returns the (unnormalized) facet normal of triangle i.
func (m *TriangleMesh) Normal(i int) Vec3 {
	t := m.Triangles[i]
	a, b, c := m.Vertices[t[0]], m.Vertices[t[1]], m.Vertices[t[2]]
	return b.Sub(a).Cross(c.Sub(a))
}

// Repair drops facets with out-of-range indices, repeated vertices or
// zero area, and marks the mesh as repaired. Triangle order of the
// surviving facets is preserved.
func (m *TriangleMesh) Repair() RepairStats {
	var stats RepairStats
	kept := m.Triangles[:0]
	for _, t := range m.Triangles {
		if t[0] < 0 || t[1] < 0 || t[2] < 0 ||
			t[0] >= len(m.Vertices) || t[1] >= len(m.Vertices) || t[2] >= len(m.Vertices) {
			stats.InvalidFacets++
			continue
		}
		if t[0] == t[1] || t[1] == t[2] || t[0] == t[2] {
			stats.DegenerateFacets++
			continue
		}
		a, b, c := m.Vertices[t[0]], m.Vertices[t[1]], m.Vertices[t[2]]
		if b.Sub(a).Cross(c.Sub(a)).Length() == 0 {
			stats.DegenerateFacets++
			continue
		}
		kept = append(kept, t)
	}
	m.Triangles = kept
	m.repaired = true
	return stats
}

// BoundingBox returns the axis-aligned bounds of all vertices.
func (m *TriangleMesh) BoundingBox() geometry.BoundingBox {
	b := geometry.NewBoundingBox()
	for _, v := range m.Vertices {
		b.Include(float64(v[0]), float64(v[1]), float64(v[2]))
	}
	return b
}

// Transformed returns a copy of the mesh with every vertex run through
// the affine transform t.
func (m *TriangleMesh) Transformed(t geometry.Matrix4) *TriangleMesh {
	out := &TriangleMesh{
		Vertices:  make([]Vec3, len(m.Vertices)),
		Triangles: make([]Triangle, len(m.Triangles)),
		repaired:  m.repaired,
	}
	for i, v := range m.Vertices {
		x, y, z := t.MulPoint(float64(v[0]), float64(v[1]), float64(v[2]))
		out.Vertices[i] = Vec3{float32(x), float32(y), float32(z)}
	}
	copy(out.Triangles, m.Triangles)
	return out
}
