package mesh

import "github.com/chewxy/math32"

const hullEpsilon = 1e-6

// ConvexHull computes the convex hull of the mesh vertices with an
// incremental algorithm: seed a tetrahedron from extreme points, then
// fold each remaining vertex into the hull by replacing the faces it
// sees with a fan around the horizon. Meshes with fewer than four
// non-coplanar vertices return a copy of the input.
func (m *TriangleMesh) ConvexHull() *TriangleMesh {
	pts := m.Vertices
	if len(pts) < 4 {
		return m.clone()
	}

	seed, ok := seedTetrahedron(pts)
	if !ok {
		return m.clone()
	}

	faces := seed
	for i := range pts {
		faces = addPointToHull(faces, pts, i)
	}

	return compactHull(pts, faces)
}

type hullFace struct {
	a, b, c int
}

func faceNormal(pts []Vec3, f hullFace) Vec3 {
	return pts[f.b].Sub(pts[f.a]).Cross(pts[f.c].Sub(pts[f.a]))
}

func faceSees(pts []Vec3, f hullFace, p int) bool {
	return faceNormal(pts, f).Dot(pts[p].Sub(pts[f.a])) > hullEpsilon
}

// seedTetrahedron picks four non-coplanar points and returns the four
// outward-facing seed faces.
func seedTetrahedron(pts []Vec3) ([]hullFace, bool) {
	// two most distant points along x as a starting edge
	i0, i1 := 0, 0
	for i, p := range pts {
		if p[0] < pts[i0][0] {
			i0 = i
		}
		if p[0] > pts[i1][0] {
			i1 = i
		}
	}
	if i0 == i1 {
		return nil, false
	}

	// furthest point from the line (i0, i1)
	dir := pts[i1].Sub(pts[i0])
	i2, best := -1, float32(hullEpsilon)
	for i, p := range pts {
		d := dir.Cross(p.Sub(pts[i0])).Length()
		if d > best {
			i2, best = i, d
		}
	}
	if i2 < 0 {
		return nil, false
	}

	// furthest point from the plane (i0, i1, i2)
	n := pts[i1].Sub(pts[i0]).Cross(pts[i2].Sub(pts[i0]))
	i3, bestD := -1, float32(hullEpsilon)
	for i, p := range pts {
		d := math32.Abs(n.Dot(p.Sub(pts[i0])))
		if d > bestD {
			i3, bestD = i, d
		}
	}
	if i3 < 0 {
		return nil, false
	}

	faces := []hullFace{
		{i0, i1, i2},
		{i0, i2, i3},
		{i0, i3, i1},
		{i1, i3, i2},
	}
	// orient every face away from the tetrahedron centroid
	var cx, cy, cz float32
	for _, i := range [4]int{i0, i1, i2, i3} {
		cx += pts[i][0]
		cy += pts[i][1]
		cz += pts[i][2]
	}
	centroid := Vec3{cx / 4, cy / 4, cz / 4}
	for i, f := range faces {
		if faceNormal(pts, f).Dot(centroid.Sub(pts[f.a])) > 0 {
			faces[i] = hullFace{f.a, f.c, f.b}
		}
	}
	return faces, true
}

func addPointToHull(faces []hullFace, pts []Vec3, p int) []hullFace {
	visible := make([]bool, len(faces))
	any := false
	for i, f := range faces {
		if faceSees(pts, f, p) {
			visible[i] = true
			any = true
		}
	}
	if !any {
		return faces
	}

	// horizon edges: edges between a visible and a hidden face
	type edge struct{ a, b int }
	edgeCount := map[edge]int{}
	for i, f := range faces {
		if !visible[i] {
			continue
		}
		for _, e := range [3]edge{{f.a, f.b}, {f.b, f.c}, {f.c, f.a}} {
			edgeCount[e]++
		}
	}

	kept := faces[:0]
	for i, f := range faces {
		if !visible[i] {
			kept = append(kept, f)
		}
	}
	for e := range edgeCount {
		// an edge whose reverse is not also visible lies on the horizon
		if edgeCount[edge{e.b, e.a}] == 0 {
			kept = append(kept, hullFace{e.a, e.b, p})
		}
	}
	return kept
}

func compactHull(pts []Vec3, faces []hullFace) *TriangleMesh {
	out := &TriangleMesh{repaired: true}
	remap := map[int]int{}
	use := func(i int) int {
		if n, ok := remap[i]; ok {
			return n
		}
		n := len(out.Vertices)
		remap[i] = n
		out.Vertices = append(out.Vertices, pts[i])
		return n
	}
	for _, f := range faces {
		out.Triangles = append(out.Triangles, Triangle{use(f.a), use(f.b), use(f.c)})
	}
	return out
}

func (m *TriangleMesh) clone() *TriangleMesh {
	out := &TriangleMesh{
		Vertices:  make([]Vec3, len(m.Vertices)),
		Triangles: make([]Triangle, len(m.Triangles)),
		repaired:  m.repaired,
	}
	copy(out.Vertices, m.Vertices)
	copy(out.Triangles, m.Triangles)
	return out
}
