// Package thumbnail renders a small PNG preview of a scene for the
// Metadata/thumbnail.png archive part: an orthographic top-down
// projection with depth-sorted, normal-shaded facets.
package thumbnail

import (
	"image"
	"image/color"
	"math"
	"sort"

	"github.com/chewxy/math32"

	"github.com/kjplatz/slic3mf/internal/mesh"
	"github.com/kjplatz/slic3mf/internal/model"
)

var (
	background = color.NRGBA{R: 0x1e, G: 0x1e, B: 0x24, A: 0xff}
	baseColor  = [3]float32{0xfd, 0x7e, 0x14} // slicer orange
)

// Render projects the scene onto the XY plane into a w x h image.
// An empty scene yields a plain background.
func Render(m *model.Model, w, h int) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	fill(img, background)

	tris := collectWorldTriangles(m)
	if len(tris) == 0 {
		return img
	}

	// fit the scene into the image with a small border
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, t := range tris {
		for _, v := range t.v {
			minX = math.Min(minX, float64(v[0]))
			maxX = math.Max(maxX, float64(v[0]))
			minY = math.Min(minY, float64(v[1]))
			maxY = math.Max(maxY, float64(v[1]))
		}
	}
	spanX, spanY := maxX-minX, maxY-minY
	if spanX == 0 {
		spanX = 1
	}
	if spanY == 0 {
		spanY = 1
	}
	border := 0.05
	scale := math.Min(float64(w)*(1-2*border)/spanX, float64(h)*(1-2*border)/spanY)
	offX := (float64(w) - spanX*scale) / 2
	offY := (float64(h) - spanY*scale) / 2

	// painter's algorithm: draw back to front
	sort.Slice(tris, func(i, j int) bool {
		return tris[i].depth() < tris[j].depth()
	})

	for _, t := range tris {
		shade := t.shade()
		c := color.NRGBA{
			R: uint8(baseColor[0] * shade),
			G: uint8(baseColor[1] * shade),
			B: uint8(baseColor[2] * shade),
			A: 0xff,
		}
		var px [3][2]float64
		for i, v := range t.v {
			px[i][0] = offX + (float64(v[0])-minX)*scale
			// image Y grows downward
			px[i][1] = float64(h) - (offY + (float64(v[1])-minY)*scale)
		}
		fillTriangle(img, px, c)
	}

	return img
}

type worldTriangle struct {
	v [3]mesh.Vec3
}

func (t worldTriangle) depth() float32 {
	return (t.v[0][2] + t.v[1][2] + t.v[2][2]) / 3
}

// shade lights the facet by how much its normal faces the viewer.
func (t worldTriangle) shade() float32 {
	n := t.v[1].Sub(t.v[0]).Cross(t.v[2].Sub(t.v[0]))
	l := n.Length()
	if l == 0 {
		return 0.3
	}
	s := math32.Abs(n[2]) / l
	return 0.3 + 0.7*s
}

func collectWorldTriangles(m *model.Model) []worldTriangle {
	var tris []worldTriangle
	for _, obj := range m.Objects {
		for _, inst := range obj.Instances {
			instMatrix := inst.Transformation.Matrix()
			for _, vol := range obj.Volumes {
				if vol.Mesh == nil {
					continue
				}
				world := instMatrix.Mul(vol.Transformation.Matrix())
				transformed := vol.Mesh.Transformed(world)
				for _, tr := range transformed.Triangles {
					tris = append(tris, worldTriangle{v: [3]mesh.Vec3{
						transformed.Vertices[tr[0]],
						transformed.Vertices[tr[1]],
						transformed.Vertices[tr[2]],
					}})
				}
			}
		}
	}
	return tris
}

func fill(img *image.NRGBA, c color.NRGBA) {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
}

// fillTriangle rasterizes with a barycentric inside test over the
// triangle's pixel bounding box; previews are small, speed is fine.
func fillTriangle(img *image.NRGBA, p [3][2]float64, c color.NRGBA) {
	minX := int(math.Floor(math.Min(p[0][0], math.Min(p[1][0], p[2][0]))))
	maxX := int(math.Ceil(math.Max(p[0][0], math.Max(p[1][0], p[2][0]))))
	minY := int(math.Floor(math.Min(p[0][1], math.Min(p[1][1], p[2][1]))))
	maxY := int(math.Ceil(math.Max(p[0][1], math.Max(p[1][1], p[2][1]))))

	b := img.Bounds()
	minX = max(minX, b.Min.X)
	minY = max(minY, b.Min.Y)
	maxX = min(maxX, b.Max.X-1)
	maxY = min(maxY, b.Max.Y-1)

	area := edge(p[0], p[1], p[2])
	if area == 0 {
		return
	}

	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			q := [2]float64{float64(x) + 0.5, float64(y) + 0.5}
			w0 := edge(p[1], p[2], q)
			w1 := edge(p[2], p[0], q)
			w2 := edge(p[0], p[1], q)
			if (w0 >= 0 && w1 >= 0 && w2 >= 0) || (w0 <= 0 && w1 <= 0 && w2 <= 0) {
				img.SetNRGBA(x, y, c)
			}
		}
	}
}

func edge(a, b, q [2]float64) float64 {
	return (b[0]-a[0])*(q[1]-a[1]) - (b[1]-a[1])*(q[0]-a[0])
}
