package arrange

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kjplatz/slic3mf/internal/mesh"
	"github.com/kjplatz/slic3mf/internal/model"
)

func slab(size float32) *mesh.TriangleMesh {
	m := &mesh.TriangleMesh{
		Vertices: []mesh.Vec3{
			{0, 0, 0}, {size, 0, 0}, {size, size, 0}, {0, size, 0}, {0, 0, 1},
		},
		Triangles: []mesh.Triangle{
			{0, 1, 2}, {0, 2, 3}, {0, 1, 4}, {1, 2, 4},
		},
	}
	m.Repair()
	return m
}

func TestArrangeSeparatesOverlappingInstances(t *testing.T) {
	m := model.New()
	obj := m.AddObject()
	obj.AddVolume(slab(30))
	obj.AddInstance()
	obj.AddInstance() // both at the origin, overlapping

	Arrange(m, Options{PlateWidth: 200, Margin: 10})

	a := obj.Instances[0].Transformation.Offset
	b := obj.Instances[1].Transformation.Offset
	dx := a[0] - b[0]
	dy := a[1] - b[1]
	if dx < 0 {
		dx = -dx
	}
	if dy < 0 {
		dy = -dy
	}
	assert.True(t, dx >= 30 || dy >= 30, "footprints must not overlap after arranging (offsets %v, %v)", a, b)
}

func TestArrangeKeepsZPlacement(t *testing.T) {
	m := model.New()
	obj := m.AddObject()
	obj.AddVolume(slab(10))
	obj.AddInstance()

	before := obj.Instances[0].Transformation.Offset[2]
	Arrange(m, DefaultOptions())
	assert.Equal(t, before, obj.Instances[0].Transformation.Offset[2])
}

func TestArrangeEmptySceneIsNoop(t *testing.T) {
	m := model.New()
	m.AddObject() // no volumes, no instances
	require.NotPanics(t, func() { Arrange(m, DefaultOptions()) })
}
