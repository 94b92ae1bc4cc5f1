// Package model is the in-memory scene the codec reads into and writes
// from: a list of objects, each owning volumes (sub-meshes with local
// frames and settings) and instances (placements on the plate).
package model

import (
	"github.com/kjplatz/slic3mf/internal/geometry"
	"github.com/kjplatz/slic3mf/internal/mesh"
	"github.com/kjplatz/slic3mf/internal/printconfig"
)

// Model is the whole printable scene.
type Model struct {
	Objects []*Object
}

// New returns an empty scene.
func New() *Model {
	return &Model{}
}

// AddObject appends a fresh object to the scene and returns it.
func (m *Model) AddObject() *Object {
	o := &Object{Config: printconfig.New()}
	m.Objects = append(m.Objects, o)
	return o
}

// DeleteObject removes o from the scene.
func (m *Model) DeleteObject(o *Object) {
	for i, obj := range m.Objects {
		if obj == o {
			m.Objects = append(m.Objects[:i], m.Objects[i+1:]...)
			return
		}
	}
}

// BoundingBox returns the world bounds of every instance of every
// object.
func (m *Model) BoundingBox() geometry.BoundingBox {
	b := geometry.NewBoundingBox()
	for _, o := range m.Objects {
		b.Merge(o.BoundingBox())
	}
	return b
}

// AdjustMinZ lifts the whole scene so nothing sits below the plate.
func (m *Model) AdjustMinZ() {
	b := m.BoundingBox()
	if !b.Defined() || b.MinZ >= 0 {
		return
	}
	shift := -b.MinZ
	for _, o := range m.Objects {
		for _, inst := range o.Instances {
			inst.Transformation = inst.Transformation.Translate(0, 0, shift)
		}
	}
}

// SlaPointsStatus tracks where an object's SLA support points came from.
type SlaPointsStatus int

const (
	SlaPointsNone SlaPointsStatus = iota
	SlaPointsUserModified
)

// Object is one printable object: a set of volumes sharing a triangle
// pool in the archive, plus its placements and slicing overrides.
type Object struct {
	Name   string
	Config *printconfig.Config

	Volumes   []*Volume
	Instances []*Instance

	LayerHeightProfile []float64
	LayerConfigRanges  []LayerConfigRange
	SlaSupportPoints   []SlaSupportPoint
	SlaPointsStatus    SlaPointsStatus
}

// AddVolume appends a volume holding m and returns it.
func (o *Object) AddVolume(m *mesh.TriangleMesh) *Volume {
	v := &Volume{
		Mesh:           m,
		Config:         printconfig.New(),
		Transformation: geometry.IdentityTransformation(),
	}
	o.Volumes = append(o.Volumes, v)
	return v
}

// AddInstance appends an identity-placed instance and returns it.
func (o *Object) AddInstance() *Instance {
	inst := &Instance{
		Transformation: geometry.IdentityTransformation(),
		Printable:      true,
	}
	o.Instances = append(o.Instances, inst)
	return inst
}

// BoundingBox returns the world bounds of the object across all its
// instances.
func (o *Object) BoundingBox() geometry.BoundingBox {
	local := o.LocalBoundingBox()
	b := geometry.NewBoundingBox()
	if !local.Defined() {
		return b
	}
	for _, inst := range o.Instances {
		b.Merge(local.Transformed(inst.Transformation.Matrix()))
	}
	return b
}

// LocalBoundingBox returns the object-frame bounds over all volumes,
// with each volume's local matrix applied.
func (o *Object) LocalBoundingBox() geometry.BoundingBox {
	b := geometry.NewBoundingBox()
	for _, v := range o.Volumes {
		if v.Mesh == nil {
			continue
		}
		b.Merge(v.Mesh.BoundingBox().Transformed(v.Transformation.Matrix()))
	}
	return b
}

// Instance is one placement of an object on the plate.
type Instance struct {
	Transformation geometry.Transformation
	Printable      bool
}

// LayerConfigRange overrides print settings for a Z range.
type LayerConfigRange struct {
	MinZ, MaxZ float64
	Config     *printconfig.Config
}

// SlaSupportPoint is a user- or auto-placed SLA support head position.
type SlaSupportPoint struct {
	Pos             mesh.Vec3
	HeadFrontRadius float32
	IsNewIsland     bool
}
