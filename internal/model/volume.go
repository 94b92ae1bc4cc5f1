package model

import (
	"github.com/kjplatz/slic3mf/internal/geometry"
	"github.com/kjplatz/slic3mf/internal/mesh"
	"github.com/kjplatz/slic3mf/internal/printconfig"
)

// VolumeType classifies what a volume contributes to the print.
type VolumeType int

const (
	ModelPart VolumeType = iota
	ParameterModifier
	SupportEnforcer
	SupportBlocker
)

// String returns the wire spelling of the volume type.
func (t VolumeType) String() string {
	switch t {
	case ParameterModifier:
		return "ParameterModifier"
	case SupportEnforcer:
		return "SupportEnforcer"
	case SupportBlocker:
		return "SupportBlocker"
	default:
		return "ModelPart"
	}
}

// VolumeTypeFromString parses the wire spelling; unknown strings map to
// ModelPart.
func VolumeTypeFromString(s string) VolumeType {
	switch s {
	case "ParameterModifier":
		return ParameterModifier
	case "SupportEnforcer":
		return SupportEnforcer
	case "SupportBlocker":
		return SupportBlocker
	default:
		return ModelPart
	}
}

// VolumeSource records where a volume's mesh was imported from.
type VolumeSource struct {
	InputFile  string
	ObjectIdx  int
	VolumeIdx  int
	MeshOffset [3]float64
}

// Volume is a sub-mesh of an object with its own local frame, type and
// setting overrides. The mesh is stored in the volume's local
// coordinates; Transformation places it in the object frame.
type Volume struct {
	Name           string
	Mesh           *mesh.TriangleMesh
	Transformation geometry.Transformation
	Source         VolumeSource
	Config         *printconfig.Config

	typ  VolumeType
	hull *mesh.TriangleMesh
}

// Type returns the volume classification.
func (v *Volume) Type() VolumeType {
	return v.typ
}

// SetType sets the volume classification.
func (v *Volume) SetType(t VolumeType) {
	v.typ = t
}

// IsModifier reports whether the volume only modifies settings of the
// geometry it overlaps.
func (v *Volume) IsModifier() bool {
	return v.typ == ParameterModifier
}

// CalculateConvexHull computes and caches the hull of the volume mesh.
func (v *Volume) CalculateConvexHull() {
	if v.Mesh != nil {
		v.hull = v.Mesh.ConvexHull()
	}
}

// ConvexHull returns the cached hull, computing it on first use.
func (v *Volume) ConvexHull() *mesh.TriangleMesh {
	if v.hull == nil {
		v.CalculateConvexHull()
	}
	return v.hull
}
