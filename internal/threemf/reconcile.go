package threemf

import (
	"strconv"

	"github.com/kjplatz/slic3mf/internal/geometry"
	"github.com/kjplatz/slic3mf/internal/mesh"
	"github.com/kjplatz/slic3mf/internal/model"
)

// reconcile joins the geometry pool with the sidecar metadata: it
// attaches the per-scene-index sidecars, slices each object's shared
// triangle pool into volumes, and applies the typed volume metadata.
func (imp *Importer) reconcile() error {
	for _, id := range imp.objectIDs {
		obj := imp.objectPtrs[id]
		sceneIdx := imp.objects[id]

		geom, ok := imp.geometries[id]
		if !ok {
			return imp.errs.fail("unable to find object geometry")
		}

		// line-oriented sidecars are keyed by 1-based scene index
		if profile, ok := imp.layerHeights[sceneIdx+1]; ok {
			obj.LayerHeightProfile = profile
		}
		if ranges, ok := imp.layerConfigRanges[sceneIdx+1]; ok {
			obj.LayerConfigRanges = ranges
		}
		if points, ok := imp.slaSupportPoints[sceneIdx+1]; ok && len(points) > 0 {
			obj.SlaSupportPoints = points
			obj.SlaPointsStatus = model.SlaPointsUserModified
		}

		var volumes []volumeMetadata
		if meta, ok := imp.objectsMetadata[id]; ok {
			// the archive was saved by this slicer dialect: apply the
			// object-level metadata and use its volume partition
			for _, pair := range meta.Metadata {
				if pair.Key == nameKey {
					obj.Name = pair.Value
				} else {
					obj.Config.Set(pair.Key, pair.Value)
				}
			}
			volumes = meta.Volumes
		} else {
			// plain 3MF: a single volume spanning the whole pool
			volumes = []volumeMetadata{{
				FirstTriangleID: 0,
				LastTriangleID:  len(geom.Triangles)/3 - 1,
			}}
		}

		if err := imp.generateVolumes(obj, geom, volumes); err != nil {
			return err
		}
	}
	return nil
}

// generateVolumes slices the object's shared triangle pool along the
// sidecar ranges, building a compacted mesh per volume.
func (imp *Importer) generateVolumes(obj *model.Object, geom *objectGeometry, volumes []volumeMetadata) error {
	if len(obj.Volumes) != 0 {
		return imp.errs.fail("found invalid volumes count")
	}

	triCount := len(geom.Triangles) / 3

	for _, vd := range volumes {
		if vd.FirstTriangleID >= triCount || vd.LastTriangleID >= triCount || vd.LastTriangleID < vd.FirstTriangleID {
			return imp.errs.fail("found invalid triangle id")
		}

		// with format version 2 the volume's local frame is carried in
		// the sidecar; vertices are stored back in local coordinates
		matrix := geometry.Identity()
		if imp.version > 1 {
			for _, pair := range vd.Metadata {
				if pair.Key == matrixKey {
					matrix = geometry.ParseMatrix4x4(pair.Value)
					break
				}
			}
		}
		inv := matrix.Inverse()

		m := &mesh.TriangleMesh{}
		remap := map[int]int{}
		for ti := vd.FirstTriangleID; ti <= vd.LastTriangleID; ti++ {
			var tri mesh.Triangle
			for v := 0; v < 3; v++ {
				src := geom.Triangles[ti*3+v]
				if src < 0 || src*3+2 >= len(geom.Vertices) {
					return imp.errs.fail("found invalid vertex id")
				}
				dst, ok := remap[src]
				if !ok {
					x := float64(geom.Vertices[src*3])
					y := float64(geom.Vertices[src*3+1])
					z := float64(geom.Vertices[src*3+2])
					if imp.version > 1 {
						x, y, z = inv.MulPoint(x, y, z)
					}
					dst = len(m.Vertices)
					remap[src] = dst
					m.Vertices = append(m.Vertices, mesh.Vec3{float32(x), float32(y), float32(z)})
				}
				tri[v] = dst
			}
			m.Triangles = append(m.Triangles, tri)
		}

		m.Repair()

		volume := obj.AddVolume(m)
		if imp.version > 1 {
			volume.Transformation = geometry.NewTransformation(matrix)
		}
		volume.CalculateConvexHull()

		// apply the remaining metadata; modifier first, volume_type
		// later in document order overrides it
		for _, pair := range vd.Metadata {
			switch pair.Key {
			case nameKey:
				volume.Name = pair.Value
			case modifierKey:
				if pair.Value == "1" {
					volume.SetType(model.ParameterModifier)
				}
			case volumeTypeKey:
				volume.SetType(model.VolumeTypeFromString(pair.Value))
			case matrixKey:
				// consumed above
			case sourceFileKey:
				volume.Source.InputFile = pair.Value
			case sourceObjectKey:
				volume.Source.ObjectIdx, _ = strconv.Atoi(pair.Value)
			case sourceVolumeKey:
				volume.Source.VolumeIdx, _ = strconv.Atoi(pair.Value)
			case sourceOffsetXKey:
				volume.Source.MeshOffset[0], _ = strconv.ParseFloat(pair.Value, 64)
			case sourceOffsetYKey:
				volume.Source.MeshOffset[1], _ = strconv.ParseFloat(pair.Value, 64)
			case sourceOffsetZKey:
				volume.Source.MeshOffset[2], _ = strconv.ParseFloat(pair.Value, 64)
			default:
				volume.Config.Set(pair.Key, pair.Value)
			}
		}
	}

	return nil
}
