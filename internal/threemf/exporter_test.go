package threemf

import (
	"archive/zip"
	"image"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kjplatz/slic3mf/internal/geometry"
	"github.com/kjplatz/slic3mf/internal/mesh"
	"github.com/kjplatz/slic3mf/internal/model"
	"github.com/kjplatz/slic3mf/internal/printconfig"
)

func cubeTriangleMesh() *mesh.TriangleMesh {
	m := &mesh.TriangleMesh{}
	for _, v := range cubeVertices {
		m.Vertices = append(m.Vertices, mesh.Vec3{float32(v[0]), float32(v[1]), float32(v[2])})
	}
	for _, tr := range cubeTriangles {
		m.Triangles = append(m.Triangles, mesh.Triangle{tr[0], tr[1], tr[2]})
	}
	m.Repair()
	return m
}

func buildCubeScene() *model.Model {
	m := model.New()
	obj := m.AddObject()
	obj.Name = "cube"
	vol := obj.AddVolume(cubeTriangleMesh())
	vol.Name = "body"
	obj.AddInstance()
	return m
}

func readEntry(t *testing.T, path, name string) string {
	t.Helper()
	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer zr.Close()

	for _, f := range zr.File {
		if f.Name == name {
			rc, err := f.Open()
			require.NoError(t, err)
			defer rc.Close()
			data, err := io.ReadAll(rc)
			require.NoError(t, err)
			return string(data)
		}
	}
	t.Fatalf("entry %s not found in %s", name, path)
	return ""
}

func entryNames(t *testing.T, path string) []string {
	t.Helper()
	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer zr.Close()

	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	return names
}

func TestStoreMinimalCube(t *testing.T) {
	scene := buildCubeScene()
	out := filepath.Join(t.TempDir(), "cube.3mf")

	exp := NewExporter(nil)
	require.NoError(t, exp.Store(out, scene, nil, nil))

	names := entryNames(t, out)
	assert.Equal(t, "[Content_Types].xml", names[0], "content types come first")
	assert.Contains(t, names, "_rels/.rels")
	assert.Contains(t, names, "3D/3dmodel.model")
	assert.Contains(t, names, "Metadata/Slic3r_PE_model.config")

	modelPart := readEntry(t, out, "3D/3dmodel.model")
	assert.Equal(t, 8, strings.Count(modelPart, "<vertex "))
	assert.Equal(t, 12, strings.Count(modelPart, "<triangle "))
	assert.Contains(t, modelPart, `<metadata name="slic3rpe:Version3mf">2</metadata>`)
	assert.Contains(t, modelPart, `<item objectid="1" transform="1 0 0 0 1 0 0 0 1 0 0 0" printable="1" />`)

	sidecar := readEntry(t, out, "Metadata/Slic3r_PE_model.config")
	assert.Contains(t, sidecar, `<volume firstid="0" lastid="11">`)
	assert.Contains(t, sidecar, `key="name" value="body"`)
}

func TestStoreFailsWithoutInstances(t *testing.T) {
	m := model.New()
	obj := m.AddObject()
	obj.AddVolume(cubeTriangleMesh())

	out := filepath.Join(t.TempDir(), "none.3mf")
	err := NewExporter(nil).Store(out, m, nil, nil)
	require.ErrorIs(t, err, ErrNoBuildItems)

	// the partial file is removed
	_, statErr := zip.OpenReader(out)
	assert.Error(t, statErr)
}

func TestStoreRequiresRepairedMeshes(t *testing.T) {
	m := model.New()
	obj := m.AddObject()
	raw := &mesh.TriangleMesh{
		Vertices:  []mesh.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
		Triangles: []mesh.Triangle{{0, 1, 2}},
	}
	obj.AddVolume(raw)
	obj.AddInstance()

	err := NewExporter(nil).Store(filepath.Join(t.TempDir(), "x.3mf"), m, nil, nil)
	require.Error(t, err)
}

func TestStoreWithThumbnail(t *testing.T) {
	scene := buildCubeScene()
	out := filepath.Join(t.TempDir(), "thumb.3mf")

	img := image.NewNRGBA(image.Rect(0, 0, 16, 16))
	require.NoError(t, NewExporter(nil).Store(out, scene, nil, img))

	names := entryNames(t, out)
	assert.Contains(t, names, "Metadata/thumbnail.png")
	assert.Contains(t, readEntry(t, out, "[Content_Types].xml"), `Extension="png"`)
	assert.Contains(t, readEntry(t, out, "_rels/.rels"), "thumbnail.png")
}

func TestRoundTripCube(t *testing.T) {
	scene := buildCubeScene()
	obj := scene.Objects[0]
	obj.Config.Set("fill_density", "42%")
	vol := obj.Volumes[0]
	vol.Config.Set("extruder", "2")
	vol.Source.InputFile = "body.stl"
	vol.Source.ObjectIdx = 3
	vol.Source.VolumeIdx = 1
	vol.Source.MeshOffset = [3]float64{0.5, 0, 0}

	cfg := printconfig.New()
	cfg.Set("layer_height", "0.15")
	cfg.Set("compatible_printers", "MK3S")

	out := filepath.Join(t.TempDir(), "rt.3mf")
	require.NoError(t, NewExporter(nil).Store(out, scene, cfg, nil))

	got := model.New()
	gotCfg := printconfig.New()
	imp := NewImporter(nil)
	require.NoError(t, imp.Load(out, got, gotCfg, true))

	require.Len(t, got.Objects, 1)
	gotObj := got.Objects[0]
	assert.Equal(t, "cube", gotObj.Name)
	v, _ := gotObj.Config.Get("fill_density")
	assert.Equal(t, "42%", v)

	require.Len(t, gotObj.Volumes, 1)
	gotVol := gotObj.Volumes[0]
	assert.Equal(t, "body", gotVol.Name)
	assert.Equal(t, vol.Mesh.Vertices, gotVol.Mesh.Vertices, "vertices survive the text round trip exactly")
	assert.Equal(t, vol.Mesh.Triangles, gotVol.Mesh.Triangles)
	v, _ = gotVol.Config.Get("extruder")
	assert.Equal(t, "2", v)
	assert.Equal(t, "body.stl", gotVol.Source.InputFile)
	assert.Equal(t, 3, gotVol.Source.ObjectIdx)
	assert.Equal(t, 1, gotVol.Source.VolumeIdx)
	assert.Equal(t, 0.5, gotVol.Source.MeshOffset[0])

	require.Len(t, gotObj.Instances, 1)
	assert.True(t, gotObj.Instances[0].Printable)

	// compatible_printers never lands in the archive
	v, _ = gotCfg.Get("layer_height")
	assert.Equal(t, "0.15", v)
	assert.False(t, gotCfg.Has("compatible_printers"))
}

func TestRoundTripMultipleInstances(t *testing.T) {
	scene := buildCubeScene()
	obj := scene.Objects[0]
	second := obj.AddInstance()
	second.Transformation = geometry.NewTransformation(geometry.Translation(20, 0, 0))

	out := filepath.Join(t.TempDir(), "multi.3mf")
	require.NoError(t, NewExporter(nil).Store(out, scene, nil, nil))

	// instance two is a component alias of instance one
	modelPart := readEntry(t, out, "3D/3dmodel.model")
	assert.Contains(t, modelPart, `<object id="2" type="model">`)
	assert.Contains(t, modelPart, `<component objectid="1" />`)
	assert.Equal(t, 2, strings.Count(modelPart, "<item "))

	got := model.New()
	require.NoError(t, NewImporter(nil).Load(out, got, nil, true))
	require.Len(t, got.Objects, 1)
	require.Len(t, got.Objects[0].Instances, 2)
	assert.Equal(t, [3]float64{20, 0, 0}, got.Objects[0].Instances[1].Transformation.Offset)
}

func TestRoundTripVolumeMatrix(t *testing.T) {
	scene := buildCubeScene()
	vol := scene.Objects[0].Volumes[0]
	vol.Transformation = geometry.NewTransformation(geometry.Translation(7, 0, 0))

	out := filepath.Join(t.TempDir(), "vm.3mf")
	require.NoError(t, NewExporter(nil).Store(out, scene, nil, nil))

	// the geometry part holds world-frame vertices
	modelPart := readEntry(t, out, "3D/3dmodel.model")
	assert.Contains(t, modelPart, `x="7"`)

	got := model.New()
	require.NoError(t, NewImporter(nil).Load(out, got, nil, true))
	gotVol := got.Objects[0].Volumes[0]
	assert.Equal(t, [3]float64{7, 0, 0}, gotVol.Transformation.Offset)
	assert.Equal(t, vol.Mesh.Vertices, gotVol.Mesh.Vertices, "the reader undoes the world-frame transform")
}

func TestRoundTripProfilesAndPoints(t *testing.T) {
	scene := buildCubeScene()
	obj := scene.Objects[0]
	obj.LayerHeightProfile = []float64{0, 0.2, 10, 0.3}
	obj.LayerConfigRanges = []model.LayerConfigRange{{
		MinZ: 0, MaxZ: 4, Config: printconfig.New(),
	}}
	obj.LayerConfigRanges[0].Config.Set("perimeters", "5")
	obj.SlaSupportPoints = []model.SlaSupportPoint{
		{Pos: mesh.Vec3{1, 2, 3}, HeadFrontRadius: 0.4, IsNewIsland: true},
	}

	out := filepath.Join(t.TempDir(), "aux.3mf")
	require.NoError(t, NewExporter(nil).Store(out, scene, nil, nil))

	got := model.New()
	require.NoError(t, NewImporter(nil).Load(out, got, nil, true))
	gotObj := got.Objects[0]

	assert.Equal(t, obj.LayerHeightProfile, gotObj.LayerHeightProfile)
	require.Len(t, gotObj.LayerConfigRanges, 1)
	assert.Equal(t, 4.0, gotObj.LayerConfigRanges[0].MaxZ)
	v, _ := gotObj.LayerConfigRanges[0].Config.Get("perimeters")
	assert.Equal(t, "5", v)
	require.Len(t, gotObj.SlaSupportPoints, 1)
	assert.Equal(t, obj.SlaSupportPoints[0], gotObj.SlaSupportPoints[0])
}

func TestRoundTripEscapedMetadata(t *testing.T) {
	scene := buildCubeScene()
	scene.Objects[0].Name = `quoted "name" <&>`

	out := filepath.Join(t.TempDir(), "esc.3mf")
	require.NoError(t, NewExporter(nil).Store(out, scene, nil, nil))

	got := model.New()
	require.NoError(t, NewImporter(nil).Load(out, got, nil, true))
	assert.Equal(t, `quoted "name" <&>`, got.Objects[0].Name)
}
