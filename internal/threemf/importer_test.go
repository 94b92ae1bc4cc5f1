package threemf

import (
	"archive/zip"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kjplatz/slic3mf/internal/model"
	"github.com/kjplatz/slic3mf/internal/printconfig"
)

// writeArchive builds a zip at dir/name with the given parts.
func writeArchive(t *testing.T, name string, parts map[string]string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	require.NoError(t, err)

	zw := zip.NewWriter(f)
	for partName, data := range parts {
		w, err := zw.Create(partName)
		require.NoError(t, err)
		_, err = w.Write([]byte(data))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

// modelXML wraps a resources/build body in the standard envelope.
func modelXML(version string, body string) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(`<model unit="millimeter" xml:lang="en-US" xmlns="http://schemas.microsoft.com/3dmanufacturing/core/2015/02" xmlns:slic3rpe="http://schemas.slic3r.org/3mf/2017/06">` + "\n")
	if version != "" {
		b.WriteString(` <metadata name="slic3rpe:Version3mf">` + version + `</metadata>` + "\n")
	}
	b.WriteString(body)
	b.WriteString("</model>\n")
	return b.String()
}

var cubeVertices = [][3]float64{
	{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0},
	{0, 0, 1}, {1, 0, 1}, {1, 1, 1}, {0, 1, 1},
}

var cubeTriangles = [][3]int{
	{0, 1, 2}, {0, 2, 3},
	{4, 5, 6}, {4, 6, 7},
	{0, 1, 5}, {0, 5, 4},
	{1, 2, 6}, {1, 6, 5},
	{2, 3, 7}, {2, 7, 6},
	{3, 0, 4}, {3, 4, 7},
}

func meshXML(vertices [][3]float64, triangles [][3]int) string {
	var b strings.Builder
	b.WriteString("   <mesh>\n    <vertices>\n")
	for _, v := range vertices {
		fmt.Fprintf(&b, "     <vertex x=\"%g\" y=\"%g\" z=\"%g\" />\n", v[0], v[1], v[2])
	}
	b.WriteString("    </vertices>\n    <triangles>\n")
	for _, tr := range triangles {
		fmt.Fprintf(&b, "     <triangle v1=\"%d\" v2=\"%d\" v3=\"%d\" />\n", tr[0], tr[1], tr[2])
	}
	b.WriteString("    </triangles>\n   </mesh>\n")
	return b.String()
}

func cubeModelBody() string {
	return " <resources>\n  <object id=\"1\" type=\"model\">\n" + meshXML(cubeVertices, cubeTriangles) +
		"  </object>\n </resources>\n <build>\n  <item objectid=\"1\" transform=\"1 0 0 0 1 0 0 0 1 0 0 0\" printable=\"1\" />\n </build>\n"
}

func loadArchive(t *testing.T, path string, checkVersion bool) (*model.Model, *printconfig.Config, *Importer, error) {
	t.Helper()
	m := model.New()
	cfg := printconfig.New()
	imp := NewImporter(nil)
	err := imp.Load(path, m, cfg, checkVersion)
	return m, cfg, imp, err
}

func TestLoadMinimalCubeWithoutSidecar(t *testing.T) {
	path := writeArchive(t, "box.3mf", map[string]string{
		"3D/3dmodel.model": modelXML("2", cubeModelBody()),
	})

	m, _, _, err := loadArchive(t, path, true)
	require.NoError(t, err)
	require.Len(t, m.Objects, 1)

	obj := m.Objects[0]
	// no sidecar: one volume spanning the whole pool, synthesized name
	assert.Equal(t, "box_1", obj.Name)
	require.Len(t, obj.Volumes, 1)
	assert.Len(t, obj.Volumes[0].Mesh.Triangles, 12)
	assert.Len(t, obj.Volumes[0].Mesh.Vertices, 8)

	require.Len(t, obj.Instances, 1)
	assert.True(t, obj.Instances[0].Printable)
	assert.True(t, obj.Instances[0].Transformation.Matrix().IsIdentity())
}

func TestLoadMissingTransformDefaultsToIdentity(t *testing.T) {
	body := " <resources>\n  <object id=\"1\" type=\"model\">\n" + meshXML(cubeVertices, cubeTriangles) +
		"  </object>\n </resources>\n <build>\n  <item objectid=\"1\" />\n </build>\n"
	path := writeArchive(t, "box.3mf", map[string]string{
		"3D/3dmodel.model": modelXML("2", body),
	})

	m, _, _, err := loadArchive(t, path, true)
	require.NoError(t, err)
	require.Len(t, m.Objects, 1)
	require.Len(t, m.Objects[0].Instances, 1)
	assert.True(t, m.Objects[0].Instances[0].Transformation.Matrix().IsIdentity())
	assert.True(t, m.Objects[0].Instances[0].Printable, "missing printable defaults to true")
}

func TestLoadUnitScaling(t *testing.T) {
	cases := []struct {
		unit   string
		factor float32
	}{
		{"micron", 0.001},
		{"millimeter", 1},
		{"centimeter", 10},
		{"inch", 25.4},
		{"foot", 304.8},
		{"meter", 1000},
		{"parsec", 1},
	}

	for _, tc := range cases {
		t.Run(tc.unit, func(t *testing.T) {
			body := " <resources>\n  <object id=\"1\" type=\"model\">\n" + meshXML([][3]float64{
				{1, 0, 0}, {0, 1, 0}, {0, 0, 1},
			}, [][3]int{{0, 1, 2}}) +
				"  </object>\n </resources>\n <build>\n  <item objectid=\"1\" />\n </build>\n"
			xml := strings.Replace(modelXML("2", body), `unit="millimeter"`, fmt.Sprintf("unit=%q", tc.unit), 1)
			path := writeArchive(t, "u.3mf", map[string]string{"3D/3dmodel.model": xml})

			m, _, _, err := loadArchive(t, path, true)
			require.NoError(t, err)
			require.Len(t, m.Objects, 1)

			mesh := m.Objects[0].Volumes[0].Mesh
			// the scene may have been lifted by AdjustMinZ, x stays put
			assert.Equal(t, tc.factor, mesh.Vertices[0][0])
		})
	}
}

func TestLoadSkipsInvalidObjectTypes(t *testing.T) {
	body := " <resources>\n" +
		"  <object id=\"1\" type=\"support\">\n" + meshXML(cubeVertices, cubeTriangles) + "  </object>\n" +
		"  <object id=\"2\" type=\"model\">\n" + meshXML(cubeVertices, cubeTriangles) + "  </object>\n" +
		" </resources>\n <build>\n  <item objectid=\"2\" />\n </build>\n"
	path := writeArchive(t, "s.3mf", map[string]string{
		"3D/3dmodel.model": modelXML("2", body),
	})

	m, _, _, err := loadArchive(t, path, true)
	require.NoError(t, err)
	assert.Len(t, m.Objects, 1)
}

func TestLoadDuplicateObjectIDFails(t *testing.T) {
	body := " <resources>\n" +
		"  <object id=\"1\" type=\"model\">\n" + meshXML(cubeVertices, cubeTriangles) + "  </object>\n" +
		"  <object id=\"1\" type=\"model\">\n" + meshXML(cubeVertices, cubeTriangles) + "  </object>\n" +
		" </resources>\n <build>\n  <item objectid=\"1\" />\n </build>\n"
	path := writeArchive(t, "dup.3mf", map[string]string{
		"3D/3dmodel.model": modelXML("2", body),
	})

	_, _, imp, err := loadArchive(t, path, true)
	require.Error(t, err)
	assert.Contains(t, strings.Join(imp.Errors(), "\n"), "duplicate id")
}

func TestLoadComponentForwardReferenceFails(t *testing.T) {
	body := " <resources>\n" +
		"  <object id=\"1\" type=\"model\">\n   <components>\n    <component objectid=\"2\" />\n   </components>\n  </object>\n" +
		"  <object id=\"2\" type=\"model\">\n" + meshXML(cubeVertices, cubeTriangles) + "  </object>\n" +
		" </resources>\n <build>\n  <item objectid=\"1\" />\n </build>\n"
	path := writeArchive(t, "fwd.3mf", map[string]string{
		"3D/3dmodel.model": modelXML("2", body),
	})

	_, _, _, err := loadArchive(t, path, true)
	require.Error(t, err)
}

func TestLoadCompositeAliasing(t *testing.T) {
	body := " <resources>\n" +
		"  <object id=\"1\" type=\"model\">\n" + meshXML(cubeVertices, cubeTriangles) + "  </object>\n" +
		"  <object id=\"2\" type=\"model\">\n   <components>\n    <component objectid=\"1\" transform=\"1 0 0 0 1 0 0 0 1 10 0 0\" />\n   </components>\n  </object>\n" +
		" </resources>\n <build>\n  <item objectid=\"2\" />\n </build>\n"
	path := writeArchive(t, "comp.3mf", map[string]string{
		"3D/3dmodel.model": modelXML("2", body),
	})

	m, _, _, err := loadArchive(t, path, true)
	require.NoError(t, err)
	require.Len(t, m.Objects, 1)

	obj := m.Objects[0]
	require.Len(t, obj.Instances, 1)
	assert.Equal(t, [3]float64{10, 0, 0}, obj.Instances[0].Transformation.Offset)
}

// aliasChainBody builds a mesh object 1 and composite objects 2..depth+1
// each referencing the previous one, with a build item on the last.
func aliasChainBody(compositeCount int) string {
	var b strings.Builder
	b.WriteString(" <resources>\n  <object id=\"1\" type=\"model\">\n")
	b.WriteString(meshXML(cubeVertices, cubeTriangles))
	b.WriteString("  </object>\n")
	for i := 0; i < compositeCount; i++ {
		id := i + 2
		fmt.Fprintf(&b, "  <object id=\"%d\" type=\"model\">\n   <components>\n    <component objectid=\"%d\" />\n   </components>\n  </object>\n", id, id-1)
	}
	b.WriteString(" </resources>\n <build>\n")
	fmt.Fprintf(&b, "  <item objectid=\"%d\" />\n", compositeCount+1)
	b.WriteString(" </build>\n")
	return b.String()
}

func TestAliasRecursionDepthBound(t *testing.T) {
	// nine composite hops on top of the build item stay within the
	// bound of ten
	path := writeArchive(t, "deep.3mf", map[string]string{
		"3D/3dmodel.model": modelXML("2", aliasChainBody(9)),
	})
	m, _, _, err := loadArchive(t, path, true)
	require.NoError(t, err)
	require.Len(t, m.Objects, 1)
	assert.Len(t, m.Objects[0].Instances, 1)

	// one more hop exceeds it and produces zero instances
	path = writeArchive(t, "toodeep.3mf", map[string]string{
		"3D/3dmodel.model": modelXML("2", aliasChainBody(10)),
	})
	m, _, imp, err := loadArchive(t, path, true)
	require.Error(t, err)
	assert.Contains(t, strings.Join(imp.Errors(), "\n"), "too many recursions")
	for _, obj := range m.Objects {
		assert.Empty(t, obj.Instances)
	}
}

func TestZeroScaleTransformKeepsIdentity(t *testing.T) {
	body := " <resources>\n  <object id=\"1\" type=\"model\">\n" + meshXML(cubeVertices, cubeTriangles) +
		"  </object>\n </resources>\n <build>\n  <item objectid=\"1\" transform=\"0 0 0 0 0 0 0 0 0 5 5 5\" />\n </build>\n"
	path := writeArchive(t, "zs.3mf", map[string]string{
		"3D/3dmodel.model": modelXML("2", body),
	})

	m, _, _, err := loadArchive(t, path, true)
	require.NoError(t, err)
	require.Len(t, m.Objects, 1)
	require.Len(t, m.Objects[0].Instances, 1)
	assert.True(t, m.Objects[0].Instances[0].Transformation.Matrix().IsIdentity())
}

func TestVersionGate(t *testing.T) {
	parts := map[string]string{
		"3D/3dmodel.model": modelXML("99", cubeModelBody()),
	}

	_, _, _, err := loadArchive(t, writeArchive(t, "new.3mf", parts), true)
	require.Error(t, err)
	assert.True(t, IsVersionError(err))

	_, _, _, err = loadArchive(t, writeArchive(t, "new.3mf", parts), false)
	assert.NoError(t, err)
}

func TestLoadSidecarVolumes(t *testing.T) {
	// ten triangles over two disjoint vertex sets: a tetrahedron and a
	// six-facet strip
	var vertices [][3]float64
	vertices = append(vertices, [][3]float64{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {0, 0, 1}}...)
	for i := 0; i < 18; i++ {
		vertices = append(vertices, [3]float64{float64(10 + i), float64(i % 3), float64(i % 2)})
	}
	triangles := [][3]int{
		{0, 1, 2}, {0, 1, 3}, {0, 2, 3}, {1, 2, 3},
	}
	for i := 0; i < 6; i++ {
		base := 4 + i*3
		triangles = append(triangles, [3]int{base, base + 1, base + 2})
	}

	body := " <resources>\n  <object id=\"1\" type=\"model\">\n" + meshXML(vertices, triangles) +
		"  </object>\n </resources>\n <build>\n  <item objectid=\"1\" />\n </build>\n"

	sidecar := `<?xml version="1.0" encoding="UTF-8"?>
<config>
 <object id="1">
  <metadata type="object" key="name" value="twin"/>
  <metadata type="object" key="fill_density" value="20%"/>
  <volume firstid="0" lastid="3">
   <metadata type="volume" key="name" value="tetra"/>
   <metadata type="volume" key="volume_type" value="ModelPart"/>
  </volume>
  <volume firstid="4" lastid="9">
   <metadata type="volume" key="name" value="strip"/>
   <metadata type="volume" key="modifier" value="1"/>
  </volume>
 </object>
</config>
`

	path := writeArchive(t, "twin.3mf", map[string]string{
		"3D/3dmodel.model":               modelXML("2", body),
		"Metadata/Slic3r_PE_model.config": sidecar,
	})

	m, _, _, err := loadArchive(t, path, true)
	require.NoError(t, err)
	require.Len(t, m.Objects, 1)

	obj := m.Objects[0]
	assert.Equal(t, "twin", obj.Name)
	v, _ := obj.Config.Get("fill_density")
	assert.Equal(t, "20%", v)

	require.Len(t, obj.Volumes, 2)
	assert.Equal(t, "tetra", obj.Volumes[0].Name)
	assert.Len(t, obj.Volumes[0].Mesh.Triangles, 4)
	assert.Len(t, obj.Volumes[0].Mesh.Vertices, 4)
	assert.Equal(t, model.ModelPart, obj.Volumes[0].Type())

	assert.Equal(t, "strip", obj.Volumes[1].Name)
	assert.Len(t, obj.Volumes[1].Mesh.Triangles, 6)
	assert.Len(t, obj.Volumes[1].Mesh.Vertices, 18)
	assert.True(t, obj.Volumes[1].IsModifier(), "legacy modifier=1 maps to ParameterModifier")

	// the partition covers the whole pool
	total := len(obj.Volumes[0].Mesh.Triangles) + len(obj.Volumes[1].Mesh.Triangles)
	assert.Equal(t, len(triangles), total)
}

func TestLoadVolumeTypeOverridesModifier(t *testing.T) {
	sidecar := `<?xml version="1.0" encoding="UTF-8"?>
<config>
 <object id="1">
  <volume firstid="0" lastid="11">
   <metadata type="volume" key="modifier" value="1"/>
   <metadata type="volume" key="volume_type" value="SupportBlocker"/>
  </volume>
 </object>
</config>
`
	path := writeArchive(t, "ov.3mf", map[string]string{
		"3D/3dmodel.model":               modelXML("2", cubeModelBody()),
		"Metadata/Slic3r_PE_model.config": sidecar,
	})

	m, _, _, err := loadArchive(t, path, true)
	require.NoError(t, err)
	assert.Equal(t, model.SupportBlocker, m.Objects[0].Volumes[0].Type())
}

func TestLoadInvalidVolumeRangeFails(t *testing.T) {
	sidecar := `<?xml version="1.0" encoding="UTF-8"?>
<config>
 <object id="1">
  <volume firstid="0" lastid="99"></volume>
 </object>
</config>
`
	path := writeArchive(t, "bad.3mf", map[string]string{
		"3D/3dmodel.model":               modelXML("2", cubeModelBody()),
		"Metadata/Slic3r_PE_model.config": sidecar,
	})

	_, _, imp, err := loadArchive(t, path, true)
	require.Error(t, err)
	assert.Contains(t, strings.Join(imp.Errors(), "\n"), "invalid triangle id")
}

func TestLoadVolumeMatrixLocalizesVertices(t *testing.T) {
	// world-frame cube shifted by +5 in x; the sidecar matrix carries
	// the shift, so the stored mesh goes back to the origin
	shifted := make([][3]float64, len(cubeVertices))
	for i, v := range cubeVertices {
		shifted[i] = [3]float64{v[0] + 5, v[1], v[2]}
	}
	body := " <resources>\n  <object id=\"1\" type=\"model\">\n" + meshXML(shifted, cubeTriangles) +
		"  </object>\n </resources>\n <build>\n  <item objectid=\"1\" />\n </build>\n"

	sidecar := `<?xml version="1.0" encoding="UTF-8"?>
<config>
 <object id="1">
  <volume firstid="0" lastid="11">
   <metadata type="volume" key="matrix" value="1 0 0 5 0 1 0 0 0 0 1 0 0 0 0 1"/>
  </volume>
 </object>
</config>
`
	path := writeArchive(t, "mx.3mf", map[string]string{
		"3D/3dmodel.model":               modelXML("2", body),
		"Metadata/Slic3r_PE_model.config": sidecar,
	})

	m, _, _, err := loadArchive(t, path, true)
	require.NoError(t, err)
	vol := m.Objects[0].Volumes[0]
	assert.Equal(t, float32(0), vol.Mesh.Vertices[0][0], "vertices are stored in the local frame")
	assert.Equal(t, [3]float64{5, 0, 0}, vol.Transformation.Offset)
}

func TestLoadVolumeMatrixIgnoredBeforeVersion2(t *testing.T) {
	sidecar := `<?xml version="1.0" encoding="UTF-8"?>
<config>
 <object id="1">
  <volume firstid="0" lastid="11">
   <metadata type="volume" key="matrix" value="1 0 0 5 0 1 0 0 0 0 1 0 0 0 0 1"/>
  </volume>
 </object>
</config>
`
	path := writeArchive(t, "old.3mf", map[string]string{
		"3D/3dmodel.model":               modelXML("1", cubeModelBody()),
		"Metadata/Slic3r_PE_model.config": sidecar,
	})

	m, _, _, err := loadArchive(t, path, true)
	require.NoError(t, err)
	vol := m.Objects[0].Volumes[0]
	assert.True(t, vol.Transformation.Matrix().IsIdentity())
	assert.Equal(t, float32(0), vol.Mesh.Vertices[0][0])
}

func TestLoadDuplicateSidecarObjectFails(t *testing.T) {
	sidecar := `<?xml version="1.0" encoding="UTF-8"?>
<config>
 <object id="1"></object>
 <object id="1"></object>
</config>
`
	path := writeArchive(t, "dupcfg.3mf", map[string]string{
		"3D/3dmodel.model":               modelXML("2", cubeModelBody()),
		"Metadata/Slic3r_PE_model.config": sidecar,
	})

	_, _, _, err := loadArchive(t, path, true)
	require.Error(t, err)
}

func TestLoadPrintConfig(t *testing.T) {
	printCfg := "; generated by a slicer\n\n; layer_height = 0.2\n; perimeters = 3\n"
	path := writeArchive(t, "cfg.3mf", map[string]string{
		"3D/3dmodel.model":         modelXML("2", cubeModelBody()),
		"Metadata/Slic3r_PE.config": printCfg,
	})

	_, cfg, _, err := loadArchive(t, path, true)
	require.NoError(t, err)
	v, _ := cfg.Get("layer_height")
	assert.Equal(t, "0.2", v)
	v, _ = cfg.Get("perimeters")
	assert.Equal(t, "3", v)
}

func TestLoadMissingArchiveFails(t *testing.T) {
	m := model.New()
	imp := NewImporter(nil)
	err := imp.Load(filepath.Join(t.TempDir(), "nope.3mf"), m, nil, true)
	require.Error(t, err)
	assert.NotEmpty(t, imp.Errors())
}
