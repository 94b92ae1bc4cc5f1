package assemble

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kjplatz/slic3mf/internal/mesh"
	"github.com/kjplatz/slic3mf/internal/model"
	"github.com/kjplatz/slic3mf/internal/stl"
	"github.com/kjplatz/slic3mf/internal/threemf"
)

func writeTetraSTL(t *testing.T, dir, name string) string {
	t.Helper()
	m := &mesh.TriangleMesh{
		Vertices: []mesh.Vec3{
			{0, 0, 0}, {10, 0, 0}, {0, 10, 0}, {0, 0, 10},
		},
		Triangles: []mesh.Triangle{
			{0, 2, 1}, {0, 1, 3}, {1, 2, 3}, {0, 3, 2},
		},
	}
	path := filepath.Join(dir, name)
	require.NoError(t, stl.NewWriter().Write(path, "tetra", m, true))
	return path
}

func TestLoaderValidates(t *testing.T) {
	dir := t.TempDir()

	planPath := filepath.Join(dir, "plan.yaml")
	require.NoError(t, os.WriteFile(planPath, []byte("objects: []\n"), 0o644))
	_, err := NewLoader().Load(planPath)
	assert.Error(t, err, "missing output must fail validation")

	require.NoError(t, os.WriteFile(planPath, []byte("output: out.3mf\n"), 0o644))
	_, err = NewLoader().Load(planPath)
	assert.Error(t, err, "missing objects must fail validation")
}

func TestLoaderResolvesRelativePaths(t *testing.T) {
	dir := t.TempDir()
	writeTetraSTL(t, dir, "part.stl")

	planYAML := `output: out.3mf
objects:
  - name: widget
    parts:
      - name: body
        file: part.stl
`
	planPath := filepath.Join(dir, "plan.yaml")
	require.NoError(t, os.WriteFile(planPath, []byte(planYAML), 0o644))

	plan, err := NewLoader().Load(planPath)
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(plan.Objects[0].Parts[0].File))
}

func TestAssembleBuildsArchive(t *testing.T) {
	dir := t.TempDir()
	writeTetraSTL(t, dir, "part.stl")
	out := filepath.Join(dir, "out.3mf")

	planYAML := `output: ` + out + `
objects:
  - name: widget
    count: 2
    config:
      fill_density: 25%
    parts:
      - name: body
        file: part.stl
      - name: dense zone
        file: part.stl
        type: ParameterModifier
`
	planPath := filepath.Join(dir, "plan.yaml")
	require.NoError(t, os.WriteFile(planPath, []byte(planYAML), 0o644))

	plan, err := NewLoader().Load(planPath)
	require.NoError(t, err)
	require.NoError(t, NewAssembler().Run(plan))

	got := model.New()
	require.NoError(t, threemf.Load(out, got, nil, true, nil))

	require.Len(t, got.Objects, 1)
	obj := got.Objects[0]
	assert.Equal(t, "widget", obj.Name)
	assert.Len(t, obj.Instances, 2)
	require.Len(t, obj.Volumes, 2)
	assert.Equal(t, "body", obj.Volumes[0].Name)
	assert.Equal(t, "dense zone", obj.Volumes[1].Name)
	assert.Equal(t, model.ParameterModifier, obj.Volumes[1].Type())
	v, _ := obj.Config.Get("fill_density")
	assert.Equal(t, "25%", v)
}
