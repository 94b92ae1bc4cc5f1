// Package assemble builds a slicer 3MF archive from a YAML plan that
// lists input meshes, per-object settings and copy counts.
package assemble

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kjplatz/slic3mf/internal/arrange"
	"github.com/kjplatz/slic3mf/internal/logger"
	"github.com/kjplatz/slic3mf/internal/mesh"
	"github.com/kjplatz/slic3mf/internal/model"
	"github.com/kjplatz/slic3mf/internal/stl"
	"github.com/kjplatz/slic3mf/internal/threemf"
)

// Plan is the YAML root of an assembly.
type Plan struct {
	Output  string       `yaml:"output"`
	Objects []PlanObject `yaml:"objects"`
}

// PlanObject is one printable object in the plan.
type PlanObject struct {
	Name   string            `yaml:"name"`
	Count  int               `yaml:"count"`
	Config map[string]string `yaml:"config"`
	Parts  []PlanPart        `yaml:"parts"`
}

// PlanPart is one volume of an object.
type PlanPart struct {
	Name   string            `yaml:"name"`
	File   string            `yaml:"file"`
	Type   string            `yaml:"type"` // ModelPart, ParameterModifier, ...
	Config map[string]string `yaml:"config"`
}

// Loader reads and validates assembly plans.
type Loader struct{}

// NewLoader creates a new plan loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load reads and validates a plan file; relative part paths are
// resolved against the plan's directory.
func (l *Loader) Load(planPath string) (*Plan, error) {
	data, err := os.ReadFile(planPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan file: %w", err)
	}

	var plan Plan
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := l.Validate(&plan); err != nil {
		return nil, fmt.Errorf("invalid plan: %w", err)
	}

	planDir, err := filepath.Abs(filepath.Dir(planPath))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve plan directory: %w", err)
	}
	for i := range plan.Objects {
		for j := range plan.Objects[i].Parts {
			part := &plan.Objects[i].Parts[j]
			if !filepath.IsAbs(part.File) {
				part.File = filepath.Join(planDir, part.File)
			}
		}
	}

	return &plan, nil
}

// Validate checks the plan for the mistakes a user is likely to make.
func (l *Loader) Validate(plan *Plan) error {
	if plan.Output == "" {
		return fmt.Errorf("output file must be specified")
	}
	if len(plan.Objects) == 0 {
		return fmt.Errorf("at least one object must be defined")
	}

	for i, obj := range plan.Objects {
		if obj.Name == "" {
			return fmt.Errorf("object %d: name is required", i+1)
		}
		if len(obj.Parts) == 0 {
			return fmt.Errorf("object %s: at least one part must be defined", obj.Name)
		}
		for _, part := range obj.Parts {
			if part.File == "" {
				return fmt.Errorf("object %s, part %s: file is required", obj.Name, part.Name)
			}
		}
	}
	return nil
}

// Assembler turns plans into archives.
type Assembler struct {
	stlParser *stl.Parser
}

// NewAssembler creates a new Assembler.
func NewAssembler() *Assembler {
	return &Assembler{stlParser: stl.NewParser()}
}

// Run builds the plan's scene, arranges it on the plate and stores the
// archive at the plan's output path.
func (a *Assembler) Run(plan *Plan) error {
	m := model.New()

	for _, planObj := range plan.Objects {
		obj := m.AddObject()
		obj.Name = planObj.Name
		for key, value := range planObj.Config {
			obj.Config.Set(key, value)
		}

		for _, part := range planObj.Parts {
			partMesh, err := a.loadMesh(part.File)
			if err != nil {
				return fmt.Errorf("object %s, part %s: %w", planObj.Name, part.Name, err)
			}
			partMesh.Repair()

			vol := obj.AddVolume(partMesh)
			vol.Name = part.Name
			if vol.Name == "" {
				vol.Name = strings.TrimSuffix(filepath.Base(part.File), filepath.Ext(part.File))
			}
			vol.SetType(model.VolumeTypeFromString(part.Type))
			vol.Source.InputFile = part.File
			for key, value := range part.Config {
				vol.Config.Set(key, value)
			}
		}

		count := planObj.Count
		if count < 1 {
			count = 1
		}
		for i := 0; i < count; i++ {
			obj.AddInstance()
		}
	}

	arrange.Arrange(m, arrange.DefaultOptions())

	if err := threemf.Store(plan.Output, m, nil, nil, logger.L); err != nil {
		return fmt.Errorf("failed to store %s: %w", plan.Output, err)
	}
	return nil
}

// loadMesh reads a part file: STL directly, or the first volume of the
// first object of a 3MF archive.
func (a *Assembler) loadMesh(file string) (*mesh.TriangleMesh, error) {
	switch strings.ToLower(filepath.Ext(file)) {
	case ".stl":
		return a.stlParser.Parse(file)
	case ".3mf":
		m := model.New()
		if err := threemf.Load(file, m, nil, false, logger.L); err != nil {
			return nil, err
		}
		for _, obj := range m.Objects {
			for _, vol := range obj.Volumes {
				if vol.Mesh != nil && !vol.Mesh.Empty() {
					return vol.Mesh.Transformed(vol.Transformation.Matrix()), nil
				}
			}
		}
		return nil, fmt.Errorf("no mesh found in %s", file)
	default:
		return nil, fmt.Errorf("unsupported file type: %s", file)
	}
}
