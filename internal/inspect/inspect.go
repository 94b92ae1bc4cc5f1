// Package inspect summarizes the contents of a slicer 3MF archive.
package inspect

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alecthomas/chroma/v2/quick"
	"gopkg.in/yaml.v3"

	"github.com/kjplatz/slic3mf/internal/logger"
	"github.com/kjplatz/slic3mf/internal/model"
	"github.com/kjplatz/slic3mf/internal/threemf"
	"github.com/kjplatz/slic3mf/internal/ui"
)

// Inspector reads an archive and renders a summary of its scene.
type Inspector struct{}

// NewInspector creates a new Inspector.
func NewInspector() *Inspector {
	return &Inspector{}
}

// Inspect loads filename and prints its scene tree.
func (i *Inspector) Inspect(filename string) error {
	if _, err := os.Stat(filename); err != nil {
		return fmt.Errorf("file not found: %s", filename)
	}

	ui.PrintHeader("Inspecting: " + filename)

	m := model.New()
	imp := threemf.NewImporter(logger.L)
	if err := imp.Load(filename, m, nil, false); err != nil {
		ui.PrintCodecErrors(imp.Errors())
		return fmt.Errorf("error reading 3MF file: %w", err)
	}
	ui.PrintCodecErrors(imp.Errors())

	for idx, obj := range m.Objects {
		ui.PrintStep(fmt.Sprintf("%d. %s (%d volumes, %d instances)", idx+1, obj.Name, len(obj.Volumes), len(obj.Instances)))
		for _, vol := range obj.Volumes {
			name := vol.Name
			if name == "" {
				name = "(unnamed)"
			}
			ui.PrintItem(fmt.Sprintf("%s [%s] %d triangles", name, vol.Type(), len(vol.Mesh.Triangles)))
		}
		for j, inst := range obj.Instances {
			off := inst.Transformation.Offset
			printable := "printable"
			if !inst.Printable {
				printable = "not printable"
			}
			ui.PrintItem(fmt.Sprintf("instance %d at (%.2f, %.2f, %.2f), %s", j+1, off[0], off[1], off[2], printable))
		}
		if len(obj.LayerHeightProfile) > 0 {
			ui.PrintItem(fmt.Sprintf("layer height profile with %d samples", len(obj.LayerHeightProfile)/2))
		}
		if len(obj.LayerConfigRanges) > 0 {
			ui.PrintItem(fmt.Sprintf("%d layer config ranges", len(obj.LayerConfigRanges)))
		}
		if len(obj.SlaSupportPoints) > 0 {
			ui.PrintItem(fmt.Sprintf("%d SLA support points", len(obj.SlaSupportPoints)))
		}
	}

	return nil
}

// summary is the yaml-friendly shape of a scene.
type summary struct {
	Objects []objectSummary `yaml:"objects"`
}

type objectSummary struct {
	Name      string          `yaml:"name"`
	Volumes   []volumeSummary `yaml:"volumes"`
	Instances int             `yaml:"instances"`
}

type volumeSummary struct {
	Name      string `yaml:"name"`
	Type      string `yaml:"type"`
	Triangles int    `yaml:"triangles"`
	Vertices  int    `yaml:"vertices"`
}

// InspectYAML loads filename and writes a YAML scene summary to out.
func (i *Inspector) InspectYAML(filename string, out io.Writer) error {
	m := model.New()
	if err := threemf.Load(filename, m, nil, false, logger.L); err != nil {
		return fmt.Errorf("error reading 3MF file: %w", err)
	}

	var s summary
	for _, obj := range m.Objects {
		os := objectSummary{Name: obj.Name, Instances: len(obj.Instances)}
		for _, vol := range obj.Volumes {
			os.Volumes = append(os.Volumes, volumeSummary{
				Name:      vol.Name,
				Type:      vol.Type().String(),
				Triangles: len(vol.Mesh.Triangles),
				Vertices:  len(vol.Mesh.Vertices),
			})
		}
		s.Objects = append(s.Objects, os)
	}

	enc := yaml.NewEncoder(out)
	defer enc.Close()
	return enc.Encode(&s)
}

// DumpPart prints one archive part to out, syntax highlighted when it
// looks like XML.
func (i *Inspector) DumpPart(filename, part string, out io.Writer) error {
	zr, err := zip.OpenReader(filename)
	if err != nil {
		return fmt.Errorf("error opening file: %w", err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if !strings.EqualFold(strings.ReplaceAll(f.Name, `\`, "/"), part) {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("error opening part: %w", err)
		}
		defer rc.Close()

		data, err := io.ReadAll(rc)
		if err != nil {
			return fmt.Errorf("error reading part: %w", err)
		}

		if strings.HasSuffix(part, ".model") || strings.HasSuffix(part, ".xml") || strings.HasSuffix(part, ".config") {
			if err := quick.Highlight(out, string(data), "xml", "terminal256", "monokai"); err == nil {
				return nil
			}
		}
		_, err = out.Write(data)
		return err
	}

	return fmt.Errorf("part not found: %s", part)
}
