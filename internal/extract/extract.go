// Package extract writes the volumes of a 3MF scene out as STL files.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kjplatz/slic3mf/internal/logger"
	"github.com/kjplatz/slic3mf/internal/model"
	"github.com/kjplatz/slic3mf/internal/stl"
	"github.com/kjplatz/slic3mf/internal/threemf"
	"github.com/kjplatz/slic3mf/internal/ui"
)

// Extractor pulls volume meshes out of an archive.
type Extractor struct {
	stlWriter *stl.Writer
}

// NewExtractor creates a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{stlWriter: stl.NewWriter()}
}

// Extract loads filename and writes one STL per volume into outputDir.
// Meshes are written in the object frame (local vertices run through
// the volume's matrix), so the parts line up when re-imported together.
func (e *Extractor) Extract(filename, outputDir string, binary bool) error {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("error creating output directory: %w", err)
	}

	m := model.New()
	if err := threemf.Load(filename, m, nil, false, logger.L); err != nil {
		return fmt.Errorf("error reading 3MF file: %w", err)
	}

	count := 0
	for _, obj := range m.Objects {
		for vi, vol := range obj.Volumes {
			if vol.Mesh == nil || vol.Mesh.Empty() {
				continue
			}

			name := vol.Name
			if name == "" {
				name = fmt.Sprintf("%s_volume_%d", obj.Name, vi+1)
			}
			target := filepath.Join(outputDir, sanitizeFilename(name)+".stl")

			world := vol.Mesh.Transformed(vol.Transformation.Matrix())
			if err := e.stlWriter.Write(target, name, world, binary); err != nil {
				return fmt.Errorf("error writing %s: %w", target, err)
			}

			ui.PrintStep("wrote " + target)
			count++
		}
	}

	ui.PrintSuccess(fmt.Sprintf("extracted %d meshes", count))
	return nil
}

func sanitizeFilename(name string) string {
	replacer := strings.NewReplacer("/", "_", `\`, "_", ":", "_", " ", "_")
	return replacer.Replace(name)
}
