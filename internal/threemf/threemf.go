// Package threemf reads and writes the slicer dialect of the 3MF
// package format: the core geometry part plus the vendor sidecars that
// carry volumes, per-object settings, layer-height profiles and SLA
// support points the base specification cannot represent.
package threemf

import (
	"image"

	"go.uber.org/zap"

	"github.com/kjplatz/slic3mf/internal/model"
	"github.com/kjplatz/slic3mf/internal/printconfig"
)

// Load reads the archive at path into m and cfg (cfg may be nil when
// the caller has no use for the print config). With checkVersion set,
// archives written by a newer format version fail with *VersionError.
// Accumulated error strings are flushed to log.
func Load(path string, m *model.Model, cfg *printconfig.Config, checkVersion bool, log *zap.Logger) error {
	imp := NewImporter(log)
	err := imp.Load(path, m, cfg, checkVersion)
	LogErrors(log, imp.Errors())
	return err
}

// Store writes m and cfg to path. On any failure the output file is
// removed. thumbnail may be nil.
func Store(path string, m *model.Model, cfg *printconfig.Config, thumbnail image.Image, log *zap.Logger) error {
	exp := NewExporter(log)
	err := exp.Store(path, m, cfg, thumbnail)
	if err != nil {
		LogErrors(log, exp.Errors())
	}
	return err
}

// LogErrors flushes accumulated codec error strings to log.
func LogErrors(log *zap.Logger, errors []string) {
	if log == nil {
		return
	}
	for _, msg := range errors {
		log.Warn(msg)
	}
}
