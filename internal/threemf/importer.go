package threemf

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/kjplatz/slic3mf/internal/geometry"
	"github.com/kjplatz/slic3mf/internal/model"
	"github.com/kjplatz/slic3mf/internal/printconfig"
)

// maxRecursions bounds alias expansion; the build item itself counts as
// the first level. Deeper chains are treated as circular aliasing.
const maxRecursions = 10

// metadataPair is one key/value entry from the model config sidecar.
type metadataPair struct {
	Key   string
	Value string
}

// volumeMetadata is the sidecar description of one volume: a triangle
// range into the object's shared pool plus its metadata pairs.
type volumeMetadata struct {
	FirstTriangleID int
	LastTriangleID  int
	Metadata        []metadataPair
}

// objectMetadata is the sidecar description of one object.
type objectMetadata struct {
	Metadata []metadataPair
	Volumes  []volumeMetadata
}

// objectGeometry is the raw triangle pool of one archive object before
// it is sliced into volumes.
type objectGeometry struct {
	Vertices  []float32 // x y z triplets, already unit-scaled
	Triangles []int     // vertex index triplets
}

func (g *objectGeometry) empty() bool {
	return len(g.Vertices) == 0 || len(g.Triangles) == 0
}

func (g *objectGeometry) reset() {
	g.Vertices = g.Vertices[:0]
	g.Triangles = g.Triangles[:0]
}

// component references another archive object with a local transform.
type component struct {
	objectID  int
	transform geometry.Matrix4
}

// currentObject is the object being assembled between <object> and
// </object>.
type currentObject struct {
	valid      bool
	id         int
	object     *model.Object
	geometry   objectGeometry
	components []component
}

// pendingInstance is an instance whose world transform is applied at
// </model>, once the whole resource section is known.
type pendingInstance struct {
	instance  *model.Instance
	transform geometry.Matrix4
}

// Importer reads a slicer 3MF archive into a scene. All state lives on
// the importer for the duration of a single Load call; an Importer must
// not be shared across goroutines.
type Importer struct {
	model        *model.Model
	config       *printconfig.Config
	checkVersion bool

	version    int
	unitFactor float32
	name       string // archive file name stem, for synthesized object names

	curObject currentObject

	objects        map[int]int // archive object id -> creation-order scene index
	objectPtrs     map[int]*model.Object
	aliases        map[int][]component
	geometries     map[int]*objectGeometry
	objectIDs      []int // registration order of geometry-bearing objects
	createdObjects int
	instances      []pendingInstance

	objectsMetadata   map[int]*objectMetadata
	layerHeights      map[int][]float64
	layerConfigRanges map[int][]model.LayerConfigRange
	slaSupportPoints  map[int][]model.SlaSupportPoint

	curConfig struct {
		objectID int
		volumeID int
	}
	curMetadataName string
	curChars        bytes.Buffer

	errs *errorLog
}

// NewImporter returns an importer logging soft errors to log (which may
// be nil).
func NewImporter(log *zap.Logger) *Importer {
	return &Importer{errs: newErrorLog(log)}
}

// Errors returns the error strings accumulated by the last Load.
func (imp *Importer) Errors() []string {
	return imp.errs.all()
}

func (imp *Importer) reset(m *model.Model, cfg *printconfig.Config, checkVersion bool) {
	imp.model = m
	imp.config = cfg
	imp.checkVersion = checkVersion
	imp.version = 0
	imp.unitFactor = 1.0
	imp.name = ""
	imp.curObject = currentObject{}
	imp.objects = map[int]int{}
	imp.objectPtrs = map[int]*model.Object{}
	imp.aliases = map[int][]component{}
	imp.geometries = map[int]*objectGeometry{}
	imp.objectIDs = nil
	imp.createdObjects = 0
	imp.instances = nil
	imp.objectsMetadata = map[int]*objectMetadata{}
	imp.layerHeights = map[int][]float64{}
	imp.layerConfigRanges = map[int][]model.LayerConfigRange{}
	imp.slaSupportPoints = map[int][]model.SlaSupportPoint{}
	imp.curConfig.objectID = -1
	imp.curConfig.volumeID = -1
	imp.curMetadataName = ""
	imp.curChars.Reset()
	imp.errs.clear()
}

// Load reads the archive at path into m and cfg. With checkVersion set,
// an archive written by a newer format version fails with a
// *VersionError. On failure the partial state of m is unspecified.
func (imp *Importer) Load(path string, m *model.Model, cfg *printconfig.Config, checkVersion bool) error {
	imp.reset(m, cfg, checkVersion)

	zr, err := zip.OpenReader(path)
	if err != nil {
		imp.errs.add("unable to open the file")
		return fmt.Errorf("unable to open %s: %w", path, err)
	}
	defer zr.Close()

	base := filepath.Base(path)
	imp.name = strings.TrimSuffix(base, filepath.Ext(base))

	// First pass: geometry parts only. The format version parsed from
	// the geometry governs how sidecar volume matrices are applied, so
	// every model part is consumed before any sidecar part.
	for _, f := range zr.File {
		name := normalizePartPath(f.Name)
		if hasPrefixFold(name, modelFolder) && hasSuffixFold(name, modelExtension) {
			if err := imp.extractModel(f); err != nil {
				if IsVersionError(err) {
					return err
				}
				imp.errs.add("archive does not contain a valid model")
				return err
			}
		}
	}

	// Second pass: sidecar parts, in archive order.
	for _, f := range zr.File {
		switch name := normalizePartPath(f.Name); {
		case strings.EqualFold(name, layerHeightsFile):
			imp.extractLayerHeightsProfiles(f)
		case strings.EqualFold(name, layerConfigRangesFile):
			imp.extractLayerConfigRanges(f)
		case strings.EqualFold(name, slaSupportPointsFile):
			imp.extractSlaSupportPoints(f)
		case strings.EqualFold(name, printConfigFile):
			imp.extractPrintConfig(f)
		case strings.EqualFold(name, modelConfigFile):
			if err := imp.extractModelConfig(f); err != nil {
				imp.errs.add("archive does not contain a valid model config")
				return err
			}
		}
	}

	if err := imp.reconcile(); err != nil {
		return err
	}

	m.AdjustMinZ()
	return nil
}

func normalizePartPath(name string) string {
	return strings.ReplaceAll(name, `\`, "/")
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

func hasSuffixFold(s, suffix string) bool {
	return len(s) >= len(suffix) && strings.EqualFold(s[len(s)-len(suffix):], suffix)
}

func readPart(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("unable to open part %s: %w", f.Name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("unable to read part %s: %w", f.Name, err)
	}
	return data, nil
}

// extractModel streams one geometry part through the model state
// machine.
func (imp *Importer) extractModel(f *zip.File) error {
	if f.UncompressedSize64 == 0 {
		return imp.errs.fail("found invalid size")
	}

	rc, err := f.Open()
	if err != nil {
		return imp.errs.failf("unable to open part %s: %v", f.Name, err)
	}
	defer rc.Close()

	if err := parseSAX(rc, (*modelPartHandler)(imp)); err != nil {
		if IsVersionError(err) {
			return err
		}
		return imp.errs.failf("error while parsing %s: %v", f.Name, err)
	}
	return nil
}

// extractModelConfig parses the model config sidecar.
func (imp *Importer) extractModelConfig(f *zip.File) error {
	if f.UncompressedSize64 == 0 {
		return imp.errs.fail("found invalid size")
	}

	data, err := readPart(f)
	if err != nil {
		return imp.errs.fail(err.Error())
	}

	if err := parseSAX(bytes.NewReader(data), (*configPartHandler)(imp)); err != nil {
		return imp.errs.failf("error while parsing %s: %v", f.Name, err)
	}
	return nil
}

// extractPrintConfig feeds the print config part into the config store.
func (imp *Importer) extractPrintConfig(f *zip.File) {
	if f.UncompressedSize64 == 0 || imp.config == nil {
		return
	}
	data, err := readPart(f)
	if err != nil {
		imp.errs.add("error while reading config data to buffer")
		return
	}
	imp.config.LoadGcodeComments(string(data))
}
