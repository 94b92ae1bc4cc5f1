package threemf

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"image"
	"image/png"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/kjplatz/slic3mf/internal/geometry"
	"github.com/kjplatz/slic3mf/internal/model"
	"github.com/kjplatz/slic3mf/internal/printconfig"
	"github.com/kjplatz/slic3mf/version"
)

// volumeOffsets records where a volume landed inside its object's
// shared vertex and triangle pools.
type volumeOffsets struct {
	firstVertexID   int
	firstTriangleID int
	lastTriangleID  int
}

// objectData ties an exported object to its assigned archive id (the id
// of its first instance) and its per-volume offsets.
type objectData struct {
	id      int
	object  *model.Object
	offsets map[*model.Volume]*volumeOffsets
}

// buildItem is one entry of the build section.
type buildItem struct {
	id        int
	transform geometry.Matrix4
	printable bool
}

// Exporter writes a scene into a slicer 3MF archive. An Exporter must
// not be shared across goroutines.
type Exporter struct {
	errs *errorLog
}

// NewExporter returns an exporter logging soft errors to log (which may
// be nil).
func NewExporter(log *zap.Logger) *Exporter {
	return &Exporter{errs: newErrorLog(log)}
}

// Errors returns the error strings accumulated by the last Store.
func (e *Exporter) Errors() []string {
	return e.errs.all()
}

// Store writes m (and cfg, when non-nil) to path. The write is atomic:
// any failure removes the partially written file. A non-nil thumbnail
// is encoded as Metadata/thumbnail.png.
func (e *Exporter) Store(path string, m *model.Model, cfg *printconfig.Config, thumbnail image.Image) error {
	e.errs.clear()

	f, err := os.Create(path)
	if err != nil {
		e.errs.add("unable to open the file")
		return fmt.Errorf("unable to create %s: %w", path, err)
	}

	zw := zip.NewWriter(f)
	fail := func(err error) error {
		zw.Close()
		f.Close()
		os.Remove(path)
		return err
	}

	// Entries are written in fixed order; the geometry part assigns the
	// instance ids the model config sidecar refers back to.
	if err := e.addContentTypes(zw, thumbnail != nil); err != nil {
		return fail(err)
	}
	if thumbnail != nil {
		if err := e.addThumbnail(zw, thumbnail); err != nil {
			return fail(err)
		}
	}
	if err := e.addRelationships(zw, thumbnail != nil); err != nil {
		return fail(err)
	}

	objectsData, err := e.addModelFile(zw, m)
	if err != nil {
		return fail(err)
	}

	if err := e.addLayerHeightsProfiles(zw, m); err != nil {
		return fail(err)
	}
	if err := e.addLayerConfigRanges(zw, m); err != nil {
		return fail(err)
	}
	if err := e.addSlaSupportPoints(zw, m); err != nil {
		return fail(err)
	}
	if cfg != nil {
		if err := e.addPrintConfig(zw, cfg); err != nil {
			return fail(err)
		}
	}
	if err := e.addModelConfig(zw, objectsData); err != nil {
		return fail(err)
	}

	if err := zw.Close(); err != nil {
		f.Close()
		os.Remove(path)
		return e.errs.fail("unable to finalize the archive")
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("unable to finalize %s: %w", path, err)
	}
	return nil
}

func (e *Exporter) addEntry(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return e.errs.failf("unable to add %s to archive", name)
	}
	if _, err := w.Write(data); err != nil {
		return e.errs.failf("unable to add %s to archive", name)
	}
	return nil
}

func (e *Exporter) addContentTypes(zw *zip.Writer, withThumbnail bool) error {
	var b strings.Builder
	b.WriteString(xml.Header)
	b.WriteString("<Types xmlns=\"http://schemas.openxmlformats.org/package/2006/content-types\">\n")
	b.WriteString(" <Default Extension=\"rels\" ContentType=\"application/vnd.openxmlformats-package.relationships+xml\" />\n")
	b.WriteString(" <Default Extension=\"model\" ContentType=\"application/vnd.ms-package.3dmanufacturing-3dmodel+xml\" />\n")
	if withThumbnail {
		b.WriteString(" <Default Extension=\"png\" ContentType=\"image/png\" />\n")
	}
	b.WriteString("</Types>")
	return e.addEntry(zw, contentTypesFile, []byte(b.String()))
}

func (e *Exporter) addThumbnail(zw *zip.Writer, thumbnail image.Image) error {
	var buf bytes.Buffer
	if err := png.Encode(&buf, thumbnail); err != nil {
		return e.errs.fail("unable to add thumbnail file to archive")
	}
	return e.addEntry(zw, thumbnailFile, buf.Bytes())
}

func (e *Exporter) addRelationships(zw *zip.Writer, withThumbnail bool) error {
	var b strings.Builder
	b.WriteString(xml.Header)
	b.WriteString("<Relationships xmlns=\"http://schemas.openxmlformats.org/package/2006/relationships\">\n")
	b.WriteString(" <Relationship Target=\"/" + modelFile + "\" Id=\"rel-1\" Type=\"http://schemas.microsoft.com/3dmanufacturing/2013/01/3dmodel\" />\n")
	if withThumbnail {
		b.WriteString(" <Relationship Target=\"/" + thumbnailFile + "\" Id=\"rel-2\" Type=\"http://schemas.openxmlformats.org/package/2006/relationships/metadata/thumbnail\" />\n")
	}
	b.WriteString("</Relationships>")
	return e.addEntry(zw, relationshipsFile, []byte(b.String()))
}

// addModelFile emits the geometry part. Instance ids are a 1-based
// linear numbering across all instances of all objects: the first
// instance of an object carries the mesh, every further instance is an
// alias object with a single component pointing back at the first.
func (e *Exporter) addModelFile(zw *zip.Writer, m *model.Model) ([]objectData, error) {
	var b strings.Builder
	b.WriteString(xml.Header)
	b.WriteString("<" + modelTag + " unit=\"millimeter\" xml:lang=\"en-US\" xmlns=\"" + coreNamespace + "\" xmlns:slic3rpe=\"" + slic3rpeNamespace + "\">\n")
	fmt.Fprintf(&b, " <%s name=\"%s\">%d</%s>\n", metadataTag, VersionMetadataKey, Version3MF, metadataTag)
	b.WriteString(" <" + resourcesTag + ">\n")

	var objectsData []objectData
	var items []buildItem

	objectID := 1
	for _, obj := range m.Objects {
		if obj == nil || len(obj.Instances) == 0 {
			continue
		}
		data := objectData{id: objectID, object: obj, offsets: map[*model.Volume]*volumeOffsets{}}

		for i, inst := range obj.Instances {
			instanceID := objectID + i
			fmt.Fprintf(&b, "  <%s id=\"%d\" type=\"model\">\n", objectTag, instanceID)
			if i == 0 {
				if err := e.addMeshToObject(&b, obj, data.offsets); err != nil {
					e.errs.add("unable to add mesh to archive")
					return nil, err
				}
			} else {
				b.WriteString("   <" + componentsTag + ">\n")
				fmt.Fprintf(&b, "    <%s objectid=\"%d\" />\n", componentTag, objectID)
				b.WriteString("   </" + componentsTag + ">\n")
			}
			items = append(items, buildItem{
				id:        instanceID,
				transform: inst.Transformation.Matrix(),
				printable: inst.Printable,
			})
			fmt.Fprintf(&b, "  </%s>\n", objectTag)
		}

		objectsData = append(objectsData, data)
		objectID += len(obj.Instances)
	}

	b.WriteString(" </" + resourcesTag + ">\n")

	if len(items) == 0 {
		e.errs.add("no build item found")
		return nil, ErrNoBuildItems
	}

	b.WriteString(" <" + buildTag + ">\n")
	for _, item := range items {
		printable := "0"
		if item.printable {
			printable = "1"
		}
		fmt.Fprintf(&b, "  <%s %s=\"%d\" %s=\"%s\" %s=\"%s\" />\n",
			itemTag,
			objectIDAttr, item.id,
			transformAttr, geometry.FormatTransform3MF(item.transform),
			printableAttr, printable)
	}
	b.WriteString(" </" + buildTag + ">\n")
	b.WriteString("</" + modelTag + ">\n")

	if err := e.addEntry(zw, modelFile, []byte(b.String())); err != nil {
		return nil, err
	}
	return objectsData, nil
}

// addMeshToObject concatenates all volume meshes of obj into a single
// indexed triangle set. Vertices are written in the volume's world
// frame; the reader reverses this with the sidecar matrix.
func (e *Exporter) addMeshToObject(b *strings.Builder, obj *model.Object, offsets map[*model.Volume]*volumeOffsets) error {
	b.WriteString("   <" + meshTag + ">\n")
	b.WriteString("    <" + verticesTag + ">\n")

	vertexCount := 0
	for _, vol := range obj.Volumes {
		if vol == nil || vol.Mesh == nil {
			continue
		}
		if !vol.Mesh.Repaired() {
			return e.errs.fail("store requires repaired meshes")
		}
		if vol.Mesh.Empty() {
			return e.errs.fail("found invalid mesh")
		}

		offsets[vol] = &volumeOffsets{firstVertexID: vertexCount}
		vertexCount += len(vol.Mesh.Vertices)

		matrix := vol.Transformation.Matrix()
		for _, v := range vol.Mesh.Vertices {
			x, y, z := matrix.MulPoint(float64(v[0]), float64(v[1]), float64(v[2]))
			fmt.Fprintf(b, "     <%s x=\"%s\" y=\"%s\" z=\"%s\" />\n",
				vertexTag,
				geometry.FormatFloat32(float32(x)),
				geometry.FormatFloat32(float32(y)),
				geometry.FormatFloat32(float32(z)))
		}
	}

	b.WriteString("    </" + verticesTag + ">\n")
	b.WriteString("    <" + trianglesTag + ">\n")

	triangleCount := 0
	for _, vol := range obj.Volumes {
		if vol == nil || vol.Mesh == nil {
			continue
		}
		off := offsets[vol]
		off.firstTriangleID = triangleCount
		triangleCount += len(vol.Mesh.Triangles)
		off.lastTriangleID = triangleCount - 1

		for _, t := range vol.Mesh.Triangles {
			fmt.Fprintf(b, "     <%s v1=\"%d\" v2=\"%d\" v3=\"%d\" />\n",
				triangleTag,
				t[0]+off.firstVertexID,
				t[1]+off.firstVertexID,
				t[2]+off.firstVertexID)
		}
	}

	b.WriteString("    </" + trianglesTag + ">\n")
	b.WriteString("   </" + meshTag + ">\n")
	return nil
}

// addLayerHeightsProfiles writes one line per object carrying a
// profile, keyed by the object's 1-based scene index.
func (e *Exporter) addLayerHeightsProfiles(zw *zip.Writer, m *model.Model) error {
	var b strings.Builder
	for i, obj := range m.Objects {
		profile := obj.LayerHeightProfile
		if len(profile) < 4 || len(profile)%2 != 0 {
			continue
		}
		fmt.Fprintf(&b, "object_id=%d|", i+1)
		for j, v := range profile {
			if j > 0 {
				b.WriteByte(';')
			}
			b.WriteString(geometry.FormatFloat64(v))
		}
		b.WriteByte('\n')
	}

	if b.Len() == 0 {
		return nil
	}
	return e.addEntry(zw, layerHeightsFile, []byte(b.String()))
}

func (e *Exporter) addLayerConfigRanges(zw *zip.Writer, m *model.Model) error {
	var tree layerRangesXML
	for i, obj := range m.Objects {
		if len(obj.LayerConfigRanges) == 0 {
			continue
		}
		objXML := layerRangeObjectXML{ID: i + 1}
		for _, r := range obj.LayerConfigRanges {
			rangeXML := layerRangeXML{MinZ: r.MinZ, MaxZ: r.MaxZ}
			for _, key := range r.Config.Keys() {
				rangeXML.Options = append(rangeXML.Options, layerRangeOptionXML{
					Key:   key,
					Value: r.Config.Serialize(key),
				})
			}
			objXML.Ranges = append(objXML.Ranges, rangeXML)
		}
		tree.Objects = append(tree.Objects, objXML)
	}

	if len(tree.Objects) == 0 {
		return nil
	}

	data, err := xml.MarshalIndent(tree, "", " ")
	if err != nil {
		return e.errs.fail("unable to add layer config ranges file to archive")
	}
	return e.addEntry(zw, layerConfigRangesFile, append([]byte(xml.Header), data...))
}

func (e *Exporter) addSlaSupportPoints(zw *zip.Writer, m *model.Model) error {
	var b strings.Builder
	for i, obj := range m.Objects {
		if len(obj.SlaSupportPoints) == 0 {
			continue
		}
		fmt.Fprintf(&b, "object_id=%d|", i+1)
		for j, p := range obj.SlaSupportPoints {
			if j > 0 {
				b.WriteByte(' ')
			}
			island := "0"
			if p.IsNewIsland {
				island = "1"
			}
			fmt.Fprintf(&b, "%s %s %s %s %s",
				geometry.FormatFloat32(p.Pos[0]),
				geometry.FormatFloat32(p.Pos[1]),
				geometry.FormatFloat32(p.Pos[2]),
				geometry.FormatFloat32(p.HeadFrontRadius),
				island)
		}
		b.WriteByte('\n')
	}

	if b.Len() == 0 {
		return nil
	}
	out := fmt.Sprintf("%s%d\n%s", slaPointsVersionPrefix, slaPointsFormatVersion, b.String())
	return e.addEntry(zw, slaSupportPointsFile, []byte(out))
}

func (e *Exporter) addPrintConfig(zw *zip.Writer, cfg *printconfig.Config) error {
	header := "generated by " + version.Get().String()
	out := cfg.GcodeComments(header, "compatible_printers")
	return e.addEntry(zw, printConfigFile, []byte(out))
}

// addModelConfig writes the sidecar tying names, types, local frames,
// source provenance and setting overrides back onto the triangle ranges
// recorded while the geometry part was emitted.
func (e *Exporter) addModelConfig(zw *zip.Writer, objectsData []objectData) error {
	var b strings.Builder
	b.WriteString(xml.Header)
	b.WriteString("<" + configTag + ">\n")

	for _, data := range objectsData {
		obj := data.object
		fmt.Fprintf(&b, " <%s id=\"%d\">\n", objectTag, data.id)

		if obj.Name != "" {
			writeMetadata(&b, 2, objectMetadataType, nameKey, obj.Name)
		}
		for _, key := range obj.Config.Keys() {
			writeMetadata(&b, 2, objectMetadataType, key, obj.Config.Serialize(key))
		}

		for _, vol := range obj.Volumes {
			off, ok := data.offsets[vol]
			if !ok {
				continue
			}
			fmt.Fprintf(&b, "  <%s %s=\"%d\" %s=\"%d\">\n", volumeTag,
				firstIDAttr, off.firstTriangleID, lastIDAttr, off.lastTriangleID)

			if vol.Name != "" {
				writeMetadata(&b, 3, volumeMetadataType, nameKey, vol.Name)
			}
			// legacy modifier flag first; volume_type below overrides it
			// in older readers that understand both
			if vol.IsModifier() {
				writeMetadata(&b, 3, volumeMetadataType, modifierKey, "1")
			}
			writeMetadata(&b, 3, volumeMetadataType, volumeTypeKey, vol.Type().String())
			writeMetadata(&b, 3, volumeMetadataType, matrixKey, geometry.FormatMatrix4x4(vol.Transformation.Matrix()))

			if vol.Source.InputFile != "" {
				writeMetadata(&b, 3, volumeMetadataType, sourceFileKey, vol.Source.InputFile)
				writeMetadata(&b, 3, volumeMetadataType, sourceObjectKey, fmt.Sprintf("%d", vol.Source.ObjectIdx))
				writeMetadata(&b, 3, volumeMetadataType, sourceVolumeKey, fmt.Sprintf("%d", vol.Source.VolumeIdx))
				writeMetadata(&b, 3, volumeMetadataType, sourceOffsetXKey, geometry.FormatFloat64(vol.Source.MeshOffset[0]))
				writeMetadata(&b, 3, volumeMetadataType, sourceOffsetYKey, geometry.FormatFloat64(vol.Source.MeshOffset[1]))
				writeMetadata(&b, 3, volumeMetadataType, sourceOffsetZKey, geometry.FormatFloat64(vol.Source.MeshOffset[2]))
			}

			for _, key := range vol.Config.Keys() {
				writeMetadata(&b, 3, volumeMetadataType, key, vol.Config.Serialize(key))
			}

			fmt.Fprintf(&b, "  </%s>\n", volumeTag)
		}

		fmt.Fprintf(&b, " </%s>\n", objectTag)
	}

	b.WriteString("</" + configTag + ">\n")
	return e.addEntry(zw, modelConfigFile, []byte(b.String()))
}

var attrEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

func xmlEscape(s string) string {
	return attrEscaper.Replace(s)
}

func writeMetadata(b *strings.Builder, indent int, typ, key, value string) {
	b.WriteString(strings.Repeat(" ", indent))
	fmt.Fprintf(b, "<%s %s=\"%s\" %s=\"%s\" %s=\"%s\"/>\n",
		metadataTag, typeAttr, typ, keyAttr, xmlEscape(key), valueAttr, xmlEscape(value))
}
