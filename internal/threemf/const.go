package threemf

// Format version history:
//
//	0 - archives saved by older slicers or other applications; no
//	    version metadata present.
//	1 - version metadata introduced, no other change.
//	2 - volume matrices and source provenance added to the model config
//	    sidecar; meshes are transformed back into their local frame on
//	    load.
const Version3MF = 2

// VersionMetadataKey is the name of the version metadata element in the
// geometry part.
const VersionMetadataKey = "slic3rpe:Version3mf"

const (
	modelFolder    = "3D/"
	modelExtension = ".model"

	modelFile             = "3D/3dmodel.model" // the only spelling Cura accepts
	contentTypesFile      = "[Content_Types].xml"
	relationshipsFile     = "_rels/.rels"
	thumbnailFile         = "Metadata/thumbnail.png"
	printConfigFile       = "Metadata/Slic3r_PE.config"
	modelConfigFile       = "Metadata/Slic3r_PE_model.config"
	layerHeightsFile      = "Metadata/Slic3r_PE_layer_heights_profile.txt"
	layerConfigRangesFile = "Metadata/Prusa_Slicer_layer_config_ranges.xml"
	slaSupportPointsFile  = "Metadata/Slic3r_PE_sla_support_points.txt"
)

const (
	coreNamespace     = "http://schemas.microsoft.com/3dmanufacturing/core/2015/02"
	slic3rpeNamespace = "http://schemas.slic3r.org/3mf/2017/06"
)

const (
	modelTag      = "model"
	resourcesTag  = "resources"
	objectTag     = "object"
	meshTag       = "mesh"
	verticesTag   = "vertices"
	vertexTag     = "vertex"
	trianglesTag  = "triangles"
	triangleTag   = "triangle"
	componentsTag = "components"
	componentTag  = "component"
	buildTag      = "build"
	itemTag       = "item"
	metadataTag   = "metadata"

	configTag = "config"
	volumeTag = "volume"
)

const (
	unitAttr      = "unit"
	nameAttr      = "name"
	typeAttr      = "type"
	idAttr        = "id"
	xAttr         = "x"
	yAttr         = "y"
	zAttr         = "z"
	v1Attr        = "v1"
	v2Attr        = "v2"
	v3Attr        = "v3"
	objectIDAttr  = "objectid"
	transformAttr = "transform"
	printableAttr = "printable"

	keyAttr     = "key"
	valueAttr   = "value"
	firstIDAttr = "firstid"
	lastIDAttr  = "lastid"
)

// metadata type attribute values in the model config sidecar
const (
	objectMetadataType = "object"
	volumeMetadataType = "volume"
)

// recognized sidecar metadata keys
const (
	nameKey          = "name"
	modifierKey      = "modifier"
	volumeTypeKey    = "volume_type"
	matrixKey        = "matrix"
	sourceFileKey    = "source_file"
	sourceObjectKey  = "source_object_id"
	sourceVolumeKey  = "source_volume_id"
	sourceOffsetXKey = "source_offset_x"
	sourceOffsetYKey = "source_offset_y"
	sourceOffsetZKey = "source_offset_z"
)

const slaPointsVersionPrefix = "support_points_format_version="

// slaPointsFormatVersion is what the writer emits. Version 0 stored
// three floats per point; version 1 adds the head radius and the
// new-island flag.
const slaPointsFormatVersion = 1

// object types accepted on <object type="...">; the empty string
// defaults to model per the core specification
func isValidObjectType(typ string) bool {
	return typ == "" || typ == "model"
}
