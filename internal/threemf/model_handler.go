package threemf

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kjplatz/slic3mf/internal/geometry"
)

// modelPartHandler is the SAX state machine for a geometry part. It is
// the Importer itself under a different method set.
type modelPartHandler Importer

func (h *modelPartHandler) imp() *Importer { return (*Importer)(h) }

func (h *modelPartHandler) startElement(name string, attrs attributes) error {
	imp := h.imp()
	switch name {
	case modelTag:
		imp.unitFactor = geometry.UnitFactor(attrs.str(unitAttr))
	case objectTag:
		return imp.handleStartObject(attrs)
	case meshTag:
		imp.curObject.geometry.reset()
	case verticesTag:
		imp.curObject.geometry.Vertices = imp.curObject.geometry.Vertices[:0]
	case vertexTag:
		// missing coordinates default to zero
		g := &imp.curObject.geometry
		g.Vertices = append(g.Vertices,
			imp.unitFactor*attrs.float(xAttr),
			imp.unitFactor*attrs.float(yAttr),
			imp.unitFactor*attrs.float(zAttr))
	case trianglesTag:
		imp.curObject.geometry.Triangles = imp.curObject.geometry.Triangles[:0]
	case triangleTag:
		// p1, p2, p3 and pid are property attributes of the materials
		// extension and are ignored; missing indices default to zero
		g := &imp.curObject.geometry
		g.Triangles = append(g.Triangles,
			attrs.intval(v1Attr), attrs.intval(v2Attr), attrs.intval(v3Attr))
	case componentsTag:
		imp.curObject.components = imp.curObject.components[:0]
	case componentTag:
		return imp.handleStartComponent(attrs)
	case itemTag:
		return imp.handleStartItem(attrs)
	case metadataTag:
		imp.curChars.Reset()
		if n := attrs.str(nameAttr); n != "" {
			imp.curMetadataName = n
		}
	case resourcesTag, buildTag:
		// grouping elements, nothing to do
	}
	return nil
}

func (h *modelPartHandler) endElement(name string) error {
	imp := h.imp()
	switch name {
	case objectTag:
		return imp.handleEndObject()
	case metadataTag:
		return imp.handleEndMetadata()
	case modelTag:
		return imp.handleEndModel()
	}
	return nil
}

func (h *modelPartHandler) characters(data []byte) {
	h.imp().curChars.Write(data)
}

func (imp *Importer) handleStartObject(attrs attributes) error {
	imp.curObject = currentObject{}

	if !isValidObjectType(attrs.str(typeAttr)) {
		// solidsupport, support, surface and other are skipped whole
		return nil
	}

	imp.curObject.valid = true
	imp.curObject.object = imp.model.AddObject()
	imp.curObject.object.Name = attrs.str(nameAttr)
	if imp.curObject.object.Name == "" {
		imp.curObject.object.Name = fmt.Sprintf("%s_%d", imp.name, len(imp.model.Objects))
	}
	imp.curObject.id = attrs.intval(idAttr)
	return nil
}

func (imp *Importer) handleEndObject() error {
	cur := &imp.curObject
	if !cur.valid {
		return nil
	}

	if cur.geometry.empty() {
		// no geometry: either a pure component alias or an empty object
		imp.model.DeleteObject(cur.object)

		if len(cur.components) == 0 {
			delete(imp.objects, cur.id)
			delete(imp.objectPtrs, cur.id)
			delete(imp.aliases, cur.id)
			return nil
		}

		if _, ok := imp.aliases[cur.id]; !ok {
			imp.aliases[cur.id] = append([]component(nil), cur.components...)
		}
		return nil
	}

	if _, ok := imp.objects[cur.id]; ok {
		return imp.errs.fail("found object with duplicate id")
	}

	g := cur.geometry
	imp.geometries[cur.id] = &objectGeometry{
		Vertices:  append([]float32(nil), g.Vertices...),
		Triangles: append([]int(nil), g.Triangles...),
	}
	imp.objects[cur.id] = imp.createdObjects
	imp.createdObjects++
	imp.objectPtrs[cur.id] = cur.object
	imp.objectIDs = append(imp.objectIDs, cur.id)
	// a geometry-bearing object aliases itself
	imp.aliases[cur.id] = []component{{objectID: cur.id, transform: geometry.Identity()}}
	return nil
}

func (imp *Importer) handleStartComponent(attrs attributes) error {
	objectID := attrs.intval(objectIDAttr)
	transform := geometry.ParseTransform3MF(attrs.str(transformAttr))

	// forward references are rejected: the target must already be a
	// registered object or alias
	if _, ok := imp.objects[objectID]; !ok {
		if _, ok := imp.aliases[objectID]; !ok {
			return imp.errs.fail("found component with invalid object id")
		}
	}

	imp.curObject.components = append(imp.curObject.components, component{objectID: objectID, transform: transform})
	return nil
}

func (imp *Importer) handleStartItem(attrs attributes) error {
	// thumbnail, partnumber, pid and pindex are ignored
	objectID := attrs.intval(objectIDAttr)
	transform := geometry.ParseTransform3MF(attrs.str(transformAttr))
	printable := attrs.boolean(printableAttr)

	return imp.createObjectInstance(objectID, transform, printable, 1)
}

func (imp *Importer) handleEndMetadata() error {
	if imp.curMetadataName == VersionMetadataKey {
		v, err := strconv.Atoi(strings.TrimSpace(imp.curChars.String()))
		if err == nil {
			imp.version = v
		}
		if imp.checkVersion && imp.version > Version3MF {
			imp.errs.addf("archive version %d is newer than supported %d", imp.version, Version3MF)
			return &VersionError{Found: imp.version}
		}
	}
	return nil
}

func (imp *Importer) handleEndModel() error {
	// drop registered objects that received no instances
	for i := 0; i < len(imp.objectIDs); {
		id := imp.objectIDs[i]
		obj := imp.objectPtrs[id]
		if obj != nil && len(obj.Instances) == 0 {
			imp.model.DeleteObject(obj)
			delete(imp.objects, id)
			delete(imp.objectPtrs, id)
			delete(imp.geometries, id)
			delete(imp.aliases, id)
			imp.objectIDs = append(imp.objectIDs[:i], imp.objectIDs[i+1:]...)
			continue
		}
		i++
	}

	// install the world transforms collected from the build section
	for _, pi := range imp.instances {
		t := geometry.NewTransformation(pi.transform)
		if t.HasZeroScale() {
			// degenerate scale, the instance keeps its identity placement
			continue
		}
		pi.instance.Transformation = t
	}
	return nil
}

// createObjectInstance expands a build item against the alias map,
// recursively flattening composite objects into leaf instances.
func (imp *Importer) createObjectInstance(objectID int, transform geometry.Matrix4, printable bool, recursion int) error {
	if recursion > maxRecursions {
		return imp.errs.fail("too many recursions")
	}

	components, ok := imp.aliases[objectID]
	if !ok {
		return imp.errs.fail("found item with invalid object id")
	}

	if len(components) == 1 && components[0].objectID == objectID {
		// leaf: the object aliases itself
		obj := imp.objectPtrs[objectID]
		if obj == nil {
			return imp.errs.fail("found invalid object")
		}
		inst := obj.AddInstance()
		inst.Printable = printable
		imp.instances = append(imp.instances, pendingInstance{instance: inst, transform: transform})
		return nil
	}

	for _, c := range components {
		if err := imp.createObjectInstance(c.objectID, transform.Mul(c.transform), printable, recursion+1); err != nil {
			return err
		}
	}
	return nil
}
