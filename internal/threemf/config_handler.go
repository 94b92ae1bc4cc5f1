package threemf

// configPartHandler is the SAX state machine for the model config
// sidecar (Metadata/Slic3r_PE_model.config).
type configPartHandler Importer

func (h *configPartHandler) imp() *Importer { return (*Importer)(h) }

func (h *configPartHandler) startElement(name string, attrs attributes) error {
	imp := h.imp()
	switch name {
	case configTag:
		// root element, nothing to do
	case objectTag:
		return imp.handleStartConfigObject(attrs)
	case volumeTag:
		return imp.handleStartConfigVolume(attrs)
	case metadataTag:
		return imp.handleStartConfigMetadata(attrs)
	}
	return nil
}

func (h *configPartHandler) endElement(string) error {
	return nil
}

func (h *configPartHandler) characters([]byte) {}

func (imp *Importer) handleStartConfigObject(attrs attributes) error {
	objectID := attrs.intval(idAttr)
	if _, ok := imp.objectsMetadata[objectID]; ok {
		return imp.errs.fail("found duplicated object id")
	}

	imp.objectsMetadata[objectID] = &objectMetadata{}
	imp.curConfig.objectID = objectID
	return nil
}

func (imp *Importer) handleStartConfigVolume(attrs attributes) error {
	object, ok := imp.objectsMetadata[imp.curConfig.objectID]
	if !ok {
		return imp.errs.fail("cannot assign volume to a valid object")
	}

	imp.curConfig.volumeID = len(object.Volumes)
	object.Volumes = append(object.Volumes, volumeMetadata{
		FirstTriangleID: attrs.intval(firstIDAttr),
		LastTriangleID:  attrs.intval(lastIDAttr),
	})
	return nil
}

func (imp *Importer) handleStartConfigMetadata(attrs attributes) error {
	object, ok := imp.objectsMetadata[imp.curConfig.objectID]
	if !ok {
		return imp.errs.fail("cannot assign metadata to a valid object id")
	}

	pair := metadataPair{Key: attrs.str(keyAttr), Value: attrs.str(valueAttr)}
	switch attrs.str(typeAttr) {
	case objectMetadataType:
		object.Metadata = append(object.Metadata, pair)
	case volumeMetadataType:
		if imp.curConfig.volumeID >= 0 && imp.curConfig.volumeID < len(object.Volumes) {
			vol := &object.Volumes[imp.curConfig.volumeID]
			vol.Metadata = append(vol.Metadata, pair)
		}
	default:
		return imp.errs.fail("found invalid metadata type")
	}
	return nil
}
