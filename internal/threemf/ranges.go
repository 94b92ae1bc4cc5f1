package threemf

import (
	"archive/zip"
	"encoding/xml"

	"github.com/kjplatz/slic3mf/internal/model"
	"github.com/kjplatz/slic3mf/internal/printconfig"
)

// The layer config ranges part is small and strictly nested, so it is
// parsed in tree mode rather than through the SAX pump.

type layerRangesXML struct {
	XMLName xml.Name              `xml:"objects"`
	Objects []layerRangeObjectXML `xml:"object"`
}

type layerRangeObjectXML struct {
	ID     int             `xml:"id,attr"`
	Ranges []layerRangeXML `xml:"range"`
}

type layerRangeXML struct {
	MinZ    float64               `xml:"min_z,attr"`
	MaxZ    float64               `xml:"max_z,attr"`
	Options []layerRangeOptionXML `xml:"option"`
}

type layerRangeOptionXML struct {
	Key   string `xml:"opt_key,attr"`
	Value string `xml:",chardata"`
}

// extractLayerConfigRanges parses
// Metadata/Prusa_Slicer_layer_config_ranges.xml. Object ids here are
// 1-based scene indices, like the line-oriented sidecars.
func (imp *Importer) extractLayerConfigRanges(f *zip.File) {
	data, err := readPart(f)
	if err != nil {
		imp.errs.add("error while reading layer config ranges data to buffer")
		return
	}

	var tree layerRangesXML
	if err := xml.Unmarshal(data, &tree); err != nil {
		imp.errs.add("error while parsing layer config ranges")
		return
	}

	for _, obj := range tree.Objects {
		if obj.ID <= 0 {
			imp.errs.add("found invalid object id")
			continue
		}
		if _, ok := imp.layerConfigRanges[obj.ID]; ok {
			imp.errs.add("found duplicated layer config range")
			continue
		}

		var ranges []model.LayerConfigRange
		for _, r := range obj.Ranges {
			cfg := printconfig.New()
			for _, opt := range r.Options {
				cfg.Set(opt.Key, opt.Value)
			}
			ranges = append(ranges, model.LayerConfigRange{MinZ: r.MinZ, MaxZ: r.MaxZ, Config: cfg})
		}

		if len(ranges) > 0 {
			imp.layerConfigRanges[obj.ID] = ranges
		}
	}
}
