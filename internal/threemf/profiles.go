package threemf

import (
	"archive/zip"
	"math"
	"strconv"
	"strings"

	"github.com/kjplatz/slic3mf/internal/mesh"
	"github.com/kjplatz/slic3mf/internal/model"
)

// The line-oriented sidecars key rows by a 1-based index into the
// scene's object list, not by archive object id. Malformed rows are
// soft errors: logged and skipped without aborting the load.

// extractLayerHeightsProfiles parses lines of the form
//
//	object_id=<n>|<f>;<f>;...
//
// where the float list has even length >= 4.
func (imp *Importer) extractLayerHeightsProfiles(f *zip.File) {
	data, err := readPart(f)
	if err != nil {
		imp.errs.add("error while reading layer heights profile data to buffer")
		return
	}

	for _, line := range splitPartLines(data) {
		objectID, payload, ok := parseObjectRow(line)
		if !ok {
			imp.errs.add("error while reading object data")
			continue
		}
		if objectID == 0 {
			imp.errs.add("found invalid object id")
			continue
		}
		if _, ok := imp.layerHeights[objectID]; ok {
			imp.errs.add("found duplicated layer heights profile")
			continue
		}

		values := strings.Split(payload, ";")
		if len(values) < 4 || len(values)%2 != 0 {
			imp.errs.add("found invalid layer heights profile")
			continue
		}

		profile := make([]float64, 0, len(values))
		for _, v := range values {
			fv, _ := strconv.ParseFloat(v, 64)
			profile = append(profile, fv)
		}
		imp.layerHeights[objectID] = profile
	}
}

// extractSlaSupportPoints parses the SLA support point sidecar. The
// first line may carry a format version header; the default version 0
// stores three floats per point, version 1 five (x y z radius flag).
func (imp *Importer) extractSlaSupportPoints(f *zip.File) {
	data, err := readPart(f)
	if err != nil {
		imp.errs.add("error while reading sla support points data to buffer")
		return
	}

	lines := splitPartLines(data)
	version := 0
	if len(lines) > 0 && strings.HasPrefix(lines[0], slaPointsVersionPrefix) {
		version, _ = strconv.Atoi(strings.TrimPrefix(lines[0], slaPointsVersionPrefix))
		lines = lines[1:]
	}

	stride := 3
	if version >= 1 {
		stride = 5
	}

	for _, line := range lines {
		objectID, payload, ok := parseObjectRow(line)
		if !ok {
			imp.errs.add("error while reading object data")
			continue
		}
		if objectID == 0 {
			imp.errs.add("found invalid object id")
			continue
		}
		if _, ok := imp.slaSupportPoints[objectID]; ok {
			imp.errs.add("found duplicated SLA support points")
			continue
		}

		fields := strings.Split(payload, " ")
		var points []model.SlaSupportPoint
		for i := 0; i+stride <= len(fields); i += stride {
			p := model.SlaSupportPoint{
				Pos: mesh.Vec3{
					parseFloat32(fields[i]),
					parseFloat32(fields[i+1]),
					parseFloat32(fields[i+2]),
				},
				HeadFrontRadius: 0.4,
			}
			if version >= 1 {
				p.HeadFrontRadius = parseFloat32(fields[i+3])
				// the flag is stored as a float 0/1
				p.IsNewIsland = math.Abs(float64(parseFloat32(fields[i+4]))-1) < 1e-8
			}
			points = append(points, p)
		}

		if len(points) > 0 {
			imp.slaSupportPoints[objectID] = points
		}
	}
}

func splitPartLines(data []byte) []string {
	s := strings.TrimSuffix(string(data), "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

// parseObjectRow splits "object_id=<n>|<payload>".
func parseObjectRow(line string) (int, string, bool) {
	head, payload, ok := strings.Cut(line, "|")
	if !ok {
		return 0, "", false
	}
	key, idText, ok := strings.Cut(head, "=")
	if !ok || key != "object_id" {
		return 0, "", false
	}
	id, err := strconv.Atoi(idText)
	if err != nil {
		return 0, "", false
	}
	return id, payload, true
}

func parseFloat32(s string) float32 {
	v, _ := strconv.ParseFloat(s, 32)
	return float32(v)
}
