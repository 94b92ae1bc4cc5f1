// Package arrange re-places the instances of a scene on the build
// plate using the 2D bin packer.
package arrange

import (
	"github.com/kjplatz/slic3mf/internal/geometry"
	"github.com/kjplatz/slic3mf/internal/model"
)

// Options control the arrangement.
type Options struct {
	PlateWidth float64 // mm, shelf width constraint
	Margin     float64 // mm between objects
	Compact    bool    // use the guillotine packer instead of shelves
}

// DefaultOptions matches a common 250 mm printer bed.
func DefaultOptions() Options {
	return Options{PlateWidth: 250, Margin: 10}
}

// Arrange moves every instance of every object so the footprints tile
// the plate without overlap. Z placement is left untouched.
func Arrange(m *model.Model, opts Options) {
	type slot struct {
		obj  *model.Object
		inst *model.Instance
	}

	var slots []slot
	var rects []geometry.Rectangle

	for _, obj := range m.Objects {
		local := obj.LocalBoundingBox()
		if !local.Defined() {
			continue
		}
		for _, inst := range obj.Instances {
			world := local.Transformed(inst.Transformation.Matrix())
			rects = append(rects, geometry.Rectangle{
				Width:  world.Width(),
				Height: world.Height(),
				ID:     len(slots),
			})
			slots = append(slots, slot{obj: obj, inst: inst})
		}
	}
	if len(rects) == 0 {
		return
	}

	packer := geometry.NewPacker(opts.Margin)
	var results []geometry.PackingResult
	if opts.Compact {
		results = packer.PackCompact(rects)
	} else {
		results = packer.Pack(rects, opts.PlateWidth)
	}

	for _, r := range results {
		s := slots[r.ID]
		local := s.obj.LocalBoundingBox()
		world := local.Transformed(s.inst.Transformation.Matrix())
		// shift so the footprint's lower-left corner lands on the slot
		s.inst.Transformation = s.inst.Transformation.Translate(r.X-world.MinX, r.Y-world.MinY, 0)
	}
}
