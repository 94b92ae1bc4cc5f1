package geometry

import (
	"math"
	"sort"
)

// Rectangle is a 2D footprint handed to the packer.
type Rectangle struct {
	Width, Height float64
	ID            int
}

// PackingResult is the placed position of one footprint.
type PackingResult struct {
	X, Y          float64
	ID            int
	Width, Height float64
}

// Packer places rectangular footprints on the build plate with a fixed
// margin between them.
type Packer struct {
	margin float64
}

// NewPacker returns a packer with the given margin between objects.
func NewPacker(margin float64) *Packer {
	return &Packer{margin: margin}
}

// Pack arranges footprints with a shelf algorithm constrained to the
// given plate width. Objects are placed tallest first; a new shelf is
// opened whenever the current row would overflow the plate.
func (p *Packer) Pack(objects []Rectangle, plateWidth float64) []PackingResult {
	if len(objects) == 0 {
		return nil
	}

	sorted := make([]Rectangle, len(objects))
	copy(sorted, objects)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Height > sorted[j].Height
	})

	results := make([]PackingResult, len(sorted))

	x, y, shelf := 0.0, 0.0, 0.0
	for i, obj := range sorted {
		if x > 0 && x+obj.Width > plateWidth {
			x = 0
			y += shelf + p.margin
			shelf = 0
		}

		results[i] = PackingResult{X: x, Y: y, ID: obj.ID, Width: obj.Width, Height: obj.Height}

		x += obj.Width + p.margin
		shelf = math.Max(shelf, obj.Height)
	}

	return results
}

// PackCompact arranges footprints with a guillotine split toward a
// roughly square layout, which keeps travel moves short on the plate.
func (p *Packer) PackCompact(objects []Rectangle) []PackingResult {
	if len(objects) == 0 {
		return nil
	}

	sorted := make([]Rectangle, len(objects))
	copy(sorted, objects)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Height != sorted[j].Height {
			return sorted[i].Height > sorted[j].Height
		}
		return sorted[i].Width > sorted[j].Width
	})

	var totalArea, maxWidth float64
	for _, obj := range sorted {
		totalArea += (obj.Width + p.margin) * (obj.Height + p.margin)
		maxWidth = math.Max(maxWidth, obj.Width)
	}
	binWidth := math.Max(math.Sqrt(totalArea*1.2), maxWidth+p.margin)

	type space struct {
		x, y, w, h float64
	}
	spaces := []space{{0, 0, binWidth, math.Inf(1)}}

	results := make([]PackingResult, len(sorted))
	var bottom float64

	for i, obj := range sorted {
		w := obj.Width + p.margin
		h := obj.Height + p.margin

		placed := false
		for si, s := range spaces {
			if w > s.w || h > s.h {
				continue
			}
			results[i] = PackingResult{X: s.x, Y: s.y, ID: obj.ID, Width: obj.Width, Height: obj.Height}
			bottom = math.Max(bottom, s.y+obj.Height)

			// guillotine split: remainder to the right, remainder below
			next := spaces[:si]
			next = append(next, spaces[si+1:]...)
			if s.w > w {
				next = append(next, space{s.x + w, s.y, s.w - w, s.h})
			}
			if s.h > h {
				next = append(next, space{s.x, s.y + h, w, s.h - h})
			}
			sort.Slice(next, func(a, b int) bool {
				if next[a].y != next[b].y {
					return next[a].y < next[b].y
				}
				return next[a].x < next[b].x
			})
			spaces = next
			placed = true
			break
		}

		if !placed {
			// open a fresh row below everything placed so far, and clip
			// surviving spaces so nothing can land on top of it
			y := bottom + p.margin
			results[i] = PackingResult{X: 0, Y: y, ID: obj.ID, Width: obj.Width, Height: obj.Height}
			bottom = y + obj.Height

			clipped := spaces[:0]
			for _, s := range spaces {
				if s.y >= y {
					continue
				}
				if s.y+s.h > y {
					s.h = y - s.y
				}
				if s.w >= 1 && s.h >= 1 {
					clipped = append(clipped, s)
				}
			}
			spaces = append(clipped, space{w, y, math.Max(binWidth-w, w), h})
		}
	}

	return results
}
