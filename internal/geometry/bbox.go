package geometry

import "math"

// BoundingBox is an axis-aligned 3D bounding box.
type BoundingBox struct {
	MinX, MinY, MinZ float64
	MaxX, MaxY, MaxZ float64

	defined bool
}

// NewBoundingBox returns an empty bounding box ready to be extended.
func NewBoundingBox() BoundingBox {
	return BoundingBox{
		MinX: math.Inf(1), MinY: math.Inf(1), MinZ: math.Inf(1),
		MaxX: math.Inf(-1), MaxY: math.Inf(-1), MaxZ: math.Inf(-1),
	}
}

// Defined reports whether at least one point has been merged.
func (b *BoundingBox) Defined() bool {
	return b.defined
}

// Include extends the box to contain the point (x, y, z).
func (b *BoundingBox) Include(x, y, z float64) {
	b.MinX = math.Min(b.MinX, x)
	b.MinY = math.Min(b.MinY, y)
	b.MinZ = math.Min(b.MinZ, z)
	b.MaxX = math.Max(b.MaxX, x)
	b.MaxY = math.Max(b.MaxY, y)
	b.MaxZ = math.Max(b.MaxZ, z)
	b.defined = true
}

// Merge extends the box to contain o.
func (b *BoundingBox) Merge(o BoundingBox) {
	if !o.defined {
		return
	}
	b.Include(o.MinX, o.MinY, o.MinZ)
	b.Include(o.MaxX, o.MaxY, o.MaxZ)
}

// Transformed returns the bounding box of the eight transformed corners.
func (b BoundingBox) Transformed(m Matrix4) BoundingBox {
	r := NewBoundingBox()
	if !b.defined {
		return r
	}
	for _, x := range [2]float64{b.MinX, b.MaxX} {
		for _, y := range [2]float64{b.MinY, b.MaxY} {
			for _, z := range [2]float64{b.MinZ, b.MaxZ} {
				r.Include(m.MulPoint(x, y, z))
			}
		}
	}
	return r
}

// Width returns the X extent.
func (b BoundingBox) Width() float64 { return b.MaxX - b.MinX }

// Height returns the Y extent.
func (b BoundingBox) Height() float64 { return b.MaxY - b.MinY }

// Depth returns the Z extent.
func (b BoundingBox) Depth() float64 { return b.MaxZ - b.MinZ }
