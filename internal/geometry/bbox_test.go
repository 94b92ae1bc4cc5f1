package geometry

import "testing"

func TestBoundingBoxIncludeAndMerge(t *testing.T) {
	b := NewBoundingBox()
	if b.Defined() {
		t.Error("fresh box must not be defined")
	}

	b.Include(1, 2, 3)
	b.Include(-1, 5, 0)
	if !b.Defined() {
		t.Fatal("box should be defined after Include")
	}
	if b.MinX != -1 || b.MaxX != 1 || b.MinY != 2 || b.MaxY != 5 || b.MinZ != 0 || b.MaxZ != 3 {
		t.Errorf("unexpected bounds: %+v", b)
	}
	if b.Width() != 2 || b.Height() != 3 || b.Depth() != 3 {
		t.Errorf("unexpected extents: %v %v %v", b.Width(), b.Height(), b.Depth())
	}

	o := NewBoundingBox()
	o.Include(10, 10, 10)
	b.Merge(o)
	if b.MaxX != 10 {
		t.Errorf("merge failed: %+v", b)
	}

	b.Merge(NewBoundingBox()) // merging an empty box is a no-op
	if b.MaxX != 10 {
		t.Errorf("merging empty box changed bounds: %+v", b)
	}
}

func TestBoundingBoxTransformed(t *testing.T) {
	b := NewBoundingBox()
	b.Include(0, 0, 0)
	b.Include(1, 1, 1)

	moved := b.Transformed(Translation(10, 0, 0))
	if moved.MinX != 10 || moved.MaxX != 11 {
		t.Errorf("unexpected transformed bounds: %+v", moved)
	}
}
