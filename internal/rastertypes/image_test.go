package rastertypes

import "testing"

func TestNewImageBandNameMismatch(t *testing.T) {
	arr := NewMaskedArray(2, 4, 4)
	_, err := NewImage(arr, BoundingBox{}, "EPSG:4326", []string{"only_one"}, nil)
	if err == nil {
		t.Fatal("expected an error for mismatched band_names length")
	}
}

func TestNewImageCutlineShapeMismatch(t *testing.T) {
	arr := NewMaskedArray(1, 4, 4)
	mask := NewMask2D(2, 2)
	_, err := NewImage(arr, BoundingBox{}, "EPSG:4326", nil, mask)
	if err == nil {
		t.Fatal("expected an error for mismatched cutline_mask shape")
	}
}

func TestMaskedArraySetAt(t *testing.T) {
	arr := NewMaskedArray(1, 2, 2)
	if _, ok := arr.At(0, 0, 0); ok {
		t.Fatal("expected a fresh array to be fully masked")
	}
	arr.Set(0, 0, 0, 42)
	v, ok := arr.At(0, 0, 0)
	if !ok || v != 42 {
		t.Fatalf("got (%v, %v), want (42, true)", v, ok)
	}
}

func TestTemporalIntervalEmpty(t *testing.T) {
	if !(TemporalInterval{}).Empty() {
		t.Fatal("zero-value interval should be empty")
	}
	if (TemporalInterval{Start: NewTime(0)}).Empty() {
		t.Fatal("interval with a start should not be empty")
	}
}

func TestBoundingBoxIntersects(t *testing.T) {
	a := BoundingBox{West: 0, South: 0, East: 10, North: 10}
	b := BoundingBox{West: 5, South: 5, East: 15, North: 15}
	if !a.Intersects(b) {
		t.Fatal("expected overlapping boxes to intersect")
	}
	c := BoundingBox{West: 10, South: 10, East: 20, North: 20}
	if a.Intersects(c) {
		t.Fatal("touching-edge boxes should not count as intersecting")
	}
}
