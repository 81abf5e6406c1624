package tilecoord

import (
	"testing"

	"github.com/paulmach/orb"

	"github.com/MeKo-Tech/openeocore/internal/rastertypes"
)

func TestBoundsRoundTripsThroughFromLonLat(t *testing.T) {
	c := FromLonLat(8.4, 49.0, 10)
	b := Bounds(c)
	if b.West >= b.East || b.South >= b.North {
		t.Fatalf("degenerate bounds for %+v: %+v", c, b)
	}
	if 8.4 < b.West || 8.4 > b.East || 49.0 < b.South || 49.0 > b.North {
		t.Fatalf("origin point not inside its own tile bounds: %+v", b)
	}
}

func TestRangeRejectsDegenerateBBox(t *testing.T) {
	bbox := rastertypes.BoundingBox{West: 10, East: 0, South: 0, North: 1}
	if _, _, _, _, err := Range(bbox, 4); err == nil {
		t.Fatal("expected an error for west > east")
	}
}

func TestCount(t *testing.T) {
	if got := Count(0, 2, 0, 1); got != 6 {
		t.Fatalf("got %d, want 6", got)
	}
}

func TestRasterizeCutlineMaskNoGeometryIsFullCoverage(t *testing.T) {
	bounds := rastertypes.BoundingBox{West: 0, South: 0, East: 1, North: 1}
	mask := RasterizeCutlineMask(nil, bounds, 4, 4)
	for _, v := range mask.Data {
		if v {
			t.Fatal("expected full coverage (all-false) when no geometry is supplied")
		}
	}
}

func TestRasterizeCutlineMaskPartialCoverage(t *testing.T) {
	bounds := rastertypes.BoundingBox{West: 0, South: 0, East: 10, North: 10}
	ring := PolygonToRing([][2]float64{{0, 0}, {5, 0}, {5, 5}, {0, 5}, {0, 0}})
	polygon := orb.Polygon{ring}

	mask := RasterizeCutlineMask(polygon, bounds, 10, 10)

	// Pixel center near (2,2) should fall inside the polygon quadrant.
	insideRow, insideCol := 7, 2 // row 0 is the northern edge, so low latitude is a high row index
	if mask.Data[insideRow*10+insideCol] {
		t.Fatalf("expected pixel (%d,%d) to be marked valid (inside)", insideRow, insideCol)
	}

	outsideRow, outsideCol := 0, 9
	if !mask.Data[outsideRow*10+outsideCol] {
		t.Fatalf("expected pixel (%d,%d) to be marked invalid (outside)", outsideRow, outsideCol)
	}
}
