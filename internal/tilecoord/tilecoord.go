// Package tilecoord provides Web Mercator tile/bounding-box conversions
// and polygon rasterization for cutline masks, adapted from the teacher's
// orb/maptile-based tile math (originally internal/tile/coords.go).
package tilecoord

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"

	"github.com/MeKo-Tech/openeocore/internal/rastertypes"
)

// Coords identifies a single Web Mercator tile at zoom Z, column X, row Y.
type Coords struct {
	Z uint32
	X uint32
	Y uint32
}

// Bounds returns the WGS84 geographic bounding box covered by c.
func Bounds(c Coords) rastertypes.BoundingBox {
	t := maptile.New(c.X, c.Y, maptile.Zoom(c.Z))
	b := t.Bound()
	return rastertypes.BoundingBox{
		West:  b.Min[0],
		South: b.Min[1],
		East:  b.Max[0],
		North: b.Max[1],
		CRS:   "EPSG:4326",
	}
}

// FromLonLat returns the tile at zoom z containing (lon, lat).
func FromLonLat(lon, lat float64, z uint32) Coords {
	t := maptile.At(orb.Point{lon, lat}, maptile.Zoom(z))
	return Coords{Z: z, X: t.X, Y: t.Y}
}

// Range returns the full inclusive [xMin,xMax]x[yMin,yMax] tile range
// covering bbox at zoom z, grounded on the teacher's TilesInBBox.
func Range(bbox rastertypes.BoundingBox, z uint32) (xMin, xMax, yMin, yMax uint32, err error) {
	if bbox.West > bbox.East || bbox.South > bbox.North {
		return 0, 0, 0, 0, fmt.Errorf("tilecoord: degenerate bbox %s", bbox)
	}
	min := maptile.At(orb.Point{bbox.West, bbox.North}, maptile.Zoom(z))
	max := maptile.At(orb.Point{bbox.East, bbox.South}, maptile.Zoom(z))
	return min.X, max.X, min.Y, max.Y, nil
}

// Count returns the number of tiles in an inclusive range, used to bound
// tile-assignment grid size before generating candidate coordinates.
func Count(xMin, xMax, yMin, yMax uint32) int {
	return int(xMax-xMin+1) * int(yMax-yMin+1)
}

// PolygonToRing converts a ring of [lon, lat] pairs (as delivered in a
// GeoJSON-like geometry argument) into an orb.Ring for mask rasterization.
func PolygonToRing(coords [][2]float64) orb.Ring {
	ring := make(orb.Ring, len(coords))
	for i, c := range coords {
		ring[i] = orb.Point{c[0], c[1]}
	}
	return ring
}

// RasterizeCutlineMask builds a (height, width) Mask2D for geometry over
// bounds, true meaning "outside the geometry / invalid", matching spec
// §4.2's compute_cutline_mask orientation:
//   - full coverage (geometry nil or contains the whole bounds) -> all-false
//   - no coverage -> all-true
//   - partial coverage -> per-pixel ray-cast test
func RasterizeCutlineMask(polygon orb.Polygon, bounds rastertypes.BoundingBox, width, height int) *rastertypes.Mask2D {
	mask := rastertypes.NewMask2D(height, width)
	if len(polygon) == 0 {
		// No geometry supplied: treat as full coverage (spec §4.2).
		return mask
	}

	dx := (bounds.East - bounds.West) / float64(width)
	dy := (bounds.North - bounds.South) / float64(height)

	anyInside := false
	for row := 0; row < height; row++ {
		// Sample pixel centers; row 0 is the northern edge.
		lat := bounds.North - (float64(row)+0.5)*dy
		for col := 0; col < width; col++ {
			lon := bounds.West + (float64(col)+0.5)*dx
			inside := pointInPolygon(orb.Point{lon, lat}, polygon)
			mask.Set(row, col, !inside)
			if inside {
				anyInside = true
			}
		}
	}
	if !anyInside {
		for i := range mask.Data {
			mask.Data[i] = true
		}
	}
	return mask
}

// pointInPolygon implements the standard ray-casting test against a
// polygon's outer ring, subtracting any inner (hole) rings.
func pointInPolygon(p orb.Point, polygon orb.Polygon) bool {
	if len(polygon) == 0 {
		return false
	}
	if !ringContains(p, polygon[0]) {
		return false
	}
	for _, hole := range polygon[1:] {
		if ringContains(p, hole) {
			return false
		}
	}
	return true
}

func ringContains(p orb.Point, ring orb.Ring) bool {
	inside := false
	n := len(ring)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := ring[i][0], ring[i][1]
		xj, yj := ring[j][0], ring[j][1]
		intersects := (yi > p[1]) != (yj > p[1]) &&
			p[0] < (xj-xi)*(p[1]-yi)/(yj-yi)+xi
		if intersects {
			inside = !inside
		}
	}
	return inside
}
