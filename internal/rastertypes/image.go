// Package rastertypes holds the core data model: Image, its masked pixel
// array, bounding boxes and temporal intervals (spec §3).
package rastertypes

import "fmt"

// MaskedArray is a flat, row-major (bands, height, width) pixel buffer with
// a parallel boolean mask (true = masked/invalid), the Go analogue of
// numpy.ma.MaskedArray as used by rio_tiler.models.ImageData in the Python
// original (_examples/original_source/titiler/openeo/processes/implementations/data_model.py).
type MaskedArray struct {
	Data  []float64
	Mask  []bool
	Bands int
	Height int
	Width  int
}

// NewMaskedArray allocates a zeroed array of the given shape, fully masked.
func NewMaskedArray(bands, height, width int) *MaskedArray {
	n := bands * height * width
	data := make([]float64, n)
	mask := make([]bool, n)
	for i := range mask {
		mask[i] = true
	}
	return &MaskedArray{Data: data, Mask: mask, Bands: bands, Height: height, Width: width}
}

// Index returns the flat offset of (band, row, col).
func (m *MaskedArray) Index(band, row, col int) int {
	return band*m.Height*m.Width + row*m.Width + col
}

// At returns the value and validity at (band, row, col).
func (m *MaskedArray) At(band, row, col int) (float64, bool) {
	i := m.Index(band, row, col)
	return m.Data[i], !m.Mask[i]
}

// Set assigns value and marks it valid at (band, row, col).
func (m *MaskedArray) Set(band, row, col int, value float64) {
	i := m.Index(band, row, col)
	m.Data[i] = value
	m.Mask[i] = false
}

// BoundingBox is a georeferenced rectangle. West/South/East/North are in CRS
// units; CRS defaults to "EPSG:4326" when empty.
type BoundingBox struct {
	West  float64
	South float64
	East  float64
	North float64
	CRS   string
}

func (b BoundingBox) crsOrDefault() string {
	if b.CRS == "" {
		return "EPSG:4326"
	}
	return b.CRS
}

// Array returns [west, south, east, north], the shape most readers expect.
func (b BoundingBox) Array() [4]float64 {
	return [4]float64{b.West, b.South, b.East, b.North}
}

func (b BoundingBox) String() string {
	return fmt.Sprintf("bbox(%.6f,%.6f,%.6f,%.6f %s)", b.West, b.South, b.East, b.North, b.crsOrDefault())
}

// Intersects reports whether b and o overlap (touching edges count as no
// overlap, matching rio_tiler's TileOutsideBounds semantics for a
// degenerate intersection).
func (b BoundingBox) Intersects(o BoundingBox) bool {
	return b.West < o.East && o.West < b.East && b.South < o.North && o.South < b.North
}

// TemporalInterval is a half-open [Start, End) datetime range; either end
// may be the zero time to mean "open" on that side (spec §4.3's
// start/.. and ../end forms).
type TemporalInterval struct {
	Start Time
	End   Time
}

// Time wraps a presence flag around a Unix-seconds timestamp so a
// TemporalInterval can represent an open-ended bound without a pointer.
type Time struct {
	Unix int64
	Set  bool
}

func NewTime(unix int64) Time { return Time{Unix: unix, Set: true} }

// Empty reports whether neither Start nor End is set (spec's
// TemporalExtentEmpty condition).
func (t TemporalInterval) Empty() bool {
	return !t.Start.Set && !t.End.Set
}

// BandStats carries per-band min/max as surfaced by STAC raster:bands
// statistics (supplemented feature, see SPEC_FULL.md §6.2).
type BandStats struct {
	Minimum float64
	Maximum float64
}

// Mask2D is a (height, width) boolean raster; true = outside footprint /
// invalid, matching spec §3 and §9's cutline-mask orientation note.
type Mask2D struct {
	Height int
	Width  int
	Data   []bool
}

// NewMask2D allocates an all-false (fully valid) mask.
func NewMask2D(height, width int) *Mask2D {
	return &Mask2D{Height: height, Width: width, Data: make([]bool, height*width)}
}

func (m *Mask2D) At(row, col int) bool { return m.Data[row*m.Width+col] }
func (m *Mask2D) Set(row, col int, v bool) { m.Data[row*m.Width+col] = v }

// All reports whether every pixel is masked (true).
func (m *Mask2D) All() bool {
	for _, v := range m.Data {
		if !v {
			return false
		}
	}
	return true
}

// Image is the core unit of raster data (spec §3). Invariants: Mask shape
// matches Array shape; len(BandNames) == Bands when set; CutlineMask shape
// equals (Height, Width) when set.
type Image struct {
	Array             *MaskedArray
	Bounds            BoundingBox
	CRS               string
	BandNames         []string
	DatasetStatistics []BandStats
	CutlineMask       *Mask2D
	Metadata          map[string]any
}

// NewImage validates and constructs an Image, returning an error if the
// invariants from spec §3 do not hold.
func NewImage(array *MaskedArray, bounds BoundingBox, crs string, bandNames []string, cutline *Mask2D) (Image, error) {
	if array == nil {
		return Image{}, fmt.Errorf("image array must not be nil")
	}
	if len(array.Mask) != len(array.Data) || len(array.Data) != array.Bands*array.Height*array.Width {
		return Image{}, fmt.Errorf("array mask/data length (%d,%d) does not match shape (%d,%d,%d)",
			len(array.Mask), len(array.Data), array.Bands, array.Height, array.Width)
	}
	if bandNames != nil && len(bandNames) != array.Bands {
		return Image{}, fmt.Errorf("band_names length %d does not match band count %d", len(bandNames), array.Bands)
	}
	if cutline != nil && (cutline.Height != array.Height || cutline.Width != array.Width) {
		return Image{}, fmt.Errorf("cutline_mask shape (%d,%d) does not match image shape (%d,%d)",
			cutline.Height, cutline.Width, array.Height, array.Width)
	}
	return Image{
		Array:       array,
		Bounds:      bounds,
		CRS:         crs,
		BandNames:   bandNames,
		CutlineMask: cutline,
		Metadata:    map[string]any{},
	}, nil
}

// Count returns the number of bands, the openEO-facing name for Array.Bands.
func (img Image) Count() int {
	if img.Array == nil {
		return 0
	}
	return img.Array.Bands
}
