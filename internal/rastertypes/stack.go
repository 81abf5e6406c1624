package rastertypes

import "sort"

// RasterStack is a temporally-ordered collection of Images keyed by an
// opaque string key (spec §3; rio_tiler's xarray-like RasterStack protocol
// in data_model.py's LazyRasterStack).
type RasterStack interface {
	// Keys returns stack keys in chronological order by timestamp.
	Keys() []string
	// Get returns the realized Image for key, realizing it if necessary.
	Get(key string) (Image, error)
	// Timestamps returns the Unix timestamp associated with each key, in
	// the same order as Keys.
	Timestamps() []int64
	// Len returns the number of entries in the stack.
	Len() int
}

// SortKeysByTimestamp returns keys ordered by their associated timestamp,
// breaking ties by key to keep ordering deterministic.
func SortKeysByTimestamp(keys []string, timestamps map[string]int64) []string {
	out := make([]string, len(keys))
	copy(out, keys)
	sort.SliceStable(out, func(i, j int) bool {
		ti, tj := timestamps[out[i]], timestamps[out[j]]
		if ti != tj {
			return ti < tj
		}
		return out[i] < out[j]
	})
	return out
}

// EqualBandNames reports whether all images in the slice share the same
// band name list, a precondition the pixel-selection mosaic enforces
// (spec §4.5, grounded on reduce.py's "assert equal band count").
func EqualBandNames(images []Image) bool {
	if len(images) == 0 {
		return true
	}
	want := images[0].BandNames
	for _, img := range images[1:] {
		if len(img.BandNames) != len(want) {
			return false
		}
		for i := range want {
			if img.BandNames[i] != want[i] {
				return false
			}
		}
	}
	return true
}
