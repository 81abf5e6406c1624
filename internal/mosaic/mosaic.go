// Package mosaic implements pixel-selection compositing over a sequence of
// Images, grounded on
// original_source/titiler/openeo/processes/implementations/reduce.py
// (apply_pixel_selection, rio_tiler.mosaic.methods.PixelSelectionMethod)
// and the "truly lazy" aggregated-cutline variant in
// original_source/tests/test_truly_lazy_raster_stack.py.
package mosaic

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/MeKo-Tech/openeocore/internal/oeerrors"
	"github.com/MeKo-Tech/openeocore/internal/rastertypes"
)

// Method names the pixel-selection strategy (spec §4.5).
type Method string

const (
	First        Method = "first"
	Highest      Method = "highest"
	Lowest       Method = "lowest"
	Mean         Method = "mean"
	Median       Method = "median"
	Stdev        Method = "stdev"
	Count        Method = "count"
	LastBandHigh Method = "lastbandhigh"
	LastBandLow  Method = "lastbandlow"
)

// Source is anything the mosaic can pull a realized Image and its cutline
// mask from without forcing realization of everything up front: lazy
// stacks expose CutlineMask() before Realize().
type Source interface {
	CutlineMask() *rastertypes.Mask2D
	Realize(ctx context.Context) (rastertypes.Image, error)
}

// Apply runs method over images (in priority order, first entry tried
// first) and returns the composited Image. Early termination (is_done)
// means later sources may never be realized, matching reduce.py's
// behavior. Returns oeerrors.NewNoSuccessfulTasks if no source realized
// successfully; a realized source with no valid pixels still counts.
func Apply(ctx context.Context, method Method, sources []Source) (rastertypes.Image, error) {
	if len(sources) == 0 {
		return rastertypes.Image{}, oeerrors.NewNoSuccessfulTasks()
	}

	// Aggregated-cutline optimization: compute masks before realizing
	// anything, so a "first" source whose mask is already fully covered by
	// the running "already satisfied" set can be skipped without ever
	// running its task.
	var width, height, bands int
	var bounds rastertypes.BoundingBox
	var crs string
	var bandNames []string

	var out *rastertypes.MaskedArray
	filled := (*rastertypes.Mask2D)(nil) // true where a pixel already has a value
	var rank []float64                   // ranking-band value backing the current winner, for highest/lowest/lastbandhigh/lastbandlow
	var realizedAny bool

	// Only "first" can use the aggregated-cutline short-circuit: it never
	// revisits a filled pixel, so a source whose footprint is already fully
	// covered truly has nothing left to contribute. highest/lowest/
	// lastbandhigh/lastbandlow must compare every source's value against the
	// current winner at every pixel, so skipping a geometrically-covered
	// source would silently drop a potentially-winning value.
	isShortCircuitable := method == First

	var accumulated []rastertypes.Image // for mean/median/stdev/count, which need all values

	for _, src := range sources {
		mask := src.CutlineMask()

		if isShortCircuitable && filled != nil && mask.Height == filled.Height && mask.Width == filled.Width {
			if fullyCoveredBy(mask, filled) {
				continue // every pixel this source could contribute is already filled
			}
		}

		img, err := src.Realize(ctx)
		if err != nil {
			continue
		}
		realizedAny = true

		if out == nil {
			width, height = img.Array.Width, img.Array.Height
			bands = img.Array.Bands
			bounds, crs, bandNames = img.Bounds, img.CRS, img.BandNames
			out = rastertypes.NewMaskedArray(bands, height, width)
			filled = rastertypes.NewMask2D(height, width)
			rank = make([]float64, height*width)
		} else if img.Array.Width != width || img.Array.Height != height {
			img = resize(img, width, height)
		}

		if !rastertypes.EqualBandNames([]rastertypes.Image{{BandNames: bandNames}, img}) && len(bandNames) > 0 && len(img.BandNames) > 0 {
			return rastertypes.Image{}, fmt.Errorf("mosaic: band count mismatch between sources")
		}

		switch method {
		case First, Highest, Lowest, LastBandHigh, LastBandLow:
			applyWinnerTakesPixel(method, out, filled, rank, img)
		default:
			accumulated = append(accumulated, img)
		}

		if isShortCircuitable && filled.All() {
			break // is_done: every pixel now has a value
		}
	}

	if !realizedAny {
		return rastertypes.Image{}, oeerrors.NewNoSuccessfulTasks()
	}

	switch method {
	case Mean, Median, Stdev, Count:
		return applyStatistical(method, accumulated)
	default:
		cutline := invert(filled)
		img, err := rastertypes.NewImage(out, bounds, crs, bandNames, cutline)
		if err != nil {
			return rastertypes.Image{}, err
		}
		img.Metadata["pixel_selection_method"] = string(method)
		return img, nil
	}
}

// fullyCoveredBy reports whether every pixel valid in mask (false entries)
// is already filled (true entries) in filled, meaning this source has
// nothing left to contribute.
func fullyCoveredBy(mask, filled *rastertypes.Mask2D) bool {
	for i, invalid := range mask.Data {
		if !invalid && !filled.Data[i] {
			return false
		}
	}
	return true
}

// invert flips "filled" (true=has value) into a cutline mask
// (true=outside/invalid), spec §4.2's orientation.
func invert(filled *rastertypes.Mask2D) *rastertypes.Mask2D {
	out := rastertypes.NewMask2D(filled.Height, filled.Width)
	for i, v := range filled.Data {
		out.Data[i] = !v
	}
	return out
}

// applyWinnerTakesPixel composites img into out at every pixel where img
// has a usable ranking-band value, per method's selection rule:
//   - first: takes the value only if the pixel has no winner yet (priority
//     order: the first source to cover a pixel wins it for good).
//   - highest/lowest: replaces the current winner whenever img's ranking
//     value (band 0) is strictly greater/less than it.
//   - lastbandhigh/lastbandlow: same comparison, ranked by the image's
//     final band instead of its first.
//
// rank holds the ranking-band value backing the current winner at each
// pixel, parallel to filled; it is only meaningful once filled is true.
func applyWinnerTakesPixel(method Method, out *rastertypes.MaskedArray, filled *rastertypes.Mask2D, rank []float64, img rastertypes.Image) {
	for row := 0; row < out.Height; row++ {
		for col := 0; col < out.Width; col++ {
			fi := row*out.Width + col
			v, valid := bestBandValue(method, img, row, col)
			if !valid {
				continue
			}
			if filled.Data[fi] && !replaces(method, v, rank[fi]) {
				continue
			}
			for b := 0; b < out.Bands && b < img.Array.Bands; b++ {
				bv, ok := img.Array.At(b, row, col)
				if ok {
					out.Set(b, row, col, bv)
				}
			}
			filled.Data[fi] = true
			rank[fi] = v
		}
	}
}

// replaces reports whether a challenger ranking value beats the current
// winner's, per method. "first" never replaces an existing winner
// (priority order is decided by source position, not value).
func replaces(method Method, challenger, current float64) bool {
	switch method {
	case Highest, LastBandHigh:
		return challenger > current
	case Lowest, LastBandLow:
		return challenger < current
	default: // First
		return false
	}
}

// bestBandValue returns the ranking-band value at (row,col) for method,
// using the last band as the ranking band for lastbandhigh/lastbandlow and
// the first band for first/highest/lowest (spec §4.5).
func bestBandValue(method Method, img rastertypes.Image, row, col int) (float64, bool) {
	switch method {
	case LastBandHigh, LastBandLow:
		lastBand := img.Array.Bands - 1
		return img.Array.At(lastBand, row, col)
	default:
		return img.Array.At(0, row, col)
	}
}

func applyStatistical(method Method, images []rastertypes.Image) (rastertypes.Image, error) {
	if len(images) == 0 {
		return rastertypes.Image{}, oeerrors.NewNoSuccessfulTasks()
	}
	width, height, bands := images[0].Array.Width, images[0].Array.Height, images[0].Array.Bands
	out := rastertypes.NewMaskedArray(bands, height, width)

	for b := 0; b < bands; b++ {
		for row := 0; row < height; row++ {
			for col := 0; col < width; col++ {
				values := make([]float64, 0, len(images))
				for _, img := range images {
					if b >= img.Array.Bands {
						continue
					}
					if v, ok := img.Array.At(b, row, col); ok {
						values = append(values, v)
					}
				}
				if len(values) == 0 {
					continue
				}
				out.Set(b, row, col, statistic(method, values))
			}
		}
	}

	cutline := rastertypes.NewMask2D(height, width)
	img, err := rastertypes.NewImage(out, images[0].Bounds, images[0].CRS, images[0].BandNames, cutline)
	if err != nil {
		return rastertypes.Image{}, err
	}
	img.Metadata["pixel_selection_method"] = string(method)
	return img, nil
}

func statistic(method Method, values []float64) float64 {
	switch method {
	case Count:
		return float64(len(values))
	case Mean:
		sum := 0.0
		for _, v := range values {
			sum += v
		}
		return sum / float64(len(values))
	case Median:
		sorted := append([]float64(nil), values...)
		sort.Float64s(sorted)
		mid := len(sorted) / 2
		if len(sorted)%2 == 0 {
			return (sorted[mid-1] + sorted[mid]) / 2
		}
		return sorted[mid]
	case Stdev:
		mean := statistic(Mean, values)
		var sumSq float64
		for _, v := range values {
			d := v - mean
			sumSq += d * d
		}
		return math.Sqrt(sumSq / float64(len(values)))
	default:
		return values[0]
	}
}

// resize scales img to (width, height) via nearest-neighbor resampling,
// matching reduce.py's UserWarning-then-resize fallback for mismatched
// source dimensions. Raw float band data does not fit disintegration/gift's
// color.Image abstraction (see DESIGN.md), so resampling is done directly
// against the MaskedArray; gift is used instead in internal/saveresult
// where the data is already a rendered color image.
func resize(img rastertypes.Image, width, height int) rastertypes.Image {
	src := img.Array
	out := rastertypes.NewMaskedArray(src.Bands, height, width)
	xRatio := float64(src.Width) / float64(width)
	yRatio := float64(src.Height) / float64(height)

	for b := 0; b < src.Bands; b++ {
		for row := 0; row < height; row++ {
			srcRow := int(float64(row) * yRatio)
			if srcRow >= src.Height {
				srcRow = src.Height - 1
			}
			for col := 0; col < width; col++ {
				srcCol := int(float64(col) * xRatio)
				if srcCol >= src.Width {
					srcCol = src.Width - 1
				}
				if v, ok := src.At(b, srcRow, srcCol); ok {
					out.Set(b, row, col, v)
				}
			}
		}
	}
	img.Array = out
	return img
}
