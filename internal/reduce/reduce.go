// Package reduce implements reduce_dimension over the temporal ("t") and
// spectral ("bands") dimensions, grounded on spec §4.6 and the
// reducer-invocation contract implied by core.py's @process wrapping of
// reducer callbacks (original_source/titiler/openeo/processes/implementations).
package reduce

import (
	"context"

	"github.com/MeKo-Tech/openeocore/internal/mosaic"
	"github.com/MeKo-Tech/openeocore/internal/oeerrors"
	"github.com/MeKo-Tech/openeocore/internal/rastertypes"
)

// Dimension names the axis reduce_dimension collapses.
type Dimension string

const (
	Temporal Dimension = "temporal"
	Spectral Dimension = "bands"
)

// ParseDimension maps the accepted openEO dimension aliases ("t", "time",
// "temporal" -> Temporal; "bands", "spectral" -> Spectral) to a Dimension,
// returning DimensionNotAvailable for anything else.
func ParseDimension(name string) (Dimension, error) {
	switch name {
	case "temporal", "time", "t":
		return Temporal, nil
	case "spectral", "bands":
		return Spectral, nil
	default:
		return "", oeerrors.NewDimensionNotAvailable(name)
	}
}

// Reducer is a single-invocation reduce callback: it receives the full set
// of values along the reduced dimension and produces one aggregated
// result. Unlike a running/streaming reducer, Reducer.Reduce is called
// exactly once per pixel group (spec §4.6's single-invocation contract).
type Reducer interface {
	// Name identifies the reducer, used to recognise pixel-selection
	// reducers for the mosaic short-circuit below.
	Name() string
	Reduce(values []float64, valid []bool) (float64, bool)
}

// pixelSelectionReducers maps reducer names recognised as equivalent to a
// mosaic.Method, letting ReduceTemporal delegate straight to the mosaic
// package instead of running a generic per-pixel reduction loop.
var pixelSelectionReducers = map[string]mosaic.Method{
	"first":        mosaic.First,
	"highest":      mosaic.Highest,
	"lowest":       mosaic.Lowest,
	"mean":         mosaic.Mean,
	"median":       mosaic.Median,
	"sd":           mosaic.Stdev,
	"count":        mosaic.Count,
	"lastbandhigh": mosaic.LastBandHigh,
	"lastbandlow":  mosaic.LastBandLow,
}

// ReduceTemporal collapses the "t" dimension of a stack via reducer. When
// reducer.Name() matches a known pixel-selection method, the stack's
// sources are run straight through mosaic.Apply, preserving the
// aggregated-cutline short-circuit; otherwise every source is realized and
// reducer.Reduce is invoked once per pixel/band.
func ReduceTemporal(ctx context.Context, sources []mosaic.Source, reducer Reducer) (rastertypes.Image, error) {
	if method, ok := pixelSelectionReducers[reducer.Name()]; ok {
		return mosaic.Apply(ctx, method, sources)
	}
	return reduceGeneric(ctx, sources, reducer)
}

func reduceGeneric(ctx context.Context, sources []mosaic.Source, reducer Reducer) (rastertypes.Image, error) {
	images := make([]rastertypes.Image, 0, len(sources))
	for _, src := range sources {
		img, err := src.Realize(ctx)
		if err != nil {
			continue
		}
		images = append(images, img)
	}
	if len(images) == 0 {
		return rastertypes.Image{}, oeerrors.NewNoSuccessfulTasks()
	}

	width, height, bands := images[0].Array.Width, images[0].Array.Height, images[0].Array.Bands
	out := rastertypes.NewMaskedArray(bands, height, width)

	for b := 0; b < bands; b++ {
		for row := 0; row < height; row++ {
			for col := 0; col < width; col++ {
				values := make([]float64, 0, len(images))
				valid := make([]bool, 0, len(images))
				for _, img := range images {
					if b >= img.Array.Bands {
						continue
					}
					v, ok := img.Array.At(b, row, col)
					values = append(values, v)
					valid = append(valid, ok)
				}
				if result, ok := reducer.Reduce(values, valid); ok {
					out.Set(b, row, col, result)
				}
			}
		}
	}

	cutline := rastertypes.NewMask2D(height, width)
	return rastertypes.NewImage(out, images[0].Bounds, images[0].CRS, images[0].BandNames, cutline)
}

// ReduceSpectral collapses the band dimension of a single Image, invoking
// reducer once per pixel over the band values. band_names are dropped from
// the result per the decided Open Question (see DESIGN.md): a spectral
// reduction produces a single unnamed band, since the source band
// identities no longer describe the aggregated value.
func ReduceSpectral(img rastertypes.Image, reducer Reducer) (rastertypes.Image, error) {
	width, height := img.Array.Width, img.Array.Height
	out := rastertypes.NewMaskedArray(1, height, width)

	for row := 0; row < height; row++ {
		for col := 0; col < width; col++ {
			values := make([]float64, img.Array.Bands)
			valid := make([]bool, img.Array.Bands)
			for b := 0; b < img.Array.Bands; b++ {
				values[b], valid[b] = img.Array.At(b, row, col)
			}
			if result, ok := reducer.Reduce(values, valid); ok {
				out.Set(0, row, col, result)
			}
		}
	}

	return rastertypes.NewImage(out, img.Bounds, img.CRS, nil, img.CutlineMask)
}
