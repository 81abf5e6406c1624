package reader

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/MeKo-Tech/openeocore/internal/mosaic"
	"github.com/MeKo-Tech/openeocore/internal/oeerrors"
	"github.com/MeKo-Tech/openeocore/internal/rastertypes"
	"github.com/MeKo-Tech/openeocore/internal/rasterstack"
	"github.com/MeKo-Tech/openeocore/internal/stac"
)

// Limits bounds the work a single load_collection call may request (spec
// §5, §7's OutputLimitExceeded/ItemsLimitExceeded).
type Limits struct {
	MaxItems  int
	MaxPixels int64
}

// Reader ties a STAC source and an AssetReader together to implement
// read_window, load_collection and load_collection_and_reduce.
type Reader struct {
	Source stac.Source
	Assets AssetReader
	Limits Limits
}

// New constructs a Reader.
func New(source stac.Source, assets AssetReader, limits Limits) *Reader {
	return &Reader{Source: source, Assets: assets, Limits: limits}
}

// ReadWindow reads a single asset window from item, producing one Image
// (spec §4.3's read_window primitive).
func (r *Reader) ReadWindow(ctx context.Context, req WindowRequest) (rastertypes.Image, error) {
	if len(req.Assets) == 0 {
		return rastertypes.Image{}, fmt.Errorf("reader: read_window requires at least one asset")
	}

	var allBandNames []string
	var bandArrays []*rastertypes.MaskedArray

	for _, assetName := range req.Assets {
		url, err := ResolveAssetURL(req.Item, assetName)
		if err != nil {
			return rastertypes.Image{}, err
		}
		arr, err := r.Assets.ReadWindow(ctx, url, req.Bounds, req.Width, req.Height)
		if err != nil {
			return rastertypes.Image{}, fmt.Errorf("reader: reading asset %q: %w", assetName, err)
		}
		names, err := BandNamesFor(assetName, arr.Bands, req.AssetAsBand)
		if err != nil {
			return rastertypes.Image{}, err
		}
		allBandNames = append(allBandNames, names...)
		bandArrays = append(bandArrays, arr)
	}

	combined := concatenateBands(bandArrays, req.Width, req.Height)
	return rastertypes.NewImage(combined, req.Item.Bounds, "EPSG:4326", allBandNames, nil)
}

func concatenateBands(arrays []*rastertypes.MaskedArray, width, height int) *rastertypes.MaskedArray {
	totalBands := 0
	for _, a := range arrays {
		totalBands += a.Bands
	}
	out := rastertypes.NewMaskedArray(totalBands, height, width)
	offset := 0
	for _, a := range arrays {
		for b := 0; b < a.Bands; b++ {
			for row := 0; row < height; row++ {
				for col := 0; col < width; col++ {
					v, ok := a.At(b, row, col)
					if ok {
						out.Set(offset+b, row, col, v)
					}
				}
			}
		}
		offset += a.Bands
	}
	return out
}

// EstimateOutputDimensions picks a width/height for the requested bbox
// given the items' native resolution, enforced against max_pixels before
// any read is attempted (stacapi.py's pixel-budget pre-check runs before
// dimension estimation; spec §4.3 keeps that ordering).
func EstimateOutputDimensions(bbox rastertypes.BoundingBox, nativeWidth, nativeHeight int, itemCount int, limits Limits) (width, height int, err error) {
	width, height = nativeWidth, nativeHeight
	if width <= 0 {
		width = 256
	}
	if height <= 0 {
		height = 256
	}

	if limits.MaxPixels > 0 {
		total := int64(width) * int64(height) * int64(itemCount)
		if total > limits.MaxPixels {
			return 0, 0, oeerrors.NewOutputLimitExceeded(width, height, itemCount, int(limits.MaxPixels))
		}
	}
	return width, height, nil
}

// SearchItems runs the STAC search, enforcing TemporalExtentEmpty,
// NoDataAvailable and ItemsLimitExceeded (spec §4.3/§7).
func (r *Reader) SearchItems(ctx context.Context, q stac.SearchQuery) ([]stac.Item, error) {
	if q.Temporal.Empty() {
		return nil, oeerrors.NewTemporalExtentEmpty()
	}
	items, err := r.Source.Search(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("reader: STAC search: %w", err)
	}
	if len(items) == 0 {
		return nil, oeerrors.NewNoDataAvailable(fmt.Sprintf("no items found for collection %q", q.CollectionID))
	}
	if r.Limits.MaxItems > 0 && len(items) > r.Limits.MaxItems {
		return nil, oeerrors.NewItemsLimitExceeded(len(items), r.Limits.MaxItems)
	}
	return items, nil
}

// LoadCollection fetches items and groups per-date mosaics using the
// "first" pixel-selection method, matching stacapi.py's load_collection:
// one mosaic per distinct item datetime, keyed by the ISO datetime string.
func (r *Reader) LoadCollection(ctx context.Context, q stac.SearchQuery, assets []string, assetAsBand bool, width, height int) (*rasterstack.LazyRasterStack, error) {
	items, err := r.SearchItems(ctx, q)
	if err != nil {
		return nil, err
	}

	if _, _, err := EstimateOutputDimensions(q.Bounds, width, height, len(items), r.Limits); err != nil {
		return nil, err
	}

	groups := groupByDatetime(items)

	var refs []*rasterstack.LazyImageRef
	for date, groupItems := range groups {
		date, groupItems := date, groupItems
		ref := rasterstack.NewLazyImageRef(date, nil, width, height, q.Bounds, "EPSG:4326", nil,
			func(ctx context.Context) (rastertypes.Image, error) {
				return r.mosaicItems(ctx, groupItems, assets, assetAsBand, q.Bounds, width, height, mosaic.First)
			})
		refs = append(refs, ref)
	}

	return rasterstack.NewLazyRasterStack(refs, timestampFromISO), nil
}

// LoadCollectionAndReduce fetches items and composites ALL of them into a
// single Image with the given pixel-selection method (default "first"),
// matching stacapi.py's load_collection_and_reduce.
func (r *Reader) LoadCollectionAndReduce(ctx context.Context, q stac.SearchQuery, assets []string, assetAsBand bool, width, height int, method mosaic.Method) (rastertypes.Image, error) {
	items, err := r.SearchItems(ctx, q)
	if err != nil {
		return rastertypes.Image{}, err
	}
	if _, _, err := EstimateOutputDimensions(q.Bounds, width, height, len(items), r.Limits); err != nil {
		return rastertypes.Image{}, err
	}
	if method == "" {
		method = mosaic.First
	}
	return r.mosaicItems(ctx, items, assets, assetAsBand, q.Bounds, width, height, method)
}

func (r *Reader) mosaicItems(ctx context.Context, items []stac.Item, assets []string, assetAsBand bool, bounds rastertypes.BoundingBox, width, height int, method mosaic.Method) (rastertypes.Image, error) {
	sources := make([]mosaic.Source, 0, len(items))
	for _, item := range items {
		item := item
		ref := rasterstack.NewLazyImageRef(item.ID, nil, width, height, bounds, "EPSG:4326", nil,
			func(ctx context.Context) (rastertypes.Image, error) {
				return r.ReadWindow(ctx, WindowRequest{
					Item: item, Assets: assets, AssetAsBand: assetAsBand,
					Bounds: bounds, Width: width, Height: height,
				})
			})
		sources = append(sources, ref)
	}
	return mosaic.Apply(ctx, method, sources)
}

func groupByDatetime(items []stac.Item) map[string][]stac.Item {
	groups := make(map[string][]stac.Item)
	for _, item := range items {
		groups[item.DatetimeISO] = append(groups[item.DatetimeISO], item)
	}
	return groups
}

func timestampFromISO(key string) int64 {
	t, err := time.Parse(time.RFC3339, key)
	if err != nil {
		return 0
	}
	return t.Unix()
}

// SortedDates returns the distinct item datetimes in groups, chronological.
func SortedDates(groups map[string][]stac.Item) []string {
	dates := make([]string, 0, len(groups))
	for d := range groups {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	return dates
}
