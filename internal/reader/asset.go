// Package reader implements the STAC asset reading and load_collection /
// load_collection_and_reduce primitives, grounded on
// original_source/titiler/openeo/reader.py (SimpleSTACReader) and
// original_source/titiler/openeo/stacapi.py (LoadCollection).
package reader

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/openeocore/internal/rastertypes"
	"github.com/MeKo-Tech/openeocore/internal/stac"
)

// WindowRequest describes a single asset read, mirroring SimpleSTACReader's
// resolved AssetInfo plus the caller's requested window.
type WindowRequest struct {
	Item        stac.Item
	Assets      []string
	AssetAsBand bool
	Expression  string
	Bounds      rastertypes.BoundingBox
	Width       int
	Height      int
}

// AssetReader is the external collaborator that turns a resolved asset URL
// plus window request into pixel data; a thin seam over whatever raster
// I/O library backs a deployment (GDAL via cgo, a COG HTTP reader, etc.),
// intentionally excluded from this core (see SPEC_FULL.md §8).
type AssetReader interface {
	ReadWindow(ctx context.Context, assetURL string, bounds rastertypes.BoundingBox, width, height int) (*rastertypes.MaskedArray, error)
}

// vrtAsset holds the result of parsing a "vrt://asset?query" indirection,
// grounded on reader.py's _parse_vrt_asset.
type vrtAsset struct {
	Asset string
	Query string
}

// parseVRTAsset splits a "vrt://<asset>?<query>" string into its asset
// name and query string; a plain asset name (no vrt:// prefix) parses as
// vrtAsset{Asset: name}.
func parseVRTAsset(asset string) vrtAsset {
	const prefix = "vrt://"
	if !strings.HasPrefix(asset, prefix) {
		return vrtAsset{Asset: asset}
	}
	rest := asset[len(prefix):]
	netloc, query, found := strings.Cut(rest, "?")
	if !found {
		return vrtAsset{Asset: rest}
	}
	return vrtAsset{Asset: netloc, Query: query}
}

// ResolveAssetURL resolves one requested asset name against item, applying
// vrt:// indirection and appending any vrt query string to the resolved
// href, matching reader.py's _get_asset_info.
func ResolveAssetURL(item stac.Item, assetName string) (string, error) {
	parsed := parseVRTAsset(assetName)
	asset, ok := item.Assets[parsed.Asset]
	if !ok {
		return "", fmt.Errorf("reader: asset %q not found on item %q", parsed.Asset, item.ID)
	}
	if parsed.Query == "" {
		return asset.Href, nil
	}
	sep := "?"
	if strings.Contains(asset.Href, "?") {
		sep = "&"
	}
	return asset.Href + sep + parsed.Query, nil
}

// BandNamesFor computes the output band names for a multi-asset read,
// mirroring reader.py's asset_as_band rule: a single-band asset with
// asset_as_band=true is named by the bare asset name; otherwise each band
// is named "<asset>_<n>" (1-indexed). Multi-band assets with
// asset_as_band=true are rejected with an error.
func BandNamesFor(assetName string, bandCount int, assetAsBand bool) ([]string, error) {
	if assetAsBand {
		if bandCount != 1 {
			return nil, fmt.Errorf("reader: asset_as_band requires a single-band asset, %q has %d", assetName, bandCount)
		}
		return []string{assetName}, nil
	}
	names := make([]string, bandCount)
	for i := range names {
		names[i] = assetName + "_" + strconv.Itoa(i+1)
	}
	return names, nil
}
