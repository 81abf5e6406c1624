// Package stac declares the external STAC catalog contract the reader
// layer depends on, grounded on titiler.openeo.stacapi.LoadCollection's
// use of pystac_client (original_source/titiler/openeo/stacapi.py).
package stac

import (
	"context"

	"github.com/MeKo-Tech/openeocore/internal/rastertypes"
)

// Asset is one named file/href within a STAC Item.
type Asset struct {
	Name      string
	Href      string
	MediaType string
	// HeaderSize mirrors the file:header_size extension, used to seed
	// GDAL_INGESTED_BYTES_AT_OPEN the way reader.py's _get_asset_info does.
	HeaderSize int64
}

// Item is a single STAC item as returned by a catalog search.
type Item struct {
	ID         string
	Bounds     rastertypes.BoundingBox
	DatetimeISO string
	Assets     map[string]Asset
	Properties map[string]any
	// BandStatistics holds raster:bands statistics per asset, only
	// populated when every band of that asset carries both min and max
	// (reader.py's dataset_statistics extraction rule).
	BandStatistics map[string][]rastertypes.BandStats
}

// SearchQuery is the set of parameters a catalog search accepts, built by
// the reader layer from load_collection's spatial/temporal/properties
// arguments (stacapi.py's _get_items).
type SearchQuery struct {
	CollectionID string
	Bounds       rastertypes.BoundingBox
	Temporal     rastertypes.TemporalInterval
	// CQL2 is the translated property filter, nil when no properties
	// argument was supplied.
	CQL2 map[string]any
	Limit int
}

// Source is the external STAC catalog collaborator. Implementations talk
// to a STAC API, a static catalog, or a test double.
type Source interface {
	Search(ctx context.Context, q SearchQuery) ([]Item, error)
}
