// Package registry assembles the dispatcher.Process bindings for every
// process this core implements, wiring a reader.Reader and tilestore.Store
// into the engine.Registry the CLI (or any other host) evaluates process
// graphs against.
package registry

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/MeKo-Tech/openeocore/internal/authuser"
	"github.com/MeKo-Tech/openeocore/internal/cql2"
	"github.com/MeKo-Tech/openeocore/internal/dispatcher"
	"github.com/MeKo-Tech/openeocore/internal/engine"
	"github.com/MeKo-Tech/openeocore/internal/graph"
	"github.com/MeKo-Tech/openeocore/internal/mosaic"
	"github.com/MeKo-Tech/openeocore/internal/rasterstack"
	"github.com/MeKo-Tech/openeocore/internal/rastertypes"
	"github.com/MeKo-Tech/openeocore/internal/reader"
	"github.com/MeKo-Tech/openeocore/internal/reduce"
	"github.com/MeKo-Tech/openeocore/internal/saveresult"
	"github.com/MeKo-Tech/openeocore/internal/stac"
	"github.com/MeKo-Tech/openeocore/internal/tileprocess"
	"github.com/MeKo-Tech/openeocore/internal/tilestore"
)

// anyType is the reflect.Type for the empty interface, used for every
// process parameter here: each wrapper function performs its own
// dynamic-to-concrete conversion, so the dispatcher's coerce step always
// succeeds on the interface assignment.
var anyType = reflect.TypeOf((*any)(nil)).Elem()

func spec(name string, optional bool) dispatcher.ParamSpec {
	return dispatcher.ParamSpec{Name: name, Type: anyType, Optional: optional}
}

// Build registers the process graph operations this core owns against r
// and store, returning an engine.Registry ready to pass to engine.New.
func Build(r *reader.Reader, store tilestore.Store) (engine.Registry, error) {
	reg := engine.Registry{}

	loadCollection, err := dispatcher.NewProcess("load_collection", makeLoadCollection(r), []dispatcher.ParamSpec{
		spec("id", false), spec("spatial_extent", false), spec("temporal_extent", false),
		spec("bands", true), spec("properties", true),
	})
	if err != nil {
		return nil, err
	}
	reg["load_collection"] = loadCollection

	loadCollectionAndReduce, err := dispatcher.NewProcess("load_collection_and_reduce", makeLoadCollectionAndReduce(r), []dispatcher.ParamSpec{
		spec("id", false), spec("spatial_extent", false), spec("temporal_extent", false),
		spec("bands", true), spec("properties", true), spec("pixel_selection", true),
	})
	if err != nil {
		return nil, err
	}
	reg["load_collection_and_reduce"] = loadCollectionAndReduce

	reduceDimension, err := dispatcher.NewProcess("reduce_dimension", makeReduceDimension(), []dispatcher.ParamSpec{
		spec("data", false), spec("reducer", false), spec("dimension", false), spec("context", true),
	})
	if err != nil {
		return nil, err
	}
	reg["reduce_dimension"] = reduceDimension

	save, err := dispatcher.NewProcess("save_result", makeSaveResult(), []dispatcher.ParamSpec{
		spec("data", false), spec("format", false), spec("options", true),
	})
	if err != nil {
		return nil, err
	}
	reg["save_result"] = save

	assign, err := dispatcher.NewProcess("tile_assignment", makeTileAssignment(store), []dispatcher.ParamSpec{
		spec("zoom", false), spec("x_range", false), spec("y_range", false), spec("stage", false),
		spec("service_id", false), spec("user_id", false), spec("control_user", true),
	})
	if err != nil {
		return nil, err
	}
	reg["tile_assignment"] = assign

	return reg, nil
}

func makeLoadCollection(r *reader.Reader) func(id, spatialExtent, temporalExtent, bands, properties any) (any, error) {
	return func(id, spatialExtent, temporalExtent, bands, properties any) (any, error) {
		q, err := buildSearchQuery(id, spatialExtent, temporalExtent, properties)
		if err != nil {
			return nil, err
		}
		assetList, assetAsBand := parseBands(bands)
		return r.LoadCollection(context.Background(), q, assetList, assetAsBand, 0, 0)
	}
}

func makeLoadCollectionAndReduce(r *reader.Reader) func(id, spatialExtent, temporalExtent, bands, properties, pixelSelection any) (any, error) {
	return func(id, spatialExtent, temporalExtent, bands, properties, pixelSelection any) (any, error) {
		q, err := buildSearchQuery(id, spatialExtent, temporalExtent, properties)
		if err != nil {
			return nil, err
		}
		assetList, assetAsBand := parseBands(bands)
		method := mosaic.First
		if s, ok := pixelSelection.(string); ok && s != "" {
			method = mosaic.Method(s)
		}
		return r.LoadCollectionAndReduce(context.Background(), q, assetList, assetAsBand, 0, 0, method)
	}
}

func makeReduceDimension() func(data, reducerName, dimension, ctx any) (any, error) {
	return func(data, reducerName, dimension, ctx any) (any, error) {
		dim, err := reduce.ParseDimension(fmt.Sprintf("%v", dimension))
		if err != nil {
			return nil, err
		}
		r := namedReducer{name: fmt.Sprintf("%v", reducerName)}

		switch dim {
		case reduce.Temporal:
			sources, err := toSources(data)
			if err != nil {
				return nil, err
			}
			return reduce.ReduceTemporal(context.Background(), sources, r)
		case reduce.Spectral:
			img, ok := data.(rastertypes.Image)
			if !ok {
				return nil, fmt.Errorf("reduce_dimension: spectral reduction requires a single Image")
			}
			return reduce.ReduceSpectral(img, r)
		default:
			return nil, fmt.Errorf("reduce_dimension: unsupported dimension")
		}
	}
}

func makeSaveResult() func(data, format, options any) (any, error) {
	return func(data, format, options any) (any, error) {
		img, ok := data.(rastertypes.Image)
		if !ok {
			return nil, fmt.Errorf("save_result: expected a realized Image")
		}
		opts, _ := options.(map[string]any)
		return saveresult.Encode(img, saveresult.Format(fmt.Sprintf("%v", format)), opts)
	}
}

func makeTileAssignment(store tilestore.Store) func(zoom, xRange, yRange, stage, serviceID, userID, controlUser any) (any, error) {
	return func(zoom, xRange, yRange, stage, serviceID, userID, controlUser any) (any, error) {
		req := tileprocess.Request{
			Zoom: toInt(zoom), XRange: toIntPair(xRange), YRange: toIntPair(yRange),
			Stage:     fmt.Sprintf("%v", stage),
			ServiceID: fmt.Sprintf("%v", serviceID),
			User:      authuser.User{ID: fmt.Sprintf("%v", userID)},
		}
		if controlUser != nil {
			req.ControlUser = fmt.Sprintf("%v", controlUser)
		}
		return tileprocess.Run(context.Background(), store, req)
	}
}

type namedReducer struct{ name string }

func (r namedReducer) Name() string { return r.name }

func (r namedReducer) Reduce(values []float64, valid []bool) (float64, bool) {
	var sum float64
	var count int
	for i, v := range values {
		if valid[i] {
			sum += v
			count++
		}
	}
	if count == 0 {
		return 0, false
	}
	if r.name == "sum" {
		return sum, true
	}
	return sum / float64(count), true
}

func buildSearchQuery(id, spatialExtent, temporalExtent, properties any) (stac.SearchQuery, error) {
	collectionID := fmt.Sprintf("%v", id)
	bbox, err := parseBBox(spatialExtent)
	if err != nil {
		return stac.SearchQuery{}, err
	}
	temporal, err := parseTemporal(temporalExtent)
	if err != nil {
		return stac.SearchQuery{}, err
	}

	var cql map[string]any
	if propMap, ok := properties.(map[string]any); ok && len(propMap) > 0 {
		graphs := make(map[string]graph.ProcessGraph, len(propMap))
		for name, raw := range propMap {
			if g, ok := raw.(graph.ProcessGraph); ok {
				graphs[name] = g
			}
		}
		if len(graphs) > 0 {
			translated, err := cql2.TranslateAll(graphs)
			if err != nil {
				return stac.SearchQuery{}, err
			}
			cql = translated
		}
	}

	return stac.SearchQuery{CollectionID: collectionID, Bounds: bbox, Temporal: temporal, CQL2: cql}, nil
}

func parseBBox(v any) (rastertypes.BoundingBox, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return rastertypes.BoundingBox{}, fmt.Errorf("spatial_extent: expected an object with west/south/east/north")
	}
	return rastertypes.BoundingBox{
		West:  toFloat(m["west"]),
		South: toFloat(m["south"]),
		East:  toFloat(m["east"]),
		North: toFloat(m["north"]),
	}, nil
}

func parseTemporal(v any) (rastertypes.TemporalInterval, error) {
	list, ok := v.([]any)
	if !ok || len(list) != 2 {
		return rastertypes.TemporalInterval{}, fmt.Errorf("temporal_extent: expected a two-element array")
	}
	var interval rastertypes.TemporalInterval
	if s, ok := list[0].(string); ok && s != "" {
		interval.Start = rastertypes.NewTime(parseRFC3339Unix(s))
	}
	if s, ok := list[1].(string); ok && s != "" {
		interval.End = rastertypes.NewTime(parseRFC3339Unix(s))
	}
	return interval, nil
}

func parseBands(v any) ([]string, bool) {
	list, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(list))
	for _, el := range list {
		out = append(out, fmt.Sprintf("%v", el))
	}
	return out, len(out) == 1
}

func toSources(v any) ([]mosaic.Source, error) {
	if sources, ok := v.([]mosaic.Source); ok {
		return sources, nil
	}
	if stack, ok := v.(*rasterstack.LazyRasterStack); ok {
		refs := stack.GetImageRefs(true)
		sources := make([]mosaic.Source, len(refs))
		for i, r := range refs {
			sources[i] = r
		}
		return sources, nil
	}
	return nil, fmt.Errorf("reduce_dimension: data is not a temporal source list")
}

func toInt(v any) int {
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	default:
		return 0
	}
}

func toFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int:
		return float64(t)
	case int64:
		return float64(t)
	default:
		return 0
	}
}

func parseRFC3339Unix(s string) int64 {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return 0
	}
	return t.Unix()
}

func toIntPair(v any) [2]int {
	list, ok := v.([]any)
	if !ok || len(list) != 2 {
		return [2]int{}
	}
	return [2]int{toInt(list[0]), toInt(list[1])}
}
