// Package rasterstack implements the lazy raster stack: per-key image
// realization is deferred until first access, while cutline masks and
// metadata are available without executing any read, grounded on
// original_source/tests/test_truly_lazy_raster_stack.py and
// original_source/titiler/openeo/processes/implementations/data_model.py.
package rasterstack

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/MeKo-Tech/openeocore/internal/rastertypes"
	"github.com/MeKo-Tech/openeocore/internal/tilecoord"
	"github.com/paulmach/orb"
)

// TaskFunc realizes one stack entry into an Image. It is invoked at most
// once per LazyImageRef, the first time Realize is called.
type TaskFunc func(ctx context.Context) (rastertypes.Image, error)

// LazyImageRef is a single stack entry: its key, geometry/footprint, and
// dimension metadata are all known eagerly; the pixel data is realized
// lazily and cached.
type LazyImageRef struct {
	Key       string
	Geometry  orb.Polygon
	Width     int
	Height    int
	Bounds    rastertypes.BoundingBox
	CRS       string
	BandNames []string
	Count     int

	mu      sync.Mutex
	task    TaskFunc
	mask    *rastertypes.Mask2D
	image   *rastertypes.Image
	realErr error
	done    bool
}

// NewLazyImageRef constructs a ref. Dimension fields (width/height/bounds)
// may be zero when the caller has not requested dimension estimation; in
// that case CutlineMask returns an empty (0x0) mask and Realize returns the
// image in whatever shape the task produces.
func NewLazyImageRef(key string, geometry orb.Polygon, width, height int, bounds rastertypes.BoundingBox, crs string, bandNames []string, task TaskFunc) *LazyImageRef {
	return &LazyImageRef{
		Key: key, Geometry: geometry, Width: width, Height: height,
		Bounds: bounds, CRS: crs, BandNames: bandNames, Count: len(bandNames),
		task: task,
	}
}

// CutlineMask computes (and caches) the footprint mask without executing
// the underlying read task. Repeated calls return the same *Mask2D
// instance (test_truly_lazy_raster_stack.py's "cached/same-object" check).
func (r *LazyImageRef) CutlineMask() *rastertypes.Mask2D {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.mask != nil {
		return r.mask
	}
	r.mask = tilecoord.RasterizeCutlineMask(r.Geometry, r.Bounds, r.Width, r.Height)
	return r.mask
}

// Realize executes the underlying task exactly once, caching its result
// (and error) for subsequent calls.
func (r *LazyImageRef) Realize(ctx context.Context) (rastertypes.Image, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done {
		if r.realErr != nil {
			return rastertypes.Image{}, r.realErr
		}
		return *r.image, nil
	}
	img, err := r.task(ctx)
	r.done = true
	if err != nil {
		r.realErr = err
		return rastertypes.Image{}, err
	}
	r.image = &img
	return img, nil
}

// Realized reports whether Realize has already run (for tests/diagnostics).
func (r *LazyImageRef) Realized() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done
}

// LazyRasterStack is the temporally-ordered, lazily-realized collection of
// LazyImageRefs backing load_collection's per-date grouping (spec §4.2).
type LazyRasterStack struct {
	keys       []string
	timestamps map[string]int64
	refs       map[string]*LazyImageRef
	token      string
}

// NewLazyRasterStack builds the stack from a set of refs keyed by Key,
// sorted chronologically by the supplied timestamp function.
func NewLazyRasterStack(refs []*LazyImageRef, timestampFn func(key string) int64) *LazyRasterStack {
	s := &LazyRasterStack{
		keys:       make([]string, 0, len(refs)),
		timestamps: make(map[string]int64, len(refs)),
		refs:       make(map[string]*LazyImageRef, len(refs)),
		token:      uuid.NewString(),
	}
	for _, r := range refs {
		s.keys = append(s.keys, r.Key)
		s.timestamps[r.Key] = timestampFn(r.Key)
		s.refs[r.Key] = r
	}
	sort.SliceStable(s.keys, func(i, j int) bool {
		ti, tj := s.timestamps[s.keys[i]], s.timestamps[s.keys[j]]
		if ti != tj {
			return ti < tj
		}
		return s.keys[i] < s.keys[j]
	})
	return s
}

// Token identifies this stack instance for cache-coherence checks in
// callers that memoize realized images keyed by (stack token, key).
func (s *LazyRasterStack) Token() string { return s.token }

func (s *LazyRasterStack) Keys() []string {
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	return out
}

func (s *LazyRasterStack) Timestamps() []int64 {
	out := make([]int64, len(s.keys))
	for i, k := range s.keys {
		out[i] = s.timestamps[k]
	}
	return out
}

func (s *LazyRasterStack) Len() int { return len(s.keys) }

// Ref returns the LazyImageRef for key without realizing it.
func (s *LazyRasterStack) Ref(key string) (*LazyImageRef, bool) {
	r, ok := s.refs[key]
	return r, ok
}

// GetImageRefs returns all refs in chronological order, only meaningful
// once dimension parameters (width/height/bounds) were supplied at
// construction; callers that did not supply them get an empty slice
// (test_truly_lazy_raster_stack.py's get_image_refs contract).
func (s *LazyRasterStack) GetImageRefs(dimensionsKnown bool) []*LazyImageRef {
	if !dimensionsKnown {
		return nil
	}
	out := make([]*LazyImageRef, len(s.keys))
	for i, k := range s.keys {
		out[i] = s.refs[k]
	}
	return out
}

// Get realizes and returns the Image for key.
func (s *LazyRasterStack) Get(key string) (rastertypes.Image, error) {
	r, ok := s.refs[key]
	if !ok {
		return rastertypes.Image{}, fmt.Errorf("rasterstack: key %q not found", key)
	}
	return r.Realize(context.Background())
}
