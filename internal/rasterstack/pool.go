package rasterstack

import (
	"context"
	"sync"

	"github.com/MeKo-Tech/openeocore/internal/rastertypes"
)

// RealizeOutcome pairs a stack key with the outcome of realizing it.
type RealizeOutcome struct {
	Key   string
	Image rastertypes.Image
	Err   error
}

// RealizeAll realizes every ref in refs concurrently, bounded by
// maxConcurrency in-flight realizations, following the channel +
// sync.WaitGroup worker shape of the teacher's internal/worker.Pool. It
// returns one result per ref, in the same order as refs.
func RealizeAll(ctx context.Context, refs []*LazyImageRef, maxConcurrency int) []RealizeOutcome {
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}
	results := make([]RealizeOutcome, len(refs))

	sem := make(chan struct{}, maxConcurrency)
	var wg sync.WaitGroup

	for i, ref := range refs {
		wg.Add(1)
		go func(i int, ref *LazyImageRef) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results[i] = RealizeOutcome{Key: ref.Key, Err: ctx.Err()}
				return
			}
			img, err := ref.Realize(ctx)
			results[i] = RealizeOutcome{Key: ref.Key, Image: img, Err: err}
		}(i, ref)
	}
	wg.Wait()
	return results
}
