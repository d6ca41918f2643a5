// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pdiddy/eduscout/pkg/types"
)

// gate is the global admission control: a counting permit pool that
// bounds concurrent end-to-end requests (prd009 R3.1). A request that
// cannot get a permit within the wait fails fast with ErrBusy rather
// than queueing unboundedly.
type gate struct {
	permits chan struct{}
	wait    time.Duration
}

func newGate(size int, wait time.Duration) *gate {
	if size <= 0 {
		size = 8
	}
	if wait <= 0 {
		wait = 2 * time.Second
	}
	return &gate{permits: make(chan struct{}, size), wait: wait}
}

// acquire takes one permit. The returned release func is safe to call
// more than once; the permit is restored exactly once (R3.2).
func (g *gate) acquire(ctx context.Context) (func(), error) {
	if ctx.Err() != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrBusy, ctx.Err())
	}
	timer := time.NewTimer(g.wait)
	defer timer.Stop()

	select {
	case g.permits <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", types.ErrBusy, ctx.Err())
	case <-timer.C:
		return nil, fmt.Errorf("%w: no permit within %s", types.ErrBusy, g.wait)
	}

	var once sync.Once
	return func() {
		once.Do(func() { <-g.permits })
	}, nil
}

// inUse reports how many permits are currently held.
func (g *gate) inUse() int { return len(g.permits) }
