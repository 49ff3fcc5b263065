package batch

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// gate enforces the concurrency bound. The dispatch loop acquires a slot
// before starting an item; the worker releases it when the processor
// settles, which wakes the loop if it is waiting for capacity.
type gate struct {
	sem *semaphore.Weighted
}

func newGate(concurrency int) *gate {
	return &gate{sem: semaphore.NewWeighted(int64(concurrency))}
}

func (g *gate) acquire(ctx context.Context) error {
	return g.sem.Acquire(ctx, 1)
}

func (g *gate) release() {
	g.sem.Release(1)
}
