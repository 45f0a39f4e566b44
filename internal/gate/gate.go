// Package gate bounds the number of remote storage calls in flight.
//
// A Gate has a fixed number of slots. Callers block in Acquire until a slot is
// free and must release it exactly once; Do wraps that pairing so the slot is
// returned on every exit path, including panics.
package gate

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Gate is a counting semaphore with a fixed capacity.
type Gate struct {
	sem      *semaphore.Weighted
	capacity int
	inFlight atomic.Int64
}

// New returns a gate admitting at most limit concurrent holders.
// Limits below 1 are clamped to 1.
func New(limit int) *Gate {
	if limit < 1 {
		limit = 1
	}
	return &Gate{
		sem:      semaphore.NewWeighted(int64(limit)),
		capacity: limit,
	}
}

// Capacity returns the number of slots.
func (g *Gate) Capacity() int {
	return g.capacity
}

// InFlight returns the number of slots currently held.
func (g *Gate) InFlight() int {
	return int(g.inFlight.Load())
}

// Acquire blocks until a slot is free or ctx is done. The returned release
// function is safe to call more than once; only the first call frees the slot.
func (g *Gate) Acquire(ctx context.Context) (release func(), err error) {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	g.inFlight.Add(1)

	var once sync.Once
	return func() {
		once.Do(func() {
			g.inFlight.Add(-1)
			g.sem.Release(1)
		})
	}, nil
}

// TryAcquire takes a slot without blocking. ok is false when the gate is full.
func (g *Gate) TryAcquire() (release func(), ok bool) {
	if !g.sem.TryAcquire(1) {
		return nil, false
	}
	g.inFlight.Add(1)

	var once sync.Once
	return func() {
		once.Do(func() {
			g.inFlight.Add(-1)
			g.sem.Release(1)
		})
	}, true
}

// Do runs fn while holding a slot. The slot is released when fn returns or panics.
func (g *Gate) Do(ctx context.Context, fn func(context.Context) error) error {
	release, err := g.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	return fn(ctx)
}
