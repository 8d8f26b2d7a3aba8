// Package epoch implements an epoch-based smr.Domain: participants
// announce they are "in" the current global epoch via ReadSection,
// retired nodes are bucketed by the epoch they were retired in, and a
// bucket is reclaimed once every participant has been observed to have
// advanced past it. Guard degenerates to a no-op here; ReadSection
// does the real work.
package epoch

import (
	"sync"
	"sync/atomic"

	"github.com/gaarutyunov/cds-go/smr"
)

const generations = 3

// Domain is an epoch-based reclamation domain for nodes of type T.
type Domain[T any] struct {
	epoch   atomic.Uint64
	buckets [generations]bucket[T]
	mu      sync.Mutex // serializes the advance decision
	inSec   atomic.Int64
}

type bucket[T any] struct {
	mu    sync.Mutex
	nodes []retiredNode[T]
}

type retiredNode[T any] struct {
	ptr     *T
	dispose func(*T)
}

// NewDomain builds a fresh epoch domain at epoch 0.
func NewDomain[T any]() *Domain[T] {
	return &Domain[T]{}
}

// CheckAvailableGuards never fails for the epoch backend: ReadSection
// needs no per-guard bookkeeping, so there is no fixed guard budget to
// exhaust. Callers that size GuardArrays against the hazard-pointer
// backend's limits remain within bounds here too.
func (d *Domain[T]) CheckAvailableGuards(int) error { return nil }

type guardArray[T any] struct {
	n int
}

func (g *guardArray[T]) Len() int                 { return g.n }
func (g *guardArray[T]) At(i int) smr.Guard[T]     { return noopGuard[T]{} }
func (g *guardArray[T]) Release()                 {}

type noopGuard[T any] struct{}

// Protect is safe without a real hazard slot only while called inside
// a ReadSection; outside one it still returns a stable snapshot but
// offers no reclamation protection. The traversal code is expected to
// wrap its whole operation in ReadSection, not to rely on per-node
// Protect calls.
func (noopGuard[T]) Protect(loader func() *T) *T { return loader() }
func (noopGuard[T]) Set(*T)                      {}
func (noopGuard[T]) Clear()                      {}

// NewGuardArray returns n no-op guards; the real protection for this
// backend comes from wrapping the whole operation in ReadSection.
func (d *Domain[T]) NewGuardArray(n int) (smr.GuardArray[T], error) {
	return &guardArray[T]{n: n}, nil
}

// ReadSection marks the calling goroutine as active in the current
// epoch for the duration of fn, and attempts to advance the global
// epoch (and reclaim the bucket that falls out of the 3-generation
// window) when it is the last active participant to leave.
func (d *Domain[T]) ReadSection(fn func()) {
	d.inSec.Add(1)
	defer func() {
		if d.inSec.Add(-1) == 0 {
			d.tryAdvance()
		}
	}()
	fn()
}

func (d *Domain[T]) tryAdvance() {
	if !d.mu.TryLock() {
		return
	}
	defer d.mu.Unlock()
	if d.inSec.Load() != 0 {
		return
	}
	next := d.epoch.Add(1)
	// Reclaim the bucket two generations behind next. Its nodes were
	// retired before the previous advance, and every section open then
	// has ended. A goroutine entering after the inSec check can still
	// retire into the buckets of next-1 or next, so neither is drained.
	reclaimIdx := int(next+1) % generations
	b := &d.buckets[reclaimIdx]
	b.mu.Lock()
	batch := b.nodes
	b.nodes = nil
	b.mu.Unlock()
	for _, rn := range batch {
		rn.dispose(rn.ptr)
	}
}

// Retire files ptr under the current epoch's bucket; it is reclaimed at
// the second epoch advance after it, by which time every section that
// was open when it was retired has ended.
func (d *Domain[T]) Retire(ptr *T, dispose func(*T)) {
	idx := int(d.epoch.Load()) % generations
	b := &d.buckets[idx]
	b.mu.Lock()
	b.nodes = append(b.nodes, retiredNode[T]{ptr: ptr, dispose: dispose})
	b.mu.Unlock()
}

// ForceReclaim is the test hook: advance the epoch and flush whatever
// bucket that pass hits, ignoring the normal amortization schedule.
func (d *Domain[T]) ForceReclaim() {
	for i := 0; i < generations; i++ {
		d.tryAdvance()
	}
}
