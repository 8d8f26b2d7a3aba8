// Package hp implements a hazard-pointer smr.Domain: a fixed pool of
// per-operation guard records, a lock-free retired list, and a scan
// pass that reclaims any retired node no record's slots currently
// reference.
package hp

import (
	"sync/atomic"

	"github.com/gaarutyunov/cds-go/smr"
	"github.com/gaarutyunov/cds-go/smr/internal"
)

const (
	// DefaultMaxRecords bounds how many concurrent operations can hold
	// a pooled GuardArray at once; beyond that NewGuardArray hands out
	// unpooled overflow records. Chosen generously relative to typical
	// GOMAXPROCS.
	DefaultMaxRecords = 128
	// DefaultGuardsPerRecord covers the skip-list's worst case: two
	// guards per tower level plus scratch, with towers capped at 32
	// levels.
	DefaultGuardsPerRecord = 2*32 + 3
)

type record[T any] struct {
	slots []atomic.Pointer[T]
}

// Domain is a hazard-pointer reclamation domain for nodes of type T.
type Domain[T any] struct {
	guardsPerRecord int

	freeRecords internal.Stack[*record[T]]
	allRecords  []*record[T] // fixed, allocated once at construction; scanned read-only

	retired      internal.Stack[retiredNode[T]]
	retiredCount atomic.Int64
	scanAt       int64
}

type retiredNode[T any] struct {
	ptr     *T
	dispose func(*T)
}

// NewDomain builds a hazard-pointer domain with maxRecords concurrent
// operation slots, each able to reserve up to guardsPerRecord guards.
func NewDomain[T any](maxRecords, guardsPerRecord int) *Domain[T] {
	if maxRecords <= 0 {
		maxRecords = DefaultMaxRecords
	}
	if guardsPerRecord <= 0 {
		guardsPerRecord = DefaultGuardsPerRecord
	}
	d := &Domain[T]{
		guardsPerRecord: guardsPerRecord,
		allRecords:      make([]*record[T], maxRecords),
		scanAt:          int64(maxRecords * guardsPerRecord * 2),
	}
	for i := range d.allRecords {
		r := &record[T]{slots: make([]atomic.Pointer[T], guardsPerRecord)}
		d.allRecords[i] = r
		d.freeRecords.Push(r)
	}
	if d.scanAt < 64 {
		d.scanAt = 64
	}
	return d
}

// CheckAvailableGuards reports smr.ErrGuardExhausted if n exceeds the
// per-record guard budget. It does not reserve anything.
func (d *Domain[T]) CheckAvailableGuards(n int) error {
	if n > d.guardsPerRecord {
		return smr.ErrGuardExhausted
	}
	return nil
}

type guardArray[T any] struct {
	dom *Domain[T]
	rec *record[T]
	n   int
}

func (g *guardArray[T]) Len() int { return g.n }

func (g *guardArray[T]) At(i int) smr.Guard[T] {
	return &guard[T]{dom: g.dom, slot: &g.rec.slots[i]}
}

func (g *guardArray[T]) Release() {
	for i := 0; i < g.n; i++ {
		g.rec.slots[i].Store(nil)
	}
	g.dom.freeRecords.Push(g.rec)
}

// NewGuardArray reserves n guard slots by popping a free record off
// the pool. If every record is currently checked out, it immediately
// allocates an overflow record rather than waiting — lock-freedom of the data structure must not depend on the
// reclamation domain ever stalling a caller indefinitely.
func (d *Domain[T]) NewGuardArray(n int) (smr.GuardArray[T], error) {
	if err := d.CheckAvailableGuards(n); err != nil {
		return nil, err
	}
	if rec, ok := d.freeRecords.Pop(); ok {
		return &guardArray[T]{dom: d, rec: rec, n: n}, nil
	}
	// Pool momentarily exhausted: every record is in active use by some
	// other concurrent operation. Allocate a throwaway record rather
	// than blocking; it is simply discarded (not returned to the pool)
	// on Release, which is safe since it was never among allRecords and
	// therefore never scanned.
	rec := &record[T]{slots: make([]atomic.Pointer[T], d.guardsPerRecord)}
	return &overflowGuardArray[T]{rec: rec, n: n}, nil
}

type overflowGuardArray[T any] struct {
	rec *record[T]
	n   int
}

func (g *overflowGuardArray[T]) Len() int { return g.n }
func (g *overflowGuardArray[T]) At(i int) smr.Guard[T] {
	return &guard[T]{slot: &g.rec.slots[i]}
}
func (g *overflowGuardArray[T]) Release() {
	for i := 0; i < g.n; i++ {
		g.rec.slots[i].Store(nil)
	}
}

type guard[T any] struct {
	dom  *Domain[T]
	slot *atomic.Pointer[T]
}

// Protect implements the load/publish/re-read/retry protection idiom:
// the published slot is only trusted once a second load confirms the
// pointer did not change underneath it.
func (g *guard[T]) Protect(loader func() *T) *T {
	for {
		p := loader()
		g.slot.Store(p)
		p2 := loader()
		if p2 == p {
			return p
		}
	}
}

func (g *guard[T]) Set(ptr *T) { g.slot.Store(ptr) }
func (g *guard[T]) Clear()     { g.slot.Store(nil) }

// ReadSection is a no-op bracket for hazard pointers: protection is
// per-guard, not per-section.
func (d *Domain[T]) ReadSection(fn func()) { fn() }

// Retire enqueues ptr for deferred reclamation, triggering a scan once
// the retired list has grown past this domain's amortization threshold.
func (d *Domain[T]) Retire(ptr *T, dispose func(*T)) {
	d.retired.Push(retiredNode[T]{ptr: ptr, dispose: dispose})
	if d.retiredCount.Add(1) >= d.scanAt {
		d.ForceReclaim()
	}
}

// ForceReclaim drains the retired list and reclaims every node no
// record's guard slots currently reference, requeueing the rest.
func (d *Domain[T]) ForceReclaim() {
	batch := d.retired.DrainAll()
	if len(batch) == 0 {
		return
	}
	d.retiredCount.Add(-int64(len(batch)))

	protected := make(map[*T]struct{}, len(d.allRecords)*d.guardsPerRecord)
	for _, rec := range d.allRecords {
		for i := range rec.slots {
			if p := rec.slots[i].Load(); p != nil {
				protected[p] = struct{}{}
			}
		}
	}

	for _, rn := range batch {
		if _, guarded := protected[rn.ptr]; guarded {
			d.retired.Push(rn)
			d.retiredCount.Add(1)
			continue
		}
		rn.dispose(rn.ptr)
	}
}
