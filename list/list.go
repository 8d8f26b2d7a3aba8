// Package list implements the ordered-list core shared by every set in
// this module: two interchangeable variants, Michael-list (lock-free,
// CAS-based logical deletion) and Lazy-list (optimistic,
// per-node-locked), behind one contract. splitlist layers its
// split-ordered bucket index on top of either one; skiplist is
// independent but shares the same marked-pointer and SMR building
// blocks.
package list

import "github.com/gaarutyunov/cds-go/backoff"

// Comparator orders two keys the way sort.Interface's Less does but
// three-way: negative if a<b, zero if equal, positive if a>b.
type Comparator[K any] func(a, b K) int

// List is the contract every variant satisfies. Every mutating method
// returns a success indicator; only construction-time and
// pool/guard-exhaustion conditions ever populate the error return —
// not-found and already-exists are always reported as a false result,
// never as an error.
type List[K any, V any] interface {
	Insert(key K, value V) (bool, error)
	InsertWith(key K, value V, init func(*V)) (bool, error)
	Update(key K, value V, f func(existing *V, newVal V), allowInsert bool) (ok, inserted bool, err error)
	Erase(key K, f func(value V)) (bool, error)
	Unlink(key K, ref *Ref[V]) (bool, error)
	Extract(key K) (*Ref[V], bool, error)
	Contains(key K) (bool, error)
	Find(key K, f func(value V)) (bool, error)
	Get(key K) (*Ref[V], bool, error)
	Len() int64
	Iterate(f func(key K, value V) bool)
}

// AnchoredList is the contract splitlist needs beyond List: the
// ability to start a search from a previously located node (the
// bucket's dummy node) instead of always walking from the head, and
// to locate a never-erased key (a dummy node) without holding a guard
// open forever. Both MichaelList and LazyList satisfy it.
type AnchoredList[K any, V any] interface {
	List[K, V]
	HeadAnchor() *Anchor[V]
	DummyAnchor(key K) (*Anchor[V], bool, error)
	InsertFromAnchor(anchor *Anchor[V], key K, value V, init func(*V)) (bool, error)
	UpdateFromAnchor(anchor *Anchor[V], key K, value V, f func(existing *V, newVal V), allowInsert bool) (ok, inserted bool, err error)
	EraseFromAnchor(anchor *Anchor[V], key K, f func(value V)) (bool, error)
	ContainsFromAnchor(anchor *Anchor[V], key K) (bool, error)
	FindFromAnchor(anchor *Anchor[V], key K, f func(value V)) (bool, error)
	GetFromAnchor(anchor *Anchor[V], key K) (*Ref[V], bool, error)
	ExtractFromAnchor(anchor *Anchor[V], key K) (*Ref[V], bool, error)
}

// Ref is a protected reference to a node's value, valid until Release
// is called. Extract and Get return one; the underlying node will not
// be reclaimed by the list's SMR domain while it is held.
type Ref[V any] struct {
	value   V
	id      any
	release func()
}

func newRef[V any](value V, id any, release func()) *Ref[V] {
	return &Ref[V]{value: value, id: id, release: release}
}

// Value returns the referenced value.
func (r *Ref[V]) Value() V { return r.value }

// Release lets the underlying node become eligible for reclamation.
// Safe to call more than once.
func (r *Ref[V]) Release() {
	if r.release != nil {
		r.release()
		r.release = nil
	}
}

// Anchor is an opaque starting point for a search, wrapping an
// internal node pointer the same way Ref.id does. splitlist keeps one
// per bucket (obtained from DummyAnchor on that bucket's dummy key) so
// a lookup inside the bucket walks from the dummy node instead of the
// shared list's head every time.
type Anchor[V any] struct {
	node any
}

// AnchorFromRef turns a Ref obtained from the same list into an
// Anchor usable by the *FromAnchor methods. The Ref must stay alive
// (unreleased) for as long as the Anchor is used, since both merely
// reference the underlying node.
func AnchorFromRef[V any](ref *Ref[V]) *Anchor[V] {
	return &Anchor[V]{node: ref.id}
}

// Options configure either variant's constructor. Zero value is valid:
// every field has a documented default.
type Options[K any] struct {
	// Compare is mandatory: the total order over keys.
	Compare Comparator[K]
	// Counter defaults to a StrictCounter.
	Counter Counter
	// BackOff defaults to backoff.Default().
	BackOff backoff.Strategy
	// GuardsPerOp bounds how many SMR guards one operation reserves;
	// defaults to 3 (prev, curr, succ), the most any list traversal
	// needs at once.
	GuardsPerOp int
}

func (o Options[K]) withDefaults() Options[K] {
	if o.Counter == nil {
		o.Counter = NewStrictCounter()
	}
	if o.BackOff == nil {
		o.BackOff = backoff.Default()
	}
	if o.GuardsPerOp <= 0 {
		o.GuardsPerOp = 3
	}
	return o
}
