package splitlist

import (
	"errors"
	"sync/atomic"

	"github.com/gaarutyunov/cds-go/backoff"
	"github.com/gaarutyunov/cds-go/cdsstat"
	"github.com/gaarutyunov/cds-go/hashfn"
	"github.com/gaarutyunov/cds-go/list"
)

// ErrInvalidConfiguration is returned by NewSet when a mandatory
// construction option is missing or a forbidden one was supplied (a
// no-op item counter cannot back a split-set, whose emptiness contract
// is defined in terms of the counter).
var ErrInvalidConfiguration = errors.New("splitlist: invalid configuration")

// splitOrderKey is the composite key actually stored in the shared
// ordered list: the split-ordered hash first, the real key as a
// tie-break for hash collisions, and a dummy flag so every bucket head
// sorts uniquely among equal-order ties.
type splitOrderKey[K any] struct {
	order uint64
	key   K
	dummy bool
}

// compositeCompare orders the shared list: split-order first; for two
// equal-order real nodes, the caller's key comparator. A dummy node
// never compares equal to a real node sharing its order — dummy orders
// are always even and real orders always odd, so that case cannot
// arise, but the ordering stays total regardless.
func compositeCompare[K any](userCmp list.Comparator[K]) list.Comparator[splitOrderKey[K]] {
	return func(a, b splitOrderKey[K]) int {
		if c := compareSplitKeys(a.order, b.order); c != 0 {
			return c
		}
		if a.dummy || b.dummy {
			if a.dummy == b.dummy {
				return 0
			}
			if a.dummy {
				return -1
			}
			return 1
		}
		return userCmp(a.key, b.key)
	}
}

// Options configure NewSet. Compare, Hash and EncodeKey are mandatory;
// every other field has a documented default.
type Options[K any] struct {
	// Compare orders two real (non-dummy) keys; used only to break
	// ties between items whose hashes collide.
	Compare list.Comparator[K]
	// Hash is mandatory: maps a key to its 64-bit hash.
	Hash hashfn.Hasher
	// EncodeKey serializes a key for Hash.Sum64. Mandatory.
	EncodeKey func(K) []byte
	// Reverse selects the bit-reversal algorithm; defaults to
	// ReverseBitsLookup.
	Reverse BitReversal
	// LoadFactor is the average items-per-bucket that triggers a
	// capacity doubling; defaults to 1.0.
	LoadFactor float64
	// InitialCapacity is the starting bucket count, rounded up to a
	// power of two; defaults to 16.
	InitialCapacity uint64
	// Counter tracks the real (non-dummy) item count. Defaults to a
	// StrictCounter; a NoneCounter is rejected.
	Counter list.Counter
	// Stat receives split-set events; defaults to a no-op recorder.
	Stat cdsstat.Recorder
	// BackOff paces the bucket-init busy-wait; defaults to
	// backoff.Default().
	BackOff backoff.Strategy
	// FreeList backs the dummy-node pool's recycling of released
	// slots; defaults to a TaggedFreeList sized to the pool.
	FreeList FreeList
	// MaxBucketCount bounds how many buckets (and so dummy nodes) the
	// set may ever create; defaults to the bucket table's own
	// capacity. Values above the table capacity are clamped to it.
	MaxBucketCount uint64
}

func (o Options[K]) withDefaults() (Options[K], error) {
	if o.Compare == nil || o.Hash == nil || o.EncodeKey == nil {
		return o, ErrInvalidConfiguration
	}
	if o.Counter != nil && o.Counter.IsNone() {
		return o, ErrInvalidConfiguration
	}
	if o.Counter == nil {
		o.Counter = list.NewStrictCounter()
	}
	if o.Reverse == nil {
		o.Reverse = ReverseBitsLookup
	}
	if o.LoadFactor <= 0 {
		o.LoadFactor = 1.0
	}
	if o.InitialCapacity == 0 {
		o.InitialCapacity = 16
	} else {
		o.InitialCapacity = nextPowerOfTwo(o.InitialCapacity)
	}
	if o.Stat == nil {
		o.Stat = cdsstat.NoneRecorder{}
	}
	if o.BackOff == nil {
		o.BackOff = backoff.Default()
	}
	return o, nil
}

func nextPowerOfTwo(v uint64) uint64 {
	p := uint64(1)
	for p < v {
		p <<= 1
	}
	return p
}

// Set is a split-ordered hash table: one shared ordered list carrying
// both dummy and real nodes, indexed by a bucket table of dummy-node
// anchors. shared must have been constructed with splitOrderKey[K] as
// its key type and the composite comparator this package builds
// (NewMichaelSet/NewLazySet do this for you).
type Set[K any, V any] struct {
	shared    list.AnchoredList[splitOrderKey[K], V]
	table     Table[V]
	pool      *dummyPool
	opts      Options[K]
	capacity  atomic.Uint64
	maxBucket uint64
}

// NewSet wires an already-constructed shared list (its Comparator
// must be compositeCompare(opts.Compare)) and bucket table together
// and eagerly initializes bucket 0, the root every other bucket's
// parent chain terminates at.
func NewSet[K any, V any](shared list.AnchoredList[splitOrderKey[K], V], table Table[V], opts Options[K]) (*Set[K, V], error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	maxBucket := table.Cap()
	if opts.MaxBucketCount != 0 && opts.MaxBucketCount < maxBucket {
		maxBucket = nextPowerOfTwo(opts.MaxBucketCount)
	}
	if opts.InitialCapacity > maxBucket {
		return nil, ErrInvalidConfiguration
	}
	s := &Set[K, V]{
		shared:    shared,
		table:     table,
		pool:      newDummyPool(maxBucket, opts.FreeList),
		opts:      opts,
		maxBucket: maxBucket,
	}
	s.capacity.Store(opts.InitialCapacity)
	if _, err := s.initBucket(0); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Set[K, V]) hashOf(key K) uint64 {
	return s.opts.Hash.Sum64(s.opts.EncodeKey(key))
}

func (s *Set[K, V]) bucketOf(hash, capacity uint64) uint64 {
	return hash & (capacity - 1)
}

// initBucket returns bucket's dummy anchor, creating it (and, through
// recursion, every ancestor bucket that does not yet exist) if
// necessary. Two concurrent callers racing to create the same bucket
// both reserve a pool slot and attempt the insert; the loser's
// InsertFromAnchor simply returns false, it releases its slot back to
// the free-list, and both then look the winner's dummy node up by
// DummyAnchor.
func (s *Set[K, V]) initBucket(bucket uint64) (*list.Anchor[V], error) {
	if a := s.table.Load(bucket); a != nil {
		return a, nil
	}
	if err := s.table.EnsureCapacity(bucket); err != nil {
		return nil, err
	}
	if a := s.table.Load(bucket); a != nil {
		return a, nil
	}

	var parentAnchor *list.Anchor[V]
	if bucket == 0 {
		parentAnchor = s.shared.HeadAnchor()
	} else {
		var err error
		parentAnchor, err = s.initBucket(parentBucket(bucket))
		if err != nil {
			return nil, err
		}
	}

	slot, err := s.pool.acquire()
	if err != nil {
		return nil, err
	}
	dummyKey := splitOrderKey[K]{order: dummyOrder(s.opts.Reverse, bucket), dummy: true}
	var zero V
	created, err := s.shared.InsertFromAnchor(parentAnchor, dummyKey, zero, nil)
	if err != nil {
		s.pool.release(slot)
		return nil, err
	}
	if !created {
		s.pool.release(slot)
	}

	attempt := 0
	for {
		anchor, ok, err := s.shared.DummyAnchor(dummyKey)
		if err != nil {
			return nil, err
		}
		if ok {
			s.table.Store(bucket, anchor)
			return anchor, nil
		}
		// The winning initializer's dummy is mid-insert; spin briefly
		// until it becomes reachable from the list.
		attempt++
		s.opts.Stat.IncInitContention()
		s.opts.BackOff.Backoff(attempt)
	}
}

func (s *Set[K, V]) maybeGrow() {
	cap := s.capacity.Load()
	if cap*2 > s.maxBucket {
		return
	}
	if float64(s.opts.Counter.Load()) <= s.opts.LoadFactor*float64(cap) {
		return
	}
	// Doubling is purely an index operation: existing list nodes keep
	// their split-order position, only new dummies get inserted as the
	// fresh buckets are first touched.
	if s.capacity.CompareAndSwap(cap, cap*2) {
		s.opts.Stat.IncBucketSplit()
	}
}

func (s *Set[K, V]) bucketAnchor(hash uint64) (*list.Anchor[V], error) {
	bucket := s.bucketOf(hash, s.capacity.Load())
	return s.initBucket(bucket)
}

func (s *Set[K, V]) realKey(hash uint64, key K) splitOrderKey[K] {
	return splitOrderKey[K]{order: splitOrder(s.opts.Reverse, hash), key: key}
}

func (s *Set[K, V]) InsertWith(key K, value V, init func(*V)) (bool, error) {
	hash := s.hashOf(key)
	anchor, err := s.bucketAnchor(hash)
	if err != nil {
		return false, err
	}
	ok, err := s.shared.InsertFromAnchor(anchor, s.realKey(hash, key), value, init)
	if err != nil {
		return false, err
	}
	if ok {
		s.opts.Counter.Add(1)
		s.opts.Stat.IncInsert()
		s.maybeGrow()
	}
	return ok, nil
}

func (s *Set[K, V]) Insert(key K, value V) (bool, error) {
	return s.InsertWith(key, value, nil)
}

func (s *Set[K, V]) Update(key K, value V, f func(existing *V, newVal V), allowInsert bool) (ok, inserted bool, err error) {
	hash := s.hashOf(key)
	anchor, err := s.bucketAnchor(hash)
	if err != nil {
		return false, false, err
	}
	ok, inserted, err = s.shared.UpdateFromAnchor(anchor, s.realKey(hash, key), value, f, allowInsert)
	if err == nil && inserted {
		s.opts.Counter.Add(1)
		s.opts.Stat.IncInsert()
		s.maybeGrow()
	}
	return ok, inserted, err
}

func (s *Set[K, V]) Erase(key K, f func(value V)) (bool, error) {
	hash := s.hashOf(key)
	anchor, err := s.bucketAnchor(hash)
	if err != nil {
		return false, err
	}
	ok, err := s.shared.EraseFromAnchor(anchor, s.realKey(hash, key), f)
	if err != nil {
		return false, err
	}
	if ok {
		s.opts.Counter.Add(-1)
		s.opts.Stat.IncErase()
	}
	return ok, nil
}

func (s *Set[K, V]) Unlink(key K, ref *list.Ref[V]) (bool, error) {
	hash := s.hashOf(key)
	ok, err := s.shared.Unlink(s.realKey(hash, key), ref)
	if err == nil && ok {
		s.opts.Counter.Add(-1)
		s.opts.Stat.IncErase()
	}
	return ok, err
}

func (s *Set[K, V]) Extract(key K) (*list.Ref[V], bool, error) {
	hash := s.hashOf(key)
	anchor, err := s.bucketAnchor(hash)
	if err != nil {
		return nil, false, err
	}
	ref, ok, err := s.shared.ExtractFromAnchor(anchor, s.realKey(hash, key))
	if err != nil {
		return nil, false, err
	}
	if ok {
		s.opts.Counter.Add(-1)
		s.opts.Stat.IncErase()
	}
	return ref, ok, nil
}

func (s *Set[K, V]) Contains(key K) (bool, error) {
	hash := s.hashOf(key)
	anchor, err := s.bucketAnchor(hash)
	if err != nil {
		return false, err
	}
	return s.shared.ContainsFromAnchor(anchor, s.realKey(hash, key))
}

func (s *Set[K, V]) Find(key K, f func(value V)) (bool, error) {
	hash := s.hashOf(key)
	anchor, err := s.bucketAnchor(hash)
	if err != nil {
		return false, err
	}
	ok, err := s.shared.FindFromAnchor(anchor, s.realKey(hash, key), f)
	if ok {
		s.opts.Stat.IncFind()
	}
	return ok, err
}

func (s *Set[K, V]) Get(key K) (*list.Ref[V], bool, error) {
	hash := s.hashOf(key)
	anchor, err := s.bucketAnchor(hash)
	if err != nil {
		return nil, false, err
	}
	ref, ok, err := s.shared.GetFromAnchor(anchor, s.realKey(hash, key))
	if ok {
		s.opts.Stat.IncFind()
	}
	return ref, ok, err
}

func (s *Set[K, V]) Len() int64 { return s.opts.Counter.Load() }

// IsEmpty reports whether the set holds no real items; it is defined
// as Len() == 0, so it is exact whenever the counter is.
func (s *Set[K, V]) IsEmpty() bool { return s.opts.Counter.Load() == 0 }

// Capacity reports the current bucket count. It only ever grows.
func (s *Set[K, V]) Capacity() uint64 { return s.capacity.Load() }

// Iterate walks every real (non-dummy) item in split-order, the same
// best-effort guarantee list.List.Iterate documents.
func (s *Set[K, V]) Iterate(f func(key K, value V) bool) {
	s.shared.Iterate(func(k splitOrderKey[K], v V) bool {
		if k.dummy {
			return true
		}
		return f(k.key, v)
	})
}
