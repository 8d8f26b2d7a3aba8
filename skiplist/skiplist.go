package skiplist

import (
	"errors"
	"sync/atomic"

	"github.com/gaarutyunov/cds-go/backoff"
	"github.com/gaarutyunov/cds-go/cdsstat"
	"github.com/gaarutyunov/cds-go/smr"
)

// ErrInvalidConfiguration is returned by NewSkipList when a mandatory
// construction option is missing.
var ErrInvalidConfiguration = errors.New("skiplist: invalid configuration")

// Comparator orders two keys, three-way: negative if a<b, zero if
// equal, positive if a>b.
type Comparator[K any] func(a, b K) int

// Options configure NewSkipList. Compare is mandatory; every other
// field has a documented default.
type Options[K any] struct {
	// Compare is mandatory: the total order over keys.
	Compare Comparator[K]
	// P is the geometric height distribution's success probability;
	// defaults to 0.5.
	P float64
	// Counter defaults to a StrictCounter.
	Counter Counter
	// BackOff defaults to backoff.Default().
	BackOff backoff.Strategy
	// Stat defaults to a no-op recorder.
	Stat cdsstat.Recorder
}

func (o Options[K]) withDefaults() (Options[K], error) {
	if o.Compare == nil {
		return o, ErrInvalidConfiguration
	}
	if o.P <= 0 || o.P >= 1 {
		o.P = 0.5
	}
	if o.Counter == nil {
		o.Counter = NewStrictCounter()
	}
	if o.BackOff == nil {
		o.BackOff = backoff.Default()
	}
	if o.Stat == nil {
		o.Stat = cdsstat.NoneRecorder{}
	}
	return o, nil
}

// guardsPerFind is the guard budget for the position-collecting find:
// two guards per level (predecessor, successor) plus scratch used
// while helping unlink marked nodes mid-traversal.
const guardsPerFind = 2*MaxHeight + 3

// SkipList is a lock-free ordered set with expected-O(log n)
// operations: per-node towers of marked next pointers, randomized
// height, and find/insert/erase with helping.
type SkipList[K any, V any] struct {
	head      *Node[K, V]
	cmp       Comparator[K]
	domain    smr.Domain[Node[K, V]]
	opts      Options[K]
	estHeight atomic.Int32
}

// NewSkipList builds an empty skip-list backed by domain.
func NewSkipList[K any, V any](domain smr.Domain[Node[K, V]], opts Options[K]) (*SkipList[K, V], error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	if err := domain.CheckAvailableGuards(guardsPerFind); err != nil {
		return nil, err
	}
	s := &SkipList[K, V]{
		head:   &Node[K, V]{height: MaxHeight},
		cmp:    opts.Compare,
		domain: domain,
		opts:   opts,
	}
	s.estHeight.Store(1)
	return s, nil
}

func (s *SkipList[K, V]) retire(n *Node[K, V]) {
	s.domain.Retire(n, func(*Node[K, V]) {})
}

// position is what find collects: per-level predecessor/successor
// pairs, populated for every level from MaxHeight-1 down to 0 (the
// head sentinel's tower always spans every level, so every find call
// walks the full height regardless of the estimated current height).
type position[K any, V any] struct {
	preds [MaxHeight]*Node[K, V]
	succs [MaxHeight]*Node[K, V]
}

// find walks top-down from the head, helping unlink any marked node it
// passes through, and records (pred, succ) at every level. Returns
// whether key is present (succs[0] matches it).
func (s *SkipList[K, V]) find(guards smr.GuardArray[Node[K, V]], key K) (pos position[K, V], found bool) {
retry:
	prev := s.head
	for level := MaxHeight - 1; level >= 0; level-- {
		gPred, gSucc := guards.At(level*2), guards.At(level*2+1)
		gPred.Set(prev)
		curr := gSucc.Protect(func() *Node[K, V] { return prev.next[level].Ptr() })
		for curr != nil {
			succ, marked := curr.next[level].Load()
			if marked {
				scratch := guards.At(guardsPerFind - 1)
				scratch.Set(succ)
				if !prev.next[level].CompareAndSwap(curr, false, succ, false) {
					goto retry
				}
				if level == 0 {
					s.opts.Stat.IncHelpedUnlink()
				}
				curr = succ
				gSucc.Set(curr)
				continue
			}
			if s.cmp(curr.key, key) >= 0 {
				break
			}
			prev = curr
			gPred.Set(prev)
			curr = succ
			gSucc.Set(curr)
		}
		pos.preds[level] = prev
		pos.succs[level] = curr
	}
	found = pos.succs[0] != nil && s.cmp(pos.succs[0].key, key) == 0
	return pos, found
}

func (s *SkipList[K, V]) bumpEstimatedHeight(h int32) {
	for {
		cur := s.estHeight.Load()
		if h <= cur || s.estHeight.CompareAndSwap(cur, h) {
			return
		}
	}
}

func (s *SkipList[K, V]) InsertWith(key K, value V, init func(*V)) (ok bool, err error) {
	guards, err := s.domain.NewGuardArray(guardsPerFind)
	if err != nil {
		s.opts.Stat.IncGuardExhaustion()
		return false, err
	}
	defer guards.Release()

	s.domain.ReadSection(func() {
		height := randomHeight(s.opts.P)
		s.opts.BackOff.Reset()
		for attempt := 0; ; attempt++ {
			pos, found := s.find(guards, key)
			if found {
				return
			}
			n := &Node[K, V]{key: key, value: value, height: height}
			if init != nil {
				init(&n.value)
			}
			for level := int32(0); level < height; level++ {
				n.next[level].Store(pos.succs[level], false)
			}
			if !pos.preds[0].next[0].CompareAndSwap(pos.succs[0], false, n, false) {
				s.opts.Stat.IncCASRetry()
				s.opts.BackOff.Backoff(attempt)
				continue
			}
			for level := int32(1); level < height; level++ {
				if _, marked := n.next[level].Load(); marked {
					// A concurrent erase has already reached this node;
					// stop raising the tower and let find-based helping
					// finish the deletion.
					break
				}
				pred, succ := pos.preds[level], pos.succs[level]
				for !pred.next[level].CompareAndSwap(succ, false, n, false) {
					if _, marked := n.next[level].Load(); marked {
						break
					}
					newPos, _ := s.find(guards, key)
					pred, succ = newPos.preds[level], newPos.succs[level]
				}
			}
			s.bumpEstimatedHeight(height)
			s.opts.Counter.Add(1)
			s.opts.Stat.IncInsert()
			ok = true
			return
		}
	})
	return ok, nil
}

func (s *SkipList[K, V]) Insert(key K, value V) (bool, error) {
	return s.InsertWith(key, value, nil)
}

func (s *SkipList[K, V]) Update(key K, value V, f func(existing *V, newVal V), allowInsert bool) (ok, inserted bool, err error) {
	guards, err := s.domain.NewGuardArray(guardsPerFind)
	if err != nil {
		s.opts.Stat.IncGuardExhaustion()
		return false, false, err
	}
	var found bool
	s.domain.ReadSection(func() {
		var pos position[K, V]
		pos, found = s.find(guards, key)
		if found && f != nil {
			f(&pos.succs[0].value, value)
		}
	})
	guards.Release()
	if found {
		return true, false, nil
	}
	if !allowInsert {
		return false, false, nil
	}
	ok, err = s.Insert(key, value)
	return ok, ok, err
}

// eraseNode logically deletes n, marking its tower from the top down.
// Level 0 is marked last and decides ownership: only the goroutine
// whose CAS sets the level-0 mark reports success, invokes f, and
// retires n. Everyone else lost to a concurrent erase of the same
// node and reports false.
func (s *SkipList[K, V]) eraseNode(guards smr.GuardArray[Node[K, V]], pos position[K, V], n *Node[K, V], f func(value V)) bool {
	for level := n.height - 1; level >= 1; level-- {
		for {
			succ, marked := n.next[level].Load()
			if marked {
				break
			}
			if n.next[level].CompareAndSwap(succ, false, succ, true) {
				break
			}
		}
	}
	won := false
	for {
		succ, marked := n.next[0].Load()
		if marked {
			break
		}
		if n.next[0].CompareAndSwap(succ, false, succ, true) {
			won = true
			break
		}
	}
	if !won {
		return false
	}
	if f != nil {
		f(n.value)
	}
	s.opts.Counter.Add(-1)
	s.opts.Stat.IncErase()

	// Fast physical unlink at the recorded predecessors; whatever this
	// pass fails to CAS directly, the final re-find helps past.
	for level := n.height - 1; level >= 0; level-- {
		pred := pos.preds[level]
		succ, _ := n.next[level].Load()
		pred.next[level].CompareAndSwap(n, false, succ, false)
	}
	s.find(guards, n.key)
	s.retire(n)
	return true
}

func (s *SkipList[K, V]) Erase(key K, f func(value V)) (ok bool, err error) {
	guards, err := s.domain.NewGuardArray(guardsPerFind)
	if err != nil {
		s.opts.Stat.IncGuardExhaustion()
		return false, err
	}
	defer guards.Release()

	s.domain.ReadSection(func() {
		pos, found := s.find(guards, key)
		if !found {
			return
		}
		ok = s.eraseNode(guards, pos, pos.succs[0], f)
	})
	return ok, nil
}

// Unlink erases only if the node currently holding key is
// pointer-identical to the one ref was taken from.
func (s *SkipList[K, V]) Unlink(key K, ref *Ref[V]) (ok bool, err error) {
	if ref == nil {
		return false, nil
	}
	guards, err := s.domain.NewGuardArray(guardsPerFind)
	if err != nil {
		return false, err
	}
	defer guards.Release()
	s.domain.ReadSection(func() {
		pos, found := s.find(guards, key)
		if !found || any(pos.succs[0]) != ref.node {
			return
		}
		ok = s.eraseNode(guards, pos, pos.succs[0], nil)
	})
	return ok, nil
}

// Extract erases key and returns a protected reference to the removed
// node's value, ownable by the caller until released.
func (s *SkipList[K, V]) Extract(key K) (*Ref[V], bool, error) {
	holder, err := s.domain.NewGuardArray(1)
	if err != nil {
		return nil, false, err
	}
	released := false
	release := func() {
		if !released {
			released = true
			holder.Release()
		}
	}
	guards, err := s.domain.NewGuardArray(guardsPerFind)
	if err != nil {
		release()
		return nil, false, err
	}
	defer guards.Release()

	var n *Node[K, V]
	s.domain.ReadSection(func() {
		pos, found := s.find(guards, key)
		if !found {
			return
		}
		candidate := pos.succs[0]
		holder.At(0).Set(candidate)
		if s.eraseNode(guards, pos, candidate, nil) {
			n = candidate
		}
	})
	if n == nil {
		release()
		return nil, false, nil
	}
	return newRef(n.value, any(n), release), true, nil
}

func (s *SkipList[K, V]) Contains(key K) (found bool, err error) {
	guards, err := s.domain.NewGuardArray(guardsPerFind)
	if err != nil {
		return false, err
	}
	defer guards.Release()
	s.domain.ReadSection(func() {
		_, found = s.find(guards, key)
		if found {
			s.opts.Stat.IncFind()
		}
	})
	return found, nil
}

func (s *SkipList[K, V]) Find(key K, f func(value V)) (found bool, err error) {
	guards, err := s.domain.NewGuardArray(guardsPerFind)
	if err != nil {
		return false, err
	}
	defer guards.Release()
	s.domain.ReadSection(func() {
		pos, ok := s.find(guards, key)
		if !ok {
			return
		}
		if f != nil {
			f(pos.succs[0].value)
		}
		s.opts.Stat.IncFind()
		found = true
	})
	return found, nil
}

func (s *SkipList[K, V]) Get(key K) (*Ref[V], bool, error) {
	holder, err := s.domain.NewGuardArray(1)
	if err != nil {
		return nil, false, err
	}
	released := false
	release := func() {
		if !released {
			released = true
			holder.Release()
		}
	}
	guards, err := s.domain.NewGuardArray(guardsPerFind)
	if err != nil {
		release()
		return nil, false, err
	}
	var n *Node[K, V]
	s.domain.ReadSection(func() {
		pos, found := s.find(guards, key)
		if !found {
			return
		}
		n = pos.succs[0]
		holder.At(0).Set(n)
	})
	guards.Release()
	if n == nil {
		release()
		return nil, false, nil
	}
	s.opts.Stat.IncFind()
	return newRef(n.value, any(n), release), true, nil
}

func (s *SkipList[K, V]) Len() int64 { return s.opts.Counter.Load() }

// IsEmpty reports whether the set holds no elements. Exact at
// quiescence; under concurrent mutation it reflects the counter's
// momentary value.
func (s *SkipList[K, V]) IsEmpty() bool { return s.opts.Counter.Load() == 0 }

// Iterate is a best-effort forward walk at level 0, skipping marked
// nodes; it takes no guard, so it may miss concurrent inserts and can
// end early if its anchor node is deleted mid-walk.
func (s *SkipList[K, V]) Iterate(f func(key K, value V) bool) {
	for n := s.head.next[0].Ptr(); n != nil; {
		next, marked := n.next[0].Load()
		if !marked {
			if !f(n.key, n.value) {
				return
			}
		}
		n = next
	}
}
