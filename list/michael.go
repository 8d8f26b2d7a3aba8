package list

import (
	"github.com/gaarutyunov/cds-go/mpointer"
	"github.com/gaarutyunov/cds-go/smr"
)

// MichaelNode is a Michael-list node: the outgoing pointer and its
// logical-deletion bit live in one CAS-able slot (mpointer.Marked), so
// marking a node for deletion and observing whether it is marked are
// always consistent with a concurrent insert at the same slot.
type MichaelNode[K any, V any] struct {
	key   K
	value V
	next  mpointer.Marked[MichaelNode[K, V]]
}

// MichaelList is the lock-free ordered-list variant: every mutation is
// a CAS on a marked-pointer slot, and traversal helps physically
// unlink whatever marked nodes it meets.
type MichaelList[K any, V any] struct {
	head   *MichaelNode[K, V]
	cmp    Comparator[K]
	domain smr.Domain[MichaelNode[K, V]]
	opts   Options[K]
}

// NewMichaelList builds an empty Michael-list backed by domain.
func NewMichaelList[K any, V any](domain smr.Domain[MichaelNode[K, V]], opts Options[K]) *MichaelList[K, V] {
	opts = opts.withDefaults()
	return &MichaelList[K, V]{
		head:   &MichaelNode[K, V]{},
		cmp:    opts.Compare,
		domain: domain,
		opts:   opts,
	}
}

func (l *MichaelList[K, V]) retire(n *MichaelNode[K, V]) {
	l.domain.Retire(n, func(*MichaelNode[K, V]) {})
}

// HeadAnchor returns the anchor every search starts from by default.
// splitlist obtains a bucket's anchor from DummyAnchor to start
// searches at the bucket instead.
func (l *MichaelList[K, V]) HeadAnchor() *Anchor[V] { return &Anchor[V]{node: l.head} }

func (l *MichaelList[K, V]) anchorNode(anchor *Anchor[V]) *MichaelNode[K, V] {
	if anchor == nil {
		return l.head
	}
	return anchor.node.(*MichaelNode[K, V])
}

// search returns (prev, curr) such that prev.next points at curr, curr
// is unmarked, and curr's key is >= the target (or curr is nil). Any
// marked node encountered along the way is helped: physically unlinked
// via CAS at its predecessor, then retired.
func (l *MichaelList[K, V]) search(guards smr.GuardArray[MichaelNode[K, V]], start *MichaelNode[K, V], key K) (prev, curr *MichaelNode[K, V]) {
	gPrev, gCurr, gSucc := guards.At(0), guards.At(1), guards.At(2)
	attempt := 0
	for {
		prev = start
		curr = gCurr.Protect(func() *MichaelNode[K, V] { return prev.next.Ptr() })
		for {
			if curr == nil {
				return prev, nil
			}
			succ, marked := curr.next.Load()
			gSucc.Set(succ)
			if marked {
				if !prev.next.CompareAndSwap(curr, false, succ, false) {
					attempt++
					l.opts.BackOff.Backoff(attempt)
					break // restart from start
				}
				l.retire(curr)
				curr = succ
				gCurr.Set(curr)
				continue
			}
			if l.cmp(curr.key, key) >= 0 {
				return prev, curr
			}
			prev = curr
			gPrev.Set(prev)
			curr = succ
			gCurr.Set(curr)
		}
	}
}

func (l *MichaelList[K, V]) insertWith(anchor *Anchor[V], key K, value V, init func(*V)) (ok bool, err error) {
	guards, err := l.domain.NewGuardArray(l.opts.GuardsPerOp)
	if err != nil {
		return false, err
	}
	defer guards.Release()
	start := l.anchorNode(anchor)
	l.domain.ReadSection(func() {
		attempt := 0
		for {
			prev, curr := l.search(guards, start, key)
			if curr != nil && l.cmp(curr.key, key) == 0 {
				return
			}
			n := &MichaelNode[K, V]{key: key, value: value}
			if init != nil {
				init(&n.value)
			}
			n.next.Store(curr, false)
			if prev.next.CompareAndSwap(curr, false, n, false) {
				l.opts.Counter.Add(1)
				ok = true
				return
			}
			attempt++
			l.opts.BackOff.Backoff(attempt)
		}
	})
	return ok, nil
}

func (l *MichaelList[K, V]) InsertWith(key K, value V, init func(*V)) (bool, error) {
	return l.insertWith(nil, key, value, init)
}

func (l *MichaelList[K, V]) Insert(key K, value V) (bool, error) {
	return l.insertWith(nil, key, value, nil)
}

// InsertFromAnchor is InsertWith starting the search at anchor instead
// of the list head — the hook splitlist uses to insert relative to a
// bucket's dummy node.
func (l *MichaelList[K, V]) InsertFromAnchor(anchor *Anchor[V], key K, value V, init func(*V)) (bool, error) {
	return l.insertWith(anchor, key, value, init)
}

func (l *MichaelList[K, V]) update(anchor *Anchor[V], key K, value V, f func(existing *V, newVal V), allowInsert bool) (ok, inserted bool, err error) {
	guards, err := l.domain.NewGuardArray(l.opts.GuardsPerOp)
	if err != nil {
		return false, false, err
	}
	defer guards.Release()
	start := l.anchorNode(anchor)
	l.domain.ReadSection(func() {
		attempt := 0
		for {
			prev, curr := l.search(guards, start, key)
			if curr != nil && l.cmp(curr.key, key) == 0 {
				if f != nil {
					f(&curr.value, value)
				}
				ok = true
				return
			}
			if !allowInsert {
				return
			}
			n := &MichaelNode[K, V]{key: key, value: value}
			n.next.Store(curr, false)
			if prev.next.CompareAndSwap(curr, false, n, false) {
				l.opts.Counter.Add(1)
				ok, inserted = true, true
				return
			}
			attempt++
			l.opts.BackOff.Backoff(attempt)
		}
	})
	return ok, inserted, nil
}

func (l *MichaelList[K, V]) Update(key K, value V, f func(existing *V, newVal V), allowInsert bool) (ok, inserted bool, err error) {
	return l.update(nil, key, value, f, allowInsert)
}

// UpdateFromAnchor is Update starting the search at anchor.
func (l *MichaelList[K, V]) UpdateFromAnchor(anchor *Anchor[V], key K, value V, f func(existing *V, newVal V), allowInsert bool) (ok, inserted bool, err error) {
	return l.update(anchor, key, value, f, allowInsert)
}

func (l *MichaelList[K, V]) eraseMatching(anchor *Anchor[V], key K, match func(*MichaelNode[K, V]) bool, f func(V)) (ok bool, erased *MichaelNode[K, V], err error) {
	guards, err := l.domain.NewGuardArray(l.opts.GuardsPerOp)
	if err != nil {
		return false, nil, err
	}
	defer guards.Release()
	start := l.anchorNode(anchor)
	l.domain.ReadSection(func() {
		for {
			prev, curr := l.search(guards, start, key)
			if curr == nil || l.cmp(curr.key, key) != 0 {
				return
			}
			if match != nil && !match(curr) {
				return
			}
			succ, marked := curr.next.Load()
			if marked {
				continue
			}
			if !curr.next.CompareAndSwap(succ, false, succ, true) {
				continue
			}
			if f != nil {
				f(curr.value)
			}
			l.opts.Counter.Add(-1)
			if prev.next.CompareAndSwap(curr, false, succ, false) {
				l.retire(curr)
			}
			// Benign failure: a future search's help-unlink path finishes
			// the physical unlink and retires curr itself.
			ok, erased = true, curr
			return
		}
	})
	return ok, erased, nil
}

func (l *MichaelList[K, V]) Erase(key K, f func(value V)) (bool, error) {
	ok, _, err := l.eraseMatching(nil, key, nil, f)
	return ok, err
}

// EraseFromAnchor is Erase starting the search at anchor.
func (l *MichaelList[K, V]) EraseFromAnchor(anchor *Anchor[V], key K, f func(value V)) (bool, error) {
	ok, _, err := l.eraseMatching(anchor, key, nil, f)
	return ok, err
}

func (l *MichaelList[K, V]) Unlink(key K, ref *Ref[V]) (bool, error) {
	if ref == nil {
		return false, nil
	}
	ok, _, err := l.eraseMatching(nil, key, func(n *MichaelNode[K, V]) bool { return any(n) == ref.id }, nil)
	return ok, err
}

func (l *MichaelList[K, V]) extract(anchor *Anchor[V], key K) (*Ref[V], bool, error) {
	holder, err := l.domain.NewGuardArray(1)
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
	ok, node, err := l.eraseMatching(anchor, key, nil, nil)
	if err != nil {
		release()
		return nil, false, err
	}
	if !ok {
		release()
		return nil, false, nil
	}
	holder.At(0).Set(node)
	return newRef(node.value, any(node), release), true, nil
}

func (l *MichaelList[K, V]) Extract(key K) (*Ref[V], bool, error) { return l.extract(nil, key) }

// ExtractFromAnchor is Extract starting the search at anchor.
func (l *MichaelList[K, V]) ExtractFromAnchor(anchor *Anchor[V], key K) (*Ref[V], bool, error) {
	return l.extract(anchor, key)
}

func (l *MichaelList[K, V]) contains(anchor *Anchor[V], key K) (found bool, err error) {
	guards, err := l.domain.NewGuardArray(l.opts.GuardsPerOp)
	if err != nil {
		return false, err
	}
	defer guards.Release()
	l.domain.ReadSection(func() {
		_, curr := l.search(guards, l.anchorNode(anchor), key)
		found = curr != nil && l.cmp(curr.key, key) == 0
	})
	return found, nil
}

func (l *MichaelList[K, V]) Contains(key K) (bool, error) { return l.contains(nil, key) }

// ContainsFromAnchor is Contains starting the search at anchor.
func (l *MichaelList[K, V]) ContainsFromAnchor(anchor *Anchor[V], key K) (bool, error) {
	return l.contains(anchor, key)
}

func (l *MichaelList[K, V]) find(anchor *Anchor[V], key K, f func(value V)) (found bool, err error) {
	guards, err := l.domain.NewGuardArray(l.opts.GuardsPerOp)
	if err != nil {
		return false, err
	}
	defer guards.Release()
	l.domain.ReadSection(func() {
		_, curr := l.search(guards, l.anchorNode(anchor), key)
		if curr == nil || l.cmp(curr.key, key) != 0 {
			return
		}
		if f != nil {
			f(curr.value)
		}
		found = true
	})
	return found, nil
}

func (l *MichaelList[K, V]) Find(key K, f func(value V)) (bool, error) { return l.find(nil, key, f) }

// FindFromAnchor is Find starting the search at anchor.
func (l *MichaelList[K, V]) FindFromAnchor(anchor *Anchor[V], key K, f func(value V)) (bool, error) {
	return l.find(anchor, key, f)
}

func (l *MichaelList[K, V]) get(anchor *Anchor[V], key K) (ref *Ref[V], found bool, err error) {
	holder, err := l.domain.NewGuardArray(1)
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
	guards, err := l.domain.NewGuardArray(l.opts.GuardsPerOp)
	if err != nil {
		release()
		return nil, false, err
	}
	defer guards.Release()
	l.domain.ReadSection(func() {
		_, curr := l.search(guards, l.anchorNode(anchor), key)
		if curr == nil || l.cmp(curr.key, key) != 0 {
			release()
			return
		}
		holder.At(0).Set(curr)
		ref, found = newRef(curr.value, any(curr), release), true
	})
	return ref, found, nil
}

func (l *MichaelList[K, V]) Get(key K) (*Ref[V], bool, error) { return l.get(nil, key) }

// GetFromAnchor is Get starting the search at anchor.
func (l *MichaelList[K, V]) GetFromAnchor(anchor *Anchor[V], key K) (*Ref[V], bool, error) {
	return l.get(anchor, key)
}

// DummyAnchor locates key without acquiring a lasting guard and
// returns an Anchor wrapping its node. Only safe for keys that are
// never erased from the list (splitlist's bucket dummy nodes): such a
// node is only ever unlinked by nobody, so it never enters the SMR
// domain's retire path and needs no guard to outlive this call.
func (l *MichaelList[K, V]) DummyAnchor(key K) (anchor *Anchor[V], found bool, err error) {
	guards, err := l.domain.NewGuardArray(l.opts.GuardsPerOp)
	if err != nil {
		return nil, false, err
	}
	defer guards.Release()
	l.domain.ReadSection(func() {
		_, curr := l.search(guards, l.head, key)
		if curr == nil || l.cmp(curr.key, key) != 0 {
			return
		}
		anchor, found = &Anchor[V]{node: curr}, true
	})
	return anchor, found, nil
}

func (l *MichaelList[K, V]) Len() int64 { return l.opts.Counter.Load() }

// Iterate is a best-effort forward walk: it skips logically deleted
// nodes but takes no guard, so it may miss concurrent inserts and a
// concurrently reclaimed node can end iteration early.
func (l *MichaelList[K, V]) Iterate(f func(key K, value V) bool) {
	for n := l.head.next.Ptr(); n != nil; {
		next, marked := n.next.Load()
		if !marked {
			if !f(n.key, n.value) {
				return
			}
		}
		n = next
	}
}
