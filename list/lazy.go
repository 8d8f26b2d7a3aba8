package list

import (
	"sync"
	"sync/atomic"

	"github.com/gaarutyunov/cds-go/smr"
)

// LazyNode is the Lazy-list node: next is a plain atomic
// pointer (writers hold mu; unsynchronized readers only ever load it),
// and marked is a separate flag set under the node's own lock in the
// same critical section that performs the physical unlink.
type LazyNode[K any, V any] struct {
	key    K
	value  V
	next   atomic.Pointer[LazyNode[K, V]]
	marked atomic.Bool
	mu     sync.Mutex
}

// LazyList is the optimistic, per-node-locked ordered-list variant.
type LazyList[K any, V any] struct {
	head   *LazyNode[K, V]
	cmp    Comparator[K]
	domain smr.Domain[LazyNode[K, V]]
	opts   Options[K]
}

func NewLazyList[K any, V any](domain smr.Domain[LazyNode[K, V]], opts Options[K]) *LazyList[K, V] {
	opts = opts.withDefaults()
	return &LazyList[K, V]{
		head:   &LazyNode[K, V]{},
		cmp:    opts.Compare,
		domain: domain,
		opts:   opts,
	}
}

func (l *LazyList[K, V]) retire(n *LazyNode[K, V]) {
	l.domain.Retire(n, func(*LazyNode[K, V]) {})
}

// HeadAnchor returns the anchor every search starts from by default.
func (l *LazyList[K, V]) HeadAnchor() *Anchor[V] { return &Anchor[V]{node: l.head} }

func (l *LazyList[K, V]) anchorNode(anchor *Anchor[V]) *LazyNode[K, V] {
	if anchor == nil {
		return l.head
	}
	return anchor.node.(*LazyNode[K, V])
}

// search is the unsynchronized traversal: no locks, no guards, just
// plain atomic loads — correct as long as a reader never dereferences
// a node that has already been reclaimed, which the caller ensures by
// taking a guard before touching curr.value (see Contains/Find/Get).
func (l *LazyList[K, V]) search(start *LazyNode[K, V], key K) (prev, curr *LazyNode[K, V]) {
	prev = start
	curr = prev.next.Load()
	for curr != nil && l.cmp(curr.key, key) < 0 {
		prev = curr
		curr = curr.next.Load()
	}
	return prev, curr
}

func validateLazy[K any, V any](prev, curr *LazyNode[K, V]) bool {
	if prev.marked.Load() {
		return false
	}
	if curr != nil && curr.marked.Load() {
		return false
	}
	return prev.next.Load() == curr
}

func lockPair[K any, V any](prev, curr *LazyNode[K, V]) {
	prev.mu.Lock()
	if curr != nil {
		curr.mu.Lock()
	}
}

func unlockPair[K any, V any](prev, curr *LazyNode[K, V]) {
	if curr != nil {
		curr.mu.Unlock()
	}
	prev.mu.Unlock()
}

func (l *LazyList[K, V]) insertWith(anchor *Anchor[V], key K, value V, init func(*V)) (ok bool, err error) {
	start := l.anchorNode(anchor)
	l.domain.ReadSection(func() {
		attempt := 0
		for {
			prev, curr := l.search(start, key)
			lockPair(prev, curr)
			if !validateLazy(prev, curr) {
				unlockPair(prev, curr)
				attempt++
				l.opts.BackOff.Backoff(attempt)
				continue
			}
			if curr != nil && l.cmp(curr.key, key) == 0 {
				unlockPair(prev, curr)
				return
			}
			n := &LazyNode[K, V]{key: key, value: value}
			if init != nil {
				init(&n.value)
			}
			n.next.Store(curr)
			prev.next.Store(n)
			unlockPair(prev, curr)
			l.opts.Counter.Add(1)
			ok = true
			return
		}
	})
	return ok, nil
}

func (l *LazyList[K, V]) InsertWith(key K, value V, init func(*V)) (bool, error) {
	return l.insertWith(nil, key, value, init)
}

func (l *LazyList[K, V]) Insert(key K, value V) (bool, error) {
	return l.insertWith(nil, key, value, nil)
}

// InsertFromAnchor is InsertWith starting the search at anchor.
func (l *LazyList[K, V]) InsertFromAnchor(anchor *Anchor[V], key K, value V, init func(*V)) (bool, error) {
	return l.insertWith(anchor, key, value, init)
}

func (l *LazyList[K, V]) update(anchor *Anchor[V], key K, value V, f func(existing *V, newVal V), allowInsert bool) (ok, inserted bool, err error) {
	start := l.anchorNode(anchor)
	l.domain.ReadSection(func() {
		attempt := 0
		for {
			prev, curr := l.search(start, key)
			lockPair(prev, curr)
			if !validateLazy(prev, curr) {
				unlockPair(prev, curr)
				attempt++
				l.opts.BackOff.Backoff(attempt)
				continue
			}
			if curr != nil && l.cmp(curr.key, key) == 0 {
				if f != nil {
					f(&curr.value, value)
				}
				unlockPair(prev, curr)
				ok = true
				return
			}
			if !allowInsert {
				unlockPair(prev, curr)
				return
			}
			n := &LazyNode[K, V]{key: key, value: value}
			n.next.Store(curr)
			prev.next.Store(n)
			unlockPair(prev, curr)
			l.opts.Counter.Add(1)
			ok, inserted = true, true
			return
		}
	})
	return ok, inserted, nil
}

func (l *LazyList[K, V]) Update(key K, value V, f func(existing *V, newVal V), allowInsert bool) (ok, inserted bool, err error) {
	return l.update(nil, key, value, f, allowInsert)
}

// UpdateFromAnchor is Update starting the search at anchor.
func (l *LazyList[K, V]) UpdateFromAnchor(anchor *Anchor[V], key K, value V, f func(existing *V, newVal V), allowInsert bool) (ok, inserted bool, err error) {
	return l.update(anchor, key, value, f, allowInsert)
}

func (l *LazyList[K, V]) eraseMatching(anchor *Anchor[V], key K, match func(*LazyNode[K, V]) bool, f func(V)) (ok bool, erased *LazyNode[K, V], err error) {
	start := l.anchorNode(anchor)
	l.domain.ReadSection(func() {
		attempt := 0
		for {
			prev, curr := l.search(start, key)
			if curr == nil || l.cmp(curr.key, key) != 0 {
				return
			}
			if match != nil && !match(curr) {
				return
			}
			lockPair(prev, curr)
			if !validateLazy(prev, curr) {
				unlockPair(prev, curr)
				attempt++
				l.opts.BackOff.Backoff(attempt)
				continue
			}
			curr.marked.Store(true)
			if f != nil {
				f(curr.value)
			}
			prev.next.Store(curr.next.Load())
			unlockPair(prev, curr)
			l.opts.Counter.Add(-1)
			l.retire(curr)
			ok, erased = true, curr
			return
		}
	})
	return ok, erased, nil
}

func (l *LazyList[K, V]) Erase(key K, f func(value V)) (bool, error) {
	ok, _, err := l.eraseMatching(nil, key, nil, f)
	return ok, err
}

// EraseFromAnchor is Erase starting the search at anchor.
func (l *LazyList[K, V]) EraseFromAnchor(anchor *Anchor[V], key K, f func(value V)) (bool, error) {
	ok, _, err := l.eraseMatching(anchor, key, nil, f)
	return ok, err
}

func (l *LazyList[K, V]) Unlink(key K, ref *Ref[V]) (bool, error) {
	if ref == nil {
		return false, nil
	}
	ok, _, err := l.eraseMatching(nil, key, func(n *LazyNode[K, V]) bool { return any(n) == ref.id }, nil)
	return ok, err
}

func (l *LazyList[K, V]) extract(anchor *Anchor[V], key K) (*Ref[V], bool, error) {
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

func (l *LazyList[K, V]) Extract(key K) (*Ref[V], bool, error) { return l.extract(nil, key) }

// ExtractFromAnchor is Extract starting the search at anchor.
func (l *LazyList[K, V]) ExtractFromAnchor(anchor *Anchor[V], key K) (*Ref[V], bool, error) {
	return l.extract(anchor, key)
}

func (l *LazyList[K, V]) contains(anchor *Anchor[V], key K) (found bool, err error) {
	guards, err := l.domain.NewGuardArray(1)
	if err != nil {
		return false, err
	}
	defer guards.Release()
	l.domain.ReadSection(func() {
		_, curr := l.search(l.anchorNode(anchor), key)
		protected := guards.At(0).Protect(func() *LazyNode[K, V] { return curr })
		found = protected != nil && l.cmp(protected.key, key) == 0 && !protected.marked.Load()
	})
	return found, nil
}

func (l *LazyList[K, V]) Contains(key K) (bool, error) { return l.contains(nil, key) }

// ContainsFromAnchor is Contains starting the search at anchor.
func (l *LazyList[K, V]) ContainsFromAnchor(anchor *Anchor[V], key K) (bool, error) {
	return l.contains(anchor, key)
}

func (l *LazyList[K, V]) find(anchor *Anchor[V], key K, f func(value V)) (found bool, err error) {
	guards, err := l.domain.NewGuardArray(1)
	if err != nil {
		return false, err
	}
	defer guards.Release()
	l.domain.ReadSection(func() {
		_, curr := l.search(l.anchorNode(anchor), key)
		protected := guards.At(0).Protect(func() *LazyNode[K, V] { return curr })
		if protected == nil || l.cmp(protected.key, key) != 0 || protected.marked.Load() {
			return
		}
		if f != nil {
			f(protected.value)
		}
		found = true
	})
	return found, nil
}

func (l *LazyList[K, V]) Find(key K, f func(value V)) (bool, error) { return l.find(nil, key, f) }

// FindFromAnchor is Find starting the search at anchor.
func (l *LazyList[K, V]) FindFromAnchor(anchor *Anchor[V], key K, f func(value V)) (bool, error) {
	return l.find(anchor, key, f)
}

func (l *LazyList[K, V]) get(anchor *Anchor[V], key K) (ref *Ref[V], found bool, err error) {
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
	l.domain.ReadSection(func() {
		_, curr := l.search(l.anchorNode(anchor), key)
		protected := holder.At(0).Protect(func() *LazyNode[K, V] { return curr })
		if protected == nil || l.cmp(protected.key, key) != 0 || protected.marked.Load() {
			release()
			return
		}
		ref, found = newRef(protected.value, any(protected), release), true
	})
	return ref, found, nil
}

func (l *LazyList[K, V]) Get(key K) (*Ref[V], bool, error) { return l.get(nil, key) }

// GetFromAnchor is Get starting the search at anchor.
func (l *LazyList[K, V]) GetFromAnchor(anchor *Anchor[V], key K) (*Ref[V], bool, error) {
	return l.get(anchor, key)
}

// DummyAnchor locates key without acquiring a lasting guard and
// returns an Anchor wrapping its node. Only safe for keys that are
// never erased from the list (splitlist's bucket dummy nodes) — see
// MichaelList.DummyAnchor for the full reasoning.
func (l *LazyList[K, V]) DummyAnchor(key K) (*Anchor[V], bool, error) {
	_, curr := l.search(l.head, key)
	if curr == nil || l.cmp(curr.key, key) != 0 {
		return nil, false, nil
	}
	return &Anchor[V]{node: curr}, true, nil
}

func (l *LazyList[K, V]) Len() int64 { return l.opts.Counter.Load() }

func (l *LazyList[K, V]) Iterate(f func(key K, value V) bool) {
	for n := l.head.next.Load(); n != nil; n = n.next.Load() {
		if n.marked.Load() {
			continue
		}
		if !f(n.key, n.value) {
			return
		}
	}
}
