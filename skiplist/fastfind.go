package skiplist

import "github.com/gaarutyunov/cds-go/smr"

// fastFindSpinLimit bounds how many times the inline fast path retries
// before giving up and falling back to the full position-collecting
// find.
const fastFindSpinLimit = 4

// fastFind is the two-guard inline walk behind FindFast: it starts
// from the estimated current height instead of MaxHeight and
// never helps unlink a marked node it meets — it just aborts back to
// FindFast, which runs the fast path up to fastFindSpinLimit times in
// all before falling back to the full find. Good for the common
// case (no concurrent erase on the search path); pays nothing extra
// over a plain traversal when it succeeds.
func (s *SkipList[K, V]) fastFind(guards smr.GuardArray[Node[K, V]], key K) (curr *Node[K, V], found bool, contended bool) {
	prev := s.head
	top := s.estHeight.Load()
	if top < 1 {
		top = 1
	}
	if top > MaxHeight {
		top = MaxHeight
	}
	gPred, gSucc := guards.At(0), guards.At(1)
	for level := top - 1; level >= 0; level-- {
		gPred.Set(prev)
		node := gSucc.Protect(func() *Node[K, V] { return prev.next[level].Ptr() })
		for node != nil {
			next, marked := node.next[level].Load()
			if marked {
				return nil, false, true
			}
			if s.cmp(node.key, key) >= 0 {
				break
			}
			prev = node
			gPred.Set(prev)
			node = next
			gSucc.Set(node)
		}
	}
	if prev != s.head {
		if _, marked := prev.next[0].Load(); marked {
			return nil, false, true
		}
	}
	next := gSucc.Protect(func() *Node[K, V] { return prev.next[0].Ptr() })
	if next != nil && s.cmp(next.key, key) == 0 {
		if _, marked := next.next[0].Load(); marked {
			return nil, false, true
		}
		return next, true, false
	}
	return nil, false, false
}

// FindFast is Find routed through the fast path; it falls back to the
// full find transparently, so callers never see the distinction.
func (s *SkipList[K, V]) FindFast(key K, f func(value V)) (bool, error) {
	guards, err := s.domain.NewGuardArray(2)
	if err != nil {
		return false, err
	}
	settled := false
	found := false
	s.domain.ReadSection(func() {
		for attempt := 0; attempt < fastFindSpinLimit; attempt++ {
			n, ok, contended := s.fastFind(guards, key)
			if contended {
				continue
			}
			settled = true
			if !ok {
				return
			}
			if f != nil {
				f(n.value)
			}
			s.opts.Stat.IncFind()
			found = true
			return
		}
	})
	guards.Release()
	if settled {
		return found, nil
	}
	return s.Find(key, f)
}
