package splitlist

import "sync/atomic"

// FreeList is the pluggable free-list behind the dummy-node pool: a
// lock-free stack of released slot indexes. The default is a tagged
// Treiber stack (NewTaggedFreeList); deployments can substitute their
// own, e.g. to share one across several sets.
type FreeList interface {
	Push(idx uint32)
	Pop() (uint32, bool)
}

// TaggedFreeList is a Treiber stack over pool slot indexes. The head
// word packs (tag, index+1) into one uint64 so the CAS covers both: a
// slot popped, reused and pushed back between another popper's load
// and CAS changes the tag, failing the stale CAS.
type TaggedFreeList struct {
	head atomic.Uint64
	next []atomic.Uint32
}

// NewTaggedFreeList builds a free-list able to hold indexes in
// [0, capacity).
func NewTaggedFreeList(capacity uint32) *TaggedFreeList {
	return &TaggedFreeList{next: make([]atomic.Uint32, capacity)}
}

const freeListTagShift = 32

func packHead(tag uint32, idx uint32, empty bool) uint64 {
	if empty {
		return uint64(tag) << freeListTagShift
	}
	return uint64(tag)<<freeListTagShift | uint64(idx+1)
}

func unpackHead(w uint64) (tag uint32, idx uint32, empty bool) {
	tag = uint32(w >> freeListTagShift)
	low := uint32(w)
	if low == 0 {
		return tag, 0, true
	}
	return tag, low - 1, false
}

func (f *TaggedFreeList) Push(idx uint32) {
	for {
		old := f.head.Load()
		tag, top, empty := unpackHead(old)
		if empty {
			f.next[idx].Store(0)
		} else {
			f.next[idx].Store(top + 1)
		}
		if f.head.CompareAndSwap(old, packHead(tag+1, idx, false)) {
			return
		}
	}
}

func (f *TaggedFreeList) Pop() (uint32, bool) {
	for {
		old := f.head.Load()
		tag, top, empty := unpackHead(old)
		if empty {
			return 0, false
		}
		nextLow := f.next[top].Load()
		var newWord uint64
		if nextLow == 0 {
			newWord = packHead(tag+1, 0, true)
		} else {
			newWord = packHead(tag+1, nextLow-1, false)
		}
		if f.head.CompareAndSwap(old, newWord) {
			return top, true
		}
	}
}

// dummyPool rations bucket dummy nodes: a fixed budget handed out by a
// bump counter first, then by recycling released slots through the
// free-list. Exhaustion of both surfaces as ErrBucketsExhausted to the
// operation that triggered the bucket initialization.
type dummyPool struct {
	capacity uint32
	bump     atomic.Uint32
	free     FreeList
}

func newDummyPool(capacity uint64, free FreeList) *dummyPool {
	if capacity > 1<<31 {
		capacity = 1 << 31
	}
	c := uint32(capacity)
	if free == nil {
		free = NewTaggedFreeList(c)
	}
	return &dummyPool{capacity: c, free: free}
}

// acquire reserves one dummy slot, preferring the preallocated range
// over the free-list.
func (p *dummyPool) acquire() (uint32, error) {
	for {
		n := p.bump.Load()
		if n >= p.capacity {
			break
		}
		if p.bump.CompareAndSwap(n, n+1) {
			return n, nil
		}
	}
	if idx, ok := p.free.Pop(); ok {
		return idx, nil
	}
	return 0, ErrBucketsExhausted
}

// release returns a slot whose dummy node lost the initialization race
// (an equivalent dummy already anchored the bucket).
func (p *dummyPool) release(idx uint32) {
	p.free.Push(idx)
}

// allocated reports the bump allocator's high-water mark: how many
// slots have ever been handed out from the preallocated range.
func (p *dummyPool) allocated() uint32 {
	return p.bump.Load()
}
