// Package mpointer implements the marked-pointer primitive shared by the
// ordered list, split-ordered set, and skip-list: an atomic slot carrying
// a data pointer plus a single "logically deleted" tag bit, so that
// marking a node and observing whether it is marked are always consistent
// with any concurrent pointer update.
//
// The slot does not pack the tag into the pointer's low bits: a pointer
// round-tripped through uintptr has no pointer semantics and the garbage
// collector will not keep its target alive, yet a linked node is often
// reachable only through its predecessor's slot. Instead the slot holds
// an atomic.Pointer to an immutable (pointer, mark) cell, which keeps
// the node visible to the collector, and compare-and-swap is performed
// by swapping whole cells under a value re-check loop. That loop has the
// same linearization and ABA behavior as a single-word CAS on a packed
// (pointer, mark) value, at the cost of one small allocation per
// successful mutation.
package mpointer

import "sync/atomic"

// Marked is a single atomic slot holding both a *T and its mark bit.
// The zero value holds a nil, unmarked pointer.
type Marked[T any] struct {
	cell atomic.Pointer[cell[T]]
}

// cell is an immutable snapshot of the slot. Cells are never mutated
// after publication; every state change installs a fresh one.
type cell[T any] struct {
	ptr  *T
	mark bool
}

func unpack[T any](c *cell[T]) (*T, bool) {
	if c == nil {
		return nil, false
	}
	return c.ptr, c.mark
}

func pack[T any](ptr *T, mark bool) *cell[T] {
	if ptr == nil && !mark {
		return nil
	}
	return &cell[T]{ptr: ptr, mark: mark}
}

// Store unconditionally sets the slot to (ptr, mark).
func (m *Marked[T]) Store(ptr *T, mark bool) {
	m.cell.Store(pack(ptr, mark))
}

// Load returns the current pointer and mark bit.
func (m *Marked[T]) Load() (*T, bool) {
	return unpack(m.cell.Load())
}

// Ptr is a convenience accessor returning only the pointer half.
func (m *Marked[T]) Ptr() *T {
	p, _ := m.Load()
	return p
}

// Marked reports whether the slot is currently logically deleted.
func (m *Marked[T]) Marked() bool {
	_, mk := m.Load()
	return mk
}

// CompareAndSwap atomically replaces (oldPtr, oldMark) with
// (newPtr, newMark), the primitive every insert/unlink/mark operation
// in list, splitlist and skiplist is built from. The comparison is by
// value: a concurrent writer installing an equal (pointer, mark) pair
// does not fail the swap, exactly as a CAS on a packed word would not.
func (m *Marked[T]) CompareAndSwap(oldPtr *T, oldMark bool, newPtr *T, newMark bool) bool {
	repl := pack(newPtr, newMark)
	for {
		cur := m.cell.Load()
		ptr, mark := unpack(cur)
		if ptr != oldPtr || mark != oldMark {
			return false
		}
		if m.cell.CompareAndSwap(cur, repl) {
			return true
		}
		// The cell changed under us; re-check whether the slot still
		// holds the expected value before giving up.
	}
}

// Mark logically deletes the slot: it moves from (expected, false) to
// (expected, true), leaving the pointer itself untouched. It fails if
// the slot no longer holds expected unmarked, which callers interpret
// as "someone else changed or deleted it first — restart".
func (m *Marked[T]) Mark(expected *T) bool {
	return m.CompareAndSwap(expected, false, expected, true)
}
