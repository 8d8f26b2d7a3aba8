// Package skiplist implements a lock-free skip-list: towers of marked
// next-pointers, geometric height sampling, and a top-down find that
// helps unlink any marked node it passes through. It shares the
// mpointer/smr building blocks with package list but is otherwise
// independent — it is not layered on the ordered list.
package skiplist

import (
	"math/rand/v2"

	"github.com/gaarutyunov/cds-go/mpointer"
)

// MaxHeight bounds a tower's height.
const MaxHeight = 32

// Node is one skip-list element: a tower of height marked next
// pointers, one per level, populated bottom-up at insert time.
type Node[K any, V any] struct {
	key    K
	value  V
	height int32
	next   [MaxHeight]mpointer.Marked[Node[K, V]]
}

// randomHeight samples a geometric distribution P(height=k) = p^(k-1)(1-p),
// the default p=0.5 giving P(height=k) = 2^-k, capped at MaxHeight.
func randomHeight(p float64) int32 {
	h := int32(1)
	for h < MaxHeight && rand.Float64() < p {
		h++
	}
	return h
}

// fullyMarked reports whether every level of n's tower up to its own
// height is marked — the condition under which n is safe to retire.
func (n *Node[K, V]) fullyMarked() bool {
	for level := int32(0); level < n.height; level++ {
		if _, marked := n.next[level].Load(); !marked {
			return false
		}
	}
	return true
}
