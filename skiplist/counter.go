package skiplist

import "sync/atomic"

// Counter tracks the live element count the same way list.Counter
// does for the ordered-list variants: strict (always exact) or none.
// Skip-list keeps its own copy of this contract rather than importing
// package list, since it shares only the mpointer/smr building
// blocks, not list's own types.
type Counter interface {
	Add(delta int64)
	Load() int64
	IsNone() bool
}

// StrictCounter is a single atomic int64.
type StrictCounter struct {
	n atomic.Int64
}

func NewStrictCounter() *StrictCounter { return &StrictCounter{} }

func (c *StrictCounter) Add(delta int64) { c.n.Add(delta) }
func (c *StrictCounter) Load() int64     { return c.n.Load() }
func (c *StrictCounter) IsNone() bool    { return false }

// NoneCounter tracks nothing; Len() always reports 0.
type NoneCounter struct{}

func (NoneCounter) Add(int64)    {}
func (NoneCounter) Load() int64  { return 0 }
func (NoneCounter) IsNone() bool { return true }
