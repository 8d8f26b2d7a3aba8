package list

import "sync/atomic"

// Counter is the pluggable item counter: strict (always exact),
// cache-friendly (sharded to reduce write contention, eventually
// consistent between Add calls), or none. splitlist's emptiness
// contract is defined in terms of its counter, so a none counter is
// forbidden there; IsNone lets that package reject it at construction.
type Counter interface {
	Add(delta int64)
	Load() int64
	IsNone() bool
}

// StrictCounter is a single atomic int64: exact at every point in time,
// at the cost of every Insert/Erase contending on one cache line.
type StrictCounter struct {
	n atomic.Int64
}

func NewStrictCounter() *StrictCounter { return &StrictCounter{} }

func (c *StrictCounter) Add(delta int64) { c.n.Add(delta) }
func (c *StrictCounter) Load() int64     { return c.n.Load() }
func (c *StrictCounter) IsNone() bool    { return false }

// cacheLinePad sizes a shard to avoid false sharing between adjacent
// shards' atomic counters.
const cacheLinePad = 64 - 8

type shard struct {
	n   atomic.Int64
	_   [cacheLinePad]byte
}

// CacheFriendlyCounter shards its count across a fixed number of
// padded cells, hashed by goroutine-local entropy (approximated here
// by a round-robin atomic index, since Go exposes no portable
// goroutine ID). Load sums every shard, so it is only approximately
// current under concurrent Add calls — acceptable for a throughput
// counter.
type CacheFriendlyCounter struct {
	shards []shard
	next   atomic.Uint64
}

func NewCacheFriendlyCounter(shardCount int) *CacheFriendlyCounter {
	if shardCount <= 0 {
		shardCount = 16
	}
	return &CacheFriendlyCounter{shards: make([]shard, shardCount)}
}

func (c *CacheFriendlyCounter) Add(delta int64) {
	idx := c.next.Add(1) % uint64(len(c.shards))
	c.shards[idx].n.Add(delta)
}

func (c *CacheFriendlyCounter) Load() int64 {
	var total int64
	for i := range c.shards {
		total += c.shards[i].n.Load()
	}
	return total
}

func (c *CacheFriendlyCounter) IsNone() bool { return false }

// NoneCounter tracks nothing; Len() on a structure configured with it
// always reports 0. Valid for list on its own, forbidden for splitlist.
type NoneCounter struct{}

func (NoneCounter) Add(int64)    {}
func (NoneCounter) Load() int64  { return 0 }
func (NoneCounter) IsNone() bool { return true }
