package mpointer

import (
	"runtime"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

type payload struct{ v int }

func TestZeroValueIsNilUnmarked(t *testing.T) {
	var m Marked[payload]
	p, marked := m.Load()
	require.Nil(t, p)
	require.False(t, marked)
	require.False(t, m.Marked())
}

func TestStoreLoadRoundTrip(t *testing.T) {
	var m Marked[payload]
	n := &payload{v: 7}

	m.Store(n, false)
	p, marked := m.Load()
	require.Same(t, n, p)
	require.False(t, marked)

	m.Store(n, true)
	p, marked = m.Load()
	require.Same(t, n, p)
	require.True(t, marked)
	require.Same(t, n, m.Ptr())
}

func TestCompareAndSwapChecksBothHalves(t *testing.T) {
	var m Marked[payload]
	a, b := &payload{v: 1}, &payload{v: 2}
	m.Store(a, false)

	// Wrong mark expectation fails even with the right pointer.
	require.False(t, m.CompareAndSwap(a, true, b, false))
	// Wrong pointer fails even with the right mark.
	require.False(t, m.CompareAndSwap(b, false, a, false))

	require.True(t, m.CompareAndSwap(a, false, b, true))
	p, marked := m.Load()
	require.Same(t, b, p)
	require.True(t, marked)
}

func TestCompareAndSwapToAndFromNil(t *testing.T) {
	var m Marked[payload]
	n := &payload{v: 3}

	require.True(t, m.CompareAndSwap(nil, false, n, false))
	require.True(t, m.CompareAndSwap(n, false, nil, false))
	p, marked := m.Load()
	require.Nil(t, p)
	require.False(t, marked)
}

func TestMarkIsOneShot(t *testing.T) {
	var m Marked[payload]
	n := &payload{}
	m.Store(n, false)

	require.True(t, m.Mark(n))
	require.False(t, m.Mark(n), "a second mark of the same slot must fail")
	require.True(t, m.Marked())
	require.Same(t, n, m.Ptr(), "marking must not disturb the pointer")
}

// TestConcurrentMarkExactlyOneWinner races many goroutines to mark one
// slot; the slot's CAS must admit exactly one.
func TestConcurrentMarkExactlyOneWinner(t *testing.T) {
	var m Marked[payload]
	n := &payload{}
	m.Store(n, false)

	const goroutines = 32
	var wg sync.WaitGroup
	wins := make(chan struct{}, goroutines)
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if m.Mark(n) {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	var count int
	for range wins {
		count++
	}
	require.Equal(t, 1, count)
}

type chainNode struct {
	val  int
	next Marked[chainNode]
}

// TestChainSurvivesGC links nodes to each other solely through Marked
// slots — the way every list and skip-list node is reachable once its
// operation's guard is released — drops every other reference, forces
// collection, and checks the chain is still intact. The slot must keep
// its target visible to the garbage collector.
func TestChainSurvivesGC(t *testing.T) {
	const chainLen = 100
	var head Marked[chainNode]
	var reclaimed atomic.Bool

	func() {
		nodes := make([]*chainNode, chainLen)
		for i := range nodes {
			nodes[i] = &chainNode{val: i}
		}
		for i := chainLen - 1; i > 0; i-- {
			// Mark every third link: marked targets must be retained too.
			nodes[i-1].next.Store(nodes[i], i%3 == 0)
		}
		head.Store(nodes[0], false)
		runtime.SetFinalizer(nodes[chainLen/2], func(*chainNode) { reclaimed.Store(true) })
	}()

	runtime.GC()
	runtime.GC()

	n := head.Ptr()
	for i := 0; i < chainLen; i++ {
		require.NotNil(t, n, "chain broken at node %d", i)
		require.Equal(t, i, n.val, "node %d corrupted", i)
		n, _ = n.next.Load()
	}
	require.Nil(t, n)
	require.False(t, reclaimed.Load(), "a node reachable only through Marked slots was collected")
}
