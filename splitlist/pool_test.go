package splitlist

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTaggedFreeListLIFO(t *testing.T) {
	f := NewTaggedFreeList(8)

	_, ok := f.Pop()
	require.False(t, ok, "fresh free-list must be empty")

	f.Push(3)
	f.Push(5)
	idx, ok := f.Pop()
	require.True(t, ok)
	require.Equal(t, uint32(5), idx)
	idx, ok = f.Pop()
	require.True(t, ok)
	require.Equal(t, uint32(3), idx)
	_, ok = f.Pop()
	require.False(t, ok)
}

func TestTaggedFreeListConcurrentPushPop(t *testing.T) {
	const capacity = 64
	f := NewTaggedFreeList(capacity)
	for i := uint32(0); i < capacity; i++ {
		f.Push(i)
	}

	const goroutines = 8
	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				if idx, ok := f.Pop(); ok {
					f.Push(idx)
				}
			}
		}()
	}
	wg.Wait()

	seen := make(map[uint32]bool)
	for {
		idx, ok := f.Pop()
		if !ok {
			break
		}
		require.False(t, seen[idx], "index %d popped twice", idx)
		seen[idx] = true
	}
	require.Len(t, seen, capacity, "every index must survive the churn exactly once")
}

func TestDummyPoolBumpThenFreeList(t *testing.T) {
	p := newDummyPool(2, nil)

	a, err := p.acquire()
	require.NoError(t, err)
	b, err := p.acquire()
	require.NoError(t, err)
	require.NotEqual(t, a, b)

	_, err = p.acquire()
	require.ErrorIs(t, err, ErrBucketsExhausted)

	p.release(a)
	c, err := p.acquire()
	require.NoError(t, err)
	require.Equal(t, a, c, "released slot must be recycled")

	require.Equal(t, uint32(2), p.allocated())
}

func TestSingleBucketBudgetNeedsNoFurtherDummies(t *testing.T) {
	dom := newIntDomain()
	s, err := NewMichaelSet[int, string](dom, Options[int]{
		Compare:         intCmp,
		Hash:            constantHasher{},
		EncodeKey:       encodeInt,
		InitialCapacity: 1,
		MaxBucketCount:  1,
	})
	require.NoError(t, err)

	// Bucket 0 consumed the single pooled dummy at construction; the
	// capacity can never double, so every key lands in bucket 0 and no
	// operation should ever need another dummy.
	ok, err := s.Insert(1, "one")
	require.NoError(t, err)
	require.True(t, ok)
	found, err := s.Contains(1)
	require.NoError(t, err)
	require.True(t, found)
}
