package splitlist

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gaarutyunov/cds-go/list"
)

func TestStaticTableBounds(t *testing.T) {
	tb := NewStaticTable[string](4)
	require.EqualValues(t, 4, tb.Cap())

	require.NoError(t, tb.EnsureCapacity(3))
	require.ErrorIs(t, tb.EnsureCapacity(4), ErrBucketsExhausted)

	require.Nil(t, tb.Load(2))
	a := &list.Anchor[string]{}
	tb.Store(2, a)
	require.Same(t, a, tb.Load(2))
}

func TestExpandableTableAllocatesSegmentsLazily(t *testing.T) {
	tb := NewExpandableTable[string](4, 8)
	require.EqualValues(t, 32, tb.Cap())

	require.Nil(t, tb.Load(17), "untouched segment must read as empty")
	require.NoError(t, tb.EnsureCapacity(17))
	require.Nil(t, tb.Load(17), "slot still empty after segment allocation")

	a := &list.Anchor[string]{}
	tb.Store(17, a)
	require.Same(t, a, tb.Load(17))
	require.Nil(t, tb.Load(16), "neighbors in the same segment stay empty")

	require.ErrorIs(t, tb.EnsureCapacity(32), ErrBucketsExhausted)
}

// TestExpandableTableSegmentRace has many goroutines ensure the same
// fresh segment at once; all must end up observing one winner.
func TestExpandableTableSegmentRace(t *testing.T) {
	tb := NewExpandableTable[string](2, 64)

	var wg sync.WaitGroup
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, tb.EnsureCapacity(70))
		}()
	}
	wg.Wait()

	a := &list.Anchor[string]{}
	tb.Store(70, a)
	require.Same(t, a, tb.Load(70))
}
