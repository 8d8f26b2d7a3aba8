package splitlist

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReverseBitsKnownValues(t *testing.T) {
	require.Equal(t, uint64(0), ReverseBitsLookup(0))
	require.Equal(t, uint64(1)<<63, ReverseBitsLookup(1))
	require.Equal(t, uint64(1), ReverseBitsLookup(uint64(1)<<63))
	require.Equal(t, ^uint64(0), ReverseBitsLookup(^uint64(0)))
}

func TestReverseBitsIsAnInvolution(t *testing.T) {
	for _, v := range []uint64{0, 1, 42, 0xDEADBEEF, 1 << 33, ^uint64(0)} {
		require.Equal(t, v, ReverseBitsLookup(ReverseBitsLookup(v)))
		require.Equal(t, v, ReverseBitsNaive(ReverseBitsNaive(v)))
	}
}

func TestDummyOrderPrecedesRealOrderForSameBucket(t *testing.T) {
	// A real key hashing exactly to a bucket index must sort after that
	// bucket's dummy: same reversed prefix, but the low bit differs.
	for _, b := range []uint64{0, 1, 2, 3, 7, 100} {
		d := dummyOrder(ReverseBitsLookup, b)
		r := splitOrder(ReverseBitsLookup, b)
		require.Equal(t, uint64(0), d&1, "dummy orders are even")
		require.Equal(t, uint64(1), r&1, "real orders are odd")
		require.Less(t, d, r)
	}
}

func TestParentBucketClearsHighestBit(t *testing.T) {
	cases := map[uint64]uint64{
		1: 0, 2: 0, 3: 1, 4: 0, 5: 1, 6: 2, 7: 3, 8: 0, 100: 36,
	}
	for bucket, parent := range cases {
		require.Equal(t, parent, parentBucket(bucket), "bucket %d", bucket)
	}
}

func TestParentChainTerminatesAtZero(t *testing.T) {
	for _, start := range []uint64{1, 7, 255, 1 << 30} {
		b := start
		steps := 0
		for b != 0 {
			next := parentBucket(b)
			require.Less(t, next, b, "parent must strictly decrease")
			b = next
			steps++
			require.LessOrEqual(t, steps, 64)
		}
	}
}

// TestRawListOrderMatchesSplitOrder checks the core split-ordering
// property: after inserting keys whose hashes are 0..7 into a small
// table, the shared list's real nodes appear in strictly increasing
// split-order, which is exactly the sorted multiset of reversed
// hashes with the low bit set.
func TestRawListOrderMatchesSplitOrder(t *testing.T) {
	dom := newIntDomain()
	s, err := NewMichaelSet[int, string](dom, Options[int]{
		Compare:         intCmp,
		Hash:            identityHasher{},
		EncodeKey:       encodeInt,
		InitialCapacity: 4,
		LoadFactor:      100, // keep capacity fixed for the assertion
	})
	require.NoError(t, err)

	hashes := []int{0, 1, 2, 3, 4, 5, 6, 7}
	for _, h := range hashes {
		ok, err := s.Insert(h, "")
		require.NoError(t, err)
		require.True(t, ok)
	}

	var got []uint64
	s.shared.Iterate(func(k splitOrderKey[int], _ string) bool {
		if !k.dummy {
			got = append(got, k.order)
		}
		return true
	})

	want := make([]uint64, 0, len(hashes))
	for _, h := range hashes {
		want = append(want, splitOrder(ReverseBitsLookup, uint64(h)))
	}
	sort.Slice(want, func(i, j int) bool { return want[i] < want[j] })

	require.Equal(t, want, got)
	for i := 1; i < len(got); i++ {
		require.Less(t, got[i-1], got[i], "raw list order must be strictly increasing")
	}
}

// TestDummiesInterleaveBuckets walks the raw list and checks every real
// node is preceded (not necessarily immediately) by its own bucket's
// dummy, i.e. buckets are contiguous runs behind their dummy head.
func TestDummiesInterleaveBuckets(t *testing.T) {
	dom := newIntDomain()
	s, err := NewMichaelSet[int, string](dom, Options[int]{
		Compare:         intCmp,
		Hash:            identityHasher{},
		EncodeKey:       encodeInt,
		InitialCapacity: 4,
		LoadFactor:      100,
	})
	require.NoError(t, err)

	for h := 0; h < 16; h++ {
		_, err := s.Insert(h, "")
		require.NoError(t, err)
	}

	var lastDummy uint64
	sawDummy := false
	s.shared.Iterate(func(k splitOrderKey[int], _ string) bool {
		if k.dummy {
			lastDummy = k.order
			sawDummy = true
			return true
		}
		require.True(t, sawDummy, "a real node appeared before any dummy")
		require.Less(t, lastDummy, k.order, "a real node must follow its bucket dummy")
		require.Equal(t, dummyOrder(ReverseBitsLookup, uint64(k.key)&(s.Capacity()-1)), lastDummy,
			"key %d must sit in its own bucket's run", k.key)
		return true
	})
}
