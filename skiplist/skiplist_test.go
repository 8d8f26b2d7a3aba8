package skiplist

import (
	"sort"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gaarutyunov/cds-go/smr/epoch"
	"github.com/gaarutyunov/cds-go/smr/hp"
)

func intCmp(a, b int) int { return a - b }

func newSkipListHP(t *testing.T) *SkipList[int, string] {
	t.Helper()
	dom := hp.NewDomain[Node[int, string]](0, 0)
	s, err := NewSkipList[int, string](dom, Options[int]{Compare: intCmp})
	require.NoError(t, err)
	return s
}

func newSkipListEpoch(t *testing.T) *SkipList[int, string] {
	t.Helper()
	dom := epoch.NewDomain[Node[int, string]]()
	s, err := NewSkipList[int, string](dom, Options[int]{Compare: intCmp})
	require.NoError(t, err)
	return s
}

func TestSkipListFundamentals(t *testing.T) {
	s := newSkipListHP(t)

	ok, err := s.Insert(10, "ten")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.Insert(10, "ten-again")
	require.NoError(t, err)
	require.False(t, ok)

	found, err := s.Contains(10)
	require.NoError(t, err)
	require.True(t, found)

	ok, err = s.Erase(10, nil)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(0), s.Len())
}

func TestSkipListExtractMinMonotonic(t *testing.T) {
	s := newSkipListHP(t)
	keys := []int{5, 3, 8, 1, 9, 2, 7, 4, 6}
	for _, k := range keys {
		_, err := s.Insert(k, "")
		require.NoError(t, err)
	}

	var extracted []int
	for {
		k, ref, ok, err := s.ExtractMin()
		require.NoError(t, err)
		if !ok {
			break
		}
		ref.Release()
		extracted = append(extracted, k)
	}
	require.True(t, sort.IntsAreSorted(extracted))
	require.Len(t, extracted, len(keys))
}

func TestSkipListExtractMax(t *testing.T) {
	s := newSkipListHP(t)
	for _, k := range []int{5, 3, 8, 1, 9} {
		s.Insert(k, "")
	}
	k, ref, ok, err := s.ExtractMax()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 9, k)
	ref.Release()

	found, _ := s.Contains(9)
	require.False(t, found)
}

func TestSkipListFindFast(t *testing.T) {
	s := newSkipListHP(t)
	for i := 0; i < 500; i++ {
		s.Insert(i, "v")
	}
	for i := 0; i < 500; i++ {
		var got string
		ok, err := s.FindFast(i, func(v string) { got = v })
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, "v", got)
	}
	ok, err := s.FindFast(10000, nil)
	require.NoError(t, err)
	require.False(t, ok)
}

// TestSkipListHelpingUnderContention fans out concurrent inserters and
// erasers over a small, deliberately contended key range so that
// find's helping path (marked-node CAS unlink while another goroutine
// is mid-traversal) is exercised on both SMR backends.
func TestSkipListHelpingUnderContention(t *testing.T) {
	for _, newList := range []func(*testing.T) *SkipList[int, string]{newSkipListHP, newSkipListEpoch} {
		s := newList(t)
		const goroutines = 16
		const keyRange = 32
		const perGoroutine = 500

		var wg sync.WaitGroup
		for g := 0; g < goroutines; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < perGoroutine; i++ {
					key := i % keyRange
					s.Insert(key, "v")
					s.Contains(key)
					s.Erase(key, nil)
				}
			}()
		}
		wg.Wait()

		// Drain whatever is left so Len() is verifiable.
		for {
			_, ref, ok, _ := s.ExtractMin()
			if !ok {
				break
			}
			ref.Release()
		}
		require.Equal(t, int64(0), s.Len())
	}
}

func TestSkipListUpdate(t *testing.T) {
	s := newSkipListHP(t)

	ok, inserted, err := s.Update(1, "one", nil, true)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, inserted)

	ok, inserted, err = s.Update(1, "uno", func(existing *string, newVal string) {
		*existing = newVal
	}, true)
	require.NoError(t, err)
	require.True(t, ok)
	require.False(t, inserted)

	var got string
	found, err := s.Find(1, func(v string) { got = v })
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "uno", got)

	ok, inserted, err = s.Update(2, "two", nil, false)
	require.NoError(t, err)
	require.False(t, ok)
	require.False(t, inserted)
}

func TestSkipListUnlinkRequiresSameNode(t *testing.T) {
	s := newSkipListHP(t)
	s.Insert(3, "three")

	ref, found, err := s.Get(3)
	require.NoError(t, err)
	require.True(t, found)

	// Replace the node behind the key; the stale ref must not unlink
	// the replacement.
	ok, err := s.Erase(3, nil)
	require.NoError(t, err)
	require.True(t, ok)
	_, err = s.Insert(3, "replacement")
	require.NoError(t, err)

	ok, err = s.Unlink(3, ref)
	require.NoError(t, err)
	require.False(t, ok)
	ref.Release()

	fresh, found, err := s.Get(3)
	require.NoError(t, err)
	require.True(t, found)
	ok, err = s.Unlink(3, fresh)
	require.NoError(t, err)
	require.True(t, ok)
	fresh.Release()

	require.True(t, s.IsEmpty())
}

// TestSkipListConcurrentEraseSingleWinner races many goroutines to
// erase the same key; exactly one may report success.
func TestSkipListConcurrentEraseSingleWinner(t *testing.T) {
	s := newSkipListHP(t)
	const rounds = 200
	const goroutines = 8

	for r := 0; r < rounds; r++ {
		_, err := s.Insert(r, "v")
		require.NoError(t, err)

		var wg sync.WaitGroup
		var successes atomic.Int32
		for g := 0; g < goroutines; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if ok, _ := s.Erase(r, nil); ok {
					successes.Add(1)
				}
			}()
		}
		wg.Wait()
		require.Equal(t, int32(1), successes.Load(), "round %d", r)

		found, err := s.Contains(r)
		require.NoError(t, err)
		require.False(t, found)
	}
	require.Equal(t, int64(0), s.Len())
}

func TestSkipListIterateOrdered(t *testing.T) {
	s := newSkipListHP(t)
	want := []int{3, 1, 4, 1, 5, 9, 2, 6}
	for _, k := range want {
		s.Insert(k, "")
	}
	sort.Ints(want)
	dedup := want[:0]
	for i, v := range want {
		if i == 0 || v != want[i-1] {
			dedup = append(dedup, v)
		}
	}
	var got []int
	s.Iterate(func(k int, _ string) bool {
		got = append(got, k)
		return true
	})
	require.Equal(t, dedup, got)
}
