package list

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

func newMichael(t *testing.T) *MichaelList[int, string] {
	t.Helper()
	dom := hp.NewDomain[MichaelNode[int, string]](0, 0)
	return NewMichaelList[int, string](dom, Options[int]{Compare: intCmp})
}

func newLazy(t *testing.T) *LazyList[int, string] {
	t.Helper()
	dom := epoch.NewDomain[LazyNode[int, string]]()
	return NewLazyList[int, string](dom, Options[int]{Compare: intCmp})
}

func TestMichaelListFundamentals(t *testing.T) {
	l := newMichael(t)

	ok, err := l.Insert(5, "five")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = l.Insert(5, "five-again")
	require.NoError(t, err)
	require.False(t, ok, "duplicate insert must fail")

	found, err := l.Contains(5)
	require.NoError(t, err)
	require.True(t, found)

	found, err = l.Contains(6)
	require.NoError(t, err)
	require.False(t, found)

	ok, err = l.Erase(5, nil)
	require.NoError(t, err)
	require.True(t, ok)

	found, err = l.Contains(5)
	require.NoError(t, err)
	require.False(t, found)

	require.Equal(t, int64(0), l.Len())
}

func TestMichaelListIterateOrdered(t *testing.T) {
	l := newMichael(t)
	want := []int{3, 1, 4, 1, 5, 9, 2, 6}
	for _, k := range want {
		l.Insert(k, "")
	}
	sort.Ints(want)
	dedup := want[:0]
	for i, v := range want {
		if i == 0 || v != want[i-1] {
			dedup = append(dedup, v)
		}
	}

	var got []int
	l.Iterate(func(k int, _ string) bool {
		got = append(got, k)
		return true
	})
	require.Equal(t, dedup, got)
}

func TestLazyListFundamentals(t *testing.T) {
	l := newLazy(t)

	ok, err := l.Insert(1, "one")
	require.NoError(t, err)
	require.True(t, ok)

	ref, found, err := l.Get(1)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "one", ref.Value())
	ref.Release()

	ok, err = l.Erase(1, nil)
	require.NoError(t, err)
	require.True(t, ok)
}

// TestConcurrentInsertErase hammers the list with overlapping
// inserts/erases from many goroutines, then checks invariants once
// everything settles.
func TestConcurrentInsertErase(t *testing.T) {
	const goroutines = 16
	const perGoroutine = 200

	l := newMichael(t)
	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				key := base*perGoroutine + i
				l.Insert(key, "v")
				l.Contains(key)
				l.Erase(key, nil)
			}
		}(g)
	}
	wg.Wait()
	require.Equal(t, int64(0), l.Len())
}

func TestMichaelListUpdate(t *testing.T) {
	l := newMichael(t)

	ok, inserted, err := l.Update(1, "one", nil, true)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, inserted)

	ok, inserted, err = l.Update(1, "uno", func(existing *string, newVal string) {
		*existing = newVal
	}, true)
	require.NoError(t, err)
	require.True(t, ok)
	require.False(t, inserted)

	var got string
	found, err := l.Find(1, func(v string) { got = v })
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "uno", got)

	ok, inserted, err = l.Update(2, "two", nil, false)
	require.NoError(t, err)
	require.False(t, ok)
	require.False(t, inserted)
}

func TestMichaelListInsertWithRunsInitBeforeCommit(t *testing.T) {
	l := newMichael(t)

	ok, err := l.InsertWith(4, "raw", func(v *string) { *v = "initialized" })
	require.NoError(t, err)
	require.True(t, ok)

	var got string
	found, err := l.Find(4, func(v string) { got = v })
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "initialized", got)
}

func TestMichaelListUnlinkRequiresSameNode(t *testing.T) {
	l := newMichael(t)
	l.Insert(3, "three")

	ref, found, err := l.Get(3)
	require.NoError(t, err)
	require.True(t, found)

	ok, err := l.Erase(3, nil)
	require.NoError(t, err)
	require.True(t, ok)
	l.Insert(3, "replacement")

	ok, err = l.Unlink(3, ref)
	require.NoError(t, err)
	require.False(t, ok, "a stale ref must not unlink the replacement node")
	ref.Release()

	fresh, found, err := l.Get(3)
	require.NoError(t, err)
	require.True(t, found)
	ok, err = l.Unlink(3, fresh)
	require.NoError(t, err)
	require.True(t, ok)
	fresh.Release()
}

func TestLazyListConcurrentInsertErase(t *testing.T) {
	l := newLazy(t)
	const goroutines = 16
	const perGoroutine = 200

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				key := base*perGoroutine + i
				l.Insert(key, "v")
				l.Contains(key)
				l.Erase(key, nil)
			}
		}(g)
	}
	wg.Wait()
	require.Equal(t, int64(0), l.Len())
}

// TestEraseDuringInsertNeverLeavesZombie races an inserter against an
// eraser on one key: at quiescence either the erase won exactly once
// and the key is gone, or it never succeeded and the key is present —
// never a reachable-but-marked leftover.
func TestEraseDuringInsertNeverLeavesZombie(t *testing.T) {
	const rounds = 300
	l := newMichael(t)

	for r := 0; r < rounds; r++ {
		var wg sync.WaitGroup
		var erases atomic.Int32
		wg.Add(2)
		go func() {
			defer wg.Done()
			l.Insert(r, "v")
		}()
		go func() {
			defer wg.Done()
			for i := 0; i < 3; i++ {
				if ok, _ := l.Erase(r, nil); ok {
					erases.Add(1)
					return
				}
			}
		}()
		wg.Wait()

		found, err := l.Contains(r)
		require.NoError(t, err)
		if found {
			require.Equal(t, int32(0), erases.Load(), "round %d: key present but an erase succeeded", r)
			ok, err := l.Erase(r, nil)
			require.NoError(t, err)
			require.True(t, ok)
		} else {
			require.Equal(t, int32(1), erases.Load(), "round %d: key absent but no erase succeeded", r)
		}
	}
	require.Equal(t, int64(0), l.Len())
}

func TestMichaelListExtractReleasesReference(t *testing.T) {
	l := newMichael(t)
	l.Insert(7, "seven")

	ref, ok, err := l.Extract(7)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "seven", ref.Value())
	ref.Release()

	found, err := l.Contains(7)
	require.NoError(t, err)
	require.False(t, found)
}
