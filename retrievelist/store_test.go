package retrievelist

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParallelClaimIsExclusive(t *testing.T) {
	// Scenario 1 (spec.md §8 scenario 3): two workers share a directory
	// with 3 files; each file must be retrieved exactly once.
	path := filepath.Join(t.TempDir(), "rl")
	store, err := Create(path, 3, Policy{})
	require.NoError(t, err)
	defer store.Detach(true)

	store.Iterate(func(i int, e *Entry) bool {
		e.SetFileName("file")
		e.InList = 1
		return true
	})

	claims := make([]int, 3)
	var wg sync.WaitGroup
	for slot := 0; slot < 2; slot++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			for i := 0; i < 3; i++ {
				if err := store.Claim(i, slot); err == nil {
					claims[i] = slot + 1
					store.MarkRetrieved(i)
				}
			}
		}(slot)
	}
	wg.Wait()

	for i, owner := range claims {
		require.NotZero(t, owner, "entry %d was never claimed", i)
	}

	store.Iterate(func(i int, e *Entry) bool {
		require.True(t, e.IsRetrieved())
		require.Zero(t, e.Assigned) // I3: retrieved ⇒ assigned = 0
		return true
	})
}

func TestReleaseAllOwnedByEnforcesI5(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rl")
	store, err := Create(path, 4, Policy{})
	require.NoError(t, err)
	defer store.Detach(true)

	for i := 0; i < 3; i++ {
		require.NoError(t, store.Claim(i, 2))
	}
	require.NoError(t, store.Claim(3, 5))

	cleared := store.ReleaseAllOwnedBy(2)
	require.Equal(t, 3, cleared)

	store.Iterate(func(i int, e *Entry) bool {
		if i == 3 {
			require.EqualValues(t, 6, e.Assigned)
		} else {
			require.Zero(t, e.Assigned) // P3
		}
		return true
	})
}

func TestDetachRemovesFileUnderStupidMode(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rl")
	store, err := Create(path, 1, Policy{Stupid: true})
	require.NoError(t, err)
	require.NoError(t, store.Detach(false))

	_, err = Attach(path, 1, Policy{Stupid: true})
	require.NoError(t, err) // Attach lazily recreates if missing
}

func TestCompactDropsRetrievedAndGoneEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rl")
	store, err := Create(path, 4, Policy{})
	require.NoError(t, err)

	store.Iterate(func(i int, e *Entry) bool {
		e.SetFileName("f")
		e.InList = 1
		return true
	})
	require.NoError(t, store.MarkRetrieved(0))
	var e0 *Entry
	store.Iterate(func(i int, e *Entry) bool {
		if i == 0 {
			e0 = e
		}
		return true
	})
	e0.SetInList(false)

	require.NoError(t, store.Compact())
	require.Equal(t, 3, store.Len())
	defer store.Detach(true)
}
