package statusarea

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreateAttachRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fsa")
	area, err := Create(path, 2)
	require.NoError(t, err)
	defer area.Detach()

	host, err := area.Host(0)
	require.NoError(t, err)
	host.SetAlias("peer1")

	attached, err := Attach(path)
	require.NoError(t, err)
	defer attached.Detach()

	h2, err := attached.Host(0)
	require.NoError(t, err)
	require.Equal(t, "peer1", h2.AliasString())
}

func TestLockSerializesConcurrentWriters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fsa")
	area, err := Create(path, 1)
	require.NoError(t, err)
	defer area.Detach()

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := area.WithLock(0, RegionTFC, func(h *HostRecord) error {
				cur := h.TotalFileCounter
				h.TotalFileCounter = cur + 1
				return nil
			})
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	host, err := area.Host(0)
	require.NoError(t, err)
	require.Equal(t, int64(n), host.TotalFileCounter) // invariant I1
}

func TestStaleMappingDetected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fsa")
	area, err := Create(path, 1)
	require.NoError(t, err)
	defer area.Detach()

	// Dispatcher recreates the file out from under us.
	_, err = Create(path, 1)
	require.NoError(t, err)

	_, err = area.Lock(0, RegionCON)
	require.ErrorIs(t, err, ErrStaleMapping)
}

func TestErrorHistoryRingBuffer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fsa")
	area, err := Create(path, 1)
	require.NoError(t, err)
	defer area.Detach()

	err = area.WithLock(0, RegionEC, func(h *HostRecord) error {
		for i := 0; i < MaxErrorHistory+2; i++ {
			h.PushError(int32(500+i), "boom")
		}
		return nil
	})
	require.NoError(t, err)

	host, err := area.Host(0)
	require.NoError(t, err)
	recent := host.RecentErrors(3)
	require.Len(t, recent, 3)
	// Newest entry should be the last one pushed.
	require.Equal(t, int32(500+MaxErrorHistory+1), recent[0].Code)
}
