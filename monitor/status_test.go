package monitor

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreateAttachStatusRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "afd_mon_status")

	s, err := CreateStatus(path, 100, 101, 102)
	require.NoError(t, err)
	rec := s.Record()
	require.Equal(t, int32(100), rec.AFDMon)
	require.Equal(t, int32(101), rec.MonSysLog)
	require.Equal(t, int32(102), rec.MonLog)
	require.NotZero(t, rec.StartTime)
	require.NoError(t, s.Detach())

	attached, err := AttachStatus(path)
	require.NoError(t, err)
	defer attached.Detach()
	require.Equal(t, int32(100), attached.Record().AFDMon)
	require.Equal(t, int32(102), attached.Record().MonLog)
}

func TestStatusDetachIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "afd_mon_status")
	s, err := CreateStatus(path, 1, 2, 3)
	require.NoError(t, err)
	require.NoError(t, s.Detach())
	require.NoError(t, s.Detach())
}

func TestWriteReadActiveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mon_active")
	in := Active{
		OwnPID:    10,
		SysLogPID: 11,
		MonLogPID: 12,
		Peers: []ActivePeer{
			{MonPID: 20, LogPID: 21},
			{MonPID: 30, LogPID: 31},
		},
	}
	require.NoError(t, WriteActive(path, in))

	out, err := ReadActive(path)
	require.NoError(t, err)
	require.Equal(t, in, out)
}

func TestReadActiveTruncated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mon_active")
	in := Active{OwnPID: 1, Peers: []ActivePeer{{MonPID: 2, LogPID: 3}}}
	require.NoError(t, WriteActive(path, in))

	_, err := ReadActive(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}
