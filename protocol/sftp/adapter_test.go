package sftp

import (
	"errors"
	"testing"

	"github.com/pkg/sftp"
	"github.com/stretchr/testify/require"

	"github.com/afdcore/afdcore/protocol"
)

func TestStatusFromErrMapsNotExist(t *testing.T) {
	s := statusFromErr(sftp.ErrSSHFxNoSuchFile)
	require.Equal(t, protocol.StatusNoSuchFile, s.Kind)
}

func TestStatusFromErrDefaultsToProtocolErr(t *testing.T) {
	s := statusFromErr(errors.New("connection refused"))
	require.Equal(t, protocol.StatusProtocolErr, s.Kind)
}

func TestStatusFromErrNil(t *testing.T) {
	require.Equal(t, protocol.StatusSuccess, statusFromErr(nil).Kind)
}

func TestParentDir(t *testing.T) {
	require.Equal(t, "/a/b", parentDir("/a/b/c.bin"))
	require.Equal(t, ".", parentDir("c.bin"))
}
