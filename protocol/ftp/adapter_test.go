package ftp

import (
	"errors"
	"testing"

	ftpclient "github.com/afdcore/afdcore/ftpclient"
	"github.com/afdcore/afdcore/protocol"
	"github.com/stretchr/testify/require"
)

func TestStatusFromErrMapsKnownCodes(t *testing.T) {
	s := statusFromErr(&ftpclient.ProtocolError{Code: 550, Response: "550 no such file"})
	require.Equal(t, protocol.StatusNoSuchFile, s.Kind)
	require.Equal(t, 550, s.Code)

	s = statusFromErr(&ftpclient.ProtocolError{Code: 421, Response: "421 timeout"})
	require.Equal(t, protocol.StatusTransportClosed, s.Kind)

	s = statusFromErr(&ftpclient.ProtocolError{Code: 530, Response: "530 not logged in"})
	require.Equal(t, protocol.StatusProtocolErr, s.Kind)
	require.Equal(t, 530, s.Code)
}

func TestStatusFromErrNonProtocolError(t *testing.T) {
	s := statusFromErr(errors.New("connection reset"))
	require.Equal(t, protocol.StatusTransportClosed, s.Kind)
}

func TestStatusFromErrNil(t *testing.T) {
	s := statusFromErr(nil)
	require.Equal(t, protocol.StatusSuccess, s.Kind)
}

func TestNewBuildsAdapterWithTLSMode(t *testing.T) {
	a := New(ExplicitTLS, nil, true, false)
	require.Equal(t, ExplicitTLS, a.mode)
	require.True(t, a.activeMode)
	require.False(t, a.disableEPSV)
}
