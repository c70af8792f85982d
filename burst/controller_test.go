package burst

import (
	"context"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/afdcore/afdcore/internal/fifo"
	"github.com/afdcore/afdcore/protocol"
)

func TestLimitsShouldStop(t *testing.T) {
	connectedAt := time.Now().Add(-2 * time.Second)

	require.True(t, Limits{KeepConnectedDisconnect: true, KeepConnected: time.Second}.ShouldStop(connectedAt))
	require.False(t, Limits{KeepConnectedDisconnect: true, KeepConnected: time.Hour}.ShouldStop(connectedAt))
	require.True(t, Limits{Disconnect: time.Second}.ShouldStop(connectedAt))
	require.False(t, Limits{}.ShouldStop(connectedAt))
}

func TestCheckBurstWithoutProbeFifoReturnsNo(t *testing.T) {
	c := &Controller{}
	decision, changed, next, err := c.CheckBurst(context.Background(), Limits{}, time.Now())
	require.NoError(t, err)
	require.Equal(t, BurstNo, decision)
	require.Zero(t, changed)
	require.Nil(t, next)
}

func TestCheckBurstDecodesReplyByte(t *testing.T) {
	dir := t.TempDir()
	probePath := dir + "/probe"
	replyPath := dir + "/reply"
	require.NoError(t, syscall.Mkfifo(probePath, 0o600))
	require.NoError(t, syscall.Mkfifo(replyPath, 0o600))

	// Opening a FIFO for read/write blocks until the opposite end is also
	// open, so each pair must be opened from separate goroutines.
	probeWriterCh := make(chan *fifo.Writer, 1)
	go func() {
		w, err := fifo.OpenWriter(probePath, false)
		require.NoError(t, err)
		probeWriterCh <- w
	}()
	probeReader, err := fifo.OpenReader(probePath, false)
	require.NoError(t, err)
	defer probeReader.Close()
	probeWriter := <-probeWriterCh
	defer probeWriter.Close()

	replyReaderCh := make(chan *fifo.Reader, 1)
	go func() {
		r, err := fifo.OpenReader(replyPath, false)
		require.NoError(t, err)
		replyReaderCh <- r
	}()
	replyWriter, err := fifo.OpenWriter(replyPath, false)
	require.NoError(t, err)
	defer replyWriter.Close()
	replyReader := <-replyReaderCh
	defer replyReader.Close()

	go func() {
		probeReader.ReadByte()
		replyWriter.WriteLine([]byte{2})
	}()

	c := &Controller{Probe: probeWriter, Replies: replyReader}
	decision, _, _, err := c.CheckBurst(context.Background(), Limits{}, time.Now())
	require.NoError(t, err)
	require.Equal(t, BurstRescanSource, decision)
}

type fakeAdapter struct {
	protocol.Adapter
	quitCalls, authCalls, cdCalls int
	authUser                      string
	failAuth                      bool
}

func (f *fakeAdapter) Quit(ctx context.Context) error { f.quitCalls++; return nil }

func (f *fakeAdapter) Authenticate(ctx context.Context, user, secret string, method protocol.AuthMethod) (protocol.Status, error) {
	f.authCalls++
	f.authUser = user
	if f.failAuth {
		return protocol.Status{Kind: protocol.StatusProtocolErr}, errFakeAuth
	}
	return protocol.Status{Kind: protocol.StatusSuccess}, nil
}

func (f *fakeAdapter) Cd(ctx context.Context, path string, create bool, mode int) (string, protocol.Status, error) {
	f.cdCalls++
	return "", protocol.Status{Kind: protocol.StatusSuccess}, nil
}

var errFakeAuth = errAuthFailed{}

type errAuthFailed struct{}

func (errAuthFailed) Error() string { return "fake auth failure" }

func TestReplayReconnectsOnUserChange(t *testing.T) {
	orig := &fakeAdapter{}
	next := &fakeAdapter{}
	c := &Controller{}

	adapter, err := c.Replay(context.Background(), orig, UserChanged, Job{User: "bob"},
		func(ctx context.Context) (protocol.Adapter, error) { return next, nil })
	require.NoError(t, err)
	require.Same(t, next, adapter)
	require.Equal(t, 1, orig.quitCalls)
	require.Equal(t, 1, next.authCalls)
	require.Equal(t, "bob", next.authUser)
}

func TestReplayEnforcesSingleUserChangeRetry(t *testing.T) {
	orig := &fakeAdapter{}
	c := &Controller{retriedUserChange: true}

	_, err := c.Replay(context.Background(), orig, UserChanged, Job{User: "bob"},
		func(ctx context.Context) (protocol.Adapter, error) { return &fakeAdapter{}, nil })
	require.Error(t, err)
}

func TestReplayCdsOnTargetDirChange(t *testing.T) {
	orig := &fakeAdapter{}
	c := &Controller{}

	_, err := c.Replay(context.Background(), orig, TargetDirChanged, Job{TargetDir: "/new"}, nil)
	require.NoError(t, err)
	require.Equal(t, 1, orig.cdCalls)
}
