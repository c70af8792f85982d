package httpproto

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/afdcore/afdcore/protocol"
)

func connectTo(t *testing.T, a *Adapter, srv *httptest.Server) {
	t.Helper()
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)
	status, err := a.Connect(context.Background(), u.Hostname(), port, protocol.Tuning{})
	require.NoError(t, err)
	require.Equal(t, protocol.StatusSuccess, status.Kind)
}

func TestStatReadsContentLengthAndLastModified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Last-Modified", "Mon, 02 Jan 2006 15:04:05 GMT")
		w.Header().Set("Content-Length", "42")
	}))
	defer srv.Close()

	a := New()
	connectTo(t, a, srv)

	size, mtime, status, err := a.Stat(context.Background(), "/a.bin")
	require.NoError(t, err)
	require.Equal(t, protocol.StatusSuccess, status.Kind)
	require.Equal(t, int64(42), size)
	require.False(t, mtime.IsZero())
}

func TestStatMapsNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	a := New()
	connectTo(t, a, srv)

	_, _, status, err := a.Stat(context.Background(), "/missing.bin")
	require.Error(t, err)
	require.Equal(t, protocol.StatusNoSuchFile, status.Kind)
}

func TestOpenReadStreamsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "payload bytes")
	}))
	defer srv.Close()

	a := New()
	connectTo(t, a, srv)

	h, status, err := a.Open(context.Background(), "/a.bin", protocol.OpenRead, 0)
	require.NoError(t, err)
	require.Equal(t, protocol.StatusSuccess, status.Kind)
	data, err := io.ReadAll(h)
	require.NoError(t, err)
	require.Equal(t, "payload bytes", string(data))
	require.NoError(t, h.Close())
}

func TestOpenWritePutsBodyThrough(t *testing.T) {
	received := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		received <- string(body)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	a := New()
	connectTo(t, a, srv)

	h, status, err := a.Open(context.Background(), "/a.bin", protocol.OpenWrite, 0)
	require.NoError(t, err)
	require.Equal(t, protocol.StatusSuccess, status.Kind)

	_, err = h.Write([]byte("uploaded"))
	require.NoError(t, err)
	require.NoError(t, h.Close())
	require.Equal(t, "uploaded", <-received)
}

func TestDeleteIssuesDeleteRequest(t *testing.T) {
	var method string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
	}))
	defer srv.Close()

	a := New()
	connectTo(t, a, srv)

	status, err := a.Delete(context.Background(), "/a.bin")
	require.NoError(t, err)
	require.Equal(t, protocol.StatusSuccess, status.Kind)
	require.Equal(t, http.MethodDelete, method)
}

func TestCdAndMoveAndExecUnsupported(t *testing.T) {
	a := New()
	_, status, _ := a.Cd(context.Background(), "/x", false, 0)
	require.Equal(t, protocol.StatusProtocolErr, status.Kind)

	_, status, _ = a.Move(context.Background(), "/a", "/b", false, false, 0)
	require.Equal(t, protocol.StatusProtocolErr, status.Kind)

	status, _ = a.Exec(context.Background(), "CHMOD", "644")
	require.Equal(t, protocol.StatusProtocolErr, status.Kind)
}
