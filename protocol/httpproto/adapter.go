// Package httpproto adapts net/http to the protocol.Adapter interface for
// the HTTP(S) retrieve path (spec.md §4.5). Standard library only: the
// pack carries no HTTP client wrapper worth adapting (the nearest
// candidates, e.g. rclone's backends, pull in a whole cloud-storage SDK
// for one GET/HEAD/PUT surface), and net/http's http.Client already gives
// the state machine everything this adapter needs — connection pooling,
// TLS config, context cancellation, Range requests.
package httpproto

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/afdcore/afdcore/protocol"
)

// Adapter implements the retrieve/store-via-PUT subset of protocol.Adapter
// that HTTP(S) supports. Cd/Move/Exec have no HTTP equivalent.
type Adapter struct {
	client  *http.Client
	baseURL string // scheme://host:port, built in Connect
	auth    func(*http.Request)
}

func New() *Adapter {
	return &Adapter{}
}

func (a *Adapter) Connect(ctx context.Context, host string, port int, tuning protocol.Tuning) (protocol.Status, error) {
	scheme := "http"
	if tuning.TLSStrictVerify || port == 443 {
		scheme = "https"
	}
	a.baseURL = fmt.Sprintf("%s://%s:%d", scheme, host, port)
	a.client = &http.Client{
		Timeout: tuning.IOTimeout,
		Transport: &http.Transport{
			TLSClientConfig:     &tls.Config{InsecureSkipVerify: !tuning.TLSStrictVerify},
			TLSHandshakeTimeout: tuning.DialTimeout,
		},
	}
	return protocol.Status{Kind: protocol.StatusSuccess}, nil
}

func (a *Adapter) Authenticate(ctx context.Context, user, secret string, method protocol.AuthMethod) (protocol.Status, error) {
	switch method {
	case protocol.AuthPassword:
		a.auth = func(r *http.Request) { r.SetBasicAuth(user, secret) }
	default:
		return protocol.Status{Kind: protocol.StatusProtocolErr, Message: "http adapter supports basic auth only"},
			fmt.Errorf("httpproto adapter: unsupported auth method %d", method)
	}
	return protocol.Status{Kind: protocol.StatusSuccess}, nil
}

func (a *Adapter) Cd(ctx context.Context, path string, create bool, mode int) (string, protocol.Status, error) {
	return "", protocol.Status{Kind: protocol.StatusProtocolErr, Message: "http: no directory-change primitive"}, nil
}

func (a *Adapter) Stat(ctx context.Context, path string) (int64, time.Time, protocol.Status, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, a.baseURL+path, nil)
	if err != nil {
		return 0, time.Time{}, protocol.Status{Kind: protocol.StatusProtocolErr}, fmt.Errorf("httpproto adapter: build HEAD: %w", err)
	}
	a.sign(req)
	resp, err := a.client.Do(req)
	if err != nil {
		return 0, time.Time{}, protocol.Status{Kind: protocol.StatusTransportClosed}, fmt.Errorf("httpproto adapter: HEAD %s: %w", path, err)
	}
	defer resp.Body.Close()
	if status, ok := httpStatus(resp.StatusCode); !ok {
		return 0, time.Time{}, status, fmt.Errorf("httpproto adapter: HEAD %s: %s", path, resp.Status)
	}
	var mtime time.Time
	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		if t, err := http.ParseTime(lm); err == nil {
			mtime = t
		}
	}
	return resp.ContentLength, mtime, protocol.Status{Kind: protocol.StatusSuccess}, nil
}

// List is unsupported: HTTP has no standard directory-listing format the
// state machine could rely on (server-specific autoindex HTML is not
// worth parsing generically). Retrieve jobs over HTTP name files
// explicitly rather than discovering them via List (spec.md §4.5).
func (a *Adapter) List(ctx context.Context, path string) ([]protocol.DirEntry, protocol.Status, error) {
	return nil, protocol.Status{Kind: protocol.StatusProtocolErr, Message: "http: no generic listing primitive"},
		fmt.Errorf("httpproto adapter: list unsupported")
}

func (a *Adapter) Open(ctx context.Context, path string, mode protocol.OpenMode, offset int64) (protocol.Handle, protocol.Status, error) {
	switch mode {
	case protocol.OpenRead:
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+path, nil)
		if err != nil {
			return nil, protocol.Status{Kind: protocol.StatusProtocolErr}, fmt.Errorf("httpproto adapter: build GET: %w", err)
		}
		if offset > 0 {
			req.Header.Set("Range", "bytes="+strconv.FormatInt(offset, 10)+"-")
		}
		a.sign(req)
		resp, err := a.client.Do(req)
		if err != nil {
			return nil, protocol.Status{Kind: protocol.StatusTransportClosed}, fmt.Errorf("httpproto adapter: GET %s: %w", path, err)
		}
		if status, ok := httpStatus(resp.StatusCode); !ok {
			resp.Body.Close()
			return nil, status, fmt.Errorf("httpproto adapter: GET %s: %s", path, resp.Status)
		}
		return &readHandle{body: resp.Body}, protocol.Status{Kind: protocol.StatusSuccess}, nil

	case protocol.OpenWrite, protocol.OpenAppend:
		pr, pw := io.Pipe()
		req, err := http.NewRequestWithContext(ctx, http.MethodPut, a.baseURL+path, pr)
		if err != nil {
			return nil, protocol.Status{Kind: protocol.StatusProtocolErr}, fmt.Errorf("httpproto adapter: build PUT: %w", err)
		}
		a.sign(req)
		done := make(chan error, 1)
		go func() {
			resp, err := a.client.Do(req)
			if err != nil {
				done <- err
				return
			}
			defer resp.Body.Close()
			if _, ok := httpStatus(resp.StatusCode); !ok {
				done <- fmt.Errorf("httpproto adapter: PUT %s: %s", path, resp.Status)
				return
			}
			done <- nil
		}()
		return &writeHandle{w: pw, done: done}, protocol.Status{Kind: protocol.StatusSuccess}, nil

	default:
		return nil, protocol.Status{Kind: protocol.StatusProtocolErr, Message: "unknown open mode"},
			fmt.Errorf("httpproto adapter: unknown open mode %d", mode)
	}
}

func (a *Adapter) Move(ctx context.Context, src, dst string, fast, createParents bool, mode int) (string, protocol.Status, error) {
	return "", protocol.Status{Kind: protocol.StatusProtocolErr, Message: "http: no rename primitive"},
		fmt.Errorf("httpproto adapter: move unsupported")
}

func (a *Adapter) Delete(ctx context.Context, path string) (protocol.Status, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, a.baseURL+path, nil)
	if err != nil {
		return protocol.Status{Kind: protocol.StatusProtocolErr}, fmt.Errorf("httpproto adapter: build DELETE: %w", err)
	}
	a.sign(req)
	resp, err := a.client.Do(req)
	if err != nil {
		return protocol.Status{Kind: protocol.StatusTransportClosed}, fmt.Errorf("httpproto adapter: DELETE %s: %w", path, err)
	}
	defer resp.Body.Close()
	if status, ok := httpStatus(resp.StatusCode); !ok {
		return status, fmt.Errorf("httpproto adapter: DELETE %s: %s", path, resp.Status)
	}
	return protocol.Status{Kind: protocol.StatusSuccess}, nil
}

func (a *Adapter) SetMtime(ctx context.Context, path string, t time.Time) (protocol.Status, error) {
	return protocol.Status{Kind: protocol.StatusProtocolErr, Message: "http: no set-mtime primitive"},
		fmt.Errorf("httpproto adapter: set mtime unsupported")
}

func (a *Adapter) Exec(ctx context.Context, cmd, arg string) (protocol.Status, error) {
	return protocol.Status{Kind: protocol.StatusProtocolErr, Message: "http: no SITE-equivalent command"},
		fmt.Errorf("httpproto adapter: exec unsupported")
}

func (a *Adapter) Quit(ctx context.Context) error {
	if a.client != nil {
		a.client.CloseIdleConnections()
	}
	return nil
}

func (a *Adapter) sign(req *http.Request) {
	if a.auth != nil {
		a.auth(req)
	}
}

func httpStatus(code int) (protocol.Status, bool) {
	switch {
	case code >= 200 && code < 300:
		return protocol.Status{Kind: protocol.StatusSuccess, Code: code}, true
	case code == 404:
		return protocol.Status{Kind: protocol.StatusNoSuchFile, Code: code}, false
	case code == 408 || code == 429:
		return protocol.Status{Kind: protocol.StatusTimeout, Code: code}, false
	default:
		return protocol.Status{Kind: protocol.StatusProtocolErr, Code: code}, false
	}
}

type readHandle struct {
	body io.ReadCloser
}

func (h *readHandle) Read(p []byte) (int, error)  { return h.body.Read(p) }
func (h *readHandle) Write(p []byte) (int, error) { return 0, fmt.Errorf("httpproto adapter: write on a GET handle") }
func (h *readHandle) Close() error                { return h.body.Close() }

type writeHandle struct {
	w    *io.PipeWriter
	done chan error
}

func (h *writeHandle) Write(p []byte) (int, error) { return h.w.Write(p) }
func (h *writeHandle) Read(p []byte) (int, error) {
	return 0, fmt.Errorf("httpproto adapter: read on a PUT handle")
}
func (h *writeHandle) Close() error {
	h.w.Close()
	return <-h.done
}
