// Package ftp adapts the module's own ftpclient library (an FTP/FTPS
// client, grounded on the teacher repo's transport and command layer) to
// the protocol.Adapter interface, so the transfer state machine can drive
// plain FTP and both TLS modes without knowing ftpclient's native API.
package ftp

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	ftpclient "github.com/afdcore/afdcore/ftpclient"
	"github.com/afdcore/afdcore/protocol"
)

// TLSMode selects how the adapter secures the control connection.
type TLSMode int

const (
	Plain TLSMode = iota
	ExplicitTLS
	ImplicitTLS
)

// Adapter implements protocol.Adapter over ftpclient.Client.
type Adapter struct {
	mode       TLSMode
	tlsConfig  *tls.Config
	activeMode bool
	disableEPSV bool

	client *ftpclient.Client
}

// New returns an Adapter for the given TLS mode. tlsConfig is used for
// ExplicitTLS/ImplicitTLS; a nil config gets the package default from
// crypto/tls with the server name filled in from Connect's host argument.
func New(mode TLSMode, tlsConfig *tls.Config, activeMode, disableEPSV bool) *Adapter {
	return &Adapter{mode: mode, tlsConfig: tlsConfig, activeMode: activeMode, disableEPSV: disableEPSV}
}

func (a *Adapter) Connect(ctx context.Context, host string, port int, tuning protocol.Tuning) (protocol.Status, error) {
	addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))

	cfg := a.tlsConfig
	if cfg == nil {
		cfg = &tls.Config{ServerName: host, InsecureSkipVerify: !tuning.TLSStrictVerify}
	}

	opts := []ftpclient.Option{}
	if tuning.DialTimeout > 0 {
		opts = append(opts, ftpclient.WithTimeout(tuning.DialTimeout))
	}
	if tuning.IdleTime > 0 {
		opts = append(opts, ftpclient.WithIdleTimeout(tuning.IdleTime))
	}
	switch a.mode {
	case ExplicitTLS:
		opts = append(opts, ftpclient.WithExplicitTLS(cfg))
	case ImplicitTLS:
		opts = append(opts, ftpclient.WithImplicitTLS(cfg))
	}
	if a.activeMode {
		opts = append(opts, ftpclient.WithActiveMode())
	}
	if a.disableEPSV {
		opts = append(opts, ftpclient.WithDisableEPSV())
	}
	if tuning.DialTimeout > 0 {
		opts = append(opts, ftpclient.WithDialer(&net.Dialer{Timeout: tuning.DialTimeout}))
	}

	client, err := ftpclient.Dial(addr, opts...)
	if err != nil {
		return statusFromErr(err), fmt.Errorf("ftp adapter: connect %s: %w", addr, err)
	}
	a.client = client
	return protocol.Status{Kind: protocol.StatusSuccess}, nil
}

func (a *Adapter) Authenticate(ctx context.Context, user, secret string, method protocol.AuthMethod) (protocol.Status, error) {
	if method != protocol.AuthPassword {
		return protocol.Status{Kind: protocol.StatusProtocolErr, Message: "ftp supports password auth only"},
			fmt.Errorf("ftp adapter: unsupported auth method %d", method)
	}
	if err := a.client.Login(user, secret); err != nil {
		return statusFromErr(err), fmt.Errorf("ftp adapter: login: %w", err)
	}
	return protocol.Status{Kind: protocol.StatusSuccess}, nil
}

func (a *Adapter) Cd(ctx context.Context, path string, create bool, mode int) (string, protocol.Status, error) {
	if !create {
		if err := a.client.ChangeDir(path); err != nil {
			return "", statusFromErr(err), fmt.Errorf("ftp adapter: cd %s: %w", path, err)
		}
		return "", protocol.Status{Kind: protocol.StatusSuccess}, nil
	}
	created, err := a.client.EnsureDir(path)
	if err != nil {
		return "", statusFromErr(err), fmt.Errorf("ftp adapter: ensure dir %s: %w", path, err)
	}
	if created {
		return path, protocol.Status{Kind: protocol.StatusSuccess}, nil
	}
	return "", protocol.Status{Kind: protocol.StatusSuccess}, nil
}

func (a *Adapter) Stat(ctx context.Context, path string) (int64, time.Time, protocol.Status, error) {
	size, err := a.client.Size(path)
	if err != nil {
		return 0, time.Time{}, statusFromErr(err), fmt.Errorf("ftp adapter: size %s: %w", path, err)
	}
	mtime, err := a.client.ModTime(path)
	if err != nil {
		return size, time.Time{}, statusFromErr(err), fmt.Errorf("ftp adapter: mtime %s: %w", path, err)
	}
	return size, mtime, protocol.Status{Kind: protocol.StatusSuccess}, nil
}

func (a *Adapter) List(ctx context.Context, path string) ([]protocol.DirEntry, protocol.Status, error) {
	if a.client.HasFeature("MLST") {
		entries, err := a.client.MLList(path)
		if err != nil {
			return nil, statusFromErr(err), fmt.Errorf("ftp adapter: mlsd %s: %w", path, err)
		}
		out := make([]protocol.DirEntry, 0, len(entries))
		for _, e := range entries {
			if e.Type == "cdir" || e.Type == "pdir" {
				continue
			}
			out = append(out, protocol.DirEntry{
				Name:  e.Name,
				Size:  e.Size,
				Mtime: e.ModTime,
				IsDir: e.Type == "dir",
			})
		}
		return out, protocol.Status{Kind: protocol.StatusSuccess}, nil
	}

	entries, err := a.client.List(path)
	if err != nil {
		return nil, statusFromErr(err), fmt.Errorf("ftp adapter: list %s: %w", path, err)
	}
	out := make([]protocol.DirEntry, 0, len(entries))
	for _, e := range entries {
		mtime, _ := a.client.ModTime(path + "/" + e.Name)
		out = append(out, protocol.DirEntry{
			Name:  e.Name,
			Size:  e.Size,
			Mtime: mtime,
			IsDir: e.Type == "dir",
		})
	}
	return out, protocol.Status{Kind: protocol.StatusSuccess}, nil
}

func (a *Adapter) Open(ctx context.Context, path string, mode protocol.OpenMode, offset int64) (protocol.Handle, protocol.Status, error) {
	if offset > 0 {
		if err := a.client.RestartAt(offset); err != nil {
			return nil, statusFromErr(err), fmt.Errorf("ftp adapter: restart at %d: %w", offset, err)
		}
	}
	var cmd string
	switch mode {
	case protocol.OpenRead:
		cmd = "RETR"
	case protocol.OpenWrite:
		cmd = "STOR"
	case protocol.OpenAppend:
		cmd = "APPE"
	default:
		return nil, protocol.Status{Kind: protocol.StatusProtocolErr, Message: "unknown open mode"},
			fmt.Errorf("ftp adapter: unknown open mode %d", mode)
	}
	stream, err := a.client.OpenStream(cmd, path)
	if err != nil {
		return nil, statusFromErr(err), fmt.Errorf("ftp adapter: open %s %s: %w", cmd, path, err)
	}
	return stream, protocol.Status{Kind: protocol.StatusSuccess}, nil
}

func (a *Adapter) Move(ctx context.Context, src, dst string, fast, createParents bool, mode int) (string, protocol.Status, error) {
	if err := a.client.Rename(src, dst); err != nil {
		return "", statusFromErr(err), fmt.Errorf("ftp adapter: rename %s -> %s: %w", src, dst, err)
	}
	return "", protocol.Status{Kind: protocol.StatusSuccess}, nil
}

func (a *Adapter) Delete(ctx context.Context, path string) (protocol.Status, error) {
	if err := a.client.Delete(path); err != nil {
		return statusFromErr(err), fmt.Errorf("ftp adapter: delete %s: %w", path, err)
	}
	return protocol.Status{Kind: protocol.StatusSuccess}, nil
}

func (a *Adapter) SetMtime(ctx context.Context, path string, t time.Time) (protocol.Status, error) {
	if err := a.client.SetModTime(path, t); err != nil {
		return statusFromErr(err), fmt.Errorf("ftp adapter: set mtime %s: %w", path, err)
	}
	return protocol.Status{Kind: protocol.StatusSuccess}, nil
}

// Exec runs a SITE command, the FTP escape hatch for arbitrary remote-side
// actions (spec.md §4.5).
func (a *Adapter) Exec(ctx context.Context, cmd, arg string) (protocol.Status, error) {
	resp, err := a.client.Quote("SITE", cmd, arg)
	if err != nil {
		return statusFromErr(err), fmt.Errorf("ftp adapter: site %s %s: %w", cmd, arg, err)
	}
	return protocol.Status{Kind: protocol.StatusSuccess, Message: resp.Message}, nil
}

func (a *Adapter) Quit(ctx context.Context) error {
	if a.client == nil {
		return nil
	}
	return a.client.Quit()
}

// statusFromErr defers to ftpclient's own error-to-status mapping
// (ftpclient.StatusFromErr), so the taxonomy lives next to the
// ProtocolError type it classifies rather than being re-derived here.
func statusFromErr(err error) protocol.Status {
	return ftpclient.StatusFromErr(err)
}
