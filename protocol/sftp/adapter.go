// Package sftp adapts github.com/pkg/sftp over golang.org/x/crypto/ssh to
// the protocol.Adapter interface, and additionally implements
// protocol.MultiReader: a pipelined read session that keeps several
// requests outstanding instead of the strict request/response loop a
// naive retrieve would use.
package sftp

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/afdcore/afdcore/protocol"
)

// Adapter implements protocol.Adapter over a single SSH connection and its
// sftp.Client subsystem.
type Adapter struct {
	hostKeyCallback ssh.HostKeyCallback
	dialer          net.Dialer

	pendingAddr   string
	pendingTuning protocol.Tuning

	ssh  *ssh.Client
	sftp *sftp.Client
}

// New returns an Adapter. hostKeyCallback is forwarded to ssh.ClientConfig;
// pass ssh.InsecureIgnoreHostKey() only for testing, never production.
func New(hostKeyCallback ssh.HostKeyCallback) *Adapter {
	return &Adapter{hostKeyCallback: hostKeyCallback}
}

func (a *Adapter) Connect(ctx context.Context, host string, port int, tuning protocol.Tuning) (protocol.Status, error) {
	a.dialer = net.Dialer{Timeout: tuning.DialTimeout}
	// Deferred to Authenticate: ssh.Dial needs the ClientConfig (and thus
	// the credentials) up front, so Connect only records the address and
	// tuning; the actual dial happens once Authenticate supplies auth.
	a.pendingAddr = net.JoinHostPort(host, fmt.Sprintf("%d", port))
	a.pendingTuning = tuning
	return protocol.Status{Kind: protocol.StatusSuccess}, nil
}

func (a *Adapter) Authenticate(ctx context.Context, user, secret string, method protocol.AuthMethod) (protocol.Status, error) {
	cfg := &ssh.ClientConfig{
		User:            user,
		HostKeyCallback: a.hostKeyCallback,
		Timeout:         a.pendingTuning.DialTimeout,
	}
	switch method {
	case protocol.AuthPassword:
		cfg.Auth = []ssh.AuthMethod{ssh.Password(secret)}
	case protocol.AuthKey:
		signer, err := ssh.ParsePrivateKey([]byte(secret))
		if err != nil {
			return protocol.Status{Kind: protocol.StatusProtocolErr, Message: "bad private key"},
				fmt.Errorf("sftp adapter: parse key: %w", err)
		}
		cfg.Auth = []ssh.AuthMethod{ssh.PublicKeys(signer)}
	default:
		return protocol.Status{Kind: protocol.StatusProtocolErr, Message: "unsupported auth method"},
			fmt.Errorf("sftp adapter: unsupported auth method %d", method)
	}

	conn, err := a.dialer.DialContext(ctx, "tcp", a.pendingAddr)
	if err != nil {
		return protocol.Status{Kind: protocol.StatusTransportClosed}, fmt.Errorf("sftp adapter: dial %s: %w", a.pendingAddr, err)
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, a.pendingAddr, cfg)
	if err != nil {
		return protocol.Status{Kind: protocol.StatusProtocolErr, Message: err.Error()}, fmt.Errorf("sftp adapter: ssh handshake: %w", err)
	}
	a.ssh = ssh.NewClient(sshConn, chans, reqs)

	client, err := sftp.NewClient(a.ssh, sftp.UseConcurrentWrites(true), sftp.UseConcurrentReads(true))
	if err != nil {
		a.ssh.Close()
		return protocol.Status{Kind: protocol.StatusProtocolErr, Message: err.Error()}, fmt.Errorf("sftp adapter: start sftp subsystem: %w", err)
	}
	a.sftp = client
	return protocol.Status{Kind: protocol.StatusSuccess}, nil
}

func (a *Adapter) Cd(ctx context.Context, path string, create bool, mode int) (string, protocol.Status, error) {
	if _, err := a.sftp.Stat(path); err != nil {
		if !create {
			return "", statusFromErr(err), fmt.Errorf("sftp adapter: stat %s: %w", path, err)
		}
		if err := a.sftp.MkdirAll(path); err != nil {
			return "", statusFromErr(err), fmt.Errorf("sftp adapter: mkdir %s: %w", path, err)
		}
		if mode != 0 {
			_ = a.sftp.Chmod(path, os.FileMode(mode))
		}
		return path, protocol.Status{Kind: protocol.StatusSuccess}, nil
	}
	return "", protocol.Status{Kind: protocol.StatusSuccess}, nil
}

func (a *Adapter) Stat(ctx context.Context, path string) (int64, time.Time, protocol.Status, error) {
	info, err := a.sftp.Stat(path)
	if err != nil {
		return 0, time.Time{}, statusFromErr(err), fmt.Errorf("sftp adapter: stat %s: %w", path, err)
	}
	return info.Size(), info.ModTime(), protocol.Status{Kind: protocol.StatusSuccess}, nil
}

func (a *Adapter) List(ctx context.Context, path string) ([]protocol.DirEntry, protocol.Status, error) {
	infos, err := a.sftp.ReadDir(path)
	if err != nil {
		return nil, statusFromErr(err), fmt.Errorf("sftp adapter: readdir %s: %w", path, err)
	}
	out := make([]protocol.DirEntry, 0, len(infos))
	for _, info := range infos {
		out = append(out, protocol.DirEntry{
			Name:  info.Name(),
			Size:  info.Size(),
			Mtime: info.ModTime(),
			IsDir: info.IsDir(),
		})
	}
	return out, protocol.Status{Kind: protocol.StatusSuccess}, nil
}

func (a *Adapter) Open(ctx context.Context, path string, mode protocol.OpenMode, offset int64) (protocol.Handle, protocol.Status, error) {
	var flags int
	switch mode {
	case protocol.OpenRead:
		flags = os.O_RDONLY
	case protocol.OpenWrite:
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	case protocol.OpenAppend:
		flags = os.O_WRONLY | os.O_CREATE | os.O_APPEND
	default:
		return nil, protocol.Status{Kind: protocol.StatusProtocolErr, Message: "unknown open mode"},
			fmt.Errorf("sftp adapter: unknown open mode %d", mode)
	}
	f, err := a.sftp.OpenFile(path, flags)
	if err != nil {
		return nil, statusFromErr(err), fmt.Errorf("sftp adapter: open %s: %w", path, err)
	}
	if offset > 0 {
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			f.Close()
			return nil, protocol.Status{Kind: protocol.StatusProtocolErr, Message: err.Error()}, fmt.Errorf("sftp adapter: seek %s to %d: %w", path, offset, err)
		}
	}
	return f, protocol.Status{Kind: protocol.StatusSuccess}, nil
}

func (a *Adapter) Move(ctx context.Context, src, dst string, fast, createParents bool, mode int) (string, protocol.Status, error) {
	if createParents {
		_ = a.sftp.MkdirAll(parentDir(dst))
	}
	if err := a.sftp.PosixRename(src, dst); err != nil {
		return "", statusFromErr(err), fmt.Errorf("sftp adapter: rename %s -> %s: %w", src, dst, err)
	}
	return "", protocol.Status{Kind: protocol.StatusSuccess}, nil
}

func (a *Adapter) Delete(ctx context.Context, path string) (protocol.Status, error) {
	if err := a.sftp.Remove(path); err != nil {
		return statusFromErr(err), fmt.Errorf("sftp adapter: remove %s: %w", path, err)
	}
	return protocol.Status{Kind: protocol.StatusSuccess}, nil
}

func (a *Adapter) SetMtime(ctx context.Context, path string, t time.Time) (protocol.Status, error) {
	if err := a.sftp.Chtimes(path, t, t); err != nil {
		return statusFromErr(err), fmt.Errorf("sftp adapter: chtimes %s: %w", path, err)
	}
	return protocol.Status{Kind: protocol.StatusSuccess}, nil
}

// Exec has no SFTP equivalent; SCP-over-SSH sessions are where arbitrary
// remote commands belong (see protocol/scp), so this always reports
// unsupported rather than guessing at a shell escape.
func (a *Adapter) Exec(ctx context.Context, cmd, arg string) (protocol.Status, error) {
	return protocol.Status{Kind: protocol.StatusProtocolErr, Message: "sftp: no SITE-equivalent command"},
		fmt.Errorf("sftp adapter: exec unsupported")
}

func (a *Adapter) Quit(ctx context.Context) error {
	if a.sftp != nil {
		a.sftp.Close()
	}
	if a.ssh != nil {
		return a.ssh.Close()
	}
	return nil
}

func statusFromErr(err error) protocol.Status {
	if err == nil {
		return protocol.Status{Kind: protocol.StatusSuccess}
	}
	if sftp.IsNotExist(err) {
		return protocol.Status{Kind: protocol.StatusNoSuchFile, Message: err.Error()}
	}
	return protocol.Status{Kind: protocol.StatusProtocolErr, Message: err.Error()}
}

func parentDir(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return "."
}

