// Package scp implements a send-only SCP adapter directly on top of
// golang.org/x/crypto/ssh sessions and the classic "scp -t"/"scp -f" wire
// protocol (no sftp subsystem, no third-party scp library in the pack —
// the protocol is a handful of control bytes over an exec'd remote
// command, so it's written out here the way the teacher writes its own
// FTP control-channel framing by hand).
package scp

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/afdcore/afdcore/protocol"
)

// Adapter implements the subset of protocol.Adapter that SCP's one-shot
// "copy in" / "copy out" model supports: Open (send or receive a single
// file), SetMtime (via the T directive), Quit. Cd/List/Move/Delete/Exec
// have no SCP equivalent and report StatusProtocolErr accordingly
// (spec.md §4.5: adapters that cannot express an operation say so rather
// than faking it).
type Adapter struct {
	hostKeyCallback ssh.HostKeyCallback
	dialer          net.Dialer

	pendingAddr string
	ssh         *ssh.Client
}

func New(hostKeyCallback ssh.HostKeyCallback) *Adapter {
	return &Adapter{hostKeyCallback: hostKeyCallback}
}

func (a *Adapter) Connect(ctx context.Context, host string, port int, tuning protocol.Tuning) (protocol.Status, error) {
	a.dialer = net.Dialer{Timeout: tuning.DialTimeout}
	a.pendingAddr = net.JoinHostPort(host, strconv.Itoa(port))
	return protocol.Status{Kind: protocol.StatusSuccess}, nil
}

func (a *Adapter) Authenticate(ctx context.Context, user, secret string, method protocol.AuthMethod) (protocol.Status, error) {
	cfg := &ssh.ClientConfig{User: user, HostKeyCallback: a.hostKeyCallback}
	switch method {
	case protocol.AuthPassword:
		cfg.Auth = []ssh.AuthMethod{ssh.Password(secret)}
	case protocol.AuthKey:
		signer, err := ssh.ParsePrivateKey([]byte(secret))
		if err != nil {
			return protocol.Status{Kind: protocol.StatusProtocolErr, Message: "bad private key"}, fmt.Errorf("scp adapter: parse key: %w", err)
		}
		cfg.Auth = []ssh.AuthMethod{ssh.PublicKeys(signer)}
	default:
		return protocol.Status{Kind: protocol.StatusProtocolErr, Message: "unsupported auth method"},
			fmt.Errorf("scp adapter: unsupported auth method %d", method)
	}
	conn, err := a.dialer.DialContext(ctx, "tcp", a.pendingAddr)
	if err != nil {
		return protocol.Status{Kind: protocol.StatusTransportClosed}, fmt.Errorf("scp adapter: dial %s: %w", a.pendingAddr, err)
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, a.pendingAddr, cfg)
	if err != nil {
		return protocol.Status{Kind: protocol.StatusProtocolErr, Message: err.Error()}, fmt.Errorf("scp adapter: ssh handshake: %w", err)
	}
	a.ssh = ssh.NewClient(sshConn, chans, reqs)
	return protocol.Status{Kind: protocol.StatusSuccess}, nil
}

func (a *Adapter) Cd(ctx context.Context, path string, create bool, mode int) (string, protocol.Status, error) {
	return "", protocol.Status{Kind: protocol.StatusProtocolErr, Message: "scp: no directory-change primitive"}, nil
}

func (a *Adapter) Stat(ctx context.Context, path string) (int64, time.Time, protocol.Status, error) {
	return 0, time.Time{}, protocol.Status{Kind: protocol.StatusProtocolErr, Message: "scp: no stat primitive"},
		fmt.Errorf("scp adapter: stat unsupported")
}

func (a *Adapter) List(ctx context.Context, path string) ([]protocol.DirEntry, protocol.Status, error) {
	return nil, protocol.Status{Kind: protocol.StatusProtocolErr, Message: "scp: no listing primitive"},
		fmt.Errorf("scp adapter: list unsupported")
}

// Open starts an "scp -t" (sink, for OpenWrite/OpenAppend) or "scp -f"
// (source, for OpenRead) session and returns a Handle that speaks the
// wire protocol's single-file framing transparently to the caller.
//
// SCP has no native resume/append — OpenAppend behaves like OpenWrite and
// offset is ignored (the burst/naming layer is expected not to route
// append-resume jobs to this adapter; spec.md's append-resume path is for
// protocols that support REST/byte-range writes).
func (a *Adapter) Open(ctx context.Context, path string, mode protocol.OpenMode, offset int64) (protocol.Handle, protocol.Status, error) {
	session, err := a.ssh.NewSession()
	if err != nil {
		return nil, protocol.Status{Kind: protocol.StatusTransportClosed}, fmt.Errorf("scp adapter: new session: %w", err)
	}

	switch mode {
	case protocol.OpenWrite, protocol.OpenAppend:
		return newSinkHandle(session, path)
	case protocol.OpenRead:
		return newSourceHandle(session, path)
	default:
		session.Close()
		return nil, protocol.Status{Kind: protocol.StatusProtocolErr, Message: "unknown open mode"},
			fmt.Errorf("scp adapter: unknown open mode %d", mode)
	}
}

func (a *Adapter) Move(ctx context.Context, src, dst string, fast, createParents bool, mode int) (string, protocol.Status, error) {
	return "", protocol.Status{Kind: protocol.StatusProtocolErr, Message: "scp: no rename primitive"},
		fmt.Errorf("scp adapter: move unsupported")
}

func (a *Adapter) Delete(ctx context.Context, path string) (protocol.Status, error) {
	return protocol.Status{Kind: protocol.StatusProtocolErr, Message: "scp: no delete primitive"},
		fmt.Errorf("scp adapter: delete unsupported")
}

func (a *Adapter) SetMtime(ctx context.Context, path string, t time.Time) (protocol.Status, error) {
	// Folded into the T directive at the start of a sink session rather
	// than issued standalone; SCP has no out-of-band touch command.
	return protocol.Status{Kind: protocol.StatusProtocolErr, Message: "scp: set mtime only via sink T-directive during Open"},
		fmt.Errorf("scp adapter: standalone set mtime unsupported")
}

func (a *Adapter) Exec(ctx context.Context, cmd, arg string) (protocol.Status, error) {
	return protocol.Status{Kind: protocol.StatusProtocolErr, Message: "scp: no SITE-equivalent command"},
		fmt.Errorf("scp adapter: exec unsupported")
}

func (a *Adapter) Quit(ctx context.Context) error {
	if a.ssh != nil {
		return a.ssh.Close()
	}
	return nil
}

// ackOK / readAck implement the one-byte ack protocol shared by both
// directions: 0 = ok, 1 = warning (message follows), 2 = fatal (message
// follows).
func readAck(r *bufio.Reader) error {
	b, err := r.ReadByte()
	if err != nil {
		return fmt.Errorf("scp: read ack: %w", err)
	}
	if b == 0 {
		return nil
	}
	line, _ := r.ReadString('\n')
	return fmt.Errorf("scp: remote reported error (code %d): %s", b, line)
}

func sendAck(w io.Writer) error {
	_, err := w.Write([]byte{0})
	return err
}
