package scp

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/ssh"

	"github.com/afdcore/afdcore/protocol"
)

// sinkHandle drives "scp -t <path>" as a Handle: the caller's Write calls
// are forwarded straight through after the C-directive header has been
// sent and acked; Close sends the trailing ack and waits for the remote
// command to exit.
type sinkHandle struct {
	session *ssh.Session
	stdin   io.WriteCloser
	stdout  *bufio.Reader

	headerSent bool
	path       string
	size       int64 // set by SizeHint before the first Write, else unknown
}

func newSinkHandle(session *ssh.Session, path string) (protocol.Handle, protocol.Status, error) {
	stdin, err := session.StdinPipe()
	if err != nil {
		session.Close()
		return nil, protocol.Status{Kind: protocol.StatusTransportClosed}, fmt.Errorf("scp adapter: stdin pipe: %w", err)
	}
	stdoutPipe, err := session.StdoutPipe()
	if err != nil {
		session.Close()
		return nil, protocol.Status{Kind: protocol.StatusTransportClosed}, fmt.Errorf("scp adapter: stdout pipe: %w", err)
	}
	_, name := splitPath(path)
	if err := session.Start(fmt.Sprintf("scp -t %s", shellQuote(path))); err != nil {
		session.Close()
		return nil, protocol.Status{Kind: protocol.StatusTransportClosed}, fmt.Errorf("scp adapter: start sink: %w", err)
	}
	h := &sinkHandle{session: session, stdin: stdin, stdout: bufio.NewReader(stdoutPipe), path: name}
	return h, protocol.Status{Kind: protocol.StatusSuccess}, nil
}

// Write sends the C-directive on the first call (size is whatever has
// been accumulated so far if the caller streams without a known total;
// transfer.go is expected to call SizeHint before the first Write when
// the size is known up front, which is the common case for AFD jobs).
func (h *sinkHandle) Write(p []byte) (int, error) {
	if !h.headerSent {
		if err := h.sendHeader(); err != nil {
			return 0, err
		}
	}
	n, err := h.stdin.Write(p)
	if err != nil {
		return n, fmt.Errorf("scp adapter: sink write: %w", err)
	}
	return n, nil
}

// SizeHint lets the caller declare the total size before streaming, since
// SCP's C-directive requires the byte count up front. If never called,
// the header is sent with size 0 on the first Write, which most scp -f
// implementations tolerate as a streaming/unknown-length sink.
func (h *sinkHandle) SizeHint(size int64) { h.size = size }

func (h *sinkHandle) sendHeader() error {
	header := fmt.Sprintf("C0644 %d %s\n", h.size, h.path)
	if _, err := io.WriteString(h.stdin, header); err != nil {
		return fmt.Errorf("scp adapter: send C-directive: %w", err)
	}
	if err := readAck(h.stdout); err != nil {
		return err
	}
	h.headerSent = true
	return nil
}

// Read is invalid on a sink handle.
func (h *sinkHandle) Read(p []byte) (int, error) {
	return 0, fmt.Errorf("scp adapter: read on a sink (write-direction) handle")
}

func (h *sinkHandle) Close() error {
	if !h.headerSent {
		if err := h.sendHeader(); err != nil {
			return err
		}
	}
	if err := sendAck(h.stdin); err != nil {
		return fmt.Errorf("scp adapter: send final ack: %w", err)
	}
	if err := readAck(h.stdout); err != nil {
		return err
	}
	h.stdin.Close()
	return h.session.Wait()
}

// sourceHandle drives "scp -f <path>" as a Handle: Close reads the
// trailing ack exchange and closes the session.
type sourceHandle struct {
	session *ssh.Session
	stdin   io.WriteCloser
	stdout  *bufio.Reader

	remaining int64
	started   bool
}

func newSourceHandle(session *ssh.Session, path string) (protocol.Handle, protocol.Status, error) {
	stdin, err := session.StdinPipe()
	if err != nil {
		session.Close()
		return nil, protocol.Status{Kind: protocol.StatusTransportClosed}, fmt.Errorf("scp adapter: stdin pipe: %w", err)
	}
	stdoutPipe, err := session.StdoutPipe()
	if err != nil {
		session.Close()
		return nil, protocol.Status{Kind: protocol.StatusTransportClosed}, fmt.Errorf("scp adapter: stdout pipe: %w", err)
	}
	if err := session.Start(fmt.Sprintf("scp -f %s", shellQuote(path))); err != nil {
		session.Close()
		return nil, protocol.Status{Kind: protocol.StatusTransportClosed}, fmt.Errorf("scp adapter: start source: %w", err)
	}
	h := &sourceHandle{session: session, stdin: stdin, stdout: bufio.NewReader(stdoutPipe)}
	return h, protocol.Status{Kind: protocol.StatusSuccess}, nil
}

func (h *sourceHandle) start() error {
	if err := sendAck(h.stdin); err != nil { // triggers remote to send its C-directive
		return fmt.Errorf("scp adapter: send initial ack: %w", err)
	}
	line, err := h.stdout.ReadString('\n')
	if err != nil {
		return fmt.Errorf("scp adapter: read C-directive: %w", err)
	}
	line = strings.TrimRight(line, "\n")
	var mode string
	var size int64
	var name string
	if _, scanErr := fmt.Sscanf(line, "C%s %d %s", &mode, &size, &name); scanErr != nil {
		return fmt.Errorf("scp adapter: malformed C-directive %q: %w", line, scanErr)
	}
	h.remaining = size
	h.started = true
	return sendAck(h.stdin)
}

func (h *sourceHandle) Read(p []byte) (int, error) {
	if !h.started {
		if err := h.start(); err != nil {
			return 0, err
		}
	}
	if h.remaining <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > h.remaining {
		p = p[:h.remaining]
	}
	n, err := h.stdout.Read(p)
	h.remaining -= int64(n)
	if err != nil && err != io.EOF {
		return n, fmt.Errorf("scp adapter: source read: %w", err)
	}
	if h.remaining == 0 {
		// consume the trailing NUL byte the sender appends after data
		_, _ = h.stdout.Discard(1)
	}
	return n, nil
}

func (h *sourceHandle) Write(p []byte) (int, error) {
	return 0, fmt.Errorf("scp adapter: write on a source (read-direction) handle")
}

func (h *sourceHandle) Close() error {
	h.stdin.Close()
	return h.session.Wait()
}

func splitPath(path string) (dir, name string) {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i], path[i+1:]
		}
	}
	return ".", path
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
