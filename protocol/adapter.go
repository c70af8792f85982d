// Package protocol defines the uniform adapter surface (C5) that the
// transfer state machine drives, polymorphic over FTP, FTPS, SFTP, SCP and
// HTTP(S) (spec.md §4.5). Concrete adapters live in the protocol/ftp,
// protocol/sftp, protocol/scp and protocol/httpproto subpackages; each
// keeps its own protocol quirks opaque behind this interface rather than
// the state machine special-casing any one scheme (spec.md §9 Design
// Notes: "do not attempt a single union of all protocol quirks").
package protocol

import (
	"context"
	"io"
	"time"
)

// StatusKind classifies the outcome of an adapter operation.
type StatusKind int

const (
	// StatusSuccess means the operation completed normally.
	StatusSuccess StatusKind = iota
	// StatusProtocolErr means the remote returned an error/status code;
	// see Status.Code for the numeric detail.
	StatusProtocolErr
	// StatusTimeout means the operation exceeded its deadline.
	StatusTimeout
	// StatusNoSuchFile means the target path does not exist remotely.
	// On a retrieve Open, this is downgraded to a non-fatal skip rather
	// than escalating (spec.md §4.5, §7).
	StatusNoSuchFile
	// StatusTransportClosed means the underlying connection is gone.
	StatusTransportClosed
)

// Status is the uniform result type every Adapter operation returns
// alongside (or instead of) a Go error, so the state machine can dispatch
// on outcome kind without type-asserting each protocol's native error.
type Status struct {
	Kind    StatusKind
	Code    int    // protocol-specific numeric code, when Kind == StatusProtocolErr
	Message string // raw response text, for logs
}

func (s Status) String() string {
	switch s.Kind {
	case StatusSuccess:
		return "success"
	case StatusProtocolErr:
		return s.Message
	case StatusTimeout:
		return "timeout"
	case StatusNoSuchFile:
		return "no such file"
	case StatusTransportClosed:
		return "transport closed"
	default:
		return "unknown status"
	}
}

// IsTemporary reports whether the failure is worth retrying without
// escalating to a fatal host error (e.g. an idle-timeout close).
func (s Status) IsTemporary() bool {
	return s.Kind == StatusTimeout || (s.Kind == StatusProtocolErr && s.Code >= 400 && s.Code < 500)
}

// OpenMode selects how Open positions the remote file.
type OpenMode int

const (
	OpenRead OpenMode = iota
	OpenWrite
	OpenAppend
)

// AuthMethod distinguishes the supported authentication strategies
// (spec.md §4.5: "password / key / SSH fingerprint / proxy chain").
type AuthMethod int

const (
	AuthPassword AuthMethod = iota
	AuthKey
	AuthSSHFingerprint
	AuthProxyChain
)

// DirEntry is one row of a List result.
type DirEntry struct {
	Name  string
	Size  int64
	Mtime time.Time
	IsDir bool
}

// Handle is an open remote file, the capability returned by Adapter.Open.
// Read and Write are only valid according to the OpenMode the Handle was
// opened with.
type Handle interface {
	io.Reader
	io.Writer
	io.Closer
}

// Tuning carries per-connection knobs that do not belong on every call
// (block size, keepalive, TLS strictness); adapters interpret only the
// subset relevant to their scheme.
type Tuning struct {
	BlockSize      int
	TCPKeepalive   bool
	StatKeepalive  bool
	TLSStrictVerify bool
	IdleTime       time.Duration
	DialTimeout    time.Duration
	IOTimeout      time.Duration
}

// Adapter is the uniform operation set C6 drives for every transport.
// Implementations must not block longer than the Tuning/context deadline
// allows, and must translate scheme-specific failures into Status values
// so the state machine's error handling (spec.md §7) stays protocol
// agnostic.
type Adapter interface {
	Connect(ctx context.Context, host string, port int, tuning Tuning) (Status, error)
	Authenticate(ctx context.Context, user, secret string, method AuthMethod) (Status, error)

	// Cd changes (and optionally creates) a remote directory. If create is
	// true and the directory does not exist, it is created with mode; the
	// path actually created (if any) is returned.
	Cd(ctx context.Context, path string, create bool, mode int) (created string, status Status, err error)

	Stat(ctx context.Context, path string) (size int64, mtime time.Time, status Status, err error)
	List(ctx context.Context, path string) ([]DirEntry, Status, error)

	Open(ctx context.Context, path string, mode OpenMode, offset int64) (Handle, Status, error)

	// Move renames src to dst remotely. fast folds navigation into the
	// command itself (spec.md's "fast-move") instead of a separate CWD.
	Move(ctx context.Context, src, dst string, fast, createParents bool, mode int) (created string, status Status, err error)
	Delete(ctx context.Context, path string) (Status, error)
	SetMtime(ctx context.Context, path string, t time.Time) (Status, error)

	// Exec is the FTP SITE escape hatch (spec.md §4.5); adapters that have
	// no equivalent command return StatusProtocolErr with a message
	// explaining the scheme doesn't support it.
	Exec(ctx context.Context, cmd, arg string) (Status, error)

	Quit(ctx context.Context) error
}

// MultiReader is an optional capability: adapters that can pipeline
// several outstanding reads (spec.md §4.6.2, §9 — SFTP) implement it so
// the retrieve path can use a bounded streaming window instead of a
// strict request/response loop.
type MultiReader interface {
	// OpenMultiRead begins a pipelined read session over size bytes
	// starting at offset, with up to window outstanding requests.
	OpenMultiRead(ctx context.Context, path string, offset, size int64, blockSize, window int) (MultiReadSession, error)
}

// MultiReadSession yields blocks of a pipelined read in order.
type MultiReadSession interface {
	// Next returns the next in-order block, io.EOF when exhausted.
	Next(ctx context.Context) ([]byte, error)
	// Discard abandons any outstanding requests and falls back the
	// caller to single reads (the SFTP_DO_SINGLE_READS signal).
	Discard() error
	Close() error
}

// Sendfile is an optional capability: adapters whose transport supports a
// zero-copy kernel sendfile fast path for plain binary transfers (no TLS,
// no framing) implement it (spec.md §4.6.1 step 7, §9).
type Sendfile interface {
	SendFile(ctx context.Context, h Handle, src io.Reader, srcFd uintptr, size int64) (int64, error)
}
