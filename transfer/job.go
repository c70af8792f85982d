// Package transfer implements the per-file transfer state machine (C6):
// naming, append-probe, streaming with rate limiting, size verification,
// and the archive-or-unlink finish, for both the send and retrieve
// directions (spec.md §4.6).
package transfer

import "time"

// TransferMode selects the on-wire representation of file contents.
type TransferMode int

const (
	Binary TransferMode = iota
	ASCII
	DOS
)

// NamingPolicy controls how a file's on-wire name is derived from its
// local name while the transfer is in flight (spec.md §4.6.1 step 5,
// Glossary "Dot/postfix/sequence/unique locking").
type NamingPolicy struct {
	DotPrefix    bool
	SequenceNext func() int // nil disables sequence-suffix naming
	UniqueNext   func() string
	VMSDotSuffix bool
	RenameRule   func(localName string) string // nil = identity
	// RenameRuleDisabled is set per spec.md §4.6.1 step 1 when the active
	// toggle makes a primary-only/secondary-only rename rule inapplicable.
	RenameRuleDisabled bool
}

// Job describes one unit of work handed to RunSend or RunRetrieve: the
// host/job-slot coordinates into the status area, the naming and transfer
// options, and (for send) the list of local files already enumerated by
// the spool directory scan.
type Job struct {
	HostPos  int
	DirPos   int // -1 if this job has no associated DirRecord
	SlotID   int // zero-based slot index within the host's JobSlot array

	Mode        TransferMode
	Naming      NamingPolicy
	TargetDir   string
	FastCD      bool
	LockFile    string
	BlockSize   int
	AltTailChar byte // appended to the wire name on repeated "busy" rejections, 0 = disabled

	WMO          bool
	SizeCheck    bool
	ChmodAfter   *int
	SitePostHook string
	ArchiveDir   string // empty means unlink after successful send

	// RestartOffsets maps a local filename to the byte offset already
	// confirmed present on the remote side (spec.md §4.6.1 step 6); a
	// filename absent from this map starts at offset 0.
	RestartOffsets map[string]int64

	// SendFiles is the local-file worklist for RunSend, in spool order.
	SendFiles []string

	// RemoveAfterRetrieve implements the RL `remove` flag for RunRetrieve.
	RemoveAfterRetrieve bool
	// ForceRescan bypasses the directory-mtime-unchanged short circuit
	// (spec.md §4.6.2 step 4).
	ForceRescan bool

	PerFileTimeout time.Duration
}

// Result summarizes one RunSend/RunRetrieve invocation for the worker's
// atexit summary line ("retrieved/send N files M bytes [BURST * k]
// [APPEND * a]", spec.md §4.8).
type Result struct {
	FilesTransferred int64
	BytesTransferred int64
	AppendCount      int64
}
