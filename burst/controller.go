// Package burst implements the Burst Controller (C7): after a job's inner
// transfer loop finishes, decide whether to reuse the open connection for
// another queued job on the same host, and replay only the transitions a
// changed job tuple requires (spec.md §4.7).
package burst

import (
	"context"
	"fmt"
	"time"

	"github.com/afdcore/afdcore/internal/fifo"
	"github.com/afdcore/afdcore/protocol"
)

// Decision is the dispatcher's answer to a burst probe.
type Decision int

const (
	// BurstNo means no other job is queued; quit normally.
	BurstNo Decision = iota
	// BurstYes means another job is ready; Replay the changed fields and
	// continue on the same connection.
	BurstYes
	// BurstRescanSource means the directory should be rescanned before
	// continuing, but on the same connection.
	BurstRescanSource
	// BurstNeither means files remain queued elsewhere; exit
	// STILL_FILES_TO_SEND so the dispatcher requeues them.
	BurstNeither
)

// ChangedFields is a bitset describing which parts of the job tuple
// differ between the just-finished job and the next one offered by the
// dispatcher (spec.md §4.7).
type ChangedFields uint8

const (
	UserChanged ChangedFields = 1 << iota
	AuthChanged
	TypeChanged
	TargetDirChanged
)

// Job is the minimal next-job description the dispatcher hands back on a
// Yes decision; the transfer package's richer transfer.Job is built from
// it by the caller.
type Job struct {
	User      string
	Secret    string
	Mode      int
	TargetDir string
}

// Limits bounds how long a connection may be kept open for bursting
// (spec.md §4.7's keep-connected-disconnect / disconnect timers).
type Limits struct {
	KeepConnectedDisconnect bool
	KeepConnected           time.Duration
	Disconnect              time.Duration
}

// ShouldStop reports whether the elapsed connection time already exceeds
// whichever limit applies, in which case the caller must break and quit
// without probing the dispatcher at all.
func (l Limits) ShouldStop(connectedAt time.Time) bool {
	diff := time.Since(connectedAt)
	if l.KeepConnectedDisconnect && l.KeepConnected > 0 && diff > l.KeepConnected {
		return true
	}
	if l.Disconnect > 0 && diff > l.Disconnect {
		return true
	}
	return false
}

// Controller negotiates bursting with the dispatcher over PROBE_ONLY_FIFO
// (spec.md §4.7). The actual request/response framing on that FIFO is a
// single nudge byte each way in this core (matching internal/fifo's
// wake-up protocol); a richer message format belongs to the dispatcher,
// which is out of scope here.
type Controller struct {
	Probe  *fifo.Writer
	Replies *fifo.Reader

	// retriedUserChange tracks whether this connection has already used
	// its one allowed reconnect-on-USER-change retry (spec.md §9 Open
	// Question: "quit, reconnect, and retry exactly once; longer loops
	// are not attempted").
	retriedUserChange bool
}

// CheckBurst asks the dispatcher whether another job is queued for this
// host and returns its decision, the fields that changed relative to the
// job just finished, and the next job's description on BurstYes.
func (c *Controller) CheckBurst(ctx context.Context, limits Limits, connectedAt time.Time) (Decision, ChangedFields, *Job, error) {
	if limits.ShouldStop(connectedAt) {
		return BurstNo, 0, nil, nil
	}
	if c.Probe == nil || c.Replies == nil {
		return BurstNo, 0, nil, nil
	}
	if err := c.Probe.Nudge(); err != nil {
		return BurstNo, 0, nil, fmt.Errorf("burst: probe dispatcher: %w", err)
	}
	b, err := c.Replies.ReadByte()
	if err != nil {
		return BurstNo, 0, nil, fmt.Errorf("burst: read probe reply: %w", err)
	}
	switch b {
	case 0:
		return BurstNo, 0, nil, nil
	case 1:
		return BurstYes, 0, nil, nil
	case 2:
		return BurstRescanSource, 0, nil, nil
	case 3:
		return BurstNeither, 0, nil, nil
	default:
		return BurstNo, 0, nil, fmt.Errorf("burst: unknown probe reply byte %d", b)
	}
}

// Replay re-issues exactly the transitions a changed job tuple requires
// instead of tearing down and reconnecting wholesale (spec.md §4.7).
//
// A USER change is special: some servers reject a second USER command on
// the same control connection, so it forces a full logout/reconnect/login
// cycle — but only once per connection; if the retry also fails the
// caller must treat it as a fatal auth error rather than looping.
func (c *Controller) Replay(ctx context.Context, adapter protocol.Adapter, changed ChangedFields, next Job, reconnect func(ctx context.Context) (protocol.Adapter, error)) (protocol.Adapter, error) {
	if changed&UserChanged != 0 {
		if c.retriedUserChange {
			return adapter, fmt.Errorf("burst: USER change retry already used on this connection")
		}
		c.retriedUserChange = true
		if err := adapter.Quit(ctx); err != nil {
			return adapter, fmt.Errorf("burst: quit before USER-change reconnect: %w", err)
		}
		newAdapter, err := reconnect(ctx)
		if err != nil {
			return adapter, fmt.Errorf("burst: reconnect after USER change: %w", err)
		}
		if status, err := newAdapter.Authenticate(ctx, next.User, next.Secret, protocol.AuthPassword); err != nil {
			return newAdapter, fmt.Errorf("burst: re-authenticate as %s (%s): %w", next.User, status, err)
		}
		adapter = newAdapter
	}
	if changed&TypeChanged != 0 {
		// Type is re-issued by the transfer state machine itself on the
		// next file, since protocol.Adapter has no standalone "set type"
		// call; recorded here only so callers know to expect it.
		_ = changed
	}
	if changed&TargetDirChanged != 0 {
		if _, status, err := adapter.Cd(ctx, next.TargetDir, false, 0); err != nil {
			return adapter, fmt.Errorf("burst: cd to new target dir %s (%s): %w", next.TargetDir, status, err)
		}
	}
	return adapter, nil
}
