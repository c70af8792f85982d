// Package worker implements the per-job worker process (C8): argv
// parsing, the scoped state value that replaces the source's file-scope
// globals, signal-driven lifecycle cleanup, and the process entry point
// (spec.md §4.8).
package worker

import (
	"github.com/afdcore/afdcore/internal/obslog"
	"github.com/afdcore/afdcore/progress"
	"github.com/afdcore/afdcore/retrievelist"
	"github.com/afdcore/afdcore/statusarea"
	"github.com/afdcore/afdcore/transfer"
)

// Context carries everything the state machine needs, scoped to this
// process's single job (Design Notes §9: "encapsulate this state in a
// worker context value threaded through the state machine"). It replaces
// the source's per-process global variables with an explicit value so
// atexit behavior becomes a scoped guard bound to it instead of a bare
// signal handler touching file-scope state.
type Context struct {
	Args Args

	// HostPos is the byte-range-lockable host position within the Shared
	// Status Area (Args.FSAPos). Slot is the JobSlot index within that
	// host's record; the CLI carries no separate slot argument (spec.md
	// §6's argv list stops at msg_or_dir/flags), so it is derived as
	// Args.JobNo modulo statusarea.MaxJobSlots — an Open Question decision
	// recorded alongside the rest in the design notes.
	HostPos int
	Slot    int

	Area *statusarea.Area
	RL   *retrievelist.Store

	Machine  *transfer.Machine
	Reporter *progress.Reporter
	Log      obslog.Logger

	// result accumulates across the job's transfer(s) for the atexit
	// summary line; Lifecycle reads it on Cleanup.
	result transfer.Result
	bursts int64
}

// AddResult merges r into the context's running totals (called after
// each RunSend/RunRetrieve, including burst continuations).
func (c *Context) AddResult(r transfer.Result) {
	c.result.FilesTransferred += r.FilesTransferred
	c.result.BytesTransferred += r.BytesTransferred
	c.result.AppendCount += r.AppendCount
}

// RecordBurst increments the burst counter used in the summary line.
func (c *Context) RecordBurst() { c.bursts++ }
