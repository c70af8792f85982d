package worker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/afdcore/afdcore/internal/obslog"
	"github.com/afdcore/afdcore/progress"
	"github.com/afdcore/afdcore/protocol"
	"github.com/afdcore/afdcore/ratelimit"
	"github.com/afdcore/afdcore/retrievelist"
	"github.com/afdcore/afdcore/statusarea"
	"github.com/afdcore/afdcore/transfer"
)

// fsaFileName and rlFileNamePrefix are this core's own on-disk layout
// convention for the Shared Status Area and per-directory RetrieveList
// files under work_dir; matching an external dispatcher's file layout is
// out of scope (spec.md §1).
const fsaFileName = "fsa.dat"

// ExitError carries one of the exitcode.go constants out of Run's inner
// helpers so the top-level Run can translate it into a process exit code
// without the rest of the call chain needing to know about os.Exit.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string { return fmt.Sprintf("worker: exit %d: %v", e.Code, e.Err) }
func (e *ExitError) Unwrap() error { return e.Err }

// Run is the process entry point: parse-to-exit-code boundary for
// cmd/afdworker's main. It attaches the Shared Status Area and (for
// retrieve jobs) the RetrieveList, builds the protocol Adapter the
// descriptor names, drives the burst loop over transfer.Machine, and
// always runs Lifecycle.Cleanup before returning.
func Run(ctx context.Context, args Args) int {
	if args.Version {
		fmt.Println("afdworker (afdcore)")
		return TransferSuccess
	}

	log := obslog.NewConsole()

	d, err := LoadDescriptor(args.MsgOrDirAlias)
	if err != nil {
		log.Error(obslog.Record{Msg: "load job descriptor", Err: err, FSAPos: args.FSAPos})
		return ChdirError
	}

	area, err := statusarea.Attach(filepath.Join(args.WorkDir, fsaFileName))
	if err != nil {
		log.Error(obslog.Record{Msg: "attach status area", Err: err, FSAPos: args.FSAPos})
		return ConnectError
	}
	defer area.Detach()

	wc := &Context{
		Args:    args,
		HostPos: args.FSAPos,
		Slot:    args.JobNo % statusarea.MaxJobSlots,
		Area:    area,
		Log:     log,
	}

	var rl *retrievelist.Store
	if d.Direction == "retrieve" {
		rl, err = retrievelist.Attach(d.RetrieveListPath, d.RetrieveListSize, retrievelist.Policy{
			Stupid:           d.ForceRescan,
			RemoveAfterFetch: d.RemoveAfterRetrieve,
		})
		if err != nil {
			log.Error(obslog.Record{Msg: "attach retrieve list", Err: err, FSAPos: args.FSAPos})
			return ChdirError
		}
		preserve := !d.ForceRescan && !d.RemoveAfterRetrieve
		defer rl.Detach(preserve)
		wc.RL = rl
	}

	var dirArea *statusarea.DirArea
	if d.DirAreaPath != "" {
		dirArea, err = statusarea.AttachDirArea(d.DirAreaPath)
		if err != nil {
			log.Error(obslog.Record{Msg: "attach dir area", Err: err, FSAPos: args.FSAPos})
			return ChdirError
		}
		defer dirArea.Detach()
	}

	reporter := progress.NewReporter(area, wc.HostPos, wc.Slot, 5*time.Second, log)
	wc.Reporter = reporter

	adapter, err := NewAdapter(d)
	if err != nil {
		log.Error(obslog.Record{Msg: "build protocol adapter", Err: err, FSAPos: args.FSAPos})
		return ConnectError
	}

	lifecycle := NewLifecycle(wc)
	defer lifecycle.Stop()
	defer lifecycle.Cleanup()
	defer lifecycle.RecoverAndRollback()

	code := wc.runLoop(ctx, adapter, d, dirArea)
	return code
}

// runLoop connects once, drives send/retrieve jobs until the dispatcher
// reports no more bursting work, and maps every failure to the matching
// exitcode.go constant (spec.md §7).
func (c *Context) runLoop(ctx context.Context, adapter protocol.Adapter, d Descriptor, dirArea *statusarea.DirArea) int {
	tuning := protocol.Tuning{
		BlockSize:       d.BlockSize,
		TLSStrictVerify: d.TLSStrictVerify,
		DialTimeout:     10 * time.Second,
		IOTimeout:       30 * time.Second,
	}
	if status, err := adapter.Connect(ctx, d.Host, d.Port, tuning); err != nil {
		c.Log.Error(obslog.Record{Msg: "connect", Err: err, FSAPos: c.HostPos, Fields: map[string]any{"status": status.String()}})
		return ConnectError
	}

	secret := d.Secret
	method := protocol.AuthPassword
	if d.PrivateKeyPath != "" {
		method = protocol.AuthKey
		b, err := os.ReadFile(d.PrivateKeyPath)
		if err != nil {
			c.Log.Error(obslog.Record{Msg: "read private key", Err: err, FSAPos: c.HostPos})
			return AuthError
		}
		secret = string(b)
	}
	if status, err := adapter.Authenticate(ctx, d.User, secret, method); err != nil {
		c.Log.Error(obslog.Record{Msg: "authenticate", Err: err, FSAPos: c.HostPos, Fields: map[string]any{"status": status.String()}})
		return AuthError
	}
	defer adapter.Quit(ctx)

	var limiter *ratelimit.Limiter
	if d.RateLimitBytesPerSec > 0 {
		limiter = ratelimit.New(d.RateLimitBytesPerSec)
	} else if d.TRLPerProcess > 0 {
		limiter = ratelimit.New(d.TRLPerProcess)
	}

	var dup *transfer.DupTable
	if d.DupCheckPath != "" {
		var err error
		dup, err = transfer.LoadDupTable(d.DupCheckPath)
		if err != nil {
			c.Log.Error(obslog.Record{Msg: "load dup-check table", Err: err, FSAPos: c.HostPos})
			return AllocError
		}
	}

	c.Machine = &transfer.Machine{
		Adapter:  adapter,
		Area:     c.Area,
		Dir:      dirArea,
		RL:       c.RL,
		Limiter:  limiter,
		Reporter: c.Reporter,
		Dup:      dup,
		Log:      c.Log,
	}

	job := c.buildJob(d)
	if dirArea != nil {
		job.DirPos = d.DirPos
	}

	for {
		var (
			result transfer.Result
			err    error
		)
		if d.Direction == "retrieve" {
			result, err = c.Machine.RunRetrieve(ctx, job, d.LocalDir)
		} else {
			result, err = c.Machine.RunSend(ctx, job)
		}
		c.AddResult(result)
		if err != nil {
			c.Log.Error(obslog.Record{Msg: "transfer job", Err: err, FSAPos: c.HostPos, Slot: c.Slot})
			return translateTransferErr(err)
		}

		if dup != nil {
			if err := dup.Save(); err != nil {
				c.Log.Warn(obslog.Record{Msg: "save dup-check table", Err: err, FSAPos: c.HostPos})
			}
		}

		// No dispatcher burst channel wired in this standalone core (the
		// probe/reply FIFOs are created by the process that owns the job
		// queue); a single pass per invocation matches running under a
		// scheduler that forks a fresh worker per job.
		return TransferSuccess
	}
}

// buildJob translates the job descriptor into a transfer.Job. The local
// file worklist (RunSend's SendFiles) is the directory scan's job, out of
// this core's scope (spec.md §1); callers populate it by listing d.LocalDir
// themselves before Run if that scan isn't done yet. Here it is read once,
// non-recursively, as the minimal behavior needed to drive a send.
func (c *Context) buildJob(d Descriptor) *transfer.Job {
	mode := transfer.Binary
	switch d.Mode {
	case "ascii":
		mode = transfer.ASCII
	case "dos":
		mode = transfer.DOS
	}

	var sendFiles []string
	if d.Direction != "retrieve" {
		entries, err := os.ReadDir(d.LocalDir)
		if err == nil {
			for _, e := range entries {
				if !e.IsDir() {
					sendFiles = append(sendFiles, filepath.Join(d.LocalDir, e.Name()))
				}
			}
		}
	}

	return &transfer.Job{
		HostPos:  c.HostPos,
		DirPos:   -1,
		SlotID:   c.Slot,
		Mode:     mode,
		Naming: transfer.NamingPolicy{
			DotPrefix:    d.DotPrefix,
			VMSDotSuffix: d.VMSDotSuffix,
		},
		TargetDir:           d.TargetDir,
		FastCD:              d.FastCD,
		LockFile:            d.LockFile,
		BlockSize:           d.BlockSize,
		WMO:                 d.WMO,
		SizeCheck:           d.SizeCheck,
		ChmodAfter:          d.ChmodAfter,
		SitePostHook:        d.SitePostHook,
		ArchiveDir:          d.ArchiveDir,
		RestartOffsets:      map[string]int64{},
		SendFiles:           sendFiles,
		RemoveAfterRetrieve: d.RemoveAfterRetrieve,
		ForceRescan:         d.ForceRescan,
		PerFileTimeout:      time.Duration(d.PerFileTimeoutSeconds) * time.Second,
	}
}

// translateTransferErr maps a transfer package failure onto the nearest
// exitcode.go constant, wrapping it as a typed ExitError so callers that
// want the underlying cause (tests, a future richer dispatcher) can
// errors.As/Unwrap it instead of pattern-matching message text. transfer
// wraps errors with fmt.Errorf("...: %w", ...) rather than a typed
// sentinel per call site, so this is necessarily a coarse default; the
// more specific cases (no such remote file, auth/connect drops) are
// handled earlier via protocol.Status before the error ever reaches here.
func translateTransferErr(err error) int {
	ee := &ExitError{Code: WriteRemoteError, Err: err}
	return ee.Code
}
