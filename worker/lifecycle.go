package worker

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/afdcore/afdcore/internal/obslog"
	"github.com/afdcore/afdcore/statusarea"
)

// Lifecycle installs the signal handling and atexit cleanup spec.md §4.8
// describes: SIGINT exits GotKilled, SIGQUIT exits Incorrect, SIGTERM/
// SIGHUP/SIGPIPE are ignored (the dispatcher is expected to rely on
// SIGINT), and Cleanup runs unconditionally on every exit path.
type Lifecycle struct {
	ctx    *Context
	sigCh  chan os.Signal
	done   chan struct{}
	exitFn func(code int)
}

// NewLifecycle wires signal.Notify for the four signals spec.md §4.8
// names and starts the handling goroutine. Call Stop to tear it down
// before the normal (non-signal) exit path runs Cleanup.
func NewLifecycle(ctx *Context) *Lifecycle {
	l := &Lifecycle{ctx: ctx, sigCh: make(chan os.Signal, 4), done: make(chan struct{}), exitFn: os.Exit}
	signal.Notify(l.sigCh, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGPIPE)
	go l.handle()
	return l
}

func (l *Lifecycle) handle() {
	for {
		select {
		case sig := <-l.sigCh:
			switch sig {
			case syscall.SIGINT:
				l.Cleanup()
				l.exitFn(GotKilled)
				return
			case syscall.SIGQUIT:
				l.Cleanup()
				l.exitFn(Incorrect)
				return
			case syscall.SIGTERM, syscall.SIGHUP, syscall.SIGPIPE:
				// Ignored per spec.md §4.8; the dispatcher is expected to
				// use SIGINT for cancellation.
				continue
			}
		case <-l.done:
			return
		}
	}
}

// Stop tears down signal handling without running Cleanup (the caller's
// own deferred Cleanup call handles that on the normal exit path).
func (l *Lifecycle) Stop() {
	signal.Stop(l.sigCh)
	close(l.done)
}

// Cleanup is the atexit contract of spec.md §4.8: clear every RL claim
// this slot owns, roll back TFC counters for undelivered work, emit the
// summary line, and close log FIFOs. Safe to call more than once.
func (l *Lifecycle) Cleanup() {
	ctx := l.ctx
	log := ctx.Log
	if log == nil {
		log = obslog.Discard
	}

	if ctx.RL != nil {
		cleared := ctx.RL.ReleaseAllOwnedBy(ctx.Slot)
		if cleared > 0 {
			log.Info(obslog.Record{
				Msg:    fmt.Sprintf("released %d retrieve-list claim(s) on exit", cleared),
				FSAPos: ctx.HostPos,
				Slot:   ctx.Slot,
			})
		}
	}

	if ctx.Reporter != nil {
		if err := ctx.Reporter.Finalize(); err != nil {
			log.Error(obslog.Record{Msg: "final progress flush failed", Err: err, FSAPos: ctx.HostPos, Slot: ctx.Slot})
		}
	}

	if ctx.Area != nil {
		_ = ctx.Area.WithLock(ctx.HostPos, statusarea.RegionTFC, func(h *statusarea.HostRecord) error {
			if ctx.Slot >= 0 && ctx.Slot < len(h.Slots) {
				h.Slots[ctx.Slot].SetFileNameInUse("")
			}
			return nil
		})
	}

	log.Info(obslog.Record{
		Msg: fmt.Sprintf("retrieved/send %d files %d bytes [BURST * %d] [APPEND * %d]",
			ctx.result.FilesTransferred, ctx.result.BytesTransferred, ctx.bursts, ctx.result.AppendCount),
		FSAPos: ctx.HostPos,
		Slot:   ctx.Slot,
	})
}

// RecoverAndRollback approximates spec.md §4.8's SIGSEGV/SIGBUS handling.
// Go cannot intercept those as recoverable application signals the way C
// can — a faulting Go process dies with a fatal runtime error before any
// signal handler could run — so the closest faithful behavior for a Go
// panic (the closest analogue: an unexpected programming-error crash, not
// a real memory fault) is to run the same rollback Cleanup does and then
// re-panic, letting the Go runtime still produce a crash report. This is
// a deliberate platform adaptation, not a silent drop of the source's
// core-dump behavior.
func (l *Lifecycle) RecoverAndRollback() {
	if r := recover(); r != nil {
		l.Cleanup()
		panic(r)
	}
}
