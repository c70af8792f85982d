// Package monitor implements the Monitor Supervisor (C9): one long-lived
// process overseeing a per-peer child for every configured remote AFD
// instance, plus the Fleet Summary Engine's (C10) periodic report cadence
// (spec.md §4.9, §4.10).
package monitor

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/afdcore/afdcore/internal/fifo"
	"github.com/afdcore/afdcore/internal/obslog"
	"github.com/afdcore/afdcore/monitor/summary"
)

// DialPeer builds the ProbeFunc a real peer child runs: whatever work one
// supervision cycle of "talk to this peer, update its counters" means.
// Out of this core's scope is the actual AFD-to-AFD wire protocol; callers
// (cmd/afdmon, tests) supply their own.
type DialPeer func(ctx context.Context, peer PeerConfig, slots *summary.Slots) error

// Supervisor owns the configured peer children, the command FIFO loop,
// and the summary/config-poll cadences. Child supervision uses
// golang.org/x/sync/errgroup purely for the wait/bookkeeping of "run N
// children, tell me when they're all done" — NOT for errgroup's usual
// first-error-cancels-the-group behavior, since one peer's fatal restart
// storm must never stop the Monitor from supervising the others (spec.md
// §4.9).
type Supervisor struct {
	ConfigPath string
	CmdPath    string
	Dial       DialPeer
	Log        obslog.Logger
	Metrics    *summary.Metrics

	mu       sync.Mutex
	cfg      Config
	children map[string]*PeerChild
	slots    map[string]*summary.Slots
}

// NewSupervisor builds a Supervisor. reg may be nil to disable Prometheus
// export (tests).
func NewSupervisor(configPath, cmdPath string, dial DialPeer, log obslog.Logger, reg prometheus.Registerer) *Supervisor {
	if log == nil {
		log = obslog.Discard
	}
	var metrics *summary.Metrics
	if reg != nil {
		metrics = summary.NewMetrics(reg)
	}
	return &Supervisor{
		ConfigPath: configPath,
		CmdPath:    cmdPath,
		Dial:       dial,
		Log:        log,
		Metrics:    metrics,
		children:   map[string]*PeerChild{},
		slots:      map[string]*summary.Slots{},
	}
}

// Run loads the config, spawns one child per peer, and drives the command
// loop and periodic cadences until ctx is cancelled or a Shutdown command
// arrives. It returns when every child has stopped.
func (s *Supervisor) Run(ctx context.Context) error {
	cfg, err := LoadConfig(s.ConfigPath)
	if err != nil {
		return fmt.Errorf("monitor: load config: %w", err)
	}
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()

	childCtx, cancelChildren := context.WithCancel(ctx)
	defer cancelChildren()

	var g errgroup.Group
	s.mu.Lock()
	for _, p := range cfg.Peers {
		p := p
		slots := &summary.Slots{}
		s.slots[p.Alias] = slots
		child := NewPeerChild(p.Alias, func(ctx context.Context) error {
			return s.Dial(ctx, p, slots)
		})
		s.children[p.Alias] = child
		g.Go(func() error {
			err := child.Run(childCtx)
			if err != nil {
				s.Log.Error(obslog.Record{Msg: "peer child stopped", Err: err, Fields: map[string]any{"peer": p.Alias}})
			}
			return err
		})
	}
	s.mu.Unlock()

	cmdErr := s.commandLoop(ctx, cfg, cancelChildren)

	waitErr := g.Wait()
	if cmdErr != nil {
		return cmdErr
	}
	return waitErr
}

// commandLoop is the Monitor's main select loop: the command FIFO, the
// config-mtime poll (every 10s), and the per-peer summary cadence (every
// 1s), all multiplexed over channels rather than a raw select(2) the way
// the source's C implementation would.
func (s *Supervisor) commandLoop(ctx context.Context, cfg Config, cancelChildren context.CancelFunc) error {
	cmds, cmdErrs := s.readCommands(ctx)

	configPoll := time.NewTicker(10 * time.Second)
	defer configPoll.Stop()
	summaryTick := time.NewTicker(1 * time.Second)
	defer summaryTick.Stop()

	lastMtime := statMtime(s.ConfigPath)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-cmdErrs:
			if err != nil {
				s.Log.Warn(obslog.Record{Msg: "command fifo closed", Err: err})
			}
			return nil

		case cmd := <-cmds:
			switch cmd.Op {
			case OpShutdown:
				cancelChildren()
				return nil
			case OpDisableMon:
				s.setDisabled(cfg, cmd.Pos, true)
			case OpEnableMon:
				s.setDisabled(cfg, cmd.Pos, false)
			case OpGotLogCapabilities, OpIsAlive:
				// Restarting the log-fetch child with a new capability set,
				// and replying on the probe FIFO for IsAlive, both need a
				// live dispatcher/FIFO wiring this standalone core doesn't
				// own; recorded so callers can observe it happened.
				s.Log.Info(obslog.Record{Msg: "received command", Fields: map[string]any{"op": cmd.Op.String(), "pos": cmd.Pos}})
			}

		case <-configPoll.C:
			mtime := statMtime(s.ConfigPath)
			if !mtime.Equal(lastMtime) {
				s.Log.Info(obslog.Record{Msg: "config file changed, restarting children"})
				return nil
			}

		case <-summaryTick.C:
			s.reportSummaries(cfg)
		}
	}
}

func statMtime(path string) time.Time {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}

func (s *Supervisor) setDisabled(cfg Config, pos int, disabled bool) {
	if pos < 0 || pos >= len(cfg.Peers) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.children[cfg.Peers[pos].Alias]; ok {
		c.Disabled = disabled
	}
}

// reportSummaries rolls every peer's current-hour period diff and exports
// it, matching spec.md §4.10's "every second ... recompute group summaries".
func (s *Supervisor) reportSummaries(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total summary.Counters
	for _, p := range cfg.Peers {
		slots, ok := s.slots[p.Alias]
		if !ok {
			continue
		}
		diff := slots.RollPeriod(summary.Hour, s.Log)
		total.Add(diff)
		s.Log.Info(obslog.Record{Msg: summary.ReportLine(p.Alias, summary.Hour, diff)})
		if s.Metrics != nil {
			s.Metrics.Set(p.Alias, slots.CurrentSum)
		}
	}
	s.Log.Info(obslog.Record{Msg: summary.TotalLine(summary.Hour, total)})
}

// readCommands pumps DecodeCommand over the command FIFO into a channel,
// the idiomatic Go stand-in for select(2)-driven FIFO reads: a dedicated
// goroutine blocks in the read, the main loop only ever receives.
func (s *Supervisor) readCommands(ctx context.Context) (<-chan Command, <-chan error) {
	cmds := make(chan Command)
	errs := make(chan error, 1)

	r, err := fifo.OpenReader(s.CmdPath, false)
	if err != nil {
		errs <- fmt.Errorf("monitor: open command fifo %s: %w", s.CmdPath, err)
		return cmds, errs
	}

	go func() {
		defer r.Close()
		for {
			cmd, err := DecodeCommand(r.File())
			if err != nil {
				errs <- err
				return
			}
			select {
			case cmds <- cmd:
			case <-ctx.Done():
				return
			}
		}
	}()

	return cmds, errs
}
