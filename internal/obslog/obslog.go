// Package obslog is the structured logging seam used across the worker and
// monitor processes.
//
// The shape of Record is lifted straight from fcostin-tcplb's
// lib/slog.LogRecord, which attached a ClientID/Upstream to every record and
// carried a "TODO replace this entirely with something else. Maybe
// zerolog?" comment on its hand-rolled JSON shim. We resolve that TODO here:
// the default Logger is backed by github.com/rs/zerolog instead of a
// bespoke log.Println wrapper, while keeping the same "Logger is an
// abstract interface, multiple goroutines may call it" contract so call
// sites (worker, monitor, transfer) never import zerolog directly.
package obslog

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Record holds the fields for a single log line. JobID/HostAlias/FSAPos are
// the worker-domain analogues of tcplb's ClientID/Upstream fields.
type Record struct {
	Msg      string
	Err      error
	JobID    string
	HostAlias string
	FSAPos   int
	Slot     int
	Fields   map[string]any
}

// Logger is the abstract logging interface used throughout this module.
// Implementations must be safe for concurrent use.
type Logger interface {
	Debug(r Record)
	Info(r Record)
	Warn(r Record)
	Error(r Record)
}

type zlogger struct {
	z zerolog.Logger
}

// New returns a Logger that writes structured JSON lines to w via zerolog.
func New(w io.Writer) Logger {
	if w == nil {
		w = io.Discard
	}
	z := zerolog.New(w).With().Timestamp().Logger()
	return &zlogger{z: z}
}

// NewConsole returns a Logger that writes human-readable lines to stderr,
// the way a worker attached to a terminal during manual testing would want.
func NewConsole() Logger {
	cw := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	return &zlogger{z: zerolog.New(cw).With().Timestamp().Logger()}
}

func apply(e *zerolog.Event, r Record) {
	if r.JobID != "" {
		e.Str("job_id", r.JobID)
	}
	if r.HostAlias != "" {
		e.Str("host_alias", r.HostAlias)
	}
	if r.FSAPos != 0 {
		e.Int("fsa_pos", r.FSAPos)
	}
	if r.Slot != 0 {
		e.Int("slot", r.Slot)
	}
	for k, v := range r.Fields {
		e.Interface(k, v)
	}
	if r.Err != nil {
		e.AnErr("error", r.Err)
	}
	e.Msg(r.Msg)
}

func (l *zlogger) Debug(r Record) { apply(l.z.Debug(), r) }
func (l *zlogger) Info(r Record)  { apply(l.z.Info(), r) }
func (l *zlogger) Warn(r Record)  { apply(l.z.Warn(), r) }
func (l *zlogger) Error(r Record) { apply(l.z.Error(), r) }

// Discard is a Logger that drops every record; used as the zero-value
// default the way ftp.Dial defaults to a no-op slog.Logger.
var Discard Logger = discardLogger{}

type discardLogger struct{}

func (discardLogger) Debug(Record) {}
func (discardLogger) Info(Record)  {}
func (discardLogger) Warn(Record)  {}
func (discardLogger) Error(Record) {}
