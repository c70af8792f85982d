package ratelimit

import "time"

// TimeoutGuard enforces a per-file wall-clock ceiling on a transfer.
//
// Unlike the Limiter (which throttles bytes/sec across the whole process),
// a TimeoutGuard is scoped to a single file: the transfer state machine
// creates one per PerFile state, starts it when the remote handle opens,
// and checks Expired at every block boundary. Expiry aborts only the file
// in progress (the worker exits STILL_FILES_TO_SEND, not a fatal host
// error) so the dispatcher can retry it.
type TimeoutGuard struct {
	limit time.Duration
	start time.Time
}

// NewTimeoutGuard creates a guard for the given per-file timeout. A zero
// limit disables the guard (Expired always reports false).
func NewTimeoutGuard(limit time.Duration) *TimeoutGuard {
	return &TimeoutGuard{limit: limit}
}

// Start marks the beginning of a file transfer attempt.
func (g *TimeoutGuard) Start() {
	g.start = time.Now()
}

// Expired reports whether the configured per-file timeout has elapsed
// since Start was called. A disabled guard never expires.
func (g *TimeoutGuard) Expired() bool {
	if g == nil || g.limit <= 0 {
		return false
	}
	return time.Since(g.start) > g.limit
}

// Elapsed returns the time since Start was called.
func (g *TimeoutGuard) Elapsed() time.Duration {
	if g == nil || g.start.IsZero() {
		return 0
	}
	return time.Since(g.start)
}
