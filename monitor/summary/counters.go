// Package summary implements the Fleet Summary Engine (spec.md §4.10):
// per-peer counters, period-boundary differencing, and the IEC-ish byte
// rendering and ISO week numbering the text report line uses.
package summary

import (
	"github.com/afdcore/afdcore/internal/obslog"
)

// Counters is the six per-peer counters spec.md §4.10 tracks.
type Counters struct {
	FilesReceived    uint64
	BytesReceived    uint64
	FilesSend        uint64
	BytesSend        uint64
	Connections      uint64
	TotalErrors      uint64
	LogBytesReceived uint64
}

// Add accumulates delta into c in place, the way a peer's CurrentSum grows
// monotonically between reports.
func (c *Counters) Add(delta Counters) {
	c.FilesReceived += delta.FilesReceived
	c.BytesReceived += delta.BytesReceived
	c.FilesSend += delta.FilesSend
	c.BytesSend += delta.BytesSend
	c.Connections += delta.Connections
	c.TotalErrors += delta.TotalErrors
	c.LogBytesReceived += delta.LogBytesReceived
}

// Period names one of the saved-slot periods alongside CurrentSum.
type Period int

const (
	Hour Period = iota
	Day
	Week
	Month
	Year
	numPeriods
)

func (p Period) String() string {
	switch p {
	case Hour:
		return "hour"
	case Day:
		return "day"
	case Week:
		return "week"
	case Month:
		return "month"
	case Year:
		return "year"
	default:
		return "unknown"
	}
}

// Slots holds one peer's live counters (CurrentSum, monotonic since the
// monitor started) plus a saved snapshot per period, against which the
// next report diffs.
type Slots struct {
	CurrentSum Counters
	Saved      [numPeriods]Counters
}

// Diff implements spec.md §4.10's overflow-safe differencing rule (P5):
// current >= saved -> their difference; otherwise the counter overflowed
// (or was reset) since the last snapshot, so this logs at debug level and
// reports 0 rather than a huge unsigned wraparound.
func Diff(current, saved uint64, log obslog.Logger, field string) uint64 {
	if current >= saved {
		return current - saved
	}
	if log == nil {
		log = obslog.Discard
	}
	log.Debug(obslog.Record{
		Msg:    "counter overflow detected during fleet summary diff",
		Fields: map[string]any{"field": field, "current": current, "saved": saved},
	})
	return 0
}

// DiffCounters diffs every field of current against saved, field by field,
// via Diff.
func DiffCounters(current, saved Counters, log obslog.Logger) Counters {
	return Counters{
		FilesReceived:    Diff(current.FilesReceived, saved.FilesReceived, log, "files_received"),
		BytesReceived:    Diff(current.BytesReceived, saved.BytesReceived, log, "bytes_received"),
		FilesSend:        Diff(current.FilesSend, saved.FilesSend, log, "files_send"),
		BytesSend:        Diff(current.BytesSend, saved.BytesSend, log, "bytes_send"),
		Connections:      Diff(current.Connections, saved.Connections, log, "connections"),
		TotalErrors:      Diff(current.TotalErrors, saved.TotalErrors, log, "total_errors"),
		LogBytesReceived: Diff(current.LogBytesReceived, saved.LogBytesReceived, log, "log_bytes_received"),
	}
}

// RollPeriod reports the diff for period p against CurrentSum, then copies
// CurrentSum into that period's saved slot — "after emitting the ... line,
// copy CURRENT_SUM into the period slot" (spec.md §4.10).
func (s *Slots) RollPeriod(p Period, log obslog.Logger) Counters {
	d := DiffCounters(s.CurrentSum, s.Saved[p], log)
	s.Saved[p] = s.CurrentSum
	return d
}
