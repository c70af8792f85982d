// Package progress implements the Progress Reporter (C3): it batches a
// worker's local file/byte counters and flushes them into the Shared
// Status Area under lock, throttled by a flush interval, with rollback on
// per-file failure. See spec.md §4.3.
package progress

import (
	"fmt"
	"time"

	"github.com/afdcore/afdcore/internal/obslog"
	"github.com/afdcore/afdcore/statusarea"
)

// Snapshot captures the reporter's local counters at a point in time, so a
// failed file can be rolled back to exactly what was true before it
// started (spec.md §4.3).
type Snapshot struct {
	Files int64
	Bytes int64
}

// Reporter batches local counters and flushes them into a HostRecord slot.
//
// Not safe for concurrent use: a worker is single-threaded on its hot path
// (spec.md §5), so this type carries no internal locking of its own beyond
// what it does to the shared Area.
type Reporter struct {
	area     *statusarea.Area
	hostPos  int
	slot     int
	interval time.Duration
	log      obslog.Logger

	localFiles int64
	localBytes int64
	lastFlush  time.Time
}

// NewReporter creates a Reporter for the given host position and job
// slot. interval is LOCK_INTERVAL_TIME from spec.md §4.3: counters are
// held locally and only flushed into the Area when it elapses, or when
// Finalize is called.
func NewReporter(area *statusarea.Area, hostPos, slot int, interval time.Duration, log obslog.Logger) *Reporter {
	if log == nil {
		log = obslog.Discard
	}
	return &Reporter{area: area, hostPos: hostPos, slot: slot, interval: interval, log: log, lastFlush: time.Now()}
}

// Snapshot returns the reporter's current local (unflushed-or-flushed)
// totals, for use with Rollback.
func (r *Reporter) Snapshot() Snapshot {
	return Snapshot{Files: r.localFiles, Bytes: r.localBytes}
}

// Add accounts for files/bytes completed locally since the last flush,
// flushing immediately if the configured interval has elapsed.
func (r *Reporter) Add(files, bytes int64) error {
	r.localFiles += files
	r.localBytes += bytes
	if time.Since(r.lastFlush) >= r.interval {
		return r.Flush()
	}
	return nil
}

// Flush writes the accumulated local counters into the Area under the TFC
// lock and resets them to zero. It is always safe to call even if nothing
// has accumulated.
func (r *Reporter) Flush() error {
	if r.localFiles == 0 && r.localBytes == 0 {
		return nil
	}
	files, bytes := r.localFiles, r.localBytes
	err := r.area.WithLock(r.hostPos, statusarea.RegionTFC, func(h *statusarea.HostRecord) error {
		h.TotalFileCounter += files
		h.TotalFileSize += bytes
		slot := &h.Slots[r.slot]
		slot.NoOfFilesDone += files
		slot.FileSizeDone += bytes
		return nil
	})
	if err != nil {
		return fmt.Errorf("progress: flush: %w", err)
	}
	r.localFiles, r.localBytes = 0, 0
	r.lastFlush = time.Now()
	return nil
}

// Finalize flushes unconditionally, ignoring the interval. Call it once
// per file (success or failure) and once more at job end.
func (r *Reporter) Finalize() error {
	r.lastFlush = time.Time{} // force Flush's interval check to pass
	return r.Flush()
}

// Rollback reconstructs counters to a prior Snapshot when a file fails
// mid-transfer, undoing any partial local accounting for that file before
// the next Add/Flush (spec.md §4.3).
func (r *Reporter) Rollback(snap Snapshot) {
	r.localFiles = snap.Files
	r.localBytes = snap.Bytes
}

// ReconcileSize corrects host totals by the delta between the size
// observed at list-time and the bytes actually streamed, logging a
// warning either way (spec.md §4.3).
func (r *Reporter) ReconcileSize(expected, actual int64) error {
	delta := actual - expected
	r.log.Warn(obslog.Record{
		Msg:  "transferred size disagreed with listed size",
		Slot: r.slot,
		Fields: map[string]any{
			"expected": expected,
			"actual":   actual,
			"delta":    delta,
		},
	})
	if delta == 0 {
		return nil
	}
	return r.area.WithLock(r.hostPos, statusarea.RegionTFC, func(h *statusarea.HostRecord) error {
		h.TotalFileSize += delta
		return nil
	})
}
