package summary

import (
	"fmt"
	"time"
)

var iecUnits = []string{"B", "KB", "MB", "GB", "TB", "PB", "EB"}

// IECSize renders a byte count with IEC-ish (powers-of-1024) scaling,
// spec.md §4.10's "KB/MB/GB/TB/PB/EB" magnitude rendering.
func IECSize(bytes uint64) string {
	if bytes < 1024 {
		return fmt.Sprintf("%d B", bytes)
	}
	value := float64(bytes)
	unit := 0
	for value >= 1024 && unit < len(iecUnits)-1 {
		value /= 1024
		unit++
	}
	return fmt.Sprintf("%.2f %s", value, iecUnits[unit])
}

// ISOWeek reproduces spec.md §4.10's week-number formula verbatim:
// (yday - (wday-1+7) mod 7 + 7) / 7, where yday is 1-based day-of-year and
// wday is C's tm_wday (Sunday=0..Saturday=6, matching time.Weekday).
func ISOWeek(t time.Time) int {
	yday := t.YearDay()
	wday := int(t.Weekday())
	return (yday - (wday-1+7)%7 + 7) / 7
}

// ReportLine formats one peer's per-period diff into the text summary line
// emitted alongside the Prometheus export (spec.md §4.10).
func ReportLine(alias string, p Period, d Counters) string {
	return fmt.Sprintf(
		"%-12s %-5s recv %d/%s send %d/%s conn %d err %d log %s",
		alias, p, d.FilesReceived, IECSize(d.BytesReceived),
		d.FilesSend, IECSize(d.BytesSend),
		d.Connections, d.TotalErrors, IECSize(d.LogBytesReceived),
	)
}

// TotalLine formats the fleet-total line across every peer's diff for period p.
func TotalLine(p Period, total Counters) string {
	return ReportLine("TOTAL", p, total)
}
