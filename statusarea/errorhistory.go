package statusarea

import "time"

// ErrorHistoryEntry is a materialized, easy-to-read copy of one
// errorHistoryEntry ring-buffer slot.
type ErrorHistoryEntry struct {
	Time    time.Time
	Code    int32
	Message string
}

// PushError records an error observation into the ring buffer named in
// spec.md's HostStatus ("error_history[K]") but never given an operation
// by spec.md §4 itself. Must be called while holding RegionEC.
func (h *HostRecord) PushError(code int32, message string) {
	i := int(h.ErrorHistoryAt) % MaxErrorHistory
	e := &h.ErrorHistory[i]
	e.Timestamp = time.Now().Unix()
	e.Code = code
	setCstr(e.Message[:], message)
	h.ErrorHistoryAt++
}

// RecentErrors returns up to n of the most recently pushed error entries,
// newest first.
func (h *HostRecord) RecentErrors(n int) []ErrorHistoryEntry {
	if n > MaxErrorHistory {
		n = MaxErrorHistory
	}
	out := make([]ErrorHistoryEntry, 0, n)
	for i := 0; i < n; i++ {
		idx := (int(h.ErrorHistoryAt) - 1 - i)
		idx %= MaxErrorHistory
		if idx < 0 {
			idx += MaxErrorHistory
		}
		e := h.ErrorHistory[idx]
		if e.Timestamp == 0 {
			break
		}
		out = append(out, ErrorHistoryEntry{
			Time:    time.Unix(e.Timestamp, 0),
			Code:    e.Code,
			Message: cstr(e.Message[:]),
		})
	}
	return out
}
