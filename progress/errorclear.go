package progress

import (
	"fmt"

	"github.com/afdcore/afdcore/internal/fifo"
	"github.com/afdcore/afdcore/statusarea"
)

// ClearHostError implements spec.md §4.6.1 step 7 / invariant I6: after a
// successful transfer, if the host's error counter was nonzero, reset it,
// clear the error-related HostStatusBits, downgrade any peer slots stuck
// in NOT_WORKING to DISCONNECT so the dispatcher reconsiders them, and
// wake the dispatcher exactly once (spec.md §8 P6).
func ClearHostError(area *statusarea.Area, hostPos int, wakeup *fifo.Writer) error {
	var hadError bool
	err := area.WithLock(hostPos, statusarea.RegionEC, func(h *statusarea.HostRecord) error {
		if h.ErrorCounter <= 0 {
			return nil
		}
		hadError = true
		h.ErrorCounter = 0
		h.HostStatusBits &^= uint32(statusarea.BitErrorOffline)
		h.HostStatusBits &^= uint32(statusarea.BitErrorQueueSet)
		for i := range h.Slots {
			if statusarea.ConnectStatus(h.Slots[i].ConnectStatus) == statusarea.StatusNotWorking {
				h.Slots[i].ConnectStatus = int32(statusarea.StatusDisconnect)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("progress: clear host error: %w", err)
	}
	if !hadError {
		return nil
	}
	if wakeup != nil {
		if err := wakeup.Nudge(); err != nil {
			return fmt.Errorf("progress: wake dispatcher: %w", err)
		}
	}
	return nil
}
