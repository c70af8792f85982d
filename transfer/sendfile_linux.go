//go:build linux

package transfer

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// sendFile streams size bytes from src (positioned at its current
// offset) to dst's file descriptor via the kernel sendfile(2) fast path.
// Only valid for the (no TLS ∧ no framing ∧ binary) specialization
// (spec.md §4.6.1 step 7, §9 "ftp_sendfile fast path"); callers fall back
// to io.Copy whenever that gate doesn't hold or dst has no usable fd
// (e.g. a TLS-wrapped connection).
func sendFile(dst fder, src *os.File, size int64) (int64, error) {
	var total int64
	remaining := size
	for remaining > 0 {
		n, err := unix.Sendfile(int(dst.Fd()), int(src.Fd()), nil, int(remaining))
		if n > 0 {
			total += int64(n)
			remaining -= int64(n)
		}
		if err != nil {
			if err == unix.EAGAIN || err == unix.EINTR {
				continue
			}
			return total, fmt.Errorf("transfer: sendfile: %w", err)
		}
		if n == 0 {
			break
		}
	}
	return total, nil
}
