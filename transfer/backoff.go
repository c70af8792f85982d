package transfer

import (
	"errors"
	"os"
	"syscall"
	"time"
)

// RetryEBUSY runs fn, retrying with a short fixed backoff only when the
// failure is EBUSY (spec.md §4.6.1 step 14's archive-or-unlink step; the
// local filesystem occasionally still has the file open briefly after
// the remote close returns).
func RetryEBUSY(fn func() error, attempts int, wait time.Duration) error {
	var err error
	for i := 0; i < attempts; i++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !isEBUSY(err) {
			return err
		}
		time.Sleep(wait)
	}
	return err
}

func isEBUSY(err error) bool {
	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		return pathErr.Err == syscall.EBUSY
	}
	return errors.Is(err, syscall.EBUSY)
}
