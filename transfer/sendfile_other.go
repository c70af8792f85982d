//go:build !linux

package transfer

import (
	"fmt"
	"io"
	"os"
)

// sendFile falls back to io.Copy on platforms without sendfile(2); the
// fast path (sendfile_linux.go) is an optimization, never a correctness
// requirement.
func sendFile(dst fder, src *os.File, size int64) (int64, error) {
	w, ok := dst.(io.Writer)
	if !ok {
		return 0, fmt.Errorf("transfer: sendfile fallback: destination is not a Writer")
	}
	n, err := io.CopyN(w, src, size)
	if err != nil && err != io.EOF {
		return n, fmt.Errorf("transfer: sendfile fallback copy: %w", err)
	}
	return n, nil
}
