package transfer

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/afdcore/afdcore/internal/fifo"
	"github.com/afdcore/afdcore/internal/obslog"
	"github.com/afdcore/afdcore/progress"
	"github.com/afdcore/afdcore/protocol"
	"github.com/afdcore/afdcore/ratelimit"
	"github.com/afdcore/afdcore/retrievelist"
	"github.com/afdcore/afdcore/statusarea"
)

// Machine drives one job's send or retrieve loop over a single connected
// Adapter, reconciling progress and error state into the Shared Status
// Area as it goes (spec.md §4.6).
type Machine struct {
	Adapter  protocol.Adapter
	Area     *statusarea.Area
	Dir      *statusarea.DirArea // nil disables the directory-mtime short circuit and rollback
	RL       *retrievelist.Store // nil for send jobs
	Limiter  *ratelimit.Limiter  // nil disables rate limiting
	Reporter *progress.Reporter
	Dup      *DupTable // nil disables the dup-check table
	Log      obslog.Logger
	Wakeup   *fifo.Writer
}

func (m *Machine) logger() obslog.Logger {
	if m.Log == nil {
		return obslog.Discard
	}
	return m.Log
}

// RunSend implements spec.md §4.6.1: enumerate job.SendFiles, stream each
// to the remote under its locked wire name, verify size, then archive or
// unlink the local copy.
func (m *Machine) RunSend(ctx context.Context, job *Job) (Result, error) {
	var result Result

	if job.LockFile != "" {
		if err := m.withOpen(ctx, job.LockFile, protocol.OpenWrite, 0, func(h protocol.Handle) error {
			_, err := io.WriteString(h, "")
			return err
		}); err != nil {
			return result, fmt.Errorf("transfer: write lock file %s: %w", job.LockFile, err)
		}
	}

	for _, local := range job.SendFiles {
		n, bytes, appended, err := m.sendOne(ctx, job, local)
		if err != nil {
			return result, err
		}
		result.FilesTransferred += n
		result.BytesTransferred += bytes
		if appended {
			result.AppendCount++
		}
	}

	return result, m.clearHostErrorIfNeeded(job.HostPos)
}

func (m *Machine) sendOne(ctx context.Context, job *Job, local string) (files, bytesSent int64, appended bool, err error) {
	base := filepath.Base(local)
	wireName := WireName(base, job.Naming)
	remotePath := wireName
	if job.TargetDir != "" {
		// FastCD folds the directory into every per-file path instead of a
		// separate CWD (spec.md §4.6.1 step 5); non-fast-cd jobs have
		// already CWD'd, but the worker still knows the target directory
		// and composing the full path here costs nothing and is simpler
		// than tracking "already there" state across calls.
		remotePath = strings.TrimRight(job.TargetDir, "/") + "/" + wireName
	}

	var appendOffset int64
	if off, ok := job.RestartOffsets[base]; ok {
		appendOffset = off
		appended = true
	}

	f, ferr := os.Open(local)
	if ferr != nil {
		return 0, 0, false, fmt.Errorf("transfer: open local %s: %w", local, ferr)
	}
	defer f.Close()
	if appendOffset > 0 {
		if _, err := f.Seek(appendOffset, io.SeekStart); err != nil {
			return 0, 0, false, fmt.Errorf("transfer: seek local %s to %d: %w", local, appendOffset, err)
		}
	}
	info, serr := f.Stat()
	if serr != nil {
		return 0, 0, false, fmt.Errorf("transfer: stat local %s: %w", local, serr)
	}
	localSize := info.Size()

	mode := protocol.OpenWrite
	if appendOffset > 0 {
		mode = protocol.OpenAppend
	}

	handle, status, oerr := m.Adapter.Open(ctx, remotePath, mode, appendOffset)
	if oerr != nil {
		return 0, 0, appended, fmt.Errorf("transfer: open remote %s (%s): %w", remotePath, status, oerr)
	}

	dst := ratelimit.NewWriter(io.Writer(handle), m.Limiter)

	var framer *FramedWriter
	if job.WMO {
		framer = NewFramedWriter(dst, base)
		dst = framer
	}

	blockSize := job.BlockSize
	if blockSize <= 0 {
		blockSize = 32 * 1024
	}

	var written int64
	var copyErr error
	if CanSendfile(handle, job.Mode, job.WMO) {
		fd := handle.(fder)
		written, copyErr = sendFile(fd, f, localSize-appendOffset)
	} else {
		written, copyErr = io.CopyBuffer(dst, f, make([]byte, blockSize))
	}
	if copyErr != nil {
		handle.Close()
		return 0, written, appended, fmt.Errorf("transfer: stream %s: %w", remotePath, copyErr)
	}
	if framer != nil {
		if err := framer.Close(); err != nil {
			handle.Close()
			return 0, written, appended, fmt.Errorf("transfer: close framing %s: %w", remotePath, err)
		}
	}

	if err := handle.Close(); err != nil {
		return 0, written, appended, fmt.Errorf("transfer: close remote %s: %w", remotePath, err)
	}

	if job.ChmodAfter != nil {
		_, _ = m.Adapter.Exec(ctx, "CHMOD", fmt.Sprintf("%o %s", *job.ChmodAfter, remotePath))
	}

	if job.SizeCheck {
		remoteSize, _, status, err := m.Adapter.Stat(ctx, remotePath)
		if err == nil {
			expected := localSize
			if status.Kind == protocol.StatusSuccess && remoteSize != expected {
				if m.Dup != nil {
					m.Dup.Remove(base)
				}
				return 0, written, appended, fmt.Errorf("transfer: size mismatch on %s: remote %d != local %d", remotePath, remoteSize, expected)
			}
		}
	}

	finalPath := remotePath
	if IsLocked(job.Naming) {
		finalName := base
		finalRemote := finalName
		if job.TargetDir != "" {
			finalRemote = strings.TrimRight(job.TargetDir, "/") + "/" + finalName
		}
		if _, status, err := m.Adapter.Move(ctx, remotePath, finalRemote, job.FastCD, false, 0); err != nil {
			return 0, written, appended, fmt.Errorf("transfer: rename %s -> %s (%s): %w", remotePath, finalRemote, status, err)
		}
		finalPath = finalRemote
	}

	if job.SitePostHook != "" {
		_, _ = m.Adapter.Exec(ctx, job.SitePostHook, finalPath)
	}

	if err := m.finishLocal(job, local); err != nil {
		return 0, written, appended, err
	}

	if appended {
		delete(job.RestartOffsets, base)
	}

	if m.Reporter != nil {
		if err := m.Reporter.Add(1, written); err != nil {
			return 0, written, appended, fmt.Errorf("transfer: report progress: %w", err)
		}
	}

	return 1, written, appended, nil
}

// finishLocal archives the local file into job.ArchiveDir, or unlinks it,
// retrying EBUSY unlinks briefly (spec.md §4.6.1 step 14).
func (m *Machine) finishLocal(job *Job, local string) error {
	if job.ArchiveDir != "" {
		dst := filepath.Join(job.ArchiveDir, filepath.Base(local))
		if err := copyFile(local, dst); err != nil {
			return fmt.Errorf("transfer: archive %s: %w", local, err)
		}
	}
	return RetryEBUSY(func() error {
		err := os.Remove(local)
		if err != nil && os.IsNotExist(err) {
			return nil
		}
		return err
	}, 5, 100*time.Millisecond)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, in)
	return err
}

func (m *Machine) withOpen(ctx context.Context, path string, mode protocol.OpenMode, offset int64, fn func(protocol.Handle) error) error {
	h, status, err := m.Adapter.Open(ctx, path, mode, offset)
	if err != nil {
		return fmt.Errorf("transfer: open %s (%s): %w", path, status, err)
	}
	defer h.Close()
	return fn(h)
}

// clearHostErrorIfNeeded implements spec.md §4.6.1 step 7's tail and I6/P6.
func (m *Machine) clearHostErrorIfNeeded(hostPos int) error {
	if m.Area == nil {
		return nil
	}
	return progress.ClearHostError(m.Area, hostPos, m.Wakeup)
}
