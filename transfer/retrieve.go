package transfer

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/afdcore/afdcore/internal/obslog"
	"github.com/afdcore/afdcore/protocol"
	"github.com/afdcore/afdcore/ratelimit"
	"github.com/afdcore/afdcore/retrievelist"
	"github.com/afdcore/afdcore/statusarea"
)

// RunRetrieve implements spec.md §4.6.2: claim unclaimed RL entries for
// this slot, stream each to a dot-prefixed local temp file, rename to its
// final name, and optionally delete the remote copy.
func (m *Machine) RunRetrieve(ctx context.Context, job *Job, localDir string) (Result, error) {
	var result Result
	if m.RL == nil {
		return result, fmt.Errorf("transfer: RunRetrieve requires a RetrieveList store")
	}

	if job.DirPos >= 0 && m.Dir != nil && !job.ForceRescan {
		unchanged, err := m.dirMtimeUnchanged(ctx, job)
		if err != nil {
			return result, err
		}
		if unchanged {
			return result, m.clearHostErrorIfNeeded(job.HostPos)
		}
	}

	var claimed []int
	m.RL.Iterate(func(i int, e *retrievelist.Entry) bool {
		if e.IsRetrieved() {
			return true
		}
		if err := m.RL.Claim(i, job.SlotID); err == nil {
			claimed = append(claimed, i)
		}
		return true
	})

	if len(claimed) == 0 {
		return result, m.clearHostErrorIfNeeded(job.HostPos)
	}

	for _, i := range claimed {
		n, bytesGot, err := m.retrieveOne(ctx, job, i, localDir)
		if err != nil {
			return result, err
		}
		result.FilesTransferred += n
		result.BytesTransferred += bytesGot
	}

	if job.DirPos >= 0 && m.Dir != nil {
		if err := m.rollDirMtime(ctx, job); err != nil {
			return result, err
		}
	}

	return result, m.clearHostErrorIfNeeded(job.HostPos)
}

// remoteDirMtime stats the directory a retrieve job just scanned. TargetDir
// is the path the adapter has already cd'd to; an empty TargetDir means the
// control connection's current directory.
func (m *Machine) remoteDirMtime(ctx context.Context, job *Job) (time.Time, error) {
	dir := job.TargetDir
	if dir == "" {
		dir = "."
	}
	_, mtime, status, err := m.Adapter.Stat(ctx, dir)
	if err != nil {
		return time.Time{}, fmt.Errorf("transfer: stat remote dir %s (%s): %w", dir, status, err)
	}
	return mtime, nil
}

func (m *Machine) dirMtimeUnchanged(ctx context.Context, job *Job) (bool, error) {
	mtime, err := m.remoteDirMtime(ctx, job)
	if err != nil {
		return false, err
	}
	rec, err := m.Dir.Dir(job.DirPos)
	if err != nil {
		return false, fmt.Errorf("transfer: dir record %d: %w", job.DirPos, err)
	}
	return mtime.Unix() == rec.DirMtime, nil
}

// rollDirMtime stores the mtime observed by this pass minus one second, so
// the next scan still picks up anything that lands in the same second this
// scan ran (spec.md §4.6.2 step 9).
func (m *Machine) rollDirMtime(ctx context.Context, job *Job) error {
	mtime, err := m.remoteDirMtime(ctx, job)
	if err != nil {
		return err
	}
	return m.Dir.WithLockEC(job.DirPos, func(d *statusarea.DirRecord) error {
		d.DirMtime = mtime.Unix() - 1
		return nil
	})
}

func (m *Machine) retrieveOne(ctx context.Context, job *Job, idx int, localDir string) (files, bytesGot int64, err error) {
	entry, eerr := m.rlEntry(idx)
	if eerr != nil {
		return 0, 0, eerr
	}
	remoteName := entry.name
	size := entry.size

	tempName := RetrieveTempName(remoteName)
	tempPath := filepath.Join(localDir, tempName)

	var offset int64
	if info, statErr := os.Stat(tempPath); statErr == nil {
		offset = info.Size()
	}

	handle, status, oerr := m.Adapter.Open(ctx, remoteName, protocol.OpenRead, offset)
	if oerr != nil {
		if status.Kind == protocol.StatusNoSuchFile {
			entry.ref.SetInList(false)
			_ = m.RL.Release(idx)
			return 0, 0, nil
		}
		_ = m.RL.Release(idx)
		return 0, 0, fmt.Errorf("transfer: open remote %s (%s): %w", remoteName, status, oerr)
	}
	defer handle.Close()

	flags := os.O_WRONLY | os.O_CREATE
	if offset > 0 {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	localFile, lerr := os.OpenFile(tempPath, flags, 0o644)
	if lerr != nil {
		_ = m.RL.Release(idx)
		return 0, 0, fmt.Errorf("transfer: open local temp %s: %w", tempPath, lerr)
	}
	defer localFile.Close()

	src := ratelimit.NewReader(io.Reader(handle), m.Limiter)

	blockSize := job.BlockSize
	if blockSize <= 0 {
		blockSize = 32 * 1024
	}

	n, cerr := m.copyWithTimeout(src, localFile, job.PerFileTimeout)
	if cerr != nil {
		_ = m.RL.Release(idx)
		return 0, n, fmt.Errorf("transfer: stream %s: %w", remoteName, cerr)
	}

	if job.RemoveAfterRetrieve {
		if _, err := m.Adapter.Delete(ctx, remoteName); err != nil {
			m.logger().Warn(obslog.Record{
				Msg:  fmt.Sprintf("delete remote %s after retrieve failed: %v", remoteName, err),
				Slot: job.SlotID,
			})
		}
	}

	finalName := FinalRetrieveName(remoteName)
	finalPath := filepath.Join(localDir, finalName)
	localFile.Close()
	if err := os.Rename(tempPath, finalPath); err != nil {
		_ = m.RL.Release(idx)
		return 0, n, fmt.Errorf("transfer: rename %s -> %s: %w", tempPath, finalPath, err)
	}

	if err := m.RL.MarkRetrieved(idx); err != nil {
		return 0, n, fmt.Errorf("transfer: mark retrieved %s: %w", remoteName, err)
	}

	if m.Reporter != nil {
		if err := m.Reporter.Add(1, n); err != nil {
			return 0, n, fmt.Errorf("transfer: report progress: %w", err)
		}
	}

	_ = size
	return 1, n, nil
}

// copyWithTimeout copies from src to dst, self-cancelling (spec.md §4.6.2
// step 6 "enforce per-file timeout") if limit elapses with no forward
// progress.
func (m *Machine) copyWithTimeout(src io.Reader, dst io.Writer, limit time.Duration) (int64, error) {
	if limit <= 0 {
		return io.Copy(dst, src)
	}
	deadline := time.Now().Add(limit)
	var total int64
	buf := make([]byte, 32*1024)
	for {
		if time.Now().After(deadline) {
			return total, fmt.Errorf("transfer: per-file timeout exceeded")
		}
		n, rerr := src.Read(buf)
		if n > 0 {
			wn, werr := dst.Write(buf[:n])
			total += int64(wn)
			if werr != nil {
				return total, werr
			}
			deadline = time.Now().Add(limit)
		}
		if rerr != nil {
			if rerr == io.EOF {
				return total, nil
			}
			return total, rerr
		}
	}
}

type rlEntryView struct {
	name string
	size int64
	ref  *retrievelist.Entry
}

func (m *Machine) rlEntry(i int) (rlEntryView, error) {
	var view rlEntryView
	var found bool
	m.RL.Iterate(func(idx int, e *retrievelist.Entry) bool {
		if idx == i {
			view = rlEntryView{name: e.FileNameString(), size: e.Size, ref: e}
			found = true
			return false
		}
		return true
	})
	if !found {
		return rlEntryView{}, fmt.Errorf("transfer: no such retrieve-list entry %d", i)
	}
	return view, nil
}
