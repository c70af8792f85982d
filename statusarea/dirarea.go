package statusarea

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync/atomic"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

const dirRecordSize = int64(unsafe.Sizeof(DirRecord{}))

// DirArea is the File-Retrieve Area (FRA): a memory-mapped table of
// DirRecord entries, one per configured retrieve directory. Unlike the
// HostRecord's four regions, DirStatus has a single EC (error-counter)
// lock (spec.md §5).
type DirArea struct {
	file *os.File
	data []byte
	id   uint64
	n    int

	detached atomic.Bool
}

// CreateDirArea creates a new FRA file with room for n directories.
func CreateDirArea(path string, n int) (*DirArea, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("statusarea: create dir area %s: %w", path, err)
	}
	size := headerSize + int64(n)*dirRecordSize
	if err := f.Truncate(size); err != nil {
		f.Close()
		return nil, fmt.Errorf("statusarea: truncate dir area %s: %w", path, err)
	}
	id := uint64(time.Now().UnixNano())
	hdr := make([]byte, headerSize)
	binary.LittleEndian.PutUint64(hdr[0:8], id)
	binary.LittleEndian.PutUint64(hdr[8:16], uint64(n))
	if _, err := f.WriteAt(hdr, 0); err != nil {
		f.Close()
		return nil, fmt.Errorf("statusarea: write dir area header: %w", err)
	}
	return attachDirFile(f, id, n)
}

// AttachDirArea maps an existing FRA file.
func AttachDirArea(path string) (*DirArea, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("statusarea: open dir area %s: %w", path, err)
	}
	hdr := make([]byte, headerSize)
	if _, err := f.ReadAt(hdr, 0); err != nil {
		f.Close()
		return nil, fmt.Errorf("statusarea: read dir area header: %w", err)
	}
	id := binary.LittleEndian.Uint64(hdr[0:8])
	n := int(binary.LittleEndian.Uint64(hdr[8:16]))
	return attachDirFile(f, id, n)
}

func attachDirFile(f *os.File, id uint64, n int) (*DirArea, error) {
	size := headerSize + int64(n)*dirRecordSize
	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("statusarea: mmap dir area: %w", err)
	}
	return &DirArea{file: f, data: data, id: id, n: n}, nil
}

// Detach unmaps and closes the DirArea.
func (a *DirArea) Detach() error {
	if !a.detached.CompareAndSwap(false, true) {
		return nil
	}
	err := unix.Munmap(a.data)
	cerr := a.file.Close()
	if err != nil {
		return err
	}
	return cerr
}

// NumDirs returns the number of DirRecord slots in this DirArea.
func (a *DirArea) NumDirs() int { return a.n }

// Dir returns a view over the DirRecord at pos.
func (a *DirArea) Dir(pos int) (*DirRecord, error) {
	if pos < 0 || pos >= a.n {
		return nil, ErrOutOfRange
	}
	base := headerSize + int64(pos)*dirRecordSize
	return (*DirRecord)(unsafe.Pointer(&a.data[base])), nil
}

// LockEC acquires the DirRecord's single error-counter lock, blocking
// until available.
func (a *DirArea) LockEC(pos int) (Unlocker, error) {
	if pos < 0 || pos >= a.n {
		return nil, ErrOutOfRange
	}
	offset := headerSize + int64(pos)*dirRecordSize + int64(unsafe.Offsetof(DirRecord{}.ErrorCounter))
	lock := unix.Flock_t{Type: unix.F_WRLCK, Whence: 0, Start: offset, Len: 4}
	if err := unix.FcntlFlock(a.file.Fd(), unix.F_SETLKW, &lock); err != nil {
		return nil, fmt.Errorf("statusarea: lock dir %d EC: %w", pos, err)
	}
	return &regionLock{file: a.file, offset: offset, length: 4}, nil
}

// WithLockEC runs fn while holding the DirRecord's EC lock.
func (a *DirArea) WithLockEC(pos int, fn func(*DirRecord) error) error {
	d, err := a.Dir(pos)
	if err != nil {
		return err
	}
	lk, err := a.LockEC(pos)
	if err != nil {
		return err
	}
	defer lk.Unlock()
	return fn(d)
}
