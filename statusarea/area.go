// Package statusarea implements the Shared Status Area (C1): a
// memory-mapped, byte-range-lockable table of HostRecord slots shared
// between dispatcher, workers and UI. See spec.md §4.1.
package statusarea

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"
)

// headerSize is the fixed prefix written ahead of the HostRecord array:
// an 8-byte id (bumped whenever the dispatcher recreates the file) and an
// 8-byte host count.
const headerSize = 16

// Area is an attached mapping of a Shared Status Area file.
type Area struct {
	file *os.File
	data []byte
	id   uint64
	n    int

	detached atomic.Bool
}

// Create creates a new Shared Status Area file with room for n hosts and
// returns it attached. Used by tests and by whatever out-of-scope process
// owns FSA creation in production (the dispatcher); workers only Attach.
func Create(path string, n int) (*Area, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("statusarea: create %s: %w", path, err)
	}
	size := headerSize + int64(n)*hostRecordSize
	if err := f.Truncate(size); err != nil {
		f.Close()
		return nil, fmt.Errorf("statusarea: truncate %s: %w", path, err)
	}
	id := uint64(time.Now().UnixNano())
	hdr := make([]byte, headerSize)
	binary.LittleEndian.PutUint64(hdr[0:8], id)
	binary.LittleEndian.PutUint64(hdr[8:16], uint64(n))
	if _, err := f.WriteAt(hdr, 0); err != nil {
		f.Close()
		return nil, fmt.Errorf("statusarea: write header %s: %w", path, err)
	}
	return attachFile(f, id, n)
}

// Attach maps an existing Shared Status Area file for read/write access.
func Attach(path string) (*Area, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("statusarea: open %s: %w", path, err)
	}
	hdr := make([]byte, headerSize)
	if _, err := f.ReadAt(hdr, 0); err != nil {
		f.Close()
		return nil, fmt.Errorf("statusarea: read header %s: %w", path, err)
	}
	id := binary.LittleEndian.Uint64(hdr[0:8])
	n := int(binary.LittleEndian.Uint64(hdr[8:16]))
	return attachFile(f, id, n)
}

func attachFile(f *os.File, id uint64, n int) (*Area, error) {
	size := headerSize + int64(n)*hostRecordSize
	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("statusarea: mmap: %w", err)
	}
	return &Area{file: f, data: data, id: id, n: n}, nil
}

// Detach unmaps and closes the Area.
func (a *Area) Detach() error {
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

// checkFresh verifies this Area's cached id still matches the file's
// current header, returning ErrStaleMapping if the dispatcher recreated
// the file underneath us (spec.md §4.1).
func (a *Area) checkFresh() error {
	hdr := make([]byte, 8)
	if _, err := a.file.ReadAt(hdr, 0); err != nil {
		return fmt.Errorf("statusarea: re-read header: %w", err)
	}
	if binary.LittleEndian.Uint64(hdr) != a.id {
		return ErrStaleMapping
	}
	return nil
}

// NumHosts returns the number of HostRecord slots in this Area.
func (a *Area) NumHosts() int { return a.n }

// Host returns a view over the HostRecord at pos, which must be within
// [0, NumHosts()).
func (a *Area) Host(pos int) (*HostRecord, error) {
	if pos < 0 || pos >= a.n {
		return nil, ErrOutOfRange
	}
	return hostRecordAt(a.data[headerSize:], pos), nil
}

// Unlocker releases a Region lock previously acquired with Lock.
type Unlocker interface {
	Unlock() error
}

type regionLock struct {
	file   *os.File
	offset int64
	length int64
}

// Lock acquires an exclusive byte-range write lock over the given Region
// of the HostRecord at pos, blocking until it is available. Callers must
// hold the lock only across the field mutation and release it immediately
// after (spec.md §4.1, §5 P4) — never across a socket or other I/O call.
func (a *Area) Lock(pos int, region Region) (Unlocker, error) {
	if pos < 0 || pos >= a.n {
		return nil, ErrOutOfRange
	}
	if err := a.checkFresh(); err != nil {
		return nil, err
	}
	rel, length := region.byteRange()
	offset := headerSize + int64(pos)*hostRecordSize + rel

	lock := unix.Flock_t{
		Type:   unix.F_WRLCK,
		Whence: 0, // io.SeekStart
		Start:  offset,
		Len:    length,
	}
	if err := unix.FcntlFlock(a.file.Fd(), unix.F_SETLKW, &lock); err != nil {
		return nil, fmt.Errorf("statusarea: lock region %v at host %d: %w", region, pos, err)
	}
	return &regionLock{file: a.file, offset: offset, length: length}, nil
}

func (l *regionLock) Unlock() error {
	lock := unix.Flock_t{
		Type:   unix.F_UNLCK,
		Whence: 0, // io.SeekStart
		Start:  l.offset,
		Len:    l.length,
	}
	return unix.FcntlFlock(l.file.Fd(), unix.F_SETLK, &lock)
}

// WithLock runs fn while holding the Region lock at pos, guaranteeing
// release on every return path including panics.
func (a *Area) WithLock(pos int, region Region, fn func(*HostRecord) error) error {
	h, err := a.Host(pos)
	if err != nil {
		return err
	}
	lk, err := a.Lock(pos, region)
	if err != nil {
		return err
	}
	defer lk.Unlock()
	return fn(h)
}
