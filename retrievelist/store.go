package retrievelist

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

const headerSize = 16

// Store is an attached, memory-mapped RetrieveList file for one directory.
type Store struct {
	path   string
	file   *os.File
	data   []byte
	n      int
	policy Policy
}

// Policy describes the directory's "stupid mode" / one-shot semantics,
// which decide what Detach does with the backing file (spec.md §4.2).
type Policy struct {
	// Stupid, if true, means the directory forgets RL state between jobs
	// (spec.md glossary: "stupid mode").
	Stupid bool
	// RemoveAfterFetch mirrors DirRecord.Remove: files are deleted from
	// the remote once retrieved, and so is bookkeeping about them.
	RemoveAfterFetch bool
}

// Create creates a new RetrieveList file with room for n entries.
func Create(path string, n int, policy Policy) (*Store, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("retrievelist: create %s: %w", path, err)
	}
	size := headerSize + int64(n)*entrySize
	if err := f.Truncate(size); err != nil {
		f.Close()
		return nil, fmt.Errorf("retrievelist: truncate %s: %w", path, err)
	}
	hdr := make([]byte, headerSize)
	binary.LittleEndian.PutUint64(hdr[0:8], uint64(n))
	if _, err := f.WriteAt(hdr, 0); err != nil {
		f.Close()
		return nil, fmt.Errorf("retrievelist: write header %s: %w", path, err)
	}
	return attach(f, path, n, policy)
}

// Attach maps an existing RetrieveList file, or creates one with capacity
// n if it does not yet exist (the common case: the directory-scanner
// creates it lazily on first observation).
func Attach(path string, n int, policy Policy) (*Store, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if os.IsNotExist(err) {
		return Create(path, n, policy)
	}
	if err != nil {
		return nil, fmt.Errorf("retrievelist: open %s: %w", path, err)
	}
	hdr := make([]byte, headerSize)
	if _, err := f.ReadAt(hdr, 0); err != nil {
		f.Close()
		return nil, fmt.Errorf("retrievelist: read header %s: %w", path, err)
	}
	existingN := int(binary.LittleEndian.Uint64(hdr[0:8]))
	return attach(f, path, existingN, policy)
}

func attach(f *os.File, path string, n int, policy Policy) (*Store, error) {
	size := headerSize + int64(n)*entrySize
	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("retrievelist: mmap %s: %w", path, err)
	}
	return &Store{path: path, file: f, data: data, n: n, policy: policy}, nil
}

// Len returns the capacity of the store.
func (s *Store) Len() int { return s.n }

func (s *Store) entryAt(i int) (*Entry, error) {
	if i < 0 || i >= s.n {
		return nil, ErrOutOfRange
	}
	base := headerSize + int64(i)*entrySize
	return (*Entry)(unsafe.Pointer(&s.data[base])), nil
}

// Iterate calls fn for every entry in order, stopping early if fn returns
// false.
func (s *Store) Iterate(fn func(i int, e *Entry) bool) {
	for i := 0; i < s.n; i++ {
		e, _ := s.entryAt(i)
		if !fn(i, e) {
			return
		}
	}
}

// Claim atomically sets Assigned from 0 to slotID+1 (spec.md §4.2, I2). It
// returns ErrAlreadyClaimed if another worker (or this one, from a stale
// view) already owns the entry.
func (s *Store) Claim(i int, slotID int) error {
	e, err := s.entryAt(i)
	if err != nil {
		return err
	}
	want := int32(slotID + 1)
	addr := (*int32)(unsafe.Pointer(&e.Assigned))
	if !atomic.CompareAndSwapInt32(addr, 0, want) {
		return ErrAlreadyClaimed
	}
	return nil
}

// Release clears Assigned back to 0, regardless of current owner. Used by
// a worker's exit handler to unassign everything it owns (spec.md I5) and
// by the normal end-of-file path.
func (s *Store) Release(i int) error {
	e, err := s.entryAt(i)
	if err != nil {
		return err
	}
	atomic.StoreInt32((*int32)(unsafe.Pointer(&e.Assigned)), 0)
	return nil
}

// ReleaseAllOwnedBy clears every entry's Assigned field that currently
// equals slotID+1, implementing the exit-handler contract of I5/P3: after
// this call, no entry claims ownership by this slot.
func (s *Store) ReleaseAllOwnedBy(slotID int) int {
	owner := int32(slotID + 1)
	cleared := 0
	s.Iterate(func(i int, e *Entry) bool {
		addr := (*int32)(unsafe.Pointer(&e.Assigned))
		if atomic.CompareAndSwapInt32(addr, owner, 0) {
			cleared++
		}
		return true
	})
	return cleared
}

// MarkRetrieved marks the entry fully retrieved and releases its claim,
// preserving invariant I3 (retrieved ⇒ assigned = 0) atomically from the
// caller's point of view: Assigned is cleared before Retrieved is set, so
// a concurrent reader never observes retrieved=true with assigned!=0.
func (s *Store) MarkRetrieved(i int) error {
	e, err := s.entryAt(i)
	if err != nil {
		return err
	}
	atomic.StoreInt32((*int32)(unsafe.Pointer(&e.Assigned)), 0)
	atomic.StoreInt32((*int32)(unsafe.Pointer(&e.Retrieved)), 1)
	return nil
}

// Detach unmaps and closes the store. If preserve is false and the
// directory policy calls for forgetting state (Stupid mode, or
// RemoveAfterFetch), the backing file is removed so the next job starts
// from a clean listing (spec.md §4.2).
func (s *Store) Detach(preserve bool) error {
	err := unix.Munmap(s.data)
	cerr := s.file.Close()
	if err != nil {
		return err
	}
	if cerr != nil {
		return cerr
	}
	if !preserve && (s.policy.Stupid || s.policy.RemoveAfterFetch) {
		if rmErr := os.Remove(s.path); rmErr != nil && !os.IsNotExist(rmErr) {
			return fmt.Errorf("retrievelist: remove %s: %w", s.path, rmErr)
		}
	}
	return nil
}

// Compact rewrites the store keeping only entries where InList is still
// true or Retrieved is still false, dropping rows the source would
// otherwise let grow the mmapped file forever. Not named by spec.md's C2
// contract, but implied by its own "in_list" field and restored here per
// SPEC_FULL.md §5.
func (s *Store) Compact() error {
	var kept []Entry
	s.Iterate(func(i int, e *Entry) bool {
		if e.IsInList() || !e.IsRetrieved() {
			kept = append(kept, *e)
		}
		return true
	})

	tmpPath := s.path + ".compact"
	newStore, err := Create(tmpPath, len(kept), s.policy)
	if err != nil {
		return fmt.Errorf("retrievelist: compact create: %w", err)
	}
	for i := range kept {
		e, _ := newStore.entryAt(i)
		*e = kept[i]
	}
	if err := unix.Munmap(newStore.data); err != nil {
		newStore.file.Close()
		return err
	}
	if err := newStore.file.Close(); err != nil {
		return err
	}

	if err := unix.Munmap(s.data); err != nil {
		return err
	}
	if err := s.file.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("retrievelist: compact rename: %w", err)
	}

	f, err := os.OpenFile(s.path, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	replacement, err := attach(f, s.path, len(kept), s.policy)
	if err != nil {
		return err
	}
	*s = *replacement
	return nil
}
