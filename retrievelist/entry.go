// Package retrievelist implements the Retrieve List Store (C2): a
// per-directory, memory-mapped table of remote files observed by the
// directory-scanner, mutated by retrieve workers under invariants I2/I3.
// See spec.md §3, §4.2.
package retrievelist

import "unsafe"

const maxFileName = 256

// Entry is one RetrieveList row (spec.md §3).
type Entry struct {
	FileName  [maxFileName]byte
	Size      int64 // -1 if unknown
	PrevSize  int64
	FileMtime int64
	GotDate   int64
	Retrieved int32 // bool, widened for atomic-friendly alignment
	Assigned  int32 // 0 = free, else slot index + 1 (I2)
	InList    int32 // still observed remotely
	_pad      int32
}

const entrySize = int64(unsafe.Sizeof(Entry{}))

// FileNameString returns the entry's filename as a Go string.
func (e *Entry) FileNameString() string {
	n := 0
	for n < len(e.FileName) && e.FileName[n] != 0 {
		n++
	}
	return string(e.FileName[:n])
}

// SetFileName copies name into the entry's fixed-size buffer.
func (e *Entry) SetFileName(name string) {
	for i := range e.FileName {
		e.FileName[i] = 0
	}
	copy(e.FileName[:], name)
}

// IsRetrieved reports whether the entry has been fully retrieved.
func (e *Entry) IsRetrieved() bool { return e.Retrieved != 0 }

// IsInList reports whether the remote directory-scanner still observed
// this file on its last pass.
func (e *Entry) IsInList() bool { return e.InList != 0 }

// SetInList marks whether this file is still present in the remote
// listing; called by the directory-scanner (out of scope) via this
// package when reconciling a fresh listing.
func (e *Entry) SetInList(v bool) {
	if v {
		e.InList = 1
	} else {
		e.InList = 0
	}
}
