package monitor

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync/atomic"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// StatusRecord mirrors AFD_MON_STATUS (spec.md §6): a single mmapped,
// fixed-size record carrying the Monitor's own identity and start time,
// consulted by monitoring UIs without talking to the Supervisor directly.
type StatusRecord struct {
	AFDMon     int32
	MonSysLog  int32
	MonLog     int32
	_pad       int32
	StartTime  int64
}

var statusRecordSize = int64(unsafe.Sizeof(StatusRecord{}))

// Status is an attached mapping of the AFD_MON_STATUS file.
type Status struct {
	file     *os.File
	data     []byte
	detached atomic.Bool
}

// CreateStatus creates and maps a fresh AFD_MON_STATUS file, stamping
// StartTime to now.
func CreateStatus(path string, afdMonPID, sysLogPID, monLogPID int32) (*Status, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("monitor: create status %s: %w", path, err)
	}
	if err := f.Truncate(statusRecordSize); err != nil {
		f.Close()
		return nil, fmt.Errorf("monitor: truncate status %s: %w", path, err)
	}
	s, err := attachStatusFile(f)
	if err != nil {
		return nil, err
	}
	rec := s.Record()
	rec.AFDMon = afdMonPID
	rec.MonSysLog = sysLogPID
	rec.MonLog = monLogPID
	rec.StartTime = time.Now().Unix()
	return s, nil
}

// AttachStatus maps an existing AFD_MON_STATUS file.
func AttachStatus(path string) (*Status, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("monitor: attach status %s: %w", path, err)
	}
	return attachStatusFile(f)
}

func attachStatusFile(f *os.File) (*Status, error) {
	data, err := unix.Mmap(int(f.Fd()), 0, int(statusRecordSize), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("monitor: mmap status: %w", err)
	}
	return &Status{file: f, data: data}, nil
}

// Record returns a view over the single StatusRecord.
func (s *Status) Record() *StatusRecord {
	return (*StatusRecord)(unsafe.Pointer(&s.data[0]))
}

// Detach unmaps and closes the status file.
func (s *Status) Detach() error {
	if !s.detached.CompareAndSwap(false, true) {
		return nil
	}
	err := unix.Munmap(s.data)
	cerr := s.file.Close()
	if err != nil {
		return err
	}
	return cerr
}

// ActivePeer is one (mon_pid, log_pid) pair within MON_ACTIVE.
type ActivePeer struct {
	MonPID int32
	LogPID int32
}

// Active mirrors MON_ACTIVE (spec.md §6): a packed blob naming every
// running child's PID, written once at startup and re-written whenever the
// child set changes (a peer gets disabled/enabled, a log-fetcher
// restarts). Small and infrequently written, so a plain file write with no
// mmap/locking is the appropriate weight here, unlike StatusRecord which a
// UI polls continuously.
type Active struct {
	OwnPID    int32
	SysLogPID int32
	MonLogPID int32
	Peers     []ActivePeer
}

// WriteActive serializes a to path as {own_pid, sys_log_pid, mon_log_pid,
// N, (mon_pid_i, log_pid_i)xN}, all little-endian int32.
func WriteActive(path string, a Active) error {
	buf := make([]byte, 16+8*len(a.Peers))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(a.OwnPID))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(a.SysLogPID))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(a.MonLogPID))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(len(a.Peers)))
	for i, p := range a.Peers {
		off := 16 + i*8
		binary.LittleEndian.PutUint32(buf[off:off+4], uint32(p.MonPID))
		binary.LittleEndian.PutUint32(buf[off+4:off+8], uint32(p.LogPID))
	}
	return os.WriteFile(path, buf, 0o644)
}

// ReadActive parses a file written by WriteActive.
func ReadActive(path string) (Active, error) {
	var a Active
	buf, err := os.ReadFile(path)
	if err != nil {
		return a, fmt.Errorf("monitor: read active %s: %w", path, err)
	}
	if len(buf) < 16 {
		return a, fmt.Errorf("monitor: active file %s too short", path)
	}
	a.OwnPID = int32(binary.LittleEndian.Uint32(buf[0:4]))
	a.SysLogPID = int32(binary.LittleEndian.Uint32(buf[4:8]))
	a.MonLogPID = int32(binary.LittleEndian.Uint32(buf[8:12]))
	n := int(binary.LittleEndian.Uint32(buf[12:16]))
	if len(buf) < 16+8*n {
		return a, fmt.Errorf("monitor: active file %s truncated for %d peers", path, n)
	}
	a.Peers = make([]ActivePeer, n)
	for i := 0; i < n; i++ {
		off := 16 + i*8
		a.Peers[i] = ActivePeer{
			MonPID: int32(binary.LittleEndian.Uint32(buf[off : off+4])),
			LogPID: int32(binary.LittleEndian.Uint32(buf[off+4 : off+8])),
		}
	}
	return a, nil
}
