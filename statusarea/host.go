package statusarea

import "unsafe"

// Field-size limits for the fixed-layout records mapped into the shared
// status area. The dispatcher that owns the canonical layout is out of
// scope for this module (spec.md §1), so these limits are internal to this
// package rather than a wire-compatible match with any external process;
// everything that maps the file is this package.
const (
	maxAlias         = 64
	maxHostname      = 64
	MaxErrorHistory  = 5 // K in spec.md's error_history[K]
	MaxJobSlots      = 16
	maxFileName      = 256
	maxUniqueName    = 64
	maxErrorMessage  = 96
)

// ConnectStatus enumerates JobSlot.ConnectStatus (spec.md §3).
type ConnectStatus int32

const (
	StatusConnecting ConnectStatus = iota
	StatusActive
	StatusRetrieveActive
	StatusClosing
	StatusNotWorking
	StatusDisconnect
	StatusDisabled
)

// HostStatusBit is a bit within HostRecord.HostStatusBits.
type HostStatusBit uint32

const (
	BitOffline HostStatusBit = 1 << iota
	BitErrorOffline
	BitQueueAutoPaused
	BitErrorQueueSet
	BitActionSuccess
	BitStoreIP
)

// ProtocolOption is a bit within HostRecord.ProtocolOptions.
type ProtocolOption uint32

const (
	OptBurstingDisabled ProtocolOption = 1 << iota
	OptTCPKeepalive
	OptStatKeepalive
	OptFastCD
	OptFastMove
	OptIdleTime
	OptTimeoutTransfer
	OptCheckSize
	OptIgnoreBin
	OptCCC
	OptTLSStrictVerify
	OptKeepTimeStamp
	OptKeepConnectedDisconnect
)

// errorHistoryEntry is one ring-buffer slot of HostRecord.ErrorHistory.
type errorHistoryEntry struct {
	Timestamp int64
	Code      int32
	_pad      int32
	Message   [maxErrorMessage]byte
}

// JobSlot is the per-worker row inside a host's record (spec.md §3).
type JobSlot struct {
	ConnectStatus     int32
	_pad0             int32
	NoOfFiles         int64
	NoOfFilesDone     int64
	FileSize          int64
	FileSizeDone      int64
	FileSizeInUse     int64
	FileSizeInUseDone int64
	BytesSend         int64
	JobID             uint32
	_pad1             int32
	FileNameInUse     [maxFileName]byte
	UniqueName        [maxUniqueName]byte
}

// HostRecord mirrors HostStatus from spec.md §3: one slot per configured
// remote host, byte-range lockable at the CON/TFC/EC/HS offsets computed
// below.
type HostRecord struct {
	Alias           [maxAlias]byte
	RealHostname    [2][maxHostname]byte
	HostToggle      uint8
	_pad0           [7]byte
	ActiveTransfers int64 // region CON
	AllowedTransfers int64

	ErrorCounter   int64 // region EC (paired with ErrorHistory below)
	ErrorHistoryAt int32
	_pad1          int32
	ErrorHistory   [MaxErrorHistory]errorHistoryEntry

	HostStatusBits  uint32 // region HS
	ProtocolOptions uint32

	TRLPerProcess  int64
	BlockSize      int32
	FileSizeOffset int32 // -1 = none, -2 = AUTO, else LIST column index

	TotalFileCounter int64 // region TFC (paired with TotalFileSize below)
	TotalFileSize    int64

	Slots [MaxJobSlots]JobSlot
}

// hostRecordSize is the stride between consecutive HostRecord entries in
// the mapped file.
const hostRecordSize = int64(unsafe.Sizeof(HostRecord{}))

// Offsets used by Region.byteRange; computed from the struct layout so
// locking code and field layout can never silently drift apart.
const (
	hostRecordOffsetCON = int64(unsafe.Offsetof(HostRecord{}.ActiveTransfers))
	hostRecordOffsetTFC = int64(unsafe.Offsetof(HostRecord{}.TotalFileCounter))
	hostRecordOffsetEC  = int64(unsafe.Offsetof(HostRecord{}.ErrorCounter))
	hostRecordOffsetHS  = int64(unsafe.Offsetof(HostRecord{}.HostStatusBits))
)

func hostRecordAt(data []byte, pos int) *HostRecord {
	base := int64(pos) * hostRecordSize
	return (*HostRecord)(unsafe.Pointer(&data[base]))
}

// AliasString returns the host alias as a trimmed Go string.
func (h *HostRecord) AliasString() string { return cstr(h.Alias[:]) }

// FileNameInUseString returns the slot's in-flight filename, or "" if none.
func (s *JobSlot) FileNameInUseString() string { return cstr(s.FileNameInUse[:]) }

// SetFileNameInUse copies name into the slot's fixed-size buffer.
func (s *JobSlot) SetFileNameInUse(name string) { setCstr(s.FileNameInUse[:], name) }

// SetAlias copies alias into the record's fixed-size buffer.
func (h *HostRecord) SetAlias(alias string) { setCstr(h.Alias[:], alias) }

func cstr(b []byte) string {
	n := 0
	for n < len(b) && b[n] != 0 {
		n++
	}
	return string(b[:n])
}

func setCstr(dst []byte, s string) {
	for i := range dst {
		dst[i] = 0
	}
	n := copy(dst, s)
	_ = n
}
