package statusarea

// Region names a byte-range lock within a mapped HostRecord. The four
// regions mirror the source's FSA locking convention: writers take the
// narrowest lock that covers the fields they are about to mutate, hold it
// for the duration of the mutation only, and never perform I/O while
// holding it (spec P4).
type Region int

const (
	// RegionCON guards the connection-count field (active_transfers).
	RegionCON Region = iota
	// RegionTFC guards the total file count/size counters.
	RegionTFC
	// RegionEC guards the error counter and error history.
	RegionEC
	// RegionHS guards the host_status bitset.
	RegionHS
)

// byteRange returns the (offset, length) of a Region within a single
// HostRecord slot, relative to the start of that record.
func (r Region) byteRange() (int64, int64) {
	switch r {
	case RegionCON:
		return hostRecordOffsetCON, 8
	case RegionTFC:
		return hostRecordOffsetTFC, 16
	case RegionEC:
		return hostRecordOffsetEC, 8
	case RegionHS:
		return hostRecordOffsetHS, 4
	default:
		panic("statusarea: unknown region")
	}
}
