package statusarea

// DirFlag is a bit within DirRecord.DirFlag.
type DirFlag uint32

const (
	DirFlagErrorSet DirFlag = 1 << iota
	DirFlagDoNotParallelize
)

// DirRecord mirrors DirStatus (FRA) from spec.md §3.
type DirRecord struct {
	Alias            [maxAlias]byte
	URL              [256]byte
	RetrieveWorkDir  [256]byte
	DirMode          uint32
	DirMtime         int64
	DirFlag          uint32
	StupidMode       uint8 // remember-listings policy
	Remove           uint8 // delete remote after fetch
	ForceReread      uint8
	_pad             uint8
	ErrorCounter     int32
	StartEventHandle int64
	EndEventHandle   int64
	DirStatus        uint32
}

// AliasString returns the directory alias as a trimmed Go string.
func (d *DirRecord) AliasString() string { return cstr(d.Alias[:]) }

// URLString returns the directory's source URL as a trimmed Go string.
func (d *DirRecord) URLString() string { return cstr(d.URL[:]) }
