package worker

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Scheme selects which protocol subpackage handles a job.
type Scheme string

const (
	SchemeFTP         Scheme = "ftp"
	SchemeFTPExplicit Scheme = "ftps-explicit"
	SchemeFTPImplicit Scheme = "ftps-implicit"
	SchemeSFTP        Scheme = "sftp"
	SchemeSCP         Scheme = "scp"
	SchemeHTTP        Scheme = "http"
	SchemeHTTPS       Scheme = "https"
)

// Descriptor is the job handed to a worker beyond its bare argv: host,
// credentials, direction and per-file transfer options. Real dispatch
// (matching a host/dir alias to connection details) is the dispatcher's
// job and out of scope here (spec.md §1); this module only needs a place
// to read that resolved information from, so a worker's fifth argv
// positional (msg_or_dir) names a descriptor file in this format, decoded
// with the same github.com/BurntSushi/toml package the monitor uses for
// its peer-list config.
type Descriptor struct {
	Host   string
	Port   int
	Scheme Scheme

	User           string
	Secret         string
	PrivateKeyPath string

	Direction string // "send" or "retrieve"
	LocalDir  string // spool dir for send, landing dir for retrieve
	TargetDir string
	FastCD    bool

	Mode      string // "binary", "ascii", "dos"
	BlockSize int

	RateLimitBytesPerSec int64
	TRLPerProcess        int64

	WMO          bool
	SizeCheck    bool
	ChmodAfter   *int
	SitePostHook string
	ArchiveDir   string
	LockFile     string

	DotPrefix    bool
	VMSDotSuffix bool

	RemoveAfterRetrieve bool
	ForceRescan         bool

	RetrieveListPath string
	RetrieveListSize int
	DupCheckPath     string

	// DirAreaPath and DirPos locate this job's DirRecord in the File-Retrieve
	// Area, enabling the directory-mtime short circuit and rollback
	// (spec.md §4.6.2 steps 4 and 9). DirPos < 0 disables both.
	DirAreaPath string
	DirPos      int


	PerFileTimeoutSeconds int

	TLSStrictVerify bool
	ActiveMode      bool
	DisableEPSV     bool
}

// LoadDescriptor reads and decodes a job descriptor file.
func LoadDescriptor(path string) (Descriptor, error) {
	var d Descriptor
	if _, err := toml.DecodeFile(path, &d); err != nil {
		return d, fmt.Errorf("worker: decode descriptor %s: %w", path, err)
	}
	return d, nil
}
