package worker

import (
	"fmt"
	"strconv"
)

// Args is the parsed argv described by spec.md §6: `prog <work_dir>
// <job_no> <fsa_id> <fsa_pos> <msg_or_dir> [-d] [-o retries] [-t] [-a
// age_limit] [-A] [-r] [--version]`.
type Args struct {
	WorkDir       string
	JobNo         int
	FSAID         int
	FSAPos        int
	MsgOrDirAlias string

	Distributed bool // -d
	Retries     int  // -o retries
	TempToggle  bool // -t
	AgeLimit    int  // -a age_limit, 0 = unset
	ArchiveAll  bool // -A
	ForceReread bool // -r
	Version     bool // --version
}

// ParseArgs parses argv (excluding argv[0]) into Args.
func ParseArgs(argv []string) (Args, error) {
	var a Args
	if len(argv) == 1 && argv[0] == "--version" {
		a.Version = true
		return a, nil
	}
	if len(argv) < 5 {
		return a, fmt.Errorf("worker: expected at least 5 positional arguments, got %d", len(argv))
	}
	a.WorkDir = argv[0]
	var err error
	if a.JobNo, err = strconv.Atoi(argv[1]); err != nil {
		return a, fmt.Errorf("worker: job_no %q: %w", argv[1], err)
	}
	if a.FSAID, err = strconv.Atoi(argv[2]); err != nil {
		return a, fmt.Errorf("worker: fsa_id %q: %w", argv[2], err)
	}
	if a.FSAPos, err = strconv.Atoi(argv[3]); err != nil {
		return a, fmt.Errorf("worker: fsa_pos %q: %w", argv[3], err)
	}
	a.MsgOrDirAlias = argv[4]

	rest := argv[5:]
	for i := 0; i < len(rest); i++ {
		switch rest[i] {
		case "-d":
			a.Distributed = true
		case "-t":
			a.TempToggle = true
		case "-A":
			a.ArchiveAll = true
		case "-r":
			a.ForceReread = true
		case "--version":
			a.Version = true
		case "-o":
			i++
			if i >= len(rest) {
				return a, fmt.Errorf("worker: -o requires a retries value")
			}
			if a.Retries, err = strconv.Atoi(rest[i]); err != nil {
				return a, fmt.Errorf("worker: -o value %q: %w", rest[i], err)
			}
		case "-a":
			i++
			if i >= len(rest) {
				return a, fmt.Errorf("worker: -a requires an age_limit value")
			}
			if a.AgeLimit, err = strconv.Atoi(rest[i]); err != nil {
				return a, fmt.Errorf("worker: -a value %q: %w", rest[i], err)
			}
		default:
			return a, fmt.Errorf("worker: unrecognized flag %q", rest[i])
		}
	}
	return a, nil
}
