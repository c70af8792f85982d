package transfer

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseSizeColumn generalizes the teacher directory listing column
// parsers (ftpclient/directory.go's parseUnixEntry/parseDOSEntry) into a
// single rule usable when append-probing a remote file by LIST output
// instead of a SIZE command: skip fileSizeOffset whitespace-separated
// columns, then read a run of digits as the size (spec.md §6 "Wire
// formats").
func ParseSizeColumn(line string, fileSizeOffset int) (int64, error) {
	fields := strings.Fields(line)
	if fileSizeOffset < 0 || fileSizeOffset >= len(fields) {
		return 0, fmt.Errorf("transfer: list line %q has no column %d", line, fileSizeOffset)
	}
	col := fields[fileSizeOffset]
	end := 0
	for end < len(col) && col[end] >= '0' && col[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, fmt.Errorf("transfer: column %d of %q is not numeric", fileSizeOffset, line)
	}
	size, err := strconv.ParseInt(col[:end], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("transfer: parse size column: %w", err)
	}
	return size, nil
}
