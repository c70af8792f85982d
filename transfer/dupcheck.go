// dupcheck.go supplements spec.md, which references "the dup-check CRC
// entry" (§4.6.1 step 12, size-mismatch rollback) without ever specifying
// where that table lives. A small persisted CRC32 table is the simplest
// reading: one entry per filename, checked before a send so a byte-for-
// byte-identical retransmission can be skipped, and rolled back (deleted)
// on a size mismatch exactly as spec.md names.
package transfer

import (
	"encoding/json"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"sync"
)

// DupTable is a filename -> CRC32 map persisted alongside a directory's
// retrieve-list file.
type DupTable struct {
	path    string
	mu      sync.Mutex
	entries map[string]uint32
}

// LoadDupTable reads path if it exists, or starts an empty table.
func LoadDupTable(path string) (*DupTable, error) {
	t := &DupTable{path: path, entries: make(map[string]uint32)}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return t, nil
		}
		return nil, fmt.Errorf("transfer: read dup-check table %s: %w", path, err)
	}
	if len(data) == 0 {
		return t, nil
	}
	if err := json.Unmarshal(data, &t.entries); err != nil {
		return nil, fmt.Errorf("transfer: decode dup-check table %s: %w", path, err)
	}
	return t, nil
}

// Save persists the table back to its path.
func (t *DupTable) Save() error {
	t.mu.Lock()
	data, err := json.Marshal(t.entries)
	t.mu.Unlock()
	if err != nil {
		return fmt.Errorf("transfer: encode dup-check table: %w", err)
	}
	if err := os.WriteFile(t.path, data, 0o640); err != nil {
		return fmt.Errorf("transfer: write dup-check table %s: %w", t.path, err)
	}
	return nil
}

// CRC32 computes the CRC32 (IEEE) of r, for comparing against a stored
// entry or recording a new one.
func CRC32(r io.Reader) (uint32, error) {
	h := crc32.NewIEEE()
	if _, err := io.Copy(h, r); err != nil {
		return 0, fmt.Errorf("transfer: crc32: %w", err)
	}
	return h.Sum32(), nil
}

// Get returns the stored CRC for name, if any.
func (t *DupTable) Get(name string) (uint32, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.entries[name]
	return v, ok
}

// Set records (or overwrites) the CRC for name.
func (t *DupTable) Set(name string, crc uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[name] = crc
}

// Remove deletes name's entry, the "remove the dup-check CRC entry"
// rollback spec.md names on a size mismatch.
func (t *DupTable) Remove(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, name)
}
