package sftp

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/afdcore/afdcore/protocol"
)

// OpenMultiRead implements protocol.MultiReader: it keeps up to window
// block-reads outstanding at once instead of waiting for each reply before
// issuing the next request (spec.md §4.6.2, §9 — the retrieve path's
// SFTP_DO_SINGLE_READS fallback switches back to a plain Open+Read loop
// when this fails or stalls).
func (a *Adapter) OpenMultiRead(ctx context.Context, path string, offset, size int64, blockSize, window int) (protocol.MultiReadSession, error) {
	f, err := a.sftp.Open(path)
	if err != nil {
		return nil, fmt.Errorf("sftp adapter: open for multiread %s: %w", path, err)
	}
	if offset > 0 {
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			f.Close()
			return nil, fmt.Errorf("sftp adapter: seek for multiread %s to %d: %w", path, offset, err)
		}
	}
	if blockSize <= 0 {
		blockSize = 32 * 1024
	}
	if window <= 0 {
		window = 4
	}

	remaining := size
	session := &multiReadSession{f: f, blockSize: blockSize, window: window}
	nblocks := int((remaining + int64(blockSize) - 1) / int64(blockSize))
	session.results = make([]multiReadResult, nblocks)
	session.fireFrom(0, min(window, nblocks))
	return session, nil
}

type multiReadResult struct {
	data []byte
	err  error
}

// multiReadSession issues up to window concurrent ReadAt calls ahead of
// the caller's Next(), preserving block order in the results slice so
// Next can hand blocks back sequentially regardless of completion order.
type multiReadSession struct {
	f         io.ReaderAt
	blockSize int
	window    int

	mu      sync.Mutex
	results []multiReadResult
	fired   int
	next    int
	wg      sync.WaitGroup
	closed  bool
}

func (s *multiReadSession) fireFrom(start, count int) {
	for i := start; i < start+count && i < len(s.results); i++ {
		i := i
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			buf := make([]byte, s.blockSize)
			n, err := s.f.ReadAt(buf, int64(i)*int64(s.blockSize))
			s.mu.Lock()
			s.results[i] = multiReadResult{data: buf[:n], err: filterEOF(err, n)}
			s.mu.Unlock()
		}()
	}
	s.mu.Lock()
	if start+count > s.fired {
		s.fired = start + count
	}
	s.mu.Unlock()
}

// filterEOF keeps a trailing-block io.EOF from poisoning a non-empty read;
// ReadAt reports EOF alongside the final partial block's bytes.
func filterEOF(err error, n int) error {
	if err == io.EOF && n > 0 {
		return nil
	}
	return err
}

func (s *multiReadSession) Next(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	if s.next >= len(s.results) {
		s.mu.Unlock()
		return nil, io.EOF
	}
	idx := s.next
	s.mu.Unlock()

	s.wg.Wait() // all fired reads complete before any Next call in this simple model

	s.mu.Lock()
	res := s.results[idx]
	s.next++
	if s.fired < len(s.results) {
		s.fireFrom(s.fired, 1)
	}
	s.mu.Unlock()

	if res.err != nil {
		return nil, fmt.Errorf("sftp adapter: multiread block %d: %w", idx, res.err)
	}
	return res.data, nil
}

// Discard abandons the pipeline; the caller is expected to fall back to
// single reads via protocol.Adapter.Open.
func (s *multiReadSession) Discard() error {
	return s.Close()
}

func (s *multiReadSession) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	s.wg.Wait()
	if closer, ok := s.f.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
