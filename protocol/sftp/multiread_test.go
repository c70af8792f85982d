package sftp

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeReaderAt struct {
	data   []byte
	closed bool
}

func (f *fakeReaderAt) ReadAt(p []byte, off int64) (int, error) {
	return bytes.NewReader(f.data).ReadAt(p, off)
}

func (f *fakeReaderAt) Close() error {
	f.closed = true
	return nil
}

func newTestSession(t *testing.T, data []byte, blockSize, window int) (*multiReadSession, *fakeReaderAt) {
	t.Helper()
	f := &fakeReaderAt{data: data}
	nblocks := (len(data) + blockSize - 1) / blockSize
	s := &multiReadSession{f: f, blockSize: blockSize, window: window, results: make([]multiReadResult, nblocks)}
	s.fireFrom(0, min(window, nblocks))
	return s, f
}

func TestMultiReadSessionYieldsBlocksInOrder(t *testing.T) {
	data := bytes.Repeat([]byte("a"), 10)
	data = append(data, bytes.Repeat([]byte("b"), 10)...)
	data = append(data, []byte("xyz")...) // final partial block

	s, f := newTestSession(t, data, 10, 2)

	b0, err := s.Next(nil)
	require.NoError(t, err)
	require.Equal(t, bytes.Repeat([]byte("a"), 10), b0)

	b1, err := s.Next(nil)
	require.NoError(t, err)
	require.Equal(t, bytes.Repeat([]byte("b"), 10), b1)

	b2, err := s.Next(nil)
	require.NoError(t, err)
	require.Equal(t, []byte("xyz"), b2)

	_, err = s.Next(nil)
	require.ErrorIs(t, err, io.EOF)

	require.NoError(t, s.Close())
	require.True(t, f.closed)
}

func TestFilterEOFSuppressesTrailingPartialBlockEOF(t *testing.T) {
	require.NoError(t, filterEOF(io.EOF, 3))
	require.ErrorIs(t, filterEOF(io.EOF, 0), io.EOF)
}

func TestMultiReadSessionDiscardClosesUnderlyingFile(t *testing.T) {
	s, f := newTestSession(t, []byte("hello world"), 4, 2)
	require.NoError(t, s.Discard())
	require.True(t, f.closed)
}
