package ftp

import (
	"fmt"
	"net"
)

// DataStream exposes the raw data-connection primitive that Store/
// Retrieve/Append build on (cmdDataConnFrom + finishDataConn), for callers
// that need to drive the block loop themselves — applying a rate limiter,
// a per-file timeout guard, or WMO framing around each Read/Write rather
// than handing the whole transfer to io.Copy in one shot.
type DataStream struct {
	c    *Client
	conn net.Conn
}

// OpenStream issues cmd (STOR, RETR or APPE) against path and returns a
// stream the caller drives block-by-block. Call RestartAt first to resume
// at an offset.
func (c *Client) OpenStream(cmd, path string) (*DataStream, error) {
	_, conn, err := c.cmdDataConnFrom(cmd, path)
	if err != nil {
		return nil, fmt.Errorf("ftp: open stream %s %s: %w", cmd, path, err)
	}
	return &DataStream{c: c, conn: conn}, nil
}

// Read reads from the underlying data connection (valid for RETR streams).
func (s *DataStream) Read(p []byte) (int, error) { return s.conn.Read(p) }

// Write writes to the underlying data connection (valid for STOR/APPE
// streams).
func (s *DataStream) Write(p []byte) (int, error) { return s.conn.Write(p) }

// Close finishes the data connection and reads the control channel's final
// reply, the same bookkeeping finishDataConn does for Store/Retrieve.
func (s *DataStream) Close() error {
	return s.c.finishDataConn(s.conn)
}
