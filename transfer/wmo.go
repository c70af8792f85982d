package transfer

import (
	"bytes"
	"io"
)

const (
	soh = 0x01
	etx = 0x03
)

// TransformWMOName implements the WMO bulletin-header name transform
// (spec.md §6 "Wire formats"): split on '_', '-' or space; after the
// second space-delimited token, if the next three bytes are alphabetic,
// keep that extra 4-byte token too; stop at '.' or ';'.
func TransformWMOName(name string) string {
	var out bytes.Buffer
	spaces := 0
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c == '.' || c == ';' {
			break
		}
		if c == '_' || c == '-' || c == ' ' {
			spaces++
			if spaces > 2 {
				break
			}
			out.WriteByte(' ')
			continue
		}
		if spaces == 2 {
			// Past the second separator: only keep a run if the next
			// three bytes (including this one) are alphabetic.
			if i+3 <= len(name) && isAlpha(name[i]) && isAlpha(name[i+1]) && isAlpha(name[i+2]) {
				out.WriteString(name[i : i+3])
				i += 2
				break
			}
			break
		}
		out.WriteByte(c)
	}
	return out.String()
}

func isAlpha(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// FrameHeader builds the leading "SOH CR CR LF <name> CR CR LF" prefix
// WMO bulletins require before the payload.
func FrameHeader(name string) []byte {
	var buf bytes.Buffer
	buf.WriteByte(soh)
	buf.WriteString("\r\r\n")
	buf.WriteString(TransformWMOName(name))
	buf.WriteString("\r\r\n")
	return buf.Bytes()
}

// FrameFooter builds the trailing "CR CR LF ETX" suffix.
func FrameFooter() []byte {
	return []byte{'\r', '\r', '\n', etx}
}

// FramedWriter wraps w so the header is written once before the first
// Write call and the footer is written on Close (spec.md §4.6.1 step 8).
type FramedWriter struct {
	w           io.Writer
	name        string
	headerSent  bool
}

func NewFramedWriter(w io.Writer, name string) *FramedWriter {
	return &FramedWriter{w: w, name: name}
}

func (f *FramedWriter) Write(p []byte) (int, error) {
	if !f.headerSent {
		if _, err := f.w.Write(FrameHeader(f.name)); err != nil {
			return 0, err
		}
		f.headerSent = true
	}
	return f.w.Write(p)
}

func (f *FramedWriter) Close() error {
	if !f.headerSent {
		if _, err := f.w.Write(FrameHeader(f.name)); err != nil {
			return err
		}
		f.headerSent = true
	}
	_, err := f.w.Write(FrameFooter())
	return err
}
