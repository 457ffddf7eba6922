package lineindex

import (
	"strings"

	"github.com/standardbeagle/bigline/internal/bytesource"
)

// RawLine returns the bytes of line i, including any trailing
// newline(s), as stored in the file (spec §4.3's "Range query" slice
// before newline stripping).
func (idx *Index) RawLine(src bytesource.ByteSource, i int) ([]byte, error) {
	lo, hi := idx.LineRange(i)
	return src.ReadRange(lo, hi)
}

// DecodeLine strips a trailing "\r\n" or "\n" and decodes the
// remainder as UTF-8 with replacement, per spec §4.3's "Range query".
func DecodeLine(raw []byte) string {
	raw = stripTrailingNewline(raw)
	return strings.ToValidUTF8(string(raw), "�")
}

func stripTrailingNewline(raw []byte) []byte {
	if n := len(raw); n > 0 && raw[n-1] == '\n' {
		raw = raw[:n-1]
	}
	if n := len(raw); n > 0 && raw[n-1] == '\r' {
		raw = raw[:n-1]
	}
	return raw
}
