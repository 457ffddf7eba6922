// Package bytesource implements the Byte Source abstraction (spec
// §4.2): random-access reads over a possibly-transcoded byte view of a
// file, plus a cheap prefix fingerprint the watcher uses to detect
// rotation.
package bytesource

import (
	"io"
	"os"

	"github.com/cespare/xxhash/v2"

	"github.com/standardbeagle/bigline/internal/types"
	berrors "github.com/standardbeagle/bigline/internal/errors"
)

// fingerprintWindow bounds how much of the file prefix_fingerprint
// hashes, so rotation detection stays O(1) regardless of file size.
const fingerprintWindow = 64 * 1024

// ByteSource is the random-access read surface every other subsystem
// sees. fileByteSource and transcodedByteSource both satisfy it.
type ByteSource interface {
	// Length returns the current byte length of the canonical view.
	Length() (int64, error)
	// ReadRange returns bytes[lo:hi). hi may exceed Length, in which
	// case the returned slice is shorter than hi-lo.
	ReadRange(lo, hi int64) ([]byte, error)
	// ReadTailFrom returns bytes[offset:Length).
	ReadTailFrom(offset int64) ([]byte, error)
	// PrefixFingerprint hashes the first n bytes of the *raw*
	// underlying file (pre-transcode), for rotation detection.
	PrefixFingerprint(n int64) (uint64, error)
	// Close releases any underlying file handle.
	Close() error
}

// Open returns the ByteSource appropriate for the given encoding: a
// direct pread-backed source for ASCII-compatible encodings (including
// the ISO-8859-1/unsupported fallback, which the engine treats as
// UTF-8 bytes per spec §4.1), or a transcoding source for UTF-16.
func Open(path string, enc types.Encoding) (ByteSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, berrors.IoError("open", err)
	}

	switch enc {
	case types.EncodingUTF16LE, types.EncodingUTF16BE:
		return newTranscodedByteSource(f, enc)
	default:
		return newFileByteSource(f)
	}
}

// fileByteSource reads directly from the file with pread semantics
// (os.File.ReadAt), giving O(1) random access independent of offset.
type fileByteSource struct {
	f *os.File
}

func newFileByteSource(f *os.File) (*fileByteSource, error) {
	return &fileByteSource{f: f}, nil
}

func (s *fileByteSource) Length() (int64, error) {
	fi, err := s.f.Stat()
	if err != nil {
		return 0, berrors.IoError("stat", err)
	}
	return fi.Size(), nil
}

func (s *fileByteSource) ReadRange(lo, hi int64) ([]byte, error) {
	if hi <= lo {
		return nil, nil
	}
	buf := make([]byte, hi-lo)
	n, err := s.f.ReadAt(buf, lo)
	if err != nil && err != io.EOF {
		return nil, berrors.IoError("read", err)
	}
	return buf[:n], nil
}

func (s *fileByteSource) ReadTailFrom(offset int64) ([]byte, error) {
	length, err := s.Length()
	if err != nil {
		return nil, err
	}
	return s.ReadRange(offset, length)
}

func (s *fileByteSource) PrefixFingerprint(n int64) (uint64, error) {
	return prefixFingerprint(s.f, n)
}

func (s *fileByteSource) Close() error {
	return s.f.Close()
}

// prefixFingerprint hashes the first n bytes of f, shared by both
// ByteSource implementations since fingerprinting always reads the raw
// underlying bytes, never the transcoded view.
func prefixFingerprint(f *os.File, n int64) (uint64, error) {
	if n > fingerprintWindow {
		n = fingerprintWindow
	}
	buf := make([]byte, n)
	read, err := f.ReadAt(buf, 0)
	if err != nil && err != io.EOF {
		return 0, berrors.IoError("fingerprint read", err)
	}
	return xxhash.Sum64(buf[:read]), nil
}
