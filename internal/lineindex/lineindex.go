// Package lineindex implements the Line Index (spec §4.3): the sorted
// offset vector O that converts line numbers to byte ranges, built by a
// full newline scan, extended incrementally on append, and rebuilt on
// truncate/rotate.
//
// The newline scan itself generalizes the teacher's LineScanner
// (internal/core/line_scanner.go in the lci repo): bytes.IndexByte
// over fixed-size windows read from a ByteSource, rather than a single
// in-memory slice, so the scan works against arbitrarily large files.
package lineindex

import (
	"bytes"

	"github.com/standardbeagle/bigline/internal/bytesource"
	berrors "github.com/standardbeagle/bigline/internal/errors"
)

// scanWindow is the read granularity used while hunting for newlines.
const scanWindow = 64 * 1024

// Index is the offset vector O from spec §3: O[0]=0, O[len(O)-1] is the
// byte length, and O[i] for interior i is the byte offset immediately
// after the i-th newline.
type Index struct {
	offsets []int64

	// endsAtNewline records whether offsets' terminal entry is itself a
	// genuine newline offset (the file ends right after a line break)
	// rather than a synthetic end-of-data marker appended to close out
	// an unterminated final line. Extend uses this to decide whether
	// that marker needs replacing before it rescans.
	endsAtNewline bool
}

// LineCount is len(O)-1, the number of lines (spec §3).
func (idx *Index) LineCount() int {
	if len(idx.offsets) == 0 {
		return 0
	}
	return len(idx.offsets) - 1
}

// Offsets exposes O read-only, for callers (GetChunk, Search
// partitioning) that need to resolve line ranges to byte ranges.
func (idx *Index) Offsets() []int64 {
	return idx.offsets
}

// LineRange returns the half-open byte range [O[i], O[i+1]) for line i.
// The caller is responsible for bounds-checking i against LineCount.
func (idx *Index) LineRange(i int) (lo, hi int64) {
	return idx.offsets[i], idx.offsets[i+1]
}

// Build performs the initial full scan over src (spec §4.3 "Initial
// build"): every newline byte contributes O[i]=b+1, terminated by the
// sentinel byte_length.
func Build(src bytesource.ByteSource) (*Index, error) {
	length, err := src.Length()
	if err != nil {
		return nil, err
	}

	idx := &Index{offsets: make([]int64, 1, estimateLines(length)+2)}
	idx.offsets[0] = 0

	if err := scanNewlines(src, 0, length, func(afterNewline int64) {
		idx.offsets = append(idx.offsets, afterNewline)
	}); err != nil {
		return nil, err
	}

	if idx.offsets[len(idx.offsets)-1] != length {
		idx.offsets = append(idx.offsets, length)
		idx.endsAtNewline = false
	} else {
		idx.endsAtNewline = length > 0
	}
	return idx, nil
}

// estimateLines gives CountLines-style pre-sizing a starting point so
// the offsets slice doesn't repeatedly reallocate while scanning a
// multi-gigabyte file; 80 bytes/line is a conservative guess for
// log-style text.
func estimateLines(length int64) int {
	const avgLineBytes = 80
	n := length / avgLineBytes
	if n < 16 {
		n = 16
	}
	return int(n)
}

// Extend performs the incremental append step (spec §4.3): given that
// src has grown from oldLength to its current length, scan only the
// new bytes for newlines and replace the terminal sentinel.
//
// It returns only an error; a caller that reports LinesAdded (the
// session's watcher handler) compares LineCount before and after.
func (idx *Index) Extend(src bytesource.ByteSource, oldLength int64) error {
	newLength, err := src.Length()
	if err != nil {
		return err
	}
	if newLength <= oldLength {
		return berrors.Internal("Extend called without growth")
	}

	// Drop the old terminal sentinel only when it's synthetic (the prior
	// final line had no trailing newline yet); a genuine newline offset
	// at oldLength is already a correct line boundary and must stay.
	if len(idx.offsets) > 1 && !idx.endsAtNewline {
		idx.offsets = idx.offsets[:len(idx.offsets)-1]
	}

	if err := scanNewlines(src, oldLength, newLength, func(afterNewline int64) {
		idx.offsets = append(idx.offsets, afterNewline)
	}); err != nil {
		return err
	}

	if idx.offsets[len(idx.offsets)-1] != newLength {
		idx.offsets = append(idx.offsets, newLength)
		idx.endsAtNewline = false
	} else {
		idx.endsAtNewline = true
	}
	return nil
}

// scanNewlines hunts for 0x0A bytes in src over [from, to), calling
// onNewline(b+1) for each one found, reading scanWindow-sized chunks at
// a time so a build or extend over a huge range never holds more than
// one window in memory.
func scanNewlines(src bytesource.ByteSource, from, to int64, onNewline func(afterNewline int64)) error {
	for pos := from; pos < to; {
		end := pos + scanWindow
		if end > to {
			end = to
		}
		window, err := src.ReadRange(pos, end)
		if err != nil {
			return err
		}
		if len(window) == 0 {
			break
		}

		base := pos
		rest := window
		for {
			idx := bytes.IndexByte(rest, '\n')
			if idx < 0 {
				break
			}
			onNewline(base + int64(idx) + 1)
			rest = rest[idx+1:]
			base += int64(idx) + 1
		}
		pos = end
	}
	return nil
}
