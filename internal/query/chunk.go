// Package query implements the Query Engine's two operations (spec
// §4.4, §4.5): GetChunk, a lazy read of a line range, and Search, a
// parallel whole-file regex scan.
package query

import (
	"github.com/standardbeagle/bigline/internal/bytesource"
	"github.com/standardbeagle/bigline/internal/lineindex"
	"github.com/standardbeagle/bigline/internal/parsespec"
	"github.com/standardbeagle/bigline/internal/types"
)

// GetChunk reads lines [startLine, endLine) and returns them as a
// Chunk, optionally split into columns by spec (spec §4.4). Reading is
// lazy and read-only: it never mutates idx, src, or spec.
func GetChunk(idx *lineindex.Index, src bytesource.ByteSource, spec *parsespec.Spec, startLine, endLine uint64) (*types.Chunk, error) {
	lineCount := uint64(idx.LineCount())

	if endLine > lineCount {
		endLine = lineCount
	}
	if startLine >= lineCount || startLine >= endLine {
		return &types.Chunk{Data: [][]string{}, StartLine: startLine, EndLine: endLine}, nil
	}

	data := make([][]string, 0, endLine-startLine)
	for i := startLine; i < endLine; i++ {
		raw, err := idx.RawLine(src, int(i))
		if err != nil {
			return nil, err
		}
		line := lineindex.DecodeLine(raw)
		data = append(data, parsespec.ApplyOrRaw(spec, line))
	}

	return &types.Chunk{Data: data, StartLine: startLine, EndLine: endLine}, nil
}
