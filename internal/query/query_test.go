package query

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/bigline/internal/bytesource"
	"github.com/standardbeagle/bigline/internal/lineindex"
	"github.com/standardbeagle/bigline/internal/parsespec"
	"github.com/standardbeagle/bigline/internal/types"
)

func openIndexed(t *testing.T, content string) (*lineindex.Index, bytesource.ByteSource) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "f.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	src, err := bytesource.Open(path, types.EncodingASCII)
	require.NoError(t, err)
	t.Cleanup(func() { src.Close() })
	idx, err := lineindex.Build(src)
	require.NoError(t, err)
	return idx, src
}

func TestGetChunkBasic(t *testing.T) {
	idx, src := openIndexed(t, "a\nbb\nccc")
	chunk, err := GetChunk(idx, src, nil, 0, 3)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a"}, {"bb"}, {"ccc"}}, chunk.Data)
	assert.EqualValues(t, 0, chunk.StartLine)
	assert.EqualValues(t, 3, chunk.EndLine)
}

func TestGetChunkClampsEndLine(t *testing.T) {
	idx, src := openIndexed(t, "a\nb\nc\n")
	chunk, err := GetChunk(idx, src, nil, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"b"}, {"c"}}, chunk.Data)
	assert.EqualValues(t, 3, chunk.EndLine)
}

func TestGetChunkStartBeyondLineCountIsEmpty(t *testing.T) {
	idx, src := openIndexed(t, "a\nb\n")
	chunk, err := GetChunk(idx, src, nil, 5, 10)
	require.NoError(t, err)
	assert.Empty(t, chunk.Data)
}

func TestGetChunkEmptyFile(t *testing.T) {
	idx, src := openIndexed(t, "")
	chunk, err := GetChunk(idx, src, nil, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, chunk.Data)
}

func TestGetChunkWithParseSpec(t *testing.T) {
	idx, src := openIndexed(t, `1.2.3.4 - - [t] "req" 200 5`+"\n")
	spec, err := parsespec.New(`(\d{1,3}(?:\.\d{1,3}){3}) - - \[(.*?)\] "(.*?)" (\d{3}) (\d+|-)`, 5)
	require.NoError(t, err)

	chunk, err := GetChunk(idx, src, spec, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"1.2.3.4", "t", "req", "200", "5"}}, chunk.Data)
}

func defaultOpts() SearchOptions {
	return SearchOptions{Workers: 4, MatchCap: 1000, ProgressPercent: 5, ProgressMaxRate: 0}
}

func TestSearchMatchesEveryLine(t *testing.T) {
	var lines []string
	for i := 0; i < 50; i++ {
		lines = append(lines, fmt.Sprintf("line %d", i))
	}
	idx, src := openIndexed(t, strings.Join(lines, "\n")+"\n")

	results, err := Search(context.Background(), idx, src, nil, ".", defaultOpts(), nil)
	require.NoError(t, err)
	// "." matches every character: 10 lines of 6 bytes plus 40 of 7.
	assert.Equal(t, 340, results.TotalMatches)
	assert.True(t, results.SearchComplete)
}

func TestSearchOrderingGuarantee(t *testing.T) {
	var lines []string
	for i := 0; i < 200; i++ {
		lines = append(lines, fmt.Sprintf("item-%03d", i))
	}
	idx, src := openIndexed(t, strings.Join(lines, "\n")+"\n")

	results, err := Search(context.Background(), idx, src, nil, "item", defaultOpts(), nil)
	require.NoError(t, err)
	require.Equal(t, 200, results.TotalMatches)
	for i := 1; i < len(results.Matches); i++ {
		a, b := results.Matches[i-1], results.Matches[i]
		assert.True(t, a.LineNumber < b.LineNumber ||
			(a.LineNumber == b.LineNumber && a.Column <= b.Column))
	}
}

func TestSearchCapEnforced(t *testing.T) {
	var lines []string
	for i := 0; i < 1500; i++ {
		lines = append(lines, "matchme")
	}
	idx, src := openIndexed(t, strings.Join(lines, "\n")+"\n")

	opts := defaultOpts()
	opts.MatchCap = 1000
	results, err := Search(context.Background(), idx, src, nil, "matchme", opts, nil)
	require.NoError(t, err)
	assert.Equal(t, 1000, results.TotalMatches)
	assert.False(t, results.SearchComplete)
	for _, m := range results.Matches {
		assert.Less(t, m.LineNumber, uint64(1500))
	}
}

func TestSearchInvalidRegex(t *testing.T) {
	idx, src := openIndexed(t, "a\nb\n")
	_, err := Search(context.Background(), idx, src, nil, "(unterminated", defaultOpts(), nil)
	require.Error(t, err)
}

func TestSearchEmptyFile(t *testing.T) {
	idx, src := openIndexed(t, "")
	results, err := Search(context.Background(), idx, src, nil, ".", defaultOpts(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, results.TotalMatches)
	assert.True(t, results.SearchComplete)
}
