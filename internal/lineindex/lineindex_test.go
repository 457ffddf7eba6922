package lineindex

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/bigline/internal/bytesource"
	"github.com/standardbeagle/bigline/internal/types"
)

func openTemp(t *testing.T, data []byte) bytesource.ByteSource {
	t.Helper()
	path := filepath.Join(t.TempDir(), "f.txt")
	require.NoError(t, os.WriteFile(path, data, 0644))
	src, err := bytesource.Open(path, types.EncodingASCII)
	require.NoError(t, err)
	t.Cleanup(func() { src.Close() })
	return src
}

func TestBuildThreeLineNoTrailingNewline(t *testing.T) {
	src := openTemp(t, []byte("a\nbb\nccc"))
	idx, err := Build(src)
	require.NoError(t, err)

	assert.Equal(t, 3, idx.LineCount())
	for i, want := range []string{"a", "bb", "ccc"} {
		raw, err := idx.RawLine(src, i)
		require.NoError(t, err)
		assert.Equal(t, want, DecodeLine(raw))
	}
}

func TestBuildCRLF(t *testing.T) {
	src := openTemp(t, []byte("x\r\ny\r\n"))
	idx, err := Build(src)
	require.NoError(t, err)
	assert.Equal(t, 2, idx.LineCount())

	raw0, err := idx.RawLine(src, 0)
	require.NoError(t, err)
	assert.Equal(t, "x", DecodeLine(raw0))

	raw1, err := idx.RawLine(src, 1)
	require.NoError(t, err)
	assert.Equal(t, "y", DecodeLine(raw1))
}

func TestBuildEmptyFile(t *testing.T) {
	src := openTemp(t, []byte(""))
	idx, err := Build(src)
	require.NoError(t, err)
	assert.Equal(t, 0, idx.LineCount())
}

func TestExtendAgreesWithOldIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.txt")
	require.NoError(t, os.WriteFile(path, []byte("one\ntwo\nthree\n"), 0644))
	src, err := bytesource.Open(path, types.EncodingASCII)
	require.NoError(t, err)
	defer src.Close()

	idx, err := Build(src)
	require.NoError(t, err)
	oldLineCount := idx.LineCount()
	oldOffsets := append([]int64(nil), idx.Offsets()[:oldLineCount]...)

	require.NoError(t, os.WriteFile(path, []byte("one\ntwo\nthree\nfour\nfive\n"), 0644))
	fresh, err := bytesource.Open(path, types.EncodingASCII)
	require.NoError(t, err)
	defer fresh.Close()

	require.NoError(t, idx.Extend(fresh, 14))

	assert.Equal(t, 5, idx.LineCount())
	for i := 0; i < oldLineCount; i++ {
		assert.Equal(t, oldOffsets[i], idx.Offsets()[i])
	}

	raw, err := idx.RawLine(fresh, 3)
	require.NoError(t, err)
	assert.Equal(t, "four", DecodeLine(raw))
}

func TestJoinedChunkEqualsFileContent(t *testing.T) {
	content := "alpha\nbeta\ngamma\ndelta"
	src := openTemp(t, []byte(content))
	idx, err := Build(src)
	require.NoError(t, err)

	var lines []string
	for i := 0; i < idx.LineCount(); i++ {
		raw, err := idx.RawLine(src, i)
		require.NoError(t, err)
		lines = append(lines, DecodeLine(raw))
	}
	assert.Equal(t, content, joinLines(lines))
}

func joinLines(lines []string) string {
	out := ""
	for i, l := range lines {
		if i > 0 {
			out += "\n"
		}
		out += l
	}
	return out
}
