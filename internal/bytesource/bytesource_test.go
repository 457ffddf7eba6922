package bytesource

import (
	"os"
	"path/filepath"
	"testing"
	"unicode/utf16"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/bigline/internal/types"
)

func writeTemp(t *testing.T, name string, data []byte) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func TestFileByteSourceReadRange(t *testing.T) {
	path := writeTemp(t, "f.txt", []byte("abcdefghij"))
	src, err := Open(path, types.EncodingASCII)
	require.NoError(t, err)
	defer src.Close()

	length, err := src.Length()
	require.NoError(t, err)
	assert.EqualValues(t, 10, length)

	got, err := src.ReadRange(2, 5)
	require.NoError(t, err)
	assert.Equal(t, []byte("cde"), got)

	tail, err := src.ReadTailFrom(8)
	require.NoError(t, err)
	assert.Equal(t, []byte("ij"), tail)
}

func TestFileByteSourcePrefixFingerprintStableUntilContentChanges(t *testing.T) {
	path := writeTemp(t, "f.txt", []byte("hello world"))
	src, err := Open(path, types.EncodingASCII)
	require.NoError(t, err)
	defer src.Close()

	fp1, err := src.PrefixFingerprint(11)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("hello world!"), 0644))
	src2, err := Open(path, types.EncodingASCII)
	require.NoError(t, err)
	defer src2.Close()

	fp2, err := src2.PrefixFingerprint(11)
	require.NoError(t, err)
	assert.Equal(t, fp1, fp2) // first 11 bytes unchanged
}

func TestTranscodedByteSourceRoundTrip(t *testing.T) {
	text := "line one\nline two\nline three\n"
	units := utf16.Encode([]rune(text))
	raw := make([]byte, len(units)*2)
	for i, u := range units {
		raw[2*i] = byte(u)
		raw[2*i+1] = byte(u >> 8)
	}
	path := writeTemp(t, "f.txt", raw)

	src, err := Open(path, types.EncodingUTF16LE)
	require.NoError(t, err)
	defer src.Close()

	length, err := src.Length()
	require.NoError(t, err)
	assert.EqualValues(t, len(text), length)

	got, err := src.ReadRange(0, length)
	require.NoError(t, err)
	assert.Equal(t, text, string(got))

	mid, err := src.ReadRange(5, 13)
	require.NoError(t, err)
	assert.Equal(t, text[5:13], string(mid))
}
