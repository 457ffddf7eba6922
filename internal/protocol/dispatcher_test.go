package protocol

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/bigline/internal/config"
	"github.com/standardbeagle/bigline/internal/session"
)

func fastConfig() *config.Config {
	cfg := config.Default()
	cfg.PollInterval = 20 * time.Millisecond
	return cfg
}

// runLines feeds commands (one JSON object per string) into a fresh
// Dispatcher and returns the decoded output lines.
func runLines(t *testing.T, mgr *session.Manager, commands ...string) []map[string]json.RawMessage {
	t.Helper()
	d := NewDispatcher(mgr)
	in := strings.NewReader(strings.Join(commands, "\n") + "\n")
	var out bytes.Buffer

	err := d.Run(context.Background(), in, &out)
	require.NoError(t, err)

	var lines []map[string]json.RawMessage
	sc := bufio.NewScanner(&out)
	for sc.Scan() {
		if len(sc.Bytes()) == 0 {
			continue
		}
		var m map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m))
		lines = append(lines, m)
	}
	return lines
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "f.log")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestGetFileEncodingRequiresNoSession(t *testing.T) {
	mgr := session.NewManager(fastConfig())
	defer mgr.Close()

	path := writeFile(t, "hello\n")
	cmd := fmt.Sprintf(`{"GetFileEncoding": {"path": %q}}`, path)

	lines := runLines(t, mgr, cmd)
	require.Len(t, lines, 1)
	payload, ok := lines[0]["Encoding"]
	require.True(t, ok)
	var p encodingPayload
	require.NoError(t, json.Unmarshal(payload, &p))
	assert.Equal(t, "ASCII", string(p.Encoding))
	assert.True(t, p.IsSupported)
}

func TestOpenFileThenGetChunk(t *testing.T) {
	mgr := session.NewManager(fastConfig())
	defer mgr.Close()

	path := writeFile(t, "a\nbb\nccc")
	open := fmt.Sprintf(`{"OpenFile": {"path": %q}}`, path)
	chunk := `{"GetChunk": {"start_line": 0, "end_line": 3}}`

	lines := runLines(t, mgr, open, chunk)
	require.Len(t, lines, 2)

	var opened fileOpenedPayload
	require.NoError(t, json.Unmarshal(lines[0]["FileOpened"], &opened))
	assert.EqualValues(t, 3, opened.LineCount)

	var c chunkPayload
	require.NoError(t, json.Unmarshal(lines[1]["Chunk"], &c))
	assert.Equal(t, [][]string{{"a"}, {"bb"}, {"ccc"}}, c.Data)
}

func TestGetChunkBeforeOpenFileFails(t *testing.T) {
	mgr := session.NewManager(fastConfig())
	defer mgr.Close()

	lines := runLines(t, mgr, `{"GetChunk": {"start_line": 0, "end_line": 1}}`)
	require.Len(t, lines, 1)
	var e errorPayload
	require.NoError(t, json.Unmarshal(lines[0]["Error"], &e))
	assert.Contains(t, e.Message, "NoSessionOpen")
}

func TestMalformedCommandOnBadJSON(t *testing.T) {
	mgr := session.NewManager(fastConfig())
	defer mgr.Close()

	lines := runLines(t, mgr, `not json`)
	require.Len(t, lines, 1)
	var e errorPayload
	require.NoError(t, json.Unmarshal(lines[0]["Error"], &e))
	assert.Contains(t, e.Message, "MalformedCommand")
}

func TestMalformedCommandOnMultiKeyEnvelope(t *testing.T) {
	mgr := session.NewManager(fastConfig())
	defer mgr.Close()

	lines := runLines(t, mgr, `{"OpenFile": {}, "Search": {}}`)
	require.Len(t, lines, 1)
	var e errorPayload
	require.NoError(t, json.Unmarshal(lines[0]["Error"], &e))
	assert.Contains(t, e.Message, "MalformedCommand")
}

func TestSearchEmitsProgressThenResults(t *testing.T) {
	mgr := session.NewManager(fastConfig())
	defer mgr.Close()

	var lines []string
	for i := 0; i < 2000; i++ {
		lines = append(lines, fmt.Sprintf("line %d", i))
	}
	path := writeFile(t, strings.Join(lines, "\n")+"\n")

	open := fmt.Sprintf(`{"OpenFile": {"path": %q}}`, path)
	search := `{"Search": {"pattern": "."}}`

	out := runLines(t, mgr, open, search)
	require.GreaterOrEqual(t, len(out), 2)

	last := out[len(out)-1]
	var results searchResultsPayload
	require.NoError(t, json.Unmarshal(last["SearchResults"], &results))
	assert.Equal(t, 1000, results.TotalMatches)
	assert.False(t, results.SearchComplete)

	for _, l := range out[1 : len(out)-1] {
		_, isProgress := l["Progress"]
		assert.True(t, isProgress)
	}
}

func TestParseFileThenGetChunkSplitsColumns(t *testing.T) {
	mgr := session.NewManager(fastConfig())
	defer mgr.Close()

	path := writeFile(t, `1.2.3.4 - - [t] "req" 200 5`+"\n")
	open := fmt.Sprintf(`{"OpenFile": {"path": %q}}`, path)
	parseFile := `{"ParseFile": {"log_format": "Other", "pattern": "(\\d{1,3}(?:\\.\\d{1,3}){3}) - - \\[(.*?)\\] \"(.*?)\" (\\d{3}) (\\d+|-)", "nbr_columns": 5}}`
	chunk := `{"GetChunk": {"start_line": 0, "end_line": 1}}`

	out := runLines(t, mgr, open, parseFile, chunk)
	require.Len(t, out, 3)

	var c chunkPayload
	require.NoError(t, json.Unmarshal(out[2]["Chunk"], &c))
	assert.Equal(t, [][]string{{"1.2.3.4", "t", "req", "200", "5"}}, c.Data)
}
