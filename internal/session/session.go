// Package session implements Session (spec §3): the single open-file
// context that exclusively owns the Byte Source, Line Index, ParseSpec,
// and watcher state, and the dispatcher-facing operations layered over
// them (OpenFile, GetChunk, Search, GetParsingInformation, ParseFile).
//
// Grounded on the teacher's IndexServer (internal/server/server.go in
// the lci repo): one long-lived owned-state struct behind an
// RWMutex, explicit constructors, value swap on reopen.
package session

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/standardbeagle/bigline/internal/bytesource"
	"github.com/standardbeagle/bigline/internal/config"
	"github.com/standardbeagle/bigline/internal/diag"
	"github.com/standardbeagle/bigline/internal/encoding"
	berrors "github.com/standardbeagle/bigline/internal/errors"
	"github.com/standardbeagle/bigline/internal/lineindex"
	"github.com/standardbeagle/bigline/internal/parsespec"
	"github.com/standardbeagle/bigline/internal/query"
	"github.com/standardbeagle/bigline/internal/types"
	"github.com/standardbeagle/bigline/internal/watcher"
)

// probePrefixBytes bounds how much of the file the Encoding Probe reads
// (spec §4.1).
const probePrefixBytes = 4096

// eventQueueCapacity is the bounded watcher-event queue size
// (SPEC_FULL.md §5). Once full, the oldest queued event is dropped in
// favor of the newest - a later watcher tick supersedes it anyway.
const eventQueueCapacity = 16

// EventKind tags the three shapes of unsolicited event the watcher can
// post (spec §6): LinesAdded, FileTruncated, and a fallback Info for
// non-fatal problems (e.g. a transient watcher I/O error, spec §7).
type EventKind int

const (
	EventLinesAdded EventKind = iota
	EventFileTruncated
	EventInfo
)

// Event is one item drained by the dispatcher between commands.
type Event struct {
	Kind         EventKind
	OldLineCount uint64
	NewLineCount uint64
	NewLines     [][]string
	Message      string
}

// Manager owns at most one Session at a time and dispatches the
// protocol-level operations onto it. It is the thing the Protocol
// Dispatcher (internal/protocol) holds a reference to.
type Manager struct {
	cfg *config.Config

	mu      sync.RWMutex
	current *session

	events chan Event
}

// session is the concrete Session value (spec §3); Manager swaps this
// out wholesale on every successful OpenFile.
type session struct {
	path string

	// dataMu guards src/idx/enc: GetChunk and Search take RLock (spec
	// §5's "shared access"); the watcher's Append/Truncate handling
	// takes Lock ("exclusive access") since Truncate/rotate swaps the
	// Byte Source out from under any in-flight reader.
	dataMu sync.RWMutex
	enc    types.Encoding
	src    bytesource.ByteSource
	idx    *lineindex.Index

	// specMu guards spec independently: ParseFile replaces it without
	// needing the (potentially long-held, during Search) dataMu lock.
	specMu sync.RWMutex
	spec   *parsespec.Spec

	watcher *watcher.Watcher
}

func NewManager(cfg *config.Config) *Manager {
	return &Manager{
		cfg:    cfg,
		events: make(chan Event, eventQueueCapacity),
	}
}

// Events returns the channel the dispatcher drains between commands
// (spec §5).
func (m *Manager) Events() <-chan Event {
	return m.events
}

func (m *Manager) postEvent(ev Event) {
	select {
	case m.events <- ev:
		return
	default:
	}
	// Queue full: drop the oldest, then enqueue the newest (SPEC_FULL.md §5).
	select {
	case <-m.events:
	default:
	}
	select {
	case m.events <- ev:
	default:
		diag.Default.Info("watcher event queue saturated, dropping event")
	}
}

// HasSession reports whether an OpenFile has succeeded and not since
// been replaced or closed.
func (m *Manager) HasSession() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current != nil
}

// GetFileEncoding implements spec §4.8's GetFileEncoding command: runs
// the Encoding Probe against path without touching Session state (spec
// §4.1: "Pure; touches no Session state").
func (m *Manager) GetFileEncoding(path string) (types.Encoding, bool, error) {
	if !filepath.IsAbs(path) {
		return "", false, berrors.PathNotAbsolute(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return "", false, berrors.IoError("open", err)
	}
	prefix := make([]byte, probePrefixBytes)
	n, _ := f.Read(prefix)
	f.Close()

	enc, ok := encoding.Probe(prefix[:n])
	return enc, ok, nil
}

// OpenFile implements spec §4.8's OpenFile command: validates the path,
// probes encoding, builds the Byte Source and Line Index, starts the
// watcher, and discards any prior Session (spec §3's "replaces any
// prior session").
func (m *Manager) OpenFile(path string) (lineCount uint64, err error) {
	if !filepath.IsAbs(path) {
		return 0, berrors.PathNotAbsolute(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return 0, berrors.IoError("open", err)
	}
	prefix := make([]byte, probePrefixBytes)
	n, _ := f.Read(prefix)
	f.Close()

	enc, _ := encoding.Probe(prefix[:n])

	src, err := bytesource.Open(path, enc)
	if err != nil {
		return 0, err
	}

	idx, err := lineindex.Build(src)
	if err != nil {
		src.Close()
		return 0, err
	}

	length, err := src.Length()
	if err != nil {
		src.Close()
		return 0, err
	}
	// fpLen is how many prefix bytes the rotation fingerprint covers. It
	// stays at the length seen at open so appended bytes never change the
	// fingerprint, and shrinks with the file on a truncate. Only the
	// watcher goroutine touches it once Start has been called.
	fpLen := length
	fp, err := src.PrefixFingerprint(fpLen)
	if err != nil {
		src.Close()
		return 0, err
	}

	sess := &session{path: path, enc: enc, src: src, idx: idx}

	sess.watcher = watcher.New(path, m.cfg.PollInterval,
		func() (watcher.Sample, error) {
			sess.dataMu.RLock()
			cur := sess.src
			sess.dataMu.RUnlock()

			l, err := cur.Length()
			if err != nil {
				return watcher.Sample{}, err
			}
			fp, err := cur.PrefixFingerprint(fpLen)
			if err != nil {
				return watcher.Sample{}, err
			}
			return watcher.Sample{Length: l, Fingerprint: fp}, nil
		},
		func(prev, cur watcher.Sample, kind watcher.Classification) {
			m.handleChange(sess, prev, cur, kind)
			if kind == watcher.Truncate && cur.Length < fpLen {
				fpLen = cur.Length
			}
		},
		func(err error) {
			m.postEvent(Event{Kind: EventInfo, Message: "watcher: " + err.Error()})
		},
	)

	m.mu.Lock()
	old := m.current
	m.current = sess
	m.mu.Unlock()

	if old != nil {
		old.watcher.Stop()
		old.src.Close()
	}

	sess.watcher.Start(watcher.Sample{Length: length, Fingerprint: fp})

	return uint64(idx.LineCount()), nil
}

// handleChange runs on the watcher's goroutine; it applies the
// classification to the Session's Line Index under exclusive lock
// (spec §5's readers-writer discipline: "append/rebuild takes
// exclusive access") and posts the corresponding event.
func (m *Manager) handleChange(sess *session, prev, cur watcher.Sample, kind watcher.Classification) {
	m.mu.Lock()
	isCurrent := m.current == sess
	m.mu.Unlock()
	if !isCurrent {
		return
	}

	switch kind {
	case watcher.Append:
		sess.dataMu.Lock()
		oldLineCount := uint64(sess.idx.LineCount())
		if err := sess.idx.Extend(sess.src, prev.Length); err != nil {
			sess.dataMu.Unlock()
			m.postEvent(Event{Kind: EventInfo, Message: "append reindex failed: " + err.Error()})
			return
		}
		newLineCount := uint64(sess.idx.LineCount())

		sess.specMu.RLock()
		spec := sess.spec
		sess.specMu.RUnlock()

		var newLines [][]string
		for i := oldLineCount; i < newLineCount; i++ {
			raw, err := sess.idx.RawLine(sess.src, int(i))
			if err != nil {
				continue
			}
			newLines = append(newLines, parsespec.ApplyOrRaw(spec, lineindex.DecodeLine(raw)))
		}
		sess.dataMu.Unlock()

		m.postEvent(Event{
			Kind:         EventLinesAdded,
			OldLineCount: oldLineCount,
			NewLineCount: newLineCount,
			NewLines:     newLines,
		})

	case watcher.Truncate:
		enc, err := m.reprobeIfFingerprintChanged(sess)
		if err != nil {
			m.postEvent(Event{Kind: EventInfo, Message: "re-probe failed: " + err.Error()})
			return
		}

		newSrc, err := bytesource.Open(sess.path, enc)
		if err != nil {
			m.postEvent(Event{Kind: EventInfo, Message: "reinitialize byte source failed: " + err.Error()})
			return
		}
		idx, err := lineindex.Build(newSrc)
		if err != nil {
			newSrc.Close()
			m.postEvent(Event{Kind: EventInfo, Message: "rebuild failed: " + err.Error()})
			return
		}

		sess.dataMu.Lock()
		oldSrc := sess.src
		sess.src = newSrc
		sess.idx = idx
		sess.dataMu.Unlock()
		oldSrc.Close()

		m.postEvent(Event{Kind: EventFileTruncated, NewLineCount: uint64(idx.LineCount())})
	}
}

// reprobeIfFingerprintChanged re-runs the Encoding Probe when the
// content fingerprint differs from what OpenFile last saw, per spec
// §4.3's "Rebuild (truncate / rotate)": "re-probe encoding if the
// prefix fingerprint changed". The current implementation always
// re-probes on Truncate/rotate classification, since that
// classification already implies the fingerprint changed whenever the
// length did not shrink (spec §4.6).
func (m *Manager) reprobeIfFingerprintChanged(sess *session) (types.Encoding, error) {
	f, err := os.Open(sess.path)
	if err != nil {
		return sess.enc, err
	}
	defer f.Close()
	prefix := make([]byte, probePrefixBytes)
	n, _ := f.Read(prefix)
	enc, _ := encoding.Probe(prefix[:n])
	sess.dataMu.Lock()
	sess.enc = enc
	sess.dataMu.Unlock()
	return enc, nil
}

// withSession runs fn against the current session, translating a
// missing session into NoSessionOpen (spec §4.8).
func (m *Manager) withSession(command string, fn func(sess *session) error) error {
	m.mu.RLock()
	sess := m.current
	m.mu.RUnlock()
	if sess == nil {
		return berrors.NoSessionOpen(command)
	}
	return fn(sess)
}

// GetChunk implements spec §4.4.
func (m *Manager) GetChunk(startLine, endLine uint64) (*types.Chunk, error) {
	var chunk *types.Chunk
	err := m.withSession("GetChunk", func(sess *session) error {
		sess.specMu.RLock()
		spec := sess.spec
		sess.specMu.RUnlock()

		sess.dataMu.RLock()
		defer sess.dataMu.RUnlock()

		c, err := query.GetChunk(sess.idx, sess.src, spec, startLine, endLine)
		if err != nil {
			return err
		}
		chunk = c
		return nil
	})
	return chunk, err
}

// Search implements spec §4.5, capturing the ParseSpec snapshot at
// start so a concurrent ParseFile is only visible to the next command
// (spec §5's "copy-on-replace").
func (m *Manager) Search(ctx context.Context, pattern string, onProgress func(percent float64)) (*types.SearchResults, error) {
	var results *types.SearchResults
	err := m.withSession("Search", func(sess *session) error {
		sess.specMu.RLock()
		spec := sess.spec
		sess.specMu.RUnlock()

		sess.dataMu.RLock()
		defer sess.dataMu.RUnlock()

		r, err := query.Search(ctx, sess.idx, sess.src, spec, pattern, query.OptionsFromConfig(m.cfg), onProgress)
		if err != nil {
			return err
		}
		results = r
		return nil
	})
	return results, err
}

// GetParsingInformation implements spec §4.7: pure detection from the
// first sampled lines, installing nothing.
func (m *Manager) GetParsingInformation() (types.LogFormat, error) {
	var format types.LogFormat
	err := m.withSession("GetParsingInformation", func(sess *session) error {
		lines, err := sampleLines(sess, parsespec.SampleSize())
		if err != nil {
			return err
		}
		format = parsespec.Detect(lines)
		return nil
	})
	return format, err
}

// ParseFile implements spec §4.7/§6: installs a new ParseSpec built
// either from a named format's builtin pattern or a caller-supplied
// pattern+column count.
func (m *Manager) ParseFile(format types.LogFormat, pattern string, nbrColumns int) (types.LogFormat, error) {
	var result types.LogFormat
	err := m.withSession("ParseFile", func(sess *session) error {
		if pattern == "" {
			builtin, cols, ok := parsespec.BuiltinPattern(format)
			if !ok {
				return berrors.MalformedCommand("unknown log_format and no pattern supplied")
			}
			pattern, nbrColumns = builtin, cols
		}

		spec, err := parsespec.New(pattern, nbrColumns)
		if err != nil {
			return err
		}

		sess.specMu.Lock()
		sess.spec = spec
		sess.specMu.Unlock()

		result = format
		return nil
	})
	return result, err
}

func sampleLines(sess *session, max int) ([]string, error) {
	sess.dataMu.RLock()
	defer sess.dataMu.RUnlock()

	lineCount := sess.idx.LineCount()
	if lineCount > max*4 {
		lineCount = max * 4 // bound how far we scan hunting for non-empty lines
	}
	var out []string
	for i := 0; i < lineCount && len(out) < max; i++ {
		raw, err := sess.idx.RawLine(sess.src, i)
		if err != nil {
			return nil, err
		}
		line := lineindex.DecodeLine(raw)
		if strings.TrimSpace(line) == "" {
			continue
		}
		out = append(out, line)
	}
	return out, nil
}

// Close releases the current session's resources, if any; used at
// process shutdown.
func (m *Manager) Close() {
	m.mu.Lock()
	sess := m.current
	m.current = nil
	m.mu.Unlock()

	if sess != nil {
		sess.watcher.Stop()
		sess.dataMu.Lock()
		sess.src.Close()
		sess.dataMu.Unlock()
	}
}
