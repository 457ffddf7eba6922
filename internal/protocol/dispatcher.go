package protocol

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	berrors "github.com/standardbeagle/bigline/internal/errors"
	"github.com/standardbeagle/bigline/internal/session"
	"github.com/standardbeagle/bigline/internal/types"
)

// maxLineSize bounds a single command/response line; wide log lines or
// large ParseFile patterns can be long, so the default bufio.Scanner
// limit (64 KiB) is raised well past any realistic single line.
const maxLineSize = 16 * 1024 * 1024

// Dispatcher reads one command per input line, invokes the Session
// Manager, and writes one response per output line, interleaving
// watcher events between responses (spec §4.8, §5). Grounded on the
// teacher's IndexServer request handlers (internal/server/server.go):
// decode, dispatch under the engine's own locking, encode - adapted
// from per-connection HTTP handlers to a single serialized stdio loop.
type Dispatcher struct {
	mgr *session.Manager

	writeMu sync.Mutex
	out     io.Writer
}

// NewDispatcher constructs a Dispatcher bound to mgr. Call Run to begin
// serving.
func NewDispatcher(mgr *session.Manager) *Dispatcher {
	return &Dispatcher{mgr: mgr}
}

// Run drains commands from in until EOF or a read error, writing
// responses and interleaved watcher events to out. It returns nil on
// clean EOF (spec §6: "Exit code 0 on EOF of input after clean
// shutdown").
func (d *Dispatcher) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	d.out = out

	stop := make(chan struct{})
	eventsDone := make(chan struct{})
	go func() {
		defer close(eventsDone)
		d.drainEvents(d.mgr.Events(), stop)
	}()

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	for scanner.Scan() {
		line := append([]byte(nil), scanner.Bytes()...)
		if len(line) == 0 {
			continue
		}
		d.handleLine(ctx, line)
	}
	err := scanner.Err()

	close(stop)
	<-eventsDone

	return err
}

// drainEvents forwards watcher events to the output stream as they
// arrive, until stop is closed. Since commands are serialized (spec
// §5) and each event is one line written atomically under writeMu,
// events only ever land between, never inside, a response's byte
// sequence.
func (d *Dispatcher) drainEvents(events <-chan session.Event, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case ev := <-events:
			switch ev.Kind {
			case session.EventLinesAdded:
				d.emit("LinesAdded", linesAddedPayload{
					OldLineCount: ev.OldLineCount,
					NewLineCount: ev.NewLineCount,
					NewLines:     ev.NewLines,
				})
			case session.EventFileTruncated:
				d.emit("FileTruncated", fileTruncatedPayload{LineCount: ev.NewLineCount})
			case session.EventInfo:
				d.emit("Info", infoPayload{Message: ev.Message})
			}
		}
	}
}

// handleLine parses and dispatches a single command line (spec §4.8):
// malformed JSON or an envelope with zero or more than one top-level
// key is MalformedCommand without touching Session state.
func (d *Dispatcher) handleLine(ctx context.Context, line []byte) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(line, &envelope); err != nil {
		d.emitError(berrors.MalformedCommand("invalid JSON: " + err.Error()))
		return
	}
	if len(envelope) != 1 {
		d.emitError(berrors.MalformedCommand(fmt.Sprintf("expected exactly one top-level key, got %d", len(envelope))))
		return
	}

	var command string
	var raw json.RawMessage
	for k, v := range envelope {
		command, raw = k, v
	}

	switch command {
	case "GetFileEncoding":
		d.handleGetFileEncoding(raw)
	case "OpenFile":
		d.handleOpenFile(raw)
	case "GetParsingInformation":
		d.handleGetParsingInformation()
	case "ParseFile":
		d.handleParseFile(raw)
	case "GetChunk":
		d.handleGetChunk(raw)
	case "Search":
		d.handleSearch(ctx, raw)
	default:
		d.emitError(berrors.MalformedCommand("unknown command " + command))
	}
}

func (d *Dispatcher) handleGetFileEncoding(raw json.RawMessage) {
	var p getFileEncodingParams
	if err := json.Unmarshal(raw, &p); err != nil {
		d.emitError(berrors.MalformedCommand("GetFileEncoding: " + err.Error()))
		return
	}
	enc, supported, err := d.mgr.GetFileEncoding(p.Path)
	if err != nil {
		d.emitError(err)
		return
	}
	d.emit("Encoding", encodingPayload{Encoding: enc, IsSupported: supported})
}

func (d *Dispatcher) handleOpenFile(raw json.RawMessage) {
	var p openFileParams
	if err := json.Unmarshal(raw, &p); err != nil {
		d.emitError(berrors.MalformedCommand("OpenFile: " + err.Error()))
		return
	}
	lineCount, err := d.mgr.OpenFile(p.Path)
	if err != nil {
		d.emitError(err)
		return
	}
	d.emit("FileOpened", fileOpenedPayload{LineCount: lineCount})
}

func (d *Dispatcher) handleGetParsingInformation() {
	format, err := d.mgr.GetParsingInformation()
	if err != nil {
		d.emitError(err)
		return
	}
	d.emit("ParsingInformation", parsingInformationPayload{LogFormat: format})
}

func (d *Dispatcher) handleParseFile(raw json.RawMessage) {
	var p parseFileParams
	if err := json.Unmarshal(raw, &p); err != nil {
		d.emitError(berrors.MalformedCommand("ParseFile: " + err.Error()))
		return
	}
	format, err := d.mgr.ParseFile(types.LogFormat(p.LogFormat), p.Pattern, p.NbrColumns)
	if err != nil {
		d.emitError(err)
		return
	}
	d.emit("ParsingInformation", parsingInformationPayload{LogFormat: format})
}

func (d *Dispatcher) handleGetChunk(raw json.RawMessage) {
	var p getChunkParams
	if err := json.Unmarshal(raw, &p); err != nil {
		d.emitError(berrors.MalformedCommand("GetChunk: " + err.Error()))
		return
	}
	chunk, err := d.mgr.GetChunk(p.StartLine, p.EndLine)
	if err != nil {
		d.emitError(err)
		return
	}
	d.emit("Chunk", chunkPayload{Data: chunk.Data, StartLine: chunk.StartLine, EndLine: chunk.EndLine})
}

// handleSearch occupies the dispatcher until the search completes
// (spec §4.8, §5), streaming Progress records synchronously as they're
// produced.
func (d *Dispatcher) handleSearch(ctx context.Context, raw json.RawMessage) {
	var p searchParams
	if err := json.Unmarshal(raw, &p); err != nil {
		d.emitError(berrors.MalformedCommand("Search: " + err.Error()))
		return
	}

	results, err := d.mgr.Search(ctx, p.Pattern, func(percent float64) {
		d.emit("Progress", progressPayload{Percent: percent})
	})
	if err != nil {
		d.emitError(err)
		return
	}

	d.emit("SearchResults", searchResultsPayload{
		Matches:        toMatchPayloads(results.Matches),
		TotalMatches:   results.TotalMatches,
		SearchComplete: results.SearchComplete,
	})
}

func (d *Dispatcher) emitError(err error) {
	d.emit("Error", errorPayload{Message: err.Error()})
}

// emit writes {"name": payload}\n atomically, so a concurrent watcher
// event can never interleave with a partially-written response line.
func (d *Dispatcher) emit(name string, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		body, _ = json.Marshal(errorPayload{Message: berrors.Internal("marshal response: " + err.Error()).Error()})
		name = "Error"
	}

	line := append([]byte(`{"`+name+`":`), body...)
	line = append(line, '}', '\n')

	d.writeMu.Lock()
	defer d.writeMu.Unlock()
	d.out.Write(line)
}
