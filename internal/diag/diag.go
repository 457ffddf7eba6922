// Package diag provides the engine's diagnostic logging. Like the
// teacher's internal/debug, it is a thin, always-compiled wrapper
// rather than a logging framework: verbose output is gated by an env
// var so a normal run stays quiet, while Info/Error events that are
// part of the protocol (spec §6 unsolicited events) always go out
// through the Sink regardless of verbosity.
package diag

import (
	"fmt"
	"log"
	"os"
)

// verbose mirrors the teacher's EnableDebug build-flag convention, but
// as a runtime env var since this binary ships without custom ldflags.
var verbose = os.Getenv("BIGLINE_DEBUG") == "1"

// Debugf writes a verbose trace line to stderr, raw (not protocol
// framed). Silent unless BIGLINE_DEBUG=1.
func Debugf(format string, args ...any) {
	if !verbose {
		return
	}
	log.SetFlags(log.Ltime | log.Lmicroseconds)
	log.Printf("[bigline] "+format, args...)
}

// Sink receives protocol-level Info/Error records (spec §6). The
// protocol package supplies the concrete implementation that frames
// these as JSON lines; diag stays free of any JSON dependency so it can
// be imported from every subsystem without an import cycle.
type Sink interface {
	Info(message string)
	Error(message string)
}

// stderrSink is the Sink used before a protocol dispatcher is wired up
// (e.g. very early startup failures) - plain text, not JSON-framed.
type stderrSink struct{}

func (stderrSink) Info(message string)  { fmt.Fprintln(os.Stderr, "info:", message) }
func (stderrSink) Error(message string) { fmt.Fprintln(os.Stderr, "error:", message) }

// Default is the fallback Sink. main wires the real protocol-framed
// sink before starting the dispatch loop.
var Default Sink = stderrSink{}
