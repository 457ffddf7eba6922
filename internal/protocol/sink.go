package protocol

import (
	"encoding/json"
	"io"
	"sync"
)

// StderrSink frames diag.Info/Error calls as the same JSON records used
// on the response stream (spec §6: "informational and error records
// may also appear on the standard error byte stream, same JSON
// framing"), so a client tailing either stream sees a consistent
// record shape.
type StderrSink struct {
	mu  sync.Mutex
	out io.Writer
}

// NewStderrSink wraps out (normally os.Stderr) as a diag.Sink.
func NewStderrSink(out io.Writer) *StderrSink {
	return &StderrSink{out: out}
}

func (s *StderrSink) Info(message string) { s.write("Info", infoPayload{Message: message}) }

func (s *StderrSink) Error(message string) { s.write("Error", errorPayload{Message: message}) }

func (s *StderrSink) write(name string, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		return
	}
	line := append([]byte(`{"`+name+`":`), body...)
	line = append(line, '}', '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	s.out.Write(line)
}
