// Package types holds the plain domain value types shared across the
// engine's subsystems: Match, ChangeEvent, Chunk, and the encoding tag.
// None of these carry behavior beyond Encoding.IsSupported; the JSON
// wire shapes that mirror them live in internal/protocol.
package types

// Encoding is the canonical encoding tag returned by the Encoding
// Probe (spec §4.1).
type Encoding string

const (
	EncodingUTF8       Encoding = "UTF-8"
	EncodingUTF16LE    Encoding = "UTF-16LE"
	EncodingUTF16BE    Encoding = "UTF-16BE"
	EncodingASCII      Encoding = "ASCII"
	EncodingISO88591   Encoding = "ISO-8859-1"
)

// IsSupported reports whether the encoding is one the engine treats
// natively (ASCII-compatible or UTF-16); everything else is opened as
// UTF-8 best-effort per spec §4.1.
func (e Encoding) IsSupported() bool {
	switch e {
	case EncodingUTF8, EncodingASCII, EncodingUTF16LE, EncodingUTF16BE:
		return true
	default:
		return false
	}
}

// Match locates a single regex hit produced by Search (spec §3).
type Match struct {
	LineNumber uint64
	Column     uint32
	StartIndex uint32
	EndIndex   uint32
}

// Chunk is a materialized, half-open line range (spec §4.4). Data holds
// one tuple per line: either the single raw line (no ParseSpec) or the
// parsed column strings.
type Chunk struct {
	Data      [][]string
	StartLine uint64
	EndLine   uint64
}

// ChangeEventKind tags the three watcher classifications (spec §4.6).
type ChangeEventKind int

const (
	ChangeUnchanged ChangeEventKind = iota
	ChangeAppend
	ChangeTruncate
)

// ChangeEvent is the watcher's classification of one poll tick.
type ChangeEvent struct {
	Kind         ChangeEventKind
	OldLength    int64
	NewLength    int64
	OldLineCount uint64
	NewLineCount uint64
	NewLines     [][]string // populated only for ChangeAppend
}

// SearchResults is Search's terminal payload (spec §6).
type SearchResults struct {
	Matches        []Match
	TotalMatches   int
	SearchComplete bool
}

// LogFormat is the closed set of detectable formats from spec §4.7/§6.
type LogFormat string

const (
	LogFormatCommonLogFormat    LogFormat = "CommonLogFormat"
	LogFormatSyslogRFC3164      LogFormat = "SyslogRFC3164"
	LogFormatSyslogRFC5424      LogFormat = "SyslogRFC5424"
	LogFormatW3CExtended        LogFormat = "W3CExtended"
	LogFormatCommonEventFormat  LogFormat = "CommonEventFormat"
	LogFormatNCSACombined       LogFormat = "NCSACombined"
	LogFormatOther              LogFormat = "Other"
)
