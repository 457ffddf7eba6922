// Package protocol implements the newline-delimited JSON transport (spec
// §6/§4.8): one JSON object per line on stdin, one per line on stdout,
// a single-key envelope naming the command, and the command/response
// schema table. Grounded on the teacher's IndexServer handlers
// (internal/server/server.go in the lci repo) - decode a request,
// invoke the engine under its own locking, encode a response - adapted
// from HTTP+Unix-socket framing to line-delimited stdio framing.
package protocol

import "github.com/standardbeagle/bigline/internal/types"

// Parameter blocks, one per command in spec §6's schema table.

type getFileEncodingParams struct {
	Path string `json:"path"`
}

type openFileParams struct {
	Path string `json:"path"`
}

type parseFileParams struct {
	LogFormat  string `json:"log_format"`
	Pattern    string `json:"pattern,omitempty"`
	NbrColumns int    `json:"nbr_columns,omitempty"`
}

type getChunkParams struct {
	StartLine uint64 `json:"start_line"`
	EndLine   uint64 `json:"end_line"`
}

type searchParams struct {
	Pattern string `json:"pattern"`
}

// Response/event payloads, one per record shape in spec §6.

type encodingPayload struct {
	Encoding    types.Encoding `json:"encoding"`
	IsSupported bool           `json:"is_supported"`
}

type fileOpenedPayload struct {
	LineCount uint64 `json:"line_count"`
}

type parsingInformationPayload struct {
	LogFormat types.LogFormat `json:"log_format"`
}

type chunkPayload struct {
	Data      [][]string `json:"data"`
	StartLine uint64     `json:"start_line"`
	EndLine   uint64     `json:"end_line"`
}

type progressPayload struct {
	Percent float64 `json:"percent"`
}

type matchPayload struct {
	LineNumber uint64 `json:"line_number"`
	Column     uint32 `json:"column"`
	StartIndex uint32 `json:"start_index"`
	EndIndex   uint32 `json:"end_index"`
}

type searchResultsPayload struct {
	Matches        []matchPayload `json:"matches"`
	TotalMatches   int            `json:"total_matches"`
	SearchComplete bool           `json:"search_complete"`
}

type fileTruncatedPayload struct {
	LineCount uint64 `json:"line_count"`
}

type linesAddedPayload struct {
	OldLineCount uint64     `json:"old_line_count"`
	NewLineCount uint64     `json:"new_line_count"`
	NewLines     [][]string `json:"new_lines"`
}

type infoPayload struct {
	Message string `json:"message"`
}

type errorPayload struct {
	Message string `json:"message"`
}

func toMatchPayloads(matches []types.Match) []matchPayload {
	out := make([]matchPayload, len(matches))
	for i, m := range matches {
		out[i] = matchPayload{
			LineNumber: m.LineNumber,
			Column:     m.Column,
			StartIndex: m.StartIndex,
			EndIndex:   m.EndIndex,
		}
	}
	return out
}
