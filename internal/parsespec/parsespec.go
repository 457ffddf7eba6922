// Package parsespec implements ParseSpec (spec §3/§4.3): a compiled
// regex with a fixed column count that splits a decoded line into
// column strings, and the log-format guesser from spec §4.7.
package parsespec

import (
	"regexp"

	"github.com/standardbeagle/bigline/internal/types"
	berrors "github.com/standardbeagle/bigline/internal/errors"
)

// Spec is an installed (regex, column-count) pair (spec §3 ParseSpec).
// It is immutable once constructed: a later ParseFile replaces the
// Session's Spec pointer wholesale (copy-on-replace, spec §5), it never
// mutates one in place.
type Spec struct {
	re         *regexp.Regexp
	nbrColumns int
}

// New compiles pattern and validates that its capturing-group count
// matches nbrColumns, per spec §3's invariant. If nbrColumns is 0, it
// is inferred from the pattern's own group count.
func New(pattern string, nbrColumns int) (*Spec, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, berrors.InvalidRegex(pattern, err)
	}

	groups := re.NumSubexp()
	if nbrColumns == 0 {
		nbrColumns = groups
	} else if groups != nbrColumns {
		return nil, berrors.ColumnCountMismatch(nbrColumns, groups)
	}

	return &Spec{re: re, nbrColumns: nbrColumns}, nil
}

// NbrColumns reports the installed column count.
func (s *Spec) NbrColumns() int { return s.nbrColumns }

// Apply splits a decoded line into column strings (spec §4.3's "Range
// query"): if the regex matches, each capturing group becomes one
// column (missing captures are empty strings); if it doesn't match,
// the line is returned as a single-element tuple, never an error.
func (s *Spec) Apply(line string) []string {
	m := s.re.FindStringSubmatch(line)
	if m == nil {
		return []string{line}
	}
	// m[0] is the whole match; columns are the capturing groups.
	return append([]string(nil), m[1:]...)
}

// ApplyOrRaw applies spec if non-nil, otherwise returns the single-
// element tuple containing the raw line - the "no ParseSpec installed"
// case from spec §4.3/§4.4.
func ApplyOrRaw(spec *Spec, line string) []string {
	if spec == nil {
		return []string{line}
	}
	return spec.Apply(line)
}

// BuiltinPattern returns the well-known regex and column count for a
// named LogFormat, used by ParseFile when the caller names a format
// instead of supplying its own pattern.
func BuiltinPattern(format types.LogFormat) (pattern string, nbrColumns int, ok bool) {
	d, ok := detectors[format]
	if !ok {
		return "", 0, false
	}
	return d.pattern, d.re.NumSubexp(), true
}
