package parsespec

import (
	"regexp"
	"strings"

	"github.com/standardbeagle/bigline/internal/types"
)

type detector struct {
	format  types.LogFormat
	pattern string
	re      *regexp.Regexp
}

// detectOrder is the ordered table spec §4.7 calls for: CLF, NCSA
// Combined, Syslog 3164, Syslog 5424, W3C Extended, CEF. Order also
// breaks ties in majority-match detection (SPEC_FULL.md §4.7).
var detectOrder = []types.LogFormat{
	types.LogFormatCommonLogFormat,
	types.LogFormatNCSACombined,
	types.LogFormatSyslogRFC3164,
	types.LogFormatSyslogRFC5424,
	types.LogFormatW3CExtended,
	types.LogFormatCommonEventFormat,
}

var detectors = map[types.LogFormat]detector{
	types.LogFormatCommonLogFormat: {
		format:  types.LogFormatCommonLogFormat,
		pattern: `^(\S+) (\S+) (\S+) \[([^\]]+)\] "([^"]*)" (\d{3}) (\S+)$`,
	},
	types.LogFormatNCSACombined: {
		format:  types.LogFormatNCSACombined,
		pattern: `^(\S+) (\S+) (\S+) \[([^\]]+)\] "([^"]*)" (\d{3}) (\S+) "([^"]*)" "([^"]*)"$`,
	},
	types.LogFormatSyslogRFC3164: {
		format:  types.LogFormatSyslogRFC3164,
		pattern: `^<(\d+)>([A-Z][a-z]{2}\s+\d{1,2} \d{2}:\d{2}:\d{2}) (\S+) ([^:\[]+)(?:\[(\d+)\])?: (.*)$`,
	},
	types.LogFormatSyslogRFC5424: {
		format:  types.LogFormatSyslogRFC5424,
		pattern: `^<(\d+)>(\d+) (\S+) (\S+) (\S+) (\S+) (\S+) (.*)$`,
	},
	types.LogFormatW3CExtended: {
		format:  types.LogFormatW3CExtended,
		pattern: `^(\d{4}-\d{2}-\d{2}) (\d{2}:\d{2}:\d{2}) (\S+) (\S+) (\S+) (\d+) (\S+) (\S+) (\d{3})$`,
	},
	types.LogFormatCommonEventFormat: {
		format:  types.LogFormatCommonEventFormat,
		pattern: `^CEF:(\d+)\|([^|]*)\|([^|]*)\|([^|]*)\|([^|]*)\|([^|]*)\|([^|]*)\|(.*)$`,
	},
}

func init() {
	for k, d := range detectors {
		d.re = regexp.MustCompile(d.pattern)
		detectors[k] = d
	}
}

// sampleSize is how many non-empty lines spec §4.7 says to examine.
const sampleSize = 20

// SampleSize exposes sampleSize to callers (internal/session) that need
// to gather the same sample Detect consumes.
func SampleSize() int {
	return sampleSize
}

// Detect examines up to sampleSize non-empty lines and returns the tag
// of the first format (in detectOrder) that matches a strict majority
// of the sample, or LogFormatOther. Pure: installs nothing.
func Detect(lines []string) types.LogFormat {
	var sample []string
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		sample = append(sample, l)
		if len(sample) == sampleSize {
			break
		}
	}
	if len(sample) == 0 {
		return types.LogFormatOther
	}

	for _, format := range detectOrder {
		d := detectors[format]
		matches := 0
		for _, l := range sample {
			if d.re.MatchString(l) {
				matches++
			}
		}
		if matches*2 > len(sample) {
			return format
		}
	}
	return types.LogFormatOther
}
