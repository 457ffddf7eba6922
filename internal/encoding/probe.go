// Package encoding implements the Encoding Probe (spec §4.1): reading a
// prefix of a file and classifying it into a canonical encoding tag.
// Like the teacher's encoding package, this is deliberately
// dependency-light and pure - it touches no Session state and performs
// no transcoding itself (see internal/bytesource for that).
package encoding

import (
	"unicode/utf8"

	"github.com/standardbeagle/bigline/internal/types"
)

// probeWindow is how much of the file prefix we inspect.
const probeWindow = 4096

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// Probe classifies the given prefix bytes per spec §4.1's detection
// order: BOM match, UTF-16 zero-byte-density heuristic, UTF-8 validity
// scan, ISO-8859-1 fallback.
func Probe(prefix []byte) (encoding types.Encoding, isSupported bool) {
	if hasPrefix(prefix, bomUTF8) {
		return types.EncodingUTF8, true
	}
	// UTF-16LE BOM (FF FE) is a prefix of the UTF-32LE BOM (FF FE 00 00);
	// spec only asks us to distinguish UTF-16, so we don't special-case it.
	if hasPrefix(prefix, bomUTF16LE) {
		return types.EncodingUTF16LE, true
	}
	if hasPrefix(prefix, bomUTF16BE) {
		return types.EncodingUTF16BE, true
	}

	if len(prefix) >= 4 {
		if looksLikeUTF16(prefix, true) {
			return types.EncodingUTF16LE, true
		}
		if looksLikeUTF16(prefix, false) {
			return types.EncodingUTF16BE, true
		}
	}

	if utf8.Valid(prefix) {
		if isASCII(prefix) {
			return types.EncodingASCII, true
		}
		return types.EncodingUTF8, true
	}

	// Unsupported 8-bit encodings are still openable: the engine falls
	// back to treating bytes as UTF-8 (spec §4.1), so is_supported=false
	// here does not mean OpenFile fails.
	return types.EncodingISO88591, false
}

func hasPrefix(data, prefix []byte) bool {
	if len(data) < len(prefix) {
		return false
	}
	for i, b := range prefix {
		if data[i] != b {
			return false
		}
	}
	return true
}

func isASCII(data []byte) bool {
	for _, b := range data {
		if b >= 0x80 {
			return false
		}
	}
	return true
}

// looksLikeUTF16 applies the "density of zero bytes in alternating
// positions" heuristic from spec §4.1: for ASCII-heavy UTF-16 text,
// every other byte is 0x00, landing at odd offsets for LE and even
// offsets for BE (since ASCII code points are \x00\xNN in BE and
// \xNN\x00 in LE). A strong majority of the checked positions being
// zero, and the other phase's positions mostly non-zero, indicates
// UTF-16 in that byte order.
func looksLikeUTF16(data []byte, little bool) bool {
	n := len(data)
	if n > probeWindow {
		n = probeWindow
	}
	n -= n % 2
	if n < 8 {
		return false
	}

	var zeroAtHigh, zeroAtLow int
	pairs := n / 2
	for i := 0; i < pairs; i++ {
		lo, hi := data[2*i], data[2*i+1]
		if lo == 0 {
			zeroAtLow++
		}
		if hi == 0 {
			zeroAtHigh++
		}
	}

	// For LE ASCII text the high byte of each code unit is zero; for BE
	// it's the low byte. Require a strong majority in the expected
	// phase and a small minority in the other to avoid misclassifying
	// plain binary data.
	const threshold = 0.70
	if little {
		return float64(zeroAtHigh)/float64(pairs) >= threshold && float64(zeroAtLow)/float64(pairs) < threshold
	}
	return float64(zeroAtLow)/float64(pairs) >= threshold && float64(zeroAtHigh)/float64(pairs) < threshold
}
