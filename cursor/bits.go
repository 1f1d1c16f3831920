package cursor

import (
	"math"
	"strings"
	"unicode/utf8"
)

func float32FromBits(u uint32) float32 {
	return math.Float32frombits(u)
}

func float64FromBits(u uint64) float64 {
	return math.Float64frombits(u)
}

// lossyUTF8 returns s decoded leniently: invalid byte sequences are replaced
// with the Unicode replacement character instead of aborting, matching the
// format's tolerance for non-UTF-8 string-table entries.
func lossyUTF8(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	var sb strings.Builder
	sb.Grow(len(b))
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		sb.WriteRune(r)
		b = b[size:]
	}
	return sb.String()
}
