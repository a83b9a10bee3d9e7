package pathindex

import (
	"strings"

	"github.com/lazyfrosch/rdiff-backup/logging"
)

// Quote escapes the two bytes that would otherwise be ambiguous in the
// line-based record format: a literal backslash and a literal newline
// (spec §4.1, P2). Everything else passes through unchanged, including
// "/" — components are still joined with "/" before quoting, so the
// slash-split on read recovers the original components directly.
func Quote(s string) string {
	if !strings.ContainsAny(s, "\\\n") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 8)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// Unquote reverses Quote. Any other two-byte sequence starting with a
// backslash is passed through unchanged and reported to log, matching
// the original implementation's tolerant-but-noisy handling of
// unrecognized escapes (spec §4.1).
func Unquote(s string, log logging.Logger) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 >= len(s) {
			b.WriteByte(s[i])
			continue
		}
		switch s[i+1] {
		case 'n':
			b.WriteByte('\n')
			i++
		case '\\':
			b.WriteByte('\\')
			i++
		default:
			if log != nil {
				log.Warnf("unknown quoted sequence \\%c found", s[i+1])
			}
			b.WriteByte(s[i])
		}
	}
	return b.String()
}
