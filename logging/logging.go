// Package logging defines the warning-sink interface the rest of this
// module calls into. The store never decides how or where a warning
// ends up; it only ever needs an object satisfying Logger.
package logging

import (
	"io"
	"log"
	"os"

	"golang.org/x/sys/unix"
)

// Logger receives non-fatal warnings: a skipped malformed record, a
// missing EA/ACL sidecar, an unknown quoted-escape sequence. Nothing in
// this module treats a Warnf call as an error path.
type Logger interface {
	Warnf(format string, args ...interface{})
}

// stdLogger is the ambient default: plain log.Printf, the same idiom
// used throughout the teacher repo's own command-line tools. It tags
// lines with "warning:" when writing to a pipe, and leaves them
// untagged on an interactive terminal where a human is already reading
// a stream of progress messages.
type stdLogger struct {
	l      *log.Logger
	prefix string
}

// Default returns the ambient Logger, writing to w (typically
// os.Stderr).
func Default(w io.Writer) Logger {
	prefix := "warning: "
	if f, ok := w.(*os.File); ok && isTerminal(f) {
		prefix = ""
	}
	return &stdLogger{
		l:      log.New(w, "", log.LstdFlags),
		prefix: prefix,
	}
}

// isTerminal reports whether f is an interactive terminal, the same
// TCGETS ioctl probe the teacher repo uses to decide whether a human is
// already watching a live status stream.
func isTerminal(f *os.File) bool {
	_, err := unix.IoctlGetTermios(int(f.Fd()), unix.TCGETS)
	return err == nil
}

func (s *stdLogger) Warnf(format string, args ...interface{}) {
	s.l.Printf(s.prefix+format, args...)
}

// Discard silently drops every warning. Useful for tests that
// deliberately exercise the tolerant-parsing paths.
func Discard() Logger { return discard{} }

type discard struct{}

func (discard) Warnf(string, ...interface{}) {}
