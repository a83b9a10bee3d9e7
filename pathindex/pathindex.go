// Package pathindex implements the path-quoting and path-index rules of
// the wire format (spec §3 "Path index", §4.1 "Path Quoting", §6.1).
package pathindex

import (
	"strings"

	"github.com/lazyfrosch/rdiff-backup/logging"
)

// Index is an ordered sequence of path components. The empty sequence
// is the root and serializes as the literal token ".".
type Index []string

// Root is the empty path index.
var Root = Index(nil)

// String renders the index the way a human debugging a log would want
// to see it: components joined by "/", unquoted. Use Token for the
// wire form.
func (idx Index) String() string {
	if len(idx) == 0 {
		return "."
	}
	return strings.Join(idx, "/")
}

// Token returns the wire-format token for idx: the quoted join of its
// components on "/", or "." for the root (spec §3, §4.1).
func (idx Index) Token() string {
	if len(idx) == 0 {
		return "."
	}
	return Quote(strings.Join(idx, "/"))
}

// Less reports whether idx sorts before other under the lexicographic
// tuple order the store relies on for §3 invariant I2 (records are
// written in path-index order) and for the skip-to-index seek.
func (idx Index) Less(other Index) bool {
	n := len(idx)
	if len(other) < n {
		n = len(other)
	}
	for i := 0; i < n; i++ {
		if idx[i] != other[i] {
			return idx[i] < other[i]
		}
	}
	return len(idx) < len(other)
}

// Compare returns -1, 0 or 1 the way strings.Compare does.
func (idx Index) Compare(other Index) int {
	if idx.Less(other) {
		return -1
	}
	if other.Less(idx) {
		return 1
	}
	return 0
}

// HasPrefix reports whether idx starts with prefix, component by
// component. Used by iterate-starting-with (spec §4.4, P4).
func (idx Index) HasPrefix(prefix Index) bool {
	if len(prefix) > len(idx) {
		return false
	}
	for i, c := range prefix {
		if idx[i] != c {
			return false
		}
	}
	return true
}

// Equal reports component-wise equality.
func (idx Index) Equal(other Index) bool {
	if len(idx) != len(other) {
		return false
	}
	for i, c := range idx {
		if other[i] != c {
			return false
		}
	}
	return true
}

// Clone returns an independent copy of idx.
func (idx Index) Clone() Index {
	if idx == nil {
		return nil
	}
	out := make(Index, len(idx))
	copy(out, idx)
	return out
}

// ParseToken parses a wire-format path token (the value following
// "File " on a record's header line) back into an Index (spec §4.1
// "Filename-to-index").
func ParseToken(token string, log logging.Logger) Index {
	if token == "." {
		return Root
	}
	return Index(strings.Split(Unquote(token, log), "/"))
}
