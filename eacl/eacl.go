// Package eacl implements the two metadata-sidecar record types that
// join onto a FileMetadata by path index: extended attributes and
// access-control lists (spec §3 "EA/ACL", §4.6, §4.7). Their wire
// format is not specified in spec.md and was not part of the retrieved
// original source (SPEC_FULL.md §3/§5); both follow the same
// line-based "File <path>" convention as the record package so a
// single flatlog.Codec shape serves all three logs.
package eacl

import (
	"encoding/hex"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/xerrors"

	"github.com/lazyfrosch/rdiff-backup/logging"
	"github.com/lazyfrosch/rdiff-backup/pathindex"
)

// ExtendedAttributes is the set of extended attributes recorded for
// one path.
type ExtendedAttributes struct {
	Path  pathindex.Index
	Attrs map[string][]byte
}

func (ea *ExtendedAttributes) Index() pathindex.Index { return ea.Path }

// Empty reports whether ea carries no attributes at all — the
// condition combinedwriter checks before writing an EA record (spec
// §4.6).
func (ea *ExtendedAttributes) Empty() bool {
	return ea == nil || len(ea.Attrs) == 0
}

var eaFieldLine = regexp.MustCompile(`(?m)^ *([A-Za-z0-9._-]+) (.*)$`)

// EncodeEA renders an "File <path>\n  <name> <hex>\n..." record, names
// sorted for determinism.
func EncodeEA(ea *ExtendedAttributes) string {
	var b strings.Builder
	b.WriteString("File ")
	b.WriteString(ea.Path.Token())
	b.WriteByte('\n')
	names := make([]string, 0, len(ea.Attrs))
	for name := range ea.Attrs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&b, "  %s %x\n", name, ea.Attrs[name])
	}
	return b.String()
}

// DecodeEA parses a record produced by EncodeEA.
func DecodeEA(s string, log logging.Logger) (*ExtendedAttributes, error) {
	ea := &ExtendedAttributes{Attrs: map[string][]byte{}}
	sawFile := false
	for _, m := range eaFieldLine.FindAllStringSubmatch(s, -1) {
		name, data := m[1], m[2]
		if name == "File" {
			ea.Path = pathindex.ParseToken(data, log)
			sawFile = true
			continue
		}
		b, err := hex.DecodeString(data)
		if err != nil {
			return nil, xerrors.Errorf("eacl: bad attribute %q: %w", name, err)
		}
		ea.Attrs[name] = b
	}
	if !sawFile {
		return nil, xerrors.Errorf("eacl: EA record missing File line")
	}
	return ea, nil
}

// ACLEntry is one POSIX-style ACL entry: a tag ("user", "group",
// "mask", "other" or "user:<name>"/"group:<name>") plus its permission
// bits (subset of 4/2/1 = r/w/x).
type ACLEntry struct {
	Tag  string
	Bits uint8
}

// ACL is the access-control list recorded for one path.
type ACL struct {
	Path    pathindex.Index
	Entries []ACLEntry
}

func (a *ACL) Index() pathindex.Index { return a.Path }

// IsBasic reports whether a is fully expressible by the three standard
// POSIX permission classes already carried in the owning record's mode
// bits — the condition combinedwriter checks before writing an ACL
// record at all (spec §4.6). mode's low 9 bits are rwxrwxrwx for
// owner/group/other.
func (a *ACL) IsBasic(mode uint32) bool {
	if a == nil || len(a.Entries) == 0 {
		return true
	}
	want := map[string]uint8{
		"user":  uint8(mode>>6) & 7,
		"group": uint8(mode>>3) & 7,
		"other": uint8(mode) & 7,
	}
	if len(a.Entries) != len(want) {
		return false
	}
	for _, e := range a.Entries {
		bits, ok := want[e.Tag]
		if !ok || bits != e.Bits {
			return false
		}
	}
	return true
}

func formatEntry(e ACLEntry) string {
	return fmt.Sprintf("%s:%d", e.Tag, e.Bits)
}

func parseEntry(s string) (ACLEntry, error) {
	tag, bitsStr, ok := strings.Cut(s, ":")
	if !ok {
		return ACLEntry{}, xerrors.Errorf("eacl: malformed ACL entry %q", s)
	}
	// tag may itself contain ":" (user:alice), so the permission bits
	// are always the last field.
	idx := strings.LastIndex(s, ":")
	tag = s[:idx]
	bitsStr = s[idx+1:]
	var bits uint8
	if _, err := fmt.Sscanf(bitsStr, "%d", &bits); err != nil {
		return ACLEntry{}, xerrors.Errorf("eacl: bad ACL bits in %q: %w", s, err)
	}
	return ACLEntry{Tag: tag, Bits: bits}, nil
}

var aclFieldLine = regexp.MustCompile(`(?m)^ *([A-Za-z0-9]+) (.+)$`)

// EncodeACL renders "File <path>\n  ACL <entry>,<entry>,...\n".
func EncodeACL(a *ACL) string {
	var b strings.Builder
	b.WriteString("File ")
	b.WriteString(a.Path.Token())
	b.WriteByte('\n')
	parts := make([]string, len(a.Entries))
	for i, e := range a.Entries {
		parts[i] = formatEntry(e)
	}
	fmt.Fprintf(&b, "  ACL %s\n", strings.Join(parts, ","))
	return b.String()
}

// DecodeACL parses a record produced by EncodeACL.
func DecodeACL(s string, log logging.Logger) (*ACL, error) {
	a := &ACL{}
	sawFile := false
	for _, m := range aclFieldLine.FindAllStringSubmatch(s, -1) {
		field, data := m[1], m[2]
		switch field {
		case "File":
			a.Path = pathindex.ParseToken(data, log)
			sawFile = true
		case "ACL":
			if data == "" {
				continue
			}
			for _, part := range strings.Split(data, ",") {
				e, err := parseEntry(part)
				if err != nil {
					return nil, err
				}
				a.Entries = append(a.Entries, e)
			}
		default:
			return nil, xerrors.Errorf("eacl: unknown ACL field %q", field)
		}
	}
	if !sawFile {
		return nil, xerrors.Errorf("eacl: ACL record missing File line")
	}
	return a, nil
}
