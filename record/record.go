// Package record implements the file-metadata record codec (spec §3,
// §4.3, §6.1): the wire format for a single "File ..." block and the
// FileMetadata value it round-trips.
package record

import (
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
	"golang.org/x/xerrors"

	"github.com/lazyfrosch/rdiff-backup/carbonfile"
	"github.com/lazyfrosch/rdiff-backup/eacl"
	"github.com/lazyfrosch/rdiff-backup/logging"
	"github.com/lazyfrosch/rdiff-backup/pathindex"
)

// Type is the file-type tag carried by every record (spec §3).
type Type string

const (
	Reg  Type = "reg"
	Dir  Type = "dir"
	Sym  Type = "sym"
	Dev  Type = "dev"
	Fifo Type = "fifo"
	Sock Type = "sock"
	// NoneType marks a tombstone: the file does not exist at this
	// snapshot (spec §3 I4, GLOSSARY "Tombstone").
	NoneType Type = "None"
)

// DeviceNum is the major/minor pair carried by a "dev" record (spec §3,
// §6.1: "DeviceNum's value is three space-separated tokens
// 'b|c major minor'").
type DeviceNum struct {
	// Char is 'b' for a block device, 'c' for a character device.
	Char  byte
	Major uint32
	Minor uint32
}

// Rdev packs n into a raw device number the way the kernel would hand
// one to stat(2), using the same split the teacher repo derives a
// major/minor pair from (cmd/distri/pack.go: unix.Major/unix.Minor).
func (n DeviceNum) Rdev() uint64 {
	return unix.Mkdev(n.Major, n.Minor)
}

// DeviceNumFromRdev splits a raw device number into major/minor using
// unix.Major/unix.Minor, the inverse of Rdev.
func DeviceNumFromRdev(isBlock bool, rdev uint64) DeviceNum {
	c := byte('c')
	if isBlock {
		c = 'b'
	}
	return DeviceNum{Char: c, Major: unix.Major(rdev), Minor: unix.Minor(rdev)}
}

// OptionalBytes models a field that may be entirely absent from the
// record (Valid == false), or present carrying either real data or the
// explicit "None" (present-but-empty) sentinel (Valid == true, Value
// possibly of length zero). Used for ResourceFork (spec §3, P1).
type OptionalBytes struct {
	Valid bool
	Value []byte
}

// OptionalCarbonFile is ResourceFork's counterpart for CarbonFile data.
type OptionalCarbonFile struct {
	Valid bool
	Value *carbonfile.CarbonFile
}

// FileMetadata is the decoded form of one "File ..." record (spec §3).
// EA and ACL are not part of the wire record itself; session.Manager
// attaches them when joining sidecar logs (SPEC_FULL.md §5).
type FileMetadata struct {
	Path pathindex.Index
	Type Type

	Size         int64
	ResourceFork OptionalBytes
	CarbonFile   OptionalCarbonFile

	NumHardLinks int64
	Inode        int64
	DeviceLoc    int64

	SHA1Digest string

	SymData string

	DeviceNum DeviceNum

	ModTime int64

	Uid   int64
	Uname string
	Gid   int64
	Gname string

	Permissions uint32

	EA  *eacl.ExtendedAttributes
	ACL *eacl.ACL
}

// Index implements the interface collate and flatlog need to sort and
// compare records by path.
func (fm *FileMetadata) Index() pathindex.Index { return fm.Path }

// hasModTime reports whether type t carries a ModTime field (spec §3:
// "all except sym, dev").
func hasModTime(t Type) bool {
	return t != Sym && t != Dev && t != NoneType
}

// Encode renders fm as the lines of a single record, in the fixed field
// order of spec §4.3 — which for Uid/Uname/Gid/Gname follows the
// original implementation's interleaved order (metadata.py lines
// 143-148) rather than the table's grouped listing.
func Encode(fm *FileMetadata) string {
	var b strings.Builder
	b.WriteString("File ")
	b.WriteString(fm.Path.Token())
	b.WriteByte('\n')

	fmt.Fprintf(&b, "  Type %s\n", fm.Type)
	if fm.Type == NoneType {
		return b.String()
	}

	switch fm.Type {
	case Reg:
		fmt.Fprintf(&b, "  Size %d\n", fm.Size)
		if fm.ResourceFork.Valid {
			if len(fm.ResourceFork.Value) == 0 {
				b.WriteString("  ResourceFork None\n")
			} else {
				fmt.Fprintf(&b, "  ResourceFork %x\n", fm.ResourceFork.Value)
			}
		}
		if fm.CarbonFile.Valid {
			if fm.CarbonFile.Value == nil {
				b.WriteString("  CarbonFile None\n")
			} else {
				fmt.Fprintf(&b, "  CarbonFile %s\n", carbonfile.Encode(*fm.CarbonFile.Value))
			}
		}
		if fm.NumHardLinks > 1 {
			fmt.Fprintf(&b, "  NumHardLinks %d\n", fm.NumHardLinks)
			fmt.Fprintf(&b, "  Inode %d\n", fm.Inode)
			fmt.Fprintf(&b, "  DeviceLoc %d\n", fm.DeviceLoc)
		}
		if fm.SHA1Digest != "" {
			fmt.Fprintf(&b, "  SHA1Digest %s\n", fm.SHA1Digest)
		}
	case Dir, Sock, Fifo:
		// no type-specific fields
	case Sym:
		fmt.Fprintf(&b, "  SymData %s\n", pathindex.Quote(fm.SymData))
	case Dev:
		fmt.Fprintf(&b, "  DeviceNum %c %d %d\n", fm.DeviceNum.Char, fm.DeviceNum.Major, fm.DeviceNum.Minor)
	}

	if hasModTime(fm.Type) {
		fmt.Fprintf(&b, "  ModTime %d\n", fm.ModTime)
	}

	fmt.Fprintf(&b, "  Uid %d\n", fm.Uid)
	if fm.Uname == "" {
		b.WriteString("  Uname :\n")
	} else {
		fmt.Fprintf(&b, "  Uname %s\n", fm.Uname)
	}
	fmt.Fprintf(&b, "  Gid %d\n", fm.Gid)
	if fm.Gname == "" {
		b.WriteString("  Gname :\n")
	} else {
		fmt.Fprintf(&b, "  Gname %s\n", fm.Gname)
	}
	fmt.Fprintf(&b, "  Permissions %d\n", fm.Permissions)
	return b.String()
}

// ErrParsing is the sentinel wrapped by every decode failure (spec §7
// ParsingError). Callers use errors.Is(err, ErrParsing).
var ErrParsing = xerrors.New("record: parsing error")

// fieldLine matches one "  Name value" line, and also the header's
// "File <token>" line since it has zero leading spaces and a bare
// identifier field name — exactly as in the original implementation's
// single shared regexp (metadata.py line 151).
var fieldLine = regexp.MustCompile(`(?m)^ *([A-Za-z0-9]+) (.+)$`)

// Decode parses a single record (as produced by the Flat Extractor, one
// "File ..." block) into a FileMetadata. Unknown field names are a
// ParsingError (spec §4.3); legacy "None" spellings for Uname/Gname are
// tolerated on read (SPEC_FULL.md §4) though Encode never emits them.
func Decode(s string, log logging.Logger) (*FileMetadata, error) {
	fm := &FileMetadata{}
	sawFile, sawType := false, false

	for _, m := range fieldLine.FindAllStringSubmatch(s, -1) {
		field, data := m[1], m[2]
		switch field {
		case "File":
			fm.Path = pathindex.ParseToken(data, log)
			sawFile = true
		case "Type":
			if data == "None" {
				fm.Type = NoneType
			} else {
				fm.Type = Type(data)
			}
			sawType = true
		case "Size":
			n, err := strconv.ParseInt(data, 10, 64)
			if err != nil {
				return nil, xerrors.Errorf("%w: bad Size %q: %v", ErrParsing, data, err)
			}
			fm.Size = n
		case "ResourceFork":
			if data == "None" {
				fm.ResourceFork = OptionalBytes{Valid: true}
			} else {
				b, err := hex.DecodeString(data)
				if err != nil {
					return nil, xerrors.Errorf("%w: bad ResourceFork: %v", ErrParsing, err)
				}
				fm.ResourceFork = OptionalBytes{Valid: true, Value: b}
			}
		case "CarbonFile":
			if data == "None" {
				fm.CarbonFile = OptionalCarbonFile{Valid: true}
			} else {
				cf, err := carbonfile.Decode(data)
				if err != nil {
					return nil, xerrors.Errorf("%w: bad CarbonFile: %v", ErrParsing, err)
				}
				fm.CarbonFile = OptionalCarbonFile{Valid: true, Value: &cf}
			}
		case "SHA1Digest":
			fm.SHA1Digest = data
		case "NumHardLinks":
			n, err := strconv.ParseInt(data, 10, 64)
			if err != nil {
				return nil, xerrors.Errorf("%w: bad NumHardLinks %q: %v", ErrParsing, data, err)
			}
			fm.NumHardLinks = n
		case "Inode":
			n, err := strconv.ParseInt(data, 10, 64)
			if err != nil {
				return nil, xerrors.Errorf("%w: bad Inode %q: %v", ErrParsing, data, err)
			}
			fm.Inode = n
		case "DeviceLoc":
			n, err := strconv.ParseInt(data, 10, 64)
			if err != nil {
				return nil, xerrors.Errorf("%w: bad DeviceLoc %q: %v", ErrParsing, data, err)
			}
			fm.DeviceLoc = n
		case "SymData":
			fm.SymData = pathindex.Unquote(data, log)
		case "DeviceNum":
			parts := strings.SplitN(data, " ", 3)
			if len(parts) != 3 || len(parts[0]) != 1 {
				return nil, xerrors.Errorf("%w: bad DeviceNum %q", ErrParsing, data)
			}
			major, err := strconv.ParseUint(parts[1], 10, 32)
			if err != nil {
				return nil, xerrors.Errorf("%w: bad DeviceNum major %q: %v", ErrParsing, parts[1], err)
			}
			minor, err := strconv.ParseUint(parts[2], 10, 32)
			if err != nil {
				return nil, xerrors.Errorf("%w: bad DeviceNum minor %q: %v", ErrParsing, parts[2], err)
			}
			fm.DeviceNum = DeviceNum{Char: parts[0][0], Major: uint32(major), Minor: uint32(minor)}
		case "ModTime":
			n, err := strconv.ParseInt(data, 10, 64)
			if err != nil {
				return nil, xerrors.Errorf("%w: bad ModTime %q: %v", ErrParsing, data, err)
			}
			fm.ModTime = n
		case "Uid":
			n, err := strconv.ParseInt(data, 10, 64)
			if err != nil {
				return nil, xerrors.Errorf("%w: bad Uid %q: %v", ErrParsing, data, err)
			}
			fm.Uid = n
		case "Gid":
			n, err := strconv.ParseInt(data, 10, 64)
			if err != nil {
				return nil, xerrors.Errorf("%w: bad Gid %q: %v", ErrParsing, data, err)
			}
			fm.Gid = n
		case "Uname":
			if data == ":" || data == "None" {
				fm.Uname = ""
			} else {
				fm.Uname = data
			}
		case "Gname":
			if data == ":" || data == "None" {
				fm.Gname = ""
			} else {
				fm.Gname = data
			}
		case "Permissions":
			n, err := strconv.ParseUint(data, 10, 32)
			if err != nil {
				return nil, xerrors.Errorf("%w: bad Permissions %q: %v", ErrParsing, data, err)
			}
			fm.Permissions = uint32(n)
		default:
			return nil, xerrors.Errorf("%w: unknown field %q", ErrParsing, field)
		}
	}

	if !sawFile {
		return nil, xerrors.Errorf("%w: record missing File line", ErrParsing)
	}
	if !sawType {
		return nil, xerrors.Errorf("%w: record missing Type line", ErrParsing)
	}
	return fm, nil
}

// BoundaryIndex extracts the path index from the quoted filename token
// captured by flatlog's record-boundary regexp, for the skip-to-index
// seek (spec §4.4).
func BoundaryIndex(token string, log logging.Logger) pathindex.Index {
	return pathindex.ParseToken(token, log)
}
