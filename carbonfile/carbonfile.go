// Package carbonfile implements the legacy Mac OS "Carbon" file-fork
// metadata codec (spec §4.2).
package carbonfile

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/xerrors"
)

// CarbonFile holds the four fields the original format preserves.
// Creator and Type are four-byte OSType values; Location is a pair of
// (unspecified-unit) coordinates; Flags is a Finder flags bitfield.
type CarbonFile struct {
	Creator  [4]byte
	Type     [4]byte
	Location [2]int64
	Flags    int64
}

// Encode renders cf as "creator:<hex>|type:<hex>|location:<a>,<b>|flags:<n>"
// (spec §4.2).
func Encode(cf CarbonFile) string {
	return fmt.Sprintf("creator:%s|type:%s|location:%d,%d|flags:%d",
		hex.EncodeToString(cf.Creator[:]),
		hex.EncodeToString(cf.Type[:]),
		cf.Location[0], cf.Location[1],
		cf.Flags)
}

// Decode parses the string produced by Encode. Fields may appear in any
// order; unknown keys are ignored so old and new producers stay
// interoperable (spec §4.2).
func Decode(s string) (CarbonFile, error) {
	var cf CarbonFile
	for _, part := range strings.Split(s, "|") {
		key, value, ok := strings.Cut(part, ":")
		if !ok {
			return CarbonFile{}, xerrors.Errorf("carbonfile: malformed component %q", part)
		}
		switch key {
		case "creator":
			b, err := hex.DecodeString(value)
			if err != nil || len(b) != 4 {
				return CarbonFile{}, xerrors.Errorf("carbonfile: bad creator %q: %w", value, err)
			}
			copy(cf.Creator[:], b)
		case "type":
			b, err := hex.DecodeString(value)
			if err != nil || len(b) != 4 {
				return CarbonFile{}, xerrors.Errorf("carbonfile: bad type %q: %w", value, err)
			}
			copy(cf.Type[:], b)
		case "location":
			a, b, ok := strings.Cut(value, ",")
			if !ok {
				return CarbonFile{}, xerrors.Errorf("carbonfile: bad location %q", value)
			}
			x, err := strconv.ParseInt(a, 10, 64)
			if err != nil {
				return CarbonFile{}, xerrors.Errorf("carbonfile: bad location %q: %w", value, err)
			}
			y, err := strconv.ParseInt(b, 10, 64)
			if err != nil {
				return CarbonFile{}, xerrors.Errorf("carbonfile: bad location %q: %w", value, err)
			}
			cf.Location = [2]int64{x, y}
		case "flags":
			n, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return CarbonFile{}, xerrors.Errorf("carbonfile: bad flags %q: %w", value, err)
			}
			cf.Flags = n
		}
		// unrecognized keys fall through ignored, per spec §4.2
	}
	return cf, nil
}
