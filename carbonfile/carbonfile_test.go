package carbonfile

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRoundTrip(t *testing.T) {
	cf := CarbonFile{
		Creator:  [4]byte{'R', 'e', 's', 'E'},
		Type:     [4]byte{'T', 'E', 'X', 'T'},
		Location: [2]int64{10, -20},
		Flags:    256,
	}
	s := Encode(cf)
	got, err := Decode(s)
	if err != nil {
		t.Fatalf("Decode(%q) error: %v", s, err)
	}
	if diff := cmp.Diff(cf, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeOutOfOrderAndUnknownKeys(t *testing.T) {
	s := "flags:1|unknownkey:xyz|type:54455854|creator:52657345|location:3,4"
	got, err := Decode(s)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	want := CarbonFile{
		Creator:  [4]byte{'R', 'e', 's', 'E'},
		Type:     [4]byte{'T', 'E', 'X', 'T'},
		Location: [2]int64{3, 4},
		Flags:    1,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}
