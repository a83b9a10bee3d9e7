package eacl

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/lazyfrosch/rdiff-backup/logging"
	"github.com/lazyfrosch/rdiff-backup/pathindex"
)

func TestEARoundTrip(t *testing.T) {
	ea := &ExtendedAttributes{
		Path:  pathindex.Index{"some", "file.txt"},
		Attrs: map[string][]byte{"user.comment": []byte("hello"), "user.empty": {}},
	}
	s := EncodeEA(ea)
	got, err := DecodeEA(s, logging.Discard())
	if err != nil {
		t.Fatalf("DecodeEA(%q): %v", s, err)
	}
	if diff := cmp.Diff(ea, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestEAEmpty(t *testing.T) {
	var nilEA *ExtendedAttributes
	if !nilEA.Empty() {
		t.Errorf("nil EA should be Empty")
	}
	ea := &ExtendedAttributes{Path: pathindex.Index{"x"}, Attrs: map[string][]byte{}}
	if !ea.Empty() {
		t.Errorf("EA with no attrs should be Empty")
	}
	ea.Attrs["user.x"] = []byte("1")
	if ea.Empty() {
		t.Errorf("EA with an attr should not be Empty")
	}
}

func TestACLRoundTrip(t *testing.T) {
	a := &ACL{
		Path: pathindex.Index{"shared.txt"},
		Entries: []ACLEntry{
			{Tag: "user", Bits: 6},
			{Tag: "group", Bits: 4},
			{Tag: "other", Bits: 0},
			{Tag: "user:alice", Bits: 7},
		},
	}
	s := EncodeACL(a)
	got, err := DecodeACL(s, logging.Discard())
	if err != nil {
		t.Fatalf("DecodeACL(%q): %v", s, err)
	}
	if diff := cmp.Diff(a, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestACLIsBasic(t *testing.T) {
	var nilACL *ACL
	if !nilACL.IsBasic(0644) {
		t.Errorf("nil ACL should be basic")
	}
	basic := &ACL{Entries: []ACLEntry{
		{Tag: "user", Bits: 6},
		{Tag: "group", Bits: 4},
		{Tag: "other", Bits: 4},
	}}
	if !basic.IsBasic(0644) {
		t.Errorf("ACL matching the mode bits exactly should be basic")
	}
	extended := &ACL{Entries: append(append([]ACLEntry{}, basic.Entries...), ACLEntry{Tag: "user:alice", Bits: 6})}
	if extended.IsBasic(0644) {
		t.Errorf("ACL with an extra named entry should not be basic")
	}
}
