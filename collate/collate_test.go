package collate

import (
	"testing"

	"github.com/lazyfrosch/rdiff-backup/pathindex"
)

// sliceSeq adapts a pre-sorted slice to the Sequence interface for
// tests, mirroring how a flatlog.ObjectIterator would behave.
type sliceSeq struct {
	items []string
	i     int
}

func (s *sliceSeq) Next() bool {
	if s.i >= len(s.items) {
		return false
	}
	s.i++
	return true
}
func (s *sliceSeq) Value() string { return s.items[s.i-1] }
func (s *sliceSeq) Err() error    { return nil }

func indexOf(s string) pathindex.Index { return pathindex.Index{s} }

func TestCollatorThreeWay(t *testing.T) {
	a := &sliceSeq{items: []string{"a", "c", "d"}}
	b := &sliceSeq{items: []string{"b", "c"}}
	c := &sliceSeq{items: []string{"a", "d", "e"}}

	col := NewCollator([]Sequence[string]{a, b, c}, indexOf)

	type want struct {
		idx string
		a, b, c bool
	}
	wants := []want{
		{"a", true, false, true},
		{"b", false, true, false},
		{"c", true, true, false},
		{"d", true, false, true},
		{"e", false, false, true},
	}

	var got []want
	for col.Next() {
		tuple := col.Value()
		got = append(got, want{idx: col.Index().String(), a: tuple[0].Valid, b: tuple[1].Valid, c: tuple[2].Valid})
	}
	if err := col.Err(); err != nil {
		t.Fatalf("Err: %v", err)
	}
	if len(got) != len(wants) {
		t.Fatalf("got %d tuples, want %d: %+v", len(got), len(wants), got)
	}
	for i, w := range wants {
		if got[i] != w {
			t.Errorf("tuple %d = %+v, want %+v", i, got[i], w)
		}
	}
}

func TestCollatorEmptyInputs(t *testing.T) {
	col := NewCollator([]Sequence[string]{&sliceSeq{}, &sliceSeq{}}, indexOf)
	if col.Next() {
		t.Fatalf("expected no tuples from empty inputs")
	}
}

func TestCollate2(t *testing.T) {
	cur := &sliceSeq{items: []string{"a", "b", "d"}}
	old := &sliceSeq{items: []string{"b", "c"}}

	col := Collate2[string](cur, old, indexOf)

	type want struct {
		idx        string
		curOK, oldOK bool
	}
	wants := []want{
		{"a", true, false},
		{"b", true, true},
		{"c", false, true},
		{"d", true, false},
	}

	var got []want
	for col.Next() {
		pair := col.Value()
		got = append(got, want{idx: col.Index().String(), curOK: pair.A.Valid, oldOK: pair.B.Valid})
	}
	if err := col.Err(); err != nil {
		t.Fatalf("Err: %v", err)
	}
	if len(got) != len(wants) {
		t.Fatalf("got %d pairs, want %d: %+v", len(got), len(wants), got)
	}
	for i, w := range wants {
		if got[i] != w {
			t.Errorf("pair %d = %+v, want %+v", i, got[i], w)
		}
	}
}
