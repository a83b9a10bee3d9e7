package session

import (
	"testing"

	"github.com/lazyfrosch/rdiff-backup/eacl"
	"github.com/lazyfrosch/rdiff-backup/logging"
	"github.com/lazyfrosch/rdiff-backup/pathindex"
	"github.com/lazyfrosch/rdiff-backup/record"
)

func writeSnapshot(t *testing.T, dir, time string, withSidecars bool) {
	t.Helper()
	m, err := New(Options{Dir: dir, EAsActive: withSidecars, ACLsActive: withSidecars}, logging.Discard())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	w, err := m.Writer("snapshot", time)
	if err != nil {
		t.Fatalf("Writer: %v", err)
	}
	files := []*record.FileMetadata{
		{Path: pathindex.Index{"a.txt"}, Type: record.Reg, Permissions: 0644},
		{
			Path: pathindex.Index{"b.txt"}, Type: record.Reg, Permissions: 0644,
			EA: &eacl.ExtendedAttributes{Path: pathindex.Index{"b.txt"}, Attrs: map[string][]byte{"user.x": []byte("1")}},
		},
	}
	for _, fm := range files {
		if err := w.Write(fm); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestManagerMetaAtAndAt(t *testing.T) {
	dir := t.TempDir()
	writeSnapshot(t, dir, "100", true)

	m, err := New(Options{Dir: dir, EAsActive: true, ACLsActive: true}, logging.Discard())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	it, ok, err := m.MetaAt("100", nil)
	if err != nil || !ok {
		t.Fatalf("MetaAt: ok=%v err=%v", ok, err)
	}
	var n int
	for it.Next() {
		n++
	}
	if n != 2 {
		t.Errorf("metadata count = %d, want 2", n)
	}

	joined, ok, err := m.At("100", nil)
	if err != nil || !ok {
		t.Fatalf("At: ok=%v err=%v", ok, err)
	}
	var sawEA bool
	for joined.Next() {
		fm := joined.Value()
		if fm.EA != nil {
			sawEA = true
		}
	}
	if err := joined.Err(); err != nil {
		t.Fatalf("iteration error: %v", err)
	}
	if !sawEA {
		t.Errorf("expected the joined iterator to attach the EA record to b.txt")
	}
}

func TestManagerAtMissingMetadata(t *testing.T) {
	dir := t.TempDir()
	m, err := New(Options{Dir: dir}, logging.Discard())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, ok, err := m.At("nope", nil)
	if err != nil {
		t.Fatalf("At: %v", err)
	}
	if ok {
		t.Fatalf("expected ok=false for a nonexistent snapshot")
	}
}

func TestManagerAtMissingSidecarSubstitutesEmpty(t *testing.T) {
	dir := t.TempDir()
	// Write a snapshot with EAs disabled, then reopen the manager
	// requesting EAs: the EA log is missing for this timestamp.
	writeSnapshot(t, dir, "200", false)

	m, err := New(Options{Dir: dir, EAsActive: true}, logging.Discard())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	joined, ok, err := m.At("200", nil)
	if err != nil || !ok {
		t.Fatalf("At: ok=%v err=%v", ok, err)
	}
	var n int
	for joined.Next() {
		n++
	}
	if err := joined.Err(); err != nil {
		t.Fatalf("iteration error: %v", err)
	}
	if n != 2 {
		t.Errorf("metadata should still flow through with a missing EA sidecar, got %d records", n)
	}
}

func TestWriterRefusesExistingSnapshot(t *testing.T) {
	dir := t.TempDir()
	writeSnapshot(t, dir, "300", false)

	m, err := New(Options{Dir: dir}, logging.Discard())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := m.Writer("snapshot", "300"); err == nil {
		t.Fatalf("expected Writer to refuse an existing snapshot")
	}
}
