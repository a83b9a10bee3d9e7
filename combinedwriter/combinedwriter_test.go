package combinedwriter

import (
	"path/filepath"
	"testing"

	"github.com/lazyfrosch/rdiff-backup/eacl"
	"github.com/lazyfrosch/rdiff-backup/flatlog"
	"github.com/lazyfrosch/rdiff-backup/logging"
	"github.com/lazyfrosch/rdiff-backup/logs"
	"github.com/lazyfrosch/rdiff-backup/pathindex"
	"github.com/lazyfrosch/rdiff-backup/record"
)

func openTriple(t *testing.T, dir string) (*flatlog.Log[*record.FileMetadata], *flatlog.Log[*eacl.ExtendedAttributes], *flatlog.Log[*eacl.ACL]) {
	t.Helper()
	meta, err := flatlog.OpenWrite(filepath.Join(dir, "mirror_metadata.1.snapshot"), false, logs.Metadata, logging.Discard())
	if err != nil {
		t.Fatalf("OpenWrite meta: %v", err)
	}
	eas, err := flatlog.OpenWrite(filepath.Join(dir, "extended_attributes.1.snapshot"), false, logs.ExtendedAttributes, logging.Discard())
	if err != nil {
		t.Fatalf("OpenWrite eas: %v", err)
	}
	acls, err := flatlog.OpenWrite(filepath.Join(dir, "access_control_lists.1.snapshot"), false, logs.ACL, logging.Discard())
	if err != nil {
		t.Fatalf("OpenWrite acls: %v", err)
	}
	return meta, eas, acls
}

func TestWriteSkipsEmptyEAAndBasicACL(t *testing.T) {
	dir := t.TempDir()
	meta, eas, acls := openTriple(t, dir)
	w := New(meta, eas, acls)

	plain := &record.FileMetadata{
		Path:        pathindex.Index{"plain.txt"},
		Type:        record.Reg,
		Permissions: 0644,
	}
	withEA := &record.FileMetadata{
		Path:        pathindex.Index{"tagged.txt"},
		Type:        record.Reg,
		Permissions: 0644,
		EA:          &eacl.ExtendedAttributes{Path: pathindex.Index{"tagged.txt"}, Attrs: map[string][]byte{"user.tag": []byte("x")}},
	}
	withACL := &record.FileMetadata{
		Path:        pathindex.Index{"shared.txt"},
		Type:        record.Reg,
		Permissions: 0640,
		ACL: &eacl.ACL{
			Path: pathindex.Index{"shared.txt"},
			Entries: []eacl.ACLEntry{
				{Tag: "user", Bits: 6},
				{Tag: "group", Bits: 4},
				{Tag: "other", Bits: 0},
				{Tag: "user:alice", Bits: 6},
			},
		},
	}

	for _, fm := range []*record.FileMetadata{plain, withEA, withACL} {
		if err := w.Write(fm); err != nil {
			t.Fatalf("Write(%v): %v", fm.Path, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	metaR, err := flatlog.OpenRead(filepath.Join(dir, "mirror_metadata.1.snapshot"), false, logs.Metadata, logging.Discard())
	if err != nil {
		t.Fatalf("OpenRead meta: %v", err)
	}
	defer metaR.Close()
	mit, err := metaR.Objects(nil)
	if err != nil {
		t.Fatalf("Objects: %v", err)
	}
	var metaCount int
	for mit.Next() {
		metaCount++
	}
	if metaCount != 3 {
		t.Errorf("metadata records = %d, want 3", metaCount)
	}

	easR, err := flatlog.OpenRead(filepath.Join(dir, "extended_attributes.1.snapshot"), false, logs.ExtendedAttributes, logging.Discard())
	if err != nil {
		t.Fatalf("OpenRead eas: %v", err)
	}
	defer easR.Close()
	eit, err := easR.Objects(nil)
	if err != nil {
		t.Fatalf("Objects: %v", err)
	}
	var eaCount int
	for eit.Next() {
		eaCount++
	}
	if eaCount != 1 {
		t.Errorf("EA records = %d, want 1 (only the non-empty EA set should be written)", eaCount)
	}

	aclR, err := flatlog.OpenRead(filepath.Join(dir, "access_control_lists.1.snapshot"), false, logs.ACL, logging.Discard())
	if err != nil {
		t.Fatalf("OpenRead acls: %v", err)
	}
	defer aclR.Close()
	ait, err := aclR.Objects(nil)
	if err != nil {
		t.Fatalf("Objects: %v", err)
	}
	var aclCount int
	for ait.Next() {
		aclCount++
	}
	if aclCount != 1 {
		t.Errorf("ACL records = %d, want 1 (only the non-basic ACL should be written)", aclCount)
	}
}
