package session

import (
	"github.com/lazyfrosch/rdiff-backup/collate"
	"github.com/lazyfrosch/rdiff-backup/eacl"
	"github.com/lazyfrosch/rdiff-backup/flatlog"
	"github.com/lazyfrosch/rdiff-backup/logging"
	"github.com/lazyfrosch/rdiff-backup/record"
)

// JoinedIterator drives a metadata iterator and attaches the matching
// EA/ACL record (by path index) onto each FileMetadata as it is
// produced (spec §4.7 "at"). Metadata is authoritative: EA/ACL records
// are a sparse subset and are consumed only as their index catches up
// to the current metadata record.
//
// JoinedIterator satisfies collate.Sequence[*record.FileMetadata], so
// it can itself be fed straight into Patch Merge's collator.
type JoinedIterator struct {
	meta *flatlog.ObjectIterator[*record.FileMetadata]
	eas  *collate.Peeker[*eacl.ExtendedAttributes]
	acls *collate.Peeker[*eacl.ACL]
	log  logging.Logger

	cur *record.FileMetadata
	err error
}

func newJoinedIterator(
	meta *flatlog.ObjectIterator[*record.FileMetadata],
	eas *flatlog.ObjectIterator[*eacl.ExtendedAttributes],
	acls *flatlog.ObjectIterator[*eacl.ACL],
	log logging.Logger,
) *JoinedIterator {
	ji := &JoinedIterator{meta: meta, log: log}
	if eas != nil {
		ji.eas = collate.NewPeeker[*eacl.ExtendedAttributes](eas, (*eacl.ExtendedAttributes).Index)
	}
	if acls != nil {
		ji.acls = collate.NewPeeker[*eacl.ACL](acls, (*eacl.ACL).Index)
	}
	return ji
}

// Next advances to the next joined record.
func (ji *JoinedIterator) Next() bool {
	if !ji.meta.Next() {
		if err := ji.meta.Err(); err != nil {
			ji.err = err
		}
		return false
	}
	fm := ji.meta.Value()
	idx := fm.Index()

	if ji.eas != nil {
		for ji.eas.Has() && ji.eas.Index().Less(idx) {
			ji.log.Warnf("extended attributes record for %s has no matching metadata record, skipping", ji.eas.Index())
			ji.eas.Advance()
		}
		if ji.eas.Has() && ji.eas.Index().Equal(idx) {
			fm.EA = ji.eas.Value()
			ji.eas.Advance()
		}
		if err := ji.eas.Err(); err != nil {
			ji.err = err
			return false
		}
	}

	if ji.acls != nil {
		for ji.acls.Has() && ji.acls.Index().Less(idx) {
			ji.log.Warnf("access control list record for %s has no matching metadata record, skipping", ji.acls.Index())
			ji.acls.Advance()
		}
		if ji.acls.Has() && ji.acls.Index().Equal(idx) {
			fm.ACL = ji.acls.Value()
			ji.acls.Advance()
		}
		if err := ji.acls.Err(); err != nil {
			ji.err = err
			return false
		}
	}

	ji.cur = fm
	return true
}

// Value returns the current joined record.
func (ji *JoinedIterator) Value() *record.FileMetadata { return ji.cur }

// Err returns the first error encountered.
func (ji *JoinedIterator) Err() error { return ji.err }

// Close aborts iteration early, releasing the metadata stream. The EA
// and ACL streams are not closed here; each is closed only when its
// own iterator reaches the end of its log.
func (ji *JoinedIterator) Close() error {
	return ji.meta.Close()
}

var _ collate.Sequence[*record.FileMetadata] = (*JoinedIterator)(nil)
