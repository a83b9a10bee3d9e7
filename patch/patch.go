// Package patch implements Patch Merge (spec §4.8): given a
// reverse-chronological list of metadata iterators — a snapshot plus
// the diffs between it and the target time — it reconstructs the
// effective live state at the target time.
package patch

import (
	"golang.org/x/xerrors"

	"github.com/lazyfrosch/rdiff-backup/collate"
	"github.com/lazyfrosch/rdiff-backup/record"
)

// ErrNoRecord is raised if a collated tuple has every slot absent,
// which the producer must never construct (spec §4.8: "the producer is
// in error; this must never happen by construction").
var ErrNoRecord = xerrors.New("patch: collated tuple has no record in any input")

// Merger walks a collate.Collator over newest-first metadata sequences
// and yields, for each path index, the single effective record (spec
// §4.8).
type Merger struct {
	col *collate.Collator[*record.FileMetadata]
	cur *record.FileMetadata
	err error
}

// NewMerger wraps seqs, which must be ordered newest-first (seqs[0] is
// the most recent) and each individually sorted by path index.
func NewMerger(seqs []collate.Sequence[*record.FileMetadata]) *Merger {
	return &Merger{col: collate.NewCollator(seqs, (*record.FileMetadata).Index)}
}

// Next advances to the next live path index. Tombstones (Type == None)
// are skipped transparently, so Next may consume more than one
// collated tuple per call.
func (m *Merger) Next() bool {
	if m.err != nil {
		return false
	}
	for {
		if !m.col.Next() {
			if err := m.col.Err(); err != nil {
				m.err = err
			}
			return false
		}
		fm, err := resolve(m.col.Value())
		if err != nil {
			m.err = err
			return false
		}
		if fm == nil {
			// tombstone: file deleted at this time, try the next index
			continue
		}
		m.cur = fm
		return true
	}
}

// resolve scans a collated tuple from newest to oldest and returns the
// first non-absent record, or nil if that record is a tombstone.
func resolve(tuple []collate.Slot[*record.FileMetadata]) (*record.FileMetadata, error) {
	for _, slot := range tuple {
		if !slot.Valid {
			continue
		}
		if slot.Value.Type == record.NoneType {
			return nil, nil
		}
		return slot.Value, nil
	}
	return nil, ErrNoRecord
}

// Value returns the current effective record.
func (m *Merger) Value() *record.FileMetadata { return m.cur }

// Err returns the first error encountered while draining an input.
func (m *Merger) Err() error { return m.err }
