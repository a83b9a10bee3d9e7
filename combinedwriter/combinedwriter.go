// Package combinedwriter implements the Combined Writer (spec §4.6): a
// fan-out over the mirror-metadata log plus optional extended-attribute
// and access-control-list sidecar logs, so callers see one write(obj)
// call per file regardless of how many sidecars are active.
package combinedwriter

import (
	"github.com/lazyfrosch/rdiff-backup/eacl"
	"github.com/lazyfrosch/rdiff-backup/flatlog"
	"github.com/lazyfrosch/rdiff-backup/record"
)

// Writer wraps a metadata writer plus optional EA and ACL writers.
type Writer struct {
	meta *flatlog.Log[*record.FileMetadata]
	eas  *flatlog.Log[*eacl.ExtendedAttributes]
	acls *flatlog.Log[*eacl.ACL]
}

// New constructs a Writer. eas and acls may be nil when those
// subsystems are disabled (spec §4.7 "writer(...) returns a
// CombinedWriter when EAs or ACLs are enabled, else the bare metadata
// writer" — here the bare case is simply a Writer with nil sidecars).
func New(meta *flatlog.Log[*record.FileMetadata], eas *flatlog.Log[*eacl.ExtendedAttributes], acls *flatlog.Log[*eacl.ACL]) *Writer {
	return &Writer{meta: meta, eas: eas, acls: acls}
}

// Write records fm, plus its EA record if eas is active and non-empty,
// plus its ACL record if acls is active and not the basic ACL already
// implied by fm's permission bits (spec §4.6).
func (w *Writer) Write(fm *record.FileMetadata) error {
	if err := w.meta.WriteObject(fm); err != nil {
		return err
	}
	if w.eas != nil && !fm.EA.Empty() {
		if err := w.eas.WriteObject(fm.EA); err != nil {
			return err
		}
	}
	if w.acls != nil && !fm.ACL.IsBasic(fm.Permissions) {
		if err := w.acls.WriteObject(fm.ACL); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the metadata writer, then the EA writer, then the ACL
// writer, in that fixed sequential order — the single-threaded,
// cooperative scheduling model (spec §5) gives no reason to close them
// concurrently. If any sub-writer fails to close, Close still attempts
// the remaining ones and returns the first error (spec §4.6: "if any
// sub-writer fails on close, the whole close fails").
func (w *Writer) Close() error {
	var firstErr error
	if err := w.meta.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if w.eas != nil {
		if err := w.eas.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if w.acls != nil {
		if err := w.acls.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
