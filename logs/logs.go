// Package logs binds the three concrete record types (mirror metadata,
// extended attributes, access control lists; spec §3, §6.2) to
// flatlog.Codec values. It exists so flatlog itself stays generic and
// free of a record/eacl import (SPEC_FULL.md §3 module map).
package logs

import (
	"github.com/lazyfrosch/rdiff-backup/eacl"
	"github.com/lazyfrosch/rdiff-backup/flatlog"
	"github.com/lazyfrosch/rdiff-backup/record"
)

// Metadata is the mirror-metadata log's codec (spec §6.2 prefix
// "mirror_metadata").
var Metadata = flatlog.Codec[*record.FileMetadata]{
	Prefix:        "mirror_metadata",
	Encode:        record.Encode,
	Decode:        record.Decode,
	Index:         (*record.FileMetadata).Index,
	BoundaryIndex: record.BoundaryIndex,
}

// ExtendedAttributes is the extended-attributes sidecar log's codec
// (spec §6.2 prefix "extended_attributes").
var ExtendedAttributes = flatlog.Codec[*eacl.ExtendedAttributes]{
	Prefix:        "extended_attributes",
	Encode:        eacl.EncodeEA,
	Decode:        eacl.DecodeEA,
	Index:         (*eacl.ExtendedAttributes).Index,
	BoundaryIndex: record.BoundaryIndex,
}

// ACL is the access-control-list sidecar log's codec (spec §6.2 prefix
// "access_control_lists").
var ACL = flatlog.Codec[*eacl.ACL]{
	Prefix:        "access_control_lists",
	Encode:        eacl.EncodeACL,
	Decode:        eacl.DecodeACL,
	Index:         (*eacl.ACL).Index,
	BoundaryIndex: record.BoundaryIndex,
}
