// Package session implements the Session Manager (spec §4.7): it scans
// the backup data directory once, groups the increment files it finds
// by snapshot timestamp, and hands out object iterators and combined
// writers for a given time.
package session

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"golang.org/x/xerrors"

	"github.com/lazyfrosch/rdiff-backup/combinedwriter"
	"github.com/lazyfrosch/rdiff-backup/eacl"
	"github.com/lazyfrosch/rdiff-backup/flatlog"
	"github.com/lazyfrosch/rdiff-backup/logging"
	"github.com/lazyfrosch/rdiff-backup/logs"
	"github.com/lazyfrosch/rdiff-backup/pathindex"
	"github.com/lazyfrosch/rdiff-backup/record"
)

// Options configures a Manager.
type Options struct {
	// Dir is the backup data directory to scan.
	Dir string
	// EAsActive enables the extended-attributes sidecar.
	EAsActive bool
	// ACLsActive enables the access-control-list sidecar.
	ACLsActive bool
	// Compressed selects whether Writer creates gzip-wrapped logs.
	Compressed bool
}

const (
	prefixMeta = "mirror_metadata"
	prefixEAs  = "extended_attributes"
	prefixACLs = "access_control_lists"
)

// filenameRe matches the naming convention of spec §6.2:
// "<prefix>.<timestamp>.<typestr>[.gz]".
var filenameRe = regexp.MustCompile(`^(mirror_metadata|extended_attributes|access_control_lists)\.(.+)\.(snapshot|diff)(\.gz)?$`)

type entry struct {
	prefix     string
	typestr    string
	compressed bool
	path       string
}

// ErrMissingSidecar is MissingSidecar (spec §7): an EA/ACL log expected
// at a snapshot is absent.
var ErrMissingSidecar = xerrors.New("session: expected sidecar log is missing")

// Manager indexes a backup data directory (spec §4.7). The directory
// listing is taken once at construction and never refreshed (spec §5
// "Shared resources").
type Manager struct {
	opts   Options
	log    logging.Logger
	byTime map[string][]entry
}

// New scans opts.Dir and builds the time-to-increment-files index.
func New(opts Options, log logging.Logger) (*Manager, error) {
	if log == nil {
		log = logging.Discard()
	}
	dirEntries, err := os.ReadDir(opts.Dir)
	if err != nil {
		return nil, err
	}
	m := &Manager{opts: opts, log: log, byTime: map[string][]entry{}}
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		match := filenameRe.FindStringSubmatch(de.Name())
		if match == nil {
			continue
		}
		e := entry{
			prefix:     match[1],
			typestr:    match[3],
			compressed: match[4] != "",
			path:       filepath.Join(opts.Dir, de.Name()),
		}
		m.byTime[match[2]] = append(m.byTime[match[2]], e)
	}
	return m, nil
}

func (m *Manager) find(time, prefix string) (entry, bool) {
	for _, e := range m.byTime[time] {
		if e.prefix == prefix {
			return e, true
		}
	}
	return entry{}, false
}

// MetaAt returns the mirror-metadata object iterator for time,
// optionally restricted to prefix, or ok == false if no metadata log
// exists for that time (spec §4.7 "meta_at").
func (m *Manager) MetaAt(time string, prefix *pathindex.Index) (*flatlog.ObjectIterator[*record.FileMetadata], bool, error) {
	e, ok := m.find(time, prefixMeta)
	if !ok {
		return nil, false, nil
	}
	l, err := flatlog.OpenRead(e.path, e.compressed, logs.Metadata, m.log)
	if err != nil {
		return nil, false, err
	}
	it, err := l.Objects(prefix)
	if err != nil {
		return nil, false, err
	}
	return it, true, nil
}

// EAsAt returns the extended-attributes object iterator for time, or
// ok == false if no EA log exists for that time (spec §4.7 "eas_at").
func (m *Manager) EAsAt(time string, prefix *pathindex.Index) (*flatlog.ObjectIterator[*eacl.ExtendedAttributes], bool, error) {
	e, ok := m.find(time, prefixEAs)
	if !ok {
		return nil, false, nil
	}
	l, err := flatlog.OpenRead(e.path, e.compressed, logs.ExtendedAttributes, m.log)
	if err != nil {
		return nil, false, err
	}
	it, err := l.Objects(prefix)
	if err != nil {
		return nil, false, err
	}
	return it, true, nil
}

// ACLsAt returns the access-control-list object iterator for time, or
// ok == false if no ACL log exists for that time (spec §4.7 "acls_at").
func (m *Manager) ACLsAt(time string, prefix *pathindex.Index) (*flatlog.ObjectIterator[*eacl.ACL], bool, error) {
	e, ok := m.find(time, prefixACLs)
	if !ok {
		return nil, false, nil
	}
	l, err := flatlog.OpenRead(e.path, e.compressed, logs.ACL, m.log)
	if err != nil {
		return nil, false, err
	}
	it, err := l.Objects(prefix)
	if err != nil {
		return nil, false, err
	}
	return it, true, nil
}

// At returns the joined iterator for time: metadata combined with EAs
// and ACLs when those subsystems are enabled (spec §4.7 "at"). ok is
// false if no metadata log exists for time, in which case the caller
// should fall back to filesystem traversal.
func (m *Manager) At(time string, prefix *pathindex.Index) (*JoinedIterator, bool, error) {
	meta, ok, err := m.MetaAt(time, prefix)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	var eas *flatlog.ObjectIterator[*eacl.ExtendedAttributes]
	if m.opts.EAsActive {
		it, ok, err := m.EAsAt(time, prefix)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			m.log.Warnf("%v: extended attributes log missing for snapshot %s", ErrMissingSidecar, time)
		} else {
			eas = it
		}
	}

	var acls *flatlog.ObjectIterator[*eacl.ACL]
	if m.opts.ACLsActive {
		it, ok, err := m.ACLsAt(time, prefix)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			m.log.Warnf("%v: access control list log missing for snapshot %s", ErrMissingSidecar, time)
		} else {
			acls = it
		}
	}

	return newJoinedIterator(meta, eas, acls, m.log), true, nil
}

// Writer returns a CombinedWriter for a newly created snapshot or diff
// at time (spec §4.7 "writer"). It refuses to overwrite existing logs
// (flatlog.OpenWrite's WriterPreexists check).
func (m *Manager) Writer(typestr string, time string) (*combinedwriter.Writer, error) {
	meta, err := flatlog.OpenWrite(m.logPath(prefixMeta, time, typestr), m.opts.Compressed, logs.Metadata, m.log)
	if err != nil {
		return nil, err
	}

	var eas *flatlog.Log[*eacl.ExtendedAttributes]
	if m.opts.EAsActive {
		eas, err = flatlog.OpenWrite(m.logPath(prefixEAs, time, typestr), m.opts.Compressed, logs.ExtendedAttributes, m.log)
		if err != nil {
			meta.Close()
			return nil, err
		}
	}

	var acls *flatlog.Log[*eacl.ACL]
	if m.opts.ACLsActive {
		acls, err = flatlog.OpenWrite(m.logPath(prefixACLs, time, typestr), m.opts.Compressed, logs.ACL, m.log)
		if err != nil {
			meta.Close()
			if eas != nil {
				eas.Close()
			}
			return nil, err
		}
	}

	return combinedwriter.New(meta, eas, acls), nil
}

func (m *Manager) logPath(prefix, time, typestr string) string {
	name := prefix + "." + time + "." + typestr
	if m.opts.Compressed {
		name += ".gz"
	}
	return filepath.Join(m.opts.Dir, name)
}

// Times returns the distinct snapshot timestamps the Manager indexed,
// in ascending lexical order (wall-clock strings sort chronologically
// by construction — spec §6.2).
func (m *Manager) Times() []string {
	times := make([]string, 0, len(m.byTime))
	for t := range m.byTime {
		times = append(times, t)
	}
	sort.Strings(times)
	return times
}
