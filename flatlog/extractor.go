// Package flatlog implements the Flat Extractor (spec §4.4) and Flat
// Log (spec §4.5): a streaming, buffered iterator over "File ..."
// records in a byte stream, and the append-only writer/reader factory
// built on top of it. Both are parameterized by a Codec so one
// implementation serves the mirror-metadata, extended-attributes and
// access-control-lists logs alike (Design Notes: "Class-level field
// overrides become parameterized values").
package flatlog

import (
	"bufio"
	"io"
	"regexp"
	"strings"

	"github.com/lazyfrosch/rdiff-backup/logging"
	"github.com/lazyfrosch/rdiff-backup/pathindex"
)

// blockSize is the unit of buffered reading (spec §4.4: "Block size is
// 32 KiB").
const blockSize = 32 * 1024

// boundaryLine matches a record's opening "File <token>" line, anchored
// to either the start of the buffer or directly after a newline —
// mirroring the original's single shared boundary regexp
// (metadata.py's RorpExtractor.record_boundary_regexp). Used only by
// SkipToIndex, which needs the captured filename token; plain ordinary
// record splitting (nextPos) only needs the boundary's position and is
// done with a cheaper substring search.
var boundaryLine = regexp.MustCompile(`(?:^|\n)(File ([^\n]*))\n`)

// RecordIterator streams raw, undecoded text records out of a byte
// stream in constant memory (spec §4.4, P3).
type RecordIterator struct {
	r      *bufio.Reader
	closer io.Closer
	buf    []byte
	atEnd  bool
	done   bool
	closed bool
}

// NewRecordIterator wraps r. If r is also an io.Closer, the underlying
// stream is closed once iteration reaches its end or is aborted early
// (spec §4.4 "the underlying stream is closed at termination", §5
// cancellation).
func NewRecordIterator(r io.Reader) *RecordIterator {
	c, _ := r.(io.Closer)
	return &RecordIterator{r: bufio.NewReaderSize(r, blockSize), closer: c}
}

// AtEnd reports whether the underlying stream has been fully consumed.
func (it *RecordIterator) AtEnd() bool { return it.atEnd }

// Close releases the underlying stream. Safe to call more than once and
// safe to call after normal exhaustion (idempotent).
func (it *RecordIterator) Close() error {
	if it.closed || it.closer == nil {
		it.closed = true
		return nil
	}
	it.closed = true
	return it.closer.Close()
}

// nextPos returns the offset of the next record boundary in the
// buffer, refilling from the stream as needed (spec §4.4 "next_pos").
func (it *RecordIterator) nextPos() (int, error) {
	for {
		if len(it.buf) > 1 {
			if idx := strings.Index(string(it.buf[1:]), "\nFile "); idx >= 0 {
				return idx + 2, nil
			}
		}
		chunk := make([]byte, blockSize)
		n, err := it.r.Read(chunk)
		if n > 0 {
			it.buf = append(it.buf, chunk[:n]...)
		}
		if n == 0 {
			if err != nil && err != io.EOF {
				return 0, err
			}
			it.atEnd = true
			return len(it.buf), nil
		}
	}
}

// Next returns the next raw record, including its trailing state: ok is
// false once the stream (and any buffered remainder) is exhausted.
func (it *RecordIterator) Next() (record string, ok bool, err error) {
	if it.done {
		return "", false, nil
	}
	pos, err := it.nextPos()
	if err != nil {
		it.done = true
		return "", false, err
	}
	rec := string(it.buf[:pos])
	it.buf = it.buf[pos:]
	if it.atEnd {
		it.done = true
		_ = it.Close()
	}
	if rec == "" {
		return "", false, nil
	}
	return rec, true, nil
}

// SkipToIndex advances the buffer to the first record boundary whose
// path index is >= target (spec §4.4 "skip_to_index"), for use before
// building a prefix-restricted ObjectIterator. It must be called before
// any call to Next.
func (it *RecordIterator) SkipToIndex(target pathindex.Index, boundaryIndex func(string, logging.Logger) pathindex.Index, log logging.Logger) error {
	for {
		chunk := make([]byte, blockSize)
		n, err := it.r.Read(chunk)
		if err != nil && err != io.EOF && n == 0 {
			return err
		}
		buf := append([]byte(nil), chunk[:n]...)
		if n > 0 {
			line, _ := it.r.ReadString('\n')
			buf = append(buf, line...)
		}
		it.buf = buf
		if len(it.buf) == 0 {
			it.atEnd = true
			it.done = true
			_ = it.Close()
			return nil
		}
		for {
			loc := boundaryLine.FindSubmatchIndex(it.buf)
			if loc == nil {
				break
			}
			token := string(it.buf[loc[4]:loc[5]])
			cur := boundaryIndex(token, log)
			if !cur.Less(target) {
				it.buf = it.buf[loc[2]:]
				return nil
			}
			it.buf = it.buf[loc[3]:]
		}
	}
}

// ObjectIterator decodes the records off a RecordIterator into T values,
// tolerating and logging parse errors mid-stream while silently
// dropping ones found at end-of-stream (spec §4.4 "iterate", §7).
type ObjectIterator[T any] struct {
	ri      *RecordIterator
	decode  func(string, logging.Logger) (T, error)
	indexOf func(T) pathindex.Index
	log     logging.Logger

	prefix    pathindex.Index
	hasPrefix bool

	cur  T
	err  error
	done bool
}

// NewObjectIterator returns a full, unrestricted iterator over ri.
func NewObjectIterator[T any](ri *RecordIterator, decode func(string, logging.Logger) (T, error), log logging.Logger) *ObjectIterator[T] {
	return &ObjectIterator[T]{ri: ri, decode: decode, log: log}
}

// NewPrefixObjectIterator seeks ri to prefix and returns an iterator
// that stops at the first record whose index no longer has prefix
// (spec §4.4 "iterate_starting_with", P4).
func NewPrefixObjectIterator[T any](
	ri *RecordIterator,
	decode func(string, logging.Logger) (T, error),
	indexOf func(T) pathindex.Index,
	boundaryIndex func(string, logging.Logger) pathindex.Index,
	prefix pathindex.Index,
	log logging.Logger,
) (*ObjectIterator[T], error) {
	if err := ri.SkipToIndex(prefix, boundaryIndex, log); err != nil {
		return nil, err
	}
	oi := &ObjectIterator[T]{ri: ri, decode: decode, indexOf: indexOf, log: log, prefix: prefix, hasPrefix: true}
	if ri.AtEnd() && len(ri.buf) == 0 {
		oi.done = true
	}
	return oi, nil
}

// Next decodes and advances to the next matching object.
func (oi *ObjectIterator[T]) Next() bool {
	if oi.done {
		return false
	}
	for {
		rec, ok, err := oi.ri.Next()
		if err != nil {
			oi.err = err
			oi.done = true
			return false
		}
		if !ok {
			oi.done = true
			return false
		}
		obj, derr := oi.decode(rec, oi.log)
		if derr != nil {
			if oi.ri.AtEnd() {
				// Truncated/garbage trailing record: tolerated silently
				// (spec §7 TruncationTolerated).
				oi.done = true
				return false
			}
			if oi.log != nil {
				oi.log.Warnf("error parsing flat file: %v", derr)
			}
			continue
		}
		if oi.hasPrefix && !oi.indexOf(obj).HasPrefix(oi.prefix) {
			oi.done = true
			_ = oi.ri.Close()
			return false
		}
		oi.cur = obj
		return true
	}
}

// Value returns the most recently decoded object.
func (oi *ObjectIterator[T]) Value() T { return oi.cur }

// Err returns the first I/O error encountered, if any.
func (oi *ObjectIterator[T]) Err() error { return oi.err }

// Close aborts iteration early, closing the underlying stream (spec §5
// cancellation).
func (oi *ObjectIterator[T]) Close() error {
	oi.done = true
	return oi.ri.Close()
}
