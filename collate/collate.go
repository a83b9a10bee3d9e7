// Package collate implements the merge-join primitive the original
// implementation calls CollateIterators/Collate2Iters (spec §4.8:
// "supplied externally"): given several iterators already sorted by a
// common path-index ordering, walk them in lockstep and, for each index
// present in any of them, yield which iterators had a record at that
// index and which did not.
//
// It is used both for the Session Manager's metadata/EA/ACL join
// (spec §4.7) and for Patch Merge's cross-snapshot collation
// (spec §4.8).
package collate

import "github.com/lazyfrosch/rdiff-backup/pathindex"

// Sequence is the minimal cursor interface satisfied by
// flatlog.ObjectIterator[T] (and anything else shaped like it).
type Sequence[T any] interface {
	Next() bool
	Value() T
	Err() error
}

// Peeker wraps a Sequence with one-ahead lookahead, the building block
// both Collator and a hand-rolled heterogeneous join (session's
// metadata+EA+ACL join) are built from.
type Peeker[T any] struct {
	seq     Sequence[T]
	indexOf func(T) pathindex.Index

	cur T
	has bool
	err error
}

// NewPeeker wraps seq and loads its first value.
func NewPeeker[T any](seq Sequence[T], indexOf func(T) pathindex.Index) *Peeker[T] {
	p := &Peeker[T]{seq: seq, indexOf: indexOf}
	p.Advance()
	return p
}

// Advance pulls the next value off the wrapped sequence.
func (p *Peeker[T]) Advance() {
	if p.seq.Next() {
		p.cur = p.seq.Value()
		p.has = true
		return
	}
	p.has = false
	p.err = p.seq.Err()
}

// Has reports whether a current value is available.
func (p *Peeker[T]) Has() bool { return p.has }

// Index returns the current value's path index. Only valid when Has().
func (p *Peeker[T]) Index() pathindex.Index { return p.indexOf(p.cur) }

// Value returns the current value. Only valid when Has().
func (p *Peeker[T]) Value() T { return p.cur }

// Err returns the error that ended the wrapped sequence, if any.
func (p *Peeker[T]) Err() error { return p.err }

// Slot is one position in a collated tuple: either the input sequence
// had a record at this index (Valid, Value) or it did not.
type Slot[T any] struct {
	Valid bool
	Value T
}

// Collator performs the N-way homogeneous merge-join of spec §4.8: all
// inputs carry the same record type T (e.g. file-metadata records from
// N snapshots).
type Collator[T any] struct {
	peekers []*Peeker[T]

	curIndex pathindex.Index
	curTuple []Slot[T]
	started  bool
	err      error
}

// NewCollator wraps seqs, one Peeker per input, in the given order.
// Order matters to callers of Patch Merge: index 0 must be the newest
// snapshot (spec §4.8 "newest-first").
func NewCollator[T any](seqs []Sequence[T], indexOf func(T) pathindex.Index) *Collator[T] {
	peekers := make([]*Peeker[T], len(seqs))
	for i, s := range seqs {
		peekers[i] = NewPeeker(s, indexOf)
	}
	return &Collator[T]{peekers: peekers}
}

// Next advances to the next path index present in any input.
func (c *Collator[T]) Next() bool {
	if c.err != nil {
		return false
	}
	anyLeft := false
	var minIndex pathindex.Index
	first := true
	for _, p := range c.peekers {
		if !p.Has() {
			if err := p.Err(); err != nil {
				c.err = err
				return false
			}
			continue
		}
		anyLeft = true
		if first || p.Index().Less(minIndex) {
			minIndex = p.Index()
			first = false
		}
	}
	if !anyLeft {
		return false
	}

	tuple := make([]Slot[T], len(c.peekers))
	for i, p := range c.peekers {
		if p.Has() && p.Index().Equal(minIndex) {
			tuple[i] = Slot[T]{Valid: true, Value: p.Value()}
			p.Advance()
			if err := p.Err(); err != nil {
				c.err = err
				return false
			}
		}
	}
	c.curIndex = minIndex
	c.curTuple = tuple
	return true
}

// Index returns the path index of the current collated tuple.
func (c *Collator[T]) Index() pathindex.Index { return c.curIndex }

// Value returns the current collated tuple, one Slot per input
// sequence in the order passed to NewCollator.
func (c *Collator[T]) Value() []Slot[T] { return c.curTuple }

// Err returns the first error encountered while draining an input.
func (c *Collator[T]) Err() error { return c.err }

// Pair is the two-way collated result: whether each of the two inputs
// had a record at the current index.
type Pair[T any] struct {
	A, B Slot[T]
}

// TwoWayCollator is Collate2, the named two-input case the original
// implementation calls Collate2Iters — kept distinct from the general
// N-way Collator so callers joining exactly two sequences (e.g. an
// orchestrator comparing a current and a prior metadata iterator to
// build a diff log) don't have to index into a two-element tuple slice.
type TwoWayCollator[T any] struct {
	col *Collator[T]
}

// Collate2 wraps a and b for a two-way merge-join, mirroring the
// original's rorpiter.Collate2Iters(cur_iter, old_iter).
func Collate2[T any](a, b Sequence[T], indexOf func(T) pathindex.Index) *TwoWayCollator[T] {
	return &TwoWayCollator[T]{col: NewCollator([]Sequence[T]{a, b}, indexOf)}
}

// Next advances to the next path index present in either input.
func (c *TwoWayCollator[T]) Next() bool { return c.col.Next() }

// Index returns the path index of the current pair.
func (c *TwoWayCollator[T]) Index() pathindex.Index { return c.col.Index() }

// Value returns the current pair: A from the first input, B from the
// second, each Valid only if that input had a record at Index().
func (c *TwoWayCollator[T]) Value() Pair[T] {
	tuple := c.col.Value()
	return Pair[T]{A: tuple[0], B: tuple[1]}
}

// Err returns the first error encountered while draining an input.
func (c *TwoWayCollator[T]) Err() error { return c.col.Err() }
