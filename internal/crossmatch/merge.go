package crossmatch

import (
	"fmt"
	"iter"

	"github.com/banshee-data/skymatch/internal/catalog"
)

// MergedExample is the union of two surveys' feature payloads for one
// matched pair. On a key collision the second survey's value wins.
type MergedExample map[string]any

// MergedSequence lazily pulls one record from each reader per matched pair
// and merges them. It is a single-use, single-goroutine iterator:
//
//	for seq.Next() {
//		ex := seq.Example()
//		...
//	}
//	if err := seq.Err(); err != nil { ... }
//
// The first lookup failure ends iteration; nothing is skipped or retried.
// Calling Merge again with the same arguments yields the same examples as
// long as both readers are deterministic.
type MergedSequence struct {
	a, b         catalog.KeyedReader
	keysA, keysB []string

	pos int
	cur MergedExample
	err error
}

// Merge pairs keysA[i] in reader a with keysB[i] in reader b.
func Merge(a, b catalog.KeyedReader, keysA, keysB []string) (*MergedSequence, error) {
	if len(keysA) != len(keysB) {
		return nil, &MatchCountError{Left: len(keysA), Right: len(keysB)}
	}
	if a == nil || b == nil {
		return nil, fmt.Errorf("merge requires two record readers")
	}
	return &MergedSequence{a: a, b: b, keysA: keysA, keysB: keysB}, nil
}

// Len returns the total number of examples the sequence produces.
func (s *MergedSequence) Len() int { return len(s.keysA) }

// Next advances to the next example. It returns false at the end of the
// sequence or after a lookup error.
func (s *MergedSequence) Next() bool {
	s.cur = nil
	if s.err != nil || s.pos >= len(s.keysA) {
		return false
	}

	i := s.pos
	s.pos++

	left, err := s.a.Lookup(s.keysA[i])
	if err != nil {
		s.err = fmt.Errorf("pair %d: left record %q: %w", i, s.keysA[i], err)
		return false
	}
	right, err := s.b.Lookup(s.keysB[i])
	if err != nil {
		s.err = fmt.Errorf("pair %d: right record %q: %w", i, s.keysB[i], err)
		return false
	}

	merged := make(MergedExample, len(left)+len(right))
	for k, v := range left {
		merged[k] = v
	}
	for k, v := range right {
		merged[k] = v
	}
	s.cur = merged
	return true
}

// Example returns the example produced by the last successful Next.
func (s *MergedSequence) Example() MergedExample { return s.cur }

// Err returns the error that stopped iteration, if any.
func (s *MergedSequence) Err() error { return s.err }

// Range returns a fresh sequence over pairs [start, end) of this one's keys.
// Ranges over disjoint spans may be consumed concurrently when both readers
// are safe for concurrent lookups.
func (s *MergedSequence) Range(start, end int) *MergedSequence {
	if start < 0 {
		start = 0
	}
	if end > len(s.keysA) {
		end = len(s.keysA)
	}
	if start > end {
		start = end
	}
	return &MergedSequence{
		a:     s.a,
		b:     s.b,
		keysA: s.keysA[start:end],
		keysB: s.keysB[start:end],
	}
}

// All adapts the sequence to a range-over-func iterator. A lookup failure
// is yielded once as a nil example with the error, then iteration stops.
func (s *MergedSequence) All() iter.Seq2[MergedExample, error] {
	return func(yield func(MergedExample, error) bool) {
		for s.Next() {
			if !yield(s.Example(), nil) {
				return
			}
		}
		if err := s.Err(); err != nil {
			yield(nil, err)
		}
	}
}

// Collect drains the sequence into a slice.
func (s *MergedSequence) Collect() ([]MergedExample, error) {
	out := make([]MergedExample, 0, s.Len()-s.pos)
	for s.Next() {
		out = append(out, s.Example())
	}
	return out, s.Err()
}
