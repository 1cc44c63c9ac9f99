// Package ranges keeps a set of disjoint half-open address intervals ordered by start address.
package ranges

import (
	"cmp"
	"iter"
	"slices"
)

type Entry[V any] struct {
	Start uint64
	Size  uint64
	Value V
}

func (e Entry[V]) End() uint64 {
	return e.Start + e.Size
}

// Index is not safe for concurrent use.
type Index[V any] struct {
	entries []Entry[V]
}

// Intersect reports whether [a1, a1+s1) and [a2, a2+s2) overlap.
//
// Of the six orderings of two intervals with A<B and X<Y only A B X Y and X Y A B are
// disjoint, i.e. B <= X or Y <= A, so the intervals meet iff X < B and A < Y.
func Intersect(a1, s1, a2, s2 uint64) bool {
	return a2 < a1+s1 && a1 < a2+s2
}

func (x *Index[V]) Len() int {
	return len(x.entries)
}

// lowerBound returns the position of the first entry starting at or after addr.
func (x *Index[V]) lowerBound(addr uint64) (int, bool) {
	return slices.BinarySearchFunc(x.entries, addr, func(e Entry[V], addr uint64) int {
		return cmp.Compare(e.Start, addr)
	})
}

func (x *Index[V]) Get(start uint64) (Entry[V], bool) {
	if i, ok := x.lowerBound(start); ok {
		return x.entries[i], true
	}
	return Entry[V]{}, false
}

// Insert adds [start, start+size) unless it would intersect an existing interval.
func (x *Index[V]) Insert(start, size uint64, v V) bool {
	if size == 0 || start+size < start || x.Intersects(start, size) {
		return false
	}
	i, ok := x.lowerBound(start)
	if ok {
		return false
	}
	x.entries = slices.Insert(x.entries, i, Entry[V]{Start: start, Size: size, Value: v})
	return true
}

func (x *Index[V]) Delete(start uint64) (Entry[V], bool) {
	i, ok := x.lowerBound(start)
	if !ok {
		return Entry[V]{}, false
	}
	e := x.entries[i]
	x.entries = slices.Delete(x.entries, i, i+1)
	return e, true
}

// Floor returns the entry with the greatest start address that is <= addr.
func (x *Index[V]) Floor(addr uint64) (Entry[V], bool) {
	i, ok := x.lowerBound(addr)
	if ok {
		return x.entries[i], true
	}
	if i == 0 {
		return Entry[V]{}, false
	}
	return x.entries[i-1], true
}

// Containing returns the entry that holds all of [addr, addr+size). A zero size probes one byte.
// Ranges that straddle an interval boundary are not contained by any entry.
func (x *Index[V]) Containing(addr, size uint64) (Entry[V], bool) {
	size = max(size, 1)
	if addr+size < addr {
		return Entry[V]{}, false
	}
	e, ok := x.Floor(addr)
	if !ok || addr+size > e.End() {
		return Entry[V]{}, false
	}
	return e, true
}

// Intersects checks the first interval starting at or after addr and its predecessor.
// Intervals are disjoint and ordered, so no other interval can overlap without one of
// those two overlapping as well.
func (x *Index[V]) Intersects(addr, size uint64) bool {
	i, _ := x.lowerBound(addr)
	if i < len(x.entries) {
		if e := x.entries[i]; Intersect(addr, size, e.Start, e.Size) {
			return true
		}
	}
	if i > 0 {
		if e := x.entries[i-1]; Intersect(addr, size, e.Start, e.Size) {
			return true
		}
	}
	return false
}

func (x *Index[V]) Last() (Entry[V], bool) {
	if len(x.entries) == 0 {
		return Entry[V]{}, false
	}
	return x.entries[len(x.entries)-1], true
}

// All yields entries in ascending address order. The index must not be modified during iteration.
func (x *Index[V]) All() iter.Seq[Entry[V]] {
	return func(yield func(Entry[V]) bool) {
		for _, e := range x.entries {
			if !yield(e) {
				return
			}
		}
	}
}

// Backward yields entries in descending address order.
func (x *Index[V]) Backward() iter.Seq[Entry[V]] {
	return func(yield func(Entry[V]) bool) {
		for i := len(x.entries) - 1; i >= 0; i-- {
			if !yield(x.entries[i]) {
				return
			}
		}
	}
}

// Starts snapshots the start addresses so callers may delete while walking them.
func (x *Index[V]) Starts() []uint64 {
	starts := make([]uint64, len(x.entries))
	for i, e := range x.entries {
		starts[i] = e.Start
	}
	return starts
}

func (x *Index[V]) Clear() {
	x.entries = nil
}
