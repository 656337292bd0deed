/*
Package iteratable implements iteratable container data structures.

Set is a special purpose set type, suitable mainly for implementing
algorithms around lexers, parsers, etc. These kinds of algorithms are often
more straightforward to describe as set constructions and operations. Sets
preserve insertion order and support a work-queue style of iteration, where
items added during an iteration will be visited as well.

Unusually, all set operations are destructive!

License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © 2017–2021 Norbert Pillmayer <norbert@pillmayer.com>

*/
package iteratable

// Set is an ordered set over comparable items. The zero value is not usable;
// create sets with NewSet.
type Set struct {
	items  []interface{}
	index  map[interface{}]int
	cursor int
}

// NewSet creates an empty set with a capacity hint.
func NewSet(capacity int) *Set {
	if capacity < 0 {
		capacity = 0
	}
	return &Set{
		items:  make([]interface{}, 0, capacity),
		index:  make(map[interface{}]int, capacity),
		cursor: -1,
	}
}

// Add inserts an item, if not already present. The set keeps insertion
// order; an item added during an iteration will be visited by that
// iteration.
func (s *Set) Add(item interface{}) {
	if _, ok := s.index[item]; ok {
		return
	}
	s.index[item] = len(s.items)
	s.items = append(s.items, item)
}

// Contains returns true if item is in the set.
func (s *Set) Contains(item interface{}) bool {
	_, ok := s.index[item]
	return ok
}

// Size returns the number of items in the set.
func (s *Set) Size() int {
	return len(s.items)
}

// Empty returns true if the set has no items.
func (s *Set) Empty() bool {
	return len(s.items) == 0
}

// Values returns the items of the set in insertion order. The returned
// slice is a copy.
func (s *Set) Values() []interface{} {
	return append([]interface{}(nil), s.items...)
}

// Copy returns an independent copy of the set.
func (s *Set) Copy() *Set {
	c := NewSet(len(s.items))
	for _, item := range s.items {
		c.Add(item)
	}
	return c
}

// Union adds all items of other to the set (destructive).
func (s *Set) Union(other *Set) *Set {
	if other == nil {
		return s
	}
	for _, item := range other.items {
		s.Add(item)
	}
	return s
}

// Difference removes all items of other from the set (destructive).
func (s *Set) Difference(other *Set) *Set {
	if other == nil || other.Empty() {
		return s
	}
	kept := s.items[:0]
	for _, item := range s.items {
		if !other.Contains(item) {
			kept = append(kept, item)
		} else {
			delete(s.index, item)
		}
	}
	s.items = kept
	for i, item := range s.items {
		s.index[item] = i
	}
	return s
}

// Subset removes all items not satisfying the predicate (destructive).
func (s *Set) Subset(predicate func(interface{}) bool) *Set {
	kept := s.items[:0]
	for _, item := range s.items {
		if predicate(item) {
			kept = append(kept, item)
		} else {
			delete(s.index, item)
		}
	}
	s.items = kept
	for i, item := range s.items {
		s.index[item] = i
	}
	return s
}

// Each calls f for every item of the set, in insertion order.
func (s *Set) Each(f func(interface{})) {
	for _, item := range s.items {
		f(item)
	}
}

// Equals returns true if both sets contain the same items, regardless of
// order.
func (s *Set) Equals(other *Set) bool {
	if other == nil || s.Size() != other.Size() {
		return false
	}
	for _, item := range s.items {
		if !other.Contains(item) {
			return false
		}
	}
	return true
}

// IterateOnce starts (or restarts) a work-queue iteration over the set.
// Together with Next and Item it is used as
//
//	S.IterateOnce()
//	for S.Next() {
//	    item := S.Item()
//	    …                   // may S.Add(…) new items, which will be visited
//	}
func (s *Set) IterateOnce() {
	s.cursor = -1
}

// Next advances the iteration. It returns false when all items, including
// items added during the iteration, have been visited.
func (s *Set) Next() bool {
	s.cursor++
	return s.cursor < len(s.items)
}

// Item returns the item at the current iteration position.
func (s *Set) Item() interface{} {
	if s.cursor < 0 || s.cursor >= len(s.items) {
		return nil
	}
	return s.items[s.cursor]
}
