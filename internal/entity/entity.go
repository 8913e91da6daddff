// Package entity provides the dense, typed-index arenas that back every
// graph in the IR: a transparent uint32 newtype per logical entity kind
// (Ref[T]), plus PrimaryMap, SecondaryMap, and Set built on top of it.
//
// Entities are dense and allocated monotonically from a primary arena;
// freeing is bulk-only (Clear). This gives cache-coherent graph traversal
// and lets side-tables be plain slices rather than hash maps.
package entity

import "github.com/bits-and-blooms/bitset"

// Ref is a typed index into the primary arena for entity kind T. The zero
// value addresses the first entity pushed; Nil is the reserved sentinel so
// that optional refs pack into the same 32 bits as a real one.
type Ref[T any] uint32

// Nil is the sentinel denoting "no entity" for any Ref[T].
const Nil = ^uint32(0)

// IsNil reports whether r is the sentinel.
func (r Ref[T]) IsNil() bool { return uint32(r) == Nil }

// Index returns the zero-based slot this ref addresses.
func (r Ref[T]) Index() uint32 { return uint32(r) }

// PrimaryMap is the single source of identity for entity kind K: push
// appends and returns the new key, in amortized O(1). Iteration order
// equals insertion order.
type PrimaryMap[K ~uint32, V any] struct {
	items []V
}

// Push appends v and returns the key that now identifies it.
func (m *PrimaryMap[K, V]) Push(v V) K {
	k := K(len(m.items))
	m.items = append(m.items, v)
	return k
}

// Len returns the number of entities ever pushed (since the last Clear).
func (m *PrimaryMap[K, V]) Len() int { return len(m.items) }

// Get returns a pointer to the entity at k. It panics if k is out of range.
func (m *PrimaryMap[K, V]) Get(k K) *V {
	if !m.IsValid(k) {
		panic("entity: invalid PrimaryMap key")
	}
	return &m.items[k]
}

// IsValid reports whether k currently addresses a live entity.
func (m *PrimaryMap[K, V]) IsValid(k K) bool {
	return uint32(k) < uint32(len(m.items))
}

// Clear resets the map to empty, preserving capacity for reuse.
func (m *PrimaryMap[K, V]) Clear() { m.items = m.items[:0] }

// All iterates entities in insertion order, yielding (key, value-pointer).
func (m *PrimaryMap[K, V]) All(yield func(K, *V) bool) {
	for i := range m.items {
		if !yield(K(i), &m.items[i]) {
			return
		}
	}
}

// SecondaryMap is a lazily resizable side-table keyed by the same K as some
// PrimaryMap. Set auto-resizes the backing slice on out-of-range keys
// (rather than requiring a pre-sized Resize) — the documented behavior.
type SecondaryMap[K ~uint32, V any] struct {
	items []V
	zero  V
}

// Get returns the value at k, or the zero value if k was never Set.
func (m *SecondaryMap[K, V]) Get(k K) V {
	if uint32(k) >= uint32(len(m.items)) {
		return m.zero
	}
	return m.items[k]
}

// Set stores v at k, growing the backing slice (with zero values) as
// needed.
func (m *SecondaryMap[K, V]) Set(k K, v V) {
	if need := int(k) + 1; need > len(m.items) {
		grown := make([]V, need)
		copy(grown, m.items)
		m.items = grown
	}
	m.items[k] = v
}

// Clear resets the map to empty, preserving capacity for reuse.
func (m *SecondaryMap[K, V]) Clear() { m.items = m.items[:0] }

// Set is a bit-set over entity kind K, backed by bits-and-blooms/bitset for
// O(1) membership, O(n/word) ascending iteration, and Pop of the highest
// set index.
type Set[K ~uint32] struct {
	bits *bitset.BitSet
}

// NewSet returns an empty set.
func NewSet[K ~uint32]() Set[K] {
	return Set[K]{bits: bitset.New(0)}
}

// Insert adds k to the set.
func (s *Set[K]) Insert(k K) {
	if s.bits == nil {
		s.bits = bitset.New(0)
	}
	s.bits.Set(uint(k))
}

// Remove deletes k from the set.
func (s *Set[K]) Remove(k K) {
	if s.bits == nil {
		return
	}
	s.bits.Clear(uint(k))
}

// Contains reports whether k is a member.
func (s *Set[K]) Contains(k K) bool {
	if s.bits == nil {
		return false
	}
	return s.bits.Test(uint(k))
}

// Len returns the number of members.
func (s *Set[K]) Len() int {
	if s.bits == nil {
		return 0
	}
	return int(s.bits.Count())
}

// Clear empties the set, preserving its backing storage.
func (s *Set[K]) Clear() {
	if s.bits != nil {
		s.bits.ClearAll()
	}
}

// Pop removes and returns the highest set index, found by scanning every
// member in ascending order. The second return is false if the set was
// empty.
func (s *Set[K]) Pop() (K, bool) {
	if s.bits == nil {
		return 0, false
	}
	top := uint(0)
	found := false
	for i, e := s.bits.NextSet(0); e; i, e = s.bits.NextSet(i + 1) {
		top = i
		found = true
	}
	if !found {
		return 0, false
	}
	s.bits.Clear(top)
	return K(top), true
}

// All iterates members in ascending index order.
func (s *Set[K]) All(yield func(K) bool) {
	if s.bits == nil {
		return
	}
	for i, e := s.bits.NextSet(0); e; i, e = s.bits.NextSet(i + 1) {
		if !yield(K(i)) {
			return
		}
	}
}
