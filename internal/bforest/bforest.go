// Package bforest implements an ordered-map/set pool: many small B+-trees
// share one node arena so that per-function side tables (per-block,
// per-value maps built and torn down every compilation) can be cleared in
// O(1) rather than individually freed.
//
// No pack library (google/btree, tidwall/btree) supports pooled nodes with
// bulk clear, so this is hand-rolled atop internal/entity's arena pattern —
// see DESIGN.md's C2 entry.
package bforest

import "github.com/ssagen/backend/internal/entity"

const (
	branchFactor    = 8
	underflowFactor = branchFactor / 2
)

type nodeTag struct{}
type nodeRef = entity.Ref[nodeTag]

// node is a B+-tree node shared by every tree in a Forest. Leaves store
// values directly; inner nodes store only keys and child refs.
type node[K Ordered, V any] struct {
	leaf     bool
	keys     []K
	values   []V      // leaf only, parallel to keys
	children []nodeRef // inner only, len(children) == len(keys)+1
}

// Ordered constrains the key type to anything with a natural <, analogous
// to the generic containers used across the pack (lvlath, go-corset).
type Ordered interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64 | ~string
}

// Forest owns the shared node pool for one or more trees of the same
// key/value types. Trees are represented as an optional root nodeRef;
// an empty tree has zero footprint (a nil-equivalent root).
type Forest[K Ordered, V any] struct {
	pool entity.PrimaryMap[nodeRef, node[K, V]]
}

// Clear frees every tree rooted in this forest at once, by resetting the
// pool; O(1). All outstanding Map/Set handles referencing this forest
// become invalid and must not be used afterward.
func (f *Forest[K, V]) Clear() { f.pool.Clear() }

func (f *Forest[K, V]) alloc(n node[K, V]) nodeRef { return f.pool.Push(n) }

func (f *Forest[K, V]) node(r nodeRef) *node[K, V] { return f.pool.Get(r) }

// Map is a handle to one ordered map living in a Forest's shared pool.
type Map[K Ordered, V any] struct {
	forest *Forest[K, V]
	root   nodeRef
	hasRoot bool
}

// NewMap creates an empty map backed by forest.
func NewMap[K Ordered, V any](forest *Forest[K, V]) Map[K, V] {
	return Map[K, V]{forest: forest}
}

// Get returns the value at k and whether it was present.
func (m *Map[K, V]) Get(k K) (V, bool) {
	var zero V
	if !m.hasRoot {
		return zero, false
	}
	n := m.forest.node(m.root)
	for {
		i := search(n.keys, k)
		if n.leaf {
			if i < len(n.keys) && n.keys[i] == k {
				return n.values[i], true
			}
			return zero, false
		}
		n = m.forest.node(n.children[i])
	}
}

// Insert stores v at k, returning the previous value (if any).
func (m *Map[K, V]) Insert(k K, v V) (V, bool) {
	var zero V
	if !m.hasRoot {
		leaf := node[K, V]{leaf: true, keys: []K{k}, values: []V{v}}
		m.root = m.forest.alloc(leaf)
		m.hasRoot = true
		return zero, false
	}
	newRoot, prev, hadPrev, split, splitKey, splitRight := m.insert(m.root, k, v)
	if split {
		inner := node[K, V]{
			leaf:     false,
			keys:     []K{splitKey},
			children: []nodeRef{newRoot, splitRight},
		}
		m.root = m.forest.alloc(inner)
	} else {
		m.root = newRoot
	}
	return prev, hadPrev
}

// insert recurses into r, mutating it in place (nodes are not shared across
// trees so in-place mutation is safe), and reports whether r overflowed and
// needs to be split at the parent.
func (m *Map[K, V]) insert(r nodeRef, k K, v V) (self nodeRef, prev V, hadPrev bool, split bool, splitKey K, splitRight nodeRef) {
	n := m.forest.node(r)
	if n.leaf {
		i := search(n.keys, k)
		if i < len(n.keys) && n.keys[i] == k {
			prev, hadPrev = n.values[i], true
			n.values[i] = v
			return r, prev, hadPrev, false, splitKey, 0
		}
		n.keys = insertAt(n.keys, i, k)
		n.values = insertAt(n.values, i, v)
		if len(n.keys) <= branchFactor {
			return r, prev, hadPrev, false, splitKey, 0
		}
		mid := (len(n.keys) + 1) / 2
		rightLeaf := node[K, V]{leaf: true, keys: append([]K{}, n.keys[mid:]...), values: append([]V{}, n.values[mid:]...)}
		n.keys = n.keys[:mid]
		n.values = n.values[:mid]
		rightRef := m.forest.alloc(rightLeaf)
		return r, prev, hadPrev, true, rightLeaf.keys[0], rightRef
	}

	i := search(n.keys, k)
	childRef := n.children[i]
	_, prev, hadPrev, childSplit, childSplitKey, childSplitRight := m.insert(childRef, k, v)
	if !childSplit {
		return r, prev, hadPrev, false, splitKey, 0
	}
	n.keys = insertAt(n.keys, i, childSplitKey)
	n.children = insertAt(n.children, i+1, childSplitRight)
	if len(n.children) <= branchFactor {
		return r, prev, hadPrev, false, splitKey, 0
	}
	mid := len(n.keys) / 2
	upKey := n.keys[mid]
	rightInner := node[K, V]{
		leaf:     false,
		keys:     append([]K{}, n.keys[mid+1:]...),
		children: append([]nodeRef{}, n.children[mid+1:]...),
	}
	n.keys = n.keys[:mid]
	n.children = n.children[:mid+1]
	rightRef := m.forest.alloc(rightInner)
	return r, prev, hadPrev, true, upKey, rightRef
}

// Remove deletes k, returning the removed value and whether it was present.
// Underflow is handled lazily: a node below underflowFactor is merged with
// a sibling on the way back up (see fixUnderflow).
func (m *Map[K, V]) Remove(k K) (V, bool) {
	var zero V
	if !m.hasRoot {
		return zero, false
	}
	v, ok := m.remove(m.root, k)
	n := m.forest.node(m.root)
	if !n.leaf && len(n.children) == 1 {
		m.root = n.children[0]
	}
	return v, ok
}

func (m *Map[K, V]) remove(r nodeRef, k K) (V, bool) {
	var zero V
	n := m.forest.node(r)
	i := search(n.keys, k)
	if n.leaf {
		if i >= len(n.keys) || n.keys[i] != k {
			return zero, false
		}
		v := n.values[i]
		n.keys = removeAt(n.keys, i)
		n.values = removeAt(n.values, i)
		return v, true
	}
	v, ok := m.remove(n.children[i], k)
	if !ok {
		return zero, false
	}
	child := m.forest.node(n.children[i])
	size := len(child.keys)
	if !child.leaf {
		size = len(child.children)
	}
	if size < underflowFactor && len(n.children) > 1 {
		m.fixUnderflow(n, i)
	}
	return v, true
}

// fixUnderflow merges child i of inner node n with its right sibling, or
// with its left sibling when i is the last child. It always merges and
// never redistributes keys, so the merged node may hold more than
// branchFactor entries.
func (m *Map[K, V]) fixUnderflow(n *node[K, V], i int) {
	sibIdx := i + 1
	if sibIdx >= len(n.children) {
		sibIdx = i - 1
	}
	left, right := i, sibIdx
	if left > right {
		left, right = right, left
	}
	lref, rref := n.children[left], n.children[right]
	ln, rn := m.forest.node(lref), m.forest.node(rref)

	if ln.leaf {
		merged := append(append([]K{}, ln.keys...), rn.keys...)
		mergedV := append(append([]V{}, ln.values...), rn.values...)
		ln.keys, ln.values = merged, mergedV
	} else {
		sepKey := n.keys[left]
		merged := append(append(append([]K{}, ln.keys...), sepKey), rn.keys...)
		mergedC := append(append([]nodeRef{}, ln.children...), rn.children...)
		ln.keys, ln.children = merged, mergedC
	}
	n.keys = removeAt(n.keys, left)
	n.children = removeAt(n.children, right)
}

// Iter calls yield for every (key, value) pair in ascending key order.
func (m *Map[K, V]) Iter(yield func(K, V) bool) {
	if !m.hasRoot {
		return
	}
	m.iter(m.root, yield)
}

func (m *Map[K, V]) iter(r nodeRef, yield func(K, V) bool) bool {
	n := m.forest.node(r)
	if n.leaf {
		for i, k := range n.keys {
			if !yield(k, n.values[i]) {
				return false
			}
		}
		return true
	}
	for _, c := range n.children {
		if !m.iter(c, yield) {
			return false
		}
	}
	return true
}

// Set is an ordered set built on the same pooled B+-tree, with struct{}
// values.
type Set[K Ordered] struct {
	m Map[K, struct{}]
}

// NewSet creates an empty set backed by forest.
func NewSet[K Ordered](forest *Forest[K, struct{}]) Set[K] {
	return Set[K]{m: NewMap(forest)}
}

// Insert adds k to the set.
func (s *Set[K]) Insert(k K) { s.m.Insert(k, struct{}{}) }

// Contains reports whether k is a member.
func (s *Set[K]) Contains(k K) bool { _, ok := s.m.Get(k); return ok }

// Remove deletes k from the set.
func (s *Set[K]) Remove(k K) { s.m.Remove(k) }

// Iter calls yield for every member in ascending order.
func (s *Set[K]) Iter(yield func(K) bool) {
	s.m.Iter(func(k K, _ struct{}) bool { return yield(k) })
}

func search[K Ordered](keys []K, k K) int {
	lo, hi := 0, len(keys)
	for lo < hi {
		mid := (lo + hi) / 2
		if keys[mid] < k {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

func insertAt[T any](s []T, i int, v T) []T {
	s = append(s, v)
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}

func removeAt[T any](s []T, i int) []T {
	copy(s[i:], s[i+1:])
	return s[:len(s)-1]
}
