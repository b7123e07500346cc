// Package trie implements an immutable hash array mapped trie.
//
// Every update returns a new Map sharing all untouched nodes with the map
// it was derived from. Maps are safe for concurrent readers without
// synchronization since no node is ever modified once published.
package trie

import (
	"hash/maphash"
	"iter"
	"math/bits"
)

const (
	bitsPerLevel = 5
	levelMask    = 1<<bitsPerLevel - 1
)

var seed = maphash.MakeSeed()

type Map[K comparable, V any] struct {
	root *node[K, V]
}

func Empty[K comparable, V any]() Map[K, V] {
	var m Map[K, V]
	return m
}

// Same reports whether both maps share the same root.
func (m Map[K, V]) Same(other Map[K, V]) bool {
	return m.root == other.root
}

func (m Map[K, V]) Empty() bool {
	return m.root == nil || len(m.root.slots) == 0
}

func (m Map[K, V]) Get(key K) (V, bool) {
	var (
		hash = maphash.Comparable(seed, key)
		curr = m.root
	)
	for shift := uint(0); curr != nil; shift += bitsPerLevel {
		bit := bitAt(hash, shift)
		if curr.bitmap&bit == 0 {
			break
		}
		s := curr.slots[curr.index(bit)]
		if s.child != nil {
			curr = s.child
			continue
		}
		if s.leaf.hash == hash {
			return s.leaf.get(key)
		}
		break
	}
	var zero V
	return zero, false
}

// Put returns a map holding value for key. The boolean is true when key was
// not present in m.
func (m Map[K, V]) Put(key K, value V) (Map[K, V], bool) {
	hash := maphash.Comparable(seed, key)
	root, added := m.root.put(hash, 0, key, value)
	return Map[K, V]{root: root}, added
}

// Remove returns a map without key. When key is absent, m is returned as is
// and the boolean is false.
func (m Map[K, V]) Remove(key K) (Map[K, V], bool) {
	if m.root == nil {
		return m, false
	}
	hash := maphash.Comparable(seed, key)
	root, removed := m.root.remove(hash, 0, key)
	if !removed {
		return m, false
	}
	return Map[K, V]{root: root}, true
}

// All yields every entry of the map. The order is unspecified.
func (m Map[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		if m.root != nil {
			m.root.all(yield)
		}
	}
}

type pair[K comparable, V any] struct {
	key   K
	value V
}

type leaf[K comparable, V any] struct {
	hash  uint64
	pairs []pair[K, V]
}

func (l *leaf[K, V]) get(key K) (V, bool) {
	for _, p := range l.pairs {
		if p.key == key {
			return p.value, true
		}
	}
	var zero V
	return zero, false
}

func (l *leaf[K, V]) with(key K, value V) (*leaf[K, V], bool) {
	x := leaf[K, V]{
		hash:  l.hash,
		pairs: make([]pair[K, V], len(l.pairs), len(l.pairs)+1),
	}
	copy(x.pairs, l.pairs)
	for i := range x.pairs {
		if x.pairs[i].key == key {
			x.pairs[i].value = value
			return &x, false
		}
	}
	x.pairs = append(x.pairs, pair[K, V]{key: key, value: value})
	return &x, true
}

func (l *leaf[K, V]) without(key K) (*leaf[K, V], bool) {
	for i := range l.pairs {
		if l.pairs[i].key != key {
			continue
		}
		if len(l.pairs) == 1 {
			return nil, true
		}
		x := leaf[K, V]{
			hash:  l.hash,
			pairs: make([]pair[K, V], 0, len(l.pairs)-1),
		}
		x.pairs = append(x.pairs, l.pairs[:i]...)
		x.pairs = append(x.pairs, l.pairs[i+1:]...)
		return &x, true
	}
	return l, false
}

type slot[K comparable, V any] struct {
	child *node[K, V]
	leaf  *leaf[K, V]
}

type node[K comparable, V any] struct {
	bitmap uint32
	slots  []slot[K, V]
}

func (n *node[K, V]) index(bit uint32) int {
	return bits.OnesCount32(n.bitmap & (bit - 1))
}

func (n *node[K, V]) clone() *node[K, V] {
	x := node[K, V]{
		bitmap: n.bitmap,
		slots:  make([]slot[K, V], len(n.slots)),
	}
	copy(x.slots, n.slots)
	return &x
}

func (n *node[K, V]) put(hash uint64, shift uint, key K, value V) (*node[K, V], bool) {
	if n == nil {
		n = &node[K, V]{}
	}
	var (
		bit = bitAt(hash, shift)
		ix  = n.index(bit)
	)
	if n.bitmap&bit == 0 {
		x := node[K, V]{
			bitmap: n.bitmap | bit,
			slots:  make([]slot[K, V], 0, len(n.slots)+1),
		}
		l := leaf[K, V]{
			hash:  hash,
			pairs: []pair[K, V]{{key: key, value: value}},
		}
		x.slots = append(x.slots, n.slots[:ix]...)
		x.slots = append(x.slots, slot[K, V]{leaf: &l})
		x.slots = append(x.slots, n.slots[ix:]...)
		return &x, true
	}
	var (
		curr  = n.slots[ix]
		x     = n.clone()
		added bool
	)
	switch {
	case curr.child != nil:
		x.slots[ix].child, added = curr.child.put(hash, shift+bitsPerLevel, key, value)
	case curr.leaf.hash == hash:
		x.slots[ix].leaf, added = curr.leaf.with(key, value)
	default:
		child := &node[K, V]{
			bitmap: bitAt(curr.leaf.hash, shift+bitsPerLevel),
			slots:  []slot[K, V]{{leaf: curr.leaf}},
		}
		x.slots[ix].leaf = nil
		x.slots[ix].child, added = child.put(hash, shift+bitsPerLevel, key, value)
	}
	return x, added
}

func (n *node[K, V]) remove(hash uint64, shift uint, key K) (*node[K, V], bool) {
	bit := bitAt(hash, shift)
	if n.bitmap&bit == 0 {
		return n, false
	}
	var (
		ix   = n.index(bit)
		curr = n.slots[ix]
	)
	if curr.child != nil {
		child, removed := curr.child.remove(hash, shift+bitsPerLevel, key)
		if !removed {
			return n, false
		}
		switch {
		case len(child.slots) == 0:
			return n.drop(ix, bit), true
		case len(child.slots) == 1 && child.slots[0].leaf != nil:
			x := n.clone()
			x.slots[ix] = child.slots[0]
			return x, true
		default:
			x := n.clone()
			x.slots[ix].child = child
			return x, true
		}
	}
	if curr.leaf.hash != hash {
		return n, false
	}
	l, removed := curr.leaf.without(key)
	if !removed {
		return n, false
	}
	if l == nil {
		return n.drop(ix, bit), true
	}
	x := n.clone()
	x.slots[ix].leaf = l
	return x, true
}

func (n *node[K, V]) drop(ix int, bit uint32) *node[K, V] {
	x := node[K, V]{
		bitmap: n.bitmap &^ bit,
		slots:  make([]slot[K, V], 0, len(n.slots)-1),
	}
	x.slots = append(x.slots, n.slots[:ix]...)
	x.slots = append(x.slots, n.slots[ix+1:]...)
	return &x
}

func (n *node[K, V]) all(yield func(K, V) bool) bool {
	for _, s := range n.slots {
		if s.child != nil {
			if !s.child.all(yield) {
				return false
			}
			continue
		}
		for _, p := range s.leaf.pairs {
			if !yield(p.key, p.value) {
				return false
			}
		}
	}
	return true
}

func bitAt(hash uint64, shift uint) uint32 {
	return 1 << ((hash >> shift) & levelMask)
}
