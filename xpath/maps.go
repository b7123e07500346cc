package xpath

import (
	"iter"
	"math"
	"sync/atomic"

	"github.com/midbel/xcore/trie"
	"github.com/midbel/xcore/xml"
)

type keyClass uint8

const (
	classString keyClass = iota
	classInteger
	classDouble
	classNaN
	classBoolean
)

// MatchKey is the normalized form of an atomic value used to compare map
// keys. Values equal in the value space share the same match key: integral
// numbers whatever their type, strings and untyped values.
type MatchKey struct {
	class keyClass
	str   string
	num   float64
	int   int64
}

// MatchKeyOf computes the match key of an atomic item. Nodes are atomized
// first.
func MatchKeyOf(item Item) (MatchKey, error) {
	if n := item.Node(); n != nil {
		return MatchKey{class: classString, str: n.Value()}, nil
	}
	switch item.Type() {
	case UString, UUntyped, UAnyURI:
		return MatchKey{class: classString, str: StringValue(item)}, nil
	case UBoolean:
		var i int64
		if item.Value().(bool) {
			i = 1
		}
		return MatchKey{class: classBoolean, int: i}, nil
	case UInteger:
		return MatchKey{class: classInteger, int: item.Value().(int64)}, nil
	case UDouble:
		f := item.Value().(float64)
		switch {
		case math.IsNaN(f):
			return MatchKey{class: classNaN}, nil
		case f == math.Trunc(f) && math.Abs(f) < 1<<63:
			return MatchKey{class: classInteger, int: int64(f)}, nil
		default:
			return MatchKey{class: classDouble, num: f}, nil
		}
	default:
		return MatchKey{}, typeError(CodeType, "%s can not be used as a map key", item.Type())
	}
}

// MapItem is the interface shared by the map representations. Updates
// return a new map and never modify the receiver.
type MapItem interface {
	Item
	Get(Item) (Grounded, bool)
	Put(Item, Grounded) (MapItem, error)
	// Remove reports false and returns the receiver itself when the key is
	// not present.
	Remove(Item) (MapItem, bool)
	Size() int
	All() iter.Seq2[Item, Grounded]
	KeyType() UType
	ValueType() UType
}

type entry struct {
	key   Item
	value Grounded
}

type typeSummary struct {
	key   UType
	value UType
}

// HashTrieMap is a persistent map built on a hash array mapped trie. Maps
// derived from one another share the parts of the trie left untouched.
type HashTrieMap struct {
	entries trie.Map[MatchKey, entry]

	// size is the number of entries plus one, zero when not yet known.
	size  atomic.Int64
	types atomic.Pointer[typeSummary]
}

func EmptyMap() *HashTrieMap {
	m := HashTrieMap{
		entries: trie.Empty[MatchKey, entry](),
	}
	m.size.Store(1)
	m.types.Store(&typeSummary{})
	return &m
}

// SingletonMap creates a map with a single entry.
func SingletonMap(key Item, value Grounded) (*HashTrieMap, error) {
	m, err := EmptyMap().Put(key, value)
	if err != nil {
		return nil, err
	}
	return m.(*HashTrieMap), nil
}

func (_ *HashTrieMap) Node() xml.Node {
	return nil
}

func (m *HashTrieMap) Value() any {
	return m
}

func (_ *HashTrieMap) Atomic() bool {
	return false
}

func (_ *HashTrieMap) Type() UType {
	return UMap
}

func (m *HashTrieMap) Get(key Item) (Grounded, bool) {
	k, err := MatchKeyOf(key)
	if err != nil {
		return nil, false
	}
	e, ok := m.entries.Get(k)
	if !ok {
		return nil, false
	}
	return e.value, true
}

func (m *HashTrieMap) Put(key Item, value Grounded) (MapItem, error) {
	if key.Node() != nil {
		xs, err := Atomize(key)
		if err != nil {
			return nil, err
		}
		key = xs[0]
	}
	k, err := MatchKeyOf(key)
	if err != nil {
		return nil, err
	}
	entries, added := m.entries.Put(k, entry{key: key, value: value})
	res := HashTrieMap{
		entries: entries,
	}
	if size := m.size.Load(); size > 0 {
		if added {
			size++
		}
		res.size.Store(size)
	}
	if ts := m.types.Load(); ts != nil {
		res.types.Store(&typeSummary{
			key:   ts.key | key.Type(),
			value: ts.value | valueType(value),
		})
	}
	return &res, nil
}

func (m *HashTrieMap) Remove(key Item) (MapItem, bool) {
	k, err := MatchKeyOf(key)
	if err != nil {
		return m, false
	}
	entries, removed := m.entries.Remove(k)
	if !removed {
		return m, false
	}
	res := HashTrieMap{
		entries: entries,
	}
	if size := m.size.Load(); size > 0 {
		res.size.Store(size - 1)
	}
	return &res, true
}

// Size counts the entries of the map on first use.
func (m *HashTrieMap) Size() int {
	if size := m.size.Load(); size > 0 {
		return int(size - 1)
	}
	var size int64
	for range m.entries.All() {
		size++
	}
	m.size.Store(size + 1)
	return int(size)
}

// All yields the entries of the map in no particular order.
func (m *HashTrieMap) All() iter.Seq2[Item, Grounded] {
	return func(yield func(Item, Grounded) bool) {
		for _, e := range m.entries.All() {
			if !yield(e.key, e.value) {
				return
			}
		}
	}
}

func (m *HashTrieMap) KeyType() UType {
	return m.summary().key
}

func (m *HashTrieMap) ValueType() UType {
	return m.summary().value
}

// summary returns the type summary of the map, recomputing it after a
// removal.
func (m *HashTrieMap) summary() *typeSummary {
	if ts := m.types.Load(); ts != nil {
		return ts
	}
	var ts typeSummary
	for _, e := range m.entries.All() {
		ts.key |= e.key.Type()
		ts.value |= valueType(e.value)
	}
	m.types.Store(&ts)
	return &ts
}

func valueType(v Grounded) UType {
	var u UType
	for i := 0; i < v.Len(); i++ {
		u |= v.ItemAt(i).Type()
	}
	return u
}

// Keys returns the keys of a map as a sequence.
func Keys(m MapItem) Sequence {
	var seq Sequence
	for k := range m.All() {
		seq = append(seq, k)
	}
	return seq
}

func (p *Program) mapConstructor(ctx *Context, n *Node) (Item, error) {
	var m MapItem = EmptyMap()
	for i := 0; i < len(n.Operands); i += 2 {
		key, err := p.operandAtom(ctx, n.Operands[i], OpNone)
		if err != nil {
			return nil, err
		}
		if key == nil {
			return nil, typeError(CodeType, "map key must be a single atomic value")
		}
		value, err := p.grounded(ctx, n.Operands[i+1])
		if err != nil {
			return nil, err
		}
		if _, ok := m.Get(key); ok {
			return nil, dynamicError("XQDY0137", "duplicate key %s in map constructor", StringValue(key))
		}
		if m, err = m.Put(key, value); err != nil {
			return nil, err
		}
	}
	return m, nil
}
