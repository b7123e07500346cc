package xpath

import (
	"iter"

	"github.com/midbel/xcore/xml"
)

// KeyIndex is a sorted index of string keys maintained outside of the map,
// such as the index of an xsl:key.
type KeyIndex interface {
	Lookup(string) (Grounded, bool)
	// Keys yields the keys between min and max inclusive in codepoint
	// order.
	Keys(min, max string) iter.Seq[string]
}

// RangeKeyMap is a read only view over the part of a key index whose keys
// fall between Min and Max. Updating the view first copies it into a
// HashTrieMap.
type RangeKeyMap struct {
	index KeyIndex
	min   string
	max   string
}

func NewRangeKeyMap(index KeyIndex, min, max string) *RangeKeyMap {
	return &RangeKeyMap{
		index: index,
		min:   min,
		max:   max,
	}
}

func (_ *RangeKeyMap) Node() xml.Node {
	return nil
}

func (m *RangeKeyMap) Value() any {
	return m
}

func (_ *RangeKeyMap) Atomic() bool {
	return false
}

func (_ *RangeKeyMap) Type() UType {
	return UMap
}

func (m *RangeKeyMap) inRange(key string) bool {
	return key >= m.min && key <= m.max
}

func (m *RangeKeyMap) lookup(key Item) (string, bool) {
	if key.Node() == nil && key.Type()&UStringLike == 0 {
		return "", false
	}
	str := StringValue(key)
	return str, m.inRange(str)
}

func (m *RangeKeyMap) Get(key Item) (Grounded, bool) {
	str, ok := m.lookup(key)
	if !ok {
		return nil, false
	}
	return m.index.Lookup(str)
}

func (m *RangeKeyMap) Put(key Item, value Grounded) (MapItem, error) {
	res, err := m.promote()
	if err != nil {
		return nil, err
	}
	return res.Put(key, value)
}

func (m *RangeKeyMap) Remove(key Item) (MapItem, bool) {
	if _, ok := m.Get(key); !ok {
		return m, false
	}
	res, err := m.promote()
	if err != nil {
		return m, false
	}
	return res.Remove(key)
}

func (m *RangeKeyMap) Size() int {
	var size int
	for range m.index.Keys(m.min, m.max) {
		size++
	}
	return size
}

func (m *RangeKeyMap) All() iter.Seq2[Item, Grounded] {
	return func(yield func(Item, Grounded) bool) {
		for k := range m.index.Keys(m.min, m.max) {
			v, ok := m.index.Lookup(k)
			if !ok {
				continue
			}
			if !yield(String(k), v) {
				return
			}
		}
	}
}

func (_ *RangeKeyMap) KeyType() UType {
	return UString
}

func (m *RangeKeyMap) ValueType() UType {
	var u UType
	for _, v := range m.All() {
		u |= valueType(v)
	}
	return u
}

// promote copies the view into a persistent map. Keys of the view are
// strings so the copy only fails if the index is broken, in which case the
// map is left untouched.
func (m *RangeKeyMap) promote() (*HashTrieMap, error) {
	res := EmptyMap()
	for k, v := range m.All() {
		x, err := res.Put(k, v)
		if err != nil {
			return nil, err
		}
		res = x.(*HashTrieMap)
	}
	return res, nil
}
