package xslt

import (
	"iter"
	"slices"

	"github.com/midbel/xcore/xml"
	"github.com/midbel/xcore/xpath"
)

// KeyTable is the index of an xsl:key over one document. Keys are the
// string values of the atomized result of the use expression evaluated on
// every node matched by the pattern.
//
// Keys are compared with the codepoint collation.
type KeyTable struct {
	Name string

	keys  []string
	index map[string]xpath.Sequence
}

func NewKeyTable(ctx *xpath.Context, name string, match Pattern, use *xpath.Program, doc xml.Node) (*KeyTable, error) {
	nodes, err := Select(ctx, doc, match)
	if err != nil {
		return nil, err
	}
	k := KeyTable{
		Name:  name,
		index: make(map[string]xpath.Sequence),
	}
	for _, n := range nodes {
		seq, err := use.Evaluate(focusOn(ctx, use, n))
		if err != nil {
			return nil, err
		}
		for _, it := range seq {
			values, err := xpath.Atomize(it)
			if err != nil {
				return nil, err
			}
			for _, v := range values {
				k.add(xpath.StringValue(v), n)
			}
		}
	}
	k.keys = make([]string, 0, len(k.index))
	for key := range k.index {
		k.keys = append(k.keys, key)
	}
	slices.Sort(k.keys)
	return &k, nil
}

func (k *KeyTable) add(key string, item xpath.Item) {
	list := k.index[key]
	if n := len(list); n > 0 && xpath.Identical(list[n-1], item) {
		return
	}
	k.index[key] = append(list, item)
}

func (k *KeyTable) Len() int {
	return len(k.keys)
}

func (k *KeyTable) Lookup(key string) (xpath.Grounded, bool) {
	seq, ok := k.index[key]
	return seq, ok
}

// Find returns the nodes having at least one of the given keys in document
// order and without duplicates.
func (k *KeyTable) Find(keys ...string) xpath.Sequence {
	if len(keys) == 1 {
		return slices.Clone(k.index[keys[0]])
	}
	var (
		seq  xpath.Sequence
		seen = make(map[xml.Node]struct{})
	)
	for _, key := range keys {
		for _, it := range k.index[key] {
			if _, ok := seen[it.Node()]; ok {
				continue
			}
			seen[it.Node()] = struct{}{}
			seq = append(seq, it)
		}
	}
	slices.SortFunc(seq, func(a, b xpath.Item) int {
		return xml.Compare(a.Node(), b.Node())
	})
	return seq
}

func (k *KeyTable) Keys(min, max string) iter.Seq[string] {
	return func(yield func(string) bool) {
		i, _ := slices.BinarySearch(k.keys, min)
		for ; i < len(k.keys) && k.keys[i] <= max; i++ {
			if !yield(k.keys[i]) {
				return
			}
		}
	}
}

// RangeMap returns a map view of the entries whose key is between min and
// max inclusive.
func (k *KeyTable) RangeMap(min, max string) *xpath.RangeKeyMap {
	return xpath.NewRangeKeyMap(k, min, max)
}
