package xpath

import (
	"slices"
)

// IndexedSequence is a grounded value able to answer predicates of the form
// $seq[key = value] by a keyed lookup. An index is built per key
// expression on first use.
type IndexedSequence struct {
	Sequence

	prog    *Program
	indexes map[NodeID]map[MatchKey][]int
}

func NewIndexedSequence(prog *Program, seq Sequence) *IndexedSequence {
	return &IndexedSequence{
		Sequence: seq,
		prog:     prog,
		indexes:  make(map[NodeID]map[MatchKey][]int),
	}
}

func (s *IndexedSequence) index(ctx *Context, key NodeID) (map[MatchKey][]int, error) {
	if ix, ok := s.indexes[key]; ok {
		return ix, nil
	}
	ix := make(map[MatchKey][]int)
	for i, item := range s.Sequence {
		v, err := s.prog.value(ctx.WithFocus(item, i+1, len(s.Sequence)), key)
		if err != nil {
			return nil, err
		}
		xs, err := AtomizeValue(v)
		if err != nil {
			return nil, err
		}
		for _, x := range xs {
			if x.Type()&UStringLike == 0 {
				continue
			}
			k, _ := MatchKeyOf(x)
			if list := ix[k]; len(list) == 0 || list[len(list)-1] != i {
				ix[k] = append(list, i)
			}
		}
	}
	s.indexes[key] = ix
	return ix, nil
}

// Lookup returns, in order, the items for which the key expression
// evaluates to one of the given string values.
func (s *IndexedSequence) Lookup(ctx *Context, key NodeID, values Sequence) (Sequence, error) {
	ix, err := s.index(ctx, key)
	if err != nil {
		return nil, err
	}
	var pos []int
	for _, v := range values {
		k, err := MatchKeyOf(v)
		if err != nil {
			return nil, err
		}
		pos = append(pos, ix[k]...)
	}
	slices.Sort(pos)
	pos = slices.Compact(pos)
	res := make(Sequence, len(pos))
	for i := range pos {
		res[i] = s.Sequence[pos[i]]
	}
	return res, nil
}

// indexedFilter evaluates $x[key = value] through the index of the value
// bound to $x when it is indexed. The comparison must be between strings:
// the key depends on the focus and the value does not.
func (p *Program) indexedFilter(ctx *Context, base, pred NodeID) (Iterator, bool) {
	var (
		b = p.tree.Node(base)
		n = p.tree.Node(pred)
	)
	if b.Kind != KindVarRef || n.Kind != KindCompare || n.Op != OpEq {
		return nil, false
	}
	key, value := n.Operands[0], n.Operands[1]
	if p.tree.Dependencies(key).Has(DepPosition|DepLast) || p.tree.Dependencies(value).Has(DepFocus) {
		return nil, false
	}
	if !(UAnyNode | UStringLike).Subsumes(p.tree.ItemType(key)) || !UStringLike.Subsumes(p.tree.ItemType(value)) {
		return nil, false
	}
	v, err := p.variable(ctx, base)
	if err != nil {
		return errorIterator{err: err}, true
	}
	if m, ok := v.(*MemoClosure); ok && m.refs >= RefFiltered {
		if v, err = m.Ground(); err != nil {
			return errorIterator{err: err}, true
		}
	}
	seq, ok := v.(*IndexedSequence)
	if !ok {
		return nil, false
	}
	values, err := p.atomized(ctx, value)
	if err != nil {
		return errorIterator{err: err}, true
	}
	for _, x := range values {
		if x.Type()&UStringLike == 0 {
			return nil, false
		}
	}
	res, err := seq.Lookup(ctx, key, values)
	if err != nil {
		return errorIterator{err: err}, true
	}
	return res.Iterate(), true
}
