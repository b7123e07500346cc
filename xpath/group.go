package xpath

import (
	"slices"
)

type group struct {
	key   Item
	items Sequence
}

// GroupIterator walks the groups built by a for-each-group expression in
// the order of their first item.
type GroupIterator struct {
	groups []group
	index  int
}

// GroupBy splits the items of population into groups sharing a grouping
// key. keys computes the grouping keys of an item given its position; an
// item with several keys belongs to several groups.
func GroupBy(population Value, keys func(Item, int) (Sequence, error)) (*GroupIterator, error) {
	var (
		iter = GroupIterator{index: -1}
		seen = make(map[MatchKey]int)
		pos  int
	)
	for item, err := range Items(population) {
		if err != nil {
			return nil, err
		}
		pos++
		ks, err := keys(item, pos)
		if err != nil {
			return nil, err
		}
		var added []int
		for _, k := range ks {
			mk, err := MatchKeyOf(k)
			if err != nil {
				return nil, err
			}
			ix, ok := seen[mk]
			if !ok {
				ix = len(iter.groups)
				seen[mk] = ix
				iter.groups = append(iter.groups, group{key: k})
			}
			if slices.Contains(added, ix) {
				continue
			}
			added = append(added, ix)
			iter.groups[ix].items = append(iter.groups[ix].items, item)
		}
	}
	return &iter, nil
}

func (g *GroupIterator) Next() bool {
	if g.index+1 >= len(g.groups) {
		g.index = len(g.groups)
		return false
	}
	g.index++
	return true
}

func (g *GroupIterator) valid() bool {
	return g.index >= 0 && g.index < len(g.groups)
}

// First returns the first item of the current group.
func (g *GroupIterator) First() Item {
	if !g.valid() {
		return nil
	}
	return g.groups[g.index].items.First()
}

func (g *GroupIterator) Current() Sequence {
	if !g.valid() {
		return EmptySequence
	}
	return g.groups[g.index].items
}

func (g *GroupIterator) CurrentKey() Item {
	if !g.valid() {
		return nil
	}
	return g.groups[g.index].key
}

// Position is the 1-based position of the current group.
func (g *GroupIterator) Position() int {
	return g.index + 1
}

func (g *GroupIterator) Len() int {
	return len(g.groups)
}

// forEachGroup evaluates body once per group with the first item of the
// group as context item.
func (p *Program) forEachGroup(ctx *Context, n *Node, body func(*Context) Iterator) Iterator {
	population, err := p.value(ctx, n.Operands[0])
	if err != nil {
		return errorIterator{err: err}
	}
	var last int
	if g, ok := population.(Grounded); ok {
		last = g.Len()
	}
	groups, err := GroupBy(population, func(item Item, pos int) (Sequence, error) {
		v, err := p.value(ctx.WithFocus(item, pos, last), n.Operands[1])
		if err != nil {
			return nil, err
		}
		return AtomizeValue(v)
	})
	if err != nil {
		return errorIterator{err: err}
	}
	return &concatIterator{
		next: func() (Iterator, error) {
			if !groups.Next() {
				return nil, nil
			}
			cur := *groups
			c := ctx.WithFocus(cur.First(), cur.Position(), cur.Len()).WithGroup(&cur)
			return body(c), nil
		},
	}
}
