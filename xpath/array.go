package xpath

import (
	"iter"

	"github.com/midbel/xcore/xml"
)

// ArrayItem is an immutable array whose members are sequences.
type ArrayItem struct {
	members []Grounded
}

func NewArray(members ...Grounded) *ArrayItem {
	return &ArrayItem{
		members: members,
	}
}

func (_ *ArrayItem) Node() xml.Node {
	return nil
}

func (a *ArrayItem) Value() any {
	return a
}

func (_ *ArrayItem) Atomic() bool {
	return false
}

func (_ *ArrayItem) Type() UType {
	return UArray
}

func (a *ArrayItem) Size() int {
	return len(a.members)
}

// Member returns the member at the 1-based position i.
func (a *ArrayItem) Member(i int) (Grounded, bool) {
	if i < 1 || i > len(a.members) {
		return nil, false
	}
	return a.members[i-1], true
}

// Append returns a new array with value added as last member.
func (a *ArrayItem) Append(value Grounded) *ArrayItem {
	members := make([]Grounded, len(a.members), len(a.members)+1)
	copy(members, a.members)
	return NewArray(append(members, value)...)
}

func (a *ArrayItem) Members() iter.Seq[Grounded] {
	return func(yield func(Grounded) bool) {
		for _, m := range a.members {
			if !yield(m) {
				return
			}
		}
	}
}
