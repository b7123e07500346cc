package xpath

import (
	"iter"
	"sync/atomic"
)

// Iterator produces the items of a sequence one at a time. Next returns a
// nil item once the sequence is exhausted.
type Iterator interface {
	Next() (Item, error)
}

// Value is the result of an evaluation. It can be iterated several times.
type Value interface {
	Iterate() Iterator
}

// Grounded values are fully materialized and support random access.
type Grounded interface {
	Value
	Len() int
	ItemAt(int) Item
	Subsequence(start, length int) Grounded
}

// Items adapts a value for range loops. Iteration stops after the first
// error.
func Items(v Value) iter.Seq2[Item, error] {
	return func(yield func(Item, error) bool) {
		it := v.Iterate()
		for {
			item, err := it.Next()
			if err != nil {
				yield(nil, err)
				return
			}
			if item == nil || !yield(item, nil) {
				return
			}
		}
	}
}

// Ground returns a grounded representation of v, materializing it if
// needed.
func Ground(v Value) (Grounded, error) {
	switch v := v.(type) {
	case Grounded:
		return v, nil
	case interface{ Ground() (Grounded, error) }:
		return v.Ground()
	default:
		return Materialize(v.Iterate())
	}
}

func Materialize(it Iterator) (Sequence, error) {
	var seq Sequence
	for {
		item, err := it.Next()
		if err != nil {
			return nil, err
		}
		if item == nil {
			return seq, nil
		}
		seq = append(seq, item)
	}
}

// Head returns the first item of v or nil if v is empty.
func Head(v Value) (Item, error) {
	if g, ok := v.(Grounded); ok {
		if g.Len() == 0 {
			return nil, nil
		}
		return g.ItemAt(0), nil
	}
	return v.Iterate().Next()
}

type Sequence []Item

var EmptySequence = Sequence(nil)

func Singleton(value any) Sequence {
	it, err := ItemOf(value)
	if err != nil {
		return nil
	}
	return Sequence{it}
}

func (s Sequence) Iterate() Iterator {
	return &groundedIterator{value: s}
}

func (s Sequence) Len() int {
	return len(s)
}

func (s Sequence) ItemAt(i int) Item {
	if i < 0 || i >= len(s) {
		return nil
	}
	return s[i]
}

// Subsequence shares the storage of s.
func (s Sequence) Subsequence(start, length int) Grounded {
	start = max(start, 0)
	if start >= len(s) || length <= 0 {
		return EmptySequence
	}
	end := min(start+length, len(s))
	return s[start:end:end]
}

func (s Sequence) First() Item {
	if len(s) == 0 {
		return nil
	}
	return s[0]
}

func (s Sequence) Empty() bool {
	return len(s) == 0
}

func (s *Sequence) Append(items ...Item) {
	*s = append(*s, items...)
}

func (s *Sequence) Concat(other Sequence) {
	*s = append(*s, other...)
}

// IntegerRange is the sequence of integers from Start to End inclusive.
type IntegerRange struct {
	Start int64
	End   int64
}

func (r IntegerRange) Iterate() Iterator {
	return &groundedIterator{value: r}
}

func (r IntegerRange) Len() int {
	if r.End < r.Start {
		return 0
	}
	return int(r.End-r.Start) + 1
}

func (r IntegerRange) ItemAt(i int) Item {
	if i < 0 || i >= r.Len() {
		return nil
	}
	return Integer(r.Start + int64(i))
}

func (r IntegerRange) Subsequence(start, length int) Grounded {
	start = max(start, 0)
	if start >= r.Len() || length <= 0 {
		return EmptySequence
	}
	end := min(r.Start+int64(start)+int64(length)-1, r.End)
	return makeRange(r.Start+int64(start), end)
}

// Tail returns the items of the range from the 1-based position start
// without materializing them.
func (r IntegerRange) Tail(start int64) Grounded {
	return makeRange(r.Start+start-1, r.End)
}

func makeRange(start, end int64) Grounded {
	switch {
	case start > end:
		return EmptySequence
	case start == end:
		return Sequence{Integer(start)}
	default:
		return IntegerRange{Start: start, End: end}
	}
}

var chainCopies atomic.Int64

type chainBuffer struct {
	items []Item
}

// Chain is an append only sequence. Chains derived from one another share
// the same buffer as long as each append happens at the end of the buffer;
// appending to an older chain copies it first.
type Chain struct {
	buf *chainBuffer
	n   int
}

func NewChain(items ...Item) *Chain {
	buf := chainBuffer{
		items: append([]Item(nil), items...),
	}
	return &Chain{buf: &buf, n: len(buf.items)}
}

func (c *Chain) Append(items ...Item) *Chain {
	if len(items) == 0 {
		return c
	}
	if c.buf != nil && len(c.buf.items) == c.n {
		c.buf.items = append(c.buf.items, items...)
		return &Chain{buf: c.buf, n: len(c.buf.items)}
	}
	chainCopies.Add(1)
	buf := chainBuffer{
		items: make([]Item, c.n, c.n+len(items)),
	}
	if c.buf != nil {
		copy(buf.items, c.buf.items[:c.n])
	}
	buf.items = append(buf.items, items...)
	return &Chain{buf: &buf, n: len(buf.items)}
}

func (c *Chain) AppendValue(v Grounded) *Chain {
	if s, ok := v.(Sequence); ok {
		return c.Append(s...)
	}
	items := make([]Item, 0, v.Len())
	for i := 0; i < v.Len(); i++ {
		items = append(items, v.ItemAt(i))
	}
	return c.Append(items...)
}

func (c *Chain) Iterate() Iterator {
	return &groundedIterator{value: c}
}

func (c *Chain) Len() int {
	return c.n
}

func (c *Chain) ItemAt(i int) Item {
	if i < 0 || i >= c.n {
		return nil
	}
	return c.buf.items[i]
}

func (c *Chain) Subsequence(start, length int) Grounded {
	if c.buf == nil {
		return EmptySequence
	}
	return Sequence(c.buf.items[:c.n:c.n]).Subsequence(start, length)
}

type groundedIterator struct {
	value Grounded
	pos   int
}

func (i *groundedIterator) Next() (Item, error) {
	if i.pos >= i.value.Len() {
		return nil, nil
	}
	item := i.value.ItemAt(i.pos)
	i.pos++
	return item, nil
}

type emptyIterator struct{}

func (_ emptyIterator) Next() (Item, error) {
	return nil, nil
}

type errorIterator struct {
	err error
}

func (i errorIterator) Next() (Item, error) {
	return nil, i.err
}

type funcIterator func() (Item, error)

func (f funcIterator) Next() (Item, error) {
	return f()
}

// lazyValue turns a function producing an iterator into a value.
type lazyValue func() Iterator

func (f lazyValue) Iterate() Iterator {
	return f()
}

// concatIterator reads the iterators produced by next until it returns nil.
type concatIterator struct {
	curr Iterator
	next func() (Iterator, error)
}

func (i *concatIterator) Next() (Item, error) {
	for {
		if i.curr == nil {
			it, err := i.next()
			if err != nil || it == nil {
				return nil, err
			}
			i.curr = it
		}
		item, err := i.curr.Next()
		if err != nil {
			return nil, err
		}
		if item != nil {
			return item, nil
		}
		i.curr = nil
	}
}
