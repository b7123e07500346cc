package xpath

// Closure is an expression waiting to be evaluated together with the parts
// of the dynamic context it depends on. It is evaluated each time it is
// iterated.
type Closure struct {
	exec     *execution
	expr     NodeID
	snap     snapshot
	listener ErrorListener
}

func newClosure(ctx *Context, expr NodeID) *Closure {
	deps := ctx.prog.tree.Dependencies(expr)
	return &Closure{
		exec:     ctx.exec,
		expr:     expr,
		snap:     capture(ctx, deps),
		listener: ctx.listener,
	}
}

func (c *Closure) context() *Context {
	return c.snap.restore(c.exec, c.listener)
}

func (c *Closure) Iterate() Iterator {
	return c.exec.prog.iterate(c.context(), c.expr)
}

type memoState int8

const (
	memoUnread memoState = iota
	memoPartial
	memoAll
)

// MemoClosure is a closure remembering the items it produces. Consumers
// iterating it several times only evaluate the expression once.
type MemoClosure struct {
	Closure

	refs    int
	state   memoState
	items   Sequence
	input   Iterator
	err     error
	reading bool
	indexed *IndexedSequence
}

func newMemoClosure(ctx *Context, expr NodeID, refs int) *MemoClosure {
	c := newClosure(ctx, expr)
	return &MemoClosure{
		Closure: *c,
		refs:    refs,
	}
}

func (m *MemoClosure) Iterate() Iterator {
	if m.state == memoAll {
		return m.items.Iterate()
	}
	return &memoIterator{memo: m}
}

// Ground reads the remaining items of the closure. The grounded value is
// indexed when the variable holding the closure is filtered: the same
// IndexedSequence, and so the same indexes, is returned by every call.
func (m *MemoClosure) Ground() (Grounded, error) {
	for m.state != memoAll {
		if _, err := m.read(); err != nil {
			return nil, err
		}
	}
	if m.refs < RefFiltered {
		return m.items, nil
	}
	if m.indexed == nil {
		m.indexed = NewIndexedSequence(m.exec.prog, m.items)
	}
	return m.indexed, nil
}

func (m *MemoClosure) read() (Item, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.reading {
		return nil, circularity(m.exec.prog.tree.Node(m.expr))
	}
	if m.state == memoUnread {
		m.input = m.Closure.Iterate()
		m.state = memoPartial
	}
	m.reading = true
	item, err := m.input.Next()
	m.reading = false
	if err != nil {
		m.err = err
		return nil, err
	}
	if item == nil {
		m.state = memoAll
		m.input = nil
		return nil, nil
	}
	m.items = append(m.items, item)
	return item, nil
}

type memoIterator struct {
	memo *MemoClosure
	pos  int
}

func (i *memoIterator) Next() (Item, error) {
	if i.pos < len(i.memo.items) {
		item := i.memo.items[i.pos]
		i.pos++
		return item, nil
	}
	if i.memo.state == memoAll {
		return nil, nil
	}
	item, err := i.memo.read()
	if item != nil {
		i.pos++
	}
	return item, err
}

// SingletonClosure is a closure over an expression producing at most one
// item. The item is computed on first use.
type SingletonClosure struct {
	Closure

	done bool
	busy bool
	item Item
	err  error
}

func newSingletonClosure(ctx *Context, expr NodeID) *SingletonClosure {
	c := newClosure(ctx, expr)
	return &SingletonClosure{
		Closure: *c,
	}
}

func (s *SingletonClosure) Iterate() Iterator {
	item, err := s.Item()
	if err != nil {
		return errorIterator{err: err}
	}
	if item == nil {
		return emptyIterator{}
	}
	return Sequence{item}.Iterate()
}

func (s *SingletonClosure) Ground() (Grounded, error) {
	item, err := s.Item()
	if err != nil || item == nil {
		return EmptySequence, err
	}
	return Sequence{item}, nil
}

func (s *SingletonClosure) Item() (Item, error) {
	if s.done {
		return s.item, s.err
	}
	if s.busy {
		return nil, circularity(s.exec.prog.tree.Node(s.expr))
	}
	s.busy = true
	s.item, s.err = s.exec.prog.evaluateItem(s.context(), s.expr)
	s.busy = false
	s.done = true
	return s.item, s.err
}

func circularity(n *Node) error {
	e := dynamicError(CodeCircularity, "circular definition: value is needed while being computed")
	e.Location = n.Loc
	return e
}
