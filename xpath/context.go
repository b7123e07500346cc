package xpath

import (
	"log/slog"
	"slices"

	"github.com/midbel/xcore/xml"
)

// Frame holds the values of the local variables of a function, a template
// or the main expression.
type Frame struct {
	slots []Value
}

func newFrame(size int) *Frame {
	return &Frame{
		slots: make([]Value, size),
	}
}

func (f *Frame) Len() int {
	return len(f.slots)
}

func (f *Frame) Get(slot int) Value {
	if slot < 0 || slot >= len(f.slots) {
		return nil
	}
	return f.slots[slot]
}

func (f *Frame) Set(slot int, value Value) {
	if slot >= len(f.slots) {
		f.slots = append(f.slots, make([]Value, slot-len(f.slots)+1)...)
	}
	f.slots[slot] = value
}

// execution holds the state shared by all the contexts derived from one
// call to Program.NewContext.
type execution struct {
	prog       *Program
	initial    *Context
	globals    map[string]Value
	outputters []*SequenceOutputter
}

func (e *execution) outputter() *SequenceOutputter {
	if n := len(e.outputters); n > 0 {
		out := e.outputters[n-1]
		e.outputters = e.outputters[:n-1]
		return out
	}
	return &SequenceOutputter{}
}

func (e *execution) release(out *SequenceOutputter) {
	out.Reset()
	e.outputters = append(e.outputters, out)
}

// Context is the dynamic context of an evaluation. A context must not be
// used by more than one goroutine at a time; derive one per goroutine with
// Program.NewContext.
type Context struct {
	prog *Program
	exec *execution

	item     Item
	position int
	last     int
	frame    *Frame

	current  Item
	group    *GroupIterator
	regex    []string
	receiver Receiver
	listener ErrorListener
}

type ContextOption func(*Context)

// Focus sets the initial context item.
func Focus(item Item) ContextOption {
	return func(ctx *Context) {
		ctx.item = item
		ctx.position = 1
		ctx.last = 1
	}
}

// FocusNode sets the initial context item to the given node.
func FocusNode(node xml.Node) ContextOption {
	return Focus(NewNode(node))
}

func Listen(listener ErrorListener) ContextOption {
	return func(ctx *Context) {
		ctx.listener = listener
	}
}

// Supply sets the value of a parameter declared at the given slot of the
// main frame.
func Supply(slot int, value Value) ContextOption {
	return func(ctx *Context) {
		ctx.frame.Set(slot, value)
	}
}

func (c *Context) Program() *Program {
	return c.prog
}

func (c *Context) Item() Item {
	return c.item
}

func (c *Context) Position() int {
	return c.position
}

func (c *Context) Last() int {
	return c.last
}

func (c *Context) Frame() *Frame {
	return c.frame
}

func (c *Context) Group() *GroupIterator {
	return c.group
}

func (c *Context) Current() Item {
	return c.current
}

func (c *Context) Listener() ErrorListener {
	return c.listener
}

func (c *Context) Logger() *slog.Logger {
	return c.prog.cfg.Logger
}

// Sub returns a copy of the context that can be modified without altering
// c.
func (c *Context) Sub() *Context {
	x := *c
	return &x
}

func (c *Context) WithFocus(item Item, position, last int) *Context {
	x := c.Sub()
	x.item = item
	x.position = position
	x.last = last
	return x
}

// WithListener returns a context reporting recoverable errors to listener.
func (c *Context) WithListener(listener ErrorListener) *Context {
	x := c.Sub()
	x.listener = listener
	return x
}

func (c *Context) WithReceiver(r Receiver) *Context {
	x := c.Sub()
	x.receiver = r
	return x
}

func (c *Context) WithGroup(g *GroupIterator) *Context {
	x := c.Sub()
	x.group = g
	return x
}

func (c *Context) WithCurrent(item Item) *Context {
	x := c.Sub()
	x.current = item
	return x
}

func (c *Context) WithRegexGroups(groups []string) *Context {
	x := c.Sub()
	x.regex = groups
	return x
}

// withFrame is used for calls to user functions: the focus is absent inside
// the body of a function.
func (c *Context) withFrame(frame *Frame) *Context {
	x := c.Sub()
	x.frame = frame
	x.item = nil
	x.position = 0
	x.last = 0
	return x
}

// snapshot holds the parts of a context captured by a closure.
type snapshot struct {
	item     Item
	position int
	last     int
	frame    []Value
	current  Item
	group    *GroupIterator
	regex    []string
}

func capture(ctx *Context, deps Dependency) snapshot {
	var snap snapshot
	if deps.Has(DepFocus) {
		snap.item = ctx.item
		snap.position = ctx.position
		snap.last = ctx.last
	}
	if deps.Has(DepLocalVariables) {
		snap.frame = slices.Clone(ctx.frame.slots)
	} else {
		snap.frame = make([]Value, len(ctx.frame.slots))
	}
	if deps.Has(DepCurrentItem) {
		snap.current = ctx.current
	}
	if deps.Has(DepCurrentGroup) {
		snap.group = ctx.group
	}
	if deps.Has(DepRegexGroup) {
		snap.regex = ctx.regex
	}
	return snap
}

func (s snapshot) restore(exec *execution, listener ErrorListener) *Context {
	return &Context{
		prog:     exec.prog,
		exec:     exec,
		item:     s.item,
		position: s.position,
		last:     s.last,
		frame:    &Frame{slots: slices.Clone(s.frame)},
		current:  s.current,
		group:    s.group,
		regex:    s.regex,
		receiver: discardReceiver{},
		listener: listener,
	}
}
