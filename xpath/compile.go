package xpath

import (
	"errors"
	"log/slog"

	"github.com/midbel/xcore/environ"
)

var ErrContext = errors.New("context not created by this program")

// Config holds the settings shared by every evaluation of a compiled
// program. It is not modified after Compile returns.
type Config struct {
	Logger    *slog.Logger
	Tracer    Tracer
	Listener  ErrorListener
	Hierarchy TypeHierarchy

	globals   environ.Environ[Value]
	params    environ.Environ[Value]
	functions environ.Environ[*Function]
}

type Option func(*Config)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

func WithTracer(tracer Tracer) Option {
	return func(c *Config) {
		c.Tracer = tracer
	}
}

// WithListener sets the listener receiving the recoverable errors raised
// during evaluations.
func WithListener(listener ErrorListener) Option {
	return func(c *Config) {
		c.Listener = listener
	}
}

func WithHierarchy(h TypeHierarchy) Option {
	return func(c *Config) {
		c.Hierarchy = h
	}
}

// WithGlobal gives the value of a global variable. It takes precedence over
// a declaration of the variable in the tree.
func WithGlobal(name string, value Value) Option {
	return func(c *Config) {
		c.globals.Define(name, value)
	}
}

// WithParam supplies a parameter read by parameter references not given a
// value in their frame.
func WithParam(name string, value Value) Option {
	return func(c *Config) {
		c.params.Define(name, value)
	}
}

func WithFunction(fn *Function) Option {
	return func(c *Config) {
		if fn.Card == 0 {
			fn.Card = CardZeroOrMore
		}
		if fn.Type == UVoid {
			fn.Type = UAnyItem
		}
		c.functions.Define(fn.Name, fn)
	}
}

func defaultConfig() Config {
	return Config{
		Logger:    slog.Default(),
		Tracer:    discardTracer{},
		Hierarchy: kindHierarchy{},
		globals:   environ.Empty[Value](),
		params:    environ.Empty[Value](),
		functions: DefaultBuiltin(),
	}
}

// Program is a compiled expression tree. A program is safe for concurrent
// use provided each goroutine uses its own Context.
type Program struct {
	tree  *Tree
	root  NodeID
	slots int
	cfg   Config
}

// Compile optimizes the tree for the evaluation of root and the functions
// and global variables it declares. The tree is frozen afterwards.
func Compile(tree *Tree, root NodeID, options ...Option) (*Program, error) {
	cfg := defaultConfig()
	for _, o := range options {
		o(&cfg)
	}
	if cfg.Listener == nil {
		cfg.Listener = LogListener(cfg.Logger)
	}
	if tree.frozen {
		return nil, ErrFrozen
	}
	tree.library = cfg.functions
	tree.Logger = cfg.Logger

	c := compiler{
		tree:   tree,
		cfg:    &cfg,
		tracer: cfg.Tracer,
	}
	prog := Program{
		tree: tree,
		root: root,
		cfg:  cfg,
	}
	passes := []struct {
		name string
		run  func() error
	}{
		{"simplify", c.simplify(&prog.root)},
		{"typecheck", c.typecheck(&prog.root)},
		{"optimize", c.optimize(&prog.root)},
		{"allocate", c.allocate(&prog.root, &prog.slots)},
		{"freeze", c.freeze(&prog.root)},
	}
	for _, p := range passes {
		c.tracer.Enter(p.name)
		err := p.run()
		if err != nil {
			c.tracer.Error(p.name, err)
			return nil, err
		}
		c.tracer.Leave(p.name)
	}
	prog.cfg = cfg
	return &prog, nil
}

type compiler struct {
	tree   *Tree
	cfg    *Config
	tracer Tracer
}

// roots returns the roots of the expressions evaluated by the program:
// the main expression, the bodies of functions and global initializers.
func (c *compiler) roots(root NodeID) []NodeID {
	list := []NodeID{root}
	for _, fn := range c.tree.Functions() {
		list = append(list, fn.Body)
	}
	for _, g := range c.tree.Globals() {
		list = append(list, g.Init)
	}
	return list
}

func (c *compiler) update(root *NodeID, fn func(NodeID) NodeID) {
	*root = fn(*root)
	for _, f := range c.tree.Functions() {
		f.Body = fn(f.Body)
	}
	for _, g := range c.tree.Globals() {
		g.Init = fn(g.Init)
	}
}

func (c *compiler) simplify(root *NodeID) func() error {
	return func() error {
		c.update(root, c.simplifyExpr)
		return nil
	}
}

// simplifyExpr folds conditionals on constant conditions and flags the
// blocks appending to a variable.
func (c *compiler) simplifyExpr(id NodeID) NodeID {
	if id == NoNode {
		return id
	}
	t := c.tree
	for _, op := range t.Operands(id) {
		if op == NoNode {
			continue
		}
		if x := c.simplifyExpr(op); x != op {
			t.ReplaceOperand(id, op, x)
		}
	}
	n := t.Node(id)
	switch n.Kind {
	case KindIf:
		cond := t.Node(n.Operands[0])
		if cond.Kind != KindLiteral {
			break
		}
		ok, err := EffectiveBooleanValueOf(cond.Literal)
		if err != nil {
			break
		}
		branch := n.Operands[2]
		if ok {
			branch = n.Operands[1]
		}
		t.detach(branch)
		return branch
	case KindBlock:
		n.SharedAppend = isSharedAppendCandidate(t, id)
	}
	return id
}

func (c *compiler) typecheck(root *NodeID) func() error {
	return func() error {
		for _, r := range c.roots(*root) {
			if err := c.typecheckExpr(r); err != nil {
				return err
			}
		}
		return nil
	}
}

func (c *compiler) typecheckExpr(id NodeID) error {
	var err error
	c.tree.walk(id, func(x NodeID) bool {
		if err != nil {
			return false
		}
		err = c.checkNode(x)
		return err == nil
	})
	return err
}

func (c *compiler) checkNode(id NodeID) error {
	t := c.tree
	n := t.Node(id)
	switch n.Kind {
	case KindCall:
		fn, err := t.builtin(n.Name)
		if err != nil {
			return staticError(CodeUndefinedFunc, n.Loc, "%s: unknown function", n.Name)
		}
		if !fn.accepts(len(n.Operands)) {
			return staticError(CodeUndefinedFunc, n.Loc, "%s: unexpected number of arguments (%d)", n.Name, len(n.Operands))
		}
	case KindUserCall:
		fn := t.Function(n.Name)
		if fn == nil || len(fn.Params) != len(n.Operands) {
			return staticError(CodeUndefinedFunc, n.Loc, "%s#%d: unknown function", n.Name, len(n.Operands))
		}
	case KindGlobalRef:
		_, declared := t.globals[n.Name]
		if !declared && !environ.Defined(c.cfg.globals, n.Name) {
			return staticError(CodeUndefinedVar, n.Loc, "variable $%s is not defined", n.Name)
		}
	case KindVarRef:
		if n.Binding == NoNode {
			return staticError(CodeUndefinedVar, n.Loc, "variable $%s is not defined", n.Name)
		}
	case KindVenn:
		for _, op := range n.Operands {
			it := t.ItemType(op)
			if c.cfg.Hierarchy.Relationship(it, UAnyNode) == Disjoint && it != UVoid {
				return staticError(CodeType, t.Node(op).Loc, "%s operand must contain nodes only, got %s", n.Op, it)
			}
		}
	}
	return nil
}

func (c *compiler) optimize(root *NodeID) func() error {
	return func() error {
		for _, r := range c.roots(*root) {
			c.optimizeExpr(r)
		}
		return nil
	}
}

func (c *compiler) optimizeExpr(id NodeID) {
	t := c.tree
	c.tree.walk(id, func(x NodeID) bool {
		n := t.Node(x)
		switch n.Kind {
		case KindCall:
			fn, err := t.builtin(n.Name)
			if err != nil || len(n.Operands) == 0 || fn.order == orderKept {
				break
			}
			arg := n.Operands[0]
			if r := Unordered(t, arg, fn.order == orderIgnoredKeepDuplicates); r != arg {
				t.ReplaceOperand(x, arg, r)
			}
		case KindLet:
			n.RefCount = ReferenceCount(t, n.Operands[1], x, false)
			n.Mode = bindingMode(t, n.Operands[0], n.RefCount)
		case KindUserCall:
			fn := t.Function(n.Name)
			if fn == nil {
				break
			}
			n.ArgModes = make([]EvalMode, len(n.Operands))
			for i, op := range n.Operands {
				refs := ReferenceCount(t, fn.Body, fn.Params[i], false)
				n.ArgModes[i] = bindingMode(t, op, refs)
			}
		}
		return true
	})
}

func (c *compiler) allocate(root *NodeID, slots *int) func() error {
	return func() error {
		t := c.tree
		t.resetSlots()
		for _, fn := range t.Functions() {
			for i, p := range fn.Params {
				t.nodes[p].Slot = i
			}
		}
		next, err := AllocateSlots(t, *root, 0)
		if err != nil {
			return err
		}
		*slots = next
		for _, g := range t.Globals() {
			if g.Slots, err = AllocateSlots(t, g.Init, 0); err != nil {
				return err
			}
		}
		for _, fn := range t.Functions() {
			if fn.Slots, err = AllocateSlots(t, fn.Body, len(fn.Params)); err != nil {
				return err
			}
			fn.tailCalls = MarkTailFunctionCalls(t, fn.Body, fn.Name, len(fn.Params))
		}
		return nil
	}
}

// freeze computes the properties of every expression and makes the tree
// read only.
func (c *compiler) freeze(root *NodeID) func() error {
	return func() error {
		t := c.tree
		for i := range t.nodes {
			t.properties(NodeID(i))
		}
		for _, r := range c.roots(*root) {
			t.walk(r, func(x NodeID) bool {
				n := t.Node(x)
				if n.Kind == KindLet {
					t.logger().Debug("evaluation mode", "variable", n.Name, "mode", n.Mode.String(), "refs", n.RefCount)
				}
				return true
			})
		}
		t.frozen = true
		return nil
	}
}

func (p *Program) Tree() *Tree {
	return p.tree
}

func (p *Program) Root() NodeID {
	return p.root
}

// Dependencies returns the parts of the dynamic context the main expression
// reads.
func (p *Program) Dependencies() Dependency {
	return p.tree.Dependencies(p.root)
}

func (p *Program) NewContext(options ...ContextOption) *Context {
	exec := execution{
		prog:    p,
		globals: make(map[string]Value),
	}
	ctx := Context{
		prog:     p,
		exec:     &exec,
		frame:    newFrame(p.slots),
		receiver: discardReceiver{},
		listener: p.cfg.Listener,
	}
	for _, o := range options {
		o(&ctx)
	}
	exec.initial = ctx.Sub()
	return &ctx
}

func (p *Program) check(ctx *Context) error {
	if ctx == nil || ctx.prog != p {
		return ErrContext
	}
	return nil
}

// Evaluate computes the result of the program.
func (p *Program) Evaluate(ctx *Context) (Sequence, error) {
	if err := p.check(ctx); err != nil {
		return nil, err
	}
	return Materialize(p.iterate(ctx, p.root))
}

// Iterate returns an iterator over the result of the program. Items are
// computed as the iterator is read.
func (p *Program) Iterate(ctx *Context) Iterator {
	if err := p.check(ctx); err != nil {
		return errorIterator{err: err}
	}
	return p.iterate(ctx, p.root)
}

// Process evaluates the program in push mode.
func (p *Program) Process(ctx *Context, r Receiver) error {
	if err := p.check(ctx); err != nil {
		return err
	}
	return p.process(ctx.WithReceiver(r), p.root)
}

func (p *Program) EffectiveBooleanValue(ctx *Context) (bool, error) {
	if err := p.check(ctx); err != nil {
		return false, err
	}
	return p.ebv(ctx, p.root)
}
