package xslt

import (
	"fmt"
	"strings"
	"sync"

	"github.com/midbel/xcore/xml"
	"github.com/midbel/xcore/xpath"
)

// Pattern tests whether an item matches a template rule. The set of
// variants is closed.
type Pattern interface {
	Matches(*xpath.Context, xpath.Item) (bool, error)
	// UType is the union of the item kinds the pattern can ever match.
	UType() xpath.UType
	// Streamable reports whether the pattern can be matched against a node
	// of a forward only stream.
	Streamable() bool
	Priority() float64
	String() string

	pattern()
}

type NodeTestPattern struct {
	Test xpath.NodeTest
}

func NewNodeTestPattern(test xpath.NodeTest) *NodeTestPattern {
	return &NodeTestPattern{
		Test: test,
	}
}

func (p *NodeTestPattern) Matches(_ *xpath.Context, item xpath.Item) (bool, error) {
	node := item.Node()
	if node == nil {
		return false, nil
	}
	return p.Test.Match(node), nil
}

func (p *NodeTestPattern) UType() xpath.UType {
	return p.Test.Kind & xpath.UAnyNode
}

func (_ *NodeTestPattern) Streamable() bool {
	return true
}

func (p *NodeTestPattern) Priority() float64 {
	if p.Test.Name != "" {
		return 0
	}
	return -0.5
}

func (p *NodeTestPattern) String() string {
	if p.Test.Kind == xpath.UAttribute && p.Test.Name != "" {
		return "@" + p.Test.Name
	}
	return p.Test.String()
}

func (_ *NodeTestPattern) pattern() {}

// ItemTypePattern matches any item whose kind is part of Type, atomic
// values included.
type ItemTypePattern struct {
	Type xpath.UType
}

func NewItemTypePattern(kind xpath.UType) *ItemTypePattern {
	return &ItemTypePattern{
		Type: kind,
	}
}

func (p *ItemTypePattern) Matches(_ *xpath.Context, item xpath.Item) (bool, error) {
	return p.Type.Overlaps(item.Type()), nil
}

func (p *ItemTypePattern) UType() xpath.UType {
	return p.Type
}

func (_ *ItemTypePattern) Streamable() bool {
	return true
}

func (p *ItemTypePattern) Priority() float64 {
	if p.Type == xpath.UAnyItem {
		return -1
	}
	return 0
}

func (p *ItemTypePattern) String() string {
	return p.Type.String()
}

func (_ *ItemTypePattern) pattern() {}

// PredicatePattern matches when Base matches and the predicate is true
// with the candidate as context item. Errors raised by the predicate are
// reported to the listener and count as a failed match unless they are
// fatal.
type PredicatePattern struct {
	Base      Pattern
	predicate *xpath.Program
}

func NewPredicatePattern(base Pattern, predicate *xpath.Program) *PredicatePattern {
	return &PredicatePattern{
		Base:      base,
		predicate: predicate,
	}
}

func (p *PredicatePattern) Matches(ctx *xpath.Context, item xpath.Item) (bool, error) {
	ok, err := p.Base.Matches(ctx, item)
	if !ok || err != nil {
		return ok, err
	}
	ok, err = p.predicate.EffectiveBooleanValue(focusOn(ctx, p.predicate, item))
	if err != nil {
		if xpath.IsFatal(err) {
			return false, err
		}
		listenerOf(ctx).Error(err)
		return false, nil
	}
	return ok, nil
}

func (p *PredicatePattern) UType() xpath.UType {
	return p.Base.UType()
}

func (p *PredicatePattern) Streamable() bool {
	prog := p.predicate
	return p.Base.Streamable() && xpath.IsMotionless(prog.Tree(), prog.Root())
}

func (_ *PredicatePattern) Priority() float64 {
	return 0.5
}

func (p *PredicatePattern) String() string {
	return fmt.Sprintf("%s[%s]", p.Base, xpath.Debug(p.predicate.Tree(), p.predicate.Root()))
}

func (_ *PredicatePattern) pattern() {}

// VennPattern combines two node patterns with union, intersect or except.
type VennPattern struct {
	Op    xpath.Op
	Left  Pattern
	Right Pattern
}

func NewVennPattern(op xpath.Op, left, right Pattern) (*VennPattern, error) {
	switch op {
	case xpath.OpUnion, xpath.OpIntersect, xpath.OpExcept:
	default:
		return nil, fmt.Errorf("%s: %w", op, ErrOperator)
	}
	for _, p := range []Pattern{left, right} {
		if !p.UType().Nodes() {
			e := xpath.Error{
				Code:    xpath.CodeType,
				Message: fmt.Sprintf("operand of %s must be a node pattern, got %s", op, p.UType()),
				Static:  true,
				Type:    true,
			}
			return nil, &e
		}
	}
	v := VennPattern{
		Op:    op,
		Left:  left,
		Right: right,
	}
	return &v, nil
}

func (p *VennPattern) Matches(ctx *xpath.Context, item xpath.Item) (bool, error) {
	left, err := p.Left.Matches(ctx, item)
	if err != nil {
		return false, err
	}
	switch p.Op {
	case xpath.OpUnion:
		if left {
			return true, nil
		}
		return p.Right.Matches(ctx, item)
	case xpath.OpIntersect:
		if !left {
			return false, nil
		}
		return p.Right.Matches(ctx, item)
	default:
		if !left {
			return false, nil
		}
		right, err := p.Right.Matches(ctx, item)
		return !right, err
	}
}

func (p *VennPattern) UType() xpath.UType {
	switch p.Op {
	case xpath.OpUnion:
		return p.Left.UType() | p.Right.UType()
	case xpath.OpIntersect:
		return p.Left.UType() & p.Right.UType()
	default:
		return p.Left.UType()
	}
}

func (p *VennPattern) Streamable() bool {
	return p.Left.Streamable() && p.Right.Streamable()
}

func (p *VennPattern) Priority() float64 {
	if p.Op == xpath.OpUnion {
		return max(p.Left.Priority(), p.Right.Priority())
	}
	return p.Left.Priority()
}

func (p *VennPattern) String() string {
	return fmt.Sprintf("%s %s %s", p.Left, p.Op, p.Right)
}

func (_ *VennPattern) pattern() {}

// NodeSetPattern matches the nodes returned by an expression. Membership is
// tested by node identity.
//
// The expression is evaluated with the focus of the caller, or with the
// root of the candidate when the caller has no focus. The last result is
// kept for as long as the focus does not change.
type NodeSetPattern struct {
	prog *xpath.Program

	mu    sync.Mutex
	focus xml.Node
	nodes map[xml.Node]struct{}
}

func NewNodeSetPattern(prog *xpath.Program) (*NodeSetPattern, error) {
	if prog.Dependencies().Has(xpath.DepPosition | xpath.DepLast) {
		e := xpath.Error{
			Code:    xpath.CodeAbsentFocus,
			Message: "node set pattern can not depend on the context position",
			Static:  true,
		}
		return nil, &e
	}
	return &NodeSetPattern{prog: prog}, nil
}

func (p *NodeSetPattern) Matches(ctx *xpath.Context, item xpath.Item) (bool, error) {
	node := item.Node()
	if node == nil {
		return false, nil
	}
	var focus xpath.Item
	if ctx != nil && ctx.Item() != nil {
		focus = ctx.Item()
	} else {
		focus = xpath.NewNode(xml.Root(node))
	}
	nodes, err := p.members(ctx, focus)
	if err != nil {
		return false, err
	}
	_, ok := nodes[node]
	return ok, nil
}

func (p *NodeSetPattern) members(ctx *xpath.Context, focus xpath.Item) (map[xml.Node]struct{}, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.nodes != nil && focus.Node() != nil && xml.Same(p.focus, focus.Node()) {
		return p.nodes, nil
	}
	seq, err := p.prog.Evaluate(focusOn(ctx, p.prog, focus))
	if err != nil {
		return nil, err
	}
	nodes := make(map[xml.Node]struct{})
	for _, it := range seq {
		if n := it.Node(); n != nil {
			nodes[n] = struct{}{}
		}
	}
	p.focus, p.nodes = focus.Node(), nodes
	return nodes, nil
}

func (p *NodeSetPattern) UType() xpath.UType {
	u := p.prog.Tree().ItemType(p.prog.Root()) & xpath.UAnyNode
	if u == xpath.UVoid {
		return xpath.UAnyNode
	}
	return u
}

func (_ *NodeSetPattern) Streamable() bool {
	return false
}

func (_ *NodeSetPattern) Priority() float64 {
	return 0.5
}

func (p *NodeSetPattern) String() string {
	return xpath.Debug(p.prog.Tree(), p.prog.Root())
}

func (_ *NodeSetPattern) pattern() {}

// ConditionalPattern tries the pattern of the first guard that is true.
// Nothing matches when every guard is false.
type ConditionalPattern struct {
	guards   []*xpath.Program
	patterns []Pattern
}

func NewConditionalPattern(guards []*xpath.Program, patterns []Pattern) (*ConditionalPattern, error) {
	if len(guards) != len(patterns) {
		return nil, fmt.Errorf("%d guards for %d patterns: %w", len(guards), len(patterns), ErrArity)
	}
	c := ConditionalPattern{
		guards:   guards,
		patterns: patterns,
	}
	return &c, nil
}

func (p *ConditionalPattern) Matches(ctx *xpath.Context, item xpath.Item) (bool, error) {
	for i, g := range p.guards {
		ok, err := g.EffectiveBooleanValue(focusOn(ctx, g, item))
		if err != nil {
			return false, err
		}
		if ok {
			return p.patterns[i].Matches(ctx, item)
		}
	}
	return false, nil
}

func (p *ConditionalPattern) UType() xpath.UType {
	var u xpath.UType
	for _, x := range p.patterns {
		u |= x.UType()
	}
	return u
}

func (p *ConditionalPattern) Streamable() bool {
	for i, g := range p.guards {
		if !xpath.IsMotionless(g.Tree(), g.Root()) || !p.patterns[i].Streamable() {
			return false
		}
	}
	return true
}

func (p *ConditionalPattern) Priority() float64 {
	if len(p.patterns) == 0 {
		return 0
	}
	prio := p.patterns[0].Priority()
	for _, x := range p.patterns[1:] {
		prio = max(prio, x.Priority())
	}
	return prio
}

func (p *ConditionalPattern) String() string {
	var str strings.Builder
	for i, g := range p.guards {
		if i > 0 {
			str.WriteString(" else ")
		}
		fmt.Fprintf(&str, "if (%s) then %s", xpath.Debug(g.Tree(), g.Root()), p.patterns[i])
	}
	return str.String()
}

func (_ *ConditionalPattern) pattern() {}

// FirstInGroupPattern matches the first item of the group being processed
// by the enclosing for-each-group. Base, when set, must match as well.
type FirstInGroupPattern struct {
	Base Pattern
}

func NewFirstInGroupPattern(base Pattern) *FirstInGroupPattern {
	return &FirstInGroupPattern{
		Base: base,
	}
}

func (p *FirstInGroupPattern) Matches(ctx *xpath.Context, item xpath.Item) (bool, error) {
	if ctx == nil || ctx.Group() == nil {
		return false, nil
	}
	if !xpath.Identical(ctx.Group().First(), item) {
		return false, nil
	}
	if p.Base == nil {
		return true, nil
	}
	return p.Base.Matches(ctx, item)
}

func (p *FirstInGroupPattern) UType() xpath.UType {
	if p.Base == nil {
		return xpath.UAnyItem
	}
	return p.Base.UType()
}

func (p *FirstInGroupPattern) Streamable() bool {
	return p.Base == nil || p.Base.Streamable()
}

func (_ *FirstInGroupPattern) Priority() float64 {
	return 0.5
}

func (p *FirstInGroupPattern) String() string {
	if p.Base == nil {
		return "first-in-group()"
	}
	return fmt.Sprintf("first-in-group(%s)", p.Base)
}

func (_ *FirstInGroupPattern) pattern() {}

// PathPattern matches a node matched by Base whose parent, or any ancestor
// when Descendant is set, is matched by Upper. Only the ancestors of the
// candidate are visited.
type PathPattern struct {
	Upper      Pattern
	Base       Pattern
	Descendant bool
}

func NewPathPattern(upper, base Pattern, descendant bool) *PathPattern {
	p := PathPattern{
		Upper:      upper,
		Base:       base,
		Descendant: descendant,
	}
	return &p
}

func (p *PathPattern) Matches(ctx *xpath.Context, item xpath.Item) (bool, error) {
	ok, err := p.Base.Matches(ctx, item)
	if !ok || err != nil {
		return ok, err
	}
	node := item.Node()
	if node == nil {
		return false, nil
	}
	for parent := node.Parent(); parent != nil; parent = parent.Parent() {
		ok, err := p.Upper.Matches(ctx, xpath.NewNode(parent))
		if ok || err != nil {
			return ok, err
		}
		if !p.Descendant {
			break
		}
	}
	return false, nil
}

func (p *PathPattern) UType() xpath.UType {
	return p.Base.UType()
}

func (p *PathPattern) Streamable() bool {
	return p.Base.Streamable() && p.Upper.Streamable()
}

func (_ *PathPattern) Priority() float64 {
	return 0.5
}

func (p *PathPattern) String() string {
	sep := "/"
	if p.Descendant {
		sep = "//"
	}
	return p.Upper.String() + sep + p.Base.String()
}

func (_ *PathPattern) pattern() {}

func listenerOf(ctx *xpath.Context) xpath.ErrorListener {
	if ctx == nil || ctx.Listener() == nil {
		return xpath.LogListener(nil)
	}
	return ctx.Listener()
}

// focusOn creates a context for prog with item as context item. The
// listener and the current group of ctx are kept.
func focusOn(ctx *xpath.Context, prog *xpath.Program, item xpath.Item) *xpath.Context {
	x := prog.NewContext(xpath.Focus(item), xpath.Listen(listenerOf(ctx)))
	x = x.WithCurrent(item)
	if ctx != nil && ctx.Group() != nil {
		x = x.WithGroup(ctx.Group())
	}
	return x
}
