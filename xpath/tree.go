package xpath

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/midbel/xcore/environ"
	"github.com/midbel/xcore/xml"
)

// NodeID addresses an expression inside a Tree.
type NodeID int32

const NoNode NodeID = -1

type Kind uint8

const (
	KindLiteral Kind = iota
	KindVarRef
	KindParamRef
	KindGlobalRef
	KindContextItem
	KindRoot
	KindAxis
	KindPath
	KindFilter
	KindDocSort
	KindLet
	KindFor
	KindQuantified
	KindIf
	KindBlock
	KindTail
	KindRange
	KindArith
	KindCompare
	KindAnd
	KindOr
	KindVenn
	KindCall
	KindUserCall
	KindError
	KindElement
	KindText
	KindMapConstructor
	KindForEachGroup
	KindLocalParam
	KindParam
)

var kindNames = [...]string{
	KindLiteral:        "literal",
	KindVarRef:         "var-ref",
	KindParamRef:       "param-ref",
	KindGlobalRef:      "global-ref",
	KindContextItem:    "context-item",
	KindRoot:           "root",
	KindAxis:           "axis",
	KindPath:           "path",
	KindFilter:         "filter",
	KindDocSort:        "doc-sort",
	KindLet:            "let",
	KindFor:            "for",
	KindQuantified:     "quantified",
	KindIf:             "if",
	KindBlock:          "block",
	KindTail:           "tail",
	KindRange:          "range",
	KindArith:          "arith",
	KindCompare:        "compare",
	KindAnd:            "and",
	KindOr:             "or",
	KindVenn:           "venn",
	KindCall:           "call",
	KindUserCall:       "user-call",
	KindError:          "error",
	KindElement:        "element",
	KindText:           "text",
	KindMapConstructor: "map",
	KindForEachGroup:   "for-each-group",
	KindLocalParam:     "local-param",
	KindParam:          "param",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

// binding reports whether the kind declares a local variable.
func (k Kind) binding() bool {
	switch k {
	case KindLet, KindFor, KindQuantified, KindLocalParam, KindParam:
		return true
	default:
		return false
	}
}

type Op uint8

const (
	OpNone Op = iota
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpIDiv
	OpMod
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpValEq
	OpValNe
	OpValLt
	OpValLe
	OpValGt
	OpValGe
	OpUnion
	OpIntersect
	OpExcept
	OpSome
	OpEvery
)

var opNames = [...]string{
	OpNone:      "",
	OpAdd:       "+",
	OpSub:       "-",
	OpMul:       "*",
	OpDiv:       "div",
	OpIDiv:      "idiv",
	OpMod:       "mod",
	OpEq:        "=",
	OpNe:        "!=",
	OpLt:        "<",
	OpLe:        "<=",
	OpGt:        ">",
	OpGe:        ">=",
	OpValEq:     "eq",
	OpValNe:     "ne",
	OpValLt:     "lt",
	OpValLe:     "le",
	OpValGt:     "gt",
	OpValGe:     "ge",
	OpUnion:     "union",
	OpIntersect: "intersect",
	OpExcept:    "except",
	OpSome:      "some",
	OpEvery:     "every",
}

func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return "?"
}

type Axis uint8

const (
	AxisChild Axis = iota
	AxisDescendant
	AxisDescendantOrSelf
	AxisSelf
	AxisParent
	AxisAncestor
	AxisAncestorOrSelf
	AxisAttribute
	AxisFollowingSibling
	AxisPrecedingSibling
	AxisFollowing
)

var axisNames = [...]string{
	AxisChild:            "child",
	AxisDescendant:       "descendant",
	AxisDescendantOrSelf: "descendant-or-self",
	AxisSelf:             "self",
	AxisParent:           "parent",
	AxisAncestor:         "ancestor",
	AxisAncestorOrSelf:   "ancestor-or-self",
	AxisAttribute:        "attribute",
	AxisFollowingSibling: "following-sibling",
	AxisPrecedingSibling: "preceding-sibling",
	AxisFollowing:        "following",
}

func (a Axis) String() string {
	if int(a) < len(axisNames) {
		return axisNames[a]
	}
	return "axis"
}

// NodeTest selects nodes by kind and, when Name is not empty, by name.
type NodeTest struct {
	Kind UType
	Name string
}

func (n NodeTest) Match(node xml.Node) bool {
	if NodeUType(node)&n.Kind == 0 {
		return false
	}
	return n.Name == "" || n.Name == node.LocalName() || n.Name == node.QualifiedName()
}

func (n NodeTest) String() string {
	if n.Name == "" {
		return n.Kind.String()
	}
	return n.Name
}

// Node is one expression of a Tree. Fields are read-only for callers; use
// the Tree methods to modify the tree.
type Node struct {
	Kind     Kind
	Op       Op
	Axis     Axis
	Test     NodeTest
	Name     string
	QName    xml.QName
	Literal  Value
	Int      int64
	Operands []NodeID
	Loc      Location

	Binding NodeID
	Slot    int

	Sort         bool
	Fixed        bool
	TailCall     int
	SharedAppend bool
	Mode         EvalMode
	ArgModes     []EvalMode
	RefCount     int

	parent NodeID
	props  props
	valid  bool
}

type UserFunction struct {
	Name   string
	Params []NodeID
	Body   NodeID
	Slots  int

	tailCalls int
}

type Global struct {
	Name  string
	Init  NodeID
	Slots int
}

// Tree is an arena of expressions. Expressions are created by the builder
// methods, rewritten in place during compilation and frozen afterwards.
type Tree struct {
	nodes   []Node
	funcs   map[string]*UserFunction
	globals map[string]*Global
	frozen  bool
	library environ.Environ[*Function]

	// globals whose properties are being inferred
	resolving map[string]bool

	Logger *slog.Logger
}

func NewTree() *Tree {
	return &Tree{
		funcs:   make(map[string]*UserFunction),
		globals: make(map[string]*Global),
	}
}

func (t *Tree) logger() *slog.Logger {
	if t.Logger == nil {
		return slog.Default()
	}
	return t.Logger
}

func (t *Tree) Len() int {
	return len(t.nodes)
}

func (t *Tree) Frozen() bool {
	return t.frozen
}

func (t *Tree) Node(id NodeID) *Node {
	return &t.nodes[id]
}

func (t *Tree) Kind(id NodeID) Kind {
	return t.nodes[id].Kind
}

func (t *Tree) Operands(id NodeID) []NodeID {
	return t.nodes[id].Operands
}

func (t *Tree) Parent(id NodeID) NodeID {
	return t.nodes[id].parent
}

func (t *Tree) Function(name string) *UserFunction {
	return t.funcs[name]
}

func (t *Tree) Functions() []*UserFunction {
	list := make([]*UserFunction, 0, len(t.funcs))
	for _, fn := range t.funcs {
		list = append(list, fn)
	}
	slices.SortFunc(list, func(a, b *UserFunction) int {
		return strings.Compare(a.Name, b.Name)
	})
	return list
}

func (t *Tree) Globals() []*Global {
	list := make([]*Global, 0, len(t.globals))
	for _, g := range t.globals {
		list = append(list, g)
	}
	slices.SortFunc(list, func(a, b *Global) int {
		return strings.Compare(a.Name, b.Name)
	})
	return list
}

func (t *Tree) builtin(name string) (*Function, error) {
	lib := t.library
	if lib == nil {
		lib = builtins
	}
	return lib.Resolve(name)
}

func (t *Tree) add(n Node) NodeID {
	if t.frozen {
		panic(ErrFrozen)
	}
	id := NodeID(len(t.nodes))
	n.parent = NoNode
	n.Slot = -1
	if n.Kind != KindVarRef {
		n.Binding = NoNode
	}
	for _, op := range n.Operands {
		t.attach(id, op)
	}
	t.nodes = append(t.nodes, n)
	return id
}

func (t *Tree) attach(parent, child NodeID) {
	if child == NoNode {
		return
	}
	if p := t.nodes[child].parent; p != NoNode && p != parent {
		panic(fmt.Errorf("%s(%d): %w", t.nodes[child].Kind, child, ErrOperand))
	}
	t.nodes[child].parent = parent
}

func (t *Tree) Literal(v Value) NodeID {
	return t.add(Node{Kind: KindLiteral, Literal: v})
}

func (t *Tree) Empty() NodeID {
	return t.Literal(EmptySequence)
}

// Ref creates a reference to the variable declared by decl.
func (t *Tree) Ref(decl NodeID) NodeID {
	return t.add(Node{
		Kind:    KindVarRef,
		Binding: decl,
		Name:    t.nodes[decl].Name,
	})
}

// ParamRef reads a value supplied in the given slot of the current frame.
func (t *Tree) ParamRef(name string, slot int) NodeID {
	id := t.add(Node{Kind: KindParamRef, Name: name})
	t.nodes[id].Slot = slot
	return id
}

func (t *Tree) GlobalRef(name string) NodeID {
	return t.add(Node{Kind: KindGlobalRef, Name: name})
}

func (t *Tree) ContextItem() NodeID {
	return t.add(Node{Kind: KindContextItem})
}

func (t *Tree) Root() NodeID {
	return t.add(Node{Kind: KindRoot})
}

func (t *Tree) Step(axis Axis, test NodeTest) NodeID {
	return t.add(Node{Kind: KindAxis, Axis: axis, Test: test})
}

// Path builds start/step as is. MakePath applies the path rewrites.
func (t *Tree) Path(start, step NodeID) NodeID {
	return t.add(Node{Kind: KindPath, Operands: []NodeID{start, step}})
}

func (t *Tree) Filter(base, predicate NodeID) NodeID {
	return t.add(Node{Kind: KindFilter, Operands: []NodeID{base, predicate}})
}

// DocSort checks that the result of inner is made of nodes only or of
// atomic values only. Nodes are deduplicated and, when sort is set, put in
// document order.
func (t *Tree) DocSort(inner NodeID, sort bool) NodeID {
	return t.add(Node{Kind: KindDocSort, Operands: []NodeID{inner}, Sort: sort})
}

func (t *Tree) Let(name string, seq NodeID) NodeID {
	return t.add(Node{Kind: KindLet, Name: name, Operands: []NodeID{seq, NoNode}})
}

func (t *Tree) For(name string, in NodeID) NodeID {
	return t.add(Node{Kind: KindFor, Name: name, Operands: []NodeID{in, NoNode}})
}

func (t *Tree) Some(name string, in NodeID) NodeID {
	return t.add(Node{Kind: KindQuantified, Op: OpSome, Name: name, Operands: []NodeID{in, NoNode}})
}

func (t *Tree) Every(name string, in NodeID) NodeID {
	return t.add(Node{Kind: KindQuantified, Op: OpEvery, Name: name, Operands: []NodeID{in, NoNode}})
}

// Bind sets the expression in the scope of the variable declared by decl.
func (t *Tree) Bind(decl, body NodeID) NodeID {
	n := &t.nodes[decl]
	if !n.Kind.binding() || len(n.Operands) != 2 {
		panic(fmt.Errorf("%s: can not bind expression", n.Kind))
	}
	t.attach(decl, body)
	n.Operands[1] = body
	t.invalidate(decl)
	return decl
}

func (t *Tree) If(cond, csq, alt NodeID) NodeID {
	return t.add(Node{Kind: KindIf, Operands: []NodeID{cond, csq, alt}})
}

func (t *Tree) Block(list ...NodeID) NodeID {
	return t.add(Node{Kind: KindBlock, Operands: list})
}

// Tail returns the items of base from the 1-based position start.
func (t *Tree) Tail(base NodeID, start int64) NodeID {
	return t.add(Node{Kind: KindTail, Int: start, Operands: []NodeID{base}})
}

func (t *Tree) Range(from, to NodeID) NodeID {
	return t.add(Node{Kind: KindRange, Operands: []NodeID{from, to}})
}

func (t *Tree) Arith(op Op, left, right NodeID) NodeID {
	return t.add(Node{Kind: KindArith, Op: op, Operands: []NodeID{left, right}})
}

func (t *Tree) Compare(op Op, left, right NodeID) NodeID {
	return t.add(Node{Kind: KindCompare, Op: op, Operands: []NodeID{left, right}})
}

func (t *Tree) And(left, right NodeID) NodeID {
	return t.add(Node{Kind: KindAnd, Operands: []NodeID{left, right}})
}

func (t *Tree) Or(left, right NodeID) NodeID {
	return t.add(Node{Kind: KindOr, Operands: []NodeID{left, right}})
}

func (t *Tree) Venn(op Op, left, right NodeID) NodeID {
	return t.add(Node{Kind: KindVenn, Op: op, Operands: []NodeID{left, right}})
}

// Call invokes a builtin function.
func (t *Tree) Call(name string, args ...NodeID) NodeID {
	return t.add(Node{Kind: KindCall, Name: name, Operands: args})
}

func (t *Tree) UserCall(name string, args ...NodeID) NodeID {
	return t.add(Node{Kind: KindUserCall, Name: name, Operands: args})
}

// Error is an expression raising the given error when evaluated.
func (t *Tree) Error(code, message string) NodeID {
	return t.add(Node{Kind: KindError, Name: code, Literal: Sequence{String(message)}})
}

func (t *Tree) Element(name xml.QName, content ...NodeID) NodeID {
	return t.add(Node{
		Kind:     KindElement,
		Name:     name.QualifiedName(),
		QName:    name,
		Test:     NodeTest{Kind: UElement, Name: name.LocalName()},
		Operands: content,
	})
}

func (t *Tree) Text(content NodeID) NodeID {
	return t.add(Node{Kind: KindText, Operands: []NodeID{content}})
}

// MapConstructor takes alternating key and value expressions.
func (t *Tree) MapConstructor(pairs ...NodeID) NodeID {
	if len(pairs)%2 != 0 {
		panic("map constructor expects key/value pairs")
	}
	return t.add(Node{Kind: KindMapConstructor, Operands: pairs})
}

// ForEachGroup groups population by the string value of key and evaluates
// body once per group with the first item of the group as context item.
func (t *Tree) ForEachGroup(population, key, body NodeID) NodeID {
	return t.add(Node{Kind: KindForEachGroup, Operands: []NodeID{population, key, body}})
}

// LocalParam declares a parameter whose value is supplied by the caller in
// its frame slot or computed from def when absent. A negative slot lets the
// slot allocator choose one.
func (t *Tree) LocalParam(name string, slot int, def NodeID) NodeID {
	ops := []NodeID{}
	if def != NoNode {
		ops = append(ops, def)
	}
	id := t.add(Node{Kind: KindLocalParam, Name: name, Operands: ops})
	if slot >= 0 {
		t.nodes[id].Slot = slot
		t.nodes[id].Fixed = true
	}
	return id
}

func (t *Tree) DefineFunction(name string, params ...string) *UserFunction {
	fn := UserFunction{
		Name: name,
		Body: NoNode,
	}
	for _, p := range params {
		fn.Params = append(fn.Params, t.add(Node{Kind: KindParam, Name: p}))
	}
	t.funcs[name] = &fn
	return &fn
}

func (t *Tree) SetBody(fn *UserFunction, body NodeID) {
	fn.Body = body
}

func (t *Tree) DefineGlobal(name string, init NodeID) *Global {
	g := Global{
		Name: name,
		Init: init,
	}
	t.globals[name] = &g
	return &g
}

// Locate attaches a source location to an expression.
func (t *Tree) Locate(id NodeID, loc Location) NodeID {
	t.nodes[id].Loc = loc
	return id
}

// Role describes how an operand is evaluated by its parent.
type Role uint8

const (
	RoleSameFocus Role = 1 << iota
	RoleRepeated
)

func (t *Tree) Role(parent NodeID, index int) Role {
	switch t.nodes[parent].Kind {
	case KindPath, KindFilter:
		if index == 0 {
			return RoleSameFocus
		}
		return RoleRepeated
	case KindForEachGroup:
		if index == 0 {
			return RoleSameFocus
		}
		return RoleRepeated
	case KindFor, KindQuantified:
		if index == 0 {
			return RoleSameFocus
		}
		return RoleSameFocus | RoleRepeated
	default:
		return RoleSameFocus
	}
}

// ReplaceOperand substitutes repl for the operand old of parent. It reports
// whether the substitution took place. repl must be detached, already an
// operand of parent or an operand of old.
func (t *Tree) ReplaceOperand(parent, old, repl NodeID) bool {
	if t.frozen || parent == NoNode {
		return false
	}
	if p := t.nodes[repl].parent; p != NoNode && p != parent && p != old {
		return false
	}
	n := &t.nodes[parent]
	for i, op := range n.Operands {
		if op != old {
			continue
		}
		t.setOperand(parent, i, repl)
		return true
	}
	return false
}

// Replace substitutes repl for id in the parent of id.
func (t *Tree) Replace(id, repl NodeID) bool {
	if id == repl {
		return false
	}
	return t.ReplaceOperand(t.nodes[id].parent, id, repl)
}

func (t *Tree) setOperand(parent NodeID, index int, repl NodeID) {
	n := &t.nodes[parent]
	if old := n.Operands[index]; old != NoNode && t.nodes[old].parent == parent {
		t.nodes[old].parent = NoNode
	}
	n.Operands[index] = repl
	if repl != NoNode {
		t.nodes[repl].parent = parent
	}
	t.invalidate(parent)
}

// detach removes the link between id and its parent without touching the
// parent operands. The caller is expected to fill the hole.
func (t *Tree) detach(id NodeID) {
	t.nodes[id].parent = NoNode
}

// invalidate resets the cached properties of id and of its ancestors.
func (t *Tree) invalidate(id NodeID) {
	for id != NoNode {
		t.nodes[id].valid = false
		id = t.nodes[id].parent
	}
}

// ResetPropertiesWithinSubtree drops the cached properties of every
// expression of the subtree rooted at id and of its ancestors.
func (t *Tree) ResetPropertiesWithinSubtree(id NodeID) {
	if t.frozen {
		return
	}
	t.walk(id, func(n NodeID) bool {
		t.nodes[n].valid = false
		return true
	})
	t.invalidate(id)
}

// walk visits the subtree rooted at id depth first. Operands of a node are
// skipped when fn returns false.
func (t *Tree) walk(id NodeID, fn func(NodeID) bool) {
	if id == NoNode || !fn(id) {
		return
	}
	for _, op := range t.nodes[id].Operands {
		t.walk(op, fn)
	}
}

// Copy duplicates the subtree rooted at id. References to declarations
// copied along are rebound to the copies.
func (t *Tree) Copy(id NodeID) NodeID {
	remap := make(map[NodeID]NodeID)
	return t.copyNode(id, remap)
}

func (t *Tree) copyNode(id NodeID, remap map[NodeID]NodeID) NodeID {
	if id == NoNode {
		return NoNode
	}
	src := t.nodes[id]
	n := src
	n.Operands = make([]NodeID, len(src.Operands))
	n.ArgModes = append([]EvalMode(nil), src.ArgModes...)
	n.valid = false
	for i := range n.Operands {
		n.Operands[i] = NoNode
	}
	cp := t.add(n)
	if src.Kind.binding() {
		remap[id] = cp
	}
	for i, op := range src.Operands {
		c := t.copyNode(op, remap)
		t.attach(cp, c)
		t.nodes[cp].Operands[i] = c
	}
	if src.Kind == KindVarRef {
		if b, ok := remap[src.Binding]; ok {
			t.nodes[cp].Binding = b
		}
	}
	if src.Kind == KindParamRef || src.Fixed {
		t.nodes[cp].Slot = src.Slot
	}
	return cp
}
