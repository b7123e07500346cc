package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/midbel/xcore/xml"
	"github.com/midbel/xcore/xpath"
	"github.com/midbel/xcore/xslt"
)

var (
	ErrKind     = errors.New("unknown kind")
	ErrVariable = errors.New("variable not in scope")
	ErrOperands = errors.New("wrong number of operands")
)

// Expr is the json description of an expression.
type Expr struct {
	Kind  string  `json:"kind"`
	Op    string  `json:"op,omitempty"`
	Name  string  `json:"name,omitempty"`
	Axis  string  `json:"axis,omitempty"`
	Test  string  `json:"test,omitempty"`
	Value any     `json:"value,omitempty"`
	Sort  bool    `json:"sort,omitempty"`
	Start int64   `json:"start,omitempty"`
	Args  []*Expr `json:"args,omitempty"`
	In    *Expr   `json:"in,omitempty"`
	Body  *Expr   `json:"body,omitempty"`
}

type Function struct {
	Name   string   `json:"name"`
	Params []string `json:"params"`
	Body   *Expr    `json:"body"`
}

// Query is the content of a query file: the main expression with the
// global variables and the functions it uses.
type Query struct {
	Globals   map[string]*Expr `json:"globals"`
	Functions []Function       `json:"functions"`
	Main      *Expr            `json:"main"`
}

func loadQuery(file string) (*Query, error) {
	var q Query
	if err := decodeFile(file, &q); err != nil {
		return nil, err
	}
	if q.Main == nil {
		return nil, fmt.Errorf("%s: main expression missing", file)
	}
	return &q, nil
}

func decodeFile(file string, v any) error {
	r, err := os.Open(file)
	if err != nil {
		return err
	}
	defer r.Close()
	return json.NewDecoder(r).Decode(v)
}

func (q *Query) Compile(options ...xpath.Option) (*xpath.Program, error) {
	var (
		tree = xpath.NewTree()
		b    = builder{tree: tree}
	)
	for name, e := range q.Globals {
		init, err := b.build(e)
		if err != nil {
			return nil, fmt.Errorf("global %s: %w", name, err)
		}
		tree.DefineGlobal(name, init)
	}
	for _, f := range q.Functions {
		fn := tree.DefineFunction(f.Name, f.Params...)
		scope := make(map[string]xpath.NodeID)
		for i, p := range f.Params {
			scope[p] = fn.Params[i]
		}
		b.push(scope)
		body, err := b.build(f.Body)
		b.pop()
		if err != nil {
			return nil, fmt.Errorf("function %s: %w", f.Name, err)
		}
		tree.SetBody(fn, body)
	}
	root, err := b.build(q.Main)
	if err != nil {
		return nil, err
	}
	return xpath.Compile(tree, root, options...)
}

// compileExpr compiles a standalone expression such as the predicate of a
// pattern.
func compileExpr(e *Expr, options ...xpath.Option) (*xpath.Program, error) {
	q := Query{
		Main: e,
	}
	return q.Compile(options...)
}

type builder struct {
	tree   *xpath.Tree
	scopes []map[string]xpath.NodeID
}

func (b *builder) push(scope map[string]xpath.NodeID) {
	b.scopes = append(b.scopes, scope)
}

func (b *builder) pop() {
	b.scopes = b.scopes[:len(b.scopes)-1]
}

func (b *builder) lookup(name string) (xpath.NodeID, error) {
	for i := len(b.scopes) - 1; i >= 0; i-- {
		if id, ok := b.scopes[i][name]; ok {
			return id, nil
		}
	}
	return xpath.NoNode, fmt.Errorf("$%s: %w", name, ErrVariable)
}

func (b *builder) build(e *Expr) (xpath.NodeID, error) {
	if e == nil {
		return xpath.NoNode, fmt.Errorf("expression missing")
	}
	t := b.tree
	switch e.Kind {
	case "literal":
		seq, err := literalOf(e.Value)
		if err != nil {
			return xpath.NoNode, err
		}
		return t.Literal(seq), nil
	case "empty":
		return t.Empty(), nil
	case "context":
		return t.ContextItem(), nil
	case "root":
		return t.Root(), nil
	case "step":
		axis, err := parseAxis(e.Axis)
		if err != nil {
			return xpath.NoNode, err
		}
		kind, err := parseTest(e.Test)
		if err != nil {
			return xpath.NoNode, err
		}
		return t.Step(axis, xpath.NodeTest{Kind: kind, Name: e.Name}), nil
	case "path":
		args, err := b.operands(e, 2, -1)
		if err != nil {
			return xpath.NoNode, err
		}
		expr := args[0]
		for _, a := range args[1:] {
			expr = xpath.MakePath(t, expr, a, e.Sort)
		}
		return expr, nil
	case "filter":
		args, err := b.operands(e, 2, 2)
		if err != nil {
			return xpath.NoNode, err
		}
		return t.Filter(args[0], args[1]), nil
	case "let", "for", "some", "every":
		return b.binding(e)
	case "var":
		decl, err := b.lookup(e.Name)
		if err != nil {
			return xpath.NoNode, err
		}
		return t.Ref(decl), nil
	case "global":
		return t.GlobalRef(e.Name), nil
	case "param":
		return t.ParamRef(e.Name, -1), nil
	case "if":
		args, err := b.operands(e, 3, 3)
		if err != nil {
			return xpath.NoNode, err
		}
		return t.If(args[0], args[1], args[2]), nil
	case "block", "sequence":
		args, err := b.operands(e, 0, -1)
		if err != nil {
			return xpath.NoNode, err
		}
		return t.Block(args...), nil
	case "tail":
		args, err := b.operands(e, 1, 1)
		if err != nil {
			return xpath.NoNode, err
		}
		return t.Tail(args[0], max(e.Start, 2)), nil
	case "range":
		args, err := b.operands(e, 2, 2)
		if err != nil {
			return xpath.NoNode, err
		}
		return t.Range(args[0], args[1]), nil
	case "arith", "compare", "venn":
		op, err := parseOp(e.Op)
		if err != nil {
			return xpath.NoNode, err
		}
		args, err := b.operands(e, 2, 2)
		if err != nil {
			return xpath.NoNode, err
		}
		switch e.Kind {
		case "arith":
			return t.Arith(op, args[0], args[1]), nil
		case "compare":
			return t.Compare(op, args[0], args[1]), nil
		default:
			return t.Venn(op, args[0], args[1]), nil
		}
	case "and", "or":
		args, err := b.operands(e, 2, 2)
		if err != nil {
			return xpath.NoNode, err
		}
		if e.Kind == "and" {
			return t.And(args[0], args[1]), nil
		}
		return t.Or(args[0], args[1]), nil
	case "call", "user-call":
		args, err := b.operands(e, 0, -1)
		if err != nil {
			return xpath.NoNode, err
		}
		if e.Kind == "call" {
			return t.Call(e.Name, args...), nil
		}
		return t.UserCall(e.Name, args...), nil
	case "error":
		msg, _ := e.Value.(string)
		return t.Error(e.Name, msg), nil
	case "element":
		args, err := b.operands(e, 0, -1)
		if err != nil {
			return xpath.NoNode, err
		}
		qn, err := xml.ParseName(e.Name)
		if err != nil {
			return xpath.NoNode, err
		}
		return t.Element(qn, args...), nil
	case "text":
		args, err := b.operands(e, 1, 1)
		if err != nil {
			return xpath.NoNode, err
		}
		return t.Text(args[0]), nil
	case "map":
		args, err := b.operands(e, 0, -1)
		if err != nil {
			return xpath.NoNode, err
		}
		if len(args)%2 != 0 {
			return xpath.NoNode, fmt.Errorf("map: %w", ErrOperands)
		}
		return t.MapConstructor(args...), nil
	case "for-each-group":
		args, err := b.operands(e, 3, 3)
		if err != nil {
			return xpath.NoNode, err
		}
		return t.ForEachGroup(args[0], args[1], args[2]), nil
	default:
		return xpath.NoNode, fmt.Errorf("%s: %w", e.Kind, ErrKind)
	}
}

func (b *builder) binding(e *Expr) (xpath.NodeID, error) {
	in, err := b.build(e.In)
	if err != nil {
		return xpath.NoNode, err
	}
	var decl xpath.NodeID
	switch e.Kind {
	case "let":
		decl = b.tree.Let(e.Name, in)
	case "for":
		decl = b.tree.For(e.Name, in)
	case "some":
		decl = b.tree.Some(e.Name, in)
	default:
		decl = b.tree.Every(e.Name, in)
	}
	b.push(map[string]xpath.NodeID{e.Name: decl})
	body, err := b.build(e.Body)
	b.pop()
	if err != nil {
		return xpath.NoNode, err
	}
	return b.tree.Bind(decl, body), nil
}

// operands builds the arguments of e. A negative most means no upper limit.
func (b *builder) operands(e *Expr, least, most int) ([]xpath.NodeID, error) {
	if len(e.Args) < least || (most >= 0 && len(e.Args) > most) {
		return nil, fmt.Errorf("%s: %w (%d given)", e.Kind, ErrOperands, len(e.Args))
	}
	var list []xpath.NodeID
	for _, a := range e.Args {
		id, err := b.build(a)
		if err != nil {
			return nil, err
		}
		list = append(list, id)
	}
	return list, nil
}

func parseOp(str string) (xpath.Op, error) {
	for op := xpath.OpAdd; op <= xpath.OpEvery; op++ {
		if op.String() == str {
			return op, nil
		}
	}
	return xpath.OpNone, fmt.Errorf("%q: unknown operator", str)
}

func parseAxis(str string) (xpath.Axis, error) {
	if str == "" {
		return xpath.AxisChild, nil
	}
	for a := xpath.AxisChild; a <= xpath.AxisFollowing; a++ {
		if a.String() == str {
			return a, nil
		}
	}
	return xpath.AxisChild, fmt.Errorf("%q: unknown axis", str)
}

var testKinds = map[string]xpath.UType{
	"":                       xpath.UElement,
	"element":                xpath.UElement,
	"attribute":              xpath.UAttribute,
	"text":                   xpath.UText,
	"comment":                xpath.UComment,
	"processing-instruction": xpath.UInstruction,
	"document-node":          xpath.UDocument,
	"node":                   xpath.UAnyNode,
}

var itemKinds = map[string]xpath.UType{
	"string":  xpath.UString,
	"integer": xpath.UInteger,
	"double":  xpath.UDouble,
	"numeric": xpath.UNumeric,
	"boolean": xpath.UBoolean,
	"atomic":  xpath.UAnyAtomic,
	"map":     xpath.UMap,
	"array":   xpath.UArray,
	"item":    xpath.UAnyItem,
}

func parseTest(str string) (xpath.UType, error) {
	k, ok := testKinds[str]
	if !ok {
		return xpath.UVoid, fmt.Errorf("%q: unknown node test", str)
	}
	return k, nil
}

// literalOf converts a decoded json value to a sequence. Arrays give
// sequences of their members.
func literalOf(v any) (xpath.Sequence, error) {
	switch v := v.(type) {
	case nil:
		return xpath.EmptySequence, nil
	case []any:
		var seq xpath.Sequence
		for _, x := range v {
			s, err := literalOf(x)
			if err != nil {
				return nil, err
			}
			seq = append(seq, s...)
		}
		return seq, nil
	case float64:
		if v == math.Trunc(v) && math.Abs(v) < 1<<53 {
			return xpath.Sequence{xpath.Integer(int64(v))}, nil
		}
		return xpath.Sequence{xpath.Double(v)}, nil
	case string, bool:
		it, err := xpath.ItemOf(v)
		if err != nil {
			return nil, err
		}
		return xpath.Sequence{it}, nil
	default:
		return nil, fmt.Errorf("%T: literal not supported", v)
	}
}

// Pattern is the json description of a match pattern.
type Pattern struct {
	Kind       string     `json:"kind"`
	Test       string     `json:"test,omitempty"`
	Name       string     `json:"name,omitempty"`
	Type       string     `json:"type,omitempty"`
	Base       *Pattern   `json:"base,omitempty"`
	Upper      *Pattern   `json:"upper,omitempty"`
	Left       *Pattern   `json:"left,omitempty"`
	Right      *Pattern   `json:"right,omitempty"`
	Descendant bool       `json:"descendant,omitempty"`
	Expr       *Expr      `json:"expr,omitempty"`
	Guards     []*Expr    `json:"guards,omitempty"`
	Patterns   []*Pattern `json:"patterns,omitempty"`
}

func loadPattern(file string) (xslt.Pattern, error) {
	var p Pattern
	if err := decodeFile(file, &p); err != nil {
		return nil, err
	}
	return p.Build()
}

func (p *Pattern) Build() (xslt.Pattern, error) {
	if p == nil {
		return nil, fmt.Errorf("pattern missing")
	}
	switch p.Kind {
	case "test", "":
		kind, err := parseTest(p.Test)
		if err != nil {
			return nil, err
		}
		return xslt.NewNodeTestPattern(xpath.NodeTest{Kind: kind, Name: p.Name}), nil
	case "type":
		kind, ok := itemKinds[p.Type]
		if !ok {
			return nil, fmt.Errorf("%q: unknown item type", p.Type)
		}
		return xslt.NewItemTypePattern(kind), nil
	case "predicate":
		base, err := p.Base.Build()
		if err != nil {
			return nil, err
		}
		prog, err := compileExpr(p.Expr)
		if err != nil {
			return nil, err
		}
		return xslt.NewPredicatePattern(base, prog), nil
	case "union", "intersect", "except":
		op, err := parseOp(p.Kind)
		if err != nil {
			return nil, err
		}
		left, err := p.Left.Build()
		if err != nil {
			return nil, err
		}
		right, err := p.Right.Build()
		if err != nil {
			return nil, err
		}
		return xslt.NewVennPattern(op, left, right)
	case "path":
		upper, err := p.Upper.Build()
		if err != nil {
			return nil, err
		}
		base, err := p.Base.Build()
		if err != nil {
			return nil, err
		}
		return xslt.NewPathPattern(upper, base, p.Descendant), nil
	case "node-set":
		prog, err := compileExpr(p.Expr)
		if err != nil {
			return nil, err
		}
		return xslt.NewNodeSetPattern(prog)
	case "conditional":
		var (
			guards   []*xpath.Program
			patterns []xslt.Pattern
		)
		for _, g := range p.Guards {
			prog, err := compileExpr(g)
			if err != nil {
				return nil, err
			}
			guards = append(guards, prog)
		}
		for _, x := range p.Patterns {
			sub, err := x.Build()
			if err != nil {
				return nil, err
			}
			patterns = append(patterns, sub)
		}
		return xslt.NewConditionalPattern(guards, patterns)
	case "first-in-group":
		if p.Base == nil {
			return xslt.NewFirstInGroupPattern(nil), nil
		}
		base, err := p.Base.Build()
		if err != nil {
			return nil, err
		}
		return xslt.NewFirstInGroupPattern(base), nil
	default:
		return nil, fmt.Errorf("%s: %w", p.Kind, ErrKind)
	}
}
