package xpath

import (
	"slices"
	"testing"

	"github.com/midbel/xcore/xml"
)

const document = `<?xml version="1.0" encoding="UTF-8"?>

<root>
	<item id="first">element-1</item>
	<item id="second">element-2</item>
	<group>
		<item lang="en">sub-element-1</item>
		<item lang="fr">sub-element-2</item>
		<test ignore="true"/>
	</group>
</root>
`

func parseDocument(t *testing.T) *xml.Document {
	t.Helper()
	doc, err := xml.ParseString(document)
	if err != nil {
		t.Fatalf("fail to parse document: %s", err)
	}
	return doc
}

func element(name string) NodeTest {
	return NodeTest{Kind: UElement, Name: name}
}

func literal(t *Tree, values ...any) NodeID {
	var seq Sequence
	for _, v := range values {
		seq = append(seq, Singleton(v)...)
	}
	return t.Literal(seq)
}

// absolute builds /n1/n2/... with child steps.
func absolute(t *Tree, names ...string) NodeID {
	expr := t.Root()
	for _, n := range names {
		expr = MakePath(t, expr, t.Step(AxisChild, element(n)), true)
	}
	return expr
}

// descendants builds //name.
func descendants(t *Tree, name string) NodeID {
	return MakePath(t, t.Root(), t.Step(AxisDescendant, element(name)), true)
}

func values(seq Sequence) []string {
	var list []string
	for _, it := range seq {
		list = append(list, StringValue(it))
	}
	return list
}

func evaluate(t *testing.T, tree *Tree, root NodeID, doc xml.Node, options ...Option) (Sequence, error) {
	t.Helper()
	prog, err := Compile(tree, root, options...)
	if err != nil {
		t.Fatalf("fail to compile expression: %s", err)
	}
	var opts []ContextOption
	if doc != nil {
		opts = append(opts, FocusNode(doc))
	}
	return prog.Evaluate(prog.NewContext(opts...))
}

func TestEval(t *testing.T) {
	tests := []struct {
		Name     string
		Build    func(*Tree) NodeID
		Expected []string
	}{
		{
			Name: "child path",
			Build: func(t *Tree) NodeID {
				return absolute(t, "root", "item")
			},
			Expected: []string{"element-1", "element-2"},
		},
		{
			Name: "positional filter",
			Build: func(t *Tree) NodeID {
				return t.Filter(absolute(t, "root", "item"), literal(t, 1))
			},
			Expected: []string{"element-1"},
		},
		{
			Name: "last filter",
			Build: func(t *Tree) NodeID {
				return t.Filter(absolute(t, "root", "item"), t.Call("last"))
			},
			Expected: []string{"element-2"},
		},
		{
			Name: "position filter",
			Build: func(t *Tree) NodeID {
				pred := t.Compare(OpGt, t.Call("position"), literal(t, 1))
				return t.Filter(absolute(t, "root", "item"), pred)
			},
			Expected: []string{"element-2"},
		},
		{
			Name: "count descendants",
			Build: func(t *Tree) NodeID {
				return t.Call("count", descendants(t, "item"))
			},
			Expected: []string{"4"},
		},
		{
			Name: "descendants",
			Build: func(t *Tree) NodeID {
				return descendants(t, "item")
			},
			Expected: []string{"element-1", "element-2", "sub-element-1", "sub-element-2"},
		},
		{
			Name: "union in document order",
			Build: func(t *Tree) NodeID {
				left := t.Filter(absolute(t, "root", "item"), literal(t, 2))
				right := t.Filter(absolute(t, "root", "item"), literal(t, 1))
				return t.Venn(OpUnion, left, right)
			},
			Expected: []string{"element-1", "element-2"},
		},
		{
			Name: "except",
			Build: func(t *Tree) NodeID {
				right := t.Filter(absolute(t, "root", "item"), literal(t, 1))
				return t.Venn(OpExcept, descendants(t, "item"), right)
			},
			Expected: []string{"element-2", "sub-element-1", "sub-element-2"},
		},
		{
			Name: "attribute predicate",
			Build: func(t *Tree) NodeID {
				attr := t.Step(AxisAttribute, NodeTest{Kind: UAttribute, Name: "lang"})
				pred := t.Compare(OpEq, attr, literal(t, "fr"))
				return t.Filter(descendants(t, "item"), pred)
			},
			Expected: []string{"sub-element-2"},
		},
		{
			Name: "arithmetic",
			Build: func(t *Tree) NodeID {
				return t.Arith(OpMul, t.Arith(OpAdd, literal(t, 1), literal(t, 2)), literal(t, 4))
			},
			Expected: []string{"12"},
		},
		{
			Name: "division",
			Build: func(t *Tree) NodeID {
				return t.Arith(OpDiv, literal(t, 1), literal(t, 4))
			},
			Expected: []string{"0.25"},
		},
		{
			Name: "for expression",
			Build: func(t *Tree) NodeID {
				loop := t.For("i", t.Range(literal(t, 1), literal(t, 3)))
				return t.Bind(loop, t.Arith(OpMul, t.Ref(loop), literal(t, 2)))
			},
			Expected: []string{"2", "4", "6"},
		},
		{
			Name: "some",
			Build: func(t *Tree) NodeID {
				some := t.Some("i", t.Range(literal(t, 1), literal(t, 3)))
				return t.Bind(some, t.Compare(OpEq, t.Ref(some), literal(t, 2)))
			},
			Expected: []string{"true"},
		},
		{
			Name: "every",
			Build: func(t *Tree) NodeID {
				every := t.Every("i", t.Range(literal(t, 1), literal(t, 3)))
				return t.Bind(every, t.Compare(OpLt, t.Ref(every), literal(t, 3)))
			},
			Expected: []string{"false"},
		},
		{
			Name: "conditional",
			Build: func(t *Tree) NodeID {
				cond := t.Call("exists", descendants(t, "test"))
				return t.If(cond, literal(t, "yes"), literal(t, "no"))
			},
			Expected: []string{"yes"},
		},
		{
			Name: "let with several references",
			Build: func(t *Tree) NodeID {
				let := t.Let("x", descendants(t, "item"))
				body := t.Block(t.Call("count", t.Ref(let)), t.Call("string", t.Filter(t.Ref(let), literal(t, 3))))
				return t.Bind(let, body)
			},
			Expected: []string{"4", "sub-element-1"},
		},
		{
			Name: "parent of root",
			Build: func(t *Tree) NodeID {
				return MakePath(t, t.Root(), t.Step(AxisParent, NodeTest{Kind: UAnyNode}), false)
			},
		},
		{
			Name: "value comparison of empty",
			Build: func(t *Tree) NodeID {
				return t.Compare(OpValEq, t.Empty(), literal(t, 1))
			},
		},
		{
			Name: "concat",
			Build: func(t *Tree) NodeID {
				return t.Call("concat", literal(t, "a"), literal(t, 1), t.Call("local-name", absolute(t, "root")))
			},
			Expected: []string{"a1root"},
		},
	}
	doc := parseDocument(t)
	for _, tt := range tests {
		t.Run(tt.Name, func(t *testing.T) {
			tree := NewTree()
			seq, err := evaluate(t, tree, tt.Build(tree), doc)
			if err != nil {
				t.Fatalf("unexpected error: %s", err)
			}
			got := values(seq)
			if !slices.Equal(got, tt.Expected) {
				t.Errorf("results mismatched! want %q, got %q", tt.Expected, got)
			}
		})
	}
}

func TestEvalErrors(t *testing.T) {
	tests := []struct {
		Name  string
		Build func(*Tree) NodeID
		Code  string
		Focus bool
	}{
		{
			Name: "absent focus",
			Build: func(t *Tree) NodeID {
				return t.Step(AxisChild, element("root"))
			},
			Code: CodeAbsentFocus,
		},
		{
			Name: "root of atomic",
			Build: func(t *Tree) NodeID {
				loop := t.For("i", literal(t, 1))
				return t.Bind(loop, MakePath(t, t.Ref(loop), t.Root(), false))
			},
			Code:  CodeRootNotNode,
			Focus: true,
		},
		{
			Name: "division by zero",
			Build: func(t *Tree) NodeID {
				return t.Arith(OpIDiv, literal(t, 1), literal(t, 0))
			},
			Code: CodeDivideByZero,
		},
		{
			Name: "mixed path",
			Build: func(t *Tree) NodeID {
				step := t.Block(t.ContextItem(), t.Call("string"))
				return MakePath(t, absolute(t, "root"), step, true)
			},
			Code:  CodeMixedPath,
			Focus: true,
		},
		{
			Name: "ebv of numbers",
			Build: func(t *Tree) NodeID {
				return t.If(literal(t, 1, 2), literal(t, 1), literal(t, 0))
			},
			Code: CodeEffectiveBoolean,
		},
		{
			Name: "venn over atomics",
			Build: func(t *Tree) NodeID {
				let := t.Let("x", t.Range(literal(t, 1), literal(t, 2)))
				return t.Bind(let, t.Venn(OpUnion, t.Call("head", t.Ref(let)), absolute(t, "root")))
			},
			Code:  CodeType,
			Focus: true,
		},
		{
			Name: "error function",
			Build: func(t *Tree) NodeID {
				return t.Call("error")
			},
			Code: CodeUserError,
		},
		{
			Name: "error expression",
			Build: func(t *Tree) NodeID {
				return t.Error("XPTY0019", "bad step")
			},
			Code: "XPTY0019",
		},
	}
	doc := parseDocument(t)
	for _, tt := range tests {
		t.Run(tt.Name, func(t *testing.T) {
			tree := NewTree()
			var focus xml.Node
			if tt.Focus {
				focus = doc
			}
			_, err := evaluate(t, tree, tt.Build(tree), focus)
			if err == nil {
				t.Fatalf("expected error %s, got none", tt.Code)
			}
			if !HasCode(err, tt.Code) {
				t.Errorf("expected error %s, got %s", tt.Code, err)
			}
		})
	}
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		Name  string
		Build func(*Tree) NodeID
		Code  string
	}{
		{
			Name: "unknown function",
			Build: func(t *Tree) NodeID {
				return t.Call("unknown")
			},
			Code: CodeUndefinedFunc,
		},
		{
			Name: "wrong arity",
			Build: func(t *Tree) NodeID {
				return t.Call("count")
			},
			Code: CodeUndefinedFunc,
		},
		{
			Name: "unknown user function",
			Build: func(t *Tree) NodeID {
				return t.UserCall("f", literal(t, 1))
			},
			Code: CodeUndefinedFunc,
		},
		{
			Name: "unknown global",
			Build: func(t *Tree) NodeID {
				return t.GlobalRef("g")
			},
			Code: CodeUndefinedVar,
		},
		{
			Name: "venn over strings",
			Build: func(t *Tree) NodeID {
				return t.Venn(OpIntersect, literal(t, "a"), t.Root())
			},
			Code: CodeType,
		},
	}
	for _, tt := range tests {
		t.Run(tt.Name, func(t *testing.T) {
			tree := NewTree()
			_, err := Compile(tree, tt.Build(tree))
			if err == nil {
				t.Fatalf("expected error %s, got none", tt.Code)
			}
			if !HasCode(err, tt.Code) {
				t.Errorf("expected error %s, got %s", tt.Code, err)
			}
			if e, ok := err.(*Error); !ok || !e.Static {
				t.Errorf("static error expected")
			}
		})
	}
}

func TestCompileFreeze(t *testing.T) {
	tree := NewTree()
	root := literal(tree, 1)
	if _, err := Compile(tree, root); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if !tree.Frozen() {
		t.Fatalf("tree should be frozen after compilation")
	}
	if _, err := Compile(tree, root); err != ErrFrozen {
		t.Errorf("expected ErrFrozen, got %v", err)
	}
}

func TestEvaluateForeignContext(t *testing.T) {
	var (
		t1 = NewTree()
		t2 = NewTree()
	)
	p1, err := Compile(t1, literal(t1, 1))
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	p2, err := Compile(t2, literal(t2, 2))
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if _, err := p1.Evaluate(p2.NewContext()); err != ErrContext {
		t.Errorf("expected ErrContext, got %v", err)
	}
}

func TestSupplyParameters(t *testing.T) {
	tree := NewTree()
	root := tree.Block(tree.ParamRef("p", 0), tree.GlobalRef("g"))

	prog, err := Compile(tree, root, WithGlobal("g", Sequence{String("global")}))
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	seq, err := prog.Evaluate(prog.NewContext(Supply(0, Sequence{String("param")})))
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if got, want := values(seq), []string{"param", "global"}; !slices.Equal(got, want) {
		t.Errorf("results mismatched! want %q, got %q", want, got)
	}
}

func TestUserFunction(t *testing.T) {
	var (
		tree = NewTree()
		fn   = tree.DefineFunction("double", "x")
		x    = fn.Params[0]
	)
	tree.SetBody(fn, tree.Arith(OpMul, tree.Ref(x), literal(tree, 2)))

	let := tree.Let("v", literal(tree, 21))
	root := tree.Bind(let, tree.UserCall("double", tree.Ref(let)))

	seq, err := evaluate(t, tree, root, nil)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if got := values(seq); !slices.Equal(got, []string{"42"}) {
		t.Errorf("unexpected result: %q", got)
	}
}

func TestExtensionFunction(t *testing.T) {
	upper := Function{
		Name:    "upper",
		MinArgs: 1,
		MaxArgs: 1,
		Card:    CardOne,
		Type:    UString,
		Call: func(_ *Context, args []Value) (Value, error) {
			str, err := stringArg(args[0])
			if err != nil {
				return nil, err
			}
			var res []rune
			for _, r := range str {
				if r >= 'a' && r <= 'z' {
					r -= 'a' - 'A'
				}
				res = append(res, r)
			}
			return Sequence{String(string(res))}, nil
		},
	}
	tree := NewTree()
	root := tree.Call("upper", literal(tree, "xcore"))
	seq, err := evaluate(t, tree, root, nil, WithFunction(&upper))
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if got := values(seq); !slices.Equal(got, []string{"XCORE"}) {
		t.Errorf("unexpected result: %q", got)
	}
	if _, err := builtins.Resolve("upper"); err == nil {
		t.Errorf("extension function should not be registered globally")
	}
}
