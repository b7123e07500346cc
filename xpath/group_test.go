package xpath

import (
	"context"
	"slices"
	"strings"
	"testing"

	"github.com/midbel/xcore/xml"
)

func TestGroupBy(t *testing.T) {
	population := Sequence{Integer(1), Integer(2), Integer(3), Integer(4), Integer(5)}
	groups, err := GroupBy(population, func(item Item, _ int) (Sequence, error) {
		i := item.Value().(int64)
		keys := Sequence{String("all")}
		if i%2 == 0 {
			keys = append(keys, String("even"))
		} else {
			keys = append(keys, String("odd"))
		}
		return keys, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	want := map[string]string{
		"all":  "1 2 3 4 5",
		"odd":  "1 3 5",
		"even": "2 4",
	}
	var order []string
	for groups.Next() {
		key := StringValue(groups.CurrentKey())
		order = append(order, key)
		if got := strings.Join(values(groups.Current()), " "); got != want[key] {
			t.Errorf("%s: want %s, got %s", key, want[key], got)
		}
	}
	if w := []string{"all", "odd", "even"}; !slices.Equal(order, w) {
		t.Errorf("groups order mismatched! want %q, got %q", w, order)
	}
	if groups.CurrentKey() != nil || len(groups.Current()) != 0 {
		t.Errorf("no current group expected after the last one")
	}
}

func TestForEachGroup(t *testing.T) {
	tree := NewTree()
	key := tree.Call("local-name", tree.Step(AxisParent, NodeTest{Kind: UAnyNode}))
	body := tree.Block(tree.Call("current-grouping-key"), tree.Call("count", tree.Call("current-group")))
	root := tree.ForEachGroup(descendants(tree, "item"), key, body)

	seq, err := evaluate(t, tree, root, parseDocument(t))
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	want := []string{"root", "2", "group", "2"}
	if got := values(seq); !slices.Equal(got, want) {
		t.Errorf("results mismatched! want %q, got %q", want, got)
	}
}

func TestCurrentGroupAbsent(t *testing.T) {
	tree := NewTree()
	seq, err := evaluate(t, tree, tree.Call("count", tree.Call("current-group")), nil)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if got := values(seq); !slices.Equal(got, []string{"0"}) {
		t.Errorf("current-group should be empty outside of grouping, got %q", got)
	}
}

func TestIndexedFilter(t *testing.T) {
	tree := NewTree()
	let := tree.Let("x", descendants(tree, "item"))
	attr := tree.Step(AxisAttribute, NodeTest{Kind: UAttribute, Name: "lang"})
	pred := tree.Compare(OpEq, attr, literal(tree, "fr"))
	root := tree.Bind(let, tree.Filter(tree.Ref(let), pred))

	prog, err := Compile(tree, root)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if mode := tree.Node(let).Mode; mode != ModeMakeIndexedVariable {
		t.Errorf("mode mismatched! want %s, got %s", ModeMakeIndexedVariable, mode)
	}
	seq, err := prog.Evaluate(prog.NewContext(FocusNode(parseDocument(t))))
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if got := values(seq); !slices.Equal(got, []string{"sub-element-2"}) {
		t.Errorf("results mismatched! got %q", got)
	}
}

func TestIndexedFilterInLoop(t *testing.T) {
	tree := NewTree()
	let := tree.Let("x", descendants(tree, "item"))
	loop := tree.For("lang", literal(tree, "fr", "en", "fr"))
	attr := tree.Step(AxisAttribute, NodeTest{Kind: UAttribute, Name: "lang"})
	pred := tree.Compare(OpEq, attr, tree.Ref(loop))
	body := tree.Bind(loop, tree.Filter(tree.Ref(let), pred))
	root := tree.Bind(let, body)

	seq, err := evaluate(t, tree, root, parseDocument(t))
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	want := []string{"sub-element-2", "sub-element-1", "sub-element-2"}
	if got := values(seq); !slices.Equal(got, want) {
		t.Errorf("results mismatched! want %q, got %q", want, got)
	}
}

func TestMemoClosureIndexReused(t *testing.T) {
	tree := NewTree()
	items := descendants(tree, "item")
	key := tree.Step(AxisAttribute, NodeTest{Kind: UAttribute, Name: "lang"})
	root := tree.Block(items, key)
	prog, err := Compile(tree, root)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	ctx := prog.NewContext(FocusNode(parseDocument(t)))
	memo := newMemoClosure(ctx, items, RefFiltered)

	for i, lang := range []string{"fr", "en", "fr"} {
		g, err := memo.Ground()
		if err != nil {
			t.Fatalf("unexpected error: %s", err)
		}
		ix, ok := g.(*IndexedSequence)
		if !ok {
			t.Fatalf("indexed sequence expected, got %T", g)
		}
		if i > 0 && ix != memo.indexed {
			t.Fatalf("indexed sequence rebuilt on call %d", i+1)
		}
		res, err := ix.Lookup(ctx, key, Sequence{String(lang)})
		if err != nil {
			t.Fatalf("unexpected error: %s", err)
		}
		if len(res) != 1 {
			t.Errorf("%s: one item expected, got %q", lang, values(res))
		}
		if len(ix.indexes) != 1 {
			t.Errorf("one index expected after %d lookup(s), got %d", i+1, len(ix.indexes))
		}
	}
}

func TestIndexedSequenceLookup(t *testing.T) {
	tree := NewTree()
	key := tree.Step(AxisAttribute, NodeTest{Kind: UAttribute, Name: "lang"})
	prog, err := Compile(tree, key)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	doc := parseDocument(t)

	var seq Sequence
	for n := range xml.Descendants(doc) {
		if n.LocalName() == "item" {
			seq = append(seq, NewNode(n))
		}
	}
	ix := NewIndexedSequence(prog, seq)
	ctx := prog.NewContext()

	res, err := ix.Lookup(ctx, key, Sequence{String("fr"), String("en")})
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if got, want := values(res), []string{"sub-element-1", "sub-element-2"}; !slices.Equal(got, want) {
		t.Errorf("results mismatched! want %q, got %q", want, got)
	}
	if res, _ = ix.Lookup(ctx, key, Sequence{String("de")}); len(res) != 0 {
		t.Errorf("no item expected, got %q", values(res))
	}
}

func TestProcess(t *testing.T) {
	tree := NewTree()
	first := tree.Filter(absolute(tree, "root", "item"), literal(tree, 1))
	root := tree.Element(xml.LocalName("out"),
		tree.Text(literal(tree, "total:")),
		tree.Call("count", descendants(tree, "item")),
		first,
	)
	prog, err := Compile(tree, root)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	out := NewSequenceOutputter()
	if err := prog.Process(prog.NewContext(FocusNode(parseDocument(t))), out); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	seq := out.Sequence()
	if len(seq) != 1 {
		t.Fatalf("one element expected, got %d items", len(seq))
	}
	want := `<out>total:4<item id="first">element-1</item></out>`
	if got := xml.WriteNode(seq[0].Node()); got != want {
		t.Errorf("element mismatched!\nwant: %s\ngot:  %s", want, got)
	}

	seq, err = prog.Evaluate(prog.NewContext(FocusNode(parseDocument(t))))
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if len(seq) != 1 || xml.WriteNode(seq[0].Node()) != want {
		t.Errorf("pull evaluation should build the same element")
	}
}

func TestSequenceOutputterUnbalanced(t *testing.T) {
	out := NewSequenceOutputter()
	if err := out.EndElement(); err != ErrUnbalanced {
		t.Errorf("expected ErrUnbalanced, got %v", err)
	}
	out.Attribute(xml.LocalName("id"), "1")
	out.Characters("text")
	if got := len(out.Sequence()); got != 2 {
		t.Errorf("expected 2 items, got %d", got)
	}
	out.Reset()
	if len(out.Sequence()) != 0 {
		t.Errorf("reset should drop items")
	}
}

func TestEvaluateAll(t *testing.T) {
	tree := NewTree()
	root := tree.Arith(OpMul, tree.ContextItem(), literal(tree, 10))
	prog, err := Compile(tree, root)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	var items []Item
	for i := range 20 {
		items = append(items, Integer(int64(i)))
	}
	res, err := EvaluateAll(context.Background(), prog, items, 4)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if len(res) != len(items) {
		t.Fatalf("results count mismatched! want %d, got %d", len(items), len(res))
	}
	for i, seq := range res {
		want := StringValue(Integer(int64(i * 10)))
		if len(seq) != 1 || StringValue(seq[0]) != want {
			t.Errorf("item %d: want %s, got %q", i, want, values(seq))
		}
	}
}

func TestEvaluateAllError(t *testing.T) {
	tree := NewTree()
	root := tree.Arith(OpIDiv, literal(tree, 10), tree.ContextItem())
	prog, err := Compile(tree, root)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	items := []Item{Integer(1), Integer(0), Integer(2)}
	if _, err := EvaluateAll(context.Background(), prog, items, 0); !HasCode(err, CodeDivideByZero) {
		t.Errorf("expected error %s, got %v", CodeDivideByZero, err)
	}
}
