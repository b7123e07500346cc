package xslt

import (
	"bytes"
	"slices"
	"strings"
	"testing"

	"github.com/midbel/xcore/xpath"
)

func values(seq xpath.Sequence) []string {
	var list []string
	for _, it := range seq {
		list = append(list, xpath.StringValue(it))
	}
	return list
}

func attrValue(t *testing.T, attr string) *xpath.Program {
	t.Helper()
	return compile(t, func(tree *xpath.Tree) xpath.NodeID {
		step := tree.Step(xpath.AxisAttribute, xpath.NodeTest{Kind: xpath.UAttribute, Name: attr})
		return tree.Call("string", step)
	})
}

type countingPattern struct {
	Pattern
	count int
}

func (p *countingPattern) Matches(ctx *xpath.Context, item xpath.Item) (bool, error) {
	p.count++
	return p.Pattern.Matches(ctx, item)
}

func TestModeMatch(t *testing.T) {
	doc := parseSample(t)
	pred := compile(t, func(tree *xpath.Tree) xpath.NodeID {
		return attrEquals(tree, "lang", "fr")
	})
	mode := NewMode("default")
	mode.Add(name("a"), nil, WithName("a"))
	mode.Add(NewPredicatePattern(name("a"), pred), nil, WithName("a-fr"))
	mode.Add(NewNodeTestPattern(xpath.NodeTest{Kind: xpath.UAnyNode}), nil, WithName("node"))
	mode.Add(name("b"), nil, WithName("b"), WithPriority(2))

	tests := []struct {
		xpath.Item
		Want string
	}{
		{Item: xpath.NewNode(findElement(t, doc, "a1")), Want: "a"},
		{Item: xpath.NewNode(findElement(t, doc, "a2")), Want: "a-fr"},
		{Item: xpath.NewNode(findElement(t, doc, "node")), Want: "node"},
		{Item: xpath.NewNode(doc), Want: "node"},
		{Item: xpath.Integer(1), Want: ""},
	}
	ctx := caller(t, nil)
	for _, c := range tests {
		r, err := mode.Match(ctx, c.Item)
		if err != nil {
			t.Errorf("unexpected error: %s", err)
			continue
		}
		var got string
		if r != nil {
			got = r.Name
		}
		if got != c.Want {
			t.Errorf("%s: rule mismatched! want %q, got %q", describe(c.Item), c.Want, got)
		}
	}
}

func TestModeAmbiguous(t *testing.T) {
	doc := parseSample(t)
	var (
		list xpath.Collector
		mode = NewMode("ambiguous")
	)
	mode.Add(name("a"), nil, WithName("first"))
	mode.Add(name("a"), nil, WithName("second"))
	mode.Add(NewNodeTestPattern(xpath.NodeTest{Kind: xpath.UElement}), nil, WithName("any"))

	r, err := mode.Match(caller(t, &list), xpath.NewNode(findElement(t, doc, "a1")))
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if r == nil || r.Name != "second" {
		t.Fatalf("last declared rule should be selected, got %v", r)
	}
	if len(list.Warnings) != 1 || !xpath.HasCode(list.Warnings[0], xpath.CodeAmbiguousRule) {
		t.Errorf("expected one %s warning, got %v", xpath.CodeAmbiguousRule, list.Warnings)
	}

	list = xpath.Collector{}
	if _, err := mode.Match(caller(t, &list), xpath.NewNode(findElement(t, doc, "node"))); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if len(list.Warnings) != 0 {
		t.Errorf("no warning expected for a single matching rule, got %v", list.Warnings)
	}
}

func TestModeBuckets(t *testing.T) {
	doc := parseSample(t)
	attr := &countingPattern{
		Pattern: NewNodeTestPattern(xpath.NodeTest{Kind: xpath.UAttribute}),
	}
	elem := &countingPattern{
		Pattern: name("a"),
	}
	mode := NewMode("buckets")
	mode.Add(attr, nil)
	mode.Add(elem, nil)

	a1 := findElement(t, doc, "a1")
	mode.Match(nil, xpath.NewNode(a1))
	mode.Match(nil, xpath.NewNode(a1.GetAttribute("id")))
	mode.Match(nil, xpath.String("a1"))
	if attr.count != 1 {
		t.Errorf("attribute pattern should be tested once, got %d", attr.count)
	}
	if elem.count != 1 {
		t.Errorf("element pattern should be tested once, got %d", elem.count)
	}
}

func TestModeApply(t *testing.T) {
	tests := []struct {
		NoMatch
		Want []string
		Code string
	}{
		{NoMatch: TextOnlyCopy, Want: []string{"foobar", "a1", "second", "a2", "a3"}},
		{NoMatch: ShallowSkip, Want: []string{"a1", "a2", "a3"}},
		{NoMatch: DeepSkip},
		{NoMatch: Fail, Code: CodeNoMatch},
	}
	for _, c := range tests {
		t.Run(c.NoMatch.String(), func(t *testing.T) {
			mode := NewMode("apply", OnNoMatch(c.NoMatch))
			mode.Add(name("a"), attrValue(t, "id"))

			seq, err := mode.ApplyDocument(caller(t, nil), parseSample(t))
			if c.Code != "" {
				if !xpath.HasCode(err, c.Code) {
					t.Errorf("expected error %s, got %v", c.Code, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %s", err)
			}
			if got := values(seq); !slices.Equal(got, c.Want) {
				t.Errorf("results mismatched! want %q, got %q", c.Want, got)
			}
		})
	}
}

func TestModeApplyFocus(t *testing.T) {
	body := compile(t, func(tree *xpath.Tree) xpath.NodeID {
		return tree.Arith(xpath.OpMul, tree.Call("position"), tree.ContextItem())
	})
	mode := NewMode("focus")
	mode.Add(NewItemTypePattern(xpath.UInteger), body)

	seq, err := mode.Apply(caller(t, nil), xpath.Sequence{xpath.Integer(5), xpath.Integer(6), xpath.Integer(7)})
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	want := []string{"5", "12", "21"}
	if got := values(seq); !slices.Equal(got, want) {
		t.Errorf("results mismatched! want %q, got %q", want, got)
	}
}

func TestModeTrace(t *testing.T) {
	var buf bytes.Buffer
	mode := NewMode("trace", Trace(TraceWriter(&buf)), OnNoMatch(ShallowSkip))
	mode.Add(name("a"), attrValue(t, "id"))

	if _, err := mode.ApplyDocument(caller(t, nil), parseSample(t)); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	out := buf.String()
	if got := strings.Count(out, "start rule"); got != 3 {
		t.Errorf("expected 3 rules traced, got %d", got)
	}
	if !strings.Contains(out, "rule=a") {
		t.Errorf("rule name missing in trace: %s", out)
	}
}

func TestModeStreamable(t *testing.T) {
	mode := NewMode("stream")
	mode.Add(name("a"), nil)
	if !mode.Streamable() {
		t.Errorf("mode with node test rules should be streamable")
	}
	prog := compile(t, func(tree *xpath.Tree) xpath.NodeID {
		return descendants(tree, "a")
	})
	p, err := NewNodeSetPattern(prog)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	mode.Add(p, nil)
	if mode.Streamable() {
		t.Errorf("mode with node set rule should not be streamable")
	}
	if len(mode.Rules()) != 2 {
		t.Errorf("expected 2 rules, got %d", len(mode.Rules()))
	}
}
