package xslt

import (
	"slices"
	"testing"

	"github.com/midbel/xcore/xml"
	"github.com/midbel/xcore/xpath"
)

func TestSelect(t *testing.T) {
	doc := parseSample(t)
	pred := compile(t, func(tree *xpath.Tree) xpath.NodeID {
		return attrEquals(tree, "lang", "fr")
	})
	union, err := NewVennPattern(xpath.OpUnion, name("b"), NewNodeTestPattern(xpath.NodeTest{Kind: xpath.UAttribute, Name: "lang"}))
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	tests := []struct {
		Name    string
		Pattern Pattern
		Want    []string
	}{
		{
			Name:    "a",
			Pattern: name("a"),
			Want:    []string{"first", "third", "fourth"},
		},
		{
			Name:    "list//a",
			Pattern: NewPathPattern(name("list"), name("a"), true),
			Want:    []string{"first", "third"},
		},
		{
			Name:    "a[@lang='fr']",
			Pattern: NewPredicatePattern(name("a"), pred),
			Want:    []string{"third"},
		},
		{
			Name:    "b | @lang",
			Pattern: union,
			Want:    []string{"en", "second", "fr"},
		},
		{
			Name:    "text()",
			Pattern: NewNodeTestPattern(xpath.NodeTest{Kind: xpath.UText}),
			Want:    []string{"foobar", "first", "second", "third", "fourth"},
		},
		{
			Name:    "atomic",
			Pattern: NewItemTypePattern(xpath.UString),
		},
	}
	for _, c := range tests {
		seq, err := Select(nil, doc, c.Pattern)
		if err != nil {
			t.Errorf("%s: unexpected error: %s", c.Name, err)
			continue
		}
		if got := values(seq); !slices.Equal(got, c.Want) {
			t.Errorf("%s: nodes mismatched! want %q, got %q", c.Name, c.Want, got)
		}
	}
}

func TestSelectDocument(t *testing.T) {
	doc := parseSample(t)
	p := &countingPattern{
		Pattern: NewNodeTestPattern(xpath.NodeTest{Kind: xpath.UDocument}),
	}
	seq, err := Select(nil, doc, p)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if len(seq) != 1 || seq[0].Node() != xml.Node(doc) {
		t.Errorf("document node expected")
	}
	if p.count != 1 {
		t.Errorf("document pattern should be tested once, got %d", p.count)
	}
	seq, _ = Select(nil, doc.Root(), p)
	if len(seq) != 0 {
		t.Errorf("no document below root element")
	}
}
