package xml_test

import (
	"slices"
	"testing"

	"github.com/midbel/xcore/xml"
)

const sample = `<?xml version="1.0" encoding="UTF-8"?>
<root id="r">
	<item lang="en">first</item>
	<!-- note -->
	<item lang="fr">second<sub/></item>
</root>`

func TestParseDocument(t *testing.T) {
	doc, err := xml.ParseString(sample)
	if err != nil {
		t.Fatalf("fail to parse sample: %s", err)
	}
	root, ok := doc.Root().(*xml.Element)
	if !ok {
		t.Fatalf("root element expected")
	}
	if root.LocalName() != "root" {
		t.Errorf("unexpected root name: %s", root.LocalName())
	}
	if got := len(root.Nodes); got != 3 {
		t.Errorf("expected 3 children, got %d", got)
	}
	if got := root.Value(); got != "firstsecond" {
		t.Errorf("unexpected string value: %q", got)
	}
	if a := root.GetAttribute("id"); a == nil || a.Value() != "r" {
		t.Errorf("id attribute not found")
	}
}

func TestParseInvalidDocument(t *testing.T) {
	data := []struct {
		Xml   string
		Cause string
	}{
		{
			Xml:   ``,
			Cause: "document without root element",
		},
		{
			Xml:   `<root><item></root>`,
			Cause: "mismatched element",
		},
	}
	for _, d := range data {
		if _, err := xml.ParseString(d.Xml); err == nil {
			t.Errorf("%s: invalid document parsed properly!", d.Cause)
		}
	}
}

func TestDocumentOrder(t *testing.T) {
	doc, err := xml.ParseString(sample)
	if err != nil {
		t.Fatalf("fail to parse sample: %s", err)
	}
	var nodes []xml.Node
	for n := range xml.Descendants(doc) {
		nodes = append(nodes, n)
		nodes = append(nodes, xml.Attributes(n)...)
	}
	shuffled := slices.Clone(nodes)
	slices.Reverse(shuffled)
	slices.SortFunc(shuffled, xml.Compare)
	for i := range nodes {
		if !xml.Same(nodes[i], shuffled[i]) {
			t.Fatalf("node %d out of order: want %s, got %s", i, nodes[i].Identity(), shuffled[i].Identity())
		}
	}
	root := doc.Root()
	attr := xml.Attributes(root)[0]
	first := xml.Children(root)[0]
	if !xml.Before(root, attr) || !xml.Before(attr, first) {
		t.Errorf("attributes should sort after their element and before its children")
	}
}
