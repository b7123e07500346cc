package main

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/midbel/xcore/xml"
	"github.com/midbel/xcore/xpath"
	"github.com/midbel/xcore/xslt"
)

const loaderSample = `<root><item>1</item><list><item>2</item><item>3</item></list></root>`

func TestQueryCompile(t *testing.T) {
	tests := []struct {
		Name  string
		Query string
		Want  []string
	}{
		{
			Name:  "arith",
			Query: `{"main": {"kind": "arith", "op": "+", "args": [{"kind": "literal", "value": 1}, {"kind": "literal", "value": 2}]}}`,
			Want:  []string{"3"},
		},
		{
			Name: "let",
			Query: `{"main": {"kind": "let", "name": "x", "in": {"kind": "literal", "value": 5},
				"body": {"kind": "arith", "op": "*", "args": [{"kind": "var", "name": "x"}, {"kind": "literal", "value": 2}]}}}`,
			Want: []string{"10"},
		},
		{
			Name: "global",
			Query: `{"globals": {"base": {"kind": "literal", "value": "foo"}},
				"main": {"kind": "call", "name": "concat", "args": [{"kind": "global", "name": "base"}, {"kind": "literal", "value": "bar"}]}}`,
			Want: []string{"foobar"},
		},
		{
			Name: "function",
			Query: `{"functions": [{"name": "fact", "params": ["n", "acc"], "body": {"kind": "if", "args": [
					{"kind": "compare", "op": "<=", "args": [{"kind": "var", "name": "n"}, {"kind": "literal", "value": 1}]},
					{"kind": "var", "name": "acc"},
					{"kind": "user-call", "name": "fact", "args": [
						{"kind": "arith", "op": "-", "args": [{"kind": "var", "name": "n"}, {"kind": "literal", "value": 1}]},
						{"kind": "arith", "op": "*", "args": [{"kind": "var", "name": "acc"}, {"kind": "var", "name": "n"}]}
					]}
				]}}],
				"main": {"kind": "user-call", "name": "fact", "args": [{"kind": "literal", "value": 5}, {"kind": "literal", "value": 1}]}}`,
			Want: []string{"120"},
		},
		{
			Name: "path",
			Query: `{"main": {"kind": "call", "name": "count", "args": [{"kind": "path", "sort": true, "args": [
				{"kind": "root"}, {"kind": "step", "axis": "descendant", "name": "item"}]}]}}`,
			Want: []string{"3"},
		},
	}
	doc, err := xml.ParseString(loaderSample)
	if err != nil {
		t.Fatalf("fail to parse sample: %s", err)
	}
	for _, tt := range tests {
		t.Run(tt.Name, func(t *testing.T) {
			var q Query
			if err := json.Unmarshal([]byte(tt.Query), &q); err != nil {
				t.Fatalf("fail to decode query: %s", err)
			}
			prog, err := q.Compile()
			if err != nil {
				t.Fatalf("fail to compile query: %s", err)
			}
			seq, err := prog.Evaluate(prog.NewContext(xpath.FocusNode(doc)))
			if err != nil {
				t.Fatalf("fail to evaluate query: %s", err)
			}
			var got []string
			for _, it := range seq {
				got = append(got, xpath.StringValue(it))
			}
			if strings.Join(got, ",") != strings.Join(tt.Want, ",") {
				t.Errorf("results mismatched! want %q, got %q", tt.Want, got)
			}
		})
	}
}

func TestQueryCompileErrors(t *testing.T) {
	tests := []struct {
		Name  string
		Query string
		Err   error
	}{
		{
			Name:  "scope",
			Query: `{"main": {"kind": "var", "name": "x"}}`,
			Err:   ErrVariable,
		},
		{
			Name:  "kind",
			Query: `{"main": {"kind": "lambda"}}`,
			Err:   ErrKind,
		},
		{
			Name:  "operands",
			Query: `{"main": {"kind": "filter", "args": [{"kind": "context"}]}}`,
			Err:   ErrOperands,
		},
		{
			Name:  "map",
			Query: `{"main": {"kind": "map", "args": [{"kind": "literal", "value": "k"}]}}`,
			Err:   ErrOperands,
		},
	}
	for _, tt := range tests {
		t.Run(tt.Name, func(t *testing.T) {
			var q Query
			if err := json.Unmarshal([]byte(tt.Query), &q); err != nil {
				t.Fatalf("fail to decode query: %s", err)
			}
			_, err := q.Compile()
			if !errors.Is(err, tt.Err) {
				t.Errorf("error mismatched! want %v, got %v", tt.Err, err)
			}
		})
	}
}

func TestPatternBuild(t *testing.T) {
	doc, err := xml.ParseString(loaderSample)
	if err != nil {
		t.Fatalf("fail to parse sample: %s", err)
	}
	tests := []struct {
		Name    string
		Pattern string
		Want    int
	}{
		{
			Name:    "test",
			Pattern: `{"kind": "test", "name": "item"}`,
			Want:    3,
		},
		{
			Name:    "path",
			Pattern: `{"kind": "path", "upper": {"name": "list"}, "base": {"name": "item"}}`,
			Want:    2,
		},
		{
			Name:    "union",
			Pattern: `{"kind": "union", "left": {"name": "list"}, "right": {"name": "root"}}`,
			Want:    2,
		},
		{
			Name:    "except",
			Pattern: `{"kind": "except", "left": {"test": "node"}, "right": {"test": "text"}}`,
			Want:    6,
		},
	}
	for _, tt := range tests {
		t.Run(tt.Name, func(t *testing.T) {
			var p Pattern
			if err := json.Unmarshal([]byte(tt.Pattern), &p); err != nil {
				t.Fatalf("fail to decode pattern: %s", err)
			}
			pattern, err := p.Build()
			if err != nil {
				t.Fatalf("fail to build pattern: %s", err)
			}
			seq, err := xslt.Select(nil, doc, pattern)
			if err != nil {
				t.Fatalf("fail to select nodes: %s", err)
			}
			if len(seq) != tt.Want {
				t.Errorf("nodes count mismatched! want %d, got %d", tt.Want, len(seq))
			}
		})
	}
}

func TestGroundedOf(t *testing.T) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(`{"name": "xcore", "tags": ["a", "b"], "meta": {"size": 2}, "none": null}`), &obj); err != nil {
		t.Fatalf("fail to decode object: %s", err)
	}
	m, err := mapOf(obj)
	if err != nil {
		t.Fatalf("fail to convert object: %s", err)
	}
	if m.Size() != 4 {
		t.Fatalf("map size mismatched! want 4, got %d", m.Size())
	}
	tags, ok := m.Get(xpath.String("tags"))
	if !ok || tags.Len() != 1 {
		t.Fatalf("tags not found")
	}
	if arr, ok := tags.ItemAt(0).(*xpath.ArrayItem); !ok || arr.Size() != 2 {
		t.Errorf("tags should be an array of two members")
	}
	meta, ok := m.Get(xpath.String("meta"))
	if !ok || meta.Len() != 1 {
		t.Fatalf("meta not found")
	}
	sub, ok := meta.ItemAt(0).(xpath.MapItem)
	if !ok {
		t.Fatalf("meta should be a map")
	}
	size, ok := sub.Get(xpath.String("size"))
	if !ok || size.ItemAt(0).Type() != xpath.UInteger {
		t.Errorf("size should be an integer")
	}
	if none, ok := m.Get(xpath.String("none")); !ok || none.Len() != 0 {
		t.Errorf("null should give the empty sequence")
	}
}
