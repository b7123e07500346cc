package xpath

import (
	"math"
	"testing"

	"github.com/midbel/xcore/xml"
)

func TestEffectiveBooleanValue(t *testing.T) {
	node := NewNode(xml.NewElement(xml.LocalName("item")))
	tests := []struct {
		Name  string
		Input Value
		Want  bool
		Code  string
	}{
		{Name: "empty", Input: EmptySequence, Want: false},
		{Name: "node", Input: Sequence{node}, Want: true},
		{Name: "node first", Input: Sequence{node, Integer(1)}, Want: true},
		{Name: "empty string", Input: Sequence{String("")}, Want: false},
		{Name: "string", Input: Sequence{String("a")}, Want: true},
		{Name: "untyped", Input: Sequence{Untyped("false")}, Want: true},
		{Name: "zero", Input: Sequence{Integer(0)}, Want: false},
		{Name: "integer", Input: Sequence{Integer(-1)}, Want: true},
		{Name: "nan", Input: Sequence{Double(math.NaN())}, Want: false},
		{Name: "double", Input: Sequence{Double(0.5)}, Want: true},
		{Name: "true", Input: Sequence{Boolean(true)}, Want: true},
		{Name: "false", Input: Sequence{Boolean(false)}, Want: false},
		{Name: "range", Input: IntegerRange{Start: 0, End: 0}, Want: false},
		{Name: "many atomics", Input: Sequence{Integer(1), Integer(2)}, Code: CodeEffectiveBoolean},
		{Name: "map", Input: Sequence{EmptyMap()}, Code: CodeEffectiveBoolean},
		{Name: "array", Input: Sequence{NewArray()}, Code: CodeEffectiveBoolean},
	}
	for _, tt := range tests {
		t.Run(tt.Name, func(t *testing.T) {
			got, err := EffectiveBooleanValueOf(tt.Input)
			if tt.Code != "" {
				if !HasCode(err, tt.Code) {
					t.Errorf("expected error %s, got %v", tt.Code, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %s", err)
			}
			if got != tt.Want {
				t.Errorf("ebv mismatched! want %t, got %t", tt.Want, got)
			}
		})
	}
}

func TestProgramEffectiveBooleanValue(t *testing.T) {
	tree := NewTree()
	root := descendants(tree, "test")
	prog, err := Compile(tree, root)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	ok, err := prog.EffectiveBooleanValue(prog.NewContext(FocusNode(parseDocument(t))))
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if !ok {
		t.Errorf("document has test element")
	}
}
