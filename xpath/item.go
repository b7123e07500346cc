package xpath

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/midbel/xcore/xml"
)

type Item interface {
	Node() xml.Node
	Value() any
	Atomic() bool
	Type() UType
}

type atomicItem struct {
	kind  UType
	value any
}

func Integer(i int64) Item {
	return atomicItem{kind: UInteger, value: i}
}

func Double(f float64) Item {
	return atomicItem{kind: UDouble, value: f}
}

func String(s string) Item {
	return atomicItem{kind: UString, value: s}
}

func Untyped(s string) Item {
	return atomicItem{kind: UUntyped, value: s}
}

func AnyURI(s string) Item {
	return atomicItem{kind: UAnyURI, value: s}
}

func Boolean(b bool) Item {
	return atomicItem{kind: UBoolean, value: b}
}

func (_ atomicItem) Node() xml.Node {
	return nil
}

func (i atomicItem) Value() any {
	return i.value
}

func (_ atomicItem) Atomic() bool {
	return true
}

func (i atomicItem) Type() UType {
	return i.kind
}

func (i atomicItem) String() string {
	return StringValue(i)
}

type nodeItem struct {
	node xml.Node
}

func NewNode(n xml.Node) Item {
	return nodeItem{node: n}
}

func (i nodeItem) Node() xml.Node {
	return i.node
}

func (i nodeItem) Value() any {
	return i.node.Value()
}

func (_ nodeItem) Atomic() bool {
	return false
}

func (i nodeItem) Type() UType {
	return NodeUType(i.node)
}

// FunctionItem is a reference to a named function usable as a value.
type FunctionItem struct {
	Name  string
	Arity int
}

func (_ *FunctionItem) Node() xml.Node {
	return nil
}

func (f *FunctionItem) Value() any {
	return f
}

func (_ *FunctionItem) Atomic() bool {
	return false
}

func (_ *FunctionItem) Type() UType {
	return UFunction
}

// ItemOf converts a go value into an item.
func ItemOf(v any) (Item, error) {
	switch v := v.(type) {
	case Item:
		return v, nil
	case xml.Node:
		return NewNode(v), nil
	case int:
		return Integer(int64(v)), nil
	case int64:
		return Integer(v), nil
	case float64:
		return Double(v), nil
	case string:
		return String(v), nil
	case bool:
		return Boolean(v), nil
	default:
		return nil, fmt.Errorf("%T: %w", v, ErrImplemented)
	}
}

// Identical reports whether two items are the same item. Nodes are compared
// by identity.
func Identical(a, b Item) bool {
	if a == nil || b == nil {
		return a == b
	}
	if an, bn := a.Node(), b.Node(); an != nil || bn != nil {
		return xml.Same(an, bn)
	}
	if a.Type() != b.Type() {
		return false
	}
	return a == b
}

func StringValue(it Item) string {
	if n := it.Node(); n != nil {
		return n.Value()
	}
	switch v := it.Value().(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return formatDouble(v)
	default:
		return fmt.Sprint(v)
	}
}

func formatDouble(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "INF"
	case math.IsInf(f, -1):
		return "-INF"
	case f == math.Trunc(f) && math.Abs(f) < 1e15:
		return strconv.FormatFloat(f, 'f', -1, 64)
	default:
		return strings.ToUpper(strconv.FormatFloat(f, 'g', -1, 64))
	}
}

// Atomize returns the typed values of an item.
func Atomize(it Item) (Sequence, error) {
	switch it := it.(type) {
	case nodeItem:
		return Sequence{Untyped(it.node.Value())}, nil
	case atomicItem:
		return Sequence{it}, nil
	case *ArrayItem:
		var seq Sequence
		for _, m := range it.members {
			for j := 0; j < m.Len(); j++ {
				xs, err := Atomize(m.ItemAt(j))
				if err != nil {
					return nil, err
				}
				seq = append(seq, xs...)
			}
		}
		return seq, nil
	default:
		return nil, typeError(CodeAtomizeFunc, "%s can not be atomized", it.Type())
	}
}

func AtomizeValue(v Value) (Sequence, error) {
	var res Sequence
	for it, err := range Items(v) {
		if err != nil {
			return nil, err
		}
		xs, err := Atomize(it)
		if err != nil {
			return nil, err
		}
		res = append(res, xs...)
	}
	return res, nil
}

func toFloat(it Item) float64 {
	switch v := it.Value().(type) {
	case int64:
		return float64(v)
	case float64:
		return v
	case bool:
		if v {
			return 1
		}
		return 0
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

func toInteger(it Item) (int64, error) {
	switch v := it.Value().(type) {
	case int64:
		return v, nil
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, dynamicError(CodeCast, "%s can not be cast to xs:integer", formatDouble(v))
		}
		return int64(v), nil
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, dynamicError(CodeCast, "%q can not be cast to xs:integer", v)
		}
		return i, nil
	default:
		return 0, typeError(CodeType, "%s can not be used as xs:integer", it.Type())
	}
}
