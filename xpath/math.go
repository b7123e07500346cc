package xpath

import (
	"errors"
	"math"
	"strings"
)

var ErrZero = errors.New("division by zero")

type arithFunc func(Item, Item) (Item, error)

var arithOp = map[Op]arithFunc{
	OpAdd:  doAdd,
	OpSub:  doSub,
	OpMul:  doMul,
	OpDiv:  doDiv,
	OpIDiv: doIDiv,
	OpMod:  doMod,
}

func (p *Program) arithmetic(ctx *Context, n *Node) (Item, error) {
	left, err := p.operandAtom(ctx, n.Operands[0], n.Op)
	if err != nil || left == nil {
		return nil, err
	}
	right, err := p.operandAtom(ctx, n.Operands[1], n.Op)
	if err != nil || right == nil {
		return nil, err
	}
	fn, ok := arithOp[n.Op]
	if !ok {
		return nil, internalError(n.Loc, "%s: unsupported arithmetic operator", n.Op)
	}
	return fn(numeric(left), numeric(right))
}

// operandAtom atomizes the value of an operand that must hold at most one
// atomic value.
func (p *Program) operandAtom(ctx *Context, id NodeID, op Op) (Item, error) {
	v, err := p.value(ctx, id)
	if err != nil {
		return nil, err
	}
	xs, err := AtomizeValue(v)
	if err != nil {
		return nil, err
	}
	switch len(xs) {
	case 0:
		return nil, nil
	case 1:
		return xs[0], nil
	default:
		return nil, typeError(CodeType, "operand of %s contains more than one item", op)
	}
}

func numeric(it Item) Item {
	switch it.Type() {
	case UInteger, UDouble:
		return it
	default:
		return Double(toFloat(it))
	}
}

func integers(left, right Item) (int64, int64, bool) {
	if left.Type() != UInteger || right.Type() != UInteger {
		return 0, 0, false
	}
	return left.Value().(int64), right.Value().(int64), true
}

func doAdd(left, right Item) (Item, error) {
	if x, y, ok := integers(left, right); ok {
		return Integer(x + y), nil
	}
	return Double(toFloat(left) + toFloat(right)), nil
}

func doSub(left, right Item) (Item, error) {
	if x, y, ok := integers(left, right); ok {
		return Integer(x - y), nil
	}
	return Double(toFloat(left) - toFloat(right)), nil
}

func doMul(left, right Item) (Item, error) {
	if x, y, ok := integers(left, right); ok {
		return Integer(x * y), nil
	}
	return Double(toFloat(left) * toFloat(right)), nil
}

func doDiv(left, right Item) (Item, error) {
	if x, y, ok := integers(left, right); ok {
		if y == 0 {
			return nil, divideByZero()
		}
		if x%y == 0 {
			return Integer(x / y), nil
		}
	}
	return Double(toFloat(left) / toFloat(right)), nil
}

func doIDiv(left, right Item) (Item, error) {
	if x, y, ok := integers(left, right); ok {
		if y == 0 {
			return nil, divideByZero()
		}
		return Integer(x / y), nil
	}
	x, y := toFloat(left), toFloat(right)
	if y == 0 {
		return nil, divideByZero()
	}
	if math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) {
		return nil, dynamicError("FOAR0002", "invalid operand for integer division")
	}
	return Integer(int64(math.Trunc(x / y))), nil
}

func doMod(left, right Item) (Item, error) {
	if x, y, ok := integers(left, right); ok {
		if y == 0 {
			return nil, divideByZero()
		}
		return Integer(x % y), nil
	}
	return Double(math.Mod(toFloat(left), toFloat(right))), nil
}

func divideByZero() error {
	e := dynamicError(CodeDivideByZero, "%s", ErrZero)
	return e
}

func (p *Program) compare(ctx *Context, n *Node) (Item, error) {
	if n.Op >= OpValEq && n.Op <= OpValGe {
		left, err := p.operandAtom(ctx, n.Operands[0], n.Op)
		if err != nil || left == nil {
			return nil, err
		}
		right, err := p.operandAtom(ctx, n.Operands[1], n.Op)
		if err != nil || right == nil {
			return nil, err
		}
		ok, err := compareValues(generalOp(n.Op), left, right, false)
		return Boolean(ok), err
	}
	left, err := p.atomized(ctx, n.Operands[0])
	if err != nil {
		return nil, err
	}
	right, err := p.atomized(ctx, n.Operands[1])
	if err != nil {
		return nil, err
	}
	ok, err := generalCompare(n.Op, left, right)
	return Boolean(ok), err
}

func (p *Program) atomized(ctx *Context, id NodeID) (Sequence, error) {
	v, err := p.value(ctx, id)
	if err != nil {
		return nil, err
	}
	return AtomizeValue(v)
}

// generalCompare is true when one pair of items taken from both sides
// satisfies the comparison.
func generalCompare(op Op, left, right Sequence) (bool, error) {
	for _, x := range left {
		for _, y := range right {
			ok, err := compareValues(op, x, y, true)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
	}
	return false, nil
}

func generalOp(op Op) Op {
	return op - OpValEq + OpEq
}

// compareValues compares two atomic values using codepoint collation for
// strings. With general set, untyped values are converted to the type of
// the other operand.
func compareValues(op Op, left, right Item, general bool) (bool, error) {
	lt, rt := left.Type(), right.Type()
	if general {
		switch {
		case lt == UUntyped && rt&UNumeric != 0:
			left, lt = Double(toFloat(left)), UDouble
		case rt == UUntyped && lt&UNumeric != 0:
			right, rt = Double(toFloat(right)), UDouble
		case lt == UUntyped && rt == UBoolean:
			left, lt = Boolean(castBoolean(left)), UBoolean
		case rt == UUntyped && lt == UBoolean:
			right, rt = Boolean(castBoolean(right)), UBoolean
		}
	}
	var cmp int
	switch {
	case lt&UNumeric != 0 && rt&UNumeric != 0:
		x, y := toFloat(left), toFloat(right)
		if math.IsNaN(x) || math.IsNaN(y) {
			return op == OpNe, nil
		}
		if a, b, ok := integers(left, right); ok {
			cmp = cmpOrdered(a, b)
		} else {
			cmp = cmpOrdered(x, y)
		}
	case lt&UStringLike != 0 && rt&UStringLike != 0:
		cmp = strings.Compare(StringValue(left), StringValue(right))
	case lt == UBoolean && rt == UBoolean:
		x, y := left.Value().(bool), right.Value().(bool)
		cmp = cmpOrdered(boolInt(x), boolInt(y))
	default:
		return false, typeError(CodeType, "%s and %s can not be compared", lt, rt)
	}
	switch op {
	case OpEq:
		return cmp == 0, nil
	case OpNe:
		return cmp != 0, nil
	case OpLt:
		return cmp < 0, nil
	case OpLe:
		return cmp <= 0, nil
	case OpGt:
		return cmp > 0, nil
	case OpGe:
		return cmp >= 0, nil
	default:
		return false, typeError(CodeType, "%s is not a comparison operator", op)
	}
}

func castBoolean(it Item) bool {
	s := strings.TrimSpace(StringValue(it))
	return s == "true" || s == "1"
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func cmpOrdered[T int | int64 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
