package xpath

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/midbel/xcore/environ"
)

type argOrder int8

const (
	orderKept argOrder = iota
	orderIgnored
	orderIgnoredKeepDuplicates
)

// Function is a function implemented in Go and callable by name from
// expressions.
type Function struct {
	Name    string
	MinArgs int
	MaxArgs int

	// Deps are the dependencies of any call; Implicit are added when the
	// function is called without arguments and reads the context item.
	Deps     Dependency
	Implicit Dependency
	Card     Cardinality
	Type     UType

	order argOrder
	Call  func(*Context, []Value) (Value, error)
}

const variadic = -1

func (f *Function) dependencies(arity int) Dependency {
	if arity == 0 {
		return f.Deps | f.Implicit
	}
	return f.Deps
}

func (f *Function) accepts(arity int) bool {
	return arity >= f.MinArgs && (f.MaxArgs == variadic || arity <= f.MaxArgs)
}

var builtins = environ.Strict[*Function](nil)

// DefaultBuiltin returns the registry of builtin functions wrapped in an
// environment where more functions can be defined.
func DefaultBuiltin() environ.Environ[*Function] {
	return environ.Enclosed(builtins)
}

func register(fn Function) {
	if fn.Card == 0 {
		fn.Card = CardOne
	}
	if fn.Type == UVoid {
		fn.Type = UAnyItem
	}
	if err := builtins.Define(fn.Name, &fn); err != nil {
		panic(err)
	}
}

func init() {
	focus := []Function{
		{Name: "position", Deps: DepPosition, Type: UInteger, Call: callPosition},
		{Name: "last", Deps: DepLast, Type: UInteger, Call: callLast},
		{Name: "current", Deps: DepCurrentItem, Call: callCurrent},
		{Name: "current-group", Deps: DepCurrentGroup, Card: CardZeroOrMore, Call: callCurrentGroup},
		{Name: "current-grouping-key", Deps: DepCurrentGroup, Card: CardZeroOrOne, Type: UAnyAtomic, Call: callCurrentKey},
		{Name: "regex-group", MinArgs: 1, MaxArgs: 1, Deps: DepRegexGroup, Type: UString, Call: callRegexGroup},
	}
	sequences := []Function{
		{Name: "count", MinArgs: 1, MaxArgs: 1, Type: UInteger, order: orderIgnoredKeepDuplicates, Call: callCount},
		{Name: "exists", MinArgs: 1, MaxArgs: 1, Type: UBoolean, order: orderIgnored, Call: callExists},
		{Name: "empty", MinArgs: 1, MaxArgs: 1, Type: UBoolean, order: orderIgnored, Call: callEmpty},
		{Name: "not", MinArgs: 1, MaxArgs: 1, Type: UBoolean, order: orderIgnored, Call: callNot},
		{Name: "boolean", MinArgs: 1, MaxArgs: 1, Type: UBoolean, order: orderIgnored, Call: callBoolean},
		{Name: "true", Type: UBoolean, Call: callTrue},
		{Name: "false", Type: UBoolean, Call: callFalse},
		{Name: "head", MinArgs: 1, MaxArgs: 1, Card: CardZeroOrOne, Call: callHead},
		{Name: "data", MaxArgs: 1, Implicit: DepContextItem, Card: CardZeroOrMore, Type: UAnyAtomic, Call: callData},
		{Name: "sum", MinArgs: 1, MaxArgs: 2, Type: UNumeric, order: orderIgnoredKeepDuplicates, Call: callSum},
		{Name: "error", MaxArgs: 2, Card: CardZeroOrMore, Call: callError},
	}
	strs := []Function{
		{Name: "string", MaxArgs: 1, Implicit: DepContextItem, Type: UString, Call: callString},
		{Name: "number", MaxArgs: 1, Implicit: DepContextItem, Type: UDouble, Call: callNumber},
		{Name: "concat", MinArgs: 2, MaxArgs: variadic, Type: UString, Call: callConcat},
		{Name: "string-length", MaxArgs: 1, Implicit: DepContextItem, Type: UInteger, Call: callStringLength},
		{Name: "name", MaxArgs: 1, Implicit: DepContextItem, Type: UString, Call: callName},
		{Name: "local-name", MaxArgs: 1, Implicit: DepContextItem, Type: UString, Call: callLocalName},
	}
	for _, list := range [][]Function{focus, sequences, strs, mapFunctions} {
		for _, fn := range list {
			register(fn)
		}
	}
}

func callPosition(ctx *Context, _ []Value) (Value, error) {
	if ctx.item == nil {
		return nil, absentFocus()
	}
	return Sequence{Integer(int64(ctx.position))}, nil
}

func callLast(ctx *Context, _ []Value) (Value, error) {
	if ctx.item == nil {
		return nil, absentFocus()
	}
	return Sequence{Integer(int64(ctx.last))}, nil
}

func callCurrent(ctx *Context, _ []Value) (Value, error) {
	if ctx.current == nil {
		return nil, dynamicError("XTDE1360", "current item is absent")
	}
	return Sequence{ctx.current}, nil
}

func callCurrentGroup(ctx *Context, _ []Value) (Value, error) {
	if ctx.group == nil {
		return EmptySequence, nil
	}
	return ctx.group.Current(), nil
}

func callCurrentKey(ctx *Context, _ []Value) (Value, error) {
	if ctx.group == nil || ctx.group.CurrentKey() == nil {
		return EmptySequence, nil
	}
	return Sequence{ctx.group.CurrentKey()}, nil
}

func callRegexGroup(ctx *Context, args []Value) (Value, error) {
	n, err := integerArg(args[0])
	if err != nil {
		return nil, err
	}
	if n < 0 || int(n) >= len(ctx.regex) {
		return Sequence{String("")}, nil
	}
	return Sequence{String(ctx.regex[n])}, nil
}

func callCount(_ *Context, args []Value) (Value, error) {
	if g, ok := args[0].(Grounded); ok {
		return Sequence{Integer(int64(g.Len()))}, nil
	}
	var count int64
	for _, err := range Items(args[0]) {
		if err != nil {
			return nil, err
		}
		count++
	}
	return Sequence{Integer(count)}, nil
}

func callExists(_ *Context, args []Value) (Value, error) {
	first, err := Head(args[0])
	return Sequence{Boolean(first != nil)}, err
}

func callEmpty(_ *Context, args []Value) (Value, error) {
	first, err := Head(args[0])
	return Sequence{Boolean(first == nil)}, err
}

func callNot(_ *Context, args []Value) (Value, error) {
	ok, err := EffectiveBooleanValueOf(args[0])
	return Sequence{Boolean(!ok)}, err
}

func callBoolean(_ *Context, args []Value) (Value, error) {
	ok, err := EffectiveBooleanValueOf(args[0])
	return Sequence{Boolean(ok)}, err
}

func callTrue(_ *Context, _ []Value) (Value, error) {
	return Sequence{Boolean(true)}, nil
}

func callFalse(_ *Context, _ []Value) (Value, error) {
	return Sequence{Boolean(false)}, nil
}

func callHead(_ *Context, args []Value) (Value, error) {
	first, err := Head(args[0])
	if err != nil || first == nil {
		return EmptySequence, err
	}
	return Sequence{first}, nil
}

func callData(ctx *Context, args []Value) (Value, error) {
	v, err := focusArg(ctx, args)
	if err != nil {
		return nil, err
	}
	return AtomizeValue(v)
}

func callSum(_ *Context, args []Value) (Value, error) {
	xs, err := AtomizeValue(args[0])
	if err != nil {
		return nil, err
	}
	if len(xs) == 0 {
		if len(args) > 1 {
			return args[1], nil
		}
		return Sequence{Integer(0)}, nil
	}
	total := numeric(xs[0])
	for _, x := range xs[1:] {
		if total, err = doAdd(total, numeric(x)); err != nil {
			return nil, err
		}
	}
	return Sequence{total}, nil
}

func callError(_ *Context, args []Value) (Value, error) {
	var (
		code = CodeUserError
		msg  = "error raised by the error function"
	)
	if len(args) > 0 {
		if s, err := stringArg(args[0]); err == nil && s != "" {
			code = s
		}
	}
	if len(args) > 1 {
		if s, err := stringArg(args[1]); err == nil {
			msg = s
		}
	}
	return nil, dynamicError(code, "%s", msg)
}

func callString(ctx *Context, args []Value) (Value, error) {
	v, err := focusArg(ctx, args)
	if err != nil {
		return nil, err
	}
	first, err := Head(v)
	if err != nil || first == nil {
		return Sequence{String("")}, err
	}
	if first.Type()&UAnyFunc != 0 {
		return nil, typeError(CodeAtomizeFunc, "string value of %s is not defined", first.Type())
	}
	return Sequence{String(StringValue(first))}, nil
}

func callNumber(ctx *Context, args []Value) (Value, error) {
	v, err := focusArg(ctx, args)
	if err != nil {
		return nil, err
	}
	xs, err := AtomizeValue(v)
	if err != nil {
		return nil, err
	}
	if len(xs) == 0 {
		return Sequence{Double(math.NaN())}, nil
	}
	return Sequence{Double(toFloat(xs[0]))}, nil
}

func callConcat(_ *Context, args []Value) (Value, error) {
	var str strings.Builder
	for _, a := range args {
		s, err := stringArg(a)
		if err != nil {
			return nil, err
		}
		str.WriteString(s)
	}
	return Sequence{String(str.String())}, nil
}

func callStringLength(ctx *Context, args []Value) (Value, error) {
	v, err := focusArg(ctx, args)
	if err != nil {
		return nil, err
	}
	s, err := stringArg(v)
	if err != nil {
		return nil, err
	}
	return Sequence{Integer(int64(utf8.RuneCountInString(s)))}, nil
}

func callName(ctx *Context, args []Value) (Value, error) {
	return nodeName(ctx, args, false)
}

func callLocalName(ctx *Context, args []Value) (Value, error) {
	return nodeName(ctx, args, true)
}

func nodeName(ctx *Context, args []Value, local bool) (Value, error) {
	v, err := focusArg(ctx, args)
	if err != nil {
		return nil, err
	}
	first, err := Head(v)
	if err != nil || first == nil {
		return Sequence{String("")}, err
	}
	n := first.Node()
	if n == nil {
		return nil, typeError(CodeType, "name of %s is not defined", first.Type())
	}
	if local {
		return Sequence{String(n.LocalName())}, nil
	}
	return Sequence{String(n.QualifiedName())}, nil
}

// focusArg returns the only argument of a function or the context item
// when called without argument.
func focusArg(ctx *Context, args []Value) (Value, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	if ctx.item == nil {
		return nil, absentFocus()
	}
	return Sequence{ctx.item}, nil
}

func stringArg(v Value) (string, error) {
	xs, err := AtomizeValue(v)
	if err != nil || len(xs) == 0 {
		return "", err
	}
	if len(xs) > 1 {
		return "", typeError(CodeType, "a sequence of more than one item is not allowed as argument")
	}
	return StringValue(xs[0]), nil
}

func integerArg(v Value) (int64, error) {
	xs, err := AtomizeValue(v)
	if err != nil {
		return 0, err
	}
	if len(xs) != 1 {
		return 0, typeError(CodeType, "exactly one integer expected, got %d items", len(xs))
	}
	return toInteger(xs[0])
}

// call invokes a builtin function. Arguments are evaluated eagerly except
// for the first argument of functions reading only part of it.
func (p *Program) call(ctx *Context, n *Node) (Value, error) {
	fn, err := p.tree.builtin(n.Name)
	if err != nil {
		return nil, dynamicError(CodeUndefinedFunc, "%s: unknown function", n.Name)
	}
	args := make([]Value, len(n.Operands))
	for i, op := range n.Operands {
		mode := EagerEvaluationMode(p.tree, op)
		if i == 0 && fn.order != orderKept {
			mode = LazyEvaluationMode(p.tree, op)
		}
		if args[i], err = p.evaluate(ctx, op, mode, 1); err != nil {
			return nil, err
		}
	}
	return fn.Call(ctx, args)
}
