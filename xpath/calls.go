package xpath

type tailCall struct {
	fn   *UserFunction
	args []Value
}

// callFunction calls a user function. Calls made in tail position of the
// body are not evaluated recursively: they are returned to this loop which
// performs them in turn.
func (p *Program) callFunction(ctx *Context, id NodeID) (Value, error) {
	n := p.tree.Node(id)
	fn, err := p.function(n)
	if err != nil {
		return nil, locate(err, n.Loc, ctx)
	}
	args, err := p.arguments(ctx, n)
	if err != nil {
		return nil, err
	}
	for depth := 0; ; depth++ {
		frame := newFrame(fn.Slots)
		for i := range args {
			frame.Set(i, args[i])
		}
		v, next, err := p.evalTail(ctx.withFrame(frame), fn.Body)
		if err != nil {
			return nil, err
		}
		if next == nil {
			if depth > 0 {
				ctx.Logger().Debug("tail calls performed", "function", fn.Name, "count", depth)
			}
			return v, nil
		}
		fn, args = next.fn, next.args
	}
}

func (p *Program) function(n *Node) (*UserFunction, error) {
	fn := p.tree.Function(n.Name)
	if fn == nil {
		return nil, dynamicError(CodeUndefinedFunc, "%s: unknown function", n.Name)
	}
	if len(fn.Params) != len(n.Operands) {
		return nil, dynamicError(CodeUndefinedFunc, "%s: function expects %d arguments, got %d", n.Name, len(fn.Params), len(n.Operands))
	}
	return fn, nil
}

// arguments evaluates the arguments of a call with the modes chosen at
// compile time.
func (p *Program) arguments(ctx *Context, n *Node) ([]Value, error) {
	args := make([]Value, len(n.Operands))
	for i, op := range n.Operands {
		mode := ModeUndecided
		if i < len(n.ArgModes) {
			mode = n.ArgModes[i]
		}
		v, err := p.evaluate(ctx, op, mode, 1)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return args, nil
}

// evalTail evaluates the body of a function. It returns the call to make
// instead of a value when the body ends with a call marked as tail call.
func (p *Program) evalTail(ctx *Context, id NodeID) (Value, *tailCall, error) {
	n := p.tree.Node(id)
	switch n.Kind {
	case KindIf:
		ok, err := p.ebv(ctx, n.Operands[0])
		if err != nil {
			return nil, nil, err
		}
		if ok {
			return p.evalTail(ctx, n.Operands[1])
		}
		return p.evalTail(ctx, n.Operands[2])
	case KindLet:
		if err := p.bind(ctx, id); err != nil {
			return nil, nil, err
		}
		return p.evalTail(ctx, n.Operands[1])
	case KindUserCall:
		if n.TailCall == 0 {
			break
		}
		fn, err := p.function(n)
		if err != nil {
			return nil, nil, locate(err, n.Loc, ctx)
		}
		args, err := p.arguments(ctx, n)
		if err != nil {
			return nil, nil, err
		}
		return nil, &tailCall{fn: fn, args: args}, nil
	}
	v, err := p.value(ctx, id)
	return v, nil, err
}
