package xpath

import (
	"slices"
	"strings"

	"github.com/midbel/xcore/xml"
)

// value computes the value of an expression needed immediately.
func (p *Program) value(ctx *Context, id NodeID) (Value, error) {
	return p.evaluate(ctx, id, EagerEvaluationMode(p.tree, id), 1)
}

// evaluate obtains the value of an expression according to mode. ref is
// the reference count of the variable receiving the value, if any.
func (p *Program) evaluate(ctx *Context, id NodeID, mode EvalMode, ref int) (Value, error) {
	n := p.tree.Node(id)
	switch mode {
	case ModeNoEvaluationNeeded:
		if n.Kind == KindLiteral {
			return n.Literal, nil
		}
		return p.value(ctx, id)
	case ModeEvaluateVariable:
		return p.variable(ctx, id)
	case ModeEvaluateSuppliedParameter:
		return p.parameter(ctx, n)
	case ModeMakeClosure:
		return newClosure(ctx, id), nil
	case ModeMakeMemoClosure:
		if ref == 1 {
			ref = RefMany
		}
		return newMemoClosure(ctx, id, ref), nil
	case ModeMakeSingletonClosure:
		return newSingletonClosure(ctx, id), nil
	case ModeReturnEmptySequence:
		return EmptySequence, nil
	case ModeEvaluateAndMaterializeVariable:
		v, err := p.variable(ctx, id)
		if err != nil {
			return nil, err
		}
		return Ground(v)
	case ModeCallEvaluateItem:
		item, err := p.evaluateItem(ctx, id)
		if err != nil || item == nil {
			return EmptySequence, err
		}
		return Sequence{item}, nil
	case ModeIterateAndMaterialize:
		seq, err := Materialize(p.iterate(ctx, id))
		if err != nil {
			return nil, err
		}
		if ref >= RefFiltered {
			return NewIndexedSequence(p, seq), nil
		}
		return seq, nil
	case ModeProcess:
		out := ctx.exec.outputter()
		err := p.process(ctx.WithReceiver(out), id)
		seq := out.Sequence()
		ctx.exec.release(out)
		return seq, err
	case ModeLazyTail:
		return p.lazyTail(ctx, id)
	case ModeSharedAppend:
		return p.sharedAppend(ctx, id)
	case ModeMakeIndexedVariable:
		return newMemoClosure(ctx, id, RefFiltered), nil
	default:
		return p.evaluate(ctx, id, LazyEvaluationMode(p.tree, id), ref)
	}
}

func (p *Program) variable(ctx *Context, id NodeID) (Value, error) {
	n := p.tree.Node(id)
	switch n.Kind {
	case KindVarRef:
		v := ctx.frame.Get(n.Slot)
		if v == nil {
			return EmptySequence, nil
		}
		return v, nil
	case KindParamRef:
		return p.parameter(ctx, n)
	case KindGlobalRef:
		return p.global(ctx, n)
	default:
		return p.value(ctx, id)
	}
}

// parameter reads a value supplied by the caller in the frame, falling back
// on the parameters given to the program.
func (p *Program) parameter(ctx *Context, n *Node) (Value, error) {
	if v := ctx.frame.Get(n.Slot); v != nil {
		return v, nil
	}
	if v, err := p.cfg.params.Resolve(n.Name); err == nil {
		return v, nil
	}
	return EmptySequence, nil
}

// global computes the value of a global variable once per execution.
func (p *Program) global(ctx *Context, n *Node) (Value, error) {
	exec := ctx.exec
	if v, ok := exec.globals[n.Name]; ok {
		return v, nil
	}
	if v, err := p.cfg.globals.Resolve(n.Name); err == nil {
		exec.globals[n.Name] = v
		return v, nil
	}
	g, ok := p.tree.globals[n.Name]
	if !ok {
		e := dynamicError(CodeUndefinedVar, "variable $%s is not defined", n.Name)
		return nil, locate(e, n.Loc, ctx)
	}
	gctx := exec.initial.Sub()
	gctx.frame = newFrame(g.Slots)
	mode := globalMode(p.tree, g.Init)
	ctx.Logger().Debug("evaluate global variable", "variable", g.Name, "mode", mode.String())
	v, err := p.evaluate(gctx, g.Init, mode, RefMany)
	if err != nil {
		return nil, err
	}
	exec.globals[n.Name] = v
	return v, nil
}

func (p *Program) lazyTail(ctx *Context, id NodeID) (Value, error) {
	n := p.tree.Node(id)
	base, err := p.variable(ctx, n.Operands[0])
	if err != nil {
		return nil, err
	}
	if m, ok := base.(*MemoClosure); ok {
		if base, err = m.Ground(); err != nil {
			return nil, err
		}
	}
	start := max(n.Int, 1)
	switch b := base.(type) {
	case IntegerRange:
		return b.Tail(start), nil
	case Grounded:
		offset := int(start - 1)
		return b.Subsequence(offset, b.Len()-offset), nil
	default:
		return newClosure(ctx, id), nil
	}
}

// sharedAppend concatenates the operands of a block into a chain. The chain
// held by the first operand is extended in place when nothing was appended
// to it since it was built.
func (p *Program) sharedAppend(ctx *Context, id NodeID) (Value, error) {
	var chain *Chain
	for i, op := range p.tree.Operands(id) {
		var g Grounded
		if p.tree.Cardinality(op).AllowsMany() {
			v, err := p.variable(ctx, op)
			if err != nil {
				return nil, err
			}
			if c, ok := v.(*Chain); ok && i == 0 {
				chain = c
				continue
			}
			if g, err = Ground(v); err != nil {
				return nil, err
			}
		} else {
			item, err := p.evaluateItem(ctx, op)
			if err != nil {
				return nil, err
			}
			g = EmptySequence
			if item != nil {
				g = Sequence{item}
			}
		}
		if chain == nil {
			chain = NewChain()
		}
		chain = chain.AppendValue(g)
	}
	if chain == nil {
		return EmptySequence, nil
	}
	return chain, nil
}

// bind stores the value of the variable declared by id in the frame.
func (p *Program) bind(ctx *Context, id NodeID) error {
	n := p.tree.Node(id)
	mode := n.Mode
	if mode == ModeUndecided {
		mode = LazyEvaluationMode(p.tree, n.Operands[0])
	}
	if mode == ModeReturnEmptySequence {
		return nil
	}
	v, err := p.evaluate(ctx, n.Operands[0], mode, n.RefCount)
	if err != nil {
		return err
	}
	ctx.frame.Set(n.Slot, v)
	return nil
}

func (p *Program) iterate(ctx *Context, id NodeID) Iterator {
	n := p.tree.Node(id)
	it := p.iterateNode(ctx, id, n)
	return locatedIterator{Iterator: it, loc: n.Loc, ctx: ctx}
}

func (p *Program) iterateNode(ctx *Context, id NodeID, n *Node) Iterator {
	ops := n.Operands
	switch n.Kind {
	case KindLiteral:
		return n.Literal.Iterate()
	case KindVarRef, KindParamRef, KindGlobalRef:
		v, err := p.variable(ctx, id)
		if err != nil {
			return errorIterator{err: err}
		}
		return v.Iterate()
	case KindAxis:
		return p.axis(ctx, n)
	case KindPath:
		return p.path(ctx, ops[0], ops[1])
	case KindFilter:
		return p.filter(ctx, ops[0], ops[1])
	case KindDocSort:
		seq, err := p.docSort(ctx, n)
		if err != nil {
			return errorIterator{err: err}
		}
		return seq.Iterate()
	case KindLet:
		if err := p.bind(ctx, id); err != nil {
			return errorIterator{err: err}
		}
		return p.iterate(ctx, ops[1])
	case KindFor:
		return p.forEach(ctx, n, func(c *Context) Iterator {
			return p.iterate(c, ops[1])
		})
	case KindIf:
		ok, err := p.ebv(ctx, ops[0])
		if err != nil {
			return errorIterator{err: err}
		}
		if ok {
			return p.iterate(ctx, ops[1])
		}
		return p.iterate(ctx, ops[2])
	case KindBlock:
		var i int
		return &concatIterator{
			next: func() (Iterator, error) {
				if i >= len(ops) {
					return nil, nil
				}
				i++
				return p.iterate(ctx, ops[i-1]), nil
			},
		}
	case KindTail:
		it := p.iterate(ctx, ops[0])
		for i := int64(1); i < n.Int; i++ {
			item, err := it.Next()
			if err != nil {
				return errorIterator{err: err}
			}
			if item == nil {
				break
			}
		}
		return it
	case KindRange:
		return p.rangeOf(ctx, ops[0], ops[1])
	case KindVenn:
		seq, err := p.venn(ctx, n)
		if err != nil {
			return errorIterator{err: err}
		}
		return seq.Iterate()
	case KindCall:
		v, err := p.call(ctx, n)
		if err != nil {
			return errorIterator{err: err}
		}
		return v.Iterate()
	case KindUserCall:
		v, err := p.callFunction(ctx, id)
		if err != nil {
			return errorIterator{err: err}
		}
		return v.Iterate()
	case KindElement, KindText:
		v, err := p.evaluate(ctx, id, ModeProcess, 1)
		if err != nil {
			return errorIterator{err: err}
		}
		return v.Iterate()
	case KindForEachGroup:
		return p.forEachGroup(ctx, n, func(c *Context) Iterator {
			return p.iterate(c, ops[2])
		})
	case KindLocalParam:
		if err := p.localParam(ctx, id); err != nil {
			return errorIterator{err: err}
		}
		return emptyIterator{}
	case KindParam:
		return emptyIterator{}
	default:
		item, err := p.evaluateItem(ctx, id)
		if err != nil {
			return errorIterator{err: err}
		}
		if item == nil {
			return emptyIterator{}
		}
		return Sequence{item}.Iterate()
	}
}

func (p *Program) evaluateItem(ctx *Context, id NodeID) (Item, error) {
	n := p.tree.Node(id)
	item, err := p.evaluateNode(ctx, id, n)
	if err != nil {
		return nil, locate(err, n.Loc, ctx)
	}
	return item, nil
}

func (p *Program) evaluateNode(ctx *Context, id NodeID, n *Node) (Item, error) {
	ops := n.Operands
	switch n.Kind {
	case KindContextItem:
		if ctx.item == nil {
			return nil, absentFocus()
		}
		return ctx.item, nil
	case KindRoot:
		if ctx.item == nil {
			return nil, absentFocus()
		}
		node := ctx.item.Node()
		if node == nil {
			return nil, typeError(CodeRootNotNode, "root expression used with a context item that is not a node")
		}
		return NewNode(xml.Root(node)), nil
	case KindArith:
		return p.arithmetic(ctx, n)
	case KindCompare:
		return p.compare(ctx, n)
	case KindAnd, KindOr:
		left, err := p.ebv(ctx, ops[0])
		if err != nil {
			return nil, err
		}
		if (n.Kind == KindAnd && !left) || (n.Kind == KindOr && left) {
			return Boolean(left), nil
		}
		right, err := p.ebv(ctx, ops[1])
		return Boolean(right), err
	case KindQuantified:
		ok, err := p.quantified(ctx, n)
		return Boolean(ok), err
	case KindMapConstructor:
		return p.mapConstructor(ctx, n)
	case KindError:
		msg, _ := Head(n.Literal)
		e := dynamicError(n.Name, "%s", StringValue(msg))
		return nil, e
	case KindLet:
		if err := p.bind(ctx, id); err != nil {
			return nil, err
		}
		return p.evaluateItem(ctx, ops[1])
	case KindIf:
		ok, err := p.ebv(ctx, ops[0])
		if err != nil {
			return nil, err
		}
		if ok {
			return p.evaluateItem(ctx, ops[1])
		}
		return p.evaluateItem(ctx, ops[2])
	case KindCall:
		v, err := p.call(ctx, n)
		if err != nil {
			return nil, err
		}
		return Head(v)
	default:
		return p.iterateNode(ctx, id, n).Next()
	}
}

// process evaluates an expression in push mode, sending its result to the
// receiver of the context.
func (p *Program) process(ctx *Context, id NodeID) error {
	n := p.tree.Node(id)
	if err := p.processNode(ctx, id, n); err != nil {
		return locate(err, n.Loc, ctx)
	}
	return nil
}

func (p *Program) processNode(ctx *Context, id NodeID, n *Node) error {
	ops := n.Operands
	switch n.Kind {
	case KindElement:
		if err := ctx.receiver.StartElement(n.QName); err != nil {
			return err
		}
		for _, op := range ops {
			if err := p.process(ctx, op); err != nil {
				return err
			}
		}
		return ctx.receiver.EndElement()
	case KindText:
		v, err := p.value(ctx, ops[0])
		if err != nil {
			return err
		}
		xs, err := AtomizeValue(v)
		if err != nil {
			return err
		}
		var parts []string
		for _, x := range xs {
			parts = append(parts, StringValue(x))
		}
		return ctx.receiver.Characters(strings.Join(parts, " "))
	case KindBlock:
		for _, op := range ops {
			if err := p.process(ctx, op); err != nil {
				return err
			}
		}
		return nil
	case KindLet:
		if err := p.bind(ctx, id); err != nil {
			return err
		}
		return p.process(ctx, ops[1])
	case KindIf:
		ok, err := p.ebv(ctx, ops[0])
		if err != nil {
			return err
		}
		if ok {
			return p.process(ctx, ops[1])
		}
		return p.process(ctx, ops[2])
	case KindFor:
		return drain(p.forEach(ctx, n, func(c *Context) Iterator {
			return processIterator(p, c, ops[1])
		}))
	case KindForEachGroup:
		return drain(p.forEachGroup(ctx, n, func(c *Context) Iterator {
			return processIterator(p, c, ops[2])
		}))
	case KindLocalParam:
		return p.localParam(ctx, id)
	default:
		for item, err := range Items(lazyValue(func() Iterator { return p.iterate(ctx, id) })) {
			if err != nil {
				return err
			}
			if err := ctx.receiver.Append(item); err != nil {
				return err
			}
		}
		return nil
	}
}

// processIterator adapts a push evaluation to the iterator protocol used by
// the loop helpers. It never yields items.
func processIterator(p *Program, ctx *Context, id NodeID) Iterator {
	return funcIterator(func() (Item, error) {
		return nil, p.process(ctx, id)
	})
}

func drain(it Iterator) error {
	for {
		item, err := it.Next()
		if err != nil || item == nil {
			return err
		}
	}
}

// ebv computes the effective boolean value of an expression.
func (p *Program) ebv(ctx *Context, id NodeID) (bool, error) {
	n := p.tree.Node(id)
	switch n.Kind {
	case KindCompare, KindAnd, KindOr, KindQuantified:
		item, err := p.evaluateItem(ctx, id)
		if err != nil || item == nil {
			return false, err
		}
		return item.Value().(bool), nil
	default:
		ok, err := EffectiveBooleanValue(p.iterate(ctx, id))
		if err != nil {
			return false, locate(err, n.Loc, ctx)
		}
		return ok, nil
	}
}

func (p *Program) path(ctx *Context, start, step NodeID) Iterator {
	var (
		base Iterator
		pos  int
		last int
	)
	if p.tree.Dependencies(step).Has(DepLast) {
		g, err := p.grounded(ctx, start)
		if err != nil {
			return errorIterator{err: err}
		}
		base, last = g.Iterate(), g.Len()
	} else {
		base = p.iterate(ctx, start)
	}
	return &concatIterator{
		next: func() (Iterator, error) {
			item, err := base.Next()
			if err != nil || item == nil {
				return nil, err
			}
			pos++
			return p.iterate(ctx.WithFocus(item, pos, last), step), nil
		},
	}
}

func (p *Program) grounded(ctx *Context, id NodeID) (Grounded, error) {
	v, err := p.value(ctx, id)
	if err != nil {
		return nil, err
	}
	return Ground(v)
}

func (p *Program) filter(ctx *Context, base, pred NodeID) Iterator {
	if p.tree.isPositional(pred) {
		return p.positional(ctx, base, pred)
	}
	if it, ok := p.indexedFilter(ctx, base, pred); ok {
		return it
	}
	var (
		input Iterator
		last  int
	)
	if p.tree.Dependencies(pred).Has(DepLast) {
		g, err := p.grounded(ctx, base)
		if err != nil {
			return errorIterator{err: err}
		}
		input, last = g.Iterate(), g.Len()
	} else {
		input = p.iterate(ctx, base)
	}
	var pos int
	return funcIterator(func() (Item, error) {
		for {
			item, err := input.Next()
			if err != nil || item == nil {
				return nil, err
			}
			pos++
			ok, err := p.predicate(ctx.WithFocus(item, pos, last), pred)
			if err != nil {
				return nil, err
			}
			if ok {
				return item, nil
			}
		}
	})
}

func (p *Program) positional(ctx *Context, base, pred NodeID) Iterator {
	target, _ := Head(p.tree.Node(pred).Literal)
	f := toFloat(target)
	if f < 1 || f != float64(int64(f)) {
		return emptyIterator{}
	}
	it := p.iterate(ctx, base)
	for i := int64(1); ; i++ {
		item, err := it.Next()
		if err != nil {
			return errorIterator{err: err}
		}
		if item == nil {
			return emptyIterator{}
		}
		if i == int64(f) {
			return Sequence{item}.Iterate()
		}
	}
}

// predicate evaluates a filter predicate: a numeric result is compared with
// the context position, anything else is converted to a boolean.
func (p *Program) predicate(ctx *Context, pred NodeID) (bool, error) {
	if !UNumeric.Overlaps(p.tree.ItemType(pred)) {
		return p.ebv(ctx, pred)
	}
	g, err := p.grounded(ctx, pred)
	if err != nil {
		return false, err
	}
	if g.Len() == 1 {
		if first := g.ItemAt(0); first.Type()&UNumeric != 0 {
			return toFloat(first) == float64(ctx.position), nil
		}
	}
	return EffectiveBooleanValue(g.Iterate())
}

// docSort checks that the result of the inner expression is either made of
// nodes only or of atomic values only, removes duplicate nodes and sorts
// them in document order if requested.
func (p *Program) docSort(ctx *Context, n *Node) (Sequence, error) {
	g, err := p.grounded(ctx, n.Operands[0])
	if err != nil {
		return nil, err
	}
	seq := make(Sequence, 0, g.Len())
	var nodes, atomics bool
	for i := 0; i < g.Len(); i++ {
		item := g.ItemAt(i)
		if item.Node() != nil {
			nodes = true
		} else {
			atomics = true
		}
		seq = append(seq, item)
	}
	if nodes && atomics {
		return nil, typeError(CodeMixedPath, "path result contains both nodes and atomic values")
	}
	if !nodes {
		return seq, nil
	}
	if n.Sort {
		slices.SortStableFunc(seq, func(a, b Item) int {
			return xml.Compare(a.Node(), b.Node())
		})
		return slices.CompactFunc(seq, Identical), nil
	}
	return dedupe(seq), nil
}

func dedupe(seq Sequence) Sequence {
	seen := make(map[xml.Node]struct{})
	return slices.DeleteFunc(seq, func(item Item) bool {
		n := item.Node()
		if _, ok := seen[n]; ok {
			return true
		}
		seen[n] = struct{}{}
		return false
	})
}

func (p *Program) forEach(ctx *Context, n *Node, body func(*Context) Iterator) Iterator {
	in := p.iterate(ctx, n.Operands[0])
	return &concatIterator{
		next: func() (Iterator, error) {
			item, err := in.Next()
			if err != nil || item == nil {
				return nil, err
			}
			ctx.frame.Set(n.Slot, Sequence{item})
			return body(ctx), nil
		},
	}
}

func (p *Program) quantified(ctx *Context, n *Node) (bool, error) {
	in := p.iterate(ctx, n.Operands[0])
	for {
		item, err := in.Next()
		if err != nil {
			return false, err
		}
		if item == nil {
			return n.Op == OpEvery, nil
		}
		ctx.frame.Set(n.Slot, Sequence{item})
		ok, err := p.ebv(ctx, n.Operands[1])
		if err != nil {
			return false, err
		}
		if n.Op == OpSome && ok {
			return true, nil
		}
		if n.Op == OpEvery && !ok {
			return false, nil
		}
	}
}

func (p *Program) rangeOf(ctx *Context, from, to NodeID) Iterator {
	first, err := p.evaluateItem(ctx, from)
	if err != nil || first == nil {
		return errorIterator{err: err}
	}
	last, err := p.evaluateItem(ctx, to)
	if err != nil || last == nil {
		return errorIterator{err: err}
	}
	start, err := toInteger(first)
	if err != nil {
		return errorIterator{err: err}
	}
	end, err := toInteger(last)
	if err != nil {
		return errorIterator{err: err}
	}
	return makeRange(start, end).Iterate()
}

func (p *Program) venn(ctx *Context, n *Node) (Sequence, error) {
	operand := func(id NodeID) (Sequence, error) {
		g, err := p.grounded(ctx, id)
		if err != nil {
			return nil, err
		}
		seq := make(Sequence, 0, g.Len())
		for i := 0; i < g.Len(); i++ {
			item := g.ItemAt(i)
			if item.Node() == nil {
				return nil, typeError(CodeType, "%s operand must contain nodes only, got %s", n.Op, item.Type())
			}
			seq = append(seq, item)
		}
		return seq, nil
	}
	left, err := operand(n.Operands[0])
	if err != nil {
		return nil, err
	}
	right, err := operand(n.Operands[1])
	if err != nil {
		return nil, err
	}
	inRight := func(item Item) bool {
		return slices.ContainsFunc(right, func(other Item) bool {
			return Identical(item, other)
		})
	}
	var res Sequence
	switch n.Op {
	case OpUnion:
		res = append(left, right...)
	case OpIntersect:
		res = slices.DeleteFunc(left, func(item Item) bool { return !inRight(item) })
	case OpExcept:
		res = slices.DeleteFunc(left, inRight)
	}
	slices.SortStableFunc(res, func(a, b Item) int {
		return xml.Compare(a.Node(), b.Node())
	})
	return slices.CompactFunc(res, Identical), nil
}

func (p *Program) localParam(ctx *Context, id NodeID) error {
	n := p.tree.Node(id)
	if ctx.frame.Get(n.Slot) != nil {
		return nil
	}
	if len(n.Operands) == 0 {
		ctx.frame.Set(n.Slot, EmptySequence)
		return nil
	}
	v, err := p.value(ctx, n.Operands[0])
	if err != nil {
		return err
	}
	ctx.frame.Set(n.Slot, v)
	return nil
}

// locatedIterator attaches the location of an expression to the errors
// raised while reading its result.
type locatedIterator struct {
	Iterator
	loc Location
	ctx *Context
}

func (i locatedIterator) Next() (Item, error) {
	item, err := i.Iterator.Next()
	if err != nil {
		return nil, locate(err, i.loc, i.ctx)
	}
	return item, nil
}
