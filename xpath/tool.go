package xpath

import (
	"slices"
)

// Reference counts returned by ReferenceCount.
const (
	RefMany     = 10
	RefFiltered = 10000
)

// Contains reports whether the subtree rooted at id holds an expression
// satisfying pred. When sameFocusOnly is set, operands evaluated with a
// different focus are not searched.
func Contains(t *Tree, id NodeID, sameFocusOnly bool, pred func(NodeID) bool) bool {
	if id == NoNode {
		return false
	}
	if pred(id) {
		return true
	}
	for i, op := range t.nodes[id].Operands {
		if sameFocusOnly && t.Role(id, i)&RoleSameFocus == 0 {
			continue
		}
		if Contains(t, op, sameFocusOnly, pred) {
			return true
		}
	}
	return false
}

// CallsFunction reports whether the subtree calls the named builtin or user
// function.
func CallsFunction(t *Tree, id NodeID, name string, sameFocusOnly bool) bool {
	return Contains(t, id, sameFocusOnly, func(x NodeID) bool {
		n := t.nodes[x]
		return (n.Kind == KindCall || n.Kind == KindUserCall) && n.Name == name
	})
}

// DependsOnVariable reports whether the subtree references one of the given
// declarations.
func DependsOnVariable(t *Tree, id NodeID, bindings []NodeID) bool {
	if len(bindings) == 0 {
		return false
	}
	return Contains(t, id, false, func(x NodeID) bool {
		n := t.nodes[x]
		return n.Kind == KindVarRef && slices.Contains(bindings, n.Binding)
	})
}

func ContainsLocalParam(t *Tree, id NodeID) bool {
	return Contains(t, id, false, func(x NodeID) bool {
		return t.nodes[x].Kind == KindLocalParam
	})
}

// RefersToVariableOrFunction reports whether the subtree reads a variable
// or calls a user defined function.
func RefersToVariableOrFunction(t *Tree, id NodeID) bool {
	return Contains(t, id, false, func(x NodeID) bool {
		switch t.nodes[x].Kind {
		case KindVarRef, KindParamRef, KindGlobalRef, KindUserCall:
			return true
		default:
			return false
		}
	})
}

// ChangesXsltContext reports whether the subtree can modify the current
// group or the current template state.
func ChangesXsltContext(t *Tree, id NodeID) bool {
	return Contains(t, id, false, func(x NodeID) bool {
		switch t.nodes[x].Kind {
		case KindForEachGroup, KindUserCall:
			return true
		default:
			return false
		}
	})
}

// GatherReferencedVariables returns the declarations referenced in the
// subtree, in order of first reference.
func GatherReferencedVariables(t *Tree, id NodeID) []NodeID {
	var list []NodeID
	t.walk(id, func(x NodeID) bool {
		n := t.nodes[x]
		if n.Kind == KindVarRef && !slices.Contains(list, n.Binding) {
			list = append(list, n.Binding)
		}
		return true
	})
	return list
}

// GatherVariableReferences returns the references to binding found in the
// subtree.
func GatherVariableReferences(t *Tree, id, binding NodeID) []NodeID {
	var list []NodeID
	t.walk(id, func(x NodeID) bool {
		n := t.nodes[x]
		if n.Kind == KindVarRef && n.Binding == binding {
			list = append(list, x)
		}
		return true
	})
	return list
}

// ReplaceVariableReferences substitutes a copy of repl for every reference
// to binding in the subtree. It returns the number of substitutions.
func ReplaceVariableReferences(t *Tree, id, binding, repl NodeID) int {
	var count int
	for _, ref := range GatherVariableReferences(t, id, binding) {
		if ref == id {
			continue
		}
		if t.Replace(ref, t.Copy(repl)) {
			count++
		}
	}
	return count
}

// RebindVariableReferences makes the references to old refer to decl.
func RebindVariableReferences(t *Tree, id, old, decl NodeID) {
	for _, ref := range GatherVariableReferences(t, id, old) {
		t.nodes[ref].Binding = decl
		t.nodes[ref].Name = t.nodes[decl].Name
		t.invalidate(ref)
	}
}

func ExpressionSize(t *Tree, id NodeID) int {
	var size int
	t.walk(id, func(_ NodeID) bool {
		size++
		return true
	})
	return size
}

// UnfilteredExpression strips the filters applied to an expression. Filters
// selecting by position are only stripped when allowPositional is set.
func UnfilteredExpression(t *Tree, id NodeID, allowPositional bool) NodeID {
	for {
		n := t.nodes[id]
		if n.Kind != KindFilter {
			return id
		}
		if !allowPositional && t.isPositionalFilter(id) {
			return id
		}
		id = n.Operands[0]
	}
}

func (t *Tree) isPositionalFilter(id NodeID) bool {
	pred := t.nodes[id].Operands[1]
	return t.isPositional(pred) || t.Dependencies(pred).Has(DepPosition|DepLast)
}

func isFilteredAxisPath(t *Tree, id NodeID) bool {
	return t.nodes[UnfilteredExpression(t, id, true)].Kind == KindAxis
}

// Unordered rewrites the subtree for a consumer that does not care about
// the order of the result. Document order sorts are dropped and, when
// retainDuplicates is false, so is the removal of duplicate nodes. The
// returned expression replaces id in its parent if it differs from id.
func Unordered(t *Tree, id NodeID, retainDuplicates bool) NodeID {
	if t.frozen || id == NoNode {
		return id
	}
	n := &t.nodes[id]
	switch n.Kind {
	case KindDocSort:
		unorderOperand(t, id, 0, retainDuplicates)
		if !retainDuplicates {
			return t.nodes[id].Operands[0]
		}
		if n.Sort {
			n.Sort = false
			t.invalidate(id)
		}
	case KindFilter:
		if !t.isPositionalFilter(id) {
			unorderOperand(t, id, 0, retainDuplicates)
		}
	case KindPath, KindFor:
		unorderOperand(t, id, 0, retainDuplicates)
		unorderOperand(t, id, 1, retainDuplicates)
	case KindVenn:
		if n.Op == OpUnion {
			unorderOperand(t, id, 0, retainDuplicates)
			unorderOperand(t, id, 1, retainDuplicates)
		}
	case KindLet:
		unorderOperand(t, id, 1, retainDuplicates)
	case KindIf:
		unorderOperand(t, id, 1, retainDuplicates)
		unorderOperand(t, id, 2, retainDuplicates)
	case KindBlock:
		for i := range n.Operands {
			unorderOperand(t, id, i, retainDuplicates)
		}
	}
	return id
}

func unorderOperand(t *Tree, id NodeID, index int, retain bool) {
	op := t.nodes[id].Operands[index]
	if op == NoNode {
		return
	}
	if x := Unordered(t, op, retain); x != op {
		t.ReplaceOperand(id, op, x)
	}
}

// UnsortedIfHomogeneous drops the document order requirement of an
// expression whose item type is known.
func UnsortedIfHomogeneous(t *Tree, id NodeID) NodeID {
	if t.nodes[id].Kind == KindLiteral || t.ItemType(id) == UAnyItem {
		return id
	}
	return Unordered(t, id, false)
}

// MakePath builds the path start/step. The path /.. is folded to the empty
// sequence and a/(b/c) is rewritten as (a/b)/c when b and c are axis steps.
// With sortAndDedupe the path is wrapped in a document order sort.
func MakePath(t *Tree, start, step NodeID, sortAndDedupe bool) NodeID {
	if s := t.nodes[step]; t.nodes[start].Kind == KindRoot && s.Kind == KindAxis && s.Axis == AxisParent {
		return t.Empty()
	}
	var (
		path NodeID
		s    = t.nodes[step]
	)
	if s.Kind == KindPath && isFilteredAxisPath(t, s.Operands[0]) && isFilteredAxisPath(t, s.Operands[1]) {
		first, second := s.Operands[0], s.Operands[1]
		t.detach(first)
		t.detach(second)
		t.nodes[step].Operands = []NodeID{NoNode, NoNode}
		path = t.Path(t.Path(start, first), second)
	} else {
		path = t.Path(start, step)
	}
	if sortAndDedupe {
		path = t.DocSort(path, true)
	}
	return path
}

// TryToFactorOutDot rewrites an expression depending on the context item
// into let $dot := . return expr' where expr' reads the variable instead
// of the context item. It returns NoNode when nothing has been done.
func TryToFactorOutDot(t *Tree, id NodeID) NodeID {
	n := t.nodes[id]
	switch {
	case n.Kind == KindContextItem:
		return NoNode
	case n.Kind == KindLet && t.nodes[n.Operands[0]].Kind == KindContextItem:
		if factorOutDot(t, n.Operands[1], id) {
			t.ResetPropertiesWithinSubtree(id)
		}
		return id
	case t.Dependencies(id).Has(DepContextItem | DepContextDocument):
		var (
			parent = n.parent
			index  = -1
		)
		if parent != NoNode {
			index = slices.Index(t.nodes[parent].Operands, id)
		}
		t.detach(id)
		let := t.Let("dot", t.ContextItem())
		t.Locate(let, n.Loc)
		t.Bind(let, id)
		if index >= 0 {
			t.setOperand(parent, index, let)
		}
		factorOutDot(t, id, let)
		t.ResetPropertiesWithinSubtree(let)
		return let
	default:
		return NoNode
	}
}

func factorOutDot(t *Tree, id, binding NodeID) bool {
	var changed bool
	for i, op := range t.nodes[id].Operands {
		if op == NoNode || t.Role(id, i)&RoleSameFocus == 0 {
			continue
		}
		if !t.Dependencies(op).Has(DepContextItem | DepContextDocument) {
			continue
		}
		switch t.nodes[op].Kind {
		case KindContextItem:
			ref := t.Locate(t.Ref(binding), t.nodes[op].Loc)
			t.setOperand(id, i, ref)
			changed = true
		case KindAxis, KindRoot:
			t.detach(op)
			ref := t.Locate(t.Ref(binding), t.nodes[op].Loc)
			t.setOperand(id, i, MakePath(t, ref, op, false))
			changed = true
		default:
			changed = factorOutDot(t, op, binding) || changed
		}
	}
	return changed
}

// ReferenceCount approximates the number of times binding is read when the
// subtree rooted at scope is evaluated: 0, 1, RefMany or more when read in
// a loop or several times, RefFiltered when a reference is filtered.
func ReferenceCount(t *Tree, scope, binding NodeID, inLoop bool) int {
	if scope == NoNode {
		return 0
	}
	n := t.nodes[scope]
	if n.Kind == KindVarRef && n.Binding == binding {
		switch {
		case t.isFilteredReference(scope):
			return RefFiltered
		case inLoop:
			return RefMany
		default:
			return 1
		}
	}
	if !t.Dependencies(scope).Has(DepLocalVariables) {
		return 0
	}
	var count int
	for i, op := range n.Operands {
		loop := inLoop || t.Role(scope, i)&RoleRepeated != 0
		count += ReferenceCount(t, op, binding, loop)
		if count >= RefFiltered {
			break
		}
	}
	return count
}

func (t *Tree) isFilteredReference(ref NodeID) bool {
	p := t.nodes[ref].parent
	return p != NoNode && t.nodes[p].Kind == KindFilter && t.nodes[p].Operands[0] == ref
}

// MarkTailFunctionCalls flags the calls to user functions made in tail
// position of the subtree. It returns 2 when a call to the function name
// with the given arity is found, 1 when only calls to other functions are,
// 0 otherwise.
func MarkTailFunctionCalls(t *Tree, id NodeID, name string, arity int) int {
	if id == NoNode {
		return 0
	}
	n := &t.nodes[id]
	switch n.Kind {
	case KindUserCall:
		if n.Name == name && len(n.Operands) == arity {
			n.TailCall = 2
		} else {
			n.TailCall = 1
		}
		return n.TailCall
	case KindIf:
		return max(MarkTailFunctionCalls(t, n.Operands[1], name, arity), MarkTailFunctionCalls(t, n.Operands[2], name, arity))
	case KindLet:
		return MarkTailFunctionCalls(t, n.Operands[1], name, arity)
	default:
		return 0
	}
}

// AllocateSlots gives every local variable declared in the subtree a slot
// in the stack frame, starting at next, and binds the references to the
// slot of their declaration. Slots are never reused. It returns the next
// free slot.
func AllocateSlots(t *Tree, id NodeID, next int) (int, error) {
	if id == NoNode {
		return next, nil
	}
	n := &t.nodes[id]
	switch n.Kind {
	case KindLocalParam:
		if n.Slot < 0 {
			n.Slot = next
			next++
		}
	case KindLet, KindFor, KindQuantified:
		n.Slot = next
		next++
	case KindVarRef:
		if n.Binding == NoNode || t.nodes[n.Binding].Slot < 0 {
			return next, t.danglingReference(id)
		}
		n.Slot = t.nodes[n.Binding].Slot
	}
	var err error
	for _, op := range t.nodes[id].Operands {
		if next, err = AllocateSlots(t, op, next); err != nil {
			break
		}
	}
	return next, err
}

func (t *Tree) danglingReference(ref NodeID) error {
	var (
		n    = t.nodes[ref]
		decl Location
	)
	if n.Binding != NoNode {
		decl = t.nodes[n.Binding].Loc
	}
	t.logger().Error("variable reference without declaration in scope",
		"variable", n.Name,
		"reference", n.Loc.String(),
		"declaration", decl.String(),
	)
	return internalError(n.Loc, "no slot allocated for variable $%s declared at %s", n.Name, decl)
}

// resetSlots forgets the slots allocated to the declarations of the tree so
// that declarations no longer reachable are detected by AllocateSlots.
func (t *Tree) resetSlots() {
	for i := range t.nodes {
		n := &t.nodes[i]
		if n.Kind.binding() && !n.Fixed {
			n.Slot = -1
		}
	}
}

// IsMotionless reports whether the subtree can be evaluated on a node of a
// forward only stream without reading beyond the node itself.
func IsMotionless(t *Tree, id NodeID) bool {
	return !Contains(t, id, false, func(x NodeID) bool {
		n := t.nodes[x]
		switch n.Kind {
		case KindAxis:
			switch n.Axis {
			case AxisSelf, AxisAttribute, AxisParent, AxisAncestor, AxisAncestorOrSelf:
				return false
			default:
				return true
			}
		case KindCall:
			return n.Name == "last"
		case KindUserCall, KindVenn:
			return true
		default:
			return false
		}
	})
}
