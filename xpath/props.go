package xpath

// Method is the set of evaluation methods an expression implements natively.
type Method uint8

const (
	MethodEvaluate Method = 1 << iota
	MethodIterate
	MethodProcess
)

func (m Method) String() string {
	var str string
	if m&MethodEvaluate != 0 {
		str += "E"
	}
	if m&MethodIterate != 0 {
		str += "I"
	}
	if m&MethodProcess != 0 {
		str += "P"
	}
	return str
}

type props struct {
	deps    Dependency
	card    Cardinality
	itype   UType
	methods Method
}

func (t *Tree) properties(id NodeID) props {
	n := &t.nodes[id]
	if n.valid {
		return n.props
	}
	p := t.computeProperties(id)
	if !t.frozen {
		n = &t.nodes[id]
		n.props = p
		n.valid = true
	}
	return p
}

func (t *Tree) Dependencies(id NodeID) Dependency {
	if id == NoNode {
		return 0
	}
	return t.properties(id).deps
}

func (t *Tree) Cardinality(id NodeID) Cardinality {
	if id == NoNode {
		return CardEmpty
	}
	return t.properties(id).card
}

func (t *Tree) ItemType(id NodeID) UType {
	if id == NoNode {
		return UVoid
	}
	return t.properties(id).itype
}

func (t *Tree) Methods(id NodeID) Method {
	return t.properties(id).methods
}

// globalProperties infers the cardinality and item type of a global from its
// initializer. A global reached again while its own initializer is being
// inferred keeps the most general properties: the cycle is reported when
// the variable is evaluated.
func (t *Tree) globalProperties(name string, init NodeID) (Cardinality, UType) {
	if t.resolving == nil {
		t.resolving = make(map[string]bool)
	}
	t.resolving[name] = true
	defer delete(t.resolving, name)
	return t.Cardinality(init), t.ItemType(init)
}

func (t *Tree) computeProperties(id NodeID) props {
	var (
		n   = t.nodes[id]
		ops = n.Operands
		p   props
	)
	p.methods = MethodIterate
	switch n.Kind {
	case KindLiteral:
		p.card, p.itype = literalProperties(n.Literal)
	case KindVarRef:
		p.deps = DepLocalVariables
		p.card, p.itype = t.bindingProperties(n.Binding)
	case KindParamRef:
		p.deps = DepLocalVariables
		p.card, p.itype = CardZeroOrMore, UAnyItem
	case KindGlobalRef:
		p.card, p.itype = CardZeroOrMore, UAnyItem
		if g, ok := t.globals[n.Name]; ok && g.Init != NoNode && !t.resolving[n.Name] {
			p.card, p.itype = t.globalProperties(n.Name, g.Init)
		}
	case KindContextItem:
		p.deps = DepContextItem
		p.card, p.itype = CardOne, UAnyItem
	case KindRoot:
		p.deps = DepContextDocument
		p.card, p.itype = CardOne, UDocument
	case KindAxis:
		p.deps = DepContextItem
		p.card = CardZeroOrMore
		if n.Axis == AxisSelf || n.Axis == AxisParent {
			p.card = CardZeroOrOne
		}
		p.itype = n.Test.Kind & axisKinds(n.Axis)
	case KindPath:
		p.deps = t.Dependencies(ops[0]) | (t.Dependencies(ops[1]) &^ DepFocus)
		p.card = t.Cardinality(ops[0]).Multiply(t.Cardinality(ops[1]))
		p.itype = t.ItemType(ops[1])
	case KindFilter:
		p.deps = t.Dependencies(ops[0]) | (t.Dependencies(ops[1]) &^ DepFocus)
		p.card = t.Cardinality(ops[0]) | AllowsZero
		if !p.card.AllowsMany() || t.isPositional(ops[1]) {
			p.card = CardZeroOrOne
		}
		p.itype = t.ItemType(ops[0])
	case KindDocSort:
		p.deps = t.Dependencies(ops[0])
		p.card = t.Cardinality(ops[0])
		p.itype = t.ItemType(ops[0])
	case KindLet:
		p.deps = t.Dependencies(ops[0]) | t.Dependencies(ops[1])
		p.card = t.Cardinality(ops[1])
		p.itype = t.ItemType(ops[1])
		p.methods = t.resultMethods(ops[1])
	case KindFor:
		p.deps = t.Dependencies(ops[0]) | t.Dependencies(ops[1])
		p.card = t.Cardinality(ops[0]).Multiply(t.Cardinality(ops[1]))
		p.itype = t.ItemType(ops[1])
		p.methods = t.resultMethods(ops[1])
	case KindQuantified:
		p.deps = t.Dependencies(ops[0]) | t.Dependencies(ops[1])
		p.card, p.itype = CardOne, UBoolean
	case KindIf:
		p.deps = t.Dependencies(ops[0]) | t.Dependencies(ops[1]) | t.Dependencies(ops[2])
		p.card = t.Cardinality(ops[1]).Union(t.Cardinality(ops[2]))
		p.itype = t.ItemType(ops[1]) | t.ItemType(ops[2])
		p.methods = t.resultMethods(ops[1:]...)
	case KindBlock:
		p.card, p.itype = CardEmpty, UVoid
		for _, op := range ops {
			p.deps |= t.Dependencies(op)
			p.card = p.card.Sum(t.Cardinality(op))
			p.itype |= t.ItemType(op)
		}
		p.methods = t.resultMethods(ops...)
	case KindTail:
		p.deps = t.Dependencies(ops[0])
		p.card = t.Cardinality(ops[0]) | AllowsZero
		p.itype = t.ItemType(ops[0])
	case KindRange:
		p.deps = t.Dependencies(ops[0]) | t.Dependencies(ops[1])
		p.card, p.itype = CardZeroOrMore, UInteger
	case KindArith:
		p.deps = t.Dependencies(ops[0]) | t.Dependencies(ops[1])
		p.card, p.itype = CardZeroOrOne, UNumeric
		if t.ItemType(ops[0]) == UInteger && t.ItemType(ops[1]) == UInteger && n.Op != OpDiv {
			p.itype = UInteger
		}
	case KindCompare, KindAnd, KindOr:
		p.deps = t.Dependencies(ops[0]) | t.Dependencies(ops[1])
		p.card, p.itype = CardOne, UBoolean
		if n.Kind == KindCompare && n.Op >= OpValEq && n.Op <= OpValGe {
			p.card = CardZeroOrOne
		}
	case KindVenn:
		p.deps = t.Dependencies(ops[0]) | t.Dependencies(ops[1])
		p.card = CardZeroOrMore
		p.itype = t.ItemType(ops[0]) | t.ItemType(ops[1])
		if n.Op == OpIntersect {
			p.itype = t.ItemType(ops[0]) & t.ItemType(ops[1])
		} else if n.Op == OpExcept {
			p.itype = t.ItemType(ops[0])
		}
	case KindCall:
		p.card, p.itype = CardZeroOrMore, UAnyItem
		for _, op := range ops {
			p.deps |= t.Dependencies(op)
		}
		if fn, err := t.builtin(n.Name); err == nil {
			p.deps |= fn.dependencies(len(ops))
			p.card, p.itype = fn.Card, fn.Type
		}
	case KindUserCall:
		p.deps = DepUserFunctions
		for _, op := range ops {
			p.deps |= t.Dependencies(op)
		}
		p.card, p.itype = CardZeroOrMore, UAnyItem
	case KindError:
		p.card, p.itype = CardZeroOrMore, UAnyItem
	case KindElement:
		for _, op := range ops {
			p.deps |= t.Dependencies(op)
		}
		p.card, p.itype = CardOne, UElement
		p.methods = MethodProcess
	case KindText:
		p.deps = t.Dependencies(ops[0])
		p.card, p.itype = CardOne, UText
		p.methods = MethodProcess
	case KindMapConstructor:
		for _, op := range ops {
			p.deps |= t.Dependencies(op)
		}
		p.card, p.itype = CardOne, UMap
	case KindForEachGroup:
		inner := t.Dependencies(ops[1]) | t.Dependencies(ops[2])
		p.deps = t.Dependencies(ops[0]) | (inner &^ (DepFocus | DepCurrentGroup))
		p.card = CardZeroOrMore
		p.itype = t.ItemType(ops[2])
		p.methods = t.resultMethods(ops[2])
	case KindLocalParam:
		p.deps = DepLocalVariables
		for _, op := range ops {
			p.deps |= t.Dependencies(op)
		}
		p.card, p.itype = CardEmpty, UVoid
		p.methods = MethodIterate | MethodProcess
	case KindParam:
		p.card, p.itype = CardZeroOrMore, UAnyItem
	}
	if p.methods&MethodIterate != 0 && !p.card.AllowsMany() {
		p.methods |= MethodEvaluate
	}
	return p
}

// resultMethods gives the methods of an expression whose result is the
// concatenation of the results of ops.
func (t *Tree) resultMethods(ops ...NodeID) Method {
	m := MethodIterate | MethodProcess
	for _, op := range ops {
		if op != NoNode && t.Methods(op)&MethodIterate == 0 {
			m = MethodProcess
		}
	}
	return m
}

func (t *Tree) bindingProperties(decl NodeID) (Cardinality, UType) {
	if decl == NoNode {
		return CardZeroOrMore, UAnyItem
	}
	b := t.nodes[decl]
	switch b.Kind {
	case KindLet:
		return t.Cardinality(b.Operands[0]), t.ItemType(b.Operands[0])
	case KindFor, KindQuantified:
		return CardOne, t.ItemType(b.Operands[0])
	default:
		return CardZeroOrMore, UAnyItem
	}
}

// isPositional reports whether a predicate selects by position using a
// numeric constant.
func (t *Tree) isPositional(pred NodeID) bool {
	n := t.nodes[pred]
	if n.Kind != KindLiteral {
		return false
	}
	g, ok := n.Literal.(Grounded)
	return ok && g.Len() == 1 && UNumeric.Overlaps(g.ItemAt(0).Type())
}

func literalProperties(v Value) (Cardinality, UType) {
	g, ok := v.(Grounded)
	if !ok {
		return CardZeroOrMore, UAnyItem
	}
	var card Cardinality
	switch g.Len() {
	case 0:
		return CardEmpty, UVoid
	case 1:
		card = CardOne
	default:
		card = CardOneOrMore
	}
	if r, ok := g.(IntegerRange); ok && r.Len() > 0 {
		return card, UInteger
	}
	var u UType
	for i := 0; i < g.Len(); i++ {
		u |= g.ItemAt(i).Type()
	}
	return card, u
}

func axisKinds(a Axis) UType {
	switch a {
	case AxisAttribute:
		return UAttribute
	case AxisChild, AxisDescendant, AxisFollowingSibling, AxisPrecedingSibling, AxisFollowing:
		return UAnyNode &^ (UAttribute | UDocument)
	case AxisParent, AxisAncestor:
		return UDocument | UElement
	default:
		return UAnyNode
	}
}
