package xpath

// EvalMode tells the interpreter how the value of an expression bound to a
// variable or passed as an argument is obtained.
type EvalMode uint8

const (
	ModeUndecided EvalMode = iota
	ModeNoEvaluationNeeded
	ModeEvaluateVariable
	ModeEvaluateSuppliedParameter
	ModeMakeClosure
	ModeMakeMemoClosure
	ModeMakeSingletonClosure
	ModeReturnEmptySequence
	ModeEvaluateAndMaterializeVariable
	ModeCallEvaluateItem
	ModeIterateAndMaterialize
	ModeProcess
	ModeLazyTail
	ModeSharedAppend
	ModeMakeIndexedVariable
)

var modeNames = [...]string{
	ModeUndecided:                      "undecided",
	ModeNoEvaluationNeeded:             "no-evaluation-needed",
	ModeEvaluateVariable:               "evaluate-variable",
	ModeEvaluateSuppliedParameter:      "evaluate-supplied-parameter",
	ModeMakeClosure:                    "make-closure",
	ModeMakeMemoClosure:                "make-memo-closure",
	ModeMakeSingletonClosure:           "make-singleton-closure",
	ModeReturnEmptySequence:            "return-empty-sequence",
	ModeEvaluateAndMaterializeVariable: "evaluate-and-materialize-variable",
	ModeCallEvaluateItem:               "call-evaluate-item",
	ModeIterateAndMaterialize:          "iterate-and-materialize",
	ModeProcess:                        "process",
	ModeLazyTail:                       "lazy-tail",
	ModeSharedAppend:                   "shared-append",
	ModeMakeIndexedVariable:            "make-indexed-variable",
}

func (m EvalMode) String() string {
	if int(m) < len(modeNames) {
		return modeNames[m]
	}
	return "unknown"
}

// Lazy reports whether the mode defers the evaluation of the expression.
func (m EvalMode) Lazy() bool {
	switch m {
	case ModeMakeClosure, ModeMakeMemoClosure, ModeMakeSingletonClosure, ModeLazyTail:
		return true
	default:
		return false
	}
}

// LazyEvaluationMode chooses how to evaluate an expression whose value may
// not be needed immediately, e.g. the value bound to a variable.
func LazyEvaluationMode(t *Tree, id NodeID) EvalMode {
	n := t.nodes[id]
	switch n.Kind {
	case KindLiteral:
		return ModeNoEvaluationNeeded
	case KindVarRef, KindGlobalRef:
		return ModeEvaluateVariable
	case KindParamRef:
		return ModeEvaluateSuppliedParameter
	}
	if t.Dependencies(id).Has(DepUnstable) {
		return EagerEvaluationMode(t, id)
	}
	if n.Kind == KindError {
		return ModeCallEvaluateItem
	}
	if !t.Cardinality(id).AllowsMany() {
		return EagerEvaluationMode(t, id)
	}
	if n.Kind == KindTail && t.nodes[n.Operands[0]].Kind == KindVarRef {
		return ModeLazyTail
	}
	if n.Kind == KindBlock && isSharedAppendCandidate(t, id) {
		return ModeSharedAppend
	}
	return ModeMakeClosure
}

// EagerEvaluationMode chooses how to evaluate an expression whose value is
// needed immediately.
func EagerEvaluationMode(t *Tree, id NodeID) EvalMode {
	n := t.nodes[id]
	switch n.Kind {
	case KindLiteral:
		if _, ok := n.Literal.(Grounded); ok {
			return ModeNoEvaluationNeeded
		}
	case KindVarRef, KindGlobalRef, KindParamRef:
		return ModeEvaluateAndMaterializeVariable
	}
	m := t.Methods(id)
	switch {
	case m&MethodEvaluate != 0:
		return ModeCallEvaluateItem
	case m&MethodIterate != 0:
		return ModeIterateAndMaterialize
	default:
		return ModeProcess
	}
}

// isSharedAppendCandidate reports whether a block appends to the value of
// a variable. One of its direct operands must be a variable reference.
func isSharedAppendCandidate(t *Tree, id NodeID) bool {
	for _, op := range t.nodes[id].Operands {
		switch t.nodes[op].Kind {
		case KindVarRef, KindParamRef:
			return true
		}
	}
	return false
}

// bindingMode chooses the mode of the value of a declaration given the
// number of references to the variable.
func bindingMode(t *Tree, seq NodeID, refs int) EvalMode {
	if refs == 0 {
		return ModeReturnEmptySequence
	}
	mode := LazyEvaluationMode(t, seq)
	switch {
	case refs >= RefFiltered && (mode == ModeMakeClosure || mode == ModeMakeMemoClosure):
		mode = ModeMakeIndexedVariable
	case mode == ModeMakeClosure && refs > 1:
		mode = ModeMakeMemoClosure
	}
	return mode
}

// globalMode chooses between the singleton and memo closures used for
// global variables.
func globalMode(t *Tree, init NodeID) EvalMode {
	if t.Kind(init) == KindLiteral {
		return ModeNoEvaluationNeeded
	}
	if !t.Cardinality(init).AllowsMany() {
		return ModeMakeSingletonClosure
	}
	return ModeMakeMemoClosure
}
