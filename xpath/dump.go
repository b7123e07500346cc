package xpath

import (
	"io"
	"strconv"
	"strings"
)

// Debug returns a compact representation of the expression rooted at id.
func Debug(t *Tree, id NodeID) string {
	var str strings.Builder
	debugExpr(&str, t, id)
	return str.String()
}

func debugExpr(w io.Writer, t *Tree, id NodeID) {
	if id == NoNode {
		io.WriteString(w, "_")
		return
	}
	n := t.Node(id)
	io.WriteString(w, n.Kind.String())
	io.WriteString(w, "(")
	if label := nodeLabel(n); label != "" {
		io.WriteString(w, label)
		if len(n.Operands) > 0 {
			io.WriteString(w, ", ")
		}
	}
	for i, op := range n.Operands {
		if i > 0 {
			io.WriteString(w, ", ")
		}
		debugExpr(w, t, op)
	}
	io.WriteString(w, ")")
}

func nodeLabel(n *Node) string {
	switch n.Kind {
	case KindLiteral:
		return literalLabel(n.Literal)
	case KindVarRef, KindParamRef, KindGlobalRef:
		return "$" + n.Name
	case KindLet, KindFor, KindLocalParam, KindParam:
		return "$" + n.Name
	case KindQuantified:
		return n.Op.String() + " $" + n.Name
	case KindAxis:
		return n.Axis.String() + "::" + n.Test.String()
	case KindArith, KindCompare, KindVenn:
		return n.Op.String()
	case KindCall, KindUserCall, KindElement:
		return n.Name
	case KindTail:
		return strconv.FormatInt(n.Int, 10)
	case KindError:
		return n.Name
	case KindDocSort:
		if n.Sort {
			return "sorted"
		}
		return "dedup"
	default:
		return ""
	}
}

func literalLabel(v Value) string {
	g, ok := v.(Grounded)
	if !ok {
		return "..."
	}
	if r, ok := g.(IntegerRange); ok {
		return strconv.FormatInt(r.Start, 10) + " to " + strconv.FormatInt(r.End, 10)
	}
	if g.Len() == 0 {
		return "()"
	}
	var parts []string
	for i := 0; i < g.Len() && i < 4; i++ {
		it := g.ItemAt(i)
		str := StringValue(it)
		if UStringLike.Overlaps(it.Type()) {
			str = strconv.Quote(str)
		}
		parts = append(parts, str)
	}
	if g.Len() > 4 {
		parts = append(parts, "...")
	}
	return strings.Join(parts, " ")
}

// Explain writes the compiled expressions of the program, one per line,
// with their static properties and the evaluation modes chosen by the
// compiler.
func Explain(w io.Writer, prog *Program) error {
	var (
		t = prog.tree
		e = explainer{w: w, tree: t}
	)
	e.header("main", prog.slots)
	e.explain(prog.root, 1)
	for _, g := range t.Globals() {
		e.header("global $"+g.Name, g.Slots)
		e.explain(g.Init, 1)
	}
	for _, fn := range t.Functions() {
		e.header("function "+fn.Name+"#"+strconv.Itoa(len(fn.Params)), fn.Slots)
		e.explain(fn.Body, 1)
	}
	return e.err
}

type explainer struct {
	w    io.Writer
	tree *Tree
	err  error
}

func (e *explainer) write(str string) {
	if e.err != nil {
		return
	}
	_, e.err = io.WriteString(e.w, str)
}

func (e *explainer) header(name string, slots int) {
	e.write(name)
	e.write(" [slots=")
	e.write(strconv.Itoa(slots))
	e.write("]\n")
}

func (e *explainer) explain(id NodeID, depth int) {
	if id == NoNode || e.err != nil {
		return
	}
	var (
		t = e.tree
		n = t.Node(id)
	)
	e.write(strings.Repeat("  ", depth))
	e.write(n.Kind.String())
	if label := nodeLabel(n); label != "" {
		e.write(" ")
		e.write(label)
	}
	e.write(" card=")
	e.write(t.Cardinality(id).String())
	e.write(" type=")
	e.write(t.ItemType(id).String())
	if deps := t.Dependencies(id); deps != 0 {
		e.write(" deps=")
		e.write(deps.String())
	}
	e.write(" methods=")
	e.write(t.Methods(id).String())
	if n.Slot >= 0 {
		e.write(" slot=")
		e.write(strconv.Itoa(n.Slot))
	}
	if n.Kind == KindLet {
		e.write(" mode=")
		e.write(n.Mode.String())
		e.write(" refs=")
		e.write(strconv.Itoa(n.RefCount))
	}
	for i, m := range n.ArgModes {
		e.write(" arg")
		e.write(strconv.Itoa(i + 1))
		e.write("=")
		e.write(m.String())
	}
	if n.SharedAppend {
		e.write(" shared-append")
	}
	switch n.TailCall {
	case 1:
		e.write(" tail-call")
	case 2:
		e.write(" self-tail-call")
	}
	e.write("\n")
	for _, op := range n.Operands {
		e.explain(op, depth+1)
	}
}
