package xpath

import (
	"slices"

	"github.com/midbel/xcore/xml"
)

// axisNodes returns the nodes reachable from node along axis that pass
// test. Reverse axes yield the nearest node first.
func axisNodes(node xml.Node, axis Axis, test NodeTest) []xml.Node {
	var list []xml.Node
	keep := func(n xml.Node) bool {
		if n != nil && test.Match(n) {
			list = append(list, n)
		}
		return true
	}
	switch axis {
	case AxisSelf:
		keep(node)
	case AxisChild:
		for _, c := range xml.Children(node) {
			keep(c)
		}
	case AxisDescendantOrSelf:
		keep(node)
		fallthrough
	case AxisDescendant:
		for c := range xml.Descendants(node) {
			keep(c)
		}
	case AxisParent:
		keep(node.Parent())
	case AxisAncestorOrSelf:
		keep(node)
		fallthrough
	case AxisAncestor:
		for a := range xml.Ancestors(node) {
			keep(a)
		}
	case AxisAttribute:
		for _, a := range xml.Attributes(node) {
			keep(a)
		}
	case AxisFollowingSibling, AxisPrecedingSibling:
		if node.Type() == xml.TypeAttribute || node.Parent() == nil {
			break
		}
		sibs := xml.Children(node.Parent())
		pos := node.Position()
		if axis == AxisFollowingSibling {
			for _, s := range sibs[pos+1:] {
				keep(s)
			}
			break
		}
		for _, s := range slices.Backward(sibs[:pos]) {
			keep(s)
		}
	case AxisFollowing:
		for n := range xml.Following(node) {
			keep(n)
		}
	}
	return list
}

func (p *Program) axis(ctx *Context, n *Node) Iterator {
	if ctx.item == nil {
		return errorIterator{err: absentFocus()}
	}
	node := ctx.item.Node()
	if node == nil {
		return errorIterator{err: typeError(CodeRootNotNode, "axis step %s used with a context item that is not a node", n.Axis)}
	}
	nodes := axisNodes(node, n.Axis, n.Test)
	seq := make(Sequence, len(nodes))
	for i := range nodes {
		seq[i] = NewNode(nodes[i])
	}
	return seq.Iterate()
}

func absentFocus() error {
	return dynamicError(CodeAbsentFocus, "context item is absent")
}
