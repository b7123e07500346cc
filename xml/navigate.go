package xml

import (
	"iter"
)

// Children returns the child nodes of documents and elements.
func Children(n Node) []Node {
	switch n := n.(type) {
	case *Document:
		return n.Nodes
	case *Element:
		return n.Nodes
	default:
		return nil
	}
}

// Attributes returns the attribute nodes of an element in declaration order.
func Attributes(n Node) []Node {
	el, ok := n.(*Element)
	if !ok || len(el.Attrs) == 0 {
		return nil
	}
	list := make([]Node, len(el.Attrs))
	for i := range el.Attrs {
		list[i] = &el.Attrs[i]
	}
	return list
}

// Root returns the topmost ancestor of n, n itself when it has no parent.
func Root(n Node) Node {
	for {
		p := n.Parent()
		if p == nil {
			return n
		}
		n = p
	}
}

func Ancestors(n Node) iter.Seq[Node] {
	return func(yield func(Node) bool) {
		for p := n.Parent(); p != nil; p = p.Parent() {
			if !yield(p) {
				return
			}
		}
	}
}

// Descendants yields the descendants of n in document order, attributes
// excluded.
func Descendants(n Node) iter.Seq[Node] {
	return func(yield func(Node) bool) {
		walk(n, yield)
	}
}

func walk(n Node, yield func(Node) bool) bool {
	for _, c := range Children(n) {
		if !yield(c) || !walk(c, yield) {
			return false
		}
	}
	return true
}

func Following(n Node) iter.Seq[Node] {
	return func(yield func(Node) bool) {
		for cur := n; cur != nil; cur = cur.Parent() {
			if cur.Type() == TypeAttribute {
				continue
			}
			sibs := Children(cur.Parent())
			for i := cur.Position() + 1; i < len(sibs); i++ {
				if !yield(sibs[i]) || !walk(sibs[i], yield) {
					return
				}
			}
		}
	}
}

// Same reports whether both nodes are the same node, compared by identity.
func Same(a, b Node) bool {
	return a == b
}

// Compare orders two nodes in document order. Nodes from different trees
// are ordered by the creation order of their documents.
func Compare(a, b Node) int {
	if Same(a, b) {
		return 0
	}
	ra, rb := Root(a), Root(b)
	if ra != rb {
		da, _ := ra.(*Document)
		db, _ := rb.(*Document)
		switch {
		case da != nil && db != nil:
			return cmpInt(int(da.id), int(db.id))
		case da != nil:
			return -1
		case db != nil:
			return 1
		default:
			return 0
		}
	}
	var (
		p1 = a.path()
		p2 = b.path()
	)
	for i := 0; i < len(p1) && i < len(p2); i++ {
		if c := cmpInt(p1[i], p2[i]); c != 0 {
			return c
		}
	}
	return cmpInt(len(p1), len(p2))
}

func Before(left, right Node) bool {
	return Compare(left, right) < 0
}

func After(left, right Node) bool {
	return Compare(left, right) > 0
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Clone makes a deep copy of n detached from any parent.
func Clone(n Node) Node {
	switch n := n.(type) {
	case *Document:
		doc := EmptyDocument()
		for _, c := range n.Nodes {
			doc.Append(Clone(c))
		}
		return doc
	case *Element:
		el := NewElement(n.QName)
		for _, a := range n.Attrs {
			el.SetAttribute(NewAttribute(a.QName, a.Datum))
		}
		for _, c := range n.Nodes {
			el.Append(Clone(c))
		}
		return el
	case *Attribute:
		a := NewAttribute(n.QName, n.Datum)
		return &a
	case *Text:
		return NewText(n.Content)
	case *Comment:
		return NewComment(n.Content)
	case *Instruction:
		return NewInstruction(n.QName, n.Content)
	default:
		return n
	}
}
