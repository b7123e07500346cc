package xslt

import (
	"github.com/midbel/xcore/xml"
	"github.com/midbel/xcore/xpath"
)

// Select returns, in document order, the nodes of the tree rooted at root
// matched by the pattern. Nodes of a kind the pattern can not match are
// never tested and attributes are only visited if the pattern can match
// them.
func Select(ctx *xpath.Context, root xml.Node, pattern Pattern) (xpath.Sequence, error) {
	s := selector{
		ctx:     ctx,
		pattern: pattern,
		kinds:   pattern.UType() & xpath.UAnyNode,
	}
	if s.kinds == xpath.UVoid {
		return nil, nil
	}
	if s.kinds == xpath.UDocument {
		if root.Type() != xml.TypeDocument {
			return nil, nil
		}
		if err := s.test(root); err != nil {
			return nil, err
		}
		return s.nodes, nil
	}
	if err := s.walk(root); err != nil {
		return nil, err
	}
	return s.nodes, nil
}

type selector struct {
	ctx     *xpath.Context
	pattern Pattern
	kinds   xpath.UType
	nodes   xpath.Sequence
}

func (s *selector) walk(node xml.Node) error {
	if err := s.test(node); err != nil {
		return err
	}
	if s.kinds&xpath.UAttribute != 0 {
		for _, a := range xml.Attributes(node) {
			if err := s.test(a); err != nil {
				return err
			}
		}
	}
	for _, c := range xml.Children(node) {
		if err := s.walk(c); err != nil {
			return err
		}
	}
	return nil
}

func (s *selector) test(node xml.Node) error {
	if xpath.NodeUType(node)&s.kinds == 0 {
		return nil
	}
	item := xpath.NewNode(node)
	ok, err := s.pattern.Matches(s.ctx, item)
	if ok {
		s.nodes = append(s.nodes, item)
	}
	return err
}
