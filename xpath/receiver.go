package xpath

import (
	"errors"

	"github.com/midbel/xcore/xml"
)

var ErrUnbalanced = errors.New("end element without start element")

// Receiver consumes the events produced by expressions evaluated in push
// mode.
type Receiver interface {
	StartElement(xml.QName) error
	Attribute(xml.QName, string) error
	EndElement() error
	Characters(string) error
	Append(Item) error
}

type discardReceiver struct{}

func (_ discardReceiver) StartElement(_ xml.QName) error        { return nil }
func (_ discardReceiver) Attribute(_ xml.QName, _ string) error { return nil }
func (_ discardReceiver) EndElement() error                     { return nil }
func (_ discardReceiver) Characters(_ string) error             { return nil }
func (_ discardReceiver) Append(_ Item) error                   { return nil }

// SequenceOutputter turns the events it receives into a sequence of items.
// Elements built from events are parentless.
type SequenceOutputter struct {
	items Sequence
	stack []*xml.Element
}

func NewSequenceOutputter() *SequenceOutputter {
	return &SequenceOutputter{}
}

func (s *SequenceOutputter) StartElement(name xml.QName) error {
	s.stack = append(s.stack, xml.NewElement(name))
	return nil
}

func (s *SequenceOutputter) Attribute(name xml.QName, value string) error {
	if len(s.stack) == 0 {
		a := xml.NewAttribute(name, value)
		s.items = append(s.items, NewNode(&a))
		return nil
	}
	s.stack[len(s.stack)-1].SetAttribute(xml.NewAttribute(name, value))
	return nil
}

func (s *SequenceOutputter) EndElement() error {
	n := len(s.stack)
	if n == 0 {
		return ErrUnbalanced
	}
	el := s.stack[n-1]
	s.stack = s.stack[:n-1]
	s.appendNode(el)
	return nil
}

func (s *SequenceOutputter) Characters(str string) error {
	if str == "" {
		return nil
	}
	s.appendNode(xml.NewText(str))
	return nil
}

func (s *SequenceOutputter) Append(item Item) error {
	if len(s.stack) == 0 {
		s.items = append(s.items, item)
		return nil
	}
	if n := item.Node(); n != nil {
		if a, ok := n.(*xml.Attribute); ok {
			return s.Attribute(a.QName, a.Datum)
		}
		if d, ok := n.(*xml.Document); ok {
			for _, c := range d.Nodes {
				s.appendNode(xml.Clone(c))
			}
			return nil
		}
		s.appendNode(xml.Clone(n))
		return nil
	}
	xs, err := Atomize(item)
	if err != nil {
		return err
	}
	for _, x := range xs {
		s.appendNode(xml.NewText(StringValue(x)))
	}
	return nil
}

func (s *SequenceOutputter) appendNode(n xml.Node) {
	if len(s.stack) == 0 {
		s.items = append(s.items, NewNode(n))
		return
	}
	s.stack[len(s.stack)-1].Append(n)
}

// Sequence returns the items received so far.
func (s *SequenceOutputter) Sequence() Sequence {
	return s.items
}

// Reset drops the items received and the buffer holding them.
func (s *SequenceOutputter) Reset() {
	s.items = nil
	s.stack = nil
}
