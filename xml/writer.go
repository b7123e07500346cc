package xml

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

const (
	SupportedVersion  = "1.0"
	SupportedEncoding = "UTF-8"
)

// Writer serializes nodes as XML text.
type Writer struct {
	writer *bufio.Writer

	Indent      string
	Compact     bool
	NoProlog    bool
	NoNamespace bool
}

// WriteNode returns the compact serialization of node.
func WriteNode(node Node) string {
	var (
		buf strings.Builder
		ws  = NewWriter(&buf)
	)
	ws.Compact = true
	ws.NoProlog = true
	ws.WriteNode(node)
	return buf.String()
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{
		writer: bufio.NewWriter(w),
		Indent: "  ",
	}
}

// Write serializes a complete document, prolog included unless NoProlog is
// set.
func (w *Writer) Write(doc *Document) error {
	if !w.NoProlog {
		w.writer.WriteString(`<?xml version="`)
		w.writer.WriteString(SupportedVersion)
		w.writer.WriteString(`" encoding="`)
		w.writer.WriteString(SupportedEncoding)
		w.writer.WriteString(`"?>`)
		w.writeNL()
	}
	for i, n := range doc.Nodes {
		if i > 0 {
			w.writeNL()
		}
		if err := w.writeNode(n, 0); err != nil {
			return err
		}
	}
	return w.writer.Flush()
}

// WriteNode serializes a single node. An attribute is written as
// name="value".
func (w *Writer) WriteNode(node Node) error {
	if err := w.writeNode(node, 0); err != nil {
		return err
	}
	return w.writer.Flush()
}

func (w *Writer) writeNode(node Node, depth int) error {
	switch node := node.(type) {
	case *Document:
		for i, n := range node.Nodes {
			if i > 0 {
				w.writeNL()
			}
			if err := w.writeNode(n, depth); err != nil {
				return err
			}
		}
		return nil
	case *Element:
		return w.writeElement(node, depth)
	case *Text:
		w.writer.WriteString(escapeText(node.Content))
		return nil
	case *Comment:
		w.writer.WriteString("<!--")
		w.writer.WriteString(node.Content)
		w.writer.WriteString("-->")
		return nil
	case *Instruction:
		w.writer.WriteString("<?")
		w.writer.WriteString(node.LocalName())
		if node.Content != "" {
			w.writer.WriteString(" ")
			w.writer.WriteString(node.Content)
		}
		w.writer.WriteString("?>")
		return nil
	case *Attribute:
		w.writeAttribute(node)
		return nil
	default:
		return fmt.Errorf("node: unknown type (%T)", node)
	}
}

func (w *Writer) writeElement(node *Element, depth int) error {
	name := w.elementName(node.QName)
	w.writer.WriteString("<")
	w.writer.WriteString(name)
	for i := range node.Attrs {
		w.writer.WriteString(" ")
		w.writeAttribute(&node.Attrs[i])
	}
	if len(node.Nodes) == 0 {
		w.writer.WriteString("/>")
		return nil
	}
	w.writer.WriteString(">")
	mixed := hasText(node)
	for _, n := range node.Nodes {
		if !mixed {
			w.writeNL()
			w.writer.WriteString(w.getIndent(depth + 1))
		}
		if err := w.writeNode(n, depth+1); err != nil {
			return err
		}
	}
	if !mixed {
		w.writeNL()
		w.writer.WriteString(w.getIndent(depth))
	}
	w.writer.WriteString("</")
	w.writer.WriteString(name)
	w.writer.WriteString(">")
	return nil
}

func (w *Writer) writeAttribute(a *Attribute) {
	w.writer.WriteString(w.elementName(a.QName))
	w.writer.WriteString(`="`)
	w.writer.WriteString(escapeText(a.Datum))
	w.writer.WriteString(`"`)
}

func (w *Writer) elementName(name QName) string {
	if w.NoNamespace {
		return name.LocalName()
	}
	return name.QualifiedName()
}

func (w *Writer) writeNL() {
	if w.Compact {
		return
	}
	w.writer.WriteString("\n")
}

func (w *Writer) getIndent(depth int) string {
	if w.Compact {
		return ""
	}
	return strings.Repeat(w.Indent, depth)
}

// hasText reports whether the element has text children, in which case
// its content is written as is.
func hasText(el *Element) bool {
	for _, n := range el.Nodes {
		if n.Type() == TypeText {
			return true
		}
	}
	return false
}

func escapeText(str string) string {
	var buf strings.Builder
	for _, r := range str {
		switch r {
		case '<':
			buf.WriteString("&lt;")
		case '>':
			buf.WriteString("&gt;")
		case '&':
			buf.WriteString("&amp;")
		case '"':
			buf.WriteString("&quot;")
		case '\'':
			buf.WriteString("&apos;")
		default:
			buf.WriteRune(r)
		}
	}
	return buf.String()
}
