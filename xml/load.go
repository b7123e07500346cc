package xml

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

var ErrRoot = errors.New("document without root element")

// Parse builds a document from r. Whitespace only text between elements is
// dropped.
func Parse(r io.Reader) (*Document, error) {
	var (
		rs    = xml.NewDecoder(r)
		doc   = EmptyDocument()
		stack []*Element
	)
	appendNode := func(n Node) {
		if len(stack) == 0 {
			doc.Append(n)
			return
		}
		stack[len(stack)-1].Append(n)
	}
	for {
		tok, err := rs.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		switch tok := tok.(type) {
		case xml.StartElement:
			el := NewElement(convertName(tok.Name))
			for _, a := range tok.Attr {
				el.SetAttribute(NewAttribute(convertName(a.Name), a.Value))
			}
			appendNode(el)
			stack = append(stack, el)
		case xml.EndElement:
			if len(stack) == 0 {
				return nil, fmt.Errorf("unexpected end element %s", tok.Name.Local)
			}
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if strings.TrimSpace(string(tok)) == "" {
				continue
			}
			if len(stack) == 0 {
				continue
			}
			appendNode(NewText(string(tok)))
		case xml.Comment:
			appendNode(NewComment(string(tok)))
		case xml.ProcInst:
			if tok.Target == "xml" {
				continue
			}
			appendNode(NewInstruction(LocalName(tok.Target), string(tok.Inst)))
		default:
		}
	}
	if doc.Root() == nil {
		return nil, ErrRoot
	}
	return doc, nil
}

func ParseString(str string) (*Document, error) {
	return Parse(strings.NewReader(str))
}

func ParseFile(file string) (*Document, error) {
	r, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return Parse(r)
}

func convertName(name xml.Name) QName {
	return QName{
		Uri:  name.Space,
		Name: name.Local,
	}
}
