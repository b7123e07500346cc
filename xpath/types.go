package xpath

import (
	"strings"

	"github.com/midbel/xcore/xml"
)

// UType is the set of primitive item kinds an item or an expression can
// belong to.
type UType uint32

const (
	UDocument UType = 1 << iota
	UElement
	UAttribute
	UText
	UComment
	UInstruction
	UString
	UUntyped
	UAnyURI
	UBoolean
	UInteger
	UDouble
	UFunction
	UMap
	UArray
)

const (
	UAnyNode    = UDocument | UElement | UAttribute | UText | UComment | UInstruction
	UNumeric    = UInteger | UDouble
	UStringLike = UString | UUntyped | UAnyURI
	UAnyAtomic  = UStringLike | UBoolean | UNumeric
	UAnyFunc    = UFunction | UMap | UArray
	UAnyItem    = UAnyNode | UAnyAtomic | UAnyFunc
	UVoid UType = 0
)

var unames = []struct {
	UType
	Name string
}{
	{UDocument, "document-node()"},
	{UElement, "element()"},
	{UAttribute, "attribute()"},
	{UText, "text()"},
	{UComment, "comment()"},
	{UInstruction, "processing-instruction()"},
	{UString, "xs:string"},
	{UUntyped, "xs:untypedAtomic"},
	{UAnyURI, "xs:anyURI"},
	{UBoolean, "xs:boolean"},
	{UInteger, "xs:integer"},
	{UDouble, "xs:double"},
	{UFunction, "function(*)"},
	{UMap, "map(*)"},
	{UArray, "array(*)"},
}

func (u UType) String() string {
	switch u {
	case UVoid:
		return "empty-sequence()"
	case UAnyItem:
		return "item()"
	case UAnyNode:
		return "node()"
	case UAnyAtomic:
		return "xs:anyAtomicType"
	case UNumeric:
		return "xs:numeric"
	}
	var list []string
	for _, n := range unames {
		if u&n.UType != 0 {
			list = append(list, n.Name)
		}
	}
	return strings.Join(list, "|")
}

func (u UType) Overlaps(other UType) bool {
	return u&other != 0
}

func (u UType) Subsumes(other UType) bool {
	return u&other == other
}

func (u UType) Nodes() bool {
	return u != UVoid && UAnyNode.Subsumes(u)
}

func (u UType) Atomics() bool {
	return u != UVoid && UAnyAtomic.Subsumes(u)
}

func NodeUType(n xml.Node) UType {
	switch n.Type() {
	case xml.TypeDocument:
		return UDocument
	case xml.TypeElement:
		return UElement
	case xml.TypeAttribute:
		return UAttribute
	case xml.TypeText:
		return UText
	case xml.TypeComment:
		return UComment
	case xml.TypeInstruction:
		return UInstruction
	default:
		return UVoid
	}
}

type Relationship int8

const (
	SameType Relationship = iota
	Subsumes
	SubsumedBy
	Overlaps
	Disjoint
)

// TypeHierarchy answers questions about the relationships between item
// types. The default hierarchy only knows the primitive kinds.
type TypeHierarchy interface {
	Relationship(UType, UType) Relationship
}

type kindHierarchy struct{}

func (_ kindHierarchy) Relationship(a, b UType) Relationship {
	switch {
	case a == b:
		return SameType
	case a.Subsumes(b):
		return Subsumes
	case b.Subsumes(a):
		return SubsumedBy
	case a.Overlaps(b):
		return Overlaps
	default:
		return Disjoint
	}
}

type Cardinality uint8

const (
	AllowsZero Cardinality = 1 << iota
	AllowsOne
	AllowsMany
)

const (
	CardEmpty      = AllowsZero
	CardOne        = AllowsOne
	CardZeroOrOne  = AllowsZero | AllowsOne
	CardOneOrMore  = AllowsOne | AllowsMany
	CardZeroOrMore = AllowsZero | AllowsOne | AllowsMany
)

func (c Cardinality) AllowsMany() bool {
	return c&AllowsMany != 0
}

func (c Cardinality) AllowsZero() bool {
	return c&AllowsZero != 0
}

func (c Cardinality) Union(other Cardinality) Cardinality {
	return c | other
}

// Sum gives the cardinality of the concatenation of two sequences.
func (c Cardinality) Sum(other Cardinality) Cardinality {
	var res Cardinality
	if c.AllowsZero() && other.AllowsZero() {
		res |= AllowsZero
	}
	if (c&AllowsOne != 0 && other.AllowsZero()) || (c.AllowsZero() && other&AllowsOne != 0) {
		res |= AllowsOne
	}
	if c.AllowsMany() || other.AllowsMany() || (c&AllowsOne != 0 && other&AllowsOne != 0) {
		res |= AllowsMany
	}
	return res
}

// Multiply gives the cardinality of a mapping where other is computed for
// each item of c.
func (c Cardinality) Multiply(other Cardinality) Cardinality {
	if c == CardEmpty || other == CardEmpty {
		return CardEmpty
	}
	var res Cardinality
	if c.AllowsZero() || other.AllowsZero() {
		res |= AllowsZero
	}
	if c&AllowsOne != 0 && other&AllowsOne != 0 {
		res |= AllowsOne
	}
	if c.AllowsMany() || other.AllowsMany() {
		res |= AllowsMany
	}
	return res
}

func (c Cardinality) String() string {
	switch c {
	case CardEmpty:
		return "empty"
	case CardOne:
		return "exactly-one"
	case CardZeroOrOne:
		return "zero-or-one"
	case CardOneOrMore:
		return "one-or-more"
	case CardZeroOrMore:
		return "zero-or-more"
	default:
		return "many"
	}
}

// Dependency flags the parts of the dynamic context an expression reads.
type Dependency uint16

const (
	DepContextItem Dependency = 1 << iota
	DepPosition
	DepLast
	DepContextDocument
	DepCurrentItem
	DepCurrentGroup
	DepRegexGroup
	DepLocalVariables
	DepUserFunctions
	DepXsltContext
)

const (
	DepFocus    = DepContextItem | DepPosition | DepLast | DepContextDocument
	DepUnstable = DepPosition | DepLast | DepCurrentItem | DepCurrentGroup | DepRegexGroup
)

func (d Dependency) Has(other Dependency) bool {
	return d&other != 0
}

func (d Dependency) String() string {
	names := []string{
		"context-item",
		"position",
		"last",
		"context-document",
		"current",
		"current-group",
		"regex-group",
		"local-variables",
		"user-functions",
		"xslt-context",
	}
	var list []string
	for i, n := range names {
		if d&(1<<i) != 0 {
			list = append(list, n)
		}
	}
	if len(list) == 0 {
		return "none"
	}
	return strings.Join(list, ",")
}
