package xslt

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/midbel/xcore/xml"
	"github.com/midbel/xcore/xpath"
)

const CodeNoMatch = "XTDE0555"

var (
	ErrOperator = errors.New("invalid operator")
	ErrArity    = errors.New("arity mismatch")
)

// NoMatch is the action taken by a mode for items matched by none of its
// rules.
type NoMatch int8

const (
	TextOnlyCopy NoMatch = iota
	ShallowSkip
	DeepSkip
	Fail
)

func (n NoMatch) String() string {
	switch n {
	case TextOnlyCopy:
		return "text-only-copy"
	case ShallowSkip:
		return "shallow-skip"
	case DeepSkip:
		return "deep-skip"
	case Fail:
		return "fail"
	default:
		return "unknown"
	}
}

// Rule is a template rule. Body is evaluated with the matched item as
// context item; a nil Body produces nothing.
type Rule struct {
	Name     string
	Pattern  Pattern
	Priority float64
	Body     *xpath.Program

	seq int
}

func (r *Rule) String() string {
	if r.Name != "" {
		return r.Name
	}
	return r.Pattern.String()
}

type RuleOption func(*Rule)

func WithPriority(prio float64) RuleOption {
	return func(r *Rule) {
		r.Priority = prio
	}
}

func WithName(name string) RuleOption {
	return func(r *Rule) {
		r.Name = name
	}
}

type ModeOption func(*Mode)

func OnNoMatch(action NoMatch) ModeOption {
	return func(m *Mode) {
		m.noMatch = action
	}
}

func Trace(tracer Tracer) ModeOption {
	return func(m *Mode) {
		m.tracer = tracer
	}
}

// Mode is a set of template rules. Rules are stored once per item kind
// their pattern can match so that only the rules able to match the kind of
// a candidate are tested.
type Mode struct {
	Name string

	rules   []*Rule
	buckets map[xpath.UType][]*Rule
	noMatch NoMatch
	tracer  Tracer
}

func NewMode(name string, options ...ModeOption) *Mode {
	m := Mode{
		Name:    name,
		buckets: make(map[xpath.UType][]*Rule),
		tracer:  NoopTracer(),
	}
	for _, o := range options {
		o(&m)
	}
	return &m
}

// Add registers a new rule. Its priority defaults to the priority of the
// pattern.
func (m *Mode) Add(pattern Pattern, body *xpath.Program, options ...RuleOption) *Rule {
	r := Rule{
		Pattern:  pattern,
		Priority: pattern.Priority(),
		Body:     body,
		seq:      len(m.rules),
	}
	for _, o := range options {
		o(&r)
	}
	m.rules = append(m.rules, &r)
	for _, kind := range kinds(pattern.UType()) {
		list := append(m.buckets[kind], &r)
		slices.SortStableFunc(list, compareRules)
		m.buckets[kind] = list
	}
	return &r
}

func (m *Mode) Rules() []*Rule {
	return slices.Clone(m.rules)
}

// Streamable reports whether every rule of the mode has a streamable
// pattern.
func (m *Mode) Streamable() bool {
	return !slices.ContainsFunc(m.rules, func(r *Rule) bool {
		return !r.Pattern.Streamable()
	})
}

// Match returns the best rule for item or nil if no rule matches. When
// several rules of the highest priority match, the last declared one is
// chosen and a XTDE0540 warning is given to the listener of ctx.
func (m *Mode) Match(ctx *xpath.Context, item xpath.Item) (*Rule, error) {
	var found *Rule
	for _, r := range m.buckets[item.Type()] {
		if found != nil && r.Priority < found.Priority {
			break
		}
		ok, err := r.Pattern.Matches(ctx, item)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if found == nil {
			found = r
			continue
		}
		e := xpath.Error{
			Code:    xpath.CodeAmbiguousRule,
			Message: fmt.Sprintf("%s: rules %q and %q match with priority %g", m.Name, found, r, r.Priority),
		}
		listenerOf(ctx).Warning(&e)
		break
	}
	return found, nil
}

// Apply applies the rules of the mode to each item of the sequence and
// returns the concatenation of the results.
func (m *Mode) Apply(ctx *xpath.Context, value xpath.Value) (xpath.Sequence, error) {
	list, err := xpath.Ground(value)
	if err != nil {
		return nil, err
	}
	var res xpath.Sequence
	for i := range list.Len() {
		seq, err := m.apply(ctx, list.ItemAt(i), i+1, list.Len())
		if err != nil {
			return nil, err
		}
		res = append(res, seq...)
	}
	return res, nil
}

// ApplyDocument applies the rules of the mode starting from the document
// node.
func (m *Mode) ApplyDocument(ctx *xpath.Context, doc *xml.Document) (xpath.Sequence, error) {
	return m.Apply(ctx, xpath.Sequence{xpath.NewNode(doc)})
}

func (m *Mode) apply(ctx *xpath.Context, item xpath.Item, pos, last int) (xpath.Sequence, error) {
	rule, err := m.Match(ctx, item)
	if err != nil {
		return nil, err
	}
	if rule == nil {
		return m.builtin(ctx, item)
	}
	if rule.Body == nil {
		return nil, nil
	}
	m.tracer.Enter(rule, item)
	x := focusOn(ctx, rule.Body, item).WithFocus(item, pos, last)
	seq, err := rule.Body.Evaluate(x)
	if err != nil {
		m.tracer.Error(rule, item, err)
		return nil, err
	}
	m.tracer.Leave(rule, item)
	return seq, nil
}

func (m *Mode) builtin(ctx *xpath.Context, item xpath.Item) (xpath.Sequence, error) {
	if m.noMatch == Fail {
		e := xpath.Error{
			Code:    CodeNoMatch,
			Message: fmt.Sprintf("no rule of mode %s matches %s", m.Name, describe(item)),
		}
		return nil, &e
	}
	if m.noMatch == DeepSkip {
		return nil, nil
	}
	node := item.Node()
	if node == nil {
		if m.noMatch == TextOnlyCopy {
			return xpath.Sequence{item}, nil
		}
		return nil, nil
	}
	switch node.Type() {
	case xml.TypeDocument, xml.TypeElement:
		var children xpath.Sequence
		for _, c := range xml.Children(node) {
			children = append(children, xpath.NewNode(c))
		}
		return m.Apply(ctx, children)
	case xml.TypeText, xml.TypeAttribute:
		if m.noMatch == TextOnlyCopy {
			return xpath.Sequence{xpath.NewNode(xml.NewText(node.Value()))}, nil
		}
		return nil, nil
	default:
		return nil, nil
	}
}

func describe(item xpath.Item) string {
	if n := item.Node(); n != nil {
		return fmt.Sprintf("%s node %s", n.Type(), n.QualifiedName())
	}
	return item.Type().String()
}

// compareRules sorts rules by descending priority then by descending
// declaration order.
func compareRules(a, b *Rule) int {
	if c := cmp.Compare(b.Priority, a.Priority); c != 0 {
		return c
	}
	return cmp.Compare(b.seq, a.seq)
}

// kinds splits a type in its primitive kinds.
func kinds(u xpath.UType) []xpath.UType {
	var list []xpath.UType
	for k := xpath.UType(1); k != 0 && k <= u; k <<= 1 {
		if u&k != 0 {
			list = append(list, k)
		}
	}
	return list
}
