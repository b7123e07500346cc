package xpath

import (
	"fmt"
	"strings"

	"github.com/midbel/distance"
)

// Duplicates is the policy applied by Merge when several maps hold the
// same key.
type Duplicates int8

const (
	UseFirst Duplicates = iota
	UseLast
	UseAny
	Combine
	Reject
)

var duplicatesNames = []string{
	UseFirst: "use-first",
	UseLast:  "use-last",
	UseAny:   "use-any",
	Combine:  "combine",
	Reject:   "reject",
}

func (d Duplicates) String() string {
	if int(d) < len(duplicatesNames) {
		return duplicatesNames[d]
	}
	return "unknown"
}

// ParseDuplicates parses the value of the duplicates option of map:merge.
func ParseDuplicates(str string) (Duplicates, error) {
	for i, n := range duplicatesNames {
		if n == str {
			return Duplicates(i), nil
		}
	}
	e := dynamicError(CodeInvalidOption, "%q is not a valid value for the duplicates option", str)
	if others := distance.Levenshtein(str, duplicatesNames); len(others) > 0 {
		e.Message = fmt.Sprintf("%s, did you mean %s?", e.Message, strings.Join(others, ", "))
	}
	return UseFirst, e
}

// Merge combines maps from left to right into a new map. The policy tells
// which value is kept for keys present in more than one map.
func Merge(maps []MapItem, policy Duplicates) (MapItem, error) {
	switch len(maps) {
	case 0:
		return EmptyMap(), nil
	case 1:
		return maps[0], nil
	}
	res := maps[0]
	for _, m := range maps[1:] {
		for k, v := range m.All() {
			prev, ok := res.Get(k)
			if ok {
				switch policy {
				case UseFirst, UseAny:
					continue
				case Reject:
					return nil, dynamicError(CodeDuplicateKey, "duplicate key %s in map:merge", StringValue(k))
				case Combine:
					v = concatGrounded(prev, v)
				}
			}
			var err error
			if res, err = res.Put(k, v); err != nil {
				return nil, err
			}
		}
	}
	return res, nil
}

func concatGrounded(left, right Grounded) Grounded {
	seq := make(Sequence, 0, left.Len()+right.Len())
	for _, g := range []Grounded{left, right} {
		for i := 0; i < g.Len(); i++ {
			seq = append(seq, g.ItemAt(i))
		}
	}
	return seq
}

// Entry creates a map with a single entry.
func Entry(key Item, value Grounded) (MapItem, error) {
	return SingletonMap(key, value)
}

// Find searches the maps found in value, at any depth inside maps and
// arrays, for key and returns the values associated with it.
func Find(value Value, key Item) (*ArrayItem, error) {
	var members []Grounded
	var search func(Item)
	search = func(item Item) {
		switch x := item.(type) {
		case MapItem:
			if v, ok := x.Get(key); ok {
				members = append(members, v)
			}
			for _, v := range x.All() {
				for i := 0; i < v.Len(); i++ {
					search(v.ItemAt(i))
				}
			}
		case *ArrayItem:
			for m := range x.Members() {
				for i := 0; i < m.Len(); i++ {
					search(m.ItemAt(i))
				}
			}
		}
	}
	for item, err := range Items(value) {
		if err != nil {
			return nil, err
		}
		search(item)
	}
	return NewArray(members...), nil
}

var mapFunctions = []Function{
	{Name: "map:merge", MinArgs: 1, MaxArgs: 2, Type: UMap, Call: callMapMerge},
	{Name: "map:put", MinArgs: 3, MaxArgs: 3, Type: UMap, Call: callMapPut},
	{Name: "map:get", MinArgs: 2, MaxArgs: 2, Card: CardZeroOrMore, Call: callMapGet},
	{Name: "map:contains", MinArgs: 2, MaxArgs: 2, Type: UBoolean, Call: callMapContains},
	{Name: "map:remove", MinArgs: 2, MaxArgs: 2, Type: UMap, Call: callMapRemove},
	{Name: "map:size", MinArgs: 1, MaxArgs: 1, Type: UInteger, Call: callMapSize},
	{Name: "map:keys", MinArgs: 1, MaxArgs: 1, Card: CardZeroOrMore, Type: UAnyAtomic, Call: callMapKeys},
	{Name: "map:entry", MinArgs: 2, MaxArgs: 2, Type: UMap, Call: callMapEntry},
	{Name: "map:find", MinArgs: 2, MaxArgs: 2, Type: UArray, Call: callMapFind},
}

func mapArg(v Value) (MapItem, error) {
	item, err := Head(v)
	if err != nil {
		return nil, err
	}
	m, ok := item.(MapItem)
	if !ok {
		return nil, typeError(CodeType, "map expected")
	}
	return m, nil
}

func keyArg(v Value) (Item, error) {
	xs, err := AtomizeValue(v)
	if err != nil {
		return nil, err
	}
	if len(xs) != 1 {
		return nil, typeError(CodeType, "a single atomic value is expected as map key, got %d items", len(xs))
	}
	return xs[0], nil
}

func callMapMerge(_ *Context, args []Value) (Value, error) {
	var maps []MapItem
	for item, err := range Items(args[0]) {
		if err != nil {
			return nil, err
		}
		m, ok := item.(MapItem)
		if !ok {
			return nil, typeError(CodeType, "map:merge expects a sequence of maps, got %s", item.Type())
		}
		maps = append(maps, m)
	}
	policy := UseFirst
	if len(args) > 1 {
		opts, err := mapArg(args[1])
		if err != nil {
			return nil, err
		}
		if v, ok := opts.Get(String("duplicates")); ok {
			str, err := stringArg(v)
			if err != nil {
				return nil, err
			}
			if policy, err = ParseDuplicates(str); err != nil {
				return nil, err
			}
		}
	}
	m, err := Merge(maps, policy)
	if err != nil {
		return nil, err
	}
	return Sequence{m}, nil
}

func callMapPut(_ *Context, args []Value) (Value, error) {
	m, err := mapArg(args[0])
	if err != nil {
		return nil, err
	}
	key, err := keyArg(args[1])
	if err != nil {
		return nil, err
	}
	value, err := Ground(args[2])
	if err != nil {
		return nil, err
	}
	res, err := m.Put(key, value)
	if err != nil {
		return nil, err
	}
	return Sequence{res}, nil
}

func callMapGet(_ *Context, args []Value) (Value, error) {
	m, err := mapArg(args[0])
	if err != nil {
		return nil, err
	}
	key, err := keyArg(args[1])
	if err != nil {
		return nil, err
	}
	if v, ok := m.Get(key); ok {
		return v, nil
	}
	return EmptySequence, nil
}

func callMapContains(_ *Context, args []Value) (Value, error) {
	m, err := mapArg(args[0])
	if err != nil {
		return nil, err
	}
	key, err := keyArg(args[1])
	if err != nil {
		return nil, err
	}
	_, ok := m.Get(key)
	return Sequence{Boolean(ok)}, nil
}

func callMapRemove(_ *Context, args []Value) (Value, error) {
	m, err := mapArg(args[0])
	if err != nil {
		return nil, err
	}
	keys, err := AtomizeValue(args[1])
	if err != nil {
		return nil, err
	}
	for _, k := range keys {
		m, _ = m.Remove(k)
	}
	return Sequence{m}, nil
}

func callMapSize(_ *Context, args []Value) (Value, error) {
	m, err := mapArg(args[0])
	if err != nil {
		return nil, err
	}
	return Sequence{Integer(int64(m.Size()))}, nil
}

func callMapKeys(_ *Context, args []Value) (Value, error) {
	m, err := mapArg(args[0])
	if err != nil {
		return nil, err
	}
	return Keys(m), nil
}

func callMapEntry(_ *Context, args []Value) (Value, error) {
	key, err := keyArg(args[0])
	if err != nil {
		return nil, err
	}
	value, err := Ground(args[1])
	if err != nil {
		return nil, err
	}
	m, err := Entry(key, value)
	if err != nil {
		return nil, err
	}
	return Sequence{m}, nil
}

func callMapFind(_ *Context, args []Value) (Value, error) {
	key, err := keyArg(args[1])
	if err != nil {
		return nil, err
	}
	arr, err := Find(args[0], key)
	if err != nil {
		return nil, err
	}
	return Sequence{arr}, nil
}
