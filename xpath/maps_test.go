package xpath

import (
	"iter"
	"slices"
	"strings"
	"testing"
)

func makeMap(t *testing.T, pairs ...any) MapItem {
	t.Helper()
	var m MapItem = EmptyMap()
	for i := 0; i < len(pairs); i += 2 {
		key, err := ItemOf(pairs[i])
		if err != nil {
			t.Fatalf("invalid key: %s", err)
		}
		if m, err = m.Put(key, Singleton(pairs[i+1])); err != nil {
			t.Fatalf("fail to put %v: %s", pairs[i], err)
		}
	}
	return m
}

func lookup(m MapItem, key any) string {
	k, _ := ItemOf(key)
	v, ok := m.Get(k)
	if !ok {
		return "<none>"
	}
	var list []string
	for i := 0; i < v.Len(); i++ {
		list = append(list, StringValue(v.ItemAt(i)))
	}
	return strings.Join(list, " ")
}

func TestMapPersistence(t *testing.T) {
	m1 := makeMap(t, "x", 1, "y", 2)
	m2, err := m1.Put(String("z"), Sequence{Integer(3)})
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if m1.Size() != 2 || m2.Size() != 3 {
		t.Errorf("size mismatched! want 2 and 3, got %d and %d", m1.Size(), m2.Size())
	}
	if got := lookup(m1, "z"); got != "<none>" {
		t.Errorf("original map modified: z = %s", got)
	}
	m3, err := m2.Put(String("x"), Sequence{Integer(10)})
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if m3.Size() != 3 {
		t.Errorf("replacing a value should not change the size, got %d", m3.Size())
	}
	if got := lookup(m2, "x"); got != "1" {
		t.Errorf("x: want 1, got %s", got)
	}
	if got := lookup(m3, "x"); got != "10" {
		t.Errorf("x: want 10, got %s", got)
	}

	m4, ok := m3.Remove(String("y"))
	if !ok {
		t.Fatalf("y should be removed")
	}
	if m4.Size() != 2 || lookup(m3, "y") != "2" {
		t.Errorf("remove should return a new map")
	}
	m5, ok := m4.Remove(String("unknown"))
	if ok {
		t.Errorf("removing an absent key should report false")
	}
	if m5 != m4 {
		t.Errorf("removing an absent key should return the same map")
	}
}

func TestMapKeys(t *testing.T) {
	m := makeMap(t, 1, "integer")

	if got := lookup(m, 1.0); got != "integer" {
		t.Errorf("1.0 and 1 should be the same key, got %s", got)
	}
	if got := lookup(m, "1"); got != "<none>" {
		t.Errorf("string 1 should not match integer 1, got %s", got)
	}
	m2, err := m.Put(Untyped("a"), Sequence{Integer(1)})
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if got := lookup(m2, "a"); got != "1" {
		t.Errorf("untyped and string should be the same key, got %s", got)
	}
	if _, err := m.Put(EmptyMap(), EmptySequence); !HasCode(err, CodeType) {
		t.Errorf("map used as key should fail with %s, got %v", CodeType, err)
	}
	if m2.KeyType() != UInteger|UUntyped {
		t.Errorf("key type mismatched! got %s", m2.KeyType())
	}
	m3, _ := m2.Remove(Integer(1))
	if m3.KeyType() != UUntyped {
		t.Errorf("key type not recomputed after remove, got %s", m3.KeyType())
	}
}

func TestMapMany(t *testing.T) {
	var m MapItem = EmptyMap()
	for i := range 5000 {
		var err error
		if m, err = m.Put(Integer(int64(i)), Sequence{Integer(int64(i * 2))}); err != nil {
			t.Fatalf("unexpected error: %s", err)
		}
	}
	if m.Size() != 5000 {
		t.Fatalf("size mismatched! want 5000, got %d", m.Size())
	}
	for _, i := range []int{0, 17, 1024, 4999} {
		if got, want := lookup(m, i), StringValue(Integer(int64(i*2))); got != want {
			t.Errorf("%d: want %s, got %s", i, want, got)
		}
	}
	var count int
	for range m.All() {
		count++
	}
	if count != 5000 {
		t.Errorf("iteration mismatched! want 5000 entries, got %d", count)
	}
}

func TestMerge(t *testing.T) {
	tests := []struct {
		Policy Duplicates
		X      string
		Y      string
		Code   string
	}{
		{Policy: UseFirst, X: "1", Y: "2"},
		{Policy: UseLast, X: "3", Y: "2"},
		{Policy: UseAny, X: "1", Y: "2"},
		{Policy: Combine, X: "1 3", Y: "2"},
		{Policy: Reject, Code: CodeDuplicateKey},
	}
	for _, tt := range tests {
		t.Run(tt.Policy.String(), func(t *testing.T) {
			var (
				m1 = makeMap(t, "x", 1, "y", 2)
				m2 = makeMap(t, "x", 3)
			)
			m, err := Merge([]MapItem{m1, m2}, tt.Policy)
			if tt.Code != "" {
				if !HasCode(err, tt.Code) {
					t.Errorf("expected error %s, got %v", tt.Code, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %s", err)
			}
			if got := lookup(m, "x"); got != tt.X {
				t.Errorf("x: want %s, got %s", tt.X, got)
			}
			if got := lookup(m, "y"); got != tt.Y {
				t.Errorf("y: want %s, got %s", tt.Y, got)
			}
			if got := lookup(m1, "x"); got != "1" {
				t.Errorf("merged map modified")
			}
		})
	}
}

func TestParseDuplicates(t *testing.T) {
	for _, str := range []string{"use-first", "use-last", "use-any", "combine", "reject"} {
		d, err := ParseDuplicates(str)
		if err != nil {
			t.Errorf("%s: unexpected error: %s", str, err)
			continue
		}
		if d.String() != str {
			t.Errorf("%s: policy mismatched, got %s", str, d)
		}
	}
	if _, err := ParseDuplicates("use-lst"); !HasCode(err, CodeInvalidOption) {
		t.Errorf("expected error %s, got %v", CodeInvalidOption, err)
	}
}

func TestFind(t *testing.T) {
	inner := makeMap(t, "k", "inner")
	outer, err := makeMap(t, "k", "outer").Put(String("child"), Sequence{inner})
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	arr := NewArray(Sequence{makeMap(t, "k", "member")}, Sequence{Integer(1)})

	res, err := Find(Sequence{outer, arr}, String("k"))
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	var got []string
	for m := range res.Members() {
		got = append(got, StringValue(m.ItemAt(0)))
	}
	slices.Sort(got)
	if want := []string{"inner", "member", "outer"}; !slices.Equal(got, want) {
		t.Errorf("results mismatched! want %q, got %q", want, got)
	}
}

func TestArray(t *testing.T) {
	a1 := NewArray(Sequence{Integer(1)})
	a2 := a1.Append(Sequence{Integer(2), Integer(3)})
	if a1.Size() != 1 || a2.Size() != 2 {
		t.Fatalf("size mismatched! want 1 and 2, got %d and %d", a1.Size(), a2.Size())
	}
	m, ok := a2.Member(2)
	if !ok || m.Len() != 2 {
		t.Errorf("second member should hold 2 items")
	}
	if _, ok := a2.Member(3); ok {
		t.Errorf("member out of bounds")
	}
}

type sortedIndex map[string]Sequence

func (s sortedIndex) Lookup(key string) (Grounded, bool) {
	v, ok := s[key]
	return v, ok
}

func (s sortedIndex) Keys(min, max string) iter.Seq[string] {
	var keys []string
	for k := range s {
		if k >= min && k <= max {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return slices.Values(keys)
}

func TestRangeKeyMap(t *testing.T) {
	index := sortedIndex{
		"apple":  {Integer(1)},
		"banana": {Integer(2)},
		"cherry": {Integer(3)},
		"date":   {Integer(4)},
	}
	m := NewRangeKeyMap(index, "b", "d")

	if m.Size() != 2 {
		t.Errorf("size mismatched! want 2, got %d", m.Size())
	}
	if got := lookup(m, "cherry"); got != "3" {
		t.Errorf("cherry: want 3, got %s", got)
	}
	if got := lookup(m, "apple"); got != "<none>" {
		t.Errorf("apple is out of range, got %s", got)
	}
	if got := lookup(m, 1); got != "<none>" {
		t.Errorf("integer key should not match, got %s", got)
	}
	if got := Keys(m); len(got) != 2 || StringValue(got[0]) != "banana" {
		t.Errorf("keys mismatched! got %q", values(got))
	}

	same, ok := m.Remove(String("apple"))
	if ok || same != MapItem(m) {
		t.Errorf("removing a key out of range should return the view")
	}
	put, err := m.Put(String("elder"), Sequence{Integer(5)})
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if _, ok := put.(*HashTrieMap); !ok {
		t.Fatalf("updated view should be a hash trie map, got %T", put)
	}
	if put.Size() != 3 || lookup(put, "banana") != "2" {
		t.Errorf("updated map mismatched")
	}
	if m.Size() != 2 {
		t.Errorf("view modified by update")
	}

	removed, ok := m.Remove(String("banana"))
	if !ok {
		t.Fatalf("banana should be removed")
	}
	if removed.Size() != 1 || lookup(removed, "cherry") != "3" || lookup(removed, "banana") != "<none>" {
		t.Errorf("map after remove mismatched")
	}
	if m.Size() != 2 || lookup(m, "banana") != "2" {
		t.Errorf("view modified by remove")
	}
}

func TestMapFunctions(t *testing.T) {
	tests := []struct {
		Name     string
		Build    func(*Tree) NodeID
		Expected []string
		Code     string
	}{
		{
			Name: "merge use-last",
			Build: func(t *Tree) NodeID {
				var (
					m1   = t.MapConstructor(literal(t, "x"), literal(t, 1), literal(t, "y"), literal(t, 2))
					m2   = t.MapConstructor(literal(t, "x"), literal(t, 3))
					opts = t.MapConstructor(literal(t, "duplicates"), literal(t, "use-last"))
				)
				merged := t.Call("map:merge", t.Block(m1, m2), opts)
				return t.Block(t.Call("map:get", merged, literal(t, "x")), t.Call("map:size", t.Copy(merged)))
			},
			Expected: []string{"3", "2"},
		},
		{
			Name: "merge reject",
			Build: func(t *Tree) NodeID {
				var (
					m1   = t.MapConstructor(literal(t, "x"), literal(t, 1))
					m2   = t.MapConstructor(literal(t, "x"), literal(t, 3))
					opts = t.MapConstructor(literal(t, "duplicates"), literal(t, "reject"))
				)
				return t.Call("map:merge", t.Block(m1, m2), opts)
			},
			Code: CodeDuplicateKey,
		},
		{
			Name: "merge invalid option",
			Build: func(t *Tree) NodeID {
				var (
					m1   = t.MapConstructor(literal(t, "x"), literal(t, 1))
					opts = t.MapConstructor(literal(t, "duplicates"), literal(t, "use-lst"))
				)
				return t.Call("map:merge", m1, opts)
			},
			Code: CodeInvalidOption,
		},
		{
			Name: "put and contains",
			Build: func(t *Tree) NodeID {
				m := t.Call("map:put", t.MapConstructor(), literal(t, 1), literal(t, "one"))
				return t.Block(t.Call("map:contains", m, literal(t, 1.0)), t.Call("map:contains", t.Copy(m), literal(t, "1")))
			},
			Expected: []string{"true", "false"},
		},
		{
			Name: "remove",
			Build: func(t *Tree) NodeID {
				m := t.MapConstructor(literal(t, "a"), literal(t, 1), literal(t, "b"), literal(t, 2))
				return t.Call("map:keys", t.Call("map:remove", m, literal(t, "a")))
			},
			Expected: []string{"b"},
		},
		{
			Name: "entry",
			Build: func(t *Tree) NodeID {
				return t.Call("map:get", t.Call("map:entry", literal(t, "k"), literal(t, "v", "w")), literal(t, "k"))
			},
			Expected: []string{"v", "w"},
		},
		{
			Name: "duplicate key in constructor",
			Build: func(t *Tree) NodeID {
				return t.MapConstructor(literal(t, 1), literal(t, "a"), literal(t, 1.0), literal(t, "b"))
			},
			Code: "XQDY0137",
		},
	}
	for _, tt := range tests {
		t.Run(tt.Name, func(t *testing.T) {
			tree := NewTree()
			seq, err := evaluate(t, tree, tt.Build(tree), nil)
			if tt.Code != "" {
				if !HasCode(err, tt.Code) {
					t.Errorf("expected error %s, got %v", tt.Code, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %s", err)
			}
			if got := values(seq); !slices.Equal(got, tt.Expected) {
				t.Errorf("results mismatched! want %q, got %q", tt.Expected, got)
			}
		})
	}
}
