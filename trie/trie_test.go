package trie

import (
	"fmt"
	"testing"
)

func TestPutGet(t *testing.T) {
	var (
		m     = Empty[string, int]()
		added bool
	)
	for i := 0; i < 2000; i++ {
		m, added = m.Put(fmt.Sprintf("key-%d", i), i)
		if !added {
			t.Fatalf("key-%d: expected new entry", i)
		}
	}
	for i := 0; i < 2000; i++ {
		got, ok := m.Get(fmt.Sprintf("key-%d", i))
		if !ok || got != i {
			t.Fatalf("key-%d: want %d, got %d (found: %t)", i, i, got, ok)
		}
	}
	if _, ok := m.Get("missing"); ok {
		t.Errorf("missing key found")
	}
	var count int
	for range m.All() {
		count++
	}
	if count != 2000 {
		t.Errorf("expected 2000 entries, got %d", count)
	}
}

func TestPutKeepsPrevious(t *testing.T) {
	base := Empty[int, string]()
	for i := range 100 {
		base, _ = base.Put(i, fmt.Sprint(i))
	}
	next, added := base.Put(42, "changed")
	if added {
		t.Errorf("replacing an entry should not report an addition")
	}
	if v, _ := base.Get(42); v != "42" {
		t.Errorf("original map modified: got %s", v)
	}
	if v, _ := next.Get(42); v != "changed" {
		t.Errorf("new value not visible: got %s", v)
	}
	for i := range 100 {
		if i == 42 {
			continue
		}
		v1, _ := base.Get(i)
		v2, _ := next.Get(i)
		if v1 != v2 {
			t.Errorf("%d: unrelated entry changed: %s != %s", i, v1, v2)
		}
	}
}

func TestRemove(t *testing.T) {
	m := Empty[int, int]()
	for i := range 500 {
		m, _ = m.Put(i, i*i)
	}
	same, removed := m.Remove(1000)
	if removed || !same.Same(m) {
		t.Fatalf("removing a missing key should return the same map")
	}
	less, removed := m.Remove(10)
	if !removed {
		t.Fatalf("key 10 not removed")
	}
	if _, ok := less.Get(10); ok {
		t.Errorf("key 10 still present")
	}
	if v, ok := m.Get(10); !ok || v != 100 {
		t.Errorf("original map modified")
	}
	for i := range 500 {
		less, _ = less.Remove(i)
	}
	if !less.Empty() {
		t.Errorf("map should be empty after removing all keys")
	}
}

type collide struct {
	value int
}

func TestStructKeys(t *testing.T) {
	m := Empty[collide, int]()
	for i := range 64 {
		m, _ = m.Put(collide{i}, i)
	}
	for i := range 64 {
		if v, ok := m.Get(collide{i}); !ok || v != i {
			t.Fatalf("%d: wrong value %d", i, v)
		}
	}
}
