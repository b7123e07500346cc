package environ

import (
	"errors"
	"slices"
	"testing"
)

func TestEnvResolve(t *testing.T) {
	top := Empty[int]()
	top.Define("a", 1)
	top.Define("b", 2)

	sub := Enclosed(top)
	sub.Define("b", 20)

	tests := []struct {
		Name string
		Want int
		Err  error
	}{
		{Name: "a", Want: 1},
		{Name: "b", Want: 20},
		{Name: "c", Err: ErrDefined},
	}
	for _, c := range tests {
		got, err := sub.Resolve(c.Name)
		if c.Err != nil {
			if !errors.Is(err, c.Err) {
				t.Errorf("%s: expected error %v, got %v", c.Name, c.Err, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: unexpected error: %s", c.Name, err)
			continue
		}
		if got != c.Want {
			t.Errorf("%s: want %d, got %d", c.Name, c.Want, got)
		}
	}
}

func TestEnvStrict(t *testing.T) {
	env := Strict[string](nil)
	if err := env.Define("x", "first"); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if err := env.Define("x", "second"); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	got, _ := env.Resolve("x")
	if got != "first" {
		t.Errorf("value overwritten: got %s", got)
	}
	if names := env.Names(); !slices.Equal(names, []string{"x"}) {
		t.Errorf("unexpected names: %v", names)
	}
	if !Defined(env, "x") || Defined(env, "y") {
		t.Errorf("Defined reports wrong result")
	}
}
