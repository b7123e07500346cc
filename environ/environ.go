package environ

import (
	"errors"
	"fmt"
	"maps"
	"slices"
)

var (
	ErrDefined   = errors.New("undefined identifier")
	ErrDuplicate = errors.New("identifier already defined")
)

// Environ resolves names to values of type T, consulting enclosing
// environments when a name is not defined locally.
type Environ[T any] interface {
	Resolve(string) (T, error)
	Define(string, T) error
	Names() []string
	Len() int
}

type Env[T any] struct {
	values map[string]T
	parent Environ[T]
	strict bool
}

func Empty[T any]() Environ[T] {
	return Enclosed[T](nil)
}

// Strict returns an environment refusing to redefine a name already
// present in its own scope.
func Strict[T any](parent Environ[T]) Environ[T] {
	e := Env[T]{
		values: make(map[string]T),
		parent: parent,
		strict: true,
	}
	return &e
}

func Enclosed[T any](parent Environ[T]) Environ[T] {
	e := Env[T]{
		values: make(map[string]T),
		parent: parent,
	}
	return &e
}

func (e *Env[T]) Len() int {
	return len(e.values)
}

func (e *Env[T]) Names() []string {
	names := slices.Collect(maps.Keys(e.values))
	slices.Sort(names)
	return names
}

func (e *Env[T]) Define(ident string, value T) error {
	if _, ok := e.values[ident]; ok && e.strict {
		return fmt.Errorf("%s: %w", ident, ErrDuplicate)
	}
	e.values[ident] = value
	return nil
}

func (e *Env[T]) Resolve(ident string) (T, error) {
	value, ok := e.values[ident]
	if ok {
		return value, nil
	}
	if e.parent != nil {
		return e.parent.Resolve(ident)
	}
	var t T
	return t, fmt.Errorf("%s: %w", ident, ErrDefined)
}

func (e *Env[T]) Unwrap() Environ[T] {
	if e.parent == nil {
		return e
	}
	return e.parent
}

func (e *Env[T]) Merge(other Environ[T]) {
	x, ok := other.(*Env[T])
	if !ok {
		return
	}
	maps.Copy(e.values, x.values)
}

func (e *Env[T]) Clone() Environ[T] {
	var x Env[T]
	x.strict = e.strict
	x.values = make(map[string]T)
	maps.Copy(x.values, e.values)

	if c, ok := e.parent.(interface{ Clone() Environ[T] }); ok {
		x.parent = c.Clone()
	}
	return &x
}

// Defined reports whether ident resolves in env or one of its parents.
func Defined[T any](env Environ[T], ident string) bool {
	if env == nil {
		return false
	}
	_, err := env.Resolve(ident)
	return err == nil
}
