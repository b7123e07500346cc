package xpath

import (
	"math"
)

// EffectiveBooleanValue converts a sequence to a boolean. A sequence whose
// first item is a node is true whatever follows. A single boolean, string
// or number has its natural truth value. Anything else raises FORG0006.
func EffectiveBooleanValue(it Iterator) (bool, error) {
	first, err := it.Next()
	if err != nil || first == nil {
		return false, err
	}
	if first.Node() != nil {
		return true, nil
	}
	var res bool
	switch first.Type() {
	case UBoolean:
		res = first.Value().(bool)
	case UString, UUntyped, UAnyURI:
		res = first.Value().(string) != ""
	case UInteger, UDouble:
		f := toFloat(first)
		res = f != 0 && !math.IsNaN(f)
	default:
		return false, ebvError("a sequence starting with " + first.Type().String())
	}
	next, err := it.Next()
	if err != nil {
		return false, err
	}
	if next != nil {
		return false, ebvError("a sequence of two or more items starting with " + first.Type().String())
	}
	return res, nil
}

func ebvError(reason string) error {
	return typeError(CodeEffectiveBoolean, "Effective boolean value is not defined for %s", reason)
}

// EffectiveBooleanValueOf is EffectiveBooleanValue applied to a value.
func EffectiveBooleanValueOf(v Value) (bool, error) {
	return EffectiveBooleanValue(v.Iterate())
}
