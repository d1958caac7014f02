// Package tuple provides the value types shared by every generator: a Level
// (a concrete factor value or the don't-care placeholder), an ordered Tuple of
// factor assignments, and an insertion-ordered Set of tuples.
package tuple

import (
	"fmt"
	"reflect"
)

// Level is one entry of a Tuple. It is either a concrete factor level or
// DontCare, the placeholder for "not assigned yet".
type Level struct {
	value    any
	concrete bool
}

// DontCare is the placeholder level used while a tuple is under construction.
// It never appears in a finished test case.
var DontCare = Level{}

// Value wraps a concrete level. v must be comparable.
func Value(v any) Level {
	return Level{value: v, concrete: true}
}

// IsDontCare reports whether l is the don't-care placeholder.
func (l Level) IsDontCare() bool {
	return !l.concrete
}

// Get returns the concrete value. It returns nil for DontCare.
func (l Level) Get() any {
	return l.value
}

// Equal reports whether two levels are identical. DontCare only equals DontCare.
func (l Level) Equal(o Level) bool {
	if l.concrete != o.concrete {
		return false
	}
	if !l.concrete {
		return true
	}
	return valuesEqual(l.value, o.value)
}

// String renders the level for diagnostics.
func (l Level) String() string {
	if !l.concrete {
		return "D/C"
	}
	return fmt.Sprintf("%v", l.value)
}

// key returns a string that identifies the level inside a canonical tuple key.
func (l Level) key() string {
	if !l.concrete {
		return "\x00dc"
	}
	return fmt.Sprintf("%T:%v", l.value, l.value)
}

// Comparable reports whether v can be used as a level value.
func Comparable(v any) bool {
	if v == nil {
		return true
	}
	return reflect.TypeOf(v).Comparable()
}

func valuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}
