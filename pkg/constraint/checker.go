// Package constraint defines the feasibility oracle consulted while test cases
// are built, and the guard that adapts it to partially assigned tuples.
package constraint

import (
	"errors"
	"fmt"

	"github.com/nomagicln/ipogen/pkg/tuple"
)

// ErrUndefinedSymbol is matched by UndefinedSymbolError.
var ErrUndefinedSymbol = errors.New("undefined symbol")

// UndefinedSymbolError signals that a checker cannot decide because the tuple
// lacks an attribute it needs.
type UndefinedSymbolError struct {
	Name string
}

func (e *UndefinedSymbolError) Error() string {
	return fmt.Sprintf("undefined symbol '%s'", e.Name)
}

// Is lets errors.Is match ErrUndefinedSymbol.
func (e *UndefinedSymbolError) Is(target error) bool {
	return target == ErrUndefinedSymbol
}

// Checker decides whether a tuple satisfies the constraints. Tuples passed to
// Check never contain DontCare. A checker that needs a missing attribute
// returns an error matching ErrUndefinedSymbol.
type Checker interface {
	Check(t *tuple.Tuple) (bool, error)
}

// CheckerFunc adapts a function to the Checker interface.
type CheckerFunc func(t *tuple.Tuple) (bool, error)

// Check calls f(t).
func (f CheckerFunc) Check(t *tuple.Tuple) (bool, error) {
	return f(t)
}

// None accepts every tuple.
var None Checker = CheckerFunc(func(*tuple.Tuple) (bool, error) { return true, nil })

// All combines checkers; a tuple is feasible only when every checker accepts it.
// An explicit rejection wins over an undefined symbol from another checker.
func All(checkers ...Checker) Checker {
	return CheckerFunc(func(t *tuple.Tuple) (bool, error) {
		var undefined error
		for _, c := range checkers {
			ok, err := c.Check(t)
			if err != nil {
				if errors.Is(err, ErrUndefinedSymbol) {
					if undefined == nil {
						undefined = err
					}
					continue
				}
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		if undefined != nil {
			return false, undefined
		}
		return true, nil
	})
}

// Forbid rejects any tuple that contains every entry of one of the given
// combinations. Missing attributes make the combination irrelevant, so Forbid
// never reports an undefined symbol.
func Forbid(combinations ...*tuple.Tuple) Checker {
	return CheckerFunc(func(t *tuple.Tuple) (bool, error) {
		for _, c := range combinations {
			if t.Contains(c) {
				return false, nil
			}
		}
		return true, nil
	})
}
