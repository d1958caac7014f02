package constraint

import (
	"errors"
	"fmt"

	"github.com/nomagicln/ipogen/pkg/tuple"
)

// Guard wraps a Checker for use on tuples under construction. It strips
// DontCare entries before delegating and treats an undefined symbol as
// feasible, leaving the decision to a later, more complete tuple.
type Guard struct {
	checker Checker
}

// NewGuard wraps c. A nil checker accepts everything.
func NewGuard(c Checker) *Guard {
	if c == nil {
		c = None
	}
	return &Guard{checker: c}
}

// Feasible reports whether t, with DontCare entries removed, may still
// satisfy the constraints. Errors other than an undefined symbol are returned.
func (g *Guard) Feasible(t *tuple.Tuple) (bool, error) {
	ok, err := g.checker.Check(t.StripDontCare())
	if err != nil {
		if errors.Is(err, ErrUndefinedSymbol) {
			return true, nil
		}
		return false, fmt.Errorf("constraint check failed for %s: %w", t, err)
	}
	return ok, nil
}

// Checker returns the wrapped oracle.
func (g *Guard) Checker() Checker {
	return g.checker
}
