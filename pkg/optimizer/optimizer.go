// Package optimizer defines the strategy consulted by the IPO2 engine when it
// picks values, reuses rows and fills don't-care gaps.
package optimizer

import (
	"github.com/nomagicln/ipogen/pkg/constraint"
	"github.com/nomagicln/ipogen/pkg/coverage"
	"github.com/nomagicln/ipogen/pkg/factor"
	"github.com/nomagicln/ipogen/pkg/tuple"
)

// Outcome tells how a fill attempt ended.
type Outcome int

const (
	// Filled means every don't-care entry received a feasible level.
	Filled Outcome = iota
	// GaveUp means no feasible assignment was found. The tuple is the
	// best-effort input, don't-care entries included.
	GaveUp
)

func (o Outcome) String() string {
	switch o {
	case Filled:
		return "filled"
	case GaveUp:
		return "gave up"
	default:
		return "unknown"
	}
}

// FillResult is returned by FillInMissingFactors.
type FillResult struct {
	Tuple   *tuple.Tuple
	Outcome Outcome
}

// Optimizer is the pluggable heuristic used by the engine. Implementations
// must not retain the views or tuples they receive beyond the call.
type Optimizer interface {
	// ChooseBestValue returns one of candidates as the level of factor name
	// for the partially built row t.
	ChooseBestValue(name string, candidates []any, t *tuple.Tuple, targets coverage.View) any

	// ChooseBestTuple returns one of candidates, the row to reuse when
	// assigning level to factor name.
	ChooseBestTuple(candidates []*tuple.Tuple, targets coverage.View, name string, level any) *tuple.Tuple

	// FillInMissingFactors replaces every don't-care entry of t with a
	// concrete level such that guard accepts the result. The returned tuple
	// keeps the key set and concrete entries of t. When no assignment exists
	// the result carries Outcome GaveUp. Errors are reserved for checker
	// failures.
	FillInMissingFactors(t *tuple.Tuple, targets coverage.View, guard *constraint.Guard, fs *factor.Factors) (FillResult, error)
}
