// Package ipo2 builds constrained covering arrays with the In-Parameter-Order
// generalized algorithm: factors are added one at a time, existing rows are
// extended horizontally, and rows are created or reused vertically for the
// combinations the extension missed.
package ipo2

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nomagicln/ipogen/pkg/constraint"
	"github.com/nomagicln/ipogen/pkg/coverage"
	"github.com/nomagicln/ipogen/pkg/factor"
	"github.com/nomagicln/ipogen/pkg/optimizer"
	"github.com/nomagicln/ipogen/pkg/tuple"
)

// Result is the output of a run.
type Result struct {
	// TestCases is the covering array. Every row assigns every factor, in
	// factor order, with no don't-care entries.
	TestCases []*tuple.Tuple
	// Remainders are the strength-way combinations that could not be covered
	// under the constraints.
	Remainders []*tuple.Tuple
}

// Engine runs IPO2 once over a fixed factor space.
type Engine struct {
	factors   *factor.Factors
	strength  int
	guard     *constraint.Guard
	optimizer optimizer.Optimizer
	logger    *slog.Logger
	progress  func(Progress)
	ran       bool
}

// New validates the inputs and returns a single-use engine.
func New(fs *factor.Factors, strength int, checker constraint.Checker, opt optimizer.Optimizer, opts ...Option) (*Engine, error) {
	switch {
	case fs == nil:
		return nil, fmt.Errorf("%w: factors are required", ErrPrecondition)
	case fs.Len() < 2:
		return nil, fmt.Errorf("%w: there must be 2 or more factors, got %d", ErrPrecondition, fs.Len())
	case strength < 2 || strength > fs.Len():
		return nil, fmt.Errorf("%w: strength must be between 2 and %d, got %d", ErrPrecondition, fs.Len(), strength)
	case checker == nil:
		return nil, fmt.Errorf("%w: constraint checker is required", ErrPrecondition)
	case opt == nil:
		return nil, fmt.Errorf("%w: optimizer is required", ErrPrecondition)
	}

	e := &Engine{
		factors:   fs,
		strength:  strength,
		guard:     constraint.NewGuard(checker),
		optimizer: opt,
		logger:    discardLogger(),
	}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// Run builds the covering array. The context is checked before each factor
// is added; a cancelled run returns the context error and no result.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	if e.ran {
		return nil, ErrAlreadyRun
	}
	e.ran = true

	total := e.factors.Len()
	if total == e.strength {
		rows, err := e.feasibleProduct(e.factors)
		if err != nil {
			return nil, err
		}
		e.report(Progress{Factor: e.factors.At(total - 1).Name(), Index: total, Total: total, Rows: len(rows), Completed: true})
		return &Result{TestCases: tuple.Distinct(rows)}, nil
	}

	rows, err := e.feasibleProduct(e.factors.First(e.strength))
	if err != nil {
		return nil, err
	}
	e.report(Progress{Factor: e.factors.At(e.strength - 1).Name(), Index: e.strength, Total: total, Rows: len(rows)})

	leftover := coverage.New(e.strength)
	for i := e.strength; i < total; i++ {
		f := e.factors.At(i)
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("generation cancelled before factor '%s': %w", f.Name(), err)
		}

		window := e.factors.Through(f.Name())
		left := coverage.ForFactor(window, f.Name(), e.strength)
		left.Merge(leftover)
		targets := left.Len()

		var abandoned *coverage.Tuples
		rows, abandoned, err = e.hg(rows, left, f)
		if err != nil {
			return nil, err
		}
		left.Merge(abandoned)

		leftover = coverage.New(e.strength)
		if !left.IsEmpty() {
			rows, leftover, err = e.vg(rows, left, window)
			if err != nil {
				return nil, err
			}
		}

		e.logger.Debug("factor processed",
			"factor", f.Name(),
			"targets", targets,
			"rows", len(rows),
			"leftover", leftover.Len())
		e.report(Progress{
			Factor:    f.Name(),
			Index:     i + 1,
			Total:     total,
			Rows:      len(rows),
			Targets:   targets,
			Leftover:  leftover.Len(),
			Completed: i == total-1,
		})
	}

	return &Result{
		TestCases:  tuple.Distinct(rows),
		Remainders: leftover.All(),
	}, nil
}

func (e *Engine) report(p Progress) {
	if e.progress != nil {
		e.progress(p)
	}
}

func (e *Engine) feasibleProduct(fs *factor.Factors) ([]*tuple.Tuple, error) {
	var out []*tuple.Tuple
	for t := range fs.Cartesian() {
		ok, err := e.guard.Feasible(t)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, t)
		}
	}
	return out, nil
}

// hg assigns a level of f to every row. Rows that admit no feasible level are
// dropped and their sub-tuples returned for another attempt.
func (e *Engine) hg(rows []*tuple.Tuple, left *coverage.Tuples, f factor.Factor) ([]*tuple.Tuple, *coverage.Tuples, error) {
	abandoned := coverage.New(e.strength)
	dropped := make([]bool, len(rows))

	for i, row := range rows {
		candidates := f.Levels()
		assigned := false
		for len(candidates) > 0 {
			v := e.optimizer.ChooseBestValue(f.Name(), append([]any(nil), candidates...), row.Clone(), left.View())
			idx := indexOfLevel(candidates, v)
			if idx < 0 {
				return nil, nil, violation("ChooseBestValue", "level %v of factor '%s' is not among the candidates %v", v, f.Name(), candidates)
			}

			row.PutValue(f.Name(), v)
			ok, err := e.guard.Feasible(row)
			if err != nil {
				return nil, nil, err
			}
			if ok {
				left.Cover(row)
				assigned = true
				break
			}
			row.Remove(f.Name())
			candidates = append(candidates[:idx], candidates[idx+1:]...)
		}
		if assigned {
			continue
		}

		dropped[i] = true
		e.logger.Debug("row abandoned", "factor", f.Name(), "row", row.String())
		if err := e.handleGivenUp(row, rows, dropped, abandoned); err != nil {
			return nil, nil, err
		}
	}

	kept := rows[:0]
	for i, row := range rows {
		if !dropped[i] {
			kept = append(kept, row)
		}
	}
	return kept, abandoned, nil
}

// vg covers the remaining targets by creating rows, or by completing rows
// created earlier in the same pass, and then fills every don't-care entry.
// It returns the combinations that stay uncovered.
func (e *Engine) vg(rows []*tuple.Tuple, left *coverage.Tuples, window *factor.Factors) ([]*tuple.Tuple, *coverage.Tuples, error) {
	leftover := coverage.New(e.strength)

	for _, cur := range left.All() {
		if left.IsEmpty() {
			break
		}
		if !left.Contains(cur) {
			continue
		}

		best := window.CreateTupleFrom(cur, tuple.DontCare)
		ok, err := e.guard.Feasible(best)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			leftover.Add(cur)
			continue
		}
		bestIdx := -1
		covered := left.Count(best)

		for _, name := range cur.Keys() {
			level, _ := cur.Get(name)
			q := cur.Clone()
			q.Put(name, tuple.DontCare)

			var found []*tuple.Tuple
			var foundIdx []int
			for _, i := range lookup(rows, q, nil) {
				probe := rows[i].Clone()
				probe.Put(name, level)
				ok, err := e.guard.Feasible(probe)
				if err != nil {
					return nil, nil, err
				}
				if ok {
					found = append(found, rows[i].Clone())
					foundIdx = append(foundIdx, i)
				}
			}
			if len(found) == 0 {
				continue
			}

			chosen := e.optimizer.ChooseBestTuple(append([]*tuple.Tuple(nil), found...), left.View(), name, level.Get())
			at := indexOfTuple(found, chosen)
			if at < 0 {
				return nil, nil, violation("ChooseBestTuple", "tuple %v is not among the %d candidates", chosen, len(found))
			}
			candidate := found[at]
			candidate.Put(name, level)
			if n := left.Count(candidate); n > covered {
				best, bestIdx, covered = candidate, foundIdx[at], n
			}
		}

		left.Cover(best)
		leftover.Cover(best)
		if bestIdx >= 0 {
			rows[bestIdx] = best
		} else {
			rows = append(rows, best)
		}
	}

	dropped := make([]bool, len(rows))
	for i, row := range rows {
		if row.HasDontCare() {
			filled, given, err := e.fill(row, left)
			if err != nil {
				return nil, nil, err
			}
			if filled == nil {
				dropped[i] = true
				e.logger.Debug("gap fill gave up", "row", given.String())
				if err := e.handleGivenUp(given, rows, dropped, leftover); err != nil {
					return nil, nil, err
				}
				continue
			}
			rows[i] = filled
			row = filled
		}
		left.Cover(row)
		leftover.Cover(row)
	}

	kept := rows[:0]
	for i, row := range rows {
		if !dropped[i] {
			kept = append(kept, row)
		}
	}
	return kept, leftover, nil
}

// fill asks the optimizer to resolve the don't-care entries of row. When the
// row has to be given up, filled is nil and given holds the best-effort tuple
// without its don't-care entries.
func (e *Engine) fill(row *tuple.Tuple, left *coverage.Tuples) (filled, given *tuple.Tuple, err error) {
	ok, err := e.guard.Feasible(row)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, row.StripDontCare(), nil
	}

	res, err := e.optimizer.FillInMissingFactors(row.Clone(), left.View(), e.guard, e.factors)
	if err != nil {
		return nil, nil, fmt.Errorf("fill in missing factors of %s: %w", row, err)
	}
	if res.Outcome == optimizer.GaveUp {
		if res.Tuple == nil {
			return nil, row.StripDontCare(), nil
		}
		return nil, res.Tuple.StripDontCare(), nil
	}
	if err := checkFilled(row, res.Tuple); err != nil {
		return nil, nil, err
	}

	ok, err = e.guard.Feasible(res.Tuple)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, res.Tuple.StripDontCare(), nil
	}
	return res.Tuple.Reorder(row.Keys()), nil, nil
}

func checkFilled(in, out *tuple.Tuple) error {
	const hook = "FillInMissingFactors"
	if out == nil {
		return violation(hook, "no tuple returned for %s", in)
	}
	if out.Len() != in.Len() {
		return violation(hook, "key set changed from %v to %v", in.Keys(), out.Keys())
	}
	for _, name := range in.Keys() {
		want, _ := in.Get(name)
		got, ok := out.Get(name)
		switch {
		case !ok:
			return violation(hook, "key set changed from %v to %v", in.Keys(), out.Keys())
		case got.IsDontCare():
			return violation(hook, "factor '%s' is still don't-care in %s", name, out)
		case !want.IsDontCare() && !want.Equal(got):
			return violation(hook, "factor '%s' changed from %v to %v", name, want, got)
		}
	}
	return nil
}

// handleGivenUp records the strength-way sub-tuples of given that no live row
// matches and that do not violate the constraints explicitly. The outcome
// depends on how far the current pass has progressed.
func (e *Engine) handleGivenUp(given *tuple.Tuple, rows []*tuple.Tuple, dropped []bool, into *coverage.Tuples) error {
	for _, sub := range given.Subtuples(e.strength) {
		if len(lookup(rows, sub, dropped)) > 0 {
			continue
		}
		ok, err := e.guard.Feasible(sub)
		if err != nil {
			return err
		}
		if ok {
			into.Add(sub)
		}
	}
	return nil
}

// lookup returns the indices of rows that hold every entry of q, don't-care
// entries included. Rows marked in skip are ignored.
func lookup(rows []*tuple.Tuple, q *tuple.Tuple, skip []bool) []int {
	var out []int
	for i, row := range rows {
		if skip != nil && i < len(skip) && skip[i] {
			continue
		}
		if row.Contains(q) {
			out = append(out, i)
		}
	}
	return out
}

func indexOfLevel(levels []any, v any) int {
	for i, l := range levels {
		if tuple.Value(l).Equal(tuple.Value(v)) {
			return i
		}
	}
	return -1
}

func indexOfTuple(ts []*tuple.Tuple, t *tuple.Tuple) int {
	if t == nil {
		return -1
	}
	for i, c := range ts {
		if c == t {
			return i
		}
	}
	for i, c := range ts {
		if c.Equal(t) {
			return i
		}
	}
	return -1
}
