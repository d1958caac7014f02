package generator

import (
	"fmt"

	"github.com/nomagicln/ipogen/pkg/constraint"
	"github.com/nomagicln/ipogen/pkg/coverage"
	"github.com/nomagicln/ipogen/pkg/tuple"
)

// Report is the outcome of Verify.
type Report struct {
	// Combinations is the number of strength-way combinations of the space.
	Combinations int
	// Covered counts the combinations contained in some test case.
	Covered int
	// Remainders counts uncovered combinations the engine reported.
	Remainders int
	// Infeasible counts uncovered, unreported combinations the constraints reject.
	Infeasible int
	// Uncovered lists feasible combinations that are neither covered nor reported.
	Uncovered []*tuple.Tuple
	// InvalidRows lists test cases that are incomplete or violate the constraints.
	InvalidRows []*tuple.Tuple
}

// OK reports whether the covering array is complete and sound.
func (r *Report) OK() bool {
	return len(r.Uncovered) == 0 && len(r.InvalidRows) == 0
}

// Verify recomputes every strength-way combination of req and checks ca
// against it.
func Verify(req Request, ca *CoveringArray) (*Report, error) {
	if req.Factors == nil || ca == nil {
		return nil, fmt.Errorf("factors and covering array are required")
	}
	if req.Strength < 1 || req.Strength > req.Factors.Len() {
		return nil, fmt.Errorf("strength must be between 1 and %d, got %d", req.Factors.Len(), req.Strength)
	}

	guard := constraint.NewGuard(req.Checker)
	all := coverage.All(req.Factors, req.Strength)
	report := &Report{Combinations: all.Len()}

	for _, row := range ca.TestCases {
		valid, err := validRow(guard, req, row)
		if err != nil {
			return nil, err
		}
		if !valid {
			report.InvalidRows = append(report.InvalidRows, row)
			continue
		}
		report.Covered += all.Cover(row)
	}

	reported := tuple.NewSet(ca.Remainders...)
	for _, missing := range all.All() {
		if reported.Contains(missing) {
			report.Remainders++
			continue
		}
		ok, err := guard.Feasible(missing)
		if err != nil {
			return nil, fmt.Errorf("checking %s: %w", missing, err)
		}
		if !ok {
			report.Infeasible++
			continue
		}
		report.Uncovered = append(report.Uncovered, missing)
	}
	return report, nil
}

func validRow(guard *constraint.Guard, req Request, row *tuple.Tuple) (bool, error) {
	if row.Len() != req.Factors.Len() || row.HasDontCare() {
		return false, nil
	}
	for _, name := range row.Keys() {
		f, ok := req.Factors.Get(name)
		if !ok {
			return false, nil
		}
		l, _ := row.Get(name)
		if f.IndexOf(l.Get()) < 0 {
			return false, nil
		}
	}
	ok, err := guard.Feasible(row)
	if err != nil {
		return false, fmt.Errorf("checking %s: %w", row, err)
	}
	return ok, nil
}
