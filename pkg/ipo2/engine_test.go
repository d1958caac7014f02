package ipo2

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/nomagicln/ipogen/pkg/constraint"
	"github.com/nomagicln/ipogen/pkg/coverage"
	"github.com/nomagicln/ipogen/pkg/factor"
	"github.com/nomagicln/ipogen/pkg/optimizer"
	"github.com/nomagicln/ipogen/pkg/tuple"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func binary(names ...string) *factor.Factors {
	fs := make([]factor.Factor, len(names))
	for i, n := range names {
		fs[i] = factor.MustNew(n, 0, 1)
	}
	return factor.MustFactors(fs...)
}

func run(t *testing.T, fs *factor.Factors, strength int, checker constraint.Checker, opts ...Option) *Result {
	t.Helper()
	e, err := New(fs, strength, checker, optimizer.NewGreedy(), opts...)
	require.NoError(t, err)
	res, err := e.Run(context.Background())
	require.NoError(t, err)
	return res
}

func assertNoDontCare(t *testing.T, fs *factor.Factors, rows []*tuple.Tuple) {
	t.Helper()
	for _, row := range rows {
		assert.False(t, row.HasDontCare(), "row %s", row)
		assert.Equal(t, fs.Names(), row.Keys(), "row %s", row)
	}
}

func uncovered(fs *factor.Factors, strength int, rows []*tuple.Tuple) []*tuple.Tuple {
	all := coverage.All(fs, strength)
	for _, row := range rows {
		all.Cover(row)
	}
	return all.All()
}

func TestNew_Preconditions(t *testing.T) {
	g := optimizer.NewGreedy()
	tests := []struct {
		name     string
		fs       *factor.Factors
		strength int
		checker  constraint.Checker
		opt      optimizer.Optimizer
	}{
		{"nil factors", nil, 2, constraint.None, g},
		{"single factor", binary("A"), 2, constraint.None, g},
		{"strength too low", binary("A", "B"), 1, constraint.None, g},
		{"strength too high", binary("A", "B"), 3, constraint.None, g},
		{"nil checker", binary("A", "B"), 2, nil, g},
		{"nil optimizer", binary("A", "B"), 2, constraint.None, nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.fs, tc.strength, tc.checker, tc.opt)
			assert.ErrorIs(t, err, ErrPrecondition)
		})
	}
}

func TestRun_PairwiseBinary(t *testing.T) {
	fs := binary("A", "B", "C")
	res := run(t, fs, 2, constraint.None)

	assert.LessOrEqual(t, len(res.TestCases), 4)
	assert.Empty(t, res.Remainders)
	assertNoDontCare(t, fs, res.TestCases)
	assert.Empty(t, uncovered(fs, 2, res.TestCases))

	assert.Equal(t, "{A=0, B=0, C=0}", res.TestCases[0].String())
}

func TestRun_ImpliesConstraint(t *testing.T) {
	fs := binary("A", "B", "C")
	res := run(t, fs, 2, constraint.MustParseExpr("Implies(A == 1, B == 1)"))

	assert.Empty(t, res.Remainders)
	assertNoDontCare(t, fs, res.TestCases)
	for _, row := range res.TestCases {
		assert.False(t, row.Contains(tuple.Of("A", 1, "B", 0)), "row %s", row)
	}

	missing := uncovered(fs, 2, res.TestCases)
	require.Len(t, missing, 1)
	assert.True(t, missing[0].Equal(tuple.Of("A", 1, "B", 0)))
}

func TestRun_SingleLevelFactor(t *testing.T) {
	fs := factor.MustFactors(
		factor.MustNew("A", "only"),
		factor.MustNew("B", 0, 1),
		factor.MustNew("C", 0, 1, 2),
	)
	res := run(t, fs, 2, constraint.None)

	assert.Empty(t, res.Remainders)
	assertNoDontCare(t, fs, res.TestCases)
	assert.Empty(t, uncovered(fs, 2, res.TestCases))
	assert.Len(t, res.TestCases, 6)
}

func TestRun_StrengthEqualsFactorCount(t *testing.T) {
	fs := binary("A", "B", "C")
	res := run(t, fs, 3, constraint.Forbid(tuple.Of("A", 1, "C", 0)))

	assert.Len(t, res.TestCases, 6)
	assert.Empty(t, res.Remainders)
	want := 0
	for full := range fs.Cartesian() {
		if full.Contains(tuple.Of("A", 1, "C", 0)) {
			continue
		}
		assert.Equal(t, full.String(), res.TestCases[want].String())
		want++
	}
}

func TestRun_UncoverableCombinationBecomesRemainder(t *testing.T) {
	fs := binary("A", "B", "C")
	res := run(t, fs, 2, constraint.MustParseExpr("Implies(A == 1 && B == 1, C == 5)"))

	require.Len(t, res.Remainders, 1)
	assert.True(t, res.Remainders[0].Equal(tuple.Of("A", 1, "B", 1)))
	assertNoDontCare(t, fs, res.TestCases)

	missing := uncovered(fs, 2, res.TestCases)
	require.Len(t, missing, 1)
	assert.True(t, missing[0].Equal(tuple.Of("A", 1, "B", 1)))
}

func TestRun_ExplicitlyInfeasibleCombinationIsReported(t *testing.T) {
	fs := binary("A", "B", "C")
	res := run(t, fs, 2, constraint.Forbid(tuple.Of("B", 1, "C", 0)))

	require.Len(t, res.Remainders, 1)
	assert.True(t, res.Remainders[0].Equal(tuple.Of("B", 1, "C", 0)))
	for _, row := range res.TestCases {
		assert.False(t, row.Contains(tuple.Of("B", 1, "C", 0)), "row %s", row)
	}
}

func TestRun_ThreeWay(t *testing.T) {
	fs := binary("A", "B", "C", "D", "E")
	res := run(t, fs, 3, constraint.None)

	assertNoDontCare(t, fs, res.TestCases)
	assert.Empty(t, uncovered(fs, 3, res.TestCases))
	assert.Less(t, len(res.TestCases), 32)
}

func TestRun_Deduplicates(t *testing.T) {
	fs := binary("A", "B", "C", "D")
	res := run(t, fs, 2, constraint.None)
	assert.Equal(t, len(res.TestCases), len(tuple.Distinct(res.TestCases)))
}

func TestRun_SingleUse(t *testing.T) {
	e, err := New(binary("A", "B", "C"), 2, constraint.None, optimizer.NewGreedy())
	require.NoError(t, err)
	_, err = e.Run(context.Background())
	require.NoError(t, err)

	_, err = e.Run(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyRun)
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e, err := New(binary("A", "B", "C"), 2, constraint.None, optimizer.NewGreedy())
	require.NoError(t, err)
	_, err = e.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_ProgressAndLogging(t *testing.T) {
	var reports []Progress
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	run(t, binary("A", "B", "C", "D"), 2, constraint.None,
		WithProgress(func(p Progress) { reports = append(reports, p) }),
		WithLogger(logger))

	require.Len(t, reports, 3)
	assert.Equal(t, "B", reports[0].Factor)
	assert.Equal(t, 2, reports[0].Index)
	assert.Equal(t, "D", reports[2].Factor)
	assert.Equal(t, 4, reports[2].Total)
	assert.True(t, reports[2].Completed)
	assert.False(t, reports[1].Completed)
	assert.Equal(t, 8, reports[1].Targets)

	assert.Contains(t, buf.String(), "factor processed")
}

func TestRun_CheckerErrorIsFatal(t *testing.T) {
	boom := errors.New("boom")
	checker := constraint.CheckerFunc(func(tp *tuple.Tuple) (bool, error) {
		if tp.Has("C") {
			return false, boom
		}
		return true, nil
	})

	e, err := New(binary("A", "B", "C"), 2, checker, optimizer.NewGreedy())
	require.NoError(t, err)
	_, err = e.Run(context.Background())
	assert.ErrorIs(t, err, boom)
}

// rogue wraps Greedy and breaks one hook.
type rogue struct {
	*optimizer.Greedy
	value func() any
	tuple func([]*tuple.Tuple) *tuple.Tuple
	fill  func(*tuple.Tuple) optimizer.FillResult
}

func (r rogue) ChooseBestValue(name string, candidates []any, t *tuple.Tuple, v coverage.View) any {
	if r.value != nil {
		return r.value()
	}
	return r.Greedy.ChooseBestValue(name, candidates, t, v)
}

func (r rogue) ChooseBestTuple(candidates []*tuple.Tuple, v coverage.View, name string, level any) *tuple.Tuple {
	if r.tuple != nil {
		return r.tuple(candidates)
	}
	return r.Greedy.ChooseBestTuple(candidates, v, name, level)
}

func (r rogue) FillInMissingFactors(t *tuple.Tuple, v coverage.View, g *constraint.Guard, fs *factor.Factors) (optimizer.FillResult, error) {
	if r.fill != nil {
		return r.fill(t), nil
	}
	return r.Greedy.FillInMissingFactors(t, v, g, fs)
}

func TestRun_ContractViolations(t *testing.T) {
	// Three levels for C force vertical growth and gap filling.
	fs := factor.MustFactors(
		factor.MustNew("A", 0, 1),
		factor.MustNew("B", 0, 1),
		factor.MustNew("C", 0, 1, 2),
		factor.MustNew("D", 0, 1, 2),
	)

	tests := []struct {
		name string
		hook string
		opt  rogue
	}{
		{
			name: "value outside candidates",
			hook: "ChooseBestValue",
			opt:  rogue{value: func() any { return 42 }},
		},
		{
			name: "fill drops a key",
			hook: "FillInMissingFactors",
			opt: rogue{fill: func(t *tuple.Tuple) optimizer.FillResult {
				out := t.StripDontCare()
				return optimizer.FillResult{Tuple: out, Outcome: optimizer.Filled}
			}},
		},
		{
			name: "fill leaves don't-care",
			hook: "FillInMissingFactors",
			opt: rogue{fill: func(t *tuple.Tuple) optimizer.FillResult {
				return optimizer.FillResult{Tuple: t, Outcome: optimizer.Filled}
			}},
		},
		{
			name: "fill changes a concrete level",
			hook: "FillInMissingFactors",
			opt: rogue{fill: func(t *tuple.Tuple) optimizer.FillResult {
				out := t.Clone()
				for _, name := range out.Keys() {
					l, _ := out.Get(name)
					if !l.IsDontCare() && l.Get() == 0 {
						out.PutValue(name, 1)
						continue
					}
					out.PutValue(name, 0)
				}
				return optimizer.FillResult{Tuple: out, Outcome: optimizer.Filled}
			}},
		},
		{
			name: "tuple outside candidates",
			hook: "ChooseBestTuple",
			opt: rogue{tuple: func([]*tuple.Tuple) *tuple.Tuple {
				return tuple.Of("Z", 1)
			}},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.opt.Greedy = optimizer.NewGreedy()
			e, err := New(fs, 2, constraint.None, tc.opt)
			require.NoError(t, err)

			_, err = e.Run(context.Background())
			require.ErrorIs(t, err, ErrContractViolation)

			var cv *ContractViolationError
			require.ErrorAs(t, err, &cv)
			assert.Equal(t, tc.hook, cv.Hook)
		})
	}
}

func TestRun_OptimizerGiveUpRoutesToRemainders(t *testing.T) {
	fs := factor.MustFactors(
		factor.MustNew("A", 0, 1),
		factor.MustNew("B", 0, 1),
		factor.MustNew("C", 0, 1, 2),
	)
	opt := rogue{
		Greedy: optimizer.NewGreedy(),
		fill: func(t *tuple.Tuple) optimizer.FillResult {
			return optimizer.FillResult{Tuple: t, Outcome: optimizer.GaveUp}
		},
	}

	e, err := New(fs, 2, constraint.None, opt)
	require.NoError(t, err)
	res, err := e.Run(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, res.Remainders)
	assertNoDontCare(t, fs, res.TestCases)

	remainders := tuple.NewSet(res.Remainders...)
	for _, m := range uncovered(fs, 2, res.TestCases) {
		assert.True(t, remainders.Contains(m), "uncovered %s is not a remainder", m)
	}
}

func TestContractViolationError(t *testing.T) {
	err := violation("ChooseBestValue", "level %d", 3)
	assert.EqualError(t, err, "optimizer contract violated in ChooseBestValue: level 3")
	assert.ErrorIs(t, err, ErrContractViolation)
}
