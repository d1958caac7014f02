package constraint

import (
	"errors"
	"testing"

	"github.com/nomagicln/ipogen/pkg/tuple"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUndefinedSymbolError(t *testing.T) {
	var err error = &UndefinedSymbolError{Name: "A"}
	assert.ErrorIs(t, err, ErrUndefinedSymbol)
	assert.Equal(t, "undefined symbol 'A'", err.Error())

	var target *UndefinedSymbolError
	require.True(t, errors.As(err, &target))
	assert.Equal(t, "A", target.Name)
}

func TestGuard_StripsDontCare(t *testing.T) {
	var seen *tuple.Tuple
	g := NewGuard(CheckerFunc(func(tp *tuple.Tuple) (bool, error) {
		seen = tp
		return true, nil
	}))

	ok, err := g.Feasible(tuple.Of("A", 0, "B", tuple.DontCare))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"A"}, seen.Keys())
}

func TestGuard_UndefinedIsFeasible(t *testing.T) {
	g := NewGuard(MustParseExpr("A == 1 && B == 0"))

	ok, err := g.Feasible(tuple.Of("B", 0, "A", tuple.DontCare))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = g.Feasible(tuple.Of("A", 0, "B", tuple.DontCare))
	require.NoError(t, err)
	assert.False(t, ok, "a false conjunct decides regardless of the missing one")
}

func TestGuard_PropagatesOtherErrors(t *testing.T) {
	boom := errors.New("boom")
	g := NewGuard(CheckerFunc(func(*tuple.Tuple) (bool, error) { return false, boom }))

	_, err := g.Feasible(tuple.Of("A", 0))
	assert.ErrorIs(t, err, boom)
}

func TestGuard_NilChecker(t *testing.T) {
	ok, err := NewGuard(nil).Feasible(tuple.Of("A", 0))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAll(t *testing.T) {
	c := All(MustParseExpr("A == 0"), MustParseExpr("B == 1"))

	ok, err := c.Check(tuple.Of("A", 0, "B", 1))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.Check(tuple.Of("B", 0))
	require.NoError(t, err)
	assert.False(t, ok, "explicit rejection wins over an undefined symbol")

	_, err = c.Check(tuple.Of("B", 1))
	assert.ErrorIs(t, err, ErrUndefinedSymbol)
}

func TestForbid(t *testing.T) {
	c := Forbid(tuple.Of("A", 1, "B", 0))

	ok, _ := c.Check(tuple.Of("A", 1, "B", 0, "C", 1))
	assert.False(t, ok)
	ok, _ = c.Check(tuple.Of("A", 1))
	assert.True(t, ok)
}

func TestParseExpr_Evaluation(t *testing.T) {
	row := tuple.Of("os", "linux", "cpu", 4, "debug", true, "browser-name", "firefox", "ratio", 0.5)

	tests := []struct {
		expr string
		want bool
	}{
		{`os == "linux"`, true},
		{`os != "linux"`, false},
		{`cpu > 2 && cpu <= 4`, true},
		{`cpu < 4`, false},
		{`cpu >= 5 || os == "linux"`, true},
		{`!(os == "linux")`, false},
		{`debug`, true},
		{`!debug`, false},
		{`debug == true`, true},
		{`Factor("browser-name") == "firefox"`, true},
		{`Implies(os == "windows", cpu == 1)`, true},
		{`Implies(os == "linux", cpu == 1)`, false},
		{`Iff(os == "linux", debug)`, true},
		{`Iff(os == "windows", !debug)`, true},
		{`Implies(os == "linux" && cpu > 2, debug)`, true},
		{`Implies(os == "linux" || cpu > 8, !debug)`, false},
		{`os == "linux" && Implies(cpu == 4, Factor("browser-name") != "edge")`, true},
		{`Implies(Implies(debug, cpu == 4), ratio < 1.0)`, true},
		{`ratio < 1.0`, true},
		{`cpu == 4.0`, true},
	}
	for _, tc := range tests {
		t.Run(tc.expr, func(t *testing.T) {
			e, err := ParseExpr(tc.expr)
			require.NoError(t, err)
			got, err := e.Check(row)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseExpr_ThreeValuedLogic(t *testing.T) {
	partial := tuple.Of("A", 1)

	tests := []struct {
		expr      string
		want      bool
		undefined bool
	}{
		{`A == 1 && B == 0`, false, true},
		{`A == 0 && B == 0`, false, false},
		{`A == 1 || B == 0`, true, false},
		{`A == 0 || B == 0`, false, true},
		{`Implies(A == 1, B == 1)`, false, true},
		{`Implies(A == 0, B == 1)`, true, false},
		{`Iff(A == 1, B == 1)`, false, true},
		{`Implies(A == 1 && B == 0, C == 1)`, false, true},
		{`!(B == 1)`, false, true},
	}
	for _, tc := range tests {
		t.Run(tc.expr, func(t *testing.T) {
			got, err := MustParseExpr(tc.expr).Check(partial)
			if tc.undefined {
				assert.ErrorIs(t, err, ErrUndefinedSymbol)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseExpr_Symbols(t *testing.T) {
	e := MustParseExpr(`Implies(os == "linux", Factor("browser-name") != "edge") && cpu > 1`)
	assert.Equal(t, []string{"browser-name", "cpu", "os"}, e.Symbols())
	assert.Contains(t, e.String(), "Implies")
}

func TestParseExpr_Errors(t *testing.T) {
	for _, src := range []string{"", "   ", "A ==", `"just a string"`, "Unknown(1)", "Implies(A == 1)", "-A == 1", "A == <-B"} {
		t.Run(src, func(t *testing.T) {
			_, err := ParseExpr(src)
			assert.Error(t, err)
		})
	}
}

func TestParseExpr_NonBooleanFactor(t *testing.T) {
	_, err := MustParseExpr("cpu").Check(tuple.Of("cpu", 4))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUndefinedSymbol)
}

func TestParseExpr_ImpliesScenario(t *testing.T) {
	g := NewGuard(MustParseExpr("Implies(A == 1, B == 1)"))

	ok, err := g.Feasible(tuple.Of("A", 1, "B", 0, "C", tuple.DontCare))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = g.Feasible(tuple.Of("A", 1, "C", 0))
	require.NoError(t, err)
	assert.True(t, ok, "B is unknown so the decision is deferred")
}

func TestParseExpr_NegativeNumbers(t *testing.T) {
	row := tuple.Of("A", -1, "B", 2.5)

	for _, src := range []string{
		`A == -1`,
		`A > -2`,
		`B > -0.5`,
		`Implies(A == -1, B == 2.5)`,
		`-1 == A`,
	} {
		t.Run(src, func(t *testing.T) {
			got, err := MustParseExpr(src).Check(row)
			require.NoError(t, err)
			assert.True(t, got)
		})
	}
}

func TestParseExpr_StringsNeverEqualOtherKinds(t *testing.T) {
	row := tuple.Of("flag", "true", "count", "1", "n", 1)

	tests := []struct {
		expr string
		want bool
	}{
		{`flag == true`, false},
		{`flag == "true"`, true},
		{`count == 1`, false},
		{`count == "1"`, true},
		{`n == 1.0`, true},
		{`n != "1"`, true},
	}
	for _, tc := range tests {
		t.Run(tc.expr, func(t *testing.T) {
			got, err := MustParseExpr(tc.expr).Check(row)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDesugar(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{`Implies(A == 1, B == 1)`, `(!(A == 1) || (B == 1))`},
		{`Iff(A, !B)`, `((A) && (!B) || !(A) && !(!B))`},
		{`A == -1.5`, `A == Neg(1.5)`},
		{`Factor("x-y") != "z"`, `Factor("x-y") != "z"`},
	}
	for _, tc := range tests {
		t.Run(tc.src, func(t *testing.T) {
			got, err := desugar(tc.src)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}
