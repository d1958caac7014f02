package simple

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nomagicln/ipogen/pkg/constraint"
	"github.com/nomagicln/ipogen/pkg/factor"
	"github.com/nomagicln/ipogen/pkg/tuple"
)

func space() *factor.Factors {
	return factor.MustFactors(
		factor.MustNew("A", "a0", "a1", "a2"),
		factor.MustNew("B", "b0"),
		factor.MustNew("C", "c0", "c1"),
	)
}

func TestNewRequiresFactors(t *testing.T) {
	_, err := New(nil, nil)
	assert.Error(t, err)

	_, err = New(factor.MustFactors(), nil)
	assert.Error(t, err)
}

func TestSize(t *testing.T) {
	g, err := New(space(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1+2+0+1, g.Size())
}

func TestRows(t *testing.T) {
	g, err := New(space(), nil)
	require.NoError(t, err)

	rows, err := g.Generate(context.Background())
	require.NoError(t, err)

	expected := []*tuple.Tuple{
		tuple.Of("A", "a0", "B", "b0", "C", "c0"),
		tuple.Of("A", "a1", "B", "b0", "C", "c0"),
		tuple.Of("A", "a2", "B", "b0", "C", "c0"),
		tuple.Of("A", "a0", "B", "b0", "C", "c1"),
	}
	require.Len(t, rows, len(expected))
	for i := range expected {
		assert.True(t, expected[i].Equal(rows[i]), "row %d: want %s, got %s", i, expected[i], rows[i])
		assert.Equal(t, []string{"A", "B", "C"}, rows[i].Keys())
	}
}

func TestConstraintsDropRows(t *testing.T) {
	checker := constraint.Forbid(tuple.Of("A", "a2"))
	g, err := New(space(), checker)
	require.NoError(t, err)

	rows, err := g.Generate(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 3)
	for _, row := range rows {
		l, _ := row.Get("A")
		assert.NotEqual(t, "a2", l.Get())
	}
}

func TestCheckerErrorIsReturned(t *testing.T) {
	boom := errors.New("boom")
	checker := constraint.CheckerFunc(func(*tuple.Tuple) (bool, error) { return false, boom })
	g, err := New(space(), checker)
	require.NoError(t, err)

	_, err = g.Generate(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestGenerateCancelled(t *testing.T) {
	g, err := New(space(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = g.Generate(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
