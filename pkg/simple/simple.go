// Package simple generates one-factor-at-a-time test suites: a base row made
// of every factor's first level, then one row per alternative level in which
// only that factor differs from the base.
package simple

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/nomagicln/ipogen/pkg/constraint"
	"github.com/nomagicln/ipogen/pkg/factor"
	"github.com/nomagicln/ipogen/pkg/tuple"
)

// Generator enumerates the one-factor-at-a-time rows of a factor space.
type Generator struct {
	factors *factor.Factors
	guard   *constraint.Guard
	logger  *slog.Logger
}

// Option configures a Generator.
type Option func(*Generator)

// WithLogger sets the logger used to report dropped rows.
func WithLogger(l *slog.Logger) Option {
	return func(g *Generator) {
		if l != nil {
			g.logger = l
		}
	}
}

// New returns a generator. A nil checker accepts every row.
func New(fs *factor.Factors, checker constraint.Checker, opts ...Option) (*Generator, error) {
	if fs == nil || fs.Len() == 0 {
		return nil, fmt.Errorf("at least one factor is required")
	}
	g := &Generator{
		factors: fs,
		guard:   constraint.NewGuard(checker),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, o := range opts {
		o(g)
	}
	return g, nil
}

// Size returns the number of rows before constraint filtering.
func (g *Generator) Size() int {
	size := 1
	for _, f := range g.factors.List() {
		size += f.Len() - 1
	}
	return size
}

// Row returns row i, 0 <= i < Size().
func (g *Generator) Row(i int) *tuple.Tuple {
	row := tuple.New()
	changed, level := g.locate(i)
	for _, f := range g.factors.List() {
		if f.Name() == changed {
			row.PutValue(f.Name(), f.Level(level))
			continue
		}
		row.PutValue(f.Name(), f.Level(0))
	}
	return row
}

// locate maps a row index to the factor it varies and that factor's level.
func (g *Generator) locate(i int) (string, int) {
	if i <= 0 {
		return "", 0
	}
	i--
	for _, f := range g.factors.List() {
		if i < f.Len()-1 {
			return f.Name(), i + 1
		}
		i -= f.Len() - 1
	}
	return "", 0
}

// Generate returns every feasible row in index order.
func (g *Generator) Generate(ctx context.Context) ([]*tuple.Tuple, error) {
	size := g.Size()
	rows := make([]*tuple.Tuple, 0, size)
	for i := 0; i < size; i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("generation cancelled at row %d: %w", i, err)
		}
		row := g.Row(i)
		ok, err := g.guard.Feasible(row)
		if err != nil {
			return nil, fmt.Errorf("checking row %s: %w", row, err)
		}
		if !ok {
			g.logger.Debug("row violates constraints", "row", row.String())
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}
