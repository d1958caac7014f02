package generator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nomagicln/ipogen/pkg/tuple"
)

// Stats summarises a generation.
type Stats struct {
	Engine     string        `json:"engine" yaml:"engine"`
	Factors    int           `json:"factors" yaml:"factors"`
	Strength   int           `json:"strength" yaml:"strength"`
	TestCases  int           `json:"test_cases" yaml:"test_cases"`
	Remainders int           `json:"remainders" yaml:"remainders"`
	Duration   time.Duration `json:"duration" yaml:"duration"`
}

// CoveringArray is the canonical output of a generation: rows are distinct
// and every tuple follows factor order.
type CoveringArray struct {
	ID         string
	Factors    []string
	TestCases  []*tuple.Tuple
	Remainders []*tuple.Tuple
	Stats      Stats
}

// Generate runs engine over req and canonicalises the result.
func Generate(ctx context.Context, engine Engine, req Request) (*CoveringArray, error) {
	if engine == nil {
		return nil, fmt.Errorf("engine is required")
	}
	if req.Factors == nil {
		return nil, fmt.Errorf("factors are required")
	}

	start := time.Now()
	rows, remainders, err := engine.Generate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%s engine: %w", engine.Name(), err)
	}

	order := req.Factors.Names()
	ca := &CoveringArray{
		ID:         uuid.NewString(),
		Factors:    order,
		TestCases:  Canonicalize(rows, order),
		Remainders: Canonicalize(remainders, order),
	}
	ca.Stats = Stats{
		Engine:     engine.Name(),
		Factors:    len(order),
		Strength:   req.Strength,
		TestCases:  len(ca.TestCases),
		Remainders: len(ca.Remainders),
		Duration:   time.Since(start),
	}
	return ca, nil
}

// Canonicalize reorders every tuple's keys to order and drops duplicates,
// keeping the first occurrence.
func Canonicalize(ts []*tuple.Tuple, order []string) []*tuple.Tuple {
	out := make([]*tuple.Tuple, 0, len(ts))
	for _, t := range tuple.Distinct(ts) {
		out = append(out, t.Reorder(order))
	}
	return out
}
