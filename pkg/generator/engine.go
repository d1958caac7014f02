// Package generator puts the covering-array engines behind one interface and
// turns their raw output into a canonical CoveringArray.
package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/nomagicln/ipogen/pkg/constraint"
	"github.com/nomagicln/ipogen/pkg/factor"
	"github.com/nomagicln/ipogen/pkg/ipo2"
	"github.com/nomagicln/ipogen/pkg/optimizer"
	"github.com/nomagicln/ipogen/pkg/simple"
	"github.com/nomagicln/ipogen/pkg/tuple"
)

// Engine names.
const (
	EngineIPO2   = "ipo2"
	EngineSimple = "simple"
)

// ErrUnknownEngine is returned by NewEngine for names it does not know.
var ErrUnknownEngine = errors.New("unknown engine")

// Request describes a factor space to cover.
type Request struct {
	Factors  *factor.Factors
	Strength int
	// Checker may be nil, meaning unconstrained.
	Checker constraint.Checker
}

// Engine produces raw test cases and remainders for a request.
type Engine interface {
	// Name returns the engine name used in models and on the command line.
	Name() string
	// Generate runs the engine. Implementations may return rows in any key
	// order and with duplicates.
	Generate(ctx context.Context, req Request) (testCases, remainders []*tuple.Tuple, err error)
}

// Options configures the engines created by NewEngine.
type Options struct {
	Logger       *slog.Logger
	Progress     func(ipo2.Progress)
	SearchBudget int
}

// NewEngine returns the engine registered under name.
func NewEngine(name string, opts Options) (Engine, error) {
	switch name {
	case EngineIPO2, "":
		return &IPO2{opts: opts}, nil
	case EngineSimple:
		return &Simple{logger: opts.Logger}, nil
	default:
		return nil, fmt.Errorf("%w: '%s' (available: %v)", ErrUnknownEngine, name, EngineNames())
	}
}

// EngineNames lists the known engine names.
func EngineNames() []string {
	names := []string{EngineIPO2, EngineSimple}
	sort.Strings(names)
	return names
}

// IPO2 adapts ipo2.Engine with the greedy optimizer.
type IPO2 struct {
	opts Options
}

// Name implements Engine.
func (e *IPO2) Name() string { return EngineIPO2 }

// Generate implements Engine.
func (e *IPO2) Generate(ctx context.Context, req Request) ([]*tuple.Tuple, []*tuple.Tuple, error) {
	checker := req.Checker
	if checker == nil {
		checker = constraint.None
	}

	var greedyOpts []optimizer.GreedyOption
	if e.opts.SearchBudget > 0 {
		greedyOpts = append(greedyOpts, optimizer.WithSearchBudget(e.opts.SearchBudget))
	}

	var engineOpts []ipo2.Option
	if e.opts.Logger != nil {
		engineOpts = append(engineOpts, ipo2.WithLogger(e.opts.Logger))
	}
	if e.opts.Progress != nil {
		engineOpts = append(engineOpts, ipo2.WithProgress(e.opts.Progress))
	}

	engine, err := ipo2.New(req.Factors, req.Strength, checker, optimizer.NewGreedy(greedyOpts...), engineOpts...)
	if err != nil {
		return nil, nil, err
	}
	res, err := engine.Run(ctx)
	if err != nil {
		return nil, nil, err
	}
	return res.TestCases, res.Remainders, nil
}

// Simple adapts simple.Generator. It ignores the strength and reports no
// remainders.
type Simple struct {
	logger *slog.Logger
}

// Name implements Engine.
func (e *Simple) Name() string { return EngineSimple }

// Generate implements Engine.
func (e *Simple) Generate(ctx context.Context, req Request) ([]*tuple.Tuple, []*tuple.Tuple, error) {
	g, err := simple.New(req.Factors, req.Checker, simple.WithLogger(e.logger))
	if err != nil {
		return nil, nil, err
	}
	rows, err := g.Generate(ctx)
	if err != nil {
		return nil, nil, err
	}
	return rows, nil, nil
}
