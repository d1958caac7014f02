package optimizer

import (
	"sort"

	"github.com/nomagicln/ipogen/pkg/constraint"
	"github.com/nomagicln/ipogen/pkg/coverage"
	"github.com/nomagicln/ipogen/pkg/factor"
	"github.com/nomagicln/ipogen/pkg/tuple"
)

// DefaultSearchBudget is the number of complete assignments FillInMissingFactors
// examines before settling for the best one found.
const DefaultSearchBudget = 4096

// GreedyOption configures a Greedy optimizer.
type GreedyOption func(*Greedy)

// WithSearchBudget bounds the gap-fill search. Values below 1 are ignored.
func WithSearchBudget(n int) GreedyOption {
	return func(g *Greedy) {
		if n > 0 {
			g.budget = n
		}
	}
}

// Greedy maximises the number of targets covered at every decision and
// resolves ties by declaration order.
type Greedy struct {
	budget int
}

// NewGreedy creates the default optimizer.
func NewGreedy(opts ...GreedyOption) *Greedy {
	g := &Greedy{budget: DefaultSearchBudget}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// SearchBudget returns the configured budget.
func (g *Greedy) SearchBudget() int { return g.budget }

// ChooseBestValue picks the level that completes the most targets.
func (g *Greedy) ChooseBestValue(name string, candidates []any, t *tuple.Tuple, targets coverage.View) any {
	if len(candidates) == 0 {
		return nil
	}
	best, bestScore := candidates[0], -1
	probe := t.Clone()
	for _, c := range candidates {
		probe.PutValue(name, c)
		if score := targets.Count(probe); score > bestScore {
			best, bestScore = c, score
		}
	}
	return best
}

// ChooseBestTuple picks the candidate that completes the most targets once
// name is set to level.
func (g *Greedy) ChooseBestTuple(candidates []*tuple.Tuple, targets coverage.View, name string, level any) *tuple.Tuple {
	var best *tuple.Tuple
	bestScore := -1
	for _, c := range candidates {
		probe := c.Clone()
		probe.PutValue(name, level)
		if score := targets.Count(probe); score > bestScore {
			best, bestScore = c, score
		}
	}
	return best
}

// FillInMissingFactors runs a depth-first search over the don't-care factors
// in factor order. Levels are tried most-covering first, infeasible prefixes
// are pruned, and the best complete assignment within the budget wins.
func (g *Greedy) FillInMissingFactors(t *tuple.Tuple, targets coverage.View, guard *constraint.Guard, fs *factor.Factors) (FillResult, error) {
	var missing []factor.Factor
	for _, f := range fs.List() {
		if l, ok := t.Get(f.Name()); ok && l.IsDontCare() {
			missing = append(missing, f)
		}
	}
	for _, name := range t.Keys() {
		l, _ := t.Get(name)
		if _, known := fs.Get(name); l.IsDontCare() && !known {
			return FillResult{Tuple: t.Clone(), Outcome: GaveUp}, nil
		}
	}

	s := &search{
		guard:   guard,
		targets: targets,
		missing: missing,
		work:    t.Clone(),
		leaves:  g.budget,
		nodes:   g.budget * 64,
	}

	if len(missing) == 0 {
		ok, err := guard.Feasible(s.work)
		if err != nil {
			return FillResult{}, err
		}
		if !ok {
			return FillResult{Tuple: t.Clone(), Outcome: GaveUp}, nil
		}
		return FillResult{Tuple: s.work, Outcome: Filled}, nil
	}

	if err := s.run(0); err != nil {
		return FillResult{}, err
	}
	if s.best == nil {
		return FillResult{Tuple: t.Clone(), Outcome: GaveUp}, nil
	}
	return FillResult{Tuple: s.best, Outcome: Filled}, nil
}

type search struct {
	guard   *constraint.Guard
	targets coverage.View
	missing []factor.Factor
	work    *tuple.Tuple

	best      *tuple.Tuple
	bestScore int
	leaves    int
	nodes     int
}

func (s *search) exhausted() bool {
	if s.best != nil && s.targets.IsEmpty() {
		return true
	}
	return s.leaves <= 0 || s.nodes <= 0
}

func (s *search) run(depth int) error {
	if depth == len(s.missing) {
		s.leaves--
		if score := s.targets.Count(s.work); s.best == nil || score > s.bestScore {
			s.best, s.bestScore = s.work.Clone(), score
		}
		return nil
	}

	f := s.missing[depth]
	for _, v := range s.rank(f) {
		if s.exhausted() {
			break
		}
		s.nodes--
		s.work.PutValue(f.Name(), v)
		ok, err := s.guard.Feasible(s.work)
		if err != nil {
			return err
		}
		if ok {
			if err := s.run(depth + 1); err != nil {
				return err
			}
		}
	}
	s.work.Put(f.Name(), tuple.DontCare)
	return nil
}

// rank orders the levels of f by the targets they complete, stable on
// declaration order.
func (s *search) rank(f factor.Factor) []any {
	levels := f.Levels()
	if s.targets.IsEmpty() {
		return levels
	}
	scores := make([]int, len(levels))
	for i, v := range levels {
		s.work.PutValue(f.Name(), v)
		scores[i] = s.targets.Count(s.work)
	}
	s.work.Put(f.Name(), tuple.DontCare)

	idx := make([]int, len(levels))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return scores[idx[a]] > scores[idx[b]] })
	out := make([]any, len(levels))
	for i, j := range idx {
		out[i] = levels[j]
	}
	return out
}
