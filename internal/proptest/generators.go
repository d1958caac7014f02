package proptest

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"

	"github.com/nomagicln/ipogen/pkg/factor"
	"github.com/nomagicln/ipogen/pkg/tuple"
)

// Space is a generated factor space with a strength and an optional list of
// forbidden value pairs.
type Space struct {
	Factors   *factor.Factors
	Strength  int
	Forbidden []*tuple.Tuple
}

func (s Space) String() string {
	var sb strings.Builder
	for i, f := range s.Factors.List() {
		if i > 0 {
			sb.WriteString(" ")
		}
		fmt.Fprintf(&sb, "%s%v", f.Name(), f.Levels())
	}
	fmt.Fprintf(&sb, " t=%d", s.Strength)
	for _, t := range s.Forbidden {
		fmt.Fprintf(&sb, " !%s", t)
	}
	return sb.String()
}

// FactorSpace generates unconstrained spaces of 2..maxFactors factors, each
// with 1..maxLevels integer levels, and a strength of 2 or 3.
func FactorSpace(maxFactors, maxLevels int) gopter.Gen {
	return ConstrainedSpace(maxFactors, maxLevels, 0)
}

// ConstrainedSpace is like FactorSpace but also forbids up to maxForbidden
// random value pairs.
func ConstrainedSpace(maxFactors, maxLevels, maxForbidden int) gopter.Gen {
	return gopter.CombineGens(
		gen.IntRange(2, maxFactors),
		gen.UInt64(),
	).Map(func(vs []any) Space {
		return buildSpace(vs[0].(int), maxLevels, maxForbidden, vs[1].(uint64))
	})
}

func buildSpace(n, maxLevels, maxForbidden int, seed uint64) Space {
	r := rand.New(rand.NewPCG(seed, uint64(n)))

	fs := make([]factor.Factor, n)
	for i := range fs {
		levels := make([]any, 1+r.IntN(maxLevels))
		for j := range levels {
			levels[j] = j
		}
		fs[i] = factor.MustNew(fmt.Sprintf("F%d", i), levels...)
	}
	space := Space{Factors: factor.MustFactors(fs...), Strength: 2}
	if n >= 3 && r.IntN(3) == 0 {
		space.Strength = 3
	}

	if maxForbidden > 0 {
		for k := r.IntN(maxForbidden + 1); k > 0; k-- {
			i := r.IntN(n)
			j := r.IntN(n - 1)
			if j >= i {
				j++
			}
			fi, fj := fs[i], fs[j]
			space.Forbidden = append(space.Forbidden, tuple.Of(
				fi.Name(), fi.Level(r.IntN(fi.Len())),
				fj.Name(), fj.Level(r.IntN(fj.Len())),
			))
		}
	}
	return space
}
