// Package coverage tracks the t-way combinations that still need a covering
// test case.
package coverage

import (
	"github.com/nomagicln/ipogen/pkg/factor"
	"github.com/nomagicln/ipogen/pkg/tuple"
)

// Tuples is a set of target sub-tuples, each assigning exactly strength
// factors. An entry is removed once a test case containing it is accepted.
type Tuples struct {
	strength int
	set      *tuple.Set
}

// New returns an empty target set for the given strength.
func New(strength int) *Tuples {
	return &Tuples{strength: strength, set: tuple.NewSet()}
}

// ForFactor returns every strength-way combination over window that assigns
// the named factor. These are the combinations introduced when that factor is
// added to the processed prefix.
func ForFactor(window *factor.Factors, name string, strength int) *Tuples {
	out := New(strength)
	fi := window.IndexOf(name)
	if fi < 0 {
		return out
	}
	for _, combo := range tuple.Combinations(window.Len(), strength) {
		if !containsIndex(combo, fi) {
			continue
		}
		out.addProduct(window, combo)
	}
	return out
}

// All returns every strength-way combination over fs.
func All(fs *factor.Factors, strength int) *Tuples {
	out := New(strength)
	for _, combo := range tuple.Combinations(fs.Len(), strength) {
		out.addProduct(fs, combo)
	}
	return out
}

func (ts *Tuples) addProduct(fs *factor.Factors, combo []int) {
	picked := make([]factor.Factor, len(combo))
	for i, idx := range combo {
		picked[i] = fs.At(idx)
	}
	sub := factor.MustFactors(picked...)
	for t := range sub.Cartesian() {
		ts.set.Add(t)
	}
}

func containsIndex(combo []int, i int) bool {
	for _, c := range combo {
		if c == i {
			return true
		}
	}
	return false
}

// Strength returns the size of every entry.
func (ts *Tuples) Strength() int { return ts.strength }

// Add inserts t and reports whether it was new.
func (ts *Tuples) Add(t *tuple.Tuple) bool { return ts.set.Add(t) }

// AddAll inserts every tuple.
func (ts *Tuples) AddAll(list []*tuple.Tuple) { ts.set.AddAll(list) }

// Merge inserts every entry of o.
func (ts *Tuples) Merge(o *Tuples) { ts.set.AddAll(o.set.All()) }

// Contains reports whether t is a target.
func (ts *Tuples) Contains(t *tuple.Tuple) bool { return ts.set.Contains(t) }

// Remove deletes t and reports whether it was present.
func (ts *Tuples) Remove(t *tuple.Tuple) bool { return ts.set.Remove(t) }

// RemoveAll deletes every tuple and returns how many were present.
func (ts *Tuples) RemoveAll(list []*tuple.Tuple) int { return ts.set.RemoveAll(list) }

// CoveredBy returns the targets contained in t. Don't-care entries of t
// never match.
func (ts *Tuples) CoveredBy(t *tuple.Tuple) []*tuple.Tuple {
	if ts.set.IsEmpty() {
		return nil
	}
	var out []*tuple.Tuple
	for _, sub := range t.StripDontCare().Subtuples(ts.strength) {
		if ts.set.Contains(sub) {
			out = append(out, sub)
		}
	}
	return out
}

// Count returns len(CoveredBy(t)) without allocating the result.
func (ts *Tuples) Count(t *tuple.Tuple) int {
	if ts.set.IsEmpty() {
		return 0
	}
	n := 0
	for _, sub := range t.StripDontCare().Subtuples(ts.strength) {
		if ts.set.Contains(sub) {
			n++
		}
	}
	return n
}

// Cover removes the targets contained in t and returns how many there were.
func (ts *Tuples) Cover(t *tuple.Tuple) int {
	return ts.set.RemoveAll(ts.CoveredBy(t))
}

// Len returns the number of targets.
func (ts *Tuples) Len() int { return ts.set.Len() }

// IsEmpty reports whether no targets remain.
func (ts *Tuples) IsEmpty() bool { return ts.set.IsEmpty() }

// All returns copies of the targets in insertion order.
func (ts *Tuples) All() []*tuple.Tuple { return ts.set.All() }

// View returns a read-only handle on ts.
func (ts *Tuples) View() View { return View{ts: ts} }

// View is a read-only handle on a Tuples value, handed to optimizers.
// The zero View behaves as an empty set.
type View struct {
	ts *Tuples
}

// Strength returns the size of every entry.
func (v View) Strength() int {
	if v.ts == nil {
		return 0
	}
	return v.ts.strength
}

// Contains reports whether t is a target.
func (v View) Contains(t *tuple.Tuple) bool {
	return v.ts != nil && v.ts.Contains(t)
}

// CoveredBy returns the targets contained in t.
func (v View) CoveredBy(t *tuple.Tuple) []*tuple.Tuple {
	if v.ts == nil {
		return nil
	}
	return v.ts.CoveredBy(t)
}

// Count returns the number of targets contained in t.
func (v View) Count(t *tuple.Tuple) int {
	if v.ts == nil {
		return 0
	}
	return v.ts.Count(t)
}

// Len returns the number of targets.
func (v View) Len() int {
	if v.ts == nil {
		return 0
	}
	return v.ts.Len()
}

// IsEmpty reports whether no targets remain.
func (v View) IsEmpty() bool { return v.Len() == 0 }

// All returns copies of the targets.
func (v View) All() []*tuple.Tuple {
	if v.ts == nil {
		return nil
	}
	return v.ts.All()
}
