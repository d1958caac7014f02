// Package factor models the parameters of a test design: named factors with
// ordered level domains, kept in an ordered sequence that drives generation.
package factor

import (
	"errors"
	"fmt"
	"iter"

	"github.com/nomagicln/ipogen/pkg/tuple"
)

var (
	// ErrInvalidFactor is returned when a factor definition is unusable.
	ErrInvalidFactor = errors.New("invalid factor")

	// ErrDuplicateFactor is returned when two factors share a name.
	ErrDuplicateFactor = errors.New("duplicate factor")
)

// Factor is a named test parameter with a non-empty, ordered list of levels.
// Levels are opaque values compared by equality.
type Factor struct {
	name   string
	levels []any
}

// New creates a factor. Levels must be comparable and there must be at least one.
func New(name string, levels ...any) (Factor, error) {
	if name == "" {
		return Factor{}, fmt.Errorf("%w: name cannot be empty", ErrInvalidFactor)
	}
	if len(levels) == 0 {
		return Factor{}, fmt.Errorf("%w: factor '%s' has no levels", ErrInvalidFactor, name)
	}
	for i, l := range levels {
		if !tuple.Comparable(l) {
			return Factor{}, fmt.Errorf("%w: level %d of factor '%s' is not comparable (%T)",
				ErrInvalidFactor, i, name, l)
		}
	}
	copied := make([]any, len(levels))
	copy(copied, levels)
	return Factor{name: name, levels: copied}, nil
}

// MustNew is like New but panics on error. Intended for tests and literals.
func MustNew(name string, levels ...any) Factor {
	f, err := New(name, levels...)
	if err != nil {
		panic(err)
	}
	return f
}

// Name returns the factor name.
func (f Factor) Name() string { return f.name }

// Levels returns a copy of the levels in declaration order.
func (f Factor) Levels() []any {
	out := make([]any, len(f.levels))
	copy(out, f.levels)
	return out
}

// Len returns the number of levels.
func (f Factor) Len() int { return len(f.levels) }

// Level returns the i-th level.
func (f Factor) Level(i int) any { return f.levels[i] }

// IndexOf returns the position of v among the levels, or -1.
func (f Factor) IndexOf(v any) int {
	for i, l := range f.levels {
		if tuple.Value(l).Equal(tuple.Value(v)) {
			return i
		}
	}
	return -1
}

// Factors is an ordered sequence of uniquely named factors.
// The order decides the processing sequence of IPO2 and the column order of
// generated test cases.
type Factors struct {
	list  []Factor
	index map[string]int
}

// NewFactors builds an ordered factor sequence.
func NewFactors(fs ...Factor) (*Factors, error) {
	out := &Factors{index: make(map[string]int, len(fs))}
	for _, f := range fs {
		if f.name == "" || len(f.levels) == 0 {
			return nil, fmt.Errorf("%w: zero-value factor at position %d", ErrInvalidFactor, len(out.list))
		}
		if _, ok := out.index[f.name]; ok {
			return nil, fmt.Errorf("%w: '%s'", ErrDuplicateFactor, f.name)
		}
		out.index[f.name] = len(out.list)
		out.list = append(out.list, f)
	}
	return out, nil
}

// MustFactors is like NewFactors but panics on error.
func MustFactors(fs ...Factor) *Factors {
	out, err := NewFactors(fs...)
	if err != nil {
		panic(err)
	}
	return out
}

// Len returns the number of factors.
func (fs *Factors) Len() int { return len(fs.list) }

// At returns the i-th factor.
func (fs *Factors) At(i int) Factor { return fs.list[i] }

// Get looks a factor up by name.
func (fs *Factors) Get(name string) (Factor, bool) {
	i, ok := fs.index[name]
	if !ok {
		return Factor{}, false
	}
	return fs.list[i], true
}

// IndexOf returns the position of the named factor, or -1.
func (fs *Factors) IndexOf(name string) int {
	i, ok := fs.index[name]
	if !ok {
		return -1
	}
	return i
}

// List returns a copy of the factors in order.
func (fs *Factors) List() []Factor {
	out := make([]Factor, len(fs.list))
	copy(out, fs.list)
	return out
}

// Names returns the factor names in order.
func (fs *Factors) Names() []string {
	out := make([]string, len(fs.list))
	for i, f := range fs.list {
		out[i] = f.name
	}
	return out
}

// IsLast reports whether name is the final factor.
func (fs *Factors) IsLast(name string) bool {
	return len(fs.list) > 0 && fs.list[len(fs.list)-1].name == name
}

// Head returns the factors strictly before name. An unknown name yields an
// empty sequence.
func (fs *Factors) Head(name string) *Factors {
	i, ok := fs.index[name]
	if !ok {
		return fs.slice(0, 0)
	}
	return fs.slice(0, i)
}

// Through returns the factors up to and including name.
func (fs *Factors) Through(name string) *Factors {
	i, ok := fs.index[name]
	if !ok {
		return fs.slice(0, 0)
	}
	return fs.slice(0, i+1)
}

// Tail returns name and every factor after it.
func (fs *Factors) Tail(name string) *Factors {
	i, ok := fs.index[name]
	if !ok {
		return fs.slice(0, 0)
	}
	return fs.slice(i, len(fs.list))
}

// First returns the first n factors.
func (fs *Factors) First(n int) *Factors {
	if n > len(fs.list) {
		n = len(fs.list)
	}
	return fs.slice(0, n)
}

func (fs *Factors) slice(from, to int) *Factors {
	out, _ := NewFactors(fs.list[from:to]...)
	return out
}

// Size returns the number of tuples in the cartesian product of all levels.
func (fs *Factors) Size() int {
	if len(fs.list) == 0 {
		return 0
	}
	n := 1
	for _, f := range fs.list {
		n *= len(f.levels)
	}
	return n
}

// Cartesian yields every full assignment of the factors in odometer order,
// the last factor varying fastest. Each yielded tuple is a fresh value.
func (fs *Factors) Cartesian() iter.Seq[*tuple.Tuple] {
	return func(yield func(*tuple.Tuple) bool) {
		if len(fs.list) == 0 {
			return
		}
		pos := make([]int, len(fs.list))
		for {
			t := tuple.New()
			for i, f := range fs.list {
				t.PutValue(f.name, f.levels[pos[i]])
			}
			if !yield(t) {
				return
			}
			i := len(pos) - 1
			for i >= 0 {
				pos[i]++
				if pos[i] < len(fs.list[i].levels) {
					break
				}
				pos[i] = 0
				i--
			}
			if i < 0 {
				return
			}
		}
	}
}

// Product collects Cartesian into a slice.
func (fs *Factors) Product() []*tuple.Tuple {
	out := make([]*tuple.Tuple, 0, fs.Size())
	for t := range fs.Cartesian() {
		out = append(out, t)
	}
	return out
}

// CreateTupleFrom returns a tuple over every factor, in factor order, taking
// levels from src where present and fill otherwise.
func (fs *Factors) CreateTupleFrom(src *tuple.Tuple, fill tuple.Level) *tuple.Tuple {
	out := tuple.New()
	for _, f := range fs.list {
		if l, ok := src.Get(f.name); ok {
			out.Put(f.name, l)
			continue
		}
		out.Put(f.name, fill)
	}
	return out
}
