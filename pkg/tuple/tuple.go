package tuple

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Tuple is an ordered, partial mapping from factor name to Level.
// Key order only affects String and iteration; equality ignores it.
type Tuple struct {
	keys   []string
	levels map[string]Level
}

// New creates an empty tuple.
func New() *Tuple {
	return &Tuple{levels: make(map[string]Level)}
}

// Of builds a tuple of concrete levels from alternating name/value pairs.
// It panics on an odd number of arguments or a non-string name.
func Of(pairs ...any) *Tuple {
	if len(pairs)%2 != 0 {
		panic("tuple.Of requires name/value pairs")
	}
	t := New()
	for i := 0; i < len(pairs); i += 2 {
		name, ok := pairs[i].(string)
		if !ok {
			panic(fmt.Sprintf("tuple.Of: name at position %d is %T, not string", i, pairs[i]))
		}
		if l, isLevel := pairs[i+1].(Level); isLevel {
			t.Put(name, l)
			continue
		}
		t.Put(name, Value(pairs[i+1]))
	}
	return t
}

// FromMap builds a tuple from a map, ordering keys alphabetically.
func FromMap(m map[string]any) *Tuple {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	t := New()
	for _, name := range names {
		t.Put(name, Value(m[name]))
	}
	return t
}

// Put assigns a level to name, keeping the original position of existing keys.
func (t *Tuple) Put(name string, l Level) {
	if _, ok := t.levels[name]; !ok {
		t.keys = append(t.keys, name)
	}
	t.levels[name] = l
}

// PutValue assigns a concrete value to name.
func (t *Tuple) PutValue(name string, v any) {
	t.Put(name, Value(v))
}

// PutAll copies every entry of o into t.
func (t *Tuple) PutAll(o *Tuple) {
	for _, name := range o.keys {
		t.Put(name, o.levels[name])
	}
}

// Get returns the level assigned to name.
func (t *Tuple) Get(name string) (Level, bool) {
	l, ok := t.levels[name]
	return l, ok
}

// Has reports whether name is assigned (including to DontCare).
func (t *Tuple) Has(name string) bool {
	_, ok := t.levels[name]
	return ok
}

// Remove deletes name from the tuple.
func (t *Tuple) Remove(name string) {
	if _, ok := t.levels[name]; !ok {
		return
	}
	delete(t.levels, name)
	for i, k := range t.keys {
		if k == name {
			t.keys = append(t.keys[:i], t.keys[i+1:]...)
			break
		}
	}
}

// Clear removes every entry.
func (t *Tuple) Clear() {
	t.keys = nil
	t.levels = make(map[string]Level)
}

// Len returns the number of assigned names.
func (t *Tuple) Len() int {
	return len(t.keys)
}

// Keys returns the names in insertion order.
func (t *Tuple) Keys() []string {
	out := make([]string, len(t.keys))
	copy(out, t.keys)
	return out
}

// Clone returns an independent deep copy.
func (t *Tuple) Clone() *Tuple {
	c := &Tuple{
		keys:   make([]string, len(t.keys)),
		levels: make(map[string]Level, len(t.levels)),
	}
	copy(c.keys, t.keys)
	for k, v := range t.levels {
		c.levels[k] = v
	}
	return c
}

// Contains reports whether every entry of sub is present in t with an equal level.
func (t *Tuple) Contains(sub *Tuple) bool {
	for _, name := range sub.keys {
		l, ok := t.levels[name]
		if !ok || !l.Equal(sub.levels[name]) {
			return false
		}
	}
	return true
}

// Equal reports whether t and o hold the same names and levels.
func (t *Tuple) Equal(o *Tuple) bool {
	return t.Len() == o.Len() && t.Contains(o)
}

// HasDontCare reports whether any entry is DontCare.
func (t *Tuple) HasDontCare() bool {
	for _, l := range t.levels {
		if l.IsDontCare() {
			return true
		}
	}
	return false
}

// StripDontCare returns a copy of t without its DontCare entries.
func (t *Tuple) StripDontCare() *Tuple {
	out := New()
	for _, name := range t.keys {
		if l := t.levels[name]; !l.IsDontCare() {
			out.Put(name, l)
		}
	}
	return out
}

// Reorder returns a copy of t whose keys follow order. Names of t missing from
// order are appended afterwards in their original order.
func (t *Tuple) Reorder(order []string) *Tuple {
	out := New()
	for _, name := range order {
		if l, ok := t.levels[name]; ok {
			out.Put(name, l)
		}
	}
	for _, name := range t.keys {
		if !out.Has(name) {
			out.Put(name, t.levels[name])
		}
	}
	return out
}

// Values returns the concrete entries as a plain map.
func (t *Tuple) Values() map[string]any {
	out := make(map[string]any, len(t.levels))
	for name, l := range t.levels {
		if !l.IsDontCare() {
			out[name] = l.Get()
		}
	}
	return out
}

// Subtuples returns every projection of t onto k of its names. Projections
// follow the key order of t.
func (t *Tuple) Subtuples(k int) []*Tuple {
	if k <= 0 || k > len(t.keys) {
		return nil
	}
	var out []*Tuple
	for _, idx := range Combinations(len(t.keys), k) {
		sub := New()
		for _, i := range idx {
			name := t.keys[i]
			sub.Put(name, t.levels[name])
		}
		out = append(out, sub)
	}
	return out
}

// Key returns a canonical identity for t that is independent of key order.
func (t *Tuple) Key() string {
	names := t.Keys()
	sort.Strings(names)
	var sb strings.Builder
	for i, name := range names {
		if i > 0 {
			sb.WriteByte(';')
		}
		sb.WriteString(strconv.Quote(name))
		sb.WriteByte('=')
		sb.WriteString(t.levels[name].key())
	}
	return sb.String()
}

// String renders the tuple in key order, e.g. {A=0, B=1}.
func (t *Tuple) String() string {
	parts := make([]string, len(t.keys))
	for i, name := range t.keys {
		parts[i] = name + "=" + t.levels[name].String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Combinations enumerates all k-element index subsets of [0, n) in
// lexicographic order.
func Combinations(n, k int) [][]int {
	if k < 0 || k > n {
		return nil
	}
	var out [][]int
	idx := make([]int, k)
	for i := range idx {
		idx[i] = i
	}
	for {
		combo := make([]int, k)
		copy(combo, idx)
		out = append(out, combo)

		i := k - 1
		for i >= 0 && idx[i] == n-k+i {
			i--
		}
		if i < 0 {
			return out
		}
		idx[i]++
		for j := i + 1; j < k; j++ {
			idx[j] = idx[j-1] + 1
		}
	}
}
