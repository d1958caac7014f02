package tuple

// Set is an insertion-ordered set of tuples identified by Tuple.Key.
// Stored tuples are clones; callers may keep mutating the tuples they add.
type Set struct {
	index map[string]int
	items []*Tuple
	live  int
}

// NewSet creates a set holding clones of ts.
func NewSet(ts ...*Tuple) *Set {
	s := &Set{index: make(map[string]int)}
	s.AddAll(ts)
	return s
}

// Add inserts a clone of t. It returns false if an equal tuple was present.
func (s *Set) Add(t *Tuple) bool {
	key := t.Key()
	if _, ok := s.index[key]; ok {
		return false
	}
	s.index[key] = len(s.items)
	s.items = append(s.items, t.Clone())
	s.live++
	return true
}

// AddAll inserts every tuple of ts.
func (s *Set) AddAll(ts []*Tuple) {
	for _, t := range ts {
		s.Add(t)
	}
}

// Contains reports whether an equal tuple is in the set.
func (s *Set) Contains(t *Tuple) bool {
	_, ok := s.index[t.Key()]
	return ok
}

// Remove deletes t. It returns false if it was not present.
func (s *Set) Remove(t *Tuple) bool {
	key := t.Key()
	i, ok := s.index[key]
	if !ok {
		return false
	}
	delete(s.index, key)
	s.items[i] = nil
	s.live--
	if s.live*2 < len(s.items) && len(s.items) > 64 {
		s.compact()
	}
	return true
}

// RemoveAll deletes every tuple of ts and returns how many were present.
func (s *Set) RemoveAll(ts []*Tuple) int {
	n := 0
	for _, t := range ts {
		if s.Remove(t) {
			n++
		}
	}
	return n
}

// Len returns the number of tuples in the set.
func (s *Set) Len() int {
	return s.live
}

// IsEmpty reports whether the set has no tuples.
func (s *Set) IsEmpty() bool {
	return s.live == 0
}

// All returns clones of the tuples in insertion order.
func (s *Set) All() []*Tuple {
	out := make([]*Tuple, 0, s.live)
	for _, t := range s.items {
		if t != nil {
			out = append(out, t.Clone())
		}
	}
	return out
}

// Clear removes every tuple.
func (s *Set) Clear() {
	s.index = make(map[string]int)
	s.items = nil
	s.live = 0
}

func (s *Set) compact() {
	items := make([]*Tuple, 0, s.live)
	for _, t := range s.items {
		if t == nil {
			continue
		}
		s.index[t.Key()] = len(items)
		items = append(items, t)
	}
	s.items = items
}

// Distinct returns ts without repeated tuples, keeping the first occurrence
// of each. The returned slice shares its tuples with ts.
func Distinct(ts []*Tuple) []*Tuple {
	seen := make(map[string]struct{}, len(ts))
	out := make([]*Tuple, 0, len(ts))
	for _, t := range ts {
		key := t.Key()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, t)
	}
	return out
}
