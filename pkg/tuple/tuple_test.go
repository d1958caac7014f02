package tuple

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevel_Equal(t *testing.T) {
	assert.True(t, Value(1).Equal(Value(1)))
	assert.False(t, Value(1).Equal(Value("1")), "different dynamic types never match")
	assert.False(t, Value(1).Equal(DontCare))
	assert.True(t, DontCare.Equal(DontCare))
	assert.True(t, Value(nil).Equal(Value(nil)))
	assert.False(t, Value(nil).Equal(DontCare))
	assert.Equal(t, "D/C", DontCare.String())
}

func TestComparable(t *testing.T) {
	assert.True(t, Comparable("x"))
	assert.True(t, Comparable(nil))
	assert.False(t, Comparable([]int{1}))
	assert.False(t, Comparable(map[string]int{}))
}

func TestTuple_PutKeepsPosition(t *testing.T) {
	tp := Of("A", 0, "B", 1)
	tp.PutValue("A", 5)
	assert.Equal(t, []string{"A", "B"}, tp.Keys())

	l, ok := tp.Get("A")
	require.True(t, ok)
	assert.Equal(t, 5, l.Get())
}

func TestTuple_Remove(t *testing.T) {
	tp := Of("A", 0, "B", 1, "C", 2)
	tp.Remove("B")
	tp.Remove("missing")
	assert.Equal(t, []string{"A", "C"}, tp.Keys())
	assert.False(t, tp.Has("B"))
}

func TestTuple_CloneIsIndependent(t *testing.T) {
	orig := Of("A", 0)
	c := orig.Clone()
	c.PutValue("A", 1)
	c.PutValue("B", 2)

	l, _ := orig.Get("A")
	assert.Equal(t, 0, l.Get())
	assert.Equal(t, 1, orig.Len())
}

func TestTuple_ContainsAndEqual(t *testing.T) {
	full := Of("A", 0, "B", 1, "C", 0)

	assert.True(t, full.Contains(Of("A", 0, "C", 0)))
	assert.False(t, full.Contains(Of("A", 1)))
	assert.False(t, full.Contains(Of("D", 0)))
	assert.True(t, full.Contains(New()))

	assert.True(t, Of("B", 1, "A", 0).Equal(Of("A", 0, "B", 1)))
	assert.False(t, Of("A", 0).Equal(Of("A", 0, "B", 1)))
}

func TestTuple_KeyIgnoresOrder(t *testing.T) {
	a := Of("A", 0, "B", "x")
	b := Of("B", "x", "A", 0)
	assert.Equal(t, a.Key(), b.Key())
	assert.NotEqual(t, a.Key(), Of("A", "0", "B", "x").Key())
	assert.NotEqual(t, Of("A", DontCare).Key(), Of("A", 0).Key())
}

func TestTuple_DontCareHandling(t *testing.T) {
	tp := Of("A", 0, "B", DontCare, "C", 1)
	assert.True(t, tp.HasDontCare())

	stripped := tp.StripDontCare()
	assert.False(t, stripped.HasDontCare())
	assert.Equal(t, []string{"A", "C"}, stripped.Keys())
	assert.Equal(t, map[string]any{"A": 0, "C": 1}, tp.Values())
}

func TestTuple_Subtuples(t *testing.T) {
	tp := Of("A", 0, "B", 1, "C", 2)

	subs := tp.Subtuples(2)
	require.Len(t, subs, 3)
	assert.Equal(t, "{A=0, B=1}", subs[0].String())
	assert.Equal(t, "{A=0, C=2}", subs[1].String())
	assert.Equal(t, "{B=1, C=2}", subs[2].String())

	assert.Len(t, tp.Subtuples(3), 1)
	assert.Nil(t, tp.Subtuples(4))
	assert.Nil(t, tp.Subtuples(0))
}

func TestTuple_Reorder(t *testing.T) {
	tp := Of("C", 2, "A", 0, "X", 9)
	assert.Equal(t, []string{"A", "C", "X"}, tp.Reorder([]string{"A", "B", "C"}).Keys())
}

func TestFromMap(t *testing.T) {
	tp := FromMap(map[string]any{"b": 1, "a": 2})
	assert.Equal(t, "{a=2, b=1}", tp.String())
}

func TestOf_Panics(t *testing.T) {
	assert.Panics(t, func() { Of("A") })
	assert.Panics(t, func() { Of(1, 2) })
}

func TestCombinations(t *testing.T) {
	assert.Equal(t, [][]int{{0, 1}, {0, 2}, {1, 2}}, Combinations(3, 2))
	assert.Equal(t, [][]int{{}}, Combinations(3, 0))
	assert.Nil(t, Combinations(2, 3))
	assert.Len(t, Combinations(6, 3), 20)
}

func TestSet_Basics(t *testing.T) {
	s := NewSet(Of("A", 0), Of("A", 1))
	assert.Equal(t, 2, s.Len())
	assert.False(t, s.Add(Of("A", 0)), "duplicates are rejected")

	assert.True(t, s.Contains(Of("A", 1)))
	assert.True(t, s.Remove(Of("A", 1)))
	assert.False(t, s.Remove(Of("A", 1)))
	assert.False(t, s.Contains(Of("A", 1)))

	all := s.All()
	require.Len(t, all, 1)
	assert.Equal(t, "{A=0}", all[0].String())
}

func TestSet_StoresClones(t *testing.T) {
	tp := Of("A", 0)
	s := NewSet(tp)
	tp.PutValue("A", 1)
	assert.True(t, s.Contains(Of("A", 0)))
}

func TestSet_KeepsInsertionOrderAcrossCompaction(t *testing.T) {
	s := NewSet()
	for i := 0; i < 200; i++ {
		s.Add(Of("N", i))
	}
	for i := 0; i < 150; i++ {
		s.Remove(Of("N", i))
	}
	all := s.All()
	require.Len(t, all, 50)
	for i, tp := range all {
		l, _ := tp.Get("N")
		assert.Equal(t, 150+i, l.Get())
	}
	assert.True(t, s.Contains(Of("N", 199)))
	assert.Equal(t, 2, s.RemoveAll([]*Tuple{Of("N", 150), Of("N", 151), Of("N", 0)}))
}

func TestDistinct(t *testing.T) {
	in := []*Tuple{Of("A", 0, "B", 1), Of("B", 1, "A", 0), Of("A", 1, "B", 1)}
	once := Distinct(in)
	require.Len(t, once, 2)
	assert.Same(t, in[0], once[0])
	assert.Equal(t, once, Distinct(once))
}
