package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nomagicln/ipogen/pkg/factor"
	"github.com/nomagicln/ipogen/pkg/generator"
	"github.com/nomagicln/ipogen/pkg/tuple"
)

func openMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func mixedSpace() *factor.Factors {
	return factor.MustFactors(
		factor.MustNew("os", "linux", "darwin"),
		factor.MustNew("debug", true, false),
		factor.MustNew("workers", 1, 8),
	)
}

func generate(t *testing.T, fs *factor.Factors) *generator.CoveringArray {
	t.Helper()
	e, err := generator.NewEngine(generator.EngineIPO2, generator.Options{})
	require.NoError(t, err)
	ca, err := generator.Generate(context.Background(), e, generator.Request{Factors: fs, Strength: 2})
	require.NoError(t, err)
	return ca
}

func TestSaveAndLookup(t *testing.T) {
	s := openMemory(t)
	fs := mixedSpace()
	ca := generate(t, fs)

	id, err := s.Save("hash-1", "servers", []byte("name: servers\n"), fs, ca)
	require.NoError(t, err)
	assert.Equal(t, ca.ID, id)

	rec, err := s.Lookup("hash-1")
	require.NoError(t, err)
	assert.Equal(t, id, rec.ID)
	assert.Equal(t, "servers", rec.ModelName)
	assert.Equal(t, "ipo2", rec.Engine)
	assert.Equal(t, 2, rec.Strength)
	assert.Equal(t, len(ca.TestCases), rec.TestCases)
	assert.Equal(t, "name: servers\n", string(rec.Model))
	assert.False(t, rec.CreatedAt.IsZero())

	cached, err := rec.CoveringArray(fs)
	require.NoError(t, err)
	require.Len(t, cached.TestCases, len(ca.TestCases))
	for i := range ca.TestCases {
		assert.True(t, ca.TestCases[i].Equal(cached.TestCases[i]), "row %d", i)
		assert.Equal(t, fs.Names(), cached.TestCases[i].Keys())
	}
	// Level types survive the round trip.
	l, _ := cached.TestCases[0].Get("workers")
	assert.IsType(t, 1, l.Get())
	l, _ = cached.TestCases[0].Get("debug")
	assert.IsType(t, true, l.Get())
}

func TestLookupReturnsNewest(t *testing.T) {
	s := openMemory(t)
	fs := mixedSpace()

	first, err := s.Save("h", "m", []byte("x"), fs, generate(t, fs))
	require.NoError(t, err)
	second, err := s.Save("h", "m", []byte("x"), fs, generate(t, fs))
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	rec, err := s.Lookup("h")
	require.NoError(t, err)
	assert.Equal(t, second, rec.ID)
}

func TestRemaindersRoundTrip(t *testing.T) {
	s := openMemory(t)
	fs := mixedSpace()
	ca := &generator.CoveringArray{
		TestCases:  []*tuple.Tuple{tuple.Of("os", "linux", "debug", true, "workers", 1)},
		Remainders: []*tuple.Tuple{tuple.Of("os", "darwin", "workers", 8)},
		Stats:      generator.Stats{Engine: "ipo2", Strength: 2},
	}

	id, err := s.Save("h", "m", []byte("x"), fs, ca)
	require.NoError(t, err)
	assert.NotEmpty(t, id, "an id is assigned when the array has none")

	rec, err := s.Get(id)
	require.NoError(t, err)
	cached, err := rec.CoveringArray(fs)
	require.NoError(t, err)
	require.Len(t, cached.Remainders, 1)
	assert.True(t, ca.Remainders[0].Equal(cached.Remainders[0]))
	assert.Equal(t, []string{"os", "workers"}, cached.Remainders[0].Keys())
}

func TestSaveRejectsUnknownLevel(t *testing.T) {
	s := openMemory(t)
	ca := &generator.CoveringArray{TestCases: []*tuple.Tuple{tuple.Of("os", "windows")}}

	_, err := s.Save("h", "m", nil, mixedSpace(), ca)
	assert.Error(t, err)

	_, err = s.Save("h", "m", nil, nil, ca)
	assert.Error(t, err)
}

func TestCoveringArrayFactorMismatch(t *testing.T) {
	s := openMemory(t)
	fs := mixedSpace()
	id, err := s.Save("h", "m", []byte("x"), fs, generate(t, fs))
	require.NoError(t, err)

	rec, err := s.Get(id)
	require.NoError(t, err)

	other := factor.MustFactors(factor.MustNew("os", "linux", "darwin"), factor.MustNew("arch", "amd64"))
	_, err = rec.CoveringArray(other)
	assert.Error(t, err)
}

func TestNotFound(t *testing.T) {
	s := openMemory(t)

	_, err := s.Lookup("missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete("missing"), ErrNotFound)
}

func TestListDeleteClear(t *testing.T) {
	s := openMemory(t)
	fs := mixedSpace()

	a, err := s.Save("ha", "alpha", []byte("a"), fs, generate(t, fs))
	require.NoError(t, err)
	b, err := s.Save("hb", "beta", []byte("b"), fs, generate(t, fs))
	require.NoError(t, err)

	list, err := s.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, b, list[0].ID)
	assert.Equal(t, a, list[1].ID)
	assert.Nil(t, list[0].Model)

	require.NoError(t, s.Delete(a))
	list, err = s.List()
	require.NoError(t, err)
	assert.Len(t, list, 1)

	n, err := s.Clear()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	list, err = s.List()
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cache.db")
	fs := mixedSpace()

	s, err := Open(path)
	require.NoError(t, err)
	id, err := s.Save("h", "m", []byte("x"), fs, generate(t, fs))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	rec, err := s.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "m", rec.ModelName)
}
