package hashing

import (
	"fmt"
	"math"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
)

type constantHasher struct {
	value uint64
}

func (constantHasher) Name() string                              { return "constant" }
func (c constantHasher) Hash32([]byte, uint64) uint32            { return uint32(c.value) }
func (c constantHasher) Hash64([]byte, uint64) uint64            { return c.value }
func (c constantHasher) Hash128([]byte, uint64) (uint64, uint64) { return c.value, c.value }

// recordingHasher delegates to xxh3 and remembers every seed it was asked for.
type recordingHasher struct {
	XXH3
	seeds map[uint64]struct{}
}

func (r *recordingHasher) Hash64(data []byte, seed uint64) uint64 {
	r.seeds[seed] = struct{}{}
	return r.XXH3.Hash64(data, seed)
}

func TestDoubleHash(t *testing.T) {
	cases := []struct {
		i        int
		h1, h2   uint64
		size     int
		expected int
	}{
		{0, 10, 3, 7, 3},
		{1, 10, 3, 7, 6},
		{2, 10, 3, 7, 3}, // 10 + 6 + 1
		{3, 10, 3, 7, 2}, // 10 + 9 + 4
		{4, 0, 0, 100, 10},
		{1, math.MaxUint64, 1, 10, 0}, // wraps to zero
	}
	for _, case_ := range cases {
		assert.Equal(t, case_.expected, DoubleHash(case_.i, case_.h1, case_.h2, case_.size), "case %+v", case_)
	}
}

func TestHashTwiceUsesOffsetSeeds(t *testing.T) {
	e := NewEngine(XXH3{})
	h1, h2 := e.HashTwice([]byte("alice"), 41)
	assert.Equal(t, XXH3{}.Hash64([]byte("alice"), 42), h1)
	assert.Equal(t, XXH3{}.Hash64([]byte("alice"), 43), h2)
	assert.NotEqual(t, h1, h2)
}

func TestIndexes(t *testing.T) {
	e := NewEngine(nil)
	for i := 0; i < 100; i++ {
		element := []byte(fmt.Sprintf("element-%d", i))
		indexes := e.Indexes(element, 37, 5, DefaultSeed)
		assert.Len(t, indexes, 5)
		h1, h2 := e.HashTwice(element, DefaultSeed)
		for j, idx := range indexes {
			assert.GreaterOrEqual(t, idx, 0)
			assert.Less(t, idx, 37)
			assert.Equal(t, DoubleHash(j, h1, h2, 37), idx)
		}
		assert.Equal(t, indexes, e.Indexes(element, 37, 5, DefaultSeed))
	}
	assert.Empty(t, e.Indexes([]byte("x"), 10, 0, DefaultSeed))
	assert.Panics(t, func() { e.Indexes([]byte("x"), 0, 3, DefaultSeed) })
}

func TestDistinctIndexes(t *testing.T) {
	for _, name := range Names() {
		h, err := ByName(name)
		assert.NoError(t, err)
		e := NewEngine(h)
		for i := 0; i < 200; i++ {
			element := []byte(fmt.Sprintf("%s-%d", name, i))
			indexes := e.DistinctIndexes(element, 50, 4, DefaultSeed)
			assert.Len(t, indexes, 4)
			assert.Len(t, lo.Uniq(indexes), 4)
			for _, idx := range indexes {
				assert.GreaterOrEqual(t, idx, 0)
				assert.Less(t, idx, 50)
			}
			assert.Equal(t, indexes, e.DistinctIndexes(element, 50, 4, DefaultSeed))
		}
	}
}

func TestDistinctIndexesFullRange(t *testing.T) {
	e := NewEngine(nil)
	indexes := e.DistinctIndexes([]byte("everything"), 16, 16, DefaultSeed)
	assert.ElementsMatch(t, lo.Range(16), indexes)
}

func TestDistinctIndexesConstantHasher(t *testing.T) {
	// every seed hashes the same, so reseeding cannot help and the probe
	// fallback has to finish the job
	for _, value := range []uint64{0, 1, 7, math.MaxUint64} {
		e := NewEngine(constantHasher{value: value})
		indexes := e.DistinctIndexes([]byte("x"), 10, 10, DefaultSeed)
		assert.ElementsMatch(t, lo.Range(10), indexes)

		indexes = e.DistinctIndexes([]byte("x"), 1000, 3, DefaultSeed)
		assert.Len(t, lo.Uniq(indexes), 3)
	}
}

func TestDistinctIndexesReseed(t *testing.T) {
	r := &recordingHasher{seeds: map[uint64]struct{}{}}
	e := NewEngine(r).WithReseedAfter(1)
	indexes := e.DistinctIndexes([]byte("alice"), 100, 3, 10)
	assert.Len(t, lo.Uniq(indexes), 3)
	// one candidate per seed: at least three seeds were hashed twice each
	assert.GreaterOrEqual(t, len(r.seeds), 4)
	assert.Contains(t, r.seeds, uint64(11))
	assert.Contains(t, r.seeds, uint64(12))
	assert.Contains(t, r.seeds, uint64(13))
}

func TestDistinctIndexesInvalidShape(t *testing.T) {
	e := NewEngine(nil)
	assert.Panics(t, func() { e.DistinctIndexes([]byte("x"), 3, 4, DefaultSeed) })
	assert.Panics(t, func() { e.DistinctIndexes([]byte("x"), 0, 0, DefaultSeed) })
	assert.Panics(t, func() { e.DistinctIndexes([]byte("x"), 10, 0, DefaultSeed) })
}

func BenchmarkDistinctIndexes(b *testing.B) {
	e := NewEngine(nil)
	element := []byte("benchmark-element")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = e.DistinctIndexes(element, 1024, 4, uint64(i))
	}
}
