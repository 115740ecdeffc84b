package hashing

import (
	"fmt"

	"github.com/samber/lo"
)

const defaultMaxReseeds = 16

// Engine turns an element and a seed into array positions. It holds no state
// besides its configuration, so it is safe to copy and share.
type Engine struct {
	hasher Hasher
	// reseedAfter is the number of candidates DistinctIndexes draws from one
	// seed before moving to the next one. Zero means "the array size".
	reseedAfter int
	maxReseeds  int
}

func NewEngine(h Hasher) Engine {
	if h == nil {
		h = Default()
	}
	return Engine{hasher: h, maxReseeds: defaultMaxReseeds}
}

func (e Engine) WithReseedAfter(n int) Engine {
	e.reseedAfter = n
	return e
}

func (e Engine) WithMaxReseeds(n int) Engine {
	e.maxReseeds = n
	return e
}

func (e Engine) Hasher() Hasher {
	return e.hasher
}

func (e Engine) ReseedAfter() int {
	return e.reseedAfter
}

// HashTwice returns two independent hashes of element under seed.
func (e Engine) HashTwice(element []byte, seed uint64) (uint64, uint64) {
	return e.hasher.Hash64(element, seed+1), e.hasher.Hash64(element, seed+2)
}

// DoubleHash computes the i-th position using enhanced double hashing:
//
//	(h1 + i*h2 + (i^3-i)/6) mod size
//
// The cubic term breaks the short cycles plain double hashing has when size
// and h2 share factors. Arithmetic wraps at 64 bits.
func DoubleHash(i int, h1, h2 uint64, size int) int {
	n := uint64(i)
	return int((h1 + n*h2 + (n*n*n-n)/6) % uint64(size))
}

// Indexes returns k positions in [0, size). Positions may repeat.
func (e Engine) Indexes(element []byte, size, k int, seed uint64) []int {
	if size <= 0 || k < 0 {
		panic(fmt.Sprintf("hashing: invalid shape size=%d k=%d", size, k))
	}
	h1, h2 := e.HashTwice(element, seed)
	indexes := make([]int, k)
	for i := range indexes {
		indexes[i] = DoubleHash(i, h1, h2, size)
	}
	return indexes
}

// DistinctIndexes returns k distinct positions in [0, size), in the order
// they were generated. It panics unless 0 < k <= size.
//
// Candidates follow h1 <- h1+h2, h2 <- h2+i (mod size). When reseedAfter
// candidates under one seed fail to complete the set, the seed is bumped and
// the recurrence restarts; positions already found are kept. After
// maxReseeds bumps the remaining positions are filled by probing linearly
// from the last candidate.
func (e Engine) DistinctIndexes(element []byte, size, k int, seed uint64) []int {
	if size <= 0 || k <= 0 || k > size {
		panic(fmt.Sprintf("hashing: cannot draw %d distinct indexes out of %d", k, size))
	}
	reseedAfter := e.reseedAfter
	if reseedAfter <= 0 {
		reseedAfter = size
	}
	m := uint64(size)
	indexes := make([]int, 0, k)
	var last uint64
	for reseeds := 0; reseeds <= e.maxReseeds; reseeds++ {
		h1, h2 := e.HashTwice(element, seed+uint64(reseeds))
		h1, h2 = h1%m, h2%m
		for i := 0; i < reseedAfter; i++ {
			last = h1
			if !lo.Contains(indexes, int(h1)) {
				indexes = append(indexes, int(h1))
				if len(indexes) == k {
					return indexes
				}
			}
			h1 = (h1 + h2) % m
			h2 = (h2 + uint64(i)) % m
		}
	}
	for idx := (last + 1) % m; len(indexes) < k; idx = (idx + 1) % m {
		if !lo.Contains(indexes, int(idx)) {
			indexes = append(indexes, int(idx))
		}
	}
	return indexes
}
