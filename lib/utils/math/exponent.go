package math

import (
	"math"
	"math/bits"
)

func IsPowerOf2(n uint64) bool {
	return n > 0 && n&(n-1) == 0
}

// NextPowerOf2 returns the smallest power of two >= n. Zero maps to one.
func NextPowerOf2(n uint64) uint64 {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len64(n-1)
}

// CeilDiv returns ceil(a / b) for positive floats, as an integer.
func CeilDiv(a, b float64) uint64 {
	return uint64(math.Ceil(a / b))
}

// RoundUpToMultiple returns the smallest multiple of m that is >= n.
func RoundUpToMultiple(n, m int) int {
	if m <= 0 {
		return n
	}
	if r := n % m; r != 0 {
		return n + m - r
	}
	return n
}
