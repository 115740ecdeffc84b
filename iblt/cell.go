package iblt

import "bytes"

// sentinel prefixes every encoded element. Trimming leading zero bytes after
// a XOR then never eats into the element itself.
const sentinel byte = 0x01

// Cell is one slot of a Table. IDSum is the XOR of the encodings of the
// elements mapped to it, HashSum the XOR of their hashes and Count the
// number of additions minus removals.
type Cell struct {
	IDSum   []byte `json:"id_sum"`
	HashSum uint64 `json:"hash_sum"`
	Count   int64  `json:"count"`
}

func (c Cell) IsEmpty() bool {
	return c.Count == 0 && c.HashSum == 0 && len(c.IDSum) == 0
}

func (c Cell) Equals(other Cell) bool {
	return c.Count == other.Count && c.HashSum == other.HashSum && bytes.Equal(c.IDSum, other.IDSum)
}

func (c Cell) clone() Cell {
	return Cell{IDSum: bytes.Clone(c.IDSum), HashSum: c.HashSum, Count: c.Count}
}

// xor combines two cells. Counts are signed, so they subtract.
func (c Cell) xor(other Cell) Cell {
	return Cell{
		IDSum:   xorBytes(c.IDSum, other.IDSum),
		HashSum: c.HashSum ^ other.HashSum,
		Count:   c.Count - other.Count,
	}
}

func encode(element []byte) []byte {
	ret := make([]byte, 0, len(element)+1)
	ret = append(ret, sentinel)
	return append(ret, element...)
}

// decode returns the element held by an IDSum that contains exactly one
// encoding.
func decode(idSum []byte) ([]byte, bool) {
	if len(idSum) == 0 || idSum[0] != sentinel {
		return nil, false
	}
	return bytes.Clone(idSum[1:]), true
}

// xorBytes XORs a and b aligned on their last byte, so the shorter operand
// is treated as if padded with leading zeros. Leading zero bytes of the
// result are trimmed and an all-zero result is nil.
func xorBytes(a, b []byte) []byte {
	if len(a) < len(b) {
		a, b = b, a
	}
	out := make([]byte, len(a))
	copy(out, a)
	off := len(a) - len(b)
	for i, v := range b {
		out[off+i] ^= v
	}
	i := 0
	for i < len(out) && out[i] == 0 {
		i++
	}
	if i == len(out) {
		return nil
	}
	return out[i:]
}
