package hashing

import (
	"errors"
	"fmt"

	oxxhash "github.com/OneOfOne/xxhash"
	"github.com/cespare/xxhash/v2"
	"github.com/segmentio/fasthash/fnv1a"
	"github.com/twmb/murmur3"
	"github.com/zeebo/xxh3"
)

// DefaultSeed is used by every structure that is not given an explicit seed.
// Two structures must share a seed to be compared or subtracted.
const DefaultSeed uint64 = 0x1234567890

var ErrUnknownHasher = errors.New("unknown hash algorithm")

// Hasher is the hash capability index generation is built on. Implementations
// must be pure functions of (data, seed).
type Hasher interface {
	Name() string
	Hash32(data []byte, seed uint64) uint32
	Hash64(data []byte, seed uint64) uint64
	Hash128(data []byte, seed uint64) (hi, lo uint64)
}

const (
	XXH3Name    = "xxh3"
	XXHashName  = "xxhash"
	Murmur3Name = "murmur3"
	FNV1aName   = "fnv1a"
)

// Default returns the hasher used when none is configured.
func Default() Hasher {
	return XXH3{}
}

// ByName resolves one of the built-in hashers.
func ByName(name string) (Hasher, error) {
	switch name {
	case "", XXH3Name:
		return XXH3{}, nil
	case XXHashName:
		return XXHash{}, nil
	case Murmur3Name:
		return Murmur3{}, nil
	case FNV1aName:
		return FNV1a{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownHasher, name)
	}
}

// Names lists the built-in hashers.
func Names() []string {
	return []string{XXH3Name, XXHashName, Murmur3Name, FNV1aName}
}

// fold32 mixes both halves of a 64-bit hash into 32 bits.
func fold32(h uint64) uint32 {
	return uint32(h ^ (h >> 32))
}

// XXH3 is the default hasher.
type XXH3 struct{}

func (XXH3) Name() string { return XXH3Name }

func (XXH3) Hash32(data []byte, seed uint64) uint32 {
	return fold32(xxh3.HashSeed(data, seed))
}

func (XXH3) Hash64(data []byte, seed uint64) uint64 {
	return xxh3.HashSeed(data, seed)
}

func (XXH3) Hash128(data []byte, seed uint64) (uint64, uint64) {
	h := xxh3.Hash128Seed(data, seed)
	return h.Hi, h.Lo
}

// XXHash is classic xxHash: XXH64 for the wide hashes and XXH32 for the
// narrow one.
type XXHash struct{}

func (XXHash) Name() string { return XXHashName }

func (XXHash) Hash32(data []byte, seed uint64) uint32 {
	return oxxhash.Checksum32S(data, fold32(seed))
}

func (XXHash) Hash64(data []byte, seed uint64) uint64 {
	d := xxhash.NewWithSeed(seed)
	_, _ = d.Write(data)
	return d.Sum64()
}

// Hash128 concatenates two XXH64 runs; the second seed is offset by the
// 64-bit golden ratio so the halves are independent.
func (x XXHash) Hash128(data []byte, seed uint64) (uint64, uint64) {
	return x.Hash64(data, seed), x.Hash64(data, seed^0x9e3779b97f4a7c15)
}

// Murmur3 is MurmurHash3 (x86_32 and x64_128 variants).
type Murmur3 struct{}

func (Murmur3) Name() string { return Murmur3Name }

func (Murmur3) Hash32(data []byte, seed uint64) uint32 {
	return murmur3.SeedSum32(fold32(seed), data)
}

func (Murmur3) Hash64(data []byte, seed uint64) uint64 {
	return murmur3.SeedSum64(seed, data)
}

func (Murmur3) Hash128(data []byte, seed uint64) (uint64, uint64) {
	return murmur3.SeedSum128(seed, seed, data)
}

// FNV1a folds the seed into the FNV offset basis before hashing the data. It
// is the cheapest of the hashers and also the weakest.
type FNV1a struct{}

func (FNV1a) Name() string { return FNV1aName }

func (FNV1a) Hash32(data []byte, seed uint64) uint32 {
	return fnv1a.AddBytes32(fnv1a.AddUint32(fnv1a.Init32, fold32(seed)), data)
}

func (FNV1a) Hash64(data []byte, seed uint64) uint64 {
	return fnv1a.AddBytes64(fnv1a.AddUint64(fnv1a.Init64, seed), data)
}

func (f FNV1a) Hash128(data []byte, seed uint64) (uint64, uint64) {
	return f.Hash64(data, seed), f.Hash64(data, ^seed)
}
