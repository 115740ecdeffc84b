package cuckoo

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"amq/lib/hashing"
	utilmath "amq/lib/utils/math"

	"github.com/samber/mo"
	"go.uber.org/zap"
)

const (
	DefaultBucketSize = 4
	// DefaultMaxKicks is the number of evictions attempted before an insert
	// gives up.
	DefaultMaxKicks = 500

	maxFingerprintBits = 64
	// targetLoadFactor is the occupancy Create sizes the filter for.
	targetLoadFactor = 0.955
)

var (
	ErrFull          = errors.New("cuckoo filter is full")
	ErrInvalidConfig = errors.New("invalid cuckoo filter configuration")
)

type Options struct {
	BucketSize int
	MaxKicks   int
	Seed       mo.Option[uint64]
	Hasher     hashing.Hasher
}

func DefaultOptions() Options {
	return Options{
		BucketSize: DefaultBucketSize,
		MaxKicks:   DefaultMaxKicks,
		Seed:       mo.None[uint64](), // hashing.DefaultSeed
		Hasher:     hashing.Default(),
	}
}

func (o Options) WithBucketSize(size int) Options {
	o.BucketSize = size
	return o
}

func (o Options) WithMaxKicks(kicks int) Options {
	o.MaxKicks = kicks
	return o
}

func (o Options) WithSeed(seed uint64) Options {
	o.Seed = mo.Some(seed)
	return o
}

func (o Options) WithHasher(h hashing.Hasher) Options {
	o.Hasher = h
	return o
}

// InsertOptions control what happens when an insert runs out of kicks.
type InsertOptions struct {
	// ErrorOnFull makes a failed insert return ErrFull instead of (false, nil).
	ErrorOnFull bool
	// Destructive skips the rollback of a failed relocation chain. The last
	// evicted fingerprint is then dropped, so some earlier element may start
	// reporting false negatives.
	Destructive bool
}

// Filter is a cuckoo filter over byte strings. It stores one fingerprint per
// element in one of two candidate buckets and supports deletion.
//
// Filter is not safe for concurrent use.
type Filter struct {
	slots      []fingerprint
	numBuckets uint64
	mask       uint64
	bucketSize int
	fpBits     uint
	maxKicks   int
	seed       uint64
	count      uint64
	hasher     hashing.Hasher
	rand       *rand.Rand
	stats      Stats
}

// NewFilter returns a filter with at least numBuckets buckets. The bucket
// count is rounded up to a power of two so that alternate bucket indexes
// stay reversible.
func NewFilter(numBuckets uint64, fingerprintBits uint, opts Options) (*Filter, error) {
	if numBuckets == 0 {
		return nil, fmt.Errorf("%w: bucket count must be positive", ErrInvalidConfig)
	}
	hasher := opts.Hasher
	if hasher == nil {
		hasher = hashing.Default()
	}
	seed := opts.Seed.OrElse(hashing.DefaultSeed)
	return newFilter(utilmath.NextPowerOf2(numBuckets), fingerprintBits, opts.BucketSize, opts.MaxKicks, seed, hasher)
}

// Create returns a filter sized to hold expectedItems with a false positive
// rate of about errorRate.
func Create(expectedItems uint64, errorRate float64, opts Options) (*Filter, error) {
	if expectedItems == 0 {
		return nil, fmt.Errorf("%w: expected items must be positive", ErrInvalidConfig)
	}
	if errorRate <= 0 || errorRate >= 1 {
		return nil, fmt.Errorf("%w: error rate %v outside (0, 1)", ErrInvalidConfig, errorRate)
	}
	if opts.BucketSize < 1 {
		return nil, fmt.Errorf("%w: bucket size %d must be positive", ErrInvalidConfig, opts.BucketSize)
	}
	fpBits := math.Ceil(math.Log2(1/errorRate) + math.Log2(float64(2*opts.BucketSize)))
	numBuckets := utilmath.CeilDiv(float64(expectedItems), float64(opts.BucketSize)*targetLoadFactor)
	return NewFilter(numBuckets, uint(fpBits), opts)
}

func newFilter(numBuckets uint64, fpBits uint, bucketSize, maxKicks int, seed uint64, hasher hashing.Hasher) (*Filter, error) {
	switch {
	case !utilmath.IsPowerOf2(numBuckets):
		return nil, fmt.Errorf("%w: bucket count %d is not a power of two", ErrInvalidConfig, numBuckets)
	case fpBits < 1 || fpBits > maxFingerprintBits:
		return nil, fmt.Errorf("%w: fingerprint length %d outside [1, %d]", ErrInvalidConfig, fpBits, maxFingerprintBits)
	case bucketSize < 1:
		return nil, fmt.Errorf("%w: bucket size %d must be positive", ErrInvalidConfig, bucketSize)
	case maxKicks < 0:
		return nil, fmt.Errorf("%w: max kicks %d must not be negative", ErrInvalidConfig, maxKicks)
	case hasher == nil:
		return nil, fmt.Errorf("%w: missing hasher", ErrInvalidConfig)
	}
	return &Filter{
		slots:      make([]fingerprint, numBuckets*uint64(bucketSize)),
		numBuckets: numBuckets,
		mask:       numBuckets - 1,
		bucketSize: bucketSize,
		fpBits:     fpBits,
		maxKicks:   maxKicks,
		seed:       seed,
		hasher:     hasher,
		rand:       rand.New(rand.NewSource(int64(seed))),
	}, nil
}

// Add inserts element, rolling back on failure. Returns false if the filter
// is too full to place it.
func (cf *Filter) Add(element []byte) bool {
	ok, _ := cf.Insert(element, InsertOptions{})
	return ok
}

// Insert element into the filter. When both candidate buckets are full,
// resident fingerprints are kicked to their alternate buckets up to maxKicks
// times. If that does not free a slot, every swap is undone unless
// opts.Destructive is set.
func (cf *Filter) Insert(element []byte, opts InsertOptions) (bool, error) {
	fp, i1, i2 := cf.locations(element)
	if cf.insert(fp, i1) || cf.insert(fp, i2) {
		cf.stats.Inserts.Inc()
		return true, nil
	}
	if cf.relocate(fp, cf.randi(i1, i2), opts.Destructive) {
		cf.stats.Inserts.Inc()
		return true, nil
	}
	cf.stats.FailedInserts.Inc()
	if opts.ErrorOnFull {
		return false, fmt.Errorf("%w: %d kicks exhausted with %d of %d slots used", ErrFull, cf.maxKicks, cf.count, cf.Capacity())
	}
	return false, nil
}

func (cf *Filter) insert(fp fingerprint, i uint64) bool {
	if cf.bucket(i).insert(fp) {
		cf.count++
		return true
	}
	return false
}

// kick records the previous content of a slot overwritten during relocation.
type kick struct {
	slot int
	prev fingerprint
}

func (cf *Filter) relocate(fp fingerprint, i uint64, destructive bool) bool {
	log := make([]kick, 0, min(cf.maxKicks, 64))
	for k := 0; k < cf.maxKicks; k++ {
		slot := int(i)*cf.bucketSize + cf.rand.Intn(cf.bucketSize)
		log = append(log, kick{slot: slot, prev: cf.slots[slot]})
		// Swap fingerprint with the slot's and move the kicked out one to
		// its alternate location.
		cf.slots[slot], fp = fp, cf.slots[slot]
		cf.stats.Kicks.Inc()
		i = cf.altIndex(fp, i)
		if cf.insert(fp, i) {
			return true
		}
	}
	if destructive {
		zap.L().Warn("cuckoo relocation exhausted, fingerprint dropped",
			zap.Int("max_kicks", cf.maxKicks), zap.Uint64("count", cf.count))
		return false
	}
	for j := len(log) - 1; j >= 0; j-- {
		cf.slots[log[j].slot] = log[j].prev
	}
	cf.stats.Rollbacks.Inc()
	zap.L().Debug("cuckoo relocation exhausted, rolled back",
		zap.Int("max_kicks", cf.maxKicks), zap.Int("swaps", len(log)), zap.Uint64("count", cf.count))
	return false
}

// Has returns true if element may be in the filter. False positives are
// possible, false negatives are not unless a destructive insert failed.
func (cf *Filter) Has(element []byte) bool {
	maybeInc(shouldSample(), &cf.stats.Lookups)
	fp, i1, i2 := cf.locations(element)
	return cf.bucket(i1).contains(fp) || cf.bucket(i2).contains(fp)
}

// Remove deletes one copy of element's fingerprint. Returns true if it was
// found. Removing an element that was never added may remove a colliding one.
func (cf *Filter) Remove(element []byte) bool {
	fp, i1, i2 := cf.locations(element)
	if cf.delete(fp, i1) || cf.delete(fp, i2) {
		cf.stats.Removes.Inc()
		return true
	}
	return false
}

func (cf *Filter) delete(fp fingerprint, i uint64) bool {
	if cf.bucket(i).delete(fp) {
		cf.count--
		return true
	}
	return false
}

// Count returns the number of fingerprints stored.
func (cf *Filter) Count() uint64 {
	return cf.count
}

// Capacity returns the total number of slots.
func (cf *Filter) Capacity() uint64 {
	return cf.numBuckets * uint64(cf.bucketSize)
}

// LoadFactor returns the fraction of slots that are occupied.
func (cf *Filter) LoadFactor() float64 {
	return float64(cf.count) / float64(cf.Capacity())
}

// Rate estimates the current false positive probability: a lookup compares
// against up to 2*bucketSize*load fingerprints, each matching with
// probability 2^-fpBits.
func (cf *Filter) Rate() float64 {
	load := cf.LoadFactor()
	if load == 0 {
		return 0
	}
	return 1 - math.Pow(1-math.Pow(2, -float64(cf.fpBits)), float64(2*cf.bucketSize)*load)
}

func (cf *Filter) NumBuckets() uint64    { return cf.numBuckets }
func (cf *Filter) BucketSize() int       { return cf.bucketSize }
func (cf *Filter) FingerprintBits() uint { return cf.fpBits }
func (cf *Filter) MaxKicks() int         { return cf.maxKicks }
func (cf *Filter) Seed() uint64          { return cf.seed }

// Equals reports whether both filters have the same shape, hashing and
// content.
func (cf *Filter) Equals(other *Filter) bool {
	if other == nil {
		return false
	}
	if cf.numBuckets != other.numBuckets || cf.bucketSize != other.bucketSize ||
		cf.fpBits != other.fpBits || cf.maxKicks != other.maxKicks ||
		cf.seed != other.seed || cf.count != other.count ||
		cf.hasher.Name() != other.hasher.Name() {
		return false
	}
	for i := range cf.slots {
		if cf.slots[i] != other.slots[i] {
			return false
		}
	}
	return true
}

// Clone returns a deep copy. The copy's random source restarts from the seed
// and its stats start at zero.
func (cf *Filter) Clone() *Filter {
	ret, _ := newFilter(cf.numBuckets, cf.fpBits, cf.bucketSize, cf.maxKicks, cf.seed, cf.hasher)
	copy(ret.slots, cf.slots)
	ret.count = cf.count
	return ret
}
