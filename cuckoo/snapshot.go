package cuckoo

import (
	"errors"
	"fmt"

	"amq/lib/compress"
	"amq/lib/hashing"

	"github.com/samber/mo"
)

var ErrInvalidSnapshot = errors.New("invalid cuckoo filter snapshot")

// Snapshot is the flat, serializable state of a Filter. Buckets holds
// NumBuckets*BucketSize fingerprints, bucket after bucket, with 0 for an
// empty slot.
type Snapshot struct {
	NumBuckets      uint64   `json:"num_buckets"`
	BucketSize      int      `json:"bucket_size"`
	FingerprintBits uint     `json:"fingerprint_bits"`
	MaxKicks        int      `json:"max_kicks"`
	Seed            uint64   `json:"seed"`
	Count           uint64   `json:"count"`
	HashAlgorithm   string   `json:"hash_algorithm"`
	Buckets         []uint64 `json:"buckets"`
}

func (cf *Filter) Export() Snapshot {
	buckets := make([]uint64, len(cf.slots))
	for i, fp := range cf.slots {
		buckets[i] = uint64(fp)
	}
	return Snapshot{
		NumBuckets:      cf.numBuckets,
		BucketSize:      cf.bucketSize,
		FingerprintBits: cf.fpBits,
		MaxKicks:        cf.maxKicks,
		Seed:            cf.seed,
		Count:           cf.count,
		HashAlgorithm:   cf.hasher.Name(),
		Buckets:         buckets,
	}
}

// FromSnapshot rebuilds a filter. If hasher is absent, it is resolved from
// the snapshot's hash algorithm name.
func FromSnapshot(s Snapshot, hasher mo.Option[hashing.Hasher]) (*Filter, error) {
	h, ok := hasher.Get()
	if !ok {
		var err error
		if h, err = hashing.ByName(s.HashAlgorithm); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
		}
	}
	cf, err := newFilter(s.NumBuckets, s.FingerprintBits, s.BucketSize, s.MaxKicks, s.Seed, h)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
	}
	if len(s.Buckets) != len(cf.slots) {
		return nil, fmt.Errorf("%w: expected %d slots, got %d", ErrInvalidSnapshot, len(cf.slots), len(s.Buckets))
	}
	occupied := uint64(0)
	for i, v := range s.Buckets {
		if cf.fpBits < maxFingerprintBits && v>>cf.fpBits != 0 {
			return nil, fmt.Errorf("%w: slot %d holds %d which is wider than %d bits", ErrInvalidSnapshot, i, v, cf.fpBits)
		}
		if v != 0 {
			occupied++
		}
		cf.slots[i] = fingerprint(v)
	}
	if occupied != s.Count {
		return nil, fmt.Errorf("%w: count is %d but %d slots are occupied", ErrInvalidSnapshot, s.Count, occupied)
	}
	cf.count = s.Count
	return cf, nil
}

// MarshalBinary encodes the filter's snapshot with lib/compress. Equal
// filters encode to equal bytes.
func (cf *Filter) MarshalBinary() ([]byte, error) {
	return compress.Marshal(cf.Export())
}

// UnmarshalBinary replaces the filter's state. A hasher already set on the
// receiver is kept when its name matches the encoded one. Stats are kept.
func (cf *Filter) UnmarshalBinary(data []byte) error {
	var s Snapshot
	if err := compress.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
	}
	hasher := mo.None[hashing.Hasher]()
	if cf.hasher != nil && cf.hasher.Name() == s.HashAlgorithm {
		hasher = mo.Some(cf.hasher)
	}
	restored, err := FromSnapshot(s, hasher)
	if err != nil {
		return err
	}
	cf.slots = restored.slots
	cf.numBuckets = restored.numBuckets
	cf.mask = restored.mask
	cf.bucketSize = restored.bucketSize
	cf.fpBits = restored.fpBits
	cf.maxKicks = restored.maxKicks
	cf.seed = restored.seed
	cf.count = restored.count
	cf.hasher = restored.hasher
	cf.rand = restored.rand
	return nil
}
