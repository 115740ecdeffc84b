package cuckoo

import "encoding/binary"

// Location is where an element lives: its fingerprint and its two candidate
// buckets.
type Location struct {
	Fingerprint uint64
	First       uint64
	Second      uint64
}

// randi returns either i1 or i2, drawn from the filter's seeded source.
func (cf *Filter) randi(i1, i2 uint64) uint64 {
	if cf.rand.Intn(2) == 0 {
		return i1
	}
	return i2
}

// altIndex is an involution on bucket indexes for a given fingerprint, since
// the bucket count is a power of two: altIndex(fp, altIndex(fp, i)) == i.
func (cf *Filter) altIndex(fp fingerprint, i uint64) uint64 {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(fp))
	return (i ^ cf.hasher.Hash64(b[:], cf.seed)) & cf.mask
}

func (cf *Filter) locations(element []byte) (fingerprint, uint64, uint64) {
	hi, lo := cf.hasher.Hash128(element, cf.seed)
	fp := fingerprint(hi >> (maxFingerprintBits - cf.fpBits)) // top most fpBits bits
	// Valid fingerprints are non-zero, leaving 0 as the empty slot marker.
	if fp == nullFp {
		fp = 1
	}
	i1 := lo & cf.mask
	return fp, i1, cf.altIndex(fp, i1)
}

// Locations exposes the fingerprint and candidate buckets of element.
func (cf *Filter) Locations(element []byte) Location {
	fp, i1, i2 := cf.locations(element)
	return Location{Fingerprint: uint64(fp), First: i1, Second: i2}
}

func (cf *Filter) bucket(i uint64) bucket {
	start := int(i) * cf.bucketSize
	end := start + cf.bucketSize
	return cf.slots[start:end:end]
}
