package cuckoo

type fingerprint uint64

// nullFp marks an empty slot. Fingerprints are never zero.
const nullFp fingerprint = 0

// bucket is a view over the bucketSize consecutive slots of one bucket.
type bucket []fingerprint

// insert a fingerprint into the first empty slot. Returns true if there was
// enough space. The same fingerprint may be inserted more than once.
func (b bucket) insert(fp fingerprint) bool {
	for i, e := range b {
		if e == nullFp {
			b[i] = fp
			return true
		}
	}
	return false
}

// delete one copy of a fingerprint from a bucket.
// Returns true if the fingerprint was present and removed.
func (b bucket) delete(fp fingerprint) bool {
	for i, e := range b {
		if e == fp {
			b[i] = nullFp
			return true
		}
	}
	return false
}

func (b bucket) contains(needle fingerprint) bool {
	for _, e := range b {
		if e == needle {
			return true
		}
	}
	return false
}

func (b bucket) occupied() int {
	n := 0
	for _, e := range b {
		if e != nullFp {
			n++
		}
	}
	return n
}
