package model

// Fingerprint is the position-independent content digest of a transaction.
// It is used for duplicate detection across imports, never as a key.
type Fingerprint string

// FingerprintSet is a set of fingerprints already known to a store.
type FingerprintSet map[Fingerprint]struct{}

// NewFingerprintSet returns a set holding fps.
func NewFingerprintSet(fps ...Fingerprint) FingerprintSet {
	s := make(FingerprintSet, len(fps))
	for _, fp := range fps {
		s[fp] = struct{}{}
	}
	return s
}

// Has reports whether fp is in the set.
func (s FingerprintSet) Has(fp Fingerprint) bool {
	_, ok := s[fp]
	return ok
}

// Add inserts fp.
func (s FingerprintSet) Add(fp Fingerprint) {
	s[fp] = struct{}{}
}

// Clone returns an independent copy. A nil set clones to an empty one.
func (s FingerprintSet) Clone() FingerprintSet {
	c := make(FingerprintSet, len(s))
	for fp := range s {
		c[fp] = struct{}{}
	}
	return c
}
