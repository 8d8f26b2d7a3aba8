// Package hashfn provides the key-to-64-bit-integer hash adapters
// behind splitlist's mandatory Hash construction option.
package hashfn

import (
	"github.com/cespare/xxhash/v2"
	"github.com/dchest/siphash"
)

// Hasher maps a byte-encoded key to a 64-bit hash. Callers encode
// their key type into bytes (e.g. via binary.Write or a Stringer)
// before calling Sum64, keeping the package type-agnostic.
type Hasher interface {
	Sum64(key []byte) uint64
}

// XXHash is the default hash adapter: fast, good avalanche, no
// seeding needed for ordinary (non-adversarial) workloads.
type XXHash struct{}

func (XXHash) Sum64(key []byte) uint64 { return xxhash.Sum64(key) }

// SipHash is a keyed hash adapter, for deployments that want
// hash-flooding resistance: a table seeded with its own 128-bit key
// gives an attacker no stable bucket layout to aim collisions at.
type SipHash struct {
	k0, k1 uint64
}

// NewSipHash builds a keyed hasher from an explicit 128-bit key, for
// callers that want reproducible hashing (tests, replay) despite the
// DoS-resistant construction.
func NewSipHash(k0, k1 uint64) SipHash {
	return SipHash{k0: k0, k1: k1}
}

func (s SipHash) Sum64(key []byte) uint64 {
	return siphash.Hash(s.k0, s.k1, key)
}

// Default returns the hasher callers reach for when they have no
// seeding requirement. splitlist itself has no default: its Hash
// option is mandatory.
func Default() Hasher { return XXHash{} }
