// Package entropy provides the random numbers behind fire cooldowns, aim
// jitter and spawn variation. A seeded Source replays identically; seed 0
// draws a seed from crypto/rand.
package entropy

import (
	"crypto/rand"
	"encoding/binary"
	mrand "math/rand"
	"sync"
)

// Source is a seeded random source safe for concurrent use.
type Source struct {
	mu   sync.Mutex
	rng  *mrand.Rand
	seed int64
}

// New creates a source. Seed 0 picks a random seed.
func New(seed int64) *Source {
	if seed == 0 {
		seed = int64(cryptoUint64() >> 1)
		if seed == 0 {
			seed = 1
		}
	}
	return &Source{rng: mrand.New(mrand.NewSource(seed)), seed: seed}
}

// Seed returns the effective seed.
func (s *Source) Seed() int64 { return s.seed }

// Float returns a value in [0, 1).
func (s *Source) Float() float64 {
	if s == nil {
		return CryptoFloat()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

// Range returns a value in [lo, hi).
func (s *Source) Range(lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	return lo + s.Float()*(hi-lo)
}

// Intn returns a value in [0, n). n <= 0 returns 0.
func (s *Source) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	if s == nil {
		return int(CryptoFloat() * float64(n))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Intn(n)
}

// Chance returns true with probability p.
func (s *Source) Chance(p float64) bool {
	return s.Float() < p
}

// Fork derives an independent source, so per-agent streams do not shift
// when agents are added or removed.
func (s *Source) Fork(salt int64) *Source {
	return New(s.seed*31 + salt + 1)
}

// CryptoFloat returns a random float using crypto/rand.
func CryptoFloat() float64 {
	// Use only 53 bits for a uniform float64 in [0, 1).
	return float64(cryptoUint64()>>11) / float64(1<<53)
}

func cryptoUint64() uint64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// This should never happen but return a fixed value as a safe default.
		return 1 << 62
	}
	return binary.LittleEndian.Uint64(buf[:])
}
