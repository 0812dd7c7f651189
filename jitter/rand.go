// Package jitter provides the random sources used to randomize retry
// backoff intervals, kept as a swappable seam so tests can run
// deterministically.
package jitter

import (
	"crypto/rand"
	"encoding/binary"
	"math"
	mathrand "math/rand"
	"sync"
)

// Source produces a random float64 in [0.0, 1.0) for jitter calculations.
type Source interface {
	Float64() float64
}

// CryptoSeeded is a Source seeded from crypto/rand at construction, then
// drawn from with math/rand for speed.
type CryptoSeeded struct {
	mu   sync.Mutex
	rand *mathrand.Rand
}

// NewCryptoSeeded creates a CryptoSeeded source.
func NewCryptoSeeded() *CryptoSeeded {
	return &CryptoSeeded{rand: mathrand.New(mathrand.NewSource(cryptoSeed()))}
}

// Float64 returns a random float64 in [0.0, 1.0).
func (c *CryptoSeeded) Float64() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rand.Float64()
}

func cryptoSeed() int64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0
	}
	return int64(binary.LittleEndian.Uint64(b[:]))
}

// Deterministic is a fixed-seed Source for reproducible tests.
type Deterministic struct {
	rand *mathrand.Rand
}

// NewDeterministic creates a Deterministic source with the given seed.
func NewDeterministic(seed int64) *Deterministic {
	return &Deterministic{rand: mathrand.New(mathrand.NewSource(seed))}
}

// Float64 returns a deterministic random float64 in [0.0, 1.0).
func (d *Deterministic) Float64() float64 {
	return d.rand.Float64()
}

// Fixed always returns the same value; useful for pinning a test to one
// exact backoff duration.
type Fixed struct{ value float64 }

// NewFixed creates a Source that always returns value, clamped to
// [0, 0.9999999999].
func NewFixed(value float64) Fixed {
	return Fixed{value: math.Max(0, math.Min(value, 0.9999999999))}
}

// Float64 returns the fixed value.
func (f Fixed) Float64() float64 { return f.value }
