package utils

import (
	"math/rand"
)

// RandSource is a seeded pseudo-random source. The same seed always yields
// the same sequence, independent of process, goroutine or call order.
type RandSource struct {
	rng *rand.Rand
}

// NewRandSource creates a new random source with the given seed
func NewRandSource(seed int64) *RandSource {
	return &RandSource{
		rng: rand.New(rand.NewSource(seed)),
	}
}

// Float64 returns a random float64 in [0.0, 1.0)
func (r *RandSource) Float64() float64 {
	return r.rng.Float64()
}

// Intn returns a random int in [0, n)
func (r *RandSource) Intn(n int) int {
	return r.rng.Intn(n)
}

// Mix64 is the SplitMix64 finalizer. It spreads nearby inputs (seed 1 vs 2,
// key 10 vs 11) across the whole 64-bit range.
func Mix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}

// DeriveSeed combines a problem seed with a configuration key into a new seed.
func DeriveSeed(seed int64, key int) int64 {
	h := Mix64(uint64(seed))
	h = Mix64(h ^ uint64(key))
	// rand.NewSource only uses the low 63 bits meaningfully
	return int64(h & (1<<63 - 1))
}

// RunIndex selects one of n repeated runs for (seed, key). It is a pure
// function of its arguments.
func RunIndex(seed int64, key int, n int) int {
	if n <= 1 {
		return 0
	}
	return NewRandSource(DeriveSeed(seed, key)).Intn(n)
}
