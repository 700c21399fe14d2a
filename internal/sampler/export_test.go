package sampler

import "math/rand/v2"

// NewWithSeed builds a Sampler with a deterministic RNG, for reproducible
// tests.
func NewWithSeed(interval uint64, seed1, seed2 uint64) *Sampler {
	return newWithRand(interval, rand.New(rand.NewPCG(seed1, seed2)))
}
