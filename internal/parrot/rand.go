package parrot

import (
	"math/rand/v2"
	"time"
)

// Rand is the random source threaded through every randomized decision.
// *rand.Rand from math/rand/v2 satisfies it.
type Rand interface {
	Float64() float64
	IntN(n int) int
	Int64N(n int64) int64
}

// NewRand returns a PCG-backed source. A zero seed picks a random one.
func NewRand(seed uint64) *rand.Rand {
	if seed == 0 {
		seed = rand.Uint64()
	}
	return rand.New(rand.NewPCG(seed, seed^0x6a09e667f3bcc909))
}

// prob reports success of a Bernoulli trial with probability p.
func prob(rng Rand, p float64) bool {
	return rng.Float64() < p
}

// between draws a duration uniformly from [lo, hi).
func between(rng Rand, lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(rng.Int64N(int64(hi-lo)))
}
