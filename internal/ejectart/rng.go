package ejectart

import (
	"math"
	"math/rand"
)

// NewStream returns an independent RNG stream for one worker, seeded
// from the global run seed XOR'd with its rank and thread id so that
// concurrent workers never share a stream, and a given (seed, rank,
// thread) always reproduces the same sequence.
func NewStream(globalSeed int64, rank, threadID int) *rand.Rand {
	seed := globalSeed ^ int64(rank) ^ (int64(threadID) << 32)
	src := rand.NewSource(seed)
	r := rand.New(src)
	// Advance past an initial warm-up so streams with nearby seeds
	// decorrelate quickly.
	for i := 0; i < 64; i++ {
		r.Float64()
	}
	return r
}

// sampleTau draws a random optical depth target, tau = -ln(U),
// U uniform in (0,1].
func sampleTau(rng *rand.Rand) Real {
	u := rng.Float64()
	for u <= 0 {
		u = rng.Float64()
	}
	return -math.Log(u)
}
