package rank

import (
	"math/rand/v2"
	"time"
)

// Source is the uniform-draw capability the sampler needs. A
// *math/rand/v2.Rand satisfies it.
type Source interface {
	// Float64 returns a uniform value in [0, 1).
	Float64() float64
	// IntN returns a uniform value in [0, n).
	IntN(n int) int
}

// NewSource returns a PCG-backed Source. A seed of zero seeds from the
// clock, so runs are reproducible only when a non-zero seed is given.
func NewSource(seed uint64) Source {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}
