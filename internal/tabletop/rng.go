package tabletop

import "math/rand/v2"

// RNG abstracts random number generation for deterministic shuffles.
type RNG interface {
	// Intn returns a non-negative random int in [0, n).
	Intn(n int) int
}

type seededRNG struct {
	r *rand.Rand
}

// NewSeededRNG returns an RNG whose sequence is fixed by seed.
func NewSeededRNG(seed uint64) RNG {
	return seededRNG{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (s seededRNG) Intn(n int) int { return s.r.IntN(n) }

type globalRNG struct{}

// DefaultRNG delegates to math/rand/v2 (auto-seeded).
var DefaultRNG RNG = globalRNG{}

func (globalRNG) Intn(n int) int { return rand.IntN(n) }
