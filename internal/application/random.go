package application

import (
	"math/rand/v2"
	"sync"
)

// Random is the source of every simulated value: progress increments,
// threat counts, names and placeholder file sizes.
type Random interface {
	// Float64 returns a value in [0.0, 1.0).
	Float64() float64
	// IntN returns a value in [0, n). n must be > 0.
	IntN(n int) int
}

// lockedRand serializes access to a *rand.Rand so one source can be shared
// between sessions.
type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewRandom returns a Random seeded with seed. A zero seed picks a random one.
func NewRandom(seed uint64) Random {
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &lockedRand{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (l *lockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

func (l *lockedRand) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.IntN(n)
}
