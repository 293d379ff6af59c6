package game

import (
	"math/rand"
	"sync"
	"time"
)

// Rand is the only source of randomness in the server: turn assignment at the start of
// shooting and id allocation. Tests inject a fixed sequence.
type Rand interface {
	Intn(n int) int
}

// lockedRand makes a *rand.Rand safe for the few callers outside the processing loop.
type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewRand returns a seeded Rand. A zero seed uses the clock.
func NewRand(seed int64) Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &lockedRand{r: rand.New(rand.NewSource(seed))}
}

func (l *lockedRand) Intn(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Intn(n)
}

const (
	minID = 1000
	maxID = 1 << 20
)

// NewID draws an unused id from [1000, 2^20).
func NewID(rng Rand, taken func(id int) bool) int {
	for {
		id := minID + rng.Intn(maxID-minID)
		if !taken(id) {
			return id
		}
	}
}
