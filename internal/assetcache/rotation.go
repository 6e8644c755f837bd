package assetcache

import (
	"math/rand/v2"
	"sync"
)

// Rotation holds the per-run round-robin position of every category and the
// run's seeded random source. It is safe for concurrent use.
type Rotation struct {
	mu   sync.Mutex
	last map[string]int
	rng  *rand.Rand
}

// NewRotation starts a rotation with every category at position -1. A fixed
// seed makes decorrelation factors reproducible.
func NewRotation(seed int64) *Rotation {
	return &Rotation{
		last: make(map[string]int),
		rng:  rand.New(rand.NewPCG(uint64(seed), 0x666f6c6579)),
	}
}

// Next advances category over count files and returns the chosen position.
func (r *Rotation) Next(category string, count int) int {
	if count <= 0 {
		return -1
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	last, ok := r.last[category]
	if !ok {
		last = -1
	}
	next := (last + 1) % count
	r.last[category] = next
	return next
}

// Set records position as the last one used for category.
func (r *Rotation) Set(category string, position int) {
	r.mu.Lock()
	r.last[category] = position
	r.mu.Unlock()
}

// Last returns the last position used for category, or -1.
func (r *Rotation) Last(category string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if last, ok := r.last[category]; ok {
		return last
	}
	return -1
}

// Factor draws a speed factor uniformly from [1-deviation, 1+deviation].
func (r *Rotation) Factor(deviation float64) float64 {
	if deviation <= 0 {
		return 1
	}
	r.mu.Lock()
	u := r.rng.Float64()
	r.mu.Unlock()
	return 1 + (2*u-1)*deviation
}
