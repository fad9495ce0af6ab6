package testutil

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// Point is a block coordinate.
type Point struct {
	X, Y, Z int
}

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Uint64 returns a pseudo-random uint64.
func (r *RNG) Uint64() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Uint64()
}

// Range returns a pseudo-random number in [minVal, maxVal).
func (r *RNG) Range(minVal, maxVal int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return minVal + r.rand.Intn(maxVal-minVal)
}

// Bytes returns n pseudo-random bytes.
func (r *RNG) Bytes(n int) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	b := make([]byte, n)
	_, _ = r.rand.Read(b)
	return b
}

// Points returns num distinct block coordinates with x and z in
// [minXZ, maxXZ) and y in [minY, maxY).
func (r *RNG) Points(num, minXZ, maxXZ, minY, maxY int) []Point {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[Point]struct{}, num)
	out := make([]Point, 0, num)
	for len(out) < num {
		p := Point{
			X: minXZ + r.rand.Intn(maxXZ-minXZ),
			Y: minY + r.rand.Intn(maxY-minY),
			Z: minXZ + r.rand.Intn(maxXZ-minXZ),
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

// Zipf returns a Zipfian-distributed value in [0, n).
// Uses Zipf's law: P(k) ∝ 1/k^s where s is the skew parameter.
// Handy for hot-shard access patterns.
func (r *RNG) Zipf(n int, s float64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.zipfLocked(n, s)
}

// zipfLocked is the internal implementation (caller must hold lock).
func (r *RNG) zipfLocked(n int, s float64) int {
	if n <= 1 {
		return 0
	}

	var hns float64
	for i := 1; i <= n; i++ {
		hns += 1.0 / math.Pow(float64(i), s)
	}

	u := r.rand.Float64() * hns
	var cumulative float64
	for k := 1; k <= n; k++ {
		cumulative += 1.0 / math.Pow(float64(k), s)
		if u <= cumulative {
			return k - 1
		}
	}

	return n - 1
}

// Clock is a manually advanced time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a Clock starting at start.
func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
