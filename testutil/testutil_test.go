package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPoints_DistinctAndInRange(t *testing.T) {
	rng := NewRNG(4711)

	pts := rng.Points(200, -64, 64, 0, 32)

	assert.Len(t, pts, 200)
	seen := make(map[Point]struct{})
	for _, p := range pts {
		assert.GreaterOrEqual(t, p.X, -64)
		assert.Less(t, p.X, 64)
		assert.GreaterOrEqual(t, p.Y, 0)
		assert.Less(t, p.Y, 32)
		seen[p] = struct{}{}
	}
	assert.Len(t, seen, 200)
}

func TestRNG_Reset(t *testing.T) {
	rng := NewRNG(7)
	a := rng.Uint64()
	rng.Reset()
	assert.Equal(t, a, rng.Uint64())
	assert.Equal(t, int64(7), rng.Seed())
}

func TestZipf_Skew(t *testing.T) {
	rng := NewRNG(1)
	counts := make([]int, 10)
	for i := 0; i < 2000; i++ {
		counts[rng.Zipf(10, 1.5)]++
	}
	assert.Greater(t, counts[0], counts[9])
}

func TestClock_Advance(t *testing.T) {
	start := time.Unix(100, 0)
	c := NewClock(start)
	c.Advance(5 * time.Second)
	assert.Equal(t, start.Add(5*time.Second), c.Now())
}
