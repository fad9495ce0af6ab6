// Package testutil provides testing utilities for gridstore.
//
// This package is intended for use in tests and benchmarks only.
// It provides a seeded, goroutine-safe RNG for generating coordinates and
// payloads, and a manually advanced clock for idle-time accounting.
//
//	rng := testutil.NewRNG(seed)
//	pts := rng.Points(100, -512, 512, 0, 256)
//
//	clock := testutil.NewClock(time.Unix(0, 0))
//	store, _ := gridstore.Open(io, adapter, gridstore.WithClock(clock.Now))
//	clock.Advance(10 * time.Second)
package testutil
