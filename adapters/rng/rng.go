package rng

import (
	"context"
	"math/rand"
)

// DeterministicRNG implements ports.RNGPort with hash-derived seeds so the
// same (run, stage, key) triple always yields the same stream.
type DeterministicRNG struct{}

// New creates a deterministic RNG adapter
func New() *DeterministicRNG {
	return &DeterministicRNG{}
}

// SeededStream creates a deterministic random number generator for a named operation
func (r *DeterministicRNG) SeededStream(ctx context.Context, name string, seed int64) (*rand.Rand, error) {
	return rand.New(rand.NewSource(deriveSeed(seed, name))), nil
}

// Stream creates a deterministic RNG stream for a specific run/stage/key
func (r *DeterministicRNG) Stream(ctx context.Context, runID, stageName, key string, baseSeed int64) (*rand.Rand, error) {
	return rand.New(rand.NewSource(deriveSeed(baseSeed, runID, stageName, key))), nil
}

// deriveSeed folds every component and the base seed into one djb2 hash
// state, separators included. Summing per-component hashes instead would
// let distinct (key, seed) pairs collide on the same stream.
func deriveSeed(base int64, parts ...string) int64 {
	var hash uint64 = 5381
	for _, p := range parts {
		for _, c := range p {
			hash = ((hash << 5) + hash) + uint64(c)
		}
		hash = ((hash << 5) + hash) + '|'
	}
	for i := 0; i < 8; i++ {
		hash = ((hash << 5) + hash) + uint64(byte(base>>(8*i)))
	}
	return int64(hash)
}
