package merkletree

import (
	"runtime"

	"github.com/dignifiedquire/merkle-light/algorithm"
)

const (
	// DefaultChunkSize is the reference number of node pairs processed per
	// chunk during parallel dispatch, chosen to amortize lock acquisition
	// on the top-half store.
	DefaultChunkSize = 1024
	// SmallTreeBuildThreshold is the leaf count below which the builder
	// uses the whole-level fast path instead of chunked dispatch.
	SmallTreeBuildThreshold = 1 << 12
)

// Config configures a MerkleTree build, mirroring the shape of the
// teacher's Config struct (parallelism knobs held alongside the hash
// algorithm) generalized to this spec's store-backed tree.
type Config struct {
	// Algorithm hashes leaves and nodes. Required; New panics if nil, the
	// same programmer-contract treatment as an invalid leaf count.
	Algorithm algorithm.Algorithm
	// RunInParallel selects the chunked parallel dispatch path for trees
	// at or above SmallTreeThreshold leaves.
	RunInParallel bool
	// NumRoutines is the number of worker-pool goroutines used when
	// RunInParallel is set. Zero means runtime.NumCPU().
	NumRoutines int
	// ChunkSize is the number of node pairs processed per dispatched chunk.
	// Zero means DefaultChunkSize.
	ChunkSize int
	// SmallTreeThreshold overrides SmallTreeBuildThreshold. Zero means the
	// default.
	SmallTreeThreshold int
}

func (c *Config) normalize() {
	if c.NumRoutines <= 0 {
		c.NumRoutines = runtime.NumCPU()
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.SmallTreeThreshold <= 0 {
		c.SmallTreeThreshold = SmallTreeBuildThreshold
	}
}
