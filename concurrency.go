package merkletree

import (
	"sync"

	"github.com/golang/glog"
	"github.com/txaty/gool"

	"github.com/dignifiedquire/merkle-light/algorithm"
	"github.com/dignifiedquire/merkle-light/store"
)

// lockedStore guards a store.Store with a single read-write lock, acquired
// once per chunk of work rather than once per element, per the concurrency
// model in SPEC_FULL.md §6. Multi-reader concurrency is permitted; writers
// take priority by virtue of sync.RWMutex's own starvation avoidance.
type lockedStore struct {
	mu sync.RWMutex
	s  store.Store
}

func newLockedStore(s store.Store) *lockedStore {
	return &lockedStore{s: s}
}

func (ls *lockedStore) readRange(lo, hi int) ([][]byte, error) {
	ls.mu.RLock()
	defer ls.mu.RUnlock()
	return ls.s.ReadRange(lo, hi)
}

func (ls *lockedStore) writeRange(data []byte, start int) error {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return ls.s.WriteRange(data, start)
}

// chunkArgs is the universal argument struct passed to every worker-pool
// handler in this package, the same "one struct, many handlers" shape the
// teacher uses to avoid interface-conversion overhead in the pool.
type chunkArgs struct {
	alg          algorithm.Algorithm
	source, dest *lockedStore
	sourceOffset int
	destOffset   int
	chunkStart   int
	chunkPairs   int
	level        int
}

// buildChunkHandler hashes chunkPairs sibling pairs starting at chunkStart
// within one level and writes the resulting parents into dest.
func buildChunkHandler(a chunkArgs) error {
	width := a.alg.ElementSize()
	lo := a.sourceOffset + 2*a.chunkStart
	hi := lo + 2*a.chunkPairs
	children, err := a.source.readRange(lo, hi)
	if err != nil {
		return err
	}
	out := make([]byte, a.chunkPairs*width)
	for i := 0; i < a.chunkPairs; i++ {
		parent, err := a.alg.Node(children[2*i], children[2*i+1], nodeLevelForHeight(a.level))
		if err != nil {
			return err
		}
		copy(out[i*width:(i+1)*width], parent)
	}
	return a.dest.writeRange(out, a.destOffset+a.chunkStart)
}

// dispatchChunks splits pairs pairs of level-(level-1) elements, starting at
// sourceOffset in source, into chunks of chunkSize and hashes them into
// dest starting at destOffset, using a gool worker pool sized numRoutines.
// Chunks may run and write in any order; the caller must not read dest's
// new level until dispatchChunks returns.
func dispatchChunks(alg algorithm.Algorithm, source, dest *lockedStore, sourceOffset, destOffset, pairs, level, chunkSize, numRoutines int) error {
	if pairs == 0 {
		return nil
	}
	nChunks := (pairs + chunkSize - 1) / chunkSize
	if numRoutines > nChunks {
		numRoutines = nChunks
	}
	if numRoutines < 1 {
		numRoutines = 1
	}
	pool := gool.NewPool[chunkArgs, error](numRoutines, 0)
	defer pool.Close()

	argList := make([]chunkArgs, nChunks)
	for c := 0; c < nChunks; c++ {
		start := c * chunkSize
		n := chunkSize
		if start+n > pairs {
			n = pairs - start
		}
		argList[c] = chunkArgs{
			alg:          alg,
			source:       source,
			dest:         dest,
			sourceOffset: sourceOffset,
			destOffset:   destOffset,
			chunkStart:   start,
			chunkPairs:   n,
			level:        level,
		}
	}
	glog.V(2).Infof("merkletree: dispatching %d chunks of <=%d pairs across %d routines for level %d", nChunks, chunkSize, numRoutines, level)
	errs := pool.Map(buildChunkHandler, argList)
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// parallelMapPairs is the small-tree fast path's hashing step: the whole
// level is already resident in memory, so pairs are hashed with a plain
// goroutine fan-out (no store locking, since nothing is shared) and pushed
// sequentially afterward.
func parallelMapPairs(alg algorithm.Algorithm, children [][]byte, level, numRoutines int) ([][]byte, error) {
	pairs := len(children) / 2
	out := make([][]byte, pairs)
	if pairs == 0 {
		return out, nil
	}
	if numRoutines > pairs {
		numRoutines = pairs
	}
	if numRoutines < 1 {
		numRoutines = 1
	}
	var wg sync.WaitGroup
	errs := make([]error, numRoutines)
	childLevel := nodeLevelForHeight(level)
	for w := 0; w < numRoutines; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := w; i < pairs; i += numRoutines {
				parent, err := alg.Node(children[2*i], children[2*i+1], childLevel)
				if err != nil {
					errs[w] = err
					return
				}
				out[i] = parent
			}
		}(w)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
