// Package merkletree builds binary Merkle trees over pluggable backing
// stores and generates/verifies inclusion proofs, including proofs drawn
// from a level-cache store whose middle levels have been elided and must be
// rebuilt on demand from the base layer.
package merkletree

import (
	"os"

	"github.com/golang/glog"

	"github.com/dignifiedquire/merkle-light/store"
)

// removeFile deletes the file at path, treating "already gone" as success.
func removeFile(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// MerkleTree is a binary Merkle tree bound to one pair of backing stores
// (or, after Compact, one LevelCacheStore covering both roles).
type MerkleTree struct {
	cfg Config

	leavesStore  store.Store
	topHalfStore store.Store
	cacheStore   *store.LevelCacheStore // set once Compact succeeds

	leafs  int // original leaf count, before any odd-level duplication
	height int
	root   []byte
	len    int // total materialized node count
	widths []int
	starts []int // levelStarts(widths), cached for proof-path arithmetic
}

// globalIndex converts a (level, position-within-level) pair into the
// unified, leaves-first node index used by ReadAt and by LevelCacheStore.
func (mt *MerkleTree) globalIndex(level, pos int) int {
	return mt.starts[level] + pos
}

// New builds a tree from raw inputs, hashing each through cfg.Algorithm.Leaf
// before storing it. Equivalent to FromData.
func New(cfg Config, blocks [][]byte) (*MerkleTree, error) {
	return FromData(cfg, blocks)
}

// FromData builds a tree from raw inputs, hashing each block through
// cfg.Algorithm.Leaf.
func FromData(cfg Config, blocks [][]byte) (*MerkleTree, error) {
	cfg.normalize()
	checkBuildPreconditions(cfg, len(blocks))

	leavesStore := store.NewVecStore(len(blocks)+1, cfg.Algorithm.ElementSize())
	if err := hashLeavesInto(cfg, blocks, leavesStore); err != nil {
		return nil, err
	}
	return buildFromLeavesStore(cfg, leavesStore, len(blocks), nil)
}

// FromIter builds a tree from already-hashed leaf elements.
func FromIter(cfg Config, leaves [][]byte) (*MerkleTree, error) {
	cfg.normalize()
	checkBuildPreconditions(cfg, len(leaves))

	leavesStore := store.NewVecStore(len(leaves)+1, cfg.Algorithm.ElementSize())
	for _, l := range leaves {
		if err := leavesStore.Push(l); err != nil {
			return nil, err
		}
	}
	return buildFromLeavesStore(cfg, leavesStore, len(leaves), nil)
}

// FromParIter is FromData with cfg.RunInParallel set, mirroring a rayon
// par_iter source in the original design: Go has no parallel iterator
// primitive, so this simply routes leaf hashing and tree build through the
// parallel paths FromData takes when RunInParallel is set. Trees below the
// small-tree threshold still use the whole-level fast path.
func FromParIter(cfg Config, blocks [][]byte) (*MerkleTree, error) {
	cfg.RunInParallel = true
	return FromData(cfg, blocks)
}

// FromByteSlice builds a tree from a byte slice of concatenated raw leaf
// inputs, each cfg.Algorithm.ElementSize() bytes wide, hashing each chunk
// through cfg.Algorithm.Leaf exactly as FromData does.
func FromByteSlice(cfg Config, data []byte) (*MerkleTree, error) {
	cfg.normalize()
	width := cfg.Algorithm.ElementSize()
	if width == 0 || len(data)%width != 0 {
		panic("merkletree: byte slice length is not a multiple of the element width")
	}
	n := len(data) / width
	blocks := make([][]byte, n)
	for i := 0; i < n; i++ {
		blocks[i] = data[i*width : (i+1)*width]
	}
	return FromData(cfg, blocks)
}

// FromDataWithStore builds a tree from raw inputs using caller-provided,
// already-allocated stores instead of allocating fresh in-memory ones.
// leavesStore and topHalfStore must have sufficient capacity for the padded
// leaf count and the internal node count respectively.
func FromDataWithStore(cfg Config, blocks [][]byte, leavesStore, topHalfStore store.Store) (*MerkleTree, error) {
	cfg.normalize()
	checkBuildPreconditions(cfg, len(blocks))
	if err := hashLeavesInto(cfg, blocks, leavesStore); err != nil {
		return nil, err
	}
	return buildFromLeavesStore(cfg, leavesStore, len(blocks), topHalfStore)
}

// FromDataWithConfig builds a tree from raw inputs, persisting both stores
// to disk under storeCfg rather than allocating in-memory vectors. Passing
// a nil storeCfg is equivalent to FromData.
func FromDataWithConfig(cfg Config, blocks [][]byte, storeCfg *store.StoreConfig) (*MerkleTree, error) {
	if storeCfg == nil {
		return FromData(cfg, blocks)
	}
	cfg.normalize()
	checkBuildPreconditions(cfg, len(blocks))

	width := cfg.Algorithm.ElementSize()
	widths := levelWidths(len(blocks))
	leavesCap := widths[0]
	topCap := levelStarts(widths)[len(widths)] - widths[0]

	leavesStore, err := store.NewDiskStore(storeCfg.DataPath()+"-leaves", leavesCap, width)
	if err != nil {
		return nil, err
	}
	topStore, err := store.NewDiskStore(storeCfg.DataPath()+"-top", topCap, width)
	if err != nil {
		return nil, err
	}
	if err := hashLeavesInto(cfg, blocks, leavesStore); err != nil {
		return nil, err
	}
	return buildFromLeavesStore(cfg, leavesStore, len(blocks), topStore)
}

// FromDataStore builds only the internal levels of a tree whose leaf level
// has already been written (and hashed) into leavesStore by the caller.
func FromDataStore(cfg Config, leavesStore store.Store, leafCount int) (*MerkleTree, error) {
	cfg.normalize()
	checkBuildPreconditions(cfg, leafCount)
	return buildFromLeavesStore(cfg, leavesStore, leafCount, nil)
}

func checkBuildPreconditions(cfg Config, n int) {
	if cfg.Algorithm == nil {
		panic("merkletree: Config.Algorithm is required")
	}
	if n < 2 {
		panic(errNotEnoughLeaves(n))
	}
}

func hashLeavesInto(cfg Config, blocks [][]byte, leavesStore store.Store) error {
	if cfg.RunInParallel && len(blocks) >= cfg.SmallTreeThreshold {
		return hashLeavesParallel(cfg, blocks, leavesStore)
	}
	for _, b := range blocks {
		h, err := cfg.Algorithm.Leaf(b)
		if err != nil {
			return err
		}
		if err := leavesStore.Push(h); err != nil {
			return err
		}
	}
	return nil
}

func hashLeavesParallel(cfg Config, blocks [][]byte, leavesStore store.Store) error {
	width := cfg.Algorithm.ElementSize()
	out := make([][]byte, len(blocks))
	numRoutines := cfg.NumRoutines
	if numRoutines > len(blocks) {
		numRoutines = len(blocks)
	}
	errs := make([]error, numRoutines)
	done := make(chan struct{}, numRoutines)
	for w := 0; w < numRoutines; w++ {
		go func(w int) {
			defer func() { done <- struct{}{} }()
			for i := w; i < len(blocks); i += numRoutines {
				h, err := cfg.Algorithm.Leaf(blocks[i])
				if err != nil {
					errs[w] = err
					return
				}
				out[i] = h
			}
		}(w)
	}
	for w := 0; w < numRoutines; w++ {
		<-done
	}
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	buf := make([]byte, len(out)*width)
	for i, h := range out {
		copy(buf[i*width:(i+1)*width], h)
	}
	return leavesStore.WriteRange(buf, 0)
}

// buildFromLeavesStore runs the level-by-level build algorithm of
// SPEC_FULL.md §5.3 over a leavesStore already holding leafCount hashed
// leaves, allocating topHalfStore if the caller didn't supply one.
func buildFromLeavesStore(cfg Config, leavesStore store.Store, leafCount int, topHalfStore store.Store) (*MerkleTree, error) {
	widths := levelWidths(leafCount)
	width := cfg.Algorithm.ElementSize()
	totalInternal := levelStarts(widths)[len(widths)] - widths[0]

	if topHalfStore == nil {
		topHalfStore = store.NewVecStore(totalInternal+1, width)
	}

	mt := &MerkleTree{
		cfg:          cfg,
		leavesStore:  leavesStore,
		topHalfStore: topHalfStore,
		leafs:        leafCount,
		height:       len(widths),
		widths:       widths,
		starts:       levelStarts(widths),
	}

	// Level 0: duplicate the last leaf if the raw leaf count is odd.
	if err := mt.duplicateLastIfOdd(leavesStore, leafCount, widths[0]); err != nil {
		return nil, err
	}

	if leafCount < cfg.SmallTreeThreshold || !cfg.RunInParallel {
		if err := mt.buildSequential(); err != nil {
			return nil, err
		}
	} else {
		if err := mt.buildParallel(); err != nil {
			return nil, err
		}
	}

	root, err := mt.topHalfStore.ReadAt(mt.topHalfStore.Len() - 1)
	if err != nil {
		return nil, err
	}
	mt.root = root
	mt.len = mt.leavesStore.Len() + mt.topHalfStore.Len()
	return mt, nil
}

// duplicateLastIfOdd grows s from rawWidth to wantWidth (rawWidth+1) by
// duplicating the element at rawWidth-1, if wantWidth calls for it.
func (mt *MerkleTree) duplicateLastIfOdd(s store.Store, rawWidth, wantWidth int) error {
	if wantWidth == rawWidth {
		return nil
	}
	last, err := s.ReadAt(rawWidth - 1)
	if err != nil {
		return err
	}
	return s.Push(last)
}

// buildSequential runs the level-by-level build without chunked dispatch:
// used both for the explicit non-parallel configuration and for the
// small-tree fast path, which reads a whole level at once and hashes its
// pairs with a plain parallel map instead of lock-guarded chunks.
func (mt *MerkleTree) buildSequential() error {
	localStarts := levelStarts(mt.widths[1:])
	for level := 1; level < mt.height; level++ {
		var source store.Store
		var sourceOffset int
		if level == 1 {
			source = mt.leavesStore
			sourceOffset = 0
		} else {
			source = mt.topHalfStore
			sourceOffset = localStarts[level-2]
		}
		sourceWidth := mt.widths[level-1]
		destOffset := localStarts[level-1]

		children, err := source.ReadRange(sourceOffset, sourceOffset+sourceWidth)
		if err != nil {
			return err
		}
		numRoutines := mt.cfg.NumRoutines
		if !mt.cfg.RunInParallel {
			numRoutines = 1
		}
		parents, err := parallelMapPairs(mt.cfg.Algorithm, children, level, numRoutines)
		if err != nil {
			return err
		}
		for _, p := range parents {
			if err := mt.topHalfStore.Push(p); err != nil {
				return err
			}
		}
		rawWidth := sourceWidth / 2
		if err := mt.duplicateLastIfOdd(mt.topHalfStore, destOffset+rawWidth, destOffset+mt.widths[level]); err != nil {
			return err
		}
	}
	return nil
}

// buildParallel runs the chunked parallel dispatch path of SPEC_FULL.md
// §5.3/§6 for trees at or above the small-tree threshold.
func (mt *MerkleTree) buildParallel() error {
	glog.V(2).Infof("merkletree: building %d leaves with chunked parallel dispatch", mt.leafs)
	localStarts := levelStarts(mt.widths[1:])
	lockedLeaves := newLockedStore(mt.leavesStore)
	lockedTop := newLockedStore(mt.topHalfStore)

	for level := 1; level < mt.height; level++ {
		var source *lockedStore
		var sourceOffset int
		if level == 1 {
			source = lockedLeaves
			sourceOffset = 0
		} else {
			source = lockedTop
			sourceOffset = localStarts[level-2]
		}
		sourceWidth := mt.widths[level-1]
		destOffset := localStarts[level-1]
		pairs := sourceWidth / 2

		if err := dispatchChunks(mt.cfg.Algorithm, source, lockedTop, sourceOffset, destOffset, pairs, level, mt.cfg.ChunkSize, mt.cfg.NumRoutines); err != nil {
			return err
		}
		if err := mt.duplicateLastIfOdd(mt.topHalfStore, destOffset+pairs, destOffset+mt.widths[level]); err != nil {
			return err
		}
	}
	return nil
}

// Root returns the tree's cached root digest.
func (mt *MerkleTree) Root() []byte { return mt.root }

// Len returns the total number of materialized nodes, leaves included.
func (mt *MerkleTree) Len() int { return mt.len }

// IsEmpty reports whether the tree has no materialized nodes.
func (mt *MerkleTree) IsEmpty() bool { return mt.len == 0 }

// Height returns the number of levels, leaves counted as level 0.
func (mt *MerkleTree) Height() int { return mt.height }

// Leafs returns the original leaf count, before any odd-level duplication.
func (mt *MerkleTree) Leafs() int { return mt.leafs }

// ReadAt returns a copy of the element at the given global index, where
// indices run leaves-first, bottom-up, left-to-right, root last.
func (mt *MerkleTree) ReadAt(i int) ([]byte, error) {
	if mt.cacheStore != nil {
		return mt.cacheStore.ReadAt(i)
	}
	if i < mt.leavesStore.Len() {
		return mt.leavesStore.ReadAt(i)
	}
	return mt.topHalfStore.ReadAt(i - mt.leavesStore.Len())
}

// ReadInto copies the element at the given global index into buf.
func (mt *MerkleTree) ReadInto(i int, buf []byte) error {
	if mt.cacheStore != nil {
		return mt.cacheStore.ReadInto(i, buf)
	}
	if i < mt.leavesStore.Len() {
		return mt.leavesStore.ReadInto(i, buf)
	}
	return mt.topHalfStore.ReadInto(i-mt.leavesStore.Len(), buf)
}

// ReadRange returns copies of the elements in the global index range
// [lo, hi).
func (mt *MerkleTree) ReadRange(lo, hi int) ([][]byte, error) {
	if mt.cacheStore != nil {
		return mt.cacheStore.ReadRange(lo, hi)
	}
	split := mt.leavesStore.Len()
	if hi <= split {
		return mt.leavesStore.ReadRange(lo, hi)
	}
	if lo >= split {
		return mt.topHalfStore.ReadRange(lo-split, hi-split)
	}
	left, err := mt.leavesStore.ReadRange(lo, split)
	if err != nil {
		return nil, err
	}
	right, err := mt.topHalfStore.ReadRange(0, hi-split)
	if err != nil {
		return nil, err
	}
	return append(left, right...), nil
}

// TryOffloadStore offloads every inner store's memory mapping, if any.
// Root(), ReadAt, and GenProof all transparently reload as needed.
func (mt *MerkleTree) TryOffloadStore() error {
	if mt.cacheStore != nil {
		_, err := mt.cacheStore.TryOffload()
		return err
	}
	if _, err := mt.leavesStore.TryOffload(); err != nil {
		return err
	}
	_, err := mt.topHalfStore.TryOffload()
	return err
}

// Delete removes the tree's backing files, if any (DiskStore, MmapStore
// anonymous mappings have nothing on disk to remove). In-memory stores are
// simply dropped when the tree is garbage collected.
func (mt *MerkleTree) Delete() error {
	type closer interface{ Close() error }
	type pather interface{ Path() string }

	remove := func(s store.Store) error {
		if p, ok := s.(pather); ok {
			if err := removeFile(p.Path()); err != nil {
				return err
			}
		}
		if c, ok := s.(closer); ok {
			return c.Close()
		}
		return nil
	}
	if mt.cacheStore != nil {
		return remove(mt.cacheStore)
	}
	if err := remove(mt.leavesStore); err != nil {
		return err
	}
	return remove(mt.topHalfStore)
}
