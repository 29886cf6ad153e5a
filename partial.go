package merkletree

import "github.com/dignifiedquire/merkle-light/algorithm"

// PartialTree is a transient in-memory subtree over one aligned segment of
// the base layer, built to answer proofs against a LevelCacheStore whose
// middle levels were elided by compaction. It holds every level of that
// segment, leaves included, the same flat per-level layout the teacher
// keeps for a fully built tree, sized down to just the reconstructed span.
type PartialTree struct {
	alignedStart int // global leaf index where this segment begins
	span         int // number of leaves covered; a power of two unless clamped to the base layer's width
	levels       [][][]byte
}

// Covers reports whether leaf i falls inside this partial tree's aligned
// segment, letting a caller reuse it across proofs instead of rebuilding.
func (pt *PartialTree) Covers(i int) bool {
	return i >= pt.alignedStart && i < pt.alignedStart+pt.span
}

// buildPartialTree runs the single-threaded fast-path build of
// SPEC_FULL.md §5.3 over an already-hashed leaf segment, producing every
// intermediate level instead of discarding them, since partial-tree proofs
// need to read sibling digests back out of the middle.
func buildPartialTree(alg algorithm.Algorithm, leaves [][]byte, alignedStart int) (*PartialTree, error) {
	widths := levelWidths(len(leaves))
	levels := make([][][]byte, len(widths))

	cur := make([][]byte, len(leaves))
	copy(cur, leaves)
	if len(cur) < widths[0] {
		cur = append(cur, cur[len(cur)-1])
	}
	levels[0] = cur

	for level := 1; level < len(widths); level++ {
		parents, err := parallelMapPairs(alg, levels[level-1], level, 1)
		if err != nil {
			return nil, err
		}
		if len(parents) < widths[level] {
			parents = append(parents, parents[len(parents)-1])
		}
		levels[level] = parents
	}
	return &PartialTree{alignedStart: alignedStart, span: len(leaves), levels: levels}, nil
}

func (pt *PartialTree) readAt(level, pos int) []byte { return pt.levels[level][pos] }

// GenProofAndPartialTree answers a proof for leaf i against a tree whose
// middle levels (below the cached top k levels) have been elided, per
// SPEC_FULL.md §5.3: it rebuilds the minimal subtree spanning i's aligned
// segment of the base layer, draws the low-level siblings from it, and
// draws the remaining siblings directly from the tree's cached or unified
// store. The partial tree is returned so proofs for other leaves in the
// same segment can reuse it via GenProofWithPartialTree.
func (mt *MerkleTree) GenProofAndPartialTree(i, cachedLevels int) (*Proof, *PartialTree, error) {
	if i < 0 || i >= mt.leafs {
		return nil, nil, errOutOfBounds(i, mt.leafs)
	}
	firstCachedLevel := clampFirstCachedLevel(mt.height, cachedLevels)
	span := 1 << uint(firstCachedLevel)
	if span > mt.widths[0] {
		span = mt.widths[0]
	}
	alignedStart := (i / span) * span
	if alignedStart+span > mt.widths[0] {
		span = mt.widths[0] - alignedStart
	}

	segment, err := mt.readBaseRange(alignedStart, alignedStart+span)
	if err != nil {
		return nil, nil, err
	}
	partial, err := buildPartialTree(mt.cfg.Algorithm, segment, alignedStart)
	if err != nil {
		return nil, nil, err
	}
	proof, err := mt.genProofWithPartialTree(i, firstCachedLevel, partial)
	if err != nil {
		return nil, nil, err
	}
	return proof, partial, nil
}

// GenProofWithPartialTree answers a proof for leaf i reusing a partial tree
// obtained from a previous GenProofAndPartialTree call, skipping the
// rebuild when partial.Covers(i).
func (mt *MerkleTree) GenProofWithPartialTree(i int, cachedLevels int, partial *PartialTree) (*Proof, *PartialTree, error) {
	if partial != nil && partial.Covers(i) {
		firstCachedLevel := clampFirstCachedLevel(mt.height, cachedLevels)
		proof, err := mt.genProofWithPartialTree(i, firstCachedLevel, partial)
		if err != nil {
			return nil, nil, err
		}
		return proof, partial, nil
	}
	return mt.GenProofAndPartialTree(i, cachedLevels)
}

// clampFirstCachedLevel mirrors store.NewLevelCacheStore's own
// height-cachedLevels arithmetic: level firstCachedLevel and above are the
// ones compaction actually persisted, so a partial tree only ever needs to
// reconstruct levels strictly below it.
func clampFirstCachedLevel(height, cachedLevels int) int {
	firstCachedLevel := height - cachedLevels
	if firstCachedLevel < 1 {
		firstCachedLevel = 1
	}
	if firstCachedLevel > height-1 {
		firstCachedLevel = height - 1
	}
	return firstCachedLevel
}

func (mt *MerkleTree) genProofWithPartialTree(i, firstCachedLevel int, partial *PartialTree) (*Proof, error) {
	lemma := make([][]byte, 0, mt.height+1)
	path := make([]bool, 0, mt.height-1)

	li := i - partial.alignedStart
	lemma = append(lemma, partial.readAt(0, li))

	// The partial tree reconstructs every level strictly below
	// firstCachedLevel, so every sibling through that level comes out of
	// it; level firstCachedLevel itself is exactly what compaction kept,
	// so from there on siblings are read straight back from the tree.
	j := li
	for level := 0; level < firstCachedLevel; level++ {
		isLeft := j&1 == 0
		sibPos := j + 1
		if !isLeft {
			sibPos = j - 1
		}
		lemma = append(lemma, partial.readAt(level, sibPos))
		path = append(path, isLeft)
		j >>= 1
	}

	// j now indexes the node at level firstCachedLevel within the partial
	// tree's own frame; translate it back to the full tree's global
	// numbering before continuing into the cached band.
	globalPos := (partial.alignedStart >> uint(firstCachedLevel)) + j
	for level := firstCachedLevel; level < mt.height-1; level++ {
		isLeft := globalPos&1 == 0
		sibPos := globalPos + 1
		if !isLeft {
			sibPos = globalPos - 1
		}
		sib, err := mt.ReadAt(mt.globalIndex(level, sibPos))
		if err != nil {
			return nil, err
		}
		lemma = append(lemma, sib)
		path = append(path, isLeft)
		globalPos >>= 1
	}
	lemma = append(lemma, mt.root)
	return &Proof{Lemma: lemma, Path: path}, nil
}

// readBaseRange reads [lo, hi) of the leaf level, through the level-cache
// store's base-layer path if the tree has been compacted.
func (mt *MerkleTree) readBaseRange(lo, hi int) ([][]byte, error) {
	if mt.cacheStore != nil {
		return mt.cacheStore.ReadRange(lo, hi)
	}
	return mt.leavesStore.ReadRange(lo, hi)
}
