package merkletree

import "github.com/dignifiedquire/merkle-light/store"

// Compact reduces a fully built tree into a LevelCacheStore holding only
// the base layer and the top storeCfg.Levels levels, per SPEC_FULL.md
// §5.3. Compacting an already-compacted tree with an equivalent config is
// a no-op. Compaction is refused, leaving the tree unchanged, when the
// cached top band would not be smaller than the middle levels it replaces.
func (mt *MerkleTree) Compact(storeCfg store.StoreConfig, version store.DataVersion) error {
	if mt.cacheStore != nil {
		return nil
	}

	k := int(storeCfg.Levels)
	if k <= 0 || k >= mt.height {
		return errCompactionRefused("cached levels out of range")
	}
	boundary := mt.height - 1 - k
	firstCachedGlobal := mt.starts[boundary+1]
	middleRemoved := firstCachedGlobal - mt.starts[1]
	cachedCount := mt.len - firstCachedGlobal
	if middleRemoved <= 0 || cachedCount >= middleRemoved {
		return errCompactionRefused("cached top band would not shrink the store")
	}

	width := mt.cfg.Algorithm.ElementSize()
	base, err := mt.ReadRange(0, mt.widths[0])
	if err != nil {
		return err
	}
	cachedTop, err := mt.ReadRange(firstCachedGlobal, mt.len)
	if err != nil {
		return err
	}

	cfg := store.LevelCacheConfig{
		Path:         storeCfg.Path,
		ID:           storeCfg.ID,
		ElementSize:  width,
		LevelWidths:  mt.widths,
		CachedLevels: k,
		Version:      version,
	}

	var cacheStore *store.LevelCacheStore
	if version == store.V2 {
		if err := store.WriteReplicaFile(storeCfg.ReplicaPath(), base, width); err != nil {
			return err
		}
		cfg.ExternalReader = store.FileExternalReader(storeCfg.ReplicaPath())
		cacheStore, err = store.NewLevelCacheStore(cfg, nil, cachedTop)
	} else {
		cacheStore, err = store.NewLevelCacheStore(cfg, base, cachedTop)
	}
	if err != nil {
		return err
	}

	if err := mt.Delete(); err != nil {
		return err
	}
	mt.cacheStore = cacheStore
	mt.leavesStore = nil
	mt.topHalfStore = nil
	return nil
}
