package merkletree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dignifiedquire/merkle-light/algorithm"
	"github.com/dignifiedquire/merkle-light/store"
)

func TestCompactV2ThenGenProofAndPartialTreeValidates(t *testing.T) {
	mt, _ := buildXorTree(t, 16)

	storeCfg := store.StoreConfig{Path: t.TempDir(), ID: "cache", Levels: 1}
	require.NoError(t, mt.Compact(storeCfg, store.V2))

	// Only the root is cached at Levels=1, so each call reconstructs the
	// whole base layer into a partial tree; still exercises the codepath.
	for _, i := range []int{0, 8, 15} {
		proof, _, err := mt.GenProofAndPartialTree(i, 1)
		require.NoError(t, err)
		ok, err := proof.Validate(algorithm.NewXOR16())
		require.NoError(t, err)
		assert.True(t, ok, "leaf %d should validate after compaction", i)
	}

	size, err := mt.cacheStore.FileSize()
	require.NoError(t, err)
	assert.Equal(t, int64(1*16), size) // k=1 cached element (the root) * element width 16
}

func TestCompactTwiceIsNoOp(t *testing.T) {
	mt, _ := buildXorTree(t, 16)
	storeCfg := store.StoreConfig{Path: t.TempDir(), ID: "cache", Levels: 1}

	require.NoError(t, mt.Compact(storeCfg, store.V1))
	first := mt.cacheStore
	require.NoError(t, mt.Compact(storeCfg, store.V1))
	assert.Same(t, first, mt.cacheStore)
}

func TestCompactRefusedWhenCacheDoesNotShrink(t *testing.T) {
	mt, _ := buildXorTree(t, 4)
	storeCfg := store.StoreConfig{Path: t.TempDir(), ID: "cache", Levels: 2}

	err := mt.Compact(storeCfg, store.V1)
	require.Error(t, err)
	var merr *Error
	require.ErrorAs(t, err, &merr)
}

func TestCompactedReadAtElidedLevelIsOutOfCachedRange(t *testing.T) {
	mt, _ := buildXorTree(t, 16)
	storeCfg := store.StoreConfig{Path: t.TempDir(), ID: "cache", Levels: 1}
	require.NoError(t, mt.Compact(storeCfg, store.V1))

	// Level 1 (an elided middle level) is no longer directly readable.
	_, err := mt.ReadAt(mt.globalIndex(1, 0))
	require.Error(t, err)
	var storeErr *store.Error
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, store.KindOutOfCachedRange, storeErr.Kind)
}
