package merkletree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dignifiedquire/merkle-light/algorithm"
	"github.com/dignifiedquire/merkle-light/store"
)

// xorElement builds the 16-byte XOR16 element spec.md §8's scenarios
// encode a small integer as: first byte n, remaining bytes zero.
func xorElement(n byte) []byte {
	e := make([]byte, 16)
	e[0] = n
	return e
}

func xorRoot(bytes ...byte) []byte {
	out := make([]byte, 16)
	copy(out, bytes)
	return out
}

func TestFromDataScenarioN2(t *testing.T) {
	cfg := Config{Algorithm: algorithm.NewXOR16()}
	mt, err := FromData(cfg, [][]byte{xorElement(1), xorElement(2)})
	require.NoError(t, err)

	assert.Equal(t, 2, mt.Height())
	assert.Equal(t, 3, mt.Len())
	assert.Equal(t, xorRoot(1, 0, 3), mt.Root())
}

func TestFromDataScenarioN3OddDuplication(t *testing.T) {
	cfg := Config{Algorithm: algorithm.NewXOR16()}
	mt, err := FromData(cfg, [][]byte{xorElement(1), xorElement(2), xorElement(3)})
	require.NoError(t, err)

	assert.Equal(t, 3, mt.Height())
	assert.Equal(t, 7, mt.Len())
	assert.Equal(t, xorRoot(1, 0, 0, 3), mt.Root())
}

func TestFromDataScenarioN4PowerOfTwo(t *testing.T) {
	cfg := Config{Algorithm: algorithm.NewXOR16()}
	mt, err := FromData(cfg, [][]byte{xorElement(1), xorElement(2), xorElement(3), xorElement(4)})
	require.NoError(t, err)

	assert.Equal(t, 3, mt.Height())
	assert.Equal(t, 2*4-1, mt.Len())
	assert.Equal(t, xorRoot(1, 0, 0, 4), mt.Root())
}

func TestReadAtReturnsHashedLeaves(t *testing.T) {
	cfg := Config{Algorithm: algorithm.NewXOR16()}
	leaves := [][]byte{xorElement(1), xorElement(2), xorElement(3), xorElement(4)}
	mt, err := FromData(cfg, leaves)
	require.NoError(t, err)

	for i, l := range leaves {
		want, err := cfg.Algorithm.Leaf(l)
		require.NoError(t, err)
		got, err := mt.ReadAt(i)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestFromIterMatchesFromData(t *testing.T) {
	cfg := Config{Algorithm: algorithm.NewXOR16()}
	raw := [][]byte{xorElement(1), xorElement(2), xorElement(3), xorElement(4)}

	fromData, err := FromData(cfg, raw)
	require.NoError(t, err)

	hashed := make([][]byte, len(raw))
	for i, r := range raw {
		h, err := cfg.Algorithm.Leaf(r)
		require.NoError(t, err)
		hashed[i] = h
	}
	fromIter, err := FromIter(cfg, hashed)
	require.NoError(t, err)

	assert.Equal(t, fromData.Root(), fromIter.Root())
}

func TestFromByteSliceMatchesFromData(t *testing.T) {
	cfg := Config{Algorithm: algorithm.NewXOR16()}
	raw := [][]byte{xorElement(1), xorElement(2), xorElement(3), xorElement(4)}

	fromData, err := FromData(cfg, raw)
	require.NoError(t, err)

	concat := make([]byte, 0, 16*len(raw))
	for _, r := range raw {
		concat = append(concat, r...)
	}
	fromBytes, err := FromByteSlice(cfg, concat)
	require.NoError(t, err)

	assert.Equal(t, fromData.Root(), fromBytes.Root())
}

func TestRunInParallelMatchesSequentialRoot(t *testing.T) {
	raw := make([][]byte, 64)
	for i := range raw {
		raw[i] = xorElement(byte(i))
	}

	seq, err := FromData(Config{Algorithm: algorithm.NewXOR16()}, raw)
	require.NoError(t, err)

	par, err := FromData(Config{Algorithm: algorithm.NewXOR16(), RunInParallel: true, SmallTreeThreshold: 1}, raw)
	require.NoError(t, err)

	assert.Equal(t, seq.Root(), par.Root())
}

func TestNotEnoughLeavesPanics(t *testing.T) {
	cfg := Config{Algorithm: algorithm.NewXOR16()}
	assert.Panics(t, func() {
		_, _ = FromData(cfg, [][]byte{xorElement(1)})
	})
}

func TestTryOffloadStoreThenReadStillWorks(t *testing.T) {
	cfg := Config{Algorithm: algorithm.NewXOR16()}
	mt, err := FromData(cfg, [][]byte{xorElement(1), xorElement(2), xorElement(3), xorElement(4)})
	require.NoError(t, err)
	root := mt.Root()

	require.NoError(t, mt.TryOffloadStore())

	assert.Equal(t, root, mt.Root())
	_, err = mt.ReadAt(0)
	require.NoError(t, err)
}

func TestTryOffloadStoreReloadsDiskBackedTree(t *testing.T) {
	cfg := Config{Algorithm: algorithm.NewXOR16()}
	storeCfg := &store.StoreConfig{Path: t.TempDir(), ID: "offload"}
	raw := [][]byte{xorElement(1), xorElement(2), xorElement(3), xorElement(4)}

	mt, err := FromDataWithConfig(cfg, raw, storeCfg)
	require.NoError(t, err)
	root := mt.Root()

	leaf1Before, err := mt.ReadAt(1)
	require.NoError(t, err)

	require.NoError(t, mt.TryOffloadStore())

	assert.Equal(t, root, mt.Root())
	leaf1After, err := mt.ReadAt(1)
	require.NoError(t, err)
	assert.Equal(t, leaf1Before, leaf1After)
}
