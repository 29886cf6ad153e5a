package merkletree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dignifiedquire/merkle-light/algorithm"
	"github.com/dignifiedquire/merkle-light/store"
)

func buildXorTree(t *testing.T, n int) (*MerkleTree, [][]byte) {
	t.Helper()
	raw := make([][]byte, n)
	for i := range raw {
		raw[i] = xorElement(byte(i + 1))
	}
	mt, err := FromData(Config{Algorithm: algorithm.NewXOR16()}, raw)
	require.NoError(t, err)
	return mt, raw
}

func TestGenProofScenario4Leaf0(t *testing.T) {
	mt, _ := buildXorTree(t, 4)

	proof, err := mt.GenProof(0)
	require.NoError(t, err)

	leaf0, err := mt.ReadAt(0)
	require.NoError(t, err)
	leaf1, err := mt.ReadAt(1)
	require.NoError(t, err)
	h1, err := mt.ReadAt(mt.globalIndex(1, 1))
	require.NoError(t, err)

	require.Len(t, proof.Lemma, 4)
	assert.Equal(t, leaf0, proof.Lemma[0])
	assert.Equal(t, leaf1, proof.Lemma[1])
	assert.Equal(t, h1, proof.Lemma[2])
	assert.Equal(t, mt.Root(), proof.Lemma[3])
	assert.Equal(t, []bool{true, true}, proof.Path)
}

func TestGenProofScenario4Leaf2(t *testing.T) {
	mt, _ := buildXorTree(t, 4)

	proof, err := mt.GenProof(2)
	require.NoError(t, err)

	assert.Equal(t, []bool{true, false}, proof.Path)
	assert.Equal(t, mt.Root(), proof.Lemma[len(proof.Lemma)-1])
}

func TestGenProofValidatesForEveryLeaf(t *testing.T) {
	for _, n := range []int{2, 3, 4, 5, 7, 8, 16} {
		n := n
		t.Run("", func(t *testing.T) {
			mt, _ := buildXorTree(t, n)
			for i := 0; i < n; i++ {
				proof, err := mt.GenProof(i)
				require.NoError(t, err)
				ok, err := proof.Validate(algorithm.NewXOR16())
				require.NoError(t, err)
				assert.True(t, ok, "leaf %d should validate", i)
			}
		})
	}
}

func TestGenProofOutOfBounds(t *testing.T) {
	mt, _ := buildXorTree(t, 4)
	_, err := mt.GenProof(4)
	require.Error(t, err)
}

func TestProofValidateRejectsTamperedLemma(t *testing.T) {
	mt, _ := buildXorTree(t, 4)
	proof, err := mt.GenProof(0)
	require.NoError(t, err)

	proof.Lemma[1] = xorElement(255)
	ok, err := proof.Validate(algorithm.NewXOR16())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRootMatchesAcrossVecAndMmapStores(t *testing.T) {
	raw := make([][]byte, 8)
	for i := range raw {
		raw[i] = xorElement(byte(i + 1))
	}

	vec, err := FromData(Config{Algorithm: algorithm.NewXOR16()}, raw)
	require.NoError(t, err)

	leaves, err := store.NewMmapStore(len(raw)+1, 16)
	require.NoError(t, err)
	defer leaves.Close()
	top, err := store.NewMmapStore(len(raw), 16)
	require.NoError(t, err)
	defer top.Close()
	mmapTree, err := FromDataWithStore(Config{Algorithm: algorithm.NewXOR16()}, raw, leaves, top)
	require.NoError(t, err)

	assert.Equal(t, vec.Root(), mmapTree.Root())
}
