package merkletree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dignifiedquire/merkle-light/algorithm"
)

func TestGenProofAndPartialTreeValidates(t *testing.T) {
	mt, _ := buildXorTree(t, 16)

	// height=5, cachedLevels=2 -> firstCachedLevel=3, segments of 8 leaves.
	for _, i := range []int{0, 7, 8, 15} {
		proof, partial, err := mt.GenProofAndPartialTree(i, 2)
		require.NoError(t, err)
		require.NotNil(t, partial)

		ok, err := proof.Validate(algorithm.NewXOR16())
		require.NoError(t, err)
		assert.True(t, ok, "leaf %d should validate", i)
		assert.True(t, partial.Covers(i))
	}
}

func TestGenProofWithPartialTreeReusesCoveredSegment(t *testing.T) {
	mt, _ := buildXorTree(t, 16)

	_, partial, err := mt.GenProofAndPartialTree(0, 2)
	require.NoError(t, err)
	require.True(t, partial.Covers(3))

	proof, reused, err := mt.GenProofWithPartialTree(3, 2, partial)
	require.NoError(t, err)
	assert.Same(t, partial, reused)

	ok, err := proof.Validate(algorithm.NewXOR16())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGenProofWithPartialTreeRebuildsOutsideSegment(t *testing.T) {
	mt, _ := buildXorTree(t, 16)

	_, partial, err := mt.GenProofAndPartialTree(0, 2)
	require.NoError(t, err)
	require.False(t, partial.Covers(8))

	proof, rebuilt, err := mt.GenProofWithPartialTree(8, 2, partial)
	require.NoError(t, err)
	assert.NotSame(t, partial, rebuilt)
	assert.True(t, rebuilt.Covers(8))

	ok, err := proof.Validate(algorithm.NewXOR16())
	require.NoError(t, err)
	assert.True(t, ok)
}
