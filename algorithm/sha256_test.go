package algorithm

import (
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSHA256AlgorithmElementSize(t *testing.T) {
	assert.Equal(t, 32, NewSHA256().ElementSize())
}

func TestSHA256AlgorithmLeafIsDomainSeparated(t *testing.T) {
	a := NewSHA256()
	data := []byte("hello")

	leaf, err := a.Leaf(data)
	require.NoError(t, err)

	want := sha256.Sum256(append([]byte{0x00}, data...))
	assert.Equal(t, want[:], leaf)
}

func TestSHA256AlgorithmNodeIsDomainSeparated(t *testing.T) {
	a := NewSHA256()
	left, right := make([]byte, 32), make([]byte, 32)
	left[0], right[0] = 1, 2

	node, err := a.Node(left, right, 0)
	require.NoError(t, err)

	want := sha256.Sum256(append(append([]byte{0x01}, left...), right...))
	assert.Equal(t, want[:], node)
}

func TestSHA256AlgorithmLeafAndNodeNeverCollide(t *testing.T) {
	a := NewSHA256()
	data := make([]byte, 32)
	leaf, err := a.Leaf(data)
	require.NoError(t, err)
	node, err := a.Node(data[:32], make([]byte, 32), 0)
	require.NoError(t, err)
	assert.NotEqual(t, leaf, node)
}

func TestSHA256AlgorithmRunningDigest(t *testing.T) {
	a := NewSHA256()
	a.Reset()
	_, err := a.Write([]byte("abc"))
	require.NoError(t, err)
	want := sha256.Sum256([]byte("abc"))
	assert.Equal(t, want[:], a.Hash())
}
