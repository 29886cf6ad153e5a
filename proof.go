package merkletree

import (
	"bytes"

	"github.com/dignifiedquire/merkle-light/algorithm"
)

// Proof is an inclusion proof for one leaf: Lemma holds the leaf digest,
// then its siblings bottom-to-top, then the root; Path records at each
// step whether the node drawn from the tree so far was the left child.
// This is the same sibling/path shape the teacher's Proof carries, widened
// from a packed path bitfield to one bool per level since this spec's
// trees are not bounded to 32 levels.
type Proof struct {
	Lemma [][]byte
	Path  []bool
}

// GenProof walks the sibling chain for leaf i from the leaf level to the
// root, following SPEC_FULL.md §5.3's rule: at each level the sibling is
// read_at(base+j±1), chosen by the parity of the running intra-level index
// j, and path records whether the current node was the left child.
func (mt *MerkleTree) GenProof(i int) (*Proof, error) {
	if i < 0 || i >= mt.leafs {
		return nil, errOutOfBounds(i, mt.leafs)
	}

	lemma := make([][]byte, 0, mt.height+1)
	path := make([]bool, 0, mt.height-1)

	leaf, err := mt.ReadAt(mt.globalIndex(0, i))
	if err != nil {
		return nil, err
	}
	lemma = append(lemma, leaf)

	j := i
	for level := 0; level < mt.height-1; level++ {
		isLeft := j&1 == 0
		sibPos := j + 1
		if !isLeft {
			sibPos = j - 1
		}
		sib, err := mt.ReadAt(mt.globalIndex(level, sibPos))
		if err != nil {
			return nil, err
		}
		lemma = append(lemma, sib)
		path = append(path, isLeft)
		j >>= 1
	}
	lemma = append(lemma, mt.root)
	return &Proof{Lemma: lemma, Path: path}, nil
}

// Validate folds Lemma and Path through alg.Node, starting from the leaf
// digest and combining with each sibling in order, and reports whether the
// result matches the root carried in the final lemma position. The level
// passed to alg.Node at step k is k itself: the canonical child-level
// convention, 0-based from the leaves.
func (p *Proof) Validate(alg algorithm.Algorithm) (bool, error) {
	if len(p.Lemma) == 0 {
		return false, errOutOfBounds(0, 0)
	}
	if len(p.Lemma) != len(p.Path)+2 {
		return false, errOutOfBounds(len(p.Path), len(p.Lemma))
	}

	result := p.Lemma[0]
	for k, isLeft := range p.Path {
		sib := p.Lemma[k+1]
		var err error
		if isLeft {
			result, err = alg.Node(result, sib, k)
		} else {
			result, err = alg.Node(sib, result, k)
		}
		if err != nil {
			return false, err
		}
	}
	root := p.Lemma[len(p.Lemma)-1]
	return bytes.Equal(result, root), nil
}
