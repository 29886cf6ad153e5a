package merkletree

// levelWidths returns the materialized width of every level of a tree
// built from n leaves, applying the rule settled in SPEC_FULL.md §10.1:
// every level that enters with odd width duplicates its last node before
// pairing. widths[0] is the leaf level (post leaf-level duplication, if
// any); the final entry is always 1 (the root). len(widths) is the tree's
// height.
func levelWidths(n int) []int {
	widths := make([]int, 0, 8)
	w := n
	for w > 1 {
		if w&1 == 1 {
			w++
		}
		widths = append(widths, w)
		w >>= 1
	}
	widths = append(widths, 1)
	return widths
}

// levelStarts returns the starting offset of each level within a
// concatenation of segments of the given widths: starts[i] is the sum of
// widths[:i], and starts[len(widths)] is the total.
func levelStarts(widths []int) []int {
	starts := make([]int, len(widths)+1)
	for i, w := range widths {
		starts[i+1] = starts[i] + w
	}
	return starts
}

// nodeLevelForHeight returns the child level to pass to Algorithm.Node when
// producing a parent at tree level h (h > 0): the canonical convention is
// the child level, 0-based from the leaves.
func nodeLevelForHeight(h int) int { return h - 1 }
