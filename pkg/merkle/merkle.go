// Package merkle computes the Complete Binary Merkle Tree root committed to
// by a block's transactions_root (spec.md §3, §4.5.2 item 3).
//
// Unlike a Bitcoin-style tree, an odd node out at any level is promoted
// unchanged into the next level rather than hashed against a duplicate of
// itself — this keeps membership proofs free of synthetic duplicate leaves.
package merkle

import "github.com/klingon-tech/cellnode/pkg/types"

// Merge combines two sibling hashes into their parent. The verifier passes
// crypto.HashConcat; this package takes the function as a parameter and
// does not import pkg/crypto.
type Merge func(left, right types.Hash256) types.Hash256

// Root computes the CBMT root over leaves using merge to combine siblings.
//
//   - 0 leaves: the zero hash.
//   - 1 leaf: that leaf, unhashed.
//   - otherwise: pairwise merge; a lone trailing node at any level is carried
//     forward unmerged to the next level.
func Root(leaves []types.Hash256, merge Merge) types.Hash256 {
	if len(leaves) == 0 {
		return types.Hash256{}
	}
	if len(leaves) == 1 {
		return leaves[0]
	}

	level := make([]types.Hash256, len(leaves))
	copy(level, leaves)

	for len(level) > 1 {
		next := make([]types.Hash256, 0, (len(level)+1)/2)
		i := 0
		for ; i+1 < len(level); i += 2 {
			next = append(next, merge(level[i], level[i+1]))
		}
		if i < len(level) {
			next = append(next, level[i])
		}
		level = next
	}

	return level[0]
}

// Proof is a membership proof: the sibling hashes needed to recompute the
// root from a single leaf, paired with which side each sibling sits on.
type Proof struct {
	Siblings []types.Hash256
	// OnRight[i] reports whether Siblings[i] is the right-hand operand when
	// merging at that level (false means the leaf/accumulator is on the
	// right and the sibling is on the left).
	OnRight []bool
}

// BuildProof returns a membership proof for leaves[index], or false if
// index is out of range.
func BuildProof(leaves []types.Hash256, index int, merge Merge) (Proof, bool) {
	if index < 0 || index >= len(leaves) {
		return Proof{}, false
	}
	if len(leaves) == 1 {
		return Proof{}, true
	}

	level := make([]types.Hash256, len(leaves))
	copy(level, leaves)
	pos := index
	var proof Proof

	for len(level) > 1 {
		next := make([]types.Hash256, 0, (len(level)+1)/2)
		i := 0
		for ; i+1 < len(level); i += 2 {
			if i == pos || i+1 == pos {
				if pos == i {
					proof.Siblings = append(proof.Siblings, level[i+1])
					proof.OnRight = append(proof.OnRight, true)
				} else {
					proof.Siblings = append(proof.Siblings, level[i])
					proof.OnRight = append(proof.OnRight, false)
				}
				pos = len(next)
			}
			next = append(next, merge(level[i], level[i+1]))
		}
		if i < len(level) {
			if i == pos {
				pos = len(next)
			}
			next = append(next, level[i])
		}
		level = next
	}

	return proof, true
}

// VerifyProof recomputes the root from leaf using proof and reports whether
// it equals root.
func VerifyProof(leaf types.Hash256, proof Proof, root types.Hash256, merge Merge) bool {
	acc := leaf
	for i, sib := range proof.Siblings {
		if proof.OnRight[i] {
			acc = merge(acc, sib)
		} else {
			acc = merge(sib, acc)
		}
	}
	return acc == root
}
