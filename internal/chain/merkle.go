package chain

import (
	"crypto/sha256"
	"encoding/hex"
)

// MerkleProofPath is one leaf's verification path: its own hash plus the
// sibling hashes from leaf to root.
type MerkleProofPath struct {
	LeafHash string
	Siblings []string
}

// BuildMerkleTree constructs a binary Merkle tree over leaves and returns
// the root hash plus, for each leaf in input order, its sibling path. An
// unpaired trailing leaf at any level is paired with itself.
func BuildMerkleTree(leaves []RecordLeaf) (rootHash string, proofs []MerkleProofPath) {
	if len(leaves) == 0 {
		return "", nil
	}
	type node struct {
		hash string
	}
	layer := make([]*node, len(leaves))
	for i, l := range leaves {
		layer[i] = &node{hash: l.Hash}
	}
	var allLayers [][]*node
	allLayers = append(allLayers, layer)
	for len(layer) > 1 {
		next := make([]*node, 0, (len(layer)+1)/2)
		for i := 0; i < len(layer); i += 2 {
			left := layer[i]
			right := left
			if i+1 < len(layer) {
				right = layer[i+1]
			}
			next = append(next, &node{hash: hashPair(left.hash, right.hash)})
		}
		layer = next
		allLayers = append(allLayers, layer)
	}
	rootHash = layer[0].hash

	proofs = make([]MerkleProofPath, len(leaves))
	for leafIdx := range leaves {
		var path []string
		idx := leafIdx
		for L := 0; L < len(allLayers)-1; L++ {
			row := allLayers[L]
			siblingIdx := idx ^ 1
			if siblingIdx < len(row) {
				path = append(path, row[siblingIdx].hash)
			} else {
				path = append(path, row[idx].hash) // unpaired node is paired with itself
			}
			idx = idx / 2
		}
		proofs[leafIdx] = MerkleProofPath{LeafHash: leaves[leafIdx].Hash, Siblings: path}
	}
	return rootHash, proofs
}

func hashPair(a, b string) string {
	h := sha256.New()
	h.Write([]byte(a))
	h.Write([]byte(b))
	return hex.EncodeToString(h.Sum(nil))
}
