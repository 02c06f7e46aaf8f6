package chain

import "testing"

func TestBuildMerkleTreeSingleLeaf(t *testing.T) {
	root, proofs := BuildMerkleTree([]RecordLeaf{{RecordID: "r1", Hash: "abc"}})
	if root != "abc" {
		t.Fatalf("expected single-leaf root to equal its own hash, got %s", root)
	}
	if len(proofs) != 1 || len(proofs[0].Siblings) != 0 {
		t.Fatalf("expected one proof with no siblings, got %+v", proofs)
	}
}

func TestBuildMerkleTreeOddLeafCountDuplicatesLast(t *testing.T) {
	leaves := []RecordLeaf{
		{RecordID: "r1", Hash: "h1"},
		{RecordID: "r2", Hash: "h2"},
		{RecordID: "r3", Hash: "h3"},
	}
	root, proofs := BuildMerkleTree(leaves)
	if root == "" {
		t.Fatal("expected non-empty root")
	}
	if len(proofs) != 3 {
		t.Fatalf("expected 3 proofs, got %d", len(proofs))
	}
	for i, p := range proofs {
		if p.LeafHash != leaves[i].Hash {
			t.Errorf("proof %d leaf hash mismatch: got %s want %s", i, p.LeafHash, leaves[i].Hash)
		}
	}
}

func TestBuildMerkleTreeEmptyReturnsEmptyRoot(t *testing.T) {
	root, proofs := BuildMerkleTree(nil)
	if root != "" || proofs != nil {
		t.Fatalf("expected empty root and nil proofs for no leaves, got root=%q proofs=%v", root, proofs)
	}
}

func TestBuildMerkleTreeVerifiesRootFromSiblings(t *testing.T) {
	leaves := []RecordLeaf{
		{RecordID: "r1", Hash: "h1"},
		{RecordID: "r2", Hash: "h2"},
		{RecordID: "r3", Hash: "h3"},
		{RecordID: "r4", Hash: "h4"},
	}
	root, proofs := BuildMerkleTree(leaves)
	for i, p := range proofs {
		recomputed := p.LeafHash
		idx := i
		for _, sib := range p.Siblings {
			if idx%2 == 0 {
				recomputed = hashPair(recomputed, sib)
			} else {
				recomputed = hashPair(sib, recomputed)
			}
			idx /= 2
		}
		if recomputed != root {
			t.Errorf("leaf %d: recomputed root %s != actual root %s", i, recomputed, root)
		}
	}
}
