package chain

import (
	"context"
	"path/filepath"
	"testing"
)

func TestLocalStoreAppendBatchAndProofRoundTripInMemory(t *testing.T) {
	s := NewLocalStore()
	ctx := context.Background()
	ledger := NewLedger(s)

	root, err := ledger.AppendBatch(ctx, "batch-1", map[string]string{
		"rec-1": "hash1",
		"rec-2": "hash2",
	})
	if err != nil {
		t.Fatalf("AppendBatch failed: %v", err)
	}
	if root == "" {
		t.Fatal("expected non-empty merkle root")
	}

	proof, err := ledger.GetMerkleProof(ctx, "rec-1")
	if err != nil {
		t.Fatalf("GetMerkleProof failed: %v", err)
	}
	if proof.MerkleRoot != root {
		t.Fatalf("proof root %s != batch root %s", proof.MerkleRoot, root)
	}
}

func TestLocalStoreDirectoryBackedPersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s1 := NewLocalStoreWithPath(dir)
	if _, err := NewLedger(s1).AppendBatch(ctx, "batch-1", map[string]string{"rec-1": "h1"}); err != nil {
		t.Fatalf("AppendBatch failed: %v", err)
	}

	s2 := NewLocalStoreWithPath(dir)
	proof, err := NewLedger(s2).GetMerkleProof(ctx, "rec-1")
	if err != nil {
		t.Fatalf("expected proof to survive across LocalStore instances, got error: %v", err)
	}
	if proof.BatchID != "batch-1" {
		t.Fatalf("unexpected batch id %s", proof.BatchID)
	}
}

func TestLocalStoreGetMerkleProofNotFound(t *testing.T) {
	s := NewLocalStore()
	_, err := NewLedger(s).GetMerkleProof(context.Background(), "nope")
	if err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSanitizeAvoidsPathTraversal(t *testing.T) {
	s := NewLocalStoreWithPath(t.TempDir())
	p := s.proofPath("../../etc/passwd")
	if filepath.Base(filepath.Dir(p)) != "proofs" {
		t.Fatalf("expected sanitized path to stay under proofs/, got %s", p)
	}
}
