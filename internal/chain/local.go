package chain

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// LocalStore is a Backend that keeps proofs in memory or, when given a
// directory, on disk under it (batches/, proofs/) for durability across
// restarts.
type LocalStore struct {
	mu       sync.RWMutex
	proofs   map[string]*MerkleProof // recordID -> proof, used when basePath is empty
	basePath string
}

// NewLocalStore returns a memory-only LocalStore.
func NewLocalStore() *LocalStore {
	return NewLocalStoreWithPath("")
}

// NewLocalStoreWithPath returns a LocalStore that also persists batches and
// proofs under basePath. An empty basePath keeps everything in memory.
func NewLocalStoreWithPath(basePath string) *LocalStore {
	s := &LocalStore{
		proofs:   make(map[string]*MerkleProof),
		basePath: strings.TrimSuffix(basePath, string(os.PathSeparator)),
	}
	if s.basePath != "" {
		_ = os.MkdirAll(filepath.Join(s.basePath, "batches"), 0o755)
		_ = os.MkdirAll(filepath.Join(s.basePath, "proofs"), 0o755)
	}
	return s
}

func sanitize(id string) string {
	return strings.NewReplacer(":", "_", "/", "_", "\\", "_").Replace(id)
}

func (s *LocalStore) batchPath(batchID string) string {
	return filepath.Join(s.basePath, "batches", sanitize(batchID)+".json")
}

func (s *LocalStore) proofPath(recordID string) string {
	return filepath.Join(s.basePath, "proofs", sanitize(recordID)+".json")
}

// AppendBatch builds the Merkle tree over leaves and persists the batch
// metadata plus one proof file per leaf.
func (s *LocalStore) AppendBatch(ctx context.Context, batch *BatchRecord, leaves []RecordLeaf) (string, error) {
	if batch == nil {
		return "", errors.New("chain: nil batch record")
	}
	if len(leaves) == 0 {
		return "", errors.New("chain: empty record leaves")
	}
	rootHash, paths := BuildMerkleTree(leaves)
	batch.MerkleRoot = rootHash
	if batch.Timestamp.IsZero() {
		batch.Timestamp = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.basePath != "" {
		b, _ := json.MarshalIndent(batch, "", "  ")
		if err := os.WriteFile(s.batchPath(batch.BatchID), b, 0o644); err != nil {
			return "", err
		}
	}
	for i := range leaves {
		proof := &MerkleProof{
			RecordID:   leaves[i].RecordID,
			BatchID:    batch.BatchID,
			MerkleRoot: rootHash,
			LeafHash:   paths[i].LeafHash,
			Siblings:   paths[i].Siblings,
		}
		if s.basePath != "" {
			b, _ := json.MarshalIndent(proof, "", "  ")
			if err := os.WriteFile(s.proofPath(proof.RecordID), b, 0o644); err != nil {
				return "", err
			}
		} else {
			s.proofs[proof.RecordID] = proof
		}
	}
	return rootHash, nil
}

// GetMerkleProof returns the proof for recordID, reading from disk when the
// store is directory-backed.
func (s *LocalStore) GetMerkleProof(ctx context.Context, recordID string) (*MerkleProof, error) {
	if s.basePath != "" {
		b, err := os.ReadFile(s.proofPath(recordID))
		if err != nil {
			if os.IsNotExist(err) {
				return nil, ErrNotFound
			}
			return nil, err
		}
		var proof MerkleProof
		if json.Unmarshal(b, &proof) != nil {
			return nil, errors.New("chain: invalid proof file")
		}
		return &proof, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if proof, ok := s.proofs[recordID]; ok {
		return proof, nil
	}
	return nil, ErrNotFound
}

// Close is a no-op for LocalStore; it satisfies Backend.
func (s *LocalStore) Close() error {
	return nil
}
