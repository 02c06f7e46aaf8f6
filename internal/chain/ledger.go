package chain

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no proof or batch exists for the given id.
var ErrNotFound = errors.New("chain: not found")

// Ledger appends batches of audit-record hashes as Merkle trees and answers
// inclusion-proof queries. Backed by a pluggable Backend.
type Ledger interface {
	// AppendBatch builds a Merkle tree over recordIDToHash and persists it,
	// returning the batch's root hash.
	AppendBatch(ctx context.Context, batchID string, recordIDToHash map[string]string) (merkleRoot string, err error)

	// GetMerkleProof returns the inclusion proof for a previously committed
	// record id.
	GetMerkleProof(ctx context.Context, recordID string) (*MerkleProof, error)

	// Healthy reports whether the ledger can currently accept writes.
	Healthy(ctx context.Context) error
}

// Backend is the pluggable persistence layer a Ledger delegates to.
type Backend interface {
	AppendBatch(ctx context.Context, batch *BatchRecord, leaves []RecordLeaf) (merkleRoot string, err error)
	GetMerkleProof(ctx context.Context, recordID string) (*MerkleProof, error)
	Close() error
}

// NewLedger builds a Ledger over the given Backend.
func NewLedger(be Backend) Ledger {
	return &ledgerImpl{backend: be}
}

type ledgerImpl struct {
	backend Backend
}

func (l *ledgerImpl) AppendBatch(ctx context.Context, batchID string, recordIDToHash map[string]string) (string, error) {
	leaves := make([]RecordLeaf, 0, len(recordIDToHash))
	for id, h := range recordIDToHash {
		leaves = append(leaves, RecordLeaf{RecordID: id, Hash: h})
	}
	batch := &BatchRecord{BatchID: batchID}
	return l.backend.AppendBatch(ctx, batch, leaves)
}

func (l *ledgerImpl) GetMerkleProof(ctx context.Context, recordID string) (*MerkleProof, error) {
	return l.backend.GetMerkleProof(ctx, recordID)
}

func (l *ledgerImpl) Healthy(ctx context.Context) error {
	return nil
}
