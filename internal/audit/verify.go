package audit

import (
	"fmt"

	"github.com/agentgov/governor/internal/models"
	"github.com/agentgov/governor/internal/util"
)

// ChainBrokenError reports the first sequence number whose stored hash does
// not match its recomputed hash or its predecessor's hash.
type ChainBrokenError struct {
	Seq int64
}

func (e *ChainBrokenError) Error() string {
	return fmt.Sprintf("audit: chain broken at sequence %d", e.Seq)
}

// VerifyChain recomputes every retained segment's record hashes, oldest to
// newest, and confirms each prev_hash equals the previous record's hash. It
// never mutates or deletes data; on the first mismatch it returns a
// ChainBrokenError and stops.
func (s *Store) VerifyChain() error {
	segments, err := listSegments(s.dir)
	if err != nil {
		return err
	}

	prevHash := models.ZeroHash
	for _, seg := range segments {
		records, err := readSegment(segmentPath(s.dir, seg))
		if err != nil {
			return err
		}
		for _, r := range records {
			recomputed := util.SHA256Hex(
				fmt.Sprintf("%d", r.Seq),
				fmt.Sprintf("%d", r.WallMs),
				string(r.Verdict),
				r.AgentID,
				string(r.Hook),
				r.ToolName,
				r.PrevHash,
			)
			if recomputed != r.Hash || r.PrevHash != prevHash {
				return &ChainBrokenError{Seq: r.Seq}
			}
			prevHash = r.Hash
		}
	}
	return nil
}
