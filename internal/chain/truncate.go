package chain

import (
	"fmt"

	"github.com/klingon-tech/cellnode/internal/verifier"
	"github.com/klingon-tech/cellnode/pkg/types"
)

// Truncate trims the canonical chain down to targetHash, detaching every
// block above it. targetHash must already be a canonical ancestor of the
// current tip; this is an administrative operation (node recovery, test
// setup), not something ProcessBlock/Reorg ever call themselves.
func (s *Service) Truncate(targetHash types.Hash256) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	targetHeader, err := s.store.GetHeader(targetHash)
	if err != nil {
		return fmt.Errorf("truncate: target %s: %w", targetHash, err)
	}
	canonical, err := s.store.GetBlockHashByHeight(targetHeader.Number)
	if err != nil || canonical != targetHash {
		return fmt.Errorf("truncate: %s is not a canonical ancestor of the current tip", targetHash)
	}

	for s.tipHash != targetHash {
		blk, err := s.store.GetBlock(s.tipHash)
		if err != nil {
			return fmt.Errorf("truncate: load tip %s: %w", s.tipHash, err)
		}
		if blk.Header.Number == 0 {
			return newError(GenesisReplacement, s.tipHash, "truncate would remove genesis")
		}

		parentHash := blk.Header.ParentHash
		if err := s.store.DetachBlock(blk, parentHash); err != nil {
			return fmt.Errorf("truncate: detach %s: %w", s.tipHash, err)
		}
		delete(s.blockStates, s.tipHash)

		parentHeader, err := s.store.GetHeader(parentHash)
		if err != nil {
			return fmt.Errorf("truncate: load parent %s: %w", parentHash, err)
		}
		parentDiff, err := s.totalDifficultyThrough(parentHash)
		if err != nil {
			return fmt.Errorf("truncate: parent difficulty %s: %w", parentHash, err)
		}
		parentEpochNumber, err := s.store.GetBlockEpochNumber(parentHash)
		if err != nil {
			return fmt.Errorf("truncate: parent epoch number %s: %w", parentHash, err)
		}
		parentEpoch, err := s.store.GetEpoch(parentEpochNumber)
		if err != nil {
			return fmt.Errorf("truncate: parent epoch %d: %w", parentEpochNumber, err)
		}

		s.tipHash = parentHash
		s.tipHeader = parentHeader
		s.tipTotalDifficulty = parentDiff
		s.tipEpoch = parentEpoch
		s.blockStates[parentHash] = verifier.BlockValid
	}

	s.publishSnapshot()
	return nil
}
