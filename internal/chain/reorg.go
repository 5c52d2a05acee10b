package chain

import (
	"fmt"

	"github.com/klingon-tech/cellnode/internal/logging"
	"github.com/klingon-tech/cellnode/internal/store"
	"github.com/klingon-tech/cellnode/internal/verifier"
	"github.com/klingon-tech/cellnode/pkg/types"
)

// MaxReorgDepth bounds how many blocks collectBranch will walk back
// looking for a fork point, so a malformed or adversarial branch cannot
// make the chain service spin forever.
const MaxReorgDepth = 1000

// reorgTo switches the canonical chain to the branch ending at newTipHash,
// already known to have strictly greater total difficulty than the
// current tip (candidateDiff), or equal difficulty with a smaller hash
// (spec.md §4.6 step 8's tie-break). Every block in the new branch is
// verified contextually as it is replayed, since this is the first point
// at which the store's live-cell state reflects each of its predecessors.
// Any failure rolls the store back to the original tip in full and marks
// the failing block BlockInvalid.
func (s *Service) reorgTo(newTipHash types.Hash256, candidateDiff types.U256, flags verifier.SwitchFlags) (Event, error) {
	newBranch, err := s.collectBranch(newTipHash)
	if err != nil {
		return Event{}, err
	}
	if len(newBranch) == 0 {
		return Event{}, fmt.Errorf("reorg: empty branch for %s", newTipHash)
	}

	forkHash := newBranch[0].Header.ParentHash

	oldTipHash := s.tipHash
	oldTipHeader := s.tipHeader
	oldTipTotalDifficulty := s.tipTotalDifficulty
	oldTipEpoch := s.tipEpoch

	// Collect the old branch, tip down to (excluding) the fork point, in
	// descending order, so it can be detached in that order and re-attached
	// (ascending) on rollback. Epoch numbers are captured before detaching:
	// DetachBlock erases blockEpochKey along with the rest of a block's
	// canonical-state bookkeeping, so it cannot be re-read afterward.
	var oldBranchDescending []oldBranchEntry
	for h := oldTipHeader; h.Hash() != forkHash; {
		blk, err := s.store.GetBlock(h.Hash())
		if err != nil {
			return Event{}, fmt.Errorf("reorg: load old-branch block %s: %w", h.Hash(), err)
		}
		epochNumber, err := s.store.GetBlockEpochNumber(h.Hash())
		if err != nil {
			return Event{}, fmt.Errorf("reorg: old-branch epoch number %s: %w", h.Hash(), err)
		}
		oldBranchDescending = append(oldBranchDescending, oldBranchEntry{blk: blk, epochNumber: epochNumber})
		h = blk.Header
		parent, err := s.store.GetHeader(h.ParentHash)
		if err != nil {
			return Event{}, fmt.Errorf("reorg: load old-branch parent %s: %w", h.ParentHash, err)
		}
		h = parent
	}

	var reverted []*types.Block
	var revertedTxs []types.Transaction
	for _, entry := range oldBranchDescending {
		blk := entry.blk
		hash := blk.Header.Hash()
		if err := s.store.DetachBlock(blk, blk.Header.ParentHash); err != nil {
			return Event{}, fmt.Errorf("reorg: detach %s: %w", hash, err)
		}
		reverted = append(reverted, blk)
		revertedTxs = append(revertedTxs, blk.NonCellbaseTransactions()...)
	}

	var applied []*types.Block
	var committedTxs []types.Transaction
	parentHeader := s.mustHeader(forkHash)
	parentEpochNumber, err := s.store.GetBlockEpochNumber(forkHash)
	if err != nil {
		return Event{}, s.rollbackReorg(oldBranchDescending, oldTipHash, oldTipHeader, oldTipTotalDifficulty, oldTipEpoch,
			fmt.Errorf("reorg: fork point epoch: %w", err))
	}
	parentEpoch, err := s.store.GetEpoch(parentEpochNumber)
	if err != nil {
		return Event{}, s.rollbackReorg(oldBranchDescending, oldTipHash, oldTipHeader, oldTipTotalDifficulty, oldTipEpoch,
			fmt.Errorf("reorg: fork point epoch %d: %w", parentEpochNumber, err))
	}

	for _, blk := range newBranch {
		hash := blk.Header.Hash()

		epochNumber, err := s.store.GetBlockEpochNumber(hash)
		if err != nil {
			return Event{}, s.rollbackReorgBranch(applied, oldBranchDescending, oldTipHash, oldTipHeader, oldTipTotalDifficulty, oldTipEpoch,
				hash, fmt.Errorf("epoch number: %w", err))
		}
		epoch := parentEpoch
		if epochNumber != parentEpoch.Number {
			epoch, err = s.store.GetEpoch(epochNumber)
			if err != nil {
				return Event{}, s.rollbackReorgBranch(applied, oldBranchDescending, oldTipHash, oldTipHeader, oldTipTotalDifficulty, oldTipEpoch,
					hash, fmt.Errorf("epoch %d: %w", epochNumber, err))
			}
		}

		result, err := s.verifyContextual(blk, parentHeader, epoch, flags)
		if err != nil {
			return Event{}, s.rollbackReorgBranch(applied, oldBranchDescending, oldTipHash, oldTipHeader, oldTipTotalDifficulty, oldTipEpoch,
				hash, err)
		}

		totalDiff, err := s.totalDifficultyThrough(hash)
		if err != nil {
			return Event{}, s.rollbackReorgBranch(applied, oldBranchDescending, oldTipHash, oldTipHeader, oldTipTotalDifficulty, oldTipEpoch,
				hash, fmt.Errorf("total difficulty: %w", err))
		}
		if err := s.store.AttachBlock(blk, totalDiff, epoch.Number); err != nil {
			return Event{}, s.rollbackReorgBranch(applied, oldBranchDescending, oldTipHash, oldTipHeader, oldTipTotalDifficulty, oldTipEpoch,
				hash, fmt.Errorf("attach: %w", err))
		}
		if err := s.store.PutBlockExt(hash, store.BlockExt{ReceivedAt: s.now(), Verified: true, Fees: result.Fees, Cycles: result.TotalCycles}); err != nil {
			return Event{}, s.rollbackReorgBranch(applied, oldBranchDescending, oldTipHash, oldTipHeader, oldTipTotalDifficulty, oldTipEpoch,
				hash, fmt.Errorf("store ext: %w", err))
		}

		s.blockStates[hash] = verifier.BlockValid
		applied = append(applied, blk)
		committedTxs = append(committedTxs, blk.NonCellbaseTransactions()...)

		parentHeader = blk.Header
		parentEpoch = epoch
	}

	s.tipHash = newTipHash
	s.tipHeader = newBranch[len(newBranch)-1].Header
	s.tipTotalDifficulty = candidateDiff
	s.tipEpoch = parentEpoch
	s.publishSnapshot()

	logging.Chain.Warn().
		Stringer("old_tip", oldTipHash).
		Stringer("new_tip", newTipHash).
		Int("detached", len(reverted)).
		Int("attached", len(applied)).
		Msg("reorg")

	committedSet := make(map[types.Hash256]bool, len(committedTxs))
	for i := range committedTxs {
		committedSet[committedTxs[i].Hash()] = true
	}
	var returnedTxs []types.Transaction
	for _, tx := range revertedTxs {
		if !committedSet[tx.Hash()] {
			returnedTxs = append(returnedTxs, tx)
		}
	}

	evt := Event{
		Tip:          newTipHash,
		MainChain:    true,
		Applied:      applied,
		Reverted:     reverted,
		CommittedTxs: committedTxs,
		RevertedTxs:  returnedTxs,
	}
	s.notify(evt)
	return evt, nil
}

// oldBranchEntry pairs a detached old-branch block with the epoch number it
// was attached under, captured before DetachBlock erases that bookkeeping.
type oldBranchEntry struct {
	blk         *types.Block
	epochNumber uint64
}

// rollbackReorg restores the old branch after every new-branch block has
// already been rolled back (or none were attached yet): it re-attaches
// oldBranchDescending in ascending order and restores tip bookkeeping.
func (s *Service) rollbackReorg(oldBranchDescending []oldBranchEntry, oldTipHash types.Hash256, oldTipHeader types.Header, oldTipTotalDifficulty types.U256, oldTipEpoch types.Epoch, cause error) error {
	for i := len(oldBranchDescending) - 1; i >= 0; i-- {
		entry := oldBranchDescending[i]
		hash := entry.blk.Header.Hash()
		diff, err := s.totalDifficultyThrough(hash)
		if err != nil {
			return fmt.Errorf("reorg rollback: recompute difficulty for %s: %w (after: %v)", hash, err, cause)
		}
		if err := s.store.AttachBlock(entry.blk, diff, entry.epochNumber); err != nil {
			return fmt.Errorf("reorg rollback: re-attach %s: %w (after: %v)", hash, err, cause)
		}
		s.blockStates[hash] = verifier.BlockValid
	}
	s.tipHash = oldTipHash
	s.tipHeader = oldTipHeader
	s.tipTotalDifficulty = oldTipTotalDifficulty
	s.tipEpoch = oldTipEpoch
	return cause
}

// rollbackReorgBranch detaches any new-branch blocks already attached
// (newlyApplied, in the order they were applied) before restoring the old
// branch, and marks failingHash invalid so it is never retried as-is.
func (s *Service) rollbackReorgBranch(newlyApplied []*types.Block, oldBranchDescending []oldBranchEntry, oldTipHash types.Hash256, oldTipHeader types.Header, oldTipTotalDifficulty types.U256, oldTipEpoch types.Epoch, failingHash types.Hash256, cause error) error {
	for i := len(newlyApplied) - 1; i >= 0; i-- {
		blk := newlyApplied[i]
		if err := s.store.DetachBlock(blk, blk.Header.ParentHash); err != nil {
			return fmt.Errorf("reorg rollback: detach %s: %w (after: %v)", blk.Header.Hash(), err, cause)
		}
	}
	s.blockStates[failingHash] = verifier.BlockInvalid
	return s.rollbackReorg(oldBranchDescending, oldTipHash, oldTipHeader, oldTipTotalDifficulty, oldTipEpoch, cause)
}

// mustHeader fetches hash's header, returning the zero Header on error;
// used only where hash is already known to exist (the fork point every
// branch in this package descends from).
func (s *Service) mustHeader(hash types.Hash256) types.Header {
	header, err := s.store.GetHeader(hash)
	if err != nil {
		return types.Header{}
	}
	return header
}

// collectBranch walks back from tipHash along ParentHash until it reaches
// a block whose parent is the canonical chain at that parent's height —
// the fork point — returning every block strictly after the fork point in
// ascending (fork+1 ... tip) order.
func (s *Service) collectBranch(tipHash types.Hash256) ([]*types.Block, error) {
	var descending []*types.Block
	hash := tipHash

	for {
		blk, err := s.store.GetBlock(hash)
		if err != nil {
			return nil, fmt.Errorf("collect branch: load %s: %w", hash, err)
		}
		descending = append(descending, blk)
		if len(descending) > MaxReorgDepth {
			return nil, newError(ReorgTooDeep, hash, "branch exceeds %d blocks", MaxReorgDepth)
		}

		if blk.Header.Number == 0 {
			if blk.Header.Hash() != s.genesisHash {
				return nil, newError(GenesisReplacement, hash, "branch would replace genesis")
			}
			break
		}

		canonical, err := s.store.GetBlockHashByHeight(blk.Header.Number - 1)
		if err == nil && canonical == blk.Header.ParentHash {
			break // fork point found, excluded from the branch.
		}
		hash = blk.Header.ParentHash
	}

	for i, j := 0, len(descending)-1; i < j; i, j = i+1, j-1 {
		descending[i], descending[j] = descending[j], descending[i]
	}
	return descending, nil
}
