package chain

import (
	"fmt"

	"github.com/klingon-tech/cellnode/internal/cellprovider"
	"github.com/klingon-tech/cellnode/internal/consensus"
	"github.com/klingon-tech/cellnode/internal/logging"
	"github.com/klingon-tech/cellnode/internal/store"
	"github.com/klingon-tech/cellnode/internal/verifier"
	"github.com/klingon-tech/cellnode/pkg/types"
)

// ProcessBlock is the chain service's single entry point for a block the
// node has not seen before (spec.md §4.6). Every candidate gets header
// and structural verification unconditionally, is persisted via
// InsertBlock regardless of its eventual canonicity, and is then routed
// by fork choice: a block extending the current tip is verified
// contextually and attached immediately; a block forking from an earlier
// ancestor is only attached if its branch ends up heavier, in which case
// Reorg verifies every branch block contextually as it replays it. The
// store's live-cell column reflects canonical state only, so a forking
// block's inputs cannot be resolved correctly before its branch is
// actually chosen — deferring contextual verification to replay time
// (see DESIGN.md) is what makes that resolution correct rather than
// skipped.
func (s *Service) ProcessBlock(blk *types.Block, flags verifier.SwitchFlags) (verifier.BlockState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	hash := blk.Header.Hash()

	known, err := s.store.HasHeader(hash)
	if err != nil {
		return verifier.Received, fmt.Errorf("check known %s: %w", hash, err)
	}
	if known {
		return s.blockStates[hash], newError(AlreadyKnown, hash, "already processed")
	}

	if blk.Header.IsGenesis() {
		return verifier.Received, newError(GenesisReplacement, hash, "genesis may only be set via InitGenesis")
	}

	parentHash := blk.Header.ParentHash
	parentHeader, err := s.store.GetHeader(parentHash)
	if err != nil {
		return verifier.Received, newError(UnknownParent, hash, "%s: %v", parentHash, err)
	}

	epoch, err := s.epochFor(parentHash, parentHeader)
	if err != nil {
		return verifier.Received, fmt.Errorf("compute epoch for %s: %w", hash, err)
	}
	if len(blk.Uncles) > 0 {
		epoch.UnclesCount += uint64(len(blk.Uncles))
		if err := s.store.PutEpoch(epoch); err != nil {
			return verifier.Received, fmt.Errorf("accumulate uncles for epoch %d: %w", epoch.Number, err)
		}
	}

	headerCtx := verifier.HeaderContext{
		Parent:             parentHeader,
		ParentIsValid:      s.isValid(parentHash),
		Epoch:              epoch,
		Params:             s.params,
		AncestorTimestamps: ancestorTimestamps(s.store, parentHash, verifier.MedianTimeSpan),
		Now:                s.now(),
		BlockVersion:       s.params.BlockVersion,
	}
	if err := verifier.VerifyHeader(blk.Header, headerCtx, flags); err != nil {
		s.blockStates[hash] = verifier.BlockInvalid
		return verifier.BlockInvalid, err
	}
	s.blockStates[hash] = verifier.HeaderValid

	uncleProvider := storeUncleProvider{db: s.store}
	if err := verifier.VerifyBlockStructure(blk, blockSizeBytes(blk), 0, s.params, uncleProvider, flags); err != nil {
		s.blockStates[hash] = verifier.BlockInvalid
		return verifier.BlockInvalid, err
	}
	if !flags.Has(verifier.DisableAll) && !flags.Has(verifier.DisableTwoPhaseCommit) {
		proposedAt, err := s.proposedAtWindow(parentHash, s.params.ProposalWindowFar)
		if err != nil {
			return verifier.Received, fmt.Errorf("proposed-at window for %s: %w", hash, err)
		}
		if err := verifier.CheckCommitWindow(blk.Header, blk.NonCellbaseTransactions(), proposedAt, s.params); err != nil {
			s.blockStates[hash] = verifier.BlockInvalid
			return verifier.BlockInvalid, err
		}
	}

	if err := s.store.InsertBlock(blk); err != nil {
		return verifier.Received, fmt.Errorf("insert %s: %w", hash, err)
	}
	if err := s.store.PutBlockEpochNumber(hash, epoch.Number); err != nil {
		return verifier.Received, fmt.Errorf("store epoch number for %s: %w", hash, err)
	}
	if err := s.store.PutBlockExt(hash, store.BlockExt{ReceivedAt: s.now()}); err != nil {
		return verifier.Received, fmt.Errorf("store ext for %s: %w", hash, err)
	}
	s.blockStates[hash] = verifier.BlockStored

	candidateDiff, err := s.totalDifficultyThrough(hash)
	if err != nil {
		return verifier.BlockStored, fmt.Errorf("total difficulty through %s: %w", hash, err)
	}

	switch {
	case parentHash == s.tipHash:
		result, err := s.attachTip(blk, hash, parentHeader, epoch, candidateDiff, flags)
		if err != nil {
			return verifier.BlockInvalid, err
		}
		_ = result
		return verifier.BlockValid, nil

	case candidateDiff.Cmp(s.tipTotalDifficulty) > 0,
		candidateDiff.Cmp(s.tipTotalDifficulty) == 0 && hash.Less(s.tipHash):
		if _, err := s.reorgTo(hash, candidateDiff, flags); err != nil {
			return s.blockStates[hash], err
		}
		return s.blockStates[hash], nil

	default:
		return verifier.BlockStored, nil
	}
}

// attachTip verifies blk contextually and, on success, attaches it
// directly on top of the current tip.
func (s *Service) attachTip(blk *types.Block, hash types.Hash256, parentHeader types.Header, epoch types.Epoch, totalDiff types.U256, flags verifier.SwitchFlags) (verifier.Result, error) {
	result, err := s.verifyContextual(blk, parentHeader, epoch, flags)
	if err != nil {
		s.blockStates[hash] = verifier.BlockInvalid
		return verifier.Result{}, err
	}

	if err := s.store.AttachBlock(blk, totalDiff, epoch.Number); err != nil {
		return verifier.Result{}, fmt.Errorf("attach %s: %w", hash, err)
	}
	if err := s.store.PutBlockExt(hash, store.BlockExt{ReceivedAt: s.now(), Verified: true, Fees: result.Fees, Cycles: result.TotalCycles}); err != nil {
		return verifier.Result{}, fmt.Errorf("store ext for %s: %w", hash, err)
	}

	s.blockStates[hash] = verifier.BlockValid
	s.tipHash = hash
	s.tipHeader = blk.Header
	s.tipTotalDifficulty = totalDiff
	s.tipEpoch = epoch
	s.publishSnapshot()

	logging.Chain.Info().
		Uint64("number", blk.Header.Number).
		Stringer("hash", hash).
		Int("txs", len(blk.Transactions)).
		Msg("block accepted")

	s.notify(Event{
		Tip:          hash,
		MainChain:    true,
		Applied:      []*types.Block{blk},
		CommittedTxs: blk.NonCellbaseTransactions(),
	})
	return result, nil
}

// verifyContextual resolves every transaction in blk against the
// committed chain store layered with a fresh in-block overlay, then runs
// the full §4.5 pipeline. Callers must only invoke this once blk's parent
// is known to be the branch blk would actually attach on top of: the
// committed store only reflects that branch's live-cell state.
func (s *Service) verifyContextual(blk *types.Block, parentHeader types.Header, epoch types.Epoch, flags verifier.SwitchFlags) (verifier.Result, error) {
	provider := s.cellProvider()
	overlay := cellprovider.NewBlockOverlay()

	blockTxHashes := make(map[types.Hash256]int, len(blk.Transactions))
	for i := range blk.Transactions {
		blockTxHashes[blk.Transactions[i].Hash()] = i
	}

	resolved := make(map[types.Hash256]*cellprovider.ResolvedTransaction, len(blk.Transactions))
	for i := range blk.Transactions {
		tx := blk.Transactions[i]
		rtx, err := cellprovider.ResolveTransaction(tx, i, blockTxHashes, overlay, provider, provider)
		if err != nil {
			return verifier.Result{}, fmt.Errorf("resolve tx %d (%s): %w", i, tx.Hash(), err)
		}
		if i > 0 {
			resolved[tx.Hash()] = rtx
		}
		overlay.Commit(i, tx)
	}

	proposedAt, err := s.proposedAtWindow(parentHeader.Hash(), s.params.ProposalWindowFar)
	if err != nil {
		return verifier.Result{}, fmt.Errorf("proposed-at window: %w", err)
	}

	blkCtx := verifier.BlockContext{
		Header: verifier.HeaderContext{
			Parent:             parentHeader,
			ParentIsValid:      s.isValid(parentHeader.Hash()),
			Epoch:              epoch,
			Params:             s.params,
			AncestorTimestamps: ancestorTimestamps(s.store, parentHeader.Hash(), verifier.MedianTimeSpan),
			Now:                s.now(),
			BlockVersion:       s.params.BlockVersion,
		},
		UncleProvider: storeUncleProvider{db: s.store},
		ProposedAt:    proposedAt,
		BlockBytes:    blockSizeBytes(blk),
	}.WithResolved(resolved)

	txCtx := verifier.TxContext{
		TipBlockNumber: parentHeader.Number,
		TipEpoch:       parentHeader.EpochFraction(),
		TipTimestamp:   parentHeader.Timestamp,
		Params:         s.params,
		VMConfig:       s.vmConfig,
	}

	return verifier.VerifyBlock(blk, blkCtx, txCtx, flags)
}

// epochFor computes the epoch childNumber (= parentHeader.Number+1)
// belongs to, persisting it if it is newly computed.
func (s *Service) epochFor(parentHash types.Hash256, parentHeader types.Header) (types.Epoch, error) {
	parentEpochNumber, err := s.store.GetBlockEpochNumber(parentHash)
	if err != nil {
		return types.Epoch{}, fmt.Errorf("parent epoch number: %w", err)
	}
	parentEpoch, err := s.store.GetEpoch(parentEpochNumber)
	if err != nil {
		return types.Epoch{}, fmt.Errorf("parent epoch %d: %w", parentEpochNumber, err)
	}

	childNumber := parentHeader.Number + 1
	if parentEpoch.Contains(childNumber) {
		return parentEpoch, nil
	}

	startTimestamp, err := s.ancestorTimestampAt(parentHash, parentEpoch.StartNumber)
	if err != nil {
		return types.Epoch{}, fmt.Errorf("epoch start timestamp: %w", err)
	}
	next := consensus.NextEpoch(s.params, parentEpoch, startTimestamp, parentHeader.Timestamp)
	if err := s.store.PutEpoch(next); err != nil {
		return types.Epoch{}, fmt.Errorf("store epoch %d: %w", next.Number, err)
	}
	return next, nil
}

// ancestorTimestampAt walks back from hash along ParentHash until it finds
// the block at targetNumber, returning its timestamp.
func (s *Service) ancestorTimestampAt(hash types.Hash256, targetNumber uint64) (uint64, error) {
	for {
		header, err := s.store.GetHeader(hash)
		if err != nil {
			return 0, err
		}
		if header.Number == targetNumber {
			return header.Timestamp, nil
		}
		if header.Number == 0 {
			return 0, fmt.Errorf("walked past genesis seeking block %d", targetNumber)
		}
		hash = header.ParentHash
	}
}

// proposedAtWindow collects, for every ancestor of hash within the last
// far+1 blocks, the short ids it proposed, mapped to the block number that
// proposed them. It is safe to call against a not-yet-canonical hash: it
// only reads insert_block data (headers, proposal ids), never the live-cell
// set.
func (s *Service) proposedAtWindow(hash types.Hash256, far uint64) (map[types.ProposalShortID]uint64, error) {
	window := make(map[types.ProposalShortID]uint64)
	for i := uint64(0); i <= far; i++ {
		header, err := s.store.GetHeader(hash)
		if err != nil {
			return nil, err
		}
		proposals, err := s.store.GetProposals(hash)
		if err != nil {
			return nil, err
		}
		for _, id := range proposals {
			if _, exists := window[id]; !exists {
				window[id] = header.Number
			}
		}
		if header.Number == 0 {
			break
		}
		hash = header.ParentHash
	}
	return window, nil
}

// totalDifficultyThrough returns the cumulative difficulty through hash,
// using the store's recorded total_difficulty where available (hash is
// canonical or was previously attached) and otherwise walking the header
// chain directly, so a not-yet-attached fork candidate's work can still be
// compared against the tip's.
func (s *Service) totalDifficultyThrough(hash types.Hash256) (types.U256, error) {
	if diff, err := s.store.GetTotalDifficulty(hash); err == nil {
		return diff, nil
	}
	header, err := s.store.GetHeader(hash)
	if err != nil {
		return types.U256{}, fmt.Errorf("header %s: %w", hash, err)
	}
	parentDiff, err := s.totalDifficultyThrough(header.ParentHash)
	if err != nil {
		return types.U256{}, err
	}
	return parentDiff.Add(consensus.DifficultyFromCompactTarget(header.CompactTarget)), nil
}

// isValid reports whether hash is known to be BlockValid, consulting the
// in-memory cache first and falling back to the persisted block_ext
// verified flag (set by AttachBlock's caller) for blocks this runtime
// never processed itself, e.g. after a restart.
func (s *Service) isValid(hash types.Hash256) bool {
	if state, ok := s.blockStates[hash]; ok {
		return state == verifier.BlockValid
	}
	ext, err := s.store.GetBlockExt(hash)
	if err != nil {
		return false
	}
	return ext.Verified
}

// blockSizeBytes approximates a block's on-chain serialized size as the
// sum of its transactions' wire encodings, the portion the size budget
// (spec.md §4.5.2 item 6) is meant to bound.
func blockSizeBytes(blk *types.Block) int {
	total := 0
	for i := range blk.Transactions {
		total += len(blk.Transactions[i].Serialize())
	}
	return total
}
