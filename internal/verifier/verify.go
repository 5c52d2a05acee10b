package verifier

import (
	"fmt"

	"github.com/klingon-tech/cellnode/internal/cellprovider"
	"github.com/klingon-tech/cellnode/pkg/types"
)

// BlockContext bundles everything VerifyBlock needs to check a candidate
// block against the chain it would extend: the parent's header and
// validity, the block's epoch, recent ancestor timestamps for the median
// rule, the uncle provider, and every resolved transaction alongside the
// proposal-window bookkeeping needed for the commit-window check.
//
// Resolution itself (cellprovider.ResolveTransaction) happens in the
// chain service, which has access to the store and the in-progress
// block's overlay; this package only verifies already-resolved
// transactions, attached via WithResolved.
type BlockContext struct {
	Header         HeaderContext
	UncleProvider  UncleProvider
	ProposedAt     map[types.ProposalShortID]uint64
	BlockBytes     int
	resolvedByHash map[types.Hash256]*cellprovider.ResolvedTransaction
}

// WithResolved attaches the resolved form of every non-cellbase
// transaction in the block, keyed by tx_hash, for VerifyBlock to consume.
func (c BlockContext) WithResolved(resolved map[types.Hash256]*cellprovider.ResolvedTransaction) BlockContext {
	c.resolvedByHash = resolved
	return c
}

func (c BlockContext) resolved(txHash types.Hash256) (*cellprovider.ResolvedTransaction, bool) {
	rtx, ok := c.resolvedByHash[txHash]
	return rtx, ok
}

// Result records what VerifyBlock learned while validating a block: its
// per-transaction fees (cellbase excluded) and the total script cycles
// consumed, which the caller folds into its own budget/reward bookkeeping.
type Result struct {
	Fees        []types.Capacity
	TotalFee    types.Capacity
	TotalCycles uint64
}

// VerifyBlock runs the full §4.5.1-§4.5.3 pipeline against blk in the
// required order — header, then structure, then each transaction — and
// reports the first failure. flags gates which phases run, per §4.6's
// switch-flag semantics: a disabled phase is skipped outright, never run
// and ignored.
func VerifyBlock(blk *types.Block, blkCtx BlockContext, txCtx TxContext, flags SwitchFlags) (Result, error) {
	if err := VerifyHeader(blk.Header, blkCtx.Header, flags); err != nil {
		return Result{}, err
	}

	if err := VerifyBlockStructure(blk, blkCtx.BlockBytes, 0, txCtx.Params, blkCtx.UncleProvider, flags); err != nil {
		return Result{}, err
	}

	if !flags.Has(DisableAll) && !flags.Has(DisableTwoPhaseCommit) {
		if err := CheckCommitWindow(blk.Header, blk.NonCellbaseTransactions(), blkCtx.ProposedAt, txCtx.Params); err != nil {
			return Result{}, err
		}
	}

	result := Result{Fees: make([]types.Capacity, 0, len(blk.Transactions)-1)}
	for i, tx := range blk.Transactions {
		if i == 0 {
			continue // cellbase: no contextual checks beyond VerifyCellbase, already run.
		}
		rtx, ok := blkCtx.resolved(tx.Hash())
		if !ok {
			return Result{}, newTxError(ResolveFailed, tx.Hash(), "not resolved")
		}
		fee, cycles, err := VerifyTransaction(rtx, blk.Header.Version, txCtx, flags)
		if err != nil {
			return Result{}, err
		}
		result.Fees = append(result.Fees, fee)
		result.TotalCycles += cycles
		newTotal, err := result.TotalFee.Add(fee)
		if err != nil {
			return Result{}, newTxError(CapacityInsufficient, tx.Hash(), "total fee overflow: %v", err)
		}
		result.TotalFee = newTotal
	}

	if err := VerifyBudget(blkCtx.BlockBytes, result.TotalCycles, txCtx.Params); err != nil {
		return Result{}, err
	}

	return result, nil
}

// AdvanceState runs the §4.5.4 state machine transition implied by a
// verification outcome: nil error advances toward BlockValid one step at a
// time; any error jumps straight to BlockInvalid. Both are legal per
// BlockState.CanAdvanceTo.
func AdvanceState(current BlockState, verifyErr error) (BlockState, error) {
	if verifyErr != nil {
		if !current.CanAdvanceTo(BlockInvalid) {
			return current, fmt.Errorf("state machine: cannot invalidate block in state %s", current)
		}
		return BlockInvalid, nil
	}
	next := current + 1
	if !current.CanAdvanceTo(next) {
		return current, fmt.Errorf("state machine: cannot advance %s to %s", current, next)
	}
	return next, nil
}
