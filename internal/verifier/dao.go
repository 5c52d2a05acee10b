package verifier

import (
	"fmt"

	"github.com/klingon-tech/cellnode/internal/cellprovider"
	"github.com/klingon-tech/cellnode/internal/consensus"
	"github.com/klingon-tech/cellnode/pkg/types"
)

// isDaoDeposit reports whether cell is marked as a NervosDAO deposit:
// its type script's hash matches params.DaoTypeHash. A zero DaoTypeHash
// disables DAO checks network-wide (spec.md §4.5.3 item 6, carried from
// original_source/ as a supplemented feature; spec.md's distillation
// leaves it unspecified beyond "if the input is a DAO-locked cell").
func isDaoDeposit(cell types.CellMeta, params consensus.Params) bool {
	if params.DaoTypeHash.IsZero() {
		return false
	}
	return cell.Output.Type != nil && cell.Output.Type.Hash() == params.DaoTypeHash
}

// VerifyDaoWithdraw enforces spec.md §4.5.3 item 6 for every resolved
// input that is a DAO deposit cell: the spending transaction must carry a
// header_dep naming the withdrawal-phase header, and the input's since
// must be an absolute SinceEpoch value at least DaoWithdrawMinEpochs past
// the deposit's own epoch.
//
// The withdrawal header_dep is matched positionally: the i-th DAO input
// is paired with rtx.HeaderDeps[i] unless rtx has exactly one header_dep,
// in which case every DAO input shares it (the common case: a single
// withdrawal transaction spending several deposits confirmed around the
// same tip).
func VerifyDaoWithdraw(rtx *cellprovider.ResolvedTransaction, tx types.Transaction, params consensus.Params) error {
	if params.DaoTypeHash.IsZero() {
		return nil
	}

	daoInputIdx := 0
	for i, cell := range rtx.Inputs {
		if !isDaoDeposit(cell, params) {
			continue
		}

		withdrawalHeader, err := daoHeaderDepFor(rtx, daoInputIdx)
		if err != nil {
			return newTxError(DaoWithdrawInvalid, tx.Hash(), "input %d: %v", i, err)
		}
		daoInputIdx++

		since := tx.Inputs[i].Since
		if since.IsRelative() || since.Metric() != types.SinceEpoch {
			return newTxError(DaoWithdrawInvalid, tx.Hash(), "input %d: since must be an absolute epoch value", i)
		}

		requiredEpoch := cell.EpochNumber + params.DaoWithdrawMinEpochs
		withdrawalEpoch := withdrawalHeader.EpochFraction().Number
		if withdrawalEpoch < requiredEpoch {
			return newTxError(DaoWithdrawInvalid, tx.Hash(), "input %d: withdrawal epoch %d precedes deposit epoch %d + minimum %d", i, withdrawalEpoch, cell.EpochNumber, params.DaoWithdrawMinEpochs)
		}

		sinceEpoch := types.UnpackEpoch(since.Value())
		if sinceEpoch.Number < requiredEpoch {
			return newTxError(DaoWithdrawInvalid, tx.Hash(), "input %d: since epoch %d precedes required epoch %d", i, sinceEpoch.Number, requiredEpoch)
		}
	}
	return nil
}

// daoHeaderDepFor returns the withdrawal-phase header a DAO input pairs
// with: rtx.HeaderDeps[idx] if there are at least idx+1 of them, else the
// sole header_dep if there is exactly one, else an error.
func daoHeaderDepFor(rtx *cellprovider.ResolvedTransaction, idx int) (types.Header, error) {
	switch {
	case len(rtx.HeaderDeps) == 1:
		return rtx.HeaderDeps[0], nil
	case idx < len(rtx.HeaderDeps):
		return rtx.HeaderDeps[idx], nil
	default:
		return types.Header{}, fmt.Errorf("missing withdrawal header_dep")
	}
}
