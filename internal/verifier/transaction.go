package verifier

import (
	"github.com/klingon-tech/cellnode/internal/cellprovider"
	"github.com/klingon-tech/cellnode/internal/consensus"
	"github.com/klingon-tech/cellnode/internal/vm"
	"github.com/klingon-tech/cellnode/pkg/types"
)

// MaxCellDataSize bounds a single output's data, per spec.md §4.5.3 item 8.
const MaxCellDataSize = 256 * 1024

// TxContext carries the chain state a contextual transaction check needs
// beyond the resolved transaction itself: the tip's maturity/since
// reference point and the VM run configuration.
type TxContext struct {
	TipBlockNumber uint64
	TipEpoch       types.EpochNumberWithFraction
	TipTimestamp   uint64
	Params         consensus.Params
	VMConfig       vm.RunConfig
}

// VerifyTransactionStructure checks spec.md §4.5.3 item 1: non-empty
// inputs (unless cellbase) and outputs, matching outputs/outputs_data
// lengths, at least as many witnesses as inputs, and a recognized version.
func VerifyTransactionStructure(tx types.Transaction, isCellbase bool, blockVersion uint32) error {
	if tx.Version != blockVersion {
		return newTxError(BadStructure, tx.Hash(), "version %d, want %d", tx.Version, blockVersion)
	}
	if !isCellbase && len(tx.Inputs) == 0 {
		return newTxError(BadStructure, tx.Hash(), "no inputs")
	}
	if len(tx.Outputs) == 0 {
		return newTxError(BadStructure, tx.Hash(), "no outputs")
	}
	if len(tx.Outputs) != len(tx.OutputsData) {
		return newTxError(BadStructure, tx.Hash(), "%d outputs but %d outputs_data", len(tx.Outputs), len(tx.OutputsData))
	}
	if len(tx.Witnesses) < len(tx.Inputs) {
		return newTxError(BadStructure, tx.Hash(), "%d witnesses for %d inputs", len(tx.Witnesses), len(tx.Inputs))
	}
	return nil
}

// VerifyCapacity checks spec.md §4.5.3 item 4: every output covers its own
// occupied capacity, and input capacity sum is at least output capacity
// sum. The difference is the transaction's fee.
func VerifyCapacity(rtx *cellprovider.ResolvedTransaction) (fee types.Capacity, err error) {
	tx := rtx.Transaction
	for i, out := range tx.Outputs {
		var data []byte
		if i < len(tx.OutputsData) {
			data = tx.OutputsData[i]
		}
		if verr := out.Validate(data); verr != nil {
			return 0, newTxError(CapacityInsufficient, tx.Hash(), "output %d: %v", i, verr)
		}
	}

	inputTotal, err := rtx.InputCapacity()
	if err != nil {
		return 0, newTxError(CapacityInsufficient, tx.Hash(), "summing inputs: %v", err)
	}
	outputTotal, err := rtx.OutputCapacity()
	if err != nil {
		return 0, newTxError(CapacityInsufficient, tx.Hash(), "summing outputs: %v", err)
	}
	fee, err = inputTotal.Sub(outputTotal)
	if err != nil {
		return 0, newTxError(CapacityInsufficient, tx.Hash(), "inputs %d below outputs %d", inputTotal, outputTotal)
	}
	return fee, nil
}

// VerifySince checks spec.md §4.5.3 item 3: every input's since, if any, is
// satisfied against the tip.
func VerifySince(rtx *cellprovider.ResolvedTransaction, ctx TxContext) error {
	tx := rtx.Transaction
	for i, in := range tx.Inputs {
		if i >= len(rtx.Inputs) {
			break // cellbase: no resolved cell to confirm against.
		}
		cell := rtx.Inputs[i]
		confirmCtx := consensus.ConfirmationContext{
			CellBlockNumber: cell.BlockNumber,
			CellEpoch:       types.EpochNumberWithFraction{Number: cell.EpochNumber},
			CellTimestamp:   cell.BlockTimestamp,
			TipBlockNumber:  ctx.TipBlockNumber,
			TipEpoch:        ctx.TipEpoch,
			TipTimestamp:    ctx.TipTimestamp,
		}
		if err := consensus.CheckSince(in.Since, confirmCtx); err != nil {
			return newTxError(SinceImmature, tx.Hash(), "input %d: %v", i, err)
		}
	}
	return nil
}

// VerifyCellbaseMaturity checks spec.md §4.5.3 item 5: no input spends a
// cellbase output before CellbaseMaturity blocks have passed.
func VerifyCellbaseMaturity(rtx *cellprovider.ResolvedTransaction, ctx TxContext) error {
	tx := rtx.Transaction
	for i, cell := range rtx.Inputs {
		if !cell.IsCellbase {
			continue
		}
		if !consensus.CellbaseMature(ctx.Params, cell.BlockNumber, ctx.TipBlockNumber+1) {
			return newTxError(CellbaseImmaturity, tx.Hash(), "input %d: cellbase from block %d not yet mature at %d", i, cell.BlockNumber, ctx.TipBlockNumber+1)
		}
	}
	return nil
}

// VerifyOutputData checks spec.md §4.5.3 item 8: no output's data exceeds
// MaxCellDataSize.
func VerifyOutputData(tx types.Transaction) error {
	for i, data := range tx.OutputsData {
		if len(data) > MaxCellDataSize {
			return newTxError(OutputDataTooLarge, tx.Hash(), "output %d: %d bytes exceeds max %d", i, len(data), MaxCellDataSize)
		}
	}
	return nil
}

// VerifyScripts checks spec.md §4.5.3 item 7: every script group executes
// to a zero exit code within the shared cycle and memory budgets. It
// returns the total cycles consumed across every group, for the block's
// overall cycle budget.
func VerifyScripts(rtx *cellprovider.ResolvedTransaction, cfg vm.RunConfig) (uint64, error) {
	results, err := vm.VerifyTransaction(rtx, cfg)
	if err != nil {
		return 0, newTxError(ScriptFailure, rtx.Transaction.Hash(), "%v", err)
	}
	var total uint64
	for _, r := range results {
		total += r.Cycles
	}
	return total, nil
}

// VerifyTransaction runs every §4.5.3 contextual check against a resolved
// non-cellbase transaction in order, returning the fee and total script
// cycles on success. flags may disable individual phases for import
// tooling replaying an already-validated chain.
func VerifyTransaction(rtx *cellprovider.ResolvedTransaction, blockVersion uint32, ctx TxContext, flags SwitchFlags) (fee types.Capacity, cycles uint64, err error) {
	tx := rtx.Transaction

	if !flags.Has(DisableAll) && !flags.Has(DisableNonContextual) {
		if err := VerifyTransactionStructure(tx, false, blockVersion); err != nil {
			return 0, 0, err
		}
		if err := VerifyOutputData(tx); err != nil {
			return 0, 0, err
		}
	}

	if flags.Has(DisableAll) {
		fee, err = VerifyCapacity(rtx)
		return fee, 0, err
	}

	if err := VerifySince(rtx, ctx); err != nil {
		return 0, 0, err
	}

	fee, err = VerifyCapacity(rtx)
	if err != nil {
		return 0, 0, err
	}

	if err := VerifyCellbaseMaturity(rtx, ctx); err != nil {
		return 0, 0, err
	}

	if !flags.Has(DisableDaoHeader) {
		if err := VerifyDaoWithdraw(rtx, tx, ctx.Params); err != nil {
			return 0, 0, err
		}
	}

	if !flags.Has(DisableScript) {
		cycles, err = VerifyScripts(rtx, ctx.VMConfig)
		if err != nil {
			return 0, 0, err
		}
	}

	return fee, cycles, nil
}
