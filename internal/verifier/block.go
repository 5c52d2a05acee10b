package verifier

import (
	"github.com/klingon-tech/cellnode/internal/consensus"
	"github.com/klingon-tech/cellnode/pkg/crypto"
	"github.com/klingon-tech/cellnode/pkg/merkle"
	"github.com/klingon-tech/cellnode/pkg/types"
)

// MinUncleDistance is how many blocks back, at minimum, an uncle must sit relative to the block referencing it (spec.md §4.5.2 item 2a).
const MinUncleDistance = 6

// UncleProvider answers the ancestry and main-chain-membership questions
// uncle verification needs, without pulling the whole store package into
// this one's import graph.
type UncleProvider interface {
	HeaderByHash(hash types.Hash256) (types.Header, bool)
	IsMainChainBlock(hash types.Hash256) bool
}

// TransactionsRoot computes the header's transactions_root: the merkle
// root of the tx-hash root merged with the witness-hash root (spec.md
// §4.5.2 item 3, "merkle_root of transactions_root || witnesses_root").
func TransactionsRoot(txs []types.Transaction) types.Hash256 {
	txHashes := make([]types.Hash256, len(txs))
	wHashes := make([]types.Hash256, len(txs))
	for i, tx := range txs {
		txHashes[i] = tx.Hash()
		wHashes[i] = tx.WitnessHash()
	}
	txRoot := merkle.Root(txHashes, crypto.HashConcat)
	witnessRoot := merkle.Root(wHashes, crypto.HashConcat)
	return merkle.Root([]types.Hash256{txRoot, witnessRoot}, crypto.HashConcat)
}

// ProposalsHash computes the header's proposals_hash: the merkle root over
// every proposed short id's hash, or the zero hash if none are proposed
// (spec.md §4.5.2 item 4).
func ProposalsHash(proposals []types.ProposalShortID) types.Hash256 {
	if len(proposals) == 0 {
		return types.Hash256{}
	}
	leaves := make([]types.Hash256, len(proposals))
	for i, id := range proposals {
		leaves[i] = crypto.Hash(id[:])
	}
	return merkle.Root(leaves, crypto.HashConcat)
}

// ExtraHash computes the header's extra_hash: the merkle of uncles_root
// merged with the extension's hash, if any (spec.md §4.5.2 item 5).
func ExtraHash(uncles []types.UncleBlock, extension []byte) types.Hash256 {
	unclesRoot := unclesRoot(uncles)
	if len(extension) == 0 {
		return unclesRoot
	}
	return merkle.Root([]types.Hash256{unclesRoot, crypto.Hash(extension)}, crypto.HashConcat)
}

func unclesRoot(uncles []types.UncleBlock) types.Hash256 {
	if len(uncles) == 0 {
		return types.Hash256{}
	}
	leaves := make([]types.Hash256, len(uncles))
	for i, u := range uncles {
		leaves[i] = u.Header.Hash()
	}
	return merkle.Root(leaves, crypto.HashConcat)
}

// VerifyCellbase checks spec.md §4.5.2 item 1: the cellbase sits at index
// 0, is the only cellbase-shaped transaction, and its sole input's since
// equals the block number.
func VerifyCellbase(blk *types.Block) error {
	if !blk.HasValidCellbasePosition() {
		return newBlockError(BadCellbasePosition, "transaction 0 must be the only cellbase-shaped transaction")
	}
	cellbase := blk.Cellbase()
	wantSince := types.Since(blk.Header.Number)
	if cellbase.Inputs[0].Since != wantSince {
		return newBlockError(BadCellbaseSince, "cellbase since %d must equal block number %d", cellbase.Inputs[0].Since, blk.Header.Number)
	}
	return nil
}

// VerifyUncles checks spec.md §4.5.2 item 2: at most params.MaxUnclesCount
// uncles, each referencing an ancestor within the same epoch at least
// MinUncleDistance blocks back, none repeating a main-chain block, and no
// two uncles duplicating each other.
func VerifyUncles(header types.Header, uncles []types.UncleBlock, params consensus.Params, provider UncleProvider) error {
	if uint64(len(uncles)) > params.MaxUnclesCount {
		return newBlockError(TooManyUncles, "got %d, max %d", len(uncles), params.MaxUnclesCount)
	}

	seen := map[types.Hash256]bool{}
	for _, u := range uncles {
		uncleHash := u.Header.Hash()
		if seen[uncleHash] {
			return newBlockError(DuplicateUncle, "%s referenced twice", uncleHash)
		}
		seen[uncleHash] = true

		if provider.IsMainChainBlock(uncleHash) {
			return newBlockError(BadUncle, "%s is a main-chain block", uncleHash)
		}

		if _, ok := provider.HeaderByHash(u.Header.ParentHash); !ok || !provider.IsMainChainBlock(u.Header.ParentHash) {
			return newBlockError(BadUncle, "%s's parent %s is not a known main-chain ancestor", uncleHash, u.Header.ParentHash)
		}

		if header.Number < u.Header.Number+MinUncleDistance {
			return newBlockError(BadUncle, "%s is only %d blocks back, need %d", uncleHash, header.Number-u.Header.Number, MinUncleDistance)
		}

		if u.Header.EpochFraction().Number != header.EpochFraction().Number {
			return newBlockError(BadUncle, "%s is not in the same epoch as %s", uncleHash, header.Hash())
		}
	}
	return nil
}

// VerifyRoots checks spec.md §4.5.2 items 3-5: transactions_root,
// proposals_hash, and extra_hash each match their recomputed value.
func VerifyRoots(blk *types.Block) error {
	if got, want := blk.Header.TransactionsRoot, TransactionsRoot(blk.Transactions); got != want {
		return newBlockError(BadTransactionsRoot, "got %s, want %s", got, want)
	}
	if got, want := blk.Header.ProposalsHash, ProposalsHash(blk.Proposals); got != want {
		return newBlockError(BadProposalsHash, "got %s, want %s", got, want)
	}
	if got, want := blk.Header.ExtraHash, ExtraHash(blk.Uncles, blk.Extension); got != want {
		return newBlockError(BadExtraHash, "got %s, want %s", got, want)
	}
	return nil
}

// VerifyBudget checks spec.md §4.5.2 item 6: serialized size and total
// script cycles stay within the network's configured ceilings.
func VerifyBudget(blockBytes int, totalCycles uint64, params consensus.Params) error {
	if uint64(blockBytes) > params.MaxBlockBytes {
		return newBlockError(BlockTooLarge, "%d bytes exceeds max %d", blockBytes, params.MaxBlockBytes)
	}
	if totalCycles > params.MaxBlockCycles {
		return newBlockError(BlockTooManyCycles, "%d cycles exceeds max %d", totalCycles, params.MaxBlockCycles)
	}
	return nil
}

// CheckCommitWindow checks spec.md §4.5.2 item 7: every non-cellbase
// transaction committed in this block must have been proposed within its
// proposal window. proposedAt maps a short id to the block number it was
// first proposed at; a transaction absent from it was never proposed.
func CheckCommitWindow(header types.Header, txs []types.Transaction, proposedAt map[types.ProposalShortID]uint64, params consensus.Params) error {
	close, far := consensus.ProposalWindow(params)
	for _, tx := range txs {
		id := types.ProposalShortIDFromHash(tx.Hash())
		proposedAtNumber, ok := proposedAt[id]
		if !ok {
			return newBlockError(CommitWindowViolation, "tx %s was never proposed", tx.Hash())
		}
		offset := header.Number - proposedAtNumber
		if offset < close || offset > far {
			return newBlockError(CommitWindowViolation, "tx %s proposed %d blocks before commit, window is [%d,%d]", tx.Hash(), offset, close, far)
		}
	}
	return nil
}

// VerifyBlockStructure runs every §4.5.2 check that does not require
// resolving cells: cellbase shape, uncles, commitment roots, and the
// size/cycle budget. totalCycles is the sum of every transaction's script
// execution cycles, computed by the caller after contextual verification;
// pass 0 to skip the cycle half of the budget check (e.g. when verifying
// structure before scripts have run).
func VerifyBlockStructure(blk *types.Block, blockBytes int, totalCycles uint64, params consensus.Params, uncleProvider UncleProvider, flags SwitchFlags) error {
	if flags.Has(DisableAll) {
		if err := VerifyCellbase(blk); err != nil {
			return err
		}
		return nil
	}

	if err := VerifyCellbase(blk); err != nil {
		return err
	}
	if !flags.Has(DisableNonContextual) {
		if err := VerifyUncles(blk.Header, blk.Uncles, params, uncleProvider); err != nil {
			return err
		}
		if err := VerifyRoots(blk); err != nil {
			return err
		}
		if err := VerifyBudget(blockBytes, totalCycles, params); err != nil {
			return err
		}
	}
	return nil
}
