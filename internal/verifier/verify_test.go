package verifier

import (
	"testing"

	"github.com/klingon-tech/cellnode/internal/cellprovider"
	"github.com/klingon-tech/cellnode/pkg/types"
)

func cellbaseOnlyBlock() (*types.Block, BlockContext, TxContext) {
	header, hctx := validHeaderCtx()
	txs := []types.Transaction{cellbaseTx(header.Number)}
	header.TransactionsRoot = TransactionsRoot(txs)
	header.ProposalsHash = ProposalsHash(nil)
	header.ExtraHash = ExtraHash(nil, nil)

	blk := &types.Block{Header: header, Transactions: txs}
	blkCtx := BlockContext{Header: hctx, UncleProvider: fakeUncleProvider{}, BlockBytes: 10}
	txCtx := TxContext{Params: hctx.Params}
	return blk, blkCtx, txCtx
}

func TestVerifyBlockAcceptsCellbaseOnlyBlock(t *testing.T) {
	blk, blkCtx, txCtx := cellbaseOnlyBlock()
	result, err := VerifyBlock(blk, blkCtx, txCtx, 0)
	if err != nil {
		t.Fatalf("expected a well-formed cellbase-only block to pass, got %v", err)
	}
	if len(result.Fees) != 0 || result.TotalFee != 0 || result.TotalCycles != 0 {
		t.Fatalf("expected an empty result for a cellbase-only block, got %+v", result)
	}
}

func TestVerifyBlockRejectsBadHeader(t *testing.T) {
	blk, blkCtx, txCtx := cellbaseOnlyBlock()
	blk.Header.Version = 99
	_, err := VerifyBlock(blk, blkCtx, txCtx, 0)
	if _, ok := err.(*HeaderError); !ok {
		t.Fatalf("expected a header failure to surface as *HeaderError, got %T (%v)", err, err)
	}
}

func TestVerifyBlockRejectsBadRoots(t *testing.T) {
	blk, blkCtx, txCtx := cellbaseOnlyBlock()
	blk.Header.ProposalsHash = types.Hash256{1}
	_, err := VerifyBlock(blk, blkCtx, txCtx, 0)
	assertBlockErrorKind(t, err, BadProposalsHash)
}

func TestVerifyBlockRejectsUnresolvedTransaction(t *testing.T) {
	blk, blkCtx, txCtx := cellbaseOnlyBlock()
	extra := ordinaryTx(9)
	blk.Transactions = append(blk.Transactions, extra)
	blk.Header.TransactionsRoot = TransactionsRoot(blk.Transactions)

	_, err := VerifyBlock(blk, blkCtx, txCtx, DisableTwoPhaseCommit)
	assertTxErrorKind(t, err, ResolveFailed)
}

func TestBlockContextWithResolved(t *testing.T) {
	tx := ordinaryTx(1)
	rtx := &cellprovider.ResolvedTransaction{Transaction: tx}
	ctx := BlockContext{}.WithResolved(map[types.Hash256]*cellprovider.ResolvedTransaction{tx.Hash(): rtx})

	got, ok := ctx.resolved(tx.Hash())
	if !ok || got != rtx {
		t.Fatalf("expected WithResolved to make the transaction retrievable by hash")
	}

	if _, ok := ctx.resolved(types.Hash256{0xff}); ok {
		t.Fatalf("expected an unknown hash to miss")
	}
}
