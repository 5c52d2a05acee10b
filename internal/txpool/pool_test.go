package txpool

import (
	"testing"

	"github.com/klingon-tech/cellnode/internal/consensus"
	"github.com/klingon-tech/cellnode/internal/verifier"
	"github.com/klingon-tech/cellnode/pkg/types"
)

// validatorFunc adapts a plain function to the Validator interface so
// each test can script fees/cycles/errors per transaction hash.
type validatorFunc func(types.Transaction) (types.Capacity, uint64, error)

func (f validatorFunc) Validate(tx types.Transaction) (types.Capacity, uint64, error) {
	return f(tx)
}

func acceptAll(fee types.Capacity) Validator {
	return validatorFunc(func(types.Transaction) (types.Capacity, uint64, error) {
		return fee, 0, nil
	})
}

func mkTx(inputTxHash byte, outputCapacity types.Capacity) types.Transaction {
	return types.Transaction{
		Version:     1,
		Inputs:      []types.Input{{PreviousOutput: types.OutPoint{TxHash: types.Hash256{inputTxHash}}}},
		Outputs:     []types.CellOutput{{Capacity: outputCapacity}},
		OutputsData: [][]byte{nil},
		Witnesses:   [][]byte{{}},
	}
}

func childOf(parent types.Hash256, outputCapacity types.Capacity) types.Transaction {
	return types.Transaction{
		Version:     1,
		Inputs:      []types.Input{{PreviousOutput: types.OutPoint{TxHash: parent}}},
		Outputs:     []types.CellOutput{{Capacity: outputCapacity}},
		OutputsData: [][]byte{nil},
		Witnesses:   [][]byte{{}},
	}
}

func TestSubmitAcceptsAndQueries(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinFeeRate = 0
	p := New(cfg, acceptAll(1000), 0)

	tx := mkTx(1, 1000)
	e, err := p.Submit(tx)
	if err != nil {
		t.Fatalf("expected submit to succeed, got %v", err)
	}
	if e.Status != Pending {
		t.Fatalf("expected a new entry to start Pending, got %s", e.Status)
	}
	if !p.Has(tx.Hash()) {
		t.Fatalf("expected Has to report the submitted tx")
	}
	if p.Count() != 1 {
		t.Fatalf("expected count 1, got %d", p.Count())
	}
}

func TestSubmitRejectsDuplicate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinFeeRate = 0
	p := New(cfg, acceptAll(1000), 0)

	tx := mkTx(1, 1000)
	if _, err := p.Submit(tx); err != nil {
		t.Fatalf("unexpected error on first submit: %v", err)
	}
	_, err := p.Submit(tx)
	assertPoolErrorKind(t, err, Duplicate)
}

func TestSubmitRejectsImmatureTransaction(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinFeeRate = 0
	immature := validatorFunc(func(tx types.Transaction) (types.Capacity, uint64, error) {
		return 0, 0, &verifier.TxError{Kind: verifier.CellbaseImmaturity, TxHash: tx.Hash().String(), Detail: "cellbase not yet mature"}
	})
	p := New(cfg, immature, 0)

	tx := mkTx(1, 1000)
	_, err := p.Submit(tx)
	assertPoolErrorKind(t, err, ImmatureTransaction)

	// A second submit should short-circuit via the recent-reject cache
	// rather than re-invoking the validator.
	_, err = p.Submit(tx)
	assertPoolErrorKind(t, err, RecentlyRejected)
}

func TestSubmitRejectsLowFeeRate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinFeeRate = 1_000_000 // far above any fee this transaction can pay
	p := New(cfg, acceptAll(100), 0)

	_, err := p.Submit(mkTx(1, 1000))
	assertPoolErrorKind(t, err, LowFeeRate)
}

func TestSubmitRejectsExceededAncestors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinFeeRate = 0
	cfg.MaxAncestors = 1
	p := New(cfg, acceptAll(1000), 0)

	parent := mkTx(1, 1000)
	if _, err := p.Submit(parent); err != nil {
		t.Fatalf("unexpected error submitting parent: %v", err)
	}

	child := childOf(parent.Hash(), 900)
	_, err := p.Submit(child)
	assertPoolErrorKind(t, err, ExceededMaximumAncestorsCount)
}

func TestAncestorAccountingSumsParentAndSelf(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinFeeRate = 0
	p := New(cfg, acceptAll(500), 0)

	parent := mkTx(1, 1000)
	if _, err := p.Submit(parent); err != nil {
		t.Fatalf("unexpected error submitting parent: %v", err)
	}
	child := childOf(parent.Hash(), 900)
	if _, err := p.Submit(child); err != nil {
		t.Fatalf("unexpected error submitting child: %v", err)
	}

	e, _ := p.Get(child.Hash())
	if e.AncestorsCount != 2 {
		t.Fatalf("expected child to count 2 ancestors (self+parent), got %d", e.AncestorsCount)
	}
	if e.AncestorsFee != 1000 {
		t.Fatalf("expected ancestors_fee 500+500=1000, got %d", e.AncestorsFee)
	}
}

func TestEvictionRemovesLowestRankedPending(t *testing.T) {
	tx1 := mkTx(1, 1000)
	size1 := uint64(len(tx1.Serialize()))

	cfg := DefaultConfig()
	cfg.MinFeeRate = 0
	cfg.MaxMemSize = size1 // only one transaction's worth of room

	tx1Hash := tx1.Hash()
	tx2 := mkTx(2, 1000)
	tx2Hash := tx2.Hash()

	validator := validatorFunc(func(tx types.Transaction) (types.Capacity, uint64, error) {
		if tx.Hash() == tx1Hash {
			return 100, 0, nil // low fee: should be evicted
		}
		return 5000, 0, nil // high fee: should survive
	})
	p := New(cfg, validator, 0)

	if _, err := p.Submit(tx1); err != nil {
		t.Fatalf("unexpected error submitting tx1: %v", err)
	}
	if _, err := p.Submit(tx2); err != nil {
		t.Fatalf("unexpected error submitting tx2: %v", err)
	}

	if p.Has(tx1Hash) {
		t.Fatalf("expected the low-fee transaction to be evicted")
	}
	if !p.Has(tx2Hash) {
		t.Fatalf("expected the high-fee transaction to survive eviction")
	}
}

func TestReplaceByFeeAcceptsSufficientDelta(t *testing.T) {
	incumbent := mkTx(1, 1000)
	size := uint64(len(incumbent.Serialize()))
	incumbentHash := incumbent.Hash()

	cfg := DefaultConfig()
	cfg.MinFeeRate = 0
	cfg.MinRBFFeeRateDelta = 10
	cfg.MinRelayFeeRate = 1

	replacement := mkTx(1, 999) // same input, different output -> conflicts
	replacementHash := replacement.Hash()

	const incumbentFee types.Capacity = 1000
	replacementFee := incumbentFee + types.Capacity(10*size) + 100

	validator := validatorFunc(func(tx types.Transaction) (types.Capacity, uint64, error) {
		if tx.Hash() == incumbentHash {
			return incumbentFee, 0, nil
		}
		return replacementFee, 0, nil
	})
	p := New(cfg, validator, 0)

	if _, err := p.Submit(incumbent); err != nil {
		t.Fatalf("unexpected error submitting incumbent: %v", err)
	}
	if _, err := p.Submit(replacement); err != nil {
		t.Fatalf("expected replacement to be accepted, got %v", err)
	}

	if p.Has(incumbentHash) {
		t.Fatalf("expected the incumbent to be evicted by RBF")
	}
	if !p.Has(replacementHash) {
		t.Fatalf("expected the replacement to be pooled")
	}
}

func TestReplaceByFeeRejectsInsufficientDelta(t *testing.T) {
	incumbent := mkTx(1, 1000)
	incumbentHash := incumbent.Hash()

	cfg := DefaultConfig()
	cfg.MinFeeRate = 0
	cfg.MinRBFFeeRateDelta = 1000 // deliberately large, easy to miss

	replacement := mkTx(1, 999)

	validator := validatorFunc(func(tx types.Transaction) (types.Capacity, uint64, error) {
		if tx.Hash() == incumbentHash {
			return 1000, 0, nil
		}
		return 1001, 0, nil // barely more, fails the required delta
	})
	p := New(cfg, validator, 0)

	if _, err := p.Submit(incumbent); err != nil {
		t.Fatalf("unexpected error submitting incumbent: %v", err)
	}
	_, err := p.Submit(replacement)
	assertPoolErrorKind(t, err, RBFRejected)
	if !p.Has(incumbentHash) {
		t.Fatalf("expected the incumbent to survive a rejected replacement")
	}
}

func TestReplaceByFeeRejectsProposedIncumbent(t *testing.T) {
	incumbent := mkTx(1, 1000)
	incumbentHash := incumbent.Hash()

	cfg := DefaultConfig()
	cfg.MinFeeRate = 0
	cfg.MinRBFFeeRateDelta = 1
	cfg.MinRelayFeeRate = 1

	replacement := mkTx(1, 999)

	validator := validatorFunc(func(tx types.Transaction) (types.Capacity, uint64, error) {
		if tx.Hash() == incumbentHash {
			return 1000, 0, nil
		}
		return 100_000, 0, nil
	})
	p := New(cfg, validator, 0)

	if _, err := p.Submit(incumbent); err != nil {
		t.Fatalf("unexpected error submitting incumbent: %v", err)
	}
	p.entries[incumbentHash].Status = Proposed

	_, err := p.Submit(replacement)
	assertPoolErrorKind(t, err, RBFRejected)
}

func TestBlockAcceptedTransitionsPendingGapProposedPending(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinFeeRate = 0
	p := New(cfg, acceptAll(1000), 0)
	params := consensus.DefaultTestnet() // ProposalWindowClose=2, ProposalWindowFar=10

	tx := mkTx(1, 1000)
	if _, err := p.Submit(tx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	id := types.ProposalShortIDFromHash(tx.Hash())

	p.BlockAccepted(BlockAcceptedEvent{BlockNumber: 10, Proposals: []types.ProposalShortID{id}}, params)
	e, _ := p.Get(tx.Hash())
	if e.Status != Gap {
		t.Fatalf("expected a freshly proposed tx to move to Gap, got %s", e.Status)
	}

	p.BlockAccepted(BlockAcceptedEvent{BlockNumber: 12}, params) // age 2, reaches ProposalWindowClose
	e, _ = p.Get(tx.Hash())
	if e.Status != Proposed {
		t.Fatalf("expected the tx to enter the commit window and become Proposed, got %s", e.Status)
	}

	p.BlockAccepted(BlockAcceptedEvent{BlockNumber: 21}, params) // age 11, past ProposalWindowFar
	e, _ = p.Get(tx.Hash())
	if e.Status != Pending {
		t.Fatalf("expected the tx to fall back to Pending once its window closes, got %s", e.Status)
	}
}

func TestBlockAcceptedRemovesCommittedTransactions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinFeeRate = 0
	p := New(cfg, acceptAll(1000), 0)

	tx := mkTx(1, 1000)
	if _, err := p.Submit(tx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p.BlockAccepted(BlockAcceptedEvent{BlockNumber: 1, CommittedTxs: []types.Hash256{tx.Hash()}}, consensus.DefaultTestnet())
	if p.Has(tx.Hash()) {
		t.Fatalf("expected a committed transaction to be removed from the pool")
	}
}

func TestBlockAcceptedResubmitsRevertedTransactions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinFeeRate = 0
	p := New(cfg, acceptAll(1000), 0)

	tx := mkTx(1, 1000)
	p.BlockAccepted(BlockAcceptedEvent{BlockNumber: 1, RevertedTxs: []types.Transaction{tx}}, consensus.DefaultTestnet())

	if !p.Has(tx.Hash()) {
		t.Fatalf("expected a reverted transaction to be re-admitted to the pool")
	}
}

func TestBlockTemplateOrdersByFeeRateAndRespectsBudget(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinFeeRate = 0

	txLow := mkTx(1, 1000)
	txHigh := mkTx(2, 1000)
	validator := validatorFunc(func(tx types.Transaction) (types.Capacity, uint64, error) {
		if tx.Hash() == txLow.Hash() {
			return 100, 0, nil
		}
		return 10_000, 0, nil
	})
	p := New(cfg, validator, 0)

	if _, err := p.Submit(txLow); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := p.Submit(txHigh); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p.entries[txLow.Hash()].Status = Proposed
	p.entries[txHigh.Hash()].Status = Proposed

	_, txs := p.BlockTemplate(1_000_000, 1_000_000)
	if len(txs) != 2 {
		t.Fatalf("expected both proposed transactions in the template, got %d", len(txs))
	}
	if txs[0].Hash() != txHigh.Hash() {
		t.Fatalf("expected the higher fee-rate transaction to be selected first")
	}
}

func assertPoolErrorKind(t *testing.T, err error, want PoolErrorKind) {
	t.Helper()
	perr, ok := err.(*PoolError)
	if !ok {
		t.Fatalf("expected *PoolError, got %T (%v)", err, err)
	}
	if perr.Kind != want {
		t.Fatalf("expected kind %s, got %s", want, perr.Kind)
	}
}
