package chain

import (
	"testing"

	"github.com/klingon-tech/cellnode/internal/consensus"
	"github.com/klingon-tech/cellnode/internal/storage"
	"github.com/klingon-tech/cellnode/internal/store"
	"github.com/klingon-tech/cellnode/internal/verifier"
	"github.com/klingon-tech/cellnode/pkg/types"
)

// testCompactTargetA/B pick two distinct, fixed-difficulty compact targets
// (exponent 3, so target == mantissa exactly): B's smaller target beats A's,
// letting reorg tests build a fork that overtakes an equal-length rival
// without depending on PoW or epoch adjustment.
const (
	testCompactTargetA uint32 = 0x0300ea60 // target 60000
	testCompactTargetB uint32 = 0x0300c350 // target 50000, so diff_B > diff_A
)

func testNow() uint64 { return 1_700_000_000 }

// cellbaseTx builds the sole transaction a test block needs: a cellbase
// paying reward to a throwaway lock distinguished by lockArgs, with the
// since value VerifyCellbase requires (equal to the block's own number).
func cellbaseTx(number uint64, reward types.Capacity, lockArgs byte) types.Transaction {
	return types.Transaction{
		Inputs: []types.Input{{PreviousOutput: types.NullOutPoint(), Since: types.Since(number)}},
		Outputs: []types.CellOutput{
			{Capacity: reward, Lock: types.Script{CodeHash: types.Hash256{lockArgs}, HashType: types.HashTypeType}},
		},
		OutputsData: [][]byte{{}},
	}
}

func testGenesisBlock() *types.Block {
	return &types.Block{
		Header:       types.Header{Number: 0, CompactTarget: testCompactTargetA},
		Transactions: []types.Transaction{cellbaseTx(0, 5000, 0x01)},
	}
}

// newTestChain returns a fresh in-memory chain service seeded with a
// genesis block, and the genesis block itself.
func newTestChain(t *testing.T) (*Service, *types.Block) {
	t.Helper()
	db := store.New(storage.NewMemory())
	params := consensus.DefaultTestnet()

	svc, err := New(db, params, testNow)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	gen := testGenesisBlock()
	if err := svc.InitGenesis(gen, consensus.GenesisEpoch(params, testCompactTargetA)); err != nil {
		t.Fatalf("InitGenesis: %v", err)
	}
	return svc, gen
}

// buildChild builds a block extending parent with a single cellbase
// transaction, under compactTarget, distinguished from any sibling built
// off the same parent by nonce.
func buildChild(parent *types.Block, compactTarget uint32, nonce byte, lockArgs byte) *types.Block {
	number := parent.Header.Number + 1
	header := types.Header{
		Number:        number,
		CompactTarget: compactTarget,
		ParentHash:    parent.Header.Hash(),
	}
	header.Nonce[0] = nonce
	return &types.Block{
		Header:       header,
		Transactions: []types.Transaction{cellbaseTx(number, 5000, lockArgs)},
	}
}

// recordingNotifier captures every Event a Service delivers, in order.
type recordingNotifier struct {
	events []Event
}

func (r *recordingNotifier) ChainAccepted(e Event) {
	r.events = append(r.events, e)
}

func TestInitGenesis_DoubleInitRejected(t *testing.T) {
	svc, gen := newTestChain(t)
	err := svc.InitGenesis(gen, consensus.GenesisEpoch(svc.Params(), testCompactTargetA))
	if err == nil {
		t.Fatal("expected error re-initializing an already-initialized chain")
	}
}

func TestProcessBlock_ExtendsTip(t *testing.T) {
	svc, gen := newTestChain(t)
	var notifier recordingNotifier
	svc.Subscribe(&notifier)

	child := buildChild(gen, testCompactTargetA, 0x01, 0x02)
	state, err := svc.ProcessBlock(child, verifier.DisableAll)
	if err != nil {
		t.Fatalf("ProcessBlock: %v", err)
	}
	if state != verifier.BlockValid {
		t.Fatalf("state = %v, want BlockValid", state)
	}
	if got := svc.Tip().Hash(); got != child.Header.Hash() {
		t.Fatalf("tip = %s, want %s", got, child.Header.Hash())
	}
	if svc.Height() != 1 {
		t.Fatalf("height = %d, want 1", svc.Height())
	}

	if len(notifier.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(notifier.events))
	}
	evt := notifier.events[0]
	if !evt.MainChain || evt.Tip != child.Header.Hash() {
		t.Fatalf("unexpected event: %+v", evt)
	}
	if len(evt.Applied) != 1 || evt.Applied[0].Header.Hash() != child.Header.Hash() {
		t.Fatalf("unexpected applied blocks: %+v", evt.Applied)
	}
}

func TestProcessBlock_UnknownParent(t *testing.T) {
	svc, _ := newTestChain(t)
	orphan := &types.Block{
		Header: types.Header{
			Number:        5,
			CompactTarget: testCompactTargetA,
			ParentHash:    types.Hash256{0xff},
		},
		Transactions: []types.Transaction{cellbaseTx(5, 5000, 0x03)},
	}
	_, err := svc.ProcessBlock(orphan, verifier.DisableAll)
	if err == nil {
		t.Fatal("expected error for unknown parent")
	}
	chainErr, ok := err.(*Error)
	if !ok || chainErr.Kind != UnknownParent {
		t.Fatalf("expected UnknownParent, got %v", err)
	}
}

func TestProcessBlock_AlreadyKnown(t *testing.T) {
	svc, gen := newTestChain(t)
	child := buildChild(gen, testCompactTargetA, 0x01, 0x02)
	if _, err := svc.ProcessBlock(child, verifier.DisableAll); err != nil {
		t.Fatalf("first ProcessBlock: %v", err)
	}

	_, err := svc.ProcessBlock(child, verifier.DisableAll)
	if err == nil {
		t.Fatal("expected error re-processing a known block")
	}
	chainErr, ok := err.(*Error)
	if !ok || chainErr.Kind != AlreadyKnown {
		t.Fatalf("expected AlreadyKnown, got %v", err)
	}
}

func TestProcessBlock_GenesisReplacementRejected(t *testing.T) {
	svc, gen := newTestChain(t)
	replacement := &types.Block{
		Header:       types.Header{Number: 0, CompactTarget: testCompactTargetB, ParentHash: gen.Header.ParentHash},
		Transactions: []types.Transaction{cellbaseTx(0, 5000, 0x09)},
	}
	_, err := svc.ProcessBlock(replacement, verifier.DisableAll)
	if err == nil {
		t.Fatal("expected error submitting a second genesis")
	}
	chainErr, ok := err.(*Error)
	if !ok || chainErr.Kind != GenesisReplacement {
		t.Fatalf("expected GenesisReplacement, got %v", err)
	}
}
