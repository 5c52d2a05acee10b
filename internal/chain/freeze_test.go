package chain

import (
	"testing"

	"github.com/klingon-tech/cellnode/internal/freezer"
	"github.com/klingon-tech/cellnode/internal/verifier"
)

func TestFreezeAncientBlocks_MovesBlocksBelowBoundary(t *testing.T) {
	svc, gen := newTestChain(t)
	arc, err := freezer.Open(t.TempDir(), freezer.DefaultMaxFileSize)
	if err != nil {
		t.Fatalf("freezer.Open: %v", err)
	}
	defer arc.Close()
	svc.Store().SetArchive(arc)

	parent := gen
	for i := 0; i < 5; i++ {
		child := buildChild(parent, testCompactTargetA, byte(i+1), byte(i+0x10))
		if _, err := svc.ProcessBlock(child, verifier.DisableAll); err != nil {
			t.Fatalf("ProcessBlock %d: %v", i, err)
		}
		parent = child
	}
	// Tip is now at height 5. Keeping 2 hot blocks means 0..3 are ancient.
	if err := svc.FreezeAncientBlocks(arc, 2); err != nil {
		t.Fatalf("FreezeAncientBlocks: %v", err)
	}

	for number := uint64(0); number <= 3; number++ {
		if !arc.Has(number) {
			t.Fatalf("expected block %d to be frozen", number)
		}
	}
	for number := uint64(4); number <= 5; number++ {
		if arc.Has(number) {
			t.Fatalf("block %d should remain hot (within keepHotBlocks of tip)", number)
		}
	}

	// Reads must still work transparently through the archive fallback.
	genHash := gen.Header.Hash()
	blk, err := svc.Store().GetBlock(genHash)
	if err != nil {
		t.Fatalf("GetBlock(genesis) after freeze: %v", err)
	}
	if len(blk.Transactions) != 1 {
		t.Fatalf("expected genesis cellbase to survive the freeze round trip")
	}
}

func TestFreezeAncientBlocks_NoOpBelowKeepHotBlocks(t *testing.T) {
	svc, _ := newTestChain(t)
	arc, err := freezer.Open(t.TempDir(), freezer.DefaultMaxFileSize)
	if err != nil {
		t.Fatalf("freezer.Open: %v", err)
	}
	defer arc.Close()
	svc.Store().SetArchive(arc)

	if err := svc.FreezeAncientBlocks(arc, freezer.KeepHotBlocks); err != nil {
		t.Fatalf("FreezeAncientBlocks: %v", err)
	}
	if arc.Has(0) {
		t.Fatal("genesis should not be frozen when the chain is shorter than keepHotBlocks")
	}
}
