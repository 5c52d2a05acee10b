package consensus

import (
	"testing"

	"github.com/klingon-tech/cellnode/pkg/types"
)

func TestGenesisEpoch(t *testing.T) {
	p := DefaultTestnet()
	e := GenesisEpoch(p, 0x1d00ffff)
	if e.Number != 0 || e.StartNumber != 0 {
		t.Fatalf("unexpected genesis epoch: %+v", e)
	}
	if e.Length != p.GenesisEpochLength {
		t.Fatalf("expected genesis epoch length %d, got %d", p.GenesisEpochLength, e.Length)
	}
}

func TestNextEpochAdvancesStartNumberAndNumber(t *testing.T) {
	p := DefaultTestnet()
	prev := GenesisEpoch(p, 0x1d00ffff)

	next := NextEpoch(p, prev, 0, p.EpochDurationTarget)
	if next.Number != 1 {
		t.Fatalf("expected epoch number 1, got %d", next.Number)
	}
	if next.StartNumber != prev.StartNumber+prev.Length {
		t.Fatalf("expected start number %d, got %d", prev.StartNumber+prev.Length, next.StartNumber)
	}
	if next.CompactTarget != prev.CompactTarget {
		t.Fatalf("expected unchanged target when epoch takes exactly the expected duration")
	}
}

func TestNextEpochOrphanRateAboveTargetHardensNextTarget(t *testing.T) {
	p := DefaultTestnet()
	prev := GenesisEpoch(p, 0x1d00ffff)
	prev.UnclesCount = prev.Length / 4 // actual rate 1/4, well above the 1/40 target

	next := NextEpoch(p, prev, 0, p.EpochDurationTarget)

	prevTarget := CompactTargetToTarget(prev.CompactTarget)
	nextTarget := CompactTargetToTarget(next.CompactTarget)
	if nextTarget.Cmp(prevTarget) >= 0 {
		t.Fatalf("expected a harder next target when the orphan rate exceeds target: prev=%s next=%s", prevTarget.String(), nextTarget.String())
	}
}

func TestNextEpochLengthHeldFixed(t *testing.T) {
	p := DefaultTestnet()
	prev := GenesisEpoch(p, 0x1d00ffff)
	next := NextEpoch(p, prev, 0, p.EpochDurationTarget*2)
	if next.Length != p.GenesisEpochLength {
		t.Fatalf("expected fixed epoch length %d, got %d", p.GenesisEpochLength, next.Length)
	}
}

func TestEpochReward(t *testing.T) {
	p := DefaultTestnet()
	e := GenesisEpoch(p, 0x1d00ffff)
	reward := EpochReward(p, e)
	if reward == 0 {
		t.Fatalf("expected non-zero per-block reward")
	}
	total := reward * types.Capacity(p.GenesisEpochLength) // roughly
	if total == 0 {
		t.Fatalf("expected non-zero total reward")
	}
}

func TestCellbaseMature(t *testing.T) {
	p := DefaultTestnet()
	if CellbaseMature(p, 10, 13) {
		t.Fatalf("expected immature at creation+3 when maturity is %d", p.CellbaseMaturity)
	}
	if !CellbaseMature(p, 10, 14) {
		t.Fatalf("expected mature at creation+maturity")
	}
}

func TestProposalWindow(t *testing.T) {
	p := DefaultTestnet()
	close, far := ProposalWindow(p)
	if close != p.ProposalWindowClose || far != p.ProposalWindowFar {
		t.Fatalf("unexpected proposal window: %d, %d", close, far)
	}
}
