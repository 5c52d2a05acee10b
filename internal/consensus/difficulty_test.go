package consensus

import (
	"testing"

	"github.com/klingon-tech/cellnode/pkg/types"
)

func TestCompactTargetRoundTrip(t *testing.T) {
	cases := []uint32{
		0x1d00ffff,
		0x1b0404cb,
		0x207fffff,
		0x03123456,
	}
	for _, c := range cases {
		target := CompactTargetToTarget(c)
		back := TargetToCompactTarget(target)
		if back != c {
			t.Errorf("round trip %#x -> %s -> %#x, want %#x", c, target.String(), back, c)
		}
	}
}

func TestCompactTargetToTargetKnownValue(t *testing.T) {
	// 0x03010000: exponent 3, mantissa 0x010000 -> target == mantissa.
	target := CompactTargetToTarget(0x03010000)
	want := types.U256FromUint64(0x010000)
	if target.Cmp(want) != 0 {
		t.Fatalf("got %s, want %s", target.String(), want.String())
	}
}

func TestDifficultyFromCompactTargetInverseOfTarget(t *testing.T) {
	d := DifficultyFromCompactTarget(0x1d00ffff)
	if d.IsZero() {
		t.Fatalf("expected non-zero difficulty")
	}
}

func TestCalcNextCompactTargetUnchangedWhenOnSchedule(t *testing.T) {
	prev := uint32(0x1d00ffff)
	next := CalcNextCompactTarget(prev, 1000, 1000, 4)
	if next != prev {
		t.Fatalf("expected unchanged target when actual==expected, got %#x vs %#x", next, prev)
	}
}

func TestCalcNextCompactTargetClampsRatio(t *testing.T) {
	prev := uint32(0x1d00ffff)

	// actual duration far beyond maxRatio*expected should clamp to the same
	// result as actual == maxRatio*expected.
	clampedAbove := CalcNextCompactTarget(prev, 1_000_000, 1000, 4)
	atLimitAbove := CalcNextCompactTarget(prev, 4000, 1000, 4)
	if clampedAbove != atLimitAbove {
		t.Fatalf("expected clamp at upper ratio bound: %#x vs %#x", clampedAbove, atLimitAbove)
	}

	clampedBelow := CalcNextCompactTarget(prev, 1, 1000, 4)
	atLimitBelow := CalcNextCompactTarget(prev, 250, 1000, 4)
	if clampedBelow != atLimitBelow {
		t.Fatalf("expected clamp at lower ratio bound: %#x vs %#x", clampedBelow, atLimitBelow)
	}
}

func TestApplyOrphanRateAdjustmentNoOpWhenNoUnclesObserved(t *testing.T) {
	compact := uint32(0x1d00ffff)
	adjusted := ApplyOrphanRateAdjustment(compact, 0, 1000, 1, 40, 4)
	if adjusted != compact {
		t.Fatalf("expected no adjustment with zero observed uncles, got %#x vs %#x", adjusted, compact)
	}
}

func TestApplyOrphanRateAdjustmentHigherThanTargetRateHardensTarget(t *testing.T) {
	compact := uint32(0x1d00ffff)
	prevTarget := CompactTargetToTarget(compact)

	// target rate 1/40, actual rate 1/10 (4x the target): should shrink
	// the target (harder).
	adjusted := ApplyOrphanRateAdjustment(compact, 100, 1000, 1, 40, 100)
	adjustedTarget := CompactTargetToTarget(adjusted)
	if adjustedTarget.Cmp(prevTarget) >= 0 {
		t.Fatalf("expected a harder (smaller) target for an above-target orphan rate: prev=%s adjusted=%s", prevTarget.String(), adjustedTarget.String())
	}
}

func TestApplyOrphanRateAdjustmentLowerThanTargetRateEasesTarget(t *testing.T) {
	compact := uint32(0x1d00ffff)
	prevTarget := CompactTargetToTarget(compact)

	// target rate 1/40, actual rate 1/1000 (well under target): should
	// grow the target (easier), clamped by maxRatio.
	adjusted := ApplyOrphanRateAdjustment(compact, 1, 1000, 1, 40, 4)
	adjustedTarget := CompactTargetToTarget(adjusted)
	if adjustedTarget.Cmp(prevTarget) <= 0 {
		t.Fatalf("expected an easier (larger) target for a below-target orphan rate: prev=%s adjusted=%s", prevTarget.String(), adjustedTarget.String())
	}
}

func TestCalcNextCompactTargetLongerEpochEasesTarget(t *testing.T) {
	prev := uint32(0x1d00ffff)
	next := CalcNextCompactTarget(prev, 2000, 1000, 4)

	prevTarget := CompactTargetToTarget(prev)
	nextTarget := CompactTargetToTarget(next)
	if nextTarget.Cmp(prevTarget) <= 0 {
		t.Fatalf("expected easier (larger) target for a longer-than-expected epoch: prev=%s next=%s", prevTarget.String(), nextTarget.String())
	}
}
