package consensus

import "github.com/klingon-tech/cellnode/pkg/types"

// CompactTargetToTarget expands a header's 32-bit compact_target encoding
// into a full 256-bit PoW target: the top byte is an exponent (in bytes)
// and the low 3 bytes are the mantissa, target = mantissa *
// 256^(exponent-3) — the same compact-float layout Bitcoin-family chains
// use for their difficulty bits.
func CompactTargetToTarget(compact uint32) types.U256 {
	exponent := compact >> 24
	mantissa := types.U256FromUint64(uint64(compact & 0x00ffffff))
	if exponent <= 3 {
		shift := (3 - exponent) * 8
		return mantissa.Div(types.U256FromUint64(1 << shift))
	}
	shiftBytes := exponent - 3
	multiplier := types.U256FromUint64(1)
	base := types.U256FromUint64(256)
	for i := uint32(0); i < shiftBytes; i++ {
		multiplier = multiplier.Mul(base)
	}
	return mantissa.Mul(multiplier)
}

// TargetToCompactTarget reduces a full target back to the nearest compact
// encoding, the inverse of CompactTargetToTarget (precision is limited to
// the top 3 significant bytes, matching the header's compact_target field).
func TargetToCompactTarget(target types.U256) uint32 {
	b := target.Bytes32()
	firstNonZero := -1
	for i, v := range b {
		if v != 0 {
			firstNonZero = i
			break
		}
	}
	if firstNonZero == -1 {
		return 0
	}
	size := len(b) - firstNonZero
	var mantissa uint32
	switch {
	case size >= 3:
		mantissa = uint32(b[firstNonZero])<<16 | uint32(b[firstNonZero+1])<<8 | uint32(b[firstNonZero+2])
	case size == 2:
		mantissa = uint32(b[firstNonZero])<<8 | uint32(b[firstNonZero+1])
		size = 3
	default:
		mantissa = uint32(b[firstNonZero])
		size = 3
	}
	// A mantissa with its top bit set is shifted down one byte, keeping
	// the Bitcoin-family canonical form.
	if mantissa&0x00800000 != 0 {
		mantissa >>= 8
		size++
	}
	return uint32(size)<<24 | mantissa
}

// DifficultyFromCompactTarget returns maxU256/target, the conventional
// "difficulty" figure derived from a compact_target (higher is harder).
func DifficultyFromCompactTarget(compact uint32) types.U256 {
	target := CompactTargetToTarget(compact)
	if target.IsZero() {
		return types.ZeroU256()
	}
	return types.MaxU256().Div(target)
}

// CalcNextCompactTarget adjusts the previous epoch's target for the next
// epoch, clamping the actual/expected duration ratio to
// [1/maxRatio, maxRatio] (grounded on the teacher's CalcNextDifficulty
// clamp, generalized from uint64 difficulty to U256 targets per spec.md
// §4.3). actualDuration and expectedDuration are both in seconds.
func CalcNextCompactTarget(prevCompact uint32, actualDuration, expectedDuration uint64, maxRatio uint64) uint32 {
	if actualDuration == 0 {
		actualDuration = 1
	}
	if expectedDuration == 0 {
		expectedDuration = 1
	}

	minDuration := expectedDuration / maxRatio
	if minDuration == 0 {
		minDuration = 1
	}
	maxDuration := expectedDuration * maxRatio
	if actualDuration < minDuration {
		actualDuration = minDuration
	}
	if actualDuration > maxDuration {
		actualDuration = maxDuration
	}

	prevTarget := CompactTargetToTarget(prevCompact)
	// newTarget = prevTarget * actual / expected: a longer-than-expected
	// epoch means mining was too hard, so the target should rise (easier).
	newTarget := prevTarget.Mul(types.U256FromUint64(actualDuration)).Div(types.U256FromUint64(expectedDuration))
	if newTarget.IsZero() {
		newTarget = types.U256FromUint64(1)
	}
	maxU := types.MaxU256()
	if newTarget.Cmp(maxU) > 0 {
		newTarget = maxU
	}
	return TargetToCompactTarget(newTarget)
}

// ApplyOrphanRateAdjustment scales a compact target by the epoch's actual
// orphan (uncle) rate against orphanRateTargetNum/orphanRateTargetDen, the
// other half of spec.md §4.3's combined difficulty formula:
// adjusted_target = previous_target · (orphan_rate_target ·
// epoch_duration_target) / (actual_orphan_rate · actual_duration). Called
// after CalcNextCompactTarget has already applied the duration-ratio half.
// A higher-than-target orphan rate means blocks are propagating too slowly
// relative to how fast they're found, so the target shrinks (harder); a
// lower-than-target rate eases it. The ratio is clamped to
// [1/maxRatio, maxRatio] the same way the duration ratio is, so one
// extreme epoch cannot swing difficulty unboundedly.
func ApplyOrphanRateAdjustment(compact uint32, uncles, epochLength, orphanRateTargetNum, orphanRateTargetDen, maxRatio uint64) uint32 {
	if epochLength == 0 {
		epochLength = 1
	}
	if orphanRateTargetDen == 0 {
		orphanRateTargetDen = 1
	}
	if orphanRateTargetNum == 0 || uncles == 0 {
		// No orphan-rate target configured, or no uncles observed yet (not
		// enough signal to justify an extreme multiplier): leave the
		// duration-adjusted target untouched.
		return compact
	}

	// factor = orphan_rate_target / actual_orphan_rate
	//        = (num/den) / (uncles/epochLength)
	//        = (num * epochLength) / (den * uncles)
	factorNum := orphanRateTargetNum * epochLength
	factorDen := orphanRateTargetDen * uncles

	minFactorDen := factorNum / maxRatio
	if minFactorDen == 0 {
		minFactorDen = 1
	}
	maxFactorDen := factorNum * maxRatio
	if factorDen < minFactorDen {
		factorDen = minFactorDen
	}
	if factorDen > maxFactorDen {
		factorDen = maxFactorDen
	}

	target := CompactTargetToTarget(compact)
	adjusted := target.Mul(types.U256FromUint64(factorNum)).Div(types.U256FromUint64(factorDen))
	if adjusted.IsZero() {
		adjusted = types.U256FromUint64(1)
	}
	maxU := types.MaxU256()
	if adjusted.Cmp(maxU) > 0 {
		adjusted = maxU
	}
	return TargetToCompactTarget(adjusted)
}
