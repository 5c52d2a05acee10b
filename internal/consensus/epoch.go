package consensus

import "github.com/klingon-tech/cellnode/pkg/types"

// GenesisEpoch returns epoch 0, built from genesis's own compact_target.
func GenesisEpoch(p Params, genesisCompactTarget uint32) types.Epoch {
	return types.Epoch{
		Number:        0,
		StartNumber:   0,
		Length:        p.GenesisEpochLength,
		CompactTarget: genesisCompactTarget,
	}
}

// NextEpoch computes the epoch following prev, given the wall-clock
// timestamps of prev's first and last blocks. Epoch length is held fixed
// at p.GenesisEpochLength for every epoch: this repository does not
// implement CKB's additional uncle-rate-driven length adjustment (see
// DESIGN.md open questions). The target adjustment itself combines both
// halves spec.md §4.3 specifies: CalcNextCompactTarget's duration ratio,
// then ApplyOrphanRateAdjustment's orphan-rate ratio against prev's
// accumulated types.Epoch.UnclesCount.
func NextEpoch(p Params, prev types.Epoch, prevStartTimestamp, prevEndTimestamp uint64) types.Epoch {
	var actualDuration uint64
	if prevEndTimestamp > prevStartTimestamp {
		actualDuration = prevEndTimestamp - prevStartTimestamp
	}

	durationAdjusted := CalcNextCompactTarget(
		prev.CompactTarget,
		actualDuration,
		p.EpochDurationTarget,
		p.MaxBlockIntervalRatio,
	)
	newCompactTarget := ApplyOrphanRateAdjustment(
		durationAdjusted,
		prev.UnclesCount,
		prev.Length,
		p.OrphanRateTargetNumerator,
		p.OrphanRateTargetDenominator,
		p.MaxBlockIntervalRatio,
	)

	return types.Epoch{
		Number:        prev.Number + 1,
		StartNumber:   prev.StartNumber + prev.Length,
		Length:        p.GenesisEpochLength,
		CompactTarget: newCompactTarget,
	}
}

// EpochReward returns the primary block reward for a single block within
// epoch e: the epoch's fixed total divided evenly across its length.
// Halving is not modeled; spec.md leaves long-run issuance schedule
// unspecified beyond "a per-epoch primary reward" (see DESIGN.md open
// questions).
func EpochReward(p Params, e types.Epoch) types.Capacity {
	if e.Length == 0 {
		return 0
	}
	return p.InitialPrimaryEpochReward / types.Capacity(e.Length)
}

// CellbaseMature reports whether a cellbase output created at
// creationBlockNumber may be spent at spendingBlockNumber.
func CellbaseMature(p Params, creationBlockNumber, spendingBlockNumber uint64) bool {
	return spendingBlockNumber >= creationBlockNumber+p.CellbaseMaturity
}

// ProposalWindow returns the inclusive [close, far] offsets, in blocks,
// after a transaction is proposed within which it may be committed.
func ProposalWindow(p Params) (close, far uint64) {
	return p.ProposalWindowClose, p.ProposalWindowFar
}
