package types

// EpochNumberWithFraction packs an epoch number together with the
// proposer's position within the epoch (index) and the epoch's total
// length, mirroring the header's packed epoch field and the SinceEpoch
// metric's value encoding: number | index<<24 | length<<40.
type EpochNumberWithFraction struct {
	Number uint64
	Index  uint64
	Length uint64
}

const (
	epochNumberMask = (uint64(1) << 24) - 1
	epochIndexMask  = (uint64(1) << 16) - 1
	epochLengthMask = (uint64(1) << 16) - 1
)

// Pack encodes the triple into the 56-bit value used by Since and the
// header's Epoch field.
func (e EpochNumberWithFraction) Pack() uint64 {
	return (e.Number & epochNumberMask) |
		((e.Index & epochIndexMask) << 24) |
		((e.Length & epochLengthMask) << 40)
}

// UnpackEpoch decodes a packed epoch-with-fraction value.
func UnpackEpoch(v uint64) EpochNumberWithFraction {
	return EpochNumberWithFraction{
		Number: v & epochNumberMask,
		Index:  (v >> 24) & epochIndexMask,
		Length: (v >> 40) & epochLengthMask,
	}
}

// Fraction returns index/length as a float in [0, 1), used only for
// display; consensus code must compare cross-multiplied fractions instead
// of floats.
func (e EpochNumberWithFraction) Fraction() float64 {
	if e.Length == 0 {
		return 0
	}
	return float64(e.Index) / float64(e.Length)
}

// Epoch describes one full epoch's consensus parameters, computed once at
// the epoch's first block and held fixed for all blocks within it (spec.md
// §5 "Epoch schedule").
type Epoch struct {
	Number        uint64
	StartNumber   uint64
	Length        uint64
	CompactTarget uint32
	// UnclesCount is the total uncle count accumulated across the epoch,
	// used by the difficulty adjustment's orphan-rate term
	// (consensus.ApplyOrphanRateAdjustment).
	UnclesCount uint64
}

// LastBlockNumber returns the block number of the epoch's final block.
func (e Epoch) LastBlockNumber() uint64 {
	return e.StartNumber + e.Length - 1
}

// Contains reports whether blockNumber falls within this epoch.
func (e Epoch) Contains(blockNumber uint64) bool {
	return blockNumber >= e.StartNumber && blockNumber <= e.LastBlockNumber()
}
