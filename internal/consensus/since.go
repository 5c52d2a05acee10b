package consensus

import (
	"fmt"

	"github.com/klingon-tech/cellnode/pkg/types"
)

// ConfirmationContext is the point an input's cell was confirmed at: the
// block it was created in (for relative Since) and the chain tip it is
// being spent against (for both relative and absolute Since).
type ConfirmationContext struct {
	CellBlockNumber uint64
	CellEpoch       types.EpochNumberWithFraction
	CellTimestamp   uint64

	TipBlockNumber uint64
	TipEpoch       types.EpochNumberWithFraction
	TipTimestamp   uint64
}

// CheckSince reports whether since is satisfied by ctx, i.e. the spending
// transaction's input lock has matured. An invalid since (reserved metric)
// always fails.
func CheckSince(since types.Since, ctx ConfirmationContext) error {
	if !since.Valid() {
		return fmt.Errorf("since: reserved metric")
	}
	if since == 0 {
		return nil
	}

	switch since.Metric() {
	case types.SinceBlockNumber:
		threshold := since.Value()
		if since.IsRelative() {
			threshold += ctx.CellBlockNumber
		}
		if ctx.TipBlockNumber < threshold {
			return fmt.Errorf("since: block number %d not yet reached (have %d)", threshold, ctx.TipBlockNumber)
		}
		return nil

	case types.SinceEpoch:
		required := types.UnpackEpoch(since.Value())
		var base types.EpochNumberWithFraction
		if since.IsRelative() {
			base = ctx.CellEpoch
		}
		requiredFraction := requiredEpochFraction(base, required)
		tipFraction := ctx.TipEpoch
		if epochLess(tipFraction, requiredFraction) {
			return fmt.Errorf("since: epoch %d.%d/%d not yet reached", requiredFraction.Number, requiredFraction.Index, requiredFraction.Length)
		}
		return nil

	case types.SinceTimestamp:
		threshold := since.Value()
		if since.IsRelative() {
			threshold += ctx.CellTimestamp
		}
		if ctx.TipTimestamp < threshold {
			return fmt.Errorf("since: timestamp %d not yet reached (have %d)", threshold, ctx.TipTimestamp)
		}
		return nil
	}

	return fmt.Errorf("since: unknown metric")
}

// requiredEpochFraction adds a relative epoch-fraction offset to a base
// epoch-fraction, renormalizing the index against the offset's own length
// (mirrors the header's epoch-fraction arithmetic: a since expressed with
// length L is comparable to a tip expressed with a different length only
// after cross-multiplication, which epochLess performs).
func requiredEpochFraction(base, offset types.EpochNumberWithFraction) types.EpochNumberWithFraction {
	if offset.Length == 0 {
		offset.Length = 1
	}
	return types.EpochNumberWithFraction{
		Number: base.Number + offset.Number,
		Index:  base.Index + offset.Index,
		Length: offset.Length,
	}
}

// epochLess reports whether a < b, comparing fractional parts by
// cross-multiplication to avoid floating point.
func epochLess(a, b types.EpochNumberWithFraction) bool {
	if a.Number != b.Number {
		return a.Number < b.Number
	}
	al, bl := a.Length, b.Length
	if al == 0 {
		al = 1
	}
	if bl == 0 {
		bl = 1
	}
	return a.Index*bl < b.Index*al
}
