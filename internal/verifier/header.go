package verifier

import (
	"sort"

	"github.com/klingon-tech/cellnode/internal/consensus"
	"github.com/klingon-tech/cellnode/pkg/crypto"
	"github.com/klingon-tech/cellnode/pkg/types"
)

// MaxBlockInterval bounds how far ahead of the node's own clock a header's
// timestamp may sit (spec.md §4.5.1 item 5).
const MaxBlockInterval = 15 * 60 // seconds

// MedianTimeSpan is the number of ancestor timestamps a header's timestamp
// must exceed the median of (spec.md §4.5.1 item 5, "median of last 37
// ancestor timestamps").
const MedianTimeSpan = 37

// HeaderContext carries everything VerifyHeader needs beyond the header
// and its parent: the epoch the header claims to belong to, the consensus
// parameters in force, up to the last MedianTimeSpan ancestor timestamps
// (most recent last), and the node's current wall-clock time.
type HeaderContext struct {
	Parent             types.Header
	ParentIsValid      bool
	Epoch              types.Epoch
	Params             consensus.Params
	AncestorTimestamps []uint64
	Now                uint64
	BlockVersion       uint32
}

// VerifyHeader runs every §4.5.1 check against header, short-circuiting on
// the first failure. flags may disable the epoch-continuity check (used by
// import tooling replaying an already-validated chain); every other check
// is non-contextual and still runs unless flags.Has(DisableNonContextual)
// or flags.Has(DisableAll).
func VerifyHeader(header types.Header, ctx HeaderContext, flags SwitchFlags) error {
	if flags.Has(DisableAll) || flags.Has(DisableNonContextual) {
		return verifyParentLink(ctx)
	}

	if header.Version != ctx.BlockVersion {
		return newHeaderError(BadVersion, "got %d, want %d", header.Version, ctx.BlockVersion)
	}

	if err := verifyParentLink(ctx); err != nil {
		return err
	}

	if header.Number != ctx.Parent.Number+1 {
		return newHeaderError(BadNumber, "got %d, want %d", header.Number, ctx.Parent.Number+1)
	}

	if !flags.Has(DisableEpoch) {
		if err := verifyEpochContinuity(header, ctx); err != nil {
			return err
		}
	}

	if err := verifyTimestamp(header, ctx); err != nil {
		return err
	}

	if header.CompactTarget != ctx.Epoch.CompactTarget {
		return newHeaderError(BadCompactTarget, "got %#x, want %#x", header.CompactTarget, ctx.Epoch.CompactTarget)
	}

	return verifyPow(header, ctx.Params)
}

func verifyParentLink(ctx HeaderContext) error {
	if !ctx.ParentIsValid {
		return newHeaderError(ParentInvalid, "parent %s is not valid", ctx.Parent.Hash())
	}
	return nil
}

func verifyEpochContinuity(header types.Header, ctx HeaderContext) error {
	frac := header.EpochFraction()
	if frac.Number != ctx.Epoch.Number {
		return newHeaderError(BadEpoch, "epoch number %d does not match computed epoch %d", frac.Number, ctx.Epoch.Number)
	}
	if frac.Length != ctx.Epoch.Length {
		return newHeaderError(BadEpoch, "epoch length %d does not match computed length %d", frac.Length, ctx.Epoch.Length)
	}
	wantIndex := header.Number - ctx.Epoch.StartNumber
	if frac.Index != wantIndex {
		return newHeaderError(BadEpoch, "epoch index %d, want %d", frac.Index, wantIndex)
	}
	return nil
}

func verifyTimestamp(header types.Header, ctx HeaderContext) error {
	if len(ctx.AncestorTimestamps) > 0 {
		median := medianTimestamp(ctx.AncestorTimestamps)
		if header.Timestamp <= median {
			return newHeaderError(TimestampTooOld, "%d <= median %d", header.Timestamp, median)
		}
	}
	if ctx.Now > 0 && header.Timestamp > ctx.Now+MaxBlockInterval {
		return newHeaderError(TimestampTooNew, "%d exceeds now+%d=%d", header.Timestamp, MaxBlockInterval, ctx.Now+MaxBlockInterval)
	}
	return nil
}

// medianTimestamp sorts a copy of timestamps and returns the middle value
// (lower of the two middles on an even count), matching the teacher-style
// "median of last N" convention used by Bitcoin-family timestamp rules.
func medianTimestamp(timestamps []uint64) uint64 {
	sorted := make([]uint64, len(timestamps))
	copy(sorted, timestamps)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return sorted[(len(sorted)-1)/2]
}

func verifyPow(header types.Header, params consensus.Params) error {
	hashFn := crypto.Blake2bPow
	if params.PowEngine == consensus.PowEngineEaglesong {
		hashFn = crypto.EaglesongPow
	}

	sealed := hashFn(header.PowMessage(), header.Nonce)
	sealedInt := types.U256FromBytes(sealed.Bytes())

	target := consensus.CompactTargetToTarget(header.CompactTarget)
	if sealedInt.Cmp(target) >= 0 {
		return newHeaderError(InvalidPow, "sealed hash does not beat target for compact_target %#x", header.CompactTarget)
	}
	return nil
}
