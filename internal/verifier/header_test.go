package verifier

import (
	"testing"

	"github.com/klingon-tech/cellnode/internal/consensus"
	"github.com/klingon-tech/cellnode/pkg/types"
)

// easyCompactTarget expands to a target well beyond 2^256, so every
// possible 256-bit sealed hash beats it; impossibleCompactTarget expands to
// zero, which no hash can ever beat.
const (
	easyCompactTarget       = 0x24ffffff
	impossibleCompactTarget = 0x01000000
)

func validHeaderCtx() (types.Header, HeaderContext) {
	params := consensus.DefaultTestnet()
	params.PowEngine = consensus.PowEngineBlake2b

	parent := types.Header{Number: 9, Timestamp: 1000, CompactTarget: easyCompactTarget}
	epoch := types.Epoch{Number: 0, StartNumber: 0, Length: params.GenesisEpochLength, CompactTarget: easyCompactTarget}

	header := types.Header{
		Version:       1,
		Number:        parent.Number + 1,
		Timestamp:     2000,
		CompactTarget: easyCompactTarget,
		ParentHash:    parent.Hash(),
		Epoch:         types.EpochNumberWithFraction{Number: epoch.Number, Index: parent.Number + 1 - epoch.StartNumber, Length: epoch.Length}.Pack(),
	}

	ctx := HeaderContext{
		Parent:             parent,
		ParentIsValid:      true,
		Epoch:              epoch,
		Params:             params,
		AncestorTimestamps: []uint64{1000},
		Now:                2000,
		BlockVersion:       1,
	}
	return header, ctx
}

func TestVerifyHeaderAccepts(t *testing.T) {
	header, ctx := validHeaderCtx()
	if err := VerifyHeader(header, ctx, 0); err != nil {
		t.Fatalf("expected valid header to pass, got %v", err)
	}
}

func TestVerifyHeaderRejectsBadVersion(t *testing.T) {
	header, ctx := validHeaderCtx()
	header.Version = 99
	err := VerifyHeader(header, ctx, 0)
	assertHeaderErrorKind(t, err, BadVersion)
}

func TestVerifyHeaderRejectsInvalidParent(t *testing.T) {
	header, ctx := validHeaderCtx()
	ctx.ParentIsValid = false
	err := VerifyHeader(header, ctx, 0)
	assertHeaderErrorKind(t, err, ParentInvalid)
}

func TestVerifyHeaderRejectsBadNumber(t *testing.T) {
	header, ctx := validHeaderCtx()
	header.Number = ctx.Parent.Number + 2
	err := VerifyHeader(header, ctx, 0)
	assertHeaderErrorKind(t, err, BadNumber)
}

func TestVerifyHeaderRejectsBadEpoch(t *testing.T) {
	header, ctx := validHeaderCtx()
	header.Epoch = types.EpochNumberWithFraction{Number: ctx.Epoch.Number + 1}.Pack()
	err := VerifyHeader(header, ctx, 0)
	assertHeaderErrorKind(t, err, BadEpoch)
}

func TestVerifyHeaderEpochSkippedWithDisableEpoch(t *testing.T) {
	header, ctx := validHeaderCtx()
	header.Epoch = types.EpochNumberWithFraction{Number: ctx.Epoch.Number + 1}.Pack()
	if err := VerifyHeader(header, ctx, DisableEpoch); err != nil {
		t.Fatalf("expected DisableEpoch to skip the epoch mismatch, got %v", err)
	}
}

func TestVerifyHeaderRejectsTimestampTooOld(t *testing.T) {
	header, ctx := validHeaderCtx()
	header.Timestamp = ctx.AncestorTimestamps[0]
	err := VerifyHeader(header, ctx, 0)
	assertHeaderErrorKind(t, err, TimestampTooOld)
}

func TestVerifyHeaderRejectsTimestampTooNew(t *testing.T) {
	header, ctx := validHeaderCtx()
	header.Timestamp = ctx.Now + MaxBlockInterval + 1
	err := VerifyHeader(header, ctx, 0)
	assertHeaderErrorKind(t, err, TimestampTooNew)
}

func TestVerifyHeaderRejectsBadCompactTarget(t *testing.T) {
	header, ctx := validHeaderCtx()
	header.CompactTarget = impossibleCompactTarget
	err := VerifyHeader(header, ctx, 0)
	assertHeaderErrorKind(t, err, BadCompactTarget)
}

func TestVerifyHeaderRejectsInvalidPow(t *testing.T) {
	header, ctx := validHeaderCtx()
	header.CompactTarget = impossibleCompactTarget
	ctx.Epoch.CompactTarget = impossibleCompactTarget
	err := VerifyHeader(header, ctx, 0)
	assertHeaderErrorKind(t, err, InvalidPow)
}

func TestVerifyHeaderDisableNonContextualOnlyChecksParentLink(t *testing.T) {
	header, ctx := validHeaderCtx()
	header.Version = 99
	header.CompactTarget = impossibleCompactTarget
	if err := VerifyHeader(header, ctx, DisableNonContextual); err != nil {
		t.Fatalf("expected DisableNonContextual to skip everything but the parent link, got %v", err)
	}

	ctx.ParentIsValid = false
	err := VerifyHeader(header, ctx, DisableNonContextual)
	assertHeaderErrorKind(t, err, ParentInvalid)
}

func TestMedianTimestampOddAndEvenCounts(t *testing.T) {
	if got := medianTimestamp([]uint64{3, 1, 2}); got != 2 {
		t.Fatalf("expected median 2, got %d", got)
	}
	if got := medianTimestamp([]uint64{4, 1, 3, 2}); got != 2 {
		t.Fatalf("expected lower-middle median 2, got %d", got)
	}
}

func assertHeaderErrorKind(t *testing.T, err error, want HeaderErrorKind) {
	t.Helper()
	herr, ok := err.(*HeaderError)
	if !ok {
		t.Fatalf("expected *HeaderError, got %T (%v)", err, err)
	}
	if herr.Kind != want {
		t.Fatalf("expected kind %s, got %s", want, herr.Kind)
	}
}
