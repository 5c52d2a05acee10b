package verifier

// SwitchFlags lets import tooling skip expensive checks on chains already
// known to be valid (spec.md §4.6, "used by import tooling to skip
// expensive checks on already-validated chains"). Skipping a step never
// changes a structural invariant or a store write, only which checks run.
type SwitchFlags uint32

const (
	// DisableScript skips §4.5.3 item 7 (script/VM execution).
	DisableScript SwitchFlags = 1 << iota
	// DisableEpoch skips the §4.5.1 item 4 epoch continuity check.
	DisableEpoch
	// DisableDaoHeader skips §4.5.3 item 6 DAO withdrawal verification.
	DisableDaoHeader
	// DisableTwoPhaseCommit skips §4.5.2 item 7, the proposal/commit window
	// check.
	DisableTwoPhaseCommit
	// DisableNonContextual skips every check that does not depend on
	// resolving inputs against store state: header PoW/version/number/
	// timestamp/compact_target and block structural checks other than the
	// cellbase shape.
	DisableNonContextual
	// DisableAll skips this package's checks except four that still run:
	// the header's parent link, the cellbase check (VerifyCellbase), each
	// transaction's capacity check (VerifyCapacity) and the block's
	// byte/cycle budget (VerifyBudget). Store writes are unaffected.
	DisableAll
)

// Has reports whether every bit in want is set in f.
func (f SwitchFlags) Has(want SwitchFlags) bool {
	return f&want == want
}
