// Package consensus holds the chain-wide parameters every verifier and
// the chain service consult: the epoch schedule, difficulty adjustment,
// proposal/commit window, and cellbase maturity (spec.md §4.3).
package consensus

import "github.com/klingon-tech/cellnode/pkg/types"

// FeatureFlags is a bitset of optional consensus behaviors this
// implementation supports toggling per network, rather than hard-coding
// one policy (DESIGN.md open question: "virtual occupied-capacity
// marker").
type FeatureFlags uint32

const (
	// FeatureVirtualOccupiedCapacity makes a cell's declared capacity, not
	// its computed OccupiedCapacity, the basis for output-size limits,
	// letting a lock/type script reserve headroom without over-funding
	// the cell today.
	FeatureVirtualOccupiedCapacity FeatureFlags = 1 << iota
)

// Params is a network's fixed consensus configuration, built once from
// its genesis block and held immutable thereafter (spec.md §4.3, §4.7).
type Params struct {
	// GenesisHash is the hash of block 0.
	GenesisHash types.Hash256

	// EpochDurationTarget is the target wall-clock length of one epoch, in
	// seconds.
	EpochDurationTarget uint64
	// GenesisEpochLength is the block count of epoch 0, before the first
	// adjustment has any history to act on.
	GenesisEpochLength uint64
	// MaxBlockIntervalRatio bounds how far one epoch's compact target can
	// move from the previous: NextEpoch passes it to both
	// CalcNextCompactTarget (duration ratio) and ApplyOrphanRateAdjustment
	// (orphan-rate ratio), each of which clamps its ratio to
	// [1/MaxBlockIntervalRatio, MaxBlockIntervalRatio]. Epoch length is
	// not adjusted by it.
	MaxBlockIntervalRatio uint64

	// ProposalWindowClose/Far bound how many blocks after a transaction is
	// proposed it may be committed: [n+Close, n+Far] (spec.md §4.3).
	ProposalWindowClose uint64
	ProposalWindowFar   uint64

	// CellbaseMaturity is the number of blocks a cellbase output must wait
	// before it can be spent.
	CellbaseMaturity uint64

	// MaxBlockBytes/MaxBlockCycles bound a block's serialized size and
	// total script execution cycles.
	MaxBlockBytes  uint64
	MaxBlockCycles uint64

	// DaoTypeHash is the type script hash that marks a cell as a NervosDAO
	// deposit/withdrawal cell (spec.md §4.5.3 item 6, "DAO-locked cell").
	// The zero hash disables DAO withdrawal verification entirely: no cell
	// can ever match it.
	DaoTypeHash types.Hash256
	// DaoWithdrawMinEpochs is the minimum number of whole epochs that must
	// elapse between a deposit and its withdrawal becoming spendable.
	DaoWithdrawMinEpochs uint64

	// MaxUnclesCount is the maximum number of uncles a block may reference.
	MaxUnclesCount uint64

	// InitialPrimaryEpochReward is the cellbase reward for epoch 0's
	// blocks, split evenly across the epoch's length.
	InitialPrimaryEpochReward types.Capacity

	Features FeatureFlags

	// PowEngine selects Blake2bPow (testnet, fully specified by spec.md)
	// or EaglesongPow (mainnet stand-in, see DESIGN.md open question 5).
	PowEngine PowEngineKind

	// BlockVersion is the header/transaction version this network accepts;
	// both default to 0, the only version spec.md defines.
	BlockVersion uint32

	// OrphanRateTargetNumerator/Denominator is the epoch's target orphan
	// (uncle) rate, expressed as a fraction of blocks per epoch that are
	// expected to become uncles. ApplyOrphanRateAdjustment
	// (spec.md §4.3) compares this against an epoch's actual
	// types.Epoch.UnclesCount/Length.
	OrphanRateTargetNumerator   uint64
	OrphanRateTargetDenominator uint64

	// HardforkEpochs lists the epoch numbers, in ascending order, at which
	// this network's hardfork-gated consensus rules switch (spec.md §4.3,
	// "hardfork switch epochs"). Empty means no hardfork schedule is
	// configured; see DESIGN.md's C4 entry for which rules, if any,
	// consult it.
	HardforkEpochs []uint64

	// SystemScriptCodeHashes lists the data hashes of this network's
	// reserved system scripts (spec.md §4.3, "reserved 'system' scripts"),
	// e.g. the VM's bundled secp256k1 lock (internal/vm.Secp256k1LockCodeHash).
	// A hash in this list resolves through internal/vm's CellDepCodeLoader
	// without needing a cell dep of its own.
	SystemScriptCodeHashes []types.Hash256
}

// HardforkActive reports whether the hardfork scheduled at index i of
// HardforkEpochs has activated by epoch.
func (p Params) HardforkActive(i int, epoch uint64) bool {
	if i < 0 || i >= len(p.HardforkEpochs) {
		return false
	}
	return epoch >= p.HardforkEpochs[i]
}

// IsSystemScript reports whether codeHash names one of this network's
// reserved system scripts.
func (p Params) IsSystemScript(codeHash types.Hash256) bool {
	for _, h := range p.SystemScriptCodeHashes {
		if h == codeHash {
			return true
		}
	}
	return false
}

// PowEngineKind selects which PowHash function VerifyHeader uses.
type PowEngineKind uint8

const (
	// PowEngineBlake2b is the fully specified, fully tested engine.
	PowEngineBlake2b PowEngineKind = iota
	// PowEngineEaglesong is the documented mainnet stand-in.
	PowEngineEaglesong
)

// DefaultTestnet returns the consensus parameters exercised by this
// repository's tests and scenarios: short windows, a small epoch, and the
// fully specified blake2b PoW engine.
func DefaultTestnet() Params {
	return Params{
		EpochDurationTarget:       4 * 3600,
		GenesisEpochLength:        1000,
		MaxBlockIntervalRatio:     4,
		ProposalWindowClose:       2,
		ProposalWindowFar:         10,
		CellbaseMaturity:          4,
		MaxBlockBytes:             2_000_000,
		MaxBlockCycles:            5_000_000_000,
		MaxUnclesCount:            2,
		InitialPrimaryEpochReward:   1_000_000 * types.ShannonsPerCKByte,
		DaoWithdrawMinEpochs:        4,
		PowEngine:                   PowEngineBlake2b,
		OrphanRateTargetNumerator:   1,
		OrphanRateTargetDenominator: 40,
	}
}

// DefaultMainnet returns parameters shaped like a production network: the
// Eaglesong-stand-in PoW engine and CKB-scale windows.
func DefaultMainnet() Params {
	p := DefaultTestnet()
	p.GenesisEpochLength = 1800
	p.PowEngine = PowEngineEaglesong
	return p
}
