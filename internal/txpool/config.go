package txpool

// Config is the pool's node-local policy: limits that vary per node and
// are not part of consensus.Params, mirroring the teacher's split between
// mempool.Policy (node-local) and config.MaxTxInputs-style consensus
// constants (network-wide). None of these bound what a block may contain;
// they only bound what this node is willing to relay and hold.
type Config struct {
	// MaxAncestors is the package-size limit enforced by §4.8.2: an
	// incoming transaction whose ancestor count (itself plus every in-pool
	// ancestor) would exceed this is rejected with
	// ExceededMaximumAncestorsCount.
	MaxAncestors uint64

	// BytesPerCycle converts a package's ancestors_cycles into an
	// equivalent byte count for the fee-rate denominator (spec.md §4.8.3:
	// "max(ancestors_size, ancestors_cycles · BYTES_PER_CYCLE)"), so a
	// cycle-heavy package cannot out-rank a byte-heavy one of equal fee.
	BytesPerCycle uint64

	// MinFeeRate is the minimum shannons-per-byte a transaction must pay
	// to be accepted at all, independent of any ranking. Zero disables
	// the floor.
	MinFeeRate uint64

	// MinRelayFeeRate is the minimum shannons-per-byte every replacement
	// transaction must additionally cover over its own size, layered on
	// top of refunding the incumbent's fee (spec.md §4.8.5).
	MinRelayFeeRate uint64

	// MinRBFFeeRateDelta is the minimum shannons-per-byte a replacement's
	// fee-rate must exceed the incumbent's by (spec.md §4.8.5).
	MinRBFFeeRateDelta uint64

	// MaxMemSize is the total serialized-byte budget across all pooled
	// entries; exceeding it triggers eviction (spec.md §4.8.4).
	MaxMemSize uint64
}

// DefaultConfig returns policy values sized for a single-node test network:
// small enough to exercise eviction and RBF in tests without synthesizing
// megabytes of transactions.
func DefaultConfig() Config {
	return Config{
		MaxAncestors:       25,
		BytesPerCycle:      1000,
		MinFeeRate:         1000,
		MinRelayFeeRate:    1000,
		MinRBFFeeRateDelta: 1000,
		MaxMemSize:         20 * 1024 * 1024,
	}
}
