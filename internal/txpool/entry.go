package txpool

import "github.com/klingon-tech/cellnode/pkg/types"

// Status is an entry's place in the proposal/commit-window lifecycle
// (spec.md §4.8.1).
type Status uint8

const (
	// Pending transactions have been received and verified but are not
	// yet in the proposal window relative to any chain block.
	Pending Status = iota
	// Gap transactions have been proposed but are not yet within the
	// commit window.
	Gap
	// Proposed transactions are within the commit window and eligible
	// for block inclusion.
	Proposed
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "Pending"
	case Gap:
		return "Gap"
	case Proposed:
		return "Proposed"
	default:
		return "Unknown"
	}
}

// Entry is one pooled transaction together with its own cost and its
// package (self plus in-pool ancestors) accounting, updated incrementally
// as relatives enter or leave the pool (spec.md §4.8.2).
type Entry struct {
	Hash   types.Hash256
	Tx     types.Transaction
	Status Status

	// Size is the transaction's serialized byte length (Transaction.Serialize).
	Size uint64
	// Cycles is the transaction's own script-execution cycle count.
	Cycles uint64
	// Fee is the transaction's own fee (input capacity minus output capacity).
	Fee types.Capacity
	// Timestamp is the entry's insertion time, used as the fee-rate
	// ordering tiebreak's first key (older first).
	Timestamp uint64

	// AncestorsCount/Size/Cycles/Fee sum this entry and every in-pool
	// ancestor it depends on, maintained incrementally by the pool on
	// every insert/remove (spec.md §4.8.2).
	AncestorsCount  uint64
	AncestorsSize   uint64
	AncestorsCycles uint64
	AncestorsFee    types.Capacity
}

// feeRate returns the package fee-rate used for ranking (spec.md §4.8.3):
// ancestors_fee / max(ancestors_size, ancestors_cycles * bytesPerCycle).
func (e *Entry) feeRate(bytesPerCycle uint64) float64 {
	denom := e.AncestorsSize
	if cycleBytes := e.AncestorsCycles * bytesPerCycle; cycleBytes > denom {
		denom = cycleBytes
	}
	if denom == 0 {
		return 0
	}
	return float64(e.AncestorsFee) / float64(denom)
}

// ownFeeRate ranks the entry by its own fee and size alone, used by RBF's
// fee-rate-delta comparison (spec.md §4.8.5), which compares the incoming
// and incumbent transactions directly rather than their packages.
func (e *Entry) ownFeeRate() float64 {
	if e.Size == 0 {
		return 0
	}
	return float64(e.Fee) / float64(e.Size)
}

// less reports whether e ranks below other for block assembly: lower
// fee-rate first, ties broken by older timestamp first, then by hash
// (spec.md §4.8.3).
func (e *Entry) less(other *Entry, bytesPerCycle uint64) bool {
	er, or := e.feeRate(bytesPerCycle), other.feeRate(bytesPerCycle)
	if er != or {
		return er < or
	}
	if e.Timestamp != other.Timestamp {
		return e.Timestamp > other.Timestamp
	}
	return other.Hash.Less(e.Hash)
}
