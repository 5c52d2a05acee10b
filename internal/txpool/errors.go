// Package txpool holds transactions that have been verified but not yet
// committed to the chain, queued by proposal/commit-window status
// (spec.md §4.8) and ordered for block assembly by package fee-rate.
package txpool

import "fmt"

// PoolErrorKind classifies why the pool refused a transaction (spec.md
// §7, "PoolError(sub)").
type PoolErrorKind int

const (
	Duplicate PoolErrorKind = iota
	LowFeeRate
	ExceededMaximumAncestorsCount
	Full
	RBFRejected
	ImmatureTransaction
	RecentlyRejected
)

func (k PoolErrorKind) String() string {
	switch k {
	case Duplicate:
		return "Duplicate"
	case LowFeeRate:
		return "LowFeeRate"
	case ExceededMaximumAncestorsCount:
		return "ExceededMaximumAncestorsCount"
	case Full:
		return "Full"
	case RBFRejected:
		return "RBFRejected"
	case ImmatureTransaction:
		return "ImmatureTransaction"
	case RecentlyRejected:
		return "RecentlyRejected"
	default:
		return "Unknown"
	}
}

// PoolError reports why submit() rejected a transaction.
type PoolError struct {
	Kind   PoolErrorKind
	TxHash string
	Detail string
}

func (e *PoolError) Error() string {
	return fmt.Sprintf("pool: tx %s: %s: %s", e.TxHash, e.Kind, e.Detail)
}

func newPoolError(kind PoolErrorKind, txHash fmt.Stringer, format string, args ...any) *PoolError {
	return &PoolError{Kind: kind, TxHash: txHash.String(), Detail: fmt.Sprintf(format, args...)}
}
