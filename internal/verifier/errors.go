// Package verifier checks a block and its transactions against consensus
// rules in the three stages spec.md §4.5 separates: header verification
// (cheap, runs before the body is even fetched), block structural
// verification (roots, cellbase shape, size/cycle budgets), and
// transaction contextual verification (resolution, since, capacity,
// maturity, scripts).
package verifier

import "fmt"

// HeaderErrorKind classifies why a header failed §4.5.1 verification.
type HeaderErrorKind int

const (
	BadVersion HeaderErrorKind = iota
	InvalidPow
	BadNumber
	BadEpoch
	TimestampTooOld
	TimestampTooNew
	BadCompactTarget
	ParentNotFound
	ParentInvalid
)

func (k HeaderErrorKind) String() string {
	switch k {
	case BadVersion:
		return "BadVersion"
	case InvalidPow:
		return "InvalidPow"
	case BadNumber:
		return "BadNumber"
	case BadEpoch:
		return "BadEpoch"
	case TimestampTooOld:
		return "TimestampTooOld"
	case TimestampTooNew:
		return "TimestampTooNew"
	case BadCompactTarget:
		return "BadCompactTarget"
	case ParentNotFound:
		return "ParentNotFound"
	case ParentInvalid:
		return "ParentInvalid"
	default:
		return "Unknown"
	}
}

// HeaderError reports a §4.5.1 header verification failure.
type HeaderError struct {
	Kind   HeaderErrorKind
	Detail string
}

func (e *HeaderError) Error() string {
	return fmt.Sprintf("header: %s: %s", e.Kind, e.Detail)
}

func newHeaderError(kind HeaderErrorKind, format string, args ...any) *HeaderError {
	return &HeaderError{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// BlockErrorKind classifies why a block failed §4.5.2 structural
// verification.
type BlockErrorKind int

const (
	BadCellbasePosition BlockErrorKind = iota
	BadCellbaseSince
	TooManyUncles
	BadUncle
	DuplicateUncle
	BadTransactionsRoot
	BadProposalsHash
	BadExtraHash
	BlockTooLarge
	BlockTooManyCycles
	CommitWindowViolation
)

func (k BlockErrorKind) String() string {
	switch k {
	case BadCellbasePosition:
		return "BadCellbasePosition"
	case BadCellbaseSince:
		return "BadCellbaseSince"
	case TooManyUncles:
		return "TooManyUncles"
	case BadUncle:
		return "BadUncle"
	case DuplicateUncle:
		return "DuplicateUncle"
	case BadTransactionsRoot:
		return "BadTransactionsRoot"
	case BadProposalsHash:
		return "BadProposalsHash"
	case BadExtraHash:
		return "BadExtraHash"
	case BlockTooLarge:
		return "BlockTooLarge"
	case BlockTooManyCycles:
		return "BlockTooManyCycles"
	case CommitWindowViolation:
		return "CommitWindowViolation"
	default:
		return "Unknown"
	}
}

// BlockError reports a §4.5.2 structural verification failure.
type BlockError struct {
	Kind   BlockErrorKind
	Detail string
}

func (e *BlockError) Error() string {
	return fmt.Sprintf("block: %s: %s", e.Kind, e.Detail)
}

func newBlockError(kind BlockErrorKind, format string, args ...any) *BlockError {
	return &BlockError{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// TxErrorKind classifies why a transaction failed §4.5.3 contextual
// verification.
type TxErrorKind int

const (
	BadStructure TxErrorKind = iota
	ResolveFailed
	SinceImmature
	CapacityInsufficient
	CellbaseImmaturity
	DaoWithdrawInvalid
	ScriptFailure
	OutputDataTooLarge
)

func (k TxErrorKind) String() string {
	switch k {
	case BadStructure:
		return "BadStructure"
	case ResolveFailed:
		return "ResolveFailed"
	case SinceImmature:
		return "SinceImmature"
	case CapacityInsufficient:
		return "CapacityInsufficient"
	case CellbaseImmaturity:
		return "CellbaseImmaturity"
	case DaoWithdrawInvalid:
		return "DaoWithdrawInvalid"
	case ScriptFailure:
		return "ScriptFailure"
	case OutputDataTooLarge:
		return "OutputDataTooLarge"
	default:
		return "Unknown"
	}
}

// TxError reports a §4.5.3 transaction verification failure, naming the
// offending transaction's hash.
type TxError struct {
	Kind   TxErrorKind
	TxHash string
	Detail string
}

func (e *TxError) Error() string {
	return fmt.Sprintf("tx %s: %s: %s", e.TxHash, e.Kind, e.Detail)
}

func newTxError(kind TxErrorKind, txHash fmt.Stringer, format string, args ...any) *TxError {
	return &TxError{Kind: kind, TxHash: txHash.String(), Detail: fmt.Sprintf(format, args...)}
}
