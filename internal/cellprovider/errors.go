// Package cellprovider resolves a transaction's inputs, cell_deps, and
// header_deps against the chain store plus, when resolving transactions
// within an as-yet-unattached block, the cells created earlier in that same
// block (spec.md §4.2).
package cellprovider

import "fmt"

// OutPointErrorKind classifies why a transaction failed to resolve, a
// closed tagged sum per spec.md §4.2's error taxonomy.
type OutPointErrorKind int

const (
	// Unknown means the referenced outpoint does not exist anywhere (never
	// created, or its creating transaction isn't visible to the resolver).
	Unknown OutPointErrorKind = iota
	// Dead means the referenced cell existed but has already been spent.
	Dead
	// OutOfOrder means an input or cell_dep inside a block references an
	// outpoint created by a later transaction in the same block, violating
	// the "tx i can only spend tx j<i" ordering rule.
	OutOfOrder
	// InvalidHeader means a cell_dep or header_dep referenced a header that
	// does not exist.
	InvalidHeader
	// InvalidDepGroup means a DepType_DepGroup cell_dep's data did not
	// decode into a well-formed list of OutPoints.
	InvalidDepGroup
	// InvalidHeaderDep means a header_dep hash does not correspond to any
	// known header.
	InvalidHeaderDep
)

func (k OutPointErrorKind) String() string {
	switch k {
	case Unknown:
		return "Unknown"
	case Dead:
		return "Dead"
	case OutOfOrder:
		return "OutOfOrder"
	case InvalidHeader:
		return "InvalidHeader"
	case InvalidDepGroup:
		return "InvalidDepGroup"
	case InvalidHeaderDep:
		return "InvalidHeaderDep"
	default:
		return "Unknown"
	}
}

// ResolveError reports a resolution failure against a specific outpoint or
// header hash.
type ResolveError struct {
	Kind    OutPointErrorKind
	Detail  string
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("resolve transaction: %s: %s", e.Kind, e.Detail)
}

func newResolveError(kind OutPointErrorKind, format string, args ...any) *ResolveError {
	return &ResolveError{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}
