package cellprovider

import "github.com/klingon-tech/cellnode/pkg/types"

// CellProvider answers "is this outpoint a live cell" against the chain
// store's committed state (it never sees cells created within a
// not-yet-attached block; BlockOverlay layers those on top).
type CellProvider interface {
	// GetCell returns the live cell at op, or a Dead/Unknown ResolveError
	// if it is not currently live. Implementations distinguish "never
	// existed" (Unknown) from "existed, now spent" (Dead) when they can;
	// a provider that cannot tell the difference may always report Unknown.
	GetCell(op types.OutPoint) (types.CellMeta, error)
}

// HeaderProvider resolves header_deps and a cell_dep's block-of-origin
// header (needed for CellMeta.BlockNumber/EpochNumber bookkeeping).
type HeaderProvider interface {
	GetHeader(hash types.Hash256) (types.Header, error)
	// HeaderByBlockHash is used to attach a resolved cell's provenance
	// (which block created it) for maturity/since checks.
	HeaderByBlockHash(hash types.Hash256) (types.Header, error)
}

// ResolvedTransaction is a transaction together with the live cells its
// inputs spend, the cells (after DepGroup expansion) its cell_deps
// reference, and the headers its header_deps name.
type ResolvedTransaction struct {
	Transaction types.Transaction
	Inputs      []types.CellMeta
	CellDeps    []types.CellMeta
	HeaderDeps  []types.Header
}

// InputCapacity returns the sum of all resolved input cells' capacities.
func (rt *ResolvedTransaction) InputCapacity() (types.Capacity, error) {
	caps := make([]types.Capacity, len(rt.Inputs))
	for i, c := range rt.Inputs {
		caps[i] = c.Output.Capacity
	}
	return types.SumCapacities(caps)
}

// OutputCapacity returns the sum of all of the transaction's declared
// output capacities.
func (rt *ResolvedTransaction) OutputCapacity() (types.Capacity, error) {
	caps := make([]types.Capacity, len(rt.Transaction.Outputs))
	for i, o := range rt.Transaction.Outputs {
		caps[i] = o.Capacity
	}
	return types.SumCapacities(caps)
}
