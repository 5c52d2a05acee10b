package cellprovider

import "github.com/klingon-tech/cellnode/pkg/types"

// ResolveTransaction resolves tx's inputs, cell_deps (expanding DepGroups),
// and header_deps against the committed chain store (provider/headers) and
// the overlay of cells created earlier within the same not-yet-attached
// block.
//
// index is tx's position within its containing block and blockTxHashes
// maps every transaction hash in that block to its position, used to
// detect the OutOfOrder violation (spec.md §4.2, "tx i can only spend tx
// j<i in same block"). For a transaction resolved outside of any block
// context (e.g. a pool candidate), pass index 0 and a nil/empty
// blockTxHashes and overlay.
func ResolveTransaction(
	tx types.Transaction,
	index int,
	blockTxHashes map[types.Hash256]int,
	overlay *BlockOverlay,
	provider CellProvider,
	headers HeaderProvider,
) (*ResolvedTransaction, error) {
	resolved := &ResolvedTransaction{Transaction: tx}

	isCellbase := index == 0 && tx.IsCellbase()
	if !isCellbase {
		for _, in := range tx.Inputs {
			meta, err := resolveOutPoint(in.PreviousOutput, index, blockTxHashes, overlay, provider)
			if err != nil {
				return nil, err
			}
			resolved.Inputs = append(resolved.Inputs, meta)
		}
	}

	for _, dep := range tx.CellDeps {
		meta, err := resolveOutPoint(dep.OutPoint, index, blockTxHashes, overlay, provider)
		if err != nil {
			return nil, err
		}
		if dep.DepType == types.DepTypeCode {
			resolved.CellDeps = append(resolved.CellDeps, meta)
			continue
		}

		points, err := DecodeDepGroup(meta.Data)
		if err != nil {
			return nil, newResolveError(InvalidDepGroup, "%s: %v", dep.OutPoint, err)
		}
		for _, p := range points {
			expanded, err := resolveOutPoint(p, index, blockTxHashes, overlay, provider)
			if err != nil {
				return nil, err
			}
			resolved.CellDeps = append(resolved.CellDeps, expanded)
		}
	}

	for _, h := range tx.HeaderDeps {
		header, err := headers.GetHeader(h)
		if err != nil {
			return nil, newResolveError(InvalidHeaderDep, "%s: %v", h, err)
		}
		resolved.HeaderDeps = append(resolved.HeaderDeps, header)
	}

	return resolved, nil
}

func resolveOutPoint(
	op types.OutPoint,
	index int,
	blockTxHashes map[types.Hash256]int,
	overlay *BlockOverlay,
	provider CellProvider,
) (types.CellMeta, error) {
	if overlay != nil {
		if meta, found, spent := overlay.lookup(op); found {
			if spent {
				return types.CellMeta{}, newResolveError(Dead, "%s", op)
			}
			return meta, nil
		}
	}

	if blockTxHashes != nil && futureTxInBlock(blockTxHashes, op, index) {
		return types.CellMeta{}, newResolveError(OutOfOrder, "%s references transaction at or after index %d", op, index)
	}

	meta, err := provider.GetCell(op)
	if err != nil {
		if rerr, ok := err.(*ResolveError); ok {
			return types.CellMeta{}, rerr
		}
		return types.CellMeta{}, newResolveError(Unknown, "%s: %v", op, err)
	}
	return meta, nil
}
