package cellprovider

import "github.com/klingon-tech/cellnode/pkg/types"

// BlockOverlay layers the cells created (and consumed) by transactions
// earlier in the same not-yet-attached block on top of the committed chain
// store, and enforces the ordering rule that transaction i may only spend
// outputs of transaction j < i within that block (spec.md §4.2).
type BlockOverlay struct {
	txIndex map[types.Hash256]int
	created map[types.OutPoint]types.CellMeta
	spent   map[types.OutPoint]bool
}

// NewBlockOverlay returns an empty overlay, to be fed transactions in
// block order via Commit as each resolves successfully.
func NewBlockOverlay() *BlockOverlay {
	return &BlockOverlay{
		txIndex: make(map[types.Hash256]int),
		created: make(map[types.OutPoint]types.CellMeta),
		spent:   make(map[types.OutPoint]bool),
	}
}

// Commit registers tx (already resolved and found valid) at position index
// within the block, making its outputs visible to later transactions in
// the same block and marking its inputs as spent within the block.
func (o *BlockOverlay) Commit(index int, tx types.Transaction) {
	txHash := tx.Hash()
	o.txIndex[txHash] = index

	if !(index == 0 && tx.IsCellbase()) {
		for _, in := range tx.Inputs {
			o.spent[in.PreviousOutput] = true
		}
	}

	for i, out := range tx.Outputs {
		op := types.OutPoint{TxHash: txHash, Index: uint32(i)}
		var data []byte
		if i < len(tx.OutputsData) {
			data = tx.OutputsData[i]
		}
		o.created[op] = types.CellMeta{
			OutPoint: op,
			Output:   out,
			Data:     data,
			DataHash: types.Hash256{},
		}
	}
}

// lookup checks the overlay for op, reporting whether it was created
// in-block, and if so whether it is still unspent within the block.
func (o *BlockOverlay) lookup(op types.OutPoint) (meta types.CellMeta, found bool, spent bool) {
	if idx, ok := o.txIndex[op.TxHash]; ok {
		_ = idx
		if o.spent[op] {
			return types.CellMeta{}, true, true
		}
		if meta, ok := o.created[op]; ok {
			return meta, true, false
		}
		// Created by an earlier in-block tx but index out of range of its
		// outputs: treat as never-existed.
		return types.CellMeta{}, false, false
	}
	return types.CellMeta{}, false, false
}

// futureTxInBlock reports whether op references a transaction that exists
// in this block at or after currentIndex (an ordering violation) rather
// than one that simply hasn't been committed to the overlay yet because it
// failed to resolve. knownBlockTxHashes is the full set of this block's
// transaction hashes, supplied by the caller up front.
func futureTxInBlock(knownBlockTxHashes map[types.Hash256]int, op types.OutPoint, currentIndex int) bool {
	idx, ok := knownBlockTxHashes[op.TxHash]
	return ok && idx >= currentIndex
}
