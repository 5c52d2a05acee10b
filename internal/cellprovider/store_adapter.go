package cellprovider

import (
	"github.com/klingon-tech/cellnode/internal/store"
	"github.com/klingon-tech/cellnode/pkg/types"
)

// StoreProvider adapts a *store.ChainStore to CellProvider and
// HeaderProvider. The chain store's live-cell column removes a cell's
// entry entirely once spent, so a miss here is reported as Unknown rather
// than Dead; distinguishing "never existed" from "already spent" within a
// single already-attached chain requires retaining tombstones the store
// does not keep, and spec.md's Dead/Unknown distinction matters most for
// in-block ordering, which BlockOverlay (not this adapter) already
// enforces precisely.
type StoreProvider struct {
	Store *store.ChainStore
}

// GetCell implements CellProvider.
func (p StoreProvider) GetCell(op types.OutPoint) (types.CellMeta, error) {
	out, err := p.Store.GetCell(op)
	if err != nil {
		return types.CellMeta{}, newResolveError(Unknown, "%s: %v", op, err)
	}
	data, err := p.Store.GetCellData(op)
	if err != nil {
		return types.CellMeta{}, newResolveError(Unknown, "%s: %v", op, err)
	}
	meta := types.CellMeta{OutPoint: op, Output: out, Data: data}

	info, err := p.Store.GetTxInfo(op.TxHash)
	if err == nil {
		meta.BlockHash = info.BlockHash
		meta.BlockNumber = info.BlockNumber
		meta.IsCellbase = info.Index == 0
		if header, herr := p.Store.GetHeader(info.BlockHash); herr == nil {
			meta.BlockTimestamp = header.Timestamp
			meta.EpochNumber = header.EpochFraction().Number
		}
	}
	return meta, nil
}

// GetHeader implements HeaderProvider.
func (p StoreProvider) GetHeader(hash types.Hash256) (types.Header, error) {
	return p.Store.GetHeader(hash)
}

// HeaderByBlockHash implements HeaderProvider.
func (p StoreProvider) HeaderByBlockHash(hash types.Hash256) (types.Header, error) {
	return p.Store.GetHeader(hash)
}
