package store

import (
	"encoding/json"
	"fmt"

	"github.com/klingon-tech/cellnode/internal/logging"
	"github.com/klingon-tech/cellnode/internal/storage"
	"github.com/klingon-tech/cellnode/pkg/types"
)

// ErrNotFound is returned when a requested header, body, cell, or index
// entry does not exist.
var ErrNotFound = storage.ErrKeyNotFound

// Archiver is the cold-archive tier a ChainStore falls back to once a
// block's bulk data has been frozen out of the hot column families
// (spec.md §4.9). internal/freezer.Freezer satisfies it.
type Archiver interface {
	Append(number uint64, data []byte) error
	Get(number uint64) ([]byte, error)
	Has(number uint64) bool
}

// ChainStore is the column-family persistence layer. It separates
// insert_block (persist a block's data, independent of canonicity) from
// attach_block/detach_block (mutate the live-cell set and height index as
// the block joins or leaves the canonical chain) per spec.md §4.1 — the
// teacher's BlockStore conflates these into a single PutBlock.
type ChainStore struct {
	db      storage.DB
	archive Archiver
}

// New wraps db as a ChainStore.
func New(db storage.DB) *ChainStore {
	return &ChainStore{db: db}
}

// SetArchive attaches the cold-archive tier FreezeBlock writes into and
// GetBody/GetUncles/GetProposals/GetExtension fall back to once a block's
// hot entries have been frozen away. A store with no archive configured
// simply returns ErrNotFound for anything it no longer holds hot.
func (s *ChainStore) SetArchive(a Archiver) {
	s.archive = a
}

// frozenBody is what FreezeBlock hands to the archive: everything
// InsertBlock spreads across the body/uncle/proposal/extension column
// families, bundled into a single record keyed by block number.
type frozenBody struct {
	Transactions []types.Transaction     `json:"transactions"`
	Uncles       []types.UncleBlock      `json:"uncles"`
	Proposals    []types.ProposalShortID `json:"proposals"`
	Extension    []byte                  `json:"extension,omitempty"`
}

// FreezeBlock moves hash's body, uncles, proposal ids, and extension out
// of the hot column families and into the archive, keyed by block
// number. It is idempotent: re-freezing an already-archived block just
// deletes the (already-absent) hot entries again. The header stays in
// the hot store permanently; it is small and GetHeader/GetBlockHashByHeight
// need it on the ordinary path regardless of age.
func (s *ChainStore) FreezeBlock(hash types.Hash256) error {
	if s.archive == nil {
		return fmt.Errorf("freeze block %s: no archive configured", hash)
	}
	header, err := s.GetHeader(hash)
	if err != nil {
		return fmt.Errorf("freeze block %s: %w", hash, err)
	}

	if !s.archive.Has(header.Number) {
		body, err := s.loadFrozenBody(hash)
		if err != nil {
			return fmt.Errorf("freeze block %s: load hot body: %w", hash, err)
		}
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("freeze block %s: marshal: %w", hash, err)
		}
		if err := s.archive.Append(header.Number, data); err != nil {
			return fmt.Errorf("freeze block %s: archive append: %w", hash, err)
		}
	}

	batch := s.db.NewBatch()
	batch.Delete(bodyKey(hash))
	batch.Delete(uncleKey(hash))
	batch.Delete(proposalIDsKey(hash))
	batch.Delete(extKey(hash))
	if err := batch.Commit(); err != nil {
		return fmt.Errorf("freeze block %s: evict hot entries: %w", hash, err)
	}
	logging.Store.Debug().Uint64("number", header.Number).Stringer("hash", hash).Msg("block frozen")
	return nil
}

// loadFrozenBody reads hash's body/uncles/proposals/extension straight
// from the hot column families, with no archive fallback; used only by
// FreezeBlock, before hot entries are evicted.
func (s *ChainStore) loadFrozenBody(hash types.Hash256) (frozenBody, error) {
	txs, err := s.GetBody(hash)
	if err != nil {
		return frozenBody{}, err
	}
	uncles, err := s.GetUncles(hash)
	if err != nil {
		return frozenBody{}, err
	}
	proposals, err := s.GetProposals(hash)
	if err != nil {
		return frozenBody{}, err
	}
	ext, err := s.GetExtension(hash)
	if err != nil {
		return frozenBody{}, err
	}
	return frozenBody{Transactions: txs, Uncles: uncles, Proposals: proposals, Extension: ext}, nil
}

// archivedBody fetches and decodes hash's frozen record, resolving its
// block number from the (still-hot) header first.
func (s *ChainStore) archivedBody(hash types.Hash256) (frozenBody, error) {
	if s.archive == nil {
		return frozenBody{}, storage.ErrKeyNotFound
	}
	header, err := s.GetHeader(hash)
	if err != nil {
		return frozenBody{}, err
	}
	data, err := s.archive.Get(header.Number)
	if err != nil {
		return frozenBody{}, fmt.Errorf("get archived body %s: %w", hash, err)
	}
	var body frozenBody
	if err := json.Unmarshal(data, &body); err != nil {
		return frozenBody{}, fmt.Errorf("unmarshal archived body %s: %w", hash, err)
	}
	return body, nil
}

// InsertBlock persists a block's header, body, uncles, proposal ids, and
// extension, and indexes its transactions by hash, without touching the
// live-cell set, height index, or tip. It is safe to call for blocks that
// never become canonical (side branches, orphans).
func (s *ChainStore) InsertBlock(blk *types.Block) error {
	hash := blk.Header.Hash()
	batch := s.db.NewBatch()

	headerData, err := json.Marshal(blk.Header)
	if err != nil {
		return fmt.Errorf("marshal header: %w", err)
	}
	batch.Put(headerKey(hash), headerData)

	bodyData, err := json.Marshal(blk.Transactions)
	if err != nil {
		return fmt.Errorf("marshal body: %w", err)
	}
	batch.Put(bodyKey(hash), bodyData)

	uncleData, err := json.Marshal(blk.Uncles)
	if err != nil {
		return fmt.Errorf("marshal uncles: %w", err)
	}
	batch.Put(uncleKey(hash), uncleData)

	proposalData, err := json.Marshal(blk.Proposals)
	if err != nil {
		return fmt.Errorf("marshal proposals: %w", err)
	}
	batch.Put(proposalIDsKey(hash), proposalData)

	if len(blk.Extension) > 0 {
		batch.Put(extKey(hash), blk.Extension)
	}

	for i, tx := range blk.Transactions {
		txHash := tx.Hash()
		batch.Put(txInfoKey(txHash), encodeTxInfo(hash, blk.Header.Number, uint32(i)))
	}

	if err := batch.Commit(); err != nil {
		return fmt.Errorf("insert block %s: %w", hash, err)
	}
	return nil
}

// HasHeader reports whether a header for hash has been inserted.
func (s *ChainStore) HasHeader(hash types.Hash256) (bool, error) {
	return s.db.Has(headerKey(hash))
}

// GetHeader retrieves a previously inserted header.
func (s *ChainStore) GetHeader(hash types.Hash256) (types.Header, error) {
	data, err := s.db.Get(headerKey(hash))
	if err != nil {
		return types.Header{}, fmt.Errorf("get header %s: %w", hash, err)
	}
	var h types.Header
	if err := json.Unmarshal(data, &h); err != nil {
		return types.Header{}, fmt.Errorf("unmarshal header %s: %w", hash, err)
	}
	return h, nil
}

// GetBody retrieves a previously inserted block's transaction list,
// falling back to the archive (spec.md §4.9) if it has been frozen.
func (s *ChainStore) GetBody(hash types.Hash256) ([]types.Transaction, error) {
	data, err := s.db.Get(bodyKey(hash))
	if err != nil {
		if err == storage.ErrKeyNotFound {
			body, archErr := s.archivedBody(hash)
			if archErr == nil {
				return body.Transactions, nil
			}
		}
		return nil, fmt.Errorf("get body %s: %w", hash, err)
	}
	var txs []types.Transaction
	if err := json.Unmarshal(data, &txs); err != nil {
		return nil, fmt.Errorf("unmarshal body %s: %w", hash, err)
	}
	return txs, nil
}

// GetUncles retrieves a previously inserted block's uncles, falling back
// to the archive if it has been frozen.
func (s *ChainStore) GetUncles(hash types.Hash256) ([]types.UncleBlock, error) {
	data, err := s.db.Get(uncleKey(hash))
	if err != nil {
		if err == storage.ErrKeyNotFound {
			body, archErr := s.archivedBody(hash)
			if archErr == nil {
				return body.Uncles, nil
			}
		}
		return nil, fmt.Errorf("get uncles %s: %w", hash, err)
	}
	var uncles []types.UncleBlock
	if err := json.Unmarshal(data, &uncles); err != nil {
		return nil, fmt.Errorf("unmarshal uncles %s: %w", hash, err)
	}
	return uncles, nil
}

// GetProposals retrieves a previously inserted block's proposal short ids,
// falling back to the archive if it has been frozen.
func (s *ChainStore) GetProposals(hash types.Hash256) ([]types.ProposalShortID, error) {
	data, err := s.db.Get(proposalIDsKey(hash))
	if err != nil {
		if err == storage.ErrKeyNotFound {
			body, archErr := s.archivedBody(hash)
			if archErr == nil {
				return body.Proposals, nil
			}
		}
		return nil, fmt.Errorf("get proposals %s: %w", hash, err)
	}
	var ids []types.ProposalShortID
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("unmarshal proposals %s: %w", hash, err)
	}
	return ids, nil
}

// GetExtension retrieves a previously inserted block's extension bytes, or
// nil if it had none, falling back to the archive if it has been frozen.
func (s *ChainStore) GetExtension(hash types.Hash256) ([]byte, error) {
	data, err := s.db.Get(extKey(hash))
	if err != nil {
		if err == storage.ErrKeyNotFound {
			body, archErr := s.archivedBody(hash)
			if archErr == nil {
				return body.Extension, nil
			}
			return nil, nil
		}
		return nil, fmt.Errorf("get extension %s: %w", hash, err)
	}
	return data, nil
}

// GetBlock reassembles a full block from its column families.
func (s *ChainStore) GetBlock(hash types.Hash256) (*types.Block, error) {
	header, err := s.GetHeader(hash)
	if err != nil {
		return nil, err
	}
	txs, err := s.GetBody(hash)
	if err != nil {
		return nil, err
	}
	uncles, err := s.GetUncles(hash)
	if err != nil {
		return nil, err
	}
	proposals, err := s.GetProposals(hash)
	if err != nil {
		return nil, err
	}
	ext, err := s.GetExtension(hash)
	if err != nil {
		return nil, err
	}
	return &types.Block{
		Header:       header,
		Transactions: txs,
		Uncles:       uncles,
		Proposals:    proposals,
		Extension:    ext,
	}, nil
}

// GetTxInfo returns the location of a transaction in the block that last
// inserted it; that block is not necessarily canonical.
func (s *ChainStore) GetTxInfo(txHash types.Hash256) (TxInfo, error) {
	data, err := s.db.Get(txInfoKey(txHash))
	if err != nil {
		return TxInfo{}, fmt.Errorf("get tx info %s: %w", txHash, err)
	}
	info, ok := decodeTxInfo(data)
	if !ok {
		return TxInfo{}, fmt.Errorf("corrupt tx info entry for %s", txHash)
	}
	return info, nil
}

// GetCell retrieves a live cell's output by its outpoint.
func (s *ChainStore) GetCell(op types.OutPoint) (types.CellOutput, error) {
	data, err := s.db.Get(cellKey(op))
	if err != nil {
		return types.CellOutput{}, fmt.Errorf("get cell %s: %w", op, err)
	}
	var out types.CellOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return types.CellOutput{}, fmt.Errorf("unmarshal cell %s: %w", op, err)
	}
	return out, nil
}

// GetCellData retrieves a live cell's data by its outpoint.
func (s *ChainStore) GetCellData(op types.OutPoint) ([]byte, error) {
	data, err := s.db.Get(cellDataKey(op))
	if err != nil {
		if err == storage.ErrKeyNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get cell data %s: %w", op, err)
	}
	return data, nil
}

// HasCell reports whether a cell is currently live.
func (s *ChainStore) HasCell(op types.OutPoint) (bool, error) {
	return s.db.Has(cellKey(op))
}

// GetBlockHashByHeight returns the canonical block hash at height.
func (s *ChainStore) GetBlockHashByHeight(height uint64) (types.Hash256, error) {
	data, err := s.db.Get(heightKey(height))
	if err != nil {
		return types.Hash256{}, fmt.Errorf("get height index %d: %w", height, err)
	}
	return types.HashFromBytes(data)
}

// GetEpoch retrieves a previously stored epoch by number.
func (s *ChainStore) GetEpoch(number uint64) (types.Epoch, error) {
	data, err := s.db.Get(epochKey(number))
	if err != nil {
		return types.Epoch{}, fmt.Errorf("get epoch %d: %w", number, err)
	}
	var e types.Epoch
	if err := json.Unmarshal(data, &e); err != nil {
		return types.Epoch{}, fmt.Errorf("unmarshal epoch %d: %w", number, err)
	}
	return e, nil
}

// GetBlockEpochNumber returns the epoch number a given block belongs to.
func (s *ChainStore) GetBlockEpochNumber(hash types.Hash256) (uint64, error) {
	data, err := s.db.Get(blockEpochKey(hash))
	if err != nil {
		return 0, fmt.Errorf("get block epoch %s: %w", hash, err)
	}
	if len(data) != 8 {
		return 0, fmt.Errorf("corrupt block epoch entry for %s", hash)
	}
	var v uint64
	for i := 0; i < 8; i++ {
		v = v<<8 | uint64(data[i])
	}
	return v, nil
}

// GetTip returns the canonical tip's header hash and total difficulty. A
// fresh store (no tip set) returns the zero hash and zero difficulty.
func (s *ChainStore) GetTip() (types.Hash256, types.U256, error) {
	hashData, err := s.db.Get(keyTipHeaderHash)
	if err != nil {
		if err == storage.ErrKeyNotFound {
			return types.Hash256{}, types.ZeroU256(), nil
		}
		return types.Hash256{}, types.U256{}, fmt.Errorf("get tip hash: %w", err)
	}
	hash, err := types.HashFromBytes(hashData)
	if err != nil {
		return types.Hash256{}, types.U256{}, fmt.Errorf("corrupt tip hash: %w", err)
	}

	diffData, err := s.db.Get(keyTipTotalDiff)
	if err != nil {
		return hash, types.ZeroU256(), nil
	}
	return hash, types.U256FromBytes(diffData), nil
}
