package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/klingon-tech/cellnode/internal/storage"
	"github.com/klingon-tech/cellnode/pkg/types"
)

// AttachBlock makes a previously inserted block canonical: it spends the
// live cells its non-cellbase inputs reference, creates the cells its
// outputs describe, advances the height index, records the block's total
// difficulty and epoch number, and moves the tip to this block (spec.md
// §4.1, "attach_block... mutates the live-cell set").
//
// blk must already have been persisted with InsertBlock. totalDifficulty is
// the chain's cumulative difficulty through this block, computed by the
// caller (internal/consensus); epochNumber is the epoch this block belongs
// to.
func (s *ChainStore) AttachBlock(blk *types.Block, totalDifficulty types.U256, epochNumber uint64) error {
	hash := blk.Header.Hash()
	batch := s.db.NewBatch()

	var undo blockUndo
	for txIdx, tx := range blk.Transactions {
		if txIdx == 0 && tx.IsCellbase() {
			// cellbase's sole input is the null outpoint: nothing to spend.
		} else {
			for _, in := range tx.Inputs {
				consumed, err := s.snapshotCell(in.PreviousOutput)
				if err != nil {
					return fmt.Errorf("attach %s: spend %s: %w", hash, in.PreviousOutput, err)
				}
				undo.Consumed = append(undo.Consumed, consumed)
				batch.Delete(cellKey(in.PreviousOutput))
				batch.Delete(cellDataKey(in.PreviousOutput))
			}
		}

		txHash := tx.Hash()
		for outIdx, out := range tx.Outputs {
			op := types.OutPoint{TxHash: txHash, Index: uint32(outIdx)}
			outData, err := json.Marshal(out)
			if err != nil {
				return fmt.Errorf("marshal cell output %s: %w", op, err)
			}
			batch.Put(cellKey(op), outData)
			var data []byte
			if outIdx < len(tx.OutputsData) {
				data = tx.OutputsData[outIdx]
			}
			if len(data) > 0 {
				batch.Put(cellDataKey(op), data)
			}
			undo.Created = append(undo.Created, op)
		}
	}

	undoData, err := json.Marshal(undo)
	if err != nil {
		return fmt.Errorf("marshal undo for %s: %w", hash, err)
	}
	batch.Put(undoKey(hash), undoData)

	batch.Put(heightKey(blk.Header.Number), hash[:])

	var epochBuf [8]byte
	binary.BigEndian.PutUint64(epochBuf[:], epochNumber)
	batch.Put(blockEpochKey(hash), epochBuf[:])

	diffBytes := totalDifficulty.Bytes32()
	batch.Put(totalDiffKey(hash), diffBytes[:])

	batch.Put(keyTipHeaderHash, hash[:])
	batch.Put(keyTipTotalDiff, diffBytes[:])

	if err := batch.Commit(); err != nil {
		return fmt.Errorf("attach block %s: %w", hash, err)
	}
	return nil
}

// DetachBlock reverses a prior AttachBlock: it restores the cells the
// block consumed, removes the cells it created, rolls back the height
// index, and moves the tip to parentHash (whose total difficulty must
// already be recorded, from when it was attached).
func (s *ChainStore) DetachBlock(blk *types.Block, parentHash types.Hash256) error {
	hash := blk.Header.Hash()

	undoData, err := s.db.Get(undoKey(hash))
	if err != nil {
		return fmt.Errorf("detach %s: missing undo data: %w", hash, err)
	}
	var undo blockUndo
	if err := json.Unmarshal(undoData, &undo); err != nil {
		return fmt.Errorf("detach %s: unmarshal undo data: %w", hash, err)
	}

	parentDiffBytes, err := s.db.Get(totalDiffKey(parentHash))
	if err != nil && parentHash != (types.Hash256{}) {
		return fmt.Errorf("detach %s: missing parent total difficulty: %w", hash, err)
	}

	batch := s.db.NewBatch()

	for _, op := range undo.Created {
		batch.Delete(cellKey(op))
		batch.Delete(cellDataKey(op))
	}
	for _, c := range undo.Consumed {
		outData, err := json.Marshal(c.Output)
		if err != nil {
			return fmt.Errorf("detach %s: marshal restored cell %s: %w", hash, c.OutPoint, err)
		}
		batch.Put(cellKey(c.OutPoint), outData)
		if len(c.Data) > 0 {
			batch.Put(cellDataKey(c.OutPoint), c.Data)
		}
	}

	batch.Delete(heightKey(blk.Header.Number))
	batch.Delete(undoKey(hash))
	batch.Delete(totalDiffKey(hash))
	batch.Delete(blockEpochKey(hash))

	if parentHash == (types.Hash256{}) {
		batch.Delete(keyTipHeaderHash)
		batch.Delete(keyTipTotalDiff)
	} else {
		batch.Put(keyTipHeaderHash, parentHash[:])
		batch.Put(keyTipTotalDiff, parentDiffBytes)
	}

	if err := batch.Commit(); err != nil {
		return fmt.Errorf("detach block %s: %w", hash, err)
	}
	return nil
}

// snapshotCell reads a live cell's current output and data so it can be
// restored later by DetachBlock.
func (s *ChainStore) snapshotCell(op types.OutPoint) (consumedCell, error) {
	outData, err := s.db.Get(cellKey(op))
	if err != nil {
		return consumedCell{}, fmt.Errorf("cell %s not live: %w", op, err)
	}
	var out types.CellOutput
	if err := json.Unmarshal(outData, &out); err != nil {
		return consumedCell{}, fmt.Errorf("unmarshal cell %s: %w", op, err)
	}
	data, err := s.db.Get(cellDataKey(op))
	if err != nil && err != storage.ErrKeyNotFound {
		return consumedCell{}, fmt.Errorf("get cell data %s: %w", op, err)
	}
	return consumedCell{OutPoint: op, Output: out, Data: data}, nil
}

// PutEpoch stores epoch's parameters, indexed by epoch number.
func (s *ChainStore) PutEpoch(e types.Epoch) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal epoch %d: %w", e.Number, err)
	}
	return s.db.Put(epochKey(e.Number), data)
}

// GetTotalDifficulty returns the recorded total difficulty for hash.
func (s *ChainStore) GetTotalDifficulty(hash types.Hash256) (types.U256, error) {
	data, err := s.db.Get(totalDiffKey(hash))
	if err != nil {
		return types.U256{}, fmt.Errorf("get total difficulty %s: %w", hash, err)
	}
	return types.U256FromBytes(data), nil
}
