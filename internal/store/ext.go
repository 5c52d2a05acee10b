package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/klingon-tech/cellnode/pkg/types"
)

// BlockExt is the chain service's side-channel bookkeeping for a block,
// independent of whether the block is canonical (spec.md §6.2's
// "block_ext (received_at, total_difficulty, verified flag, fees,
// cycles)"; total_difficulty itself lives in its own column, see
// GetTotalDifficulty).
type BlockExt struct {
	ReceivedAt uint64          `json:"received_at"`
	Verified   bool            `json:"verified"`
	Fees       []types.Capacity `json:"fees"`
	Cycles     uint64          `json:"cycles"`
}

// PutBlockEpochNumber records hash's epoch number independent of
// attach_block, so header verification can look up a not-yet-canonical
// (fork candidate) block's epoch purely from insert-time bookkeeping.
// AttachBlock writes the same key again on canonicalization; both writes
// agree, so the double write is harmless.
func (s *ChainStore) PutBlockEpochNumber(hash types.Hash256, number uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], number)
	return s.db.Put(blockEpochKey(hash), buf[:])
}

// PutBlockExt stores or overwrites a block's ext record.
func (s *ChainStore) PutBlockExt(hash types.Hash256, ext BlockExt) error {
	data, err := json.Marshal(ext)
	if err != nil {
		return fmt.Errorf("marshal block ext %s: %w", hash, err)
	}
	return s.db.Put(blockExtKey(hash), data)
}

// GetBlockExt retrieves a previously stored block ext record.
func (s *ChainStore) GetBlockExt(hash types.Hash256) (BlockExt, error) {
	data, err := s.db.Get(blockExtKey(hash))
	if err != nil {
		return BlockExt{}, fmt.Errorf("get block ext %s: %w", hash, err)
	}
	var ext BlockExt
	if err := json.Unmarshal(data, &ext); err != nil {
		return BlockExt{}, fmt.Errorf("unmarshal block ext %s: %w", hash, err)
	}
	return ext, nil
}
