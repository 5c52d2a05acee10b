// Package store implements the chain store: the column-family persistence
// layer that owns block headers/bodies, the epoch index, the live-cell set,
// and chain metadata (spec.md §4.1, §6.2).
package store

import (
	"encoding/binary"

	"github.com/klingon-tech/cellnode/pkg/types"
)

// Column family prefixes, generalized from the teacher's BlockStore
// key-prefix scheme (internal/chain/store.go: "b/", "h/", "x/", "d/",
// "s/...") into the fuller column set spec.md §6.2 names.
var (
	cfHeader       = []byte("H/") // H/<block_hash(32)> -> header JSON
	cfBody         = []byte("B/") // B/<block_hash(32)> -> []Transaction JSON
	cfUncle        = []byte("U/") // U/<block_hash(32)> -> []UncleBlock JSON
	cfProposalIDs  = []byte("P/") // P/<block_hash(32)> -> []ProposalShortID JSON
	cfExt          = []byte("X/") // X/<block_hash(32)> -> extension bytes
	cfBlockEpoch   = []byte("E/") // E/<block_hash(32)> -> epoch number (8B BE)
	cfEpoch        = []byte("e/") // e/<epoch_number(8B BE)> -> Epoch JSON
	cfHeightIndex  = []byte("i/") // i/<height(8B BE)> -> block_hash(32)
	cfCell         = []byte("c/") // c/<outpoint(36)> -> CellOutput JSON
	cfCellData     = []byte("C/") // C/<outpoint(36)> -> raw cell data bytes
	cfTxInfo       = []byte("t/") // t/<tx_hash(32)> -> block_hash(32)+block_number(8B BE)+index(4B BE)
	cfUndo         = []byte("d/") // d/<block_hash(32)> -> BlockUndo JSON
	cfTotalDiff    = []byte("w/") // w/<block_hash(32)> -> total_difficulty(32B big-endian)
	cfBlockExt     = []byte("x/") // x/<block_hash(32)> -> BlockExt JSON

	keyTipHeaderHash  = []byte("m/tip_header_hash")
	keyTipTotalDiff   = []byte("m/tip_total_difficulty")
)

func withPrefix(prefix []byte, suffix []byte) []byte {
	key := make([]byte, len(prefix)+len(suffix))
	copy(key, prefix)
	copy(key[len(prefix):], suffix)
	return key
}

func headerKey(hash types.Hash256) []byte      { return withPrefix(cfHeader, hash[:]) }
func bodyKey(hash types.Hash256) []byte        { return withPrefix(cfBody, hash[:]) }
func uncleKey(hash types.Hash256) []byte       { return withPrefix(cfUncle, hash[:]) }
func proposalIDsKey(hash types.Hash256) []byte { return withPrefix(cfProposalIDs, hash[:]) }
func extKey(hash types.Hash256) []byte         { return withPrefix(cfExt, hash[:]) }
func blockEpochKey(hash types.Hash256) []byte  { return withPrefix(cfBlockEpoch, hash[:]) }
func undoKey(hash types.Hash256) []byte        { return withPrefix(cfUndo, hash[:]) }
func totalDiffKey(hash types.Hash256) []byte   { return withPrefix(cfTotalDiff, hash[:]) }
func blockExtKey(hash types.Hash256) []byte    { return withPrefix(cfBlockExt, hash[:]) }

func epochKey(number uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], number)
	return withPrefix(cfEpoch, buf[:])
}

func heightKey(height uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], height)
	return withPrefix(cfHeightIndex, buf[:])
}

func cellKey(op types.OutPoint) []byte     { return withPrefix(cfCell, op.Bytes()) }
func cellDataKey(op types.OutPoint) []byte { return withPrefix(cfCellData, op.Bytes()) }

func txInfoKey(hash types.Hash256) []byte { return withPrefix(cfTxInfo, hash[:]) }

func encodeTxInfo(blockHash types.Hash256, blockNumber uint64, index uint32) []byte {
	buf := make([]byte, types.HashSize+8+4)
	copy(buf, blockHash[:])
	binary.BigEndian.PutUint64(buf[types.HashSize:], blockNumber)
	binary.BigEndian.PutUint32(buf[types.HashSize+8:], index)
	return buf
}

// TxInfo is the decoded value of a transaction_info column entry: the
// block that last inserted the transaction, whether or not that block is
// canonical.
type TxInfo struct {
	BlockHash   types.Hash256
	BlockNumber uint64
	Index       uint32
}

func decodeTxInfo(buf []byte) (TxInfo, bool) {
	if len(buf) != types.HashSize+8+4 {
		return TxInfo{}, false
	}
	var info TxInfo
	copy(info.BlockHash[:], buf[:types.HashSize])
	info.BlockNumber = binary.BigEndian.Uint64(buf[types.HashSize:])
	info.Index = binary.BigEndian.Uint32(buf[types.HashSize+8:])
	return info, true
}
