package types

import (
	"encoding/binary"
)

// Header carries a block's metadata and commitments; the block's body
// (transactions, uncles, proposals) is validated against the roots it
// contains (spec.md §3 Header/Block).
type Header struct {
	Version          uint32  `json:"version"`
	CompactTarget    uint32  `json:"compact_target"`
	Timestamp        uint64  `json:"timestamp"`
	Number           uint64  `json:"number"`
	Epoch            uint64  `json:"epoch"` // packed EpochNumberWithFraction
	ParentHash       Hash256 `json:"parent_hash"`
	TransactionsRoot Hash256 `json:"transactions_root"`
	ProposalsHash    Hash256 `json:"proposals_hash"`
	ExtraHash        Hash256 `json:"extra_hash"`
	Dao              [32]byte `json:"dao"`
	Nonce            [16]byte `json:"nonce"`
}

// bodyBytes serializes every field except Nonce, the message that PoW seals
// (spec.md §5, the sealed message excludes the nonce it is searching over).
func (h *Header) bodyBytes() []byte {
	buf := make([]byte, 0, 4+4+8+8+8+32*4+32)
	buf = binary.LittleEndian.AppendUint32(buf, h.Version)
	buf = binary.LittleEndian.AppendUint32(buf, h.CompactTarget)
	buf = binary.LittleEndian.AppendUint64(buf, h.Timestamp)
	buf = binary.LittleEndian.AppendUint64(buf, h.Number)
	buf = binary.LittleEndian.AppendUint64(buf, h.Epoch)
	buf = append(buf, h.ParentHash[:]...)
	buf = append(buf, h.TransactionsRoot[:]...)
	buf = append(buf, h.ProposalsHash[:]...)
	buf = append(buf, h.ExtraHash[:]...)
	buf = append(buf, h.Dao[:]...)
	return buf
}

// PowMessage returns the bytes a proof-of-work engine seals over: the
// header body without the nonce.
func (h *Header) PowMessage() []byte {
	return h.bodyBytes()
}

// Hash returns block_hash: the content address of the full header,
// including the nonce that sealed it.
func (h *Header) Hash() Hash256 {
	buf := h.bodyBytes()
	buf = append(buf, h.Nonce[:]...)
	return sumHash256(buf)
}

// EpochFraction unpacks the Epoch field.
func (h *Header) EpochFraction() EpochNumberWithFraction {
	return UnpackEpoch(h.Epoch)
}

// IsGenesis reports whether this is block 0.
func (h *Header) IsGenesis() bool {
	return h.Number == 0
}
