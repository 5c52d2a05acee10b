package types

import "fmt"

// OutPoint identifies a specific output of a specific transaction.
type OutPoint struct {
	TxHash Hash256 `json:"tx_hash"`
	Index  uint32  `json:"index"`
}

// NullOutPoint is the distinguished outpoint referenced by a cellbase's sole
// input (spec.md §3 Block, "Cellbase invariant").
func NullOutPoint() OutPoint {
	return OutPoint{}
}

// IsNull reports whether this is the cellbase's null outpoint.
func (o OutPoint) IsNull() bool {
	return o.TxHash.IsZero() && o.Index == 0
}

// String returns "txhash:index" in hex.
func (o OutPoint) String() string {
	return fmt.Sprintf("%s:%d", o.TxHash, o.Index)
}

// Bytes returns the 36-byte canonical encoding used as a store key
// (spec.md §6.2: "outpoint(36 B)").
func (o OutPoint) Bytes() []byte {
	b := make([]byte, HashSize+4)
	copy(b, o.TxHash[:])
	b[HashSize] = byte(o.Index >> 24)
	b[HashSize+1] = byte(o.Index >> 16)
	b[HashSize+2] = byte(o.Index >> 8)
	b[HashSize+3] = byte(o.Index)
	return b
}
