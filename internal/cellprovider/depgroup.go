package cellprovider

import (
	"encoding/binary"
	"fmt"

	"github.com/klingon-tech/cellnode/pkg/types"
)

// EncodeDepGroup serializes a list of OutPoints into the byte layout a
// DepTypeDepGroup cell's data must hold: count(4B LE) + count*outpoint(36B).
func EncodeDepGroup(points []types.OutPoint) []byte {
	buf := make([]byte, 0, 4+len(points)*36)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(points)))
	for _, p := range points {
		buf = append(buf, p.Bytes()...)
	}
	return buf
}

// DecodeDepGroup parses a dep group cell's data back into its OutPoint
// list, failing if the byte layout is malformed.
func DecodeDepGroup(data []byte) ([]types.OutPoint, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("dep group data too short: %d bytes", len(data))
	}
	count := binary.LittleEndian.Uint32(data[:4])
	rest := data[4:]
	if uint64(len(rest)) != uint64(count)*36 {
		return nil, fmt.Errorf("dep group data length mismatch: want %d outpoints (%d bytes), got %d bytes", count, uint64(count)*36, len(rest))
	}
	points := make([]types.OutPoint, count)
	for i := uint32(0); i < count; i++ {
		chunk := rest[i*36 : i*36+36]
		txHash, err := types.HashFromBytes(chunk[:32])
		if err != nil {
			return nil, fmt.Errorf("dep group outpoint %d: %w", i, err)
		}
		points[i] = types.OutPoint{TxHash: txHash, Index: binary.BigEndian.Uint32(chunk[32:])}
	}
	return points, nil
}
