package types

import (
	"encoding/binary"
	"fmt"
)

// CellOutput is the output side of a cell: its capacity, its lock script
// (spend authorization) and an optional type script (extra constraints on
// the cell's data and its creation/destruction).
type CellOutput struct {
	Capacity Capacity `json:"capacity"`
	Lock     Script   `json:"lock"`
	Type     *Script  `json:"type"`
}

// OccupiedCapacity is the minimum capacity CellOutput.Capacity must hold to
// cover the byte size of the cell when serialized on-chain, priced at one
// shannon per byte (spec.md §3 Cell, "occupied_capacity"). The fixed 8 bytes
// account for the capacity field itself.
func (c CellOutput) OccupiedCapacity(data []byte) Capacity {
	size := 8 + c.Lock.SerializedSize() + len(data)
	if c.Type != nil {
		size += c.Type.SerializedSize()
	}
	return Capacity(size) * 1
}

// Serialize returns the canonical encoding of the cell's output side:
// capacity(8) | lock | has_type(1) | [type]. Used by the VM's load_cell
// syscall to hand a full cell representation to guest code.
func (c CellOutput) Serialize() []byte {
	buf := make([]byte, 0, 8+c.Lock.SerializedSize()+1)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(c.Capacity))
	buf = c.Lock.serializeInto(buf)
	if c.Type != nil {
		buf = append(buf, 1)
		buf = c.Type.serializeInto(buf)
	} else {
		buf = append(buf, 0)
	}
	return buf
}

// Validate checks that Capacity covers OccupiedCapacity(data).
func (c CellOutput) Validate(data []byte) error {
	occupied := c.OccupiedCapacity(data)
	if c.Capacity < occupied {
		return fmt.Errorf("capacity %d below occupied capacity %d", c.Capacity, occupied)
	}
	return nil
}

// CellMeta describes a resolved live cell: its output, its data, and the
// outpoint and block it was created at. Produced by the cell provider when
// resolving a transaction's inputs and cell_deps (spec.md §4.2).
type CellMeta struct {
	OutPoint       OutPoint
	Output         CellOutput
	Data           []byte
	DataHash       Hash256
	BlockHash      Hash256
	BlockNumber    uint64
	BlockTimestamp uint64
	EpochNumber    uint64
	IsCellbase     bool
}
