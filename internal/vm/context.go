package vm

import (
	"github.com/klingon-tech/cellnode/internal/cellprovider"
	"github.com/klingon-tech/cellnode/pkg/crypto"
	"github.com/klingon-tech/cellnode/pkg/types"
)

// ExecContext is the read-only transaction data every process in a script
// group's tree can read from via syscalls. It never changes during
// execution; syscalls only copy out of it.
type ExecContext struct {
	Tx        *cellprovider.ResolvedTransaction
	TxHash    types.Hash256
	Group     *ScriptGroup
	VMVersion int
}

// cellAt resolves (index, source) to a cell, per spec.md §4.4.4's index
// source space.
func (c *ExecContext) cellAt(index int, source Source) (types.CellMeta, bool) {
	switch source {
	case SourceInput:
		if index < 0 || index >= len(c.Tx.Inputs) {
			return types.CellMeta{}, false
		}
		return c.Tx.Inputs[index], true
	case SourceCellDep:
		if index < 0 || index >= len(c.Tx.CellDeps) {
			return types.CellMeta{}, false
		}
		return c.Tx.CellDeps[index], true
	case SourceGroupInput:
		if index < 0 || index >= len(c.Group.InputIndices) {
			return types.CellMeta{}, false
		}
		return c.Tx.Inputs[c.Group.InputIndices[index]], true
	default:
		return types.CellMeta{}, false
	}
}

// outputAt resolves (index, source) to one of the transaction's own
// declared outputs (there is no CellMeta for an output: it isn't live
// yet).
func (c *ExecContext) outputAt(index int, source Source) (types.CellOutput, []byte, bool) {
	switch source {
	case SourceOutput:
		if index < 0 || index >= len(c.Tx.Transaction.Outputs) {
			return types.CellOutput{}, nil, false
		}
		var data []byte
		if index < len(c.Tx.Transaction.OutputsData) {
			data = c.Tx.Transaction.OutputsData[index]
		}
		return c.Tx.Transaction.Outputs[index], data, true
	case SourceGroupOutput:
		if index < 0 || index >= len(c.Group.OutputIndices) {
			return types.CellOutput{}, nil, false
		}
		real := c.Group.OutputIndices[index]
		var data []byte
		if real < len(c.Tx.Transaction.OutputsData) {
			data = c.Tx.Transaction.OutputsData[real]
		}
		return c.Tx.Transaction.Outputs[real], data, true
	default:
		return types.CellOutput{}, nil, false
	}
}

func (c *ExecContext) inputAt(index int, source Source) (types.Input, bool) {
	switch source {
	case SourceInput:
		if index < 0 || index >= len(c.Tx.Transaction.Inputs) {
			return types.Input{}, false
		}
		return c.Tx.Transaction.Inputs[index], true
	case SourceGroupInput:
		if index < 0 || index >= len(c.Group.InputIndices) {
			return types.Input{}, false
		}
		real := c.Group.InputIndices[index]
		return c.Tx.Transaction.Inputs[real], true
	default:
		return types.Input{}, false
	}
}

func (c *ExecContext) headerAt(index int, source Source) (types.Header, bool) {
	switch source {
	case SourceHeaderDep:
		if index < 0 || index >= len(c.Tx.HeaderDeps) {
			return types.Header{}, false
		}
		return c.Tx.HeaderDeps[index], true
	default:
		return types.Header{}, false
	}
}

func (c *ExecContext) witnessAt(index int, source Source) ([]byte, bool) {
	switch source {
	case SourceInput, SourceGroupInput:
		real := index
		if source == SourceGroupInput {
			if index < 0 || index >= len(c.Group.InputIndices) {
				return nil, false
			}
			real = c.Group.InputIndices[index]
		}
		if real < 0 || real >= len(c.Tx.Transaction.Witnesses) {
			return nil, false
		}
		return c.Tx.Transaction.Witnesses[real], true
	case SourceOutput:
		if index < 0 || index >= len(c.Tx.Transaction.Witnesses) {
			return nil, false
		}
		return c.Tx.Transaction.Witnesses[index], true
	default:
		return nil, false
	}
}

// outputCellAny resolves (index, source) to a CellOutput+data pair across
// every index source load_cell accepts, including the transaction's own
// not-yet-live outputs.
func (c *ExecContext) outputCellAny(index int, source Source) (types.CellOutput, []byte, bool) {
	switch source {
	case SourceOutput, SourceGroupOutput:
		return c.outputAt(index, source)
	default:
		cell, ok := c.cellAt(index, source)
		if !ok {
			return types.CellOutput{}, nil, false
		}
		return cell.Output, cell.Data, true
	}
}

// cellField returns the encoding of one sub-field of output+data, for
// load_cell_by_field.
func cellField(output types.CellOutput, data []byte, field Field) ([]byte, bool) {
	switch field {
	case FieldCapacity:
		capBuf := make([]byte, 8)
		for i := 0; i < 8; i++ {
			capBuf[i] = byte(output.Capacity >> (8 * uint(i)))
		}
		return capBuf, true
	case FieldLockHash:
		h := output.Lock.Hash()
		return h[:], true
	case FieldTypeHash:
		if output.Type == nil {
			return nil, false
		}
		h := output.Type.Hash()
		return h[:], true
	case FieldOccupiedCapacity:
		occ := output.OccupiedCapacity(data)
		buf := make([]byte, 8)
		for i := 0; i < 8; i++ {
			buf[i] = byte(occ >> (8 * uint(i)))
		}
		return buf, true
	case FieldDataHash:
		h := crypto.Hash(data)
		return h[:], true
	default:
		return nil, false
	}
}

// inputField returns the encoding of an input's since field, the only
// load_input_by_field variant that isn't also a cell field.
func inputField(in types.Input, field Field) ([]byte, bool) {
	if field != FieldSince {
		return nil, false
	}
	buf := make([]byte, 8)
	for i := 0; i < 8; i++ {
		buf[i] = byte(uint64(in.Since) >> (8 * uint(i)))
	}
	return buf, true
}

// headerField returns the encoding of one sub-field of a header, for
// load_header_by_field.
func headerField(hdr types.Header, field Field) ([]byte, bool) {
	u64 := func(v uint64) []byte {
		buf := make([]byte, 8)
		for i := 0; i < 8; i++ {
			buf[i] = byte(v >> (8 * uint(i)))
		}
		return buf
	}
	switch field {
	case FieldNumber:
		return u64(hdr.Number), true
	case FieldTimestamp:
		return u64(hdr.Timestamp), true
	case FieldEpoch:
		return u64(hdr.Epoch), true
	case FieldCompactTarget:
		return u64(uint64(hdr.CompactTarget)), true
	case FieldParentHash:
		h := hdr.ParentHash
		return h[:], true
	default:
		return nil, false
	}
}
