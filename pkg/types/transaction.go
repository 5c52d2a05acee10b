package types

import "encoding/binary"

// DepType selects how a CellDep's referenced cell contributes to a
// transaction's execution context.
type DepType uint8

const (
	// DepTypeCode loads the referenced cell directly as a code/context cell.
	DepTypeCode DepType = iota
	// DepTypeDepGroup treats the referenced cell's data as a list of
	// OutPoints to expand into further cell_deps (spec.md §4.2 "DepGroup
	// expansion").
	DepTypeDepGroup
)

// CellDep references a live cell a transaction depends on for script code
// or context, without spending it.
type CellDep struct {
	OutPoint OutPoint `json:"out_point"`
	DepType  DepType  `json:"dep_type"`
}

// Input spends a single cell, identified by PreviousOutput, subject to the
// relative or absolute maturity encoded in Since.
type Input struct {
	PreviousOutput OutPoint `json:"previous_output"`
	Since          Since    `json:"since"`
}

// Transaction is the ledger's unit of state transition: it consumes the
// cells named by Inputs and CellDeps and produces the cells described by
// Outputs/OutputsData.
type Transaction struct {
	Version     uint32     `json:"version"`
	CellDeps    []CellDep  `json:"cell_deps"`
	HeaderDeps  []Hash256  `json:"header_deps"`
	Inputs      []Input    `json:"inputs"`
	Outputs     []CellOutput `json:"outputs"`
	OutputsData [][]byte   `json:"outputs_data"`
	Witnesses   [][]byte   `json:"witnesses"`
}

// rawParts serializes every field except witnesses, the portion that feeds
// tx_hash (spec.md §3 Transaction, "tx_hash (excludes witnesses)").
func (tx *Transaction) rawParts() []byte {
	buf := make([]byte, 0, 256)
	buf = binary.LittleEndian.AppendUint32(buf, tx.Version)

	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(tx.CellDeps)))
	for _, d := range tx.CellDeps {
		buf = append(buf, d.OutPoint.Bytes()...)
		buf = append(buf, byte(d.DepType))
	}

	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(tx.HeaderDeps)))
	for _, h := range tx.HeaderDeps {
		buf = append(buf, h[:]...)
	}

	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(tx.Inputs)))
	for _, in := range tx.Inputs {
		buf = append(buf, in.PreviousOutput.Bytes()...)
		buf = binary.LittleEndian.AppendUint64(buf, uint64(in.Since))
	}

	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(tx.Outputs)))
	for i, out := range tx.Outputs {
		buf = binary.LittleEndian.AppendUint64(buf, uint64(out.Capacity))
		buf = out.Lock.serializeInto(buf)
		if out.Type != nil {
			buf = append(buf, 1)
			buf = out.Type.serializeInto(buf)
		} else {
			buf = append(buf, 0)
		}
		var data []byte
		if i < len(tx.OutputsData) {
			data = tx.OutputsData[i]
		}
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(data)))
		buf = append(buf, data...)
	}

	return buf
}

// Hash returns tx_hash: the content address of the transaction excluding
// its witnesses.
func (tx *Transaction) Hash() Hash256 {
	return sumHash256(tx.rawParts())
}

// WitnessHash returns wtx_hash: the content address of the transaction
// including its witnesses (spec.md §3 Transaction, "wtx_hash (includes
// witnesses)").
func (tx *Transaction) WitnessHash() Hash256 {
	buf := tx.rawParts()
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(tx.Witnesses)))
	for _, w := range tx.Witnesses {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(w)))
		buf = append(buf, w...)
	}
	return sumHash256(buf)
}

// Serialize returns the transaction's full wire encoding, including
// witnesses; used by the VM's load_transaction syscall.
func (tx *Transaction) Serialize() []byte {
	buf := tx.rawParts()
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(tx.Witnesses)))
	for _, w := range tx.Witnesses {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(w)))
		buf = append(buf, w...)
	}
	return buf
}

// IsCellbase reports whether tx satisfies the cellbase shape: exactly one
// input, pointing at the null outpoint (spec.md §3 Block, "Cellbase
// invariant"). It does not check positional placement within the block;
// that is the verifier's responsibility.
func (tx *Transaction) IsCellbase() bool {
	return len(tx.Inputs) == 1 && tx.Inputs[0].PreviousOutput.IsNull()
}

// OutputsDataHash returns a hash over outputs_data: the entry count, then
// each entry's length and bytes. Block root computation does not use it;
// tx_hash already covers outputs_data.
func (tx *Transaction) OutputsDataHash() Hash256 {
	buf := make([]byte, 0, 64)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(tx.OutputsData)))
	for _, d := range tx.OutputsData {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(d)))
		buf = append(buf, d...)
	}
	return sumHash256(buf)
}
