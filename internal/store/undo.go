package store

import "github.com/klingon-tech/cellnode/pkg/types"

// consumedCell is one input's live-cell snapshot, recorded before the cell
// is removed so DetachBlock can restore it (spec.md §4.1, "detach_block...
// un-spends the block's inputs").
type consumedCell struct {
	OutPoint types.OutPoint   `json:"out_point"`
	Output   types.CellOutput `json:"output"`
	Data     []byte           `json:"data"`
}

// blockUndo is the data AttachBlock writes so the same block can later be
// cleanly DetachBlock-ed: the cells it consumed (to be restored) and the
// cells it created (to be removed).
type blockUndo struct {
	Consumed []consumedCell   `json:"consumed"`
	Created  []types.OutPoint `json:"created"`
}
