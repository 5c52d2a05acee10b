package vm

import (
	"bytes"
	"sort"

	"github.com/klingon-tech/cellnode/internal/cellprovider"
	"github.com/klingon-tech/cellnode/pkg/types"
)

// ScriptGroupKind distinguishes a lock group (keyed by each input's lock
// script) from a type group (keyed by each input's or output's type
// script), per spec.md §4.4.1.
type ScriptGroupKind uint8

const (
	ScriptGroupLock ScriptGroupKind = iota
	ScriptGroupTypeScript
)

// ScriptGroup is one root process's unit of work: every input/output that
// shares the same (script_hash, script_type) runs together, verified by a
// single execution of Script.
type ScriptGroup struct {
	Hash          types.Hash256
	Kind          ScriptGroupKind
	Script        types.Script
	InputIndices  []int
	OutputIndices []int
}

// BuildScriptGroups partitions rtx's inputs and outputs into lock and type
// groups and returns them in the deterministic order spec.md §4.4.1
// requires: sorted by script hash.
func BuildScriptGroups(rtx *cellprovider.ResolvedTransaction) []ScriptGroup {
	lockGroups := map[types.Hash256]*ScriptGroup{}
	typeGroups := map[types.Hash256]*ScriptGroup{}

	for i, cell := range rtx.Inputs {
		lock := cell.Output.Lock
		h := lock.Hash()
		g, ok := lockGroups[h]
		if !ok {
			g = &ScriptGroup{Hash: h, Kind: ScriptGroupLock, Script: lock}
			lockGroups[h] = g
		}
		g.InputIndices = append(g.InputIndices, i)

		if cell.Output.Type != nil {
			addTypeGroupMember(typeGroups, *cell.Output.Type, i, -1)
		}
	}

	for i, out := range rtx.Transaction.Outputs {
		if out.Type != nil {
			addTypeGroupMember(typeGroups, *out.Type, -1, i)
		}
	}

	groups := make([]ScriptGroup, 0, len(lockGroups)+len(typeGroups))
	for _, g := range lockGroups {
		groups = append(groups, *g)
	}
	for _, g := range typeGroups {
		groups = append(groups, *g)
	}

	sort.Slice(groups, func(i, j int) bool {
		return bytes.Compare(groups[i].Hash[:], groups[j].Hash[:]) < 0
	})
	return groups
}

func addTypeGroupMember(typeGroups map[types.Hash256]*ScriptGroup, script types.Script, inputIndex, outputIndex int) {
	h := script.Hash()
	g, ok := typeGroups[h]
	if !ok {
		g = &ScriptGroup{Hash: h, Kind: ScriptGroupTypeScript, Script: script}
		typeGroups[h] = g
	}
	if inputIndex >= 0 {
		g.InputIndices = append(g.InputIndices, inputIndex)
	}
	if outputIndex >= 0 {
		g.OutputIndices = append(g.OutputIndices, outputIndex)
	}
}
