package vm

import (
	"fmt"

	"github.com/klingon-tech/cellnode/internal/cellprovider"
)

// RunConfig bounds one transaction's script execution: a cycle budget of
// MaxCyclesPerGroup for each script group, metered separately per group
// (no cycle cap spans the groups of one transaction), and the memory
// budget shared across every concurrently live process in any group's
// tree (spec.md §4.4.3).
type RunConfig struct {
	MaxCyclesPerGroup int
	MaxMemoryPerTx    int
	MemoryPerProcess  int
	VMVersion         int
	LoadCode          CodeLoader
}

// GroupResult records one script group's outcome.
type GroupResult struct {
	Group  ScriptGroup
	Cycles uint64
}

// VerifyTransaction executes every lock and type script group of rtx in
// deterministic order, stopping at the first failing group (spec.md
// §4.4.7: "a non-zero VM exit code from any group is
// ValidationFailure(code)"). A single memory budget is shared across all
// groups' process trees, matching the per-transaction scope spec.md
// §4.4.3 describes.
func VerifyTransaction(rtx *cellprovider.ResolvedTransaction, cfg RunConfig) ([]GroupResult, error) {
	groups := BuildScriptGroups(rtx)
	if len(groups) == 0 {
		return nil, nil
	}

	txHash := rtx.Transaction.Hash()
	memBudget := NewMemoryBudget(cfg.MaxMemoryPerTx)

	results := make([]GroupResult, 0, len(groups))
	for i := range groups {
		group := groups[i]
		meter := NewCycleMeter(uint64(cfg.MaxCyclesPerGroup))
		ctx := &ExecContext{
			Tx:        rtx,
			TxHash:    txHash,
			Group:     &group,
			VMVersion: group.Script.HashType.VMVersion(),
		}
		_ = cfg.VMVersion // reserved: future versions may gate available syscalls.

		sched := NewScheduler(ctx, meter, memBudget, cfg.MemoryPerProcess, cfg.LoadCode)
		exitCode, err := sched.Run()
		if err != nil {
			return results, fmt.Errorf("script group %s: %w", group.Hash, err)
		}
		if exitCode != ExitSuccess {
			return results, fmt.Errorf("script group %s: %w", group.Hash, &ValidationFailure{Code: exitCode})
		}
		results = append(results, GroupResult{Group: group, Cycles: meter.Used()})
	}
	return results, nil
}
