package txpool

import "github.com/klingon-tech/cellnode/pkg/types"

// graph tracks in-pool ancestor/descendant relationships as two maps, per
// spec.md §9's design note that this DAG must be implemented without
// in-memory pointers between entries: an outpoint → consuming-tx-hash
// edge set, and a tx-hash → {parents, children} relation set. Both sides
// are rebuilt from types.Hash256/types.OutPoint keys alone, so an entry
// can be removed by hash without walking live pointers into it.
type graph struct {
	// spentBy maps an outpoint to the in-pool transaction that spends it,
	// i.e. the producer→consumer edge for that cell.
	spentBy map[types.OutPoint]types.Hash256

	// parents/children are adjacency sets keyed by tx hash. parents[h] is
	// every in-pool transaction h directly spends from; children[h] is
	// every in-pool transaction that directly spends one of h's outputs.
	parents  map[types.Hash256]map[types.Hash256]struct{}
	children map[types.Hash256]map[types.Hash256]struct{}
}

func newGraph() *graph {
	return &graph{
		spentBy:  make(map[types.OutPoint]types.Hash256),
		parents:  make(map[types.Hash256]map[types.Hash256]struct{}),
		children: make(map[types.Hash256]map[types.Hash256]struct{}),
	}
}

// conflicts returns the set of distinct in-pool transactions that already
// spend one of tx's inputs, for RBF/conflict detection.
func (g *graph) conflicts(tx types.Transaction) []types.Hash256 {
	seen := make(map[types.Hash256]struct{})
	var out []types.Hash256
	for _, in := range tx.Inputs {
		if h, ok := g.spentBy[in.PreviousOutput]; ok {
			if _, dup := seen[h]; !dup {
				seen[h] = struct{}{}
				out = append(out, h)
			}
		}
	}
	return out
}

// add registers hash's edges: every input it spends that is itself
// produced by an in-pool transaction becomes a parent link, and hash
// becomes the new spender of every one of its inputs.
func (g *graph) add(hash types.Hash256, tx types.Transaction) {
	g.parents[hash] = make(map[types.Hash256]struct{})
	g.children[hash] = make(map[types.Hash256]struct{})

	for _, in := range tx.Inputs {
		g.spentBy[in.PreviousOutput] = hash
		parent := in.PreviousOutput.TxHash
		if _, exists := g.children[parent]; !exists {
			continue // parent is not itself pooled
		}
		g.parents[hash][parent] = struct{}{}
		g.children[parent][hash] = struct{}{}
	}
}

// remove deletes hash's node and its edges. It does not touch descendants'
// parent sets beyond severing the edge to hash; callers remove descendants
// separately (eviction and RBF both remove whole subtrees explicitly).
func (g *graph) remove(hash types.Hash256, tx types.Transaction) {
	for _, in := range tx.Inputs {
		if g.spentBy[in.PreviousOutput] == hash {
			delete(g.spentBy, in.PreviousOutput)
		}
	}
	for parent := range g.parents[hash] {
		delete(g.children[parent], hash)
	}
	for child := range g.children[hash] {
		delete(g.parents[child], hash)
	}
	delete(g.parents, hash)
	delete(g.children, hash)
}

// ancestors returns every in-pool transaction hash reachable by following
// parent edges from hash (hash itself excluded).
func (g *graph) ancestors(hash types.Hash256) map[types.Hash256]struct{} {
	return g.walk(hash, g.parents)
}

// descendants returns every in-pool transaction hash reachable by
// following child edges from hash (hash itself excluded).
func (g *graph) descendants(hash types.Hash256) map[types.Hash256]struct{} {
	return g.walk(hash, g.children)
}

func (g *graph) walk(start types.Hash256, edges map[types.Hash256]map[types.Hash256]struct{}) map[types.Hash256]struct{} {
	seen := make(map[types.Hash256]struct{})
	queue := []types.Hash256{start}
	for len(queue) > 0 {
		h := queue[0]
		queue = queue[1:]
		for next := range edges[h] {
			if _, ok := seen[next]; ok {
				continue
			}
			seen[next] = struct{}{}
			queue = append(queue, next)
		}
	}
	return seen
}
