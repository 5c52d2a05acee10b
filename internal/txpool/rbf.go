package txpool

import "github.com/klingon-tech/cellnode/pkg/types"

// replaceByFee decides whether a candidate transaction (hash, fee, size)
// may evict the incumbents it conflicts with, per spec.md §4.8.5. On
// success it removes every incumbent and its in-pool descendants
// atomically. On failure it returns *PoolError{RBFRejected, ...} and
// leaves the pool untouched.
func (p *Pool) replaceByFee(hash types.Hash256, fee types.Capacity, size uint64, incumbents []types.Hash256) error {
	if size == 0 {
		return newPoolError(RBFRejected, hash, "replacement has zero size")
	}
	newRate := float64(fee) / float64(size)

	victims := make(map[types.Hash256]struct{})
	var incumbentFee types.Capacity
	var worstIncumbentRate float64

	for _, h := range incumbents {
		incumbent, ok := p.entries[h]
		if !ok {
			continue
		}
		if incumbent.Status == Proposed {
			return newPoolError(RBFRejected, hash, "incumbent %s is already Proposed", h)
		}
		if r := incumbent.ownFeeRate(); r > worstIncumbentRate {
			worstIncumbentRate = r
		}
		incumbentFee += incumbent.Fee

		victims[h] = struct{}{}
		for d := range p.graph.descendants(h) {
			if de, ok := p.entries[d]; ok && de.Status == Proposed {
				return newPoolError(RBFRejected, hash, "incumbent descendant %s is already Proposed", d)
			}
			victims[d] = struct{}{}
		}
	}

	if newRate < worstIncumbentRate+float64(p.cfg.MinRBFFeeRateDelta) {
		return newPoolError(RBFRejected, hash, "fee rate %.2f does not exceed incumbent rate %.2f by the required delta %d", newRate, worstIncumbentRate, p.cfg.MinRBFFeeRateDelta)
	}

	minRelayFee := p.cfg.MinRelayFeeRate * size
	if uint64(fee) < uint64(incumbentFee)+minRelayFee {
		return newPoolError(RBFRejected, hash, "absolute fee %d does not cover incumbent fee %d plus min-relay fee %d", fee, incumbentFee, minRelayFee)
	}

	reason := newPoolError(RBFRejected, hash, "replaced by %s", hash)
	for v := range victims {
		p.removeSubtree(v, reason)
	}
	return nil
}
