package main

import (
	"fmt"

	"github.com/klingon-tech/cellnode/internal/cellprovider"
	"github.com/klingon-tech/cellnode/internal/chain"
	"github.com/klingon-tech/cellnode/internal/consensus"
	"github.com/klingon-tech/cellnode/internal/txpool"
	"github.com/klingon-tech/cellnode/internal/verifier"
	"github.com/klingon-tech/cellnode/pkg/types"
)

// poolValidator adapts the chain service's committed state to
// txpool.Validator: a candidate is resolved against the live cell set with
// no in-block overlay (it isn't part of any block yet) and run through the
// same §4.5.3 contextual checks a block's transactions get, anchored to the
// current tip rather than a proposed child.
type poolValidator struct {
	chain *chain.Service
}

func (v *poolValidator) Validate(tx types.Transaction) (fee types.Capacity, cycles uint64, err error) {
	provider := cellprovider.StoreProvider{Store: v.chain.Store()}

	rtx, err := cellprovider.ResolveTransaction(tx, 0, nil, nil, provider, provider)
	if err != nil {
		return 0, 0, fmt.Errorf("resolve: %w", err)
	}

	params := v.chain.Params()
	tip := v.chain.Tip()
	txCtx := verifier.TxContext{
		TipBlockNumber: tip.Number,
		TipEpoch:       tip.EpochFraction(),
		TipTimestamp:   tip.Timestamp,
		Params:         params,
		VMConfig:       v.chain.VMConfig(),
	}
	return verifier.VerifyTransaction(rtx, params.BlockVersion, txCtx, 0)
}

// poolNotifier subscribes to the chain service's main-chain notifications
// and keeps the pool's Pending/Gap/Proposed queues in step with it
// (spec.md §4.8.1), the same division of labor the teacher's p2p block
// handler gives mempool.RemoveConfirmed, generalized to cover reorgs too.
type poolNotifier struct {
	pool   *txpool.Pool
	params consensus.Params
}

func (n *poolNotifier) ChainAccepted(evt chain.Event) {
	if !evt.MainChain || len(evt.Applied) == 0 {
		return
	}

	var proposals []types.ProposalShortID
	for _, blk := range evt.Applied {
		proposals = append(proposals, blk.Proposals...)
	}

	committed := make([]types.Hash256, len(evt.CommittedTxs))
	for i, tx := range evt.CommittedTxs {
		committed[i] = tx.Hash()
	}

	tipNumber := evt.Applied[len(evt.Applied)-1].Header.Number
	n.pool.BlockAccepted(txpool.BlockAcceptedEvent{
		BlockNumber:  tipNumber,
		Proposals:    proposals,
		CommittedTxs: committed,
		RevertedTxs:  evt.RevertedTxs,
	}, n.params)
}
