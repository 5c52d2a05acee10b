package txpool

import (
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/klingon-tech/cellnode/internal/consensus"
	"github.com/klingon-tech/cellnode/internal/logging"
	"github.com/klingon-tech/cellnode/internal/verifier"
	"github.com/klingon-tech/cellnode/pkg/types"
)

// Validator checks a candidate transaction against resolution, since,
// capacity, maturity, DAO and script rules (internal/verifier's §4.5.3
// contextual checks) and reports its fee and cycle cost. The pool itself
// never resolves cells or runs scripts; it only ranks and queues what the
// validator already accepted, mirroring the teacher's separation between
// mempool.Pool (bookkeeping) and tx.ValidateWithUTXOs (rules).
type Validator interface {
	Validate(tx types.Transaction) (fee types.Capacity, cycles uint64, err error)
}

// Pool is the single-writer, many-reader transaction queue of spec.md
// §4.8: Pending/Gap/Proposed status, incremental ancestor accounting,
// fee-rate ordering, size-bounded eviction and replace-by-fee.
type Pool struct {
	mu sync.Mutex

	cfg       Config
	validator Validator

	entries map[types.Hash256]*Entry
	graph   *graph
	memSize uint64

	// proposedAt records the block number each pooled transaction's
	// short id was first proposed at, shared by the Gap/Proposed
	// transitions in BlockAccepted.
	proposedAt map[types.ProposalShortID]uint64

	conflictCache *lru.Cache[types.Hash256, struct{}]
	recentReject  *lru.Cache[types.Hash256, *PoolError]
}

// New builds an empty pool. cacheSize bounds the conflict and
// recent-reject LRU caches (spec.md §4.8.1).
func New(cfg Config, validator Validator, cacheSize int) *Pool {
	if cacheSize <= 0 {
		cacheSize = 10_000
	}
	conflictCache, _ := lru.New[types.Hash256, struct{}](cacheSize)
	recentReject, _ := lru.New[types.Hash256, *PoolError](cacheSize)
	return &Pool{
		cfg:           cfg,
		validator:     validator,
		entries:       make(map[types.Hash256]*Entry),
		graph:         newGraph(),
		proposedAt:    make(map[types.ProposalShortID]uint64),
		conflictCache: conflictCache,
		recentReject:  recentReject,
	}
}

// Submit validates and admits tx, returning the pooled entry on success or
// a *PoolError (pool policy) / the validator's own error (rule violation)
// on rejection (spec.md §6.4 "submit(tx) -> Accepted | Rejected(reason)").
func (p *Pool) Submit(tx types.Transaction) (*Entry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	hash := tx.Hash()

	if reason, ok := p.recentReject.Get(hash); ok {
		return nil, &PoolError{Kind: RecentlyRejected, TxHash: hash.String(), Detail: reason.Error()}
	}
	if _, exists := p.entries[hash]; exists {
		return nil, newPoolError(Duplicate, hash, "already pooled")
	}

	incumbents := p.graph.conflicts(tx)

	fee, cycles, err := p.validator.Validate(tx)
	if err != nil {
		if terr, ok := err.(*verifier.TxError); ok && (terr.Kind == verifier.SinceImmature || terr.Kind == verifier.CellbaseImmaturity) {
			perr := newPoolError(ImmatureTransaction, hash, "%v", terr)
			p.recentReject.Add(hash, perr)
			return nil, perr
		}
		return nil, err
	}
	size := uint64(len(tx.Serialize()))

	if len(incumbents) > 0 {
		if err := p.replaceByFee(hash, fee, size, incumbents); err != nil {
			return nil, err
		}
	}

	if p.cfg.MinFeeRate > 0 && size > 0 && uint64(fee)/size < p.cfg.MinFeeRate {
		perr := newPoolError(LowFeeRate, hash, "fee rate %d below minimum %d", uint64(fee)/size, p.cfg.MinFeeRate)
		p.recentReject.Add(hash, perr)
		return nil, perr
	}

	ancestorCount := p.prospectiveAncestorCount(tx)
	if ancestorCount > p.cfg.MaxAncestors {
		perr := newPoolError(ExceededMaximumAncestorsCount, hash, "would have %d ancestors, max %d", ancestorCount, p.cfg.MaxAncestors)
		p.recentReject.Add(hash, perr)
		return nil, perr
	}

	e := &Entry{
		Hash:      hash,
		Tx:        tx,
		Status:    Pending,
		Size:      size,
		Cycles:    cycles,
		Fee:       fee,
		Timestamp: uint64(time.Now().UnixNano()),
	}
	p.insert(e)
	p.evictIfNeeded()
	logging.TxPool.Debug().Stringer("hash", hash).Uint64("fee", uint64(fee)).Uint64("cycles", cycles).Msg("tx pooled")
	return e, nil
}

// insert adds e to the pool's bookkeeping: entries map, graph edges,
// memSize, and recomputes e's and every descendant's ancestor sums.
// Must be called with p.mu held.
func (p *Pool) insert(e *Entry) {
	p.entries[e.Hash] = e
	p.graph.add(e.Hash, e.Tx)
	p.memSize += e.Size
	p.recomputeAncestors(e.Hash)
}

// remove deletes hash alone (not its descendants) from the pool's
// bookkeeping. Callers that must preserve DAG consistency use
// removeSubtree instead. Must be called with p.mu held.
func (p *Pool) remove(hash types.Hash256) {
	e, ok := p.entries[hash]
	if !ok {
		return
	}
	p.graph.remove(hash, e.Tx)
	delete(p.entries, hash)
	p.memSize -= e.Size
}

// removeConfirmed deletes hash alone (its transaction is now on-chain, not
// replaced) and refreshes the ancestor accounting of any surviving
// in-pool descendants, since one of their ancestors just left the pool.
func (p *Pool) removeConfirmed(hash types.Hash256) {
	descendants := p.graph.descendants(hash)
	p.remove(hash)
	for d := range descendants {
		p.recomputeAncestors(d)
	}
}

// removeSubtree removes hash and every in-pool descendant atomically
// (spec.md §4.8.4 eviction, §4.8.5 RBF both require this), recording each
// removed hash in the conflict cache under reason.
func (p *Pool) removeSubtree(hash types.Hash256, reason *PoolError) {
	victims := p.graph.descendants(hash)
	victims[hash] = struct{}{}
	for h := range victims {
		p.remove(h)
		p.conflictCache.Add(h, struct{}{})
		if reason != nil {
			rejected := *reason
			rejected.TxHash = h.String()
			p.recentReject.Add(h, &rejected)
		}
	}
}

// prospectiveAncestorCount computes how many in-pool ancestors tx would
// have if admitted, without mutating the graph (spec.md §4.8.2).
func (p *Pool) prospectiveAncestorCount(tx types.Transaction) uint64 {
	seen := make(map[types.Hash256]struct{})
	for _, in := range tx.Inputs {
		parent := in.PreviousOutput.TxHash
		if _, pooled := p.entries[parent]; !pooled {
			continue
		}
		seen[parent] = struct{}{}
		for h := range p.graph.ancestors(parent) {
			seen[h] = struct{}{}
		}
	}
	return uint64(len(seen)) + 1 // +1 counts tx itself
}

// recomputeAncestors refreshes hash's own AncestorsCount/Size/Cycles/Fee
// fields from the current graph and entries map. Called after hash is
// inserted and after any of its ancestors is removed.
func (p *Pool) recomputeAncestors(hash types.Hash256) {
	e, ok := p.entries[hash]
	if !ok {
		return
	}
	set := p.graph.ancestors(hash)
	var size, cycles uint64
	var fee types.Capacity
	size, cycles, fee = e.Size, e.Cycles, e.Fee
	for h := range set {
		if a, ok := p.entries[h]; ok {
			size += a.Size
			cycles += a.Cycles
			fee += a.Fee
		}
	}
	e.AncestorsCount = uint64(len(set)) + 1
	e.AncestorsSize = size
	e.AncestorsCycles = cycles
	e.AncestorsFee = fee
}

// evictIfNeeded drops the lowest-ranked Pending entry and its descendants,
// repeatedly, until memSize is within budget (spec.md §4.8.4).
func (p *Pool) evictIfNeeded() {
	for p.memSize > p.cfg.MaxMemSize {
		victim := p.lowestRankedPending()
		if victim == (types.Hash256{}) {
			return // nothing evictable left (only Gap/Proposed remain)
		}
		p.removeSubtree(victim, newPoolError(Full, zeroHash{}, "evicted: pool exceeded max_mem_size"))
	}
}

func (p *Pool) lowestRankedPending() types.Hash256 {
	var worst *Entry
	for _, e := range p.entries {
		if e.Status != Pending {
			continue
		}
		if worst == nil || e.less(worst, p.cfg.BytesPerCycle) {
			worst = e
		}
	}
	if worst == nil {
		return types.Hash256{}
	}
	return worst.Hash
}

// zeroHash is a fmt.Stringer placeholder for pool-initiated rejections
// (eviction) that are not about one specific incoming transaction; the
// real hash is substituted per victim in removeSubtree.
type zeroHash struct{}

func (zeroHash) String() string { return "" }

// Has reports whether hash is currently pooled.
func (p *Pool) Has(hash types.Hash256) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.entries[hash]
	return ok
}

// Get returns the pooled entry for hash, if any.
func (p *Pool) Get(hash types.Hash256) (Entry, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.entries[hash]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Count returns the number of pooled transactions.
func (p *Pool) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// PoolSnapshot is a read-only, point-in-time view of the pool, handed to
// RPC callers so they never read under the writer's lock (spec.md §4.8.6,
// §6.4 "snapshot() -> PoolSnapshot").
type PoolSnapshot struct {
	PendingCount  int
	GapCount      int
	ProposedCount int
	MemSize       uint64
	Entries       []EntrySnapshot
}

// EntrySnapshot is one pooled transaction's externally visible state.
type EntrySnapshot struct {
	Hash   types.Hash256
	Status Status
	Fee    types.Capacity
	Size   uint64
	Cycles uint64
}

// Snapshot builds a PoolSnapshot of the pool's current contents.
func (p *Pool) Snapshot() PoolSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	snap := PoolSnapshot{MemSize: p.memSize, Entries: make([]EntrySnapshot, 0, len(p.entries))}
	for _, e := range p.entries {
		switch e.Status {
		case Pending:
			snap.PendingCount++
		case Gap:
			snap.GapCount++
		case Proposed:
			snap.ProposedCount++
		}
		snap.Entries = append(snap.Entries, EntrySnapshot{Hash: e.Hash, Status: e.Status, Fee: e.Fee, Size: e.Size, Cycles: e.Cycles})
	}
	return snap
}

// BlockTemplate selects Proposed entries for the next block in fee-rate
// rank order, respecting sizeLimit/cyclesLimit and never including a
// transaction before its in-pool parents (spec.md §6.4
// "block_template(size_limit, cycles_limit) -> (proposals, transactions)").
// Pending entries not yet proposed become the returned proposals.
func (p *Pool) BlockTemplate(sizeLimit, cyclesLimit uint64) ([]types.ProposalShortID, []types.Transaction) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var proposed []*Entry
	for _, e := range p.entries {
		if e.Status == Proposed {
			proposed = append(proposed, e)
		}
	}
	sort.Slice(proposed, func(i, j int) bool { return !proposed[i].less(proposed[j], p.cfg.BytesPerCycle) })

	// A child can rank above its own in-pool parent; revisit skipped
	// entries once their parents have been included, bounded by one pass
	// per candidate so a genuinely-excluded entry (budget or a parent that
	// never fits) terminates the loop rather than spinning.
	included := make(map[types.Hash256]struct{})
	var txs []types.Transaction
	var size, cycles uint64
	remaining := proposed
	for pass := 0; len(remaining) > 0 && pass <= len(proposed); pass++ {
		var next []*Entry
		for _, e := range remaining {
			parentsReady := true
			for parent := range p.graph.parents[e.Hash] {
				if _, ok := included[parent]; ok {
					continue
				}
				if pe, ok := p.entries[parent]; ok && pe.Status == Proposed {
					parentsReady = false
					break
				}
			}
			if !parentsReady {
				next = append(next, e)
				continue
			}
			if size+e.Size > sizeLimit || cycles+e.Cycles > cyclesLimit {
				continue // excluded for budget, not retried
			}
			included[e.Hash] = struct{}{}
			txs = append(txs, e.Tx)
			size += e.Size
			cycles += e.Cycles
		}
		if len(next) == len(remaining) {
			break // no progress this pass; remaining parents will never be included
		}
		remaining = next
	}

	var proposals []types.ProposalShortID
	for _, e := range p.entries {
		if e.Status == Pending {
			if _, already := p.proposedAt[types.ProposalShortIDFromHash(e.Hash)]; !already {
				proposals = append(proposals, types.ProposalShortIDFromHash(e.Hash))
			}
		}
	}
	return proposals, txs
}

// BlockAcceptedEvent is the notification the chain service sends the pool
// after each main-chain change (spec.md §4.6 step 9, §4.8.1).
type BlockAcceptedEvent struct {
	BlockNumber  uint64
	Proposals    []types.ProposalShortID
	CommittedTxs []types.Hash256
	RevertedTxs  []types.Transaction
}

// BlockAccepted applies a main-chain change's effect on the pool's
// queues: proposals move Pending->Gap, entries entering/leaving the
// commit window move Gap<->Proposed, committed transactions are removed,
// and reverted transactions are re-submitted for re-verification
// (spec.md §4.8.1).
func (p *Pool) BlockAccepted(evt BlockAcceptedEvent, params consensus.Params) {
	p.mu.Lock()

	for _, id := range evt.Proposals {
		if _, already := p.proposedAt[id]; !already {
			p.proposedAt[id] = evt.BlockNumber
		}
		for _, e := range p.entries {
			if e.Status == Pending && types.ProposalShortIDFromHash(e.Hash) == id {
				e.Status = Gap
			}
		}
	}

	for _, e := range p.entries {
		id := types.ProposalShortIDFromHash(e.Hash)
		at, ok := p.proposedAt[id]
		if !ok {
			continue
		}
		age := evt.BlockNumber - at
		switch {
		case e.Status == Gap && age >= params.ProposalWindowClose && age <= params.ProposalWindowFar:
			e.Status = Proposed
		case e.Status == Proposed && age > params.ProposalWindowFar:
			e.Status = Pending
			delete(p.proposedAt, id)
		}
	}

	for _, hash := range evt.CommittedTxs {
		if e, ok := p.entries[hash]; ok {
			delete(p.proposedAt, types.ProposalShortIDFromHash(e.Hash))
		}
		p.removeConfirmed(hash)
	}

	reverted := evt.RevertedTxs
	p.mu.Unlock()

	for _, tx := range reverted {
		p.Submit(tx) // best-effort re-verification; failures surface via recentReject only
	}
}
