package chain

import (
	"fmt"
	"sync"

	"github.com/klingon-tech/cellnode/internal/cellprovider"
	"github.com/klingon-tech/cellnode/internal/consensus"
	"github.com/klingon-tech/cellnode/internal/logging"
	"github.com/klingon-tech/cellnode/internal/snapshot"
	"github.com/klingon-tech/cellnode/internal/store"
	"github.com/klingon-tech/cellnode/internal/verifier"
	"github.com/klingon-tech/cellnode/internal/vm"
	"github.com/klingon-tech/cellnode/pkg/types"
)

// NowFunc returns the current wall-clock time as unix seconds, overridable
// in tests so header timestamp checks are deterministic.
type NowFunc func() uint64

// Notifier receives chain-order notifications as main-chain state changes,
// mirroring spec.md §6.1's unbounded BlockAccepted channel. The tx pool is
// the canonical subscriber (internal/txpool.Pool.BlockAccepted), reached
// through this narrow interface so this package never imports txpool.
type Notifier interface {
	ChainAccepted(Event)
}

// Event is the notification spec.md §4.6 step 9 and §6.1 describe:
// BlockAccepted{hash, txs_in_block, reverted_txs}, generalized to carry
// every block applied during a (possibly multi-block) reorg.
type Event struct {
	Tip          types.Hash256
	MainChain    bool
	Applied      []*types.Block
	Reverted     []*types.Block
	CommittedTxs []types.Transaction
	RevertedTxs  []types.Transaction
}

// Service is the chain service of spec.md §4.6: the single writer that
// owns exclusive mutation rights over the chain store's logical chain
// state. Every exported mutating method takes Service.mu, matching the
// teacher's Chain.mu convention (internal/chain/chain.go); spec.md's
// "inbound request channel" phrasing describes the same single-writer
// guarantee, which an in-process mutex provides without an actor loop a
// single binary has no need for (see DESIGN.md open questions).
type Service struct {
	mu sync.Mutex

	store  *store.ChainStore
	params consensus.Params
	now    NowFunc

	genesisHash types.Hash256

	tipHash            types.Hash256
	tipHeader          types.Header
	tipTotalDifficulty types.U256
	tipEpoch           types.Epoch

	blockStates map[types.Hash256]verifier.BlockState

	// vmConfig bounds script execution; SetVMConfig overrides the default
	// (unbounded) configuration, mirroring the teacher's SetConsensusRules
	// handler-setter convention.
	vmConfig vm.RunConfig

	notifiers []Notifier

	// snapshots publishes a read-only {tip, consensus, store, proposals}
	// bundle after every main-chain change (spec.md §4.7); RPC-style
	// readers consult it instead of taking Service.mu.
	snapshots *snapshot.Manager
}

// Snapshots returns the manager publishing this service's read-only
// snapshots. Safe to call and read from concurrently with ProcessBlock.
func (s *Service) Snapshots() *snapshot.Manager {
	return s.snapshots
}

// publishSnapshot builds and publishes a Snapshot reflecting the current
// tip. Called with s.mu already held, after every tip-changing operation.
func (s *Service) publishSnapshot() {
	proposedAt, err := s.proposedAtWindow(s.tipHash, s.params.ProposalWindowFar)
	if err != nil {
		proposedAt = nil
	}
	s.snapshots.Publish(&snapshot.Snapshot{
		TipHeader:          s.tipHeader,
		TipTotalDifficulty: s.tipTotalDifficulty,
		Params:             s.params,
		Store:              s.store,
		ProposalsWindow:    proposedAt,
	})
}

// SetVMConfig overrides the script execution budget used by every
// subsequent contextual verification. Not safe to call concurrently with
// ProcessBlock/Reorg/Truncate.
func (s *Service) SetVMConfig(cfg vm.RunConfig) {
	s.vmConfig = cfg
}

// VMConfig returns the script execution budget currently in effect.
func (s *Service) VMConfig() vm.RunConfig {
	return s.vmConfig
}

// New wraps a store as a chain service, recovering tip/epoch state from
// it. An empty store is accepted as-is; the caller then runs InitGenesis.
func New(db *store.ChainStore, params consensus.Params, now NowFunc) (*Service, error) {
	if now == nil {
		now = func() uint64 { return 0 }
	}
	s := &Service{
		store:       db,
		params:      params,
		now:         now,
		blockStates: make(map[types.Hash256]verifier.BlockState),
		snapshots:   snapshot.NewManager(&snapshot.Snapshot{Params: params, Store: db}),
	}

	tipHash, tipDiff, err := db.GetTip()
	if err != nil {
		return nil, fmt.Errorf("recover tip: %w", err)
	}
	if tipHash.IsZero() {
		return s, nil // fresh store: caller must InitGenesis.
	}

	header, err := db.GetHeader(tipHash)
	if err != nil {
		return nil, fmt.Errorf("recover tip header: %w", err)
	}
	epochNumber, err := db.GetBlockEpochNumber(tipHash)
	if err != nil {
		return nil, fmt.Errorf("recover tip epoch: %w", err)
	}
	epoch, err := db.GetEpoch(epochNumber)
	if err != nil {
		return nil, fmt.Errorf("recover epoch %d: %w", epochNumber, err)
	}
	genesisHash, err := db.GetBlockHashByHeight(0)
	if err != nil {
		return nil, fmt.Errorf("recover genesis hash: %w", err)
	}

	s.tipHash = tipHash
	s.tipHeader = header
	s.tipTotalDifficulty = tipDiff
	s.tipEpoch = epoch
	s.genesisHash = genesisHash
	s.blockStates[tipHash] = verifier.BlockValid
	s.blockStates[genesisHash] = verifier.BlockValid
	s.publishSnapshot()
	return s, nil
}

// InitGenesis applies gen as block 0, bypassing verification entirely
// (spec.md is silent on genesis validation; the teacher's
// InitFromGenesis likewise applies it directly). The store must be empty.
func (s *Service) InitGenesis(gen *types.Block, genesisEpoch types.Epoch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tipHash, _, err := s.store.GetTip()
	if err != nil {
		return fmt.Errorf("check existing tip: %w", err)
	}
	if !tipHash.IsZero() {
		return fmt.Errorf("chain already initialized at tip %s", tipHash)
	}

	hash := gen.Header.Hash()
	if err := s.store.InsertBlock(gen); err != nil {
		return fmt.Errorf("insert genesis: %w", err)
	}
	diff := consensus.DifficultyFromCompactTarget(gen.Header.CompactTarget)
	if err := s.store.AttachBlock(gen, diff, genesisEpoch.Number); err != nil {
		return fmt.Errorf("attach genesis: %w", err)
	}
	if err := s.store.PutEpoch(genesisEpoch); err != nil {
		return fmt.Errorf("store genesis epoch: %w", err)
	}
	if err := s.store.PutBlockExt(hash, store.BlockExt{ReceivedAt: s.now(), Verified: true}); err != nil {
		return fmt.Errorf("store genesis ext: %w", err)
	}

	s.genesisHash = hash
	s.tipHash = hash
	s.tipHeader = gen.Header
	s.tipTotalDifficulty = diff
	s.tipEpoch = genesisEpoch
	s.blockStates[hash] = verifier.BlockValid
	s.publishSnapshot()
	return nil
}

// Subscribe registers n to receive every future Event. Not safe to call
// concurrently with ProcessBlock/Reorg/Truncate.
func (s *Service) Subscribe(n Notifier) {
	s.notifiers = append(s.notifiers, n)
}

func (s *Service) notify(evt Event) {
	for _, n := range s.notifiers {
		n.ChainAccepted(evt)
	}
}

// Tip returns the current canonical tip header.
func (s *Service) Tip() types.Header {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tipHeader
}

// TipTotalDifficulty returns the current canonical tip's cumulative
// difficulty.
func (s *Service) TipTotalDifficulty() types.U256 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tipTotalDifficulty
}

// Height returns the current canonical tip's block number.
func (s *Service) Height() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tipHeader.Number
}

// Store exposes the underlying chain store for read-only queries
// (GetBlock, GetCell, ...). Snapshot consumers read through this; only
// Service's own mutating methods may write to it.
func (s *Service) Store() *store.ChainStore {
	return s.store
}

// Params returns the consensus parameters this chain service enforces.
func (s *Service) Params() consensus.Params {
	return s.params
}

// BlockState reports the §4.5.4 state machine position of a previously
// seen block, or Received for one this service has never heard of.
func (s *Service) BlockState(hash types.Hash256) verifier.BlockState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blockStates[hash]
}

// FreezeAncientBlocks moves every canonical block at or below tip -
// keepHotBlocks into archive (spec.md §4.9), skipping anything the
// archive already holds. Safe to call periodically (a ticker, a
// post-ProcessBlock hook); each call only does work for blocks crossing
// the boundary since the last call.
func (s *Service) FreezeAncientBlocks(archive store.Archiver, keepHotBlocks uint64) error {
	s.mu.Lock()
	tipNumber := s.tipHeader.Number
	s.mu.Unlock()

	if tipNumber < keepHotBlocks {
		return nil
	}
	boundary := tipNumber - keepHotBlocks

	frozen := 0
	for number := uint64(0); number <= boundary; number++ {
		if archive.Has(number) {
			continue
		}
		hash, err := s.store.GetBlockHashByHeight(number)
		if err != nil {
			return fmt.Errorf("freeze ancient blocks: height %d: %w", number, err)
		}
		if err := s.store.FreezeBlock(hash); err != nil {
			return fmt.Errorf("freeze ancient blocks: block %d: %w", number, err)
		}
		frozen++
	}
	if frozen > 0 {
		logging.Chain.Info().Int("count", frozen).Uint64("boundary", boundary).Msg("froze ancient blocks")
	}
	return nil
}

// storeUncleProvider adapts *store.ChainStore to verifier.UncleProvider.
type storeUncleProvider struct {
	db *store.ChainStore
}

func (p storeUncleProvider) HeaderByHash(hash types.Hash256) (types.Header, bool) {
	h, err := p.db.GetHeader(hash)
	if err != nil {
		return types.Header{}, false
	}
	return h, true
}

func (p storeUncleProvider) IsMainChainBlock(hash types.Hash256) bool {
	h, err := p.db.GetHeader(hash)
	if err != nil {
		return false
	}
	canonical, err := p.db.GetBlockHashByHeight(h.Number)
	return err == nil && canonical == hash
}

// ancestorTimestamps collects up to verifier.MedianTimeSpan timestamps of
// hash's ancestors, most recent last, for the header median-time rule.
func ancestorTimestamps(db *store.ChainStore, parentHash types.Hash256, n int) []uint64 {
	timestamps := make([]uint64, 0, n)
	hash := parentHash
	for i := 0; i < n; i++ {
		h, err := db.GetHeader(hash)
		if err != nil {
			break
		}
		timestamps = append(timestamps, h.Timestamp)
		if h.Number == 0 {
			break
		}
		hash = h.ParentHash
	}
	for i, j := 0, len(timestamps)-1; i < j; i, j = i+1, j-1 {
		timestamps[i], timestamps[j] = timestamps[j], timestamps[i]
	}
	return timestamps
}

// cellProvider returns a cellprovider.StoreProvider over the committed
// store, which chain composes with its own BlockOverlay per candidate
// block.
func (s *Service) cellProvider() cellprovider.StoreProvider {
	return cellprovider.StoreProvider{Store: s.store}
}
