// Package snapshot publishes an atomically swappable, read-only view of
// chain state: the current tip, the consensus parameters in force, a
// handle to the chain store, and the proposal window the chain service
// computed for it (spec.md §4.7).
package snapshot

import (
	"sync/atomic"

	"github.com/klingon-tech/cellnode/internal/consensus"
	"github.com/klingon-tech/cellnode/internal/store"
	"github.com/klingon-tech/cellnode/pkg/types"
)

// Snapshot is the immutable bundle spec.md §4.7 names:
// {tip_header, tip_total_difficulty, consensus, store_view,
// proposals_window}. Readers that acquire one hold a consistent view for
// the duration of their read scope even as later commits publish newer
// snapshots; nothing in a Snapshot is ever mutated in place.
type Snapshot struct {
	TipHeader          types.Header
	TipTotalDifficulty types.U256
	Params             consensus.Params
	Store              *store.ChainStore
	ProposalsWindow    map[types.ProposalShortID]uint64
}

// Manager holds the current Snapshot behind an atomic pointer: Current is
// a single atomic load with no locking on the hot read path, and Publish
// is the chain service's single atomic store after each main-chain
// change, mirroring the atomic.Pointer[Header]-as-current-head convention
// (grounded on the corpus's go-ethereum-style BlockChain.currentBlock).
type Manager struct {
	current atomic.Pointer[Snapshot]
}

// NewManager returns a Manager already publishing initial.
func NewManager(initial *Snapshot) *Manager {
	m := &Manager{}
	m.current.Store(initial)
	return m
}

// Publish atomically replaces the current snapshot. Readers already
// holding the previous one are unaffected; it remains valid, just stale.
func (m *Manager) Publish(snap *Snapshot) {
	m.current.Store(snap)
}

// Current returns the most recently published snapshot.
func (m *Manager) Current() *Snapshot {
	return m.current.Load()
}
