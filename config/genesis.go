package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/klingon-tech/cellnode/internal/consensus"
	"github.com/klingon-tech/cellnode/internal/vm"
	"github.com/klingon-tech/cellnode/pkg/types"
)

// Genesis holds the genesis block configuration and protocol rules. This
// is immutable after chain launch; changing it is a hard fork, mirroring
// the teacher's config.Genesis.
type Genesis struct {
	ChainID   string `json:"chain_id"`
	ChainName string `json:"chain_name"`

	Timestamp     uint64 `json:"timestamp"`
	CompactTarget uint32 `json:"compact_target"`

	// Alloc seeds the genesis cellbase's outputs: lock script code hash
	// (hex) -> capacity in shannons.
	Alloc map[string]uint64 `json:"alloc"`

	Protocol ProtocolConfig `json:"protocol"`
}

// ProtocolConfig holds consensus-critical rules every node on the network
// must agree on, mapping onto internal/consensus.Params.
type ProtocolConfig struct {
	EpochDurationTarget   uint64 `json:"epoch_duration_target"`
	GenesisEpochLength    uint64 `json:"genesis_epoch_length"`
	MaxBlockIntervalRatio uint64 `json:"max_block_interval_ratio"`

	ProposalWindowClose uint64 `json:"proposal_window_close"`
	ProposalWindowFar   uint64 `json:"proposal_window_far"`

	CellbaseMaturity uint64 `json:"cellbase_maturity"`

	MaxBlockBytes  uint64 `json:"max_block_bytes"`
	MaxBlockCycles uint64 `json:"max_block_cycles"`

	DaoTypeHash          types.Hash256 `json:"dao_type_hash"`
	DaoWithdrawMinEpochs uint64        `json:"dao_withdraw_min_epochs"`

	MaxUnclesCount uint64 `json:"max_uncles_count"`

	InitialPrimaryEpochReward types.Capacity `json:"initial_primary_epoch_reward"`

	// PowEngine is "blake2b" (fully specified) or "eaglesong" (mainnet
	// stand-in, see DESIGN.md open question).
	PowEngine string `json:"pow_engine"`

	// OrphanRateTargetNumerator/Denominator is the epoch's target orphan
	// rate (spec.md §4.3); see consensus.Params for how it feeds the
	// difficulty adjustment.
	OrphanRateTargetNumerator   uint64 `json:"orphan_rate_target_numerator"`
	OrphanRateTargetDenominator uint64 `json:"orphan_rate_target_denominator"`

	// HardforkEpochs lists this network's hardfork switch epoch numbers
	// (spec.md §4.3, "hardfork switch epochs"); empty means none scheduled.
	HardforkEpochs []uint64 `json:"hardfork_epochs"`
}

// Params derives the runtime consensus.Params this genesis implies.
func (g *Genesis) Params() (consensus.Params, error) {
	engine := consensus.PowEngineBlake2b
	switch g.Protocol.PowEngine {
	case "", "blake2b":
		engine = consensus.PowEngineBlake2b
	case "eaglesong":
		engine = consensus.PowEngineEaglesong
	default:
		return consensus.Params{}, fmt.Errorf("genesis: unknown pow_engine %q", g.Protocol.PowEngine)
	}

	return consensus.Params{
		EpochDurationTarget:         g.Protocol.EpochDurationTarget,
		GenesisEpochLength:          g.Protocol.GenesisEpochLength,
		MaxBlockIntervalRatio:       g.Protocol.MaxBlockIntervalRatio,
		ProposalWindowClose:         g.Protocol.ProposalWindowClose,
		ProposalWindowFar:           g.Protocol.ProposalWindowFar,
		CellbaseMaturity:            g.Protocol.CellbaseMaturity,
		MaxBlockBytes:               g.Protocol.MaxBlockBytes,
		MaxBlockCycles:              g.Protocol.MaxBlockCycles,
		DaoTypeHash:                 g.Protocol.DaoTypeHash,
		DaoWithdrawMinEpochs:        g.Protocol.DaoWithdrawMinEpochs,
		MaxUnclesCount:              g.Protocol.MaxUnclesCount,
		InitialPrimaryEpochReward:   g.Protocol.InitialPrimaryEpochReward,
		PowEngine:                   engine,
		OrphanRateTargetNumerator:   g.Protocol.OrphanRateTargetNumerator,
		OrphanRateTargetDenominator: g.Protocol.OrphanRateTargetDenominator,
		HardforkEpochs:              g.Protocol.HardforkEpochs,
		SystemScriptCodeHashes:      []types.Hash256{vm.Secp256k1LockCodeHash},
	}, nil
}

// Block builds the genesis block itself: a single cellbase transaction
// whose outputs are g.Alloc, in map-iteration-independent (sorted by lock
// code hash) order so the genesis hash is deterministic.
func (g *Genesis) Block() (*types.Block, error) {
	keys := make([]string, 0, len(g.Alloc))
	for k := range g.Alloc {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	outputs := make([]types.CellOutput, 0, len(keys))
	outputsData := make([][]byte, 0, len(keys))
	for _, k := range keys {
		var codeHash types.Hash256
		if err := json.Unmarshal([]byte(`"`+k+`"`), &codeHash); err != nil {
			return nil, fmt.Errorf("genesis: alloc key %q: %w", k, err)
		}
		outputs = append(outputs, types.CellOutput{
			Capacity: types.Capacity(g.Alloc[k]),
			Lock:     types.Script{CodeHash: codeHash, HashType: types.HashTypeType},
		})
		outputsData = append(outputsData, []byte{})
	}
	if len(outputs) == 0 {
		return nil, fmt.Errorf("genesis: alloc must not be empty")
	}

	cellbase := types.Transaction{
		Inputs:      []types.Input{{PreviousOutput: types.NullOutPoint(), Since: types.Since(0)}},
		Outputs:     outputs,
		OutputsData: outputsData,
	}

	return &types.Block{
		Header: types.Header{
			Number:        0,
			Timestamp:     g.Timestamp,
			CompactTarget: g.CompactTarget,
		},
		Transactions: []types.Transaction{cellbase},
	}, nil
}

// Epoch builds epoch 0 for this genesis.
func (g *Genesis) Epoch(params consensus.Params) types.Epoch {
	return consensus.GenesisEpoch(params, g.CompactTarget)
}

// LoadGenesisFile reads and parses a JSON genesis file from path.
func LoadGenesisFile(path string) (*Genesis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load genesis %s: %w", path, err)
	}
	var g Genesis
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("parse genesis %s: %w", path, err)
	}
	return &g, nil
}
