package config

import "github.com/klingon-tech/cellnode/pkg/types"

// testnetLockCodeHash is a placeholder for the
// well-known throwaway allocation the teacher's testnet genesis uses
// (there, a BIP-39 test mnemonic's derived address); here, a fixed lock
// code hash with no real key behind it, since genesis validation is out
// of this repository's scope.
const testnetLockCodeHash = "0x0101010101010101010101010101010101010101010101010101010101010101"

// TestnetGenesis returns the genesis configuration this repository's
// tests and scenarios are built against: short epochs, a small proposal
// window, and the fully specified blake2b PoW engine.
func TestnetGenesis() *Genesis {
	return &Genesis{
		ChainID:       "cellnode-testnet-1",
		ChainName:     "Cellnode Testnet",
		Timestamp:     1_700_000_000,
		CompactTarget: 0x20000000,
		Alloc: map[string]uint64{
			testnetLockCodeHash: 1_000_000 * uint64(types.ShannonsPerCKByte),
		},
		Protocol: ProtocolConfig{
			EpochDurationTarget:       4 * 3600,
			GenesisEpochLength:        1000,
			MaxBlockIntervalRatio:     4,
			ProposalWindowClose:       2,
			ProposalWindowFar:         10,
			CellbaseMaturity:          4,
			MaxBlockBytes:             2_000_000,
			MaxBlockCycles:            5_000_000_000,
			DaoWithdrawMinEpochs:        4,
			MaxUnclesCount:              2,
			InitialPrimaryEpochReward:   1_000_000 * types.ShannonsPerCKByte,
			PowEngine:                   "blake2b",
			OrphanRateTargetNumerator:   1,
			OrphanRateTargetDenominator: 40,
		},
	}
}

// MainnetGenesis returns a production-shaped genesis configuration: CKB-
// scale epoch length and the Eaglesong-stand-in PoW engine (DESIGN.md
// open question 5).
func MainnetGenesis() *Genesis {
	g := TestnetGenesis()
	g.ChainID = "cellnode-mainnet-1"
	g.ChainName = "Cellnode Mainnet"
	g.Protocol.GenesisEpochLength = 1800
	g.Protocol.PowEngine = "eaglesong"
	return g
}

// GenesisFor returns the well-known genesis for network.
func GenesisFor(network NetworkType) *Genesis {
	if network == Mainnet {
		return MainnetGenesis()
	}
	return TestnetGenesis()
}
