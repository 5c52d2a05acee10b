package config

import "testing"

func TestTestnetGenesis_ParamsAndBlockBuild(t *testing.T) {
	g := TestnetGenesis()

	params, err := g.Params()
	if err != nil {
		t.Fatalf("Params: %v", err)
	}
	if params.GenesisEpochLength != g.Protocol.GenesisEpochLength {
		t.Fatalf("GenesisEpochLength = %d, want %d", params.GenesisEpochLength, g.Protocol.GenesisEpochLength)
	}

	blk, err := g.Block()
	if err != nil {
		t.Fatalf("Block: %v", err)
	}
	if blk.Header.Number != 0 {
		t.Fatalf("genesis block number = %d, want 0", blk.Header.Number)
	}
	if len(blk.Transactions) != 1 {
		t.Fatalf("expected exactly one cellbase transaction, got %d", len(blk.Transactions))
	}
	if len(blk.Transactions[0].Outputs) != len(g.Alloc) {
		t.Fatalf("expected %d outputs, got %d", len(g.Alloc), len(blk.Transactions[0].Outputs))
	}

	epoch := g.Epoch(params)
	if epoch.Number != 0 || epoch.Length != params.GenesisEpochLength {
		t.Fatalf("unexpected genesis epoch: %+v", epoch)
	}
}

func TestGenesis_Block_IsDeterministic(t *testing.T) {
	g := TestnetGenesis()
	a, err := g.Block()
	if err != nil {
		t.Fatalf("Block (a): %v", err)
	}
	b, err := g.Block()
	if err != nil {
		t.Fatalf("Block (b): %v", err)
	}
	if a.Header.Hash() != b.Header.Hash() {
		t.Fatal("building the same genesis twice produced different hashes")
	}
}

func TestGenesis_Block_RejectsEmptyAlloc(t *testing.T) {
	g := TestnetGenesis()
	g.Alloc = nil
	if _, err := g.Block(); err == nil {
		t.Fatal("expected error building a genesis block with no allocations")
	}
}

func TestGenesis_Params_RejectsUnknownPowEngine(t *testing.T) {
	g := TestnetGenesis()
	g.Protocol.PowEngine = "sha3000"
	if _, err := g.Params(); err == nil {
		t.Fatal("expected error for an unknown pow_engine")
	}
}

func TestGenesisFor_SelectsByNetwork(t *testing.T) {
	if GenesisFor(Mainnet).ChainID != MainnetGenesis().ChainID {
		t.Fatal("GenesisFor(Mainnet) did not return the mainnet genesis")
	}
	if GenesisFor(Testnet).ChainID != TestnetGenesis().ChainID {
		t.Fatal("GenesisFor(Testnet) did not return the testnet genesis")
	}
}
