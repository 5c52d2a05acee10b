package vm

import (
	"errors"
	"testing"

	"github.com/klingon-tech/cellnode/internal/cellprovider"
	"github.com/klingon-tech/cellnode/pkg/crypto"
	"github.com/klingon-tech/cellnode/pkg/types"
)

func signedLockTx(t *testing.T, priv *crypto.PrivateKey, corruptWitness bool) *cellprovider.ResolvedTransaction {
	t.Helper()
	lock := types.Script{CodeHash: Secp256k1LockCodeHash, HashType: types.HashTypeData}
	tx := types.Transaction{
		Inputs:  []types.Input{{}},
		Outputs: []types.CellOutput{{Capacity: 100, Lock: lock}},
	}
	txHash := tx.Hash()

	sig, err := priv.Sign(txHash[:])
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	witness := append(append([]byte{}, sig...), priv.PublicKey()...)
	if corruptWitness {
		witness[0] ^= 0xFF
	}
	tx.Witnesses = [][]byte{witness}

	return &cellprovider.ResolvedTransaction{
		Transaction: tx,
		Inputs:      []types.CellMeta{{Output: types.CellOutput{Capacity: 100, Lock: lock}}},
	}
}

func runConfig(rtx *cellprovider.ResolvedTransaction) RunConfig {
	return RunConfig{
		MaxCyclesPerGroup: 1_000_000,
		MaxMemoryPerTx:    1 << 20,
		MemoryPerProcess:  4096,
		LoadCode:          CellDepCodeLoader(rtx),
	}
}

func TestSecp256k1LockAcceptsValidSignature(t *testing.T) {
	priv, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	rtx := signedLockTx(t, priv, false)

	results, err := VerifyTransaction(rtx, runConfig(rtx))
	if err != nil {
		t.Fatalf("VerifyTransaction: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected one group result, got %d", len(results))
	}
}

func TestSecp256k1LockRejectsForgedSignature(t *testing.T) {
	priv, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	rtx := signedLockTx(t, priv, true)

	_, err = VerifyTransaction(rtx, runConfig(rtx))
	if err == nil {
		t.Fatalf("expected a validation failure for a corrupted witness")
	}
	var failure *ValidationFailure
	if !errors.As(err, &failure) {
		t.Fatalf("expected a *ValidationFailure, got %v", err)
	}
	if failure.Code != 1 {
		t.Fatalf("expected exit code 1, got %d", failure.Code)
	}
}

func TestCellDepCodeLoaderResolvesBundledSecp256k1Lock(t *testing.T) {
	rtx := &cellprovider.ResolvedTransaction{}
	loader := CellDepCodeLoader(rtx)
	code, err := loader(types.Script{CodeHash: Secp256k1LockCodeHash, HashType: types.HashTypeData})
	if err != nil {
		t.Fatalf("load bundled lock: %v", err)
	}
	if len(code) != len(Secp256k1LockCode()) {
		t.Fatalf("expected bundled lock bytecode, got %d bytes", len(code))
	}
}
