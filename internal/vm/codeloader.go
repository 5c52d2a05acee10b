package vm

import (
	"fmt"

	"github.com/klingon-tech/cellnode/internal/cellprovider"
	"github.com/klingon-tech/cellnode/pkg/types"
)

// CellDepCodeLoader resolves a script's code_hash/hash_type against a
// resolved transaction's cell_deps, the way spec.md §3 Script describes:
// HashTypeData/Data1/Data2 match against a dep cell's data hash,
// HashTypeType matches against a dep cell's type script hash.
func CellDepCodeLoader(rtx *cellprovider.ResolvedTransaction) CodeLoader {
	return func(script types.Script) ([]byte, error) {
		isDataHashType := script.HashType == types.HashTypeData ||
			script.HashType == types.HashTypeData1 ||
			script.HashType == types.HashTypeData2

		for _, dep := range rtx.CellDeps {
			if isDataHashType {
				if dep.DataHash == script.CodeHash {
					return dep.Data, nil
				}
			} else if dep.Output.Type != nil && dep.Output.Type.Hash() == script.CodeHash {
				return dep.Data, nil
			}
		}

		// Reserved system scripts resolve without a cell dep on their
		// bytecode, the way a chain's genesis-bundled locks always do.
		if isDataHashType && script.CodeHash == Secp256k1LockCodeHash {
			return Secp256k1LockCode(), nil
		}

		return nil, fmt.Errorf("code cell not found for code_hash %s", script.CodeHash)
	}
}
