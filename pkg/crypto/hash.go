// Package crypto provides the content-addressing and proof-of-work hash
// functions, and the signature scheme used by default lock scripts.
package crypto

import (
	"golang.org/x/crypto/blake2b"

	"github.com/klingon-tech/cellnode/pkg/types"
)

// Hash computes the blake2b-256 digest of data (spec.md §3: "all hashes in
// this system are blake2b-256").
func Hash(data []byte) types.Hash256 {
	var out types.Hash256
	sum := blake2b.Sum256(data)
	copy(out[:], sum[:])
	return out
}

// DoubleHash computes Hash(Hash(data)). No code in this repository calls
// it; the freezer keeps no block-range checksum.
func DoubleHash(data []byte) types.Hash256 {
	first := Hash(data)
	return Hash(first[:])
}

// HashConcat hashes the concatenation of two hashes; it satisfies
// merkle.Merge and is the merge function passed to pkg/merkle when
// building a block's transactions_root.
func HashConcat(a, b types.Hash256) types.Hash256 {
	var buf [64]byte
	copy(buf[:32], a[:])
	copy(buf[32:], b[:])
	return Hash(buf[:])
}

// SighashAll returns a witness-binding digest: the transaction's tx_hash
// followed by, for each witness of its script group, the witness's 8-byte
// little-endian length and its bytes. Witnesses are hashed as given; no
// signature field inside them is zeroed out.
func SighashAll(txHash types.Hash256, groupWitnesses [][]byte) types.Hash256 {
	h, err := blake2b.New256(nil)
	if err != nil {
		panic("crypto: blake2b init failed: " + err.Error())
	}
	h.Write(txHash[:])
	for _, w := range groupWitnesses {
		var lenBuf [8]byte
		l := uint64(len(w))
		for i := 0; i < 8; i++ {
			lenBuf[i] = byte(l >> (8 * i))
		}
		h.Write(lenBuf[:])
		h.Write(w)
	}
	var out types.Hash256
	copy(out[:], h.Sum(nil))
	return out
}
