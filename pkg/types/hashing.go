package types

import "golang.org/x/crypto/blake2b"

// sumHash256 returns the blake2b-256 digest of the concatenation of data,
// the content-addressing hash used throughout the ledger (spec.md §3).
func sumHash256(data ...[]byte) Hash256 {
	h, err := blake2b.New256(nil)
	if err != nil {
		panic("types: blake2b init failed: " + err.Error())
	}
	for _, d := range data {
		h.Write(d)
	}
	var out Hash256
	copy(out[:], h.Sum(nil))
	return out
}
