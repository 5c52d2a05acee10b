package types

import "math/big"

// U256 is an unsigned 256-bit integer used for total difficulty and PoW
// target comparison. It wraps math/big.Int the way the teacher's PoW engine
// does (internal/consensus/pow.go's target/CalcNextDifficulty). Sub clamps
// at zero so a value never goes negative; Add and Mul are not reduced to
// 256 bits, so their results can exceed MaxU256.
type U256 struct {
	v *big.Int
}

var maxU256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// ZeroU256 returns the zero value.
func ZeroU256() U256 { return U256{v: new(big.Int)} }

// U256FromUint64 builds a U256 from a uint64.
func U256FromUint64(n uint64) U256 {
	return U256{v: new(big.Int).SetUint64(n)}
}

// U256FromBytes interprets b as a big-endian unsigned integer.
func U256FromBytes(b []byte) U256 {
	return U256{v: new(big.Int).SetBytes(b)}
}

func (u U256) bigOrZero() *big.Int {
	if u.v == nil {
		return new(big.Int)
	}
	return u.v
}

// Bytes32 returns the big-endian 32-byte representation, left-padded with
// zeros.
func (u U256) Bytes32() [32]byte {
	var out [32]byte
	b := u.bigOrZero().Bytes()
	copy(out[32-len(b):], b)
	return out
}

// Add returns u+other.
func (u U256) Add(other U256) U256 {
	return U256{v: new(big.Int).Add(u.bigOrZero(), other.bigOrZero())}
}

// Sub returns u-other, clamped to zero if other > u.
func (u U256) Sub(other U256) U256 {
	r := new(big.Int).Sub(u.bigOrZero(), other.bigOrZero())
	if r.Sign() < 0 {
		r = new(big.Int)
	}
	return U256{v: r}
}

// Mul returns u*other.
func (u U256) Mul(other U256) U256 {
	return U256{v: new(big.Int).Mul(u.bigOrZero(), other.bigOrZero())}
}

// Div returns u/other using floor (truncating, since operands are
// non-negative floor == truncation) division. Div by zero returns zero.
func (u U256) Div(other U256) U256 {
	if other.bigOrZero().Sign() == 0 {
		return ZeroU256()
	}
	return U256{v: new(big.Int).Div(u.bigOrZero(), other.bigOrZero())}
}

// Cmp compares u to other: -1, 0, or 1.
func (u U256) Cmp(other U256) int {
	return u.bigOrZero().Cmp(other.bigOrZero())
}

// IsZero reports whether u is zero.
func (u U256) IsZero() bool {
	return u.bigOrZero().Sign() == 0
}

// String returns the decimal representation.
func (u U256) String() string {
	return u.bigOrZero().String()
}

// MaxU256 returns 2^256 - 1.
func MaxU256() U256 {
	return U256{v: new(big.Int).Set(maxU256)}
}
