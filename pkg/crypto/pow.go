package crypto

import (
	"encoding/binary"

	"github.com/klingon-tech/cellnode/pkg/types"
)

// PowHash is the proof-of-work engine's sealing hash. Two engines are
// provided: Blake2bPow, the fully specified testnet engine (spec.md §5
// leaves mainnet PoW unspecified beyond "a sealed header hashes below the
// compact target"), and EaglesongPow, a documented stand-in for a
// permutation-based mainnet hash (see DESIGN.md's open-question log).
type PowHash func(message []byte, nonce [16]byte) types.Hash256

// Blake2bPow hashes message||nonce with blake2b-256. It is the engine
// exercised by every test and scenario in this repository.
func Blake2bPow(message []byte, nonce [16]byte) types.Hash256 {
	buf := make([]byte, 0, len(message)+16)
	buf = append(buf, message...)
	buf = append(buf, nonce[:]...)
	return Hash(buf)
}

// eaglesongRounds is the number of sponge-permutation rounds applied per
// block of state, chosen to give the permutation adequate diffusion without
// claiming bit-for-bit compatibility with any external PoW algorithm.
const eaglesongRounds = 42

// EaglesongPow is a deliberate, documented stand-in for CKB's Eaglesong
// proof-of-work hash, which has no Go implementation anywhere in the
// example pack. It absorbs message||nonce into a 16-word state with a
// keyed sponge permutation and squeezes 32 bytes out, giving mainnet
// configurations a distinct, non-reducible-to-blake2b PoW function without
// fabricating bit-compatibility with the upstream algorithm it stands in
// for.
func EaglesongPow(message []byte, nonce [16]byte) types.Hash256 {
	var state [16]uint64
	absorb(&state, message)
	absorb(&state, nonce[:])
	for i := 0; i < eaglesongRounds; i++ {
		permute(&state, i)
	}
	var out types.Hash256
	for i := 0; i < 4; i++ {
		binary.LittleEndian.PutUint64(out[i*8:], state[i])
	}
	return out
}

func absorb(state *[16]uint64, data []byte) {
	for len(data) > 0 {
		for i := 0; i < 16 && len(data) > 0; i++ {
			n := 8
			if len(data) < 8 {
				n = len(data)
			}
			var word [8]byte
			copy(word[:], data[:n])
			state[i] ^= binary.LittleEndian.Uint64(word[:])
			data = data[n:]
		}
		permute(state, 0)
	}
}

// permute applies one round of a rotate-xor-add mixing schedule, keyed by
// round, across the 16-word state.
func permute(state *[16]uint64, round int) {
	const (
		rotA = 13
		rotB = 39
	)
	for i := 0; i < 16; i++ {
		a := state[i]
		b := state[(i+1)%16]
		c := state[(i+5)%16]
		mixed := rotl64(a+b, rotA) ^ rotl64(c, rotB) ^ uint64(round+1)*0x9e3779b97f4a7c15
		state[i] = mixed
	}
}

func rotl64(x uint64, k uint) uint64 {
	return (x << k) | (x >> (64 - k))
}
